package quorumflow

import (
	"context"

	"github.com/randalmurphal/quorumflow/config"
	"github.com/randalmurphal/quorumflow/consensus"
	"github.com/randalmurphal/quorumflow/gateway"
	"github.com/randalmurphal/quorumflow/ledger"
)

// =============================================================================
// Context Injection Helpers
// =============================================================================
// These helpers make engine services reachable from flowgraph nodes, which
// only see a context and the run state.

// serviceContextKey is a private type for context keys to avoid collisions
type serviceContextKey string

// Context keys for engine services
const (
	gatewayServiceKey   serviceContextKey = "quorumflow.gateway"
	consensusServiceKey serviceContextKey = "quorumflow.consensus"
	scmServiceKey       serviceContextKey = "quorumflow.scm"
	ledgerServiceKey    serviceContextKey = "quorumflow.ledger"
	settingsServiceKey  serviceContextKey = "quorumflow.settings"
	claimsServiceKey    serviceContextKey = "quorumflow.claims"
)

// WithGateway adds the source gateway to the context
func WithGateway(ctx context.Context, g *gateway.Gateway) context.Context {
	return context.WithValue(ctx, gatewayServiceKey, g)
}

// GatewayFromContext extracts the source gateway from context
func GatewayFromContext(ctx context.Context) *gateway.Gateway {
	if g, ok := ctx.Value(gatewayServiceKey).(*gateway.Gateway); ok {
		return g
	}
	return nil
}

// consensusServices bundles the normalizer and decision engine; they are
// always injected together.
type consensusServices struct {
	normalizer *consensus.Normalizer
	engine     *consensus.Engine
}

// WithConsensus adds the normalizer and decision engine to the context
func WithConsensus(ctx context.Context, n *consensus.Normalizer, e *consensus.Engine) context.Context {
	return context.WithValue(ctx, consensusServiceKey, consensusServices{normalizer: n, engine: e})
}

// ConsensusFromContext extracts the normalizer and decision engine
func ConsensusFromContext(ctx context.Context) (*consensus.Normalizer, *consensus.Engine) {
	if cs, ok := ctx.Value(consensusServiceKey).(consensusServices); ok {
		return cs.normalizer, cs.engine
	}
	return nil, nil
}

// WithSCM adds the retrying source-control wrapper to the context
func WithSCM(ctx context.Context, scm *gateway.SCM) context.Context {
	return context.WithValue(ctx, scmServiceKey, scm)
}

// SCMFromContext extracts the source-control wrapper from context
func SCMFromContext(ctx context.Context) *gateway.SCM {
	if scm, ok := ctx.Value(scmServiceKey).(*gateway.SCM); ok {
		return scm
	}
	return nil
}

// MustSCMFromContext extracts the source-control wrapper or panics
func MustSCMFromContext(ctx context.Context) *gateway.SCM {
	scm := SCMFromContext(ctx)
	if scm == nil {
		panic("quorumflow: SCM not found in context")
	}
	return scm
}

// WithLedger adds the operation ledger to the context
func WithLedger(ctx context.Context, store *ledger.FileStore) context.Context {
	return context.WithValue(ctx, ledgerServiceKey, store)
}

// LedgerFromContext extracts the operation ledger from context
func LedgerFromContext(ctx context.Context) *ledger.FileStore {
	if store, ok := ctx.Value(ledgerServiceKey).(*ledger.FileStore); ok {
		return store
	}
	return nil
}

// MustLedgerFromContext extracts the operation ledger or panics
func MustLedgerFromContext(ctx context.Context) *ledger.FileStore {
	store := LedgerFromContext(ctx)
	if store == nil {
		panic("quorumflow: ledger not found in context")
	}
	return store
}

// WithSettings adds resolved settings to the context
func WithSettings(ctx context.Context, s *config.Settings) context.Context {
	return context.WithValue(ctx, settingsServiceKey, s)
}

// SettingsFromContext extracts settings from context
func SettingsFromContext(ctx context.Context) *config.Settings {
	if s, ok := ctx.Value(settingsServiceKey).(*config.Settings); ok {
		return s
	}
	return nil
}

// withClaims adds the branch claim table to the context
func withClaims(ctx context.Context, c *branchClaims) context.Context {
	return context.WithValue(ctx, claimsServiceKey, c)
}

// claimsFromContext extracts the branch claim table from context
func claimsFromContext(ctx context.Context) *branchClaims {
	if c, ok := ctx.Value(claimsServiceKey).(*branchClaims); ok {
		return c
	}
	return nil
}
