// Package testutil provides fixtures for testing engine behavior: fast
// settings, canned source registries, and flaky sources with scripted
// failure patterns.
package testutil

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randalmurphal/quorumflow/config"
	"github.com/randalmurphal/quorumflow/source"
)

// Settings returns engine settings tuned for tests: short timeouts, a
// throwaway ledger directory, and auto-merge/auto-deploy off.
func Settings(t *testing.T) *config.Settings {
	t.Helper()
	return &config.Settings{
		PriorityOrder:       []string{"alpha", "beta", "gamma"},
		SimilarityThreshold: 0.8,
		MaxStageAttempts:    3,
		SourceTimeout:       5 * time.Second,
		StageTimeout:        10 * time.Second,
		BaseBranch:          "main",
		Environment:         "production",
		LedgerDir:           t.TempDir(),
	}
}

// Registry builds a registry from adapters.
func Registry(adapters ...source.Adapter) *source.Registry {
	registry := source.NewRegistry()
	for _, a := range adapters {
		registry.Register(a)
	}
	return registry
}

// AgreeingRegistry returns three sources where two agree, so consensus
// always lands on the shared proposal.
func AgreeingRegistry() *source.Registry {
	return Registry(
		source.Fixed("alpha", "introduce a token bucket limiter", 0.9),
		source.Fixed("beta", "introduce a token bucket limiter", 0.8),
		source.Fixed("gamma", "rewrite the auth service in rust", 0.95),
	)
}

// FlakySource returns a source that fails its first failures calls with
// the given error, then proposes content with confidence 0.9.
func FlakySource(id string, failures int, failWith error) *source.Mock {
	var calls atomic.Int32
	return &source.Mock{
		SourceID: id,
		ProposeFunc: func(ctx context.Context, req source.Request) (*source.Response, error) {
			if int(calls.Add(1)) <= failures {
				return nil, failWith
			}
			c := 0.9
			return &source.Response{Content: "shared proposal", Confidence: &c}, nil
		},
	}
}

// BlockingSource returns a source that signals started on its first call
// and blocks until release is closed.
func BlockingSource(id string, started chan<- struct{}, release <-chan struct{}) *source.Mock {
	var once atomic.Bool
	return &source.Mock{
		SourceID: id,
		ProposeFunc: func(ctx context.Context, req source.Request) (*source.Response, error) {
			if once.CompareAndSwap(false, true) && started != nil {
				close(started)
			}
			select {
			case <-release:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			c := 0.9
			return &source.Response{Content: "slow proposal", Confidence: &c}, nil
		},
	}
}
