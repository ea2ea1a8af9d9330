package quorumflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/randalmurphal/quorumflow/consensus"
	"github.com/randalmurphal/quorumflow/ledger"
	"github.com/randalmurphal/quorumflow/notify"
	"github.com/randalmurphal/quorumflow/source"
)

// planStage fans the request out to every enabled AI source, normalizes
// the replies, and reconciles them into a single decision. Individual
// source failures are tolerated; an empty round is not.
func planStage(ctx context.Context, st runState) (runState, error) {
	gw := GatewayFromContext(ctx)
	normalizer, engine := ConsensusFromContext(ctx)
	if gw == nil || engine == nil {
		return st, fmt.Errorf("planning: gateway and consensus services required")
	}

	req := st.run.request
	raw := gw.Collect(ctx, source.Request{
		RequestID:   req.ID,
		Kind:        string(req.Kind),
		Description: req.Description,
	})

	result, err := normalizer.Normalize(raw)
	if err != nil {
		return st, fmt.Errorf("planning: %w: %v", ErrNoProposals, err)
	}
	st.unreachable = result.Unreachable

	decision, err := engine.Decide(req.ID, result.Proposals)
	if err != nil {
		// A round where every source failed transiently is itself
		// transient: the stage retry loop gets another shot before the
		// run fails with an empty-round error.
		if allTransient(raw) {
			return st, fmt.Errorf("planning: all %d sources unreachable: %w",
				len(raw), ErrTransientSource)
		}
		if len(result.Unreachable) > 0 {
			return st, fmt.Errorf("planning: %w (unreachable: %s)",
				err, strings.Join(result.Unreachable, ", "))
		}
		return st, fmt.Errorf("planning: %w", err)
	}
	st.decision = decision
	st.run.setDecision(decision)

	// The decision is persisted verbatim so recovery can rebuild it
	// without a second consensus round.
	encoded, err := json.Marshal(decision)
	if err != nil {
		return st, fmt.Errorf("planning: encode decision: %w", err)
	}
	store := MustLedgerFromContext(ctx)
	if err := store.Append(st.run.runID, ledger.Record{
		Stage:   string(StagePlanning),
		Attempt: st.attempt,
		Event:   ledger.EventDecision,
		Detail:  string(encoded),
	}); err != nil {
		return st, fmt.Errorf("planning: ledger append: %w", err)
	}

	emit(ctx, st, notify.Event{
		Type:     notify.EventDecisionReached,
		Stage:    string(StagePlanning),
		Severity: notify.SeverityInfo,
		Message: fmt.Sprintf("decision reached: %d sources agree (score %.2f)",
			len(decision.ContributingSources), decision.AgreementScore),
		Metadata: map[string]any{
			"sources":     decision.ContributingSources,
			"agreement":   decision.AgreementScore,
			"unreachable": result.Unreachable,
		},
		Timestamp: time.Now().UTC(),
	})
	return st, nil
}

// allTransient reports whether every response in a non-empty round failed
// with a transient error.
func allTransient(raw []consensus.RawResponse) bool {
	if len(raw) == 0 {
		return false
	}
	for _, r := range raw {
		if r.Err == nil || !errors.Is(r.Err, ErrTransientSource) {
			return false
		}
	}
	return true
}
