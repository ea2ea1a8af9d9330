package quorumflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
	"github.com/randalmurphal/quorumflow/consensus"
	"github.com/randalmurphal/quorumflow/ledger"
	"github.com/randalmurphal/quorumflow/notify"
	"github.com/randalmurphal/quorumflow/provider"
)

// =============================================================================
// Run State
// =============================================================================

// runState is the state threaded through the workflow graph. The run
// pointer is shared with the engine; everything else is per-execution
// working data rebuilt from the ledger on recovery.
type runState struct {
	run   *WorkflowRun
	abort *atomic.Bool

	// attempt is set by the stage wrapper before each node invocation.
	attempt int

	// environment is the resolved deployment target, fixed at run start
	// so recovery probes name the same target after a restart.
	environment string

	decision    *consensus.Decision
	unreachable []string

	files         []provider.FileChange
	commitMessage string
	commitSHA     string

	pr         *provider.PullRequest
	merged     bool
	deployment *provider.Deployment
	release    *provider.Release
}

// stageFn is the inner body of one workflow stage. The surrounding wrapper
// owns retries, timeouts, abort checks, and ledger bookkeeping.
type stageFn func(ctx context.Context, st runState) (runState, error)

// =============================================================================
// Stage Wrapper
// =============================================================================

// stageRetryWait is the base delay between stage attempts; it doubles per
// attempt.
const stageRetryWait = time.Second

// stageNode wraps a stage body into a flowgraph node that enforces the
// run's stage discipline: an abort check at the stage boundary, a bounded
// retry loop with exponential backoff for retryable errors, a per-attempt
// timeout, and a ledger record for every attempt. A ledger append failure
// is fatal for the run.
func stageNode(stage Stage, fn stageFn) flowgraph.NodeFunc[runState] {
	return func(ctx flowgraph.Context, st runState) (runState, error) {
		settings := SettingsFromContext(ctx)
		store := MustLedgerFromContext(ctx)
		st.run.setStage(stage)

		maxAttempts := settings.MaxStageAttempts
		var lastErr error
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			if st.abort.Load() {
				return st, recordAbort(ctx, st, stage, attempt)
			}

			if err := store.Append(st.run.runID, ledger.Record{
				Stage:   string(stage),
				Attempt: attempt,
				Event:   ledger.EventStarted,
				Detail:  stageStartDetail(stage, st),
			}); err != nil {
				return st, fmt.Errorf("ledger append: %w", err)
			}
			emit(ctx, st, notify.Event{
				Type:     notify.EventStageStarted,
				Stage:    string(stage),
				Severity: notify.SeverityInfo,
				Message:  fmt.Sprintf("stage %s attempt %d", stage, attempt),
			})

			st.attempt = attempt
			attemptCtx, cancel := context.WithTimeout(ctx, settings.StageTimeout)
			next, err := fn(attemptCtx, st)
			cancel()

			if err == nil {
				if appendErr := store.Append(st.run.runID, ledger.Record{
					Stage:   string(stage),
					Attempt: attempt,
					Event:   ledger.EventCompleted,
				}); appendErr != nil {
					return next, fmt.Errorf("ledger append: %w", appendErr)
				}
				next.run.recordResult(StageResult{
					Stage: stage, Attempt: attempt, Outcome: OutcomeOK, Timestamp: time.Now().UTC(),
				})
				emit(ctx, next, notify.Event{
					Type:     notify.EventStageCompleted,
					Stage:    string(stage),
					Severity: notify.SeverityInfo,
					Message:  fmt.Sprintf("stage %s completed", stage),
				})
				return next, nil
			}

			if errors.Is(err, ErrAborted) {
				return st, recordAbort(ctx, st, stage, attempt)
			}

			lastErr = err
			retryable := isRetryable(err) || errors.Is(err, context.DeadlineExceeded)
			outcome := OutcomeFatal
			if retryable && attempt < maxAttempts {
				outcome = OutcomeRetryable
			}
			if appendErr := store.Append(st.run.runID, ledger.Record{
				Stage:   string(stage),
				Attempt: attempt,
				Event:   ledger.EventFailed,
				Detail:  err.Error(),
			}); appendErr != nil {
				return st, fmt.Errorf("ledger append: %w", appendErr)
			}
			st.run.recordResult(StageResult{
				Stage: stage, Attempt: attempt, Outcome: outcome,
				Detail: err.Error(), Timestamp: time.Now().UTC(),
			})

			if outcome == OutcomeFatal {
				emit(ctx, st, notify.Event{
					Type:     notify.EventStageFailed,
					Stage:    string(stage),
					Severity: notify.SeverityError,
					Message:  fmt.Sprintf("stage %s failed: %v", stage, err),
				})
				return st, fmt.Errorf("stage %s: %w", stage, err)
			}

			if appendErr := store.Append(st.run.runID, ledger.Record{
				Stage:   string(stage),
				Attempt: attempt,
				Event:   ledger.EventRetrying,
				Detail:  err.Error(),
			}); appendErr != nil {
				return st, fmt.Errorf("ledger append: %w", appendErr)
			}
			emit(ctx, st, notify.Event{
				Type:     notify.EventStageRetrying,
				Stage:    string(stage),
				Severity: notify.SeverityWarning,
				Message:  fmt.Sprintf("stage %s attempt %d failed, retrying: %v", stage, attempt, err),
			})

			wait := stageRetryWait << (attempt - 1)
			slog.Debug("stage retry backoff",
				"runId", st.run.runID, "stage", stage, "attempt", attempt, "wait", wait)
			select {
			case <-ctx.Done():
				return st, ctx.Err()
			case <-time.After(wait):
			}
		}
		return st, fmt.Errorf("stage %s: attempts exhausted: %w", stage, lastErr)
	}
}

// stageStartDetail records stage inputs needed by recovery probes: the
// commit message for committing, the environment and ref for deploying,
// and the tag for releasing.
func stageStartDetail(stage Stage, st runState) string {
	switch stage {
	case StageCommitting:
		return st.commitMessage
	case StageDeploying:
		env, ref := deployTarget(st)
		return env + " " + ref
	case StageReleasing:
		return st.run.request.ReleaseTag()
	}
	return ""
}

// deployTarget resolves the deployment environment and ref for a run.
// Deterministic so a recovery probe after restart names the same target.
func deployTarget(st runState) (environment, ref string) {
	ref = st.commitSHA
	if ref == "" {
		ref = st.run.branch
	}
	return st.environment, ref
}

// recordAbort writes the abort record and surfaces ErrAborted.
func recordAbort(ctx context.Context, st runState, stage Stage, attempt int) error {
	store := MustLedgerFromContext(ctx)
	if err := store.Append(st.run.runID, ledger.Record{
		Stage:   string(stage),
		Attempt: attempt,
		Event:   ledger.EventAborted,
	}); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	return ErrAborted
}

// appendEffect records a durable side effect against the current stage.
func appendEffect(ctx context.Context, st runState, stage Stage, effect, detail string) error {
	store := MustLedgerFromContext(ctx)
	if err := store.Append(st.run.runID, ledger.Record{
		Stage:   string(stage),
		Attempt: st.attempt,
		Event:   ledger.EventCompleted,
		Effect:  effect,
		Detail:  detail,
	}); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}
	return nil
}

// emit sends a notification if a notifier is configured. Notification
// failures are logged, never propagated.
func emit(ctx context.Context, st runState, ev notify.Event) {
	n := notify.NotifierFromContext(ctx)
	if n == nil {
		return
	}
	ev.RunID = st.run.runID
	ev.RequestID = st.run.request.ID
	ev.Kind = string(st.run.request.Kind)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := n.Notify(ctx, ev); err != nil {
		slog.Warn("notification failed", "runId", st.run.runID, "type", ev.Type, "error", err)
	}
}
