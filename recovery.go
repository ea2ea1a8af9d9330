package quorumflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/randalmurphal/quorumflow/consensus"
	"github.com/randalmurphal/quorumflow/gateway"
	"github.com/randalmurphal/quorumflow/ledger"
)

// =============================================================================
// Recovery
// =============================================================================
// Recovery replays a run's ledger to decide where it stopped, then probes
// the provider for stages whose side effects are durable. Idempotent
// stages are simply re-run. A stage whose side effect cannot be confirmed
// either way fails the run rather than risking a duplicate commit,
// deployment, or release.

// recoveredRun is the outcome of planning recovery for one incomplete run.
type recoveredRun struct {
	run   *WorkflowRun
	state runState
	entry Stage

	// finished is set when the ledger shows the run actually completed
	// and only the final status write was lost.
	finished Status

	// failure is set when recovery is ambiguous; the run is closed out
	// as failed with this error.
	failure error
}

// planRecovery rebuilds a run from its ledger records and decides how to
// resume it.
func planRecovery(ctx context.Context, store *ledger.FileStore, scm *gateway.SCM, meta ledger.RunMeta, defaultEnv string) (*recoveredRun, error) {
	req := WorkflowRequest{
		ID:          meta.RequestID,
		Kind:        Kind(meta.Kind),
		Description: meta.Description,
		Priority:    PriorityNormal,
		CreatedAt:   meta.StartedAt,
	}
	run := &WorkflowRun{
		runID:     meta.RunID,
		request:   req,
		branch:    meta.Branch,
		status:    StatusRunning,
		stage:     StagePlanning,
		startedAt: meta.StartedAt,
	}

	records, err := store.Records(meta.RunID)
	if err != nil {
		return nil, fmt.Errorf("read ledger for run %s: %w", meta.RunID, err)
	}

	rec := &recoveredRun{
		run:   run,
		entry: StagePlanning,
		state: runState{
			run:         run,
			abort:       new(atomic.Bool),
			environment: defaultEnv,
		},
	}
	rebuildState(rec, records)

	if len(records) == 0 {
		return rec, nil
	}
	last := records[len(records)-1]
	stage := Stage(last.Stage)

	switch last.Event {
	case ledger.EventAborted:
		rec.finished = StatusAborted
		return rec, nil

	case ledger.EventCompleted:
		if last.Effect != "" {
			// A side effect landed but the stage itself never finished;
			// treat the stage as interrupted and fall through to probing.
			break
		}
		next := nextStage(req.Kind, stage)
		if next == "" {
			rec.finished = StatusSucceeded
			return rec, nil
		}
		rec.entry = next
		return rec, nil
	}

	// Interrupted mid-stage.
	switch stage {
	case StagePlanning, StageGenerating, StageValidating, StageReviewing:
		// Planning, generating, and validating have no durable side
		// effects; reviewing adopts an existing PR, so all four are safe
		// to re-run.
		rec.entry = stage

	case StageCommitting:
		probeCommitting(ctx, scm, rec, records)

	case StageDeploying:
		probeDeploying(ctx, scm, rec, records)

	case StageReleasing:
		probeReleasing(ctx, scm, rec)

	default:
		rec.failure = &RecoveryError{
			RunID: meta.RunID, Stage: stage, Probe: "ledger",
			Err: fmt.Errorf("unknown stage %q in ledger", last.Stage),
		}
	}

	// Stages past planning need the decision; without one the run starts
	// over from planning.
	if rec.failure == nil && rec.finished == "" && rec.entry != StagePlanning && rec.state.decision == nil {
		rec.entry = StagePlanning
	}
	return rec, nil
}

// rebuildState reconstructs per-execution working data from the ledger:
// the decision, the commit SHA, and the deploy target. File changes and
// the commit message are re-rendered, which yields identical artifacts
// because rendering is pure.
func rebuildState(rec *recoveredRun, records []ledger.Record) {
	for _, r := range records {
		switch {
		case r.Event == ledger.EventDecision:
			var d consensus.Decision
			if err := json.Unmarshal([]byte(r.Detail), &d); err == nil {
				rec.state.decision = &d
				rec.run.setDecision(&d)
			}
		case r.Effect == ledger.EffectCommit:
			rec.state.commitSHA = r.Detail
		case r.Stage == string(StageDeploying) && r.Event == ledger.EventStarted:
			if env, _, ok := splitDeployDetail(r.Detail); ok {
				rec.state.environment = env
			}
		}
	}
	if rec.state.decision != nil {
		rec.state.files = renderFiles(rec.run.request, rec.state.decision.ChosenContent, rec.state.decision.Rationale)
		rec.state.commitMessage = commitMessage(rec.run.request)
	}
}

// probeCommitting asks the provider whether the interrupted commit landed.
// Confirmed present skips ahead to reviewing; confirmed absent re-runs the
// stage; anything else is ambiguous.
func probeCommitting(ctx context.Context, scm *gateway.SCM, rec *recoveredRun, records []ledger.Record) {
	message := rec.state.commitMessage
	if message == "" {
		message = startDetailFor(records, StageCommitting)
	}
	if message == "" {
		rec.failure = &RecoveryError{
			RunID: rec.run.runID, Stage: StageCommitting, Probe: "commit",
			Err: fmt.Errorf("commit message unrecorded"),
		}
		return
	}
	exists, err := scm.CommitExists(ctx, rec.run.branch, message)
	if err != nil {
		rec.failure = &RecoveryError{RunID: rec.run.runID, Stage: StageCommitting, Probe: "commit", Err: err}
		return
	}
	if exists {
		rec.entry = StageReviewing
		return
	}
	rec.entry = StageCommitting
}

// probeDeploying asks the provider whether the interrupted deployment
// happened.
func probeDeploying(ctx context.Context, scm *gateway.SCM, rec *recoveredRun, records []ledger.Record) {
	detail := startDetailFor(records, StageDeploying)
	env, ref, ok := splitDeployDetail(detail)
	if !ok {
		rec.failure = &RecoveryError{
			RunID: rec.run.runID, Stage: StageDeploying, Probe: "deployment",
			Err: fmt.Errorf("deploy target unrecorded"),
		}
		return
	}
	exists, err := scm.DeploymentExists(ctx, env, ref)
	if err != nil {
		rec.failure = &RecoveryError{RunID: rec.run.runID, Stage: StageDeploying, Probe: "deployment", Err: err}
		return
	}
	if exists {
		rec.entry = StageReleasing
		return
	}
	rec.entry = StageDeploying
}

// probeReleasing asks the provider whether the interrupted release was
// published. A confirmed release means the run's final stage finished, so
// the run is closed out as succeeded.
func probeReleasing(ctx context.Context, scm *gateway.SCM, rec *recoveredRun) {
	if rec.run.request.Kind != KindRelease {
		// No release artifact for this kind; the stage is a no-op and
		// safe to re-run.
		rec.entry = StageReleasing
		return
	}
	tag := rec.run.request.ReleaseTag()
	exists, err := scm.ReleaseExists(ctx, tag)
	if err != nil {
		rec.failure = &RecoveryError{RunID: rec.run.runID, Stage: StageReleasing, Probe: "release", Err: err}
		return
	}
	if exists {
		rec.finished = StatusSucceeded
		return
	}
	rec.entry = StageReleasing
}

// startDetailFor returns the detail of the most recent started record for
// a stage.
func startDetailFor(records []ledger.Record, stage Stage) string {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Stage == string(stage) && records[i].Event == ledger.EventStarted {
			return records[i].Detail
		}
	}
	return ""
}

// splitDeployDetail parses the "environment ref" detail written when the
// deploying stage starts.
func splitDeployDetail(detail string) (env, ref string, ok bool) {
	fields := strings.Fields(detail)
	if len(fields) != 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}
