package quorumflow

import (
	"fmt"
	"sync"
	"time"

	"github.com/randalmurphal/quorumflow/consensus"
)

// =============================================================================
// Stages
// =============================================================================

// Stage names a step in the workflow lifecycle.
type Stage string

const (
	StagePlanning   Stage = "planning"
	StageGenerating Stage = "generating"
	StageValidating Stage = "validating"
	StageCommitting Stage = "committing"
	StageReviewing  Stage = "reviewing"
	StageDeploying  Stage = "deploying"
	StageReleasing  Stage = "releasing"
)

// stageOrder is the full stage sequence. Review workflows stop after
// StageReviewing; every other kind runs the whole sequence.
var stageOrder = []Stage{
	StagePlanning,
	StageGenerating,
	StageValidating,
	StageCommitting,
	StageReviewing,
	StageDeploying,
	StageReleasing,
}

// stagesFor returns the stage sequence for a workflow kind.
func stagesFor(kind Kind) []Stage {
	if kind == KindReview {
		return stageOrder[:5]
	}
	return stageOrder
}

// nextStage returns the stage after s for the given kind, or "" when s is
// the final stage of that kind's sequence.
func nextStage(kind Kind, s Stage) Stage {
	seq := stagesFor(kind)
	for i, st := range seq {
		if st == s {
			if i+1 < len(seq) {
				return seq[i+1]
			}
			return ""
		}
	}
	return ""
}

// validStage reports whether s names a known stage.
func validStage(s Stage) bool {
	for _, st := range stageOrder {
		if st == s {
			return true
		}
	}
	return false
}

// =============================================================================
// Stage Results
// =============================================================================

// Outcome classifies a single stage attempt.
type Outcome string

const (
	OutcomeOK        Outcome = "ok"
	OutcomeRetryable Outcome = "retryable_error"
	OutcomeFatal     Outcome = "fatal_error"
)

// StageResult records one attempt of one stage.
type StageResult struct {
	Stage     Stage     `json:"stage"`
	Attempt   int       `json:"attempt"`
	Outcome   Outcome   `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// =============================================================================
// Run Status
// =============================================================================

// Status is the lifecycle state of a workflow run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Terminal reports whether the status is final. Terminal statuses absorb:
// a run never leaves them.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed || s == StatusAborted
}

// =============================================================================
// Workflow Run
// =============================================================================

// WorkflowRun is the live state of one submitted request. Fields are
// guarded by mu; callers outside the engine see copies via Snapshot.
type WorkflowRun struct {
	mu sync.Mutex

	runID   string
	request WorkflowRequest
	branch  string

	status   Status
	stage    Stage
	history  []StageResult
	decision *consensus.Decision
	err      error

	startedAt time.Time
	endedAt   time.Time
}

// RunSnapshot is a point-in-time copy of a run's observable state.
type RunSnapshot struct {
	RunID     string              `json:"runId"`
	RequestID string              `json:"requestId"`
	Kind      Kind                `json:"kind"`
	Branch    string              `json:"branch"`
	Status    Status              `json:"status"`
	Stage     Stage               `json:"stage"`
	History   []StageResult       `json:"history,omitempty"`
	Decision  *consensus.Decision `json:"decision,omitempty"`
	Error     string              `json:"error,omitempty"`
	StartedAt time.Time           `json:"startedAt"`
	EndedAt   time.Time           `json:"endedAt,omitempty"`
}

func newRun(runID string, req WorkflowRequest) *WorkflowRun {
	return &WorkflowRun{
		runID:     runID,
		request:   req,
		branch:    req.BranchName(),
		status:    StatusRunning,
		stage:     StagePlanning,
		startedAt: time.Now().UTC(),
	}
}

// RunID returns the run's unique identifier.
func (r *WorkflowRun) RunID() string { return r.runID }

// Request returns the request this run was created for.
func (r *WorkflowRun) Request() WorkflowRequest { return r.request }

// Snapshot copies the run's current state.
func (r *WorkflowRun) Snapshot() RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := RunSnapshot{
		RunID:     r.runID,
		RequestID: r.request.ID,
		Kind:      r.request.Kind,
		Branch:    r.branch,
		Status:    r.status,
		Stage:     r.stage,
		History:   append([]StageResult(nil), r.history...),
		Decision:  r.decision,
		StartedAt: r.startedAt,
		EndedAt:   r.endedAt,
	}
	if r.err != nil {
		snap.Error = r.err.Error()
	}
	return snap
}

// setStage records the stage the run is currently executing.
func (r *WorkflowRun) setStage(s Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.status.Terminal() {
		r.stage = s
	}
}

// recordResult appends a stage attempt result.
func (r *WorkflowRun) recordResult(res StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, res)
}

// setDecision records the consensus decision reached in planning.
func (r *WorkflowRun) setDecision(d *consensus.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decision = d
}

// finish moves the run to a terminal status. Moving out of a terminal
// status, or to a non-terminal one, is a programming error.
func (r *WorkflowRun) finish(status Status, err error) error {
	if !status.Terminal() {
		return fmt.Errorf("finish requires a terminal status, got %q", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return fmt.Errorf("run %s already %s", r.runID, r.status)
	}
	r.status = status
	r.err = err
	r.endedAt = time.Now().UTC()
	return nil
}
