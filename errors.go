package quorumflow

import (
	"errors"
	"fmt"

	"github.com/randalmurphal/quorumflow/consensus"
	"github.com/randalmurphal/quorumflow/gateway"
)

// Error taxonomy. The sentinels defined by the gateway and consensus
// packages are re-exported here so callers can match every engine error
// with errors.Is against this package alone.
var (
	// ErrTransientSource indicates a single AI source failed in a way
	// that may succeed on retry. It never fails a whole collection round.
	ErrTransientSource = gateway.ErrTransientSource

	// ErrNoProposals indicates every source in a collection round failed
	// or returned nothing usable. Not retryable within a stage attempt.
	ErrNoProposals = consensus.ErrNoProposals

	// ErrBranchConflict indicates the run's working branch is already
	// claimed. The run fails fast without retrying.
	ErrBranchConflict = gateway.ErrBranchConflict

	// ErrFatalProvider indicates the source-control provider rejected an
	// operation in a way retries cannot fix.
	ErrFatalProvider = gateway.ErrFatalProvider

	// ErrRecoveryAmbiguous indicates recovery could not determine whether
	// an interrupted stage's side effect happened.
	ErrRecoveryAmbiguous = gateway.ErrRecoveryAmbiguous
)

// Engine errors
var (
	// ErrRunNotFound indicates no run matches the given request ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunActive indicates a live run already exists for the request.
	ErrRunActive = errors.New("run already active for request")

	// ErrAborted indicates the run was stopped by an abort signal at a
	// stage boundary.
	ErrAborted = errors.New("run aborted")

	// ErrEngineClosed indicates the engine is shutting down and no longer
	// accepts requests.
	ErrEngineClosed = errors.New("engine closed")
)

// BranchConflictError reports which live run holds the claimed branch.
type BranchConflictError struct {
	Branch        string
	HeldByRunID   string
	RequestedByID string
}

func (e *BranchConflictError) Error() string {
	if e.HeldByRunID == "" {
		return fmt.Sprintf("branch %q already claimed", e.Branch)
	}
	return fmt.Sprintf("branch %q already claimed by run %s", e.Branch, e.HeldByRunID)
}

func (e *BranchConflictError) Unwrap() error { return ErrBranchConflict }

// RecoveryError reports why a recovered run could not be resumed.
type RecoveryError struct {
	RunID string
	Stage Stage
	Probe string
	Err   error
}

func (e *RecoveryError) Error() string {
	return fmt.Sprintf("run %s: recovery at %s ambiguous (%s): %v", e.RunID, e.Stage, e.Probe, e.Err)
}

func (e *RecoveryError) Unwrap() error { return ErrRecoveryAmbiguous }

// isRetryable classifies stage errors for the retry loop. Transient source
// failures and retryable provider failures qualify; branch conflicts,
// empty proposal rounds, fatal provider errors, and aborts do not.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrBranchConflict),
		errors.Is(err, ErrNoProposals),
		errors.Is(err, ErrFatalProvider),
		errors.Is(err, ErrAborted):
		return false
	case errors.Is(err, ErrTransientSource):
		return true
	}
	return false
}
