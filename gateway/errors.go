package gateway

import "errors"

// Gateway errors. The engine branches on these; everything else coming out
// of the gateway is treated as fatal for the current stage attempt.
var (
	// ErrTransientSource indicates a source failed in a way that may
	// succeed on retry (timeout, rate limit, 5xx).
	ErrTransientSource = errors.New("transient source failure")

	// ErrBranchConflict indicates the workflow branch already exists and
	// is owned by another run.
	ErrBranchConflict = errors.New("branch already claimed")

	// ErrFatalProvider indicates the source-control provider rejected the
	// operation in a way retries cannot fix (auth, validation).
	ErrFatalProvider = errors.New("fatal provider failure")

	// ErrRecoveryAmbiguous indicates restart recovery could not determine
	// whether an interrupted side effect completed.
	ErrRecoveryAmbiguous = errors.New("recovery state ambiguous")
)
