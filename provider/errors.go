package provider

import "errors"

// Provider errors. Implementations translate provider-specific failures into
// these before returning; nothing above this package sees an SDK error shape.
var (
	// ErrBranchExists indicates the branch already exists.
	ErrBranchExists = errors.New("branch already exists")

	// ErrBranchNotFound indicates the branch does not exist.
	ErrBranchNotFound = errors.New("branch not found")

	// ErrPRExists indicates a PR already exists for the branch.
	ErrPRExists = errors.New("pull request already exists for this branch")

	// ErrPRNotFound indicates the PR does not exist.
	ErrPRNotFound = errors.New("pull request not found")

	// ErrPRClosed indicates the PR is closed.
	ErrPRClosed = errors.New("pull request is closed")

	// ErrMergeConflict indicates a merge conflict occurred.
	ErrMergeConflict = errors.New("merge conflict")

	// ErrReleaseExists indicates a release with the tag already exists.
	ErrReleaseExists = errors.New("release already exists for this tag")

	// ErrNoChanges indicates there are no changes between branches.
	ErrNoChanges = errors.New("no changes between branches")

	// ErrUnauthorized indicates the credentials were rejected.
	ErrUnauthorized = errors.New("provider rejected credentials")
)

// APIError wraps a provider API failure with context.
type APIError struct {
	Provider   string // "github" or "gitlab"
	Op         string // Operation that failed (e.g., "commit", "deploy")
	StatusCode int    // HTTP status, 0 if the call never completed
	Err        error  // Underlying error
}

func (e *APIError) Error() string {
	return e.Provider + " " + e.Op + ": " + e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Transient reports whether the failure is worth retrying: rate limits,
// server errors, or transport errors that never produced a status.
func (e *APIError) Transient() bool {
	return e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500
}
