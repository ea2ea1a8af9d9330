package provider

import (
	"context"
	"time"
)

// Interface is the contract for source-control providers. Each mutating
// primitive is idempotent or paired with a probe that reports whether the
// side effect already occurred; the recovery path depends on those probes.
type Interface interface {
	// CreateBranch creates a branch from base. Returns ErrBranchExists if
	// the branch already exists.
	CreateBranch(ctx context.Context, name, base string) error

	// BranchExists reports whether the branch exists.
	BranchExists(ctx context.Context, name string) (bool, error)

	// Commit writes the given file changes to the branch as one commit and
	// returns its SHA.
	Commit(ctx context.Context, opts CommitOptions) (string, error)

	// CommitExists reports whether a commit with the given message is
	// already the branch head.
	CommitExists(ctx context.Context, branch, message string) (bool, error)

	// OpenPR opens a pull request and returns it.
	OpenPR(ctx context.Context, opts PROptions) (*PullRequest, error)

	// PRForBranch returns the open pull request for a head branch, or
	// ErrPRNotFound.
	PRForBranch(ctx context.Context, head string) (*PullRequest, error)

	// MergePR merges a pull request.
	MergePR(ctx context.Context, id int, opts MergeOptions) error

	// CreateRelease creates a release for the given tag.
	CreateRelease(ctx context.Context, opts ReleaseOptions) (*Release, error)

	// ReleaseExists reports whether a release with the tag exists.
	ReleaseExists(ctx context.Context, tag string) (bool, error)

	// Deploy creates a deployment of ref to the environment and returns
	// its identifier.
	Deploy(ctx context.Context, environment, ref string) (*Deployment, error)

	// DeploymentExists reports whether a deployment of ref to the
	// environment exists.
	DeploymentExists(ctx context.Context, environment, ref string) (bool, error)
}

// FileChange represents one file in a commit.
type FileChange struct {
	Path      string `json:"path"`
	Operation string `json:"operation"` // "create", "modify", "delete"
	Content   string `json:"content,omitempty"`
}

// CommitOptions configures a commit.
type CommitOptions struct {
	Branch  string       // Target branch (required)
	Message string       // Commit message (required)
	Files   []FileChange // Files to write (at least one)
	Author  string       // Author identity, "Name <email>" form
}

// PROptions configures pull request creation.
type PROptions struct {
	Title     string   // PR title (required)
	Body      string   // PR description (markdown)
	Base      string   // Target branch (default: "main")
	Head      string   // Source branch (required)
	Labels    []string // Labels to apply
	Reviewers []string // Reviewer usernames
	Draft     bool     // Create as draft
}

// MergeOptions configures pull request merging.
type MergeOptions struct {
	Method        MergeMethod // Merge method (merge, squash, rebase)
	CommitTitle   string      // Custom commit title (for squash/merge)
	CommitMessage string      // Custom commit message (for squash/merge)
	DeleteBranch  bool        // Delete source branch after merge
}

// MergeMethod specifies how to merge a pull request.
type MergeMethod string

const (
	MergeMethodMerge  MergeMethod = "merge"
	MergeMethodSquash MergeMethod = "squash"
	MergeMethodRebase MergeMethod = "rebase"
)

// ReleaseOptions configures release creation.
type ReleaseOptions struct {
	Tag       string // Tag name, e.g. "v1.4.0" (required)
	Name      string // Release title (defaults to Tag)
	Changelog string // Release notes (markdown)
	Ref       string // Commitish the tag points at (default branch if empty)
}

// PRState represents the state of a pull request.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateClosed PRState = "closed"
	PRStateMerged PRState = "merged"
)

// PullRequest represents a created pull request.
type PullRequest struct {
	ID        int       // PR number
	URL       string    // Web URL
	Title     string    // PR title
	Body      string    // PR description
	State     PRState   // Current state
	Draft     bool      // Whether it's a draft
	Head      string    // Source branch
	Base      string    // Target branch
	CreatedAt time.Time // Creation time
}

// Release represents a created release.
type Release struct {
	Tag       string    // Tag name
	Name      string    // Release title
	URL       string    // Web URL
	CreatedAt time.Time // Creation time
}

// Deployment represents a created deployment.
type Deployment struct {
	ID          int64     // Provider deployment ID
	Environment string    // Target environment
	Ref         string    // Deployed ref
	CreatedAt   time.Time // Creation time
}
