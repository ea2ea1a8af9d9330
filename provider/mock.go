package provider

import "context"

// Mock is a mock implementation of Interface for testing.
type Mock struct {
	CreateBranchFunc     func(ctx context.Context, name, base string) error
	BranchExistsFunc     func(ctx context.Context, name string) (bool, error)
	CommitFunc           func(ctx context.Context, opts CommitOptions) (string, error)
	CommitExistsFunc     func(ctx context.Context, branch, message string) (bool, error)
	OpenPRFunc           func(ctx context.Context, opts PROptions) (*PullRequest, error)
	PRForBranchFunc      func(ctx context.Context, head string) (*PullRequest, error)
	MergePRFunc          func(ctx context.Context, id int, opts MergeOptions) error
	CreateReleaseFunc    func(ctx context.Context, opts ReleaseOptions) (*Release, error)
	ReleaseExistsFunc    func(ctx context.Context, tag string) (bool, error)
	DeployFunc           func(ctx context.Context, environment, ref string) (*Deployment, error)
	DeploymentExistsFunc func(ctx context.Context, environment, ref string) (bool, error)
}

// CreateBranch implements Interface.
func (m *Mock) CreateBranch(ctx context.Context, name, base string) error {
	if m.CreateBranchFunc != nil {
		return m.CreateBranchFunc(ctx, name, base)
	}
	return nil
}

// BranchExists implements Interface.
func (m *Mock) BranchExists(ctx context.Context, name string) (bool, error) {
	if m.BranchExistsFunc != nil {
		return m.BranchExistsFunc(ctx, name)
	}
	return false, nil
}

// Commit implements Interface.
func (m *Mock) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx, opts)
	}
	return "deadbeef", nil
}

// CommitExists implements Interface.
func (m *Mock) CommitExists(ctx context.Context, branch, message string) (bool, error) {
	if m.CommitExistsFunc != nil {
		return m.CommitExistsFunc(ctx, branch, message)
	}
	return false, nil
}

// OpenPR implements Interface.
func (m *Mock) OpenPR(ctx context.Context, opts PROptions) (*PullRequest, error) {
	if m.OpenPRFunc != nil {
		return m.OpenPRFunc(ctx, opts)
	}
	return &PullRequest{ID: 1, URL: "https://example.com/pr/1", State: PRStateOpen}, nil
}

// PRForBranch implements Interface.
func (m *Mock) PRForBranch(ctx context.Context, head string) (*PullRequest, error) {
	if m.PRForBranchFunc != nil {
		return m.PRForBranchFunc(ctx, head)
	}
	return nil, ErrPRNotFound
}

// MergePR implements Interface.
func (m *Mock) MergePR(ctx context.Context, id int, opts MergeOptions) error {
	if m.MergePRFunc != nil {
		return m.MergePRFunc(ctx, id, opts)
	}
	return nil
}

// CreateRelease implements Interface.
func (m *Mock) CreateRelease(ctx context.Context, opts ReleaseOptions) (*Release, error) {
	if m.CreateReleaseFunc != nil {
		return m.CreateReleaseFunc(ctx, opts)
	}
	return &Release{Tag: opts.Tag, Name: opts.Tag}, nil
}

// ReleaseExists implements Interface.
func (m *Mock) ReleaseExists(ctx context.Context, tag string) (bool, error) {
	if m.ReleaseExistsFunc != nil {
		return m.ReleaseExistsFunc(ctx, tag)
	}
	return false, nil
}

// Deploy implements Interface.
func (m *Mock) Deploy(ctx context.Context, environment, ref string) (*Deployment, error) {
	if m.DeployFunc != nil {
		return m.DeployFunc(ctx, environment, ref)
	}
	return &Deployment{ID: 1, Environment: environment, Ref: ref}, nil
}

// DeploymentExists implements Interface.
func (m *Mock) DeploymentExists(ctx context.Context, environment, ref string) (bool, error) {
	if m.DeploymentExistsFunc != nil {
		return m.DeploymentExistsFunc(ctx, environment, ref)
	}
	return false, nil
}
