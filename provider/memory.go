package provider

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-memory Interface implementation. It keeps full branch,
// commit, PR, release, and deployment state so tests and examples can
// exercise the provider contract, including existence probes, without a
// remote.
type Memory struct {
	mu          sync.Mutex
	branches    map[string]string   // branch -> head SHA
	messages    map[string][]string // branch -> commit messages
	prs         map[int]*PullRequest
	releases    map[string]*Release
	deployments []*Deployment
	nextPR      int
	nextDeploy  int64
	commits     int
}

// NewMemory creates an in-memory provider with a main branch.
func NewMemory() *Memory {
	return &Memory{
		branches:   map[string]string{"main": "sha-0"},
		messages:   map[string][]string{"main": nil},
		prs:        make(map[int]*PullRequest),
		releases:   make(map[string]*Release),
		nextPR:     1,
		nextDeploy: 1,
	}
}

// CreateBranch implements Interface.
func (m *Memory) CreateBranch(ctx context.Context, name, base string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	head, ok := m.branches[base]
	if !ok {
		return fmt.Errorf("base %q: %w", base, ErrBranchNotFound)
	}
	if _, exists := m.branches[name]; exists {
		return ErrBranchExists
	}
	m.branches[name] = head
	m.messages[name] = append([]string(nil), m.messages[base]...)
	return nil
}

// BranchExists implements Interface.
func (m *Memory) BranchExists(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.branches[name]
	return ok, nil
}

// Commit implements Interface.
func (m *Memory) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.branches[opts.Branch]; !ok {
		return "", fmt.Errorf("branch %q: %w", opts.Branch, ErrBranchNotFound)
	}
	if len(opts.Files) == 0 {
		return "", fmt.Errorf("at least one file change is required")
	}

	m.commits++
	sha := fmt.Sprintf("sha-%d", m.commits)
	m.branches[opts.Branch] = sha
	m.messages[opts.Branch] = append(m.messages[opts.Branch], opts.Message)
	return sha, nil
}

// CommitExists implements Interface.
func (m *Memory) CommitExists(ctx context.Context, branch, message string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages[branch] {
		if msg == message {
			return true, nil
		}
	}
	return false, nil
}

// OpenPR implements Interface.
func (m *Memory) OpenPR(ctx context.Context, opts PROptions) (*PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pr := range m.prs {
		if pr.Head == opts.Head && pr.State == PRStateOpen {
			return nil, ErrPRExists
		}
	}

	base := opts.Base
	if base == "" {
		base = "main"
	}

	pr := &PullRequest{
		ID:        m.nextPR,
		URL:       fmt.Sprintf("https://example.com/pr/%d", m.nextPR),
		Title:     opts.Title,
		Body:      opts.Body,
		Head:      opts.Head,
		Base:      base,
		State:     PRStateOpen,
		Draft:     opts.Draft,
		CreatedAt: time.Now(),
	}
	m.nextPR++
	m.prs[pr.ID] = pr

	out := *pr
	return &out, nil
}

// PRForBranch implements Interface.
func (m *Memory) PRForBranch(ctx context.Context, head string) (*PullRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, pr := range m.prs {
		if pr.Head == head && pr.State == PRStateOpen {
			out := *pr
			return &out, nil
		}
	}
	return nil, ErrPRNotFound
}

// MergePR implements Interface.
func (m *Memory) MergePR(ctx context.Context, id int, opts MergeOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pr, ok := m.prs[id]
	if !ok {
		return ErrPRNotFound
	}
	if pr.State != PRStateOpen {
		return ErrPRClosed
	}

	pr.State = PRStateMerged
	m.messages[pr.Base] = append(m.messages[pr.Base], m.messages[pr.Head]...)
	if opts.DeleteBranch {
		delete(m.branches, pr.Head)
		delete(m.messages, pr.Head)
	}
	return nil
}

// CreateRelease implements Interface.
func (m *Memory) CreateRelease(ctx context.Context, opts ReleaseOptions) (*Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.releases[opts.Tag]; ok {
		return nil, ErrReleaseExists
	}

	name := opts.Name
	if name == "" {
		name = opts.Tag
	}

	rel := &Release{
		Tag:       opts.Tag,
		Name:      name,
		URL:       "https://example.com/releases/" + opts.Tag,
		CreatedAt: time.Now(),
	}
	m.releases[opts.Tag] = rel

	out := *rel
	return &out, nil
}

// ReleaseExists implements Interface.
func (m *Memory) ReleaseExists(ctx context.Context, tag string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.releases[tag]
	return ok, nil
}

// Deploy implements Interface.
func (m *Memory) Deploy(ctx context.Context, environment, ref string) (*Deployment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dep := &Deployment{
		ID:          m.nextDeploy,
		Environment: environment,
		Ref:         ref,
		CreatedAt:   time.Now(),
	}
	m.nextDeploy++
	m.deployments = append(m.deployments, dep)

	out := *dep
	return &out, nil
}

// DeploymentExists implements Interface.
func (m *Memory) DeploymentExists(ctx context.Context, environment, ref string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dep := range m.deployments {
		if dep.Environment == environment && dep.Ref == ref {
			return true, nil
		}
	}
	return false, nil
}
