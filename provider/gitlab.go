package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/xanzy/go-gitlab"
)

// GitLab implements Interface for GitLab repositories.
type GitLab struct {
	client    *gitlab.Client
	projectID string // Can be numeric ID or "namespace/project"
}

// NewGitLab creates a GitLab provider.
// token is a personal access token.
// baseURL is the GitLab instance URL (empty for gitlab.com).
// projectID can be numeric ID or "namespace/project" path.
func NewGitLab(token, baseURL, projectID string) (*GitLab, error) {
	if token == "" {
		return nil, fmt.Errorf("GitLab token is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	var client *gitlab.Client
	var err error

	if baseURL != "" {
		client, err = gitlab.NewClient(token, gitlab.WithBaseURL(baseURL))
	} else {
		client, err = gitlab.NewClient(token)
	}

	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &GitLab{
		client:    client,
		projectID: projectID,
	}, nil
}

// CreateBranch creates a branch from base.
func (p *GitLab) CreateBranch(ctx context.Context, name, base string) error {
	_, resp, err := p.client.Branches.CreateBranch(p.projectID, &gitlab.CreateBranchOptions{
		Branch: gitlab.Ptr(name),
		Ref:    gitlab.Ptr(base),
	}, gitlab.WithContext(ctx))
	if err != nil {
		if glStatus(resp) == http.StatusBadRequest &&
			strings.Contains(err.Error(), "already exists") {
			return ErrBranchExists
		}
		if glStatus(resp) == http.StatusBadRequest &&
			strings.Contains(err.Error(), "invalid reference") {
			return fmt.Errorf("base %q: %w", base, ErrBranchNotFound)
		}
		return p.apiError("create branch", resp, err)
	}
	return nil
}

// BranchExists reports whether the branch exists.
func (p *GitLab) BranchExists(ctx context.Context, name string) (bool, error) {
	_, resp, err := p.client.Branches.GetBranch(p.projectID, name, gitlab.WithContext(ctx))
	if err != nil {
		if glStatus(resp) == http.StatusNotFound {
			return false, nil
		}
		return false, p.apiError("branch exists", resp, err)
	}
	return true, nil
}

// Commit writes the file changes to the branch as a single commit.
func (p *GitLab) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	if opts.Branch == "" || opts.Message == "" {
		return "", fmt.Errorf("branch and message are required")
	}
	if len(opts.Files) == 0 {
		return "", fmt.Errorf("at least one file change is required")
	}

	actions := make([]*gitlab.CommitActionOptions, 0, len(opts.Files))
	for _, f := range opts.Files {
		action := &gitlab.CommitActionOptions{
			FilePath: gitlab.Ptr(f.Path),
		}
		switch f.Operation {
		case "delete":
			action.Action = gitlab.Ptr(gitlab.FileDelete)
		case "modify":
			action.Action = gitlab.Ptr(gitlab.FileUpdate)
			action.Content = gitlab.Ptr(f.Content)
		default:
			action.Action = gitlab.Ptr(gitlab.FileCreate)
			action.Content = gitlab.Ptr(f.Content)
		}
		actions = append(actions, action)
	}

	name, email := splitAuthor(opts.Author)
	commit, resp, err := p.client.Commits.CreateCommit(p.projectID, &gitlab.CreateCommitOptions{
		Branch:        gitlab.Ptr(opts.Branch),
		CommitMessage: gitlab.Ptr(opts.Message),
		Actions:       actions,
		AuthorName:    gitlab.Ptr(name),
		AuthorEmail:   gitlab.Ptr(email),
	}, gitlab.WithContext(ctx))
	if err != nil {
		if glStatus(resp) == http.StatusBadRequest &&
			strings.Contains(err.Error(), "branch") {
			return "", fmt.Errorf("branch %q: %w", opts.Branch, ErrBranchNotFound)
		}
		return "", p.apiError("commit", resp, err)
	}

	return commit.ID, nil
}

// CommitExists reports whether the branch head carries the given message.
func (p *GitLab) CommitExists(ctx context.Context, branch, message string) (bool, error) {
	b, resp, err := p.client.Branches.GetBranch(p.projectID, branch, gitlab.WithContext(ctx))
	if err != nil {
		if glStatus(resp) == http.StatusNotFound {
			return false, nil
		}
		return false, p.apiError("commit exists", resp, err)
	}
	if b.Commit == nil {
		return false, nil
	}
	return strings.TrimSpace(b.Commit.Message) == strings.TrimSpace(message), nil
}

// OpenPR opens a merge request.
func (p *GitLab) OpenPR(ctx context.Context, opts PROptions) (*PullRequest, error) {
	targetBranch := opts.Base
	if targetBranch == "" {
		targetBranch = "main"
	}

	mrOpts := &gitlab.CreateMergeRequestOptions{
		Title:        gitlab.Ptr(opts.Title),
		Description:  gitlab.Ptr(opts.Body),
		SourceBranch: gitlab.Ptr(opts.Head),
		TargetBranch: gitlab.Ptr(targetBranch),
	}

	// GitLab uses the Draft: title prefix for draft MRs.
	if opts.Draft {
		mrOpts.Title = gitlab.Ptr("Draft: " + opts.Title)
	}

	if len(opts.Labels) > 0 {
		mrOpts.Labels = gitlab.Ptr(gitlab.LabelOptions(opts.Labels))
	}

	if len(opts.Reviewers) > 0 {
		reviewerIDs := p.usernamesToIDs(opts.Reviewers)
		if len(reviewerIDs) > 0 {
			mrOpts.ReviewerIDs = gitlab.Ptr(reviewerIDs)
		}
	}

	mr, resp, err := p.client.MergeRequests.CreateMergeRequest(p.projectID, mrOpts, gitlab.WithContext(ctx))
	if err != nil {
		if glStatus(resp) == http.StatusConflict {
			return nil, ErrPRExists
		}
		if glStatus(resp) == http.StatusBadRequest &&
			strings.Contains(err.Error(), "no commits") {
			return nil, ErrNoChanges
		}
		return nil, p.apiError("open pr", resp, err)
	}

	return prFromGitLab(mr), nil
}

// PRForBranch returns the open merge request whose source is the given branch.
func (p *GitLab) PRForBranch(ctx context.Context, head string) (*PullRequest, error) {
	mrs, resp, err := p.client.MergeRequests.ListProjectMergeRequests(p.projectID, &gitlab.ListProjectMergeRequestsOptions{
		ListOptions:  gitlab.ListOptions{PerPage: 20},
		State:        gitlab.Ptr("opened"),
		SourceBranch: gitlab.Ptr(head),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, p.apiError("pr for branch", resp, err)
	}
	if len(mrs) == 0 {
		return nil, ErrPRNotFound
	}

	mr, resp, err := p.client.MergeRequests.GetMergeRequest(p.projectID, mrs[0].IID, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, p.apiError("pr for branch", resp, err)
	}
	return prFromGitLab(mr), nil
}

// MergePR merges a merge request.
func (p *GitLab) MergePR(ctx context.Context, id int, opts MergeOptions) error {
	mergeOpts := &gitlab.AcceptMergeRequestOptions{}

	if opts.CommitMessage != "" {
		mergeOpts.MergeCommitMessage = gitlab.Ptr(opts.CommitMessage)
	}
	if opts.DeleteBranch {
		mergeOpts.ShouldRemoveSourceBranch = gitlab.Ptr(true)
	}

	// GitLab squash is a boolean on the MR rather than a merge method.
	if opts.Method == MergeMethodSquash {
		mergeOpts.Squash = gitlab.Ptr(true)
		if opts.CommitMessage != "" {
			mergeOpts.SquashCommitMessage = gitlab.Ptr(opts.CommitMessage)
		}
	}

	_, resp, err := p.client.MergeRequests.AcceptMergeRequest(p.projectID, id, mergeOpts, gitlab.WithContext(ctx))
	if err != nil {
		switch glStatus(resp) {
		case http.StatusNotFound:
			return ErrPRNotFound
		case http.StatusMethodNotAllowed:
			return ErrPRClosed
		case http.StatusConflict:
			return ErrMergeConflict
		}
		return p.apiError("merge pr", resp, err)
	}

	return nil
}

// CreateRelease creates a release for the tag.
func (p *GitLab) CreateRelease(ctx context.Context, opts ReleaseOptions) (*Release, error) {
	name := opts.Name
	if name == "" {
		name = opts.Tag
	}

	relOpts := &gitlab.CreateReleaseOptions{
		Name:        gitlab.Ptr(name),
		TagName:     gitlab.Ptr(opts.Tag),
		Description: gitlab.Ptr(opts.Changelog),
	}
	if opts.Ref != "" {
		relOpts.Ref = gitlab.Ptr(opts.Ref)
	}

	rel, resp, err := p.client.Releases.CreateRelease(p.projectID, relOpts, gitlab.WithContext(ctx))
	if err != nil {
		if glStatus(resp) == http.StatusConflict {
			return nil, ErrReleaseExists
		}
		return nil, p.apiError("create release", resp, err)
	}

	return &Release{
		Tag:       rel.TagName,
		Name:      rel.Name,
		URL:       rel.Links.Self,
		CreatedAt: derefTime(rel.CreatedAt),
	}, nil
}

// ReleaseExists reports whether a release with the tag exists.
func (p *GitLab) ReleaseExists(ctx context.Context, tag string) (bool, error) {
	_, resp, err := p.client.Releases.GetRelease(p.projectID, tag, gitlab.WithContext(ctx))
	if err != nil {
		if glStatus(resp) == http.StatusNotFound {
			return false, nil
		}
		return false, p.apiError("release exists", resp, err)
	}
	return true, nil
}

// Deploy records a deployment of ref to the environment.
func (p *GitLab) Deploy(ctx context.Context, environment, ref string) (*Deployment, error) {
	dep, resp, err := p.client.Deployments.CreateProjectDeployment(p.projectID, &gitlab.CreateProjectDeploymentOptions{
		Environment: gitlab.Ptr(environment),
		Ref:         gitlab.Ptr(ref),
		SHA:         gitlab.Ptr(ref),
		Status:      gitlab.Ptr(gitlab.DeploymentStatusRunning),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, p.apiError("deploy", resp, err)
	}

	return &Deployment{
		ID:          int64(dep.ID),
		Environment: dep.Environment.Name,
		Ref:         dep.Ref,
		CreatedAt:   derefTime(dep.CreatedAt),
	}, nil
}

// DeploymentExists reports whether a deployment of ref to the environment
// exists.
func (p *GitLab) DeploymentExists(ctx context.Context, environment, ref string) (bool, error) {
	deps, resp, err := p.client.Deployments.ListProjectDeployments(p.projectID, &gitlab.ListProjectDeploymentsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 20},
		Environment: gitlab.Ptr(environment),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return false, p.apiError("deployment exists", resp, err)
	}
	for _, dep := range deps {
		if dep.Ref == ref || dep.SHA == ref {
			return true, nil
		}
	}
	return false, nil
}

// usernamesToIDs resolves GitLab usernames to user IDs, skipping any that
// cannot be found.
func (p *GitLab) usernamesToIDs(usernames []string) []int {
	ids := make([]int, 0, len(usernames))
	for _, username := range usernames {
		users, _, err := p.client.Users.ListUsers(&gitlab.ListUsersOptions{
			Username: gitlab.Ptr(username),
		})
		if err != nil || len(users) == 0 {
			slog.Warn("failed to resolve GitLab username", "username", username, "error", err)
			continue
		}
		ids = append(ids, users[0].ID)
	}
	return ids
}

func (p *GitLab) apiError(op string, resp *gitlab.Response, err error) error {
	code := glStatus(resp)
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return &APIError{Provider: "gitlab", Op: op, StatusCode: code, Err: ErrUnauthorized}
	}
	return &APIError{Provider: "gitlab", Op: op, StatusCode: code, Err: err}
}

func glStatus(resp *gitlab.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// prFromGitLab converts a GitLab MR to our PullRequest type.
func prFromGitLab(mr *gitlab.MergeRequest) *PullRequest {
	result := &PullRequest{
		ID:    mr.IID,
		URL:   mr.WebURL,
		Title: strings.TrimPrefix(mr.Title, "Draft: "),
		Body:  mr.Description,
		Head:  mr.SourceBranch,
		Base:  mr.TargetBranch,
		Draft: mr.Draft,
	}

	switch mr.State {
	case "opened":
		result.State = PRStateOpen
	case "merged":
		result.State = PRStateMerged
	case "closed", "locked":
		result.State = PRStateClosed
	}

	if mr.CreatedAt != nil {
		result.CreatedAt = *mr.CreatedAt
	}

	return result
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
