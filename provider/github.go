package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHub implements Interface for GitHub repositories.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHub creates a GitHub provider.
// token is a personal access token or GitHub App installation token.
func NewGitHub(token, owner, repo string) (*GitHub, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)

	return &GitHub{
		client: github.NewClient(tc),
		owner:  owner,
		repo:   repo,
	}, nil
}

// CreateBranch creates a branch from base.
func (g *GitHub) CreateBranch(ctx context.Context, name, base string) error {
	baseRef, resp, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "refs/heads/"+base)
	if err != nil {
		if status(resp) == http.StatusNotFound {
			return fmt.Errorf("base %q: %w", base, ErrBranchNotFound)
		}
		return g.apiError("create branch", resp, err)
	}

	_, resp, err = g.client.Git.CreateRef(ctx, g.owner, g.repo, &github.Reference{
		Ref:    github.String("refs/heads/" + name),
		Object: &github.GitObject{SHA: baseRef.Object.SHA},
	})
	if err != nil {
		if status(resp) == http.StatusUnprocessableEntity &&
			strings.Contains(err.Error(), "already exists") {
			return ErrBranchExists
		}
		return g.apiError("create branch", resp, err)
	}
	return nil
}

// BranchExists reports whether the branch exists.
func (g *GitHub) BranchExists(ctx context.Context, name string) (bool, error) {
	_, resp, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "refs/heads/"+name)
	if err != nil {
		if status(resp) == http.StatusNotFound {
			return false, nil
		}
		return false, g.apiError("branch exists", resp, err)
	}
	return true, nil
}

// Commit writes the file changes to the branch as a single commit using the
// git data API: blobs into a tree, tree into a commit, branch ref onto the
// new commit.
func (g *GitHub) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	if opts.Branch == "" || opts.Message == "" {
		return "", fmt.Errorf("branch and message are required")
	}
	if len(opts.Files) == 0 {
		return "", fmt.Errorf("at least one file change is required")
	}

	ref, resp, err := g.client.Git.GetRef(ctx, g.owner, g.repo, "refs/heads/"+opts.Branch)
	if err != nil {
		if status(resp) == http.StatusNotFound {
			return "", fmt.Errorf("branch %q: %w", opts.Branch, ErrBranchNotFound)
		}
		return "", g.apiError("commit", resp, err)
	}
	parentSHA := ref.Object.GetSHA()

	entries := make([]*github.TreeEntry, 0, len(opts.Files))
	for _, f := range opts.Files {
		entry := &github.TreeEntry{
			Path: github.String(f.Path),
			Mode: github.String("100644"),
			Type: github.String("blob"),
		}
		if f.Operation == "delete" {
			// Nil SHA with no content deletes the path from the tree.
			entries = append(entries, entry)
			continue
		}
		entry.Content = github.String(f.Content)
		entries = append(entries, entry)
	}

	tree, resp, err := g.client.Git.CreateTree(ctx, g.owner, g.repo, parentSHA, entries)
	if err != nil {
		return "", g.apiError("commit", resp, err)
	}

	name, email := splitAuthor(opts.Author)
	now := time.Now()
	commit, resp, err := g.client.Git.CreateCommit(ctx, g.owner, g.repo, &github.Commit{
		Message: github.String(opts.Message),
		Tree:    tree,
		Parents: []*github.Commit{{SHA: github.String(parentSHA)}},
		Author: &github.CommitAuthor{
			Name:  github.String(name),
			Email: github.String(email),
			Date:  &github.Timestamp{Time: now},
		},
	}, nil)
	if err != nil {
		return "", g.apiError("commit", resp, err)
	}

	ref.Object.SHA = commit.SHA
	_, resp, err = g.client.Git.UpdateRef(ctx, g.owner, g.repo, ref, false)
	if err != nil {
		return "", g.apiError("commit", resp, err)
	}

	return commit.GetSHA(), nil
}

// CommitExists reports whether the branch head carries the given message.
func (g *GitHub) CommitExists(ctx context.Context, branch, message string) (bool, error) {
	b, resp, err := g.client.Repositories.GetBranch(ctx, g.owner, g.repo, branch, 1)
	if err != nil {
		if status(resp) == http.StatusNotFound {
			return false, nil
		}
		return false, g.apiError("commit exists", resp, err)
	}
	return b.GetCommit().GetCommit().GetMessage() == message, nil
}

// OpenPR opens a pull request.
func (g *GitHub) OpenPR(ctx context.Context, opts PROptions) (*PullRequest, error) {
	base := opts.Base
	if base == "" {
		base = "main"
	}

	pr, resp, err := g.client.PullRequests.Create(ctx, g.owner, g.repo, &github.NewPullRequest{
		Title: github.String(opts.Title),
		Body:  github.String(opts.Body),
		Base:  github.String(base),
		Head:  github.String(opts.Head),
		Draft: github.Bool(opts.Draft),
	})
	if err != nil {
		if status(resp) == http.StatusUnprocessableEntity {
			if strings.Contains(err.Error(), "A pull request already exists") {
				return nil, ErrPRExists
			}
			if strings.Contains(err.Error(), "No commits between") {
				return nil, ErrNoChanges
			}
		}
		return nil, g.apiError("open pr", resp, err)
	}

	if len(opts.Labels) > 0 {
		if _, _, err := g.client.Issues.AddLabelsToIssue(ctx, g.owner, g.repo, pr.GetNumber(), opts.Labels); err != nil {
			// PR was created; labels are best-effort.
			slog.Warn("failed to add labels to PR", "pr", pr.GetNumber(), "error", err)
		}
	}
	if len(opts.Reviewers) > 0 {
		if _, _, err := g.client.PullRequests.RequestReviewers(ctx, g.owner, g.repo, pr.GetNumber(),
			github.ReviewersRequest{Reviewers: opts.Reviewers}); err != nil {
			slog.Warn("failed to request reviewers", "pr", pr.GetNumber(), "error", err)
		}
	}

	return prFromGitHub(pr), nil
}

// PRForBranch returns the open pull request whose head is the given branch.
func (g *GitHub) PRForBranch(ctx context.Context, head string) (*PullRequest, error) {
	prs, resp, err := g.client.PullRequests.List(ctx, g.owner, g.repo, &github.PullRequestListOptions{
		State: "open",
		Head:  g.owner + ":" + head,
	})
	if err != nil {
		return nil, g.apiError("pr for branch", resp, err)
	}
	if len(prs) == 0 {
		return nil, ErrPRNotFound
	}
	return prFromGitHub(prs[0]), nil
}

// MergePR merges a pull request.
func (g *GitHub) MergePR(ctx context.Context, id int, opts MergeOptions) error {
	mergeOpts := &github.PullRequestOptions{CommitTitle: opts.CommitTitle}

	switch opts.Method {
	case MergeMethodSquash:
		mergeOpts.MergeMethod = "squash"
	case MergeMethodRebase:
		mergeOpts.MergeMethod = "rebase"
	default:
		mergeOpts.MergeMethod = "merge"
	}

	_, resp, err := g.client.PullRequests.Merge(ctx, g.owner, g.repo, id, opts.CommitMessage, mergeOpts)
	if err != nil {
		switch status(resp) {
		case http.StatusNotFound:
			return ErrPRNotFound
		case http.StatusMethodNotAllowed:
			return ErrPRClosed
		case http.StatusConflict:
			return ErrMergeConflict
		}
		return g.apiError("merge pr", resp, err)
	}

	if opts.DeleteBranch {
		pr, _, err := g.client.PullRequests.Get(ctx, g.owner, g.repo, id)
		if err == nil && pr.Head != nil && pr.Head.Ref != nil {
			if _, err := g.client.Git.DeleteRef(ctx, g.owner, g.repo, "heads/"+*pr.Head.Ref); err != nil {
				slog.Warn("failed to delete branch after merge", "pr", id, "error", err)
			}
		}
	}

	return nil
}

// CreateRelease creates a release for the tag.
func (g *GitHub) CreateRelease(ctx context.Context, opts ReleaseOptions) (*Release, error) {
	name := opts.Name
	if name == "" {
		name = opts.Tag
	}

	rel := &github.RepositoryRelease{
		TagName: github.String(opts.Tag),
		Name:    github.String(name),
		Body:    github.String(opts.Changelog),
	}
	if opts.Ref != "" {
		rel.TargetCommitish = github.String(opts.Ref)
	}

	created, resp, err := g.client.Repositories.CreateRelease(ctx, g.owner, g.repo, rel)
	if err != nil {
		if status(resp) == http.StatusUnprocessableEntity &&
			strings.Contains(err.Error(), "already_exists") {
			return nil, ErrReleaseExists
		}
		return nil, g.apiError("create release", resp, err)
	}

	return &Release{
		Tag:       created.GetTagName(),
		Name:      created.GetName(),
		URL:       created.GetHTMLURL(),
		CreatedAt: created.GetCreatedAt().Time,
	}, nil
}

// ReleaseExists reports whether a release with the tag exists.
func (g *GitHub) ReleaseExists(ctx context.Context, tag string) (bool, error) {
	_, resp, err := g.client.Repositories.GetReleaseByTag(ctx, g.owner, g.repo, tag)
	if err != nil {
		if status(resp) == http.StatusNotFound {
			return false, nil
		}
		return false, g.apiError("release exists", resp, err)
	}
	return true, nil
}

// Deploy creates a deployment of ref to the environment.
func (g *GitHub) Deploy(ctx context.Context, environment, ref string) (*Deployment, error) {
	dep, resp, err := g.client.Repositories.CreateDeployment(ctx, g.owner, g.repo, &github.DeploymentRequest{
		Ref:              github.String(ref),
		Environment:      github.String(environment),
		AutoMerge:        github.Bool(false),
		RequiredContexts: &[]string{},
	})
	if err != nil {
		return nil, g.apiError("deploy", resp, err)
	}

	return &Deployment{
		ID:          dep.GetID(),
		Environment: dep.GetEnvironment(),
		Ref:         dep.GetRef(),
		CreatedAt:   dep.GetCreatedAt().Time,
	}, nil
}

// DeploymentExists reports whether a deployment of ref to the environment
// exists.
func (g *GitHub) DeploymentExists(ctx context.Context, environment, ref string) (bool, error) {
	deps, resp, err := g.client.Repositories.ListDeployments(ctx, g.owner, g.repo, &github.DeploymentsListOptions{
		Ref:         ref,
		Environment: environment,
	})
	if err != nil {
		return false, g.apiError("deployment exists", resp, err)
	}
	return len(deps) > 0, nil
}

// apiError translates a go-github failure into the package error shapes.
func (g *GitHub) apiError(op string, resp *github.Response, err error) error {
	code := status(resp)
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return &APIError{Provider: "github", Op: op, StatusCode: code, Err: ErrUnauthorized}
	}
	return &APIError{Provider: "github", Op: op, StatusCode: code, Err: err}
}

func status(resp *github.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

// prFromGitHub converts a GitHub PR to our PullRequest type.
func prFromGitHub(pr *github.PullRequest) *PullRequest {
	result := &PullRequest{
		ID:    pr.GetNumber(),
		URL:   pr.GetHTMLURL(),
		Title: pr.GetTitle(),
		Body:  pr.GetBody(),
		Draft: pr.GetDraft(),
	}

	switch pr.GetState() {
	case "open":
		result.State = PRStateOpen
	case "closed":
		if pr.GetMerged() {
			result.State = PRStateMerged
		} else {
			result.State = PRStateClosed
		}
	}

	if pr.Head != nil {
		result.Head = pr.Head.GetRef()
	}
	if pr.Base != nil {
		result.Base = pr.Base.GetRef()
	}
	if pr.CreatedAt != nil {
		result.CreatedAt = pr.CreatedAt.Time
	}

	return result
}

func splitAuthor(author string) (name, email string) {
	name = author
	if i := strings.Index(author, "<"); i >= 0 {
		name = strings.TrimSpace(author[:i])
		email = strings.Trim(strings.TrimSpace(author[i:]), "<>")
	}
	if name == "" {
		name = "quorumflow"
	}
	if email == "" {
		email = "quorumflow@localhost"
	}
	return name, email
}
