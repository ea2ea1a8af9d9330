package provider

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryBranchLifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewMemory()

	if err := p.CreateBranch(ctx, "feature/login", "main"); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}

	exists, err := p.BranchExists(ctx, "feature/login")
	if err != nil {
		t.Fatalf("BranchExists failed: %v", err)
	}
	if !exists {
		t.Error("expected branch to exist after creation")
	}

	if err := p.CreateBranch(ctx, "feature/login", "main"); !errors.Is(err, ErrBranchExists) {
		t.Errorf("duplicate CreateBranch error = %v, want ErrBranchExists", err)
	}

	if err := p.CreateBranch(ctx, "feature/other", "nonexistent"); !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("CreateBranch from missing base error = %v, want ErrBranchNotFound", err)
	}
}

func TestMemoryCommitAndProbe(t *testing.T) {
	ctx := context.Background()
	p := NewMemory()

	if err := p.CreateBranch(ctx, "feature/x", "main"); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}

	sha, err := p.Commit(ctx, CommitOptions{
		Branch:  "feature/x",
		Message: "add login handler",
		Files:   []FileChange{{Path: "login.go", Operation: "create", Content: "package app"}},
	})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if sha == "" {
		t.Error("expected non-empty commit SHA")
	}

	found, err := p.CommitExists(ctx, "feature/x", "add login handler")
	if err != nil {
		t.Fatalf("CommitExists failed: %v", err)
	}
	if !found {
		t.Error("expected committed message to be found")
	}

	found, err = p.CommitExists(ctx, "feature/x", "some other message")
	if err != nil {
		t.Fatalf("CommitExists failed: %v", err)
	}
	if found {
		t.Error("did not expect unknown message to be found")
	}

	if _, err := p.Commit(ctx, CommitOptions{Branch: "gone", Message: "x", Files: []FileChange{{Path: "a"}}}); !errors.Is(err, ErrBranchNotFound) {
		t.Errorf("Commit to missing branch error = %v, want ErrBranchNotFound", err)
	}
}

func TestMemoryPRLifecycle(t *testing.T) {
	ctx := context.Background()
	p := NewMemory()

	if err := p.CreateBranch(ctx, "feature/y", "main"); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}

	pr, err := p.OpenPR(ctx, PROptions{Title: "Add y", Head: "feature/y"})
	if err != nil {
		t.Fatalf("OpenPR failed: %v", err)
	}
	if pr.Base != "main" {
		t.Errorf("default base = %q, want main", pr.Base)
	}
	if pr.State != PRStateOpen {
		t.Errorf("new PR state = %q, want open", pr.State)
	}

	if _, err := p.OpenPR(ctx, PROptions{Title: "Again", Head: "feature/y"}); !errors.Is(err, ErrPRExists) {
		t.Errorf("duplicate OpenPR error = %v, want ErrPRExists", err)
	}

	got, err := p.PRForBranch(ctx, "feature/y")
	if err != nil {
		t.Fatalf("PRForBranch failed: %v", err)
	}
	if got.ID != pr.ID {
		t.Errorf("PRForBranch ID = %d, want %d", got.ID, pr.ID)
	}

	if err := p.MergePR(ctx, pr.ID, MergeOptions{Method: MergeMethodSquash, DeleteBranch: true}); err != nil {
		t.Fatalf("MergePR failed: %v", err)
	}

	if _, err := p.PRForBranch(ctx, "feature/y"); !errors.Is(err, ErrPRNotFound) {
		t.Errorf("PRForBranch after merge error = %v, want ErrPRNotFound", err)
	}

	if err := p.MergePR(ctx, pr.ID, MergeOptions{}); !errors.Is(err, ErrPRClosed) {
		t.Errorf("re-merge error = %v, want ErrPRClosed", err)
	}

	exists, _ := p.BranchExists(ctx, "feature/y")
	if exists {
		t.Error("expected head branch deleted after merge")
	}
}

func TestMemoryReleaseAndDeployment(t *testing.T) {
	ctx := context.Background()
	p := NewMemory()

	rel, err := p.CreateRelease(ctx, ReleaseOptions{Tag: "v1.2.0", Changelog: "notes"})
	if err != nil {
		t.Fatalf("CreateRelease failed: %v", err)
	}
	if rel.Name != "v1.2.0" {
		t.Errorf("release name defaulted to %q, want tag", rel.Name)
	}

	if _, err := p.CreateRelease(ctx, ReleaseOptions{Tag: "v1.2.0"}); !errors.Is(err, ErrReleaseExists) {
		t.Errorf("duplicate CreateRelease error = %v, want ErrReleaseExists", err)
	}

	exists, _ := p.ReleaseExists(ctx, "v1.2.0")
	if !exists {
		t.Error("expected release to exist")
	}

	if _, err := p.Deploy(ctx, "production", "sha-1"); err != nil {
		t.Fatalf("Deploy failed: %v", err)
	}

	got, _ := p.DeploymentExists(ctx, "production", "sha-1")
	if !got {
		t.Error("expected deployment to exist")
	}
	got, _ = p.DeploymentExists(ctx, "staging", "sha-1")
	if got {
		t.Error("did not expect deployment in staging")
	}
}

func TestAPIErrorTransient(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"network failure", 0, true},
		{"rate limited", 429, true},
		{"server error", 500, true},
		{"bad gateway", 502, true},
		{"unauthorized", 401, false},
		{"not found", 404, false},
		{"validation", 422, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &APIError{Provider: "github", Op: "commit", StatusCode: tt.status, Err: errors.New("boom")}
			if got := err.Transient(); got != tt.transient {
				t.Errorf("Transient() = %v, want %v", got, tt.transient)
			}
		})
	}
}

func TestAPIErrorUnwrap(t *testing.T) {
	err := &APIError{Provider: "github", Op: "merge pr", StatusCode: 403, Err: ErrUnauthorized}
	if !errors.Is(err, ErrUnauthorized) {
		t.Error("expected APIError to unwrap to ErrUnauthorized")
	}
}

func TestSplitAuthor(t *testing.T) {
	tests := []struct {
		author    string
		wantName  string
		wantEmail string
	}{
		{"Jo Dev <jo@example.com>", "Jo Dev", "jo@example.com"},
		{"solo-name", "solo-name", "quorumflow@localhost"},
		{"", "quorumflow", "quorumflow@localhost"},
	}

	for _, tt := range tests {
		name, email := splitAuthor(tt.author)
		if name != tt.wantName || email != tt.wantEmail {
			t.Errorf("splitAuthor(%q) = (%q, %q), want (%q, %q)",
				tt.author, name, email, tt.wantName, tt.wantEmail)
		}
	}
}
