package quorumflow

import (
	"strings"
	"testing"
)

func TestCommitMessageIsDeterministic(t *testing.T) {
	req := NewRequest(KindFeature, "add caching to the lookup path")

	msg := commitMessage(req)
	if !strings.HasPrefix(msg, req.Title()) {
		t.Errorf("message %q should start with the request title", msg)
	}
	if !strings.Contains(msg, "Request-ID: "+req.ID) {
		t.Errorf("message %q should embed the request ID", msg)
	}
	if commitMessage(req) != msg {
		t.Error("same request must always produce the same message")
	}
}

func TestRenderFilesForFeature(t *testing.T) {
	req := NewRequest(KindFeature, "add caching to the lookup path")

	files := renderFiles(req, "use an LRU cache in front of the store", "two sources agreed")
	if len(files) != 1 {
		t.Fatalf("got %d files, want 1", len(files))
	}
	f := files[0]
	if f.Path != "docs/proposals/"+shortID(req.ID)+".md" {
		t.Errorf("Path = %q", f.Path)
	}
	if f.Operation != "create" {
		t.Errorf("Operation = %q, want create", f.Operation)
	}
	for _, want := range []string{req.Title(), req.ID, req.Description, "use an LRU cache", "two sources agreed"} {
		if !strings.Contains(f.Content, want) {
			t.Errorf("proposal doc missing %q", want)
		}
	}
}

func TestRenderFilesForRelease(t *testing.T) {
	req := NewRequest(KindRelease, "ship the ingestion pipeline")

	files := renderFiles(req, "cut the release from main", "")
	if len(files) != 2 {
		t.Fatalf("got %d files, want proposal and changelog", len(files))
	}
	changelog := files[1]
	if changelog.Path != "docs/changelog/"+req.ReleaseTag()+".md" {
		t.Errorf("changelog path = %q", changelog.Path)
	}
	if !strings.Contains(changelog.Content, req.ReleaseTag()) {
		t.Error("changelog should be titled with the release tag")
	}
}

func TestDeployTarget(t *testing.T) {
	run := newRun("run-1", NewRequest(KindRelease, "deploy target check"))

	st := runState{run: run, environment: "staging"}
	env, ref := deployTarget(st)
	if env != "staging" {
		t.Errorf("environment = %q, want staging", env)
	}
	if ref != run.branch {
		t.Errorf("ref = %q, want the branch before any commit exists", ref)
	}

	st.commitSHA = "abc123"
	if _, ref = deployTarget(st); ref != "abc123" {
		t.Errorf("ref = %q, want the commit SHA once one exists", ref)
	}
}

func TestStageStartDetail(t *testing.T) {
	run := newRun("run-1", NewRequest(KindRelease, "detail check"))
	st := runState{
		run:           run,
		environment:   "production",
		commitMessage: commitMessage(run.request),
		commitSHA:     "abc123",
	}

	if got := stageStartDetail(StageCommitting, st); got != st.commitMessage {
		t.Errorf("committing detail = %q", got)
	}
	if got := stageStartDetail(StageDeploying, st); got != "production abc123" {
		t.Errorf("deploying detail = %q", got)
	}
	if got := stageStartDetail(StageReleasing, st); got != run.request.ReleaseTag() {
		t.Errorf("releasing detail = %q", got)
	}
	if got := stageStartDetail(StagePlanning, st); got != "" {
		t.Errorf("planning detail = %q, want empty", got)
	}
}

func TestSplitDeployDetail(t *testing.T) {
	env, ref, ok := splitDeployDetail("production abc123")
	if !ok || env != "production" || ref != "abc123" {
		t.Errorf("got (%q, %q, %v)", env, ref, ok)
	}
	if _, _, ok := splitDeployDetail("malformed"); ok {
		t.Error("detail without a ref should not parse")
	}
	if _, _, ok := splitDeployDetail(""); ok {
		t.Error("empty detail should not parse")
	}
}
