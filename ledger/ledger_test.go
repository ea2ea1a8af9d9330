package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return store
}

func TestStartRunRejectsDuplicates(t *testing.T) {
	store := newTestStore(t)

	meta := RunMeta{RunID: "run-1", RequestID: "req-1", Kind: "feature"}
	if err := store.StartRun(meta); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := store.StartRun(meta); !errors.Is(err, ErrRunAlreadyExists) {
		t.Errorf("duplicate StartRun error = %v, want ErrRunAlreadyExists", err)
	}
}

func TestAppendAssignsSequence(t *testing.T) {
	store := newTestStore(t)
	if err := store.StartRun(RunMeta{RunID: "run-1"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	for _, stage := range []string{"planning", "generating", "validating"} {
		if err := store.Append("run-1", Record{Stage: stage, Attempt: 1, Event: EventStarted}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if err := store.Append("run-1", Record{Stage: stage, Attempt: 1, Event: EventCompleted}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	records, err := store.Records("run-1")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("record count = %d, want 6", len(records))
	}
	for i, rec := range records {
		if rec.Seq != i+1 {
			t.Errorf("records[%d].Seq = %d, want %d", i, rec.Seq, i+1)
		}
		if rec.Timestamp.IsZero() {
			t.Errorf("records[%d] has zero timestamp", i)
		}
	}

	last, err := store.LastRecord("run-1")
	if err != nil {
		t.Fatalf("LastRecord failed: %v", err)
	}
	if last.Stage != "validating" || last.Event != EventCompleted {
		t.Errorf("last record = %s/%s, want validating/completed", last.Stage, last.Event)
	}
}

func TestAppendToUnknownRun(t *testing.T) {
	store := newTestStore(t)
	err := store.Append("missing", Record{Stage: "planning", Event: EventStarted})
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("error = %v, want ErrRunNotFound", err)
	}
}

func TestSequenceSurvivesRestart(t *testing.T) {
	dir := t.TempDir()

	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	if err := store.StartRun(RunMeta{RunID: "run-1"}); err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	store.Append("run-1", Record{Stage: "planning", Event: EventStarted})
	store.Append("run-1", Record{Stage: "planning", Event: EventCompleted})

	// New store over the same directory simulates a process restart.
	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if err := reopened.Append("run-1", Record{Stage: "generating", Event: EventStarted}); err != nil {
		t.Fatalf("Append after reopen failed: %v", err)
	}

	records, _ := reopened.Records("run-1")
	if len(records) != 3 {
		t.Fatalf("record count = %d, want 3", len(records))
	}
	if records[2].Seq != 3 {
		t.Errorf("seq after restart = %d, want 3", records[2].Seq)
	}
}

func TestEndRunUpdatesStatus(t *testing.T) {
	store := newTestStore(t)
	store.StartRun(RunMeta{RunID: "run-1"})

	if err := store.EndRun("run-1", StatusFailed, errors.New("validation failed")); err != nil {
		t.Fatalf("EndRun failed: %v", err)
	}

	meta, err := store.Meta("run-1")
	if err != nil {
		t.Fatalf("Meta failed: %v", err)
	}
	if meta.Status != StatusFailed {
		t.Errorf("status = %q, want failed", meta.Status)
	}
	if meta.Error != "validation failed" {
		t.Errorf("error = %q", meta.Error)
	}
	if meta.EndedAt.IsZero() {
		t.Error("EndedAt not set")
	}
}

func TestIncompleteRuns(t *testing.T) {
	store := newTestStore(t)

	store.StartRun(RunMeta{RunID: "run-a"})
	store.StartRun(RunMeta{RunID: "run-b"})
	store.StartRun(RunMeta{RunID: "run-c"})
	store.EndRun("run-b", StatusSucceeded, nil)

	incomplete, err := store.IncompleteRuns()
	if err != nil {
		t.Fatalf("IncompleteRuns failed: %v", err)
	}
	if len(incomplete) != 2 {
		t.Fatalf("incomplete count = %d, want 2", len(incomplete))
	}
	for _, meta := range incomplete {
		if meta.RunID == "run-b" {
			t.Error("completed run listed as incomplete")
		}
	}
}

func TestTornFinalLineIsIgnored(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewFileStore(dir)
	store.StartRun(RunMeta{RunID: "run-1"})
	store.Append("run-1", Record{Stage: "planning", Event: EventStarted})
	store.Append("run-1", Record{Stage: "planning", Event: EventCompleted})

	// Simulate a crash mid-append.
	path := filepath.Join(dir, "runs", "run-1", "stages.jsonl")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	f.WriteString(`{"seq":3,"stage":"generati`)
	f.Close()

	reopened, _ := NewFileStore(dir)
	records, err := reopened.Records("run-1")
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("record count = %d, want 2 (torn line dropped)", len(records))
	}
}

func TestStatisticsFold(t *testing.T) {
	store := newTestStore(t)

	store.StartRun(RunMeta{RunID: "run-1", Kind: "feature"})
	store.Append("run-1", Record{Stage: "planning", Event: EventCompleted})
	store.Append("run-1", Record{Stage: "committing", Event: EventCompleted, Effect: EffectBranch})
	store.Append("run-1", Record{Stage: "committing", Event: EventCompleted, Effect: EffectCommit})
	store.Append("run-1", Record{Stage: "reviewing", Event: EventCompleted, Effect: EffectPR})
	store.EndRun("run-1", StatusSucceeded, nil)

	store.StartRun(RunMeta{RunID: "run-2", Kind: "release"})
	store.Append("run-2", Record{Stage: "releasing", Event: EventCompleted, Effect: EffectRelease})
	store.EndRun("run-2", StatusSucceeded, nil)

	store.StartRun(RunMeta{RunID: "run-3", Kind: "hotfix"})
	store.Append("run-3", Record{Stage: "generating", Event: EventFailed, Detail: "no proposals"})
	store.EndRun("run-3", StatusFailed, errors.New("no proposals"))

	stats, err := store.Statistics()
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}

	if stats.Operations != 3 {
		t.Errorf("Operations = %d, want 3", stats.Operations)
	}
	if stats.Succeeded != 2 || stats.Failed != 1 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/1", stats.Succeeded, stats.Failed)
	}
	if stats.Branches != 1 || stats.Commits != 1 || stats.PRs != 1 || stats.Releases != 1 {
		t.Errorf("effects = %+v", stats)
	}
}
