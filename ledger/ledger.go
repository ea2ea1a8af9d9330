// Package ledger persists the operation history of workflow runs. Each run
// gets a directory holding a metadata file and an append-only JSONL stage
// log; on restart the engine replays the log to decide where a run stopped.
package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Ledger errors
var (
	// ErrRunAlreadyExists indicates a run with the ID was already started.
	ErrRunAlreadyExists = errors.New("run already exists")

	// ErrRunNotFound indicates no run with the ID exists.
	ErrRunNotFound = errors.New("run not found")
)

// Run statuses as persisted in run metadata.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusAborted   = "aborted"
)

// Record events.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
	EventRetrying  = "retrying"
	EventDecision  = "decision"
	EventAborted   = "aborted"
)

// Side-effect markers attached to completed-stage records so statistics
// can be folded from the log alone.
const (
	EffectBranch     = "branch"
	EffectCommit     = "commit"
	EffectPR         = "pr"
	EffectMerge      = "merge"
	EffectDeployment = "deployment"
	EffectRelease    = "release"
)

// RunMeta is the per-run metadata persisted in run.json.
type RunMeta struct {
	RunID       string    `json:"run_id"`
	RequestID   string    `json:"request_id"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Branch      string    `json:"branch"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Record is one append-only entry in a run's stage log.
type Record struct {
	// Seq is the 1-based position in the log, assigned on append.
	Seq int `json:"seq"`

	// Stage is the workflow stage the record belongs to.
	Stage string `json:"stage"`

	// Attempt is the 1-based attempt number within the stage.
	Attempt int `json:"attempt,omitempty"`

	// Event says what happened (started, completed, failed, ...).
	Event string `json:"event"`

	// Effect optionally marks a durable side effect the stage performed.
	Effect string `json:"effect,omitempty"`

	// Detail carries a human-readable note (error text, decision
	// rationale, commit SHA).
	Detail string `json:"detail,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// FileStore is the file-backed ledger. All appends go through a mutex so a
// run's log stays strictly ordered even under concurrent stage callbacks.
type FileStore struct {
	baseDir string
	mu      sync.Mutex
	seqs    map[string]int
}

// NewFileStore creates a file-backed ledger rooted at baseDir.
func NewFileStore(baseDir string) (*FileStore, error) {
	runsDir := filepath.Join(baseDir, "runs")
	if err := os.MkdirAll(runsDir, 0755); err != nil {
		return nil, err
	}

	return &FileStore{
		baseDir: baseDir,
		seqs:    make(map[string]int),
	}, nil
}

func (s *FileStore) runDir(runID string) string {
	return filepath.Join(s.baseDir, "runs", runID)
}

// StartRun creates the run directory and writes initial metadata.
func (s *FileStore) StartRun(meta RunMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.runDir(meta.RunID)
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("%s: %w", meta.RunID, ErrRunAlreadyExists)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	if meta.Status == "" {
		meta.Status = StatusRunning
	}
	if meta.StartedAt.IsZero() {
		meta.StartedAt = time.Now()
	}

	return s.writeMeta(meta)
}

// Append adds a record to the run's stage log. Seq and Timestamp are
// assigned here; callers only fill stage, attempt, event, and detail.
func (s *FileStore) Append(runID string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.runDir(runID)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return err
	}

	seq, ok := s.seqs[runID]
	if !ok {
		// Cold cache after restart: recount from the log.
		records, err := s.readRecords(runID)
		if err != nil {
			return err
		}
		seq = len(records)
	}

	rec.Seq = seq + 1
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, "stages.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	s.seqs[runID] = rec.Seq
	return nil
}

// EndRun updates the run metadata to a terminal status.
func (s *FileStore) EndRun(runID, status string, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(runID)
	if err != nil {
		return err
	}

	meta.Status = status
	meta.EndedAt = time.Now()
	if runErr != nil {
		meta.Error = runErr.Error()
	}

	delete(s.seqs, runID)
	return s.writeMeta(*meta)
}

// Meta returns the run's metadata.
func (s *FileStore) Meta(runID string) (*RunMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMeta(runID)
}

// Records returns the run's full stage log in append order.
func (s *FileStore) Records(runID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.runDir(runID)); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil, err
	}

	return s.readRecords(runID)
}

// LastRecord returns the final record of the run's log, or nil for an
// empty log.
func (s *FileStore) LastRecord(runID string) (*Record, error) {
	records, err := s.Records(runID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	last := records[len(records)-1]
	return &last, nil
}

// IncompleteRuns returns metadata for every run still marked running,
// oldest first. The engine probes these on startup.
func (s *FileStore) IncompleteRuns() ([]RunMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.baseDir, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var results []RunMeta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.readMeta(entry.Name())
		if err != nil {
			continue
		}
		if meta.Status == StatusRunning {
			results = append(results, *meta)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.Before(results[j].StartedAt)
	})

	return results, nil
}

// AllRuns returns metadata for every recorded run, newest first.
func (s *FileStore) AllRuns() ([]RunMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(filepath.Join(s.baseDir, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var results []RunMeta
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.readMeta(entry.Name())
		if err != nil {
			continue
		}
		results = append(results, *meta)
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].StartedAt.After(results[j].StartedAt)
	})

	return results, nil
}

func (s *FileStore) writeMeta(meta RunMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal run metadata: %w", err)
	}

	path := filepath.Join(s.runDir(meta.RunID), "run.json")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (s *FileStore) readMeta(runID string) (*RunMeta, error) {
	data, err := os.ReadFile(filepath.Join(s.runDir(runID), "run.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
		}
		return nil, err
	}

	var meta RunMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse run metadata: %w", err)
	}
	return &meta, nil
}

func (s *FileStore) readRecords(runID string) ([]Record, error) {
	f, err := os.Open(filepath.Join(s.runDir(runID), "stages.jsonl"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			// A torn final line from a crash mid-append is not fatal;
			// everything before it is intact.
			break
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}
