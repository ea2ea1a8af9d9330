package quorumflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/randalmurphal/flowgraph/pkg/flowgraph"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/randalmurphal/quorumflow/config"
	"github.com/randalmurphal/quorumflow/consensus"
	"github.com/randalmurphal/quorumflow/gateway"
	"github.com/randalmurphal/quorumflow/ledger"
	"github.com/randalmurphal/quorumflow/notify"
	"github.com/randalmurphal/quorumflow/persona"
	"github.com/randalmurphal/quorumflow/provider"
	"github.com/randalmurphal/quorumflow/source"
)

// =============================================================================
// Engine
// =============================================================================

// Options configures an Engine. Registry and Provider are required;
// everything else has defaults.
type Options struct {
	// Settings are the resolved engine settings. Nil loads them from the
	// default configuration layers (defaults, file, environment).
	Settings *config.Settings

	// Registry holds the AI source adapters to fan out to. Required.
	Registry *source.Registry

	// Provider is the source-control backend. Required.
	Provider provider.Interface

	// Ledger is the operation ledger. Nil opens a file store at the
	// configured ledger directory.
	Ledger *ledger.FileStore

	// Notifier receives run and stage events. Optional.
	Notifier notify.Notifier

	// Persona is the engine's persona profile. Traits are surfaced in
	// Status but never influence decisions or stage behavior.
	Persona *persona.Profile

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// runEntry tracks one live run.
type runEntry struct {
	run   *WorkflowRun
	abort *atomic.Bool
}

// Engine drives workflow runs from submission to a terminal status. All
// collaborators are injected; the engine holds no global state.
type Engine struct {
	settings   *config.Settings
	registry   *source.Registry
	gateway    *gateway.Gateway
	scm        *gateway.SCM
	normalizer *consensus.Normalizer
	decider    *consensus.Engine
	store      *ledger.FileStore
	notifier   notify.Notifier
	profile    *persona.Profile
	claims     *branchClaims
	logger     *slog.Logger

	mu     sync.Mutex
	live   map[string]*runEntry // request ID -> live run
	closed bool
	wg     sync.WaitGroup
}

// New creates an Engine from Options.
func New(opts Options) (*Engine, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("quorumflow: Registry required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("quorumflow: Provider required")
	}

	settings := opts.Settings
	if settings == nil {
		var err error
		settings, err = config.Load(config.ResolverConfig{})
		if err != nil {
			return nil, fmt.Errorf("quorumflow: load settings: %w", err)
		}
	}

	store := opts.Ledger
	if store == nil {
		var err error
		store, err = ledger.NewFileStore(settings.LedgerDir)
		if err != nil {
			return nil, fmt.Errorf("quorumflow: open ledger: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	profile := opts.Persona
	if profile == nil {
		var err error
		profile, err = persona.New("quorumflow", persona.DefaultTraits())
		if err != nil {
			return nil, fmt.Errorf("quorumflow: default persona: %w", err)
		}
	}

	applyEnabledSources(opts.Registry, settings.EnabledSources)

	stats := consensus.NewSourceStats()
	e := &Engine{
		settings: settings,
		registry: opts.Registry,
		gateway: gateway.New(opts.Registry, gateway.Config{
			SourceTimeout:  settings.SourceTimeout,
			OverallTimeout: settings.StageTimeout,
			Logger:         logger,
		}),
		scm: gateway.NewSCM(opts.Provider, gateway.SCMConfig{
			Timeout:    settings.SourceTimeout,
			MaxRetries: settings.MaxStageAttempts,
			Logger:     logger,
		}),
		normalizer: consensus.NewNormalizer(consensus.NormalizerConfig{
			Timeout: settings.SourceTimeout,
			Stats:   stats,
		}),
		decider: consensus.NewEngine(consensus.EngineConfig{
			SimilarityThreshold: settings.SimilarityThreshold,
			PriorityOrder:       settings.PriorityOrder,
			Weights:             settings.SourceWeights,
		}),
		store:    store,
		notifier: opts.Notifier,
		profile:  profile,
		claims:   newBranchClaims(),
		logger:   logger,
		live:     make(map[string]*runEntry),
	}
	return e, nil
}

// applyEnabledSources reconciles the registry against the configured
// enabled-source list. An empty list leaves the registry untouched.
func applyEnabledSources(registry *source.Registry, enabled []string) {
	if len(enabled) == 0 {
		return
	}
	want := make(map[string]bool, len(enabled))
	for _, id := range enabled {
		want[id] = true
	}
	for _, id := range registry.IDs() {
		if want[id] {
			registry.Enable(id)
		} else {
			registry.Disable(id)
		}
	}
}

// Submit validates the request, persists a new run, and starts executing
// it on its own goroutine. At most one live run per request ID.
func (e *Engine) Submit(ctx context.Context, req WorkflowRequest) (RunSnapshot, error) {
	if err := req.Validate(); err != nil {
		return RunSnapshot{}, fmt.Errorf("quorumflow: %w", err)
	}

	runID, err := gonanoid.Generate(requestIDAlphabet, 12)
	if err != nil {
		return RunSnapshot{}, fmt.Errorf("quorumflow: generate run id: %w", err)
	}
	run := newRun("run-"+runID, req)

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return RunSnapshot{}, ErrEngineClosed
	}
	if _, exists := e.live[req.ID]; exists {
		e.mu.Unlock()
		return RunSnapshot{}, fmt.Errorf("quorumflow: request %s: %w", req.ID, ErrRunActive)
	}
	entry := &runEntry{run: run, abort: new(atomic.Bool)}
	e.live[req.ID] = entry
	e.wg.Add(1)
	e.mu.Unlock()

	if err := e.store.StartRun(ledger.RunMeta{
		RunID:       run.runID,
		RequestID:   req.ID,
		Kind:        string(req.Kind),
		Description: req.Description,
		Branch:      run.branch,
		Status:      ledger.StatusRunning,
		StartedAt:   run.startedAt,
	}); err != nil {
		e.dropLive(req.ID)
		e.wg.Done()
		return RunSnapshot{}, fmt.Errorf("quorumflow: start run: %w", err)
	}

	st := runState{
		run:         run,
		abort:       entry.abort,
		environment: e.environmentFor(req),
	}
	go e.execute(entry, StagePlanning, st, notify.EventRunStarted)

	return run.Snapshot(), nil
}

// environmentFor resolves the deployment environment for a request.
func (e *Engine) environmentFor(req WorkflowRequest) string {
	if req.TargetEnvironment != "" {
		return req.TargetEnvironment
	}
	return e.settings.Environment
}

// Abort requests a cooperative stop of the live run for a request. The
// run stops at the next stage boundary; the in-flight stage attempt is
// never interrupted.
func (e *Engine) Abort(requestID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.live[requestID]
	if !ok {
		return fmt.Errorf("quorumflow: request %s: %w", requestID, ErrRunNotFound)
	}
	entry.abort.Store(true)
	return nil
}

// ActiveRuns snapshots every live run.
func (e *Engine) ActiveRuns() []RunSnapshot {
	e.mu.Lock()
	entries := make([]*runEntry, 0, len(e.live))
	for _, entry := range e.live {
		entries = append(entries, entry)
	}
	e.mu.Unlock()

	snaps := make([]RunSnapshot, 0, len(entries))
	for _, entry := range entries {
		snaps = append(snaps, entry.run.Snapshot())
	}
	return snaps
}

// RunStatus returns the current state of the run for a request, live or
// finished.
func (e *Engine) RunStatus(requestID string) (RunSnapshot, error) {
	e.mu.Lock()
	entry, ok := e.live[requestID]
	e.mu.Unlock()
	if ok {
		return entry.run.Snapshot(), nil
	}

	metas, err := e.store.AllRuns()
	if err != nil {
		return RunSnapshot{}, fmt.Errorf("quorumflow: %w", err)
	}
	for _, meta := range metas {
		if meta.RequestID == requestID {
			return snapshotFromMeta(meta), nil
		}
	}
	return RunSnapshot{}, fmt.Errorf("quorumflow: request %s: %w", requestID, ErrRunNotFound)
}

// snapshotFromMeta builds a snapshot for a run known only from the ledger.
func snapshotFromMeta(meta ledger.RunMeta) RunSnapshot {
	return RunSnapshot{
		RunID:     meta.RunID,
		RequestID: meta.RequestID,
		Kind:      Kind(meta.Kind),
		Branch:    meta.Branch,
		Status:    Status(meta.Status),
		Error:     meta.Error,
		StartedAt: meta.StartedAt,
		EndedAt:   meta.EndedAt,
	}
}

// Statistics folds run statistics from the ledger.
func (e *Engine) Statistics() (ledger.Statistics, error) {
	return e.store.Statistics()
}

// SetSourceWeight adjusts a source's consensus weight. Takes effect on
// the next planning round; no restart required.
func (e *Engine) SetSourceWeight(sourceID string, weight float64) {
	e.decider.SetWeight(sourceID, weight)
}

// Persona returns the engine's persona profile.
func (e *Engine) Persona() *persona.Profile {
	return e.profile
}

// Status reports engine-level state for diagnostics.
func (e *Engine) Status() map[string]any {
	e.mu.Lock()
	liveCount := len(e.live)
	e.mu.Unlock()
	return map[string]any{
		"active_runs": liveCount,
		"sources":     e.registry.IDs(),
		"persona":     e.profile.Status(),
	}
}

// Recover resumes every incomplete run found in the ledger. Runs whose
// ledger shows they actually finished are closed out; runs whose
// interrupted side effects cannot be confirmed are failed. The returned
// snapshots cover resumed runs only.
func (e *Engine) Recover(ctx context.Context) ([]RunSnapshot, error) {
	metas, err := e.store.IncompleteRuns()
	if err != nil {
		return nil, fmt.Errorf("quorumflow: list incomplete runs: %w", err)
	}

	var resumed []RunSnapshot
	for _, meta := range metas {
		rec, err := planRecovery(ctx, e.store, e.scm, meta, e.settings.Environment)
		if err != nil {
			return resumed, fmt.Errorf("quorumflow: recover run %s: %w", meta.RunID, err)
		}

		switch {
		case rec.failure != nil:
			e.logger.Warn("recovery ambiguous, failing run",
				"runId", meta.RunID, "error", rec.failure)
			e.closeOut(rec.run, StatusFailed, rec.failure)

		case rec.finished != "":
			e.logger.Info("recovered run already finished",
				"runId", meta.RunID, "status", rec.finished)
			e.closeOut(rec.run, rec.finished, nil)

		default:
			e.mu.Lock()
			if e.closed {
				e.mu.Unlock()
				return resumed, ErrEngineClosed
			}
			if _, exists := e.live[meta.RequestID]; exists {
				e.mu.Unlock()
				e.logger.Warn("skipping recovery, request already live",
					"runId", meta.RunID, "requestId", meta.RequestID)
				continue
			}
			entry := &runEntry{run: rec.run, abort: rec.state.abort}
			e.live[meta.RequestID] = entry
			e.wg.Add(1)
			e.mu.Unlock()

			e.logger.Info("resuming run",
				"runId", meta.RunID, "entryStage", rec.entry)
			go e.execute(entry, rec.entry, rec.state, notify.EventRunRecovered)
			resumed = append(resumed, rec.run.Snapshot())
		}
	}
	return resumed, nil
}

// Close stops accepting new requests and waits for live runs to finish.
// Runs are not aborted; callers wanting a fast shutdown should Abort
// first.
func (e *Engine) Close() {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.wg.Wait()
}

// execute drives one run through the workflow graph to a terminal status.
func (e *Engine) execute(entry *runEntry, entryStage Stage, st runState, startEvent notify.EventType) {
	defer e.wg.Done()
	run := entry.run
	defer e.dropLive(run.request.ID)
	defer e.claims.Release(run.branch, run.runID)

	baseCtx := e.servicesContext(context.Background())
	e.notify(baseCtx, run, startEvent, notify.SeverityInfo,
		fmt.Sprintf("run %s %s at %s", run.runID, startEvent, entryStage))

	runGraph, err := buildGraph(entryStage)
	if err != nil {
		e.closeOut(run, StatusFailed, err)
		e.notify(baseCtx, run, notify.EventRunFailed, notify.SeverityError, err.Error())
		return
	}

	_, err = runGraph(flowgraph.NewContext(baseCtx), st)
	switch {
	case err == nil:
		e.closeOut(run, StatusSucceeded, nil)
		e.notify(baseCtx, run, notify.EventRunSucceeded, notify.SeverityInfo,
			fmt.Sprintf("run %s succeeded", run.runID))
	case errors.Is(err, ErrAborted):
		e.closeOut(run, StatusAborted, err)
		e.notify(baseCtx, run, notify.EventRunAborted, notify.SeverityWarning,
			fmt.Sprintf("run %s aborted", run.runID))
	default:
		e.closeOut(run, StatusFailed, err)
		e.notify(baseCtx, run, notify.EventRunFailed, notify.SeverityError,
			fmt.Sprintf("run %s failed: %v", run.runID, err))
	}
}

// servicesContext injects every engine service for the workflow nodes.
func (e *Engine) servicesContext(ctx context.Context) context.Context {
	ctx = WithGateway(ctx, e.gateway)
	ctx = WithConsensus(ctx, e.normalizer, e.decider)
	ctx = WithSCM(ctx, e.scm)
	ctx = WithLedger(ctx, e.store)
	ctx = WithSettings(ctx, e.settings)
	ctx = withClaims(ctx, e.claims)
	if e.notifier != nil {
		ctx = notify.WithNotifier(ctx, e.notifier)
	}
	return ctx
}

// closeOut moves a run to a terminal status in memory and in the ledger.
func (e *Engine) closeOut(run *WorkflowRun, status Status, runErr error) {
	if err := run.finish(status, runErr); err != nil {
		e.logger.Warn("finish run", "runId", run.runID, "error", err)
	}
	if err := e.store.EndRun(run.runID, string(status), runErr); err != nil {
		e.logger.Error("persist terminal status",
			"runId", run.runID, "status", status, "error", err)
	}
}

// notify emits a run-level event when a notifier is configured.
func (e *Engine) notify(ctx context.Context, run *WorkflowRun, typ notify.EventType, severity, message string) {
	if e.notifier == nil {
		return
	}
	ev := notify.Event{
		Type:      typ,
		RunID:     run.runID,
		RequestID: run.request.ID,
		Kind:      string(run.request.Kind),
		Message:   message,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
	}
	if err := e.notifier.Notify(ctx, ev); err != nil {
		e.logger.Warn("notification failed", "runId", run.runID, "type", typ, "error", err)
	}
}

// dropLive removes a request's live-run entry.
func (e *Engine) dropLive(requestID string) {
	e.mu.Lock()
	delete(e.live, requestID)
	e.mu.Unlock()
}
