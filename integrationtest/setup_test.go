package integrationtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/randalmurphal/quorumflow"
	"github.com/randalmurphal/quorumflow/config"
	"github.com/randalmurphal/quorumflow/ledger"
	"github.com/randalmurphal/quorumflow/notify"
	"github.com/randalmurphal/quorumflow/provider"
	"github.com/randalmurphal/quorumflow/source"
)

// newEngine wires an engine against the given ledger store so restart
// scenarios can reopen the same store with a fresh engine.
func newEngine(t *testing.T, settings *config.Settings, registry *source.Registry, prov provider.Interface, store *ledger.FileStore, notifier notify.Notifier) *quorumflow.Engine {
	t.Helper()
	e, err := quorumflow.New(quorumflow.Options{
		Settings: settings,
		Registry: registry,
		Provider: prov,
		Ledger:   store,
		Notifier: notifier,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func openStore(t *testing.T, dir string) *ledger.FileStore {
	t.Helper()
	store, err := ledger.NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return store
}

// waitTerminal polls until the request's run reaches a terminal status.
func waitTerminal(t *testing.T, e *quorumflow.Engine, requestID string) quorumflow.RunSnapshot {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := e.RunStatus(requestID)
		if err != nil {
			t.Fatalf("RunStatus: %v", err)
		}
		if snap.Status.Terminal() {
			return snap
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("run for request %s never reached a terminal status", requestID)
	return quorumflow.RunSnapshot{}
}

// recorder collects every notification it receives, in order.
type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Notify(ctx context.Context, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recorder) types() []notify.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]notify.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}

func (r *recorder) sawType(typ notify.EventType) bool {
	for _, got := range r.types() {
		if got == typ {
			return true
		}
	}
	return false
}
