package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Source errors
var (
	// ErrSourceNotFound indicates no registered source has the given ID.
	ErrSourceNotFound = errors.New("source not found")

	// ErrSourceDisabled indicates the source is registered but disabled.
	ErrSourceDisabled = errors.New("source disabled")

	// ErrEmptyResponse indicates the backend returned no usable content.
	ErrEmptyResponse = errors.New("source returned empty response")
)

// Request is the prompt handed to every source for one workflow request.
type Request struct {
	// RequestID identifies the originating workflow request.
	RequestID string

	// Kind is the workflow kind ("feature", "hotfix", "release", "review").
	Kind string

	// Description is the natural-language task description.
	Description string

	// SystemPrompt optionally overrides the adapter's default system prompt.
	SystemPrompt string
}

// Response is a source's raw proposal before normalization.
type Response struct {
	// Content is the proposal text.
	Content string

	// Confidence is the source's self-reported confidence in [0,1],
	// or nil when the backend does not report one.
	Confidence *float64

	// Reasoning optionally explains how the source arrived at the proposal.
	Reasoning string

	// Model is the backend model that produced the content.
	Model string

	// TokensIn and TokensOut are usage counters when the backend
	// reports them.
	TokensIn  int
	TokensOut int
}

// Adapter is implemented by every AI source backend.
type Adapter interface {
	// ID returns the stable source identifier (e.g., "claude", "deepseek").
	ID() string

	// Propose asks the source for a proposal. Implementations must honor
	// ctx cancellation; the gateway applies per-source timeouts.
	Propose(ctx context.Context, req Request) (*Response, error)
}

// Registry holds the configured sources and their enablement state.
// Sources keep registration order so fan-out and reporting stay stable.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	adapters map[string]Adapter
	disabled map[string]bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		disabled: make(map[string]bool),
	}
}

// Register adds a source. Registering an ID twice replaces the adapter but
// keeps its position and enablement state.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := a.ID()
	if _, exists := r.adapters[id]; !exists {
		r.order = append(r.order, id)
	}
	r.adapters[id] = a
}

// Enable marks a source as enabled.
func (r *Registry) Enable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[id]; !ok {
		return fmt.Errorf("%q: %w", id, ErrSourceNotFound)
	}
	delete(r.disabled, id)
	return nil
}

// Disable marks a source as disabled. Disabled sources are skipped by
// fan-out but keep their registration.
func (r *Registry) Disable(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.adapters[id]; !ok {
		return fmt.Errorf("%q: %w", id, ErrSourceNotFound)
	}
	r.disabled[id] = true
	return nil
}

// Get returns the adapter for the ID, or ErrSourceNotFound /
// ErrSourceDisabled.
func (r *Registry) Get(id string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.adapters[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, ErrSourceNotFound)
	}
	if r.disabled[id] {
		return nil, fmt.Errorf("%q: %w", id, ErrSourceDisabled)
	}
	return a, nil
}

// Enabled returns all enabled adapters in registration order.
func (r *Registry) Enabled() []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Adapter, 0, len(r.order))
	for _, id := range r.order {
		if !r.disabled[id] {
			out = append(out, r.adapters[id])
		}
	}
	return out
}

// IDs returns all registered source IDs in registration order, including
// disabled ones.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
