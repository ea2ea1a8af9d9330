package notify

import (
	"context"
	"time"
)

// EventType represents the type of workflow event.
type EventType string

// Event type constants.
const (
	EventRunStarted      EventType = "run_started"
	EventRunSucceeded    EventType = "run_succeeded"
	EventRunFailed       EventType = "run_failed"
	EventRunAborted      EventType = "run_aborted"
	EventRunRecovered    EventType = "run_recovered"
	EventStageStarted    EventType = "stage_started"
	EventStageCompleted  EventType = "stage_completed"
	EventStageFailed     EventType = "stage_failed"
	EventStageRetrying   EventType = "stage_retrying"
	EventDecisionReached EventType = "decision_reached"
	EventPROpened        EventType = "pr_opened"
	EventDeployed        EventType = "deployed"
	EventReleased        EventType = "released"
)

// Severity constants for notification events.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
	SeverityInfo    = "info"
)

// Event describes a workflow event for notification.
type Event struct {
	Type      EventType      `json:"type"`
	RunID     string         `json:"run_id"`
	RequestID string         `json:"request_id"`
	Kind      string         `json:"kind,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Message   string         `json:"message"`
	Severity  string         `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Notifier sends notifications about workflow events.
type Notifier interface {
	// Notify sends a notification. Implementations should be non-blocking
	// and handle errors gracefully (log, don't crash).
	Notify(ctx context.Context, event Event) error
}

type serviceContextKey string

const notifierServiceKey serviceContextKey = "quorumflow.notifier"

// WithNotifier adds a Notifier to the context.
func WithNotifier(ctx context.Context, n Notifier) context.Context {
	return context.WithValue(ctx, notifierServiceKey, n)
}

// NotifierFromContext extracts the Notifier from context.
// Returns nil if no notifier is configured.
func NotifierFromContext(ctx context.Context) Notifier {
	if n, ok := ctx.Value(notifierServiceKey).(Notifier); ok {
		return n
	}
	return nil
}
