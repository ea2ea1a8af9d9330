package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testEvent() Event {
	return Event{
		Type:      EventStageCompleted,
		RunID:     "run-1",
		RequestID: "req-1",
		Kind:      "feature",
		Stage:     "committing",
		Message:   "commit created",
		Severity:  SeverityInfo,
		Timestamp: time.Now(),
		Metadata:  map[string]any{"sha": "deadbeef"},
	}
}

func TestLogNotifier(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	n := NewLogNotifier(logger)

	if err := n.Notify(context.Background(), testEvent()); err != nil {
		t.Errorf("Notify failed: %v", err)
	}
}

func TestWebhookNotifier(t *testing.T) {
	var received Event
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Token"); got != "secret" {
			t.Errorf("X-Token = %q, want secret", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, map[string]string{"X-Token": "secret"})
	if err := n.Notify(context.Background(), testEvent()); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if received.Type != EventStageCompleted || received.RunID != "run-1" {
		t.Errorf("received = %+v", received)
	}
}

func TestWebhookNotifierErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, nil)
	if err := n.Notify(context.Background(), testEvent()); err == nil {
		t.Error("expected error for 502 response")
	}
}

func TestSlackNotifierPayload(t *testing.T) {
	var payload slackPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL,
		WithSlackChannel("#deploys"),
		WithSlackUsername("workflow-bot"),
	)

	event := testEvent()
	event.Severity = SeverityError
	if err := n.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	if payload.Channel != "#deploys" || payload.Username != "workflow-bot" {
		t.Errorf("payload = %+v", payload)
	}
	if len(payload.Attachments) != 1 {
		t.Fatalf("attachment count = %d", len(payload.Attachments))
	}
	if payload.Attachments[0].Color != "danger" {
		t.Errorf("color = %q, want danger for error severity", payload.Attachments[0].Color)
	}
}

type failingNotifier struct{ err error }

func (f *failingNotifier) Notify(ctx context.Context, event Event) error { return f.err }

type countingNotifier struct{ count int }

func (c *countingNotifier) Notify(ctx context.Context, event Event) error {
	c.count++
	return nil
}

func TestMultiNotifierContinuesPastFailures(t *testing.T) {
	counter := &countingNotifier{}
	failing := &failingNotifier{err: errors.New("channel down")}

	multi := NewMultiNotifier(failing, counter)
	multi.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))

	err := multi.Notify(context.Background(), testEvent())
	if err == nil {
		t.Error("expected last error to be returned")
	}
	if counter.count != 1 {
		t.Errorf("healthy notifier called %d times, want 1", counter.count)
	}
}

func TestNotifierContext(t *testing.T) {
	ctx := context.Background()
	if NotifierFromContext(ctx) != nil {
		t.Error("empty context should yield nil notifier")
	}

	n := NopNotifier{}
	ctx = WithNotifier(ctx, n)
	if NotifierFromContext(ctx) == nil {
		t.Error("notifier not found after injection")
	}
}
