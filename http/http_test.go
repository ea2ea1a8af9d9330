package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAPIError(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantMsg    string
		wantUnwrap error
	}{
		{
			name: "basic error",
			err: &APIError{
				Source:     "deepseek",
				StatusCode: 404,
				Message:    "Model not found",
				Endpoint:   "/chat/completions",
			},
			wantMsg:    "deepseek API error (404) at /chat/completions: Model not found",
			wantUnwrap: ErrNotFound,
		},
		{
			name: "with request ID",
			err: &APIError{
				Source:     "gemini",
				StatusCode: 500,
				Message:    "Internal error",
				Endpoint:   "/v1beta/models",
				RequestID:  "abc123",
			},
			wantMsg:    "gemini API error (500) at /v1beta/models [abc123]: Internal error",
			wantUnwrap: ErrServerError,
		},
		{
			name: "unauthorized",
			err: &APIError{
				Source:     "grok",
				StatusCode: 401,
				Message:    "Invalid API key",
				Endpoint:   "/v1/chat/completions",
			},
			wantMsg:    "grok API error (401) at /v1/chat/completions: Invalid API key",
			wantUnwrap: ErrUnauthorized,
		},
		{
			name: "rate limited",
			err: &APIError{
				Source:     "perplexity",
				StatusCode: 429,
				Message:    "Too many requests",
				Endpoint:   "/chat/completions",
			},
			wantMsg:    "perplexity API error (429) at /chat/completions: Too many requests",
			wantUnwrap: ErrRateLimited,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if !errors.Is(tt.err, tt.wantUnwrap) {
				t.Errorf("expected error to unwrap to %v", tt.wantUnwrap)
			}
		})
	}
}

func TestClientPost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["prompt"] != "hello" {
			t.Errorf("prompt = %q, want hello", body["prompt"])
		}

		json.NewEncoder(w).Encode(map[string]string{"reply": "world"})
	}))
	defer server.Close()

	c := NewClient(ClientConfig{
		BaseURL:    server.URL,
		SourceName: "testsource",
		BeforeRequest: func(req *http.Request) {
			req.Header.Set("Authorization", "Bearer test-key")
		},
	})

	var result struct {
		Reply string `json:"reply"`
	}
	if err := c.Post(context.Background(), "/complete", map[string]string{"prompt": "hello"}, &result); err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	if result.Reply != "world" {
		t.Errorf("reply = %q, want world", result.Reply)
	}
}

func TestClientRetriesServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"ok": "true"})
	}))
	defer server.Close()

	c := NewClient(ClientConfig{
		BaseURL:    server.URL,
		SourceName: "testsource",
		MaxRetries: 3,
		RetryWait:  time.Millisecond,
	})

	var result map[string]string
	if err := c.Get(context.Background(), "/status", &result); err != nil {
		t.Fatalf("Get failed after retries: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestClientGivesUpAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"message": "still broken"})
	}))
	defer server.Close()

	c := NewClient(ClientConfig{
		BaseURL:    server.URL,
		SourceName: "testsource",
		MaxRetries: 2,
		RetryWait:  time.Millisecond,
	})

	err := c.Get(context.Background(), "/status", nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.StatusCode)
	}
	if !IsRetryable(err) {
		t.Error("expected 500 APIError to be retryable")
	}
}

func TestClientParsesNestedErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "prompt too long"},
		})
	}))
	defer server.Close()

	c := NewClient(ClientConfig{BaseURL: server.URL, SourceName: "testsource"})

	err := c.Post(context.Background(), "/complete", map[string]string{"prompt": "x"}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T, want *APIError", err)
	}
	if apiErr.Message != "prompt too long" {
		t.Errorf("message = %q, want nested error message", apiErr.Message)
	}
	if !errors.Is(err, ErrBadRequest) {
		t.Error("expected 400 to unwrap to ErrBadRequest")
	}
}

func TestClientContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := NewClient(ClientConfig{
		BaseURL:    server.URL,
		SourceName: "testsource",
		MaxRetries: 3,
		RetryWait:  time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := c.Get(ctx, "/status", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("error = %v, want context.DeadlineExceeded", err)
	}
}
