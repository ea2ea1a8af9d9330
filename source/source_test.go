package source

import (
	"context"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	llm "github.com/randalmurphal/llmkit/claude"
	"github.com/randalmurphal/llmkit/model"

	"github.com/randalmurphal/quorumflow/http"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	r.Register(&Mock{SourceID: "claude"})
	r.Register(&Mock{SourceID: "deepseek"})
	r.Register(&Mock{SourceID: "gemini"})

	if got := len(r.Enabled()); got != 3 {
		t.Fatalf("enabled count = %d, want 3", got)
	}

	if err := r.Disable("deepseek"); err != nil {
		t.Fatalf("Disable failed: %v", err)
	}

	enabled := r.Enabled()
	if len(enabled) != 2 {
		t.Fatalf("enabled count after disable = %d, want 2", len(enabled))
	}
	if enabled[0].ID() != "claude" || enabled[1].ID() != "gemini" {
		t.Errorf("enabled order = [%s %s], want registration order", enabled[0].ID(), enabled[1].ID())
	}

	if _, err := r.Get("deepseek"); !errors.Is(err, ErrSourceDisabled) {
		t.Errorf("Get disabled source error = %v, want ErrSourceDisabled", err)
	}

	if err := r.Enable("deepseek"); err != nil {
		t.Fatalf("Enable failed: %v", err)
	}
	if _, err := r.Get("deepseek"); err != nil {
		t.Errorf("Get re-enabled source failed: %v", err)
	}

	if err := r.Disable("nope"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("Disable unknown source error = %v, want ErrSourceNotFound", err)
	}
}

func TestRegistryReplaceKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&Mock{SourceID: "a"})
	r.Register(&Mock{SourceID: "b"})
	r.Register(&Mock{SourceID: "a"}) // replace

	ids := r.IDs()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("IDs = %v, want [a b]", ids)
	}
}

func TestExtractConfidence(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantText string
		wantConf float64
		wantNil  bool
	}{
		{
			name:     "trailing confidence line",
			content:  "Use a worker pool.\nConfidence: 0.85",
			wantText: "Use a worker pool.",
			wantConf: 0.85,
		},
		{
			name:    "no confidence line",
			content: "Use a worker pool.",
			wantNil: true,
		},
		{
			name:    "out of range",
			content: "Plan.\nConfidence: 1.5",
			wantNil: true,
		},
		{
			name:    "malformed",
			content: "Plan.\nConfidence: high",
			wantNil: true,
		},
		{
			name:     "only confidence line",
			content:  "Confidence: 0.5",
			wantText: "",
			wantConf: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, conf := extractConfidence(tt.content)
			if tt.wantNil {
				if conf != nil {
					t.Errorf("confidence = %v, want nil", *conf)
				}
				return
			}
			if conf == nil {
				t.Fatal("confidence = nil, want value")
			}
			if *conf != tt.wantConf {
				t.Errorf("confidence = %v, want %v", *conf, tt.wantConf)
			}
			if text != tt.wantText {
				t.Errorf("text = %q, want %q", text, tt.wantText)
			}
		})
	}
}

func TestClaudePropose(t *testing.T) {
	mock := llm.NewMockClient("").WithResponses("Split the handler into two stages.\nConfidence: 0.9")
	c := NewClaude(mock)

	resp, err := c.Propose(context.Background(), Request{
		RequestID:   "req-1",
		Kind:        "feature",
		Description: "Add login endpoint",
	})
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}

	if resp.Content != "Split the handler into two stages." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", resp.Confidence)
	}
	if resp.Model != string(model.ModelSonnet) {
		t.Errorf("model = %q, want sonnet for feature kind", resp.Model)
	}
}

func TestClaudeProposeEmpty(t *testing.T) {
	mock := llm.NewMockClient("").WithResponses("   ")
	c := NewClaude(mock)

	_, err := c.Propose(context.Background(), Request{Kind: "feature", Description: "x"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestChatPropose(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		var body chatRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Model != "deepseek-chat" {
			t.Errorf("model = %q", body.Model)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("messages = %+v", body.Messages)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Use feature flags.\nConfidence: 0.7"}},
			},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 12},
		})
	}))
	defer server.Close()

	c := NewChat(ChatConfig{
		ID:      "deepseek",
		BaseURL: server.URL,
		Model:   "deepseek-chat",
		APIKey:  "sk-test",
	})

	resp, err := c.Propose(context.Background(), Request{Kind: "feature", Description: "Add flags"})
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if resp.Content != "Use feature flags." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.7 {
		t.Errorf("confidence = %v, want 0.7", resp.Confidence)
	}
	if resp.TokensIn != 42 || resp.TokensOut != 12 {
		t.Errorf("tokens = %d/%d, want 42/12", resp.TokensIn, resp.TokensOut)
	}
}

func TestChatProposeNoChoices(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	c := NewChat(ChatConfig{ID: "grok", BaseURL: server.URL, Model: "grok-3"})

	_, err := c.Propose(context.Background(), Request{Kind: "feature", Description: "x"})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("error = %v, want ErrEmptyResponse", err)
	}
}

func TestGeminiPropose(t *testing.T) {
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/models/gemini-2.0-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}

		var body geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.SystemInstruction == nil || len(body.Contents) != 1 {
			t.Errorf("unexpected request shape: %+v", body)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": "Add an index.\nConfidence: 0.6"}},
				}},
			},
			"usageMetadata": map[string]int{"promptTokenCount": 10, "candidatesTokenCount": 5},
		})
	}))
	defer server.Close()

	g := NewGeminiWithClient("gemini-2.0-flash", http.NewClient(http.ClientConfig{
		BaseURL:    server.URL,
		SourceName: "gemini",
	}))

	resp, err := g.Propose(context.Background(), Request{Kind: "feature", Description: "Slow query"})
	if err != nil {
		t.Fatalf("Propose failed: %v", err)
	}
	if resp.Content != "Add an index." {
		t.Errorf("content = %q", resp.Content)
	}
	if resp.Confidence == nil || *resp.Confidence != 0.6 {
		t.Errorf("confidence = %v, want 0.6", resp.Confidence)
	}
}

func TestTierForKind(t *testing.T) {
	tests := []struct {
		kind string
		want model.Tier
	}{
		{KindHotfix, model.TierThinking},
		{KindReview, model.TierThinking},
		{KindFeature, model.TierDefault},
		{KindRelease, model.TierFast},
		{"unknown", model.TierDefault},
	}

	for _, tt := range tests {
		if got := TierForKind(tt.kind); got != tt.want {
			t.Errorf("TierForKind(%q) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}
