package source

import (
	"context"
	"fmt"
	nethttp "net/http"
	"strings"

	"github.com/randalmurphal/quorumflow/http"
)

const chatSystemPrompt = `You are one voice in a panel of engineering advisors.
Propose a concrete plan for the task. Be specific and concise.
End your answer with a line of the form "Confidence: 0.NN" estimating how
confident you are in the proposal.`

// ChatConfig configures an OpenAI-compatible chat completion source.
// DeepSeek, Perplexity, and Grok all speak this dialect.
type ChatConfig struct {
	// ID is the source identifier.
	ID string

	// BaseURL is the API root (e.g., "https://api.deepseek.com").
	BaseURL string

	// Model is the model name sent in each request.
	Model string

	// APIKey is the bearer token.
	APIKey string

	// Path overrides the completion endpoint. Defaults to
	// "/chat/completions".
	Path string

	// Client overrides the HTTP client (for tests).
	Client *http.Client
}

// Chat is a source adapter for OpenAI-compatible chat completion APIs.
type Chat struct {
	cfg    ChatConfig
	client *http.Client
}

// NewChat creates a chat completion source.
func NewChat(cfg ChatConfig) *Chat {
	if cfg.Path == "" {
		cfg.Path = "/chat/completions"
	}

	client := cfg.Client
	if client == nil {
		client = http.NewClient(http.ClientConfig{
			BaseURL:    cfg.BaseURL,
			SourceName: cfg.ID,
			BeforeRequest: func(req *nethttp.Request) {
				req.Header.Set("Authorization", "Bearer "+cfg.APIKey)
			},
		})
	}

	return &Chat{cfg: cfg, client: client}
}

// NewDeepSeek creates the DeepSeek source.
func NewDeepSeek(apiKey string) *Chat {
	return NewChat(ChatConfig{
		ID:      "deepseek",
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
		APIKey:  apiKey,
	})
}

// NewPerplexity creates the Perplexity source.
func NewPerplexity(apiKey string) *Chat {
	return NewChat(ChatConfig{
		ID:      "perplexity",
		BaseURL: "https://api.perplexity.ai",
		Model:   "sonar-pro",
		APIKey:  apiKey,
	})
}

// NewGrok creates the Grok source.
func NewGrok(apiKey string) *Chat {
	return NewChat(ChatConfig{
		ID:      "grok",
		BaseURL: "https://api.x.ai/v1",
		Model:   "grok-3",
		APIKey:  apiKey,
	})
}

// ID implements Adapter.
func (c *Chat) ID() string { return c.cfg.ID }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Propose implements Adapter.
func (c *Chat) Propose(ctx context.Context, req Request) (*Response, error) {
	system := req.SystemPrompt
	if system == "" {
		system = chatSystemPrompt
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: fmt.Sprintf("Workflow kind: %s\n\nTask:\n%s", req.Kind, req.Description)},
		},
	}

	var result chatResponse
	if err := c.client.Post(ctx, c.cfg.Path, body, &result); err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	content, confidence := extractConfidence(result.Choices[0].Message.Content)

	return &Response{
		Content:    content,
		Confidence: confidence,
		Model:      c.cfg.Model,
		TokensIn:   result.Usage.PromptTokens,
		TokensOut:  result.Usage.CompletionTokens,
	}, nil
}

// Gemini is a source adapter for the Google Gemini generateContent API,
// which has its own request shape.
type Gemini struct {
	model  string
	client *http.Client
}

// NewGemini creates the Gemini source.
func NewGemini(apiKey string) *Gemini {
	return NewGeminiWithClient("gemini-2.0-flash", http.NewClient(http.ClientConfig{
		BaseURL:    "https://generativelanguage.googleapis.com/v1beta",
		SourceName: "gemini",
		BeforeRequest: func(req *nethttp.Request) {
			req.Header.Set("x-goog-api-key", apiKey)
		},
	}))
}

// NewGeminiWithClient creates a Gemini source with an explicit client
// (for tests).
func NewGeminiWithClient(model string, client *http.Client) *Gemini {
	return &Gemini{model: model, client: client}
}

// ID implements Adapter.
func (g *Gemini) ID() string { return "gemini" }

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Propose implements Adapter.
func (g *Gemini) Propose(ctx context.Context, req Request) (*Response, error) {
	system := req.SystemPrompt
	if system == "" {
		system = chatSystemPrompt
	}

	body := geminiRequest{
		SystemInstruction: &geminiContent{Parts: []geminiPart{{Text: system}}},
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: fmt.Sprintf("Workflow kind: %s\n\nTask:\n%s", req.Kind, req.Description)}},
		}},
	}

	var result geminiResponse
	path := fmt.Sprintf("/models/%s:generateContent", g.model)
	if err := g.client.Post(ctx, path, body, &result); err != nil {
		return nil, err
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, ErrEmptyResponse
	}

	text := result.Candidates[0].Content.Parts[0].Text
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyResponse
	}

	content, confidence := extractConfidence(text)

	return &Response{
		Content:    content,
		Confidence: confidence,
		Model:      g.model,
		TokensIn:   result.UsageMetadata.PromptTokenCount,
		TokensOut:  result.UsageMetadata.CandidatesTokenCount,
	}, nil
}
