package source

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	llm "github.com/randalmurphal/llmkit/claude"
)

const claudeSystemPrompt = `You are one voice in a panel of engineering advisors.
Propose a concrete plan for the task. Be specific and concise.
End your answer with a line of the form "Confidence: 0.NN" estimating how
confident you are in the proposal.`

// Claude is the source adapter backed by a Claude LLM client.
type Claude struct {
	id     string
	client llm.Client
}

// NewClaude creates a Claude source. The client is typically an
// llm.NewClaudeCLI instance; tests pass llm.NewMockClient.
func NewClaude(client llm.Client) *Claude {
	return &Claude{id: "claude", client: client}
}

// ID implements Adapter.
func (c *Claude) ID() string { return c.id }

// Propose implements Adapter.
func (c *Claude) Propose(ctx context.Context, req Request) (*Response, error) {
	system := req.SystemPrompt
	if system == "" {
		system = claudeSystemPrompt
	}

	prompt := fmt.Sprintf("Workflow kind: %s\n\nTask:\n%s", req.Kind, req.Description)

	result, err := c.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return nil, fmt.Errorf("claude complete: %w", err)
	}
	if strings.TrimSpace(result.Content) == "" {
		return nil, ErrEmptyResponse
	}

	content, confidence := extractConfidence(result.Content)

	return &Response{
		Content:    content,
		Confidence: confidence,
		Model:      string(SelectModel(req.Kind)),
		TokensIn:   result.Usage.InputTokens,
		TokensOut:  result.Usage.OutputTokens,
	}, nil
}

// extractConfidence strips a trailing "Confidence: 0.NN" line from content
// and returns the parsed value, or nil when absent or malformed.
func extractConfidence(content string) (string, *float64) {
	trimmed := strings.TrimSpace(content)

	idx := strings.LastIndex(trimmed, "\n")
	last := trimmed
	if idx >= 0 {
		last = trimmed[idx+1:]
	}

	rest, ok := strings.CutPrefix(strings.TrimSpace(last), "Confidence:")
	if !ok {
		return trimmed, nil
	}

	value, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
	if err != nil || value < 0 || value > 1 {
		return trimmed, nil
	}

	if idx < 0 {
		return "", &value
	}
	return strings.TrimSpace(trimmed[:idx]), &value
}
