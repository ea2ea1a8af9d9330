package quorumflow

import (
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// Workflow Request
// =============================================================================

// Kind identifies the workflow variant a request drives.
type Kind string

const (
	KindFeature Kind = "feature"
	KindHotfix  Kind = "hotfix"
	KindRelease Kind = "release"
	KindReview  Kind = "review"
)

// Valid reports whether k is a recognized workflow kind.
func (k Kind) Valid() bool {
	switch k {
	case KindFeature, KindHotfix, KindRelease, KindReview:
		return true
	}
	return false
}

// Priority orders requests for reporting. It does not affect scheduling;
// every submitted request runs immediately on its own goroutine.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// WorkflowRequest describes a unit of work for the engine.
type WorkflowRequest struct {
	ID          string   `json:"id"`
	Kind        Kind     `json:"kind"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority,omitempty"`

	// TargetEnvironment overrides the configured deployment environment
	// for this request. Empty means use the configured default.
	TargetEnvironment string `json:"targetEnvironment,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// requestIDAlphabet keeps generated IDs safe for branch names and file paths.
const requestIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// NewRequest creates a WorkflowRequest with a generated ID.
func NewRequest(kind Kind, description string) WorkflowRequest {
	id, err := gonanoid.Generate(requestIDAlphabet, 12)
	if err != nil {
		// The only failure mode is a broken entropy source.
		panic(fmt.Sprintf("quorumflow: generate request id: %v", err))
	}
	return WorkflowRequest{
		ID:          "req-" + id,
		Kind:        kind,
		Description: strings.TrimSpace(description),
		Priority:    PriorityNormal,
		CreatedAt:   time.Now().UTC(),
	}
}

// WithPriority sets the request priority.
func (r WorkflowRequest) WithPriority(p Priority) WorkflowRequest {
	r.Priority = p
	return r
}

// WithTargetEnvironment sets the deployment environment override.
func (r WorkflowRequest) WithTargetEnvironment(env string) WorkflowRequest {
	r.TargetEnvironment = env
	return r
}

// Validate checks that the request is complete enough to run.
func (r WorkflowRequest) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("request id required")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown workflow kind %q", r.Kind)
	}
	if strings.TrimSpace(r.Description) == "" {
		return fmt.Errorf("description required")
	}
	return nil
}

// BranchName derives the working branch for this request. The prefix
// follows the workflow kind so a repository's branch list reads by
// intent. Two requests for the same work derive the same branch; the
// engine's branch claim keeps their runs from colliding.
func (r WorkflowRequest) BranchName() string {
	return string(r.Kind) + "/" + slugify(r.Description, 40)
}

// ReleaseTag derives a deterministic tag for release workflows. Determinism
// matters for recovery: the tag probe after a restart must name the same
// tag the interrupted run would have created.
func (r WorkflowRequest) ReleaseTag() string {
	return "rel-" + slugify(r.Description, 24) + "-" + shortID(r.ID)
}

// Title renders a human-facing title for pull requests and releases.
func (r WorkflowRequest) Title() string {
	kind := cases.Title(language.English).String(string(r.Kind))
	desc := r.Description
	if len(desc) > 72 {
		desc = strings.TrimSpace(desc[:72]) + "..."
	}
	return fmt.Sprintf("%s: %s", kind, desc)
}

// shortID returns the trailing unique portion of a request ID.
func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i >= 0 {
		id = id[i+1:]
	}
	if len(id) > 8 {
		id = id[:8]
	}
	return id
}

// slugify lowercases s and squeezes runs of non-alphanumerics into single
// hyphens, truncating to at most maxLen characters.
func slugify(s string, maxLen int) string {
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
		if b.Len() >= maxLen {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
