package consensus

import (
	"errors"
	"time"
)

// Normalizer errors.
var (
	// ErrNoResponses indicates normalize was called with no raw responses.
	ErrNoResponses = errors.New("no raw responses to normalize")
)

// Proposal is one source's suggested content for a request, with a
// confidence score. Proposals are never mutated after creation.
type Proposal struct {
	SourceID   string    `json:"sourceId"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"` // always in [0,1]
	LatencyMS  int64     `json:"latencyMs"`
	RaisedAt   time.Time `json:"raisedAt"`
	Reasoning  string    `json:"reasoning,omitempty"`
}

// RawResponse is a source's reply before normalization. Confidence is
// optional; sources that report none get a default from their rolling
// success rate.
type RawResponse struct {
	SourceID   string
	Content    string
	Confidence *float64 // nil = source did not self-report
	Reasoning  string
	Elapsed    time.Duration
	Err        error // non-nil when the source failed or timed out
}

// NormalizeResult carries the shaped proposals plus the sources that failed
// to respond. Callers surface Unreachable upstream rather than silently
// discarding it.
type NormalizeResult struct {
	Proposals   []Proposal
	Unreachable []string
}

// Normalizer converts heterogeneous source outputs into uniform Proposals.
type Normalizer struct {
	timeout time.Duration
	stats   *SourceStats
}

// NormalizerConfig configures a Normalizer.
type NormalizerConfig struct {
	// Timeout is the per-source response budget. Responses that took longer
	// are dropped and reported as unreachable. Defaults to 30s.
	Timeout time.Duration

	// Stats supplies historical success rates for confidence defaulting.
	// A fresh tracker is created if nil.
	Stats *SourceStats
}

// DefaultSourceTimeout is the per-source response budget.
const DefaultSourceTimeout = 30 * time.Second

// NewNormalizer creates a Normalizer.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	stats := cfg.Stats
	if stats == nil {
		stats = NewSourceStats()
	}
	return &Normalizer{timeout: timeout, stats: stats}
}

// Normalize shapes raw responses into Proposals. Pure apart from the rolling
// statistics it reads and records into.
func (n *Normalizer) Normalize(raw []RawResponse) (NormalizeResult, error) {
	if len(raw) == 0 {
		return NormalizeResult{}, ErrNoResponses
	}

	result := NormalizeResult{}
	now := time.Now()

	for _, r := range raw {
		if r.Err != nil || r.Elapsed > n.timeout {
			result.Unreachable = append(result.Unreachable, r.SourceID)
			n.stats.Record(r.SourceID, false)
			continue
		}

		confidence := n.stats.SuccessRate(r.SourceID)
		if r.Confidence != nil {
			confidence = *r.Confidence
		}

		result.Proposals = append(result.Proposals, Proposal{
			SourceID:   r.SourceID,
			Content:    r.Content,
			Confidence: clamp01(confidence),
			LatencyMS:  r.Elapsed.Milliseconds(),
			RaisedAt:   now,
			Reasoning:  r.Reasoning,
		})
		n.stats.Record(r.SourceID, true)
	}

	return result, nil
}

// Stats returns the rolling source statistics the normalizer reads.
func (n *Normalizer) Stats() *SourceStats {
	return n.stats
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
