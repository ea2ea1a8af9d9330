package consensus

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Engine errors.
var (
	// ErrNoProposals indicates decide was called with an empty proposal set.
	ErrNoProposals = errors.New("no proposals collected")
)

// DefaultSimilarityThreshold is the clustering threshold: two proposals
// whose content similarity meets or exceeds it are treated as equivalent.
const DefaultSimilarityThreshold = 0.8

// Decision is the single reconciled output chosen from competing proposals.
// Exactly one per request; immutable once produced.
type Decision struct {
	RequestID           string   `json:"requestId"`
	ChosenContent       string   `json:"chosenContent"`
	ContributingSources []string `json:"contributingSources"`
	AgreementScore      float64  `json:"agreementScore"` // in [0,1]
	Rationale           string   `json:"rationale"`
}

// EngineConfig configures a consensus Engine.
type EngineConfig struct {
	// SimilarityThreshold for clustering. Defaults to
	// DefaultSimilarityThreshold.
	SimilarityThreshold float64

	// PriorityOrder is the fixed source ordering used as a tie-break:
	// earlier entries outrank later ones. Sources not listed rank last.
	PriorityOrder []string

	// Weights are initial per-source trust multipliers. Sources not listed
	// weigh 1.0. Weights can be updated at runtime via SetWeight.
	Weights map[string]float64
}

// Engine aggregates proposals into one Decision using deterministic scoring
// and tie-break rules. Safe for concurrent use; weights may be updated
// between calls without restart.
type Engine struct {
	threshold float64
	priority  map[string]int

	mu      sync.RWMutex
	weights map[string]float64
}

// NewEngine creates a consensus Engine.
func NewEngine(cfg EngineConfig) *Engine {
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}

	priority := make(map[string]int, len(cfg.PriorityOrder))
	for i, id := range cfg.PriorityOrder {
		if _, ok := priority[id]; !ok {
			priority[id] = i
		}
	}

	weights := make(map[string]float64, len(cfg.Weights))
	for id, w := range cfg.Weights {
		weights[id] = w
	}

	return &Engine{
		threshold: threshold,
		priority:  priority,
		weights:   weights,
	}
}

// SetWeight updates a source's trust multiplier. Takes effect on the next
// Decide call; no restart required.
func (e *Engine) SetWeight(sourceID string, weight float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.weights[sourceID] = weight
}

// Weight returns the current trust multiplier for a source (1.0 default).
func (e *Engine) Weight(sourceID string) float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if w, ok := e.weights[sourceID]; ok {
		return w
	}
	return 1.0
}

// Threshold returns the similarity threshold in use.
func (e *Engine) Threshold() float64 {
	return e.threshold
}

// group is an equivalence cluster of proposals.
type group struct {
	members []Proposal
	score   float64
}

// minSourceID returns the lexicographically smallest member source ID.
func (g *group) minSourceID() string {
	min := g.members[0].SourceID
	for _, p := range g.members[1:] {
		if p.SourceID < min {
			min = p.SourceID
		}
	}
	return min
}

// bestPriority returns the best (lowest) configured priority rank among
// members, or a rank past the end for unlisted sources.
func (g *group) bestPriority(priority map[string]int) int {
	best := len(priority)
	for _, p := range g.members {
		if rank, ok := priority[p.SourceID]; ok && rank < best {
			best = rank
		}
	}
	return best
}

// Decide aggregates proposals into one Decision. Fails with ErrNoProposals
// when the sequence is empty. Deterministic: identical inputs and
// configuration always yield the same Decision.
func (e *Engine) Decide(requestID string, proposals []Proposal) (*Decision, error) {
	if len(proposals) == 0 {
		return nil, ErrNoProposals
	}

	groups := e.cluster(proposals)

	e.mu.RLock()
	total := 0.0
	for _, g := range groups {
		g.score = 0
		for _, p := range g.members {
			g.score += p.Confidence * e.weight(p.SourceID)
		}
		total += g.score
	}
	e.mu.RUnlock()

	winner := groups[0]
	for _, g := range groups[1:] {
		if e.beats(g, winner) {
			winner = g
		}
	}

	agreement := 1.0
	if total > 0 {
		agreement = winner.score / total
	}

	sources := make([]string, 0, len(winner.members))
	seen := make(map[string]struct{}, len(winner.members))
	for _, p := range winner.members {
		if _, ok := seen[p.SourceID]; !ok {
			seen[p.SourceID] = struct{}{}
			sources = append(sources, p.SourceID)
		}
	}
	sort.Strings(sources)

	topWeight := 0.0
	for _, p := range winner.members {
		if w := e.Weight(p.SourceID); w > topWeight {
			topWeight = w
		}
	}

	return &Decision{
		RequestID:           requestID,
		ChosenContent:       winner.members[0].Content,
		ContributingSources: sources,
		AgreementScore:      agreement,
		Rationale: fmt.Sprintf(
			"%d of %d proposals clustered together (threshold %.2f); winning score %.3f of %.3f total; top weight %.2f",
			len(winner.members), len(proposals), e.threshold, winner.score, total, topWeight,
		),
	}, nil
}

// weight reads a multiplier without locking; callers hold e.mu.
func (e *Engine) weight(sourceID string) float64 {
	if w, ok := e.weights[sourceID]; ok {
		return w
	}
	return 1.0
}

// cluster greedily groups proposals in input order: each proposal joins the
// first existing group whose seed content meets the similarity threshold,
// otherwise it seeds a new group. Greedy first-fit keeps clustering
// reproducible for identical inputs.
func (e *Engine) cluster(proposals []Proposal) []*group {
	var groups []*group
	for _, p := range proposals {
		placed := false
		for _, g := range groups {
			if Similarity(g.members[0].Content, p.Content) >= e.threshold {
				g.members = append(g.members, p)
				placed = true
				break
			}
		}
		if !placed {
			groups = append(groups, &group{members: []Proposal{p}})
		}
	}
	return groups
}

// beats reports whether challenger outranks incumbent under the scoring and
// tie-break rules: higher score, then larger member count, then better
// configured source priority, then lexicographically smaller member
// source ID.
func (e *Engine) beats(challenger, incumbent *group) bool {
	if challenger.score != incumbent.score {
		return challenger.score > incumbent.score
	}
	if len(challenger.members) != len(incumbent.members) {
		return len(challenger.members) > len(incumbent.members)
	}
	cp, ip := challenger.bestPriority(e.priority), incumbent.bestPriority(e.priority)
	if cp != ip {
		return cp < ip
	}
	return challenger.minSourceID() < incumbent.minSourceID()
}
