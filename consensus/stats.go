package consensus

import "sync"

// DefaultConfidence is assumed for sources with no history.
const DefaultConfidence = 0.8

// SourceStats tracks a rolling success rate per source. Used to default
// confidence for sources that do not self-report, and to bias future
// defaults toward sources that actually answer.
//
// Safe for concurrent use.
type SourceStats struct {
	mu      sync.RWMutex
	records map[string]*sourceRecord
}

type sourceRecord struct {
	attempts  int
	successes int
}

// NewSourceStats creates an empty tracker.
func NewSourceStats() *SourceStats {
	return &SourceStats{records: make(map[string]*sourceRecord)}
}

// Record notes one attempt outcome for a source.
func (s *SourceStats) Record(sourceID string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[sourceID]
	if rec == nil {
		rec = &sourceRecord{}
		s.records[sourceID] = rec
	}
	rec.attempts++
	if ok {
		rec.successes++
	}
}

// SuccessRate returns the source's historical success rate, or
// DefaultConfidence when the source has no history yet.
func (s *SourceStats) SuccessRate(sourceID string) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.records[sourceID]
	if rec == nil || rec.attempts == 0 {
		return DefaultConfidence
	}
	return float64(rec.successes) / float64(rec.attempts)
}

// Attempts returns the number of recorded attempts for a source.
func (s *SourceStats) Attempts(sourceID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec := s.records[sourceID]
	if rec == nil {
		return 0
	}
	return rec.attempts
}
