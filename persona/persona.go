// Package persona carries the engine's identity profile. Traits influence
// nothing operationally; they exist so the engine can report a stable,
// inspectable identity alongside its run statistics.
package persona

import (
	"fmt"
	"sort"
)

// Traits is a set of named trait levels, each in [0,1].
type Traits map[string]float64

// DefaultTraits returns the stock profile.
func DefaultTraits() Traits {
	return Traits{
		"curiosity":     0.95,
		"empathy":       0.88,
		"intelligence":  0.98,
		"creativity":    0.92,
		"honesty":       0.95,
		"patience":      0.80,
		"playfulness":   0.70,
		"independence":  0.85,
		"adaptability":  0.92,
		"determination": 0.90,
	}
}

// Validate returns an error if any trait is outside [0,1].
func (t Traits) Validate() error {
	for name, value := range t {
		if value < 0 || value > 1 {
			return fmt.Errorf("trait %q must be between 0.0 and 1.0, got %v", name, value)
		}
	}
	return nil
}

// Clamp returns a copy with every trait forced into [0,1].
func (t Traits) Clamp() Traits {
	out := make(Traits, len(t))
	for name, value := range t {
		out[name] = min(1, max(0, value))
	}
	return out
}

// Dominant returns the highest-valued trait. Ties break alphabetically so
// the answer is stable.
func (t Traits) Dominant() (string, float64) {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)

	best, bestVal := "", -1.0
	for _, name := range names {
		if t[name] > bestVal {
			best, bestVal = name, t[name]
		}
	}
	return best, bestVal
}

// Profile is the engine's identity.
type Profile struct {
	Name   string
	Traits Traits
}

// New creates a profile, validating the traits.
func New(name string, traits Traits) (*Profile, error) {
	if traits == nil {
		traits = DefaultTraits()
	}
	if err := traits.Validate(); err != nil {
		return nil, err
	}
	return &Profile{Name: name, Traits: traits}, nil
}

// Status describes the profile for reporting.
func (p *Profile) Status() map[string]any {
	dominant, level := p.Traits.Dominant()
	return map[string]any{
		"name":           p.Name,
		"traits":         map[string]float64(p.Traits),
		"dominant_trait": dominant,
		"dominant_level": level,
	}
}
