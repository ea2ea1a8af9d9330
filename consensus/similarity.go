package consensus

import "strings"

// Similarity computes Jaccard similarity over lowercased word sets.
// Returns a value in [0,1]; identical token sets score 1.0, disjoint sets
// score 0.0. Two empty strings are considered identical.
func Similarity(a, b string) float64 {
	setA := wordSet(a)
	setB := wordSet(b)

	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}

	intersection := 0
	for w := range setA {
		if _, ok := setB[w]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'`")
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}
