package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Configuration keys.
const (
	KeyEnabledSources      = "enabled_sources"
	KeySourceWeights       = "source_weights"
	KeyPriorityOrder       = "priority_order"
	KeySimilarityThreshold = "similarity_threshold"
	KeyMaxStageAttempts    = "max_stage_attempts"
	KeySourceTimeout       = "source_timeout"
	KeyStageTimeout        = "stage_timeout"
	KeyBaseBranch          = "base_branch"
	KeyEnvironment         = "environment"
	KeyLedgerDir           = "ledger_dir"
	KeyAutoMerge           = "auto_merge"
	KeyAutoDeploy          = "auto_deploy"
)

// Defaults returns the built-in defaults for every key.
func Defaults() map[string]string {
	return map[string]string{
		KeyEnabledSources:      "claude,deepseek,perplexity,gemini,grok",
		KeySourceWeights:       "",
		KeyPriorityOrder:       "claude,deepseek,perplexity,gemini,grok",
		KeySimilarityThreshold: "0.8",
		KeyMaxStageAttempts:    "3",
		KeySourceTimeout:       "30s",
		KeyStageTimeout:        "2m",
		KeyBaseBranch:          "main",
		KeyEnvironment:         "production",
		KeyLedgerDir:           ".quorumflow",
		KeyAutoMerge:           "false",
		KeyAutoDeploy:          "false",
	}
}

// Settings is the typed view of a resolved configuration.
type Settings struct {
	// EnabledSources lists source IDs to fan out to.
	EnabledSources []string

	// SourceWeights maps source IDs to consensus weights. Sources
	// without an entry get weight 1.0.
	SourceWeights map[string]float64

	// PriorityOrder ranks sources for consensus tie-breaking.
	PriorityOrder []string

	// SimilarityThreshold controls proposal clustering.
	SimilarityThreshold float64

	// MaxStageAttempts bounds retries per workflow stage.
	MaxStageAttempts int

	// SourceTimeout bounds each AI source call.
	SourceTimeout time.Duration

	// StageTimeout bounds each stage attempt.
	StageTimeout time.Duration

	// BaseBranch is the branch workflow branches fork from.
	BaseBranch string

	// Environment is the deployment target.
	Environment string

	// LedgerDir is where the operation ledger lives.
	LedgerDir string

	// AutoMerge gates the reviewing stage's merge step.
	AutoMerge bool

	// AutoDeploy gates the deploying stage for feature and hotfix runs.
	AutoDeploy bool
}

// ParseSettings converts a resolved configuration into typed Settings.
// Malformed values produce an error naming the offending key.
func ParseSettings(resolved *Resolved) (*Settings, error) {
	s := &Settings{
		EnabledSources: splitList(resolved.Get(KeyEnabledSources)),
		PriorityOrder:  splitList(resolved.Get(KeyPriorityOrder)),
		BaseBranch:     resolved.Get(KeyBaseBranch),
		Environment:    resolved.Get(KeyEnvironment),
		LedgerDir:      resolved.Get(KeyLedgerDir),
	}

	var err error
	if s.SourceWeights, err = parseWeights(resolved.Get(KeySourceWeights)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeySourceWeights, err)
	}

	if s.SimilarityThreshold, err = strconv.ParseFloat(resolved.Get(KeySimilarityThreshold), 64); err != nil {
		return nil, fmt.Errorf("%s: %w", KeySimilarityThreshold, err)
	}
	if s.SimilarityThreshold < 0 || s.SimilarityThreshold > 1 {
		return nil, fmt.Errorf("%s: must be in [0,1], got %v", KeySimilarityThreshold, s.SimilarityThreshold)
	}

	if s.MaxStageAttempts, err = strconv.Atoi(resolved.Get(KeyMaxStageAttempts)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyMaxStageAttempts, err)
	}
	if s.MaxStageAttempts < 1 {
		return nil, fmt.Errorf("%s: must be at least 1, got %d", KeyMaxStageAttempts, s.MaxStageAttempts)
	}

	if s.SourceTimeout, err = time.ParseDuration(resolved.Get(KeySourceTimeout)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeySourceTimeout, err)
	}
	if s.StageTimeout, err = time.ParseDuration(resolved.Get(KeyStageTimeout)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyStageTimeout, err)
	}

	if s.AutoMerge, err = strconv.ParseBool(resolved.Get(KeyAutoMerge)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyAutoMerge, err)
	}
	if s.AutoDeploy, err = strconv.ParseBool(resolved.Get(KeyAutoDeploy)); err != nil {
		return nil, fmt.Errorf("%s: %w", KeyAutoDeploy, err)
	}

	return s, nil
}

// Load resolves and parses settings in one step.
func Load(cfg ResolverConfig) (*Settings, error) {
	return ParseSettings(NewResolver(cfg).Resolve())
}

// splitList parses a comma-separated list, trimming whitespace and
// dropping empties.
func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// parseWeights parses "claude=1.5,gemini=0.8" into a weight map.
func parseWeights(raw string) (map[string]float64, error) {
	weights := make(map[string]float64)
	for _, entry := range splitList(raw) {
		id, val, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("malformed weight entry %q", entry)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("weight for %q: %w", id, err)
		}
		if w < 0 {
			return nil, fmt.Errorf("weight for %q must be non-negative, got %v", id, w)
		}
		weights[strings.TrimSpace(id)] = w
	}
	return weights, nil
}
