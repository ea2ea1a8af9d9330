package config

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	return path
}

func TestResolveLayering(t *testing.T) {
	path := writeConfigFile(t, "similarity_threshold: 0.9\nbase_branch: develop\n")

	t.Setenv(EnvPrefix+"BASE_BRANCH", "trunk")

	r := NewResolver(ResolverConfig{FilePath: path, ErrWriter: io.Discard})
	resolved := r.Resolve()

	// Default, untouched by file or env.
	if got, src := resolved.GetWithSource(KeyMaxStageAttempts); got != "3" || src != SourceDefault {
		t.Errorf("max_stage_attempts = %q from %q, want 3 from default", got, src)
	}

	// File overrides default.
	if got, src := resolved.GetWithSource(KeySimilarityThreshold); got != "0.9" || src != SourceFile {
		t.Errorf("similarity_threshold = %q from %q, want 0.9 from file", got, src)
	}

	// Env overrides file.
	if got, src := resolved.GetWithSource(KeyBaseBranch); got != "trunk" || src != SourceEnv {
		t.Errorf("base_branch = %q from %q, want trunk from env", got, src)
	}
}

func TestResolveWithOverrides(t *testing.T) {
	r := NewResolver(ResolverConfig{FilePath: filepath.Join(t.TempDir(), "missing.yaml"), ErrWriter: io.Discard})
	resolved := r.ResolveWithOverrides(map[string]string{
		KeyAutoMerge: "true",
	})

	if got, src := resolved.GetWithSource(KeyAutoMerge); got != "true" || src != SourceOverride {
		t.Errorf("auto_merge = %q from %q, want true from override", got, src)
	}
}

func TestMalformedFileWarns(t *testing.T) {
	path := writeConfigFile(t, ":\nnot yaml at all: [")

	var buf strings.Builder
	r := NewResolver(ResolverConfig{FilePath: path, ErrWriter: &buf})
	resolved := r.Resolve()

	if len(r.Warnings) == 0 {
		t.Error("expected a warning for malformed config file")
	}
	// Defaults still apply.
	if resolved.Get(KeyBaseBranch) != "main" {
		t.Errorf("base_branch = %q, want default main", resolved.Get(KeyBaseBranch))
	}
}

func TestParseSettingsDefaults(t *testing.T) {
	r := NewResolver(ResolverConfig{FilePath: filepath.Join(t.TempDir(), "missing.yaml"), ErrWriter: io.Discard})
	s, err := ParseSettings(r.Resolve())
	if err != nil {
		t.Fatalf("ParseSettings failed: %v", err)
	}

	if len(s.EnabledSources) != 5 || s.EnabledSources[0] != "claude" {
		t.Errorf("EnabledSources = %v", s.EnabledSources)
	}
	if s.SimilarityThreshold != 0.8 {
		t.Errorf("SimilarityThreshold = %v, want 0.8", s.SimilarityThreshold)
	}
	if s.MaxStageAttempts != 3 {
		t.Errorf("MaxStageAttempts = %d, want 3", s.MaxStageAttempts)
	}
	if s.SourceTimeout != 30*time.Second || s.StageTimeout != 2*time.Minute {
		t.Errorf("timeouts = %v/%v", s.SourceTimeout, s.StageTimeout)
	}
	if s.AutoMerge || s.AutoDeploy {
		t.Error("auto_merge and auto_deploy must default to off")
	}
}

func TestParseSettingsWeights(t *testing.T) {
	path := writeConfigFile(t, `source_weights: "claude=1.5, gemini=0.5"`)

	r := NewResolver(ResolverConfig{FilePath: path, ErrWriter: io.Discard})
	s, err := ParseSettings(r.Resolve())
	if err != nil {
		t.Fatalf("ParseSettings failed: %v", err)
	}

	if s.SourceWeights["claude"] != 1.5 || s.SourceWeights["gemini"] != 0.5 {
		t.Errorf("SourceWeights = %v", s.SourceWeights)
	}
}

func TestParseSettingsRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"threshold out of range", "similarity_threshold: 1.5"},
		{"threshold not a number", "similarity_threshold: big"},
		{"zero attempts", "max_stage_attempts: 0"},
		{"bad duration", "stage_timeout: soon"},
		{"malformed weight", `source_weights: "claude"`},
		{"negative weight", `source_weights: "claude=-1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfigFile(t, tt.content)
			r := NewResolver(ResolverConfig{FilePath: path, ErrWriter: io.Discard})
			if _, err := ParseSettings(r.Resolve()); err == nil {
				t.Error("expected error for malformed setting")
			}
		})
	}
}
