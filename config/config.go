package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to upper-cased key names for environment lookup.
const EnvPrefix = "QUORUMFLOW_"

// ResolverConfig configures the layered resolver.
type ResolverConfig struct {
	// FilePath is the config file location. Defaults to
	// ~/.config/quorumflow/config.yaml.
	FilePath string

	// Defaults provides the default values for configuration keys.
	// If nil, Defaults() is used.
	Defaults map[string]string

	// ErrWriter is where warnings are written. Defaults to os.Stderr.
	ErrWriter io.Writer
}

// Resolver merges configuration layers.
type Resolver struct {
	config ResolverConfig

	// Warnings collects non-fatal issues during resolution.
	Warnings []string
}

// NewResolver creates a configuration resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if cfg.FilePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.FilePath = filepath.Join(home, ".config", "quorumflow", "config.yaml")
		}
	}
	if cfg.Defaults == nil {
		cfg.Defaults = Defaults()
	}
	if cfg.ErrWriter == nil {
		cfg.ErrWriter = os.Stderr
	}

	return &Resolver{config: cfg}
}

// warn adds a warning and prints it.
func (r *Resolver) warn(msg string) {
	r.Warnings = append(r.Warnings, msg)
	fmt.Fprintf(r.config.ErrWriter, "Warning: %s\n", msg)
}

// Resolved holds the final merged configuration.
type Resolved struct {
	values  map[string]string
	sources map[string]Source
}

// Get returns the value for a key, or empty string if not set.
func (c *Resolved) Get(key string) string {
	return c.values[key]
}

// Source returns the source of a key's value.
func (c *Resolved) Source(key string) Source {
	return c.sources[key]
}

// GetWithSource returns both the value and its source.
func (c *Resolved) GetWithSource(key string) (string, Source) {
	return c.values[key], c.sources[key]
}

// All returns a copy of all key-value pairs.
func (c *Resolved) All() map[string]string {
	result := make(map[string]string, len(c.values))
	for k, v := range c.values {
		result[k] = v
	}
	return result
}

// Resolve builds the final config by merging all layers.
func (r *Resolver) Resolve() *Resolved {
	cfg := &Resolved{
		values:  make(map[string]string),
		sources: make(map[string]Source),
	}

	r.applyDefaults(cfg)
	r.applyFile(cfg)
	r.applyEnv(cfg)

	return cfg
}

// ResolveWithOverrides resolves config and applies programmatic overrides
// on top.
func (r *Resolver) ResolveWithOverrides(overrides map[string]string) *Resolved {
	cfg := r.Resolve()

	for key, value := range overrides {
		if value != "" {
			cfg.values[key] = value
			cfg.sources[key] = SourceOverride
		}
	}

	return cfg
}

func (r *Resolver) applyDefaults(cfg *Resolved) {
	for key, value := range r.config.Defaults {
		cfg.values[key] = value
		cfg.sources[key] = SourceDefault
	}
}

func (r *Resolver) applyFile(cfg *Resolved) {
	if r.config.FilePath == "" {
		return
	}

	data, err := os.ReadFile(r.config.FilePath)
	if err != nil {
		return // File doesn't exist - not an error
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		r.warn(fmt.Sprintf("could not parse %s: %v", r.config.FilePath, err))
		return
	}

	for key, value := range parsed {
		if strVal := toString(value); strVal != "" {
			cfg.values[key] = strVal
			cfg.sources[key] = SourceFile
		}
	}
}

func (r *Resolver) applyEnv(cfg *Resolved) {
	allKeys := make(map[string]bool)
	for k := range r.config.Defaults {
		allKeys[k] = true
	}
	for k := range cfg.values {
		allKeys[k] = true
	}

	for key := range allKeys {
		envKey := EnvPrefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		if value := os.Getenv(envKey); value != "" {
			cfg.values[key] = value
			cfg.sources[key] = SourceEnv
		}
	}
}

// FilePath returns the path to the config file.
func (r *Resolver) FilePath() string {
	return r.config.FilePath
}

func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case int, int64, float64:
		return fmt.Sprintf("%v", val)
	default:
		return ""
	}
}
