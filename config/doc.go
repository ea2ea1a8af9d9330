// Package config resolves engine configuration from layered sources.
//
// Values merge with the following priority (highest wins):
//
//	overrides > environment > config file > defaults
//
// The config file is YAML, by default ~/.config/quorumflow/config.yaml.
// Environment variables use the QUORUMFLOW_ prefix: the key
// "similarity_threshold" maps to QUORUMFLOW_SIMILARITY_THRESHOLD.
// Every resolved value remembers which layer supplied it, which keeps
// "why is it using that weight" debuggable.
package config
