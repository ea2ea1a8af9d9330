// Package source defines the AI source adapter contract and the adapters
// that speak to concrete backends. A source receives a workflow request and
// returns a raw proposal; the consensus layer handles normalization and
// scoring, so adapters stay thin.
package source
