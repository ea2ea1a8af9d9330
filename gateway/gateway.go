package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/randalmurphal/quorumflow/consensus"
	"github.com/randalmurphal/quorumflow/http"
	"github.com/randalmurphal/quorumflow/source"
)

// Default gateway timeouts.
const (
	DefaultSourceTimeout  = 30 * time.Second
	DefaultOverallTimeout = 2 * time.Minute
)

// Config holds gateway configuration.
type Config struct {
	// SourceTimeout bounds each individual source call.
	// Defaults to DefaultSourceTimeout if zero.
	SourceTimeout time.Duration

	// OverallTimeout bounds the whole fan-out.
	// Defaults to DefaultOverallTimeout if zero.
	OverallTimeout time.Duration

	// Logger is used for per-source outcomes. Defaults to slog.Default.
	Logger *slog.Logger
}

func (c Config) sourceTimeout() time.Duration {
	if c.SourceTimeout == 0 {
		return DefaultSourceTimeout
	}
	return c.SourceTimeout
}

func (c Config) overallTimeout() time.Duration {
	if c.OverallTimeout == 0 {
		return DefaultOverallTimeout
	}
	return c.OverallTimeout
}

func (c Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Gateway fans workflow requests out to AI sources.
type Gateway struct {
	registry *source.Registry
	cfg      Config
}

// New creates a gateway over the source registry.
func New(registry *source.Registry, cfg Config) *Gateway {
	return &Gateway{registry: registry, cfg: cfg}
}

// Collect asks every enabled source for a proposal in parallel and returns
// one raw response per source, in registration order. Individual failures
// never fail the collection; they travel in RawResponse.Err so the
// normalizer can account for them.
func (g *Gateway) Collect(ctx context.Context, req source.Request) []consensus.RawResponse {
	adapters := g.registry.Enabled()
	responses := make([]consensus.RawResponse, len(adapters))

	ctx, cancel := context.WithTimeout(ctx, g.cfg.overallTimeout())
	defer cancel()

	var group errgroup.Group
	for i, adapter := range adapters {
		group.Go(func() error {
			responses[i] = g.collectOne(ctx, adapter, req)
			return nil
		})
	}
	group.Wait()

	return responses
}

func (g *Gateway) collectOne(ctx context.Context, adapter source.Adapter, req source.Request) consensus.RawResponse {
	log := g.cfg.logger()

	callCtx, cancel := context.WithTimeout(ctx, g.cfg.sourceTimeout())
	defer cancel()

	start := time.Now()
	resp, err := adapter.Propose(callCtx, req)
	elapsed := time.Since(start)

	raw := consensus.RawResponse{
		SourceID: adapter.ID(),
		Elapsed:  elapsed,
	}

	if err != nil {
		raw.Err = classifySourceErr(adapter.ID(), err)
		log.Warn("source proposal failed",
			"source", adapter.ID(),
			"request_id", req.RequestID,
			"elapsed", elapsed,
			"error", raw.Err)
		return raw
	}

	raw.Content = resp.Content
	raw.Confidence = resp.Confidence
	raw.Reasoning = resp.Reasoning

	log.Debug("source proposal collected",
		"source", adapter.ID(),
		"request_id", req.RequestID,
		"elapsed", elapsed,
		"model", resp.Model)

	return raw
}

// classifySourceErr wraps transient failures in ErrTransientSource so
// callers can decide whether a whole-request retry is worthwhile.
func classifySourceErr(sourceID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %w", sourceID, ErrTransientSource, err)
	}
	if http.IsRetryable(err) {
		return fmt.Errorf("%s: %w: %w", sourceID, ErrTransientSource, err)
	}
	return fmt.Errorf("%s: %w", sourceID, err)
}
