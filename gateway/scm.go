package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/randalmurphal/quorumflow/provider"
)

// Default SCM wrapper settings.
const (
	DefaultSCMTimeout    = 30 * time.Second
	DefaultSCMMaxRetries = 3
	DefaultSCMRetryWait  = 1 * time.Second
)

// SCMConfig holds settings for the source-control wrapper.
type SCMConfig struct {
	// Timeout bounds each provider call attempt.
	Timeout time.Duration

	// MaxRetries bounds attempts for transient provider failures.
	MaxRetries int

	// RetryWait is the initial wait between retries; it doubles per attempt.
	RetryWait time.Duration

	// Logger is used for retry outcomes. Defaults to slog.Default.
	Logger *slog.Logger
}

func (c SCMConfig) timeout() time.Duration {
	if c.Timeout == 0 {
		return DefaultSCMTimeout
	}
	return c.Timeout
}

func (c SCMConfig) maxRetries() int {
	if c.MaxRetries <= 0 {
		return DefaultSCMMaxRetries
	}
	return c.MaxRetries
}

func (c SCMConfig) retryWait() time.Duration {
	if c.RetryWait <= 0 {
		return DefaultSCMRetryWait
	}
	return c.RetryWait
}

func (c SCMConfig) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// SCM wraps a provider with per-call timeouts, bounded retries for
// transient failures, and translation into the gateway error taxonomy.
// It implements provider.Interface, so stage code uses it transparently.
type SCM struct {
	p   provider.Interface
	cfg SCMConfig
}

// NewSCM wraps the provider.
func NewSCM(p provider.Interface, cfg SCMConfig) *SCM {
	return &SCM{p: p, cfg: cfg}
}

// do runs fn with a per-attempt timeout, retrying transient API failures
// with exponential backoff, and translates the final error.
func (s *SCM) do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := range s.cfg.maxRetries() {
		attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.timeout())
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			return nil
		}
		lastErr = err

		if !transientProviderErr(err) || attempt == s.cfg.maxRetries()-1 {
			break
		}

		wait := s.cfg.retryWait() * time.Duration(1<<attempt)
		s.cfg.logger().Warn("provider call failed, retrying",
			"op", op,
			"attempt", attempt+1,
			"wait", wait,
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}

	return s.translate(op, lastErr)
}

// transientProviderErr reports whether the provider failure may succeed on
// retry.
func transientProviderErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	return false
}

// translate maps provider errors into the gateway taxonomy. Sentinels the
// engine branches on (branch conflicts, PR dedup probes) pass through.
func (s *SCM) translate(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrBranchExists):
		return fmt.Errorf("%s: %w", op, ErrBranchConflict)
	case errors.Is(err, provider.ErrPRExists),
		errors.Is(err, provider.ErrPRNotFound),
		errors.Is(err, provider.ErrNoChanges),
		errors.Is(err, provider.ErrReleaseExists):
		return err
	case errors.Is(err, provider.ErrUnauthorized):
		return fmt.Errorf("%s: %w: %w", op, ErrFatalProvider, err)
	case errors.Is(err, context.Canceled):
		return err
	}

	// API failures and exhausted timeouts are fatal for the attempt.
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrFatalProvider, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}

// CreateBranch implements provider.Interface.
func (s *SCM) CreateBranch(ctx context.Context, name, base string) error {
	return s.do(ctx, "create branch", func(ctx context.Context) error {
		return s.p.CreateBranch(ctx, name, base)
	})
}

// BranchExists implements provider.Interface.
func (s *SCM) BranchExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.do(ctx, "branch exists", func(ctx context.Context) error {
		var err error
		exists, err = s.p.BranchExists(ctx, name)
		return err
	})
	return exists, err
}

// Commit implements provider.Interface.
func (s *SCM) Commit(ctx context.Context, opts provider.CommitOptions) (string, error) {
	var sha string
	err := s.do(ctx, "commit", func(ctx context.Context) error {
		var err error
		sha, err = s.p.Commit(ctx, opts)
		return err
	})
	return sha, err
}

// CommitExists implements provider.Interface.
func (s *SCM) CommitExists(ctx context.Context, branch, message string) (bool, error) {
	var exists bool
	err := s.do(ctx, "commit exists", func(ctx context.Context) error {
		var err error
		exists, err = s.p.CommitExists(ctx, branch, message)
		return err
	})
	return exists, err
}

// OpenPR implements provider.Interface.
func (s *SCM) OpenPR(ctx context.Context, opts provider.PROptions) (*provider.PullRequest, error) {
	var pr *provider.PullRequest
	err := s.do(ctx, "open pr", func(ctx context.Context) error {
		var err error
		pr, err = s.p.OpenPR(ctx, opts)
		return err
	})
	return pr, err
}

// PRForBranch implements provider.Interface.
func (s *SCM) PRForBranch(ctx context.Context, head string) (*provider.PullRequest, error) {
	var pr *provider.PullRequest
	err := s.do(ctx, "pr for branch", func(ctx context.Context) error {
		var err error
		pr, err = s.p.PRForBranch(ctx, head)
		return err
	})
	return pr, err
}

// MergePR implements provider.Interface.
func (s *SCM) MergePR(ctx context.Context, id int, opts provider.MergeOptions) error {
	return s.do(ctx, "merge pr", func(ctx context.Context) error {
		return s.p.MergePR(ctx, id, opts)
	})
}

// CreateRelease implements provider.Interface.
func (s *SCM) CreateRelease(ctx context.Context, opts provider.ReleaseOptions) (*provider.Release, error) {
	var rel *provider.Release
	err := s.do(ctx, "create release", func(ctx context.Context) error {
		var err error
		rel, err = s.p.CreateRelease(ctx, opts)
		return err
	})
	return rel, err
}

// ReleaseExists implements provider.Interface.
func (s *SCM) ReleaseExists(ctx context.Context, tag string) (bool, error) {
	var exists bool
	err := s.do(ctx, "release exists", func(ctx context.Context) error {
		var err error
		exists, err = s.p.ReleaseExists(ctx, tag)
		return err
	})
	return exists, err
}

// Deploy implements provider.Interface.
func (s *SCM) Deploy(ctx context.Context, environment, ref string) (*provider.Deployment, error) {
	var dep *provider.Deployment
	err := s.do(ctx, "deploy", func(ctx context.Context) error {
		var err error
		dep, err = s.p.Deploy(ctx, environment, ref)
		return err
	})
	return dep, err
}

// DeploymentExists implements provider.Interface.
func (s *SCM) DeploymentExists(ctx context.Context, environment, ref string) (bool, error) {
	var exists bool
	err := s.do(ctx, "deployment exists", func(ctx context.Context) error {
		var err error
		exists, err = s.p.DeploymentExists(ctx, environment, ref)
		return err
	})
	return exists, err
}
