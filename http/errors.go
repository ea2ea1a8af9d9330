// Package http provides shared HTTP client patterns for remote AI source
// clients.
package http

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors for source clients.
var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUnauthorized indicates invalid or missing authentication.
	ErrUnauthorized = errors.New("authentication failed")

	// ErrForbidden indicates the caller lacks permission for the operation.
	ErrForbidden = errors.New("permission denied")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrBadRequest indicates the request was malformed.
	ErrBadRequest = errors.New("bad request")

	// ErrServerError indicates a server-side error occurred.
	ErrServerError = errors.New("server error")
)

// APIError represents an error from a remote AI source API.
type APIError struct {
	// Source is the source identifier (e.g., "deepseek", "gemini").
	Source string

	// StatusCode is the HTTP status code returned.
	StatusCode int

	// Message is the error message from the API.
	Message string

	// Endpoint is the API endpoint that was called.
	Endpoint string

	// RequestID is the request ID for debugging (if available).
	RequestID string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s API error (%d) at %s [%s]: %s",
			e.Source, e.StatusCode, e.Endpoint, e.RequestID, e.Message)
	}
	return fmt.Sprintf("%s API error (%d) at %s: %s",
		e.Source, e.StatusCode, e.Endpoint, e.Message)
}

// Unwrap returns the underlying sentinel error based on status code.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case 400:
		return ErrBadRequest
	case 401:
		return ErrUnauthorized
	case 403:
		return ErrForbidden
	case 404:
		return ErrNotFound
	case 429:
		return ErrRateLimited
	default:
		if e.StatusCode >= 500 {
			return ErrServerError
		}
		return nil
	}
}

// RateLimitError represents a rate limit being exceeded.
type RateLimitError struct {
	// Source is the source that rate limited.
	Source string

	// RetryAfter is how long to wait before retrying.
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s rate limit exceeded, retry after %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("%s rate limit exceeded", e.Source)
}

// Unwrap returns ErrRateLimited.
func (e *RateLimitError) Unwrap() error {
	return ErrRateLimited
}

// IsUnauthorized reports whether the error indicates authentication failed.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden)
}

// IsRetryable reports whether the error is transient and should be retried.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServerError) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 && apiErr.StatusCode < 600
	}

	return false
}
