package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultMaxRetries is the default number of retry attempts.
const DefaultMaxRetries = 3

// DefaultRetryWait is the default initial wait between retries.
const DefaultRetryWait = 1 * time.Second

// Client provides common HTTP functionality for AI source clients. Each
// remote source gets its own Client carrying the source's base URL and
// auth callback; retries cover network failures, rate limits, and 5xx.
type Client struct {
	client     *http.Client
	baseURL    string
	sourceName string
	maxRetries int
	retryWait  time.Duration

	// beforeRequest is called before each request (for auth headers, etc.)
	beforeRequest func(req *http.Request)
}

// ClientConfig holds configuration for Client.
type ClientConfig struct {
	Client        *http.Client
	BaseURL       string
	SourceName    string
	MaxRetries    int
	RetryWait     time.Duration
	BeforeRequest func(req *http.Request)
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		client:        cfg.Client,
		baseURL:       cfg.BaseURL,
		sourceName:    cfg.SourceName,
		maxRetries:    cfg.MaxRetries,
		retryWait:     cfg.RetryWait,
		beforeRequest: cfg.BeforeRequest,
	}

	if c.client == nil {
		c.client = &http.Client{Timeout: DefaultTimeout}
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryWait <= 0 {
		c.retryWait = DefaultRetryWait
	}

	return c
}

// Request executes an HTTP request with retries for transient errors.
func (c *Client) Request(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader

	url := c.baseURL + path

	var lastErr error
	for attempt := range c.maxRetries {
		// Rebuild the body reader on each attempt
		if body != nil {
			data, err := json.Marshal(body)
			if err != nil {
				return nil, fmt.Errorf("marshal request body: %w", err)
			}
			bodyReader = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		if c.beforeRequest != nil {
			c.beforeRequest(req)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if attempt < c.maxRetries-1 {
				wait := c.retryWait * time.Duration(1<<attempt)
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(wait):
					continue
				}
			}
			return nil, fmt.Errorf("%s request failed: %w", c.sourceName, err)
		}

		// Retry on rate limit or server errors
		if (resp.StatusCode == 429 || resp.StatusCode >= 500) && attempt < c.maxRetries-1 {
			wait := c.retryWaitFor(resp, attempt)
			resp.Body.Close()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return resp, nil
	}

	return nil, lastErr
}

// Get performs a GET request and decodes the response into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	resp, err := c.Request(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, path, result)
}

// Post performs a POST request and decodes the response into result.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	resp, err := c.Request(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.handleResponse(resp, path, result)
}

// handleResponse checks status and decodes the response body.
func (c *Client) handleResponse(resp *http.Response, path string, result any) error {
	if resp.StatusCode >= 400 {
		return c.parseError(resp, path)
	}

	if result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", c.sourceName, err)
	}

	return nil
}

// parseError parses an error response into an APIError.
func (c *Client) parseError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{
		Source:     c.sourceName,
		StatusCode: resp.StatusCode,
		Endpoint:   path,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	// Most AI APIs nest the message under an error object; some return
	// it at the top level.
	var errResp struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Error.Message != "" {
			apiErr.Message = errResp.Error.Message
		} else if errResp.Message != "" {
			apiErr.Message = errResp.Message
		}
	}

	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}

	return apiErr
}

// retryWaitFor calculates the wait time for a retry, honoring Retry-After.
func (c *Client) retryWaitFor(resp *http.Response, attempt int) time.Duration {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	return c.retryWait * time.Duration(1<<attempt)
}
