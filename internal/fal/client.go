package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/maauso/scenereel/internal/retry"
)

// Static errors for fal.ai client operations.
var (
	// ErrAPIKeyNotSet is returned when no key is configured and FAL_KEY is unset.
	ErrAPIKeyNotSet = errors.New("fal: FAL_KEY environment variable is not set")
	// ErrPromptRequired is returned when a request has no prompt.
	ErrPromptRequired = errors.New("fal: prompt is required")
	// ErrRequestIDRequired is returned when polling without a request ID.
	ErrRequestIDRequired = errors.New("fal: request ID is required")
	// ErrNoRequestIDReturned is returned when the queue does not return a request ID.
	ErrNoRequestIDReturned = errors.New("fal: submit failed: no request ID returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("fal: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("fal: rate limited")
	// ErrRequestFailed is returned for any other non-2xx status code.
	ErrRequestFailed = errors.New("fal: request failed")
)

// Client defines the interface for interacting with the fal.ai queue.
type Client interface {
	// Submit enqueues a text-to-video request and returns its request ID.
	Submit(ctx context.Context, opts SubmitOptions) (requestID string, err error)

	// Poll checks a request and, once completed, fetches its result.
	Poll(ctx context.Context, requestID string) (PollResult, error)
}

// HTTPClient is the HTTP implementation of Client.
type HTTPClient struct {
	apiKey      string
	model       string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithModel sets the model path, e.g. "fal-ai/fast-svd/text-to-video".
func WithModel(model string) ClientOption {
	return func(hc *HTTPClient) {
		if model != "" {
			hc.model = model
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom queue base URL.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a fal.ai queue client. The key falls back to FAL_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		model:       DefaultModel,
		baseURL:     "https://queue.fal.run",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("FAL_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// Model returns the configured model path.
func (c *HTTPClient) Model() string {
	return c.model
}

// Submit enqueues a text-to-video request.
func (c *HTTPClient) Submit(ctx context.Context, opts SubmitOptions) (string, error) {
	if opts.Prompt == "" {
		return "", ErrPromptRequired
	}
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = 576, 1024
	}
	if opts.FPS == 0 {
		opts.FPS = DefaultFPS
	}
	if opts.NegativePrompt == "" {
		opts.NegativePrompt = DefaultNegativePrompt
	}

	body, err := json.Marshal(submitRequest{
		Prompt:            opts.Prompt,
		NegativePrompt:    opts.NegativePrompt,
		Width:             opts.Width,
		Height:            opts.Height,
		NumFrames:         NumFrames(opts.Duration, opts.FPS),
		FPS:               opts.FPS,
		GuidanceScale:     9.0,
		NumInferenceSteps: 30,
	})
	if err != nil {
		return "", fmt.Errorf("fal: marshal request: %w", err)
	}

	var resp submitResponse
	url := fmt.Sprintf("%s/%s", c.baseURL, c.model)
	if err := c.doRequestWithRetry(ctx, http.MethodPost, url, body, &resp); err != nil {
		return "", err
	}
	if resp.RequestID == "" {
		return "", ErrNoRequestIDReturned
	}
	return resp.RequestID, nil
}

// Poll checks the status of a request. A completed request's result is
// fetched in the same call.
func (c *HTTPClient) Poll(ctx context.Context, requestID string) (PollResult, error) {
	if requestID == "" {
		return PollResult{}, ErrRequestIDRequired
	}

	base := fmt.Sprintf("%s/%s/requests/%s", c.baseURL, appID(c.model), requestID)

	var status statusResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, base+"/status", nil, &status); err != nil {
		return PollResult{}, err
	}

	if status.Error != "" {
		return PollResult{Status: StatusFailed, Error: status.Error}, nil
	}

	result := PollResult{Status: Status(status.Status)}
	if result.Status != StatusCompleted {
		return result, nil
	}

	var out resultResponse
	if err := c.doRequestWithRetry(ctx, http.MethodGet, base, nil, &out); err != nil {
		return PollResult{}, err
	}
	result.VideoURL = out.Video.URL
	return result, nil
}

// doRequestWithRetry runs doRequest under the client's retry budget. 5xx,
// 429 and transport failures are retried with a doubling backoff.
func (c *HTTPClient) doRequestWithRetry(ctx context.Context, method, url string, body []byte, result any) error {
	return retry.Do(ctx, c.retryPolicy(), func(ctx context.Context, _ int) error {
		return c.doRequest(ctx, method, url, body, result)
	})
}

func (c *HTTPClient) retryPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: c.maxRetries + 1, Delay: c.baseBackoff, Multiplier: 2}
}

// doRequest performs one call and decodes the JSON answer into result.
func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("fal: create request: %w", err))
	}

	req.Header.Set("Authorization", "Key "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(fmt.Errorf("fal: %w", ctx.Err()))
		}
		return fmt.Errorf("fal: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("fal: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, respBody)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %s", ErrRateLimited, respBody)
		}
		return retry.Permanent(fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return retry.Permanent(fmt.Errorf("fal: unmarshal response: %w", err))
		}
	}
	return nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
