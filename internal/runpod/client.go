package runpod

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

// Static errors for RunPod client operations.
var (
	// ErrEndpointIDRequired is returned when the endpoint ID is not provided.
	ErrEndpointIDRequired = errors.New("runpod: endpoint ID is required")
	// ErrAPIKeyNotSet is returned when no key is configured and RUNPOD_API_KEY is unset.
	ErrAPIKeyNotSet = errors.New("runpod: RUNPOD_API_KEY environment variable is not set")
	// ErrPromptRequired is returned when a job is submitted without a prompt.
	ErrPromptRequired = errors.New("runpod: prompt is required")
	// ErrJobIDRequired is returned when polling or cancelling without a job ID.
	ErrJobIDRequired = errors.New("runpod: job ID is required")
	// ErrNoJobIDReturned is returned when /run answers without a job ID.
	ErrNoJobIDReturned = errors.New("runpod: submit failed: no job ID returned")
	// ErrSubmitFailed is returned when /run reports an error instead of a job.
	ErrSubmitFailed = errors.New("runpod: submit failed")
	// ErrServerError is returned for 5xx responses.
	ErrServerError = errors.New("runpod: server error")
	// ErrRateLimited is returned for 429 responses.
	ErrRateLimited = errors.New("runpod: rate limited")
	// ErrRequestFailed is returned for any other non-2xx response.
	ErrRequestFailed = errors.New("runpod: request failed")
)

// Client defines the interface for interacting with a RunPod endpoint.
type Client interface {
	// Submit queues a text-to-video job and returns its ID.
	Submit(ctx context.Context, opts SubmitOptions) (jobID string, err error)

	// Poll checks the status of a job.
	Poll(ctx context.Context, jobID string) (PollResult, error)

	// Cancel stops a queued or running job.
	Cancel(ctx context.Context, jobID string) error
}

// HTTPClient talks to the RunPod serverless REST API.
type HTTPClient struct {
	apiKey      string
	endpointID  string
	baseURL     string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key. Without it RUNPOD_API_KEY is used.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL points the client at another API root, e.g. a test server.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = url
	}
}

// WithMaxRetries sets how often a transient failure is retried.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the first retry delay; it doubles after each retry.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a client for the serverless endpoint endpointID.
func NewClient(endpointID string, opts ...ClientOption) (*HTTPClient, error) {
	if endpointID == "" {
		return nil, ErrEndpointIDRequired
	}

	c := &HTTPClient{
		endpointID:  endpointID,
		baseURL:     "https://api.runpod.ai/v2",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("RUNPOD_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	return c, nil
}

// Submit queues a text-to-video job. Zero size and FPS take the defaults.
func (c *HTTPClient) Submit(ctx context.Context, opts SubmitOptions) (string, error) {
	if opts.Prompt == "" {
		return "", ErrPromptRequired
	}

	defaults := DefaultSubmitOptions()
	if opts.Width == 0 || opts.Height == 0 {
		opts.Width, opts.Height = defaults.Width, defaults.Height
	}
	if opts.FPS == 0 {
		opts.FPS = defaults.FPS
	}

	body, err := json.Marshal(runRequest{Input: runInput{
		Prompt:   opts.Prompt,
		Width:    opts.Width,
		Height:   opts.Height,
		Duration: opts.Duration,
		FPS:      opts.FPS,
	}})
	if err != nil {
		return "", fmt.Errorf("runpod: marshal request: %w", err)
	}

	resp, err := call[runResponse](ctx, c, http.MethodPost, c.url("run"), body)
	if err != nil {
		return "", err
	}

	switch {
	case resp.ID != "":
		return resp.ID, nil
	case resp.Error != "":
		return "", fmt.Errorf("%w: %s", ErrSubmitFailed, resp.Error)
	default:
		return "", ErrNoJobIDReturned
	}
}

// Poll checks the status of a job. Output is only read once the job has
// completed.
func (c *HTTPClient) Poll(ctx context.Context, jobID string) (PollResult, error) {
	if jobID == "" {
		return PollResult{}, ErrJobIDRequired
	}

	resp, err := call[statusResponse](ctx, c, http.MethodGet, c.url("status", jobID), nil)
	if err != nil {
		return PollResult{}, err
	}

	result := PollResult{Status: Status(resp.Status)}
	switch result.Status {
	case StatusCompleted:
		result.VideoURL = resp.Output.VideoURL
		result.VideoBase64 = resp.Output.Video
	case StatusFailed, StatusCancelled, StatusTimedOut:
		result.Error = resp.Error
	}
	return result, nil
}

// Cancel asks RunPod to stop jobID.
func (c *HTTPClient) Cancel(ctx context.Context, jobID string) error {
	if jobID == "" {
		return ErrJobIDRequired
	}
	_, err := call[statusResponse](ctx, c, http.MethodPost, c.url("cancel", jobID), nil)
	return err
}

func (c *HTTPClient) url(parts ...string) string {
	u := c.baseURL + "/" + c.endpointID
	for _, p := range parts {
		u += "/" + p
	}
	return u
}

// call performs one API request under the client's retry budget and decodes
// the JSON answer into T. 5xx, 429 and transport errors are retried.
func call[T any](ctx context.Context, c *HTTPClient, method, url string, body []byte) (T, error) {
	policy := retry.Policy{
		MaxAttempts: c.maxRetries + 1,
		Delay:       c.baseBackoff,
		Multiplier:  2,
	}

	return retry.Value(ctx, policy, func(ctx context.Context, _ int) (T, error) {
		var out T
		raw, err := c.do(ctx, method, url, body)
		if err != nil {
			return out, err
		}
		if err := json.Unmarshal(raw, &out); err != nil {
			return out, retry.Permanent(fmt.Errorf("runpod: unmarshal response: %w", err))
		}
		return out, nil
	})
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("runpod: create request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(fmt.Errorf("runpod: %w", ctx.Err()))
		}
		return nil, fmt.Errorf("runpod: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("runpod: read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, raw)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, raw)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, retry.Permanent(fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, raw))
	}
	return raw, nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
