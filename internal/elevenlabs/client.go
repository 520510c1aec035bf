// Package elevenlabs provides an HTTP client for the ElevenLabs
// sound-generation API.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/maauso/scenereel/internal/retry"
)

// Static errors for ElevenLabs client operations.
var (
	// ErrAPIKeyNotSet is returned when no key is configured and ELEVENLABS_API_KEY is unset.
	ErrAPIKeyNotSet = errors.New("elevenlabs: ELEVENLABS_API_KEY environment variable is not set")
	// ErrTextRequired is returned when a request has no description.
	ErrTextRequired = errors.New("elevenlabs: text is required")
	// ErrEmptyAudio is returned when the API answers with no audio bytes.
	ErrEmptyAudio = errors.New("elevenlabs: empty audio response")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("elevenlabs: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("elevenlabs: rate limited")
	// ErrRequestFailed is returned for any other non-2xx status code.
	ErrRequestFailed = errors.New("elevenlabs: request failed")
)

// Defaults for sound generation.
const (
	DefaultModel        = "sound-effects-v1"
	DefaultOutputFormat = "mp3_44100_128"
)

// SoundRequest describes a sound effect to generate.
type SoundRequest struct {
	Text     string
	Duration float64 // seconds; zero lets the model decide
}

type soundRequest struct {
	Text            string   `json:"text"`
	ModelID         string   `json:"model_id"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
	OutputFormat    string   `json:"output_format"`
}

// HTTPClient is the HTTP implementation of the sound-generation client.
type HTTPClient struct {
	apiKey      string
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

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithBaseURL sets a custom API base URL.
func WithBaseURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseURL = strings.TrimRight(u, "/")
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

// NewClient creates an ElevenLabs client. The key falls back to ELEVENLABS_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		baseURL:     "https://api.elevenlabs.io",
		httpClient:  &http.Client{Timeout: 60 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// GenerateSound returns the encoded audio bytes (mp3) for req.
func (c *HTTPClient) GenerateSound(ctx context.Context, req SoundRequest) ([]byte, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrTextRequired
	}

	payload := soundRequest{
		Text:         req.Text,
		ModelID:      DefaultModel,
		OutputFormat: DefaultOutputFormat,
	}
	if req.Duration > 0 {
		d := req.Duration
		payload.DurationSeconds = &d
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	policy := retry.Policy{MaxAttempts: c.maxRetries + 1, Delay: c.baseBackoff, Multiplier: 2}
	return retry.Value(ctx, policy, func(ctx context.Context, _ int) ([]byte, error) {
		return c.post(ctx, c.baseURL+"/v1/sound-generation", body)
	})
}

func (c *HTTPClient) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, retry.Permanent(fmt.Errorf("elevenlabs: create request: %w", err))
	}

	req.Header.Set("xi-api-key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, retry.Permanent(fmt.Errorf("elevenlabs: %w", ctx.Err()))
		}
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w %d: %s", ErrServerError, resp.StatusCode, respBody)
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %s", ErrRateLimited, respBody)
		}
		return nil, retry.Permanent(fmt.Errorf("%w with status %d: %s", ErrRequestFailed, resp.StatusCode, respBody))
	}

	if len(respBody) == 0 {
		return nil, ErrEmptyAudio
	}
	return respBody, nil
}
