package livepeer

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

// Static errors for Livepeer client operations.
var (
	// ErrAPIKeyNotSet is returned when no key is configured and LIVEPEER_API_KEY is unset.
	ErrAPIKeyNotSet = errors.New("livepeer: LIVEPEER_API_KEY environment variable is not set")
	// ErrTextRequired is returned when a speech request has no text.
	ErrTextRequired = errors.New("livepeer: text is required")
	// ErrNoAudioURL is returned when the gateway response has no audio URL.
	ErrNoAudioURL = errors.New("livepeer: response contained no audio URL")
	// ErrNoUploadURL is returned when the request-upload handshake returns no URL.
	ErrNoUploadURL = errors.New("livepeer: failed to get upload URL")
	// ErrAssetFailed is returned when a hosted asset fails processing.
	ErrAssetFailed = errors.New("livepeer: asset processing failed")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("livepeer: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("livepeer: rate limited")
	// ErrRequestFailed is returned for any other non-2xx status code.
	ErrRequestFailed = errors.New("livepeer: request failed")
)

// HTTPClient talks to the Livepeer AI gateway and Livepeer Studio.
type HTTPClient struct {
	apiKey       string
	gatewayURL   string
	studioURL    string
	model        string
	httpClient   *http.Client
	uploadClient *http.Client
	maxRetries   int
	baseBackoff  time.Duration
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithGatewayURL sets the AI gateway base URL.
func WithGatewayURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		if u != "" {
			hc.gatewayURL = strings.TrimRight(u, "/")
		}
	}
}

// WithStudioURL sets the Studio API base URL.
func WithStudioURL(u string) ClientOption {
	return func(hc *HTTPClient) {
		if u != "" {
			hc.studioURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTTSModel sets the text-to-speech model.
func WithTTSModel(model string) ClientOption {
	return func(hc *HTTPClient) {
		if model != "" {
			hc.model = model
		}
	}
}

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithUploadHTTPClient sets the HTTP client used for file uploads, which
// usually needs a longer timeout than API calls.
func WithUploadHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.uploadClient = c
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

// NewClient creates a Livepeer client. The key falls back to LIVEPEER_API_KEY.
func NewClient(opts ...ClientOption) (*HTTPClient, error) {
	c := &HTTPClient{
		gatewayURL:   "https://dream-gateway.livepeer.cloud",
		studioURL:    "https://livepeer.studio",
		model:        DefaultTTSModel,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		uploadClient: &http.Client{},
		maxRetries:   3,
		baseBackoff:  1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("LIVEPEER_API_KEY")
	}
	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// TextToSpeech synthesizes speech and returns the URL of the audio file.
func (c *HTTPClient) TextToSpeech(ctx context.Context, req TTSRequest) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", ErrTextRequired
	}

	body, err := json.Marshal(ttsRequest{
		ModelID:     c.model,
		Text:        req.Text,
		Description: req.Description,
	})
	if err != nil {
		return "", fmt.Errorf("livepeer: marshal request: %w", err)
	}

	var resp ttsResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.gatewayURL+"/text-to-speech", body, &resp); err != nil {
		return "", err
	}
	if resp.Audio.URL == "" {
		return "", ErrNoAudioURL
	}
	return resp.Audio.URL, nil
}

// RequestUpload asks Studio for a direct upload target for a new public asset.
func (c *HTTPClient) RequestUpload(ctx context.Context, name string) (UploadTarget, error) {
	body, err := json.Marshal(requestUploadRequest{
		Name:           name,
		StaticMP4:      true,
		PlaybackPolicy: playbackPolicy{Type: "public"},
	})
	if err != nil {
		return UploadTarget{}, fmt.Errorf("livepeer: marshal request: %w", err)
	}

	var resp requestUploadResponse
	if err := c.doRequestWithRetry(ctx, http.MethodPost, c.studioURL+"/api/asset/request-upload", body, &resp); err != nil {
		return UploadTarget{}, err
	}
	if resp.URL == "" {
		return UploadTarget{}, ErrNoUploadURL
	}

	return UploadTarget{
		URL:         resp.URL,
		TusEndpoint: resp.TusEndpoint,
		AssetID:     resp.Asset.ID,
		PlaybackID:  resp.Asset.PlaybackID,
	}, nil
}

// Put streams body to an upload target. It is not retried since body is
// consumed by the first attempt.
func (c *HTTPClient) Put(ctx context.Context, target string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, body)
	if err != nil {
		return fmt.Errorf("livepeer: create upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "video/mp4")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return fmt.Errorf("livepeer: upload: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: upload status %d: %s", ErrRequestFailed, resp.StatusCode, string(msg))
	}
	return nil
}

// Asset fetches the current state of a hosted asset.
func (c *HTTPClient) Asset(ctx context.Context, id string) (Asset, error) {
	var resp assetJSON
	if err := c.doRequestWithRetry(ctx, http.MethodGet, c.studioURL+"/api/asset/"+id, nil, &resp); err != nil {
		return Asset{}, err
	}
	return resp.toAsset(), nil
}

// WaitReady polls an asset every interval until it is ready or failed.
func (c *HTTPClient) WaitReady(ctx context.Context, id string, interval time.Duration) (Asset, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		asset, err := c.Asset(ctx, id)
		if err != nil {
			return Asset{}, err
		}

		switch asset.Phase {
		case PhaseReady:
			return asset, nil
		case PhaseFailed:
			return asset, fmt.Errorf("%w: %s", ErrAssetFailed, asset.Error)
		}

		select {
		case <-ctx.Done():
			return Asset{}, fmt.Errorf("livepeer: wait for asset %s: %w", id, ctx.Err())
		case <-ticker.C:
		}
	}
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

func (c *HTTPClient) doRequest(ctx context.Context, method, url string, body []byte, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return retry.Permanent(fmt.Errorf("livepeer: create request: %w", err))
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return retry.Permanent(fmt.Errorf("livepeer: %w", ctx.Err()))
		}
		return fmt.Errorf("livepeer: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("livepeer: read response: %w", err)
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
			return retry.Permanent(fmt.Errorf("livepeer: unmarshal response: %w", err))
		}
	}
	return nil
}
