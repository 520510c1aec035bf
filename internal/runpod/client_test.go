package runpod

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maauso/scenereel/internal/retry"
)

// newTestClient returns a client for an endpoint served by handler.
func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...ClientOption) *HTTPClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]ClientOption{
		WithAPIKey("test-key"),
		WithBaseURL(server.URL),
		WithBaseBackoff(time.Millisecond),
	}, opts...)

	client, err := NewClient("test-endpoint", opts...)
	require.NoError(t, err)
	return client
}

func TestStatus_IsTerminal(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []Status{StatusInQueue, StatusRunning, StatusInProgress, Status("UNKNOWN")} {
		assert.False(t, s.IsTerminal(), s)
	}
}

func TestNewClient(t *testing.T) {
	t.Run("missing endpoint", func(t *testing.T) {
		_, err := NewClient("", WithAPIKey("key"))
		assert.ErrorIs(t, err, ErrEndpointIDRequired)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Setenv("RUNPOD_API_KEY", "")
		_, err := NewClient("test-endpoint")
		assert.ErrorIs(t, err, ErrAPIKeyNotSet)
	})

	t.Run("key from environment", func(t *testing.T) {
		t.Setenv("RUNPOD_API_KEY", "env-key")
		client, err := NewClient("test-endpoint")
		require.NoError(t, err)
		assert.Equal(t, "env-key", client.apiKey)
	})

	t.Run("option overrides environment", func(t *testing.T) {
		t.Setenv("RUNPOD_API_KEY", "env-key")
		client, err := NewClient("test-endpoint", WithAPIKey("explicit-key"))
		require.NoError(t, err)
		assert.Equal(t, "explicit-key", client.apiKey)
	})

	t.Run("custom http client", func(t *testing.T) {
		custom := &http.Client{Timeout: time.Minute}
		client, err := NewClient("test-endpoint", WithAPIKey("key"), WithHTTPClient(custom))
		require.NoError(t, err)
		assert.Same(t, custom, client.httpClient)
	})
}

func TestSubmit(t *testing.T) {
	var got runRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/test-endpoint/run", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(runResponse{ID: "job-123", Status: "IN_QUEUE"})
	})

	jobID, err := client.Submit(context.Background(), SubmitOptions{Prompt: "a lighthouse at dusk", Duration: 4})
	require.NoError(t, err)

	assert.Equal(t, "job-123", jobID)
	assert.Equal(t, "a lighthouse at dusk", got.Input.Prompt)
	assert.InDelta(t, 4.0, got.Input.Duration, 1e-9)
	assert.Equal(t, 576, got.Input.Width)
	assert.Equal(t, 1024, got.Input.Height)
	assert.Equal(t, 24, got.Input.FPS)
}

func TestSubmit_Failures(t *testing.T) {
	t.Run("prompt required", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})
		_, err := client.Submit(context.Background(), SubmitOptions{})
		assert.ErrorIs(t, err, ErrPromptRequired)
	})

	t.Run("error body", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(runResponse{Error: "invalid input"})
		})
		_, err := client.Submit(context.Background(), SubmitOptions{Prompt: "p"})
		assert.ErrorIs(t, err, ErrSubmitFailed)
		assert.Contains(t, err.Error(), "invalid input")
	})

	t.Run("no job id", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})
		_, err := client.Submit(context.Background(), SubmitOptions{Prompt: "p"})
		assert.ErrorIs(t, err, ErrNoJobIDReturned)
	})

	t.Run("context cancelled", func(t *testing.T) {
		release := make(chan struct{})
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			<-release
		})
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		_, err := client.Submit(ctx, SubmitOptions{Prompt: "p"})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestPoll(t *testing.T) {
	tests := []struct {
		name     string
		response statusResponse
		want     PollResult
	}{
		{"in queue", statusResponse{Status: "IN_QUEUE"}, PollResult{Status: StatusInQueue}},
		{"in progress", statusResponse{Status: "IN_PROGRESS"}, PollResult{Status: StatusInProgress}},
		{
			"completed inline",
			statusResponse{Status: "COMPLETED", Output: statusOutput{Video: "AAAA"}},
			PollResult{Status: StatusCompleted, VideoBase64: "AAAA"},
		},
		{
			"completed hosted",
			statusResponse{Status: "COMPLETED", Output: statusOutput{VideoURL: "https://cdn.example.com/clip.mp4"}},
			PollResult{Status: StatusCompleted, VideoURL: "https://cdn.example.com/clip.mp4"},
		},
		{
			"failed",
			statusResponse{Status: "FAILED", Error: "out of memory"},
			PollResult{Status: StatusFailed, Error: "out of memory"},
		},
		{
			"timed out",
			statusResponse{Status: "TIMED_OUT", Error: "execution timeout"},
			PollResult{Status: StatusTimedOut, Error: "execution timeout"},
		},
		{
			"output ignored while running",
			statusResponse{Status: "RUNNING", Output: statusOutput{VideoURL: "https://cdn.example.com/partial.mp4"}},
			PollResult{Status: StatusRunning},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/test-endpoint/status/job-1", r.URL.Path)
				_ = json.NewEncoder(w).Encode(tt.response)
			})

			got, err := client.Poll(context.Background(), "job-1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("job id required", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
		_, err := client.Poll(context.Background(), "")
		assert.ErrorIs(t, err, ErrJobIDRequired)
	})
}

func TestCancel(t *testing.T) {
	var called atomic.Bool
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/test-endpoint/cancel/job-7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(statusResponse{ID: "job-7", Status: "CANCELLED"})
	})

	require.NoError(t, client.Cancel(context.Background(), "job-7"))
	assert.True(t, called.Load())
	assert.ErrorIs(t, client.Cancel(context.Background(), ""), ErrJobIDRequired)
}

func TestRetry(t *testing.T) {
	t.Run("transient failures", func(t *testing.T) {
		var attempts atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			switch attempts.Add(1) {
			case 1:
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			case 2:
				http.Error(w, "slow down", http.StatusTooManyRequests)
			default:
				_ = json.NewEncoder(w).Encode(statusResponse{Status: "COMPLETED"})
			}
		}, WithMaxRetries(3))

		got, err := client.Poll(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("exhausted", func(t *testing.T) {
		var attempts atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		}, WithMaxRetries(2))

		_, err := client.Poll(context.Background(), "job-1")
		assert.ErrorIs(t, err, retry.ErrExhausted)
		assert.ErrorIs(t, err, ErrServerError)
		assert.Equal(t, int32(3), attempts.Load())
	})

	t.Run("client error is not retried", func(t *testing.T) {
		var attempts atomic.Int32
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			attempts.Add(1)
			http.Error(w, "bad request", http.StatusBadRequest)
		}, WithMaxRetries(3))

		_, err := client.Poll(context.Background(), "job-1")
		assert.ErrorIs(t, err, ErrRequestFailed)
		assert.NotErrorIs(t, err, retry.ErrExhausted)
		assert.Equal(t, int32(1), attempts.Load())
	})
}
