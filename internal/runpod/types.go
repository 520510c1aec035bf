// Package runpod provides an HTTP client for text-to-video workers deployed
// as RunPod serverless endpoints.
package runpod

// Status represents the status of a RunPod job.
type Status string

// RunPod job statuses aligned with the RunPod API.
const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusRunning    Status = "RUNNING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
	StatusCancelled  Status = "CANCELLED"
	StatusTimedOut   Status = "TIMED_OUT"
)

// IsTerminal returns true if the status is a terminal state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// SubmitOptions contains the parameters of a text-to-video job.
type SubmitOptions struct {
	Prompt   string  // Visual description of the clip
	Width    int     // Video width in pixels
	Height   int     // Video height in pixels
	Duration float64 // Requested clip length in seconds (worker may round)
	FPS      int     // Frames per second (default: 24)
}

// DefaultSubmitOptions returns portrait 576x1024 at 24fps.
func DefaultSubmitOptions() SubmitOptions {
	return SubmitOptions{
		Width:  576,
		Height: 1024,
		FPS:    24,
	}
}

// runRequest represents the request body for RunPod's /run endpoint.
type runRequest struct {
	Input runInput `json:"input"`
}

// runInput represents the input field in a RunPod run request.
type runInput struct {
	Prompt   string  `json:"prompt"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration,omitempty"`
	FPS      int     `json:"fps,omitempty"`
}

// runResponse represents the response from RunPod's /run endpoint.
type runResponse struct {
	ID     string `json:"id"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// statusResponse represents the response from RunPod's /status endpoint.
type statusResponse struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Output statusOutput `json:"output,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// statusOutput represents the output field in a status response. Workers
// return either a hosted URL or the clip inline as base64.
type statusOutput struct {
	VideoURL string `json:"video_url,omitempty"`
	Video    string `json:"video,omitempty"`
}

// PollResult contains the result of polling a job's status.
type PollResult struct {
	Status      Status
	VideoURL    string // Hosted video URL (when the worker uploads its output)
	VideoBase64 string // Base64-encoded video data (when returned inline)
	Error       string // Error message (only set when Status is StatusFailed)
}
