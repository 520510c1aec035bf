// Package fal provides an HTTP client for fal.ai's queue API, used for
// text-to-video generation.
package fal

import (
	"math"
	"strings"
)

// Status represents the status of a queued fal.ai request.
type Status string

// Queue statuses reported by fal.ai.
const (
	StatusInQueue    Status = "IN_QUEUE"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	// StatusFailed is not sent by fal.ai; it marks a status response that
	// carried an error.
	StatusFailed Status = "FAILED"
)

// DefaultModel is the text-to-video model used when none is configured.
const DefaultModel = "fal-ai/fast-svd/text-to-video"

// Frame limits of the fast-svd family.
const (
	DefaultFPS = 24
	MaxFrames  = 48
)

// SubmitOptions contains the parameters of a text-to-video request.
type SubmitOptions struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Duration       float64 // seconds; converted to num_frames
	FPS            int
}

// DefaultNegativePrompt steers the model away from landscape framing and artefacts.
const DefaultNegativePrompt = "poor quality, distortion, low resolution, blurry, text, watermark, landscape orientation, wide format, horizontal video, 16:9 aspect ratio"

// NumFrames converts a duration hint into a frame count capped at MaxFrames.
// A non-positive duration yields MaxFrames.
func NumFrames(duration float64, fps int) int {
	if fps <= 0 {
		fps = DefaultFPS
	}
	if duration <= 0 {
		return MaxFrames
	}
	n := int(math.Ceil(duration * float64(fps)))
	if n > MaxFrames {
		return MaxFrames
	}
	return n
}

// appID returns the owner/name part of a model path. Status and result
// endpoints are addressed by app, not by the full model path.
func appID(model string) string {
	parts := strings.Split(strings.Trim(model, "/"), "/")
	if len(parts) <= 2 {
		return strings.Join(parts, "/")
	}
	return parts[0] + "/" + parts[1]
}

// submitRequest is the body posted to the queue.
type submitRequest struct {
	Prompt            string  `json:"prompt"`
	NegativePrompt    string  `json:"negative_prompt,omitempty"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumFrames         int     `json:"num_frames"`
	FPS               int     `json:"fps"`
	GuidanceScale     float64 `json:"guidance_scale"`
	NumInferenceSteps int     `json:"num_inference_steps"`
}

// submitResponse is returned when a request is enqueued.
type submitResponse struct {
	RequestID string `json:"request_id"`
}

// statusResponse is returned by the status endpoint.
type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// resultResponse is the completed request payload.
type resultResponse struct {
	Video struct {
		URL string `json:"url"`
	} `json:"video"`
}

// PollResult contains the result of polling a request.
type PollResult struct {
	Status   Status
	VideoURL string // set when Status is StatusCompleted
	Error    string
}
