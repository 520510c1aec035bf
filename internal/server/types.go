// Package server provides the HTTP API of the movie service.
// It includes handlers, middleware, routes, and DTOs separated from domain types.
package server

import (
	"time"

	"github.com/maauso/scenereel/internal/job"
	"github.com/maauso/scenereel/internal/scene"
)

// CreateMovieRequest is the HTTP request body for creating a movie.
type CreateMovieRequest struct {
	// RequestID is an optional idempotency key. Resubmitting it is rejected.
	RequestID string `json:"request_id" validate:"omitempty,max=128"`
	// Scenes are the story's scenes in order. Exactly one of Scenes and
	// Prompt is set.
	Scenes []SceneRequest `json:"scenes" validate:"omitempty,max=100,dive"`
	// Prompt is turned into scenes by the storyboard planner.
	Prompt string `json:"prompt" validate:"max=4000"`
}

// SceneRequest describes one scene.
type SceneRequest struct {
	Prompt      string           `json:"prompt" validate:"required,max=2000"`
	Duration    float64          `json:"duration" validate:"gt=0,lte=60"`
	SoundEffect string           `json:"soundEffect" validate:"max=500"`
	Dialogue    *DialogueRequest `json:"dialogue,omitempty"`
}

// DialogueRequest is a spoken line and a description of the voice.
type DialogueRequest struct {
	Text        string `json:"text" validate:"max=1000"`
	Description string `json:"description" validate:"max=500"`
}

func (r CreateMovieRequest) scenes() []scene.Scene {
	out := make([]scene.Scene, len(r.Scenes))
	for i, s := range r.Scenes {
		out[i] = scene.Scene{Prompt: s.Prompt, Duration: s.Duration, SoundEffect: s.SoundEffect}
		if s.Dialogue != nil {
			out[i].Dialogue = &scene.Dialogue{Text: s.Dialogue.Text, Description: s.Dialogue.Description}
		}
	}
	return out
}

// CreateMovieResponse is the HTTP response after accepting a movie.
type CreateMovieResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// MovieResponse is the HTTP representation of a movie job.
type MovieResponse struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id,omitempty"`
	Status           string    `json:"status"`
	Progress         int       `json:"progress"`
	ScenesTotal      int       `json:"scenes_total"`
	ScenesDone       int       `json:"scenes_done"`
	DroppedScenes    []int     `json:"dropped_scenes,omitempty"`
	UploadedBytes    int64     `json:"uploaded_bytes,omitempty"`
	UploadTotalBytes int64     `json:"upload_total_bytes,omitempty"`
	PlaybackURL      string    `json:"playback_url,omitempty"`
	Duration         float64   `json:"duration,omitempty"`
	Error            string    `json:"error,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newMovieResponse(j *job.Job) MovieResponse {
	return MovieResponse{
		ID:               j.ID,
		RequestID:        j.RequestID,
		Status:           string(j.Status),
		Progress:         j.Progress,
		ScenesTotal:      len(j.Scenes),
		ScenesDone:       j.ScenesDone,
		DroppedScenes:    j.Dropped,
		UploadedBytes:    j.UploadSent,
		UploadTotalBytes: j.UploadTotal,
		PlaybackURL:      j.PlaybackURL,
		Duration:         j.Duration,
		Error:            j.Error,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
	}
}

// ListMoviesResponse is the HTTP response for listing movies.
type ListMoviesResponse struct {
	Movies []MovieResponse `json:"movies"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
