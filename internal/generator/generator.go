// Package generator provides the common interface for text-to-video providers.
// Provider adapters normalize each API's responses into the types defined here.
package generator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Static errors for generation.
var (
	// ErrJobFailed is returned when a provider reports a terminal non-success status.
	ErrJobFailed = errors.New("generation job failed")
	// ErrNoOutput is returned when a job completes without a usable video.
	ErrNoOutput = errors.New("generation job returned no video")
)

// Status represents the status of a generation job.
type Status string

// Common job statuses across providers.
const (
	StatusPending   Status = "PENDING"   // Job submitted but not yet running
	StatusInQueue   Status = "IN_QUEUE"  // Job waiting in queue
	StatusRunning   Status = "RUNNING"   // Job is currently processing
	StatusCompleted Status = "COMPLETED" // Job finished successfully
	StatusFailed    Status = "FAILED"    // Job failed with error
	StatusCancelled Status = "CANCELLED" // Job was cancelled
	StatusTimedOut  Status = "TIMED_OUT" // Job exceeded time limit
)

// IsTerminal returns true if the status represents a final state.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	default:
		return false
	}
}

// Request describes one clip to generate.
type Request struct {
	Prompt       string
	Width        int
	Height       int
	DurationHint float64 // seconds; providers may ignore it
}

// PollResult contains the result of polling a job's status.
type PollResult struct {
	Status   Status
	VideoURL string // http(s) or file URL, set when Status is StatusCompleted
	Error    string // provider message, set when the job failed
}

// Asset is the canonical output of every provider: a fetchable video URL.
type Asset struct {
	URL string
}

// Generator defines the interface for video generation providers.
type Generator interface {
	// Name identifies the provider in logs and errors.
	Name() string

	// Submit starts a generation job and returns its ID.
	Submit(ctx context.Context, req Request) (jobID string, err error)

	// Poll checks the status of a job.
	Poll(ctx context.Context, jobID string) (PollResult, error)
}

// Canceler is implemented by generators that can stop a submitted job.
type Canceler interface {
	Cancel(ctx context.Context, jobID string) error
}

// cancelTimeout bounds the best-effort cancel sent when a poll is abandoned.
const cancelTimeout = 10 * time.Second

// Generate submits req and polls every interval until the job is terminal.
// When ctx ends first and g is a Canceler, the job is cancelled upstream.
func Generate(ctx context.Context, g Generator, req Request, interval time.Duration) (Asset, error) {
	jobID, err := g.Submit(ctx, req)
	if err != nil {
		return Asset{}, err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, err := g.Poll(ctx, jobID)
		if err != nil {
			return Asset{}, err
		}

		if result.Status.IsTerminal() {
			if result.Status != StatusCompleted {
				return Asset{}, fmt.Errorf("%w: job %s %s: %s", ErrJobFailed, jobID, result.Status, result.Error)
			}
			if result.VideoURL == "" {
				return Asset{}, fmt.Errorf("%w: job %s", ErrNoOutput, jobID)
			}
			return Asset{URL: result.VideoURL}, nil
		}

		select {
		case <-ctx.Done():
			cancelJob(ctx, g, jobID)
			return Asset{}, fmt.Errorf("poll job %s: %w", jobID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func cancelJob(ctx context.Context, g Generator, jobID string) {
	c, ok := g.(Canceler)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cancelTimeout)
	defer cancel()
	_ = c.Cancel(ctx, jobID)
}

// GenerationError is returned once a scene's clip could not be generated
// within the retry budget.
type GenerationError struct {
	Provider string
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation error (%s, %d attempts): %v", e.Provider, e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
