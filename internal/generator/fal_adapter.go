package generator

import (
	"context"
	"fmt"

	"github.com/maauso/scenereel/internal/fal"
)

// FalAdapter adapts the fal.ai queue client to the Generator interface.
type FalAdapter struct {
	client fal.Client
}

// NewFalAdapter creates a new fal.ai generator adapter.
func NewFalAdapter(client fal.Client) *FalAdapter {
	return &FalAdapter{client: client}
}

// Name implements Generator.
func (a *FalAdapter) Name() string {
	return "fal"
}

// Submit enqueues a text-to-video request on fal.ai.
func (a *FalAdapter) Submit(ctx context.Context, req Request) (string, error) {
	id, err := a.client.Submit(ctx, fal.SubmitOptions{
		Prompt:   req.Prompt,
		Width:    req.Width,
		Height:   req.Height,
		Duration: req.DurationHint,
	})
	if err != nil {
		return "", fmt.Errorf("fal adapter submit: %w", err)
	}
	return id, nil
}

// Poll checks the status of a fal.ai request.
func (a *FalAdapter) Poll(ctx context.Context, jobID string) (PollResult, error) {
	result, err := a.client.Poll(ctx, jobID)
	if err != nil {
		return PollResult{}, fmt.Errorf("fal adapter poll: %w", err)
	}

	var status Status
	switch result.Status {
	case fal.StatusInQueue:
		status = StatusInQueue
	case fal.StatusInProgress:
		status = StatusRunning
	case fal.StatusCompleted:
		status = StatusCompleted
	case fal.StatusFailed:
		status = StatusFailed
	default:
		status = Status(result.Status)
	}

	return PollResult{
		Status:   status,
		VideoURL: result.VideoURL,
		Error:    result.Error,
	}, nil
}

// Compile-time check that FalAdapter implements Generator.
var _ Generator = (*FalAdapter)(nil)
