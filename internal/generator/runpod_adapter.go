package generator

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"

	"github.com/maauso/scenereel/internal/runpod"
	"github.com/maauso/scenereel/internal/storage"
)

// RunPodAdapter adapts the RunPod client to the Generator interface.
// Inline base64 output is spooled to spoolDir and reported as a file URL.
type RunPodAdapter struct {
	client   runpod.Client
	spoolDir string
}

// NewRunPodAdapter creates a new RunPod generator adapter. An empty spoolDir
// means os.TempDir().
func NewRunPodAdapter(client runpod.Client, spoolDir string) *RunPodAdapter {
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	return &RunPodAdapter{client: client, spoolDir: spoolDir}
}

// Name implements Generator.
func (a *RunPodAdapter) Name() string {
	return "runpod"
}

// Submit sends a text-to-video job to RunPod.
func (a *RunPodAdapter) Submit(ctx context.Context, req Request) (string, error) {
	jobID, err := a.client.Submit(ctx, runpod.SubmitOptions{
		Prompt:   req.Prompt,
		Width:    req.Width,
		Height:   req.Height,
		Duration: req.DurationHint,
	})
	if err != nil {
		return "", fmt.Errorf("runpod adapter submit: %w", err)
	}
	return jobID, nil
}

// Poll checks the status of a RunPod job.
func (a *RunPodAdapter) Poll(ctx context.Context, jobID string) (PollResult, error) {
	result, err := a.client.Poll(ctx, jobID)
	if err != nil {
		return PollResult{}, fmt.Errorf("runpod adapter poll: %w", err)
	}

	var status Status
	switch result.Status {
	case runpod.StatusInQueue:
		status = StatusInQueue
	case runpod.StatusRunning, runpod.StatusInProgress:
		status = StatusRunning
	case runpod.StatusCompleted:
		status = StatusCompleted
	case runpod.StatusFailed:
		status = StatusFailed
	case runpod.StatusCancelled:
		status = StatusCancelled
	case runpod.StatusTimedOut:
		status = StatusTimedOut
	default:
		status = Status(result.Status)
	}

	out := PollResult{Status: status, Error: result.Error}
	if status != StatusCompleted {
		return out, nil
	}

	switch {
	case result.VideoURL != "":
		out.VideoURL = result.VideoURL
	case result.VideoBase64 != "":
		path, err := a.spool(jobID, result.VideoBase64)
		if err != nil {
			return PollResult{}, err
		}
		out.VideoURL = storage.FileURL(path)
	}
	return out, nil
}

// Cancel implements Canceler.
func (a *RunPodAdapter) Cancel(ctx context.Context, jobID string) error {
	if err := a.client.Cancel(ctx, jobID); err != nil {
		return fmt.Errorf("runpod adapter cancel: %w", err)
	}
	return nil
}

func (a *RunPodAdapter) spool(jobID, b64 string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("runpod adapter: decode video: %w", err)
	}

	f, err := os.CreateTemp(a.spoolDir, "runpod-"+jobID+"-*.mp4")
	if err != nil {
		return "", fmt.Errorf("runpod adapter: spool video: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("runpod adapter: spool video: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("runpod adapter: spool video: %w", err)
	}
	return f.Name(), nil
}

var (
	_ Generator = (*RunPodAdapter)(nil)
	_ Canceler  = (*RunPodAdapter)(nil)
)
