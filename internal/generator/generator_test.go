package generator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		want   bool
	}{
		{"pending not terminal", StatusPending, false},
		{"in_queue not terminal", StatusInQueue, false},
		{"running not terminal", StatusRunning, false},
		{"completed is terminal", StatusCompleted, true},
		{"failed is terminal", StatusFailed, true},
		{"cancelled is terminal", StatusCancelled, true},
		{"timed_out is terminal", StatusTimedOut, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.want {
				t.Errorf("Status.IsTerminal() = %v, want %v", got, tt.want)
			}
		})
	}
}

// scriptedGenerator replays a fixed sequence of poll results.
type scriptedGenerator struct {
	submitErr error
	polls     []PollResult
	calls     int
}

func (g *scriptedGenerator) Name() string { return "scripted" }

func (g *scriptedGenerator) Submit(context.Context, Request) (string, error) {
	if g.submitErr != nil {
		return "", g.submitErr
	}
	return "job-1", nil
}

func (g *scriptedGenerator) Poll(context.Context, string) (PollResult, error) {
	r := g.polls[g.calls]
	if g.calls < len(g.polls)-1 {
		g.calls++
	}
	return r, nil
}

// cancelingGenerator records cancels of abandoned jobs.
type cancelingGenerator struct {
	scriptedGenerator
	cancelled []string
	ctxAlive  bool
}

func (g *cancelingGenerator) Cancel(ctx context.Context, jobID string) error {
	g.cancelled = append(g.cancelled, jobID)
	g.ctxAlive = ctx.Err() == nil
	return nil
}

func TestGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("completes after polling", func(t *testing.T) {
		g := &scriptedGenerator{polls: []PollResult{
			{Status: StatusInQueue},
			{Status: StatusRunning},
			{Status: StatusCompleted, VideoURL: "https://cdn/clip.mp4"},
		}}
		asset, err := Generate(ctx, g, Request{Prompt: "p"}, time.Millisecond)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if asset.URL != "https://cdn/clip.mp4" {
			t.Errorf("URL = %q", asset.URL)
		}
	})

	t.Run("failed job", func(t *testing.T) {
		g := &scriptedGenerator{polls: []PollResult{{Status: StatusFailed, Error: "oom"}}}
		_, err := Generate(ctx, g, Request{Prompt: "p"}, time.Millisecond)
		if !errors.Is(err, ErrJobFailed) {
			t.Errorf("expected ErrJobFailed, got %v", err)
		}
	})

	t.Run("completed without output", func(t *testing.T) {
		g := &scriptedGenerator{polls: []PollResult{{Status: StatusCompleted}}}
		_, err := Generate(ctx, g, Request{Prompt: "p"}, time.Millisecond)
		if !errors.Is(err, ErrNoOutput) {
			t.Errorf("expected ErrNoOutput, got %v", err)
		}
	})

	t.Run("submit error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := Generate(ctx, &scriptedGenerator{submitErr: boom}, Request{}, time.Millisecond)
		if !errors.Is(err, boom) {
			t.Errorf("expected submit error, got %v", err)
		}
	})

	t.Run("context cancelled while running", func(t *testing.T) {
		g := &scriptedGenerator{polls: []PollResult{{Status: StatusRunning}}}
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := Generate(cctx, g, Request{Prompt: "p"}, 5*time.Millisecond)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("expected deadline exceeded, got %v", err)
		}
	})

	t.Run("abandoned job is cancelled", func(t *testing.T) {
		g := &cancelingGenerator{scriptedGenerator: scriptedGenerator{polls: []PollResult{{Status: StatusRunning}}}}
		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		_, err := Generate(cctx, g, Request{Prompt: "p"}, 5*time.Millisecond)
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
		if len(g.cancelled) != 1 || g.cancelled[0] != "job-1" {
			t.Errorf("cancelled = %v, want [job-1]", g.cancelled)
		}
		if !g.ctxAlive {
			t.Error("cancel should run with a live context")
		}
	})

	t.Run("finished job is not cancelled", func(t *testing.T) {
		g := &cancelingGenerator{scriptedGenerator: scriptedGenerator{polls: []PollResult{
			{Status: StatusCompleted, VideoURL: "https://cdn/clip.mp4"},
		}}}
		if _, err := Generate(ctx, g, Request{Prompt: "p"}, time.Millisecond); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(g.cancelled) != 0 {
			t.Errorf("cancelled = %v, want none", g.cancelled)
		}
	})
}

func TestGenerationError(t *testing.T) {
	inner := fmt.Errorf("wrapped: %w", ErrJobFailed)
	err := error(&GenerationError{Provider: "fal", Attempts: 5, Err: inner})

	if !errors.Is(err, ErrJobFailed) {
		t.Error("GenerationError should unwrap to ErrJobFailed")
	}
	want := "generation error (fal, 5 attempts): wrapped: generation job failed"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
