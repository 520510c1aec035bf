package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/scenereel/internal/job"
	"github.com/maauso/scenereel/internal/scene"
)

// CreationRequest asks for one movie, either as ready scenes or as a prompt
// for the storyboard planner.
type CreationRequest struct {
	RequestID string        `json:"request_id"`
	Scenes    []scene.Scene `json:"scenes,omitempty"`
	Prompt    string        `json:"prompt,omitempty"`
}

// Request validation errors.
var (
	ErrAmbiguousRequest = errors.New("request has both scenes and a prompt")
	ErrPromptsDisabled  = errors.New("prompt requests are not enabled")
)

// Movies is the part of the movie service the consumer drives.
type Movies interface {
	Submit(ctx context.Context, requestID string, scenes []scene.Scene) (*job.Job, error)
	Process(ctx context.Context, jobID string) error
}

// Storyboard turns a prompt into scenes.
type Storyboard interface {
	Plan(ctx context.Context, prompt string) ([]scene.Scene, error)
}

// NewCreationHandler returns a handler that submits each request and runs
// it in the background. Invalid and duplicate requests are marked and
// skipped. Prompt requests are planned with sb; with a nil sb they are
// invalid. run starts the processing of an accepted job; nil starts it on
// a new goroutine.
func NewCreationHandler(movies Movies, sb Storyboard, run func(func()), logger *slog.Logger) *TypedMessageHandler[CreationRequest] {
	if logger == nil {
		logger = slog.Default()
	}
	if run == nil {
		run = func(f func()) { go f() }
	}
	return &TypedMessageHandler[CreationRequest]{
		AlwaysMark: true,
		Validate: func(msg *CreationRequest) error {
			hasPrompt := strings.TrimSpace(msg.Prompt) != ""
			switch {
			case hasPrompt && len(msg.Scenes) > 0:
				return ErrAmbiguousRequest
			case hasPrompt && sb == nil:
				return ErrPromptsDisabled
			case hasPrompt:
				return nil
			}
			return scene.Validate(msg.Scenes)
		},
		Process: func(ctx context.Context, msg *CreationRequest) error {
			if len(msg.Scenes) == 0 {
				scenes, err := sb.Plan(ctx, msg.Prompt)
				if err != nil {
					return fmt.Errorf("plan storyboard: %w", err)
				}
				msg.Scenes = scenes
			}

			created, err := movies.Submit(ctx, msg.RequestID, msg.Scenes)
			if errors.Is(err, job.ErrDuplicateRequest) {
				logger.Info("duplicate creation request skipped", slog.String("request_id", msg.RequestID))
				return nil
			}
			if err != nil {
				return err
			}

			jobID := created.ID
			bg := context.WithoutCancel(ctx)
			run(func() {
				if err := movies.Process(bg, jobID); err != nil {
					logger.Error("movie processing failed",
						slog.String("job_id", jobID),
						slog.String("request_id", msg.RequestID),
						slog.Any("error", err),
					)
				}
			})
			return nil
		},
	}
}
