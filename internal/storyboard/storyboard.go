// Package storyboard turns a free-text prompt into the scene list the
// pipeline assembles.
package storyboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/maauso/scenereel/internal/scene"
)

// DefaultSceneDuration is the length given to scenes without one, and to
// the single scene built when no storyboard could be written.
const DefaultSceneDuration = 8.0

// ErrEmptyPrompt is returned when there is nothing to plan.
var ErrEmptyPrompt = errors.New("storyboard: prompt is empty")

// Writer drafts scenes for a prompt, typically with an LLM.
type Writer interface {
	Write(ctx context.Context, prompt string) ([]scene.Scene, error)
}

// Planner resolves prompts into valid scenes. When the writer is missing or
// fails, the prompt itself becomes a single scene.
type Planner struct {
	writer   Writer
	duration float64
	logger   *slog.Logger
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithSceneDuration overrides DefaultSceneDuration.
func WithSceneDuration(seconds float64) PlannerOption {
	return func(p *Planner) {
		if seconds > 0 {
			p.duration = seconds
		}
	}
}

// NewPlanner creates a Planner. writer may be nil.
func NewPlanner(writer Writer, logger *slog.Logger, opts ...PlannerOption) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Planner{writer: writer, duration: DefaultSceneDuration, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan returns the scenes for prompt. Only an empty prompt or a done ctx
// fail; every writer problem degrades to the single-scene fallback.
func (p *Planner) Plan(ctx context.Context, prompt string) ([]scene.Scene, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}
	if p.writer == nil {
		return p.fallback(prompt), nil
	}

	scenes, err := p.writer.Write(ctx, prompt)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("storyboard: %w", ctxErr)
	}
	if err == nil {
		scenes = p.normalize(prompt, scenes)
		err = scene.Validate(scenes)
	}
	if err != nil {
		p.logger.Warn("storyboard unavailable, using prompt as a single scene", slog.Any("error", err))
		return p.fallback(prompt), nil
	}

	p.logger.Info("storyboard written", slog.Int("scenes", len(scenes)))
	return scenes, nil
}

// normalize fills scene gaps: a blank prompt takes the user's, a missing
// duration takes the planner's.
func (p *Planner) normalize(prompt string, scenes []scene.Scene) []scene.Scene {
	out := make([]scene.Scene, len(scenes))
	for i, sc := range scenes {
		if strings.TrimSpace(sc.Prompt) == "" {
			sc.Prompt = prompt
		}
		if sc.Duration <= 0 {
			sc.Duration = p.duration
		}
		out[i] = sc
	}
	return out
}

func (p *Planner) fallback(prompt string) []scene.Scene {
	return []scene.Scene{{Prompt: prompt, Duration: p.duration}}
}
