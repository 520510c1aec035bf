// Package scene holds the pipeline's input model and its per-scene results.
package scene

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/maauso/scenereel/internal/media"
)

// ErrNoScenes is returned when a batch has no scenes.
var ErrNoScenes = errors.New("at least one scene is required")

// Dialogue is a spoken line and the voice that should say it.
type Dialogue struct {
	Text        string `json:"text"`
	Description string `json:"description"`
}

// Scene is one unit of the story. It is not modified once handed to the
// pipeline.
type Scene struct {
	Prompt      string    `json:"prompt" validate:"required"`
	Duration    float64   `json:"duration" validate:"gt=0"`
	SoundEffect string    `json:"soundEffect"`
	Dialogue    *Dialogue `json:"dialogue,omitempty"`
}

// HasDialogue reports whether the scene has a non-blank line to speak.
func (s Scene) HasDialogue() bool {
	return s.Dialogue != nil && strings.TrimSpace(s.Dialogue.Text) != ""
}

// AudioResult is the audio produced for one scene. Combined is set whenever
// Dialogue or SoundEffect is; it is the single existing track or their mix.
type AudioResult struct {
	Dialogue    *media.Asset
	SoundEffect *media.Asset
	Combined    *media.Asset
}

// VideoResult is the clip produced for the scene at Index.
type VideoResult struct {
	Video media.Asset
	Index int
}

type batch struct {
	Scenes []Scene `validate:"required,min=1,dive"`
}

var validate = validator.New()

// Validate checks a batch of scenes.
func Validate(scenes []Scene) error {
	if len(scenes) == 0 {
		return ErrNoScenes
	}
	if err := validate.Struct(batch{Scenes: scenes}); err != nil {
		return fmt.Errorf("invalid scenes: %w", err)
	}
	return nil
}
