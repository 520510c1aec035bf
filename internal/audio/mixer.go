// Package audio mixes per-scene dialogue and sound-effect tracks.
package audio

import (
	"context"
	"errors"

	"github.com/maauso/scenereel/internal/media"
)

// ErrNoAudioProvided is returned when neither a dialogue nor a sound-effect
// track exists for a scene.
var ErrNoAudioProvided = errors.New("at least one audio file must be provided")

// Gain multipliers applied before mixing; dialogue sits above the ambience.
const (
	DialogueGain    = 1.5
	SoundEffectGain = 0.8
)

// Mixer combines a dialogue and a sound-effect track into one.
type Mixer interface {
	// Mix overlays dialogue and sfx into out. Either input may be nil; with a
	// single input that asset is returned unchanged. With neither input
	// ErrNoAudioProvided is returned.
	Mix(ctx context.Context, dialogue, sfx *media.Asset, out string) (media.Asset, error)
}
