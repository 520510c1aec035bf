// Package tts defines the speech and sound-effect synthesis ports and their
// provider adapters. Every adapter returns a canonical Asset so callers never
// inspect provider response shapes.
package tts

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by adapters whose provider has no credentials.
var ErrNotConfigured = errors.New("tts: provider not configured")

// AmbientVoice is the voice description used when speech synthesis stands in
// for a sound effect.
const AmbientVoice = "Sound effect, ambient and atmospheric"

// Asset is a synthesized audio file reachable by URL (http, https or file).
type Asset struct {
	URL string
}

// Request describes a line of speech.
type Request struct {
	Text        string
	Description string // voice style
}

// Synthesizer turns text into speech.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) (Asset, error)
}

// SoundGenerator turns a description into a sound effect of roughly the
// requested length.
type SoundGenerator interface {
	GenerateSound(ctx context.Context, description string, seconds float64) (Asset, error)
}
