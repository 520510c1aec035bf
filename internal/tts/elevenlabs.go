package tts

import (
	"context"
	"fmt"
	"os"

	"github.com/maauso/scenereel/internal/elevenlabs"
	"github.com/maauso/scenereel/internal/storage"
)

type soundClient interface {
	GenerateSound(ctx context.Context, req elevenlabs.SoundRequest) ([]byte, error)
}

// ElevenLabsSoundGenerator implements SoundGenerator with the ElevenLabs
// sound-generation API. The raw mp3 response is spooled to spoolDir and
// reported as a file URL.
type ElevenLabsSoundGenerator struct {
	client   soundClient
	spoolDir string
}

// NewElevenLabsSoundGenerator creates a SoundGenerator backed by client. An
// empty spoolDir means os.TempDir().
func NewElevenLabsSoundGenerator(client soundClient, spoolDir string) *ElevenLabsSoundGenerator {
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}
	return &ElevenLabsSoundGenerator{client: client, spoolDir: spoolDir}
}

// GenerateSound implements SoundGenerator.
func (g *ElevenLabsSoundGenerator) GenerateSound(ctx context.Context, description string, seconds float64) (Asset, error) {
	if g.client == nil {
		return Asset{}, ErrNotConfigured
	}

	audio, err := g.client.GenerateSound(ctx, elevenlabs.SoundRequest{Text: description, Duration: seconds})
	if err != nil {
		return Asset{}, fmt.Errorf("elevenlabs sound: %w", err)
	}

	f, err := os.CreateTemp(g.spoolDir, "sfx-*.mp3")
	if err != nil {
		return Asset{}, fmt.Errorf("elevenlabs sound: spool: %w", err)
	}
	if _, err := f.Write(audio); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return Asset{}, fmt.Errorf("elevenlabs sound: spool: %w", err)
	}
	if err := f.Close(); err != nil {
		return Asset{}, fmt.Errorf("elevenlabs sound: spool: %w", err)
	}

	return Asset{URL: storage.FileURL(f.Name())}, nil
}

var _ SoundGenerator = (*ElevenLabsSoundGenerator)(nil)
