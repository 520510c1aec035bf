package tts

import (
	"context"
	"fmt"

	"github.com/maauso/scenereel/internal/livepeer"
)

type speechClient interface {
	TextToSpeech(ctx context.Context, req livepeer.TTSRequest) (string, error)
}

// LivepeerSynthesizer implements Synthesizer with the Livepeer AI gateway.
type LivepeerSynthesizer struct {
	client speechClient
}

// NewLivepeerSynthesizer creates a Synthesizer backed by client.
func NewLivepeerSynthesizer(client speechClient) *LivepeerSynthesizer {
	return &LivepeerSynthesizer{client: client}
}

// Synthesize implements Synthesizer.
func (s *LivepeerSynthesizer) Synthesize(ctx context.Context, req Request) (Asset, error) {
	url, err := s.client.TextToSpeech(ctx, livepeer.TTSRequest{
		Text:        req.Text,
		Description: req.Description,
	})
	if err != nil {
		return Asset{}, fmt.Errorf("livepeer tts: %w", err)
	}
	return Asset{URL: url}, nil
}

var _ Synthesizer = (*LivepeerSynthesizer)(nil)
