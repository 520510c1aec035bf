package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"github.com/maauso/scenereel/internal/media"
)

// FFmpegMixer implements Mixer with ffmpeg's amix filter.
type FFmpegMixer struct {
	ffmpegPath string
	prober     media.Prober
	timeout    time.Duration
	logger     *slog.Logger
}

// MixerOption configures an FFmpegMixer.
type MixerOption func(*FFmpegMixer)

// WithFFmpegPath overrides the ffmpeg binary used for mixing.
func WithFFmpegPath(path string) MixerOption {
	return func(m *FFmpegMixer) {
		if path != "" {
			m.ffmpegPath = path
		}
	}
}

// WithTimeout bounds a single mix. Zero disables the bound.
func WithTimeout(d time.Duration) MixerOption {
	return func(m *FFmpegMixer) {
		m.timeout = d
	}
}

// NewFFmpegMixer creates a mixer that measures its output with prober.
func NewFFmpegMixer(prober media.Prober, logger *slog.Logger, opts ...MixerOption) *FFmpegMixer {
	if logger == nil {
		logger = slog.Default()
	}
	m := &FFmpegMixer{
		ffmpegPath: "ffmpeg",
		prober:     prober,
		timeout:    60 * time.Second,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Mix implements Mixer. A failing mix degrades to the dialogue track.
func (m *FFmpegMixer) Mix(ctx context.Context, dialogue, sfx *media.Asset, out string) (media.Asset, error) {
	switch {
	case dialogue == nil && sfx == nil:
		return media.Asset{}, ErrNoAudioProvided
	case sfx == nil:
		return *dialogue, nil
	case dialogue == nil:
		return *sfx, nil
	}

	mixed, err := m.mix(ctx, *dialogue, *sfx, out)
	if err != nil {
		m.logger.Warn("audio mix failed, using dialogue only",
			slog.String("dialogue", dialogue.Path),
			slog.String("sound_effect", sfx.Path),
			slog.Any("error", err),
		)
		_ = os.Remove(out)
		return *dialogue, nil
	}
	return mixed, nil
}

func (m *FFmpegMixer) mix(ctx context.Context, dialogue, sfx media.Asset, out string) (media.Asset, error) {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	if err := m.runFFmpeg(ctx, mixArgs(dialogue.Path, sfx.Path, out)); err != nil {
		return media.Asset{}, err
	}

	duration, err := m.prober.Probe(ctx, out)
	if err != nil {
		return media.Asset{}, fmt.Errorf("probe mixed audio: %w", err)
	}
	return media.Asset{Path: out, Duration: duration}, nil
}

// mixArgs builds the amix graph: both tracks gain-adjusted, the result as long
// as the longer input.
func mixArgs(dialogue, sfx, out string) []string {
	d := ffmpeg.Input(dialogue).Audio().Filter("volume", ffmpeg.Args{fmt.Sprintf("%.1f", DialogueGain)})
	s := ffmpeg.Input(sfx).Audio().Filter("volume", ffmpeg.Args{fmt.Sprintf("%.1f", SoundEffectGain)})

	mixed := ffmpeg.Filter([]*ffmpeg.Stream{d, s}, "amix", ffmpeg.Args{}, ffmpeg.KwArgs{
		"inputs":   2,
		"duration": "longest",
	})

	return mixed.Output(out, ffmpeg.KwArgs{
		"c:a": "libmp3lame",
		"b:a": "192k",
	}).OverWriteOutput().GetArgs()
}

func (m *FFmpegMixer) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, m.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &media.FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// Compile-time check that FFmpegMixer implements Mixer.
var _ Mixer = (*FFmpegMixer)(nil)
