package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/maauso/scenereel/internal/audio"
	"github.com/maauso/scenereel/internal/media"
	"github.com/maauso/scenereel/internal/scene"
	"github.com/maauso/scenereel/internal/storage"
	"github.com/maauso/scenereel/internal/tts"
)

// Audio defaults.
const (
	DefaultMaxSceneAudio = 4.0 // seconds
	silenceSeconds       = 2.0
)

// ErrNoSoundSource is returned when no sound-effect source is configured.
var ErrNoSoundSource = errors.New("no sound-effect source available")

// AudioGenerator produces one capped audio track per scene: optional
// dialogue, a sound effect with fallbacks, and their mix.
type AudioGenerator struct {
	speech   tts.Synthesizer
	sounds   tts.SoundGenerator
	proc     media.Processor
	adjuster *media.Adjuster
	mixer    audio.Mixer
	fetch    fetcher
	maxAudio float64
	logger   *slog.Logger
}

// AudioOption configures an AudioGenerator.
type AudioOption func(*AudioGenerator)

// WithMaxSceneAudio caps every scene's audio at seconds.
func WithMaxSceneAudio(seconds float64) AudioOption {
	return func(g *AudioGenerator) {
		if seconds > 0 {
			g.maxAudio = seconds
		}
	}
}

// WithAudioHTTPClient sets the client used to download synthesized audio.
func WithAudioHTTPClient(c *http.Client) AudioOption {
	return func(g *AudioGenerator) {
		g.fetch = httpFetcher(c)
	}
}

// NewAudioGenerator creates an AudioGenerator. speech and sounds may be nil;
// the missing source is skipped.
func NewAudioGenerator(speech tts.Synthesizer, sounds tts.SoundGenerator, proc media.Processor, mixer audio.Mixer, logger *slog.Logger, opts ...AudioOption) *AudioGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &AudioGenerator{
		speech:   speech,
		sounds:   sounds,
		proc:     proc,
		adjuster: media.NewAdjuster(proc, logger),
		mixer:    mixer,
		fetch:    httpFetcher(nil),
		maxAudio: DefaultMaxSceneAudio,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate implements SceneAudio.
func (g *AudioGenerator) Generate(ctx context.Context, ws *storage.Workspace, index int, sc scene.Scene) (scene.AudioResult, error) {
	logger := g.logger.With(slog.Int("scene", index))
	var result scene.AudioResult

	if sc.HasDialogue() {
		dialogue, err := g.dialogue(ctx, ws, index, *sc.Dialogue)
		if err != nil {
			logger.Warn("dialogue generation failed, continuing without dialogue", slog.Any("error", err))
		} else {
			result.Dialogue = g.capped(ctx, dialogue)
		}
	}

	sfx, err := g.soundEffect(ctx, ws, index, sc, logger)
	if err != nil {
		logger.Warn("sound effect unavailable", slog.Any("error", err))
	} else {
		result.SoundEffect = g.capped(ctx, sfx)
	}

	mixPath, err := ws.ScenePath(index, "mixed.mp3")
	if err != nil {
		return scene.AudioResult{}, err
	}
	combined, err := g.mixer.Mix(ctx, result.Dialogue, result.SoundEffect, mixPath)
	if err != nil {
		return scene.AudioResult{}, fmt.Errorf("scene %d audio: %w", index, err)
	}

	if result.Dialogue != nil && result.SoundEffect != nil && combined.Duration > g.maxAudio+media.DefaultEpsilon {
		combined = g.adjuster.Adjust(ctx, combined, g.maxAudio, media.ModeForceExact)
	}
	result.Combined = &combined

	logger.Debug("scene audio ready",
		slog.Bool("dialogue", result.Dialogue != nil),
		slog.Bool("sound_effect", result.SoundEffect != nil),
		slog.Float64("duration", combined.Duration),
	)
	return result, nil
}

func (g *AudioGenerator) dialogue(ctx context.Context, ws *storage.Workspace, index int, d scene.Dialogue) (media.Asset, error) {
	if g.speech == nil {
		return media.Asset{}, tts.ErrNotConfigured
	}
	asset, err := g.speech.Synthesize(ctx, tts.Request{Text: d.Text, Description: d.Description})
	if err != nil {
		return media.Asset{}, err
	}
	return fetchAsset(ctx, g.fetch, g.proc, ws, index, "dialogue", asset.URL, ".wav")
}

// soundEffect tries the sound-effect API, then speech with an ambient voice,
// then generated silence.
func (g *AudioGenerator) soundEffect(ctx context.Context, ws *storage.Workspace, index int, sc scene.Scene, logger *slog.Logger) (media.Asset, error) {
	description := strings.TrimSpace(sc.SoundEffect)

	if description != "" {
		asset, err := g.generatedSound(ctx, ws, index, description, g.requestedLength(sc))
		if err == nil {
			return asset, nil
		}
		logger.Warn("sound effect generation failed, trying ambient speech", slog.Any("error", err))

		asset, err = g.ambientSpeech(ctx, ws, index, description)
		if err == nil {
			return asset, nil
		}
		logger.Warn("ambient speech failed, using silence", slog.Any("error", err))
	}

	path, err := ws.ScenePath(index, "silence.mp3")
	if err != nil {
		return media.Asset{}, err
	}
	if err := g.proc.GenerateSilence(ctx, path, silenceSeconds); err != nil {
		return media.Asset{}, fmt.Errorf("generate silence: %w", err)
	}
	duration, err := g.proc.Probe(ctx, path)
	if err != nil {
		return media.Asset{}, err
	}
	return media.Asset{Path: path, Duration: duration}, nil
}

func (g *AudioGenerator) generatedSound(ctx context.Context, ws *storage.Workspace, index int, description string, seconds float64) (media.Asset, error) {
	if g.sounds == nil {
		return media.Asset{}, ErrNoSoundSource
	}
	asset, err := g.sounds.GenerateSound(ctx, description, seconds)
	if err != nil {
		return media.Asset{}, err
	}
	return fetchAsset(ctx, g.fetch, g.proc, ws, index, "sfx", asset.URL, ".mp3")
}

func (g *AudioGenerator) ambientSpeech(ctx context.Context, ws *storage.Workspace, index int, description string) (media.Asset, error) {
	if g.speech == nil {
		return media.Asset{}, ErrNoSoundSource
	}
	asset, err := g.speech.Synthesize(ctx, tts.Request{Text: description, Description: tts.AmbientVoice})
	if err != nil {
		return media.Asset{}, err
	}
	return fetchAsset(ctx, g.fetch, g.proc, ws, index, "sfx-ambient", asset.URL, ".wav")
}

// requestedLength is the sound-effect length to ask for: the scene's
// duration, bounded by the cap.
func (g *AudioGenerator) requestedLength(sc scene.Scene) float64 {
	if sc.Duration <= 0 || sc.Duration > g.maxAudio {
		return g.maxAudio
	}
	return sc.Duration
}

// capped speeds a track up to the cap when it runs over.
func (g *AudioGenerator) capped(ctx context.Context, a media.Asset) *media.Asset {
	if a.Duration > g.maxAudio {
		a = g.adjuster.Adjust(ctx, a, g.maxAudio, media.ModeSpeedChange)
	}
	return &a
}

func httpFetcher(c *http.Client) fetcher {
	return func(ctx context.Context, rawURL, dst string) error {
		return storage.Fetch(ctx, c, rawURL, dst)
	}
}

var _ SceneAudio = (*AudioGenerator)(nil)
