package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/maauso/scenereel/internal/generator"
	"github.com/maauso/scenereel/internal/media"
	"github.com/maauso/scenereel/internal/retry"
	"github.com/maauso/scenereel/internal/scene"
	"github.com/maauso/scenereel/internal/storage"
)

// VideoGenerator produces one clip per scene from a generation provider.
type VideoGenerator struct {
	gen          generator.Generator
	prober       media.Prober
	adjuster     *media.Adjuster
	fetch        fetcher
	policy       retry.Policy
	pollInterval time.Duration
	width        int
	height       int
	logger       *slog.Logger
}

// VideoOption configures a VideoGenerator.
type VideoOption func(*VideoGenerator)

// WithRetryPolicy sets how often a failed clip is regenerated.
func WithRetryPolicy(p retry.Policy) VideoOption {
	return func(g *VideoGenerator) {
		g.policy = p
	}
}

// WithPollInterval sets how often a provider job is polled.
func WithPollInterval(d time.Duration) VideoOption {
	return func(g *VideoGenerator) {
		if d > 0 {
			g.pollInterval = d
		}
	}
}

// WithVideoSize sets the requested frame size.
func WithVideoSize(width, height int) VideoOption {
	return func(g *VideoGenerator) {
		if width > 0 && height > 0 {
			g.width, g.height = width, height
		}
	}
}

// WithVideoHTTPClient sets the client used to download clips.
func WithVideoHTTPClient(c *http.Client) VideoOption {
	return func(g *VideoGenerator) {
		g.fetch = httpFetcher(c)
	}
}

// NewVideoGenerator creates a VideoGenerator using gen for clips and proc to
// measure and fit them.
func NewVideoGenerator(gen generator.Generator, proc media.Processor, logger *slog.Logger, opts ...VideoOption) *VideoGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	g := &VideoGenerator{
		gen:          gen,
		prober:       proc,
		adjuster:     media.NewAdjuster(proc, logger),
		fetch:        httpFetcher(nil),
		policy:       retry.DefaultPolicy(),
		pollInterval: 5 * time.Second,
		width:        576,
		height:       1024,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate requests a clip for sc, downloads it into the scene directory and
// measures it. Every step is retried under the configured policy; once the
// policy is exhausted a *generator.GenerationError is returned.
func (g *VideoGenerator) Generate(ctx context.Context, ws *storage.Workspace, index int, sc scene.Scene) (media.Asset, error) {
	logger := g.logger.With(slog.Int("scene", index), slog.String("provider", g.gen.Name()))
	req := generator.Request{
		Prompt:       sc.Prompt,
		Width:        g.width,
		Height:       g.height,
		DurationHint: sc.Duration,
	}

	attempts := 0
	clip, err := retry.Value(ctx, g.policy, func(ctx context.Context, attempt int) (media.Asset, error) {
		attempts = attempt
		asset, err := generator.Generate(ctx, g.gen, req, g.pollInterval)
		if err == nil {
			var downloaded media.Asset
			if downloaded, err = fetchAsset(ctx, g.fetch, g.prober, ws, index, "clip", asset.URL, ".mp4"); err == nil {
				return downloaded, nil
			}
		}
		logger.Warn("video generation attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", g.policy.MaxAttempts),
			slog.Any("error", err),
		)
		return media.Asset{}, err
	})
	if err != nil {
		return media.Asset{}, &generator.GenerationError{Provider: g.gen.Name(), Attempts: attempts, Err: err}
	}

	logger.Debug("clip generated", slog.String("path", clip.Path), slog.Float64("duration", clip.Duration))
	return clip, nil
}

// Fit stretches or compresses clip to exactly audioDuration. On failure the
// clip is returned unchanged.
func (g *VideoGenerator) Fit(ctx context.Context, clip media.Asset, audioDuration float64) media.Asset {
	return g.adjuster.Adjust(ctx, clip, audioDuration, media.ModeForceExact)
}

var _ SceneVideo = (*VideoGenerator)(nil)
