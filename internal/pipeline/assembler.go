package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/maauso/scenereel/internal/media"
	"github.com/maauso/scenereel/internal/scene"
	"github.com/maauso/scenereel/internal/storage"
	"github.com/maauso/scenereel/internal/upload"
)

// DefaultMaxConcurrentScenes bounds scene fan-out when not configured.
const DefaultMaxConcurrentScenes = 4

// Result describes a finished assembly run.
type Result struct {
	BatchID     string
	PlaybackURL string
	OutputPath  string  // empty once removed after a successful upload
	Duration    float64 // seconds, as probed after concatenation
	Scenes      int     // scenes included in the output
	Dropped     []int   // indices of scenes that failed
}

// Assembler runs the whole scene-to-video pipeline for one batch.
type Assembler struct {
	storage     storage.Storage
	audio       SceneAudio
	video       SceneVideo
	proc        media.Processor
	uploader    upload.Uploader
	concurrency int
	keepOutput  bool
	logger      *slog.Logger
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithMaxConcurrentScenes bounds how many scenes are processed at once.
func WithMaxConcurrentScenes(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithKeepOutput keeps the assembled file after a successful upload.
func WithKeepOutput(keep bool) AssemblerOption {
	return func(a *Assembler) {
		a.keepOutput = keep
	}
}

// NewAssembler creates an Assembler.
func NewAssembler(store storage.Storage, audio SceneAudio, video SceneVideo, proc media.Processor, uploader upload.Uploader, logger *slog.Logger, opts ...AssemblerOption) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Assembler{
		storage:     store,
		audio:       audio,
		video:       video,
		proc:        proc,
		uploader:    uploader,
		concurrency: DefaultMaxConcurrentScenes,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble generates, fits, muxes and concatenates every scene, then uploads
// the result and returns its playback URL.
//
// Failed scenes are dropped. When none succeed an *AssemblyError is
// returned, unless ctx ended first, in which case ctx.Err() is. Scenes lost
// to a partial concatenation are reported in Result.Dropped as well.
// An *upload.UploadError is returned unchanged and the assembled
// file is kept at Result.OutputPath.
func (a *Assembler) Assemble(ctx context.Context, batchID string, scenes []scene.Scene, rep Reporter) (Result, error) {
	if rep == nil {
		rep = NopReporter{}
	}
	if err := scene.Validate(scenes); err != nil {
		return Result{}, err
	}

	logger := a.logger.With(slog.String("batch_id", batchID))
	result := Result{BatchID: batchID}

	ws, err := a.storage.NewWorkspace(ctx, batchID)
	if err != nil {
		return result, err
	}
	defer a.closeWorkspace(ws, logger)

	logger.Info("assembling movie", slog.Int("scenes", len(scenes)), slog.String("workspace", ws.Dir()))
	rep.Stage(StageGenerating)

	clips, failures := a.processScenes(ctx, ws, scenes, rep, logger)

	var (
		ordered []string
		kept    []int
	)
	for i, clip := range clips {
		if clip == nil {
			result.Dropped = append(result.Dropped, i)
			continue
		}
		ordered = append(ordered, clip.Video.Path)
		kept = append(kept, i)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if len(ordered) == 0 {
		logger.Error("no scenes succeeded")
		return result, &AssemblyError{Scenes: failures}
	}
	result.Scenes = len(ordered)

	rep.Stage(StageAssembling)
	out, err := a.storage.OutputPath(batchID)
	if err != nil {
		return result, err
	}
	if err := a.proc.Concat(ctx, ordered, out); err != nil {
		if !errors.Is(err, media.ErrPartialConcat) {
			return result, fmt.Errorf("concatenate scenes: %w", err)
		}
		logger.Warn("concatenation failed, publishing first scene only",
			slog.Int("scene", kept[0]),
			slog.Any("omitted", kept[1:]),
			slog.Any("error", err),
		)
		result.Dropped = append(result.Dropped, kept[1:]...)
		slices.Sort(result.Dropped)
		result.Scenes = 1
	}
	result.OutputPath = out
	if d, err := a.proc.Probe(ctx, out); err == nil {
		result.Duration = d
	}

	// Intermediates are no longer needed once the output exists.
	a.closeWorkspace(ws, logger)

	logger.Info("movie assembled",
		slog.String("output", out),
		slog.Int("scenes", result.Scenes),
		slog.Any("dropped", result.Dropped),
		slog.Float64("duration", result.Duration),
	)

	rep.Stage(StageUploading)
	up := a.uploader.Start(ctx, out)
	for p := range up.Progress() {
		rep.UploadProgress(p)
	}
	playback, err := up.Wait()
	if err != nil {
		logger.Error("upload failed, keeping output", slog.String("output", out), slog.Any("error", err))
		return result, err
	}
	result.PlaybackURL = playback

	if !a.keepOutput {
		if err := os.Remove(out); err != nil {
			logger.Warn("failed to remove output", slog.String("output", out), slog.Any("error", err))
		} else {
			result.OutputPath = ""
		}
	}

	logger.Info("movie published", slog.String("playback_url", playback))
	return result, nil
}

// processScenes runs every scene under the concurrency bound. A failing
// scene does not cancel the others. The returned slices are indexed like
// scenes; clips[i] is nil when scene i failed with failures[i].
func (a *Assembler) processScenes(ctx context.Context, ws *storage.Workspace, scenes []scene.Scene, rep Reporter, logger *slog.Logger) ([]*scene.VideoResult, []error) {
	clips := make([]*scene.VideoResult, len(scenes))
	failures := make([]error, len(scenes))

	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for i, sc := range scenes {
		g.Go(func() error {
			sceneLogger := logger.With(slog.Int("scene", i))
			clip, err := a.processScene(ctx, ws, i, sc, sceneLogger)
			if err != nil {
				sceneLogger.Warn("scene failed, dropping it", slog.Any("error", err))
				failures[i] = err
			} else {
				clips[i] = &clip
			}
			rep.SceneDone(i, err)
			return nil
		})
	}
	_ = g.Wait()

	return clips, failures
}

// processScene generates a scene's audio and clip concurrently, fits the
// clip to the audio and muxes them.
func (a *Assembler) processScene(ctx context.Context, ws *storage.Workspace, index int, sc scene.Scene, logger *slog.Logger) (scene.VideoResult, error) {
	var (
		track scene.AudioResult
		clip  media.Asset
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		track, err = a.audio.Generate(gctx, ws, index, sc)
		return err
	})
	g.Go(func() error {
		var err error
		clip, err = a.video.Generate(gctx, ws, index, sc)
		return err
	})
	if err := g.Wait(); err != nil {
		return scene.VideoResult{}, err
	}
	if track.Combined == nil {
		return scene.VideoResult{}, fmt.Errorf("scene %d: %w", index, ErrNoSceneResult)
	}

	fitted := a.video.Fit(ctx, clip, track.Combined.Duration)

	muxed, err := ws.ScenePath(index, "scene.mp4")
	if err != nil {
		return scene.VideoResult{}, err
	}
	if err := a.proc.Mux(ctx, fitted.Path, track.Combined.Path, muxed); err != nil {
		return scene.VideoResult{}, fmt.Errorf("mux scene %d: %w", index, err)
	}

	duration := fitted.Duration
	if d, err := a.proc.Probe(ctx, muxed); err == nil {
		duration = d
	}

	logger.Debug("scene ready",
		slog.Float64("audio", track.Combined.Duration),
		slog.Float64("clip", clip.Duration),
		slog.Float64("fitted", fitted.Duration),
	)
	return scene.VideoResult{Video: media.Asset{Path: muxed, Duration: duration}, Index: index}, nil
}

func (a *Assembler) closeWorkspace(ws *storage.Workspace, logger *slog.Logger) {
	if err := ws.Close(); err != nil {
		logger.Warn("failed to clean up workspace", slog.String("dir", ws.Dir()), slog.Any("error", err))
	}
}
