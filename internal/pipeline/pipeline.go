// Package pipeline turns a list of scenes into one published video.
//
// For every scene the audio and the raw video clip are generated
// concurrently. The clip is then fitted to the final audio length, both are
// muxed, and all scene clips are concatenated in scene order and uploaded.
// A scene that fails is dropped; the batch only fails when no scene
// succeeds or the result cannot be published.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/maauso/scenereel/internal/media"
	"github.com/maauso/scenereel/internal/scene"
	"github.com/maauso/scenereel/internal/storage"
	"github.com/maauso/scenereel/internal/upload"
)

// ErrNoSceneResult is recorded for a scene whose worker never reported.
var ErrNoSceneResult = errors.New("scene produced no result")

// AssemblyError is returned when no scene produced a usable clip.
type AssemblyError struct {
	Scenes []error // per-scene failure, indexed like the input
}

func (e *AssemblyError) Error() string {
	return "assembly error: no scenes succeeded"
}

// Unwrap exposes the scene failures to errors.Is and errors.As.
func (e *AssemblyError) Unwrap() []error {
	return e.Scenes
}

// Stage is a coarse phase of an assembly run.
type Stage string

// Assembly stages, in order.
const (
	StageGenerating Stage = "generating"
	StageAssembling Stage = "assembling"
	StageUploading  Stage = "uploading"
)

// Reporter observes an assembly run. Methods may be called from several
// goroutines at once.
type Reporter interface {
	Stage(stage Stage)
	SceneDone(index int, err error)
	UploadProgress(p upload.Progress)
}

// NopReporter ignores every report.
type NopReporter struct{}

func (NopReporter) Stage(Stage)                    {}
func (NopReporter) SceneDone(int, error)           {}
func (NopReporter) UploadProgress(upload.Progress) {}

// SceneAudio produces the final audio track of a scene.
type SceneAudio interface {
	Generate(ctx context.Context, ws *storage.Workspace, index int, sc scene.Scene) (scene.AudioResult, error)
}

// SceneVideo produces the raw clip of a scene and fits it to its audio.
type SceneVideo interface {
	Generate(ctx context.Context, ws *storage.Workspace, index int, sc scene.Scene) (media.Asset, error)
	Fit(ctx context.Context, clip media.Asset, audioDuration float64) media.Asset
}

// extFromURL returns the file extension of a URL's path, or def when it has
// none.
func extFromURL(rawURL, def string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return def
	}
	ext := path.Ext(u.Path)
	if ext == "" || len(ext) > 5 {
		return def
	}
	return ext
}

// fetchAsset downloads rawURL into the scene directory as name+ext and
// measures it.
func fetchAsset(ctx context.Context, f fetcher, prober media.Prober, ws *storage.Workspace, index int, name, rawURL, defExt string) (media.Asset, error) {
	dst, err := ws.ScenePath(index, name+extFromURL(rawURL, defExt))
	if err != nil {
		return media.Asset{}, err
	}
	if err := f(ctx, rawURL, dst); err != nil {
		return media.Asset{}, fmt.Errorf("fetch %s: %w", name, err)
	}
	duration, err := prober.Probe(ctx, dst)
	if err != nil {
		return media.Asset{}, err
	}
	return media.Asset{Path: dst, Duration: duration}, nil
}

// fetcher copies the asset at a URL to a local path.
type fetcher func(ctx context.Context, rawURL, dst string) error
