package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/maauso/scenereel/internal/bootstrap"
	"github.com/maauso/scenereel/internal/config"
	"github.com/maauso/scenereel/internal/job/id"
	"github.com/maauso/scenereel/internal/pipeline"
	"github.com/maauso/scenereel/internal/scene"
	"github.com/maauso/scenereel/internal/upload"
)

// Input errors for the assemble command.
var (
	ErrNoInput          = errors.New("a scenes file or --prompt is required")
	ErrConflictingInput = errors.New("a scenes file and --prompt are mutually exclusive")
)

func runAssemble(cmd *cobra.Command, args []string) error {
	prompt, _ := cmd.Flags().GetString("prompt")
	prompt = strings.TrimSpace(prompt)
	switch {
	case len(args) == 0 && prompt == "":
		return ErrNoInput
	case len(args) > 0 && prompt != "":
		return ErrConflictingInput
	}

	var scenes []scene.Scene
	if len(args) > 0 {
		var err error
		if scenes, err = loadScenes(args[0]); err != nil {
			return err
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.JobTimeout)
		defer cancel()
	}

	logger := cfg.NewLogger()
	assembler, err := bootstrap.NewAssembler(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if prompt != "" {
		if scenes, err = bootstrap.NewStoryboard(cfg, logger).Plan(ctx, prompt); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	batchID := id.Generate()
	fmt.Fprintf(out, "assembling %d scenes as %s\n", len(scenes), batchID)

	result, err := assembler.Assemble(ctx, batchID, scenes, &printReporter{w: out, total: len(scenes)})
	if err != nil {
		return err
	}

	if len(result.Dropped) > 0 {
		fmt.Fprintf(out, "dropped scenes: %v\n", result.Dropped)
	}
	if result.OutputPath != "" {
		fmt.Fprintf(out, "output: %s\n", result.OutputPath)
	}
	fmt.Fprintf(out, "duration: %.1fs\n", result.Duration)
	fmt.Fprintln(out, result.PlaybackURL)
	return nil
}

func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("out") {
		cfg.OutputDir, _ = flags.GetString("out")
	}
	if flags.Changed("keep-output") {
		cfg.KeepOutput, _ = flags.GetBool("keep-output")
	}
	if flags.Changed("max-audio") {
		cfg.MaxSceneAudioSec, _ = flags.GetFloat64("max-audio")
	}
	if flags.Changed("backend") {
		cfg.UploadBackend, _ = flags.GetString("backend")
	}
	if flags.Changed("concurrency") {
		cfg.MaxConcurrentScenes, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("timeout") {
		cfg.JobTimeout, _ = flags.GetDuration("timeout")
	}
	return cfg.Validate()
}

// sceneFile accepts either a bare array of scenes or a creation request
// object with a "scenes" field.
type sceneFile struct {
	Scenes []scene.Scene `json:"scenes"`
}

func loadScenes(path string) ([]scene.Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenes: %w", err)
	}

	var scenes []scene.Scene
	if err := json.Unmarshal(data, &scenes); err != nil {
		var file sceneFile
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("parse scenes %s: %w", path, err)
		}
		scenes = file.Scenes
	}

	if err := scene.Validate(scenes); err != nil {
		return nil, err
	}
	return scenes, nil
}

// printReporter writes pipeline progress as plain lines.
type printReporter struct {
	mu      sync.Mutex
	w       io.Writer
	total   int
	done    int
	percent int
}

func (r *printReporter) Stage(stage pipeline.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s...\n", stage)
}

func (r *printReporter) SceneDone(index int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done++
	if err != nil {
		fmt.Fprintf(r.w, "scene %d failed (%d/%d): %v\n", index, r.done, r.total, err)
		return
	}
	fmt.Fprintf(r.w, "scene %d ready (%d/%d)\n", index, r.done, r.total)
}

func (r *printReporter) UploadProgress(p upload.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	percent := int(p.Fraction() * 100)
	if percent < r.percent+10 && percent != 100 {
		return
	}
	if percent == r.percent {
		return
	}
	r.percent = percent
	fmt.Fprintf(r.w, "uploaded %d%%\n", percent)
}

var _ pipeline.Reporter = (*printReporter)(nil)
