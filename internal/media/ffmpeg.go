package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Static errors for media operations.
var (
	// ErrNoClips is returned when no clips are provided for concatenation.
	ErrNoClips = errors.New("no clips provided")
	// ErrPartialConcat is returned when concatenation failed and out holds
	// only the first clip.
	ErrPartialConcat = errors.New("concatenation failed, output holds only the first clip")
	// ErrInvalidDuration is returned when a duration is not positive.
	ErrInvalidDuration = errors.New("invalid duration: must be positive")
	// ErrInvalidSpeed is returned when a retime speed factor is not positive.
	ErrInvalidSpeed = errors.New("invalid speed factor: must be positive")
	// ErrNoStreams is returned when a file carries neither audio nor video.
	ErrNoStreams = errors.New("media has no audio or video stream")
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

const (
	defaultTimeout       = 60 * time.Second
	defaultConcatTimeout = 120 * time.Second
)

// FFmpegProcessor implements Processor using the ffmpeg and ffprobe CLIs.
type FFmpegProcessor struct {
	ffmpegPath    string
	ffprobePath   string
	timeout       time.Duration
	concatTimeout time.Duration
}

// ProcessorOption configures an FFmpegProcessor.
type ProcessorOption func(*FFmpegProcessor)

// WithFFmpegPath overrides the ffmpeg binary (found via PATH by default).
func WithFFmpegPath(path string) ProcessorOption {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffmpegPath = path
		}
	}
}

// WithFFprobePath overrides the ffprobe binary (found via PATH by default).
func WithFFprobePath(path string) ProcessorOption {
	return func(p *FFmpegProcessor) {
		if path != "" {
			p.ffprobePath = path
		}
	}
}

// WithTimeout bounds every single-file transform. Zero disables the bound.
func WithTimeout(d time.Duration) ProcessorOption {
	return func(p *FFmpegProcessor) {
		p.timeout = d
	}
}

// WithConcatTimeout bounds the final concatenation. Zero disables the bound.
func WithConcatTimeout(d time.Duration) ProcessorOption {
	return func(p *FFmpegProcessor) {
		p.concatTimeout = d
	}
}

// NewFFmpegProcessor creates a new FFmpegProcessor.
func NewFFmpegProcessor(opts ...ProcessorOption) *FFmpegProcessor {
	p := &FFmpegProcessor{
		ffmpegPath:    "ffmpeg",
		ffprobePath:   "ffprobe",
		timeout:       defaultTimeout,
		concatTimeout: defaultConcatTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Mux combines the video stream of video with the audio stream of audio.
func (p *FFmpegProcessor) Mux(ctx context.Context, video, audio, out string) error {
	v := ffmpeg.Input(video).Video()
	a := ffmpeg.Input(audio).Audio()

	args := ffmpeg.Output([]*ffmpeg.Stream{v, a}, out, ffmpeg.KwArgs{
		"c:v": "copy",
		"c:a": "aac",
		"b:a": "128k",
	}).OverWriteOutput().GetArgs()

	return p.runFFmpegTimeout(ctx, p.timeout, args)
}

// GenerateSilence writes a silent stereo mp3 of the given length.
func (p *FFmpegProcessor) GenerateSilence(ctx context.Context, out string, seconds float64) error {
	if seconds <= 0 {
		return fmt.Errorf("%w: got %.2f", ErrInvalidDuration, seconds)
	}

	args := ffmpeg.Input("anullsrc=r=44100:cl=stereo", ffmpeg.KwArgs{"f": "lavfi"}).
		Output(out, ffmpeg.KwArgs{
			"t":   formatSeconds(seconds),
			"c:a": "libmp3lame",
			"b:a": "192k",
		}).OverWriteOutput().GetArgs()

	return p.runFFmpegTimeout(ctx, p.timeout, args)
}

// runFFmpegTimeout runs ffmpeg bounded by timeout when it is positive.
func (p *FFmpegProcessor) runFFmpegTimeout(ctx context.Context, timeout time.Duration, args []string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.runFFmpeg(ctx, args)
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{
			Args:   args,
			Stderr: stderr.String(),
			Err:    err,
		}
	}

	return nil
}

// FFmpegError represents an error from running ffmpeg, including the stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}

// copyFile copies a file from src to dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 - src is provided by trusted internal code
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy file: %w", err)
	}
	return out.Close()
}

func formatSeconds(s float64) string {
	return fmt.Sprintf("%.3f", s)
}

// Compile-time check that FFmpegProcessor implements Processor.
var _ Processor = (*FFmpegProcessor)(nil)
