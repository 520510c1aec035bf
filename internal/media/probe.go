package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// ErrCouldNotDetermineDuration is wrapped by ProbeError when ffprobe ran but
// reported no usable duration.
var ErrCouldNotDetermineDuration = errors.New("could not determine duration")

// ProbeError is returned when the duration of a media file cannot be measured.
type ProbeError struct {
	Path string
	Err  error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("probe %s: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Probe returns the duration in seconds of a media file.
func (p *FFmpegProcessor) Probe(ctx context.Context, path string) (float64, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		return 0, &ProbeError{Path: path, Err: err}
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil || math.IsNaN(duration) || duration < 0 {
		return 0, &ProbeError{Path: path, Err: ErrCouldNotDetermineDuration}
	}

	return duration, nil
}

// ProbeStreams reports which stream types are present in a media file.
func (p *FFmpegProcessor) ProbeStreams(ctx context.Context, path string) (Streams, error) {
	out, err := p.runFFprobe(ctx,
		"-v", "error",
		"-show_entries", "stream=codec_type",
		"-of", "csv=p=0",
		path,
	)
	if err != nil {
		return Streams{}, &ProbeError{Path: path, Err: err}
	}

	var s Streams
	for _, line := range strings.Split(out, "\n") {
		switch strings.TrimSpace(line) {
		case "video":
			s.Video = true
		case "audio":
			s.Audio = true
		}
	}
	if !s.Video && !s.Audio {
		return Streams{}, &ProbeError{Path: path, Err: ErrNoStreams}
	}
	return s, nil
}

func (p *FFmpegProcessor) runFFprobe(ctx context.Context, args ...string) (string, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, strings.TrimSpace(stderr.String()))
	}

	return stdout.String(), nil
}
