package media

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// atempo accepts factors in [0.5, 2.0] per stage.
const (
	minAtempo = 0.5
	maxAtempo = 2.0
)

// RetimeOpts controls a Retime call.
type RetimeOpts struct {
	// Speed is the playback rate. Values above 1 shorten the media.
	Speed float64
	// Duration, when positive, pads and truncates the output to exactly
	// this many seconds.
	Duration float64
	// Streams describes the input; it decides which filters are applied.
	Streams Streams
}

// AtempoChain splits a speed factor into atempo stages that each stay within
// the filter's accepted range. The product of the stages equals speed.
func AtempoChain(speed float64) []float64 {
	if speed <= 0 {
		return nil
	}
	var chain []float64
	for speed > maxAtempo {
		chain = append(chain, maxAtempo)
		speed /= maxAtempo
	}
	for speed < minAtempo {
		chain = append(chain, minAtempo)
		speed /= minAtempo
	}
	return append(chain, speed)
}

func atempoFilter(speed float64) string {
	chain := AtempoChain(speed)
	stages := make([]string, len(chain))
	for i, f := range chain {
		stages[i] = fmt.Sprintf("atempo=%.6g", f)
	}
	return strings.Join(stages, ",")
}

// Retime rewrites in to out at the requested speed.
func (p *FFmpegProcessor) Retime(ctx context.Context, in, out string, opts RetimeOpts) error {
	if opts.Speed <= 0 {
		return fmt.Errorf("%w: got %.3f", ErrInvalidSpeed, opts.Speed)
	}
	if !opts.Streams.Video && !opts.Streams.Audio {
		return ErrNoStreams
	}
	return p.runFFmpegTimeout(ctx, p.timeout, retimeArgs(in, out, opts))
}

func retimeArgs(in, out string, opts RetimeOpts) []string {
	exact := opts.Duration > 0
	args := []string{"-y", "-i", in}

	if opts.Streams.Video {
		vf := fmt.Sprintf("setpts=%.6f*PTS", 1/opts.Speed)
		if exact {
			vf += fmt.Sprintf(",tpad=stop_mode=clone:stop_duration=%s", formatSeconds(opts.Duration))
		}
		args = append(args,
			"-filter:v", vf,
			"-c:v", "libx264",
			"-preset", "fast",
			"-crf", "22",
			"-pix_fmt", "yuv420p",
		)
	} else {
		args = append(args, "-vn")
	}

	if opts.Streams.Audio {
		af := atempoFilter(opts.Speed)
		if exact {
			af += ",apad"
		}
		args = append(args, "-filter:a", af)
		if strings.EqualFold(filepath.Ext(out), ".mp3") {
			args = append(args, "-c:a", "libmp3lame", "-b:a", "192k")
		} else {
			args = append(args, "-c:a", "aac", "-b:a", "128k")
		}
	} else {
		args = append(args, "-an")
	}

	if exact {
		args = append(args, "-t", formatSeconds(opts.Duration))
	}

	return append(args, out)
}
