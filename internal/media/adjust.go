package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Mode selects how the Adjuster reaches a target duration.
type Mode string

// Adjustment modes.
const (
	// ModeSpeedChange time-scales the media by target/current.
	ModeSpeedChange Mode = "speed-change"
	// ModeForceExact time-scales and then pads or truncates to the literal target.
	ModeForceExact Mode = "force-exact"
	// ModeExtendOnly slows the media down when it is shorter than the target
	// and leaves it alone otherwise.
	ModeExtendOnly Mode = "extend-only"
)

const (
	// DefaultEpsilon is the duration difference, in seconds, below which no
	// adjustment is made.
	DefaultEpsilon = 0.1
	// MaxExtendFactor caps how far extend-only mode slows media down.
	MaxExtendFactor = 5.0
)

// errUnknownMode is reported when Adjust is called with an unsupported mode.
var errUnknownMode = errors.New("unknown adjustment mode")

// AdjustmentError describes a failed adjustment. It is logged, never returned:
// the Adjuster always falls back to the unmodified input.
type AdjustmentError struct {
	Path   string
	Mode   Mode
	Target float64
	Err    error
}

func (e *AdjustmentError) Error() string {
	return fmt.Sprintf("adjust %s to %.2fs (%s): %v", e.Path, e.Target, e.Mode, e.Err)
}

func (e *AdjustmentError) Unwrap() error {
	return e.Err
}

// Adjuster brings media files to a target duration.
type Adjuster struct {
	proc    Processor
	logger  *slog.Logger
	epsilon float64
}

// NewAdjuster creates an Adjuster backed by proc.
func NewAdjuster(proc Processor, logger *slog.Logger) *Adjuster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adjuster{proc: proc, logger: logger, epsilon: DefaultEpsilon}
}

// Adjust returns an asset whose duration approximates target. When the input
// is already within epsilon of the target it is returned as is and no
// subprocess runs. Any failure yields the unmodified input.
func (a *Adjuster) Adjust(ctx context.Context, in Asset, target float64, mode Mode) Asset {
	if math.Abs(in.Duration-target) < a.epsilon {
		return in
	}

	out, err := a.adjust(ctx, in, target, mode)
	if err != nil {
		adjErr := &AdjustmentError{Path: in.Path, Mode: mode, Target: target, Err: err}
		a.logger.Warn("duration adjustment failed, keeping original",
			slog.String("path", in.Path),
			slog.String("mode", string(mode)),
			slog.Float64("current", in.Duration),
			slog.Float64("target", target),
			slog.Any("error", adjErr),
		)
		return in
	}
	if out.Path == in.Path {
		return in
	}

	a.logger.Debug("duration adjusted",
		slog.String("path", out.Path),
		slog.String("mode", string(mode)),
		slog.Float64("from", in.Duration),
		slog.Float64("to", out.Duration),
		slog.Float64("target", target),
	)
	return out
}

func (a *Adjuster) adjust(ctx context.Context, in Asset, target float64, mode Mode) (Asset, error) {
	if target <= 0 {
		return Asset{}, fmt.Errorf("%w: target %.2f", ErrInvalidDuration, target)
	}
	if in.Duration <= 0 {
		return Asset{}, fmt.Errorf("%w: current %.2f", ErrInvalidDuration, in.Duration)
	}

	opts := RetimeOpts{Speed: in.Duration / target}
	switch mode {
	case ModeSpeedChange:
	case ModeForceExact:
		opts.Duration = target
	case ModeExtendOnly:
		if in.Duration >= target-a.epsilon {
			return in, nil
		}
		factor := math.Min(target/in.Duration, MaxExtendFactor)
		opts.Speed = 1 / factor
	default:
		return Asset{}, fmt.Errorf("%w: %q", errUnknownMode, mode)
	}

	streams, err := a.proc.ProbeStreams(ctx, in.Path)
	if err != nil {
		return Asset{}, err
	}
	opts.Streams = streams

	outPath := adjustedPath(in.Path, mode)
	if err := a.proc.Retime(ctx, in.Path, outPath, opts); err != nil {
		_ = os.Remove(outPath)
		return Asset{}, err
	}

	duration, err := a.proc.Probe(ctx, outPath)
	if err != nil {
		_ = os.Remove(outPath)
		return Asset{}, err
	}

	return Asset{Path: outPath, Duration: duration}, nil
}

// adjustedPath derives the output path for an adjustment, next to the input.
func adjustedPath(path string, mode Mode) string {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	var tag string
	switch mode {
	case ModeForceExact:
		tag = "exact"
	case ModeExtendOnly:
		tag = "extend"
	default:
		tag = "speed"
	}
	return fmt.Sprintf("%s.%s%s", stem, tag, ext)
}
