// Package media provides duration probing, retiming, muxing and concatenation
// of audio and video files.
package media

import "context"

// Asset is a media file on local storage together with its measured duration.
type Asset struct {
	Path     string  `json:"path"`
	Duration float64 `json:"duration"` // seconds
}

// Streams reports which elementary streams a media file carries.
type Streams struct {
	Video bool
	Audio bool
}

// Prober measures media files.
type Prober interface {
	// Probe returns the duration in seconds of the file at path.
	// Failures are reported as *ProbeError.
	Probe(ctx context.Context, path string) (float64, error)

	// ProbeStreams reports whether the file carries video and/or audio.
	ProbeStreams(ctx context.Context, path string) (Streams, error)
}

// Processor defines the media transforms used by the assembly pipeline.
// Implementations shell out to ffmpeg; every call honours ctx cancellation.
type Processor interface {
	Prober

	// Retime rewrites in to out applying a uniform speed factor and, when
	// opts.Duration is set, pads and truncates to that exact length.
	Retime(ctx context.Context, in, out string, opts RetimeOpts) error

	// Mux combines the video stream of video with the audio stream of audio.
	// The video stream is copied; audio is re-encoded to AAC.
	Mux(ctx context.Context, video, audio, out string) error

	// Concat joins clips in order into out. It tries the concat filter first,
	// then the concat demuxer, and finally copies the first clip, reporting
	// that with ErrPartialConcat.
	Concat(ctx context.Context, clips []string, out string) error

	// GenerateSilence writes a silent audio track of the given length.
	GenerateSilence(ctx context.Context, out string, seconds float64) error
}
