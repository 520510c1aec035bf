package media

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProcessor struct {
	mock.Mock
}

func (m *mockProcessor) Probe(ctx context.Context, path string) (float64, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(float64), args.Error(1)
}

func (m *mockProcessor) ProbeStreams(ctx context.Context, path string) (Streams, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(Streams), args.Error(1)
}

func (m *mockProcessor) Retime(ctx context.Context, in, out string, opts RetimeOpts) error {
	return m.Called(ctx, in, out, opts).Error(0)
}

func (m *mockProcessor) Mux(ctx context.Context, video, audio, out string) error {
	return m.Called(ctx, video, audio, out).Error(0)
}

func (m *mockProcessor) Concat(ctx context.Context, clips []string, out string) error {
	return m.Called(ctx, clips, out).Error(0)
}

func (m *mockProcessor) GenerateSilence(ctx context.Context, out string, seconds float64) error {
	return m.Called(ctx, out, seconds).Error(0)
}

func TestAtempoChain(t *testing.T) {
	tests := []struct {
		name  string
		speed float64
		want  []float64
	}{
		{"in range", 1.5, []float64{1.5}},
		{"upper bound", 2.0, []float64{2.0}},
		{"above range", 2.5, []float64{2.0, 1.25}},
		{"far above range", 5.0, []float64{2.0, 2.0, 1.25}},
		{"below range", 0.25, []float64{0.5, 0.5}},
		{"slightly below", 0.4, []float64{0.5, 0.8}},
		{"invalid", 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AtempoChain(tt.speed)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.InDelta(t, tt.want[i], got[i], 1e-9)
			}
		})
	}
}

func TestRetimeArgs(t *testing.T) {
	t.Run("audio only speed change", func(t *testing.T) {
		args := retimeArgs("in.mp3", "out.mp3", RetimeOpts{Speed: 2.5, Streams: Streams{Audio: true}})
		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "-filter:a atempo=2,atempo=1.25")
		assert.Contains(t, joined, "-vn")
		assert.Contains(t, joined, "libmp3lame")
		assert.NotContains(t, joined, "-t ")
	})

	t.Run("force exact video", func(t *testing.T) {
		args := retimeArgs("in.mp4", "out.mp4", RetimeOpts{Speed: 0.5, Duration: 4, Streams: Streams{Video: true}})
		joined := strings.Join(args, " ")
		assert.Contains(t, joined, "setpts=2.000000*PTS,tpad=stop_mode=clone")
		assert.Contains(t, joined, "-an")
		assert.Equal(t, "out.mp4", args[len(args)-1])
		assert.Equal(t, "4.000", args[len(args)-2])
	})
}

func TestAdjuster_WithinEpsilonIsNoop(t *testing.T) {
	proc := &mockProcessor{}
	a := NewAdjuster(proc, slog.Default())

	in := Asset{Path: "/tmp/clip.mp4", Duration: 4.05}
	for _, mode := range []Mode{ModeSpeedChange, ModeForceExact, ModeExtendOnly} {
		got := a.Adjust(context.Background(), in, 4.0, mode)
		assert.Equal(t, in, got, "mode %s", mode)
	}

	proc.AssertNotCalled(t, "ProbeStreams", mock.Anything, mock.Anything)
	proc.AssertNotCalled(t, "Retime", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdjuster_ExtendOnlySkipsLongerMedia(t *testing.T) {
	proc := &mockProcessor{}
	a := NewAdjuster(proc, nil)

	in := Asset{Path: "/tmp/clip.mp4", Duration: 8}
	got := a.Adjust(context.Background(), in, 4, ModeExtendOnly)

	assert.Equal(t, in, got)
	proc.AssertNotCalled(t, "Retime", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdjuster_ExtendOnlyClampsFactor(t *testing.T) {
	proc := &mockProcessor{}
	a := NewAdjuster(proc, nil)
	ctx := context.Background()

	in := Asset{Path: "/tmp/short.mp4", Duration: 1}
	proc.On("ProbeStreams", ctx, in.Path).Return(Streams{Video: true}, nil)
	proc.On("Retime", ctx, in.Path, "/tmp/short.extend.mp4", mock.MatchedBy(func(o RetimeOpts) bool {
		return o.Speed > 0.19 && o.Speed < 0.21 && o.Duration == 0
	})).Return(nil)
	proc.On("Probe", ctx, "/tmp/short.extend.mp4").Return(5.0, nil)

	got := a.Adjust(ctx, in, 10, ModeExtendOnly)

	assert.Equal(t, Asset{Path: "/tmp/short.extend.mp4", Duration: 5.0}, got)
	proc.AssertExpectations(t)
}

func TestAdjuster_FallsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	in := Asset{Path: "/tmp/clip.mp4", Duration: 8}

	t.Run("probe streams fails", func(t *testing.T) {
		proc := &mockProcessor{}
		proc.On("ProbeStreams", ctx, in.Path).Return(Streams{}, &ProbeError{Path: in.Path, Err: ErrCouldNotDetermineDuration})

		got := NewAdjuster(proc, nil).Adjust(ctx, in, 4, ModeSpeedChange)
		assert.Equal(t, in, got)
	})

	t.Run("retime fails", func(t *testing.T) {
		proc := &mockProcessor{}
		proc.On("ProbeStreams", ctx, in.Path).Return(Streams{Video: true, Audio: true}, nil)
		proc.On("Retime", ctx, in.Path, mock.Anything, mock.Anything).Return(errors.New("boom"))

		got := NewAdjuster(proc, nil).Adjust(ctx, in, 4, ModeForceExact)
		assert.Equal(t, in, got)
		proc.AssertNotCalled(t, "Probe", mock.Anything, mock.Anything)
	})

	t.Run("output probe fails", func(t *testing.T) {
		proc := &mockProcessor{}
		proc.On("ProbeStreams", ctx, in.Path).Return(Streams{Video: true}, nil)
		proc.On("Retime", ctx, in.Path, mock.Anything, mock.Anything).Return(nil)
		proc.On("Probe", ctx, mock.Anything).Return(0.0, &ProbeError{Err: ErrCouldNotDetermineDuration})

		got := NewAdjuster(proc, nil).Adjust(ctx, in, 4, ModeSpeedChange)
		assert.Equal(t, in, got)
	})

	t.Run("unknown mode", func(t *testing.T) {
		proc := &mockProcessor{}
		got := NewAdjuster(proc, nil).Adjust(ctx, in, 4, Mode("sideways"))
		assert.Equal(t, in, got)
	})

	t.Run("zero duration input", func(t *testing.T) {
		proc := &mockProcessor{}
		zero := Asset{Path: "/tmp/empty.mp4"}
		got := NewAdjuster(proc, nil).Adjust(ctx, zero, 4, ModeSpeedChange)
		assert.Equal(t, zero, got)
	})
}

func TestAdjuster_SpeedChangeRoundTrip(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	ctx := context.Background()
	p := NewFFmpegProcessor()
	a := NewAdjuster(p, nil)

	path := filepath.Join(tmpDir, "ten.mp4")
	createTestVideo(t, path, 10, "red")
	current, err := p.Probe(ctx, path)
	require.NoError(t, err)

	got := a.Adjust(ctx, Asset{Path: path, Duration: current}, 4, ModeSpeedChange)
	require.NotEqual(t, path, got.Path)

	measured, err := p.Probe(ctx, got.Path)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, measured, 0.2)
}

func TestAdjuster_ChainedTempoOnAudio(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	ctx := context.Background()
	p := NewFFmpegProcessor()
	a := NewAdjuster(p, nil)

	path := filepath.Join(tmpDir, "tone.mp3")
	createTestAudio(t, path, 5)
	current, err := p.Probe(ctx, path)
	require.NoError(t, err)

	got := a.Adjust(ctx, Asset{Path: path, Duration: current}, current/2.5, ModeSpeedChange)
	require.NotEqual(t, path, got.Path)
	assert.InDelta(t, current/2.5, got.Duration, 0.2)
}

func TestAdjuster_ForceExact(t *testing.T) {
	skipIfNoFFmpeg(t)

	tmpDir := t.TempDir()
	ctx := context.Background()
	p := NewFFmpegProcessor()
	a := NewAdjuster(p, nil)

	t.Run("stretch short video", func(t *testing.T) {
		path := filepath.Join(tmpDir, "short.mp4")
		createSilentVideo(t, path, 2)

		got := a.Adjust(ctx, Asset{Path: path, Duration: 2}, 3.2, ModeForceExact)
		assert.InDelta(t, 3.2, getDuration(t, got.Path), 0.15)
	})

	t.Run("compress long video", func(t *testing.T) {
		path := filepath.Join(tmpDir, "long.mp4")
		createTestVideo(t, path, 8, "green")

		got := a.Adjust(ctx, Asset{Path: path, Duration: 8}, 3.0, ModeForceExact)
		assert.InDelta(t, 3.0, getDuration(t, got.Path), 0.15)
	})
}
