package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maauso/scenereel/internal/media"
	"github.com/maauso/scenereel/internal/storage"
)

// stubProcessor simulates ffmpeg with bookkeeping: every file it writes gets
// a known duration, and files fetched by name stem get the configured one.
type stubProcessor struct {
	mu         sync.Mutex
	byStem     map[string]float64
	known      map[string]float64
	retimes    []media.RetimeOpts
	concatted  []string
	silenceErr error
	muxErr     error
	// partialConcat makes Concat keep only the first clip.
	partialConcat bool
}

func newStubProcessor(byStem map[string]float64) *stubProcessor {
	if byStem == nil {
		byStem = map[string]float64{}
	}
	return &stubProcessor{byStem: byStem, known: map[string]float64{}}
}

func stem(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

func (p *stubProcessor) set(path string, d float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.known[path] = d
}

func (p *stubProcessor) Probe(_ context.Context, path string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if d, ok := p.known[path]; ok {
		return d, nil
	}
	if d, ok := p.byStem[stem(path)]; ok {
		return d, nil
	}
	return 0, &media.ProbeError{Path: path, Err: media.ErrCouldNotDetermineDuration}
}

func (p *stubProcessor) ProbeStreams(context.Context, string) (media.Streams, error) {
	return media.Streams{Video: true, Audio: true}, nil
}

func (p *stubProcessor) Retime(ctx context.Context, in, out string, opts media.RetimeOpts) error {
	current, err := p.Probe(ctx, in)
	if err != nil {
		return err
	}
	d := current / opts.Speed
	if opts.Duration > 0 {
		d = opts.Duration
	}
	if err := os.WriteFile(out, []byte("retimed"), 0600); err != nil {
		return err
	}
	p.mu.Lock()
	p.retimes = append(p.retimes, opts)
	p.mu.Unlock()
	p.set(out, d)
	return nil
}

func (p *stubProcessor) Mux(ctx context.Context, video, audio, out string) error {
	if p.muxErr != nil {
		return p.muxErr
	}
	d, err := p.Probe(ctx, audio)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, []byte("muxed"), 0600); err != nil {
		return err
	}
	p.set(out, d)
	return nil
}

func (p *stubProcessor) Concat(ctx context.Context, clips []string, out string) error {
	if p.partialConcat {
		if err := os.WriteFile(out, []byte("first clip"), 0600); err != nil {
			return err
		}
		first, _ := p.Probe(ctx, clips[0])
		p.mu.Lock()
		p.concatted = append([]string(nil), clips...)
		p.mu.Unlock()
		p.set(out, first)
		return fmt.Errorf("%w: concat filter exited 1", media.ErrPartialConcat)
	}

	var total float64
	for _, c := range clips {
		d, _ := p.Probe(ctx, c)
		total += d
	}
	if err := os.WriteFile(out, []byte("movie"), 0600); err != nil {
		return err
	}
	p.mu.Lock()
	p.concatted = append([]string(nil), clips...)
	p.mu.Unlock()
	p.set(out, total)
	return nil
}

func (p *stubProcessor) GenerateSilence(_ context.Context, out string, seconds float64) error {
	if p.silenceErr != nil {
		return p.silenceErr
	}
	if err := os.WriteFile(out, []byte("silence"), 0600); err != nil {
		return err
	}
	p.set(out, seconds)
	return nil
}

var _ media.Processor = (*stubProcessor)(nil)

// writeFetcher stands in for downloads by writing a placeholder file.
func writeFetcher(_ context.Context, _ string, dst string) error {
	return os.WriteFile(dst, []byte("asset"), 0600)
}

func newWorkspace(t *testing.T) (*storage.LocalStorage, *storage.Workspace) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir(), t.TempDir())
	require.NoError(t, err)
	ws, err := store.NewWorkspace(context.Background(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return store, ws
}
