// Package upload publishes the assembled movie to a hosting backend.
//
// An upload runs in the background and is observed through an *Upload
// handle: a progress stream of byte counts, Wait for the playback URL and
// Cancel to abort.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// ErrNoPlaybackURL is returned when a backend accepts the file but reports
// nothing to play it from.
var ErrNoPlaybackURL = errors.New("backend returned no playback reference")

// Uploader starts uploads of local files.
type Uploader interface {
	// Start begins uploading path. Failures are reported by Wait as *UploadError.
	Start(ctx context.Context, path string) *Upload
}

// Progress is a byte-count update.
type Progress struct {
	Sent  int64
	Total int64
}

// Fraction returns Sent/Total in [0, 1], or 0 when Total is unknown.
func (p Progress) Fraction() float64 {
	if p.Total <= 0 {
		return 0
	}
	f := float64(p.Sent) / float64(p.Total)
	if f > 1 {
		return 1
	}
	return f
}

// UploadError is returned when the final file could not be published.
type UploadError struct {
	Backend string
	Path    string
	Err     error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload error (%s) %s: %v", e.Backend, e.Path, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// Upload is a running upload.
type Upload struct {
	progress chan Progress
	done     chan struct{}
	cancel   context.CancelFunc

	url string
	err error
}

// Progress returns the stream of byte-count updates. It is closed when the
// upload finishes. Sends block until read, so a caller that stops reading
// stalls the upload until Wait or Cancel is called.
func (u *Upload) Progress() <-chan Progress {
	return u.progress
}

// Wait blocks until the upload finishes and returns the playback URL. Any
// unread progress updates are discarded.
func (u *Upload) Wait() (string, error) {
	for range u.progress {
	}
	<-u.done
	return u.url, u.err
}

// Cancel aborts the upload. Wait then returns an *UploadError wrapping
// context.Canceled.
func (u *Upload) Cancel() {
	u.cancel()
}

// transfer sends body to a backend and returns the playback URL.
type transfer func(ctx context.Context, body *progressReader) (string, error)

// start opens path and runs fn in the background, reporting progress as fn
// reads the body.
func start(ctx context.Context, backend, path string, fn transfer) *Upload {
	ctx, cancel := context.WithCancel(ctx)
	u := &Upload{
		progress: make(chan Progress, 16),
		done:     make(chan struct{}),
		cancel:   cancel,
	}

	go func() {
		defer close(u.done)
		defer close(u.progress)
		defer cancel()

		url, err := run(ctx, path, u.progress, fn)
		if err == nil && url == "" {
			err = ErrNoPlaybackURL
		}
		if err != nil {
			u.err = &UploadError{Backend: backend, Path: path, Err: err}
			return
		}
		u.url = url
	}()

	return u
}

func run(ctx context.Context, path string, ch chan<- Progress, fn transfer) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is the pipeline's own output
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat %s: %w", path, err)
	}

	body := &progressReader{
		r:     f,
		total: info.Size(),
		report: func(p Progress) {
			select {
			case ch <- p:
			case <-ctx.Done():
			}
		},
	}

	url, err := fn(ctx, body)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
			return "", errors.Join(ctx.Err(), err)
		}
		return "", err
	}
	return url, nil
}

// progressReader reports every read. It is seekable so that SDKs which
// rewind the body for signing or retries can use it; seeking resets the
// reported count.
type progressReader struct {
	r      io.ReadSeeker
	total  int64
	report func(Progress)

	mu   sync.Mutex
	sent int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.sent += int64(n)
		update := Progress{Sent: p.sent, Total: p.total}
		p.mu.Unlock()
		p.report(update)
	}
	return n, err
}

func (p *progressReader) Seek(offset int64, whence int) (int64, error) {
	pos, err := p.r.Seek(offset, whence)
	if err == nil {
		p.mu.Lock()
		p.sent = pos
		p.mu.Unlock()
	}
	return pos, err
}

// Size returns the total body length.
func (p *progressReader) Size() int64 {
	return p.total
}
