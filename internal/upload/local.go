package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/maauso/scenereel/internal/storage"
)

// UploaderFunc adapts a function to Uploader. It receives the opened,
// progress-reporting file and its size.
type UploaderFunc func(ctx context.Context, body io.ReadSeeker, size int64) (string, error)

// Start implements Uploader.
func (f UploaderFunc) Start(ctx context.Context, path string) *Upload {
	return start(ctx, "func", path, func(ctx context.Context, body *progressReader) (string, error) {
		return f(ctx, body, body.Size())
	})
}

// LocalUploader "publishes" by copying into a directory and returns a file
// URL. It is meant for development runs without hosting credentials.
type LocalUploader struct {
	dir string
}

// NewLocalUploader creates a LocalUploader that writes into dir.
func NewLocalUploader(dir string) (*LocalUploader, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create publish directory: %w", err)
	}
	return &LocalUploader{dir: dir}, nil
}

// Start implements Uploader.
func (u *LocalUploader) Start(ctx context.Context, path string) *Upload {
	return start(ctx, "local", path, func(ctx context.Context, body *progressReader) (string, error) {
		dst := filepath.Join(u.dir, filepath.Base(path))
		if filepath.Clean(dst) == filepath.Clean(path) {
			return "", fmt.Errorf("publish directory contains the source file %s", path)
		}

		f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304
		if err != nil {
			return "", err
		}
		if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: body}); err != nil {
			_ = f.Close()
			_ = os.Remove(dst)
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return storage.FileURL(dst), nil
	})
}

// ctxReader stops reading once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var (
	_ Uploader = UploaderFunc(nil)
	_ Uploader = (*LocalUploader)(nil)
)
