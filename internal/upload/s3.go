package upload

import (
	"context"
	"io"
	"path/filepath"
)

// objectStore is implemented by storage.S3Storage.
type objectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// S3Uploader publishes to an S3 bucket. The playback URL is the object URL.
type S3Uploader struct {
	store objectStore
}

// NewS3Uploader creates an S3-backed Uploader.
func NewS3Uploader(store objectStore) *S3Uploader {
	return &S3Uploader{store: store}
}

// Start implements Uploader.
func (u *S3Uploader) Start(ctx context.Context, path string) *Upload {
	return start(ctx, "s3", path, func(ctx context.Context, body *progressReader) (string, error) {
		return u.store.Upload(ctx, filepath.Base(path), body, body.Size(), "video/mp4")
	})
}

var _ Uploader = (*S3Uploader)(nil)
