package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/maauso/scenereel/internal/livepeer"
)

// livepeerClient is the subset of the Livepeer client used for hosting.
type livepeerClient interface {
	RequestUpload(ctx context.Context, name string) (livepeer.UploadTarget, error)
	Put(ctx context.Context, target string, body io.Reader, size int64) error
	WaitReady(ctx context.Context, id string, interval time.Duration) (livepeer.Asset, error)
}

// LivepeerUploader publishes to Livepeer Studio.
type LivepeerUploader struct {
	client       livepeerClient
	waitReady    bool
	pollInterval time.Duration
	logger       *slog.Logger
}

// LivepeerOption configures a LivepeerUploader.
type LivepeerOption func(*LivepeerUploader)

// WithWaitReady makes uploads wait until the asset has finished processing,
// polling every interval.
func WithWaitReady(interval time.Duration) LivepeerOption {
	return func(u *LivepeerUploader) {
		u.waitReady = true
		if interval > 0 {
			u.pollInterval = interval
		}
	}
}

// NewLivepeerUploader creates a Livepeer-backed Uploader.
func NewLivepeerUploader(client livepeerClient, logger *slog.Logger, opts ...LivepeerOption) *LivepeerUploader {
	if logger == nil {
		logger = slog.Default()
	}
	u := &LivepeerUploader{
		client:       client,
		pollInterval: 5 * time.Second,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Start implements Uploader.
func (u *LivepeerUploader) Start(ctx context.Context, path string) *Upload {
	return start(ctx, "livepeer", path, func(ctx context.Context, body *progressReader) (string, error) {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		target, err := u.client.RequestUpload(ctx, name)
		if err != nil {
			return "", err
		}

		if err := u.client.Put(ctx, target.URL, body, body.Size()); err != nil {
			return "", err
		}

		if u.waitReady && target.AssetID != "" {
			if _, err := u.client.WaitReady(ctx, target.AssetID, u.pollInterval); err != nil {
				return "", fmt.Errorf("wait for asset: %w", err)
			}
		}

		if target.PlaybackID == "" {
			return "", ErrNoPlaybackURL
		}

		playback := livepeer.PlaybackURL(target.PlaybackID)
		u.logger.Info("uploaded to livepeer",
			slog.String("asset_id", target.AssetID),
			slog.String("playback_url", playback),
		)
		return playback, nil
	})
}

var _ Uploader = (*LivepeerUploader)(nil)
