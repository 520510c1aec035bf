package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// Static errors for asset downloads.
var (
	// ErrUnsupportedScheme is returned for asset URLs other than http, https and file.
	ErrUnsupportedScheme = errors.New("unsupported asset URL scheme")
	// ErrDownloadFailed is returned when the remote server answers with a non-2xx status.
	ErrDownloadFailed = errors.New("download failed")
	// ErrEmptyAsset is returned when a downloaded asset has no content.
	ErrEmptyAsset = errors.New("downloaded asset is empty")
)

// Fetch copies the asset at rawURL to dst. http and https URLs are
// downloaded with client (http.DefaultClient when nil). file URLs are moved
// into place, which hands ownership of spooled provider output to the caller.
func Fetch(ctx context.Context, client *http.Client, rawURL, dst string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse asset URL: %w", err)
	}

	switch u.Scheme {
	case "http", "https":
		if client == nil {
			client = http.DefaultClient
		}
		return download(ctx, client, rawURL, dst)
	case "file":
		return move(u.Path, dst)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
}

func download(ctx context.Context, client *http.Client, rawURL, dst string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download asset: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrDownloadFailed, resp.StatusCode)
	}

	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304 - dst is inside a workspace
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}

	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err == nil && n == 0 {
		err = ErrEmptyAsset
	}
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("write asset: %w", err)
	}
	return nil
}

func move(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	// Rename fails across filesystems; copy and remove instead.
	in, err := os.Open(src) // #nosec G304 - src was written by a provider adapter
	if err != nil {
		return fmt.Errorf("open spooled asset: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create destination file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("copy spooled asset: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close destination file: %w", err)
	}
	_ = os.Remove(src)
	return nil
}

// FileURL returns the file:// URL for an absolute local path.
func FileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}
