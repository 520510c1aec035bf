package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrInvalidBatchID is returned when a batch ID is empty or contains path separators.
var ErrInvalidBatchID = errors.New("invalid batch ID")

// LocalStorage implements Storage on local disk.
type LocalStorage struct {
	tempDir   string
	outputDir string
}

// NewLocalStorage creates a new LocalStorage instance. Workspaces live under
// tempDir and final videos under outputDir. Empty values default to
// directories beneath os.TempDir(). Both directories are created if missing.
func NewLocalStorage(tempDir, outputDir string) (*LocalStorage, error) {
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "scenereel")
	}
	if outputDir == "" {
		outputDir = filepath.Join(tempDir, "output")
	}

	for _, dir := range []string{tempDir, outputDir} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return &LocalStorage{tempDir: tempDir, outputDir: outputDir}, nil
}

// TempDir returns the directory holding batch workspaces.
func (s *LocalStorage) TempDir() string {
	return s.tempDir
}

// OutputDir returns the directory holding final videos.
func (s *LocalStorage) OutputDir() string {
	return s.outputDir
}

// NewWorkspace creates a uniquely named directory for batchID.
func (s *LocalStorage) NewWorkspace(ctx context.Context, batchID string) (*Workspace, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled: %w", ctx.Err())
	default:
	}

	if err := validateBatchID(batchID); err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(s.tempDir, "batch-"+batchID+"-*")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	return &Workspace{dir: dir}, nil
}

// OutputPath returns <outputDir>/<batchID>.mp4.
func (s *LocalStorage) OutputPath(batchID string) (string, error) {
	if err := validateBatchID(batchID); err != nil {
		return "", err
	}
	return filepath.Join(s.outputDir, batchID+".mp4"), nil
}

func validateBatchID(id string) error {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidBatchID, id)
	}
	return nil
}

// Compile-time check that LocalStorage implements Storage.
var _ Storage = (*LocalStorage)(nil)
