package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Workspace is a batch-scoped scratch directory. Every scene gets its own
// subdirectory, so files written by concurrent scenes never collide.
type Workspace struct {
	dir string

	mu     sync.Mutex
	closed bool
}

// Dir returns the workspace root.
func (w *Workspace) Dir() string {
	return w.dir
}

// SceneDir returns the directory for scene index, creating it if needed.
func (w *Workspace) SceneDir(index int) (string, error) {
	dir := filepath.Join(w.dir, fmt.Sprintf("scene-%03d", index))
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("create scene directory: %w", err)
	}
	return dir, nil
}

// ScenePath returns the path of name inside the directory for scene index.
func (w *Workspace) ScenePath(index int, name string) (string, error) {
	dir, err := w.SceneDir(index)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, filepath.Base(name)), nil
}

// Path returns the path of name directly under the workspace root.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// Close removes the workspace and everything in it. It is safe to call
// more than once.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := os.RemoveAll(w.dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.dir, err)
	}
	return nil
}
