package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	root := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(root, "tmp"), filepath.Join(root, "out"))
	require.NoError(t, err)
	return s
}

func TestNewLocalStorage(t *testing.T) {
	t.Run("creates directories", func(t *testing.T) {
		s := setupTestStorage(t)
		assert.DirExists(t, s.TempDir())
		assert.DirExists(t, s.OutputDir())
	})

	t.Run("output defaults beneath temp dir", func(t *testing.T) {
		tmp := filepath.Join(t.TempDir(), "work")
		s, err := NewLocalStorage(tmp, "")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmp, "output"), s.OutputDir())
	})
}

func TestLocalStorage_NewWorkspace(t *testing.T) {
	s := setupTestStorage(t)
	ctx := context.Background()

	t.Run("workspaces are distinct", func(t *testing.T) {
		a, err := s.NewWorkspace(ctx, "batch1")
		require.NoError(t, err)
		defer a.Close()

		b, err := s.NewWorkspace(ctx, "batch1")
		require.NoError(t, err)
		defer b.Close()

		assert.NotEqual(t, a.Dir(), b.Dir())
		assert.Equal(t, s.TempDir(), filepath.Dir(a.Dir()))
	})

	t.Run("rejects path-like ids", func(t *testing.T) {
		for _, id := range []string{"", "../escape", "a/b", ".."} {
			_, err := s.NewWorkspace(ctx, id)
			assert.ErrorIs(t, err, ErrInvalidBatchID, "id %q", id)
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := s.NewWorkspace(cctx, "batch2")
		assert.Error(t, err)
	})
}

func TestWorkspace_ScenePathsAndClose(t *testing.T) {
	s := setupTestStorage(t)
	ws, err := s.NewWorkspace(context.Background(), "batch")
	require.NoError(t, err)

	p0, err := ws.ScenePath(0, "audio.mp3")
	require.NoError(t, err)
	p1, err := ws.ScenePath(1, "audio.mp3")
	require.NoError(t, err)
	assert.NotEqual(t, p0, p1)

	// Names cannot escape the scene directory.
	escaped, err := ws.ScenePath(2, "../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(ws.Dir(), "scene-002", "passwd"), escaped)

	require.NoError(t, os.WriteFile(p0, []byte("x"), 0600))
	require.NoError(t, ws.Close())
	assert.NoDirExists(t, ws.Dir())

	// Second close is a no-op.
	assert.NoError(t, ws.Close())
}

func TestLocalStorage_OutputPath(t *testing.T) {
	s := setupTestStorage(t)

	p, err := s.OutputPath("movie-1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(s.OutputDir(), "movie-1.mp4"), p)

	_, err = s.OutputPath("")
	assert.ErrorIs(t, err, ErrInvalidBatchID)
}

func TestFetch_HTTP(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/clip.mp4":
			_, _ = w.Write([]byte("video-bytes"))
		case "/empty.mp4":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	ctx := context.Background()

	t.Run("downloads body", func(t *testing.T) {
		dst := filepath.Join(dir, "clip.mp4")
		require.NoError(t, Fetch(ctx, server.Client(), server.URL+"/clip.mp4", dst))
		data, err := os.ReadFile(dst)
		require.NoError(t, err)
		assert.Equal(t, "video-bytes", string(data))
	})

	t.Run("non-2xx", func(t *testing.T) {
		err := Fetch(ctx, server.Client(), server.URL+"/missing.mp4", filepath.Join(dir, "missing.mp4"))
		assert.ErrorIs(t, err, ErrDownloadFailed)
	})

	t.Run("empty body", func(t *testing.T) {
		dst := filepath.Join(dir, "empty.mp4")
		err := Fetch(ctx, server.Client(), server.URL+"/empty.mp4", dst)
		assert.ErrorIs(t, err, ErrEmptyAsset)
		assert.NoFileExists(t, dst)
	})
}

func TestFetch_File(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "spooled.mp3")
	require.NoError(t, os.WriteFile(src, []byte("audio"), 0600))

	dst := filepath.Join(dir, "scene", "sfx.mp3")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0750))

	require.NoError(t, Fetch(context.Background(), nil, FileURL(src), dst))
	assert.NoFileExists(t, src)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "audio", string(data))
}

func TestFetch_UnsupportedScheme(t *testing.T) {
	err := Fetch(context.Background(), nil, "ftp://example.com/a.mp4", filepath.Join(t.TempDir(), "a.mp4"))
	assert.True(t, errors.Is(err, ErrUnsupportedScheme))
}
