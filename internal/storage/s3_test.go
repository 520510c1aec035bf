package storage

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewS3Storage(t *testing.T) {
	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.bucket != cfg.Bucket {
		t.Errorf("bucket = %v, want %v", storage.bucket, cfg.Bucket)
	}
	if storage.region != cfg.Region {
		t.Errorf("region = %v, want %v", storage.region, cfg.Region)
	}
}

func TestNewS3Storage_NotConfigured(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Config{Bucket: "only-bucket"})
	if err != ErrS3NotConfigured {
		t.Errorf("expected ErrS3NotConfigured, got %v", err)
	}
}

func TestS3Storage_Upload_MockServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT method, got %s", r.Method)
		}

		if !strings.Contains(r.URL.Path, "/movies/test-key.mp4") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "video/mp4" {
			t.Errorf("unexpected content type: %s", got)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("failed to read body: %v", err)
		}
		if !strings.Contains(string(body), "test content") {
			t.Errorf("unexpected body: %s", string(body))
		}

		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := S3Config{
		Bucket:          "test-bucket",
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
		Prefix:          "movies/",
	}

	storage, err := NewS3Storage(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	body := []byte("test content")
	url, err := storage.Upload(context.Background(), "test-key.mp4", bytes.NewReader(body), int64(len(body)), "video/mp4")
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	expectedURL := "https://test-bucket.s3.us-east-1.amazonaws.com/movies/test-key.mp4"
	if url != expectedURL {
		t.Errorf("url = %v, want %v", url, expectedURL)
	}
}
