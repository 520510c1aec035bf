package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a config that passes Validate with the defaults.
func validConfig() *Config {
	return &Config{
		VideoProvider:       ProviderFal,
		FalKey:              "fal-key",
		UploadBackend:       BackendLocal,
		MaxConcurrentScenes: 4,
		MaxSceneAudioSec:    4,
		RetryMaxAttempts:    5,
		VideoWidth:          576,
		VideoHeight:         1024,
		StorySceneDuration:  8,
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/tmp/scenereel", cfg.TempDir)
	assert.False(t, cfg.KeepOutput)
	assert.Equal(t, 4, cfg.MaxConcurrentScenes)
	assert.InDelta(t, 4.0, cfg.MaxSceneAudioSec, 1e-9)
	assert.Equal(t, 576, cfg.VideoWidth)
	assert.Equal(t, 1024, cfg.VideoHeight)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.RetryMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RetryDelay)
	assert.Equal(t, ProviderFal, cfg.VideoProvider)
	assert.Equal(t, BackendLivepeer, cfg.UploadBackend)
	assert.Equal(t, "scenereel.requests", cfg.KafkaRequestTopic)
	assert.Equal(t, "grok-2", cfg.StoryModel)
	assert.InDelta(t, 8.0, cfg.StorySceneDuration, 1e-9)
	assert.Equal(t, 90*time.Second, cfg.StoryTimeout)
	assert.False(t, cfg.StoryEnabled())
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("TEMP_DIR", "/custom/temp")
	t.Setenv("KEEP_OUTPUT", "true")
	t.Setenv("MAX_CONCURRENT_SCENES", "2")
	t.Setenv("MAX_SCENE_AUDIO_SEC", "3.5")
	t.Setenv("RETRY_DELAY", "250ms")
	t.Setenv("VIDEO_PROVIDER", "runpod")
	t.Setenv("RUNPOD_API_KEY", "custom-api-key")
	t.Setenv("RUNPOD_ENDPOINT_ID", "custom-endpoint")
	t.Setenv("UPLOAD_BACKEND", "s3")
	t.Setenv("S3_BUCKET", "my-bucket")
	t.Setenv("S3_REGION", "us-east-1")
	t.Setenv("AWS_ACCESS_KEY_ID", "access-key")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "secret-key")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, "/custom/temp", cfg.TempDir)
	assert.True(t, cfg.KeepOutput)
	assert.Equal(t, 2, cfg.MaxConcurrentScenes)
	assert.InDelta(t, 3.5, cfg.MaxSceneAudioSec, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.RetryDelay)
	assert.Equal(t, "custom-api-key", cfg.RunPodAPIKey)
	assert.Equal(t, "custom-endpoint", cfg.RunPodEndpointID)
	assert.Equal(t, "my-bucket", cfg.S3Bucket)
	assert.Equal(t, "access-key", cfg.AWSAccessKeyID)
	assert.Equal(t, "secret-key", cfg.AWSSecretAccessKey)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled())
	assert.True(t, cfg.RedisEnabled())
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("integer", func(t *testing.T) {
		t.Setenv("PORT", "not-a-number")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("POLL_INTERVAL", "soon")
		_, err := Load()
		require.Error(t, err)
	})
}

func TestConfig_S3Enabled(t *testing.T) {
	tests := []struct {
		name     string
		bucket   string
		region   string
		expected bool
	}{
		{"both set", "bucket", "region", true},
		{"only bucket", "bucket", "", false},
		{"only region", "", "region", false},
		{"neither set", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				S3Bucket: tt.bucket,
				S3Region: tt.region,
			}
			assert.Equal(t, tt.expected, cfg.S3Enabled())
		})
	}
}

func TestConfig_YouTubeEnabled(t *testing.T) {
	cfg := &Config{YouTubeClientID: "id", YouTubeClientSecret: "secret"}
	assert.False(t, cfg.YouTubeEnabled())

	cfg.YouTubeRefreshToken = "refresh"
	assert.True(t, cfg.YouTubeEnabled())
}

func TestConfig_String(t *testing.T) {
	cfg := &Config{
		Port:             8080,
		VideoProvider:    ProviderRunPod,
		RunPodAPIKey:     "secret-key",
		RunPodEndpointID: "endpoint-123",
		FalKey:           "fal-secret",
		LivepeerAPIKey:   "livepeer-secret",
		StoryAPIKey:      "story-secret",
		TempDir:          "/tmp/test",
		S3Bucket:         "bucket",
		S3Region:         "region",
		LogFormat:        "json",
		LogLevel:         "info",
	}

	str := cfg.String()

	// Should contain non-sensitive values
	assert.Contains(t, str, "8080")
	assert.Contains(t, str, "endpoint-123")
	assert.Contains(t, str, "/tmp/test")
	assert.Contains(t, str, "****")

	// Should NOT contain sensitive values
	assert.NotContains(t, str, "secret-key")
	assert.NotContains(t, str, "fal-secret")
	assert.NotContains(t, str, "livepeer-secret")
	assert.NotContains(t, str, "story-secret")
}

func TestConfig_NewLogger_JSON(t *testing.T) {
	cfg := &Config{
		LogFormat: "json",
		LogLevel:  "info",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)

	// Capture output to verify it's JSON
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, nil)
	testLogger := slog.New(handler)
	testLogger.Info("test message")

	assert.Contains(t, buf.String(), `"msg"`)
	assert.Contains(t, buf.String(), "test message")
}

func TestConfig_NewLogger_Text(t *testing.T) {
	cfg := &Config{
		LogFormat: "text",
		LogLevel:  "debug",
	}

	logger := cfg.NewLogger()
	require.NotNil(t, logger)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo}, // defaults to info
		{"", slog.LevelInfo},        // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"unknown provider", func(c *Config) { c.VideoProvider = "sora" }, ErrUnknownVideoProvider},
		{"missing fal key", func(c *Config) { c.FalKey = "" }, ErrFalKeyRequired},
		{"missing runpod key", func(c *Config) {
			c.VideoProvider = ProviderRunPod
			c.RunPodEndpointID = "endpoint"
		}, ErrRunPodAPIKeyRequired},
		{"missing runpod endpoint", func(c *Config) {
			c.VideoProvider = ProviderRunPod
			c.RunPodAPIKey = "key"
		}, ErrRunPodEndpointIDRequired},
		{"unknown backend", func(c *Config) { c.UploadBackend = "ftp" }, ErrUnknownUploadBackend},
		{"livepeer without key", func(c *Config) { c.UploadBackend = BackendLivepeer }, ErrLivepeerAPIKeyRequired},
		{"s3 without bucket", func(c *Config) { c.UploadBackend = BackendS3 }, ErrS3ConfigRequired},
		{"youtube without credentials", func(c *Config) { c.UploadBackend = BackendYouTube }, ErrYouTubeCredentialsRequired},
		{"zero concurrency", func(c *Config) { c.MaxConcurrentScenes = 0 }, ErrInvalidPipelineSetting},
		{"zero audio cap", func(c *Config) { c.MaxSceneAudioSec = 0 }, ErrInvalidPipelineSetting},
		{"zero attempts", func(c *Config) { c.RetryMaxAttempts = 0 }, ErrInvalidPipelineSetting},
		{"zero width", func(c *Config) { c.VideoWidth = 0 }, ErrInvalidPipelineSetting},
		{"zero storyboard scene duration", func(c *Config) { c.StorySceneDuration = 0 }, ErrInvalidPipelineSetting},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}
}
