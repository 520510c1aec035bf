// Package config provides configuration loading from environment variables.
package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Video providers.
const (
	ProviderFal    = "fal"
	ProviderRunPod = "runpod"
)

// Upload backends.
const (
	BackendLivepeer = "livepeer"
	BackendS3       = "s3"
	BackendYouTube  = "youtube"
	BackendLocal    = "local"
)

// Static errors for configuration validation.
var (
	// ErrUnknownVideoProvider is returned when VIDEO_PROVIDER names no known provider.
	ErrUnknownVideoProvider = errors.New("config: VIDEO_PROVIDER must be fal or runpod")
	// ErrFalKeyRequired is returned when the fal provider is selected without FAL_KEY.
	ErrFalKeyRequired = errors.New("config: FAL_KEY is required")
	// ErrRunPodAPIKeyRequired is returned when RUNPOD_API_KEY is not set.
	ErrRunPodAPIKeyRequired = errors.New("config: RUNPOD_API_KEY is required")
	// ErrRunPodEndpointIDRequired is returned when RUNPOD_ENDPOINT_ID is not set.
	ErrRunPodEndpointIDRequired = errors.New("config: RUNPOD_ENDPOINT_ID is required")
	// ErrUnknownUploadBackend is returned when UPLOAD_BACKEND names no known backend.
	ErrUnknownUploadBackend = errors.New("config: UPLOAD_BACKEND must be livepeer, s3, youtube or local")
	// ErrLivepeerAPIKeyRequired is returned when Livepeer uploads are selected without LIVEPEER_API_KEY.
	ErrLivepeerAPIKeyRequired = errors.New("config: LIVEPEER_API_KEY is required")
	// ErrS3ConfigRequired is returned when S3 uploads are selected without S3_BUCKET and S3_REGION.
	ErrS3ConfigRequired = errors.New("config: S3_BUCKET and S3_REGION are required")
	// ErrYouTubeCredentialsRequired is returned when YouTube uploads are selected without OAuth credentials.
	ErrYouTubeCredentialsRequired = errors.New("config: YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET and YOUTUBE_REFRESH_TOKEN are required")
	// ErrInvalidPipelineSetting is returned for non-positive pipeline limits.
	ErrInvalidPipelineSetting = errors.New("config: invalid pipeline setting")
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	Port           int      `env:"PORT, default=8080" json:"port"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS, default=*" json:"allowed_origins"`

	// Storage settings
	TempDir    string `env:"TEMP_DIR, default=/tmp/scenereel" json:"temp_dir"`
	OutputDir  string `env:"OUTPUT_DIR" json:"output_dir,omitempty"` // defaults to <TEMP_DIR>/output
	KeepOutput bool   `env:"KEEP_OUTPUT, default=false" json:"keep_output"`

	// Pipeline settings
	MaxConcurrentScenes int           `env:"MAX_CONCURRENT_SCENES, default=4" json:"max_concurrent_scenes"`
	MaxSceneAudioSec    float64       `env:"MAX_SCENE_AUDIO_SEC, default=4" json:"max_scene_audio_sec"`
	VideoWidth          int           `env:"VIDEO_WIDTH, default=576" json:"video_width"`
	VideoHeight         int           `env:"VIDEO_HEIGHT, default=1024" json:"video_height"`
	FFmpegTimeout       time.Duration `env:"FFMPEG_TIMEOUT, default=5m" json:"ffmpeg_timeout"`
	ConcatTimeout       time.Duration `env:"CONCAT_TIMEOUT, default=10m" json:"concat_timeout"`
	PollInterval        time.Duration `env:"POLL_INTERVAL, default=5s" json:"poll_interval"`
	JobTimeout          time.Duration `env:"JOB_TIMEOUT, default=2h" json:"job_timeout"`

	// Retry settings for clip generation
	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS, default=5" json:"retry_max_attempts"`
	RetryDelay       time.Duration `env:"RETRY_DELAY, default=5s" json:"retry_delay"`

	// Video provider settings
	VideoProvider    string `env:"VIDEO_PROVIDER, default=fal" json:"video_provider"`
	FalKey           string `env:"FAL_KEY" json:"-"` // Masked in JSON
	FalModel         string `env:"FAL_MODEL, default=fal-ai/fast-svd/text-to-video" json:"fal_model"`
	RunPodAPIKey     string `env:"RUNPOD_API_KEY" json:"-"` // Masked in JSON
	RunPodEndpointID string `env:"RUNPOD_ENDPOINT_ID" json:"runpod_endpoint_id,omitempty"`

	// Audio settings
	LivepeerAPIKey     string `env:"LIVEPEER_API_KEY" json:"-"` // Masked in JSON
	LivepeerGatewayURL string `env:"LIVEPEER_GATEWAY_URL" json:"livepeer_gateway_url,omitempty"`
	LivepeerStudioURL  string `env:"LIVEPEER_STUDIO_URL" json:"livepeer_studio_url,omitempty"`
	TTSModel           string `env:"TTS_MODEL" json:"tts_model,omitempty"`
	ElevenLabsAPIKey   string `env:"ELEVENLABS_API_KEY" json:"-"` // Masked in JSON

	// Storyboard settings for prompt-only requests
	StoryAPIKey        string        `env:"STORY_API_KEY" json:"-"` // Masked in JSON
	StoryBaseURL       string        `env:"STORY_BASE_URL, default=https://api.x.ai/v1" json:"story_base_url"`
	StoryModel         string        `env:"STORY_MODEL, default=grok-2" json:"story_model"`
	StorySceneDuration float64       `env:"STORY_SCENE_DURATION, default=8" json:"story_scene_duration"`
	StoryTimeout       time.Duration `env:"STORY_TIMEOUT, default=90s" json:"story_timeout"`

	// Upload settings
	UploadBackend     string        `env:"UPLOAD_BACKEND, default=livepeer" json:"upload_backend"`
	LivepeerWaitReady time.Duration `env:"LIVEPEER_WAIT_READY" json:"livepeer_wait_ready,omitempty"` // poll interval; 0 disables
	PublishDir        string        `env:"PUBLISH_DIR" json:"publish_dir,omitempty"`                 // local backend target

	// S3 settings
	S3Bucket           string `env:"S3_BUCKET" json:"s3_bucket,omitempty"`
	S3Region           string `env:"S3_REGION" json:"s3_region,omitempty"`
	S3Endpoint         string `env:"S3_ENDPOINT" json:"s3_endpoint,omitempty"`
	S3Prefix           string `env:"S3_PREFIX" json:"s3_prefix,omitempty"`
	AWSAccessKeyID     string `env:"AWS_ACCESS_KEY_ID" json:"-"`     // Masked in JSON
	AWSSecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" json:"-"` // Masked in JSON

	// YouTube settings
	YouTubeClientID     string `env:"YOUTUBE_CLIENT_ID" json:"-"`     // Masked in JSON
	YouTubeClientSecret string `env:"YOUTUBE_CLIENT_SECRET" json:"-"` // Masked in JSON
	YouTubeRefreshToken string `env:"YOUTUBE_REFRESH_TOKEN" json:"-"` // Masked in JSON
	YouTubePrivacy      string `env:"YOUTUBE_PRIVACY, default=unlisted" json:"youtube_privacy"`

	// Idempotency settings
	RedisAddr     string        `env:"REDIS_ADDR" json:"redis_addr,omitempty"`
	RedisPassword string        `env:"REDIS_PASSWORD" json:"-"` // Masked in JSON
	RedisDB       int           `env:"REDIS_DB, default=0" json:"redis_db"`
	RedisKeyTTL   time.Duration `env:"REDIS_KEY_TTL, default=2h" json:"redis_key_ttl"`

	// Kafka settings
	KafkaBrokers         []string `env:"KAFKA_BROKERS" json:"kafka_brokers,omitempty"`
	KafkaRequestTopic    string   `env:"KAFKA_REQUEST_TOPIC, default=scenereel.requests" json:"kafka_request_topic"`
	KafkaCompletionTopic string   `env:"KAFKA_COMPLETION_TOPIC, default=scenereel.completions" json:"kafka_completion_topic"`
	KafkaGroupID         string   `env:"KAFKA_GROUP_ID, default=scenereel" json:"kafka_group_id"`

	// Logging settings
	LogFormat string `env:"LOG_FORMAT, default=text" json:"log_format"` // "json" or "text"
	LogLevel  string `env:"LOG_LEVEL, default=info" json:"log_level"`   // "debug", "info", "warn", "error"
}

// S3Enabled returns true if S3 configuration is provided.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != "" && c.S3Region != ""
}

// RedisEnabled returns true if a Redis server is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// KafkaEnabled returns true if Kafka brokers are configured.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// StoryEnabled returns true if an LLM is configured to write storyboards.
func (c *Config) StoryEnabled() bool {
	return c.StoryAPIKey != ""
}

// YouTubeEnabled returns true if YouTube OAuth credentials are provided.
func (c *Config) YouTubeEnabled() bool {
	return c.YouTubeClientID != "" && c.YouTubeClientSecret != "" && c.YouTubeRefreshToken != ""
}

// Load reads configuration from environment variables using go-envconfig.
// Call Validate to check that the selected provider and backend are usable.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process(context.Background(), cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the selected video provider and upload backend have
// what they need and that pipeline limits are sane.
func (c *Config) Validate() error {
	switch c.VideoProvider {
	case ProviderFal:
		if c.FalKey == "" {
			return ErrFalKeyRequired
		}
	case ProviderRunPod:
		if c.RunPodAPIKey == "" {
			return ErrRunPodAPIKeyRequired
		}
		if c.RunPodEndpointID == "" {
			return ErrRunPodEndpointIDRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownVideoProvider, c.VideoProvider)
	}

	switch c.UploadBackend {
	case BackendLivepeer:
		if c.LivepeerAPIKey == "" {
			return ErrLivepeerAPIKeyRequired
		}
	case BackendS3:
		if !c.S3Enabled() {
			return ErrS3ConfigRequired
		}
	case BackendYouTube:
		if !c.YouTubeEnabled() {
			return ErrYouTubeCredentialsRequired
		}
	case BackendLocal:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownUploadBackend, c.UploadBackend)
	}

	switch {
	case c.MaxConcurrentScenes < 1:
		return fmt.Errorf("%w: MAX_CONCURRENT_SCENES must be at least 1", ErrInvalidPipelineSetting)
	case c.MaxSceneAudioSec <= 0:
		return fmt.Errorf("%w: MAX_SCENE_AUDIO_SEC must be positive", ErrInvalidPipelineSetting)
	case c.RetryMaxAttempts < 1:
		return fmt.Errorf("%w: RETRY_MAX_ATTEMPTS must be at least 1", ErrInvalidPipelineSetting)
	case c.VideoWidth < 1 || c.VideoHeight < 1:
		return fmt.Errorf("%w: VIDEO_WIDTH and VIDEO_HEIGHT must be positive", ErrInvalidPipelineSetting)
	case c.StorySceneDuration <= 0:
		return fmt.Errorf("%w: STORY_SCENE_DURATION must be positive", ErrInvalidPipelineSetting)
	}
	return nil
}

// NewLogger creates a structured logger based on the configuration.
// When LogFormat is "json", it outputs JSON logs suitable for production.
// Otherwise, it outputs human-readable text logs.
func (c *Config) NewLogger() *slog.Logger {
	level := parseLogLevel(c.LogLevel)

	var handler slog.Handler
	if strings.ToLower(c.LogFormat) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
		})
	}

	return slog.New(handler)
}

// String returns a string representation of the config with sensitive values masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Port: %d, TempDir: %s, OutputDir: %s, KeepOutput: %t, MaxConcurrentScenes: %d, MaxSceneAudioSec: %.1f, "+
			"VideoProvider: %s, FalKey: %s, RunPodAPIKey: %s, RunPodEndpointID: %s, LivepeerAPIKey: %s, ElevenLabsAPIKey: %s, "+
			"StoryAPIKey: %s, StoryModel: %s, UploadBackend: %s, S3Bucket: %s, S3Region: %s, YouTube: %t, Redis: %s, Kafka: %s, LogFormat: %s, LogLevel: %s}",
		c.Port,
		c.TempDir,
		c.OutputDir,
		c.KeepOutput,
		c.MaxConcurrentScenes,
		c.MaxSceneAudioSec,
		c.VideoProvider,
		mask(c.FalKey),
		mask(c.RunPodAPIKey),
		c.RunPodEndpointID,
		mask(c.LivepeerAPIKey),
		mask(c.ElevenLabsAPIKey),
		mask(c.StoryAPIKey),
		c.StoryModel,
		c.UploadBackend,
		c.S3Bucket,
		c.S3Region,
		c.YouTubeEnabled(),
		c.RedisAddr,
		strings.Join(c.KafkaBrokers, ","),
		c.LogFormat,
		c.LogLevel,
	)
}

// mask hides a secret, showing only whether it is set.
func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "****"
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
