// Package bootstrap wires the scenereel components from configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/redis/go-redis/v9"

	"github.com/maauso/scenereel/internal/audio"
	"github.com/maauso/scenereel/internal/config"
	"github.com/maauso/scenereel/internal/elevenlabs"
	"github.com/maauso/scenereel/internal/fal"
	"github.com/maauso/scenereel/internal/generator"
	"github.com/maauso/scenereel/internal/idempotency"
	"github.com/maauso/scenereel/internal/job"
	"github.com/maauso/scenereel/internal/kafka"
	"github.com/maauso/scenereel/internal/livepeer"
	"github.com/maauso/scenereel/internal/media"
	"github.com/maauso/scenereel/internal/pipeline"
	"github.com/maauso/scenereel/internal/retry"
	"github.com/maauso/scenereel/internal/runpod"
	"github.com/maauso/scenereel/internal/storage"
	"github.com/maauso/scenereel/internal/storyboard"
	"github.com/maauso/scenereel/internal/tts"
	"github.com/maauso/scenereel/internal/upload"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	MovieService *job.MovieService
	Storyboard   *storyboard.Planner
	// Consumer is nil unless Kafka brokers are configured.
	Consumer *kafka.Consumer

	closers []func() error
}

// Close releases connections opened by NewDependencies.
func (d *Dependencies) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		errs = append(errs, d.closers[i]())
	}
	return errors.Join(errs...)
}

// NewDependencies creates and initializes all dependencies for the server.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	assembler, err := NewAssembler(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Storyboard: NewStoryboard(cfg, logger)}

	requests, err := initRequestStore(ctx, cfg, logger, deps)
	if err != nil {
		_ = deps.Close()
		return nil, err
	}

	var notifier job.Notifier = job.NewLogNotifier(logger)
	if cfg.KafkaEnabled() {
		producer, err := kafka.NewCompletionNotifier(cfg.KafkaBrokers, cfg.KafkaCompletionTopic)
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("create completion notifier: %w", err)
		}
		deps.closers = append(deps.closers, producer.Close)
		notifier = producer
	}

	deps.MovieService = job.NewMovieService(
		job.NewMemoryRepository(),
		assembler,
		requests,
		logger,
		job.WithJobTimeout(cfg.JobTimeout),
		job.WithNotifier(notifier),
	)

	if cfg.KafkaEnabled() {
		consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: cfg.KafkaBrokers,
			Topic:   cfg.KafkaRequestTopic,
			GroupID: cfg.KafkaGroupID,
			Handler: kafka.NewCreationHandler(deps.MovieService, deps.Storyboard, nil, logger),
			Logger:  logger,
			Retry: retry.Policy{
				MaxAttempts: cfg.RetryMaxAttempts,
				Delay:       cfg.RetryDelay,
				Multiplier:  2,
			},
		})
		if err != nil {
			_ = deps.Close()
			return nil, fmt.Errorf("create request consumer: %w", err)
		}
		deps.Consumer = consumer
		logger.Info("kafka configured",
			slog.Any("brokers", cfg.KafkaBrokers),
			slog.String("request_topic", cfg.KafkaRequestTopic),
			slog.String("completion_topic", cfg.KafkaCompletionTopic),
		)
	}

	return deps, nil
}

// NewAssembler builds the scene pipeline: providers, ffmpeg processing,
// scratch storage and the configured upload backend.
func NewAssembler(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pipeline.Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := storage.NewLocalStorage(cfg.TempDir, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("create local storage: %w", err)
	}
	logger.Info("local storage configured",
		slog.String("temp_dir", store.TempDir()),
		slog.String("output_dir", store.OutputDir()),
	)

	proc := media.NewFFmpegProcessor(
		media.WithTimeout(cfg.FFmpegTimeout),
		media.WithConcatTimeout(cfg.ConcatTimeout),
	)

	gen, err := initGenerator(cfg, store.TempDir())
	if err != nil {
		return nil, err
	}

	speech, sounds, err := initAudioSources(cfg, store.TempDir(), logger)
	if err != nil {
		return nil, err
	}

	uploader, err := initUploader(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	audioGen := pipeline.NewAudioGenerator(
		speech,
		sounds,
		proc,
		audio.NewFFmpegMixer(proc, logger, audio.WithTimeout(cfg.FFmpegTimeout)),
		logger,
		pipeline.WithMaxSceneAudio(cfg.MaxSceneAudioSec),
	)

	videoGen := pipeline.NewVideoGenerator(
		gen,
		proc,
		logger,
		pipeline.WithRetryPolicy(retry.Policy{
			MaxAttempts: cfg.RetryMaxAttempts,
			Delay:       cfg.RetryDelay,
			Multiplier:  1,
		}),
		pipeline.WithPollInterval(cfg.PollInterval),
		pipeline.WithVideoSize(cfg.VideoWidth, cfg.VideoHeight),
	)

	return pipeline.NewAssembler(
		store,
		audioGen,
		videoGen,
		proc,
		uploader,
		logger,
		pipeline.WithMaxConcurrentScenes(cfg.MaxConcurrentScenes),
		pipeline.WithKeepOutput(cfg.KeepOutput),
	), nil
}

// initGenerator creates the text-to-video adapter for cfg.VideoProvider.
func initGenerator(cfg *config.Config, spoolDir string) (generator.Generator, error) {
	switch cfg.VideoProvider {
	case config.ProviderRunPod:
		client, err := runpod.NewClient(cfg.RunPodEndpointID, runpod.WithAPIKey(cfg.RunPodAPIKey))
		if err != nil {
			return nil, fmt.Errorf("create RunPod client: %w", err)
		}
		return generator.NewRunPodAdapter(client, spoolDir), nil
	default:
		client, err := fal.NewClient(fal.WithAPIKey(cfg.FalKey), fal.WithModel(cfg.FalModel))
		if err != nil {
			return nil, fmt.Errorf("create fal client: %w", err)
		}
		return generator.NewFalAdapter(client), nil
	}
}

// initAudioSources creates the speech and sound-effect providers. A provider
// without credentials is left nil and its scenes fall back to the next
// source.
func initAudioSources(cfg *config.Config, spoolDir string, logger *slog.Logger) (tts.Synthesizer, tts.SoundGenerator, error) {
	var (
		speech tts.Synthesizer
		sounds tts.SoundGenerator
	)

	if cfg.LivepeerAPIKey != "" {
		client, err := newLivepeerClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		speech = tts.NewLivepeerSynthesizer(client)
	} else {
		logger.Warn("LIVEPEER_API_KEY not set, scenes will have no dialogue or ambient speech")
	}

	if cfg.ElevenLabsAPIKey != "" {
		client, err := elevenlabs.NewClient(elevenlabs.WithAPIKey(cfg.ElevenLabsAPIKey))
		if err != nil {
			return nil, nil, fmt.Errorf("create ElevenLabs client: %w", err)
		}
		sounds = tts.NewElevenLabsSoundGenerator(client, spoolDir)
	} else {
		logger.Warn("ELEVENLABS_API_KEY not set, sound effects fall back to ambient speech")
	}

	return speech, sounds, nil
}

// initUploader creates the publishing backend for cfg.UploadBackend.
func initUploader(ctx context.Context, cfg *config.Config, logger *slog.Logger) (upload.Uploader, error) {
	switch cfg.UploadBackend {
	case config.BackendLivepeer:
		client, err := newLivepeerClient(cfg)
		if err != nil {
			return nil, err
		}
		var opts []upload.LivepeerOption
		if cfg.LivepeerWaitReady > 0 {
			opts = append(opts, upload.WithWaitReady(cfg.LivepeerWaitReady))
		}
		return upload.NewLivepeerUploader(client, logger, opts...), nil

	case config.BackendS3:
		s3Store, err := storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
		})
		if err != nil {
			return nil, fmt.Errorf("create S3 storage: %w", err)
		}
		logger.Info("S3 upload configured",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("region", cfg.S3Region),
		)
		return upload.NewS3Uploader(s3Store), nil

	case config.BackendYouTube:
		yt, err := upload.NewYouTubeUploader(ctx, upload.YouTubeConfig{
			ClientID:     cfg.YouTubeClientID,
			ClientSecret: cfg.YouTubeClientSecret,
			RefreshToken: cfg.YouTubeRefreshToken,
			Privacy:      cfg.YouTubePrivacy,
		})
		if err != nil {
			return nil, fmt.Errorf("create YouTube uploader: %w", err)
		}
		return yt, nil

	default:
		dir := cfg.PublishDir
		if dir == "" {
			dir = filepath.Join(cfg.TempDir, "published")
		}
		local, err := upload.NewLocalUploader(dir)
		if err != nil {
			return nil, fmt.Errorf("create local uploader: %w", err)
		}
		return local, nil
	}
}

func newLivepeerClient(cfg *config.Config) (*livepeer.HTTPClient, error) {
	client, err := livepeer.NewClient(
		livepeer.WithAPIKey(cfg.LivepeerAPIKey),
		livepeer.WithGatewayURL(cfg.LivepeerGatewayURL),
		livepeer.WithStudioURL(cfg.LivepeerStudioURL),
		livepeer.WithTTSModel(cfg.TTSModel),
		livepeer.WithUploadHTTPClient(&http.Client{Timeout: 30 * time.Minute}),
	)
	if err != nil {
		return nil, fmt.Errorf("create Livepeer client: %w", err)
	}
	return client, nil
}

// initRequestStore picks Redis for request de-duplication when configured,
// falling back to an in-process store.
func initRequestStore(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps *Dependencies) (idempotency.Store, error) {
	if !cfg.RedisEnabled() {
		return idempotency.NewMemoryStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	deps.closers = append(deps.closers, client.Close)

	logger.Info("redis request store configured", slog.String("addr", cfg.RedisAddr))
	return idempotency.NewRedisStore(client, "scenereel:request:", cfg.RedisKeyTTL), nil
}

// NewStoryboard creates the planner for prompt-only requests. Without
// STORY_API_KEY every prompt becomes a single scene.
func NewStoryboard(cfg *config.Config, logger *slog.Logger) *storyboard.Planner {
	var writer storyboard.Writer
	if cfg.StoryEnabled() {
		opts := []option.RequestOption{option.WithRequestTimeout(cfg.StoryTimeout)}
		if cfg.StoryBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.StoryBaseURL))
		}
		writer = storyboard.NewOpenAIWriter(cfg.StoryAPIKey, cfg.StoryModel, opts...)
		logger.Info("storyboard writer configured",
			slog.String("base_url", cfg.StoryBaseURL),
			slog.String("model", cfg.StoryModel),
		)
	} else {
		logger.Warn("STORY_API_KEY not set, prompts become single scenes")
	}
	return storyboard.NewPlanner(writer, logger, storyboard.WithSceneDuration(cfg.StorySceneDuration))
}
