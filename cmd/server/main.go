// Package main provides the entry point for the scenereel API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maauso/scenereel/internal/bootstrap"
	"github.com/maauso/scenereel/internal/config"
	"github.com/maauso/scenereel/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting scenereel API",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.String("temp_dir", cfg.TempDir),
		slog.String("video_provider", cfg.VideoProvider),
		slog.String("upload_backend", cfg.UploadBackend),
		slog.Int("max_concurrent_scenes", cfg.MaxConcurrentScenes),
		slog.Bool("kafka_enabled", cfg.KafkaEnabled()),
		slog.Bool("redis_enabled", cfg.RedisEnabled()),
	)
	logger.Debug("configuration", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, err := bootstrap.NewDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Warn("closing dependencies", slog.Any("error", err))
		}
	}()

	if deps.Consumer != nil {
		if err := deps.Consumer.Start(ctx); err != nil {
			return fmt.Errorf("start request consumer: %w", err)
		}
		defer func() {
			if err := deps.Consumer.Close(); err != nil {
				logger.Warn("closing request consumer", slog.Any("error", err))
			}
		}()
	}

	handlers := server.NewHandlers(deps.MovieService, logger, server.WithStoryboard(deps.Storyboard))
	router := server.NewRouter(handlers, logger, server.Config{AllowedOrigins: cfg.AllowedOrigins})

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		// Event streams stay open for the whole assembly.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
