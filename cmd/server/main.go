package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lexiqai/mic-speech-sentiment/internal/config"
	"github.com/lexiqai/mic-speech-sentiment/internal/httpapi"
	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
	"github.com/lexiqai/mic-speech-sentiment/internal/sensor"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Use fmt for fatal errors before logger is initialized
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty)
	logger := observability.GetLogger()

	logger.Info().
		Str("port", cfg.Port).
		Str("speech_service", cfg.SpeechService).
		Str("sentiment_service", cfg.SentimentService).
		Int("reading_expiration_seconds", cfg.ReadingExpirationSeconds).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Speech sentiment sensor starting")

	speechBreaker := newBreaker(cfg, "speech")
	sentimentBreaker := newBreaker(cfg, "sentiment")

	src, err := newSpeechSource(cfg, speechBreaker)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create speech source")
	}

	cls, err := newClassifier(cfg, sentimentBreaker)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create sentiment classifier")
	}

	sensorLogger := observability.Component("sensor")
	s, err := sensor.New(sensor.Options{
		ExpirationSeconds: cfg.ReadingExpirationSeconds,
		AutoStart:         cfg.AutoStart,
		BackoffInitial:    time.Duration(cfg.ListenBackoffInitial) * time.Millisecond,
		BackoffMax:        time.Duration(cfg.ListenBackoffMax) * time.Millisecond,
		Logger:            &sensorLogger,
	}, src, cls)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create sensor")
	}

	router := httpapi.NewRouter(s, httpapi.Options{
		PushInterval:   time.Duration(cfg.ReadingsPushInterval) * time.Millisecond,
		Readiness:      readinessChecks(src, cls, speechBreaker, sentimentBreaker),
		MetricsEnabled: cfg.MetricsEnabled,
		Logger:         observability.Component("http"),
	})
	if cfg.MetricsEnabled {
		logger.Info().Msg("Prometheus metrics enabled at /metrics")
	}

	// Create HTTP server with timeouts. No WriteTimeout so /readings/stream can stay open.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("readings", fmt.Sprintf("http://localhost:%s/readings", cfg.Port)).
			Msg("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}

	if err := s.Close(); err != nil {
		logger.Error().Err(err).Msg("Failed to close sensor")
	}

	logger.Info().Msg("Server exited gracefully")
}
