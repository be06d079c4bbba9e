package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/lexiqai/mic-speech-sentiment/internal/audio"
	"github.com/lexiqai/mic-speech-sentiment/internal/config"
	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
	"github.com/lexiqai/mic-speech-sentiment/internal/resilience"
	"github.com/lexiqai/mic-speech-sentiment/internal/sentiment"
	"github.com/lexiqai/mic-speech-sentiment/internal/speech"
)

// newBreaker creates a circuit breaker whose transitions are logged and exported
func newBreaker(cfg *config.Config, name string) *resilience.CircuitBreaker {
	cb := resilience.NewCircuitBreaker(name, cfg.CircuitBreakerMaxFailures,
		time.Duration(cfg.CircuitBreakerResetTimeout)*time.Second)

	logger := observability.Component("resilience")
	cb.OnStateChange = func(name string, state resilience.CircuitState) {
		observability.UpdateCircuitBreakerState(name, int(state))
		logger.Warn().Str("breaker", name).Str("state", state.String()).Msg("Circuit breaker state changed")
	}
	return cb
}

func newSpeechSource(cfg *config.Config, breaker *resilience.CircuitBreaker) (speech.Source, error) {
	switch cfg.SpeechService {
	case config.SpeechHTTP:
		return speech.NewHTTPSource(cfg.SpeechServiceURL, breaker)

	case config.SpeechDeepgram:
		input, err := openAudioInput(cfg.AudioInput)
		if err != nil {
			return nil, err
		}

		src, err := speech.NewDeepgramSource(speech.DeepgramConfig{
			APIKey:     cfg.DeepgramAPIKey,
			Model:      cfg.DeepgramModel,
			Language:   cfg.DeepgramLanguage,
			SampleRate: cfg.AudioSampleRate,
			VAD: &audio.VADConfig{
				EnergyThreshold: cfg.VADEnergyThreshold,
				SilenceFrames:   cfg.VADSilenceFrames,
			},
			Reconnect: &resilience.ReconnectConfig{
				MaxAttempts: cfg.ReconnectMaxAttempts,
				Backoff:     time.Duration(cfg.ReconnectBackoff) * time.Millisecond,
				Multiplier:  2.0,
				MaxBackoff:  30 * time.Second,
			},
			Breaker: breaker,
		}, input, observability.Component("deepgram"))
		if err != nil {
			return nil, err
		}

		if err := src.Start(); err != nil {
			_ = src.Close()
			return nil, fmt.Errorf("failed to start deepgram stream: %w", err)
		}
		return src, nil
	}

	return nil, fmt.Errorf("unknown speech service %q", cfg.SpeechService)
}

// openAudioInput returns the microphone PCM stream; "-" is stdin
func openAudioInput(path string) (io.Reader, error) {
	if path == "" || path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio input: %w", err)
	}
	return f, nil
}

func newClassifier(cfg *config.Config, breaker *resilience.CircuitBreaker) (sentiment.Classifier, error) {
	opts := sentiment.Options{
		Timeout: time.Duration(cfg.SentimentTimeout) * time.Second,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       cfg.RetryMaxAttempts,
			InitialBackoff:    time.Duration(cfg.RetryInitialBackoff) * time.Millisecond,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
		},
		Breaker: breaker,
	}

	switch cfg.SentimentService {
	case config.SentimentHTTP:
		return sentiment.NewHTTPClassifier(cfg.SentimentServiceURL, opts)
	case config.SentimentGRPC:
		return sentiment.NewGRPCClassifier(cfg.SentimentGRPCAddr, opts)
	}
	return nil, fmt.Errorf("unknown sentiment service %q", cfg.SentimentService)
}

// readinessChecks collects the health probes the collaborators offer plus
// one per circuit breaker
func readinessChecks(src speech.Source, cls sentiment.Classifier, breakers ...*resilience.CircuitBreaker) map[string]observability.HealthCheckFunc {
	checks := make(map[string]observability.HealthCheckFunc)
	for _, cb := range breakers {
		checks[cb.Name()+"_circuit"] = cb.Healthy
	}
	if hc, ok := src.(speech.HealthChecker); ok {
		checks["speech"] = hc.Healthy
	}
	if hc, ok := cls.(sentiment.HealthChecker); ok {
		checks["sentiment"] = hc.Healthy
	}
	return checks
}
