package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Speech source kinds
const (
	SpeechDeepgram = "deepgram"
	SpeechHTTP     = "http"
)

// Sentiment classifier kinds
const (
	SentimentHTTP = "http"
	SentimentGRPC = "grpc"
)

// Config holds all configuration for the speech sentiment sensor
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Speech source selection: deepgram (live microphone stream) or http (remote speech service)
	SpeechService    string `envconfig:"SPEECH_SERVICE" default:"deepgram"`
	SpeechServiceURL string `envconfig:"SPEECH_SERVICE_URL" default:""` // Base URL of the remote speech service

	// Deepgram STT API configuration
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"` // nova-2, enhanced, base
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`  // Language code (en, es, fr, etc.)

	// Microphone input, 16-bit little-endian mono PCM
	AudioInput         string  `envconfig:"AUDIO_INPUT" default:"-"`              // "-" reads stdin, otherwise a file or fifo path
	AudioSampleRate    int     `envconfig:"AUDIO_SAMPLE_RATE" default:"16000"`    // Hz
	VADEnergyThreshold float64 `envconfig:"VAD_ENERGY_THRESHOLD" default:"500.0"` // RMS energy threshold for VAD
	VADSilenceFrames   int     `envconfig:"VAD_SILENCE_FRAMES" default:"25"`      // Frames of silence to mark speech end

	// Sentiment classifier selection: http (do_command style) or grpc
	SentimentService    string `envconfig:"SENTIMENT_SERVICE" default:"http"`
	SentimentServiceURL string `envconfig:"SENTIMENT_SERVICE_URL" default:""`
	SentimentGRPCAddr   string `envconfig:"SENTIMENT_GRPC_ADDR" default:""`
	SentimentTimeout    int    `envconfig:"SENTIMENT_TIMEOUT" default:"10"` // seconds

	// Reading cache
	ReadingExpirationSeconds int  `envconfig:"READING_EXPIRATION_SECONDS" default:"20"`
	AutoStart                bool `envconfig:"AUTO_START" default:"true"`
	ReadingsPushInterval     int  `envconfig:"READINGS_PUSH_INTERVAL" default:"1000"` // milliseconds

	// Resilience configuration
	ListenBackoffInitial       int `envconfig:"LISTEN_BACKOFF_INITIAL" default:"250"`       // milliseconds
	ListenBackoffMax           int `envconfig:"LISTEN_BACKOFF_MAX" default:"5000"`          // milliseconds
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts per request
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv()
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the referenced services are usable and the cache settings are sane
func (c *Config) Validate() error {
	switch c.SpeechService {
	case SpeechDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when SPEECH_SERVICE=%s", SpeechDeepgram)
		}
		if c.AudioSampleRate <= 0 {
			return fmt.Errorf("AUDIO_SAMPLE_RATE must be positive, got %d", c.AudioSampleRate)
		}
	case SpeechHTTP:
		if c.SpeechServiceURL == "" {
			return fmt.Errorf("SPEECH_SERVICE_URL is required when SPEECH_SERVICE=%s", SpeechHTTP)
		}
	default:
		return fmt.Errorf("unknown SPEECH_SERVICE %q", c.SpeechService)
	}

	switch c.SentimentService {
	case SentimentHTTP:
		if c.SentimentServiceURL == "" {
			return fmt.Errorf("SENTIMENT_SERVICE_URL is required when SENTIMENT_SERVICE=%s", SentimentHTTP)
		}
	case SentimentGRPC:
		if c.SentimentGRPCAddr == "" {
			return fmt.Errorf("SENTIMENT_GRPC_ADDR is required when SENTIMENT_SERVICE=%s", SentimentGRPC)
		}
	default:
		return fmt.Errorf("unknown SENTIMENT_SERVICE %q", c.SentimentService)
	}

	if c.ReadingExpirationSeconds <= 0 {
		return fmt.Errorf("READING_EXPIRATION_SECONDS must be greater than 0, got %d", c.ReadingExpirationSeconds)
	}
	if c.ListenBackoffInitial <= 0 || c.ListenBackoffMax < c.ListenBackoffInitial {
		return fmt.Errorf("invalid listen backoff: initial=%dms max=%dms", c.ListenBackoffInitial, c.ListenBackoffMax)
	}

	return nil
}
