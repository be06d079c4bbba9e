package config

import (
	"os"
	"testing"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SPEECH_SERVICE", "deepgram")
	t.Setenv("DEEPGRAM_API_KEY", "test-deepgram-key")
	t.Setenv("SENTIMENT_SERVICE", "http")
	t.Setenv("SENTIMENT_SERVICE_URL", "http://localhost:9000")
}

func TestLoad(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.DeepgramAPIKey != "test-deepgram-key" {
		t.Errorf("Expected DeepgramAPIKey 'test-deepgram-key', got '%s'", cfg.DeepgramAPIKey)
	}

	if cfg.SentimentServiceURL != "http://localhost:9000" {
		t.Errorf("Expected SentimentServiceURL 'http://localhost:9000', got '%s'", cfg.SentimentServiceURL)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	os.Unsetenv("DEEPGRAM_API_KEY")
	os.Unsetenv("SENTIMENT_SERVICE_URL")
	t.Setenv("SPEECH_SERVICE", "deepgram")

	_, err := Load()
	if err == nil {
		t.Error("Expected error when required keys are missing")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default Port '8080', got '%s'", cfg.Port)
	}

	if cfg.DeepgramModel != "nova-2" {
		t.Errorf("Expected default DeepgramModel 'nova-2', got '%s'", cfg.DeepgramModel)
	}

	if cfg.AudioSampleRate != 16000 {
		t.Errorf("Expected default AudioSampleRate 16000, got %d", cfg.AudioSampleRate)
	}

	if cfg.ReadingExpirationSeconds != 20 {
		t.Errorf("Expected default ReadingExpirationSeconds 20, got %d", cfg.ReadingExpirationSeconds)
	}

	if !cfg.AutoStart {
		t.Error("Expected default AutoStart true, got false")
	}
}

func TestLoadFromEnv(t *testing.T) {
	setRequired(t)
	t.Setenv("READING_EXPIRATION_SECONDS", "45")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() failed: %v", err)
	}

	if cfg.ReadingExpirationSeconds != 45 {
		t.Errorf("Expected ReadingExpirationSeconds 45, got %d", cfg.ReadingExpirationSeconds)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			SpeechService:            SpeechHTTP,
			SpeechServiceURL:         "http://speech:8000",
			SentimentService:         SentimentGRPC,
			SentimentGRPCAddr:        "sentiment:50051",
			ReadingExpirationSeconds: 20,
			ListenBackoffInitial:     250,
			ListenBackoffMax:         5000,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero expiration", func(c *Config) { c.ReadingExpirationSeconds = 0 }, true},
		{"negative expiration", func(c *Config) { c.ReadingExpirationSeconds = -5 }, true},
		{"unknown speech service", func(c *Config) { c.SpeechService = "whisper" }, true},
		{"missing speech url", func(c *Config) { c.SpeechServiceURL = "" }, true},
		{"deepgram without key", func(c *Config) { c.SpeechService = SpeechDeepgram; c.AudioSampleRate = 16000 }, true},
		{"unknown sentiment service", func(c *Config) { c.SentimentService = "kafka" }, true},
		{"missing grpc addr", func(c *Config) { c.SentimentGRPCAddr = "" }, true},
		{"backoff max below initial", func(c *Config) { c.ListenBackoffMax = 100 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ResilienceDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.ListenBackoffInitial != 250 {
		t.Errorf("Expected default ListenBackoffInitial 250, got %d", cfg.ListenBackoffInitial)
	}

	if cfg.ListenBackoffMax != 5000 {
		t.Errorf("Expected default ListenBackoffMax 5000, got %d", cfg.ListenBackoffMax)
	}

	if cfg.CircuitBreakerMaxFailures != 5 {
		t.Errorf("Expected default CircuitBreakerMaxFailures 5, got %d", cfg.CircuitBreakerMaxFailures)
	}

	if cfg.RetryMaxAttempts != 3 {
		t.Errorf("Expected default RetryMaxAttempts 3, got %d", cfg.RetryMaxAttempts)
	}

	if cfg.ReconnectBackoff != 1000 {
		t.Errorf("Expected default ReconnectBackoff 1000, got %d", cfg.ReconnectBackoff)
	}
}

func TestConfig_ObservabilityDefaults(t *testing.T) {
	setRequired(t)
	os.Unsetenv("LOG_LEVEL")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected default LogLevel 'info', got '%s'", cfg.LogLevel)
	}

	if cfg.LogPretty {
		t.Error("Expected default LogPretty false, got true")
	}

	if !cfg.MetricsEnabled {
		t.Error("Expected default MetricsEnabled true, got false")
	}
}
