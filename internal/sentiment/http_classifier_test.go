package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/mic-speech-sentiment/internal/resilience"
)

func fastRetry(attempts int) *resilience.RetryConfig {
	return &resilience.RetryConfig{
		MaxAttempts:       attempts,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestHTTPClassifier_Classify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/do_command", r.URL.Path)

		var req doCommandRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "get_sentiment", req.Command)
		assert.Equal(t, "I love this", req.Text)

		_ = json.NewEncoder(w).Encode(doCommandResponse{Sentiment: " Positive\n"})
	}))
	defer srv.Close()

	cls, err := NewHTTPClassifier(srv.URL, Options{Retry: fastRetry(1)})
	require.NoError(t, err)

	label, err := cls.Classify(context.Background(), "I love this")
	require.NoError(t, err)
	assert.Equal(t, "Positive", label)
}

func TestHTTPClassifier_EmptyLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(doCommandResponse{Sentiment: "  "})
	}))
	defer srv.Close()

	cls, err := NewHTTPClassifier(srv.URL, Options{Retry: fastRetry(1)})
	require.NoError(t, err)

	_, err = cls.Classify(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrEmptyLabel)
}

func TestHTTPClassifier_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(doCommandResponse{Sentiment: "Neutral"})
	}))
	defer srv.Close()

	cls, err := NewHTTPClassifier(srv.URL, Options{Retry: fastRetry(3)})
	require.NoError(t, err)

	label, err := cls.Classify(context.Background(), "it is what it is")
	require.NoError(t, err)
	assert.Equal(t, "Neutral", label)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPClassifier_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	cls, err := NewHTTPClassifier(srv.URL, Options{Retry: fastRetry(3)})
	require.NoError(t, err)

	_, err = cls.Classify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPClassifier_ServiceErrorField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(doCommandResponse{Error: "model not loaded"})
	}))
	defer srv.Close()

	cls, err := NewHTTPClassifier(srv.URL, Options{Retry: fastRetry(1)})
	require.NoError(t, err)

	_, err = cls.Classify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestHTTPClassifier_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	breaker := resilience.NewCircuitBreaker("sentiment-test", 2, time.Minute)
	cls, err := NewHTTPClassifier(srv.URL, Options{Retry: fastRetry(1), Breaker: breaker})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = cls.Classify(context.Background(), "hello")
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, breaker.GetState())

	_, err = cls.Classify(context.Background(), "hello")
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPClassifier_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cls, err := NewHTTPClassifier(srv.URL, Options{Timeout: 50 * time.Millisecond, Retry: fastRetry(1)})
	require.NoError(t, err)

	start := time.Now()
	_, err = cls.Classify(context.Background(), "hello")
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestHTTPClassifier_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cls, err := NewHTTPClassifier(srv.URL, Options{})
	require.NoError(t, err)

	ok, err := cls.Healthy(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewHTTPClassifier_RequiresURL(t *testing.T) {
	_, err := NewHTTPClassifier("", Options{})
	assert.Error(t, err)
}
