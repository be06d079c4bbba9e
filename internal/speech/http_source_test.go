package speech

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

func TestHTTPSource_Listen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/listen", r.URL.Path)

		var req listenRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "listen", req.Command)

		_ = json.NewEncoder(w).Encode(listenResponse{Text: "Good morning to you"})
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL+"/", nil)
	require.NoError(t, err)

	text, err := src.Listen(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Good morning to you", text)
}

func TestHTTPSource_ServiceError(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "microphone unavailable", http.StatusServiceUnavailable)
		}},
		{"error field", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(listenResponse{Error: "no input device"})
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			src, err := NewHTTPSource(srv.URL, nil)
			require.NoError(t, err)

			_, err = src.Listen(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestHTTPSource_CircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := resilience.NewCircuitBreaker("speech-test", 2, time.Minute)
	src, err := NewHTTPSource(srv.URL, breaker)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := src.Listen(context.Background())
		require.Error(t, err)
	}

	_, err = src.Listen(context.Background())
	assert.True(t, errors.Is(err, resilience.ErrCircuitOpen))
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPSource_ContextCancelled(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	src, err := NewHTTPSource(srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = src.Listen(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPSource_Healthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	src, err := NewHTTPSource(srv.URL, nil)
	require.NoError(t, err)

	healthy, err := src.Healthy(context.Background())
	require.NoError(t, err)
	assert.True(t, healthy)
}

func TestNewHTTPSource_RequiresURL(t *testing.T) {
	_, err := NewHTTPSource("", nil)
	assert.Error(t, err)
}
