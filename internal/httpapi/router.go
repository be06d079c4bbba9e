// Package httpapi exposes a sensor over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
)

// Sensor is the part of sensor.Sensor the HTTP surface needs
type Sensor interface {
	GetReadings() map[string]any
	DoCommand(ctx context.Context, cmd map[string]any) (map[string]any, error)
}

// Options configure the router
type Options struct {
	PushInterval   time.Duration // How often /readings/stream checks for a change
	Readiness      map[string]observability.HealthCheckFunc
	MetricsEnabled bool
	AllowedOrigins []string

	Clock  clockwork.Clock
	Logger zerolog.Logger
}

type api struct {
	sensor Sensor
	opts   Options
	logger zerolog.Logger
}

// NewRouter builds the HTTP handler for s
func NewRouter(s Sensor, opts Options) http.Handler {
	if opts.PushInterval <= 0 {
		opts.PushInterval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	a := &api{sensor: s, opts: opts, logger: opts.Logger}

	r := mux.NewRouter()
	r.HandleFunc("/readings", a.getReadings).Methods(http.MethodGet)
	r.HandleFunc("/readings/stream", a.streamReadings).Methods(http.MethodGet)
	r.HandleFunc("/command", a.doCommand).Methods(http.MethodPost)
	r.HandleFunc("/health", observability.HealthCheckHandler()).Methods(http.MethodGet)
	r.HandleFunc("/ready", observability.ReadinessHandler(opts.Readiness)).Methods(http.MethodGet)
	if opts.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	var h http.Handler = r
	h = handlers.CORS(
		handlers.AllowedOrigins(opts.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", correlationHeader}),
	)(h)
	h = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(h)
	return handlers.CombinedLoggingHandler(opts.Logger, h)
}
