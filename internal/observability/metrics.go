package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Listener metrics
	listenerRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "speech_sentiment_listener_running",
		Help: "Whether the listener loop is running (1) or stopped (0)",
	})

	listenerRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_sentiment_listener_runs_total",
		Help: "Total number of listener loop executions started",
	})

	// Speech source metrics
	listenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_sentiment_listen_requests_total",
		Help: "Total number of speech source listen calls",
	}, []string{"status"}) // status: success, error, empty

	listenLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_sentiment_listen_latency_seconds",
		Help:    "Time spent waiting on the speech source",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
	})

	// Sentiment classifier metrics
	classifyRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_sentiment_classify_requests_total",
		Help: "Total number of sentiment classifier calls",
	}, []string{"status"})

	classifyLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_sentiment_classify_latency_seconds",
		Help:    "Sentiment classifier latency in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Reading metrics
	readingsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_sentiment_readings_total",
		Help: "Total number of readings stored, by sentiment label",
	}, []string{"sentiment"})

	backoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "speech_sentiment_listen_backoff_seconds",
		Help:    "Backoff applied after speech source failures",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_sentiment_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "speech_sentiment_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "speech_sentiment_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_sentiment_audio_bytes_forwarded_total",
		Help: "Microphone bytes forwarded to the STT backend",
	})

	audioFramesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "speech_sentiment_audio_frames_skipped_total",
		Help: "Silent microphone frames not forwarded to the STT backend",
	})
)

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// SetListenerRunning records the lifecycle state of the listener loop
func SetListenerRunning(running bool) {
	if running {
		listenerRunning.Set(1)
		listenerRuns.Inc()
		return
	}
	listenerRunning.Set(0)
}

// RecordListen records one speech source call
func RecordListen(status string, latency time.Duration) {
	listenRequests.WithLabelValues(status).Inc()
	listenLatency.Observe(latency.Seconds())
}

// RecordClassify records one sentiment classifier call
func RecordClassify(success bool, latency time.Duration) {
	classifyRequests.WithLabelValues(statusLabel(success)).Inc()
	classifyLatency.Observe(latency.Seconds())
}

// RecordReading records a reading written to the store
func RecordReading(sentiment string) {
	readingsStored.WithLabelValues(sentiment).Inc()
}

// RecordBackoff records a backoff delay applied by the listener loop
func RecordBackoff(d time.Duration) {
	backoffSeconds.Observe(d.Seconds())
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioForwarded records microphone bytes sent upstream
func RecordAudioForwarded(bytes int) {
	audioBytesForwarded.Add(float64(bytes))
}

// RecordAudioSkipped records a silent frame that was not sent upstream
func RecordAudioSkipped() {
	audioFramesSkipped.Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
