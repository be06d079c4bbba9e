// Package sentiment provides the classifiers that label transcribed speech.
package sentiment

import (
	"context"
	"errors"
	"time"

	"github.com/lexiqai/mic-speech-sentiment/internal/resilience"
)

// ErrEmptyLabel is returned when a classifier answers without a sentiment label
var ErrEmptyLabel = errors.New("classifier returned no sentiment label")

// Classifier labels a piece of text with a sentiment such as "Positive",
// "Negative" or "Neutral". The label set is owned by the classifier.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}

// HealthChecker is implemented by classifiers that can report upstream health
type HealthChecker interface {
	Healthy(ctx context.Context) (bool, error)
}

// Options are shared by the remote classifiers
type Options struct {
	Timeout time.Duration              // Per-request deadline, including retries
	Retry   *resilience.RetryConfig    // Retries for transient network errors
	Breaker *resilience.CircuitBreaker // Optional; nil disables the breaker
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Retry == nil {
		o.Retry = resilience.DefaultRetryConfig()
	}
	return o
}
