package sentiment

import (
	"context"
	"strings"

	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
	"github.com/lexiqai/mic-speech-sentiment/internal/resilience"
)

// protectedCall runs one classification through the breaker and retry policy
func protectedCall(ctx context.Context, opts Options, fn func(ctx context.Context) (string, error)) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var label string
	attempt := func() error {
		return resilience.Retry(ctx, func(ctx context.Context) error {
			var err error
			label, err = fn(ctx)
			return err
		}, opts.Retry, resilience.IsRetryableNetworkError)
	}

	var err error
	if opts.Breaker == nil {
		err = attempt()
	} else {
		err = opts.Breaker.Call(attempt)
		observability.UpdateCircuitBreakerState(opts.Breaker.Name(), int(opts.Breaker.GetState()))
		if err != nil {
			observability.IncrementCircuitBreakerFailures(opts.Breaker.Name())
		}
	}
	if err != nil {
		return "", err
	}

	label = strings.TrimSpace(label)
	if label == "" {
		return "", ErrEmptyLabel
	}
	return label, nil
}
