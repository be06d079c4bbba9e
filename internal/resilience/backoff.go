package resilience

import (
	"context"
	"math"
	"time"

	"github.com/jonboulle/clockwork"
)

// Backoff is a capped exponential delay sequence. It is not safe for
// concurrent use; each retry loop owns its own Backoff.
type Backoff struct {
	Initial    time.Duration // First delay
	Max        time.Duration // Upper bound for any delay
	Multiplier float64       // Growth factor between consecutive delays

	attempt int
}

// NewBackoff creates a backoff starting at initial and doubling up to max
func NewBackoff(initial, max time.Duration) *Backoff {
	return &Backoff{
		Initial:    initial,
		Max:        max,
		Multiplier: 2.0,
	}
}

// Next returns the delay for the current attempt and advances the sequence
func (b *Backoff) Next() time.Duration {
	d := CalculateBackoff(b.attempt, b.Initial, b.Max, b.Multiplier)
	if d < b.Max {
		b.attempt++
	}
	return d
}

// Reset restarts the sequence at Initial
func (b *Backoff) Reset() {
	b.attempt = 0
}

// CalculateBackoff calculates the backoff duration for a given attempt
func CalculateBackoff(attempt int, initialBackoff time.Duration, maxBackoff time.Duration, multiplier float64) time.Duration {
	if multiplier < 1 {
		multiplier = 1
	}
	backoff := time.Duration(float64(initialBackoff) * math.Pow(multiplier, float64(attempt)))
	if backoff > maxBackoff || backoff <= 0 {
		return maxBackoff
	}
	return backoff
}

// Sleep waits for d on clock, returning early with ctx.Err() if ctx is cancelled
func Sleep(ctx context.Context, clock clockwork.Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
