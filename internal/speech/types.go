// Package speech provides the speech sources the listener loop draws utterances from.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrSourceInactive is returned by Listen while the source has no live upstream connection
	ErrSourceInactive = errors.New("speech source is not active")
	// ErrSourceClosed is returned by Listen after Close
	ErrSourceClosed = errors.New("speech source is closed")
	// ErrAudioInputClosed is returned once the microphone stream has ended and no utterances remain
	ErrAudioInputClosed = errors.New("audio input closed")
)

// Source produces transcribed utterances.
type Source interface {
	// Listen blocks until an utterance is available, the source fails, or ctx is done.
	Listen(ctx context.Context) (string, error)
}

// HealthChecker is implemented by sources that can report upstream health
type HealthChecker interface {
	Healthy(ctx context.Context) (bool, error)
}
