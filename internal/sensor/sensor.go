// Package sensor turns heard speech into sentiment readings.
//
// A Sensor runs at most one background listener loop that calls a speech
// source, classifies each utterance and keeps only the latest result. The
// result is served by GetReadings until it is older than the configured
// expiration.
package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
	"github.com/lexiqai/mic-speech-sentiment/internal/sentiment"
	"github.com/lexiqai/mic-speech-sentiment/internal/speech"
)

// DefaultExpirationSeconds is the reading expiration used by DefaultOptions
const DefaultExpirationSeconds = 20

var (
	// ErrMissingSpeechSource is returned by New without a speech source
	ErrMissingSpeechSource = errors.New("speech source is required")
	// ErrMissingClassifier is returned by New without a sentiment classifier
	ErrMissingClassifier = errors.New("sentiment classifier is required")
	// ErrInvalidExpiration is returned by New for a non-positive expiration
	ErrInvalidExpiration = errors.New("reading expiration must be greater than zero")
)

// Options configure a Sensor
type Options struct {
	ExpirationSeconds int
	AutoStart         bool

	// Delay bounds after a speech source failure
	BackoffInitial time.Duration
	BackoffMax     time.Duration

	Clock  clockwork.Clock
	Logger *zerolog.Logger
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		ExpirationSeconds: DefaultExpirationSeconds,
		AutoStart:         true,
		BackoffInitial:    250 * time.Millisecond,
		BackoffMax:        5 * time.Second,
	}
}

// Sensor is the composition of store, loop, controller and dispatcher
type Sensor struct {
	source     speech.Source
	classifier sentiment.Classifier

	store      *ReadingStore
	controller *Controller
	dispatcher *Dispatcher
	clock      clockwork.Clock
	ttl        time.Duration
	logger     zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New validates its collaborators and builds a Sensor. With AutoStart the
// listener loop is running when New returns.
func New(opts Options, src speech.Source, cls sentiment.Classifier) (*Sensor, error) {
	if src == nil {
		return nil, ErrMissingSpeechSource
	}
	if cls == nil {
		return nil, ErrMissingClassifier
	}
	if opts.ExpirationSeconds <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidExpiration, opts.ExpirationSeconds)
	}

	defaults := DefaultOptions()
	if opts.BackoffInitial <= 0 {
		opts.BackoffInitial = defaults.BackoffInitial
	}
	if opts.BackoffMax < opts.BackoffInitial {
		opts.BackoffMax = opts.BackoffInitial
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	logger := observability.Component("sensor")
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	ttl := time.Duration(opts.ExpirationSeconds) * time.Second
	store := NewReadingStore()
	loop := &listener{
		source:         src,
		classifier:     cls,
		store:          store,
		clock:          opts.Clock,
		logger:         logger,
		backoffInitial: opts.BackoffInitial,
		backoffMax:     opts.BackoffMax,
	}
	ctrl := NewController(loop.run, store, opts.Clock, ttl)

	s := &Sensor{
		source:     src,
		classifier: cls,
		store:      store,
		controller: ctrl,
		dispatcher: NewDispatcher(ctrl, logger),
		clock:      opts.Clock,
		ttl:        ttl,
		logger:     logger,
	}

	logger.Info().
		Int("reading_expiration_seconds", opts.ExpirationSeconds).
		Bool("auto_start", opts.AutoStart).
		Msg("Sensor configured")

	if opts.AutoStart {
		ctrl.Start()
	}
	return s, nil
}

// GetReadings returns the latest non-expired reading, or an empty map
func (s *Sensor) GetReadings() map[string]any {
	r, ok := s.store.Get(s.clock.Now(), s.ttl)
	if !ok {
		return map[string]any{}
	}
	return r.Map()
}

// DoCommand runs the command named by cmd["command"]
func (s *Sensor) DoCommand(ctx context.Context, cmd map[string]any) (map[string]any, error) {
	raw, ok := cmd["command"]
	if !ok {
		return nil, ErrMissingCommand
	}
	name, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: command must be a string, got %T", ErrMissingCommand, raw)
	}
	return s.dispatcher.Dispatch(ctx, name)
}

// Status reports the lifecycle state
func (s *Sensor) Status() Status {
	return s.controller.Status()
}

// ReadingVersion changes every time a new reading is stored
func (s *Sensor) ReadingVersion() uint64 {
	return s.store.Version()
}

// Close stops the listener loop for good and closes collaborators that hold
// resources. Later start_listening commands fail with ErrSensorClosed.
func (s *Sensor) Close() error {
	s.closeOnce.Do(func() {
		s.controller.Close()

		var errs []error
		if c, ok := s.source.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close speech source: %w", err))
			}
		}
		if c, ok := s.classifier.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close sentiment classifier: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
