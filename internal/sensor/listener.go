package sensor

import (
	"context"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
	"github.com/lexiqai/mic-speech-sentiment/internal/resilience"
	"github.com/lexiqai/mic-speech-sentiment/internal/sentiment"
	"github.com/lexiqai/mic-speech-sentiment/internal/speech"
)

// cycleResult is the outcome of one listen/classify/store pass
type cycleResult int

const (
	cycleStored cycleResult = iota
	cycleNoSpeech
	cycleSpeechFailed
	cycleClassifyFailed
	cycleCancelled
)

// listener produces readings until its context is cancelled
type listener struct {
	source     speech.Source
	classifier sentiment.Classifier
	store      *ReadingStore
	clock      clockwork.Clock
	logger     zerolog.Logger

	backoffInitial time.Duration
	backoffMax     time.Duration
}

// run is the listener loop. It only returns once ctx is cancelled.
func (l *listener) run(ctx context.Context) {
	logger := l.logger.With().Str("run_id", observability.NewCorrelationID()).Logger()
	backoff := resilience.NewBackoff(l.backoffInitial, l.backoffMax)

	logger.Info().Msg("Listener loop started")
	defer logger.Info().Msg("Listener loop stopped")

	failures := 0
	for ctx.Err() == nil {
		switch l.cycle(ctx, logger) {
		case cycleStored:
			failures = 0
			backoff.Reset()
		case cycleSpeechFailed:
			failures++
			delay := backoff.Next()
			observability.RecordBackoff(delay)
			logger.Warn().
				Int("attempt", failures).
				Dur("backoff", delay).
				Msg("Backing off after speech source failure")
			if err := resilience.Sleep(ctx, l.clock, delay); err != nil {
				return
			}
		case cycleCancelled:
			return
		}
	}
}

func (l *listener) cycle(ctx context.Context, logger zerolog.Logger) cycleResult {
	start := l.clock.Now()
	text, err := l.source.Listen(ctx)
	if ctx.Err() != nil {
		return cycleCancelled
	}
	if err != nil {
		observability.RecordListen("error", l.clock.Since(start))
		observability.RecordError("listen", "sensor")
		logger.Error().Err(err).Msg("Speech source failed")
		return cycleSpeechFailed
	}

	text = strings.TrimSpace(text)
	if text == "" {
		observability.RecordListen("empty", l.clock.Since(start))
		logger.Debug().Msg("No speech heard")
		return cycleNoSpeech
	}
	observability.RecordListen("success", l.clock.Since(start))

	start = l.clock.Now()
	label, err := l.classifier.Classify(ctx, text)
	if ctx.Err() != nil {
		return cycleCancelled
	}
	observability.RecordClassify(err == nil, l.clock.Since(start))
	if err != nil {
		observability.RecordError("classify", "sensor")
		logger.Error().Err(err).Str("text", text).Msg("Sentiment classifier failed")
		return cycleClassifyFailed
	}

	l.store.Put(Reading{Text: text, Sentiment: label, ObservedAt: l.clock.Now()})
	observability.RecordReading(label)
	logger.Info().Str("text", text).Str("sentiment", label).Msg("Stored reading")

	return cycleStored
}
