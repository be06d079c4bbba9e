package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	websocketv1api "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	listenClient "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	"github.com/rs/zerolog"

	"github.com/lexiqai/mic-speech-sentiment/internal/audio"
	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
	"github.com/lexiqai/mic-speech-sentiment/internal/resilience"
)

const utteranceQueueSize = 16

// DeepgramConfig configures a DeepgramSource
type DeepgramConfig struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	VAD        *audio.VADConfig
	Reconnect  *resilience.ReconnectConfig
	Breaker    *resilience.CircuitBreaker
}

// messageCallbackHandler implements the LiveMessageCallback interface.
// It embeds the default handler and overrides only Message and Error.
type messageCallbackHandler struct {
	*websocketv1api.DefaultCallbackHandler
	handler      func(*msginterfaces.MessageResponse)
	errorHandler func(*msginterfaces.ErrorResponse) error
}

func (m *messageCallbackHandler) Message(message *msginterfaces.MessageResponse) error {
	m.handler(message)
	return nil
}

func (m *messageCallbackHandler) Error(errorResponse *msginterfaces.ErrorResponse) error {
	if m.errorHandler != nil {
		return m.errorHandler(errorResponse)
	}
	return m.DefaultCallbackHandler.Error(errorResponse)
}

// liveStream is the part of the Deepgram live client the source drives
type liveStream interface {
	Write(p []byte) (int, error)
	Finish()
}

// DeepgramSource streams microphone PCM to Deepgram and yields each final
// transcript as one utterance. Silent frames are gated out by VAD; the
// client keep-alive holds the socket open between utterances.
type DeepgramSource struct {
	config DeepgramConfig
	input  io.Reader
	logger zerolog.Logger

	// dial opens one live session; replaced in tests
	dial func(ctx context.Context) (liveStream, error)

	mu       sync.RWMutex
	client   liveStream
	isActive bool

	reconnecting atomic.Bool
	newSession   atomic.Bool // VAD state is reset on the first frame of a session

	utterances chan string
	failures   chan error
	inputDone  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

// NewDeepgramSource creates a source reading 16-bit mono PCM from input
func NewDeepgramSource(cfg DeepgramConfig, input io.Reader, logger zerolog.Logger) (*DeepgramSource, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("deepgram API key is required")
	}
	if input == nil {
		return nil, fmt.Errorf("audio input is required")
	}
	if err := audio.ValidateSampleRate(cfg.SampleRate); err != nil {
		return nil, err
	}
	if cfg.VAD == nil {
		cfg.VAD = audio.DefaultVADConfig()
	}
	cfg.VAD.FrameSize = audio.FrameSizeFor(cfg.SampleRate)
	if cfg.Reconnect == nil {
		cfg.Reconnect = resilience.DefaultReconnectConfig()
	}
	if cfg.Breaker == nil {
		cfg.Breaker = resilience.NewCircuitBreaker("deepgram", 5, 30*time.Second)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &DeepgramSource{
		config:     cfg,
		input:      input,
		logger:     logger,
		utterances: make(chan string, utteranceQueueSize),
		failures:   make(chan error, 1),
		inputDone:  make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	d.dial = d.dialDeepgram
	return d, nil
}

// Start opens the Deepgram stream and begins forwarding microphone audio
func (d *DeepgramSource) Start() error {
	if err := d.connect(d.ctx); err != nil {
		return err
	}
	go d.pumpAudio()
	return nil
}

// connect opens a new streaming session unless one is live. Dials go
// through the circuit breaker, so an open breaker fails fast.
func (d *DeepgramSource) connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isActive {
		return nil
	}

	var stream liveStream
	err := d.config.Breaker.Call(func() error {
		var err error
		stream, err = d.dial(ctx)
		return err
	})
	observability.UpdateCircuitBreakerState(d.config.Breaker.Name(), int(d.config.Breaker.GetState()))
	if err != nil {
		observability.IncrementCircuitBreakerFailures(d.config.Breaker.Name())
		return err
	}

	d.client = stream
	d.isActive = true
	d.newSession.Store(true)

	// A failure of the previous session must not be reported against this one
	select {
	case <-d.failures:
	default:
	}

	d.logger.Info().
		Str("model", d.config.Model).
		Str("language", d.config.Language).
		Int("sample_rate", d.config.SampleRate).
		Msg("Deepgram streaming session started")
	return nil
}

func (d *DeepgramSource) dialDeepgram(ctx context.Context) (liveStream, error) {
	cOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	tOptions := &interfaces.LiveTranscriptionOptions{
		Model:      d.config.Model,
		Language:   d.config.Language,
		Punctuate:  true,
		Encoding:   "linear16",
		Channels:   1,
		SampleRate: d.config.SampleRate,
	}

	callback := &messageCallbackHandler{
		DefaultCallbackHandler: websocketv1api.NewDefaultCallbackHandler(),
		handler:                d.handleMessage,
		errorHandler:           d.handleError,
	}

	client, err := listenClient.NewWSUsingCallback(ctx, d.config.APIKey, cOptions, tOptions, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to create Deepgram client: %w", err)
	}
	if !client.Connect() {
		return nil, fmt.Errorf("failed to connect to Deepgram")
	}
	return client, nil
}

func (d *DeepgramSource) recordBreakerFailure() {
	d.config.Breaker.RecordResult(false)
	observability.UpdateCircuitBreakerState(d.config.Breaker.Name(), int(d.config.Breaker.GetState()))
	observability.IncrementCircuitBreakerFailures(d.config.Breaker.Name())
}

// handleMessage turns final transcripts into utterances
func (d *DeepgramSource) handleMessage(msg *msginterfaces.MessageResponse) {
	if msg == nil || len(msg.Channel.Alternatives) == 0 {
		return
	}

	transcript := strings.TrimSpace(msg.Channel.Alternatives[0].Transcript)
	if transcript == "" {
		return
	}

	if !msg.IsFinal {
		d.logger.Debug().Str("text", transcript).Msg("Interim transcription")
		return
	}

	select {
	case d.utterances <- transcript:
	default:
		d.logger.Warn().Str("text", transcript).Msg("Utterance queue full, dropping transcription")
		observability.RecordError("utterance_dropped", "deepgram")
	}
}

func (d *DeepgramSource) handleError(errorResponse *msginterfaces.ErrorResponse) error {
	d.logger.Error().Interface("error", errorResponse).Msg("Deepgram error")
	d.recordBreakerFailure()
	d.markInactive(fmt.Errorf("deepgram stream error: %+v", errorResponse))
	return nil
}

// markInactive drops the current session, wakes a blocked Listen and reconnects in the background
func (d *DeepgramSource) markInactive(cause error) {
	if d.ctx.Err() != nil {
		return
	}

	d.mu.Lock()
	d.isActive = false
	d.mu.Unlock()

	select {
	case d.failures <- cause:
	default:
	}

	d.ensureReconnecting()
}

// ensureReconnecting starts a reconnect loop unless one is running or a session is live
func (d *DeepgramSource) ensureReconnecting() {
	if d.ctx.Err() != nil || d.IsActive() {
		return
	}
	if !d.reconnecting.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer d.reconnecting.Store(false)

		err := resilience.Reconnect(d.ctx, d.logger, d.connect, d.config.Reconnect)
		if err != nil {
			d.logger.Error().Err(err).Msg("Failed to reconnect Deepgram stream")
			return
		}
		d.logger.Info().Msg("Successfully reconnected Deepgram stream")
	}()
}

// pumpAudio forwards voiced frames from the microphone until the input ends or the source closes
func (d *DeepgramSource) pumpAudio() {
	defer close(d.inputDone)

	frames := audio.NewFrameReader(d.input, d.config.VAD.FrameSize)
	vad := audio.NewVADDetector(d.config.VAD)

	for d.ctx.Err() == nil {
		frame, err := frames.ReadFrame()
		if frame != nil {
			d.forward(vad, frame)
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				d.logger.Info().Msg("Audio input ended")
			} else {
				d.logger.Error().Err(err).Msg("Error reading audio input")
				observability.RecordError("audio_read_error", "deepgram")
			}
			return
		}
	}
}

func (d *DeepgramSource) forward(vad *audio.VADDetector, frame *audio.Frame) {
	if d.newSession.CompareAndSwap(true, false) {
		// An utterance cut off by the old session does not continue in the new one
		vad.Reset()
	}

	speaking, started, ended := vad.ProcessFrame(frame.Samples)
	if started {
		d.logger.Debug().Msg("Speech started")
	}
	if !speaking && !ended {
		observability.RecordAudioSkipped()
		return
	}
	if ended {
		d.logger.Debug().Msg("Speech ended")
	}

	d.mu.RLock()
	client := d.client
	active := d.isActive
	d.mu.RUnlock()

	if !active || client == nil {
		observability.RecordAudioSkipped()
		return
	}

	if _, err := client.Write(frame.Data); err != nil {
		d.logger.Error().Err(err).Msg("Error sending audio to Deepgram")
		d.recordBreakerFailure()
		d.markInactive(fmt.Errorf("failed to send audio to Deepgram: %w", err))
		return
	}
	observability.RecordAudioForwarded(len(frame.Data))
}

// Listen returns the next final transcript. While the stream is down it
// fails fast with ErrSourceInactive and makes sure a reconnect is under way.
func (d *DeepgramSource) Listen(ctx context.Context) (string, error) {
	// Drain anything already transcribed before reporting connection state
	select {
	case text := <-d.utterances:
		return text, nil
	default:
	}

	if d.ctx.Err() != nil {
		return "", ErrSourceClosed
	}
	if !d.IsActive() {
		d.ensureReconnecting()
		return "", ErrSourceInactive
	}

	select {
	case text := <-d.utterances:
		return text, nil
	case err := <-d.failures:
		return "", err
	case <-d.inputDone:
		select {
		case text := <-d.utterances:
			return text, nil
		default:
			return "", ErrAudioInputClosed
		}
	case <-d.ctx.Done():
		return "", ErrSourceClosed
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Healthy reports whether the Deepgram stream is connected
func (d *DeepgramSource) Healthy(ctx context.Context) (bool, error) {
	if !d.IsActive() {
		return false, ErrSourceInactive
	}
	return true, nil
}

// IsActive returns whether the source currently has a live Deepgram session
func (d *DeepgramSource) IsActive() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isActive
}

// Close stops reconnection attempts and finishes the Deepgram session
func (d *DeepgramSource) Close() error {
	d.cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isActive && d.client != nil {
		d.client.Finish()
	}
	d.isActive = false
	d.logger.Info().Msg("Deepgram streaming session stopped")
	return nil
}
