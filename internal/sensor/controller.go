package sensor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
)

// Status is the get_status payload
type Status struct {
	IsListening              bool `json:"is_listening"`
	HasReading               bool `json:"has_reading"`
	ReadingExpirationSeconds int  `json:"reading_expiration_seconds"`
}

// Map renders the status as a command response
func (s Status) Map() map[string]any {
	return map[string]any{
		"is_listening":               s.IsListening,
		"has_reading":                s.HasReading,
		"reading_expiration_seconds": s.ReadingExpirationSeconds,
	}
}

// Controller owns the running/stopped state of a single listener loop
type Controller struct {
	run   func(ctx context.Context)
	store *ReadingStore
	clock clockwork.Clock
	ttl   time.Duration

	// opMu serializes Start and Stop; running is read without it so
	// Status never waits behind a Stop that is joining the loop.
	opMu    sync.Mutex
	running atomic.Bool
	closed  atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewController creates a stopped controller for run
func NewController(run func(ctx context.Context), store *ReadingStore, clock clockwork.Clock, ttl time.Duration) *Controller {
	return &Controller{
		run:   run,
		store: store,
		clock: clock,
		ttl:   ttl,
	}
}

// Start launches the loop unless it is already running or the controller
// is closed. It reports whether a new loop was launched.
func (c *Controller) Start() bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.running.Load() || c.closed.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		c.run(ctx)
	}()

	c.running.Store(true)
	observability.SetListenerRunning(true)
	return true
}

// Stop cancels the loop and waits for it to exit. Once Stop returns the loop
// makes no further writes. It reports whether a running loop was stopped.
func (c *Controller) Stop() bool {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	return c.stopLocked()
}

// Close stops the loop and refuses every later Start
func (c *Controller) Close() {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	c.closed.Store(true)
	c.stopLocked()
}

// IsClosed reports whether Close has been called
func (c *Controller) IsClosed() bool {
	return c.closed.Load()
}

func (c *Controller) stopLocked() bool {
	if !c.running.Load() {
		return false
	}

	c.cancel()
	<-c.done

	c.cancel = nil
	c.done = nil
	c.running.Store(false)
	observability.SetListenerRunning(false)
	return true
}

// IsListening reports whether the loop is running
func (c *Controller) IsListening() bool {
	return c.running.Load()
}

// Status reports the lifecycle state and whether a fresh reading exists
func (c *Controller) Status() Status {
	_, ok := c.store.Get(c.clock.Now(), c.ttl)
	return Status{
		IsListening:              c.IsListening(),
		HasReading:               ok,
		ReadingExpirationSeconds: int(c.ttl / time.Second),
	}
}
