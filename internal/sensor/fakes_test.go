package sensor

import (
	"context"
	"sync"
	"sync/atomic"
)

type listenResult struct {
	text string
	err  error
}

// scriptedSource hands out queued results and blocks when the queue is empty
type scriptedSource struct {
	results chan listenResult

	calls       atomic.Int32
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	closed      atomic.Bool
}

func newScriptedSource() *scriptedSource {
	return &scriptedSource{results: make(chan listenResult, 64)}
}

func (s *scriptedSource) push(text string, err error) {
	s.results <- listenResult{text: text, err: err}
}

func (s *scriptedSource) Listen(ctx context.Context) (string, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxInFlight.Load()
		if n <= cur || s.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	select {
	case r := <-s.results:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *scriptedSource) Close() error {
	s.closed.Store(true)
	return nil
}

// funcClassifier records the texts it was asked about
type funcClassifier struct {
	fn func(ctx context.Context, text string) (string, error)

	mu    sync.Mutex
	texts []string
}

func (c *funcClassifier) Classify(ctx context.Context, text string) (string, error) {
	c.mu.Lock()
	c.texts = append(c.texts, text)
	c.mu.Unlock()
	return c.fn(ctx, text)
}

func (c *funcClassifier) seen() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

func constClassifier(label string) *funcClassifier {
	return &funcClassifier{fn: func(context.Context, string) (string, error) {
		return label, nil
	}}
}
