package sensor

import (
	"sync"
	"time"
)

// Reading is one completed listen+classify cycle. Readings are values and
// are never modified after they are stored.
type Reading struct {
	Text       string
	Sentiment  string
	ObservedAt time.Time
}

// Map renders the reading in the get_readings shape
func (r Reading) Map() map[string]any {
	return map[string]any{
		"text_heard": r.Text,
		"sentiment":  r.Sentiment,
		"time":       r.ObservedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ReadingStore is a single-slot cache for the latest Reading.
// Expiration is applied when reading, never by deleting the slot.
type ReadingStore struct {
	mu      sync.RWMutex
	current Reading
	ok      bool
	version uint64
}

// NewReadingStore creates an empty store
func NewReadingStore() *ReadingStore {
	return &ReadingStore{}
}

// Put replaces the current reading
func (s *ReadingStore) Put(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = r
	s.ok = true
	s.version++
}

// Get returns the current reading if it is at most ttl old at now.
// A reading exactly ttl old is still returned.
func (s *ReadingStore) Get(now time.Time, ttl time.Duration) (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.ok || now.Sub(s.current.ObservedAt) > ttl {
		return Reading{}, false
	}
	return s.current, true
}

// Version increments on every Put. Zero means nothing was ever stored.
func (s *ReadingStore) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
