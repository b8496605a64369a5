package memory

import (
	"context"
	"sync"
	"time"

	"github.com/quailbot/quail/pkg/domain"
)

type entry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Store implements ports.LightStore in process memory.
// Safe for concurrent use; values do not survive a restart.
//
// TTL is enforced lazily: an expired entry reads as absent and is removed
// opportunistically on the read that observes it.
type Store struct {
	mu     sync.RWMutex
	data   map[string]entry
	closed bool

	now func() time.Time
}

// Option configures the Store.
type Option func(*Store)

// WithClock overrides the time source. Used by TTL tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the value for key, treating expired entries as absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, false, domain.ErrBackendClosed
	}
	e, ok := s.data[key]
	now := s.now()
	s.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if e.expired(now) {
		s.evict(key, now)
		return nil, false, nil
	}

	// Copy on read so the caller cannot mutate stored bytes through the slice.
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, true, nil
}

// Set stores value under key. ttl > 0 sets an absolute expiry deadline.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	e := entry{value: stored}
	if ttl > 0 {
		e.expiresAt = s.now().Add(ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrBackendClosed
	}
	s.data[key] = e
	return nil
}

// Delete removes key. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrBackendClosed
	}
	delete(s.data, key)
	return nil
}

// Close drops all entries and marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	return nil
}

// Len reports the number of live entries, counting not-yet-evicted expired
// ones. Used by tests to verify opportunistic eviction.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// evict removes key only if it is still the same expired entry, so a
// concurrent Set between the read and this cleanup is never lost.
func (s *Store) evict(key string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if e, ok := s.data[key]; ok && e.expired(now) {
		delete(s.data, key)
	}
}
