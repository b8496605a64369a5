package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/quailbot/quail/pkg/domain"
)

// Store implements ports.LightStore using Redis. State survives restarts and
// is shared across bot replicas; TTL is delegated to Redis key expiry.
//
// Transport failures wrap domain.ErrBackendUnavailable so callers can tell
// "the store is down" from "the key has no value".
type Store struct {
	client backend.UniversalClient
	prefix string

	mu     sync.Mutex
	closed bool
}

// Option configures the Store.
type Option func(*Store)

// WithPrefix sets the key namespace. Default "quail:session:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Redis store from a connection URL
// (redis://[user:pass@]host:port/db).
func New(url string, opts ...Option) (*Store, error) {
	ropts, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewFromClient(backend.NewClient(ropts), opts...), nil
}

// NewFromClient creates a Redis store from an existing client. The store
// takes ownership: Close closes the client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Store {
	store := &Store{
		client: client,
		prefix: "quail:session:",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *Store) key(k string) string {
	return s.prefix + k
}

func (s *Store) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrBackendClosed
	}
	return nil
}

// Get returns the value for key; redis.Nil maps to absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := s.guard(); err != nil {
		return nil, false, err
	}

	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return val, true, nil
}

// Set stores value under key. ttl == 0 stores without expiry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.guard(); err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Delete removes key. DEL on a missing key is already a no-op in Redis.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.guard(); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Ping verifies connectivity. The manager calls this during Initialize.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}

	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	return nil
}

// Close closes the underlying client. Subsequent data operations fail with
// domain.ErrBackendClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	return s.client.Close()
}
