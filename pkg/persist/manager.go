package persist

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quailbot/quail/internal/logging"
	"github.com/quailbot/quail/pkg/domain"
	"github.com/quailbot/quail/pkg/ports"
)

type lifecycle int

const (
	stateNew lifecycle = iota
	stateServing
	stateClosed
)

// Manager is the single composition point for session storage: one light
// backend (in-memory or Redis, chosen at startup) and one durable session
// factory. It owns their initialize/shutdown lifecycle and is the only
// object the rest of the application is handed for session state.
//
// Construct exactly one Manager per process and inject it; there is no
// package-level instance. The Manager holds no per-call state and is safe
// for arbitrarily many concurrent callers.
type Manager struct {
	light   ports.LightStore
	durable ports.Factory
	locker  ports.Locker
	logger  *slog.Logger

	lockTTL time.Duration

	mu    sync.Mutex
	state lifecycle
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithLocker enables per-key locking for WithKeyLock. Required when bot
// replicas share a remote light backend; single-replica deployments use the
// in-process locker.
func WithLocker(locker ports.Locker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLockTTL bounds how long a crashed holder can wedge a key lock.
// Default 30s.
func WithLockTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		m.lockTTL = ttl
	}
}

// NewManager composes a Manager from a light store and a durable factory.
// The Manager is unusable until Initialize succeeds.
func NewManager(light ports.LightStore, durable ports.Factory, opts ...Option) *Manager {
	m := &Manager{
		light:   light,
		durable: durable,
		logger:  logging.NewNop(),
		lockTTL: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize performs the backend handshake: a connectivity check for the
// light backend (when it supports one) and for the durable factory. It must
// be called exactly once, before the Manager is handed to any event handler.
//
// A failure here is fatal to startup: the Manager stays uninitialized and
// never serves with a broken backend.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	switch m.state {
	case stateServing:
		m.mu.Unlock()
		return domain.ErrAlreadyInitialized
	case stateClosed:
		m.mu.Unlock()
		return domain.ErrBackendClosed
	}
	m.mu.Unlock()

	if pinger, ok := m.light.(ports.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return fmt.Errorf("light backend handshake: %w", err)
		}
	}
	if err := m.durable.Ping(ctx); err != nil {
		return fmt.Errorf("durable factory handshake: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != stateNew {
		// Lost a race with a concurrent Initialize or Close.
		if m.state == stateClosed {
			return domain.ErrBackendClosed
		}
		return domain.ErrAlreadyInitialized
	}
	m.state = stateServing
	m.logger.Info("persistence manager initialized",
		"light_backend", fmt.Sprintf("%T", m.light),
	)
	return nil
}

func (m *Manager) guard() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.state {
	case stateNew:
		return domain.ErrNotInitialized
	case stateClosed:
		return domain.ErrBackendClosed
	}
	return nil
}

// Light returns the composed light backend for direct get/set/delete use.
// The handle is the backend itself, not a wrapper; its contract is
// ports.LightStore.
func (m *Manager) Light() (ports.LightStore, error) {
	if err := m.guard(); err != nil {
		return nil, err
	}
	return m.light, nil
}

// Durable runs fn inside a scoped durable session: committed when fn returns
// nil, rolled back when fn returns an error or panics. The handle never
// escapes fn, so connections cannot leak across unrelated I/O.
func (m *Manager) Durable(ctx context.Context, fn func(ctx context.Context, sess ports.Session) error) (err error) {
	if err := m.guard(); err != nil {
		return err
	}

	sess, err := m.durable.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = sess.Rollback()
			panic(r)
		}
		if err != nil {
			if rbErr := sess.Rollback(); rbErr != nil {
				m.logger.Warn("rollback failed", "err", rbErr)
			}
			return
		}
		err = sess.Commit()
	}()

	return fn(ctx, sess)
}

// WithKeyLock runs fn while holding the per-key lock, serializing
// read-modify-write sequences on one session key. Get followed by Set is
// not atomic on any backend; this is the supported way to compose them.
// Without a configured locker the call fails rather than pretending to
// serialize.
func (m *Manager) WithKeyLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	if err := m.guard(); err != nil {
		return err
	}
	if m.locker == nil {
		return fmt.Errorf("%w: no locker configured", domain.ErrLockNotAcquired)
	}

	unlock, err := m.locker.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(ctx); err != nil {
			m.logger.Warn("failed to release key lock (will expire via ttl)",
				"key", key,
				"err", err,
			)
		}
	}()

	return fn(ctx)
}

// Ping probes both backends. Used by the ops health endpoint.
func (m *Manager) Ping(ctx context.Context) error {
	if err := m.guard(); err != nil {
		return err
	}
	if pinger, ok := m.light.(ports.Pinger); ok {
		if err := pinger.Ping(ctx); err != nil {
			return err
		}
	}
	return m.durable.Ping(ctx)
}

// Close shuts down the light backend first, then the durable factory.
// Idempotent: a second Close is a no-op so shutdown races are harmless.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == stateClosed {
		m.mu.Unlock()
		return nil
	}
	wasServing := m.state == stateServing
	m.state = stateClosed
	m.mu.Unlock()

	if !wasServing {
		// Never initialized: backends were never handshaken, but they may
		// still hold resources from construction.
		_ = m.light.Close()
		return m.durable.Close()
	}

	if err := m.light.Close(); err != nil {
		m.logger.Warn("light backend close failed", "err", err)
	}
	if err := m.durable.Close(); err != nil {
		return err
	}
	m.logger.Info("persistence manager closed")
	return nil
}
