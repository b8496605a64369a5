package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quailbot/quail/pkg/domain"
	"github.com/quailbot/quail/pkg/persist"
)

// Store gives inbound event handlers typed access to conversational flow
// state. It serializes domain.State as JSON into the manager's light
// backend, one entry per conversation, with the configured session TTL.
type Store struct {
	manager *persist.Manager
	prefix  string
	ttl     time.Duration
}

// Option configures the Store.
type Option func(*Store)

// WithPrefix sets the key namespace. Default "flow:".
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithTTL sets how long idle conversations keep their flow state.
// Zero means no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// NewStore creates a flow-state store on top of an initialized manager.
func NewStore(manager *persist.Manager, opts ...Option) *Store {
	s := &Store{
		manager: manager,
		prefix:  "flow:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) key(conversationID string) string {
	return s.prefix + conversationID
}

// Load returns the flow state for a conversation, or ok=false when the
// conversation has no state (fresh user, expired, or cleared).
func (s *Store) Load(ctx context.Context, conversationID string) (*domain.State, bool, error) {
	light, err := s.manager.Light()
	if err != nil {
		return nil, false, err
	}

	raw, ok, err := light.Get(ctx, s.key(conversationID))
	if err != nil || !ok {
		return nil, false, err
	}

	var state domain.State
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal flow state: %w", err)
	}
	return &state, true, nil
}

// Save persists the flow state for a conversation.
func (s *Store) Save(ctx context.Context, conversationID string, state *domain.State) error {
	light, err := s.manager.Light()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal flow state: %w", err)
	}
	return light.Set(ctx, s.key(conversationID), raw, s.ttl)
}

// Clear removes the flow state for a conversation. Clearing a conversation
// that has no state is not an error.
func (s *Store) Clear(ctx context.Context, conversationID string) error {
	light, err := s.manager.Light()
	if err != nil {
		return err
	}
	return light.Delete(ctx, s.key(conversationID))
}

// Update runs a load-modify-save cycle under the manager's per-key lock.
// fn receives the current state (a fresh one at startStep if none exists)
// and mutates it in place. This is the only safe way to do read-modify-write
// on flow state: a bare Load followed by Save is not atomic on any backend.
func (s *Store) Update(ctx context.Context, conversationID, startStep string, fn func(state *domain.State) error) error {
	return s.manager.WithKeyLock(ctx, s.key(conversationID), func(ctx context.Context) error {
		state, ok, err := s.Load(ctx, conversationID)
		if err != nil {
			return err
		}
		if !ok {
			state = domain.NewState(startStep)
		}

		if err := fn(state); err != nil {
			return err
		}
		return s.Save(ctx, conversationID, state)
	})
}
