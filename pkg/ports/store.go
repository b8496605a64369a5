package ports

import (
	"context"
	"time"
)

// LightStore defines the interface for the fast, possibly-volatile session
// backend: short-lived conversational state keyed by an opaque session key.
// Exactly one implementation is constructed per process (in-memory or Redis),
// selected by configuration at startup, never per call.
//
// Absence of a value is a normal result, not an error: Get reports it through
// the ok flag. Implementations must never return an absent result for a
// transport failure; those surface as domain.ErrBackendUnavailable.
type LightStore interface {
	// Get returns the current value for key, or ok=false if the key has no
	// value (never set, deleted, or expired).
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any prior value. A ttl > 0 makes
	// the entry unreadable once the ttl elapses; ttl == 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the value for key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources. Safe to call at most once; any data
	// operation after Close fails with domain.ErrBackendClosed.
	Close() error
}

// Pinger is implemented by stores that can verify connectivity. The manager
// probes it during Initialize; stores without it (in-memory) skip the check.
type Pinger interface {
	Ping(ctx context.Context) error
}
