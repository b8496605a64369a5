package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a previously acquired key lock.
type UnlockFunc func(ctx context.Context) error

// Locker provides per-key mutual exclusion on top of a LightStore. Get
// followed by Set is not atomic on any backend; callers that need
// read-modify-write semantics take a key lock around the sequence.
//
// Two implementations exist: an in-process refcounted mutex table (single
// replica) and a Redis SET NX lock (shared across bot replicas).
type Locker interface {
	// Lock acquires the lock for key, blocking until acquired or the context
	// is canceled. ttl bounds how long a crashed holder can wedge the key
	// (distributed implementations only). The returned UnlockFunc MUST be
	// called to release the lock.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
