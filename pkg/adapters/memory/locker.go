package memory

import (
	"context"
	"sync"
	"time"

	"github.com/quailbot/quail/pkg/ports"
)

// lockEntry holds the mutex and the reference count for one key.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locker implements ports.Locker with per-key mutexes inside one process.
// Entries are reference counted and garbage collected at zero refs, so the
// lock table does not grow with the number of keys ever locked.
//
// The ttl argument is ignored: an in-process holder cannot crash without
// taking the whole process down with it.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewLocker creates an empty in-process locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*lockEntry)}
}

func (l *Locker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	return e
}

func (l *Locker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.locks[key]
	if !ok {
		return
	}
	e.refs--
	if e.refs <= 0 {
		delete(l.locks, key)
	}
}

// Lock acquires the mutex for key, honoring context cancellation while
// waiting.
func (l *Locker) Lock(ctx context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	e := l.acquire(key)

	locked := make(chan struct{})
	go func() {
		e.mu.Lock()
		close(locked)
	}()

	select {
	case <-locked:
		return func(context.Context) error {
			e.mu.Unlock()
			l.release(key)
			return nil
		}, nil
	case <-ctx.Done():
		// The goroutine above still gets the mutex eventually; release it
		// right away so the next waiter is not blocked forever.
		go func() {
			<-locked
			e.mu.Unlock()
			l.release(key)
		}()
		return nil, ctx.Err()
	}
}

// tableSize reports the number of live lock entries. Test hook.
func (l *Locker) tableSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
