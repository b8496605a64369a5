package domain

import "errors"

// ErrNotInitialized is returned when a data operation runs before the manager
// finished Initialize. A startup-sequencing bug, never retryable.
var ErrNotInitialized = errors.New("persistence manager not initialized")

// ErrAlreadyInitialized is returned when Initialize is called a second time.
var ErrAlreadyInitialized = errors.New("persistence manager already initialized")

// ErrBackendUnavailable is returned when the remote light backend or the
// durable factory cannot be reached. The caller decides whether to retry;
// the manager never retries internally.
var ErrBackendUnavailable = errors.New("backend unavailable")

// ErrBackendClosed is returned when an operation runs after Close.
var ErrBackendClosed = errors.New("backend closed")

// ErrLockNotAcquired is returned when a per-key lock cannot be taken before
// the context is canceled.
var ErrLockNotAcquired = errors.New("key lock not acquired")
