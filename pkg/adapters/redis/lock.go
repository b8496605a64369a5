package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"

	"github.com/quailbot/quail/pkg/domain"
	"github.com/quailbot/quail/pkg/ports"
)

// ErrLockAcquire is returned when the lock cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// unlockScript deletes the lock key only if it still holds our token, so a
// holder whose lock already expired cannot release a successor's lock.
const unlockScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end
`

var unlockLua = backend.NewScript(unlockScript)

// Locker implements ports.Locker using Redis SET NX PX. It coordinates
// read-modify-write sequences across bot replicas sharing one Redis.
type Locker struct {
	client backend.UniversalClient
	prefix string
	retry  time.Duration
}

// NewLocker creates a Redis locker. prefix namespaces lock keys away from
// session keys.
func NewLocker(client backend.UniversalClient, prefix string) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		retry:  50 * time.Millisecond,
	}
}

// Lock acquires a distributed lock for key, polling until acquired or the
// context is canceled. The lock value is a random token checked on unlock.
func (l *Locker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	lockKey := l.prefix + "lock:" + key
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
		}
		if ok {
			return func(ctx context.Context) error {
				if err := unlockLua.Run(ctx, l.client, []string{lockKey}, token).Err(); err != nil {
					return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
				}
				return nil
			}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", domain.ErrLockNotAcquired, ctx.Err())
		case <-ticker.C:
			// Retry.
		}
	}
}
