package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailbot/quail/pkg/adapters/redis"
	"github.com/quailbot/quail/pkg/domain"
	"github.com/quailbot/quail/pkg/ports"
)

func newTestStore(t *testing.T) (*miniredis.Miniredis, *redis.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	return mr, redis.NewFromClient(client)
}

func TestRedisStore_Contract(t *testing.T) {
	mr, store := newTestStore(t)
	defer store.Close()

	ports.RunLightStoreContract(t, store, mr.FastForward)
}

func TestRedisStore_CloseContract(t *testing.T) {
	ports.RunLightStoreCloseContract(t, func(t *testing.T) ports.LightStore {
		_, store := newTestStore(t)
		return store
	})
}

func TestRedisStore_UnavailableIsNotAbsent(t *testing.T) {
	mr, store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))

	mr.Close()

	_, ok, err := store.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrBackendUnavailable)
	assert.False(t, ok, "an outage must never read as a present value")

	assert.ErrorIs(t, store.Set(ctx, "k", []byte("v2"), 0), domain.ErrBackendUnavailable)
	assert.ErrorIs(t, store.Delete(ctx, "k"), domain.ErrBackendUnavailable)
	assert.ErrorIs(t, store.Ping(ctx), domain.ErrBackendUnavailable)
}

func TestRedisStore_TTLDelegatedToRedis(t *testing.T) {
	mr, store := newTestStore(t)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "ephemeral", []byte("x"), 2*time.Second))
	require.True(t, mr.Exists("quail:session:ephemeral"))

	mr.FastForward(3 * time.Second)

	_, ok, err := store.Get(ctx, "ephemeral")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_ParseURL(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	store, err := redis.New("redis://" + mr.Addr())
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))

	_, err = redis.New("not a url")
	assert.Error(t, err)
}
