package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailbot/quail/pkg/domain"
)

// ContractClock lets a backend test control time for TTL assertions. The
// in-memory store advances with the real clock; miniredis exposes
// FastForward. A nil clock skips the post-expiry read.
type ContractClock func(d time.Duration)

// RunLightStoreContract verifies that a LightStore implementation adheres to
// the interface contract. advance may be nil if the backend cannot skip time.
func RunLightStoreContract(t *testing.T, store LightStore, advance ContractClock) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("150405") + ":"

	t.Run("SetAndGet", func(t *testing.T) {
		key := prefix + "u1"
		require.NoError(t, store.Set(ctx, key, []byte(`{"step":1}`), 0))

		val, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, "value must be present after Set")
		assert.Equal(t, []byte(`{"step":1}`), val)
	})

	t.Run("SetReplaces", func(t *testing.T) {
		key := prefix + "replace"
		require.NoError(t, store.Set(ctx, key, []byte("v1"), 0))
		require.NoError(t, store.Set(ctx, key, []byte("v2"), 0))

		val, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("v2"), val)
	})

	t.Run("GetAbsent", func(t *testing.T) {
		_, ok, err := store.Get(ctx, prefix+"never-set")
		require.NoError(t, err, "absent is not an error")
		assert.False(t, ok)
	})

	t.Run("EmptyValueIsPresent", func(t *testing.T) {
		key := prefix + "empty"
		require.NoError(t, store.Set(ctx, key, []byte{}, 0))

		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "empty value must be distinguishable from absent")
	})

	t.Run("DeleteThenGet", func(t *testing.T) {
		key := prefix + "del"
		require.NoError(t, store.Set(ctx, key, []byte("x"), 0))
		require.NoError(t, store.Delete(ctx, key))

		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("DeleteAbsentIsIdempotent", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, prefix+"ghost"))
		assert.NoError(t, store.Delete(ctx, prefix+"ghost"))
	})

	t.Run("TTLExpiry", func(t *testing.T) {
		if advance == nil {
			t.Skip("backend cannot advance time")
		}
		key := prefix + "ttl"
		require.NoError(t, store.Set(ctx, key, []byte("short-lived"), time.Minute))

		_, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok, "value must be readable before the ttl elapses")

		advance(time.Minute + time.Second)

		_, ok, err = store.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "expired value must read as absent")
	})

	t.Run("ConcurrentSetSameKey", func(t *testing.T) {
		key := prefix + "race"
		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				val := []byte(fmt.Sprintf("writer-%02d", n))
				assert.NoError(t, store.Set(ctx, key, val, 0))
			}(i)
		}
		wg.Wait()

		val, ok, err := store.Get(ctx, key)
		require.NoError(t, err)
		require.True(t, ok)
		// Exactly one write wins intact; a torn value would not match the shape.
		assert.Regexp(t, `^writer-\d{2}$`, string(val))
	})
}

// RunLightStoreCloseContract verifies close semantics on a fresh store
// produced by newStore: operations after Close fail with ErrBackendClosed.
func RunLightStoreCloseContract(t *testing.T, newStore func(t *testing.T) LightStore) {
	ctx := context.Background()

	store := newStore(t)
	require.NoError(t, store.Set(ctx, "close-test", []byte("x"), 0))
	require.NoError(t, store.Close())

	_, _, err := store.Get(ctx, "close-test")
	assert.ErrorIs(t, err, domain.ErrBackendClosed)
	assert.ErrorIs(t, store.Set(ctx, "close-test", []byte("y"), 0), domain.ErrBackendClosed)
	assert.ErrorIs(t, store.Delete(ctx, "close-test"), domain.ErrBackendClosed)
}
