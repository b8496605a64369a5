package middleware

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quailbot/quail/pkg/adapters/memory"
)

func key(b byte) []byte {
	k := make([]byte, 32)
	for i := range k {
		k[i] = b
	}
	return k
}

func TestEncryption_RoundTrip(t *testing.T) {
	inner := memory.New()
	store := Chain(inner, NewEncryption(EncryptionConfig{ActiveKey: key(1)}))
	ctx := context.Background()

	plain := []byte(`{"step":"ask_name","context":{"phone":"+15550001111"}}`)
	require.NoError(t, store.Set(ctx, "u1", plain, 0))

	// The backend must only ever see ciphertext.
	raw, ok, err := inner.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, bytes.Contains(raw, []byte("ask_name")), "plaintext leaked to the backend")

	got, ok, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, plain, got)
}

func TestEncryption_AbsentPassesThrough(t *testing.T) {
	store := Chain(memory.New(), NewEncryption(EncryptionConfig{ActiveKey: key(1)}))

	_, ok, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEncryption_KeyRotation(t *testing.T) {
	inner := memory.New()
	ctx := context.Background()

	oldStore := Chain(inner, NewEncryption(EncryptionConfig{ActiveKey: key(1)}))
	require.NoError(t, oldStore.Set(ctx, "u1", []byte("written-under-old-key"), 0))

	// New deploy rotates the active key and keeps the old one as fallback.
	newStore := Chain(inner, NewEncryption(EncryptionConfig{
		ActiveKey:    key(2),
		FallbackKeys: [][]byte{key(1)},
	}))

	got, ok, err := newStore.Get(ctx, "u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "written-under-old-key", string(got))
}

func TestEncryption_WrongKeyFailsClosed(t *testing.T) {
	inner := memory.New()
	ctx := context.Background()

	require.NoError(t, Chain(inner, NewEncryption(EncryptionConfig{ActiveKey: key(1)})).
		Set(ctx, "u1", []byte("secret"), 0))

	_, _, err := Chain(inner, NewEncryption(EncryptionConfig{ActiveKey: key(9)})).
		Get(ctx, "u1")
	assert.Error(t, err, "undecryptable value is corruption, not absence")
}

func TestEncryption_RejectsShortKey(t *testing.T) {
	assert.Panics(t, func() {
		NewEncryption(EncryptionConfig{ActiveKey: []byte("short")})
	})
}
