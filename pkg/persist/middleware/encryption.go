package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/quailbot/quail/pkg/ports"
)

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new values.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.LightStore
	config EncryptionConfig
}

// NewEncryption creates a middleware that encrypts session values with
// AES-GCM before they reach the backend, so conversational state at rest in
// Redis (or a crash dump of the process) is opaque.
func NewEncryption(config EncryptionConfig) Middleware {
	if len(config.ActiveKey) != 32 {
		panic("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.LightStore) ports.LightStore {
		return &encryptionMiddleware{next: next, config: config}
	}
}

func (m *encryptionMiddleware) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ciphertext, err := encrypt(value, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt session value: %w", err)
	}
	return m.next.Set(ctx, key, ciphertext, ttl)
}

func (m *encryptionMiddleware) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ciphertext, ok, err := m.next.Get(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}

	plain, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		// Fail closed: an undecryptable value is corruption, not absence.
		return nil, false, fmt.Errorf("failed to decrypt session value: %w", err)
	}
	return plain, true, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *encryptionMiddleware) Close() error {
	return m.next.Close()
}

// Ping passes through so the manager's Initialize handshake still reaches
// the real backend.
func (m *encryptionMiddleware) Ping(ctx context.Context) error {
	if pinger, ok := m.next.(ports.Pinger); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

func encrypt(plain, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	// Nonce is prepended to the ciphertext.
	return gcm.Seal(nonce, nonce, plain, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext shorter than nonce")
	}
	nonce, sealed := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, sealed, nil)
}

func decryptWithRotation(ciphertext, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	plain, err := decrypt(ciphertext, activeKey)
	if err == nil {
		return plain, nil
	}

	for _, key := range fallbackKeys {
		if len(key) != 32 {
			continue
		}
		if plain, fbErr := decrypt(ciphertext, key); fbErr == nil {
			return plain, nil
		}
	}
	return nil, errors.New("no configured key decrypts the value")
}
