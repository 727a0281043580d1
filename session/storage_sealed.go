package session

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

var hkdfSalt = []byte("lvcop-session")

// DeriveSealingKey derives a 32-byte sealing key from a secret. The
// namespace binds the key to one storage namespace so two stores sealed
// with the same secret cannot read each other's payloads.
func DeriveSealingKey(secret []byte, namespace string) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("session: sealing secret is required")
	}
	reader := hkdf.New(sha256.New, secret, hkdfSalt, []byte("seal-"+namespace))
	key := make([]byte, 32)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, fmt.Errorf("session: derive sealing key: %w", err)
	}
	return key, nil
}

// SealedStorage wraps another Storage and encrypts payloads with AES-GCM
// before they reach it. Tokens written through it never touch disk or the
// network in the clear.
type SealedStorage struct {
	inner Storage
	gcm   cipher.AEAD
}

// NewSealedStorage creates a SealedStorage around inner. key must be 32
// bytes; DeriveSealingKey produces a suitable one.
func NewSealedStorage(inner Storage, key []byte) (*SealedStorage, error) {
	if inner == nil {
		return nil, fmt.Errorf("session: inner storage is required")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("session: sealing key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("session: create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("session: create gcm: %w", err)
	}

	return &SealedStorage{inner: inner, gcm: gcm}, nil
}

// Load reads and decrypts the blob stored under key. A payload that fails
// authentication is reported as an error, not silently passed through.
func (s *SealedStorage) Load(ctx context.Context, key string) ([]byte, error) {
	sealed, err := s.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	nonceSize := s.gcm.NonceSize()
	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("%w: sealed payload too short", ErrCorrupt)
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := s.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return plaintext, nil
}

// Save encrypts data and stores it under key.
func (s *SealedStorage) Save(ctx context.Context, key string, data []byte) error {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("session: generate nonce: %w", err)
	}
	sealed := s.gcm.Seal(nonce, nonce, data, nil)
	return s.inner.Save(ctx, key, sealed)
}

// Delete removes the blob stored under key, if any.
func (s *SealedStorage) Delete(ctx context.Context, key string) error {
	return s.inner.Delete(ctx, key)
}
