package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Storage.Load when no session is persisted
// under the requested key.
var ErrNotFound = errors.New("session: not found")

// ErrCorrupt wraps Load failures caused by an unreadable payload rather
// than an unavailable backend. The store discards such payloads instead of
// refusing to start.
var ErrCorrupt = errors.New("session: corrupt payload")

// Storage persists serialized sessions. Implementations must treat Save as
// a full replace and Delete as idempotent. The data passed to Save is an
// opaque blob; backends must not assume it is readable JSON (it may be
// ciphertext when wrapped by SealedStorage).
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// MemoryStorage is an in-process Storage. It is the default backend and the
// one tests use; nothing survives process exit.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string][]byte
}

// NewMemoryStorage creates an empty in-memory Storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string][]byte)}
}

// Load returns the blob stored under key, or ErrNotFound.
func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.items[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Save replaces the blob stored under key.
func (m *MemoryStorage) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.items[key] = cp
	return nil
}

// Delete removes the blob stored under key, if any.
func (m *MemoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
