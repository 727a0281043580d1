package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aequitas-ai/lvcop-go/pkg/logger"
)

// DefaultNamespace is the storage key used when StoreConfig.Namespace is empty.
const DefaultNamespace = "aequitas/lvcop/session"

// ErrStale is returned by SetIfCurrent and ClearIfCurrent when the store
// was modified after the caller took its snapshot.
var ErrStale = errors.New("session: store modified since snapshot")

// StoreConfig configures a Store.
type StoreConfig struct {
	// Storage persists the session across restarts. Defaults to an
	// in-memory backend, which persists nothing.
	Storage Storage

	// Namespace is the key the session is stored under. Two stores with
	// the same backend and namespace share one persisted session.
	Namespace string

	// Logger receives storage diagnostics. Defaults to a no-op logger.
	Logger *logger.Logger
}

// Store holds the current session. All reads go through Snapshot, which is
// safe to retain: it never changes after it is taken. Writes replace the
// session as a unit and advance a generation counter so that writers racing
// a slow operation (a token refresh, typically) can detect they lost.
//
// The in-memory session is authoritative for the lifetime of the process.
// Storage failures are logged and do not fail the write; a session that
// could not be persisted still works until the process exits.
type Store struct {
	mu      sync.RWMutex
	sess    *Session
	gen     uint64
	storage Storage
	key     string
	log     *logger.Logger
}

// persisted is the storage representation of a session.
type persisted struct {
	Session
	SavedAt time.Time `json:"saved_at"`
}

// NewStore creates a Store and rehydrates any session the backend has
// persisted under the configured namespace. A payload that fails to decode
// is discarded and removed; the store starts empty rather than erroring.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	s := &Store{
		storage: cfg.Storage,
		key:     cfg.Namespace,
		log:     cfg.Logger,
	}

	data, err := cfg.Storage.Load(ctx, s.key)
	switch {
	case errors.Is(err, ErrNotFound):
		return s, nil
	case errors.Is(err, ErrCorrupt):
		s.discardPersisted(ctx, err)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("session: load persisted session: %w", err)
	}

	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		s.discardPersisted(ctx, err)
		return s, nil
	}
	sess := p.Session
	s.sess = &sess
	return s, nil
}

func (s *Store) discardPersisted(ctx context.Context, cause error) {
	s.log.WithError(cause).Warn("Discarding unreadable persisted session")
	if err := s.storage.Delete(ctx, s.key); err != nil {
		s.log.WithError(err).Warn("Failed to remove unreadable persisted session")
	}
}

// Snapshot returns an immutable copy of the current session. ok is false
// when no session is present; the zero Snapshot it returns then carries
// only the current generation.
func (s *Store) Snapshot() (snap Snapshot, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap.Generation = s.gen
	if s.sess == nil {
		return snap, false
	}
	snap.Credentials = s.sess.Credentials
	snap.TokenType = s.sess.TokenType
	snap.ExpiresAt = s.sess.ExpiresAt
	snap.Principal = s.sess.Principal.clone()
	return snap, true
}

// Generation returns the current store generation. It advances on every
// Set and Clear, including clears of an already empty store.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Set replaces the session unconditionally.
func (s *Store) Set(ctx context.Context, sess Session) error {
	if !sess.HasAccess() {
		return fmt.Errorf("session: access token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(ctx, &sess)
	return nil
}

// SetIfCurrent replaces the session only if the store has not changed since
// generation gen was observed. It returns ErrStale otherwise, leaving the
// store untouched. Token refreshes use this so that a login or logout that
// landed mid-refresh wins over the refresh result.
func (s *Store) SetIfCurrent(ctx context.Context, gen uint64, sess Session) error {
	if !sess.HasAccess() {
		return fmt.Errorf("session: access token is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrStale
	}
	s.apply(ctx, &sess)
	return nil
}

// Clear removes the session. Clearing an empty store is a no-op apart from
// advancing the generation.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(ctx, nil)
	return nil
}

// ClearIfCurrent removes the session only if the store has not changed
// since generation gen was observed. It returns ErrStale otherwise.
func (s *Store) ClearIfCurrent(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrStale
	}
	s.apply(ctx, nil)
	return nil
}

// apply installs the new state and persists it. Callers hold s.mu, which
// also serializes backend writes so the persisted session cannot end up
// older than the in-memory one.
func (s *Store) apply(ctx context.Context, sess *Session) {
	if sess != nil {
		sess.Principal = sess.Principal.clone()
	}
	s.sess = sess
	s.gen++

	if sess == nil {
		if err := s.storage.Delete(ctx, s.key); err != nil {
			s.log.WithError(err).Warn("Failed to delete persisted session")
		}
		return
	}

	data, err := json.Marshal(persisted{Session: *sess, SavedAt: time.Now().UTC()})
	if err != nil {
		s.log.WithError(err).Error("Failed to encode session for persistence")
		return
	}
	if err := s.storage.Save(ctx, s.key, data); err != nil {
		s.log.WithError(err).Warn("Failed to persist session")
	}
}
