package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStorage persists sessions as files under a directory, one file per
// key. Writes go through a temp file and rename so a crash mid-write can
// never leave a truncated session behind. Files are created 0600; the
// directory 0700.
type FileStorage struct {
	dir string
}

// NewFileStorage creates a FileStorage rooted at dir, creating it if
// needed. An empty dir selects <user config dir>/aequitas/lvcop.
func NewFileStorage(dir string) (*FileStorage, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("session: resolve config dir: %w", err)
		}
		dir = filepath.Join(base, "aequitas", "lvcop")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create storage dir: %w", err)
	}
	return &FileStorage{dir: dir}, nil
}

// Dir returns the directory sessions are stored under.
func (f *FileStorage) Dir() string { return f.dir }

// Load reads the blob stored under key, or returns ErrNotFound.
func (f *FileStorage) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: read %s: %w", key, err)
	}
	return data, nil
}

// Save atomically replaces the blob stored under key.
func (f *FileStorage) Save(_ context.Context, key string, data []byte) error {
	target := f.path(key)
	tmp, err := os.CreateTemp(f.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("session: chmod temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("session: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("session: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return fmt.Errorf("session: replace %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob stored under key, if any.
func (f *FileStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(f.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("session: delete %s: %w", key, err)
	}
	return nil
}

func (f *FileStorage) path(key string) string {
	return filepath.Join(f.dir, sanitizeKey(key)+".json")
}

// sanitizeKey flattens a storage key into a single safe filename component.
func sanitizeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
