package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisStorageConfig configures a RedisStorage. Provide either an existing
// Client or an Addr to connect to.
type RedisStorageConfig struct {
	// Client is an existing Redis client to use. When set, Addr, Password
	// and DB are ignored and Close does not close the client.
	Client redis.UniversalClient

	// Addr is the host:port of the Redis server.
	Addr string

	// Password authenticates the connection. Optional.
	Password string

	// DB selects the Redis database. Defaults to 0.
	DB int

	// KeyPrefix is prepended to every storage key. Defaults to "lvcop:".
	KeyPrefix string

	// TTL expires persisted sessions after the given duration. Zero keeps
	// them until deleted. Refresh token lifetime is the sensible value
	// here; a session that outlives its refresh token is dead weight.
	TTL time.Duration
}

// RedisStorage persists sessions in Redis. It is the backend for deployments
// where several workers share one session, such as a fleet of schedulers
// calling the platform under a single service account.
type RedisStorage struct {
	rdb    redis.UniversalClient
	prefix string
	ttl    time.Duration
	owned  bool
}

// NewRedisStorage creates a RedisStorage. Connectivity problems surface on
// first use, not here.
func NewRedisStorage(cfg RedisStorageConfig) (*RedisStorage, error) {
	if cfg.Client == nil && cfg.Addr == "" {
		return nil, fmt.Errorf("session: redis Client or Addr is required")
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "lvcop:"
	}

	rdb := cfg.Client
	owned := false
	if rdb == nil {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
		owned = true
	}

	return &RedisStorage{
		rdb:    rdb,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		owned:  owned,
	}, nil
}

// Load reads the blob stored under key, or returns ErrNotFound.
func (r *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: redis get %s: %w", key, err)
	}
	return data, nil
}

// Save replaces the blob stored under key, resetting its TTL.
func (r *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	if err := r.rdb.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes the blob stored under key, if any.
func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("session: redis del %s: %w", key, err)
	}
	return nil
}

// Ping verifies connectivity to the Redis server.
func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("session: redis ping: %w", err)
	}
	return nil
}

// Close releases the client if this storage created it. Injected clients
// are left open.
func (r *RedisStorage) Close() error {
	if !r.owned {
		return nil
	}
	return r.rdb.Close()
}
