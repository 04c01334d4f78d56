// Package redis implements the snapshot key-value store on top of Redis.
//
// Keys are namespaced with a prefix so several bots can share one database.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config holds Redis connection configuration.
type Config struct {
	// Addr is "host:port".
	Addr string

	Password string

	// DB is the Redis database number (0-15).
	DB int

	// Prefix is prepended to every key, e.g. "bakalari:".
	Prefix string

	PoolSize     int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Prefix:       "bakalari:",
		PoolSize:     4,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrConnection is returned when Redis is unreachable at startup.
	ErrConnection = errors.New("redis: connection failed")

	// ErrKeyEmpty is returned when an empty key is provided.
	ErrKeyEmpty = errors.New("redis: key cannot be empty")
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// stringClient is the part of *redis.Client the store needs.
type stringClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// Store keeps named text blobs in Redis without expiry.
type Store struct {
	client stringClient
	closer func() error
	prefix string
}

// NewStore connects to Redis and verifies the connection with PING.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &Store{client: client, closer: client.Close, prefix: cfg.Prefix}, nil
}

func newStoreWithClient(client stringClient, prefix string) *Store {
	return &Store{client: client, closer: func() error { return nil }, prefix: prefix}
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.closer()
}

// Load returns the blob stored under key. ok=false means the key does not exist.
func (s *Store) Load(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrKeyEmpty
	}

	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, shared.WrapError("redis", "Load", shared.ErrStorage, "get "+key, err)
	}
	return val, true, nil
}

// Save stores the blob under key, replacing any previous value.
func (s *Store) Save(ctx context.Context, key, blob string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	if err := s.client.Set(ctx, s.prefix+key, blob, 0).Err(); err != nil {
		return shared.WrapError("redis", "Save", shared.ErrStorage, "set "+key, err)
	}
	return nil
}
