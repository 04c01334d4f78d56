package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

const (
	loadQuery = `SELECT value FROM kv_store WHERE key = $1`

	saveQuery = `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
)

// ErrKeyEmpty is returned when an empty key is provided.
var ErrKeyEmpty = errors.New("postgres: key cannot be empty")

// kvDB is the part of *Connection the store uses.
type kvDB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// KVStore keeps named text blobs in the kv_store table.
type KVStore struct {
	db kvDB
}

// NewKVStore creates a store over the connection pool.
func NewKVStore(db kvDB) *KVStore {
	return &KVStore{db: db}
}

// Ping checks that the database still answers.
func (s *KVStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return shared.WrapError("postgres", "Ping", shared.ErrStorage, "ping", err)
	}
	return nil
}

// Load returns the blob stored under key. ok=false means there is no row.
func (s *KVStore) Load(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrKeyEmpty
	}

	var value string
	err := s.db.QueryRow(ctx, loadQuery, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, shared.WrapError("postgres", "Load", shared.ErrStorage, "select "+key, err)
	}
	return value, true, nil
}

// Save upserts the blob under key.
func (s *KVStore) Save(ctx context.Context, key, blob string) error {
	if key == "" {
		return ErrKeyEmpty
	}

	if _, err := s.db.Exec(ctx, saveQuery, key, blob); err != nil {
		return shared.WrapError("postgres", "Save", shared.ErrStorage, "upsert "+key, err)
	}
	return nil
}
