// Package memory implements a process-local key-value store.
// Contents are lost on restart, so the first poll after a restart seeds again.
package memory

import (
	"context"
	"errors"
	"sync"
)

// ErrKeyEmpty is returned when an empty key is provided.
var ErrKeyEmpty = errors.New("memory: key cannot be empty")

// Store is a mutex-guarded map of named blobs.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

// Load returns the blob stored under key.
func (s *Store) Load(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrKeyEmpty
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	val, ok := s.data[key]
	return val, ok, nil
}

// Save stores the blob under key.
func (s *Store) Save(ctx context.Context, key, blob string) error {
	if key == "" {
		return ErrKeyEmpty
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = blob
	return nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }
