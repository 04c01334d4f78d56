package storage

import (
	"context"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
)

// SnapshotStore keeps the last seen grade collection under one key.
type SnapshotStore struct {
	kv  KV
	key string
}

// NewSnapshotStore creates a snapshot store. An empty key means "grades".
func NewSnapshotStore(kv KV, key string) *SnapshotStore {
	if key == "" {
		key = "grades"
	}
	return &SnapshotStore{kv: kv, key: key}
}

// Key returns the storage key of the snapshot.
func (s *SnapshotStore) Key() string {
	return s.key
}

// Load returns the stored collection. found is false when nothing was saved
// yet; the returned collection is then empty.
func (s *SnapshotStore) Load(ctx context.Context) (c *grade.Collection, found bool, err error) {
	blob, ok, err := s.kv.Load(ctx, s.key)
	if err != nil {
		return nil, false, err
	}
	if !ok || blob == "" {
		return grade.NewCollection(), false, nil
	}

	c, err = grade.Unmarshal(blob)
	if err != nil {
		return nil, false, err
	}
	return c, true, nil
}

// Save replaces the stored collection.
func (s *SnapshotStore) Save(ctx context.Context, c *grade.Collection) error {
	blob, err := grade.Marshal(c)
	if err != nil {
		return err
	}
	return s.kv.Save(ctx, s.key, blob)
}
