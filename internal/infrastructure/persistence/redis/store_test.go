package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

type fakeClient struct {
	data    map[string]string
	failErr error
}

func (f *fakeClient) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.failErr != nil {
		return redis.NewStringResult("", f.failErr)
	}
	val, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(val, nil)
}

func (f *fakeClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failErr != nil {
		return redis.NewStatusResult("", f.failErr)
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func TestStore_LoadSave(t *testing.T) {
	client := &fakeClient{data: map[string]string{}}
	s := newStoreWithClient(client, "bakalari:")
	ctx := context.Background()

	_, ok, err := s.Load(ctx, "grades")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "grades", `{"grades":[]}`))
	assert.Equal(t, `{"grades":[]}`, client.data["bakalari:grades"])

	val, ok, err := s.Load(ctx, "grades")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"grades":[]}`, val)
}

func TestStore_Errors(t *testing.T) {
	s := newStoreWithClient(&fakeClient{failErr: errors.New("connection reset")}, "")
	ctx := context.Background()

	_, _, err := s.Load(ctx, "grades")
	assert.ErrorIs(t, err, shared.ErrStorage)
	assert.True(t, shared.IsTransient(err))

	assert.ErrorIs(t, s.Save(ctx, "grades", "x"), shared.ErrStorage)
	assert.ErrorIs(t, s.Save(ctx, "", "x"), ErrKeyEmpty)
}
