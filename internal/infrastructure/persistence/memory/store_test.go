package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, ok, err := s.Load(ctx, "grades")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "grades", "a"))
	require.NoError(t, s.Save(ctx, "grades", "b"))

	val, ok, err := s.Load(ctx, "grades")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "b", val)

	assert.ErrorIs(t, s.Save(ctx, "", "x"), ErrKeyEmpty)
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Save(ctx, fmt.Sprintf("k%d", i%5), "v")
			_, _, _ = s.Load(ctx, "k0")
		}(i)
	}
	wg.Wait()

	_, ok, _ := s.Load(ctx, "k4")
	assert.True(t, ok)
}

func TestStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := NewStore().Load(ctx, "grades")
	assert.ErrorIs(t, err, context.Canceled)
}
