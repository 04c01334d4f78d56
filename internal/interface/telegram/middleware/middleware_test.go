package middleware

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

func TestChatFilter(t *testing.T) {
	open := NewChatFilter(0)
	assert.True(t, open.Allow(123))

	f := NewChatFilter(-100, 0, 42)
	assert.True(t, f.Allow(-100))
	assert.True(t, f.Allow(42))
	assert.False(t, f.Allow(7))

	f.Add(7)
	assert.True(t, f.Allow(7))
}

func TestContextWithUpdate(t *testing.T) {
	ctx := ContextWithUpdate(context.Background(), 1, 2, "upd-3")
	assert.Equal(t, "upd-3", RequestIDFromContext(ctx))
	assert.Equal(t, int64(1), ctx.Value(ChatIDContextKey))
	assert.Equal(t, int64(2), ctx.Value(UserIDContextKey))
	assert.Empty(t, RequestIDFromContext(context.Background()))
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         2,
		Now:               func() time.Time { return now },
	})

	assert.True(t, rl.Check(1).Allowed)
	assert.True(t, rl.Check(1).Allowed)

	denied := rl.Check(1)
	assert.False(t, denied.Allowed)
	assert.Equal(t, time.Second, denied.RetryAfter)
	assert.Contains(t, denied.ResponseMessage, "Zkus to znovu")

	assert.True(t, rl.Check(2).Allowed, "buckets are per user")

	now = now.Add(time.Second)
	assert.True(t, rl.Check(1).Allowed)

	rl.Reset(1)
	assert.True(t, rl.Check(1).Allowed)
	assert.True(t, rl.Check(1).Allowed)
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
		IdleTimeout:       time.Minute,
		Now:               func() time.Time { return now },
	})

	rl.Check(1)
	rl.Check(2)
	now = now.Add(2 * time.Minute)
	rl.Check(3)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Len(t, rl.buckets, 1)
}

func TestRecovery_PassesThroughErrors(t *testing.T) {
	m := NewRecoveryMiddleware(RecoveryConfig{Logger: logger.Discard()})
	want := errors.New("boom")

	res := m.RecoverWithHandler(context.Background(), 1, "prumer", func() error { return want })
	assert.False(t, res.Recovered)
	assert.ErrorIs(t, res.Err, want)
}

func TestRecovery_RecoversPanics(t *testing.T) {
	var calls atomic.Int32
	m := NewRecoveryMiddleware(RecoveryConfig{
		Logger:             logger.Discard(),
		EnableStackTrace:   true,
		MaxPanicsPerMinute: 1,
		OnPanic:            func(context.Context, *PanicInfo) { calls.Add(1) },
	})
	ctx := ContextWithUpdate(context.Background(), 1, 2, "upd-9")

	for i := 0; i < 3; i++ {
		res := m.RecoverWithHandler(ctx, 2, "predikce", func() error { panic("nil map") })
		require.True(t, res.Recovered)
		assert.NotEmpty(t, res.UserMessage)
		assert.Equal(t, "upd-9", res.PanicInfo.RequestID)
		assert.EqualError(t, res.PanicInfo.Error, "nil map")
		assert.NotEmpty(t, res.PanicInfo.StackTrace)
	}

	assert.Equal(t, int32(1), calls.Load(), "OnPanic is rate limited")
}
