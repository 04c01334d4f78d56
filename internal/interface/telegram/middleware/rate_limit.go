package middleware

import (
	"fmt"
	"sync"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE LIMITER MIDDLEWARE
// Protects the bot and the portal behind it from button mashing, using a
// token bucket per user.
// ══════════════════════════════════════════════════════════════════════════════

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests per user per minute.
	RequestsPerMinute int

	// BurstSize is the maximum burst size (tokens in bucket at start).
	BurstSize int

	// IdleTimeout is how long an unused bucket is kept.
	IdleTimeout time.Duration

	// OnRateLimited returns the message to send to the user.
	OnRateLimited func(userID int64, retryAfter time.Duration) string

	// Now is replaced in tests.
	Now func() time.Time
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
		IdleTimeout:       10 * time.Minute,
		OnRateLimited: func(_ int64, retryAfter time.Duration) string {
			return fmt.Sprintf("⏳ Moc požadavků najednou. Zkus to znovu za %d s.", int(retryAfter.Seconds())+1)
		},
		Now: time.Now,
	}
}

// RateLimiter implements per-user rate limiting using the token bucket algorithm.
type RateLimiter struct {
	config RateLimitConfig

	mu      sync.Mutex
	buckets map[int64]*tokenBucket
}

// tokenBucket represents a user's rate limit state.
type tokenBucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimiter creates a new rate limiter with the given configuration.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	defaults := DefaultRateLimitConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if config.BurstSize <= 0 {
		config.BurstSize = defaults.BurstSize
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.OnRateLimited == nil {
		config.OnRateLimited = defaults.OnRateLimited
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &RateLimiter{
		config:  config,
		buckets: make(map[int64]*tokenBucket),
	}
}

// RateLimitResult represents the result of a rate limit check.
type RateLimitResult struct {
	// Allowed indicates if the request is allowed.
	Allowed bool

	// RetryAfter is how long the user should wait before retrying.
	RetryAfter time.Duration

	// ResponseMessage is the message to send if rate limited.
	ResponseMessage string
}

// Check consumes a token for userID.
func (rl *RateLimiter) Check(userID int64) RateLimitResult {
	now := rl.config.Now()
	rate := float64(rl.config.RequestsPerMinute) / 60.0
	burst := float64(rl.config.BurstSize)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.evictIdle(now)

	b, ok := rl.buckets[userID]
	if !ok {
		b = &tokenBucket{tokens: burst, lastRefill: now}
		rl.buckets[userID] = b
	}

	b.tokens += now.Sub(b.lastRefill).Seconds() * rate
	if b.tokens > burst {
		b.tokens = burst
	}
	b.lastRefill = now

	if b.tokens >= 1 {
		b.tokens--
		return RateLimitResult{Allowed: true}
	}

	retryAfter := time.Duration((1 - b.tokens) / rate * float64(time.Second))
	return RateLimitResult{
		Allowed:         false,
		RetryAfter:      retryAfter,
		ResponseMessage: rl.config.OnRateLimited(userID, retryAfter),
	}
}

// Reset resets the rate limit state for a user.
func (rl *RateLimiter) Reset(userID int64) {
	rl.mu.Lock()
	delete(rl.buckets, userID)
	rl.mu.Unlock()
}

// evictIdle drops buckets that have been full for longer than IdleTimeout.
// Called under rl.mu.
func (rl *RateLimiter) evictIdle(now time.Time) {
	for id, b := range rl.buckets {
		if now.Sub(b.lastRefill) > rl.config.IdleTimeout {
			delete(rl.buckets, id)
		}
	}
}
