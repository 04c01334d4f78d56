package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOVERY MIDDLEWARE
// Catches panics in handlers. The user gets a short apology, the log gets
// the stack trace, and the update loop keeps running.
// ══════════════════════════════════════════════════════════════════════════════

// RecoveryConfig holds configuration for the recovery middleware.
type RecoveryConfig struct {
	// EnableStackTrace enables capturing stack traces.
	EnableStackTrace bool

	// OnPanic is called when a panic is recovered, e.g. to alert the admin chat.
	OnPanic func(ctx context.Context, info *PanicInfo)

	// UserErrorMessage is the message sent to users when a panic occurs.
	UserErrorMessage string

	// MaxPanicsPerMinute limits how many panics reach OnPanic per minute.
	MaxPanicsPerMinute int

	Logger *slog.Logger
}

// DefaultRecoveryConfig returns sensible defaults for recovery middleware.
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		EnableStackTrace:   true,
		UserErrorMessage:   "😔 Něco se pokazilo. Zkus to prosím za chvíli.",
		MaxPanicsPerMinute: 10,
	}
}

// PanicInfo contains information about a recovered panic.
type PanicInfo struct {
	Error      error
	PanicValue any
	StackTrace string
	RequestID  string
	UserID     int64
	Command    string
	Timestamp  time.Time
}

// RecoveryMiddleware recovers from panics and provides error handling.
type RecoveryMiddleware struct {
	config  RecoveryConfig
	logger  *slog.Logger
	limiter *panicRateLimiter
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(config RecoveryConfig) *RecoveryMiddleware {
	if config.MaxPanicsPerMinute <= 0 {
		config.MaxPanicsPerMinute = 10
	}
	if config.UserErrorMessage == "" {
		config.UserErrorMessage = DefaultRecoveryConfig().UserErrorMessage
	}
	return &RecoveryMiddleware{
		config:  config,
		logger:  logger.OrDefault(config.Logger).With(logger.Component("recovery")),
		limiter: newPanicRateLimiter(config.MaxPanicsPerMinute),
	}
}

// RecoveryResult represents the result of running a handler.
type RecoveryResult struct {
	// Recovered indicates if a panic was recovered.
	Recovered bool

	// PanicInfo contains panic details (if recovered).
	PanicInfo *PanicInfo

	// UserMessage is the message to show to the user.
	UserMessage string

	// Err is the handler's own error when it did not panic.
	Err error
}

// RecoverWithHandler executes a handler and recovers from any panics.
func (m *RecoveryMiddleware) RecoverWithHandler(
	ctx context.Context,
	userID int64,
	command string,
	handler func() error,
) (result RecoveryResult) {
	defer func() {
		if p := recover(); p != nil {
			result = m.handlePanic(ctx, p, userID, command)
		}
	}()

	return RecoveryResult{Err: handler()}
}

func (m *RecoveryMiddleware) handlePanic(ctx context.Context, value any, userID int64, command string) RecoveryResult {
	info := &PanicInfo{
		Error:      toError(value),
		PanicValue: value,
		RequestID:  RequestIDFromContext(ctx),
		UserID:     userID,
		Command:    command,
		Timestamp:  time.Now(),
	}
	if m.config.EnableStackTrace {
		info.StackTrace = string(debug.Stack())
	}

	m.logger.Error("panic recovered in handler",
		"command", command,
		"user_id", userID,
		"request_id", info.RequestID,
		logger.Err(info.Error),
		"stack", info.StackTrace,
	)

	if m.config.OnPanic != nil && m.limiter.allow() {
		m.config.OnPanic(ctx, info)
	}

	return RecoveryResult{
		Recovered:   true,
		PanicInfo:   info,
		UserMessage: m.config.UserErrorMessage,
	}
}

// toError converts a panic value to an error.
func toError(value any) error {
	switch v := value.(type) {
	case error:
		return v
	case string:
		return fmt.Errorf("%s", v)
	default:
		return fmt.Errorf("panic: %v", v)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// PANIC RATE LIMITER
// Keeps a panicking handler from flooding the admin chat.
// ══════════════════════════════════════════════════════════════════════════════

type panicRateLimiter struct {
	mu        sync.Mutex
	count     int
	windowEnd time.Time
	maxPerMin int
}

func newPanicRateLimiter(maxPerMin int) *panicRateLimiter {
	return &panicRateLimiter{maxPerMin: maxPerMin}
}

func (p *panicRateLimiter) allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if now.After(p.windowEnd) {
		p.count = 0
		p.windowEnd = now.Add(time.Minute)
	}
	if p.count >= p.maxPerMin {
		return false
	}
	p.count++
	return true
}
