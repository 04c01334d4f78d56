// Package middleware contains Telegram bot middlewares for request processing.
// Every update passes the chat filter, the rate limiter and the panic
// recovery before it reaches a handler.
package middleware

import (
	"context"
	"sync"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// Used to pass data through the request context.
// ══════════════════════════════════════════════════════════════════════════════

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ChatIDContextKey is the context key for the chat the update came from.
	ChatIDContextKey contextKey = "chat_id"

	// UserIDContextKey is the context key for the Telegram user ID.
	UserIDContextKey contextKey = "user_id"

	// RequestIDContextKey is the context key for request tracing.
	RequestIDContextKey contextKey = "request_id"
)

// ContextWithUpdate stores chat, user and request identifiers in ctx.
func ContextWithUpdate(ctx context.Context, chatID, userID int64, requestID string) context.Context {
	ctx = context.WithValue(ctx, ChatIDContextKey, chatID)
	ctx = context.WithValue(ctx, UserIDContextKey, userID)
	return context.WithValue(ctx, RequestIDContextKey, requestID)
}

// RequestIDFromContext returns the request ID stored by ContextWithUpdate.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// ══════════════════════════════════════════════════════════════════════════════
// CHAT FILTER
// The bot serves one student. Updates from other chats are dropped
// without an answer.
// ══════════════════════════════════════════════════════════════════════════════

// ChatFilter admits updates from a fixed set of chats.
type ChatFilter struct {
	mu      sync.RWMutex
	allowed map[int64]bool
}

// NewChatFilter creates a filter for the given chats. Zero IDs are ignored.
// A filter without any chat admits everything.
func NewChatFilter(chatIDs ...int64) *ChatFilter {
	f := &ChatFilter{allowed: make(map[int64]bool)}
	for _, id := range chatIDs {
		if id != 0 {
			f.allowed[id] = true
		}
	}
	return f
}

// Allow reports whether updates from chatID are served.
func (f *ChatFilter) Allow(chatID int64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.allowed) == 0 {
		return true
	}
	return f.allowed[chatID]
}

// Add admits another chat.
func (f *ChatFilter) Add(chatID int64) {
	if chatID == 0 {
		return
	}
	f.mu.Lock()
	f.allowed[chatID] = true
	f.mu.Unlock()
}
