// Package handler contains Telegram command handlers.
// Each handler follows the pattern: receive request → load grades → format response.
// Handlers never talk to Telegram themselves; the bot sends what they return.
package handler

import (
	"context"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
)

// GradeSource returns the last stored grade snapshot.
// Satisfied by *storage.SnapshotStore.
type GradeSource interface {
	Load(ctx context.Context) (c *grade.Collection, found bool, err error)
}

// Request carries the parsed command.
type Request struct {
	// UserID is the user's Telegram ID.
	UserID int64

	// ChatID is the chat ID for sending responses.
	ChatID int64

	// Args is the text after the command.
	Args string
}

// Response contains the message to send back.
type Response struct {
	// Text is the message text (HTML formatted).
	Text string

	// IsError indicates if this is an error response.
	IsError bool
}
