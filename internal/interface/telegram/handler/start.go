package handler

import (
	"context"

	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// START HANDLER
// /start - короткая справка и список кодов предметов.
// ══════════════════════════════════════════════════════════════════════════════

// StartHandler handles the /start command.
type StartHandler struct{}

// NewStartHandler creates a new StartHandler.
func NewStartHandler() *StartHandler {
	return &StartHandler{}
}

// Handle processes the /start command.
func (h *StartHandler) Handle(_ context.Context, _ Request) (*Response, error) {
	return &Response{Text: presenter.FormatStart()}, nil
}
