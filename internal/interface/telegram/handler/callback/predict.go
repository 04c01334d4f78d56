// Package callback contains inline button callback handlers.
package callback

import (
	"context"

	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/handler"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/presenter"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREDICT CALLBACK HANDLER
// Кнопка 📊 под уведомлением о новой оценке. Отправляет прогноз по предмету
// и просит снять кнопку сразу же.
// ══════════════════════════════════════════════════════════════════════════════

// PredictHandler handles the prediction button.
type PredictHandler struct {
	predict   *handler.PredictHandler
	keyboards *presenter.KeyboardBuilder
}

// NewPredictHandler creates a new PredictHandler with dependencies.
func NewPredictHandler(predict *handler.PredictHandler, keyboards *presenter.KeyboardBuilder) *PredictHandler {
	return &PredictHandler{predict: predict, keyboards: keyboards}
}

// Request contains the parsed callback data.
type Request struct {
	// UserID is the Telegram ID of the user who pressed the button.
	UserID int64

	// ChatID is the chat of the message with the button.
	ChatID int64

	// MessageID is the message with the button.
	MessageID int

	// Data is the callback data string.
	Data string
}

// Response contains the response data.
type Response struct {
	// AnswerText is the text to show in the callback answer toast.
	AnswerText string

	// Text is a new message to send to the chat, empty for none.
	Text string

	// RemoveButtons asks to remove the keyboard of the pressed message.
	RemoveButtons bool
}

// Handle processes the button press.
func (h *PredictHandler) Handle(ctx context.Context, req Request) (*Response, error) {
	subject, ok := h.keyboards.ParsePredictionCallback(req.Data)
	if !ok {
		return &Response{AnswerText: "Neznámé tlačítko", RemoveButtons: true}, nil
	}

	res, err := h.predict.Predict(ctx, subject)
	if err != nil {
		return nil, err
	}

	return &Response{
		Text:          res.Text,
		RemoveButtons: true,
	}, nil
}
