// Package presenter formats data for Telegram display.
// Presenters handle the conversion from domain objects to user-friendly
// Telegram messages and inline buttons.
package presenter

import (
	"strings"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// CALLBACK DATA
// Формат callback_data: "<action>:<argument>", например "predict:M".
// ══════════════════════════════════════════════════════════════════════════════

const (
	// CallbackPredict - кнопка прогноза под новой оценкой.
	CallbackPredict = "predict"

	callbackSeparator = ":"
)

// PredictionButtonText - текст кнопки прогноза.
const PredictionButtonText = "📊"

// EncodeCallback собирает callback_data.
func EncodeCallback(action, argument string) string {
	return action + callbackSeparator + argument
}

// ParseCallback разбирает callback_data. ok=false для чужого формата.
func ParseCallback(data string) (action, argument string, ok bool) {
	action, argument, ok = strings.Cut(data, callbackSeparator)
	if !ok || action == "" || argument == "" {
		return "", "", false
	}
	return action, argument, true
}

// ══════════════════════════════════════════════════════════════════════════════
// KEYBOARD BUILDER
// ══════════════════════════════════════════════════════════════════════════════

// KeyboardBuilder builds inline buttons for the handlers.
type KeyboardBuilder struct{}

// NewKeyboardBuilder creates a new KeyboardBuilder.
func NewKeyboardBuilder() *KeyboardBuilder {
	return &KeyboardBuilder{}
}

// PredictionButton возвращает кнопку прогноза для предмета.
func (kb *KeyboardBuilder) PredictionButton(subject grade.Subject) notification.InlineButton {
	return notification.NewCallbackButton(PredictionButtonText, EncodeCallback(CallbackPredict, subject.String()))
}

// ParsePredictionCallback достаёт предмет из callback_data кнопки прогноза.
func (kb *KeyboardBuilder) ParsePredictionCallback(data string) (grade.Subject, bool) {
	action, code, ok := ParseCallback(data)
	if !ok || action != CallbackPredict {
		return "", false
	}
	return grade.SubjectByCode(code)
}
