package notification

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// INLINE BUTTONS
// ══════════════════════════════════════════════════════════════════════════════

// MaxCallbackDataLength - лимит Telegram на callback_data в байтах.
const MaxCallbackDataLength = 64

// InlineButton - кнопка под сообщением.
type InlineButton struct {
	// Text - текст на кнопке.
	Text string

	// CallbackData - данные, которые вернутся боту при нажатии.
	CallbackData string
}

// NewCallbackButton создаёт callback-кнопку.
func NewCallbackButton(text, callbackData string) InlineButton {
	return InlineButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// IsValid проверяет кнопку.
func (b InlineButton) IsValid() bool {
	if b.Text == "" || b.CallbackData == "" {
		return false
	}
	return len(b.CallbackData) <= MaxCallbackDataLength
}

// ══════════════════════════════════════════════════════════════════════════════
// CHANNEL INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// Sender доставляет сообщение и возвращает handle отправленного сообщения.
type Sender interface {
	Send(ctx context.Context, msg Message) (Handle, error)
}

// ButtonRemover убирает inline-клавиатуру у отправленного сообщения.
// Повторное удаление не считается ошибкой.
type ButtonRemover interface {
	RemoveButtons(ctx context.Context, h Handle) error
}
