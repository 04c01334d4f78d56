// Package notification описывает исходящие сообщения бота: что отправляем,
// куда и как потом найти отправленное сообщение.
package notification

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// ChatID - идентификатор чата Telegram. Группы имеют отрицательные id.
type ChatID int64

// IsValid проверяет, что id задан.
func (id ChatID) IsValid() bool {
	return id != 0
}

// Type - тип уведомления.
type Type string

const (
	// TypeNewGrade - новая оценка с кнопкой прогноза.
	TypeNewGrade Type = "new_grade"

	// TypePrediction - таблица прогноза по предмету.
	TypePrediction Type = "prediction"

	// TypeAverages - средние по всем предметам (/prumer).
	TypeAverages Type = "averages"

	// TypeAlert - сообщение администратору о сбое.
	TypeAlert Type = "alert"

	// TypeInfo - справка и прочие ответы на команды.
	TypeInfo Type = "info"
)

// IsValid проверяет тип.
func (t Type) IsValid() bool {
	switch t {
	case TypeNewGrade, TypePrediction, TypeAverages, TypeAlert, TypeInfo:
		return true
	default:
		return false
	}
}

// Emoji возвращает эмодзи типа.
func (t Type) Emoji() string {
	switch t {
	case TypeNewGrade:
		return "📝"
	case TypePrediction:
		return "📊"
	case TypeAverages:
		return "📈"
	case TypeAlert:
		return "⚠️"
	default:
		return "ℹ️"
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLE
// ══════════════════════════════════════════════════════════════════════════════

// Handle указывает на уже отправленное сообщение.
type Handle struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// IsValid проверяет, что handle указывает на реальное сообщение.
func (h Handle) IsValid() bool {
	return h.ChatID != 0 && h.MessageID > 0
}

// String возвращает "chat:message", используется как ключ.
func (h Handle) String() string {
	return strconv.FormatInt(h.ChatID, 10) + ":" + strconv.Itoa(h.MessageID)
}

// ParseHandle разбирает строку из Handle.String.
func ParseHandle(s string) (Handle, error) {
	chat, msg, ok := strings.Cut(s, ":")
	if !ok {
		return Handle{}, shared.NewDomainError("notification", "ParseHandle", shared.ErrInvalidFormat,
			fmt.Sprintf("handle %q is not chat:message", s))
	}

	chatID, err := strconv.ParseInt(chat, 10, 64)
	if err != nil {
		return Handle{}, shared.WrapError("notification", "ParseHandle", shared.ErrInvalidFormat, "bad chat id", err)
	}
	messageID, err := strconv.Atoi(msg)
	if err != nil {
		return Handle{}, shared.WrapError("notification", "ParseHandle", shared.ErrInvalidFormat, "bad message id", err)
	}

	h := Handle{ChatID: chatID, MessageID: messageID}
	if !h.IsValid() {
		return Handle{}, shared.NewDomainError("notification", "ParseHandle", shared.ErrInvalidFormat,
			fmt.Sprintf("handle %q does not point to a message", s))
	}
	return h, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MESSAGE
// ══════════════════════════════════════════════════════════════════════════════

// ParseMode - режим разметки текста.
type ParseMode string

const (
	ParseModeNone ParseMode = ""
	ParseModeHTML ParseMode = "HTML"
)

// MaxTextLength - лимит Telegram на длину текста сообщения (в символах).
const MaxTextLength = 4096

// Message - сообщение, готовое к отправке.
type Message struct {
	Type      Type
	ChatID    ChatID
	Text      string
	ParseMode ParseMode

	// Buttons - строки inline-кнопок. Пусто - без клавиатуры.
	Buttons [][]InlineButton

	// Silent - без звука.
	Silent bool
}

// NewMessage создаёт HTML-сообщение и проверяет его.
func NewMessage(t Type, chatID ChatID, text string) (Message, error) {
	m := Message{
		Type:      t,
		ChatID:    chatID,
		Text:      text,
		ParseMode: ParseModeHTML,
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}

// WithButtons возвращает копию с одной строкой кнопок.
func (m Message) WithButtons(buttons ...InlineButton) Message {
	if len(buttons) == 0 {
		return m
	}
	rows := make([][]InlineButton, 0, len(m.Buttons)+1)
	rows = append(rows, m.Buttons...)
	m.Buttons = append(rows, buttons)
	return m
}

// HasButtons сообщает, есть ли у сообщения клавиатура.
func (m Message) HasButtons() bool {
	return len(m.Buttons) > 0
}

// Validate проверяет сообщение перед отправкой.
func (m Message) Validate() error {
	const op = "Message.Validate"

	if !m.Type.IsValid() {
		return shared.NewDomainError("notification", op, shared.ErrValidation, fmt.Sprintf("unknown type %q", m.Type))
	}
	if !m.ChatID.IsValid() {
		return shared.NewDomainError("notification", op, shared.ErrValidation, "chat id is required")
	}
	if strings.TrimSpace(m.Text) == "" {
		return shared.NewDomainError("notification", op, shared.ErrEmptyValue, "text is empty")
	}
	if n := utf8.RuneCountInString(m.Text); n > MaxTextLength {
		return shared.NewDomainError("notification", op, shared.ErrValueOutOfRange,
			fmt.Sprintf("text has %d characters, limit is %d", n, MaxTextLength))
	}
	for _, row := range m.Buttons {
		for _, b := range row {
			if !b.IsValid() {
				return shared.NewDomainError("notification", op, shared.ErrValidation,
					fmt.Sprintf("invalid button %q", b.Text))
			}
		}
	}
	return nil
}
