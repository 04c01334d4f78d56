package notification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
)

func TestHandle_StringRoundTrip(t *testing.T) {
	h := Handle{ChatID: -100123, MessageID: 42}
	assert.Equal(t, "-100123:42", h.String())

	parsed, err := ParseHandle(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseHandle_Errors(t *testing.T) {
	for _, s := range []string{"", "42", "a:1", "1:b", "0:5", "5:0"} {
		t.Run(s, func(t *testing.T) {
			_, err := ParseHandle(s)
			assert.ErrorIs(t, err, shared.ErrInvalidFormat)
		})
	}
}

func TestNewMessage_Validation(t *testing.T) {
	msg, err := NewMessage(TypeNewGrade, 10, "<b>1</b>")
	require.NoError(t, err)
	assert.Equal(t, ParseModeHTML, msg.ParseMode)
	assert.False(t, msg.HasButtons())

	_, err = NewMessage(TypeNewGrade, 0, "text")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewMessage(Type("bogus"), 10, "text")
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewMessage(TypeAlert, 10, "   ")
	assert.ErrorIs(t, err, shared.ErrEmptyValue)

	_, err = NewMessage(TypeAlert, 10, strings.Repeat("ř", MaxTextLength+1))
	assert.ErrorIs(t, err, shared.ErrValueOutOfRange)
}

func TestMessage_WithButtons(t *testing.T) {
	msg, err := NewMessage(TypeNewGrade, 10, "text")
	require.NoError(t, err)

	withButton := msg.WithButtons(NewCallbackButton("📊", "predict:M"))
	assert.True(t, withButton.HasButtons())
	assert.False(t, msg.HasButtons(), "original message is unchanged")
	assert.NoError(t, withButton.Validate())

	tooLong := msg.WithButtons(NewCallbackButton("x", strings.Repeat("a", MaxCallbackDataLength+1)))
	assert.ErrorIs(t, tooLong.Validate(), shared.ErrValidation)
}
