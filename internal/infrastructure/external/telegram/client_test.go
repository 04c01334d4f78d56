package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
	"github.com/bakalari-hub/grade-notifier/pkg/circuitbreaker"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
	"github.com/bakalari-hub/grade-notifier/pkg/retry"
)

// fakeAPI records every Chattable and replays queued errors.
type fakeAPI struct {
	mu        sync.Mutex
	sent      []tgbotapi.Chattable
	requested []tgbotapi.Chattable
	errs      []error
	nextID    int
	updates   chan tgbotapi.Update
	stopped   bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{nextID: 100, updates: make(chan tgbotapi.Update, 10)}
}

func (f *fakeAPI) popErr() error {
	if len(f.errs) == 0 {
		return nil
	}
	err := f.errs[0]
	f.errs = f.errs[1:]
	return err
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	if err := f.popErr(); err != nil {
		return tgbotapi.Message{}, err
	}
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, c)
	if err := f.popErr(); err != nil {
		return nil, err
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func newTestClient(api BotAPI) *Client {
	return NewClientWithAPI(api, ClientConfig{
		Retrier: retry.New(retry.WithMaxAttempts(3), retry.WithInitialDelay(time.Millisecond), retry.WithJitter(0)),
		Breaker: circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(10)),
		Logger:  logger.Discard(),
	})
}

func TestClient_SendWithButton(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api)

	msg, err := notification.NewMessage(notification.TypeNewGrade, 777, "<b>M</b>")
	require.NoError(t, err)
	msg = msg.WithButtons(notification.NewCallbackButton("📊", "predict:M"))

	h, err := c.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, notification.Handle{ChatID: 777, MessageID: 101}, h)

	require.Len(t, api.sent, 1)
	cfg, ok := api.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(777), cfg.ChatID)
	assert.Equal(t, "HTML", cfg.ParseMode)

	markup, ok := cfg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "predict:M", *markup.InlineKeyboard[0][0].CallbackData)
}

func TestClient_SendRetriesServerErrors(t *testing.T) {
	api := newFakeAPI()
	api.errs = []error{&tgbotapi.Error{Code: 502, Message: "Bad Gateway"}}
	c := newTestClient(api)

	msg, err := notification.NewMessage(notification.TypeAlert, 1, "down")
	require.NoError(t, err)

	_, err = c.Send(context.Background(), msg)
	require.NoError(t, err)
	assert.Len(t, api.sent, 2)
}

func TestClient_SendClientErrorIsDeliveryError(t *testing.T) {
	api := newFakeAPI()
	api.errs = []error{&tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}}
	c := newTestClient(api)

	msg, err := notification.NewMessage(notification.TypeAlert, 1, "down")
	require.NoError(t, err)

	_, err = c.Send(context.Background(), msg)
	assert.ErrorIs(t, err, shared.ErrDelivery)
	assert.True(t, shared.IsTransient(err))
	assert.Len(t, api.sent, 1)
}

func TestClient_SendRejectsInvalidMessage(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api)

	_, err := c.Send(context.Background(), notification.Message{Type: notification.TypeInfo, ChatID: 1})
	assert.ErrorIs(t, err, shared.ErrEmptyValue)
	assert.Empty(t, api.sent)
}

func TestClient_RemoveButtons(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api)
	h := notification.Handle{ChatID: 5, MessageID: 9}

	require.NoError(t, c.RemoveButtons(context.Background(), h))
	require.Len(t, api.requested, 1)
	edit, ok := api.requested[0].(tgbotapi.EditMessageReplyMarkupConfig)
	require.True(t, ok)
	assert.Equal(t, 9, edit.MessageID)
	require.NotNil(t, edit.ReplyMarkup)
	assert.Empty(t, edit.ReplyMarkup.InlineKeyboard)

	api.errs = []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}}
	assert.NoError(t, c.RemoveButtons(context.Background(), h))

	api.errs = []error{&tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}}
	assert.ErrorIs(t, c.RemoveButtons(context.Background(), h), shared.ErrDelivery)

	assert.ErrorIs(t, c.RemoveButtons(context.Background(), notification.Handle{}), shared.ErrValidation)
}

func TestClient_AnswerCallback(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api)

	require.NoError(t, c.AnswerCallback(context.Background(), "cb-1", ""))
	require.Len(t, api.requested, 1)
	cb, ok := api.requested[0].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb-1", cb.CallbackQueryID)
}

func TestClient_StartPolling(t *testing.T) {
	api := newFakeAPI()
	c := newTestClient(api)

	ctx, cancel := context.WithCancel(context.Background())
	handled := make(chan int, 2)
	done := make(chan error, 1)

	go func() {
		done <- c.StartPolling(ctx, func(_ context.Context, u tgbotapi.Update) error {
			handled <- u.UpdateID
			if u.UpdateID == 1 {
				return errors.New("handler failure")
			}
			return nil
		})
	}()

	api.updates <- tgbotapi.Update{UpdateID: 1}
	api.updates <- tgbotapi.Update{UpdateID: 2}

	assert.Equal(t, 1, <-handled)
	assert.Equal(t, 2, <-handled, "handler error does not stop the loop")

	cancel()
	require.NoError(t, <-done)

	api.mu.Lock()
	defer api.mu.Unlock()
	assert.True(t, api.stopped)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, isRetryableError(&tgbotapi.Error{Code: 429}))
	assert.True(t, isRetryableError(&tgbotapi.Error{Code: 500}))
	assert.True(t, isRetryableError(errors.New("connection reset by peer")))
	assert.False(t, isRetryableError(&tgbotapi.Error{Code: 400}))
	assert.False(t, isRetryableError(context.Canceled))
	assert.False(t, isRetryableError(nil))
}
