// Package telegram wraps the Telegram Bot API for the grade notifier.
// It sends prepared notification messages, edits their keyboards, answers
// button presses and runs the long-polling update loop.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
	"github.com/bakalari-hub/grade-notifier/pkg/circuitbreaker"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
	"github.com/bakalari-hub/grade-notifier/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// ClientConfig contains configuration for the Telegram client.
type ClientConfig struct {
	// Token is the Telegram Bot API token
	Token string

	// PollingTimeout is the long polling timeout in seconds
	PollingTimeout int

	// Debug enables tgbotapi request logging
	Debug bool

	// Retrier overrides retry.TelegramRetrier.
	Retrier *retry.Retrier

	// Breaker overrides circuitbreaker.TelegramBreaker.
	Breaker *circuitbreaker.CircuitBreaker

	// Logger for structured logging
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token string) ClientConfig {
	return ClientConfig{
		Token:          token,
		PollingTimeout: 30,
	}
}

// BotAPI is the part of *tgbotapi.BotAPI the client uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ BotAPI = (*tgbotapi.BotAPI)(nil)

// ══════════════════════════════════════════════════════════════════════════════
// CLIENT
// ══════════════════════════════════════════════════════════════════════════════

// Client is the Telegram Bot API client.
type Client struct {
	api            BotAPI
	logger         *slog.Logger
	retrier        *retry.Retrier
	breaker        *circuitbreaker.CircuitBreaker
	pollingTimeout int
	username       string
}

var (
	_ notification.Sender        = (*Client)(nil)
	_ notification.ButtonRemover = (*Client)(nil)
)

// NewClient authorizes the bot token and creates a client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Token == "" {
		return nil, errors.New("telegram: bot token is required")
	}

	api, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authorize bot: %w", err)
	}
	api.Debug = config.Debug

	c := NewClientWithAPI(api, config)
	c.username = api.Self.UserName
	c.logger.Info("authorized on telegram", "bot", api.Self.UserName)
	return c, nil
}

// NewClientWithAPI creates a client around an existing API implementation.
func NewClientWithAPI(api BotAPI, config ClientConfig) *Client {
	log := logger.OrDefault(config.Logger).With(logger.Component("telegram"))

	if config.PollingTimeout <= 0 {
		config.PollingTimeout = 30
	}

	breaker := config.Breaker
	if breaker == nil {
		breaker = circuitbreaker.TelegramBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		})
	}

	retrier := config.Retrier
	if retrier == nil {
		retrier = retry.TelegramRetrier()
	}
	retrier = retrier.With(
		retry.WithRetryIf(isRetryableError),
		retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			log.Warn("telegram request failed, retrying",
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				logger.Err(err),
			)
		}),
	)

	return &Client{
		api:            api,
		logger:         log,
		retrier:        retrier,
		breaker:        breaker,
		pollingTimeout: config.PollingTimeout,
	}
}

// Username returns the bot's username, empty for clients built from an API.
func (c *Client) Username() string {
	return c.username
}

// ══════════════════════════════════════════════════════════════════════════════
// SENDING MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// Send delivers a prepared message. Failures wrap shared.ErrDelivery.
func (c *Client) Send(ctx context.Context, msg notification.Message) (notification.Handle, error) {
	if err := msg.Validate(); err != nil {
		return notification.Handle{}, err
	}

	cfg := tgbotapi.NewMessage(int64(msg.ChatID), msg.Text)
	cfg.ParseMode = string(msg.ParseMode)
	cfg.DisableNotification = msg.Silent
	cfg.DisableWebPagePreview = true
	if msg.HasButtons() {
		cfg.ReplyMarkup = buildKeyboard(msg.Buttons)
	}

	var sent tgbotapi.Message
	err := c.call(ctx, func() error {
		var err error
		sent, err = c.api.Send(cfg)
		return err
	})
	if err != nil {
		return notification.Handle{}, shared.WrapError("telegram", "Send", shared.ErrDelivery,
			fmt.Sprintf("send %s message", msg.Type), err)
	}

	h := notification.Handle{ChatID: int64(msg.ChatID), MessageID: sent.MessageID}
	c.logger.Debug("message sent",
		"type", string(msg.Type),
		logger.ChatID(h.ChatID),
		logger.MessageID(h.MessageID),
	)
	return h, nil
}

// SendText sends a plain-text message outside the notification flow.
func (c *Client) SendText(ctx context.Context, chatID int64, text string) error {
	msg := notification.Message{
		Type:   notification.TypeInfo,
		ChatID: notification.ChatID(chatID),
		Text:   text,
	}
	_, err := c.Send(ctx, msg)
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// EDITING MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// RemoveButtons removes the inline keyboard of a sent message.
// Messages that are gone or already have no keyboard count as done.
func (c *Client) RemoveButtons(ctx context.Context, h notification.Handle) error {
	if !h.IsValid() {
		return shared.NewDomainError("telegram", "RemoveButtons", shared.ErrValidation, "invalid message handle")
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(h.ChatID, h.MessageID, tgbotapi.InlineKeyboardMarkup{
		InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{},
	})

	err := c.call(ctx, func() error {
		_, err := c.api.Request(edit)
		return err
	})
	if err != nil && !isGoneOrUnchanged(err) {
		return shared.WrapError("telegram", "RemoveButtons", shared.ErrDelivery, "edit reply markup", err)
	}

	c.logger.Debug("buttons removed", logger.ChatID(h.ChatID), logger.MessageID(h.MessageID))
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CALLBACK QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// AnswerCallback acknowledges a button press. Text may be empty.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	err := c.call(ctx, func() error {
		_, err := c.api.Request(tgbotapi.NewCallback(callbackID, text))
		return err
	})
	if err != nil {
		return shared.WrapError("telegram", "AnswerCallback", shared.ErrDelivery, "answer callback", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LONG POLLING RUNNER
// ══════════════════════════════════════════════════════════════════════════════

// UpdateHandler is a function that handles a Telegram update.
type UpdateHandler func(ctx context.Context, update tgbotapi.Update) error

// StartPolling consumes updates until ctx is cancelled.
// Handler errors are logged and do not stop the loop.
func (c *Client) StartPolling(ctx context.Context, handler UpdateHandler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollingTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}

	updates := c.api.GetUpdatesChan(u)
	c.logger.Info("starting telegram long polling", "timeout", c.pollingTimeout)

	for {
		select {
		case <-ctx.Done():
			c.api.StopReceivingUpdates()
			c.logger.Info("stopping telegram long polling")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := handler(ctx, update); err != nil {
				c.logger.Error("failed to handle update",
					"update_id", update.UpdateID,
					logger.Err(err),
				)
			}
		}
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// API CALL HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// call runs fn through the breaker and the retrier.
func (c *Client) call(ctx context.Context, fn func() error) error {
	return c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(context.Context) error {
			return fn()
		})
	})
}

func buildKeyboard(rows [][]notification.InlineButton) tgbotapi.InlineKeyboardMarkup {
	keyboardRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		keyboardRows = append(keyboardRows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboardRows...)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS
// ══════════════════════════════════════════════════════════════════════════════

// isRetryableError: throttling, server errors and network failures.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == 429 || apiErr.Code >= 500
	}

	return true
}

// isGoneOrUnchanged reports edits of deleted messages or of keyboards that
// are already empty.
func isGoneOrUnchanged(err error) bool {
	var apiErr *tgbotapi.Error
	if !errors.As(err, &apiErr) || apiErr.Code != 400 {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	return strings.Contains(msg, "message is not modified") ||
		strings.Contains(msg, "message to edit not found")
}
