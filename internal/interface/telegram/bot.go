// Package telegram implements the Telegram side of the grade notifier.
// It answers commands and button presses from the student's chat and
// turns new grades into notification messages.
package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bakalari-hub/grade-notifier/config"
	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/handler"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/handler/callback"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/middleware"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/presenter"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// BOT DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// Messenger is the part of the Telegram client the bot talks through.
type Messenger interface {
	Send(ctx context.Context, msg notification.Message) (notification.Handle, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Cleaner removes buttons from a sent message after a delay.
type Cleaner interface {
	Schedule(h notification.Handle, delay time.Duration)
}

// BotConfig contains configuration for the Telegram bot.
type BotConfig struct {
	// AllowedChats are served; updates from other chats are dropped.
	AllowedChats []int64

	Features  FeatureChecker
	RateLimit middleware.RateLimitConfig
	Recovery  middleware.RecoveryConfig
	Logger    *slog.Logger
}

// BotDependencies contains all dependencies for the bot handlers.
type BotDependencies struct {
	Messenger Messenger
	Cleaner   Cleaner
	Grades    handler.GradeSource
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT
// ══════════════════════════════════════════════════════════════════════════════

// Bot is the Telegram update controller.
type Bot struct {
	messenger Messenger
	cleaner   Cleaner
	router    *Router
	logger    *slog.Logger

	chatFilter         *middleware.ChatFilter
	rateLimiter        *middleware.RateLimiter
	recoveryMiddleware *middleware.RecoveryMiddleware

	stats *BotStats
}

// BotStats holds runtime statistics.
type BotStats struct {
	mu              sync.RWMutex
	UpdatesReceived int64
	UpdatesHandled  int64
	UpdatesDropped  int64
	ErrorsCount     int64
	CommandsCount   map[string]int64
}

// NewBot wires the handlers, the router and the middleware chain.
func NewBot(cfg BotConfig, deps BotDependencies) (*Bot, error) {
	if deps.Messenger == nil {
		return nil, errors.New("telegram bot: messenger is required")
	}
	if deps.Grades == nil {
		return nil, errors.New("telegram bot: grade source is required")
	}

	log := logger.OrDefault(cfg.Logger).With(logger.Component("bot"))

	// Create presenters
	keyboards := presenter.NewKeyboardBuilder()
	predictions := presenter.NewPredictionPresenter()

	// Create handlers
	predictHandler := handler.NewPredictHandler(deps.Grades, predictions)

	router := NewRouter(cfg.Features, log)
	router.RegisterCommand("start", handler.NewStartHandler(), "")
	router.RegisterCommand("help", handler.NewStartHandler(), "")
	router.RegisterCommand("prumer", handler.NewAveragesHandler(deps.Grades, predictions), config.FeatureCommands)
	router.RegisterCommand("predikce", predictHandler, config.FeatureCommands)
	router.RegisterCallbackPrefix(presenter.CallbackPredict+":", callback.NewPredictHandler(predictHandler, keyboards))

	if cfg.Recovery.Logger == nil {
		cfg.Recovery.Logger = log
	}

	return &Bot{
		messenger:          deps.Messenger,
		cleaner:            deps.Cleaner,
		router:             router,
		logger:             log,
		chatFilter:         middleware.NewChatFilter(cfg.AllowedChats...),
		rateLimiter:        middleware.NewRateLimiter(cfg.RateLimit),
		recoveryMiddleware: middleware.NewRecoveryMiddleware(cfg.Recovery),
		stats:              &BotStats{CommandsCount: make(map[string]int64)},
	}, nil
}

// Router returns the router for handler registration.
func (b *Bot) Router() *Router {
	return b.router
}

// ══════════════════════════════════════════════════════════════════════════════
// UPDATE HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandleUpdate processes a single Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	b.stats.mu.Lock()
	b.stats.UpdatesReceived++
	b.stats.mu.Unlock()

	var err error
	switch {
	case update.Message != nil:
		err = b.handleMessage(ctx, update.UpdateID, update.Message)
	case update.CallbackQuery != nil:
		err = b.handleCallbackQuery(ctx, update.UpdateID, update.CallbackQuery)
	default:
		return nil
	}

	b.stats.mu.Lock()
	if err != nil {
		b.stats.ErrorsCount++
	} else {
		b.stats.UpdatesHandled++
	}
	b.stats.mu.Unlock()

	return err
}

// handleMessage processes a Telegram message. Only commands are answered.
func (b *Bot) handleMessage(ctx context.Context, updateID int, msg *tgbotapi.Message) error {
	if msg.Chat == nil || msg.From == nil || !msg.IsCommand() {
		return nil
	}

	chatID := msg.Chat.ID
	userID := msg.From.ID
	if !b.admit(chatID) {
		return nil
	}

	command := msg.Command()
	ctx = middleware.ContextWithUpdate(ctx, chatID, userID, strconv.Itoa(updateID))

	b.stats.mu.Lock()
	b.stats.CommandsCount[command]++
	b.stats.mu.Unlock()

	if limit := b.rateLimiter.Check(userID); !limit.Allowed {
		return b.reply(ctx, chatID, notification.TypeInfo, limit.ResponseMessage)
	}

	var res *handler.Response
	recovered := b.recoveryMiddleware.RecoverWithHandler(ctx, userID, command, func() error {
		var err error
		res, err = b.router.HandleCommand(ctx, command, handler.Request{
			UserID: userID,
			ChatID: chatID,
			Args:   msg.CommandArguments(),
		})
		return err
	})

	if recovered.Recovered {
		return b.reply(ctx, chatID, notification.TypeInfo, recovered.UserMessage)
	}
	if recovered.Err != nil {
		b.logger.Error("command failed", "command", command, logger.Err(recovered.Err))
		return b.reply(ctx, chatID, notification.TypeInfo, "😔 Nepodařilo se načíst známky, zkus to později.")
	}

	return b.reply(ctx, chatID, messageTypeFor(command), res.Text)
}

// handleCallbackQuery processes a press of an inline button.
func (b *Bot) handleCallbackQuery(ctx context.Context, updateID int, cq *tgbotapi.CallbackQuery) error {
	if cq.From == nil || cq.Message == nil || cq.Message.Chat == nil {
		return nil
	}

	chatID := cq.Message.Chat.ID
	userID := cq.From.ID
	if !b.admit(chatID) {
		return nil
	}

	ctx = middleware.ContextWithUpdate(ctx, chatID, userID, strconv.Itoa(updateID))

	// The answer removes the loading spinner and must be sent exactly once.
	answer := ""
	defer func() {
		if err := b.messenger.AnswerCallback(ctx, cq.ID, answer); err != nil {
			b.logger.Warn("failed to answer callback", logger.Err(err))
		}
	}()

	if limit := b.rateLimiter.Check(userID); !limit.Allowed {
		answer = limit.ResponseMessage
		return nil
	}

	var res *callback.Response
	recovered := b.recoveryMiddleware.RecoverWithHandler(ctx, userID, "callback:"+cq.Data, func() error {
		var err error
		res, err = b.router.HandleCallback(ctx, callback.Request{
			UserID:    userID,
			ChatID:    chatID,
			MessageID: cq.Message.MessageID,
			Data:      cq.Data,
		})
		return err
	})

	if recovered.Recovered {
		answer = recovered.UserMessage
		return nil
	}
	if recovered.Err != nil {
		answer = "😔 Nepodařilo se načíst známky."
		return recovered.Err
	}

	answer = res.AnswerText
	if res.Text != "" {
		if err := b.reply(ctx, chatID, notification.TypePrediction, res.Text); err != nil {
			return err
		}
	}

	if res.RemoveButtons && b.cleaner != nil {
		b.cleaner.Schedule(notification.Handle{ChatID: chatID, MessageID: cq.Message.MessageID}, 0)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPER METHODS
// ══════════════════════════════════════════════════════════════════════════════

func (b *Bot) admit(chatID int64) bool {
	if b.chatFilter.Allow(chatID) {
		return true
	}
	b.stats.mu.Lock()
	b.stats.UpdatesDropped++
	b.stats.mu.Unlock()
	b.logger.Debug("dropping update from foreign chat", logger.ChatID(chatID))
	return false
}

func (b *Bot) reply(ctx context.Context, chatID int64, t notification.Type, text string) error {
	msg, err := notification.NewMessage(t, notification.ChatID(chatID), text)
	if err != nil {
		return err
	}
	_, err = b.messenger.Send(ctx, msg)
	return err
}

func messageTypeFor(command string) notification.Type {
	switch command {
	case "prumer":
		return notification.TypeAverages
	case "predikce":
		return notification.TypePrediction
	default:
		return notification.TypeInfo
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// GetStats returns current bot statistics.
func (b *Bot) GetStats() map[string]any {
	b.stats.mu.RLock()
	defer b.stats.mu.RUnlock()

	commands := make(map[string]int64, len(b.stats.CommandsCount))
	for k, v := range b.stats.CommandsCount {
		commands[k] = v
	}

	return map[string]any{
		"updates_received": b.stats.UpdatesReceived,
		"updates_handled":  b.stats.UpdatesHandled,
		"updates_dropped":  b.stats.UpdatesDropped,
		"errors_count":     b.stats.ErrorsCount,
		"commands_count":   commands,
	}
}
