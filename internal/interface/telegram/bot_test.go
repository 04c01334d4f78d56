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

	"github.com/bakalari-hub/grade-notifier/config"
	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/persistence/memory"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/persistence/storage"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/handler"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/middleware"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

const (
	studentChat = int64(-1001)
	adminChat   = int64(42)
	userID      = int64(7)
)

// ══════════════════════════════════════════════════════════════════════════════
// FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []notification.Message
	answered map[string]string
	err      error
}

func (f *fakeMessenger) Send(_ context.Context, msg notification.Message) (notification.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return notification.Handle{}, f.err
	}
	f.sent = append(f.sent, msg)
	return notification.Handle{ChatID: int64(msg.ChatID), MessageID: len(f.sent)}, nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answered == nil {
		f.answered = make(map[string]string)
	}
	f.answered[id] = text
	return nil
}

func (f *fakeMessenger) last(t *testing.T) notification.Message {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type fakeCleaner struct {
	scheduled []notification.Handle
	delays    []time.Duration
}

func (f *fakeCleaner) Schedule(h notification.Handle, delay time.Duration) {
	f.scheduled = append(f.scheduled, h)
	f.delays = append(f.delays, delay)
}

type botFixture struct {
	messenger *fakeMessenger
	cleaner   *fakeCleaner
	snapshots *storage.SnapshotStore
	flags     *config.FeatureFlags
	bot       *Bot
}

func newBotFixture(t *testing.T) *botFixture {
	t.Helper()
	f := &botFixture{
		messenger: &fakeMessenger{},
		cleaner:   &fakeCleaner{},
		snapshots: storage.NewSnapshotStore(memory.NewStore(), "grades"),
		flags:     config.LoadFeatureFlags(),
	}

	bot, err := NewBot(BotConfig{
		AllowedChats: []int64{studentChat, adminChat},
		Features:     f.flags,
		RateLimit:    middleware.RateLimitConfig{RequestsPerMinute: 60, BurstSize: 3},
		Logger:       logger.Discard(),
	}, BotDependencies{
		Messenger: f.messenger,
		Cleaner:   f.cleaner,
		Grades:    f.snapshots,
	})
	require.NoError(t, err)
	f.bot = bot
	return f
}

func (f *botFixture) seed(t *testing.T) {
	t.Helper()
	date, err := grade.NewDate(2024, 3, 15)
	require.NoError(t, err)
	r1, err := grade.NewRecord("1", nil, "M", 1, nil, date, 1)
	require.NoError(t, err)
	r2, err := grade.NewRecord("2", nil, "M", 2, nil, date, 2.5)
	require.NoError(t, err)
	require.NoError(t, f.snapshots.Save(context.Background(), grade.NewCollection(r1, r2)))
}

func commandUpdate(chatID int64, text, command string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 10,
			From:      &tgbotapi.User{ID: userID},
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}},
		},
	}
}

func callbackUpdate(chatID int64, messageID int, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			From:    &tgbotapi.User{ID: userID},
			Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: chatID}},
			Data:    data,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// BOT TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestNewBot_RequiresDependencies(t *testing.T) {
	_, err := NewBot(BotConfig{}, BotDependencies{})
	assert.Error(t, err)
}

func TestBot_Start(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/start", "start")))

	msg := f.messenger.last(t)
	assert.Equal(t, notification.ChatID(studentChat), msg.ChatID)
	assert.Contains(t, msg.Text, "/prumer")
}

func TestBot_Averages(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/prumer", "prumer")))
	assert.Contains(t, f.messenger.last(t).Text, "nebyly načteny")

	f.seed(t)
	require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/prumer", "prumer")))
	msg := f.messenger.last(t)
	assert.Equal(t, notification.TypeAverages, msg.Type)
	assert.Contains(t, msg.Text, "M   2")
}

func TestBot_PredictCommand(t *testing.T) {
	f := newBotFixture(t)
	f.seed(t)

	require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/predikce m", "predikce")))
	msg := f.messenger.last(t)
	assert.Equal(t, notification.TypePrediction, msg.Type)
	assert.Contains(t, msg.Text, "Predikce: Matematika (M)")

	require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/predikce Xy", "predikce")))
	assert.Contains(t, f.messenger.last(t).Text, "Neznámý předmět")
}

func TestBot_CommandsFeatureFlag(t *testing.T) {
	f := newBotFixture(t)
	f.seed(t)
	require.NoError(t, f.flags.Set(config.FeatureCommands, false))

	require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/prumer", "prumer")))
	assert.Contains(t, f.messenger.last(t).Text, "Neznámý příkaz")

	require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/start", "start")))
	assert.Contains(t, f.messenger.last(t).Text, "Bakaláři")
}

func TestBot_DropsForeignChats(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(999, "/start", "start")))
	require.NoError(t, f.bot.HandleUpdate(context.Background(), callbackUpdate(999, 5, "predict:M")))

	assert.Empty(t, f.messenger.sent)
	assert.Empty(t, f.messenger.answered)
	assert.Equal(t, int64(2), f.bot.GetStats()["updates_dropped"])
}

func TestBot_IgnoresPlainText(t *testing.T) {
	f := newBotFixture(t)
	update := tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: studentChat},
		Text: "ahoj",
	}}

	require.NoError(t, f.bot.HandleUpdate(context.Background(), update))
	assert.Empty(t, f.messenger.sent)
}

func TestBot_RateLimit(t *testing.T) {
	f := newBotFixture(t)

	for i := 0; i < 4; i++ {
		require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/start", "start")))
	}
	assert.Contains(t, f.messenger.last(t).Text, "Moc požadavků")
}

func TestBot_PredictionButton(t *testing.T) {
	f := newBotFixture(t)
	f.seed(t)

	require.NoError(t, f.bot.HandleUpdate(context.Background(), callbackUpdate(studentChat, 55, "predict:M")))

	msg := f.messenger.last(t)
	assert.Equal(t, notification.TypePrediction, msg.Type)
	assert.Contains(t, msg.Text, "Matematika")

	_, answered := f.messenger.answered["cb-1"]
	assert.True(t, answered)

	require.Len(t, f.cleaner.scheduled, 1)
	assert.Equal(t, notification.Handle{ChatID: studentChat, MessageID: 55}, f.cleaner.scheduled[0])
	assert.Zero(t, f.cleaner.delays[0])
}

func TestBot_UnknownButton(t *testing.T) {
	f := newBotFixture(t)

	require.NoError(t, f.bot.HandleUpdate(context.Background(), callbackUpdate(studentChat, 56, "endorse:1")))

	assert.Empty(t, f.messenger.sent)
	assert.Equal(t, "Tlačítko už neplatí", f.messenger.answered["cb-1"])
	require.Len(t, f.cleaner.scheduled, 1)
}

func TestBot_SendFailureIsReported(t *testing.T) {
	f := newBotFixture(t)
	f.messenger.err = errors.New("telegram down")

	err := f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/start", "start"))
	assert.Error(t, err)
	assert.Equal(t, int64(1), f.bot.GetStats()["errors_count"])
}

func TestRouter_PanicIsRecovered(t *testing.T) {
	f := newBotFixture(t)
	f.bot.Router().RegisterCommand("boom", CommandFunc(func(context.Context, handler.Request) (*handler.Response, error) {
		panic("nil map")
	}), "")

	require.NoError(t, f.bot.HandleUpdate(context.Background(), commandUpdate(studentChat, "/boom", "boom")))
	assert.Contains(t, f.messenger.last(t).Text, "Něco se pokazilo")
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFIER TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestGradeNotifier_NotifyNewGrade(t *testing.T) {
	messenger := &fakeMessenger{}
	flags := config.LoadFeatureFlags()
	n, err := NewGradeNotifier(messenger, studentChat, adminChat, flags, logger.Discard())
	require.NoError(t, err)

	date, err := grade.NewDate(2024, 3, 15)
	require.NoError(t, err)
	r, err := grade.NewRecord("1", nil, "Fy", 1, nil, date, 1)
	require.NoError(t, err)

	h, withButton, err := n.NotifyNewGrade(context.Background(), r, grade.NewCollection(r))
	require.NoError(t, err)
	assert.True(t, withButton)
	assert.Equal(t, studentChat, h.ChatID)

	msg := messenger.last(t)
	assert.Equal(t, notification.TypeNewGrade, msg.Type)
	require.True(t, msg.HasButtons())
	assert.Equal(t, "predict:Fy", msg.Buttons[0][0].CallbackData)

	require.NoError(t, flags.Set(config.FeaturePredictionButton, false))
	_, withButton, err = n.NotifyNewGrade(context.Background(), r, grade.NewCollection(r))
	require.NoError(t, err)
	assert.False(t, withButton)
	assert.False(t, messenger.last(t).HasButtons())
}

func TestGradeNotifier_Alert(t *testing.T) {
	messenger := &fakeMessenger{}
	flags := config.LoadFeatureFlags()
	n, err := NewGradeNotifier(messenger, studentChat, adminChat, flags, logger.Discard())
	require.NoError(t, err)

	require.NoError(t, n.Alert(context.Background(), "unknown subject \"Astronomie\""))
	msg := messenger.last(t)
	assert.Equal(t, notification.ChatID(adminChat), msg.ChatID)
	assert.Equal(t, notification.TypeAlert, msg.Type)
	assert.Contains(t, msg.Text, "Astronomie")

	require.NoError(t, flags.Set(config.FeatureAdminAlerts, false))
	require.NoError(t, n.Alert(context.Background(), "again"))
	assert.Len(t, messenger.sent, 1)

	_, err = NewGradeNotifier(messenger, 0, 0, nil, nil)
	assert.Error(t, err)
}
