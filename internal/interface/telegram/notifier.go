package telegram

import (
	"context"
	"errors"
	"log/slog"

	"github.com/bakalari-hub/grade-notifier/config"
	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/presenter"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRADE NOTIFIER
// Превращает новую оценку в сообщение для чата ученика, а сбои цикла опроса -
// в сообщение для чата администратора.
// ══════════════════════════════════════════════════════════════════════════════

// GradeNotifier sends grade cards and alerts.
type GradeNotifier struct {
	sender      notification.Sender
	cards       *presenter.GradeCardPresenter
	chatID      notification.ChatID
	adminChatID notification.ChatID
	features    FeatureChecker
	logger      *slog.Logger
}

// NewGradeNotifier creates a notifier. adminChatID 0 disables alerts.
func NewGradeNotifier(sender notification.Sender, chatID, adminChatID int64, features FeatureChecker, log *slog.Logger) (*GradeNotifier, error) {
	if sender == nil {
		return nil, errors.New("grade notifier: sender is required")
	}
	if !notification.ChatID(chatID).IsValid() {
		return nil, errors.New("grade notifier: chat ID is required")
	}

	return &GradeNotifier{
		sender:      sender,
		cards:       presenter.NewGradeCardPresenter(),
		chatID:      notification.ChatID(chatID),
		adminChatID: notification.ChatID(adminChatID),
		features:    features,
		logger:      logger.OrDefault(log).With(logger.Component("notifier")),
	}, nil
}

// NotifyNewGrade sends the grade card. all is the current collection the
// subject average is computed from. withButton reports whether the card
// carries the prediction button.
func (n *GradeNotifier) NotifyNewGrade(ctx context.Context, r grade.Record, all *grade.Collection) (notification.Handle, bool, error) {
	view := n.cards.FormatNewGrade(r, all)

	msg, err := notification.NewMessage(notification.TypeNewGrade, n.chatID, view.Text)
	if err != nil {
		return notification.Handle{}, false, err
	}

	withButton := n.enabled(config.FeaturePredictionButton)
	if withButton {
		msg = msg.WithButtons(n.cards.PredictionButton(view))
	}

	h, err := n.sender.Send(ctx, msg)
	if err != nil {
		return notification.Handle{}, false, err
	}
	return h, withButton, nil
}

// Alert reports a failure to the admin chat.
func (n *GradeNotifier) Alert(ctx context.Context, text string) error {
	if !n.adminChatID.IsValid() || !n.enabled(config.FeatureAdminAlerts) {
		n.logger.Debug("admin alert suppressed")
		return nil
	}

	msg, err := notification.NewMessage(notification.TypeAlert, n.adminChatID, presenter.FormatAlert(text))
	if err != nil {
		return err
	}
	_, err = n.sender.Send(ctx, msg)
	return err
}

func (n *GradeNotifier) enabled(feature string) bool {
	return n.features == nil || n.features.IsEnabled(feature)
}
