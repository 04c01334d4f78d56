package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// AVERAGES DIGEST JOB
// ══════════════════════════════════════════════════════════════════════════════

// AveragesDigestJob sends the per-subject averages of the stored snapshot to
// the student's chat. It never talks to the portal: the digest reflects what
// the last successful poll saw.
type AveragesDigestJob struct {
	grades    GradeSource
	sender    notification.Sender
	formatter DigestFormatter
	chatID    notification.ChatID
	logger    *slog.Logger

	lastStats atomic.Value // *DigestStats
}

// GradeSource reads the stored snapshot. Satisfied by *storage.SnapshotStore.
type GradeSource interface {
	Load(ctx context.Context) (c *grade.Collection, found bool, err error)
}

// DigestFormatter renders the averages table.
type DigestFormatter interface {
	FormatAverages(c *grade.Collection) string
}

// DigestStats contains statistics from one digest run.
type DigestStats struct {
	StartedAt time.Time
	Duration  time.Duration
	Subjects  int
	Sent      bool
	Err       error
}

// digestHeader opens every digest message.
const digestHeader = "🗓 <b>Přehled známek</b>\n\n"

// NewAveragesDigestJob creates the digest job.
func NewAveragesDigestJob(grades GradeSource, sender notification.Sender, formatter DigestFormatter, chatID int64, log *slog.Logger) *AveragesDigestJob {
	return &AveragesDigestJob{
		grades:    grades,
		sender:    sender,
		formatter: formatter,
		chatID:    notification.ChatID(chatID),
		logger:    logger.OrDefault(log).With(logger.Component("averages_digest")),
	}
}

// Name returns the job name.
func (j *AveragesDigestJob) Name() string {
	return "averages_digest"
}

// Description returns a human-readable description.
func (j *AveragesDigestJob) Description() string {
	return "Sends the per-subject averages of the stored grades to the chat"
}

// Run sends one digest. An empty or missing snapshot is skipped silently.
func (j *AveragesDigestJob) Run(ctx context.Context) error {
	stats := &DigestStats{StartedAt: time.Now()}
	defer func() {
		stats.Duration = time.Since(stats.StartedAt)
		j.lastStats.Store(stats)
	}()

	c, found, err := j.grades.Load(ctx)
	if err != nil {
		stats.Err = err
		return fmt.Errorf("load snapshot: %w", err)
	}
	if !found || c.IsEmpty() {
		j.logger.Info("no grades stored, digest skipped")
		return nil
	}
	stats.Subjects = len(c.Subjects())

	msg, err := notification.NewMessage(notification.TypeAverages, j.chatID, digestHeader+j.formatter.FormatAverages(c))
	if err != nil {
		stats.Err = err
		return err
	}
	msg.Silent = true

	if _, err := j.sender.Send(ctx, msg); err != nil {
		stats.Err = err
		return fmt.Errorf("send digest: %w", err)
	}
	stats.Sent = true

	j.logger.Info("digest sent", logger.Count("subjects", stats.Subjects))
	return nil
}

// LastStats returns statistics from the last run, or nil.
func (j *AveragesDigestJob) LastStats() *DigestStats {
	if v := j.lastStats.Load(); v != nil {
		return v.(*DigestStats)
	}
	return nil
}
