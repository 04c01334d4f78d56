// Package jobs contains the scheduled jobs of the grade notifier.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/bakalari-hub/grade-notifier/config"
	"github.com/bakalari-hub/grade-notifier/internal/domain/grade"
	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// POLL GRADES JOB
// ══════════════════════════════════════════════════════════════════════════════

// PollGradesJob runs one detect-and-notify cycle per invocation: fetch the
// current grades, diff them against the stored snapshot, notify about every
// new grade and store the fresh snapshot.
//
// The scheduler never runs two invocations at once, so the job keeps no lock
// around the snapshot.
type PollGradesJob struct {
	// Dependencies
	fetcher   GradeFetcher
	snapshots SnapshotRepository
	notifier  GradeNotifier
	cleaner   ButtonCleaner
	alerter   Alerter
	features  FeatureChecker
	logger    *slog.Logger

	// Configuration
	config PollGradesConfig

	// State
	lastStats atomic.Value // *PollStats

	alertMu   sync.Mutex
	lastAlert string
}

// GradeFetcher downloads the raw grade rows from the portal.
type GradeFetcher interface {
	FetchRawGradeRows(ctx context.Context) ([]grade.RawRow, error)
}

// SnapshotRepository persists the last seen grades. Satisfied by *storage.SnapshotStore.
type SnapshotRepository interface {
	Load(ctx context.Context) (c *grade.Collection, found bool, err error)
	Save(ctx context.Context, c *grade.Collection) error
}

// GradeNotifier announces a new grade. withButton reports whether the sent
// message carries the prediction button.
type GradeNotifier interface {
	NotifyNewGrade(ctx context.Context, r grade.Record, all *grade.Collection) (h notification.Handle, withButton bool, err error)
}

// ButtonCleaner removes the prediction button after a delay.
type ButtonCleaner interface {
	Schedule(h notification.Handle, delay time.Duration)
}

// Alerter reports failures that need a human.
type Alerter interface {
	Alert(ctx context.Context, text string) error
}

// FeatureChecker is satisfied by *config.FeatureFlags.
type FeatureChecker interface {
	IsEnabled(name string) bool
}

// PollGradesConfig contains configuration for the poll job.
type PollGradesConfig struct {
	// ButtonTTL is how long the prediction button stays on a notification.
	ButtonTTL time.Duration

	// NotifyOnFirstRun announces every grade when no snapshot exists yet.
	// Otherwise the first run only stores the snapshot.
	NotifyOnFirstRun bool

	// Timeout is the maximum duration of one cycle.
	Timeout time.Duration
}

// DefaultPollGradesConfig returns sensible defaults.
func DefaultPollGradesConfig() PollGradesConfig {
	return PollGradesConfig{
		ButtonTTL: 90 * time.Minute,
		Timeout:   45 * time.Second,
	}
}

// PollStats contains statistics from one cycle.
type PollStats struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Fetched     int
	New         int
	Notified    int
	Drifted     int
	Seeded      bool
	Saved       bool
	Err         error
}

// ErrNotifyFailed is returned when at least one new grade could not be announced.
// The snapshot is not saved, so the next cycle announces the grades again.
var ErrNotifyFailed = errors.New("poll: notification failed")

// NewPollGradesJob creates a new poll job. alerter, cleaner and features may be nil.
func NewPollGradesJob(
	fetcher GradeFetcher,
	snapshots SnapshotRepository,
	notifier GradeNotifier,
	cleaner ButtonCleaner,
	alerter Alerter,
	features FeatureChecker,
	log *slog.Logger,
	cfg PollGradesConfig,
) *PollGradesJob {
	return &PollGradesJob{
		fetcher:   fetcher,
		snapshots: snapshots,
		notifier:  notifier,
		cleaner:   cleaner,
		alerter:   alerter,
		features:  features,
		logger:    logger.OrDefault(log).With(logger.Component("poll")),
		config:    cfg,
	}
}

// Name returns the job name.
func (j *PollGradesJob) Name() string {
	return "poll_grades"
}

// Description returns a human-readable description.
func (j *PollGradesJob) Description() string {
	return "Fetches grades from Bakaláři and announces new ones"
}

// Run executes one poll cycle.
//
// Transient failures (portal, Telegram, storage) are logged as warnings and
// retried on the next tick. Validation failures mean the parser no longer
// matches the portal: they are logged as errors and reported to the admin
// chat, and the snapshot stays untouched.
func (j *PollGradesJob) Run(ctx context.Context) error {
	stats := &PollStats{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	log := j.logger.With(logger.RunID(stats.RunID))

	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	err := j.cycle(ctx, log, stats)

	stats.CompletedAt = time.Now()
	stats.Duration = stats.CompletedAt.Sub(stats.StartedAt)
	stats.Err = err
	j.lastStats.Store(stats)

	if err != nil {
		j.reportFailure(ctx, log, err)
		return err
	}

	j.clearAlert()
	log.Info("poll cycle completed",
		logger.Count("fetched", stats.Fetched),
		logger.Count("new", stats.New),
		logger.Count("notified", stats.Notified),
		"seeded", stats.Seeded,
		logger.Latency(stats.Duration),
	)
	return nil
}

// LastStats returns statistics of the most recent cycle, nil before the first one.
func (j *PollGradesJob) LastStats() *PollStats {
	if v := j.lastStats.Load(); v != nil {
		return v.(*PollStats)
	}
	return nil
}

// HealthCheck fails while the portal data is being rejected. Transient
// failures do not count: they heal on their own.
func (j *PollGradesJob) HealthCheck(context.Context) error {
	stats := j.LastStats()
	if stats == nil || stats.Err == nil || !shared.IsValidation(stats.Err) {
		return nil
	}
	return fmt.Errorf("last poll rejected at %s: %w", stats.CompletedAt.Format(time.RFC3339), stats.Err)
}

func (j *PollGradesJob) cycle(ctx context.Context, log *slog.Logger, stats *PollStats) error {
	rows, err := j.fetcher.FetchRawGradeRows(ctx)
	if err != nil {
		return err
	}

	current, err := grade.ParseRows(rows)
	if err != nil {
		return err
	}
	stats.Fetched = current.Len()

	previous, found, err := j.snapshots.Load(ctx)
	if err != nil {
		return err
	}

	if !found {
		stats.Seeded = true
		if !j.config.NotifyOnFirstRun {
			log.Info("no snapshot stored yet, seeding without notifications",
				logger.Count("grades", current.Len()))
			return j.saveSnapshot(ctx, current, stats)
		}
	}

	if j.features != nil && j.features.IsEnabled(config.FeatureDriftLog) {
		if drifted := grade.Drifted(previous, current); len(drifted) > 0 {
			stats.Drifted = len(drifted)
			log.Debug("stored grades changed at the source", "ids", drifted)
		}
	}

	fresh := grade.NewGrades(previous, current)
	stats.New = len(fresh)
	if len(fresh) == 0 {
		return nil
	}

	var failed int
	for _, r := range fresh {
		if err := j.announce(ctx, log, r, current); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			failed++
			continue
		}
		stats.Notified++
	}

	if failed > 0 {
		return shared.WrapError("poll", "Run", shared.ErrDelivery,
			fmt.Sprintf("%d of %d notifications failed", failed, len(fresh)), ErrNotifyFailed)
	}

	return j.saveSnapshot(ctx, current, stats)
}

func (j *PollGradesJob) announce(ctx context.Context, log *slog.Logger, r grade.Record, all *grade.Collection) error {
	h, withButton, err := j.notifier.NotifyNewGrade(ctx, r, all)
	if err != nil {
		log.Warn("failed to announce grade",
			logger.GradeID(r.ID()),
			logger.Subject(r.Subject().String()),
			logger.Err(err),
		)
		return err
	}

	log.Info("new grade announced",
		logger.GradeID(r.ID()),
		logger.Subject(r.Subject().String()),
		logger.MessageID(h.MessageID),
	)

	if withButton && j.cleaner != nil && j.config.ButtonTTL > 0 {
		j.cleaner.Schedule(h, j.config.ButtonTTL)
	}
	return nil
}

func (j *PollGradesJob) saveSnapshot(ctx context.Context, c *grade.Collection, stats *PollStats) error {
	if err := j.snapshots.Save(ctx, c); err != nil {
		return err
	}
	stats.Saved = true
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// FAILURE REPORTING
// ─────────────────────────────────────────────────────────────────────────────

func (j *PollGradesJob) reportFailure(ctx context.Context, log *slog.Logger, err error) {
	if !shared.IsValidation(err) {
		log.Warn("poll cycle failed, retrying on next tick", logger.Err(err))
		return
	}

	log.Error("grade data rejected, snapshot left untouched", logger.Err(err))

	if j.alerter == nil || !j.shouldAlert(err.Error()) {
		return
	}
	if alertErr := j.alerter.Alert(context.WithoutCancel(ctx), err.Error()); alertErr != nil {
		log.Warn("failed to send alert", logger.Err(alertErr))
		j.clearAlert()
	}
}

// shouldAlert reports each distinct failure once until a cycle succeeds.
func (j *PollGradesJob) shouldAlert(text string) bool {
	j.alertMu.Lock()
	defer j.alertMu.Unlock()
	if j.lastAlert == text {
		return false
	}
	j.lastAlert = text
	return true
}

func (j *PollGradesJob) clearAlert() {
	j.alertMu.Lock()
	j.lastAlert = ""
	j.alertMu.Unlock()
}
