// Package main - точка входа бота уведомлений о новых оценках из Bakaláři.
//
// Один процесс делает всё: по расписанию опрашивает портал, рассылает
// новые оценки в чат ученика, отвечает на команды и кнопки в Telegram
// и снимает кнопки прогноза по истечении срока.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bakalari-hub/grade-notifier/config"
	"github.com/bakalari-hub/grade-notifier/internal/application/cleanup"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/external/bakalari"
	tgclient "github.com/bakalari-hub/grade-notifier/internal/infrastructure/external/telegram"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/persistence/memory"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/persistence/postgres"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/persistence/redis"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/persistence/storage"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/scheduler"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/bakalari-hub/grade-notifier/internal/interface/http"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/middleware"
	"github.com/bakalari-hub/grade-notifier/internal/interface/telegram/presenter"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
	"github.com/bakalari-hub/grade-notifier/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN
// ══════════════════════════════════════════════════════════════════════════════

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. КОНФИГУРАЦИЯ И ЛОГИРОВАНИЕ
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(string(cfg.App.Environment), cfg.App.Debug, os.Stdout)
	slog.SetDefault(log)
	log.Info("starting grade notifier",
		"env", cfg.App.Environment,
		"storage", cfg.Storage.Backend,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. ХРАНИЛИЩЕ
	// ─────────────────────────────────────────────────────────────────────────
	kv, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	store := storage.NewRetrying(kv, retry.StorageRetrier(), log)
	snapshots := storage.NewSnapshotStore(store, cfg.Storage.SnapshotKey)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. ВНЕШНИЕ КЛИЕНТЫ
	// ─────────────────────────────────────────────────────────────────────────
	portalCfg := bakalari.DefaultClientConfig(cfg.Bakalari.BaseURL, cfg.Bakalari.Username, cfg.Bakalari.Password)
	portalCfg.Timeout = cfg.Bakalari.RequestTimeout
	portalCfg.Logger = log
	portal, err := bakalari.NewClient(portalCfg)
	if err != nil {
		return fmt.Errorf("failed to create portal client: %w", err)
	}

	tgCfg := tgclient.DefaultClientConfig(cfg.Telegram.Token)
	tgCfg.PollingTimeout = int(cfg.Telegram.PollingTimeout / time.Second)
	tgCfg.Debug = cfg.Telegram.Debug
	tgCfg.Logger = log
	tg, err := tgclient.NewClient(tgCfg)
	if err != nil {
		return fmt.Errorf("failed to create telegram client: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. СНЯТИЕ КНОПОК
	// Незавершённые снятия переживают рестарт и восстанавливаются здесь.
	// ─────────────────────────────────────────────────────────────────────────
	registry, err := cleanup.New(cleanup.Config{
		Store:   store,
		Remover: tg,
		Key:     cfg.Storage.PendingKey,
		Logger:  log,
	})
	if err != nil {
		return fmt.Errorf("failed to create cleanup registry: %w", err)
	}
	defer registry.Close()

	restored, err := registry.Restore(ctx)
	if err != nil {
		log.Warn("failed to restore pending button removals", logger.Err(err))
	} else {
		log.Info("pending button removals restored", logger.Count("count", restored))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. ПЛАНИРОВЩИК
	// ─────────────────────────────────────────────────────────────────────────
	notifier, err := telegram.NewGradeNotifier(tg, cfg.Telegram.ChatID, cfg.Telegram.AdminChatID, cfg.Features, log)
	if err != nil {
		return fmt.Errorf("failed to create notifier: %w", err)
	}

	pollCfg := jobs.DefaultPollGradesConfig()
	pollCfg.ButtonTTL = cfg.Telegram.ButtonTTL
	pollCfg.NotifyOnFirstRun = cfg.Poll.NotifyOnFirstRun
	pollCfg.Timeout = cfg.Poll.Timeout
	pollJob := jobs.NewPollGradesJob(portal, snapshots, notifier, registry, notifier, cfg.Features, log, pollCfg)

	pollSchedule, err := buildSchedule(cfg.Poll.Cron, cfg.Poll.Interval)
	if err != nil {
		return fmt.Errorf("invalid POLL_CRON: %w", err)
	}

	var digestSchedule *scheduler.CronExpression
	if cfg.Poll.DigestCron != "" {
		if digestSchedule, err = scheduler.ParseCronExpression(cfg.Poll.DigestCron); err != nil {
			return fmt.Errorf("invalid DIGEST_CRON: %w", err)
		}
	}

	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		Timezone:   cfg.App.Location,
		RunOnStart: true,
	})
	if err := sched.Register(pollJob, pollSchedule); err != nil {
		return fmt.Errorf("failed to register poll job: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. TELEGRAM BOT
	// ─────────────────────────────────────────────────────────────────────────
	bot, err := telegram.NewBot(telegram.BotConfig{
		AllowedChats: []int64{cfg.Telegram.ChatID, cfg.Telegram.AdminChatID},
		Features:     cfg.Features,
		RateLimit:    middleware.DefaultRateLimitConfig(),
		Recovery:     middleware.DefaultRecoveryConfig(),
		Logger:       log,
	}, telegram.BotDependencies{
		Messenger: tg,
		Cleaner:   registry,
		Grades:    snapshots,
	})
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. СЛУЖЕБНЫЙ HTTP
	// ─────────────────────────────────────────────────────────────────────────
	var status *httpserver.Server
	if cfg.App.HTTPAddr != "" {
		health := httpserver.NewHealthChecker(cfg.App.Name)
		health.AddCheck("storage", func(ctx context.Context) error {
			if err := storage.Ping(ctx, kv); err != nil {
				return err
			}
			_, _, err := snapshots.Load(ctx)
			return err
		})
		health.AddCheck("poll", pollJob.HealthCheck)

		httpCfg := httpserver.DefaultConfig()
		httpCfg.Addr = cfg.App.HTTPAddr
		httpCfg.Version = cfg.App.Name
		status = httpserver.NewServer(httpCfg, httpserver.Dependencies{
			Health: health,
			Stats: map[string]httpserver.StatsFunc{
				"bot":       func() any { return bot.GetStats() },
				"scheduler": func() any { return sched.Metrics().Snapshot() },
				"poll":      func() any { return pollStatsView(pollJob.LastStats()) },
				"cleanup":   func() any { return map[string]int{"pending": len(registry.Pending())} },
			},
			Logger: log,
		})
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 8. ЗАПУСК
	// ─────────────────────────────────────────────────────────────────────────
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// Сводка регистрируется после Start: RunOnStart касается только опроса.
	if digestSchedule != nil {
		digest := jobs.NewAveragesDigestJob(snapshots, tg, presenter.NewPredictionPresenter(), cfg.Telegram.ChatID, log)
		if err := sched.Register(digest, digestSchedule); err != nil {
			_ = sched.Stop()
			return fmt.Errorf("failed to register digest job: %w", err)
		}
	}

	errCh := make(chan error, 2)
	go func() {
		if err := tg.StartPolling(ctx, bot.HandleUpdate); err != nil {
			errCh <- fmt.Errorf("telegram polling: %w", err)
		}
	}()

	if status != nil {
		go func() {
			if err := status.Start(); err != nil {
				errCh <- err
			}
		}()
	}

	log.Info("grade notifier is running",
		"bot", tg.Username(),
		"schedule", pollSchedule.String(),
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal")
	case runErr = <-errCh:
		log.Error("service error", logger.Err(runErr))
	}

	log.Info("starting graceful shutdown...", "timeout", cfg.App.ShutdownTimeout.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if status != nil {
		if err := status.Shutdown(shutdownCtx); err != nil {
			log.Error("failed to stop HTTP server", logger.Err(err))
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := sched.Stop(); err != nil && !errors.Is(err, scheduler.ErrSchedulerNotRunning) {
			log.Error("failed to stop scheduler", logger.Err(err))
		}
	}()

	select {
	case <-done:
		log.Info("shutdown completed successfully")
	case <-shutdownCtx.Done():
		log.Warn("shutdown timed out, exiting anyway")
	}

	return runErr
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// openStorage connects the configured backend. The returned func closes it.
func openStorage(ctx context.Context, cfg *config.Config, log *slog.Logger) (storage.KV, func(), error) {
	switch cfg.Storage.Backend {
	case config.StorageRedis:
		redisCfg := redis.DefaultConfig()
		redisCfg.Addr = cfg.Storage.RedisAddr
		redisCfg.Password = cfg.Storage.RedisPassword
		redisCfg.DB = cfg.Storage.RedisDB

		store, err := redis.NewStore(ctx, redisCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("redis connection established", "addr", redisCfg.Addr)
		return store, func() { _ = store.Close() }, nil

	case config.StoragePostgres:
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		log.Info("database connection established")
		return postgres.NewKVStore(conn), conn.Close, nil

	default:
		log.Warn("using in-memory storage, grades are re-seeded after every restart")
		store := memory.NewStore()
		return store, func() { _ = store.Close() }, nil
	}
}

// buildSchedule prefers the cron expression when one is configured.
func buildSchedule(cron string, interval time.Duration) (scheduler.Schedule, error) {
	if cron == "" {
		return scheduler.NewIntervalSchedule(interval), nil
	}
	expr, err := scheduler.ParseCronExpression(cron)
	if err != nil {
		return nil, err
	}
	return expr, nil
}

// pollStatsView flattens the last poll cycle for /stats.
func pollStatsView(s *jobs.PollStats) map[string]any {
	if s == nil {
		return map[string]any{"runs": 0}
	}
	view := map[string]any{
		"run_id":       s.RunID,
		"completed_at": s.CompletedAt,
		"duration":     s.Duration.String(),
		"fetched":      s.Fetched,
		"new":          s.New,
		"notified":     s.Notified,
		"saved":        s.Saved,
	}
	if s.Err != nil {
		view["error"] = s.Err.Error()
	}
	return view
}
