// Package cleanup снимает кнопку прогноза с уведомлений по истечении срока.
//
// Каждое уведомление с кнопкой регистрируется с задержкой. Список ожидающих
// снятия сообщений сохраняется в хранилище, поэтому после перезапуска
// таймеры восстанавливаются через Restore.
package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bakalari-hub/grade-notifier/internal/domain/notification"
	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
	"github.com/bakalari-hub/grade-notifier/internal/infrastructure/persistence/storage"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
)

// DefaultKey - ключ списка ожидающих сообщений в хранилище.
const DefaultKey = "gradesMessages"

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

// Config - зависимости и настройки реестра.
type Config struct {
	Store   storage.KV
	Remover notification.ButtonRemover

	// Key - ключ в хранилище, по умолчанию DefaultKey.
	Key string

	// RemoveTimeout ограничивает один вызов RemoveButtons.
	RemoveTimeout time.Duration

	// PersistTimeout ограничивает одну запись списка в хранилище.
	PersistTimeout time.Duration

	Logger *slog.Logger

	// Now подменяется в тестах.
	Now func() time.Time
}

// Pending - сообщение, ожидающее снятия кнопки.
type Pending struct {
	Handle notification.Handle
	DueAt  time.Time
}

type pendingDTO struct {
	ChatID    int64     `json:"chat_id"`
	MessageID int       `json:"message_id"`
	DueAt     time.Time `json:"due_at"`
}

type entry struct {
	timer *time.Timer
	due   time.Time
	seq   uint64
}

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRY
// ══════════════════════════════════════════════════════════════════════════════

// Registry держит по одному таймеру на сообщение.
type Registry struct {
	store          storage.KV
	remover        notification.ButtonRemover
	key            string
	removeTimeout  time.Duration
	persistTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time

	mu      sync.Mutex
	entries map[notification.Handle]*entry
	seq     uint64
	closed  bool

	// persistMu упорядочивает записи: снимок берётся уже под ним,
	// поэтому последняя запись всегда отражает последнее состояние.
	persistMu sync.Mutex

	wg sync.WaitGroup
}

// New создаёт реестр.
func New(cfg Config) (*Registry, error) {
	if cfg.Store == nil {
		return nil, errors.New("cleanup: store is required")
	}
	if cfg.Remover == nil {
		return nil, errors.New("cleanup: remover is required")
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.RemoveTimeout <= 0 {
		cfg.RemoveTimeout = 30 * time.Second
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 10 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Registry{
		store:          cfg.Store,
		remover:        cfg.Remover,
		key:            cfg.Key,
		removeTimeout:  cfg.RemoveTimeout,
		persistTimeout: cfg.PersistTimeout,
		logger:         logger.OrDefault(cfg.Logger).With(logger.Component("cleanup")),
		now:            cfg.Now,
		entries:        make(map[notification.Handle]*entry),
	}, nil
}

// Schedule снимает кнопки с сообщения через delay. Повторный вызов для того же
// сообщения заменяет прежний таймер. Нулевая задержка - снять сразу.
func (r *Registry) Schedule(h notification.Handle, delay time.Duration) {
	if !h.IsValid() {
		r.logger.Warn("ignoring invalid message handle", "handle", h.String())
		return
	}
	if delay < 0 {
		delay = 0
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.arm(h, r.now().Add(delay), delay)
	r.mu.Unlock()

	r.logger.Debug("button removal scheduled",
		logger.ChatID(h.ChatID),
		logger.MessageID(h.MessageID),
		slog.Duration("delay", delay),
	)
	r.persist()
}

// Cancel отменяет снятие кнопки. Возвращает false, если сообщение не ожидало.
func (r *Registry) Cancel(h notification.Handle) bool {
	r.mu.Lock()
	e, ok := r.entries[h]
	if ok {
		e.timer.Stop()
		delete(r.entries, h)
	}
	r.mu.Unlock()

	if ok {
		r.persist()
	}
	return ok
}

// Restore загружает сохранённый список и заново взводит таймеры.
// Просроченные записи срабатывают сразу.
func (r *Registry) Restore(ctx context.Context) (int, error) {
	blob, ok, err := r.store.Load(ctx, r.key)
	if err != nil {
		return 0, fmt.Errorf("cleanup: load pending: %w", err)
	}
	if !ok || blob == "" {
		return 0, nil
	}

	var items []pendingDTO
	if err := json.Unmarshal([]byte(blob), &items); err != nil {
		return 0, shared.WrapError("cleanup", "Restore", shared.ErrInvalidFormat, "decode pending messages", err)
	}

	now := r.now()
	restored := 0

	r.mu.Lock()
	for _, item := range items {
		h := notification.Handle{ChatID: item.ChatID, MessageID: item.MessageID}
		if !h.IsValid() || r.closed {
			continue
		}
		if _, exists := r.entries[h]; exists {
			continue
		}
		delay := item.DueAt.Sub(now)
		if delay < 0 {
			delay = 0
		}
		r.arm(h, item.DueAt, delay)
		restored++
	}
	r.mu.Unlock()

	r.logger.Info("pending button removals restored", logger.Count("count", restored))
	return restored, nil
}

// Pending возвращает ожидающие сообщения по возрастанию срока.
func (r *Registry) Pending() []Pending {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Close останавливает таймеры, не снимая кнопки: они остаются в хранилище
// до следующего Restore. Дожидается уже начатых снятий.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	for _, e := range r.entries {
		e.timer.Stop()
	}
	r.mu.Unlock()

	r.wg.Wait()
}

// ─────────────────────────────────────────────────────────────────────────────
// INTERNALS
// ─────────────────────────────────────────────────────────────────────────────

// arm заменяет таймер сообщения. Вызывается под r.mu.
func (r *Registry) arm(h notification.Handle, due time.Time, delay time.Duration) {
	if old, ok := r.entries[h]; ok {
		old.timer.Stop()
	}

	r.seq++
	seq := r.seq
	e := &entry{due: due, seq: seq}
	e.timer = time.AfterFunc(delay, func() { r.fire(h, seq) })
	r.entries[h] = e
}

func (r *Registry) fire(h notification.Handle, seq uint64) {
	r.mu.Lock()
	e, ok := r.entries[h]
	if !ok || e.seq != seq || r.closed {
		r.mu.Unlock()
		return
	}
	delete(r.entries, h)
	r.wg.Add(1)
	r.mu.Unlock()
	defer r.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), r.removeTimeout)
	defer cancel()

	if err := r.remover.RemoveButtons(ctx, h); err != nil {
		r.logger.Warn("failed to remove buttons",
			logger.ChatID(h.ChatID),
			logger.MessageID(h.MessageID),
			logger.Err(err),
		)
	} else {
		r.logger.Debug("buttons removed", logger.ChatID(h.ChatID), logger.MessageID(h.MessageID))
	}

	r.persist()
}

func (r *Registry) snapshotLocked() []Pending {
	out := make([]Pending, 0, len(r.entries))
	for h, e := range r.entries {
		out = append(out, Pending{Handle: h, DueAt: e.due})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DueAt.Equal(out[j].DueAt) {
			return out[i].DueAt.Before(out[j].DueAt)
		}
		return out[i].Handle.String() < out[j].Handle.String()
	})
	return out
}

// persist сохраняет текущий список. Ошибки только логируются.
func (r *Registry) persist() {
	r.persistMu.Lock()
	defer r.persistMu.Unlock()

	r.mu.Lock()
	pending := r.snapshotLocked()
	r.mu.Unlock()

	items := make([]pendingDTO, 0, len(pending))
	for _, p := range pending {
		items = append(items, pendingDTO{ChatID: p.Handle.ChatID, MessageID: p.Handle.MessageID, DueAt: p.DueAt.UTC()})
	}

	data, err := json.Marshal(items)
	if err != nil {
		r.logger.Error("failed to encode pending messages", logger.Err(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.persistTimeout)
	defer cancel()

	if err := r.store.Save(ctx, r.key, string(data)); err != nil {
		r.logger.Warn("failed to persist pending messages", logger.Err(err))
	}
}
