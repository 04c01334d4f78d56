// Package storage defines the named-blob store the bot persists its state in
// and a retrying decorator shared by every backend.
package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bakalari-hub/grade-notifier/internal/domain/shared"
	"github.com/bakalari-hub/grade-notifier/pkg/logger"
	"github.com/bakalari-hub/grade-notifier/pkg/retry"
)

// KV reads and writes named text blobs.
// Load returns ok=false when nothing is stored under the key.
type KV interface {
	Load(ctx context.Context, key string) (blob string, ok bool, err error)
	Save(ctx context.Context, key, blob string) error
}

// Pinger is implemented by backends that hold a network connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks the backend connection. Backends without one always pass.
func Ping(ctx context.Context, kv KV) error {
	if p, ok := kv.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Retrying retries storage failures with backoff before giving up.
// Key errors and context cancellation are returned immediately.
type Retrying struct {
	next    KV
	retrier *retry.Retrier
}

// NewRetrying wraps kv. A nil retrier means retry.StorageRetrier.
func NewRetrying(kv KV, retrier *retry.Retrier, log *slog.Logger) *Retrying {
	if retrier == nil {
		retrier = retry.StorageRetrier()
	}
	log = logger.OrDefault(log)

	return &Retrying{
		next: kv,
		retrier: retrier.With(
			retry.WithRetryIf(func(err error) bool { return errors.Is(err, shared.ErrStorage) }),
			retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
				log.Warn("storage call failed, retrying",
					logger.Component("storage"),
					slog.Int("attempt", attempt),
					slog.Duration("delay", delay),
					logger.Err(err),
				)
			}),
		),
	}
}

type loadResult struct {
	blob string
	ok   bool
}

// Load implements KV.
func (r *Retrying) Load(ctx context.Context, key string) (string, bool, error) {
	res, err := retry.DoWithData(ctx, r.retrier, func(ctx context.Context) (loadResult, error) {
		blob, ok, err := r.next.Load(ctx, key)
		return loadResult{blob: blob, ok: ok}, err
	})
	return res.blob, res.ok, err
}

// Save implements KV.
func (r *Retrying) Save(ctx context.Context, key, blob string) error {
	return r.retrier.Do(ctx, func(ctx context.Context) error {
		return r.next.Save(ctx, key, blob)
	})
}
