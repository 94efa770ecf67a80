package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/idempotency"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

var (
	ErrMissingKey = errors.New("idempotency key is required")
	ErrInProgress = errors.New("a request with this idempotency key is still in progress")
	ErrNotFound   = errors.New("idempotency record not found")
)

// RunFunc produces the outcome to store under a key.
type RunFunc func(ctx context.Context) (json.RawMessage, error)

// Store persists idempotency records. Implementations must make Reserve and
// TakeOver atomic per key.
type Store interface {
	// Reserve inserts rec when the key is free. Otherwise it returns the
	// existing record and false; existing may be nil if it vanished meanwhile.
	Reserve(ctx context.Context, rec *idempotency.Record) (existing *idempotency.Record, reserved bool, err error)
	// TakeOver replaces a stale in-progress record, provided its token is
	// still staleToken.
	TakeOver(ctx context.Context, staleToken string, rec *idempotency.Record) (bool, error)
	Complete(ctx context.Context, key, token string, response json.RawMessage) error
	// Release deletes the record only while it still carries token, so a
	// caller can never free a reservation it does not own.
	Release(ctx context.Context, key, token string) error
}

type Config struct {
	LockTTL      time.Duration
	RecordTTL    time.Duration
	WaitTimeout  time.Duration
	PollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.LockTTL <= 0 {
		c.LockTTL = 30 * time.Second
	}
	if c.RecordTTL <= 0 {
		c.RecordTTL = 24 * time.Hour
	}
	if c.WaitTimeout <= 0 {
		c.WaitTimeout = 15 * time.Second
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 50 * time.Millisecond
	}
	return c
}

type Guard struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func NewGuard(store Store, cfg Config, lg *slog.Logger) *Guard {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &Guard{
		store:  store,
		cfg:    cfg.withDefaults(),
		logger: lg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Execute runs fn at most once per key. A completed key replays its stored
// response (replayed=true); a key held by another caller is polled until it
// completes or the wait budget runs out (ErrInProgress).
func (g *Guard) Execute(ctx context.Context, key, fingerprint string, fn RunFunc) (json.RawMessage, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, false, ErrMissingKey
	}

	deadline := g.now().Add(g.cfg.WaitTimeout)

	for {
		now := g.now()
		rec := g.newRecord(key, fingerprint, now)

		existing, reserved, err := g.store.Reserve(ctx, rec)
		if err != nil {
			return nil, false, fmt.Errorf("reserve idempotency key: %w", err)
		}
		if reserved {
			return g.run(ctx, rec, fn)
		}

		if existing != nil {
			switch {
			case existing.Expired(now):
				if err := g.store.Release(ctx, key, existing.Token); err != nil && !errors.Is(err, ErrNotFound) {
					return nil, false, fmt.Errorf("release expired idempotency key: %w", err)
				}
				continue
			case existing.Completed():
				if existing.Fingerprint != fingerprint {
					g.logger.Warn("idempotency key reused with a different request",
						"idempotency_key", key)
				}
				return existing.Response, true, nil
			case existing.Stale(now, g.cfg.LockTTL):
				took, err := g.store.TakeOver(ctx, existing.Token, rec)
				if err != nil {
					return nil, false, fmt.Errorf("take over stale idempotency key: %w", err)
				}
				if took {
					g.logger.Warn("took over stale idempotency reservation",
						"idempotency_key", key,
						"locked_at", existing.LockedAt)
					return g.run(ctx, rec, fn)
				}
			}
		}

		if !g.now().Before(deadline) {
			return nil, false, ErrInProgress
		}

		select {
		case <-ctx.Done():
			return nil, false, fmt.Errorf("%w: %w", ErrInProgress, ctx.Err())
		case <-time.After(g.cfg.PollInterval):
		}
	}
}

func (g *Guard) newRecord(key, fingerprint string, now time.Time) *idempotency.Record {
	return &idempotency.Record{
		Key:         key,
		Token:       uuid.NewString(),
		Fingerprint: fingerprint,
		State:       idempotency.StateInProgress,
		LockedAt:    now,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(g.cfg.RecordTTL),
	}
}

// run executes fn under a held reservation. A failed or panicking fn frees
// the key so the caller may retry.
func (g *Guard) run(ctx context.Context, rec *idempotency.Record, fn RunFunc) (response json.RawMessage, replayed bool, err error) {
	storeCtx := context.WithoutCancel(ctx)
	completed := false

	defer func() {
		if completed {
			return
		}
		if rerr := g.store.Release(storeCtx, rec.Key, rec.Token); rerr != nil && !errors.Is(rerr, ErrNotFound) {
			g.logger.Error("failed to release idempotency key", "error", rerr, "idempotency_key", rec.Key)
		}
	}()

	response, err = fn(ctx)
	if err != nil {
		return nil, false, err
	}
	completed = true

	if err := g.store.Complete(storeCtx, rec.Key, rec.Token, response); err != nil {
		// the outcome exists; a later retry will find the key stale and run
		// again, so the transaction must be reconciled by hand
		g.logger.Error("failed to store idempotent response, key stays reserved until the lock expires",
			"error", err,
			"idempotency_key", rec.Key,
			"transaction_id", responseID(response),
			"lock_ttl", g.cfg.LockTTL)
	}

	return response, false, nil
}

// responseID extracts the top-level "id" of a stored response, if any.
func responseID(response json.RawMessage) string {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(response, &body); err != nil {
		return ""
	}
	return body.ID
}
