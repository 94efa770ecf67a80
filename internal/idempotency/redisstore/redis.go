package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/idempotency"
	guard "github.com/frahmantamala/payment-gateway/internal/idempotency"
)

const maxTxRetries = 5

// Store keeps idempotency records as JSON strings that expire with the record.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

// NewClient creates and tests a new connection to Redis.
func NewClient(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return rdb, nil
}

func New(rdb redis.UniversalClient, prefix string) *Store {
	return &Store{rdb: rdb, prefix: prefix}
}

func (s *Store) key(key string) string {
	return s.prefix + key
}

func ttl(rec *idempotency.Record) time.Duration {
	d := time.Until(rec.ExpiresAt)
	if d < time.Second {
		return time.Second
	}
	return d
}

func (s *Store) Reserve(ctx context.Context, rec *idempotency.Record) (*idempotency.Record, bool, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ok, err := s.rdb.SetNX(ctx, s.key(rec.Key), data, ttl(rec)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis SETNX failed: %w", err)
	}
	if ok {
		return nil, true, nil
	}

	existing, err := s.get(ctx, s.rdb, rec.Key)
	if errors.Is(err, guard.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) get(ctx context.Context, c getter, key string) (*idempotency.Record, error) {
	raw, err := c.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, guard.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET failed: %w", err)
	}

	var rec idempotency.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal idempotency record: %w", err)
	}
	return &rec, nil
}

// swap runs mutate inside WATCH/MULTI so concurrent writers cannot interleave.
func (s *Store) swap(ctx context.Context, key string, mutate func(current *idempotency.Record) (*idempotency.Record, error)) error {
	redisKey := s.key(key)

	txf := func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}

		next, err := mutate(current)
		if err != nil {
			return err
		}

		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal idempotency record: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, redisKey, data, ttl(next))
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, redisKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction on %s kept conflicting", redisKey)
}

var errTokenMismatch = errors.New("idempotency token mismatch")

func (s *Store) TakeOver(ctx context.Context, staleToken string, rec *idempotency.Record) (bool, error) {
	err := s.swap(ctx, rec.Key, func(current *idempotency.Record) (*idempotency.Record, error) {
		if current.Token != staleToken || current.State != idempotency.StateInProgress {
			return nil, errTokenMismatch
		}
		next := *rec
		next.CreatedAt = current.CreatedAt
		return &next, nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errTokenMismatch), errors.Is(err, guard.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (s *Store) Complete(ctx context.Context, key, token string, response json.RawMessage) error {
	err := s.swap(ctx, key, func(current *idempotency.Record) (*idempotency.Record, error) {
		if current.Token != token {
			return nil, errTokenMismatch
		}
		next := *current
		next.State = idempotency.StateCompleted
		next.Response = response
		next.UpdatedAt = time.Now().UTC()
		return &next, nil
	})
	if errors.Is(err, errTokenMismatch) {
		return guard.ErrNotFound
	}
	return err
}

func (s *Store) Release(ctx context.Context, key, token string) error {
	redisKey := s.key(key)

	txf := func(tx *redis.Tx) error {
		current, err := s.get(ctx, tx, key)
		if err != nil {
			return err
		}
		if current.Token != token {
			return guard.ErrNotFound
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, redisKey)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, redisKey)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis transaction on %s kept conflicting", redisKey)
}

// Ping reports Redis reachability for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
