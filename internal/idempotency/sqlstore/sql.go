package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/payment-gateway/internal/core/datamodel/idempotency"
	guard "github.com/frahmantamala/payment-gateway/internal/idempotency"
)

const (
	insertRecordQuery = `
		INSERT INTO idempotency_records
			(idempotency_key, lock_token, fingerprint, state, response, locked_at, created_at, updated_at, expires_at)
		VALUES
			(:idempotency_key, :lock_token, :fingerprint, :state, :response, :locked_at, :created_at, :updated_at, :expires_at)
		ON CONFLICT (idempotency_key) DO NOTHING`

	selectRecordQuery = `
		SELECT idempotency_key, lock_token, fingerprint, state, response, locked_at, created_at, updated_at, expires_at
		FROM idempotency_records
		WHERE idempotency_key = ?`

	takeOverQuery = `
		UPDATE idempotency_records
		SET lock_token = ?, fingerprint = ?, locked_at = ?, updated_at = ?, expires_at = ?
		WHERE idempotency_key = ? AND lock_token = ? AND state = ?`

	completeQuery = `
		UPDATE idempotency_records
		SET state = ?, response = ?, updated_at = ?
		WHERE idempotency_key = ? AND lock_token = ?`

	deleteRecordQuery = `DELETE FROM idempotency_records WHERE idempotency_key = ? AND lock_token = ?`
)

// row mirrors idempotency.Record with a nullable response column.
type row struct {
	Key         string    `db:"idempotency_key"`
	Token       string    `db:"lock_token"`
	Fingerprint string    `db:"fingerprint"`
	State       string    `db:"state"`
	Response    []byte    `db:"response"`
	LockedAt    time.Time `db:"locked_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
	ExpiresAt   time.Time `db:"expires_at"`
}

func toRow(rec *idempotency.Record) row {
	return row{
		Key:         rec.Key,
		Token:       rec.Token,
		Fingerprint: rec.Fingerprint,
		State:       rec.State,
		Response:    rec.Response,
		LockedAt:    rec.LockedAt,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		ExpiresAt:   rec.ExpiresAt,
	}
}

func (r row) record() *idempotency.Record {
	return &idempotency.Record{
		Key:         r.Key,
		Token:       r.Token,
		Fingerprint: r.Fingerprint,
		State:       r.State,
		Response:    json.RawMessage(r.Response),
		LockedAt:    r.LockedAt,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}

// Store keeps idempotency records in the idempotency_records table.
type Store struct {
	db *sqlx.DB
}

func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Reserve(ctx context.Context, rec *idempotency.Record) (*idempotency.Record, bool, error) {
	result, err := s.db.NamedExecContext(ctx, insertRecordQuery, toRow(rec))
	if err != nil {
		return nil, false, fmt.Errorf("insert idempotency record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert idempotency record: %w", err)
	}
	if affected == 1 {
		return nil, true, nil
	}

	existing, err := s.get(ctx, rec.Key)
	if errors.Is(err, guard.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *Store) get(ctx context.Context, key string) (*idempotency.Record, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(selectRecordQuery), key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, guard.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select idempotency record: %w", err)
	}
	return r.record(), nil
}

func (s *Store) TakeOver(ctx context.Context, staleToken string, rec *idempotency.Record) (bool, error) {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(takeOverQuery),
		rec.Token, rec.Fingerprint, rec.LockedAt, rec.UpdatedAt, rec.ExpiresAt,
		rec.Key, staleToken, idempotency.StateInProgress)
	if err != nil {
		return false, fmt.Errorf("take over idempotency record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("take over idempotency record: %w", err)
	}
	return affected == 1, nil
}

func (s *Store) Complete(ctx context.Context, key, token string, response json.RawMessage) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(completeQuery),
		idempotency.StateCompleted, []byte(response), time.Now().UTC(), key, token)
	if err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete idempotency record: %w", err)
	}
	if affected == 0 {
		return guard.ErrNotFound
	}
	return nil
}

func (s *Store) Release(ctx context.Context, key, token string) error {
	result, err := s.db.ExecContext(ctx, s.db.Rebind(deleteRecordQuery), key, token)
	if err != nil {
		return fmt.Errorf("delete idempotency record: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete idempotency record: %w", err)
	}
	if affected == 0 {
		return guard.ErrNotFound
	}
	return nil
}
