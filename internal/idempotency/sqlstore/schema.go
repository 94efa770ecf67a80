package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// sqliteSchema mirrors db/migrations/00002 for the SQLite dev profile.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS idempotency_records (
    idempotency_key TEXT PRIMARY KEY,
    lock_token      TEXT      NOT NULL,
    fingerprint     TEXT      NOT NULL,
    state           TEXT      NOT NULL,
    response        BLOB,
    locked_at       TIMESTAMP NOT NULL,
    created_at      TIMESTAMP NOT NULL,
    updated_at      TIMESTAMP NOT NULL,
    expires_at      TIMESTAMP NOT NULL
)`

// EnsureSQLiteSchema creates the idempotency table when running on SQLite.
func EnsureSQLiteSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create idempotency_records: %w", err)
	}
	return nil
}
