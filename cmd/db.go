package cmd

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/idempotency/sqlstore"
	paymentpg "github.com/frahmantamala/payment-gateway/internal/payment/postgres"
)

// initDB opens the gorm connection and applies pool settings. The SQLite
// profile is schema-managed in process; PostgreSQL uses goose migrations.
func initDB(ctx context.Context, cfg internal.DatabaseConfig) (*gorm.DB, *sqlx.DB, error) {
	var (
		dialector  gorm.Dialector
		sqlxDriver string
	)

	switch cfg.Driver {
	case "postgres":
		dialector = postgres.Open(cfg.GetDSN())
		sqlxDriver = "pgx"
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
		sqlxDriver = "sqlite3"
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// verify connection; close underlying *sql.DB on failure
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlxDB := sqlx.NewDb(sqlDB, sqlxDriver)

	if cfg.Driver == "sqlite" || cfg.AutoMigrate {
		if err := paymentpg.AutoMigrate(db); err != nil {
			_ = sqlDB.Close()
			return nil, nil, fmt.Errorf("failed to migrate transactions: %w", err)
		}
	}
	if cfg.Driver == "sqlite" {
		if err := sqlstore.EnsureSQLiteSchema(ctx, sqlxDB); err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
	}

	return db, sqlxDB, nil
}
