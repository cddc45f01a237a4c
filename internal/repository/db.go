package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/mkelechi/docextract/internal/common"
)

// Dialect selects the SQL flavor for the few statements that differ.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Open connects to the tracker store. A postgres:// DSN opens a pgx pool
// wrapped for database/sql; anything else is treated as a sqlite file path
// (local mode and tests).
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*sql.DB, Dialect, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		logger.Info("repository.db.connect", "dialect", DialectPostgres)
		pc, err := pgxpool.ParseConfig(cfg.DSN)
		if err != nil {
			return nil, "", fmt.Errorf("parse dsn: %w", err)
		}
		pc.MaxConns = cfg.MaxConns
		pc.MinConns = cfg.MinConns
		pc.MaxConnLifetime = cfg.MaxConnLifetime
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
		pc.ConnConfig.RuntimeParams["application_name"] = "docextract"

		dialCtx := ctx
		if cfg.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
		}
		pool, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			return nil, "", fmt.Errorf("connect postgres: %w", err)
		}
		return stdlib.OpenDBFromPool(pool), DialectPostgres, nil
	}

	logger.Info("repository.db.connect", "dialect", DialectSQLite, "path", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, "", fmt.Errorf("open sqlite: %w", err)
	}
	// modernc sqlite is single-writer; keep database/sql from opening
	// competing connections.
	db.SetMaxOpenConns(1)
	return db, DialectSQLite, nil
}

// Migrate creates the extraction_tracker table when missing.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	metaType := "TEXT"
	if dialect == DialectPostgres {
		metaType = "JSONB"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS extraction_tracker (
			request_id     TEXT PRIMARY KEY,
			application_id TEXT NOT NULL,
			metadata       %s NOT NULL,
			status         TEXT NOT NULL,
			extracted_data %s,
			message        TEXT,
			errors         %s,
			created_at     TIMESTAMP NOT NULL,
			updated_at     TIMESTAMP NOT NULL
		)`, metaType, metaType, metaType),
		`CREATE INDEX IF NOT EXISTS idx_tracker_application_id ON extraction_tracker (application_id)`,
	}
	for _, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("migrate tracker: %w", err)
		}
	}
	return nil
}

// HealthCheck pings the store to catch DSN issues early.
func HealthCheck(ctx context.Context, db *sql.DB) error {
	return db.PingContext(ctx)
}
