// Package repository persists the run ledger: one row per batch run, one row
// per document per stage, and the merged timeline events of each run.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/clinical-timeline/internal/common"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ConfigFrom maps the application database settings.
func ConfigFrom(c common.DatabaseConfig) Config {
	return Config{
		DSN:             c.DSN,
		MaxConns:        c.MaxConns,
		MinConns:        c.MinConns,
		MaxConnLifetime: c.MaxConnLifetime,
		DialTimeout:     c.DialTimeout,
	}
}

// IsPostgres reports whether dsn names a Postgres server. Anything else is
// treated as a SQLite database path.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the ledger database and creates its tables.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "DB_URL is empty", common.ErrInvalidInput)
	}

	var (
		s   *Store
		err error
	)
	if IsPostgres(cfg.DSN) {
		s, err = openPostgres(ctx, cfg, logger)
	} else {
		s, err = openSQLite(ctx, cfg, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: migrate: %v", common.ErrDatabase, err)
	}
	logger.Info("repository.open.ok", "dialect", s.dialect)
	return s, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	logger.Info("repository.connect", "dialect", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "clinical-timeline"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprint(cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("repository.connect.failed", "error", err)
		return nil, err
	}

	// Wrap pool as *sql.DB for the ent driver
	db := stdlib.OpenDBFromPool(pool)
	return &Store{
		drv:     entsql.OpenDB(dialect.Postgres, db),
		dialect: dialect.Postgres,
		pool:    pool,
		logger:  logger,
	}, nil
}

func openSQLite(ctx context.Context, cfg Config, logger *slog.Logger) (*Store, error) {
	path := strings.TrimPrefix(cfg.DSN, "sqlite://")
	logger.Info("repository.connect", "dialect", dialect.SQLite, "path", path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return &Store{
		drv:     entsql.OpenDB(dialect.SQLite, db),
		dialect: dialect.SQLite,
		logger:  logger,
	}, nil
}

// Close closes the database connections gracefully.
func (s *Store) Close() {
	s.logger.Info("repository.close")
	if err := s.drv.Close(); err != nil {
		s.logger.Error("repository.close.failed", "error", err)
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := s.drv.DB().PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %v", common.ErrDatabase, err)
	}
	s.logger.Debug("repository.ping.ok")
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id          VARCHAR(36) PRIMARY KEY,
		input_dir   TEXT NOT NULL,
		output_dir  TEXT NOT NULL,
		status      VARCHAR(16) NOT NULL,
		documents   INTEGER NOT NULL DEFAULT 0,
		failed      INTEGER NOT NULL DEFAULT 0,
		events      INTEGER NOT NULL DEFAULT 0,
		started_at  VARCHAR(32) NOT NULL,
		finished_at VARCHAR(32)
	)`,
	`CREATE TABLE IF NOT EXISTS documents (
		id            VARCHAR(26) PRIMARY KEY,
		run_id        VARCHAR(36) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		stage         VARCHAR(16) NOT NULL,
		source_file   TEXT NOT NULL,
		readable_path TEXT NOT NULL,
		content_hash  VARCHAR(64) NOT NULL DEFAULT '',
		file_type     VARCHAR(32) NOT NULL,
		recognized    BOOLEAN NOT NULL DEFAULT FALSE,
		status        VARCHAR(16) NOT NULL,
		dates         INTEGER NOT NULL DEFAULT 0,
		records       INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		started_at    VARCHAR(32) NOT NULL,
		finished_at   VARCHAR(32)
	)`,
	`CREATE INDEX IF NOT EXISTS documents_run_id ON documents (run_id)`,
	`CREATE TABLE IF NOT EXISTS events (
		run_id      VARCHAR(36) NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		event_date  VARCHAR(16) NOT NULL,
		record_type VARCHAR(32) NOT NULL,
		source_file TEXT NOT NULL,
		payload     TEXT NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
}

// Migrate creates missing tables. It is safe to call on every start.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return err
		}
	}
	return nil
}
