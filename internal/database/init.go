package database

import (
	"context"
	"fmt"

	"github.com/yourusername/factorlab/internal/config"
)

// schema creates the run tables. Statements are idempotent.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS backtest_runs (
		id                UUID PRIMARY KEY,
		strategy          TEXT NOT NULL,
		run_date          TIMESTAMPTZ NOT NULL,
		start_date        DATE NOT NULL,
		end_date          DATE NOT NULL,
		assets            TEXT[] NOT NULL,
		initial_capital   NUMERIC(18, 2) NOT NULL,
		final_capital     NUMERIC(18, 2) NOT NULL,
		annualized_return DOUBLE PRECISION NOT NULL,
		sharpe_ratio      DOUBLE PRECISION NOT NULL,
		max_drawdown      DOUBLE PRECISION NOT NULL,
		periods           INTEGER NOT NULL,
		recommendation    TEXT NOT NULL DEFAULT '',
		full_results      JSONB,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backtest_runs_strategy_date ON backtest_runs (strategy, run_date DESC)`,
	`CREATE TABLE IF NOT EXISTS run_coefficients (
		run_id       UUID NOT NULL REFERENCES backtest_runs (id) ON DELETE CASCADE,
		asset        TEXT NOT NULL,
		coefficient  TEXT NOT NULL,
		value        DOUBLE PRECISION NOT NULL,
		observations INTEGER NOT NULL,
		PRIMARY KEY (run_id, asset, coefficient)
	)`,
	`CREATE TABLE IF NOT EXISTS run_rankings (
		run_id          UUID NOT NULL REFERENCES backtest_runs (id) ON DELETE CASCADE,
		rank            INTEGER NOT NULL,
		asset           TEXT NOT NULL,
		expected_return DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, rank)
	)`,
}

// Initialize creates a database connection pool and ensures the run tables exist
func Initialize(ctx context.Context, cfg *config.Config) (*DB, error) {
	db, err := NewDB(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema applies the table definitions in one transaction
func (db *DB) EnsureSchema(ctx context.Context) error {
	return db.WithTransaction(ctx, func(txCtx context.Context) error {
		conn := db.Conn(txCtx)
		for _, stmt := range schema {
			if _, err := conn.Exec(txCtx, stmt); err != nil {
				return fmt.Errorf("failed to apply schema: %w", err)
			}
		}
		return nil
	})
}
