package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/factorlab/internal/database"
	"github.com/yourusername/factorlab/internal/models"
)

const (
	errScanRun = "failed to scan backtest run: %w"

	runColumns = `id, strategy, run_date, start_date, end_date, assets, initial_capital, final_capital,
		annualized_return, sharpe_ratio, max_drawdown, periods, recommendation, full_results, created_at`
)

// PostgresRunRepository implements RunRepository for PostgreSQL
type PostgresRunRepository struct {
	db *database.DB
}

// NewPostgresRunRepository creates a new run repository
func NewPostgresRunRepository(db *database.DB) RunRepository {
	return &PostgresRunRepository{db: db}
}

// SaveRun inserts the run and its detail rows in one transaction
func (r *PostgresRunRepository) SaveRun(ctx context.Context, run *models.BacktestRun, coefficients []models.CoefficientRow, rankings []models.RankingRow) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		conn := r.db.Conn(txCtx)

		_, err := conn.Exec(txCtx, `
			INSERT INTO backtest_runs (`+runColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
			run.ID, run.Strategy, run.RunDate, run.StartDate, run.EndDate, run.Assets,
			run.InitialCapital, run.FinalCapital, run.AnnualizedReturn, run.SharpeRatio, run.MaxDrawdown,
			run.Periods, run.Recommendation, run.FullResults, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save backtest run: %w", err)
		}

		batch := &pgx.Batch{}
		for _, c := range coefficients {
			batch.Queue(`INSERT INTO run_coefficients (run_id, asset, coefficient, value, observations)
				VALUES ($1,$2,$3,$4,$5)`, c.RunID, c.Asset, c.Coefficient, c.Value, c.Observations)
		}
		for _, rk := range rankings {
			batch.Queue(`INSERT INTO run_rankings (run_id, rank, asset, expected_return)
				VALUES ($1,$2,$3,$4)`, rk.RunID, rk.Rank, rk.Asset, rk.ExpectedReturn)
		}
		if batch.Len() == 0 {
			return nil
		}

		results := conn.SendBatch(txCtx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to save run detail row %d: %w", i, err)
			}
		}
		return results.Close()
	})
}

// GetByID retrieves a run by ID
func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestRun, error) {
	row := r.db.Conn(ctx).QueryRow(ctx, `SELECT `+runColumns+` FROM backtest_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetLatest retrieves the most recent runs of a strategy
func (r *PostgresRunRepository) GetLatest(ctx context.Context, strategy string, limit int) ([]*models.BacktestRun, error) {
	rows, err := r.db.Conn(ctx).Query(ctx,
		`SELECT `+runColumns+` FROM backtest_runs WHERE strategy = $1 ORDER BY run_date DESC LIMIT $2`,
		strategy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest backtest runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.BacktestRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetCoefficients retrieves the coefficient rows of a run
func (r *PostgresRunRepository) GetCoefficients(ctx context.Context, runID uuid.UUID) ([]models.CoefficientRow, error) {
	rows, err := r.db.Conn(ctx).Query(ctx,
		`SELECT run_id, asset, coefficient, value, observations FROM run_coefficients
		 WHERE run_id = $1 ORDER BY asset, coefficient`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run coefficients: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[models.CoefficientRow])
}

// GetRankings retrieves the ranking rows of a run in rank order
func (r *PostgresRunRepository) GetRankings(ctx context.Context, runID uuid.UUID) ([]models.RankingRow, error) {
	rows, err := r.db.Conn(ctx).Query(ctx,
		`SELECT run_id, rank, asset, expected_return FROM run_rankings WHERE run_id = $1 ORDER BY rank`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query run rankings: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[models.RankingRow])
}

func scanRun(row pgx.Row) (*models.BacktestRun, error) {
	run := &models.BacktestRun{}
	if err := row.Scan(
		&run.ID, &run.Strategy, &run.RunDate, &run.StartDate, &run.EndDate, &run.Assets,
		&run.InitialCapital, &run.FinalCapital, &run.AnnualizedReturn, &run.SharpeRatio, &run.MaxDrawdown,
		&run.Periods, &run.Recommendation, &run.FullResults, &run.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf(errScanRun, err)
	}
	return run, nil
}
