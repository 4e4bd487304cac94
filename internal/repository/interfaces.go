package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/yourusername/factorlab/internal/models"
)

// RunRepository persists pipeline run summaries with their coefficients and ranking
type RunRepository interface {
	SaveRun(ctx context.Context, run *models.BacktestRun, coefficients []models.CoefficientRow, rankings []models.RankingRow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestRun, error)
	GetLatest(ctx context.Context, strategy string, limit int) ([]*models.BacktestRun, error)
	GetCoefficients(ctx context.Context, runID uuid.UUID) ([]models.CoefficientRow, error)
	GetRankings(ctx context.Context, runID uuid.UUID) ([]models.RankingRow, error)
}
