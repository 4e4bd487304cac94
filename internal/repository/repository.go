package repository

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/yourusername/factorlab/internal/database"
	"github.com/yourusername/factorlab/internal/models"
)

// Repositories holds all repository implementations
type Repositories struct {
	Run RunRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &Repositories{
		Run: NewPostgresRunRepository(db),
	}, nil
}

// CoefficientRows flattens a coefficient set into one row per (asset, coefficient)
func CoefficientRows(runID uuid.UUID, set models.CoefficientSet) []models.CoefficientRow {
	names := set.Schema.CoefficientNames()
	rows := make([]models.CoefficientRow, 0, len(set.Assets)*len(names))
	for _, c := range set.Assets {
		values := append([]float64{c.Intercept}, c.Betas...)
		for j, name := range names {
			if j >= len(values) {
				break
			}
			rows = append(rows, models.CoefficientRow{
				RunID:        runID,
				Asset:        c.Asset,
				Coefficient:  name,
				Value:        values[j],
				Observations: c.Observations,
			})
		}
	}
	return rows
}

// RankingRows numbers a ranking from 1
func RankingRows(runID uuid.UUID, ranking models.Ranking) []models.RankingRow {
	rows := make([]models.RankingRow, len(ranking))
	for i, e := range ranking {
		rows[i] = models.RankingRow{RunID: runID, Rank: i + 1, Asset: e.Asset, ExpectedReturn: e.Value}
	}
	return rows
}
