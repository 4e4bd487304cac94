package repository

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/factorlab/internal/models"
)

func TestNewRepositoriesRequiresDB(t *testing.T) {
	_, err := NewRepositories(nil)
	assert.Error(t, err)
}

func TestCoefficientRows(t *testing.T) {
	runID := uuid.New()
	schema, err := models.NewFactorSchema([]string{"Market", "SMB"}, "RF")
	require.NoError(t, err)

	rows := CoefficientRows(runID, models.CoefficientSet{
		Schema: schema,
		Assets: []models.Coefficients{
			{Asset: "AAA", Intercept: 0.001, Betas: []float64{1.2, -0.3}, Observations: 250},
			{Asset: "BBB", Intercept: 0.002, Betas: []float64{0.8, 0.1}, Observations: 250},
		},
	})

	require.Len(t, rows, 6)
	assert.Equal(t, models.CoefficientRow{RunID: runID, Asset: "AAA", Coefficient: models.InterceptName, Value: 0.001, Observations: 250}, rows[0])
	assert.Equal(t, "SMB", rows[2].Coefficient)
	assert.Equal(t, -0.3, rows[2].Value)
	assert.Equal(t, "BBB", rows[3].Asset)
}

func TestRankingRows(t *testing.T) {
	runID := uuid.New()
	rows := RankingRows(runID, models.Ranking{{Asset: "BBB", Value: 0.2}, {Asset: "AAA", Value: 0.1}})

	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, "BBB", rows[0].Asset)
	assert.Equal(t, 2, rows[1].Rank)
	assert.Equal(t, runID, rows[1].RunID)
}
