package main

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/yourusername/factorlab/internal/models"
)

func TestRenderRuns(t *testing.T) {
	assert.Equal(t, "no runs found", renderRuns(nil))

	out := renderRuns([]*models.BacktestRun{{
		ID:               uuid.MustParse("0b0e6f2a-1111-4222-8333-944455556666"),
		Strategy:         "static",
		RunDate:          time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC),
		StartDate:        time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC),
		EndDate:          time.Date(2023, 12, 29, 0, 0, 0, 0, time.UTC),
		Assets:           []string{"AAPL", "MSFT"},
		AnnualizedReturn: 0.1234,
		SharpeRatio:      1.05,
		MaxDrawdown:      -0.2,
		FinalCapital:     145000.5,
		Recommendation:   "PREFER_STATIC",
	}})

	assert.Contains(t, out, "0b0e6f2a")
	assert.Contains(t, out, "2020-01-02..2023-12-29")
	assert.Contains(t, out, "12.34%")
	assert.Contains(t, out, "-20.00%")
	assert.Contains(t, out, "145000.50")
	assert.Contains(t, out, "PREFER_STATIC")
}
