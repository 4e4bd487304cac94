package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BacktestRun represents a persisted pipeline run summary
type BacktestRun struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	Strategy         string          `db:"strategy" json:"strategy"`
	RunDate          time.Time       `db:"run_date" json:"run_date"`
	StartDate        time.Time       `db:"start_date" json:"start_date"`
	EndDate          time.Time       `db:"end_date" json:"end_date"`
	Assets           []string        `db:"assets" json:"assets"`
	InitialCapital   float64         `db:"initial_capital" json:"initial_capital"`
	FinalCapital     float64         `db:"final_capital" json:"final_capital"`
	AnnualizedReturn float64         `db:"annualized_return" json:"annualized_return"`
	SharpeRatio      float64         `db:"sharpe_ratio" json:"sharpe_ratio"`
	MaxDrawdown      float64         `db:"max_drawdown" json:"max_drawdown"`
	Periods          int             `db:"periods" json:"periods"`
	Recommendation   string          `db:"recommendation" json:"recommendation"`
	FullResults      json.RawMessage `db:"full_results" json:"full_results"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
}

// CoefficientRow is a persisted static fit for one asset
type CoefficientRow struct {
	RunID        uuid.UUID `db:"run_id" json:"run_id"`
	Asset        string    `db:"asset" json:"asset"`
	Coefficient  string    `db:"coefficient" json:"coefficient"`
	Value        float64   `db:"value" json:"value"`
	Observations int       `db:"observations" json:"observations"`
}

// RankingRow is a persisted expected-return entry
type RankingRow struct {
	RunID          uuid.UUID `db:"run_id" json:"run_id"`
	Rank           int       `db:"rank" json:"rank"`
	Asset          string    `db:"asset" json:"asset"`
	ExpectedReturn float64   `db:"expected_return" json:"expected_return"`
}
