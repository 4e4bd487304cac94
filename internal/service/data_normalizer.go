package service

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/models"
)

// Factor table units
const (
	UnitsPercent  = "percent"
	UnitsFraction = "fraction"
)

// FamaFrenchColumns maps the published Fama-French headers to schema names
var FamaFrenchColumns = map[string]string{
	"Mkt-RF": models.FactorMarket,
	"Mkt_RF": models.FactorMarket,
	"MKT_RF": models.FactorMarket,
	"mkt_rf": models.FactorMarket,
}

// ToFractional rescales percent values to fractions. With no columns every column is rescaled.
func ToFractional(frame models.Frame, columns ...string) (models.Frame, error) {
	return frame.Map(func(v float64) float64 { return v / 100 }, columns...)
}

// RenameColumns renames columns by mapping, ignoring entries for absent columns
func RenameColumns(frame models.Frame, mapping map[string]string) (models.Frame, error) {
	present := make(map[string]string, len(mapping))
	for from, to := range mapping {
		if frame.HasColumn(from) {
			present[from] = to
		}
	}
	return frame.Rename(present)
}

// PricesToReturns converts prices to simple period returns p_t/p_{t-1} - 1.
// The first row is dropped, as is any row where a price or its predecessor is missing.
func PricesToReturns(prices models.Frame) (models.Frame, error) {
	n := prices.Len()
	if n < 2 {
		return models.Frame{}, fmt.Errorf("%w: %d price rows, need at least 2", models.ErrInsufficientHistory, n)
	}

	columns := prices.Columns()
	values := make(map[string][]float64, len(columns))
	for _, col := range columns {
		p, _ := prices.Column(col)
		r := make([]float64, n-1)
		for i := 1; i < n; i++ {
			prev, cur := p[i-1], p[i]
			if math.IsNaN(prev) || math.IsNaN(cur) || prev <= 0 {
				r[i-1] = math.NaN()
				continue
			}
			r[i-1] = cur/prev - 1
		}
		values[col] = r
	}

	returns, err := models.NewFrame(prices.Dates()[1:], columns, values)
	if err != nil {
		return models.Frame{}, err
	}
	return returns.DropNaN(), nil
}

// monthEnd returns the last calendar day of t's month
func monthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC)
}

// ResampleMonthly compounds period returns within each calendar month:
// prod(1 + r) - 1, indexed by the calendar month end.
func ResampleMonthly(returns models.Frame) (models.Frame, error) {
	if returns.Len() == 0 {
		return models.Frame{}, fmt.Errorf("%w: no rows to resample", models.ErrInsufficientHistory)
	}

	columns := returns.Columns()
	growth := make(map[string][]float64, len(columns))
	var dates []time.Time
	for i := 0; i < returns.Len(); i++ {
		end := monthEnd(returns.Date(i))
		if len(dates) == 0 || !dates[len(dates)-1].Equal(end) {
			dates = append(dates, end)
			for _, col := range columns {
				growth[col] = append(growth[col], 1)
			}
		}
		last := len(dates) - 1
		for _, col := range columns {
			growth[col][last] *= 1 + returns.Value(col, i)
		}
	}

	for _, col := range columns {
		for i := range growth[col] {
			growth[col][i]--
		}
	}
	return models.NewFrame(dates, columns, growth)
}

// ExcessReturns subtracts the risk-free column from each asset column.
// Columns other than the assets are carried unchanged.
func ExcessReturns(panel models.Frame, assets []string, riskFree string) (models.Frame, error) {
	rf, err := panel.Column(riskFree)
	if err != nil {
		return models.Frame{}, fmt.Errorf("%w: risk-free column: %v", models.ErrInvalidInput, err)
	}

	targets := make(map[string]bool, len(assets))
	for _, a := range assets {
		if !panel.HasColumn(a) {
			return models.Frame{}, fmt.Errorf("%w: asset column %q not found", models.ErrInvalidInput, a)
		}
		targets[a] = true
	}

	columns := panel.Columns()
	values := make(map[string][]float64, len(columns))
	for _, col := range columns {
		v, _ := panel.Column(col)
		if targets[col] {
			for i := range v {
				v[i] -= rf[i]
			}
		}
		values[col] = v
	}
	return models.NewFrame(panel.Dates(), columns, values)
}

// DataNormalizer prepares raw source frames for alignment
type DataNormalizer struct {
	schema models.FactorSchema
	units  string
	logger *logrus.Logger
}

// NewDataNormalizer creates a new data normalizer
func NewDataNormalizer(schema models.FactorSchema, units string, logger *logrus.Logger) *DataNormalizer {
	if units == "" {
		units = UnitsPercent
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &DataNormalizer{schema: schema, units: units, logger: logger}
}

// NormalizeFactors renames the Fama-French headers, rescales percent values and
// keeps the schema columns only
func (n *DataNormalizer) NormalizeFactors(raw models.Frame) (models.Frame, error) {
	factors, err := RenameColumns(raw, FamaFrenchColumns)
	if err != nil {
		return models.Frame{}, fmt.Errorf("failed to rename factor columns: %w", err)
	}

	factors, err = factors.Select(n.schema.Columns()...)
	if err != nil {
		return models.Frame{}, fmt.Errorf("%w: factor table: %v", models.ErrInvalidInput, err)
	}

	switch n.units {
	case UnitsPercent:
		factors, err = ToFractional(factors)
		if err != nil {
			return models.Frame{}, err
		}
	case UnitsFraction:
	default:
		return models.Frame{}, fmt.Errorf("%w: unknown factor units %q", models.ErrInvalidInput, n.units)
	}

	dropped := factors.Len()
	factors = factors.DropNaN()
	dropped -= factors.Len()

	n.logger.WithFields(logrus.Fields{
		"rows":    factors.Len(),
		"dropped": dropped,
		"columns": factors.Columns(),
		"units":   n.units,
	}).Debug("Factor table normalized")

	return factors, nil
}

// NormalizePrices converts adjusted prices to returns restricted to assets
func (n *DataNormalizer) NormalizePrices(prices models.Frame, assets []string) (models.Frame, error) {
	selected, err := prices.Select(assets...)
	if err != nil {
		return models.Frame{}, fmt.Errorf("%w: price table: %v", models.ErrInvalidInput, err)
	}
	returns, err := PricesToReturns(selected)
	if err != nil {
		return models.Frame{}, err
	}

	n.logger.WithFields(logrus.Fields{
		"assets":     len(assets),
		"price_rows": prices.Len(),
		"returns":    returns.Len(),
	}).Debug("Prices converted to returns")

	return returns, nil
}
