// Package ml implements the rolling random-forest stock selection strategy.
package ml

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/yourusername/factorlab/internal/models"
)

// MomentumFeature is the asset's own return over the feature month
const MomentumFeature = "Momentum_1M"

// FeatureNames returns the model inputs in column order: the schema factors then momentum
func FeatureNames(schema models.FactorSchema) []string {
	names := append([]string(nil), schema.Factors...)
	return append(names, MomentumFeature)
}

// Row is one (month, asset) observation. Label is the next month's excess return.
type Row struct {
	Date     time.Time `json:"date"`
	Asset    string    `json:"asset"`
	Features []float64 `json:"features"`
	Label    float64   `json:"label"`
}

// Dataset is the long-form feature table, sorted by date then asset input order
type Dataset struct {
	Features []string
	Rows     []Row
}

// Months returns the distinct row dates in ascending order
func (d Dataset) Months() []time.Time {
	var months []time.Time
	for _, r := range d.Rows {
		if len(months) == 0 || !months[len(months)-1].Equal(r.Date) {
			months = append(months, r.Date)
		}
	}
	return months
}

// Until returns the rows dated on or before cutoff
func (d Dataset) Until(cutoff time.Time) []Row {
	n := sort.Search(len(d.Rows), func(i int) bool { return d.Rows[i].Date.After(cutoff) })
	return d.Rows[:n]
}

// At returns the rows dated exactly date
func (d Dataset) At(date time.Time) []Row {
	lo := sort.Search(len(d.Rows), func(i int) bool { return !d.Rows[i].Date.Before(date) })
	hi := lo
	for hi < len(d.Rows) && d.Rows[hi].Date.Equal(date) {
		hi++
	}
	return d.Rows[lo:hi]
}

// BuildDataset turns a month-end panel of asset returns, factor returns and the
// risk-free rate into feature rows. The last month has no label and is dropped,
// as is any row with a non-finite feature or label.
func BuildDataset(monthly models.Frame, assets []string, schema models.FactorSchema) (Dataset, error) {
	if schema.RiskFree == "" {
		return Dataset{}, fmt.Errorf("%w: schema has no risk-free column for labels", models.ErrInvalidInput)
	}
	if len(assets) == 0 {
		return Dataset{}, fmt.Errorf("%w: no assets", models.ErrInvalidInput)
	}

	factors := make([][]float64, len(schema.Factors))
	for j, f := range schema.Factors {
		col, err := monthly.Column(f)
		if err != nil {
			return Dataset{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		factors[j] = col
	}
	rf, err := monthly.Column(schema.RiskFree)
	if err != nil {
		return Dataset{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	returns := make([][]float64, len(assets))
	for k, a := range assets {
		col, err := monthly.Column(a)
		if err != nil {
			return Dataset{}, &models.AssetError{Asset: a, Err: fmt.Errorf("%w: %v", models.ErrInvalidInput, err)}
		}
		returns[k] = col
	}

	ds := Dataset{Features: FeatureNames(schema)}
	for i := 0; i+1 < monthly.Len(); i++ {
		for k, a := range assets {
			features := make([]float64, 0, len(ds.Features))
			for j := range factors {
				features = append(features, factors[j][i])
			}
			features = append(features, returns[k][i])

			label := returns[k][i+1] - rf[i+1]
			if !finite(label) || !allFinite(features) {
				continue
			}
			ds.Rows = append(ds.Rows, Row{Date: monthly.Date(i), Asset: a, Features: features, Label: label})
		}
	}
	return ds, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if !finite(v) {
			return false
		}
	}
	return true
}
