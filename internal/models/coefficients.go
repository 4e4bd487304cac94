package models

import (
	"fmt"
	"time"
)

// Coefficients is one asset's fitted factor model
type Coefficients struct {
	Asset        string    `json:"asset"`
	Intercept    float64   `json:"intercept"`
	Betas        []float64 `json:"betas"`
	Observations int       `json:"observations"`
}

// Beta returns the loading on factor, looked up through schema
func (c Coefficients) Beta(schema FactorSchema, factor string) (float64, error) {
	for i, f := range schema.Factors {
		if f == factor {
			if i >= len(c.Betas) {
				break
			}
			return c.Betas[i], nil
		}
	}
	return 0, fmt.Errorf("factor %q not in coefficients for %s", factor, c.Asset)
}

// CoefficientSet holds static fits for a list of assets in input order
type CoefficientSet struct {
	Schema FactorSchema   `json:"schema"`
	Assets []Coefficients `json:"assets"`
}

// Get returns the coefficients for asset
func (s CoefficientSet) Get(asset string) (Coefficients, bool) {
	for _, c := range s.Assets {
		if c.Asset == asset {
			return c, true
		}
	}
	return Coefficients{}, false
}

// RollingPoint is a fit over the window ending just before Date
type RollingPoint struct {
	Date      time.Time `json:"date"`
	Intercept float64   `json:"intercept"`
	Betas     []float64 `json:"betas"`
}

// RollingCoefficients is the coefficient time series of one asset
type RollingCoefficients struct {
	Asset  string         `json:"asset"`
	Window int            `json:"window"`
	Schema FactorSchema   `json:"schema"`
	Points []RollingPoint `json:"points"`
}

// At returns the point indexed by date
func (r RollingCoefficients) At(date time.Time) (RollingPoint, bool) {
	date = NormalizeDate(date)
	for _, p := range r.Points {
		if p.Date.Equal(date) {
			return p, true
		}
	}
	return RollingPoint{}, false
}

// FactorPremiums holds per-factor mean periodic and annualized returns in schema order
type FactorPremiums struct {
	Schema         FactorSchema `json:"schema"`
	Periodic       []float64    `json:"periodic"`
	Annual         []float64    `json:"annual"`
	PeriodsPerYear float64      `json:"periods_per_year"`
}

// Premium returns the annualized premium for factor
func (p FactorPremiums) Premium(factor string) (float64, bool) {
	for i, f := range p.Schema.Factors {
		if f == factor {
			return p.Annual[i], true
		}
	}
	return 0, false
}

// ExpectedReturn is one asset's synthesized forecast
type ExpectedReturn struct {
	Asset string  `json:"asset"`
	Value float64 `json:"expected_return"`
}

// Ranking lists expected returns in descending order
type Ranking []ExpectedReturn

// Top returns the first n entries, or all of them when n exceeds the length
func (r Ranking) Top(n int) Ranking {
	if n < 0 {
		n = 0
	}
	if n > len(r) {
		n = len(r)
	}
	return append(Ranking(nil), r[:n]...)
}

// Assets returns the asset identifiers in ranking order
func (r Ranking) Assets() []string {
	assets := make([]string, len(r))
	for i, e := range r {
		assets[i] = e.Asset
	}
	return assets
}

// Allocation is one asset's portfolio weight
type Allocation struct {
	Asset  string  `json:"asset"`
	Weight float64 `json:"weight"`
}

// Portfolio is a fixed, ordered set of long-only weights
type Portfolio []Allocation

// EqualWeight builds a portfolio giving every asset 1/n
func EqualWeight(assets []string) (Portfolio, error) {
	if len(assets) == 0 {
		return nil, fmt.Errorf("%w: portfolio needs at least one asset", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(assets))
	w := 1.0 / float64(len(assets))
	p := make(Portfolio, 0, len(assets))
	for _, a := range assets {
		if seen[a] {
			return nil, fmt.Errorf("%w: duplicate asset %s", ErrInvalidInput, a)
		}
		seen[a] = true
		p = append(p, Allocation{Asset: a, Weight: w})
	}
	return p, nil
}

// Assets returns the portfolio's asset identifiers in order
func (p Portfolio) Assets() []string {
	assets := make([]string, len(p))
	for i, a := range p {
		assets[i] = a.Asset
	}
	return assets
}

// TotalWeight sums the weights
func (p Portfolio) TotalWeight() float64 {
	total := 0.0
	for _, a := range p {
		total += a.Weight
	}
	return total
}

// Validate checks weights are non-negative and assets unique
func (p Portfolio) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("%w: empty portfolio", ErrInvalidInput)
	}
	seen := make(map[string]bool, len(p))
	for _, a := range p {
		if a.Weight < 0 {
			return fmt.Errorf("%w: negative weight %.6f for %s", ErrInvalidInput, a.Weight, a.Asset)
		}
		if seen[a.Asset] {
			return fmt.Errorf("%w: duplicate asset %s", ErrInvalidInput, a.Asset)
		}
		seen[a.Asset] = true
	}
	return nil
}
