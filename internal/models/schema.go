package models

import "fmt"

// Factor column names used throughout the pipeline
const (
	FactorMarket   = "Market"
	FactorSMB      = "SMB"
	FactorHML      = "HML"
	FactorRMW      = "RMW"
	FactorCMA      = "CMA"
	FactorRiskFree = "RF"

	// InterceptName labels the regression constant in coefficient tables
	InterceptName = "const"
)

// FactorSchema is the ordered factor list threaded through regression,
// premium estimation and synthesis. RiskFree is optional.
type FactorSchema struct {
	Factors  []string `json:"factors"`
	RiskFree string   `json:"risk_free,omitempty"`
}

// DefaultSchema returns the five-factor schema with the RF risk-free column
func DefaultSchema() FactorSchema {
	return FactorSchema{
		Factors:  []string{FactorMarket, FactorSMB, FactorHML, FactorRMW, FactorCMA},
		RiskFree: FactorRiskFree,
	}
}

// NewFactorSchema builds a schema, rejecting empty or duplicated factor names
func NewFactorSchema(factors []string, riskFree string) (FactorSchema, error) {
	if len(factors) == 0 {
		return FactorSchema{}, fmt.Errorf("at least one factor is required")
	}
	seen := make(map[string]bool, len(factors))
	for _, f := range factors {
		if f == "" {
			return FactorSchema{}, fmt.Errorf("factor name cannot be empty")
		}
		if f == InterceptName || f == riskFree {
			return FactorSchema{}, fmt.Errorf("factor name %q is reserved", f)
		}
		if seen[f] {
			return FactorSchema{}, fmt.Errorf("duplicate factor %q", f)
		}
		seen[f] = true
	}
	return FactorSchema{Factors: append([]string(nil), factors...), RiskFree: riskFree}, nil
}

// NumCoefficients is the number of estimated parameters: intercept plus one per factor
func (s FactorSchema) NumCoefficients() int {
	return len(s.Factors) + 1
}

// CoefficientNames returns the coefficient labels in table order
func (s FactorSchema) CoefficientNames() []string {
	names := make([]string, 0, s.NumCoefficients())
	names = append(names, InterceptName)
	return append(names, s.Factors...)
}

// Columns returns the factor columns plus the risk-free column when set
func (s FactorSchema) Columns() []string {
	cols := append([]string(nil), s.Factors...)
	if s.RiskFree != "" {
		cols = append(cols, s.RiskFree)
	}
	return cols
}

// Equal reports whether two schemas list the same factors in the same order
func (s FactorSchema) Equal(other FactorSchema) bool {
	if len(s.Factors) != len(other.Factors) {
		return false
	}
	for i := range s.Factors {
		if s.Factors[i] != other.Factors[i] {
			return false
		}
	}
	return true
}
