package factor

import (
	"fmt"
	"math"

	"github.com/yourusername/factorlab/internal/models"
	"gonum.org/v1/gonum/stat"
)

// EstimatePremiums computes each schema factor's mean periodic return over the
// whole sample and compounds it to an annual premium:
// annual = (1 + mean)^periodsPerYear - 1.
func EstimatePremiums(factors models.Frame, schema models.FactorSchema, periodsPerYear float64) (models.FactorPremiums, error) {
	if periodsPerYear <= 0 {
		return models.FactorPremiums{}, fmt.Errorf("%w: periods per year must be positive", models.ErrInvalidInput)
	}
	if factors.Len() == 0 {
		return models.FactorPremiums{}, fmt.Errorf("%w: no factor observations", models.ErrInsufficientHistory)
	}

	premiums := models.FactorPremiums{
		Schema:         schema,
		Periodic:       make([]float64, len(schema.Factors)),
		Annual:         make([]float64, len(schema.Factors)),
		PeriodsPerYear: periodsPerYear,
	}
	for i, f := range schema.Factors {
		values, err := factors.Column(f)
		if err != nil {
			return models.FactorPremiums{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		mean := stat.Mean(values, nil)
		if math.IsNaN(mean) {
			return models.FactorPremiums{}, fmt.Errorf("%w: factor %s contains NaN", models.ErrInvalidInput, f)
		}
		premiums.Periodic[i] = mean
		premiums.Annual[i] = math.Pow(1+mean, periodsPerYear) - 1
	}
	return premiums, nil
}
