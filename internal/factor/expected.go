package factor

import (
	"fmt"
	"sort"

	"github.com/yourusername/factorlab/internal/models"
)

// ExpectedReturn combines a fit with annual factor premiums:
// intercept + sum(beta_f * premium_f).
func ExpectedReturn(c models.Coefficients, premiums models.FactorPremiums) (float64, error) {
	if len(c.Betas) != len(premiums.Annual) {
		return 0, fmt.Errorf("%w: %s has %d betas for %d premiums", models.ErrInvalidInput, c.Asset, len(c.Betas), len(premiums.Annual))
	}
	expected := c.Intercept
	for i, beta := range c.Betas {
		expected += beta * premiums.Annual[i]
	}
	return expected, nil
}

// RankExpectedReturns forecasts every asset in the set and sorts them by
// descending forecast. Ties keep the set's asset order.
func RankExpectedReturns(set models.CoefficientSet, premiums models.FactorPremiums) (models.Ranking, error) {
	if !set.Schema.Equal(premiums.Schema) {
		return nil, fmt.Errorf("%w: coefficient factors %v do not match premium factors %v",
			models.ErrInvalidInput, set.Schema.Factors, premiums.Schema.Factors)
	}

	ranking := make(models.Ranking, 0, len(set.Assets))
	for _, c := range set.Assets {
		value, err := ExpectedReturn(c, premiums)
		if err != nil {
			return nil, err
		}
		ranking = append(ranking, models.ExpectedReturn{Asset: c.Asset, Value: value})
	}

	sort.SliceStable(ranking, func(i, j int) bool {
		return ranking[i].Value > ranking[j].Value
	})
	return ranking, nil
}
