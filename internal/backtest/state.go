package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/yourusername/factorlab/internal/models"
)

// Position is the cash amount allocated to one asset
type Position struct {
	Asset  string          `json:"asset"`
	Weight float64         `json:"weight"`
	Amount decimal.Decimal `json:"amount"`
}

// CapitalPlan splits initial capital across a portfolio in whole cents
type CapitalPlan struct {
	Capital    decimal.Decimal `json:"capital"`
	Positions  []Position      `json:"positions"`
	Residual   decimal.Decimal `json:"residual"`
	FinalValue decimal.Decimal `json:"final_value"`
}

// AllocateCapital rounds each position down to the cent; the remainder is kept as residual cash
func AllocateCapital(portfolio models.Portfolio, capital float64) (CapitalPlan, error) {
	if capital <= 0 {
		return CapitalPlan{}, fmt.Errorf("%w: capital must be positive", models.ErrInvalidInput)
	}
	if err := portfolio.Validate(); err != nil {
		return CapitalPlan{}, err
	}

	total := decimal.NewFromFloat(capital).Round(2)
	plan := CapitalPlan{
		Capital:    total,
		Positions:  make([]Position, 0, len(portfolio)),
		FinalValue: total,
	}
	allocated := decimal.Zero
	for _, a := range portfolio {
		amount := total.Mul(decimal.NewFromFloat(a.Weight)).RoundFloor(2)
		allocated = allocated.Add(amount)
		plan.Positions = append(plan.Positions, Position{Asset: a.Asset, Weight: a.Weight, Amount: amount})
	}
	plan.Residual = total.Sub(allocated)
	return plan, nil
}

// Invested returns the capital allocated to positions
func (p CapitalPlan) Invested() decimal.Decimal {
	return p.Capital.Sub(p.Residual)
}

// MarkToMarket values the invested capital at the given cumulative growth,
// with residual cash held flat
func (p *CapitalPlan) MarkToMarket(growth float64) {
	p.FinalValue = p.Invested().Mul(decimal.NewFromFloat(growth)).Add(p.Residual).Round(2)
}
