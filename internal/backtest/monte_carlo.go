package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"github.com/yourusername/factorlab/internal/models"
	"gonum.org/v1/gonum/stat"
)

// MonteCarloConfig configures the bootstrap of realized period returns
type MonteCarloConfig struct {
	Iterations     int
	Seed           int64
	PeriodsPerYear float64
}

// MonteCarloResult summarizes the bootstrap distribution of annualized returns
type MonteCarloResult struct {
	Iterations          int                `json:"iterations"`
	MeanReturn          float64            `json:"mean_return"`
	StdReturn           float64            `json:"std_return"`
	MeanSharpe          float64            `json:"mean_sharpe"`
	VaR95               float64            `json:"var_95"`
	VaR99               float64            `json:"var_99"`
	ProbabilityOfProfit float64            `json:"probability_of_profit"`
	ConfidenceIntervals map[string]float64 `json:"confidence_intervals"`
	Distribution        []float64          `json:"-"`
}

// RunMonteCarlo resamples the period returns with replacement. Each draw has
// the length of the input and is scored by its annualized return.
func RunMonteCarlo(ctx context.Context, returns []float64, cfg MonteCarloConfig) (MonteCarloResult, error) {
	if len(returns) < 2 {
		return MonteCarloResult{}, fmt.Errorf("%w: bootstrap needs at least 2 returns", models.ErrInsufficientHistory)
	}
	if cfg.PeriodsPerYear <= 0 {
		return MonteCarloResult{}, fmt.Errorf("%w: periods per year must be positive", models.ErrInvalidInput)
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = 1000
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	distribution := make([]float64, cfg.Iterations)
	sharpes := make([]float64, cfg.Iterations)
	sample := make([]float64, len(returns))

	for i := 0; i < cfg.Iterations; i++ {
		if i%100 == 0 {
			if err := ctx.Err(); err != nil {
				return MonteCarloResult{}, err
			}
		}
		for j := range sample {
			sample[j] = returns[rng.Intn(len(returns))]
		}
		distribution[i] = AnnualizedReturn(sample, cfg.PeriodsPerYear)
		sharpes[i] = SharpeRatio(sample, cfg.PeriodsPerYear)
	}

	sorted := append([]float64(nil), distribution...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(distribution, nil)

	profitable := 0
	for _, v := range distribution {
		if v > 0 {
			profitable++
		}
	}

	return MonteCarloResult{
		Iterations:          cfg.Iterations,
		MeanReturn:          mean,
		StdReturn:           std,
		MeanSharpe:          stat.Mean(sharpes, nil),
		VaR95:               stat.Quantile(0.05, stat.Empirical, sorted, nil),
		VaR99:               stat.Quantile(0.01, stat.Empirical, sorted, nil),
		ProbabilityOfProfit: float64(profitable) / float64(cfg.Iterations),
		ConfidenceIntervals: map[string]float64{
			"p05": stat.Quantile(0.05, stat.Empirical, sorted, nil),
			"p50": stat.Quantile(0.50, stat.Empirical, sorted, nil),
			"p95": stat.Quantile(0.95, stat.Empirical, sorted, nil),
		},
		Distribution: distribution,
	}, nil
}
