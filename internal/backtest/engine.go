package backtest

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/models"
)

// Strategy labels
const (
	StrategyStatic = "static"
	StrategyML     = "ml"
)

// Result is a backtest outcome, fully derived from weights and asset returns
type Result struct {
	Strategy         string           `json:"strategy"`
	Portfolio        models.Portfolio `json:"portfolio,omitempty"`
	Dates            []time.Time      `json:"dates"`
	Returns          []float64        `json:"returns"`
	Cumulative       []float64        `json:"cumulative"`
	SharpeRatio      float64          `json:"sharpe_ratio"`
	MaxDrawdown      float64          `json:"max_drawdown"`
	AnnualizedReturn float64          `json:"annualized_return"`
	Metrics          Metrics          `json:"metrics"`
}

// Curve returns the result as an equity curve
func (r Result) Curve() EquityCurve {
	return NewEquityCurve(r.Dates, r.Returns)
}

// Run computes the weighted period return of a fixed portfolio over the
// return frame, its cumulative growth and its summary statistics.
func Run(portfolio models.Portfolio, returns models.Frame, periodsPerYear float64) (Result, error) {
	if err := portfolio.Validate(); err != nil {
		return Result{}, err
	}
	if returns.Len() == 0 {
		return Result{}, fmt.Errorf("%w: empty return matrix", models.ErrInsufficientHistory)
	}

	columns := make([][]float64, len(portfolio))
	for j, a := range portfolio {
		col, err := returns.Column(a.Asset)
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		columns[j] = col
	}

	period := make([]float64, returns.Len())
	for i := range period {
		sum := 0.0
		for j, a := range portfolio {
			v := columns[j][i]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return Result{}, fmt.Errorf("%w: non-finite return for %s on %s", models.ErrInvalidInput,
					a.Asset, returns.Date(i).Format(models.DateLayout))
			}
			sum += a.Weight * v
		}
		period[i] = sum
	}

	result, err := RunSeries(StrategyStatic, returns.Dates(), period, periodsPerYear, 0)
	if err != nil {
		return Result{}, err
	}
	result.Portfolio = append(models.Portfolio(nil), portfolio...)
	return result, nil
}

// RunSeries scores an already realized period return series
func RunSeries(strategy string, dates []time.Time, returns []float64, periodsPerYear, riskFreeRate float64) (Result, error) {
	if periodsPerYear <= 0 {
		return Result{}, fmt.Errorf("%w: periods per year must be positive", models.ErrInvalidInput)
	}
	if len(dates) != len(returns) {
		return Result{}, fmt.Errorf("%w: %d dates for %d returns", models.ErrInvalidInput, len(dates), len(returns))
	}
	if len(returns) == 0 {
		return Result{}, fmt.Errorf("%w: empty return series", models.ErrInsufficientHistory)
	}

	metrics := CalculateMetrics(dates, returns, periodsPerYear, riskFreeRate)
	return Result{
		Strategy:         strategy,
		Dates:            append([]time.Time(nil), dates...),
		Returns:          append([]float64(nil), returns...),
		Cumulative:       Cumulative(returns),
		SharpeRatio:      SharpeRatio(returns, periodsPerYear),
		MaxDrawdown:      metrics.MaxDrawdown,
		AnnualizedReturn: metrics.AnnualizedReturn,
		Metrics:          metrics,
	}, nil
}

// BuildPortfolio equal-weights the top n names of a ranking
func BuildPortfolio(ranking models.Ranking, n int) (models.Portfolio, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: portfolio size must be positive", models.ErrInvalidInput)
	}
	return models.EqualWeight(ranking.Top(n).Assets())
}

// Engine runs the static factor-portfolio backtest
type Engine struct {
	config BacktestConfig
	logger *logrus.Logger
}

// NewEngine creates a new backtesting engine
func NewEngine(cfg BacktestConfig, logger *logrus.Logger) (*Engine, error) {
	if cfg.TopN <= 0 {
		return nil, fmt.Errorf("top n must be positive")
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{config: cfg, logger: logger}, nil
}

// Config returns the backtest configuration
func (e *Engine) Config() BacktestConfig {
	return e.config
}

// RunStatic builds the top-N equal-weight portfolio from a ranking, backtests
// it over the return frame and splits the configured capital across it
func (e *Engine) RunStatic(ranking models.Ranking, returns models.Frame, periodsPerYear float64) (Result, CapitalPlan, error) {
	portfolio, err := BuildPortfolio(ranking, e.config.TopN)
	if err != nil {
		return Result{}, CapitalPlan{}, err
	}

	result, err := Run(portfolio, returns, periodsPerYear)
	if err != nil {
		return Result{}, CapitalPlan{}, err
	}
	result.Metrics = CalculateMetrics(result.Dates, result.Returns, periodsPerYear, e.config.RiskFreeRate)

	plan, err := AllocateCapital(portfolio, e.config.InitialCapital)
	if err != nil {
		return Result{}, CapitalPlan{}, err
	}
	plan.MarkToMarket(result.Curve().Final())

	e.logger.WithFields(logrus.Fields{
		"assets":            len(portfolio),
		"periods":           len(result.Returns),
		"annualized_return": result.AnnualizedReturn,
		"sharpe_ratio":      result.SharpeRatio,
		"max_drawdown":      result.MaxDrawdown,
		"final_capital":     plan.FinalValue.StringFixed(2),
	}).Debug("Static backtest complete")

	return result, plan, nil
}
