package backtest

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// Metrics represents backtest performance metrics
type Metrics struct {
	TotalReturn          float64   `json:"total_return"`
	AnnualizedReturn     float64   `json:"annualized_return"`
	AnnualizedVolatility float64   `json:"annualized_volatility"`
	MaxDrawdown          float64   `json:"max_drawdown"`
	SharpeRatio          float64   `json:"sharpe_ratio"`
	SortinoRatio         float64   `json:"sortino_ratio"`
	CalmarRatio          float64   `json:"calmar_ratio"`
	ValueAtRisk95        float64   `json:"var_95"`
	ValueAtRisk99        float64   `json:"var_99"`
	Periods              int       `json:"periods"`
	PeriodsPerYear       float64   `json:"periods_per_year"`
	StartDate            time.Time `json:"start_date"`
	EndDate              time.Time `json:"end_date"`
}

// CalculateMetrics derives the summary statistics of a period return series
func CalculateMetrics(dates []time.Time, returns []float64, periodsPerYear float64, riskFreeRate float64) Metrics {
	metrics := Metrics{
		Periods:        len(returns),
		PeriodsPerYear: periodsPerYear,
	}
	if len(dates) > 0 {
		metrics.StartDate = dates[0]
		metrics.EndDate = dates[len(dates)-1]
	}
	if len(returns) == 0 {
		return metrics
	}

	cumulative := Cumulative(returns)
	metrics.TotalReturn = cumulative[len(cumulative)-1] - 1
	metrics.AnnualizedReturn = AnnualizedReturn(returns, periodsPerYear)
	metrics.AnnualizedVolatility = annualizedVolatility(returns, periodsPerYear)
	metrics.MaxDrawdown = MaxDrawdown(cumulative)
	metrics.SharpeRatio = excessSharpe(returns, riskFreeRate, periodsPerYear)
	metrics.SortinoRatio = SortinoRatio(returns, riskFreeRate, periodsPerYear)
	if metrics.MaxDrawdown < 0 {
		metrics.CalmarRatio = metrics.AnnualizedReturn / math.Abs(metrics.MaxDrawdown)
	}
	metrics.ValueAtRisk95 = ValueAtRisk(returns, 0.95)
	metrics.ValueAtRisk99 = ValueAtRisk(returns, 0.99)

	return metrics
}

// ToJSON exports metrics to JSON
func (m Metrics) ToJSON() string {
	data, _ := json.Marshal(m)
	return string(data)
}

// Cumulative returns the running product of (1 + r)
func Cumulative(returns []float64) []float64 {
	cumulative := make([]float64, len(returns))
	growth := 1.0
	for i, r := range returns {
		growth *= 1 + r
		cumulative[i] = growth
	}
	return cumulative
}

// SharpeRatio is mean/std * sqrt(periodsPerYear) with the sample standard
// deviation. It is exactly 0 when volatility is zero or undefined.
func SharpeRatio(returns []float64, periodsPerYear float64) float64 {
	return excessSharpe(returns, 0, periodsPerYear)
}

func excessSharpe(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(returns) < 2 || isConstant(returns) {
		return 0
	}
	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return (mean - riskFreeRate/periodsPerYear) / std * math.Sqrt(periodsPerYear)
}

// SortinoRatio divides the mean excess return by the downside deviation
func SortinoRatio(returns []float64, riskFreeRate, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	downside := downsideDeviation(returns)
	if downside == 0 {
		return 0
	}
	mean := stat.Mean(returns, nil)
	return (mean - riskFreeRate/periodsPerYear) / downside * math.Sqrt(periodsPerYear)
}

// MaxDrawdown is the minimum of (cum - runningMax)/runningMax over the series.
// It is never positive and is 0 for a series that never draws down.
func MaxDrawdown(cumulative []float64) float64 {
	maxDD := 0.0
	peak := math.Inf(-1)
	for _, v := range cumulative {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (v - peak) / peak; dd < maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// AnnualizedReturn compounds the mean period return: (1 + mean)^periodsPerYear - 1
func AnnualizedReturn(returns []float64, periodsPerYear float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	return math.Pow(1+stat.Mean(returns, nil), periodsPerYear) - 1
}

// ValueAtRisk returns the historical period return at the (1 - level) quantile
func ValueAtRisk(returns []float64, level float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	return stat.Quantile(1-level, stat.Empirical, sorted, nil)
}

func annualizedVolatility(returns []float64, periodsPerYear float64) float64 {
	if len(returns) < 2 || isConstant(returns) {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(periodsPerYear)
}

// downsideDeviation is the root mean square of the negative returns
func downsideDeviation(returns []float64) float64 {
	sum := 0.0
	count := 0
	for _, r := range returns {
		if r < 0 {
			sum += r * r
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return math.Sqrt(sum / float64(count))
}

func isConstant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
