package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	BacktestRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backtest_runs_total",
		Help:      "Total number of backtest runs by strategy and status",
	}, []string{"strategy", "status"})
)

// Backtest gauge vectors
var (
	StrategySharpeRatio = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "strategy_sharpe_ratio",
		Help:      "Sharpe ratio of the latest backtest per strategy",
	}, []string{"strategy"})
	StrategyAnnualizedReturn = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "strategy_annualized_return",
		Help:      "Annualized return of the latest backtest per strategy",
	}, []string{"strategy"})
	StrategyMaxDrawdown = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "strategy_max_drawdown",
		Help:      "Maximum drawdown of the latest backtest per strategy",
	}, []string{"strategy"})
)

// RecordBacktestRun records a backtest run event.
// strategy is "static" or "ml"; status is "success" or "failure".
func RecordBacktestRun(strategy, status string) {
	BacktestRunsTotal.WithLabelValues(strategy, status).Inc()
}

// UpdateStrategyPerformance updates the headline metrics gauges for a strategy.
func UpdateStrategyPerformance(strategy string, sharpe, annualizedReturn, maxDrawdown float64) {
	StrategySharpeRatio.WithLabelValues(strategy).Set(sharpe)
	StrategyAnnualizedReturn.WithLabelValues(strategy).Set(annualizedReturn)
	StrategyMaxDrawdown.WithLabelValues(strategy).Set(maxDrawdown)
}
