package backtest

import (
	"encoding/json"
	"math"
)

// Recommendation labels
const (
	RecommendStatic       = "PREFER_STATIC"
	RecommendML           = "PREFER_ML"
	RecommendInconclusive = "INCONCLUSIVE"
)

// sharpeTolerance is the Sharpe gap below which neither strategy is preferred
const sharpeTolerance = 0.05

// StrategySummary is the comparable slice of one strategy's outcome
type StrategySummary struct {
	Strategy  string            `json:"strategy"`
	Metrics   Metrics           `json:"metrics"`
	Bootstrap *MonteCarloResult `json:"bootstrap,omitempty"`
	Score     float64           `json:"score"`
}

// Comparison sets the static and ML strategies side by side
type Comparison struct {
	Static         StrategySummary    `json:"static"`
	ML             StrategySummary    `json:"ml"`
	Winner         string             `json:"winner"`
	SharpeSpread   float64            `json:"sharpe_spread"`
	Recommendation string             `json:"recommendation"`
	Features       map[string]float64 `json:"features"`
}

// Summarize scores a result for comparison
func Summarize(result Result, bootstrap *MonteCarloResult) StrategySummary {
	return StrategySummary{
		Strategy:  result.Strategy,
		Metrics:   result.Metrics,
		Bootstrap: bootstrap,
		Score:     CalculateCompositeScore(result.Metrics),
	}
}

// Compare picks the winner by Sharpe ratio. Ties go to the static strategy.
func Compare(static, ml StrategySummary) Comparison {
	spread := ml.Metrics.SharpeRatio - static.Metrics.SharpeRatio
	winner := StrategyStatic
	if spread > 0 {
		winner = StrategyML
	}
	return Comparison{
		Static:         static,
		ML:             ml,
		Winner:         winner,
		SharpeSpread:   spread,
		Recommendation: GenerateRecommendation(spread, static.Metrics, ml.Metrics),
		Features:       extractFeatures(static.Metrics, ml.Metrics),
	}
}

// CalculateCompositeScore blends risk-adjusted return, growth and drawdown into [0, 1]
func CalculateCompositeScore(metrics Metrics) float64 {
	sharpeScore := normalize(metrics.SharpeRatio, -2, 3)
	returnScore := normalize(metrics.AnnualizedReturn, -0.5, 1.0)
	drawdownScore := 1.0 - normalize(-metrics.MaxDrawdown, 0, 0.5)
	sortinoScore := normalize(metrics.SortinoRatio, -2, 4)

	weighted := 0.0
	weighted += sharpeScore * 0.40
	weighted += returnScore * 0.25
	weighted += drawdownScore * 0.20
	weighted += sortinoScore * 0.15
	return weighted
}

// GenerateRecommendation labels the comparison
func GenerateRecommendation(sharpeSpread float64, static, ml Metrics) string {
	if math.Abs(sharpeSpread) < sharpeTolerance {
		return RecommendInconclusive
	}
	if sharpeSpread > 0 && ml.AnnualizedReturn > 0 {
		return RecommendML
	}
	if sharpeSpread < 0 && static.AnnualizedReturn > 0 {
		return RecommendStatic
	}
	return RecommendInconclusive
}

// ToJSON renders the comparison as indented JSON
func (c Comparison) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func extractFeatures(static, ml Metrics) map[string]float64 {
	return map[string]float64{
		"static_sharpe_ratio":      static.SharpeRatio,
		"static_annualized_return": static.AnnualizedReturn,
		"static_max_drawdown":      static.MaxDrawdown,
		"ml_sharpe_ratio":          ml.SharpeRatio,
		"ml_annualized_return":     ml.AnnualizedReturn,
		"ml_max_drawdown":          ml.MaxDrawdown,
	}
}

func normalize(value, min, max float64) float64 {
	if max-min == 0 {
		return 0
	}
	v := (value - min) / (max - min)
	return math.Max(0, math.Min(1, v))
}
