package backtest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/yourusername/factorlab/internal/models"
)

// GenerateConsoleReport renders one or more strategy summaries as a table
func GenerateConsoleReport(title string, summaries ...StrategySummary) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)

	header := table.Row{"Metric"}
	for _, s := range summaries {
		header = append(header, s.Strategy)
	}
	t.AppendHeader(header)

	rows := []struct {
		label string
		value func(Metrics) string
	}{
		{"Periods", func(m Metrics) string { return fmt.Sprintf("%d", m.Periods) }},
		{"Total Return", func(m Metrics) string { return pct(m.TotalReturn) }},
		{"Annualized Return", func(m Metrics) string { return pct(m.AnnualizedReturn) }},
		{"Annualized Volatility", func(m Metrics) string { return pct(m.AnnualizedVolatility) }},
		{"Sharpe Ratio", func(m Metrics) string { return fmt.Sprintf("%.2f", m.SharpeRatio) }},
		{"Sortino Ratio", func(m Metrics) string { return fmt.Sprintf("%.2f", m.SortinoRatio) }},
		{"Calmar Ratio", func(m Metrics) string { return fmt.Sprintf("%.2f", m.CalmarRatio) }},
		{"Max Drawdown", func(m Metrics) string { return pct(m.MaxDrawdown) }},
		{"VaR 95", func(m Metrics) string { return pct(m.ValueAtRisk95) }},
	}
	for _, r := range rows {
		row := table.Row{r.label}
		for _, s := range summaries {
			row = append(row, r.value(s.Metrics))
		}
		t.AppendRow(row)
	}

	return t.Render()
}

// GenerateComparisonReport renders the side-by-side table plus the verdict
func GenerateComparisonReport(c Comparison) string {
	out := GenerateConsoleReport("Strategy Comparison", c.Static, c.ML)
	out += fmt.Sprintf("\nWinner: %s (Sharpe spread %.2f)\nRecommendation: %s\n", c.Winner, c.SharpeSpread, c.Recommendation)
	return out
}

// GenerateRankingReport renders the top of a ranking
func GenerateRankingReport(ranking models.Ranking, n int) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Expected Returns")
	t.AppendHeader(table.Row{"#", "Asset", "Expected Return"})
	for i, e := range ranking.Top(n) {
		t.AppendRow(table.Row{i + 1, e.Asset, pct(e.Value)})
	}
	return t.Render()
}

// GenerateCSVExport writes a metric,value summary for spreadsheets
func GenerateCSVExport(result Result, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	m := result.Metrics
	csv := "metric,value\n" +
		fmt.Sprintf("strategy,%s\n", result.Strategy) +
		fmt.Sprintf("periods,%d\n", m.Periods) +
		fmt.Sprintf("total_return,%.6f\n", m.TotalReturn) +
		fmt.Sprintf("annualized_return,%.6f\n", result.AnnualizedReturn) +
		fmt.Sprintf("annualized_volatility,%.6f\n", m.AnnualizedVolatility) +
		fmt.Sprintf("sharpe_ratio,%.6f\n", result.SharpeRatio) +
		fmt.Sprintf("sortino_ratio,%.6f\n", m.SortinoRatio) +
		fmt.Sprintf("max_drawdown,%.6f\n", result.MaxDrawdown) +
		fmt.Sprintf("var_95,%.6f\n", m.ValueAtRisk95) +
		fmt.Sprintf("var_99,%.6f\n", m.ValueAtRisk99)
	return os.WriteFile(outputPath, []byte(csv), 0o644)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
