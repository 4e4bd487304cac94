package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/yourusername/factorlab/internal/backtest"
	"github.com/yourusername/factorlab/internal/models"
)

var (
	runsStrategy string
	runsLimit    int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List persisted pipeline runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if repos == nil {
			return fmt.Errorf("database persistence is disabled")
		}

		runs, err := repos.Run.GetLatest(cmd.Context(), runsStrategy, runsLimit)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderRuns(runs))
		return nil
	},
}

func init() {
	runsCmd.Flags().StringVarP(&runsStrategy, "strategy", "s", backtest.StrategyStatic, "Strategy to list (static or ml)")
	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 10, "Maximum number of runs")
}

func renderRuns(runs []*models.BacktestRun) string {
	if len(runs) == 0 {
		return "no runs found"
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.SetTitle("Pipeline Runs")
	t.AppendHeader(table.Row{"ID", "Run Date", "Period", "Assets", "Ann. Return", "Sharpe", "Max DD", "Final Capital", "Recommendation"})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.ID.String()[:8],
			r.RunDate.Format("2006-01-02 15:04"),
			fmt.Sprintf("%s..%s", r.StartDate.Format(models.DateLayout), r.EndDate.Format(models.DateLayout)),
			len(r.Assets),
			fmt.Sprintf("%.2f%%", r.AnnualizedReturn*100),
			fmt.Sprintf("%.3f", r.SharpeRatio),
			fmt.Sprintf("%.2f%%", r.MaxDrawdown*100),
			fmt.Sprintf("%.2f", r.FinalCapital),
			r.Recommendation,
		})
	}
	return t.Render()
}
