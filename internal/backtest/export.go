package backtest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/yourusername/factorlab/internal/models"
)

// Artifact file names
const (
	ArtifactMergedDataset  = "merged_dataset.csv"
	ArtifactFactorBetas    = "factor_betas.csv"
	ArtifactRollingBetas   = "rolling_betas.csv"
	ArtifactExpected       = "expected_returns.csv"
	ArtifactSummary        = "backtest_summary.csv"
	ArtifactCumulative     = "cumulative_portfolio.csv"
	ArtifactMLReturns      = "ml_strategy_returns.csv"
	ArtifactComparison     = "comparison.json"
	ArtifactFeatureWeights = "ml_feature_importances.csv"
)

// WriteFrameCSV writes a date-indexed frame with a leading "date" column
func WriteFrameCSV(frame models.Frame, path string) error {
	dates := make([]string, frame.Len())
	for i, d := range frame.Dates() {
		dates[i] = d.Format(models.DateLayout)
	}
	cols := []series.Series{series.New(dates, series.String, "date")}
	for _, name := range frame.Columns() {
		values, err := frame.Column(name)
		if err != nil {
			return err
		}
		cols = append(cols, floatSeries(values, name))
	}
	return writeDataFrame(dataframe.New(cols...), path)
}

// WriteCoefficientsCSV writes one row per asset: asset, const, then betas in schema order
func WriteCoefficientsCSV(set models.CoefficientSet, path string) error {
	names := set.Schema.CoefficientNames()
	assets := make([]string, len(set.Assets))
	columns := make([][]float64, len(names))
	for j := range columns {
		columns[j] = make([]float64, len(set.Assets))
	}
	obs := make([]int, len(set.Assets))
	for i, c := range set.Assets {
		assets[i] = c.Asset
		columns[0][i] = c.Intercept
		for j, b := range c.Betas {
			columns[j+1][i] = b
		}
		obs[i] = c.Observations
	}

	cols := []series.Series{series.New(assets, series.String, "asset")}
	for j, name := range names {
		cols = append(cols, floatSeries(columns[j], name))
	}
	cols = append(cols, series.New(obs, series.Int, "observations"))
	return writeDataFrame(dataframe.New(cols...), path)
}

// WriteRollingCSV writes rolling fits in long form: date, asset, const, betas
func WriteRollingCSV(rolling []models.RollingCoefficients, schema models.FactorSchema, path string) error {
	names := schema.CoefficientNames()
	var dates, assets []string
	columns := make([][]float64, len(names))
	for _, rc := range rolling {
		for _, p := range rc.Points {
			dates = append(dates, p.Date.Format(models.DateLayout))
			assets = append(assets, rc.Asset)
			columns[0] = append(columns[0], p.Intercept)
			for j, b := range p.Betas {
				columns[j+1] = append(columns[j+1], b)
			}
		}
	}

	cols := []series.Series{
		series.New(dates, series.String, "date"),
		series.New(assets, series.String, "asset"),
	}
	for j, name := range names {
		cols = append(cols, floatSeries(columns[j], name))
	}
	return writeDataFrame(dataframe.New(cols...), path)
}

// WriteRankingCSV writes rank, asset and expected return
func WriteRankingCSV(ranking models.Ranking, path string) error {
	ranks := make([]int, len(ranking))
	values := make([]float64, len(ranking))
	for i, e := range ranking {
		ranks[i] = i + 1
		values[i] = e.Value
	}
	return writeDataFrame(dataframe.New(
		series.New(ranks, series.Int, "rank"),
		series.New(ranking.Assets(), series.String, "asset"),
		floatSeries(values, "expected_return"),
	), path)
}

// WriteEquityCurveCSV writes date, return, cumulative and drawdown
func WriteEquityCurveCSV(curve EquityCurve, path string) error {
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(curve.ToCSV()), 0o644)
}

// WriteFeatureImportancesCSV writes feature, importance pairs in the given order
func WriteFeatureImportancesCSV(features []string, importances []float64, path string) error {
	if len(features) != len(importances) {
		return fmt.Errorf("%w: %d features for %d importances", models.ErrInvalidInput, len(features), len(importances))
	}
	return writeDataFrame(dataframe.New(
		series.New(features, series.String, "feature"),
		floatSeries(importances, "importance"),
	), path)
}

// WriteComparisonJSON writes the strategy comparison document
func WriteComparisonJSON(c Comparison, path string) error {
	data, err := c.ToJSON()
	if err != nil {
		return err
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// floatSeries stores pre-formatted values so precision does not depend on the series formatter
func floatSeries(values []float64, name string) series.Series {
	formatted := make([]string, len(values))
	for i, v := range values {
		formatted[i] = formatFloat(v)
	}
	return series.New(formatted, series.String, name)
}

func writeDataFrame(df dataframe.DataFrame, path string) error {
	if df.Err != nil {
		return fmt.Errorf("failed to build %s: %w", filepath.Base(path), df.Err)
	}
	if err := ensureDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := df.WriteCSV(f, dataframe.WriteHeader(true)); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
