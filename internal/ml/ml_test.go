package ml

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/factorlab/internal/models"
)

func monthEnds(n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = time.Date(2020, time.Month(2+i), 0, 0, 0, 0, 0, time.UTC)
	}
	return dates
}

func syntheticDataset(months int, assets []string, seed int64) Dataset {
	rng := rand.New(rand.NewSource(seed))
	ds := Dataset{Features: FeatureNames(models.DefaultSchema())}
	for _, d := range monthEnds(months) {
		factors := make([]float64, 5)
		for j := range factors {
			factors[j] = rng.NormFloat64() * 0.04
		}
		for _, a := range assets {
			momentum := rng.NormFloat64() * 0.05
			features := append(append([]float64(nil), factors...), momentum)
			ds.Rows = append(ds.Rows, Row{
				Date:     d,
				Asset:    a,
				Features: features,
				Label:    0.5*momentum + 0.2*factors[0] + rng.NormFloat64()*0.01,
			})
		}
	}
	return ds
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func testStrategyConfig() StrategyConfig {
	cfg := DefaultStrategyConfig()
	cfg.TopN = 2
	cfg.Forest.NumTrees = 10
	cfg.Forest.MaxDepth = 3
	return cfg
}

func TestBuildDataset(t *testing.T) {
	dates := monthEnds(3)
	frame, err := models.NewFrame(dates, []string{"Market", "SMB", "HML", "RMW", "CMA", "RF", "AAA", "BBB"}, map[string][]float64{
		"Market": {0.01, 0.02, 0.03},
		"SMB":    {0.0, 0.0, 0.0},
		"HML":    {0.0, 0.0, 0.0},
		"RMW":    {0.0, 0.0, 0.0},
		"CMA":    {0.0, 0.0, 0.0},
		"RF":     {0.001, 0.002, 0.003},
		"AAA":    {0.05, 0.06, 0.07},
		"BBB":    {-0.01, math.NaN(), 0.02},
	})
	require.NoError(t, err)

	ds, err := BuildDataset(frame, []string{"AAA", "BBB"}, models.DefaultSchema())
	require.NoError(t, err)

	assert.Equal(t, []string{"Market", "SMB", "HML", "RMW", "CMA", MomentumFeature}, ds.Features)
	require.Len(t, ds.Rows, 2)

	first := ds.Rows[0]
	assert.Equal(t, "AAA", first.Asset)
	assert.Equal(t, dates[0], first.Date)
	assert.Equal(t, []float64{0.01, 0, 0, 0, 0, 0.05}, first.Features)
	assert.InDelta(t, 0.06-0.002, first.Label, 1e-15)

	assert.Equal(t, "AAA", ds.Rows[1].Asset)
	assert.Equal(t, dates[1], ds.Rows[1].Date)
	assert.Equal(t, dates[:2], ds.Months())
}

func TestBuildDatasetRequiresRiskFree(t *testing.T) {
	schema, err := models.NewFactorSchema([]string{"Market"}, "")
	require.NoError(t, err)
	_, err = BuildDataset(models.Frame{}, []string{"AAA"}, schema)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestDatasetWindows(t *testing.T) {
	ds := syntheticDataset(4, []string{"A", "B", "C"}, 1)
	months := ds.Months()
	require.Len(t, months, 4)

	assert.Len(t, ds.Until(months[1]), 6)
	assert.Len(t, ds.At(months[2]), 3)
	assert.Empty(t, ds.At(months[0].AddDate(0, 0, 1)))
}

func TestFitForestDeterministic(t *testing.T) {
	ds := syntheticDataset(12, []string{"A", "B", "C", "D"}, 7)
	x := make([][]float64, len(ds.Rows))
	y := make([]float64, len(ds.Rows))
	for i, r := range ds.Rows {
		x[i], y[i] = r.Features, r.Label
	}

	cfg := DefaultForestConfig()
	cfg.NumTrees = 20
	cfg.Workers = 1
	serial, err := FitForest(context.Background(), x, y, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := FitForest(context.Background(), x, y, cfg)
	require.NoError(t, err)

	for _, row := range x {
		a, err := serial.Predict(row)
		require.NoError(t, err)
		b, err := parallel.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, math.Float64bits(a), math.Float64bits(b))
	}
	assert.Equal(t, serial.FeatureImportances(), parallel.FeatureImportances())
}

func TestFitForestLearnsStep(t *testing.T) {
	var x [][]float64
	var y []float64
	for i := 0; i < 200; i++ {
		v := float64(i) / 200
		x = append(x, []float64{v, float64(i % 7)})
		if v > 0.5 {
			y = append(y, 1)
		} else {
			y = append(y, 0)
		}
	}

	forest, err := FitForest(context.Background(), x, y, DefaultForestConfig())
	require.NoError(t, err)

	high, err := forest.Predict([]float64{0.9, 3})
	require.NoError(t, err)
	low, err := forest.Predict([]float64{0.1, 3})
	require.NoError(t, err)
	assert.Greater(t, high, 0.9)
	assert.Less(t, low, 0.1)

	importances := forest.FeatureImportances()
	assert.InDelta(t, 1.0, importances[0]+importances[1], 1e-9)
	assert.Greater(t, importances[0], importances[1])

	_, err = forest.Predict([]float64{0.5})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestFitForestRejectsEmpty(t *testing.T) {
	_, err := FitForest(context.Background(), nil, nil, DefaultForestConfig())
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestModelStoreUntrained(t *testing.T) {
	store := NewModelStore()
	_, ok := store.Current()
	assert.False(t, ok)

	_, err := store.Predict([][]float64{{1, 2, 3, 4, 5, 6}})
	assert.True(t, errors.Is(err, models.ErrUntrainedModel))
}

func TestRollingEngineSchedule(t *testing.T) {
	engine, err := NewRollingEngine(testStrategyConfig(), quietLogger())
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingHistory, engine.State())

	ds := syntheticDataset(24, []string{"A", "B", "C", "D", "E"}, 3)
	months := ds.Months()

	result, err := engine.Run(context.Background(), ds)
	require.NoError(t, err)

	assert.Equal(t, 12, result.Start)
	assert.Equal(t, StateActiveHoldout, engine.State())
	require.Len(t, result.Returns, 11)
	assert.Equal(t, months[13:24], result.Dates)
	assert.Equal(t, months[12], result.Selections[0].AsOf)

	// months 12, 15, 18, 21
	assert.Equal(t, []time.Time{months[12], months[15], months[18], months[21]}, result.Retrains)

	for i, sel := range result.Selections {
		require.Len(t, sel.Assets, 2)
		assert.Equal(t, result.Returns[i], sel.Realized)
	}
	assert.Len(t, result.Importances, len(ds.Features))

	snapshot, ok := engine.Store().Current()
	require.True(t, ok)
	assert.Equal(t, months[21], snapshot.AsOf)
	assert.Equal(t, 22*5, snapshot.TrainingRows)
}

func TestRollingEngineRealizedIsMeanOfSelectedLabels(t *testing.T) {
	engine, err := NewRollingEngine(testStrategyConfig(), quietLogger())
	require.NoError(t, err)

	ds := syntheticDataset(24, []string{"A", "B", "C"}, 11)
	result, err := engine.Run(context.Background(), ds)
	require.NoError(t, err)

	for _, sel := range result.Selections {
		labels := map[string]float64{}
		for _, r := range ds.At(sel.AsOf) {
			labels[r.Asset] = r.Label
		}
		want := (labels[sel.Assets[0]] + labels[sel.Assets[1]]) / 2
		assert.InDelta(t, want, sel.Realized, 1e-15)
	}
}

func TestRollingEngineDeterministic(t *testing.T) {
	ds := syntheticDataset(30, []string{"A", "B", "C", "D"}, 5)

	run := func() StrategyResult {
		engine, err := NewRollingEngine(testStrategyConfig(), quietLogger())
		require.NoError(t, err)
		result, err := engine.Run(context.Background(), ds)
		require.NoError(t, err)
		return result
	}
	assert.Equal(t, run().Returns, run().Returns)
}

func TestRollingEngineInsufficientHistory(t *testing.T) {
	engine, err := NewRollingEngine(testStrategyConfig(), quietLogger())
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), syntheticDataset(23, []string{"A", "B"}, 1))
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func TestRollingEngineEmptySelection(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.MinMonths = 2
	engine, err := NewRollingEngine(cfg, quietLogger())
	require.NoError(t, err)

	_, err = engine.Run(context.Background(), syntheticDataset(2, []string{"A", "B"}, 1))
	assert.ErrorIs(t, err, models.ErrEmptySelection)
}

func TestRollingEngineEmbargo(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.EmbargoMonths = 2
	engine, err := NewRollingEngine(cfg, quietLogger())
	require.NoError(t, err)

	ds := syntheticDataset(24, []string{"A", "B"}, 2)
	_, err = engine.Run(context.Background(), ds)
	require.NoError(t, err)

	snapshot, ok := engine.Store().Current()
	require.True(t, ok)
	assert.Equal(t, 20*2, snapshot.TrainingRows)
}

func TestElapsedMonths(t *testing.T) {
	a := time.Date(2020, 11, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3, elapsedMonths(a, time.Date(2021, 2, 28, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 0, elapsedMonths(a, a))
}

func TestRollingEngineRetrainsOnCalendarMonths(t *testing.T) {
	engine, err := NewRollingEngine(testStrategyConfig(), quietLogger())
	require.NoError(t, err)

	full := syntheticDataset(25, []string{"A", "B", "C", "D"}, 5)
	gap := monthEnds(25)[14]
	ds := Dataset{Features: full.Features}
	for _, r := range full.Rows {
		if !r.Date.Equal(gap) {
			ds.Rows = append(ds.Rows, r)
		}
	}
	months := ds.Months()
	require.Len(t, months, 24)

	result, err := engine.Run(context.Background(), ds)
	require.NoError(t, err)

	// the missing month shifts row positions but not the calendar schedule
	assert.Equal(t, []time.Time{months[12], months[14], months[17], months[20]}, result.Retrains)
	for i := 1; i < len(result.Retrains); i++ {
		assert.Equal(t, 3, elapsedMonths(result.Retrains[i-1], result.Retrains[i]))
	}
}

func TestNewRollingEngineValidation(t *testing.T) {
	cfg := testStrategyConfig()
	cfg.TopN = 0
	_, err := NewRollingEngine(cfg, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
