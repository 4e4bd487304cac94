package factor

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/factorlab/internal/models"
)

func tradingDates(start time.Time, n int) []time.Time {
	dates := make([]time.Time, n)
	for i := range dates {
		dates[i] = start.AddDate(0, 0, i)
	}
	return dates
}

func mustFrame(t *testing.T, dates []time.Time, columns []string, values map[string][]float64) models.Frame {
	t.Helper()
	frame, err := models.NewFrame(dates, columns, values)
	require.NoError(t, err)
	return frame
}

// marketScenario builds the two-asset, single-factor panel: A has beta 1.2 and
// no intercept, B has beta 0.8 and intercept 0.001.
func marketScenario(t *testing.T, n int, seed int64) models.Frame {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	noise := make([]float64, n)
	mean := 0.0
	for i := range noise {
		noise[i] = rng.NormFloat64() * 0.01
		mean += noise[i]
	}
	mean /= float64(n)

	market := make([]float64, n)
	a := make([]float64, n)
	b := make([]float64, n)
	for i := range market {
		market[i] = 0.0004 + noise[i] - mean
		a[i] = 1.2*market[i] + rng.NormFloat64()*0.001
		b[i] = 0.001 + 0.8*market[i] + rng.NormFloat64()*0.001
	}

	return mustFrame(t, tradingDates(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), n),
		[]string{"A", "B", models.FactorMarket},
		map[string][]float64{"A": a, "B": b, models.FactorMarket: market})
}

func marketRegressor(t *testing.T) *Regressor {
	t.Helper()
	schema, err := models.NewFactorSchema([]string{models.FactorMarket}, "")
	require.NoError(t, err)
	r, err := NewRegressor(RegressionConfig{Schema: schema, Workers: 2}, nil)
	require.NoError(t, err)
	return r
}

func TestAlignKeepsIntersection(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	returnDates := []time.Time{
		time.Date(2021, 3, 1, 16, 0, 0, 0, ny),
		time.Date(2021, 3, 2, 16, 0, 0, 0, ny),
		time.Date(2021, 3, 3, 16, 0, 0, 0, ny),
		time.Date(2021, 3, 5, 16, 0, 0, 0, ny),
	}
	factorDates := []time.Time{
		time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 8, 0, 0, 0, 0, time.UTC),
	}
	returns := mustFrame(t, returnDates, []string{"AAPL"}, map[string][]float64{"AAPL": {0.01, 0.02, 0.03, 0.05}})
	factors := mustFrame(t, factorDates, []string{models.FactorMarket}, map[string][]float64{models.FactorMarket: {0.2, 0.3, 0.4, 0.5, 0.8}})

	panel, err := Align(returns, factors)
	require.NoError(t, err)

	want := []time.Time{
		time.Date(2021, 3, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 3, 5, 0, 0, 0, 0, time.UTC),
	}
	assert.Equal(t, want, panel.Dates())
	assert.Equal(t, []string{"AAPL", models.FactorMarket}, panel.Columns())

	aapl, err := panel.Column("AAPL")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.02, 0.03, 0.05}, aapl)
	market, err := panel.Column(models.FactorMarket)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.2, 0.3, 0.5}, market)
}

func TestAlignNoOverlap(t *testing.T) {
	returns := mustFrame(t, tradingDates(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 5),
		[]string{"A"}, map[string][]float64{"A": {1, 2, 3, 4, 5}})
	factors := mustFrame(t, tradingDates(time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC), 5),
		[]string{models.FactorMarket}, map[string][]float64{models.FactorMarket: {1, 2, 3, 4, 5}})

	_, err := Align(returns, factors)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrEmptyAlignment)
}

func TestAlignRejectsColumnCollision(t *testing.T) {
	dates := tradingDates(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 2)
	returns := mustFrame(t, dates, []string{"Market"}, map[string][]float64{"Market": {1, 2}})
	factors := mustFrame(t, dates, []string{"Market"}, map[string][]float64{"Market": {1, 2}})

	_, err := Align(returns, factors)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestEstimatePremiums(t *testing.T) {
	dates := tradingDates(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 4)
	schema, err := models.NewFactorSchema([]string{"Market", "SMB"}, "")
	require.NoError(t, err)
	factors := mustFrame(t, dates, []string{"Market", "SMB"}, map[string][]float64{
		"Market": {0.001, 0.002, 0.003, 0.002},
		"SMB":    {-0.001, 0.001, -0.001, 0.001},
	})

	premiums, err := EstimatePremiums(factors, schema, 252)
	require.NoError(t, err)

	assert.InDelta(t, 0.002, premiums.Periodic[0], 1e-15)
	assert.InDelta(t, math.Pow(1.002, 252)-1, premiums.Annual[0], 1e-12)
	assert.InDelta(t, 0.0, premiums.Annual[1], 1e-15)

	monthly, err := EstimatePremiums(factors, schema, 12)
	require.NoError(t, err)
	assert.InDelta(t, math.Pow(1.002, 12)-1, monthly.Annual[0], 1e-12)

	p, ok := premiums.Premium("Market")
	assert.True(t, ok)
	assert.Equal(t, premiums.Annual[0], p)
}

func TestEstimatePremiumsMissingFactor(t *testing.T) {
	dates := tradingDates(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 2)
	factors := mustFrame(t, dates, []string{"Market"}, map[string][]float64{"Market": {0.1, 0.2}})

	_, err := EstimatePremiums(factors, models.DefaultSchema(), 252)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestFitAllRecoversTrueBetas(t *testing.T) {
	panel := marketScenario(t, 300, 7)
	r := marketRegressor(t)

	set, err := r.FitAll(context.Background(), panel, []string{"A", "B"})
	require.NoError(t, err)
	require.Len(t, set.Assets, 2)

	a, ok := set.Get("A")
	require.True(t, ok)
	b, ok := set.Get("B")
	require.True(t, ok)

	assert.InDelta(t, 1.2, a.Betas[0], 0.05)
	assert.InDelta(t, 0.0, a.Intercept, 0.001)
	assert.InDelta(t, 0.8, b.Betas[0], 0.05)
	assert.InDelta(t, 0.001, b.Intercept, 0.001)
	assert.Equal(t, 300, a.Observations)

	premiums, err := EstimatePremiums(panel, r.Schema(), 252)
	require.NoError(t, err)
	assert.InDelta(t, 0.0004, premiums.Periodic[0], 1e-12)

	ranking, err := RankExpectedReturns(set, premiums)
	require.NoError(t, err)
	require.Len(t, ranking, 2)

	p := premiums.Annual[0]
	if 0.001+0.8*p > 1.2*p {
		assert.Equal(t, "B", ranking[0].Asset)
	} else {
		assert.Equal(t, "A", ranking[0].Asset)
	}
	assert.GreaterOrEqual(t, ranking[0].Value, ranking[1].Value)
}

func TestFitAllIsDeterministic(t *testing.T) {
	panel := marketScenario(t, 120, 3)
	r := marketRegressor(t)

	first, err := r.FitAll(context.Background(), panel, []string{"A", "B"})
	require.NoError(t, err)
	second, err := r.FitAll(context.Background(), panel, []string{"A", "B"})
	require.NoError(t, err)

	for i := range first.Assets {
		assert.Equal(t, math.Float64bits(first.Assets[i].Intercept), math.Float64bits(second.Assets[i].Intercept))
		for j := range first.Assets[i].Betas {
			assert.Equal(t, math.Float64bits(first.Assets[i].Betas[j]), math.Float64bits(second.Assets[i].Betas[j]))
		}
	}
}

func TestFitOLSUnderdetermined(t *testing.T) {
	_, _, err := FitOLS([]float64{0.01, 0.02}, [][]float64{{0.1, 0.2}, {0.3, 0.1}}, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnderdeterminedRegression)
}

func TestFitOLSCollinearFactors(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	n := 50
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = rng.NormFloat64()
		y[i] = 0.5*x[i] + rng.NormFloat64()*0.1
	}

	tests := []struct {
		name    string
		columns [][]float64
	}{
		{name: "duplicated column", columns: [][]float64{x, append([]float64(nil), x...)}},
		{name: "zero column", columns: [][]float64{x, make([]float64, n)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := FitOLS(y, tt.columns, 0)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrNumericalInstability)
		})
	}
}

func TestFitAllReportsFailingAsset(t *testing.T) {
	dates := tradingDates(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), 1)
	panel := mustFrame(t, dates, []string{"A", models.FactorMarket},
		map[string][]float64{"A": {0.01}, models.FactorMarket: {0.02}})

	_, err := marketRegressor(t).FitAll(context.Background(), panel, []string{"A"})
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrUnderdeterminedRegression)

	var assetErr *models.AssetError
	require.ErrorAs(t, err, &assetErr)
	assert.Equal(t, "A", assetErr.Asset)
}

func TestFitAllUsesExcessReturns(t *testing.T) {
	n := 60
	rng := rand.New(rand.NewSource(5))
	market := make([]float64, n)
	rf := make([]float64, n)
	asset := make([]float64, n)
	for i := range market {
		market[i] = rng.NormFloat64() * 0.01
		rf[i] = 0.0001
		asset[i] = rf[i] + 0.9*market[i]
	}
	panel := mustFrame(t, tradingDates(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), n),
		[]string{"X", models.FactorMarket, models.FactorRiskFree},
		map[string][]float64{"X": asset, models.FactorMarket: market, models.FactorRiskFree: rf})

	schema, err := models.NewFactorSchema([]string{models.FactorMarket}, models.FactorRiskFree)
	require.NoError(t, err)
	r, err := NewRegressor(RegressionConfig{Schema: schema, UseExcessReturns: true}, nil)
	require.NoError(t, err)

	set, err := r.FitAll(context.Background(), panel, []string{"X"})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, set.Assets[0].Intercept, 1e-12)
	assert.InDelta(t, 0.9, set.Assets[0].Betas[0], 1e-10)
}

func TestFitRollingMatchesIndependentRefits(t *testing.T) {
	panel := marketScenario(t, 60, 21)
	r := marketRegressor(t)
	window := 20

	rolling, err := r.FitRolling(context.Background(), panel, []string{"A", "B"}, window)
	require.NoError(t, err)
	require.Len(t, rolling, 2)
	require.Len(t, rolling[0].Points, 60-window)

	dates := panel.Dates()
	for idx, point := range rolling[1].Points {
		i := idx + window
		assert.Equal(t, dates[i], point.Date)

		slice := panel.Slice(i-window, i)
		y, err := slice.Column("B")
		require.NoError(t, err)
		x, err := slice.Column(models.FactorMarket)
		require.NoError(t, err)
		intercept, betas, err := FitOLS(y, [][]float64{x}, 0)
		require.NoError(t, err)
		assert.Equal(t, intercept, point.Intercept)
		assert.Equal(t, betas, point.Betas)
	}
}

func TestFitRollingHasNoLookahead(t *testing.T) {
	full := marketScenario(t, 90, 13)
	truncated := full.Slice(0, 60)
	r := marketRegressor(t)

	short, err := r.FitRolling(context.Background(), truncated, []string{"A"}, 30)
	require.NoError(t, err)
	long, err := r.FitRolling(context.Background(), full, []string{"A"}, 30)
	require.NoError(t, err)

	require.Len(t, short[0].Points, 30)
	require.Len(t, long[0].Points, 60)
	for i, p := range short[0].Points {
		assert.Equal(t, p, long[0].Points[i])
	}

	last := short[0].Points[len(short[0].Points)-1]
	got, ok := long[0].At(last.Date)
	require.True(t, ok)
	assert.Equal(t, last, got)
}

func TestFitRollingInsufficientHistory(t *testing.T) {
	panel := marketScenario(t, 30, 1)
	r := marketRegressor(t)

	_, err := r.FitRolling(context.Background(), panel, []string{"A"}, 30)
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)

	_, err = r.FitRolling(context.Background(), panel, []string{"A"}, 1)
	assert.ErrorIs(t, err, models.ErrUnderdeterminedRegression)
}

func TestRankExpectedReturnsIsStable(t *testing.T) {
	schema, err := models.NewFactorSchema([]string{"Market"}, "")
	require.NoError(t, err)
	set := models.CoefficientSet{
		Schema: schema,
		Assets: []models.Coefficients{
			{Asset: "LOW", Intercept: 0.0, Betas: []float64{0.5}},
			{Asset: "TIE1", Intercept: 0.01, Betas: []float64{1.0}},
			{Asset: "HIGH", Intercept: 0.02, Betas: []float64{1.5}},
			{Asset: "TIE2", Intercept: 0.01, Betas: []float64{1.0}},
		},
	}
	premiums := models.FactorPremiums{Schema: schema, Annual: []float64{0.1}, Periodic: []float64{0.0004}}

	first, err := RankExpectedReturns(set, premiums)
	require.NoError(t, err)
	assert.Equal(t, []string{"HIGH", "TIE1", "TIE2", "LOW"}, first.Assets())
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, first[i-1].Value, first[i].Value)
	}

	second, err := RankExpectedReturns(set, premiums)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.InDelta(t, 0.02+1.5*0.1, first[0].Value, 1e-15)
}

func TestRankExpectedReturnsSchemaMismatch(t *testing.T) {
	set := models.CoefficientSet{Schema: models.DefaultSchema()}
	premiums := models.FactorPremiums{Schema: models.FactorSchema{Factors: []string{"Market"}}}

	_, err := RankExpectedReturns(set, premiums)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
