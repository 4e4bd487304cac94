package models

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNewFrameValidation(t *testing.T) {
	dates := []time.Time{day(2020, 1, 1), day(2020, 1, 2)}

	tests := []struct {
		name    string
		dates   []time.Time
		columns []string
		values  map[string][]float64
		wantErr bool
	}{
		{name: "valid", dates: dates, columns: []string{"A"}, values: map[string][]float64{"A": {1, 2}}},
		{name: "unsorted dates", dates: []time.Time{day(2020, 1, 2), day(2020, 1, 1)}, columns: []string{"A"}, values: map[string][]float64{"A": {1, 2}}, wantErr: true},
		{name: "same calendar day", dates: []time.Time{day(2020, 1, 1), day(2020, 1, 1).Add(5 * time.Hour)}, columns: []string{"A"}, values: map[string][]float64{"A": {1, 2}}, wantErr: true},
		{name: "duplicate column", dates: dates, columns: []string{"A", "A"}, values: map[string][]float64{"A": {1, 2}}, wantErr: true},
		{name: "missing column", dates: dates, columns: []string{"B"}, values: map[string][]float64{"A": {1, 2}}, wantErr: true},
		{name: "short column", dates: dates, columns: []string{"A"}, values: map[string][]float64{"A": {1}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFrame(tt.dates, tt.columns, tt.values)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewFrameNormalizesDates(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	f, err := NewFrame([]time.Time{time.Date(2021, 6, 30, 23, 0, 0, 0, tokyo)}, []string{"A"}, map[string][]float64{"A": {0.1}})
	require.NoError(t, err)
	assert.Equal(t, day(2021, 6, 30), f.Date(0))
	assert.Equal(t, 0, f.IndexOf(time.Date(2021, 6, 30, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, f.IndexOf(day(2021, 7, 1)))
}

func TestFrameOperations(t *testing.T) {
	dates := []time.Time{day(2020, 1, 1), day(2020, 1, 2), day(2020, 1, 3)}
	f, err := NewFrame(dates, []string{"Mkt-RF", "SMB"}, map[string][]float64{
		"Mkt-RF": {1, math.NaN(), 3},
		"SMB":    {4, 5, 6},
	})
	require.NoError(t, err)

	renamed, err := f.Rename(map[string]string{"Mkt-RF": FactorMarket})
	require.NoError(t, err)
	assert.Equal(t, []string{FactorMarket, "SMB"}, renamed.Columns())

	scaled, err := renamed.Map(func(v float64) float64 { return v / 100 }, "SMB")
	require.NoError(t, err)
	smb, err := scaled.Column("SMB")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.04, 0.05, 0.06}, smb)
	assert.Equal(t, 1.0, scaled.Value(FactorMarket, 0))

	clean := scaled.DropNaN()
	assert.Equal(t, 2, clean.Len())
	assert.Equal(t, []time.Time{day(2020, 1, 1), day(2020, 1, 3)}, clean.Dates())

	sliced := f.Slice(1, 10)
	assert.Equal(t, 2, sliced.Len())
	assert.Equal(t, day(2020, 1, 2), sliced.Date(0))

	selected, err := f.Select("SMB")
	require.NoError(t, err)
	assert.Equal(t, []string{"SMB"}, selected.Columns())

	_, err = f.Select("HML")
	assert.Error(t, err)

	col, err := f.Column("SMB")
	require.NoError(t, err)
	col[0] = 100
	assert.Equal(t, 4.0, f.Value("SMB", 0))
}

func TestFactorSchema(t *testing.T) {
	schema := DefaultSchema()
	assert.Equal(t, 6, schema.NumCoefficients())
	assert.Equal(t, []string{InterceptName, FactorMarket, FactorSMB, FactorHML, FactorRMW, FactorCMA}, schema.CoefficientNames())
	assert.Equal(t, FactorRiskFree, schema.Columns()[5])

	_, err := NewFactorSchema(nil, "")
	assert.Error(t, err)
	_, err = NewFactorSchema([]string{"Market", "Market"}, "")
	assert.Error(t, err)
	_, err = NewFactorSchema([]string{"RF"}, "RF")
	assert.Error(t, err)

	three, err := NewFactorSchema([]string{"Market", "SMB", "HML"}, "")
	require.NoError(t, err)
	assert.False(t, three.Equal(schema))
	assert.True(t, three.Equal(FactorSchema{Factors: []string{"Market", "SMB", "HML"}, RiskFree: "RF"}))
}

func TestEqualWeight(t *testing.T) {
	p, err := EqualWeight([]string{"A", "B", "C", "D"})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, p.TotalWeight(), 1e-15)
	assert.Equal(t, 0.25, p[2].Weight)
	assert.NoError(t, p.Validate())

	_, err = EqualWeight(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = EqualWeight([]string{"A", "A"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	bad := Portfolio{{Asset: "A", Weight: -0.1}}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInput)
}

func TestRankingTop(t *testing.T) {
	r := Ranking{{Asset: "A", Value: 3}, {Asset: "B", Value: 2}, {Asset: "C", Value: 1}}
	assert.Equal(t, []string{"A", "B"}, r.Top(2).Assets())
	assert.Len(t, r.Top(10), 3)
	assert.Empty(t, r.Top(-1))
}

func TestStageError(t *testing.T) {
	assert.Nil(t, NewStageError(StageRegression, nil))

	inner := &AssetError{Asset: "MSFT", Err: ErrNumericalInstability}
	err := NewStageError(StageRegression, fmt.Errorf("fit: %w", inner))

	var se *StageError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, StageRegression, se.Stage)
	assert.Equal(t, "MSFT", se.Asset)
	assert.ErrorIs(t, err, ErrNumericalInstability)
	assert.Contains(t, err.Error(), "regression [MSFT]")

	assert.Same(t, err, NewStageError(StageRegression, err))
	outer := NewStageError(StagePersist, err)
	require.True(t, errors.As(outer, &se))
	assert.Equal(t, StagePersist, se.Stage)
}
