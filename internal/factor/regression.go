package factor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/models"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// DefaultMaxConditionNumber bounds the design-matrix condition number accepted by FitOLS
const DefaultMaxConditionNumber = 1e12

// RegressionConfig configures the regression engines
type RegressionConfig struct {
	Schema             models.FactorSchema
	UseExcessReturns   bool
	MaxConditionNumber float64
	Workers            int
}

// Regressor fits per-asset factor models over an aligned panel
type Regressor struct {
	config RegressionConfig
	logger *logrus.Logger
}

// NewRegressor creates a regressor
func NewRegressor(cfg RegressionConfig, logger *logrus.Logger) (*Regressor, error) {
	if len(cfg.Schema.Factors) == 0 {
		return nil, fmt.Errorf("factor schema is required")
	}
	if cfg.MaxConditionNumber <= 0 {
		cfg.MaxConditionNumber = DefaultMaxConditionNumber
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Regressor{config: cfg, logger: logger}, nil
}

// Schema returns the factor schema used by the regressor
func (r *Regressor) Schema() models.FactorSchema {
	return r.config.Schema
}

// FitOLS regresses y on factor columns with an intercept using a QR
// decomposition. It returns the intercept and one beta per column.
func FitOLS(y []float64, columns [][]float64, maxCondition float64) (float64, []float64, error) {
	n := len(y)
	k := len(columns) + 1
	if n < k {
		return 0, nil, fmt.Errorf("%w: %d observations for %d coefficients", models.ErrUnderdeterminedRegression, n, k)
	}
	if maxCondition <= 0 {
		maxCondition = DefaultMaxConditionNumber
	}

	data := make([]float64, n*k)
	target := make([]float64, n)
	for i := 0; i < n; i++ {
		if math.IsNaN(y[i]) || math.IsInf(y[i], 0) {
			return 0, nil, fmt.Errorf("%w: non-finite return at row %d", models.ErrInvalidInput, i)
		}
		target[i] = y[i]
		data[i*k] = 1
		for j, col := range columns {
			if len(col) != n {
				return 0, nil, fmt.Errorf("%w: factor column %d has %d rows, want %d", models.ErrInvalidInput, j, len(col), n)
			}
			if math.IsNaN(col[i]) || math.IsInf(col[i], 0) {
				return 0, nil, fmt.Errorf("%w: non-finite factor value at row %d", models.ErrInvalidInput, i)
			}
			data[i*k+j+1] = col[i]
		}
	}

	var qr mat.QR
	qr.Factorize(mat.NewDense(n, k, data))
	if cond := qr.Cond(); math.IsNaN(cond) || cond > maxCondition {
		return 0, nil, fmt.Errorf("%w: condition number %.3g", models.ErrNumericalInstability, cond)
	}

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, target)); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return 0, nil, fmt.Errorf("%w: %v", models.ErrNumericalInstability, err)
		}
		return 0, nil, fmt.Errorf("failed to solve least squares: %w", err)
	}

	betas := make([]float64, k-1)
	for j := range betas {
		betas[j] = beta.AtVec(j + 1)
	}
	return beta.AtVec(0), betas, nil
}

// FitAll fits every asset over the full panel. Assets are fit in parallel and
// the result keeps input order. The first failing asset aborts the run.
func (r *Regressor) FitAll(ctx context.Context, panel models.Frame, assets []string) (models.CoefficientSet, error) {
	design, err := r.design(panel)
	if err != nil {
		return models.CoefficientSet{}, err
	}

	results := make([]models.Coefficients, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)
	for i, asset := range assets {
		i, asset := i, asset
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			y, err := r.target(panel, asset)
			if err != nil {
				return &models.AssetError{Asset: asset, Err: err}
			}
			intercept, betas, err := FitOLS(y, design, r.config.MaxConditionNumber)
			if err != nil {
				return &models.AssetError{Asset: asset, Err: err}
			}
			results[i] = models.Coefficients{
				Asset:        asset,
				Intercept:    intercept,
				Betas:        betas,
				Observations: len(y),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.CoefficientSet{}, err
	}

	r.logger.WithFields(logrus.Fields{
		"assets":       len(assets),
		"observations": panel.Len(),
		"factors":      len(r.config.Schema.Factors),
	}).Debug("Static factor regressions fitted")

	return models.CoefficientSet{Schema: r.config.Schema, Assets: results}, nil
}

// design returns the factor columns in schema order
func (r *Regressor) design(panel models.Frame) ([][]float64, error) {
	columns := make([][]float64, len(r.config.Schema.Factors))
	for j, f := range r.config.Schema.Factors {
		col, err := panel.Column(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
		}
		columns[j] = col
	}
	return columns, nil
}

// target returns the regressand for asset: its excess return when configured
// and a risk-free column exists in the schema, the raw return otherwise.
func (r *Regressor) target(panel models.Frame, asset string) ([]float64, error) {
	y, err := panel.Column(asset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}
	rf := r.config.Schema.RiskFree
	if !r.config.UseExcessReturns || rf == "" {
		return y, nil
	}
	riskFree, err := panel.Column(rf)
	if err != nil {
		return nil, fmt.Errorf("%w: risk-free column: %v", models.ErrInvalidInput, err)
	}
	for i := range y {
		y[i] -= riskFree[i]
	}
	return y, nil
}
