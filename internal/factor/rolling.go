package factor

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultRollingWindow is roughly half a year of trading days
const DefaultRollingWindow = 126

// FitRolling refits every asset on each window of length window sliding one
// row at a time. The point at dates[i] uses rows [i-window, i) only.
func (r *Regressor) FitRolling(ctx context.Context, panel models.Frame, assets []string, window int) ([]models.RollingCoefficients, error) {
	k := r.config.Schema.NumCoefficients()
	if window < k {
		return nil, fmt.Errorf("%w: window %d for %d coefficients", models.ErrUnderdeterminedRegression, window, k)
	}
	n := panel.Len()
	if n <= window {
		return nil, fmt.Errorf("%w: %d observations for rolling window %d", models.ErrInsufficientHistory, n, window)
	}

	design, err := r.design(panel)
	if err != nil {
		return nil, err
	}
	dates := panel.Dates()

	results := make([]models.RollingCoefficients, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.Workers)
	for a, asset := range assets {
		a, asset := a, asset
		g.Go(func() error {
			y, err := r.target(panel, asset)
			if err != nil {
				return &models.AssetError{Asset: asset, Err: err}
			}
			points := make([]models.RollingPoint, 0, n-window)
			windowCols := make([][]float64, len(design))
			for i := window; i < n; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				for j, col := range design {
					windowCols[j] = col[i-window : i]
				}
				intercept, betas, err := FitOLS(y[i-window:i], windowCols, r.config.MaxConditionNumber)
				if err != nil {
					return &models.AssetError{Asset: asset, Err: fmt.Errorf("window ending %s: %w", dates[i].Format(models.DateLayout), err)}
				}
				points = append(points, models.RollingPoint{Date: dates[i], Intercept: intercept, Betas: betas})
			}
			results[a] = models.RollingCoefficients{
				Asset:  asset,
				Window: window,
				Schema: r.config.Schema,
				Points: points,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"assets":  len(assets),
		"window":  window,
		"windows": n - window,
	}).Debug("Rolling factor regressions fitted")

	return results, nil
}
