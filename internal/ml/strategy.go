package ml

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/backtest"
	"github.com/yourusername/factorlab/internal/config"
	"github.com/yourusername/factorlab/internal/logger"
	"github.com/yourusername/factorlab/internal/metrics"
	"github.com/yourusername/factorlab/internal/models"
)

// EngineState is the rolling engine's position in its walk over the months
type EngineState int

const (
	// StateAwaitingHistory skips months before the first holdout month
	StateAwaitingHistory EngineState = iota
	// StateActiveHoldout retrains on schedule and records one period per month
	StateActiveHoldout
)

func (s EngineState) String() string {
	switch s {
	case StateAwaitingHistory:
		return "awaiting_history"
	case StateActiveHoldout:
		return "active_holdout"
	default:
		return "unknown"
	}
}

// StrategyConfig controls the walk-forward schedule and the learner
type StrategyConfig struct {
	TopN                    int
	// RebalanceIntervalMonths counts calendar months since the last retrain,
	// not dataset rows, so a gap in the monthly calendar does not delay retraining.
	RebalanceIntervalMonths int
	MinMonths               int
	MaxStartMonths          int
	StartFraction           float64
	EmbargoMonths           int
	Forest                  ForestConfig
}

// DefaultStrategyConfig returns the stock settings: 24 months minimum, first
// holdout at min(48, half the sample), quarterly retraining, top 10
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		TopN:                    10,
		RebalanceIntervalMonths: 3,
		MinMonths:               24,
		MaxStartMonths:          48,
		StartFraction:           0.5,
		Forest:                  DefaultForestConfig(),
	}
}

// ConfigFromApp maps the ml_strategy section onto engine settings
func ConfigFromApp(cfg config.MLStrategyConfig) StrategyConfig {
	return StrategyConfig{
		TopN:                    cfg.TopN,
		RebalanceIntervalMonths: cfg.RebalanceIntervalMonths,
		MinMonths:               cfg.MinMonths,
		MaxStartMonths:          cfg.MaxStartMonths,
		StartFraction:           cfg.StartFraction,
		EmbargoMonths:           cfg.EmbargoMonths,
		Forest: ForestConfig{
			NumTrees:       cfg.NumTrees,
			MaxDepth:       cfg.MaxDepth,
			MinSamplesLeaf: cfg.MinSamplesLeaf,
			MaxFeatures:    cfg.MaxFeatures,
			Seed:           cfg.Seed,
			Workers:        cfg.Workers,
		},
	}
}

// Selection is one holdout decision and its realized outcome
type Selection struct {
	AsOf     time.Time `json:"as_of"`
	HoldDate time.Time `json:"hold_date"`
	Assets   []string  `json:"assets"`
	Realized float64   `json:"realized"`
}

// StrategyResult is the realized monthly series of the ML strategy
type StrategyResult struct {
	Dates       []time.Time `json:"dates"`
	Returns     []float64   `json:"returns"`
	Selections  []Selection `json:"selections"`
	Retrains    []time.Time `json:"retrains"`
	Features    []string    `json:"features"`
	Importances []float64   `json:"importances"`
	Start       int         `json:"start"`
	Months      int         `json:"months"`
}

// RollingEngine walks the months with an expanding training window
type RollingEngine struct {
	cfg    StrategyConfig
	store  *ModelStore
	state  EngineState
	log    *logger.MLLogger
	logger *logrus.Logger
}

// NewRollingEngine creates an engine with an empty model store
func NewRollingEngine(cfg StrategyConfig, log *logrus.Logger) (*RollingEngine, error) {
	if cfg.TopN <= 0 {
		return nil, fmt.Errorf("%w: top n must be positive", models.ErrInvalidInput)
	}
	if cfg.RebalanceIntervalMonths <= 0 {
		return nil, fmt.Errorf("%w: rebalance interval must be positive", models.ErrInvalidInput)
	}
	if cfg.MinMonths < 2 || cfg.MaxStartMonths <= 0 || cfg.StartFraction <= 0 || cfg.StartFraction >= 1 {
		return nil, fmt.Errorf("%w: invalid holdout schedule", models.ErrInvalidInput)
	}
	if cfg.EmbargoMonths < 0 {
		return nil, fmt.Errorf("%w: embargo cannot be negative", models.ErrInvalidInput)
	}
	if log == nil {
		log = logrus.New()
	}
	return &RollingEngine{
		cfg:    cfg,
		store:  NewModelStore(),
		log:    logger.NewMLLogger(log),
		logger: log,
	}, nil
}

// State returns the current state
func (e *RollingEngine) State() EngineState {
	return e.state
}

// Store returns the engine's model store
func (e *RollingEngine) Store() *ModelStore {
	return e.store
}

// StartIndex returns the first holdout month index for a sample of n months
func (e *RollingEngine) StartIndex(n int) int {
	start := int(math.Floor(e.cfg.StartFraction * float64(n)))
	if start > e.cfg.MaxStartMonths {
		start = e.cfg.MaxStartMonths
	}
	return start
}

// Run executes the strategy. For each holdout month i in [start, months-2] the
// engine retrains when due, ranks the assets observed at month i by predicted
// label, and records the mean realized label of the top N at month i+1.
func (e *RollingEngine) Run(ctx context.Context, dataset Dataset) (StrategyResult, error) {
	months := dataset.Months()
	n := len(months)
	if n < e.cfg.MinMonths {
		return StrategyResult{}, fmt.Errorf("%w: %d months, need at least %d", models.ErrInsufficientHistory, n, e.cfg.MinMonths)
	}

	e.state = StateAwaitingHistory
	e.store.Replace(nil)
	start := e.StartIndex(n)
	result := StrategyResult{Features: dataset.Features, Start: start, Months: n}
	var lastRetrain time.Time

	for i := 0; i <= n-2; i++ {
		if err := ctx.Err(); err != nil {
			return StrategyResult{}, err
		}
		current := months[i]

		switch e.state {
		case StateAwaitingHistory:
			if i < start {
				continue
			}
			e.state = StateActiveHoldout
			fallthrough
		case StateActiveHoldout:
			if _, trained := e.store.Current(); !trained || elapsedMonths(lastRetrain, current) >= e.cfg.RebalanceIntervalMonths {
				if err := e.retrain(ctx, dataset, current); err != nil {
					return StrategyResult{}, err
				}
				lastRetrain = current
				result.Retrains = append(result.Retrains, current)
			}

			sel, ok, err := e.selectTop(dataset, current, months[i+1])
			if err != nil {
				e.log.LogMLPredictionError(current, err.Error())
				return StrategyResult{}, err
			}
			if !ok {
				continue
			}
			result.Selections = append(result.Selections, sel)
			result.Dates = append(result.Dates, sel.HoldDate)
			result.Returns = append(result.Returns, sel.Realized)
			metrics.RecordSelection()
			e.log.LogSelection(current, len(dataset.At(current)), sel.Assets, sel.Realized)
		}
	}

	if len(result.Returns) == 0 {
		return StrategyResult{}, models.ErrEmptySelection
	}

	if snapshot, ok := e.store.Current(); ok {
		result.Importances = snapshot.Forest.FeatureImportances()
		importances := snapshot.Importances()
		metrics.UpdateFeatureImportances(importances)
		e.log.LogFeatureImportance(importances)
	}
	e.log.LogStrategySummary(len(result.Returns), len(result.Retrains),
		backtest.AnnualizedReturn(result.Returns, models.PeriodsPerYear(models.FrequencyMonthly)),
		backtest.SharpeRatio(result.Returns, models.PeriodsPerYear(models.FrequencyMonthly)))

	return result, nil
}

// retrain fits a new forest on every row up to the embargoed cutoff and swaps it in
func (e *RollingEngine) retrain(ctx context.Context, dataset Dataset, current time.Time) error {
	rows := dataset.Until(e.cutoff(current))
	if len(rows) == 0 {
		return fmt.Errorf("%w: no training rows on or before %s", models.ErrInsufficientHistory, current.Format(models.DateLayout))
	}

	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = r.Features
		y[i] = r.Label
	}

	began := time.Now()
	forest, err := FitForest(ctx, x, y, e.cfg.Forest)
	if err != nil {
		return fmt.Errorf("retrain at %s: %w", current.Format(models.DateLayout), err)
	}
	elapsed := time.Since(began)

	e.store.Replace(&Snapshot{
		ID:           uuid.New(),
		Forest:       forest,
		Features:     append([]string(nil), dataset.Features...),
		AsOf:         current,
		TrainingRows: len(rows),
		TrainedAt:    time.Now().UTC(),
	})
	metrics.RecordRetrain(elapsed.Seconds())
	e.log.LogModelTraining(current, len(rows), forest.NumTrees(), elapsed)
	return nil
}

// cutoff is the last date whose rows may be used for training at current
func (e *RollingEngine) cutoff(current time.Time) time.Time {
	if e.cfg.EmbargoMonths == 0 {
		return current
	}
	return time.Date(current.Year(), current.Month()-time.Month(e.cfg.EmbargoMonths)+1, 0, 0, 0, 0, 0, time.UTC)
}

// selectTop ranks the rows at asOf by prediction, stable for ties
func (e *RollingEngine) selectTop(dataset Dataset, asOf, holdDate time.Time) (Selection, bool, error) {
	rows := dataset.At(asOf)
	if len(rows) == 0 {
		return Selection{}, false, nil
	}

	features := make([][]float64, len(rows))
	for i, r := range rows {
		features[i] = r.Features
	}
	preds, err := e.store.Predict(features)
	if err != nil {
		return Selection{}, false, err
	}

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return preds[order[a]] > preds[order[b]] })

	k := e.cfg.TopN
	if k > len(rows) {
		k = len(rows)
	}
	sel := Selection{AsOf: asOf, HoldDate: holdDate, Assets: make([]string, 0, k)}
	sum := 0.0
	for _, idx := range order[:k] {
		sel.Assets = append(sel.Assets, rows[idx].Asset)
		sum += rows[idx].Label
	}
	sel.Realized = sum / float64(k)
	return sel, true, nil
}

// elapsedMonths counts calendar months from a to b
func elapsedMonths(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}
