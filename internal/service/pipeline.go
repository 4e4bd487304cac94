package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/factorlab/internal/backtest"
	"github.com/yourusername/factorlab/internal/config"
	"github.com/yourusername/factorlab/internal/datasource"
	"github.com/yourusername/factorlab/internal/factor"
	"github.com/yourusername/factorlab/internal/logger"
	"github.com/yourusername/factorlab/internal/metrics"
	"github.com/yourusername/factorlab/internal/ml"
	"github.com/yourusername/factorlab/internal/models"
	"github.com/yourusername/factorlab/internal/repository"
)

// Pipeline modes
const (
	ModeStatic  = "static"
	ModeRolling = "rolling"
	ModeML      = "ml"
	ModeCompare = "compare"
)

// PipelineDeps carries the optional collaborators of a pipeline. Nil sources
// are built from the data configuration; a nil repository disables persistence.
type PipelineDeps struct {
	FactorSource datasource.FactorSource
	PriceSource  datasource.PriceSource
	Runs         repository.RunRepository
	Output       io.Writer
}

// PipelineResult collects everything a run produced
type PipelineResult struct {
	RunID        uuid.UUID
	Mode         string
	Panel        models.Frame
	Premiums     models.FactorPremiums
	Coefficients models.CoefficientSet
	Ranking      models.Ranking
	Rolling      []models.RollingCoefficients
	Static       *backtest.Result
	Capital      *backtest.CapitalPlan
	StaticRisk   *backtest.MonteCarloResult
	Strategy     *ml.StrategyResult
	ML           *backtest.Result
	MLRisk       *backtest.MonteCarloResult
	Comparison   *backtest.Comparison
	Artifacts    map[string]string
	Persisted    []uuid.UUID
}

// Pipeline runs the factor research workflow stage by stage
type Pipeline struct {
	cfg        *config.Config
	schema     models.FactorSchema
	factors    datasource.FactorSource
	prices     datasource.PriceSource
	runs       repository.RunRepository
	normalizer *DataNormalizer
	regressor  *factor.Regressor
	engine     *backtest.Engine
	mlConfig   ml.StrategyConfig
	out        io.Writer
	logger     *logrus.Logger
	log        *logger.PipelineLogger
	audit      *logger.AuditLogger
}

// NewPipeline wires a pipeline from configuration
func NewPipeline(cfg *config.Config, deps PipelineDeps, log *logrus.Logger) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if log == nil {
		log = logrus.New()
	}

	schema, err := models.NewFactorSchema(cfg.Regression.Factors, cfg.Regression.RiskFree)
	if err != nil {
		return nil, fmt.Errorf("invalid factor schema: %w", err)
	}

	regressor, err := factor.NewRegressor(factor.RegressionConfig{
		Schema:             schema,
		UseExcessReturns:   cfg.Regression.UseExcessReturns,
		MaxConditionNumber: cfg.Regression.MaxConditionNumber,
		Workers:            cfg.Regression.Workers,
	}, log)
	if err != nil {
		return nil, err
	}

	btConfig, err := backtest.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid backtest config: %w", err)
	}
	engine, err := backtest.NewEngine(btConfig, log)
	if err != nil {
		return nil, err
	}

	factory := datasource.NewFactory(cfg.Data, log)
	if deps.FactorSource == nil {
		if deps.FactorSource, err = factory.NewFactorSource(); err != nil {
			return nil, err
		}
	}
	if deps.PriceSource == nil {
		if deps.PriceSource, err = factory.NewPriceSource(); err != nil {
			return nil, err
		}
	}
	if deps.Output == nil {
		deps.Output = os.Stdout
	}

	return &Pipeline{
		cfg:        cfg,
		schema:     schema,
		factors:    deps.FactorSource,
		prices:     deps.PriceSource,
		runs:       deps.Runs,
		normalizer: NewDataNormalizer(schema, cfg.Data.FactorUnits, log),
		regressor:  regressor,
		engine:     engine,
		mlConfig:   ml.ConfigFromApp(cfg.MLStrategy),
		out:        deps.Output,
		logger:     log,
		log:        logger.NewPipelineLogger(log),
		audit:      logger.NewAuditLogger(log),
	}, nil
}

// Run executes the stages of mode. Any failure aborts the run and is returned
// as a *models.StageError.
func (p *Pipeline) Run(ctx context.Context, mode string) (*PipelineResult, error) {
	switch mode {
	case ModeStatic, ModeRolling:
	case ModeML, ModeCompare:
		if !p.cfg.MLStrategy.Enabled {
			return nil, fmt.Errorf("%w: ml strategy is disabled", models.ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: unknown mode %q", models.ErrInvalidInput, mode)
	}

	start, end, err := p.cfg.Period()
	if err != nil {
		return nil, err
	}

	res := &PipelineResult{RunID: uuid.New(), Mode: mode, Artifacts: make(map[string]string)}
	runID := res.RunID.String()
	began := time.Now()
	p.log.LogRunStarted(runID, mode, len(p.cfg.Universe.Tickers), start, end)

	err = p.execute(ctx, res, start, end)

	status := "success"
	if err != nil {
		status = "failed"
	}
	duration := time.Since(began)
	metrics.RecordPipelineRun(mode, status, duration.Seconds(), float64(time.Now().Unix()))
	if err != nil {
		return res, err
	}
	p.log.LogRunCompleted(runID, mode, duration)
	return res, nil
}

func (p *Pipeline) execute(ctx context.Context, res *PipelineResult, start, end time.Time) error {
	tickers := p.cfg.Universe.Tickers

	var rawFactors, rawPrices models.Frame
	err := p.stage(ctx, res, models.StageLoad, func(ctx context.Context) (int, error) {
		var err error
		if rawFactors, err = p.factors.FetchFactors(ctx, start, end); err != nil {
			return 0, fmt.Errorf("%s: %w", p.factors.Name(), err)
		}
		if rawPrices, err = p.prices.FetchPrices(ctx, tickers, start, end); err != nil {
			return 0, fmt.Errorf("%s: %w", p.prices.Name(), err)
		}
		return rawPrices.Len(), nil
	})
	if err != nil {
		return err
	}

	var factors, returns models.Frame
	err = p.stage(ctx, res, models.StagePrepare, func(context.Context) (int, error) {
		var err error
		if factors, err = p.normalizer.NormalizeFactors(rawFactors); err != nil {
			return 0, err
		}
		if returns, err = p.normalizer.NormalizePrices(rawPrices, tickers); err != nil {
			return 0, err
		}
		return returns.Len(), nil
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, res, models.StageAlign, func(context.Context) (int, error) {
		panel, err := factor.Align(returns, factors)
		if err != nil {
			return 0, err
		}
		metrics.UpdateAlignedObservations(panel.Len())
		if err := p.writeCSV(res, backtest.ArtifactMergedDataset, panel.Len(), func(path string) error {
			return backtest.WriteFrameCSV(panel, path)
		}); err != nil {
			return 0, err
		}
		res.Panel = panel
		return panel.Len(), nil
	})
	if err != nil {
		return err
	}

	switch res.Mode {
	case ModeRolling:
		return p.runRolling(ctx, res)
	case ModeStatic:
		if err := p.runStatic(ctx, res); err != nil {
			return err
		}
	case ModeML:
		if err := p.runML(ctx, res); err != nil {
			return err
		}
	case ModeCompare:
		if err := p.runStatic(ctx, res); err != nil {
			return err
		}
		if err := p.runML(ctx, res); err != nil {
			return err
		}
		if err := p.runCompare(ctx, res); err != nil {
			return err
		}
	}
	return p.persist(ctx, res)
}

func (p *Pipeline) runStatic(ctx context.Context, res *PipelineResult) error {
	tickers := p.cfg.Universe.Tickers
	ppy := models.PeriodsPerYear(models.FrequencyDaily)

	err := p.stage(ctx, res, models.StagePremiums, func(context.Context) (int, error) {
		premiums, err := factor.EstimatePremiums(res.Panel, p.schema, ppy)
		if err != nil {
			return 0, err
		}
		res.Premiums = premiums
		return len(premiums.Annual), nil
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, res, models.StageRegression, func(ctx context.Context) (int, error) {
		set, err := p.regressor.FitAll(ctx, res.Panel, tickers)
		if err != nil {
			return 0, err
		}
		for _, c := range set.Assets {
			betas := make(map[string]float64, len(c.Betas))
			for i, f := range p.schema.Factors {
				betas[f] = c.Betas[i]
			}
			p.log.LogCoefficients(c.Asset, c.Intercept, betas)
		}
		if err := p.writeCSV(res, backtest.ArtifactFactorBetas, len(set.Assets), func(path string) error {
			return backtest.WriteCoefficientsCSV(set, path)
		}); err != nil {
			return 0, err
		}
		res.Coefficients = set
		return len(set.Assets), nil
	})
	if err != nil {
		return err
	}

	err = p.stage(ctx, res, models.StageSynthesis, func(context.Context) (int, error) {
		ranking, err := factor.RankExpectedReturns(res.Coefficients, res.Premiums)
		if err != nil {
			return 0, err
		}
		if err := p.writeCSV(res, backtest.ArtifactExpected, len(ranking), func(path string) error {
			return backtest.WriteRankingCSV(ranking, path)
		}); err != nil {
			return 0, err
		}
		res.Ranking = ranking
		p.print(backtest.GenerateRankingReport(ranking, p.cfg.Portfolio.TopN))
		return len(ranking), nil
	})
	if err != nil {
		return err
	}

	return p.stage(ctx, res, models.StageBacktest, func(ctx context.Context) (int, error) {
		result, plan, err := p.engine.RunStatic(res.Ranking, res.Panel, ppy)
		if err != nil {
			metrics.RecordBacktestRun(backtest.StrategyStatic, "failed")
			return 0, err
		}
		risk, err := p.bootstrap(ctx, result.Returns, ppy)
		if err != nil {
			return 0, err
		}
		if err := p.writeCSV(res, backtest.ArtifactSummary, 1, func(path string) error {
			return backtest.GenerateCSVExport(result, path)
		}); err != nil {
			return 0, err
		}
		if err := p.writeCSV(res, backtest.ArtifactCumulative, len(result.Returns), func(path string) error {
			return backtest.WriteEquityCurveCSV(result.Curve(), path)
		}); err != nil {
			return 0, err
		}

		metrics.RecordBacktestRun(backtest.StrategyStatic, "success")
		metrics.UpdateStrategyPerformance(backtest.StrategyStatic, result.SharpeRatio, result.AnnualizedReturn, result.MaxDrawdown)
		p.log.LogPortfolio(backtest.StrategyStatic, result.Portfolio.Assets(), result.Portfolio[0].Weight)
		p.log.LogBacktestSummary(backtest.StrategyStatic, len(result.Returns), result.AnnualizedReturn, result.SharpeRatio, result.MaxDrawdown)
		p.print(backtest.GenerateConsoleReport("Static Factor Portfolio", backtest.Summarize(result, risk)))

		res.Static, res.Capital, res.StaticRisk = &result, &plan, risk
		return len(result.Returns), nil
	})
}

func (p *Pipeline) runRolling(ctx context.Context, res *PipelineResult) error {
	return p.stage(ctx, res, models.StageRolling, func(ctx context.Context) (int, error) {
		rolling, err := p.regressor.FitRolling(ctx, res.Panel, p.cfg.Universe.Tickers, p.cfg.Regression.RollingWindow)
		if err != nil {
			return 0, err
		}
		points := 0
		for _, r := range rolling {
			points += len(r.Points)
		}
		if err := p.writeCSV(res, backtest.ArtifactRollingBetas, points, func(path string) error {
			return backtest.WriteRollingCSV(rolling, p.schema, path)
		}); err != nil {
			return 0, err
		}
		res.Rolling = rolling
		return points, nil
	})
}

func (p *Pipeline) runML(ctx context.Context, res *PipelineResult) error {
	ppy := models.PeriodsPerYear(models.FrequencyMonthly)

	return p.stage(ctx, res, models.StageMLStrategy, func(ctx context.Context) (int, error) {
		monthly, err := ResampleMonthly(res.Panel)
		if err != nil {
			return 0, err
		}
		dataset, err := ml.BuildDataset(monthly, p.cfg.Universe.Tickers, p.schema)
		if err != nil {
			return 0, err
		}
		engine, err := ml.NewRollingEngine(p.mlConfig, p.logger)
		if err != nil {
			return 0, err
		}
		strategy, err := engine.Run(ctx, dataset)
		if err != nil {
			metrics.RecordBacktestRun(backtest.StrategyML, "failed")
			return 0, err
		}

		result, err := backtest.RunSeries(backtest.StrategyML, strategy.Dates, strategy.Returns, ppy, p.cfg.Backtest.RiskFreeRate)
		if err != nil {
			return 0, err
		}
		risk, err := p.bootstrap(ctx, result.Returns, ppy)
		if err != nil {
			return 0, err
		}
		if err := p.writeCSV(res, backtest.ArtifactMLReturns, len(result.Returns), func(path string) error {
			return backtest.WriteEquityCurveCSV(result.Curve(), path)
		}); err != nil {
			return 0, err
		}
		if err := p.writeCSV(res, backtest.ArtifactFeatureWeights, len(strategy.Features), func(path string) error {
			return backtest.WriteFeatureImportancesCSV(strategy.Features, strategy.Importances, path)
		}); err != nil {
			return 0, err
		}

		metrics.RecordBacktestRun(backtest.StrategyML, "success")
		metrics.UpdateStrategyPerformance(backtest.StrategyML, result.SharpeRatio, result.AnnualizedReturn, result.MaxDrawdown)
		p.log.LogBacktestSummary(backtest.StrategyML, len(result.Returns), result.AnnualizedReturn, result.SharpeRatio, result.MaxDrawdown)
		p.print(backtest.GenerateConsoleReport("Rolling Random Forest", backtest.Summarize(result, risk)))

		res.Strategy, res.ML, res.MLRisk = &strategy, &result, risk
		return len(result.Returns), nil
	})
}

func (p *Pipeline) runCompare(ctx context.Context, res *PipelineResult) error {
	return p.stage(ctx, res, models.StageCompare, func(context.Context) (int, error) {
		comparison := backtest.Compare(
			backtest.Summarize(*res.Static, res.StaticRisk),
			backtest.Summarize(*res.ML, res.MLRisk),
		)
		if p.cfg.Output.WriteJSON {
			if err := p.writeArtifact(res, backtest.ArtifactComparison, 1, func(path string) error {
				return backtest.WriteComparisonJSON(comparison, path)
			}); err != nil {
				return 0, err
			}
		}
		p.print(backtest.GenerateComparisonReport(comparison))
		res.Comparison = &comparison
		return 2, nil
	})
}

// persist stores a run row per backtested strategy when a repository is configured
func (p *Pipeline) persist(ctx context.Context, res *PipelineResult) error {
	if p.runs == nil {
		return nil
	}
	return p.stage(ctx, res, models.StagePersist, func(ctx context.Context) (int, error) {
		recommendation := ""
		if res.Comparison != nil {
			recommendation = res.Comparison.Recommendation
		}

		saved := 0
		if res.Static != nil {
			run, err := p.newRun(backtest.StrategyStatic, *res.Static, res.Static.Portfolio.Assets(), recommendation, res.Capital, res.StaticRisk)
			if err != nil {
				return 0, err
			}
			coefficients := repository.CoefficientRows(run.ID, res.Coefficients)
			rankings := repository.RankingRows(run.ID, res.Ranking)
			if err := p.runs.SaveRun(ctx, run, coefficients, rankings); err != nil {
				return 0, err
			}
			p.audit.LogRunPersisted(run.ID.String(), run.Strategy, len(coefficients), len(rankings))
			res.Persisted = append(res.Persisted, run.ID)
			saved++
		}
		if res.ML != nil {
			run, err := p.newRun(backtest.StrategyML, *res.ML, p.cfg.Universe.Tickers, recommendation, nil, res.MLRisk)
			if err != nil {
				return 0, err
			}
			if err := p.runs.SaveRun(ctx, run, nil, nil); err != nil {
				return 0, err
			}
			p.audit.LogRunPersisted(run.ID.String(), run.Strategy, 0, 0)
			res.Persisted = append(res.Persisted, run.ID)
			saved++
		}
		return saved, nil
	})
}

func (p *Pipeline) newRun(strategy string, result backtest.Result, assets []string, recommendation string, plan *backtest.CapitalPlan, risk *backtest.MonteCarloResult) (*models.BacktestRun, error) {
	full, err := json.Marshal(struct {
		Metrics   backtest.Metrics           `json:"metrics"`
		Bootstrap *backtest.MonteCarloResult `json:"bootstrap,omitempty"`
		Capital   *backtest.CapitalPlan      `json:"capital,omitempty"`
	}{result.Metrics, risk, plan})
	if err != nil {
		return nil, fmt.Errorf("failed to encode run results: %w", err)
	}

	initial := p.cfg.Portfolio.Capital
	final := initial * result.Curve().Final()
	if plan != nil {
		initial = plan.Capital.InexactFloat64()
		final = plan.FinalValue.InexactFloat64()
	}

	now := time.Now().UTC()
	run := &models.BacktestRun{
		ID:               uuid.New(),
		Strategy:         strategy,
		RunDate:          now,
		Assets:           assets,
		InitialCapital:   initial,
		FinalCapital:     final,
		AnnualizedReturn: result.AnnualizedReturn,
		SharpeRatio:      result.SharpeRatio,
		MaxDrawdown:      result.MaxDrawdown,
		Periods:          len(result.Returns),
		Recommendation:   recommendation,
		FullResults:      full,
		CreatedAt:        now,
	}
	if len(result.Dates) > 0 {
		run.StartDate = result.Dates[0]
		run.EndDate = result.Dates[len(result.Dates)-1]
	}
	return run, nil
}

func (p *Pipeline) bootstrap(ctx context.Context, returns []float64, ppy float64) (*backtest.MonteCarloResult, error) {
	if p.cfg.Backtest.BootstrapIterations == 0 || len(returns) < 2 {
		return nil, nil
	}
	risk, err := backtest.RunMonteCarlo(ctx, returns, backtest.MonteCarloConfig{
		Iterations:     p.cfg.Backtest.BootstrapIterations,
		Seed:           p.cfg.Backtest.BootstrapSeed,
		PeriodsPerYear: ppy,
	})
	if err != nil {
		return nil, err
	}
	return &risk, nil
}

// stage times fn, logs and records its outcome and wraps a failure with the stage
func (p *Pipeline) stage(ctx context.Context, res *PipelineResult, stage models.Stage, fn func(context.Context) (int, error)) error {
	runID := res.RunID.String()
	began := time.Now()

	rows, err := 0, ctx.Err()
	if err == nil {
		rows, err = fn(ctx)
	}
	duration := time.Since(began)
	metrics.RecordStageDuration(string(stage), duration.Seconds())

	if err != nil {
		stageErr := models.NewStageError(stage, err)
		var se *models.StageError
		asset := ""
		if errors.As(stageErr, &se) {
			asset = se.Asset
		}
		metrics.RecordStageFailure(string(stage), FailureKind(err))
		p.log.LogStageFailed(runID, string(stage), asset, err)
		return stageErr
	}

	p.log.LogStageCompleted(runID, string(stage), rows, duration)
	return nil
}

// writeCSV writes a CSV artifact when CSV output is enabled
func (p *Pipeline) writeCSV(res *PipelineResult, name string, rows int, write func(path string) error) error {
	if !p.cfg.Output.WriteCSV {
		return nil
	}
	return p.writeArtifact(res, name, rows, write)
}

func (p *Pipeline) writeArtifact(res *PipelineResult, name string, rows int, write func(path string) error) error {
	path := filepath.Join(p.cfg.Output.Directory, name)
	if err := write(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	res.Artifacts[name] = path
	p.audit.LogArtifactWritten(res.RunID.String(), name, path, rows)
	return nil
}

func (p *Pipeline) print(report string) {
	if !p.cfg.Output.Console {
		return
	}
	fmt.Fprintln(p.out, report)
}

// FailureKind classifies an error for the stage failure counter
func FailureKind(err error) string {
	var dsErr datasource.DataSourceError
	switch {
	case errors.Is(err, models.ErrEmptyAlignment):
		return "empty_alignment"
	case errors.Is(err, models.ErrUnderdeterminedRegression):
		return "underdetermined"
	case errors.Is(err, models.ErrNumericalInstability):
		return "numerical_instability"
	case errors.Is(err, models.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, models.ErrUntrainedModel):
		return "untrained_model"
	case errors.Is(err, models.ErrEmptySelection):
		return "empty_selection"
	case errors.Is(err, models.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.As(err, &dsErr):
		return "data_source"
	default:
		return "other"
	}
}
