package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// PipelineLogger provides dedicated logging for pipeline stages.
type PipelineLogger struct {
	*logrus.Entry
}

// NewPipelineLogger creates a new pipeline logger.
func NewPipelineLogger(baseLogger *logrus.Logger) *PipelineLogger {
	return &PipelineLogger{
		Entry: baseLogger.WithField("component", "pipeline"),
	}
}

// LogRunStarted logs the start of a pipeline run.
func (pl *PipelineLogger) LogRunStarted(runID, mode string, assets int, start, end time.Time) {
	pl.WithFields(logrus.Fields{
		"run_id": runID,
		"mode":   mode,
		"assets": assets,
		"start":  start.Format("2006-01-02"),
		"end":    end.Format("2006-01-02"),
	}).Info("Pipeline run started")
}

// LogStageCompleted logs a finished stage with its duration.
func (pl *PipelineLogger) LogStageCompleted(runID, stage string, rows int, duration time.Duration) {
	pl.WithFields(logrus.Fields{
		"run_id":      runID,
		"stage":       stage,
		"rows":        rows,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}).Info("Pipeline stage completed")
}

// LogStageFailed logs a stage failure.
func (pl *PipelineLogger) LogStageFailed(runID, stage, asset string, err error) {
	pl.WithFields(logrus.Fields{
		"run_id": runID,
		"stage":  stage,
		"asset":  asset,
		"error":  err.Error(),
	}).Error("Pipeline stage failed")
}

// LogCoefficients logs one asset's fitted loadings.
func (pl *PipelineLogger) LogCoefficients(asset string, intercept float64, betas map[string]float64) {
	pl.WithFields(logrus.Fields{
		"asset":     asset,
		"intercept": intercept,
		"betas":     betas,
	}).Debug("Factor loadings estimated")
}

// LogPortfolio logs the constructed portfolio.
func (pl *PipelineLogger) LogPortfolio(strategy string, assets []string, weight float64) {
	pl.WithFields(logrus.Fields{
		"strategy": strategy,
		"assets":   assets,
		"size":     len(assets),
		"weight":   weight,
	}).Info("Portfolio constructed")
}

// LogBacktestSummary logs backtest headline metrics.
func (pl *PipelineLogger) LogBacktestSummary(strategy string, periods int, annualizedReturn, sharpe, maxDrawdown float64) {
	pl.WithFields(logrus.Fields{
		"strategy":          strategy,
		"periods":           periods,
		"annualized_return": annualizedReturn,
		"sharpe_ratio":      sharpe,
		"max_drawdown":      maxDrawdown,
	}).Info("Backtest complete")
}

// LogRunCompleted logs the end of a pipeline run.
func (pl *PipelineLogger) LogRunCompleted(runID, mode string, duration time.Duration) {
	pl.WithFields(logrus.Fields{
		"run_id":      runID,
		"mode":        mode,
		"duration_ms": float64(duration.Microseconds()) / 1000,
	}).Info("Pipeline run completed")
}
