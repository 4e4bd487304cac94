package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// MLLogger provides dedicated logging for ML operations.
type MLLogger struct {
	*logrus.Entry
}

// NewMLLogger creates a new ML logger.
func NewMLLogger(baseLogger *logrus.Logger) *MLLogger {
	return &MLLogger{
		Entry: baseLogger.WithField("component", "ml"),
	}
}

// LogModelTraining logs a retrain on an expanding window.
func (ml *MLLogger) LogModelTraining(asOf time.Time, rows, trees int, duration time.Duration) {
	ml.WithFields(logrus.Fields{
		"as_of":             asOf.Format("2006-01-02"),
		"training_rows":     rows,
		"trees":             trees,
		"training_duration": duration.Seconds(),
	}).Info("Model training completed")
}

// LogSelection logs the assets picked for the next holding period.
func (ml *MLLogger) LogSelection(asOf time.Time, candidates int, selected []string, realized float64) {
	ml.WithFields(logrus.Fields{
		"as_of":      asOf.Format("2006-01-02"),
		"candidates": candidates,
		"selected":   selected,
		"realized":   realized,
	}).Debug("Holdout selection recorded")
}

// LogFeatureImportance logs the importances of the latest snapshot.
func (ml *MLLogger) LogFeatureImportance(importances map[string]float64) {
	ml.WithFields(logrus.Fields{
		"importances": importances,
	}).Info("Feature importances computed")
}

// LogStrategySummary logs the realized ML strategy metrics.
func (ml *MLLogger) LogStrategySummary(periods, retrains int, annualizedReturn, sharpe float64) {
	ml.WithFields(logrus.Fields{
		"periods":           periods,
		"retrains":          retrains,
		"annualized_return": annualizedReturn,
		"sharpe_ratio":      sharpe,
	}).Info("ML strategy complete")
}

// LogMLPredictionError logs ML prediction errors.
func (ml *MLLogger) LogMLPredictionError(asOf time.Time, errorReason string) {
	ml.WithFields(logrus.Fields{
		"as_of":        asOf.Format("2006-01-02"),
		"error_reason": errorReason,
	}).Error("ML prediction failed")
}
