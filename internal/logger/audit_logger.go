package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for run outputs.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogArtifactWritten logs an artifact file written to disk.
func (al *AuditLogger) LogArtifactWritten(runID, artifact, path string, rows int) {
	al.WithFields(logrus.Fields{
		"run_id":   runID,
		"artifact": artifact,
		"path":     path,
		"rows":     rows,
	}).Info("Artifact written")
}

// LogRunPersisted logs a run summary stored in the database.
func (al *AuditLogger) LogRunPersisted(runID, strategy string, coefficients, rankings int) {
	al.WithFields(logrus.Fields{
		"run_id":       runID,
		"strategy":     strategy,
		"coefficients": coefficients,
		"rankings":     rankings,
	}).Info("Run persisted")
}

// LogConfigLoaded logs the effective configuration source.
func (al *AuditLogger) LogConfigLoaded(path, environment string, tickers int, secretsOverlay bool) {
	al.WithFields(logrus.Fields{
		"path":            path,
		"environment":     environment,
		"tickers":         tickers,
		"secrets_overlay": secretsOverlay,
	}).Info("Configuration loaded")
}
