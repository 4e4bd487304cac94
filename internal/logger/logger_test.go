package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() (*logrus.Logger, *bytes.Buffer) {
	log := logrus.New()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.DebugLevel)
	return log, buf
}

func parseLogOutput(buf *bytes.Buffer) map[string]interface{} {
	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	if err != nil {
		return nil
	}
	return logEntry
}

func TestNewLogger(t *testing.T) {
	log := NewLogger("debug", "production")
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	_, isJSON := log.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	log = NewLogger("loud", "development")
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	_, isText := log.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func TestPipelineLoggerStageCompleted(t *testing.T) {
	log, buf := setupTestLogger()
	pipelineLogger := NewPipelineLogger(log)

	pipelineLogger.LogStageCompleted("run_1", "regression", 1510, 1500*time.Microsecond)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "pipeline", logEntry["component"])
	assert.Equal(t, "regression", logEntry["stage"])
	assert.Equal(t, float64(1510), logEntry["rows"])
	assert.Equal(t, 1.5, logEntry["duration_ms"])
}

func TestPipelineLoggerStageFailed(t *testing.T) {
	log, buf := setupTestLogger()
	pipelineLogger := NewPipelineLogger(log)

	pipelineLogger.LogStageFailed("run_1", "regression", "MSFT", errors.New("ill-conditioned design matrix"))

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "error", logEntry["level"])
	assert.Equal(t, "MSFT", logEntry["asset"])
	assert.Equal(t, "ill-conditioned design matrix", logEntry["error"])
}

func TestPipelineLoggerBacktestSummary(t *testing.T) {
	log, buf := setupTestLogger()
	pipelineLogger := NewPipelineLogger(log)

	pipelineLogger.LogBacktestSummary("static", 1500, 0.12, 0.9, -0.3)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "static", logEntry["strategy"])
	assert.Equal(t, 0.9, logEntry["sharpe_ratio"])
	assert.Equal(t, -0.3, logEntry["max_drawdown"])
}

func TestMLLoggerModelTraining(t *testing.T) {
	log, buf := setupTestLogger()
	mlLogger := NewMLLogger(log)

	mlLogger.LogModelTraining(time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC), 480, 100, 2*time.Second)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "ml", logEntry["component"])
	assert.Equal(t, "2023-06-30", logEntry["as_of"])
	assert.Equal(t, float64(480), logEntry["training_rows"])
	assert.Equal(t, 2.0, logEntry["training_duration"])
}

func TestMLLoggerStrategySummary(t *testing.T) {
	log, buf := setupTestLogger()
	mlLogger := NewMLLogger(log)

	mlLogger.LogStrategySummary(22, 8, 0.15, 1.1)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, float64(22), logEntry["periods"])
	assert.Equal(t, float64(8), logEntry["retrains"])
}

func TestAuditLoggerArtifactWritten(t *testing.T) {
	log, buf := setupTestLogger()
	auditLogger := NewAuditLogger(log)

	auditLogger.LogArtifactWritten("run_1", "factor_betas", "results/factor_betas.csv", 50)

	logEntry := parseLogOutput(buf)
	require.NotNil(t, logEntry)
	assert.Equal(t, "audit", logEntry["component"])
	assert.Equal(t, "factor_betas", logEntry["artifact"])
	assert.Equal(t, float64(50), logEntry["rows"])
}

func TestLoggerJSONFormat(t *testing.T) {
	log, buf := setupTestLogger()
	NewAuditLogger(log).LogConfigLoaded("config/config.yaml", "development", 50, false)

	var logEntry map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &logEntry)
	assert.NoError(t, err)
	assert.NotEmpty(t, logEntry)
}

func BenchmarkPipelineLoggerStageCompleted(b *testing.B) {
	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	pipelineLogger := NewPipelineLogger(log)

	for i := 0; i < b.N; i++ {
		pipelineLogger.LogStageCompleted("run_1", "regression", 1510, time.Millisecond)
	}
}
