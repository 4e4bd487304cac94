package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/factorlab/internal/metrics"
)

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubPipeline struct {
	err error
	ok  bool
}

func (p stubPipeline) LastRunOutcome() (bool, error) { return p.ok, p.err }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := NewServer(Config{ServiceName: "factorlab-scheduler", Version: "test", Port: "0"})

	rec := get(t, s.Handler(), "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "factorlab-scheduler", body.Service)
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name     string
		ready    bool
		db       DatabasePinger
		pipeline PipelineStatus
		want     int
		check    string
		value    string
	}{
		{"not marked ready", false, nil, nil, http.StatusServiceUnavailable, "service", "not_ready"},
		{"ready without runs", true, nil, stubPipeline{}, http.StatusOK, "pipeline", "no_runs"},
		{"last run ok", true, stubPinger{}, stubPipeline{ok: true}, http.StatusOK, "database", "ok"},
		{"last run failed", true, nil, stubPipeline{err: errors.New("align: no overlap"), ok: true}, http.StatusServiceUnavailable, "pipeline", "last run failed: align: no overlap"},
		{"database down", true, stubPinger{err: errors.New("refused")}, nil, http.StatusServiceUnavailable, "database", "error: refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(Config{ServiceName: "factorlab", Port: "0", DB: tt.db, Pipeline: tt.pipeline})
			s.SetReady(tt.ready)

			rec := get(t, s.Handler(), "/ready")
			assert.Equal(t, tt.want, rec.Code)

			var body ReadyResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.value, body.Checks[tt.check])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.InitRegistry()
	metrics.RecordPipelineRun("static", "success", 1.5, 1700000000)

	s := NewServer(Config{ServiceName: "factorlab", Port: "0", MetricsPath: "/metrics"})
	rec := get(t, s.Handler(), "/metrics")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "factorlab_pipeline_runs_total")

	without := NewServer(Config{ServiceName: "factorlab", Port: "0"})
	assert.Equal(t, http.StatusNotFound, get(t, without.Handler(), "/metrics").Code)
}

type deadlinePinger struct{ sawDeadline *bool }

func (p deadlinePinger) Ping(ctx context.Context) error {
	_, *p.sawDeadline = ctx.Deadline()
	return nil
}

func TestReadyReportsEveryCheck(t *testing.T) {
	var sawDeadline bool
	s := NewServer(Config{
		ServiceName: "factorlab",
		Port:        "0",
		DB:          deadlinePinger{sawDeadline: &sawDeadline},
		Pipeline:    stubPipeline{err: errors.New("ml_strategy: insufficient history"), ok: true},
	})
	assert.False(t, s.IsReady())
	s.SetReady(true)
	assert.True(t, s.IsReady())

	rec := get(t, s.Handler(), "/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ReadyResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not_ready", body.Status)
	assert.Equal(t, map[string]string{
		"service":  "ok",
		"database": "ok",
		"pipeline": "last run failed: ml_strategy: insufficient history",
	}, body.Checks)
	assert.True(t, sawDeadline, "database ping is bounded by a timeout")
}
