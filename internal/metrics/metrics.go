// Package metrics provides the centralized Prometheus metrics registry for the factor pipeline.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "factorlab"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	PipelineRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Total number of pipeline runs by mode and status",
	}, []string{"mode", "status"})
	StageFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_failures_total",
		Help:      "Total number of stage failures by stage and error kind",
	}, []string{"stage", "kind"})
	DataSourceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "datasource_requests_total",
		Help:      "Total number of data source fetches by source and status",
	}, []string{"source", "status"})
	PriceCacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_cache_hits_total",
		Help:      "Total number of price fetches served from cache",
	})
)

// Gauge metrics
var (
	LastRunTimestamp = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last successful pipeline run",
	})
	AlignedObservations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "aligned_observations",
		Help:      "Number of dates in the last aligned panel",
	})
)

// Histogram metrics
var (
	StageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"stage"})
	PipelineDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Duration of full pipeline runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(PipelineRunsTotal)
		registry.MustRegister(StageFailuresTotal)
		registry.MustRegister(DataSourceRequestsTotal)
		registry.MustRegister(PriceCacheHitsTotal)

		registry.MustRegister(LastRunTimestamp)
		registry.MustRegister(AlignedObservations)

		registry.MustRegister(StageDuration)
		registry.MustRegister(PipelineDuration)

		registry.MustRegister(BacktestRunsTotal)
		registry.MustRegister(StrategySharpeRatio)
		registry.MustRegister(StrategyAnnualizedReturn)
		registry.MustRegister(StrategyMaxDrawdown)

		registry.MustRegister(MLRetrainsTotal)
		registry.MustRegister(MLSelectionsTotal)
		registry.MustRegister(MLTrainingDuration)
		registry.MustRegister(MLFeatureImportance)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordPipelineRun records a pipeline run outcome and, on success, its duration.
func RecordPipelineRun(mode, status string, durationSeconds float64, finishedUnix float64) {
	PipelineRunsTotal.WithLabelValues(mode, status).Inc()
	if status == "success" {
		PipelineDuration.Observe(durationSeconds)
		LastRunTimestamp.Set(finishedUnix)
	}
}

// RecordStageDuration records the duration of a pipeline stage.
func RecordStageDuration(stage string, durationSeconds float64) {
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
}

// RecordStageFailure records a failed stage with the kind of error.
func RecordStageFailure(stage, kind string) {
	StageFailuresTotal.WithLabelValues(stage, kind).Inc()
}

// RecordDataSourceRequest records a data source fetch.
func RecordDataSourceRequest(source, status string) {
	DataSourceRequestsTotal.WithLabelValues(source, status).Inc()
}

// RecordPriceCacheHit records a price fetch served from cache.
func RecordPriceCacheHit() {
	PriceCacheHitsTotal.Inc()
}

// UpdateAlignedObservations updates the aligned panel size gauge.
func UpdateAlignedObservations(rows int) {
	AlignedObservations.Set(float64(rows))
}
