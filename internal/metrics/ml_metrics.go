package metrics

import "github.com/prometheus/client_golang/prometheus"

// ML strategy metrics
var (
	MLRetrainsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ml_retrains_total",
		Help:      "Total number of random forest retrains",
	})
	MLSelectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ml_selections_total",
		Help:      "Total number of holdout months with a recorded selection",
	})
	MLTrainingDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ml_training_duration_seconds",
		Help:      "Duration of random forest training in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	})
	MLFeatureImportance = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ml_feature_importance",
		Help:      "Impurity-based feature importance of the latest model",
	}, []string{"feature"})
)

// RecordRetrain records a model retrain and its duration.
func RecordRetrain(durationSeconds float64) {
	MLRetrainsTotal.Inc()
	MLTrainingDuration.Observe(durationSeconds)
}

// RecordSelection records a holdout month with a selection.
func RecordSelection() {
	MLSelectionsTotal.Inc()
}

// UpdateFeatureImportances sets the importance gauge for each feature.
func UpdateFeatureImportances(importances map[string]float64) {
	for feature, value := range importances {
		MLFeatureImportance.WithLabelValues(feature).Set(value)
	}
}
