// Package metrics defines the Prometheus collectors for assessments and
// model training.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/liamcoop/healthrisk/internal/logger"
)

const namespace = "healthrisk"

// Metrics groups the collectors registered by New.
type Metrics struct {
	// Assessments counts completed assessments.
	// Labels: risk_level (low, medium, high)
	Assessments *prometheus.CounterVec

	// AssessmentErrors counts failed assessments.
	// Labels: reason (invalid_input, model_not_ready, internal)
	AssessmentErrors *prometheus.CounterVec

	// PredictionDuration measures model inference latency.
	PredictionDuration prometheus.Histogram

	// TrainingDuration records how long the model took to train.
	TrainingDuration prometheus.Gauge

	// RecommendationsPerAssessment tracks how many advice lines were returned.
	RecommendationsPerAssessment prometheus.Histogram
}

// New registers the collectors with reg. A nil reg leaves them unregistered,
// which tests use to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	m := &Metrics{
		Assessments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessments_total",
			Help:      "Total completed risk assessments by predicted level",
		}, []string{"risk_level"}),

		AssessmentErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "assessment_errors_total",
			Help:      "Total failed risk assessments by reason",
		}, []string{"reason"}),

		PredictionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "prediction_duration_seconds",
			Help:      "Risk model inference latency in seconds",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
		}),

		TrainingDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "model",
			Name:      "training_duration_seconds",
			Help:      "Time taken to train the risk model",
		}),

		RecommendationsPerAssessment: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommendations_per_assessment",
			Help:      "Number of recommendations returned per assessment",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
	}

	if reg != nil {
		reg.MustRegister(logCounters()...)
	}
	return m
}

// logCounters exposes the logger's error and HTTP status counters.
func logCounters() []prometheus.Collector {
	return []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_errors_total",
			Help:      "Total errors logged, including sampled-out entries",
		}, func() float64 { return float64(logger.TotalErrors.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_warnings_total",
			Help:      "Total warnings logged, including sampled-out entries",
		}, func() float64 { return float64(logger.TotalWarnings.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "responses_5xx_total",
			Help:      "Total HTTP responses with a 5xx status",
		}, func() float64 { return float64(logger.Total5xxErrors.Load()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "responses_4xx_total",
			Help:      "Total HTTP responses with a 4xx status",
		}, func() float64 { return float64(logger.Total4xxErrors.Load()) }),
	}
}
