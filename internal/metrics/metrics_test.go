package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/healthrisk/internal/logger"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Assessments.WithLabelValues("low").Inc()
	m.Assessments.WithLabelValues("high").Add(2)
	m.AssessmentErrors.WithLabelValues("invalid_input").Inc()
	m.PredictionDuration.Observe(0.001)
	m.TrainingDuration.Set(1.5)
	m.RecommendationsPerAssessment.Observe(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Assessments.WithLabelValues("low")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Assessments.WithLabelValues("high")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssessmentErrors.WithLabelValues("invalid_input")))
	assert.Equal(t, 1.5, testutil.ToFloat64(m.TrainingDuration))

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"healthrisk_assessments_total",
		"healthrisk_assessment_errors_total",
		"healthrisk_model_prediction_duration_seconds",
		"healthrisk_model_training_duration_seconds",
		"healthrisk_recommendations_per_assessment",
		"healthrisk_log_errors_total",
		"healthrisk_http_responses_4xx_total",
	} {
		assert.True(t, names[want], "missing metric %s", want)
	}
}

func TestLogCountersTrackLogger(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	before, err := testutil.GatherAndCount(reg, "healthrisk_http_responses_4xx_total")
	require.NoError(t, err)
	assert.Equal(t, 1, before)

	start := logger.Total4xxErrors.Load()
	logger.WarnHTTP4xx()
	assert.Equal(t, start+1, logger.Total4xxErrors.Load())
}

func TestNewWithNilRegisterer(t *testing.T) {
	// Two unregistered sets must not collide.
	a := New(nil)
	b := New(nil)

	a.Assessments.WithLabelValues("low").Inc()
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Assessments.WithLabelValues("low")))
}
