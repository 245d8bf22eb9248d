// Package assessment runs a complete health risk assessment: input
// validation, vector assembly, risk prediction and recommendations.
package assessment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liamcoop/healthrisk/features"
	"github.com/liamcoop/healthrisk/internal/logger"
	"github.com/liamcoop/healthrisk/internal/metrics"
	"github.com/liamcoop/healthrisk/riskmodel"
)

// Predictor is the classifier side of an assessment.
type Predictor interface {
	Predict(v features.Vector) (riskmodel.RiskLevel, riskmodel.Probabilities, error)
	FeatureImportance() ([features.Count]float64, error)
}

// Recommender turns a vector and its predicted level into advice.
type Recommender interface {
	Recommend(v features.Vector, level riskmodel.RiskLevel) ([]string, error)
}

// ClassProbability is the probability of one risk level.
type ClassProbability struct {
	Level       riskmodel.RiskLevel `json:"level"`
	Label       string              `json:"label"`
	Probability float64             `json:"probability"`
}

// Factor is the importance of one input feature.
type Factor struct {
	Key        string  `json:"key"`
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// Result is the outcome of a single assessment.
type Result struct {
	RiskLevel       riskmodel.RiskLevel `json:"riskLevel"`
	Label           string              `json:"label"`
	Color           string              `json:"color"`
	Probabilities   []ClassProbability  `json:"probabilities"`
	Recommendations []string            `json:"recommendations"`
	Importance      []Factor            `json:"importance"`
	Features        features.Vector     `json:"features"`
}

// Assessor composes a Predictor and a Recommender. Safe for concurrent use
// when both collaborators are.
type Assessor struct {
	model   Predictor
	advisor Recommender
	metrics *metrics.Metrics
}

// Option configures an Assessor.
type Option func(*Assessor)

// WithMetrics records assessment metrics on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Assessor) {
		a.metrics = m
	}
}

// NewAssessor creates an Assessor over a trained model and a rules engine.
func NewAssessor(model Predictor, advisor Recommender, opts ...Option) *Assessor {
	a := &Assessor{
		model:   model,
		advisor: advisor,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = metrics.New(nil)
	}
	return a
}

// Assess validates raw form input and assesses it.
func (a *Assessor) Assess(ctx context.Context, in features.Input) (*Result, error) {
	v, err := in.Vector()
	if err != nil {
		a.fail(err)
		return nil, err
	}
	return a.AssessVector(ctx, v)
}

// AssessVector assesses an already assembled vector. Values are not
// range-checked, only shape and finiteness.
func (a *Assessor) AssessVector(ctx context.Context, v features.Vector) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	level, proba, err := a.model.Predict(v)
	a.metrics.PredictionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		a.fail(err)
		return nil, fmt.Errorf("failed to predict risk: %w", err)
	}

	recs, err := a.advisor.Recommend(v, level)
	if err != nil {
		a.fail(err)
		return nil, fmt.Errorf("failed to generate recommendations: %w", err)
	}

	importance, err := a.Importance()
	if err != nil {
		a.fail(err)
		return nil, err
	}

	a.metrics.Assessments.WithLabelValues(level.String()).Inc()
	a.metrics.RecommendationsPerAssessment.Observe(float64(len(recs)))
	logger.Debug("assessment completed",
		"risk_level", level.String(),
		"recommendations", len(recs),
		"duration", time.Since(start))

	return &Result{
		RiskLevel:       level,
		Label:           level.Label(),
		Color:           level.Color(),
		Probabilities:   breakdown(proba),
		Recommendations: recs,
		Importance:      importance,
		Features:        v,
	}, nil
}

// Importance returns the model's feature importance, in feature order.
func (a *Assessor) Importance() ([]Factor, error) {
	scores, err := a.model.FeatureImportance()
	if err != nil {
		return nil, fmt.Errorf("failed to get feature importance: %w", err)
	}

	factors := make([]Factor, features.Count)
	for i, f := range features.Fields {
		factors[i] = Factor{
			Key:        f.Key(),
			Name:       f.Name(),
			Importance: scores[i],
		}
	}
	return factors, nil
}

func breakdown(p riskmodel.Probabilities) []ClassProbability {
	out := make([]ClassProbability, riskmodel.ClassCount)
	for i := range p {
		level := riskmodel.RiskLevel(i)
		out[i] = ClassProbability{
			Level:       level,
			Label:       level.Label(),
			Probability: p[i],
		}
	}
	return out
}

func (a *Assessor) fail(err error) {
	a.metrics.AssessmentErrors.WithLabelValues(Reason(err)).Inc()
}

// Reason classifies an assessment error for metrics and logs.
func Reason(err error) string {
	switch {
	case errors.Is(err, features.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, riskmodel.ErrModelNotReady):
		return "model_not_ready"
	default:
		return "internal"
	}
}

// TrainModel creates and trains a model, recording the training time on m
// when it is non-nil.
func TrainModel(ctx context.Context, cfg riskmodel.Config, m *metrics.Metrics) (*riskmodel.Model, error) {
	start := time.Now()
	model, err := riskmodel.CreateModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to train risk model: %w", err)
	}

	elapsed := time.Since(start)
	if m != nil {
		m.TrainingDuration.Set(elapsed.Seconds())
	}

	trained := model.Config()
	logger.Info("risk model trained",
		"trees", trained.Trees,
		"samples", trained.Samples,
		"seed", trained.Seed,
		"duration", elapsed)
	return model, nil
}
