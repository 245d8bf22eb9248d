package main

import (
	"time"

	"github.com/liamcoop/healthrisk/assessment"
	"github.com/liamcoop/healthrisk/features"
	"github.com/liamcoop/healthrisk/rules"
)

// AssessmentRequest is either raw form input or, when Values is set, an
// already assembled feature vector in field order.
type AssessmentRequest struct {
	features.Input
	Values []float64 `json:"vector,omitempty"`
}

// AssessmentResponse wraps a completed assessment.
type AssessmentResponse struct {
	*assessment.Result
	EvaluationTime string `json:"evaluationTime"`
}

// ImportanceResponse lists the model's feature importance in field order.
type ImportanceResponse struct {
	Importance []assessment.Factor `json:"importance"`
}

// CreateRuleRequest is the body for creating a rule. ID is generated when empty.
type CreateRuleRequest struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Expression string `json:"expression"`
	Advice     string `json:"advice"`
	Position   int    `json:"position"`
	Active     *bool  `json:"active,omitempty"`
}

// UpdateRuleRequest is the body for replacing a rule. Omitted fields keep
// their stored values.
type UpdateRuleRequest struct {
	Name       *string `json:"name,omitempty"`
	Expression *string `json:"expression,omitempty"`
	Advice     *string `json:"advice,omitempty"`
	Position   *int    `json:"position,omitempty"`
	Active     *bool   `json:"active,omitempty"`
}

// apply merges the request onto a stored rule.
func (req UpdateRuleRequest) apply(r rules.Rule) *rules.Rule {
	if req.Name != nil {
		r.Name = *req.Name
	}
	if req.Expression != nil {
		r.Expression = *req.Expression
	}
	if req.Advice != nil {
		r.Advice = *req.Advice
	}
	if req.Position != nil {
		r.Position = *req.Position
	}
	if req.Active != nil {
		r.Active = *req.Active
	}
	return &r
}

// RulesListResponse lists every stored rule in evaluation order.
type RulesListResponse struct {
	Rules []*rules.Rule `json:"rules"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse reports the readiness of the model and its backing services.
type HealthResponse struct {
	Status     string            `json:"status"`
	ModelReady bool              `json:"modelReady"`
	Checks     map[string]string `json:"checks,omitempty"`
	Time       time.Time         `json:"time"`
}
