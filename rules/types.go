package rules

import (
	"errors"
	"time"
)

var (
	// ErrRuleNotFound is returned when a rule ID does not exist in the store.
	ErrRuleNotFound = errors.New("rule not found")

	// ErrRuleExists is returned when adding a rule whose ID is already taken.
	ErrRuleExists = errors.New("rule already exists")

	// ErrInvalidRule is returned when a rule fails validation or compilation.
	ErrInvalidRule = errors.New("invalid rule")
)

// Rule is a recommendation rule: when Expression evaluates to true for an
// assessment, Advice is added to its recommendations.
// Active rules are evaluated in ascending Position order.
type Rule struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Expression string    `json:"expression" yaml:"expression"`
	Advice     string    `json:"advice" yaml:"advice"`
	Position   int       `json:"position" yaml:"position"`
	Active     bool      `json:"active" yaml:"active"`
	CreatedAt  time.Time `json:"createdAt" yaml:"-"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"-"`
}

// EvaluationResult contains the outcome of evaluating a rule
type EvaluationResult struct {
	RuleID   string `json:"ruleId"`
	RuleName string `json:"ruleName"`
	Advice   string `json:"advice,omitempty"`
	Matched  bool   `json:"matched"`
	Error    error  `json:"-"`
	Trace    any    `json:"-"` // CEL evaluation state
}
