package rules

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	maxIDLength         = 100
	maxNameLength       = 100
	maxExpressionLength = 4096
	maxAdviceLength     = 500
)

var validRuleID = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_-]*$`)

// ValidateRule checks a rule's fields before it is compiled or stored.
// Expression syntax is checked separately by the engine.
func ValidateRule(r *Rule) error {
	if r == nil {
		return fmt.Errorf("rule cannot be nil")
	}

	if err := validateRuleID(r.ID); err != nil {
		return fmt.Errorf("invalid rule ID %q: %w", r.ID, err)
	}

	if err := validateText("name", r.Name, maxNameLength); err != nil {
		return err
	}

	if strings.TrimSpace(r.Expression) == "" {
		return fmt.Errorf("expression cannot be empty")
	}
	if len(r.Expression) > maxExpressionLength {
		return fmt.Errorf("expression length %d exceeds maximum of %d characters", len(r.Expression), maxExpressionLength)
	}

	if err := validateText("advice", r.Advice, maxAdviceLength); err != nil {
		return err
	}

	if r.Position < 0 {
		return fmt.Errorf("position %d cannot be negative", r.Position)
	}

	return nil
}

// validateRuleID accepts slugs and UUIDs of 1-100 characters.
func validateRuleID(id string) error {
	if len(id) == 0 {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(id) > maxIDLength {
		return fmt.Errorf("identifier length %d exceeds maximum of %d characters", len(id), maxIDLength)
	}
	if !validRuleID.MatchString(id) {
		return fmt.Errorf("must match pattern %s (letters, digits, underscores and hyphens, not starting with a hyphen)", validRuleID)
	}
	return nil
}

func validateText(field, value string, max int) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	if strings.TrimSpace(value) != value {
		return fmt.Errorf("%s has leading/trailing whitespace: %q", field, value)
	}
	if len(value) > max {
		return fmt.Errorf("%s length %d exceeds maximum of %d characters", field, len(value), max)
	}
	return nil
}
