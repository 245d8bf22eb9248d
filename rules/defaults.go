package rules

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/healthrisk/features"
	"github.com/liamcoop/healthrisk/riskmodel"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

type ruleFile struct {
	Rules []*Rule `yaml:"rules"`
}

// LoadRules decodes and validates a YAML rule file.
// Unknown keys and duplicate IDs are rejected.
func LoadRules(r io.Reader) ([]*Rule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f ruleFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode rule file: %w", err)
	}

	seen := make(map[string]bool, len(f.Rules))
	for i, rule := range f.Rules {
		if err := ValidateRule(rule); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		if seen[rule.ID] {
			return nil, fmt.Errorf("rule %d: duplicate ID %s", i, rule.ID)
		}
		seen[rule.ID] = true
	}

	return f.Rules, nil
}

// DefaultRules returns a fresh copy of the built-in recommendation rules.
func DefaultRules() ([]*Rule, error) {
	return LoadRules(bytes.NewReader(defaultRulesYAML))
}

// Seed adds every rule whose ID is not yet present in the engine's store.
// It returns the number of rules added.
func Seed(en *Engine, rules []*Rule) (int, error) {
	added := 0
	for _, rule := range rules {
		_, err := en.Rule(rule.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrRuleNotFound) {
			return added, fmt.Errorf("failed to look up rule %s: %w", rule.ID, err)
		}

		if err := en.AddRule(rule); err != nil {
			return added, fmt.Errorf("failed to seed rule %s: %w", rule.ID, err)
		}
		added++
	}
	return added, nil
}

// NewDefaultEngine returns an engine over an in-memory store holding the
// built-in rules.
func NewDefaultEngine() (*Engine, error) {
	defaults, err := DefaultRules()
	if err != nil {
		return nil, err
	}

	en, err := NewEngine(NewInMemoryRuleStore())
	if err != nil {
		return nil, err
	}

	if _, err := Seed(en, defaults); err != nil {
		return nil, err
	}
	return en, nil
}

var defaultEngine = sync.OnceValues(NewDefaultEngine)

// GenerateRecommendations applies the built-in rules to a feature vector and
// risk level. The result is deterministic and never empty.
func GenerateRecommendations(v features.Vector, level riskmodel.RiskLevel) ([]string, error) {
	en, err := defaultEngine()
	if err != nil {
		return nil, err
	}
	return en.Recommend(v, level)
}
