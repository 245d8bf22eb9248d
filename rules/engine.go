package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/liamcoop/healthrisk/features"
	"github.com/liamcoop/healthrisk/internal/logger"
	"github.com/liamcoop/healthrisk/riskmodel"
)

// DefaultAdvice is returned when no rule matches an assessment.
const DefaultAdvice = "Maintain your current healthy lifestyle habits."

// Names of the variables available to rule expressions.
const (
	FeaturesVar  = "Features"
	RiskLevelVar = "RiskLevel"
)

// costLimit bounds the evaluation cost of a single expression.
const costLimit = 1000000

// Engine manages the CEL environment and rule compilation/evaluation.
// Safe for concurrent use.
type Engine struct {
	env      *cel.Env
	store    RuleStore
	cache    RulesCache          // cache for active rules list
	programs map[string]compiled // ruleID -> compiled program
	mu       sync.RWMutex
}

// compiled pairs a program with the expression it was built from.
type compiled struct {
	expression string
	prog       cel.Program
}

// Option configures an Engine.
type Option func(*Engine)

// WithCache replaces the default in-memory active-rules cache.
func WithCache(c RulesCache) Option {
	return func(en *Engine) {
		en.cache = c
	}
}

// NewEnv creates the CEL environment rule expressions are compiled against:
// Features is a map of feature key to value (double) and RiskLevel is the
// predicted level (int).
func NewEnv() (*cel.Env, error) {
	env, err := cel.NewEnv(
		cel.Variable(FeaturesVar, cel.MapType(cel.StringType, cel.DoubleType)),
		cel.Variable(RiskLevelVar, cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewEngine creates a rules engine over store and compiles its active rules.
func NewEngine(store RuleStore, opts ...Option) (*Engine, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}

	return NewEngineWithEnv(env, store, opts...)
}

// NewEngineWithEnv creates a rules engine with a custom CEL environment.
func NewEngineWithEnv(env *cel.Env, store RuleStore, opts ...Option) (*Engine, error) {
	en := &Engine{
		env:      env,
		store:    store,
		cache:    NewInMemoryRulesCache(DefaultCacheConfig()),
		programs: make(map[string]compiled),
	}
	for _, opt := range opts {
		opt(en)
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// Facts builds the evaluation input for a feature vector and risk level.
func Facts(v features.Vector, level riskmodel.RiskLevel) map[string]any {
	return map[string]any{
		FeaturesVar:  v.Map(),
		RiskLevelVar: int64(level),
	}
}

// CompileRule type-checks an expression and caches its program under ruleID.
// Expressions must evaluate to a bool.
func (en *Engine) CompileRule(ruleID, expression string) error {
	prog, err := en.compile(expression)
	if err != nil {
		return err
	}

	en.install(&Rule{ID: ruleID, Expression: expression}, prog)
	return nil
}

func (en *Engine) compile(expression string) (cel.Program, error) {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("compile error: expression must evaluate to bool, got %s", ast.OutputType())
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation error: %w", err)
	}
	return prog, nil
}

func (en *Engine) install(r *Rule, prog cel.Program) {
	en.mu.Lock()
	en.programs[r.ID] = compiled{expression: r.Expression, prog: prog}
	en.mu.Unlock()
}

// program returns the compiled form of rule's current expression.
// Rules seen through a shared cache or changed by another engine are
// compiled on demand.
func (en *Engine) program(rule *Rule) (cel.Program, error) {
	en.mu.RLock()
	c, ok := en.programs[rule.ID]
	en.mu.RUnlock()
	if ok && c.expression == rule.Expression {
		return c.prog, nil
	}

	prog, err := en.compile(rule.Expression)
	if err != nil {
		return nil, err
	}

	en.install(rule, prog)
	return prog, nil
}

// Evaluate evaluates a single rule against the provided facts.
func (en *Engine) Evaluate(ruleID string, facts map[string]any) (*EvaluationResult, error) {
	rule, err := en.store.Get(ruleID)
	if err != nil {
		return nil, err
	}

	result := en.eval(rule, facts)
	return result, result.Error
}

func (en *Engine) eval(rule *Rule, facts map[string]any) *EvaluationResult {
	result := &EvaluationResult{
		RuleID:   rule.ID,
		RuleName: rule.Name,
		Advice:   rule.Advice,
	}

	prog, err := en.program(rule)
	if err != nil {
		result.Error = fmt.Errorf("rule %s is not compiled: %w", rule.ID, err)
		return result
	}

	out, details, err := prog.Eval(facts)
	if err != nil {
		result.Error = err
		return result
	}

	if boolVal, ok := out.Value().(bool); ok {
		result.Matched = boolVal
	}
	if details != nil {
		result.Trace = details.State()
	}
	return result
}

// CompileAllRules compiles all active rules from the store
// and populates the cache with the active rules list.
func (en *Engine) CompileAllRules() error {
	rules, err := en.store.ListActive()
	if err != nil {
		return err
	}

	for _, rule := range rules {
		if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
			return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
		}
	}

	en.cache.Set(rules)

	return nil
}

// AddRule validates and compiles a rule, then adds it to the store.
// The compiled program is kept only if the store accepts the rule.
func (en *Engine) AddRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	if _, err := en.store.Get(r.ID); err == nil {
		return fmt.Errorf("rule with ID %s: %w", r.ID, ErrRuleExists)
	}

	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	if err := en.store.Add(r); err != nil {
		return err
	}

	en.install(r, prog)
	en.cache.Invalidate()

	return nil
}

// UpdateRule validates and recompiles a rule, then updates it in the store.
func (en *Engine) UpdateRule(r *Rule) error {
	if err := ValidateRule(r); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	if _, err := en.store.Get(r.ID); err != nil {
		return err
	}

	prog, err := en.compile(r.Expression)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRule, err)
	}

	if err := en.store.Update(r); err != nil {
		return err
	}

	en.install(r, prog)
	en.cache.Invalidate()

	return nil
}

// DeleteRule removes a rule from the store and compiled programs.
func (en *Engine) DeleteRule(ruleID string) error {
	if err := en.store.Delete(ruleID); err != nil {
		return err
	}

	en.mu.Lock()
	delete(en.programs, ruleID)
	en.mu.Unlock()

	en.cache.Invalidate()

	return nil
}

// Rules returns every stored rule in evaluation order.
func (en *Engine) Rules() ([]*Rule, error) {
	return en.store.List()
}

// Rule returns the stored rule with the given ID.
func (en *Engine) Rule(ruleID string) (*Rule, error) {
	return en.store.Get(ruleID)
}

// EvaluateAll evaluates all active rules against the provided facts, in
// position order. A failing rule is reported in its result and does not stop
// the remaining rules. The active rules list is served from the cache.
func (en *Engine) EvaluateAll(facts map[string]any) ([]*EvaluationResult, error) {
	rules := en.cache.Get()

	if rules == nil {
		var err error
		rules, err = en.store.ListActive()
		if err != nil {
			return nil, err
		}
		en.cache.Set(rules)
	}

	results := make([]*EvaluationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, en.eval(rule, facts))
	}

	return results, nil
}

// Recommend returns the advice of every active rule matching the vector and
// risk level, in position order. It never returns an empty list: when no
// rule matches the result is DefaultAdvice alone.
func (en *Engine) Recommend(v features.Vector, level riskmodel.RiskLevel) ([]string, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}

	results, err := en.EvaluateAll(Facts(v, level))
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate rules: %w", err)
	}

	recs := make([]string, 0, len(results))
	for _, r := range results {
		if r.Error != nil {
			logger.Warn("recommendation rule failed", "rule_id", r.RuleID, "error", r.Error)
			continue
		}
		if r.Matched {
			recs = append(recs, r.Advice)
		}
	}

	if len(recs) == 0 {
		return []string{DefaultAdvice}, nil
	}
	return recs, nil
}
