package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/liamcoop/healthpro/health"
)

// costLimit bounds a single rule evaluation so a bad expression cannot spin.
const costLimit = 1000000

// Engine compiles a rule table to CEL programs and classifies aggregated
// metrics against it. Compiled programs are guarded by a RWMutex, so Classify
// may run concurrently with rule mutations.
type Engine struct {
	env        *cel.Env
	store      RuleStore
	cache      RulesCache               // active rules in evaluation order
	programs   map[string]*compiledRule // ruleID -> compiled program
	thresholds LevelThresholds
	mu         sync.RWMutex
}

type compiledRule struct {
	program    cel.Program
	expression string
	variables  []string // metric variables the expression reads, sorted
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCacheConfig replaces the active-rule cache. A finite TTL makes the
// engine pick up rules written to a shared store by other processes.
func WithCacheConfig(config CacheConfig) EngineOption {
	return func(en *Engine) {
		en.cache = NewInMemoryRulesCache(config)
	}
}

// MetricEnv creates a CEL environment declaring each metric as a double variable.
func MetricEnv(metrics []string) (*cel.Env, error) {
	opts := make([]cel.EnvOption, 0, len(metrics))
	for _, name := range metrics {
		opts = append(opts, cel.Variable(name, cel.DoubleType))
	}
	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return env, nil
}

// NewEngine creates an engine over every metric the aggregator produces,
// using the default level thresholds.
func NewEngine(store RuleStore, opts ...EngineOption) (*Engine, error) {
	env, err := MetricEnv(health.KnownMetrics)
	if err != nil {
		return nil, err
	}
	return NewEngineWithEnv(env, store, DefaultThresholds(), opts...)
}

// NewEngineWithEnv creates an engine with a profile-specific environment and
// thresholds. All active rules are compiled before it is returned.
func NewEngineWithEnv(env *cel.Env, store RuleStore, thresholds LevelThresholds, opts ...EngineOption) (*Engine, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	en := &Engine{
		env:        env,
		store:      store,
		cache:      NewInMemoryRulesCache(DefaultCacheConfig()),
		programs:   make(map[string]*compiledRule),
		thresholds: thresholds,
	}
	for _, opt := range opts {
		opt(en)
	}

	if err := en.CompileAllRules(); err != nil {
		return nil, fmt.Errorf("failed to compile rules: %w", err)
	}

	return en, nil
}

// Thresholds returns the score cut-offs used by Classify.
func (en *Engine) Thresholds() LevelThresholds {
	return en.thresholds
}

// CompileRule type-checks expression, requires a boolean result and caches the program.
func (en *Engine) CompileRule(ruleID, expression string) error {
	ast, issues := en.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("compile error: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return fmt.Errorf("compile error: expression must evaluate to bool, got %s", ast.OutputType())
	}

	prog, err := en.env.Program(ast,
		cel.EvalOptions(cel.OptTrackState),
		cel.CostLimit(costLimit),
	)
	if err != nil {
		return fmt.Errorf("program creation error: %w", err)
	}

	en.mu.Lock()
	en.programs[ruleID] = &compiledRule{
		program:    prog,
		expression: expression,
		variables:  referencedVariables(ast),
	}
	en.mu.Unlock()

	return nil
}

// referencedVariables lists the identifiers the checker resolved to declared
// variables. Function references carry overload IDs and constants carry a value.
func referencedVariables(ast *cel.Ast) []string {
	seen := make(map[string]bool)
	var names []string
	for _, ref := range ast.NativeRep().ReferenceMap() {
		if ref.Name == "" || len(ref.OverloadIDs) > 0 || ref.Value != nil || seen[ref.Name] {
			continue
		}
		seen[ref.Name] = true
		names = append(names, ref.Name)
	}
	sort.Strings(names)
	return names
}

func (en *Engine) program(ruleID string) (*compiledRule, bool) {
	en.mu.RLock()
	defer en.mu.RUnlock()
	c, ok := en.programs[ruleID]
	return c, ok
}

// reads lists the metrics rule needs: its declared metric first, then every
// other variable its compiled expression references.
func (en *Engine) reads(rule *Rule) []string {
	names := []string{rule.Metric}
	if c, ok := en.program(rule.ID); ok {
		for _, v := range c.variables {
			if v != rule.Metric {
				names = append(names, v)
			}
		}
	}
	return names
}

// CompileAllRules compiles all active rules from the store and primes the cache.
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

// activeRules serves the ordered table from cache, reading the store on a
// miss. Rules added or edited in the store by another process are compiled
// before the table is cached.
func (en *Engine) activeRules() ([]*Rule, error) {
	rules := en.cache.Get()
	if rules != nil {
		return rules, nil
	}

	rules, err := en.store.ListActive()
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if err := en.ensureCompiled(rule); err != nil {
			return nil, err
		}
	}
	en.cache.Set(rules)
	return rules, nil
}

// ensureCompiled compiles rule unless its current expression already is.
func (en *Engine) ensureCompiled(rule *Rule) error {
	if c, ok := en.program(rule.ID); ok && c.expression == rule.Expression {
		return nil
	}
	if err := en.CompileRule(rule.ID, rule.Expression); err != nil {
		return fmt.Errorf("failed to compile rule %s: %w", rule.ID, err)
	}
	return nil
}

// RequiredMetrics lists the metrics the active rules read, in evaluation order.
func (en *Engine) RequiredMetrics() ([]string, error) {
	rules, err := en.activeRules()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(rules))
	var names []string
	for _, rule := range rules {
		for _, name := range en.reads(rule) {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names, nil
}

func (en *Engine) evaluate(rule *Rule, facts map[string]any) *EvaluationResult {
	result := &EvaluationResult{RuleID: rule.ID, RuleName: rule.Name}

	c, ok := en.program(rule.ID)
	if !ok {
		result.Error = fmt.Errorf("rule %s is not compiled", rule.ID)
		return result
	}

	out, details, err := c.program.Eval(facts)
	if err != nil {
		result.Error = err
		return result
	}

	if matched, ok := out.Value().(bool); ok && matched {
		result.Matched = true
		result.Score = rule.Score
	}
	if details != nil {
		result.Trace = details.State()
	}
	return result
}

// Evaluate evaluates a single rule against the metrics.
func (en *Engine) Evaluate(ruleID string, metrics health.AggregatedMetrics) (*EvaluationResult, error) {
	rule, err := en.store.Get(ruleID)
	if err != nil {
		return nil, err
	}
	if err := en.ensureCompiled(rule); err != nil {
		return &EvaluationResult{RuleID: rule.ID, RuleName: rule.Name, Error: err}, err
	}

	result := en.evaluate(rule, metrics.Facts())
	return result, result.Error
}

// EvaluateAll evaluates every active rule in order and keeps going past
// failures; each result carries its own error.
func (en *Engine) EvaluateAll(metrics health.AggregatedMetrics) ([]*EvaluationResult, error) {
	rules, err := en.activeRules()
	if err != nil {
		return nil, err
	}

	facts := metrics.Facts()
	results := make([]*EvaluationResult, 0, len(rules))
	for _, rule := range rules {
		results = append(results, en.evaluate(rule, facts))
	}
	return results, nil
}

// Classify scores the metrics against the active rule table.
//
// Every metric a rule reads must be present; the first absent one fails the
// call with a *health.MissingMetricError before anything is evaluated.
// Triggered rules contribute their score, condition and recommendation in
// table order. When nothing triggers, the no-anomaly placeholder is reported.
func (en *Engine) Classify(metrics health.AggregatedMetrics) (*health.RiskAssessment, error) {
	rules, err := en.activeRules()
	if err != nil {
		return nil, err
	}

	for _, rule := range rules {
		if err := metrics.Require(en.reads(rule)...); err != nil {
			return nil, err
		}
	}

	facts := metrics.Facts()
	assessment := &health.RiskAssessment{Source: health.SourceRules}
	for _, rule := range rules {
		result := en.evaluate(rule, facts)
		if result.Error != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.ID, result.Error)
		}
		if !result.Matched {
			continue
		}
		assessment.Score += result.Score
		assessment.Conditions = append(assessment.Conditions, rule.Condition)
		assessment.Recommendations = append(assessment.Recommendations, rule.Recommendation)
	}

	assessment.EnsureNonEmpty()
	assessment.Level = en.thresholds.Level(assessment.Score)
	return assessment, nil
}

// AddRule validates and compiles r, then stores it. The compiled program is
// dropped again if the store rejects the rule.
func (en *Engine) AddRule(r *Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	if _, err := en.store.Get(r.ID); err == nil {
		return fmt.Errorf("rule with ID %s: %w", r.ID, ErrRuleExists)
	}

	if err := en.CompileRule(r.ID, r.Expression); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Add(r); err != nil {
		en.mu.Lock()
		delete(en.programs, r.ID)
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()

	return nil
}

// UpdateRule recompiles and stores r. On failure the previous program stays in place.
func (en *Engine) UpdateRule(r *Rule) error {
	if err := r.Validate(); err != nil {
		return err
	}

	en.mu.RLock()
	previous, hadPrevious := en.programs[r.ID]
	en.mu.RUnlock()

	if err := en.CompileRule(r.ID, r.Expression); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := en.store.Update(r); err != nil {
		en.mu.Lock()
		if hadPrevious {
			en.programs[r.ID] = previous
		} else {
			delete(en.programs, r.ID)
		}
		en.mu.Unlock()
		return err
	}

	en.cache.Invalidate()

	return nil
}

// DeleteRule removes a rule from the store and compiled programs
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

// Rules lists every rule in the engine's store, active or not.
func (en *Engine) Rules() ([]*Rule, error) {
	return en.store.List()
}

// Rule returns one rule from the engine's store.
func (en *Engine) Rule(ruleID string) (*Rule, error) {
	return en.store.Get(ruleID)
}
