// Package rules provides the CEL-Go based risk scoring engine.
package rules

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/opensource-finance/harrier/internal/domain"
)

// ErrInvalidRule is returned for rule configurations that cannot be loaded.
var ErrInvalidRule = errors.New("invalid risk rule")

// Engine is the CEL-based risk scoring engine.
// Each loaded rule adds its weight to the score of a record when its
// expression evaluates to true. Rules are independent of each other.
type Engine struct {
	mu            sync.RWMutex
	env           *cel.Env
	compiledRules []*CompiledRule // sorted by rule ID
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RiskRule
	Program cel.Program
}

// Result is the score of one record.
type Result struct {
	Score     int
	Triggered []string
}

// NewEngine creates a new scoring engine.
func NewEngine(maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	// Create CEL environment with indicator and transaction variables
	env, err := cel.NewEnv(
		cel.Variable("cvv_mismatch", cel.BoolType),
		cel.Variable("card_not_present", cel.BoolType),
		cel.Variable("geo_mismatch", cel.BoolType),
		cel.Variable("exp_date_mismatch", cel.BoolType),
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("merchant_country", cel.StringType),
		cel.Variable("acq_country", cel.StringType),
		cel.Variable("merchant_category", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:        env,
		maxWorkers: maxWorkers,
	}, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RiskRule) error {
	if cfg == nil {
		return fmt.Errorf("%w: rule config is required", ErrInvalidRule)
	}

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine, replacing any rule
// with the same ID.
func (e *Engine) LoadRule(cfg *domain.RiskRule) error {
	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rules := make([]*CompiledRule, 0, len(e.compiledRules)+1)
	for _, r := range e.compiledRules {
		if r.Config.ID != cfg.ID {
			rules = append(rules, r)
		}
	}
	e.compiledRules = sortRules(append(rules, compiled))

	return nil
}

// LoadRules compiles and loads multiple rules. Disabled rules are skipped.
func (e *Engine) LoadRules(configs []*domain.RiskRule) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules replaces all loaded rules. On error the previous rules stay active.
func (e *Engine) ReloadRules(configs []*domain.RiskRule) error {
	newRules := make([]*CompiledRule, 0, len(configs))
	seen := make(map[string]bool, len(configs))

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}
		if seen[cfg.ID] {
			return fmt.Errorf("%w: duplicate rule id %s", ErrInvalidRule, cfg.ID)
		}
		seen[cfg.ID] = true

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules = append(newRules, compiled)
	}

	e.mu.Lock()
	e.compiledRules = sortRules(newRules)
	e.mu.Unlock()

	return nil
}

// Score evaluates all loaded rules against one record.
func (e *Engine) Score(ctx context.Context, rec domain.Record, set domain.IndicatorSet) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	e.mu.RLock()
	rules := e.compiledRules
	e.mu.RUnlock()

	return scoreWith(rules, activation(rec, set))
}

// ScoreAll scores every record, in parallel, with results aligned to the input.
// The first evaluation error aborts the run.
func (e *Engine) ScoreAll(ctx context.Context, records []domain.Record, sets []domain.IndicatorSet) ([]Result, error) {
	if len(records) != len(sets) {
		return nil, fmt.Errorf("records and indicator sets differ in length: %d != %d", len(records), len(sets))
	}

	e.mu.RLock()
	rules := e.compiledRules
	e.mu.RUnlock()

	results := make([]Result, len(records))
	if len(records) == 0 {
		return results, nil
	}

	parent := ctx
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)

	// Each worker scores a contiguous chunk of rows
	workers := e.maxWorkers
	if workers > len(records) {
		workers = len(records)
	}
	chunk := (len(records) + workers - 1) / workers

	for start := 0; start < len(records); start += chunk {
		end := start + chunk
		if end > len(records) {
			end = len(records)
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()

			for i := lo; i < hi; i++ {
				if ctx.Err() != nil {
					return
				}
				res, err := scoreWith(rules, activation(records[i], sets[i]))
				if err != nil {
					errOnce.Do(func() {
						firstErr = fmt.Errorf("transaction %s: %w", records[i].TransactionID, err)
						cancel()
					})
					return
				}
				results[i] = res
			}
		}(start, end)
	}

	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := parent.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func scoreWith(rules []*CompiledRule, vars map[string]any) (Result, error) {
	var res Result
	for _, rule := range rules {
		out, _, err := rule.Program.Eval(vars)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Config.ID, err)
		}
		if b, ok := out.(types.Bool); ok && bool(b) {
			res.Score += rule.Config.Weight
			res.Triggered = append(res.Triggered, rule.Config.ID)
		}
	}
	return res, nil
}

func activation(rec domain.Record, set domain.IndicatorSet) map[string]any {
	return map[string]any{
		"cvv_mismatch":      set.CVVMismatch,
		"card_not_present":  set.CardNotPresent,
		"geo_mismatch":      set.GeoMismatch,
		"exp_date_mismatch": set.ExpDateMismatch,
		"amount":            rec.TransactionAmount.InexactFloat64(),
		"merchant_country":  rec.MerchantCountryCode,
		"acq_country":       rec.AcqCountry,
		"merchant_category": rec.MerchantCategoryCode,
	}
}

// RulesCount returns the number of loaded rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// MaxScore returns the score of a record that triggers every rule.
func (e *Engine) MaxScore() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	total := 0
	for _, r := range e.compiledRules {
		total += r.Config.Weight
	}
	return total
}

// GetLoadedRules returns the currently loaded rule configurations.
func (e *Engine) GetLoadedRules() []*domain.RiskRule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	rules := make([]*domain.RiskRule, 0, len(e.compiledRules))
	for _, compiled := range e.compiledRules {
		rules = append(rules, compiled.Config)
	}
	return rules
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = nil
	return nil
}

func (e *Engine) compileRule(cfg *domain.RiskRule) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidRule)
	}
	if cfg.Weight < 0 {
		return nil, fmt.Errorf("%w: rule %s: weight must not be negative", ErrInvalidRule, cfg.ID)
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: failed to compile rule %s: %v", ErrInvalidRule, cfg.ID, issues.Err())
	}

	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: rule %s: expression must return bool, got %s", ErrInvalidRule, cfg.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}

func sortRules(rules []*CompiledRule) []*CompiledRule {
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Config.ID < rules[j].Config.ID
	})
	return rules
}
