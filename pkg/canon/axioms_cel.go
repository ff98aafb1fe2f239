package canon

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// CELRule is a CEL expression that evaluates to true when an objective
// violates Axiom. The expression sees a single variable, objective, with
// keys id, description, text, tokens, priority, scope, preservation_class
// and irreversibility_risk.
type CELRule struct {
	Axiom  Axiom  `yaml:"axiom" json:"axiom"`
	Expr   string `yaml:"expr" json:"expr"`
	Reason string `yaml:"reason" json:"reason"`
}

// CELAxioms evaluates axiom rules written in CEL.
type CELAxioms struct {
	env   *cel.Env
	rules []CELRule

	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewCELAxioms compiles every rule up front so a bad rule fails at
// construction rather than during a canon load.
func NewCELAxioms(rules []CELRule) (*CELAxioms, error) {
	env, err := cel.NewEnv(
		cel.Variable("objective", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	c := &CELAxioms{
		env:      env,
		rules:    append([]CELRule(nil), rules...),
		prgCache: make(map[string]cel.Program),
	}
	for i, r := range c.rules {
		if r.Axiom == "" {
			return nil, fmt.Errorf("cel rule %d: axiom is required", i)
		}
		if _, err := c.program(r.Expr); err != nil {
			return nil, fmt.Errorf("cel rule %d (%s): %w", i, r.Axiom, err)
		}
	}
	return c, nil
}

// Evaluate implements AxiomPredicate.
func (c *CELAxioms) Evaluate(o Objective) ([]AxiomCheck, error) {
	input := map[string]any{
		"objective": map[string]any{
			"id":                   o.ID,
			"description":          o.Description,
			"text":                 NormalizeText(o.Description),
			"tokens":               Tokens(o.Description),
			"priority":             int64(o.Priority),
			"scope":                string(o.Scope),
			"preservation_class":   string(o.PreservationClass),
			"irreversibility_risk": o.IrreversibilityRisk,
		},
	}

	checks := make([]AxiomCheck, 0, len(c.rules))
	for i, r := range c.rules {
		violated, err := c.eval(r.Expr, input)
		if err != nil {
			return nil, fmt.Errorf("cel rule %d (%s): %w", i, r.Axiom, err)
		}
		check := AxiomCheck{ObjectiveID: o.ID, Axiom: r.Axiom, Compatible: !violated}
		if violated {
			check.Reason = fmt.Sprintf("violates %s: %s", r.Axiom, r.Reason)
		}
		checks = append(checks, check)
	}
	return checks, nil
}

func (c *CELAxioms) program(expr string) (cel.Program, error) {
	c.mu.RLock()
	prg, hit := c.prgCache[expr]
	c.mu.RUnlock()
	if hit {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, hit = c.prgCache[expr]; hit {
		return prg, nil
	}
	ast, issues := c.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile: %w", issues.Err())
	}
	prg, err := c.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("program: %w", err)
	}
	c.prgCache[expr] = prg
	return prg, nil
}

func (c *CELAxioms) eval(expr string, input map[string]any) (bool, error) {
	prg, err := c.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(input)
	if err != nil {
		return false, fmt.Errorf("eval: %w", err)
	}
	val, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("result not bool")
	}
	return val, nil
}
