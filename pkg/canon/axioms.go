package canon

import (
	"fmt"
	"sort"
)

// Axiom is one of the fixed, non-overridable governing rules.
type Axiom string

const (
	AxiomObjectiveSupremacy         Axiom = "objective_supremacy"
	AxiomBoundedAutonomy            Axiom = "bounded_autonomy"
	AxiomExplainabilityBeforeAction Axiom = "explainability_before_action"
	AxiomContinuityOverPerformance  Axiom = "continuity_over_performance"
	AxiomPersistenceOfIntent        Axiom = "persistence_of_intent"
)

// Axioms lists every axiom in evaluation order.
var Axioms = []Axiom{
	AxiomObjectiveSupremacy,
	AxiomBoundedAutonomy,
	AxiomExplainabilityBeforeAction,
	AxiomContinuityOverPerformance,
	AxiomPersistenceOfIntent,
}

// AxiomCheck is the result of evaluating one objective against one axiom.
type AxiomCheck struct {
	ObjectiveID string `json:"objective_id"`
	Axiom       Axiom  `json:"axiom"`
	Compatible  bool   `json:"compatible"`
	Reason      string `json:"reason,omitempty"`
}

// AxiomPredicate evaluates an objective against the axioms it knows about.
// It returns one check per axiom evaluated.
type AxiomPredicate interface {
	Evaluate(o Objective) ([]AxiomCheck, error)
}

// CompatibilityResult aggregates every axiom check over an objective set.
type CompatibilityResult struct {
	Compatible bool         `json:"compatible"`
	Checks     []AxiomCheck `json:"checks"`
	Failures   []AxiomCheck `json:"failures"`
}

// CheckAxioms runs pred over every objective.
func CheckAxioms(pred AxiomPredicate, objectives []Objective) (*CompatibilityResult, error) {
	res := &CompatibilityResult{}
	for _, o := range objectives {
		checks, err := pred.Evaluate(o)
		if err != nil {
			return nil, fmt.Errorf("axiom evaluation of %s: %w", o.ID, err)
		}
		for _, c := range checks {
			res.Checks = append(res.Checks, c)
			if !c.Compatible {
				res.Failures = append(res.Failures, c)
			}
		}
	}
	res.Compatible = len(res.Failures) == 0
	return res, nil
}

// Pattern is a phrase whose presence violates an axiom.
type Pattern struct {
	Phrase string `yaml:"phrase" json:"phrase"`
	Reason string `yaml:"reason" json:"reason"`
}

// DefaultAxiomPatterns is the built-in keyword lexicon.
func DefaultAxiomPatterns() map[Axiom][]Pattern {
	return map[Axiom][]Pattern{
		AxiomObjectiveSupremacy: {
			{"override objectives", "attempts to override other objectives"},
			{"ignore priority", "attempts to ignore priority ordering"},
			{"supersede canon", "attempts to supersede the canon"},
		},
		AxiomBoundedAutonomy: {
			{"unlimited autonomy", "requires unlimited autonomy"},
			{"unbounded action", "requires unbounded action"},
			{"autonomous execution", "requires autonomous execution"},
			{"self-determined", "implies self-determination"},
			{"autonomy", "requires autonomy"},
			{"coercion", "requires coercion"},
			{"control humans", "violates human agency"},
			{"execute", "implies execution"},
			{"execution", "implies execution"},
			{"run", "implies execution"},
		},
		AxiomExplainabilityBeforeAction: {
			{"unexplainable", "cannot be explained"},
			{"opaque", "is opaque"},
			{"black box", "requires black box operation"},
		},
		AxiomContinuityOverPerformance: {
			{"at any cost", "prioritizes performance over continuity"},
			{"maximize at all costs", "prioritizes optimization over stability"},
			{"optimize", "implies optimization"},
			{"maximize", "implies optimization"},
		},
		AxiomPersistenceOfIntent: {
			{"change itself", "implies self-modification of intent"},
			{"evolve its purpose", "implies purpose evolution"},
			{"redefine goals", "implies goal redefinition"},
		},
	}
}

// KeywordAxioms flags objectives whose description contains a forbidden
// phrase. Phrases match whole words only.
type KeywordAxioms struct {
	patterns map[Axiom][]Pattern
	order    []Axiom
}

// NewKeywordAxioms builds the predicate. A nil map selects DefaultAxiomPatterns.
func NewKeywordAxioms(patterns map[Axiom][]Pattern) *KeywordAxioms {
	if patterns == nil {
		patterns = DefaultAxiomPatterns()
	}
	order := make([]Axiom, 0, len(patterns))
	for _, a := range Axioms {
		if _, ok := patterns[a]; ok {
			order = append(order, a)
		}
	}
	var extra []Axiom
	for a := range patterns {
		if !isBuiltinAxiom(a) {
			extra = append(extra, a)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return &KeywordAxioms{patterns: patterns, order: append(order, extra...)}
}

// Evaluate implements AxiomPredicate.
func (k *KeywordAxioms) Evaluate(o Objective) ([]AxiomCheck, error) {
	tokens := Tokens(o.Description)
	checks := make([]AxiomCheck, 0, len(k.order))
	for _, axiom := range k.order {
		check := AxiomCheck{ObjectiveID: o.ID, Axiom: axiom, Compatible: true}
		for _, p := range k.patterns[axiom] {
			if ContainsPhrase(tokens, p.Phrase) {
				check.Compatible = false
				check.Reason = fmt.Sprintf("violates %s: %s", axiom, p.Reason)
				break
			}
		}
		checks = append(checks, check)
	}
	return checks, nil
}

func isBuiltinAxiom(a Axiom) bool {
	for _, b := range Axioms {
		if a == b {
			return true
		}
	}
	return false
}

// AllOf combines predicates; an objective must satisfy every one.
type AllOf []AxiomPredicate

// Evaluate implements AxiomPredicate.
func (all AllOf) Evaluate(o Objective) ([]AxiomCheck, error) {
	var out []AxiomCheck
	for _, p := range all {
		checks, err := p.Evaluate(o)
		if err != nil {
			return nil, err
		}
		out = append(out, checks...)
	}
	return out, nil
}
