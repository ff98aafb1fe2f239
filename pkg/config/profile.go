package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canon"
	"github.com/surulere15/CONTINUUM-sub000/pkg/conflict"
	"github.com/surulere15/CONTINUUM-sub000/pkg/intent"
)

// Profile tunes the heuristic parts of the kernel: normalization lexicon,
// negation phrases, axiom rules and the consistency vocabulary. Empty
// fields keep the built-in defaults.
type Profile struct {
	Name              string             `yaml:"name" json:"name"`
	MaxNormalizations int                `yaml:"max_normalizations" json:"max_normalizations"`
	Intent            intent.Lexicon     `yaml:"intent" json:"intent"`
	NegationPrefixes  []string           `yaml:"negation_prefixes" json:"negation_prefixes"`
	Axioms            AxiomProfile       `yaml:"axioms" json:"axioms"`
	Consistency       ConsistencyProfile `yaml:"consistency" json:"consistency"`
}

// AxiomProfile adds keyword patterns and CEL rules to the axiom check.
type AxiomProfile struct {
	// ReplacePatterns drops the built-in keyword lexicon instead of
	// extending it.
	ReplacePatterns bool                            `yaml:"replace_patterns" json:"replace_patterns"`
	Patterns        map[canon.Axiom][]canon.Pattern `yaml:"patterns" json:"patterns"`
	Rules           []canon.CELRule                 `yaml:"rules" json:"rules"`
}

// ConsistencyProfile overrides the lexical contradiction vocabulary.
type ConsistencyProfile struct {
	OpposingConcepts []canon.ConceptPair `yaml:"opposing_concepts" json:"opposing_concepts"`
	Domain           []string            `yaml:"domain" json:"domain"`
}

// LoadProfile reads a YAML kernel profile.
func LoadProfile(path string) (*Profile, error) {
	//nolint:gosec // G304: path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", path, err)
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	if p.MaxNormalizations < 0 {
		return nil, fmt.Errorf("profile %q: max_normalizations must not be negative", path)
	}
	for a := range p.Axioms.Patterns {
		if !knownAxiom(a) {
			return nil, fmt.Errorf("profile %q: unknown axiom %q", path, a)
		}
	}
	return &p, nil
}

// DefaultProfile is the empty profile: every component uses its defaults.
func DefaultProfile() *Profile {
	return &Profile{Name: "default"}
}

// AxiomPredicate builds the canon gate 3 predicate: keyword patterns plus
// any CEL rules.
func (p *Profile) AxiomPredicate() (canon.AxiomPredicate, error) {
	patterns := canon.DefaultAxiomPatterns()
	if p.Axioms.ReplacePatterns {
		patterns = map[canon.Axiom][]canon.Pattern{}
	}
	for a, ps := range p.Axioms.Patterns {
		patterns[a] = append(patterns[a], ps...)
	}
	preds := canon.AllOf{canon.NewKeywordAxioms(patterns)}
	if len(p.Axioms.Rules) > 0 {
		cel, err := canon.NewCELAxioms(p.Axioms.Rules)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", p.Name, err)
		}
		preds = append(preds, cel)
	}
	return preds, nil
}

// ContradictionPredicate builds the lexical contradiction check used by
// canon gate 4 and by canon-violation detection.
func (p *Profile) ContradictionPredicate() canon.ContradictionPredicate {
	var pairs []canon.ConceptPair
	if len(p.Consistency.OpposingConcepts) > 0 {
		pairs = p.Consistency.OpposingConcepts
	}
	var domain []string
	if len(p.Consistency.Domain) > 0 {
		domain = p.Consistency.Domain
	}
	return canon.NewLexicalContradiction(pairs, domain)
}

// DetectorOptions configures conflict detection from the profile.
func (p *Profile) DetectorOptions() []conflict.Option {
	neg := conflict.NewNegation(p.NegationPrefixes)
	return []conflict.Option{
		conflict.WithNegationPrefixes(p.NegationPrefixes),
		conflict.WithViolationPredicate(conflict.AnyOf{
			conflict.NegatedTerms{Negation: neg, Window: 3},
			p.ContradictionPredicate(),
		}),
	}
}

func knownAxiom(a canon.Axiom) bool {
	for _, k := range canon.Axioms {
		if k == a {
			return true
		}
	}
	return false
}
