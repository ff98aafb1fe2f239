package canon

import "fmt"

// ContradictionPredicate decides whether statement a opposes statement b.
// Implementations must be deterministic.
type ContradictionPredicate interface {
	Contradicts(a, b string) (reason string, ok bool)
}

// ConceptPair is a pair of lexically opposing concepts.
type ConceptPair struct {
	A string `yaml:"a" json:"a"`
	B string `yaml:"b" json:"b"`
}

// DefaultOpposingConcepts are the opposing pairs used when none are configured.
func DefaultOpposingConcepts() []ConceptPair {
	return []ConceptPair{
		{"preserve", "destroy"},
		{"maintain", "eliminate"},
		{"increase", "decrease"},
		{"protect", "harm"},
		{"expand", "contract"},
		{"enable", "disable"},
		{"support", "undermine"},
		{"continuity", "disruption"},
		{"stability", "chaos"},
	}
}

// DefaultDomainVocabulary lists the nouns two statements must share before
// opposing concepts count as a contradiction.
func DefaultDomainVocabulary() []string {
	return []string{
		"humanity", "human", "civilization", "society", "knowledge",
		"stability", "systems", "agency", "capacity", "existence",
	}
}

// LexicalContradiction flags statements that use opposing concepts over a
// shared domain word. It over- and under-detects real semantic conflict.
type LexicalContradiction struct {
	pairs  []ConceptPair
	domain map[string]struct{}
}

// NewLexicalContradiction builds the predicate. Nil arguments select defaults.
func NewLexicalContradiction(pairs []ConceptPair, domain []string) *LexicalContradiction {
	if pairs == nil {
		pairs = DefaultOpposingConcepts()
	}
	if domain == nil {
		domain = DefaultDomainVocabulary()
	}
	d := make(map[string]struct{}, len(domain))
	for _, w := range domain {
		d[NormalizeText(w)] = struct{}{}
	}
	return &LexicalContradiction{pairs: pairs, domain: d}
}

// Contradicts implements ContradictionPredicate.
func (l *LexicalContradiction) Contradicts(a, b string) (string, bool) {
	ta, tb := Tokens(a), Tokens(b)
	if !l.sharesDomain(ta, tb) {
		return "", false
	}
	for _, p := range l.pairs {
		if containsWord(ta, p.A) && containsWord(tb, p.B) {
			return fmt.Sprintf("opposing concepts: '%s' vs '%s'", p.A, p.B), true
		}
		if containsWord(ta, p.B) && containsWord(tb, p.A) {
			return fmt.Sprintf("opposing concepts: '%s' vs '%s'", p.B, p.A), true
		}
	}
	return "", false
}

func (l *LexicalContradiction) sharesDomain(a, b []string) bool {
	inA := make(map[string]struct{})
	for _, t := range a {
		if _, ok := l.domain[t]; ok {
			inA[t] = struct{}{}
		}
	}
	for _, t := range b {
		if _, ok := inA[t]; ok {
			return true
		}
	}
	return false
}

// Contradiction is one pair of objectives that oppose each other.
type Contradiction struct {
	A      string `json:"objective_a"`
	B      string `json:"objective_b"`
	Reason string `json:"reason"`
}

// Proof is the outcome of checking every unordered objective pair.
type Proof struct {
	Consistent     bool            `json:"consistent"`
	Contradictions []Contradiction `json:"contradictions"`
	ObjectiveCount int             `json:"objective_count"`
	PairsChecked   int             `json:"pairs_checked"`
}

// ConsistencyProver checks objective sets for mutual consistency.
type ConsistencyProver struct {
	Predicate ContradictionPredicate
}

// NewConsistencyProver returns a prover using pred, or the default lexical
// predicate when pred is nil.
func NewConsistencyProver(pred ContradictionPredicate) *ConsistencyProver {
	if pred == nil {
		pred = NewLexicalContradiction(nil, nil)
	}
	return &ConsistencyProver{Predicate: pred}
}

// Prove checks all unordered pairs and returns every contradiction found.
func (p *ConsistencyProver) Prove(objectives []Objective) *Proof {
	proof := &Proof{ObjectiveCount: len(objectives)}
	for i := range objectives {
		for j := i + 1; j < len(objectives); j++ {
			proof.PairsChecked++
			a, b := objectives[i], objectives[j]
			if reason, ok := p.Predicate.Contradicts(a.Description, b.Description); ok {
				proof.Contradictions = append(proof.Contradictions, Contradiction{A: a.ID, B: b.ID, Reason: reason})
			}
		}
	}
	proof.Consistent = len(proof.Contradictions) == 0
	return proof
}

// AssertConsistent returns a *ConsistencyError naming every contradiction.
func (p *ConsistencyProver) AssertConsistent(objectives []Objective) error {
	proof := p.Prove(objectives)
	if proof.Consistent {
		return nil
	}
	return &ConsistencyError{Contradictions: proof.Contradictions}
}
