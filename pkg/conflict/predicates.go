package conflict

import (
	"fmt"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canon"
)

// DefaultNegationPrefixes are the phrases that negate what follows them.
func DefaultNegationPrefixes() []string {
	return []string{"not", "no", "never", "don't", "do not"}
}

// Negation matches negation-prefixed text against a core statement.
type Negation struct {
	prefixes [][]string
}

// NewNegation builds a Negation. A nil slice selects DefaultNegationPrefixes.
// Longer prefixes are tried first so "do not" wins over "not".
func NewNegation(prefixes []string) *Negation {
	if prefixes == nil {
		prefixes = DefaultNegationPrefixes()
	}
	n := &Negation{}
	for _, p := range prefixes {
		if toks := canon.Tokens(p); len(toks) > 0 {
			n.prefixes = append(n.prefixes, toks)
		}
	}
	for i := 1; i < len(n.prefixes); i++ {
		for j := i; j > 0 && len(n.prefixes[j]) > len(n.prefixes[j-1]); j-- {
			n.prefixes[j], n.prefixes[j-1] = n.prefixes[j-1], n.prefixes[j]
		}
	}
	return n
}

// Strip returns the tokens after a leading negation prefix.
func (n *Negation) Strip(tokens []string) ([]string, bool) {
	for _, p := range n.prefixes {
		if hasPrefix(tokens, p) {
			return tokens[len(p):], true
		}
	}
	return nil, false
}

// Negated returns the tokens following the first negation prefix anywhere
// in tokens.
func (n *Negation) Negated(tokens []string) ([]string, bool) {
	for i := range tokens {
		if rest, ok := n.Strip(tokens[i:]); ok {
			return rest, true
		}
	}
	return nil, false
}

// Opposes reports whether one constraint is exactly the negation of the other.
func (n *Negation) Opposes(a, b string) bool {
	ta, tb := canon.Tokens(a), canon.Tokens(b)
	if core, ok := n.Strip(ta); ok && equalTokens(core, tb) {
		return true
	}
	if core, ok := n.Strip(tb); ok && equalTokens(core, ta) {
		return true
	}
	return false
}

// NegationContradiction flags two intents when one description is a
// negation-prefixed form of text contained in the other. It is symmetric.
type NegationContradiction struct {
	Negation *Negation
}

// Contradicts implements canon.ContradictionPredicate.
func (p NegationContradiction) Contradicts(a, b string) (string, bool) {
	ta, tb := canon.Tokens(a), canon.Tokens(b)
	if core, ok := p.Negation.Strip(ta); ok && len(core) > 0 && (containsSeq(tb, core) || containsSeq(core, tb)) {
		return fmt.Sprintf("'%s' negates '%s'", a, b), true
	}
	if core, ok := p.Negation.Strip(tb); ok && len(core) > 0 && (containsSeq(ta, core) || containsSeq(core, ta)) {
		return fmt.Sprintf("'%s' negates '%s'", b, a), true
	}
	return "", false
}

// NegatedTerms flags an intent that negates a term found in an invariant.
// Only the first Window content words after the negation are considered.
type NegatedTerms struct {
	Negation *Negation
	Window   int
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "to": {}, "and": {}, "or": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "any": {}, "all": {},
}

// Contradicts implements canon.ContradictionPredicate with a as the intent
// description and b as the invariant text.
func (p NegatedTerms) Contradicts(intentText, invariant string) (string, bool) {
	rest, ok := p.Negation.Negated(canon.Tokens(intentText))
	if !ok {
		return "", false
	}
	inv := canon.Tokens(invariant)
	window := p.Window
	if window <= 0 {
		window = 3
	}
	taken := 0
	for _, w := range rest {
		if taken == window {
			break
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		taken++
		for _, t := range inv {
			if canon.MatchesWord(t, w) || canon.MatchesWord(w, t) {
				return fmt.Sprintf("negates invariant term '%s'", t), true
			}
		}
	}
	return "", false
}

// AnyOf reports the first predicate that fires.
type AnyOf []canon.ContradictionPredicate

// Contradicts implements canon.ContradictionPredicate.
func (all AnyOf) Contradicts(a, b string) (string, bool) {
	for _, p := range all {
		if reason, ok := p.Contradicts(a, b); ok {
			return reason, true
		}
	}
	return "", false
}

func hasPrefix(tokens, prefix []string) bool {
	if len(prefix) > len(tokens) {
		return false
	}
	return equalTokens(tokens[:len(prefix)], prefix)
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func containsSeq(haystack, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return false
	}
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if equalTokens(haystack[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}
