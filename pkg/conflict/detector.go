package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canon"
	"github.com/surulere15/CONTINUUM-sub000/pkg/intent"
)

// InvariantSource supplies the canon invariants intents are checked against.
// *canon.Canon satisfies it.
type InvariantSource interface {
	Invariants() []canon.Invariant
}

// Detector finds conflicts. It is stateless and safe for concurrent use.
type Detector struct {
	negation      *Negation
	contradiction canon.ContradictionPredicate
	violation     canon.ContradictionPredicate
	invariants    []canon.Invariant
}

// Option configures a Detector.
type Option func(*Detector)

// WithInvariants checks intents against the invariants of src.
func WithInvariants(src InvariantSource) Option {
	return func(d *Detector) {
		if src != nil {
			d.invariants = src.Invariants()
		}
	}
}

// WithNegationPrefixes overrides the negation phrases.
func WithNegationPrefixes(prefixes []string) Option {
	return func(d *Detector) { d.negation = NewNegation(prefixes) }
}

// WithContradictionPredicate replaces the intent-vs-intent contradiction check.
func WithContradictionPredicate(p canon.ContradictionPredicate) Option {
	return func(d *Detector) { d.contradiction = p }
}

// WithViolationPredicate replaces the intent-vs-invariant check.
func WithViolationPredicate(p canon.ContradictionPredicate) Option {
	return func(d *Detector) { d.violation = p }
}

// NewDetector returns a Detector. By default an intent violates an
// invariant when it negates one of the invariant's terms or uses a concept
// opposing it over shared domain vocabulary.
func NewDetector(opts ...Option) *Detector {
	d := &Detector{negation: NewNegation(nil)}
	for _, opt := range opts {
		opt(d)
	}
	if d.contradiction == nil {
		d.contradiction = NegationContradiction{Negation: d.negation}
	}
	if d.violation == nil {
		d.violation = AnyOf{
			NegatedTerms{Negation: d.negation, Window: 3},
			canon.NewLexicalContradiction(nil, nil),
		}
	}
	return d
}

// Detect runs every pairwise check and every canon check over intents.
// The result does not depend on input order.
func (d *Detector) Detect(intents []intent.Intent) *Graph {
	var conflicts []Conflict
	for i := range intents {
		for j := i + 1; j < len(intents); j++ {
			if intents[i].ID == intents[j].ID {
				continue
			}
			conflicts = append(conflicts, d.checkPair(intents[i], intents[j])...)
		}
		conflicts = append(conflicts, d.checkCanon(intents[i])...)
	}
	return newGraph(intent.IDs(intents), dedupe(conflicts))
}

func (d *Detector) checkPair(a, b intent.Intent) []Conflict {
	var out []Conflict
	if c, ok := d.contradictionOf(a, b); ok {
		out = append(out, c)
	}
	if c, ok := d.scopeCollision(a, b); ok {
		out = append(out, c)
	}
	if c, ok := constraintIncompatibility(a, b); ok {
		out = append(out, c)
	}
	return out
}

func (d *Detector) contradictionOf(a, b intent.Intent) (Conflict, bool) {
	reason, ok := d.contradiction.Contradicts(a.Description, b.Description)
	if !ok {
		return Conflict{}, false
	}
	return pairConflict(TypeDirectContradiction, a.ID, b.ID, reason, string(canon.AxiomBoundedAutonomy)), true
}

func (d *Detector) scopeCollision(a, b intent.Intent) (Conflict, bool) {
	if a.Scope != b.Scope {
		return Conflict{}, false
	}
	for _, ca := range a.Constraints {
		for _, cb := range b.Constraints {
			if d.negation.Opposes(ca, cb) {
				reason := fmt.Sprintf("scope '%s' has opposing constraints: '%s' vs '%s'", a.Scope, ca, cb)
				return pairConflict(TypeScopeCollision, a.ID, b.ID, reason, string(canon.AxiomContinuityOverPerformance)), true
			}
		}
	}
	return Conflict{}, false
}

func constraintIncompatibility(a, b intent.Intent) (Conflict, bool) {
	var shared []string
	for _, r := range a.References {
		if b.HasReference(r) {
			shared = append(shared, r)
		}
	}
	if len(shared) == 0 {
		return Conflict{}, false
	}
	diff := symmetricDifference(a.Constraints, b.Constraints)
	if len(diff) == 0 {
		return Conflict{}, false
	}
	sort.Strings(shared)
	reason := fmt.Sprintf("incompatible constraints on shared references %v: %s", shared, strings.Join(diff, ", "))
	return pairConflict(TypeConstraintIncompatibility, a.ID, b.ID, reason, ""), true
}

func (d *Detector) checkCanon(in intent.Intent) []Conflict {
	var out []Conflict
	for _, inv := range d.invariants {
		reason, ok := d.violation.Contradicts(in.Description, inv.Description)
		if !ok {
			continue
		}
		b := InvariantPrefix + inv.ObjectiveID
		out = append(out, Conflict{
			ID:          conflictID(TypeCanonViolation, in.ID, b),
			Type:        TypeCanonViolation,
			IntentA:     in.ID,
			IntentB:     b,
			Description: fmt.Sprintf("intent violates canon invariant %s '%s': %s", inv.ObjectiveID, inv.Description, reason),
			AxiomRef:    string(canon.AxiomObjectiveSupremacy),
		})
	}
	return out
}

// pairConflict orders the parties by id so the record is independent of
// detection order.
func pairConflict(t Type, a, b, reason, axiom string) Conflict {
	if b < a {
		a, b = b, a
	}
	return Conflict{ID: conflictID(t, a, b), Type: t, IntentA: a, IntentB: b, Description: reason, AxiomRef: axiom}
}

func symmetricDifference(a, b []string) []string {
	inA := make(map[string]struct{}, len(a))
	for _, s := range a {
		inA[s] = struct{}{}
	}
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	var out []string
	for s := range inA {
		if _, ok := inB[s]; !ok {
			out = append(out, s)
		}
	}
	for s := range inB {
		if _, ok := inA[s]; !ok {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func dedupe(conflicts []Conflict) []Conflict {
	seen := make(map[string]struct{}, len(conflicts))
	out := conflicts[:0]
	for _, c := range conflicts {
		if _, dup := seen[c.ID]; dup {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}
