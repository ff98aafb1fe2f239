// Package resolution resolves detected conflicts with a fixed, deterministic
// precedence chain. It only selects among the submitted intents; it never
// merges or rewrites them.
package resolution

import (
	"fmt"
	"sort"
	"strings"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
	"github.com/surulere15/CONTINUUM-sub000/pkg/conflict"
	"github.com/surulere15/CONTINUUM-sub000/pkg/intent"
)

// Outcome classifies a resolution.
type Outcome string

const (
	OutcomeNoConflicts      Outcome = "no_conflicts"
	OutcomeStabilized       Outcome = "stabilized"
	OutcomePartialRejection Outcome = "partial_rejection"
	OutcomeTotalRejection   Outcome = "total_rejection"
)

// Rejection reasons.
const (
	ReasonCanonViolation  = "violates canon invariant"
	ReasonLowerPrecedence = "lower precedence in conflict resolution"
)

// Rejection explains why an intent did not survive.
type Rejection struct {
	IntentID        string   `json:"intent_id"`
	Reason          string   `json:"reason"`
	ConflictingWith []string `json:"conflicting_with"`
	AxiomRef        string   `json:"axiom_ref,omitempty"`
	Detail          string   `json:"detail,omitempty"`
}

// Set is the stabilized intent set.
type Set struct {
	ID      string          `json:"set_id"`
	Hash    string          `json:"hash"`
	Intents []intent.Intent `json:"intents"`
}

// NewSet builds a set whose hash covers the sorted intent ids.
func NewSet(intents []intent.Intent) *Set {
	h := intent.SetHash(intent.IDs(intents))
	return &Set{ID: canonicalize.ShortID(h, 16), Hash: h, Intents: intents}
}

// IDs returns the sorted ids in the set.
func (s *Set) IDs() []string {
	ids := intent.IDs(s.Intents)
	sort.Strings(ids)
	return ids
}

// Result is the output of Engine.Resolve.
type Result struct {
	Outcome    Outcome     `json:"outcome"`
	Stabilized *Set        `json:"stabilized"`
	Rejections []Rejection `json:"rejections"`
	Steps      []string    `json:"steps"`
	// Path lists intent ids in the order the engine decided against them.
	Path []string `json:"path"`
}

// RejectedIDs returns the ids of every rejected intent, in decision order.
func (r *Result) RejectedIDs() []string {
	ids := make([]string, len(r.Rejections))
	for i, rj := range r.Rejections {
		ids[i] = rj.IntentID
	}
	return ids
}

// Engine resolves conflicts. It is stateless and safe for concurrent use.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() *Engine { return &Engine{} }

// Resolve applies, in order: unconditional rejection of canon violators,
// then pairwise precedence (source, then constraint count, then id) over
// the remaining conflicts in graph order. An intent already rejected
// cannot cause another rejection.
func (e *Engine) Resolve(intents []intent.Intent, graph *conflict.Graph) *Result {
	if graph == nil || !graph.HasConflicts() {
		return &Result{
			Outcome:    OutcomeNoConflicts,
			Stabilized: NewSet(intents),
			Steps:      []string{"no conflicts detected"},
		}
	}

	res := &Result{}
	byID := make(map[string]intent.Intent, len(intents))
	surviving := make(map[string]bool, len(intents))
	for _, in := range intents {
		byID[in.ID] = in
		surviving[in.ID] = true
	}

	// 1. Canon violations
	violations := make(map[string][]conflict.Conflict)
	var violators []string
	for _, c := range graph.OfType(conflict.TypeCanonViolation) {
		if !surviving[c.IntentA] {
			continue
		}
		if _, seen := violations[c.IntentA]; !seen {
			violators = append(violators, c.IntentA)
		}
		violations[c.IntentA] = append(violations[c.IntentA], c)
	}
	sort.Strings(violators)
	for _, id := range violators {
		cs := violations[id]
		refs := make([]string, len(cs))
		details := make([]string, len(cs))
		for i, c := range cs {
			refs[i] = c.IntentB
			details[i] = c.Description
		}
		sort.Strings(refs)
		sort.Strings(details)
		delete(surviving, id)
		res.Path = append(res.Path, id)
		res.Steps = append(res.Steps, fmt.Sprintf("rejected %s: canon violation of %s", id, strings.Join(refs, ", ")))
		res.Rejections = append(res.Rejections, Rejection{
			IntentID:        id,
			Reason:          ReasonCanonViolation,
			ConflictingWith: refs,
			AxiomRef:        cs[0].AxiomRef,
			Detail:          strings.Join(details, "; "),
		})
	}

	// 2. Precedence
	for _, c := range graph.Conflicts {
		if c.Type == conflict.TypeCanonViolation || !surviving[c.IntentA] || !surviving[c.IntentB] {
			continue
		}
		winner, loser := decide(byID[c.IntentA], byID[c.IntentB])
		delete(surviving, loser.ID)
		res.Path = append(res.Path, loser.ID)
		res.Steps = append(res.Steps, fmt.Sprintf("rejected %s: lower precedence than %s (%s)", loser.ID, winner.ID, c.Type))
		res.Rejections = append(res.Rejections, Rejection{
			IntentID:        loser.ID,
			Reason:          ReasonLowerPrecedence,
			ConflictingWith: []string{winner.ID},
			AxiomRef:        c.AxiomRef,
			Detail:          c.Description,
		})
	}

	// 3. Aggregate
	var survivors []intent.Intent
	for _, in := range intents {
		if surviving[in.ID] {
			survivors = append(survivors, in)
			delete(surviving, in.ID)
		}
	}
	res.Stabilized = NewSet(survivors)

	// 4. Classify
	switch {
	case len(survivors) == 0:
		res.Outcome = OutcomeTotalRejection
	case len(res.Rejections) > 0:
		res.Outcome = OutcomePartialRejection
	default:
		res.Outcome = OutcomeStabilized
	}
	return res
}

// decide returns (winner, loser) by source rank, then constraint count,
// then lexicographically smaller id.
func decide(a, b intent.Intent) (intent.Intent, intent.Intent) {
	if ra, rb := a.Source.Rank(), b.Source.Rank(); ra != rb {
		if ra > rb {
			return a, b
		}
		return b, a
	}
	if la, lb := len(a.Constraints), len(b.Constraints); la != lb {
		if la > lb {
			return a, b
		}
		return b, a
	}
	if a.ID < b.ID {
		return a, b
	}
	return b, a
}
