// Package conflict finds structural conflicts among a batch of intents and
// between intents and the canon. Detection never ranks or resolves; it only
// records what conflicts exist.
package conflict

import (
	"sort"
	"strings"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
)

// Type classifies a conflict.
type Type string

const (
	TypeDirectContradiction       Type = "direct_contradiction"
	TypeScopeCollision            Type = "scope_collision"
	TypeCanonViolation            Type = "canon_violation"
	TypeConstraintIncompatibility Type = "constraint_incompatibility"
)

// InvariantPrefix marks the second party of a canon violation.
const InvariantPrefix = "invariant:"

// Conflict is a detected fact, not a judgment. IntentB is either another
// intent id or InvariantPrefix followed by an objective id.
type Conflict struct {
	ID          string `json:"conflict_id"`
	Type        Type   `json:"conflict_type"`
	IntentA     string `json:"intent_a"`
	IntentB     string `json:"intent_b"`
	Description string `json:"description"`
	AxiomRef    string `json:"axiom_ref,omitempty"`
}

// Involves reports whether id is a party to the conflict.
func (c Conflict) Involves(id string) bool {
	return c.IntentA == id || c.IntentB == id
}

// Other returns the party that is not id.
func (c Conflict) Other(id string) string {
	if c.IntentA == id {
		return c.IntentB
	}
	return c.IntentA
}

// ObjectiveID returns the objective named by a canon violation.
func (c Conflict) ObjectiveID() (string, bool) {
	if c.Type != TypeCanonViolation {
		return "", false
	}
	return strings.CutPrefix(c.IntentB, InvariantPrefix)
}

func conflictID(t Type, a, b string) string {
	if b < a && !strings.HasPrefix(b, InvariantPrefix) {
		a, b = b, a
	}
	return canonicalize.ShortID(canonicalize.FieldHash(string(t), a, b), 16)
}

// Graph holds every supplied intent id and every detected conflict.
// Conflicts are sorted by id.
type Graph struct {
	ID        string     `json:"graph_id"`
	IntentIDs []string   `json:"intent_ids"`
	Conflicts []Conflict `json:"conflicts"`
}

func newGraph(intentIDs []string, conflicts []Conflict) *Graph {
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].ID < conflicts[j].ID })
	ids := make([]string, len(conflicts))
	for i, c := range conflicts {
		ids[i] = c.ID
	}
	return &Graph{
		ID:        canonicalize.ShortID(canonicalize.HashString(strings.Join(ids, canonicalize.Separator)), 16),
		IntentIDs: intentIDs,
		Conflicts: conflicts,
	}
}

// HasConflicts reports whether any conflict was detected.
func (g *Graph) HasConflicts() bool { return len(g.Conflicts) > 0 }

// ConflictsFor returns every conflict involving id.
func (g *Graph) ConflictsFor(id string) []Conflict {
	var out []Conflict
	for _, c := range g.Conflicts {
		if c.Involves(id) {
			out = append(out, c)
		}
	}
	return out
}

// OfType returns every conflict of type t.
func (g *Graph) OfType(t Type) []Conflict {
	var out []Conflict
	for _, c := range g.Conflicts {
		if c.Type == t {
			out = append(out, c)
		}
	}
	return out
}

// Neighbors returns the sorted, de-duplicated ids in conflict with id.
func (g *Graph) Neighbors(id string) []string {
	seen := make(map[string]struct{})
	for _, c := range g.ConflictsFor(id) {
		seen[c.Other(id)] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
