// Package intent defines the normalized, scoped candidate actions that the
// kernel stabilizes. An Intent carries no execution capability; it only
// describes what might be done.
package intent

import (
	"sort"
	"strings"
	"time"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
)

// Source is where an intent originated. Sources are ranked canon > system > human.
type Source string

const (
	SourceCanon  Source = "canon"
	SourceSystem Source = "system"
	SourceHuman  Source = "human"
)

// Rank orders sources for precedence; higher wins. Unknown sources rank 0.
func (s Source) Rank() int {
	switch s {
	case SourceCanon:
		return 3
	case SourceSystem:
		return 2
	case SourceHuman:
		return 1
	}
	return 0
}

// Valid reports whether s is a known source.
func (s Source) Valid() bool { return s.Rank() > 0 }

// Intent is a normalized candidate action. Treat values as read-only;
// a changed intent is a new intent.
type Intent struct {
	ID          string     `json:"intent_id"`
	Source      Source     `json:"source"`
	Description string     `json:"description"`
	Scope       string     `json:"scope"`
	References  []string   `json:"references,omitempty"`
	Constraints []string   `json:"constraints,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the intent has an expiry at or before now.
func (i Intent) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// ConstraintHash fingerprints the constraint set independent of order.
func (i Intent) ConstraintHash() string {
	sorted := append([]string(nil), i.Constraints...)
	sort.Strings(sorted)
	return canonicalize.HashString(strings.Join(sorted, canonicalize.Separator))
}

// HasReference reports whether ref is among the intent's references.
func (i Intent) HasReference(ref string) bool {
	for _, r := range i.References {
		if r == ref {
			return true
		}
	}
	return false
}

// DeriveID is the content-derived id for a cleaned description, source and scope.
func DeriveID(description string, source Source, scope string) string {
	return canonicalize.ShortID(canonicalize.FieldHash(description, string(source), scope), 16)
}

// IDs returns the ids of intents in input order.
func IDs(intents []Intent) []string {
	ids := make([]string, len(intents))
	for i, in := range intents {
		ids[i] = in.ID
	}
	return ids
}

// SetHash digests a set of intent ids independent of order.
func SetHash(ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return canonicalize.HashString(strings.Join(sorted, canonicalize.Separator))
}
