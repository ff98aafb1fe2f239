// Package canon holds the sealed, priority-ordered objective set that governs
// every kernel decision, and the six-gate loader that builds it.
//
// A Canon is immutable once constructed: it has no mutators, its accessors
// return copies, and any change requires a full reload producing a new Canon.
package canon

import (
	"strconv"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
)

// Scope is the domain an objective governs.
type Scope string

const (
	ScopeCivilization Scope = "civilization"
	ScopeSystem       Scope = "system"
	ScopeHumanity     Scope = "humanity"
)

// Valid reports whether s is a known objective scope.
func (s Scope) Valid() bool {
	switch s {
	case ScopeCivilization, ScopeSystem, ScopeHumanity:
		return true
	}
	return false
}

// PreservationClass is how strictly an objective must be preserved.
type PreservationClass string

const (
	PreservationNonNegotiable PreservationClass = "non_negotiable"
	PreservationCritical      PreservationClass = "critical"
	PreservationImportant     PreservationClass = "important"
)

// Valid reports whether c is a known preservation class.
func (c PreservationClass) Valid() bool {
	switch c {
	case PreservationNonNegotiable, PreservationCritical, PreservationImportant:
		return true
	}
	return false
}

// SignalRef points at an external success or failure signal.
type SignalRef struct {
	ID          string `json:"signal_id" yaml:"signal_id"`
	Type        string `json:"signal_type,omitempty" yaml:"signal_type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Objective is a declarative, non-executable statement of what must be
// preserved or achieved. Lower priority numbers rank higher.
type Objective struct {
	ID                  string            `json:"objective_id"`
	Description         string            `json:"description"`
	Priority            int               `json:"priority"`
	Scope               Scope             `json:"scope"`
	PreservationClass   PreservationClass `json:"preservation_class"`
	SuccessSignals      []SignalRef       `json:"success_signals,omitempty"`
	FailureSignals      []SignalRef       `json:"failure_signals,omitempty"`
	IrreversibilityRisk float64           `json:"irreversibility_risk"`
}

// ContentHash is the digest of the fields that define the objective.
// Signals are references, not content, and do not participate.
func (o Objective) ContentHash() string {
	return canonicalize.FieldHash(
		o.ID,
		o.Description,
		strconv.Itoa(o.Priority),
		string(o.Scope),
		string(o.PreservationClass),
		strconv.FormatFloat(o.IrreversibilityRisk, 'f', -1, 64),
	)
}

func (o Objective) clone() Objective {
	out := o
	out.SuccessSignals = append([]SignalRef(nil), o.SuccessSignals...)
	out.FailureSignals = append([]SignalRef(nil), o.FailureSignals...)
	return out
}

func cloneObjectives(in []Objective) []Objective {
	out := make([]Objective, len(in))
	for i, o := range in {
		out[i] = o.clone()
	}
	return out
}
