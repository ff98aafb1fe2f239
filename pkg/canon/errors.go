package canon

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSchema        = errors.New("canon schema violation")
	ErrPriority      = errors.New("canon priority violation")
	ErrAxiom         = errors.New("canon axiom incompatibility")
	ErrConsistency   = errors.New("canon consistency violation")
	ErrSeal          = errors.New("canon seal failure")
	ErrAlreadySealed = errors.New("canon already sealed")
	ErrEmpty         = errors.New("canon cannot be empty")
)

// LoadError reports the gate at which a canon load aborted.
type LoadError struct {
	Step   int    `json:"step"`
	Gate   string `json:"gate"`
	Reason string `json:"reason"`
	Cause  error  `json:"-"`
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("canon load aborted at step %d (%s): %s", e.Step, e.Gate, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// SchemaError is a malformed objective record.
type SchemaError struct {
	Index    int
	Location string
	Reason   string
}

func (e *SchemaError) Error() string {
	if e.Index < 0 {
		return e.Reason
	}
	if e.Location == "" {
		return fmt.Sprintf("objective %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("objective %d at %s: %s", e.Index, e.Location, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// PriorityError enumerates why a priority multiset is not {1..N}.
type PriorityError struct {
	Duplicates []int
	Got        []int
	Expected   int
}

func (e *PriorityError) Error() string {
	var b strings.Builder
	if len(e.Duplicates) > 0 {
		fmt.Fprintf(&b, "duplicate priorities %v; ", e.Duplicates)
	}
	fmt.Fprintf(&b, "priorities must form total ordering from 1 to %d. Got: %v, expected: 1..%d", e.Expected, e.Got, e.Expected)
	return b.String()
}

func (e *PriorityError) Unwrap() error { return ErrPriority }

// AxiomError lists every failed axiom check.
type AxiomError struct {
	Failures []AxiomCheck
}

func (e *AxiomError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("objective '%s' is axiom-incompatible: %s", f.ObjectiveID, f.Reason))
	}
	return strings.Join(parts, "; ")
}

func (e *AxiomError) Unwrap() error { return ErrAxiom }

// ConsistencyError lists every contradicting objective pair.
type ConsistencyError struct {
	Contradictions []Contradiction
}

func (e *ConsistencyError) Error() string {
	parts := make([]string, 0, len(e.Contradictions))
	for _, c := range e.Contradictions {
		parts = append(parts, fmt.Sprintf("contradiction between '%s' and '%s': %s", c.A, c.B, c.Reason))
	}
	return strings.Join(parts, "; ")
}

func (e *ConsistencyError) Unwrap() error { return ErrConsistency }
