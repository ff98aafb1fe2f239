package canon

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Masterminds/semver/v3"
)

// LoadResult is the outcome of a canon load.
type LoadResult string

const (
	LoadSuccess LoadResult = "success"
	LoadAbort   LoadResult = "load_abort"
)

// Gate names, in load order.
const (
	GateSchema       = "Schema validation"
	GatePriority     = "Priority validation"
	GateAxiom        = "Axiom compatibility"
	GateConsistency  = "Mutual consistency"
	GatePreservation = "Preservation binding"
	GateSeal         = "Immutability seal"
)

// Gates lists the load gates in order.
var Gates = []string{GateSchema, GatePriority, GateAxiom, GateConsistency, GatePreservation, GateSeal}

// LoadReport is the result of Loader.Load. Canon is nil unless Result is
// LoadSuccess; no partially validated canon is ever exposed.
type LoadReport struct {
	Result        LoadResult `json:"result"`
	Canon         *Canon     `json:"-"`
	Steps         []string   `json:"steps"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Err           error      `json:"-"`
	LoadedAt      time.Time  `json:"loaded_at"`
}

// OK reports whether the load produced a sealed canon.
func (r *LoadReport) OK() bool { return r.Result == LoadSuccess && r.Canon != nil }

// Loader runs the six load gates over a complete batch of raw objectives.
type Loader struct {
	axioms      AxiomPredicate
	consistency *ConsistencyProver
	version     *semver.Version
	clock       func() time.Time
	logger      *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithAxiomPredicate replaces the keyword axiom check.
func WithAxiomPredicate(p AxiomPredicate) LoaderOption {
	return func(l *Loader) { l.axioms = p }
}

// WithContradictionPredicate replaces the lexical consistency check.
func WithContradictionPredicate(p ContradictionPredicate) LoaderOption {
	return func(l *Loader) { l.consistency = NewConsistencyProver(p) }
}

// WithVersion sets the version assigned to the sealed canon.
func WithVersion(v *semver.Version) LoaderOption {
	return func(l *Loader) { l.version = v }
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) LoaderOption {
	return func(l *Loader) { l.clock = clock }
}

// NewLoader returns a Loader with the default keyword and lexical predicates.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		axioms:      NewKeywordAxioms(nil),
		consistency: NewConsistencyProver(nil),
		clock:       time.Now,
		logger:      slog.Default().With("component", "canon_loader"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load validates raw through every gate in order and seals the result.
// The first failing gate aborts the load.
func (l *Loader) Load(raw []RawObjective) *LoadReport {
	report := &LoadReport{Steps: make([]string, 0, len(Gates)+1)}

	c, err := l.run(raw, report)
	report.LoadedAt = l.clock().UTC()
	if err != nil {
		report.Result = LoadAbort
		report.Err = err
		var le *LoadError
		if errors.As(err, &le) {
			report.FailureReason = le.Reason
		} else {
			report.FailureReason = err.Error()
		}
		report.Steps = append(report.Steps, "FAILED: "+report.FailureReason)
		l.logger.Warn("canon load aborted", "steps_passed", len(report.Steps)-1, "reason", report.FailureReason)
		return report
	}

	report.Result = LoadSuccess
	report.Canon = c
	l.logger.Info("canon sealed", "canon_id", c.ID(), "version", c.Version().String(), "objectives", c.Len())
	return report
}

func (l *Loader) run(raw []RawObjective, report *LoadReport) (*Canon, error) {
	pass := func(step int) {
		report.Steps = append(report.Steps, fmt.Sprintf("Step %d PASSED: %s", step, Gates[step-1]))
	}
	fail := func(step int, cause error) error {
		return &LoadError{Step: step, Gate: Gates[step-1], Reason: cause.Error(), Cause: cause}
	}

	// 1. Schema
	objectives, err := parseObjectives(raw)
	if err != nil {
		return nil, fail(1, err)
	}
	pass(1)

	// 2. Priority
	if err := ValidatePriorities(objectives); err != nil {
		return nil, fail(2, err)
	}
	pass(2)

	// 3. Axioms
	compat, err := CheckAxioms(l.axioms, objectives)
	if err != nil {
		return nil, fail(3, err)
	}
	if !compat.Compatible {
		return nil, fail(3, &AxiomError{Failures: compat.Failures})
	}
	pass(3)

	// 4. Consistency
	if err := l.consistency.AssertConsistent(objectives); err != nil {
		return nil, fail(4, err)
	}
	pass(4)

	// 5. Preservation binding (registration only)
	registry := bindPreservation(objectives)
	for _, o := range objectives {
		if _, ok := registry.Class(o.ID); !ok || !o.PreservationClass.Valid() {
			return nil, fail(5, fmt.Errorf("%w: objective %s has no valid preservation class", ErrSchema, o.ID))
		}
	}
	pass(5)

	// 6. Seal
	version := l.version
	if version == nil {
		version = semver.MustParse(InitialVersion)
	}
	c, err := NewSealer().WithClock(l.clock).seal(objectives, version, registry)
	if err != nil {
		return nil, fail(6, fmt.Errorf("%w: %v", ErrSeal, err))
	}
	if !c.Verify() {
		return nil, fail(6, fmt.Errorf("%w: seal verification failed", ErrSeal))
	}
	pass(6)
	return c, nil
}
