package kernel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/surulere15/CONTINUUM-sub000/pkg/audit"
	"github.com/surulere15/CONTINUUM-sub000/pkg/canon"
	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
	"github.com/surulere15/CONTINUUM-sub000/pkg/conflict"
	"github.com/surulere15/CONTINUUM-sub000/pkg/intent"
	"github.com/surulere15/CONTINUUM-sub000/pkg/observability"
	"github.com/surulere15/CONTINUUM-sub000/pkg/resolution"
	"github.com/surulere15/CONTINUUM-sub000/pkg/stabilization"
)

// ReasonExpired is the rejection reason for an intent that expired before
// detection.
const ReasonExpired = "intent expired"

// RejectionReport explains one rejected intent.
type RejectionReport struct {
	IntentID        string    `json:"intent_id"`
	Reason          string    `json:"reason"`
	ConflictingWith []string  `json:"conflicting_with"`
	AxiomReference  string    `json:"axiom_reference,omitempty"`
	RejectedAt      time.Time `json:"rejected_at"`
}

// CycleReport is the outcome of one governance cycle.
type CycleReport struct {
	CycleID      string             `json:"cycle_id"`
	CanonID      string             `json:"canon_id"`
	CanonVersion string             `json:"canon_version"`
	Result       *resolution.Result `json:"result"`
	Conflicts    *conflict.Graph    `json:"conflicts"`
	// Rejections is parallel to Result.Rejections.
	Rejections []RejectionReport `json:"rejections"`
	// Failures are raw intents that never reached detection. Intents that
	// failed normalization are identified as raw:<index>.
	Failures    []RejectionReport `json:"failures,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
	AuditHead   string            `json:"audit_head"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Govern runs one governance cycle over raws: normalization, stabilization
// pre-checks, conflict detection, resolution and the circularity check.
// Every step is audited. A stabilization violation is audited, halts the
// kernel and is returned; an audit failure halts the kernel and returns the
// *audit.ChainError.
func (k *Kernel) Govern(ctx context.Context, raws []intent.RawIntent) (report *CycleReport, err error) {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	switch k.modes.Mode() {
	case ModeHalted:
		return nil, ErrHalted
	case ModeNull:
		return nil, ErrNoCanon
	}
	c := k.canon.Load()
	cycleID := uuid.NewString()

	ctx, done := k.telemetry.TrackOperation(ctx, "governance.cycle", observability.CycleOperation(cycleID, c.ID(), len(raws))...)
	defer func() { done(err) }()
	logger := k.logger.With("cycle_id", cycleID)

	report = &CycleReport{CycleID: cycleID, CanonID: c.ID(), CanonVersion: c.Version().String()}

	intents, err := k.normalize(ctx, c, raws, report)
	if err != nil {
		return nil, err
	}
	if err := k.precheck(ctx, intents); err != nil {
		return nil, err
	}

	detector := conflict.NewDetector(append([]conflict.Option{conflict.WithInvariants(c)}, k.detectorOpts...)...)
	graph := detector.Detect(intents)
	report.Conflicts = graph
	setHash := intent.SetHash(intent.IDs(intents))
	if err := k.record(ctx, audit.EventConflictsDetected, setHash, describeConflicts(graph), ""); err != nil {
		return nil, err
	}

	result := k.engine.Resolve(intents, graph)
	report.Result = result
	// resolution.Engine decides against each intent at most once; a
	// repeated id in Path means the resolver looped.
	if err := k.guard.CheckCircularDependency(result.Path); err != nil {
		return nil, k.violated(ctx, err)
	}

	now := k.clock().UTC()
	report.Rejections = make([]RejectionReport, 0, len(result.Rejections))
	byReason := make(map[string]int)
	for _, rj := range result.Rejections {
		if err := k.guard.RecordRejection(ctx, rj.IntentID); err != nil {
			return nil, err
		}
		decision := fmt.Sprintf("rejected: %s; conflicting with %s", rj.Reason, strings.Join(rj.ConflictingWith, ", "))
		if err := k.record(ctx, audit.EventIntentRejected, canonicalize.HashString(rj.IntentID), decision, rj.AxiomRef); err != nil {
			return nil, err
		}
		report.Rejections = append(report.Rejections, RejectionReport{
			IntentID:        rj.IntentID,
			Reason:          rj.Reason,
			ConflictingWith: rj.ConflictingWith,
			AxiomReference:  rj.AxiomRef,
			RejectedAt:      now,
		})
		byReason[rj.Reason]++
	}
	for reason, n := range byReason {
		k.telemetry.RecordRejections(ctx, n, reason)
	}

	decision := fmt.Sprintf("%s: %d stabilized, %d rejected, set %s", result.Outcome, len(result.Stabilized.Intents), len(result.Rejections), result.Stabilized.Hash)
	if err := k.record(ctx, audit.EventResolution, setHash, decision, ""); err != nil {
		return nil, err
	}

	trace.SpanFromContext(ctx).SetAttributes(observability.CycleResult(string(result.Outcome), len(graph.Conflicts), result.Stabilized.Hash)...)
	report.AuditHead = k.audit.Head()
	report.CompletedAt = k.clock().UTC()
	logger.InfoContext(ctx, "governance cycle complete",
		"outcome", result.Outcome,
		"intents", len(intents),
		"conflicts", len(graph.Conflicts),
		"rejected", len(result.Rejections),
		"failed", len(report.Failures),
	)
	return report, nil
}

// normalize turns raws into unique, unexpired intents. Failures and
// duplicates are reported on report and audited.
func (k *Kernel) normalize(ctx context.Context, c *canon.Canon, raws []intent.RawIntent, report *CycleReport) ([]intent.Intent, error) {
	normalizer := intent.NewNormalizer(
		intent.WithReferences(c),
		intent.WithLexicon(k.profile.Intent),
		intent.WithClock(k.clock),
	)
	results, err := normalizer.NormalizeAll(ctx, raws)
	if err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	now := k.clock().UTC()
	seen := make(map[string]struct{}, len(results))
	intents := make([]intent.Intent, 0, len(results))
	for i, res := range results {
		rawHash, err := canonicalize.CanonicalHash(raws[i])
		if err != nil {
			return nil, fmt.Errorf("hash raw intent %d: %w", i, err)
		}
		if !res.OK {
			id := fmt.Sprintf("raw:%d", i)
			report.Failures = append(report.Failures, RejectionReport{IntentID: id, Reason: res.Err.Error(), RejectedAt: now})
			if err := k.record(ctx, audit.EventNormalizationFailed, rawHash, id+": "+res.Err.Error(), ""); err != nil {
				return nil, err
			}
			continue
		}

		in := res.Intent
		for _, w := range res.Warnings {
			report.Warnings = append(report.Warnings, in.ID+": "+w)
		}
		if _, dup := seen[in.ID]; dup {
			report.Warnings = append(report.Warnings, fmt.Sprintf("raw:%d duplicates intent %s and was dropped", i, in.ID))
			continue
		}
		seen[in.ID] = struct{}{}

		if in.Expired(now) {
			report.Failures = append(report.Failures, RejectionReport{IntentID: in.ID, Reason: ReasonExpired, RejectedAt: now})
			if err := k.record(ctx, audit.EventIntentRejected, rawHash, "rejected: "+ReasonExpired, ""); err != nil {
				return nil, err
			}
			continue
		}
		if err := k.record(ctx, audit.EventIntentNormalized, rawHash, fmt.Sprintf("normalized as %s (%s, %s)", in.ID, in.Source, in.Scope), ""); err != nil {
			return nil, err
		}
		intents = append(intents, in)
	}
	return intents, nil
}

// precheck runs the cross-cycle guard checks on every intent before
// detection.
func (k *Kernel) precheck(ctx context.Context, intents []intent.Intent) error {
	for _, in := range intents {
		if err := k.guard.CheckReintroduction(ctx, in.ID); err != nil {
			return k.violated(ctx, err)
		}
		if _, err := k.guard.RecordNormalization(ctx, in.ID); err != nil {
			return k.violated(ctx, err)
		}
		if err := k.guard.CheckWeakening(ctx, in); err != nil {
			return k.violated(ctx, err)
		}
	}
	return nil
}

// violated audits a stabilization violation and halts the kernel. Other
// errors, such as history store failures, are returned unchanged.
func (k *Kernel) violated(ctx context.Context, err error) error {
	var v *stabilization.Violation
	if !errors.As(err, &v) {
		return err
	}
	k.telemetry.RecordViolation(ctx, string(v.Type))
	if aerr := k.record(ctx, audit.EventStabilizationViolation, canonicalize.HashString(v.IntentID), v.Error(), ""); aerr != nil {
		return aerr
	}
	if herr := k.halt(ctx, v.Error()); herr != nil {
		return herr
	}
	return err
}

func describeConflicts(g *conflict.Graph) string {
	if !g.HasConflicts() {
		return "no conflicts"
	}
	counts := make(map[conflict.Type]int)
	for _, c := range g.Conflicts {
		counts[c.Type]++
	}
	types := []conflict.Type{
		conflict.TypeDirectContradiction,
		conflict.TypeScopeCollision,
		conflict.TypeConstraintIncompatibility,
		conflict.TypeCanonViolation,
	}
	parts := make([]string, 0, len(types))
	for _, t := range types {
		if n := counts[t]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", t, n))
		}
	}
	return fmt.Sprintf("%d conflicts: %s", len(g.Conflicts), strings.Join(parts, " "))
}
