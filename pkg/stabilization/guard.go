// Package stabilization guards intent integrity across governance cycles.
// Every violation it reports is halt-class: the caller must stop the
// pipeline and escalate, never retry.
package stabilization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/surulere15/CONTINUUM-sub000/pkg/intent"
)

// DefaultMaxNormalizations is how many times one intent id may be normalized.
const DefaultMaxNormalizations = 3

var ErrHalt = errors.New("stabilization violation: halt required")

// ViolationType classifies a stabilization violation.
type ViolationType string

const (
	ViolationSilentWeakening        ViolationType = "silent_weakening"
	ViolationProgressiveDrift       ViolationType = "progressive_drift"
	ViolationRejectedReintroduction ViolationType = "rejected_reintroduction"
	ViolationCircularDependency     ViolationType = "circular_dependency"
)

// Violation is a halt-class stabilization error.
type Violation struct {
	ID          string        `json:"violation_id"`
	Type        ViolationType `json:"violation_type"`
	IntentID    string        `json:"intent_id"`
	Description string        `json:"description"`
	DetectedAt  time.Time     `json:"detected_at"`
}

func (v *Violation) Error() string {
	return fmt.Sprintf("HALT: %s: %s", v.Type, v.Description)
}

func (v *Violation) Unwrap() error { return ErrHalt }

// Guard detects weakening, reintroduction, circular resolution and drift.
type Guard struct {
	history           HistoryStore
	authorizer        Authorizer
	maxNormalizations int
	clock             func() time.Time
	logger            *slog.Logger

	mu         sync.Mutex
	violations []Violation
}

// Option configures a Guard.
type Option func(*Guard)

// WithHistory sets the cross-cycle store. The default is in-memory.
func WithHistory(h HistoryStore) Option {
	return func(g *Guard) { g.history = h }
}

// WithAuthorizer sets the verifier for human override tokens. Without one,
// rejections can never be cleared.
func WithAuthorizer(a Authorizer) Option {
	return func(g *Guard) { g.authorizer = a }
}

// WithMaxNormalizations overrides the drift threshold.
func WithMaxNormalizations(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.maxNormalizations = n
		}
	}
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(g *Guard) { g.clock = clock }
}

// NewGuard returns a Guard.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{
		history:           NewMemoryHistory(),
		maxNormalizations: DefaultMaxNormalizations,
		clock:             time.Now,
		logger:            slog.Default().With("component", "stabilization_guard"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MaxNormalizations returns the drift threshold.
func (g *Guard) MaxNormalizations() int { return g.maxNormalizations }

// CheckWeakening compares in against the last recorded fingerprint for its
// id and records the new one. A changed constraint set with fewer
// constraints is a violation.
func (g *Guard) CheckWeakening(ctx context.Context, in intent.Intent) error {
	fp := g.fingerprintOf(in)
	prev, found, err := g.history.SwapFingerprint(ctx, fp)
	if err != nil {
		return fmt.Errorf("check weakening: %w", err)
	}
	if !found || prev.ConstraintHash == fp.ConstraintHash {
		return nil
	}
	if fp.ConstraintCount < prev.ConstraintCount {
		return g.violation(ViolationSilentWeakening, in.ID,
			fmt.Sprintf("constraints for intent %s reduced from %d to %d without explicit approval", in.ID, prev.ConstraintCount, fp.ConstraintCount))
	}
	return nil
}

// RecordFingerprint stores the fingerprint of in without checking it.
func (g *Guard) RecordFingerprint(ctx context.Context, in intent.Intent) error {
	if _, _, err := g.history.SwapFingerprint(ctx, g.fingerprintOf(in)); err != nil {
		return fmt.Errorf("record fingerprint: %w", err)
	}
	return nil
}

func (g *Guard) fingerprintOf(in intent.Intent) Fingerprint {
	return Fingerprint{
		IntentID:        in.ID,
		ConstraintHash:  in.ConstraintHash(),
		ConstraintCount: len(in.Constraints),
		Scope:           in.Scope,
		RecordedAt:      g.clock().UTC(),
	}
}

// RecordRejection marks id as rejected.
func (g *Guard) RecordRejection(ctx context.Context, id string) error {
	if err := g.history.MarkRejected(ctx, id); err != nil {
		return fmt.Errorf("record rejection: %w", err)
	}
	return nil
}

// CheckReintroduction fails if id was previously rejected and not cleared.
func (g *Guard) CheckReintroduction(ctx context.Context, id string) error {
	rejected, err := g.history.IsRejected(ctx, id)
	if err != nil {
		return fmt.Errorf("check reintroduction: %w", err)
	}
	if rejected {
		return g.violation(ViolationRejectedReintroduction, id,
			fmt.Sprintf("rejected intent %s was reintroduced; clearance requires human authorization", id))
	}
	return nil
}

// CheckCircularDependency fails if path repeats an id.
func (g *Guard) CheckCircularDependency(path []string) error {
	seen := make(map[string]struct{}, len(path))
	for _, id := range path {
		if _, dup := seen[id]; dup {
			return g.violation(ViolationCircularDependency, id,
				fmt.Sprintf("circular resolution dependency: %s", strings.Join(path, " -> ")))
		}
		seen[id] = struct{}{}
	}
	return nil
}

// RecordNormalization counts one more normalization of id and checks drift.
func (g *Guard) RecordNormalization(ctx context.Context, id string) (int, error) {
	n, err := g.history.IncrementNormalizations(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("record normalization: %w", err)
	}
	return n, g.CheckProgressiveDrift(id, n)
}

// CheckProgressiveDrift fails when count exceeds the drift threshold.
func (g *Guard) CheckProgressiveDrift(id string, count int) error {
	if count > g.maxNormalizations {
		return g.violation(ViolationProgressiveDrift, id,
			fmt.Sprintf("intent %s normalized %d times; maximum allowed is %d", id, count, g.maxNormalizations))
	}
	return nil
}

// ClearRejection lifts the rejection of id if token is a valid, unused
// human authorization bound to id.
func (g *Guard) ClearRejection(ctx context.Context, id, token string) (*Authorization, error) {
	if g.authorizer == nil {
		return nil, fmt.Errorf("%w: no authorizer configured", ErrUnauthorized)
	}
	auth, err := g.authorizer.Authorize(token, id)
	if err != nil {
		return nil, err
	}
	fresh, err := g.history.RedeemOverride(ctx, auth.TokenID, id)
	if err != nil {
		return nil, fmt.Errorf("clear rejection: %w", err)
	}
	if !fresh {
		return nil, fmt.Errorf("%w: token %s already used", ErrUnauthorized, auth.TokenID)
	}
	g.logger.InfoContext(ctx, "rejection cleared", "intent_id", id, "principal", auth.Principal, "token_id", auth.TokenID)
	return auth, nil
}

// RejectedIDs lists every currently rejected id.
func (g *Guard) RejectedIDs(ctx context.Context) ([]string, error) {
	return g.history.RejectedIDs(ctx)
}

// Violations returns every violation raised by this guard, oldest first.
func (g *Guard) Violations() []Violation {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Violation(nil), g.violations...)
}

func (g *Guard) violation(t ViolationType, id, desc string) *Violation {
	g.mu.Lock()
	v := Violation{
		ID:          fmt.Sprintf("violation_%d", len(g.violations)+1),
		Type:        t,
		IntentID:    id,
		Description: desc,
		DetectedAt:  g.clock().UTC(),
	}
	g.violations = append(g.violations, v)
	g.mu.Unlock()

	g.logger.Error("stabilization violation", "type", string(t), "intent_id", id, "description", desc)
	return &v
}
