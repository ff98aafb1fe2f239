// Package kernel wires the canon, the governance pipeline, the
// stabilization guard and the audit log into one explicit context object.
//
// A Kernel has a single writer: canon seals, governance cycles, overrides
// and halts serialize on one mutex, and every decision is appended to the
// audit log before it is returned. Readers of the sealed canon and of
// audit history never block.
package kernel

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/surulere15/CONTINUUM-sub000/pkg/artifacts"
	"github.com/surulere15/CONTINUUM-sub000/pkg/audit"
	"github.com/surulere15/CONTINUUM-sub000/pkg/canon"
	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
	"github.com/surulere15/CONTINUUM-sub000/pkg/config"
	"github.com/surulere15/CONTINUUM-sub000/pkg/conflict"
	"github.com/surulere15/CONTINUUM-sub000/pkg/intent"
	"github.com/surulere15/CONTINUUM-sub000/pkg/keyring"
	"github.com/surulere15/CONTINUUM-sub000/pkg/observability"
	"github.com/surulere15/CONTINUUM-sub000/pkg/resolution"
	"github.com/surulere15/CONTINUUM-sub000/pkg/stabilization"
)

var (
	ErrHalted  = errors.New("kernel halted")
	ErrNoCanon = errors.New("no sealed canon")
)

// Kernel is the governance kernel.
type Kernel struct {
	writeMu sync.Mutex
	modes   *ModeMachine
	canon   atomic.Pointer[canon.Canon]
	canons  canon.Store

	audit     *audit.Log
	guard     *stabilization.Guard
	engine    Resolver
	profile   *config.Profile
	telemetry *observability.Provider
	signer    *keyring.Keyring
	archive   artifacts.Store

	axioms        canon.AxiomPredicate
	contradiction canon.ContradictionPredicate
	detectorOpts  []conflict.Option

	closers []func() error
	clock   func() time.Time
	logger  *slog.Logger
}

// Resolver decides which normalized intents survive a conflict graph.
// resolution.Engine is the default.
type Resolver interface {
	Resolve(intents []intent.Intent, graph *conflict.Graph) *resolution.Result
}

// Option configures a Kernel.
type Option func(*Kernel)

// WithAuditLog replaces the default in-memory audit log.
func WithAuditLog(l *audit.Log) Option {
	return func(k *Kernel) { k.audit = l }
}

// WithCanonStore sets the append-only history every sealed canon is
// written to. The default keeps it in memory.
func WithCanonStore(s canon.Store) Option {
	return func(k *Kernel) { k.canons = s }
}

// WithResolver replaces the default resolution engine.
func WithResolver(r Resolver) Option {
	return func(k *Kernel) { k.engine = r }
}

// WithGuard replaces the default stabilization guard.
func WithGuard(g *stabilization.Guard) Option {
	return func(k *Kernel) { k.guard = g }
}

// WithProfile tunes normalization, detection and canon predicates.
func WithProfile(p *config.Profile) Option {
	return func(k *Kernel) { k.profile = p }
}

// WithTelemetry sets the OpenTelemetry provider.
func WithTelemetry(p *observability.Provider) Option {
	return func(k *Kernel) { k.telemetry = p }
}

// WithSigner sets the key that signs audit exports.
func WithSigner(s *keyring.Keyring) Option {
	return func(k *Kernel) { k.signer = s }
}

// WithArchive stores signed audit exports in s.
func WithArchive(s artifacts.Store) Option {
	return func(k *Kernel) { k.archive = s }
}

// WithClock overrides the clock for deterministic testing. It also drives
// the default audit log, guard and normalizer.
func WithClock(clock func() time.Time) Option {
	return func(k *Kernel) { k.clock = clock }
}

// WithCloser registers fn to run on Close.
func WithCloser(fn func() error) Option {
	return func(k *Kernel) { k.closers = append(k.closers, fn) }
}

// New returns a kernel in NULL mode. Components not supplied by options
// get in-memory defaults.
func New(ctx context.Context, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		engine: resolution.NewEngine(),
		clock:  time.Now,
		logger: slog.Default().With("component", "kernel"),
	}
	for _, opt := range opts {
		opt(k)
	}

	if k.profile == nil {
		k.profile = config.DefaultProfile()
	}
	if k.audit == nil {
		k.audit = audit.NewLog(audit.WithClock(k.clock))
	}
	if k.canons == nil {
		k.canons = canon.NewMemoryStore()
	}
	if k.guard == nil {
		k.guard = stabilization.NewGuard(
			stabilization.WithMaxNormalizations(k.profile.MaxNormalizations),
			stabilization.WithClock(k.clock),
		)
	}
	if k.telemetry == nil {
		tp, err := observability.New(ctx, nil)
		if err != nil {
			return nil, err
		}
		k.telemetry = tp
	}
	if k.signer == nil {
		provider, err := keyring.NewMemoryKeyProvider()
		if err != nil {
			return nil, fmt.Errorf("kernel: ephemeral signer: %w", err)
		}
		if k.signer, err = keyring.New(provider); err != nil {
			return nil, fmt.Errorf("kernel: ephemeral signer: %w", err)
		}
	}

	axioms, err := k.profile.AxiomPredicate()
	if err != nil {
		return nil, fmt.Errorf("kernel: %w", err)
	}
	k.axioms = axioms
	k.contradiction = k.profile.ContradictionPredicate()
	k.detectorOpts = k.profile.DetectorOptions()
	k.modes = NewModeMachine(k.clock)
	return k, nil
}

// Mode returns the current kernel mode.
func (k *Kernel) Mode() Mode { return k.modes.Mode() }

// ModeHistory returns every mode transition, oldest first.
func (k *Kernel) ModeHistory() []Transition { return k.modes.History() }

// StateHash digests the kernel mode state.
func (k *Kernel) StateHash() string { return k.modes.StateHash() }

// Canon returns the sealed canon, or nil before the first successful load.
func (k *Kernel) Canon() *canon.Canon { return k.canon.Load() }

// CanonHistory lists every canon this kernel's store has sealed, oldest
// first.
func (k *Kernel) CanonHistory(ctx context.Context) ([]canon.Record, error) {
	return k.canons.History(ctx)
}

// AuditEntries returns a copy of the audit chain.
func (k *Kernel) AuditEntries() []audit.Entry { return k.audit.Entries() }

// AuditHead returns the current audit chain head.
func (k *Kernel) AuditHead() string { return k.audit.Head() }

// RejectedIDs lists intent ids currently barred from reintroduction.
func (k *Kernel) RejectedIDs(ctx context.Context) ([]string, error) {
	return k.guard.RejectedIDs(ctx)
}

// Violations returns every stabilization violation raised so far.
func (k *Kernel) Violations() []stabilization.Violation { return k.guard.Violations() }

// LoadCanon runs raw through the six load gates. Every gate record and the
// outcome are audited. On success the canon is appended to the canon store,
// published, and the kernel enters GENESIS; a reload passes through NULL
// and bumps the version past the store's latest. A failed load leaves the
// previous canon and mode in place.
func (k *Kernel) LoadCanon(ctx context.Context, raw []canon.RawObjective) (report *canon.LoadReport, err error) {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	if k.modes.Halted() {
		return nil, ErrHalted
	}
	ctx, done := k.telemetry.TrackOperation(ctx, "canon.load", observability.CanonOperation(len(raw))...)
	defer func() { done(err) }()

	inputHash := canonInputHash(raw)
	prev := k.canon.Load()
	latest, err := k.canons.Latest(ctx)
	if err != nil && !errors.Is(err, canon.ErrCanonNotFound) {
		return nil, fmt.Errorf("canon store: %w", err)
	}
	loader := canon.NewLoader(
		canon.WithAxiomPredicate(k.axioms),
		canon.WithContradictionPredicate(k.contradiction),
		canon.WithVersion(canon.NextVersion(latest)),
		canon.WithClock(k.clock),
	)
	report = loader.Load(raw)

	for _, step := range report.Steps {
		if err := k.record(ctx, audit.EventCanonLoadStep, inputHash, step, ""); err != nil {
			return nil, err
		}
	}
	if !report.OK() {
		if err := k.record(ctx, audit.EventCanonLoadAbort, inputHash, report.FailureReason, ""); err != nil {
			return nil, err
		}
		return report, report.Err
	}

	c := report.Canon
	rec, err := k.canons.Append(ctx, c)
	if err != nil {
		if aerr := k.record(ctx, audit.EventCanonLoadAbort, inputHash, "FAILED: canon store: "+err.Error(), ""); aerr != nil {
			return nil, aerr
		}
		return report, fmt.Errorf("append canon: %w", err)
	}
	decision := fmt.Sprintf("canon %s v%s sealed with %d objectives", c.ID(), c.Version(), c.Len())
	if rec.Ref != "" {
		decision += ", archived as " + rec.Ref
	}
	if err := k.record(ctx, audit.EventCanonSealed, c.Seal(), decision, ""); err != nil {
		return nil, err
	}

	if k.modes.Mode() == ModeGenesis && prev != nil {
		if err := k.transition(ctx, ModeNull, "canon reload", prev.Seal()); err != nil {
			return nil, err
		}
	}
	k.canon.Store(c)
	if err := k.transition(ctx, ModeGenesis, "canon sealed", c.Seal()); err != nil {
		return nil, err
	}
	k.logger.InfoContext(ctx, "canon active", "canon_id", c.ID(), "version", c.Version().String(), "objectives", c.Len())
	return report, nil
}

// canonInputHash digests raw for the audit trail. Records that JSON cannot
// carry (NaN, infinities) fall back to their printed form so the schema
// gate still rejects them on the record.
func canonInputHash(raw []canon.RawObjective) string {
	if h, err := canonicalize.CanonicalHash(raw); err == nil {
		return h
	}
	return canonicalize.HashString(fmt.Sprintf("%v", raw))
}

// ClearRejection lifts the reintroduction bar on id using a human
// authorization token. Grants and denials are both audited.
func (k *Kernel) ClearRejection(ctx context.Context, id, token string) (*stabilization.Authorization, error) {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	if k.modes.Halted() {
		return nil, ErrHalted
	}
	auth, err := k.guard.ClearRejection(ctx, id, token)
	if err != nil {
		if aerr := k.record(ctx, audit.EventHumanOverride, canonicalize.HashString(id), "override denied: "+err.Error(), ""); aerr != nil {
			return nil, aerr
		}
		return nil, err
	}
	decision := fmt.Sprintf("rejection of %s cleared by %s (token %s)", id, auth.Principal, auth.TokenID)
	if err := k.record(ctx, audit.EventHumanOverride, canonicalize.HashString(id), decision, ""); err != nil {
		return nil, err
	}
	return auth, nil
}

// Halt stops the kernel permanently.
func (k *Kernel) Halt(ctx context.Context, reason string) error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()
	return k.halt(ctx, reason)
}

// VerifyAudit recomputes the audit chain against its sink. A mismatch
// halts the kernel.
func (k *Kernel) VerifyAudit(ctx context.Context) error {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()
	if err := k.audit.VerifyChain(ctx); err != nil {
		k.haltUnaudited(ctx, err)
		return err
	}
	return nil
}

// ExportAudit builds a signed audit bundle. When an archive is configured
// the bundle is stored and its reference returned. Export verifies the
// chain first; a mismatch halts the kernel.
func (k *Kernel) ExportAudit(ctx context.Context) (*audit.Bundle, string, error) {
	k.writeMu.Lock()
	defer k.writeMu.Unlock()

	bundle, err := k.audit.Export(ctx, k.signer)
	if err != nil {
		if errors.Is(err, audit.ErrChain) {
			k.haltUnaudited(ctx, err)
		}
		return nil, "", err
	}
	if k.archive == nil {
		return bundle, "", nil
	}
	ref, err := audit.Archive(ctx, k.archive, bundle)
	if err != nil {
		return nil, "", err
	}
	k.logger.InfoContext(ctx, "audit bundle archived", "bundle_id", bundle.BundleID, "ref", ref, "entries", bundle.EntryCount)
	return bundle, ref, nil
}

// ExportKey is the public key that verifies ExportAudit bundles.
func (k *Kernel) ExportKey() ed25519.PublicKey { return k.signer.PublicKey() }

// Close flushes telemetry and releases the audit sink and other resources.
func (k *Kernel) Close(ctx context.Context) error {
	var errs []error
	if err := k.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := k.audit.Close(); err != nil {
		errs = append(errs, err)
	}
	for _, fn := range k.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// record appends one audit entry. An append failure halts the kernel.
func (k *Kernel) record(ctx context.Context, t audit.EventType, inputHash, decision, axiomRef string) error {
	if _, err := k.audit.Append(ctx, t, inputHash, decision, axiomRef); err != nil {
		k.haltUnaudited(ctx, err)
		return err
	}
	k.telemetry.RecordAuditAppend(ctx, string(t))
	return nil
}

func (k *Kernel) transition(ctx context.Context, to Mode, reason, input string) error {
	t, err := k.modes.Transition(to, reason, input)
	if err != nil {
		return err
	}
	return k.record(ctx, audit.EventModeTransition, t.InputHash, fmt.Sprintf("%s -> %s: %s", t.From, t.To, reason), "")
}

// halt moves to HALTED and audits it.
func (k *Kernel) halt(ctx context.Context, reason string) error {
	t, err := k.modes.Halt(reason)
	if err != nil {
		return err
	}
	k.logger.ErrorContext(ctx, "kernel halted", "reason", reason, "from", t.From)
	return k.record(ctx, audit.EventKernelHalted, t.InputHash, t.Reason, "")
}

// haltUnaudited halts after the audit log itself failed; nothing more can
// be recorded.
func (k *Kernel) haltUnaudited(ctx context.Context, cause error) {
	if _, err := k.modes.Halt("audit failure: " + cause.Error()); err != nil {
		return
	}
	k.logger.ErrorContext(ctx, "kernel halted on audit failure", "error", cause)
}
