package intent

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canon"
)

var (
	ErrUnderspecified = errors.New("intent underspecified")
	ErrAmbiguous      = errors.New("intent ambiguous")
	ErrScope          = errors.New("intent scope invalid")
	ErrSource         = errors.New("intent source invalid")
	ErrExpired        = errors.New("intent expired")
)

// UnboundPrefix marks a reference that names nothing in the canon.
const UnboundPrefix = "unbound:"

// NormalizationError explains why a raw intent was rejected.
type NormalizationError struct {
	Kind   error
	Reason string
}

func (e *NormalizationError) Error() string { return e.Reason }

func (e *NormalizationError) Unwrap() error { return e.Kind }

func reject(kind error, format string, args ...any) *NormalizationError {
	return &NormalizationError{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// RawIntent is an un-normalized request submitted by a collaborator.
type RawIntent struct {
	Source      Source     `json:"source" yaml:"source"`
	Description string     `json:"description" yaml:"description"`
	Scope       string     `json:"scope" yaml:"scope"`
	References  []string   `json:"references,omitempty" yaml:"references,omitempty"`
	Constraints []string   `json:"constraints,omitempty" yaml:"constraints,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Result is the outcome of normalizing one raw intent.
type Result struct {
	OK       bool     `json:"ok"`
	Intent   Intent   `json:"intent"`
	Err      error    `json:"-"`
	Warnings []string `json:"warnings,omitempty"`
}

// ReferenceResolver reports whether a reference names a known canon entry.
// *canon.Canon satisfies it.
type ReferenceResolver interface {
	Has(id string) bool
}

// Lexicon holds the word lists the normalizer rejects on.
type Lexicon struct {
	Scopes       []string `yaml:"scopes" json:"scopes"`
	Hedging      []string `yaml:"hedging" json:"hedging"`
	Placeholders []string `yaml:"placeholders" json:"placeholders"`
	MinLength    int      `yaml:"min_length" json:"min_length"`
}

// DefaultLexicon is used for any Lexicon field left empty.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Scopes:       []string{"civilization", "system", "human", "operational", "experimental"},
		Hedging:      []string{"maybe", "perhaps", "possibly", "might", "could", "somehow", "probably", "approximately"},
		Placeholders: []string{"TBD", "TODO", "...", "etc", "and so on"},
		MinLength:    10,
	}
}

// Normalizer converts raw intents into canonical Intents. It never infers
// missing information: anything it cannot normalize without interpretation
// is rejected.
type Normalizer struct {
	refs    ReferenceResolver
	lexicon Lexicon
	scopes  map[string]struct{}
	clock   func() time.Time
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithReferences binds references against r.
func WithReferences(r ReferenceResolver) Option {
	return func(n *Normalizer) { n.refs = r }
}

// WithLexicon overrides the default word lists. Empty fields keep defaults.
func WithLexicon(l Lexicon) Option {
	return func(n *Normalizer) {
		def := DefaultLexicon()
		if len(l.Scopes) == 0 {
			l.Scopes = def.Scopes
		}
		if len(l.Hedging) == 0 {
			l.Hedging = def.Hedging
		}
		if len(l.Placeholders) == 0 {
			l.Placeholders = def.Placeholders
		}
		if l.MinLength <= 0 {
			l.MinLength = def.MinLength
		}
		n.lexicon = l
	}
}

// WithClock overrides the clock for deterministic testing.
func WithClock(clock func() time.Time) Option {
	return func(n *Normalizer) { n.clock = clock }
}

// NewNormalizer returns a Normalizer with the default lexicon.
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{lexicon: DefaultLexicon(), clock: time.Now}
	for _, opt := range opts {
		opt(n)
	}
	n.scopes = make(map[string]struct{}, len(n.lexicon.Scopes))
	for _, s := range n.lexicon.Scopes {
		n.scopes[strings.ToLower(s)] = struct{}{}
	}
	return n
}

// Normalize validates and canonicalizes one raw intent.
func (n *Normalizer) Normalize(raw RawIntent) Result {
	now := n.clock().UTC()

	if !raw.Source.Valid() {
		return failed(reject(ErrSource, "unknown intent source %q", raw.Source))
	}
	if err := n.checkUnderspecified(raw.Description); err != nil {
		return failed(err)
	}
	if err := n.checkAmbiguity(raw.Description); err != nil {
		return failed(err)
	}
	scope, err := n.normalizeScope(raw.Scope)
	if err != nil {
		return failed(err)
	}
	if raw.ExpiresAt != nil && !now.Before(*raw.ExpiresAt) {
		return failed(reject(ErrExpired, "intent expired at %s", raw.ExpiresAt.UTC().Format(time.RFC3339)))
	}

	refs, warnings := n.bindReferences(raw.References)
	desc := CleanDescription(raw.Description)
	in := Intent{
		ID:          DeriveID(desc, raw.Source, scope),
		Source:      raw.Source,
		Description: desc,
		Scope:       scope,
		References:  refs,
		Constraints: normalizeConstraints(raw.Constraints),
		CreatedAt:   now,
	}
	if raw.ExpiresAt != nil {
		exp := raw.ExpiresAt.UTC()
		in.ExpiresAt = &exp
	}
	return Result{OK: true, Intent: in, Warnings: warnings}
}

// NormalizeAll normalizes a batch concurrently. Results keep input order.
// Only context cancellation produces an error; per-intent failures are
// reported in their Result.
func (n *Normalizer) NormalizeAll(ctx context.Context, raws []RawIntent) ([]Result, error) {
	results := make([]Result, len(raws))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range raws {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = n.Normalize(raws[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func failed(err *NormalizationError) Result {
	return Result{OK: false, Err: err}
}

func (n *Normalizer) checkUnderspecified(desc string) *NormalizationError {
	trimmed := strings.TrimSpace(norm.NFC.String(desc))
	if len([]rune(trimmed)) < n.lexicon.MinLength {
		return reject(ErrUnderspecified, "intent description is too short; intents must be explicitly specified")
	}
	tokens := canon.Tokens(trimmed)
	lower := strings.ToLower(trimmed)
	for _, ph := range n.lexicon.Placeholders {
		var hit bool
		if len(canon.Tokens(ph)) == 0 {
			hit = strings.Contains(lower, ph)
		} else {
			hit = canon.ContainsPhrase(tokens, ph)
		}
		if hit {
			return reject(ErrUnderspecified, "intent contains placeholder '%s'; intents must be fully specified", ph)
		}
	}
	return nil
}

func (n *Normalizer) checkAmbiguity(desc string) *NormalizationError {
	words := make(map[string]struct{})
	for _, t := range canon.Tokens(desc) {
		words[t] = struct{}{}
	}
	markers := append([]string(nil), n.lexicon.Hedging...)
	sort.Strings(markers)
	for _, m := range markers {
		if _, ok := words[strings.ToLower(m)]; ok {
			return reject(ErrAmbiguous, "intent contains ambiguous language: '%s'; normalization cannot proceed without interpretation", m)
		}
	}
	return nil
}

func (n *Normalizer) normalizeScope(scope string) (string, *NormalizationError) {
	s := strings.ToLower(strings.TrimSpace(scope))
	if s == "" {
		return "", reject(ErrUnderspecified, "intent scope must be explicitly specified; scope is never inferred")
	}
	if _, ok := n.scopes[s]; !ok {
		return "", reject(ErrScope, "unknown scope '%s'", scope)
	}
	return s, nil
}

func (n *Normalizer) bindReferences(refs []string) ([]string, []string) {
	if len(refs) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(refs))
	var warnings []string
	for _, r := range refs {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if n.refs != nil && n.refs.Has(r) {
			out = append(out, r)
			continue
		}
		out = append(out, UnboundPrefix+r)
		warnings = append(warnings, fmt.Sprintf("reference %q is not bound to the canon", r))
	}
	return out, warnings
}

func normalizeConstraints(cs []string) []string {
	var out []string
	for _, c := range cs {
		if cleaned := strings.ToLower(strings.TrimSpace(norm.NFC.String(c))); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

// CleanDescription applies NFC, collapses whitespace and strips trailing
// punctuation.
func CleanDescription(desc string) string {
	cleaned := strings.Join(strings.Fields(norm.NFC.String(desc)), " ")
	return strings.TrimRight(cleaned, ".,;:")
}
