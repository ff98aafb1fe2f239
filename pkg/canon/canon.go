package canon

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
)

// InitialVersion is the version of the first canon a kernel loads.
const InitialVersion = "1.0.0"

// Canon is a sealed, immutable, priority-ordered objective set.
type Canon struct {
	id           string
	version      *semver.Version
	objectives   []Objective
	seal         string
	sealed       bool
	loadedAt     time.Time
	preservation *PreservationRegistry
}

// ID is derived from the seal.
func (c *Canon) ID() string { return c.id }

// Version is the semantic version assigned at load.
func (c *Canon) Version() *semver.Version { return c.version }

// Seal is the digest over every objective content hash, in priority order.
func (c *Canon) Seal() string { return c.seal }

// Sealed is always true for a Canon produced by a Sealer.
func (c *Canon) Sealed() bool { return c.sealed }

// LoadedAt is when the canon was sealed.
func (c *Canon) LoadedAt() time.Time { return c.loadedAt }

// Len is the number of objectives.
func (c *Canon) Len() int { return len(c.objectives) }

// Objectives returns a copy of the objectives in priority order.
func (c *Canon) Objectives() []Objective { return cloneObjectives(c.objectives) }

// Objective looks up an objective by id.
func (c *Canon) Objective(id string) (Objective, bool) {
	for _, o := range c.objectives {
		if o.ID == id {
			return o.clone(), true
		}
	}
	return Objective{}, false
}

// ByPriority looks up an objective by priority.
func (c *Canon) ByPriority(p int) (Objective, bool) {
	if p < 1 || p > len(c.objectives) {
		return Objective{}, false
	}
	return c.objectives[p-1].clone(), true
}

// Has reports whether id names an objective in the canon.
func (c *Canon) Has(id string) bool {
	_, ok := c.Objective(id)
	return ok
}

// Preservation returns the preservation classes bound at load.
func (c *Canon) Preservation() *PreservationRegistry { return c.preservation }

// Verify recomputes the seal and reports whether the canon is untampered.
func (c *Canon) Verify() bool {
	return c.sealed && computeSeal(c.objectives) == c.seal
}

// VerifyObjectives reports whether objectives hash to this canon's seal.
// Use it to check an exported copy of the objective set.
func (c *Canon) VerifyObjectives(objectives []Objective) bool {
	return computeSeal(objectives) == c.seal
}

// Invariant is the read-only view of an objective used when checking intents.
type Invariant struct {
	ObjectiveID string
	Description string
	Priority    int
	Class       PreservationClass
}

// Invariants returns every objective as an invariant, in priority order.
func (c *Canon) Invariants() []Invariant {
	out := make([]Invariant, len(c.objectives))
	for i, o := range c.objectives {
		out[i] = Invariant{
			ObjectiveID: o.ID,
			Description: o.Description,
			Priority:    o.Priority,
			Class:       o.PreservationClass,
		}
	}
	return out
}

func computeSeal(objectives []Objective) string {
	hashes := make([]string, len(objectives))
	for i, o := range objectives {
		hashes[i] = o.ContentHash()
	}
	return canonicalize.HashString(strings.Join(hashes, canonicalize.Separator))
}

// PreservationRegistry records each objective's preservation class. It is
// populated once during the load and read-only afterwards.
type PreservationRegistry struct {
	classes map[string]PreservationClass
}

func bindPreservation(objectives []Objective) *PreservationRegistry {
	r := &PreservationRegistry{classes: make(map[string]PreservationClass, len(objectives))}
	for _, o := range objectives {
		r.classes[o.ID] = o.PreservationClass
	}
	return r
}

// Class returns the preservation class bound to an objective.
func (r *PreservationRegistry) Class(id string) (PreservationClass, bool) {
	c, ok := r.classes[id]
	return c, ok
}

// ByClass returns the sorted ids bound to class.
func (r *PreservationRegistry) ByClass(class PreservationClass) []string {
	var ids []string
	for id, c := range r.classes {
		if c == class {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Sealer performs the one-time, irreversible seal of an objective set.
// A second Seal on the same Sealer fails with ErrAlreadySealed.
type Sealer struct {
	mu     sync.Mutex
	sealed *Canon
	clock  func() time.Time
}

// NewSealer returns a Sealer using the wall clock.
func NewSealer() *Sealer {
	return &Sealer{clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (s *Sealer) WithClock(clock func() time.Time) *Sealer {
	s.clock = clock
	return s
}

// Seal orders objectives by priority, binds preservation classes, computes
// the seal and returns the immutable Canon.
func (s *Sealer) Seal(objectives []Objective, version *semver.Version) (*Canon, error) {
	return s.seal(objectives, version, bindPreservation(objectives))
}

func (s *Sealer) seal(objectives []Objective, version *semver.Version, preservation *PreservationRegistry) (*Canon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sealed != nil {
		return nil, ErrAlreadySealed
	}
	if len(objectives) == 0 {
		return nil, ErrEmpty
	}
	if version == nil {
		version = semver.MustParse(InitialVersion)
	}

	ordered := cloneObjectives(objectives)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	seal := computeSeal(ordered)
	c := &Canon{
		id:           canonicalize.ShortID(canonicalize.HashString("canon:"+seal), 16),
		version:      version,
		objectives:   ordered,
		seal:         seal,
		sealed:       true,
		loadedAt:     s.clock().UTC(),
		preservation: preservation,
	}
	s.sealed = c
	return c, nil
}

// Sealed returns the canon produced by this Sealer, if any.
func (s *Sealer) Sealed() *Canon {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

// NextVersion returns the version for a canon replacing prev.
func NextVersion(prev *Canon) *semver.Version {
	if prev == nil || prev.version == nil {
		return semver.MustParse(InitialVersion)
	}
	next := prev.version.IncMinor()
	return &next
}
