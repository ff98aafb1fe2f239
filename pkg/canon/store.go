package canon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"

	"github.com/surulere15/CONTINUUM-sub000/pkg/artifacts"
	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
)

var (
	ErrCanonNotFound     = errors.New("canon not found")
	ErrVersionRegression = errors.New("canon version must increase")
)

// Store is the append-only history of sealed canons. Every canon a kernel
// activates is appended; nothing is replaced or removed.
type Store interface {
	Append(ctx context.Context, c *Canon) (Record, error)
	// BySeal returns the most recent canon sealed with seal.
	BySeal(ctx context.Context, seal string) (*Canon, error)
	ByVersion(ctx context.Context, version string) (*Canon, error)
	// Latest returns the last appended canon, or ErrCanonNotFound.
	Latest(ctx context.Context) (*Canon, error)
	// History lists every appended canon, oldest first.
	History(ctx context.Context) ([]Record, error)
}

// Record describes one appended canon.
type Record struct {
	CanonID  string    `json:"canon_id"`
	Version  string    `json:"version"`
	Seal     string    `json:"seal"`
	SealedAt time.Time `json:"sealed_at"`
	// Ref and Previous are artifact references; empty in memory.
	Ref      string `json:"ref,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// history is the index shared by the Store implementations. Callers hold
// their own lock.
type history struct {
	records []Record
	canons  []*Canon
}

func (h *history) check(c *Canon) error {
	if c == nil || !c.Verify() {
		return fmt.Errorf("%w: canon does not match its seal", ErrSeal)
	}
	if n := len(h.canons); n > 0 && !c.version.GreaterThan(h.canons[n-1].version) {
		return fmt.Errorf("%w: %s after %s", ErrVersionRegression, c.version, h.canons[n-1].version)
	}
	return nil
}

func (h *history) head() string {
	if n := len(h.records); n > 0 {
		return h.records[n-1].Ref
	}
	return ""
}

func (h *history) add(c *Canon, ref, previous string) Record {
	r := Record{
		CanonID:  c.id,
		Version:  c.version.String(),
		Seal:     c.seal,
		SealedAt: c.loadedAt,
		Ref:      ref,
		Previous: previous,
	}
	h.records = append(h.records, r)
	h.canons = append(h.canons, c)
	return r
}

func (h *history) bySeal(seal string) (*Canon, error) {
	for i := len(h.canons) - 1; i >= 0; i-- {
		if h.canons[i].seal == seal {
			return h.canons[i], nil
		}
	}
	return nil, fmt.Errorf("%w: seal %s", ErrCanonNotFound, seal)
}

func (h *history) byVersion(version string) (*Canon, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, fmt.Errorf("canon version %q: %w", version, err)
	}
	for _, c := range h.canons {
		if c.version.Equal(v) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: version %s", ErrCanonNotFound, version)
}

func (h *history) latest() (*Canon, error) {
	if n := len(h.canons); n > 0 {
		return h.canons[n-1], nil
	}
	return nil, ErrCanonNotFound
}

func (h *history) list() []Record {
	out := make([]Record, len(h.records))
	copy(out, h.records)
	return out
}

// MemoryStore keeps canon history in process.
type MemoryStore struct {
	mu sync.RWMutex
	h  history
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Append(_ context.Context, c *Canon) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.h.check(c); err != nil {
		return Record{}, err
	}
	return m.h.add(c, "", ""), nil
}

func (m *MemoryStore) BySeal(_ context.Context, seal string) (*Canon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.h.bySeal(seal)
}

func (m *MemoryStore) ByVersion(_ context.Context, version string) (*Canon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.h.byVersion(version)
}

func (m *MemoryStore) Latest(_ context.Context) (*Canon, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.h.latest()
}

func (m *MemoryStore) History(_ context.Context) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.h.list(), nil
}

// snapshot is the archived form of a sealed canon. Each snapshot links to
// its predecessor, so the head reference alone recovers the full history.
type snapshot struct {
	CanonID    string      `json:"canon_id"`
	Version    string      `json:"version"`
	Seal       string      `json:"seal"`
	SealedAt   time.Time   `json:"sealed_at"`
	Objectives []Objective `json:"objectives"`
	Previous   string      `json:"previous,omitempty"`
}

// ArchiveStore persists canon snapshots in a content-addressed
// artifacts.Store.
type ArchiveStore struct {
	mu    sync.RWMutex
	store artifacts.Store
	h     history
}

// NewArchiveStore returns an empty history backed by store.
func NewArchiveStore(store artifacts.Store) *ArchiveStore {
	return &ArchiveStore{store: store}
}

// OpenArchiveStore rebuilds the history ending at head by following the
// snapshot links. Every snapshot is re-sealed and must reproduce its
// recorded seal.
func OpenArchiveStore(ctx context.Context, store artifacts.Store, head string) (*ArchiveStore, error) {
	s := NewArchiveStore(store)
	if head == "" {
		return s, nil
	}

	var chain []snapshot
	var refs []string
	for ref := head; ref != ""; {
		data, err := store.Get(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("canon snapshot %s: %w", ref, err)
		}
		var snap snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("canon snapshot %s: %w", ref, err)
		}
		chain = append(chain, snap)
		refs = append(refs, ref)
		ref = snap.Previous
	}

	for i := len(chain) - 1; i >= 0; i-- {
		c, err := restore(chain[i])
		if err != nil {
			return nil, fmt.Errorf("canon snapshot %s: %w", refs[i], err)
		}
		if err := s.h.check(c); err != nil {
			return nil, fmt.Errorf("canon snapshot %s: %w", refs[i], err)
		}
		s.h.add(c, refs[i], chain[i].Previous)
	}
	return s, nil
}

func restore(snap snapshot) (*Canon, error) {
	v, err := semver.NewVersion(snap.Version)
	if err != nil {
		return nil, fmt.Errorf("version %q: %w", snap.Version, err)
	}
	sealedAt := snap.SealedAt
	c, err := NewSealer().WithClock(func() time.Time { return sealedAt }).Seal(snap.Objectives, v)
	if err != nil {
		return nil, err
	}
	if c.seal != snap.Seal {
		return nil, fmt.Errorf("%w: recorded seal %s, recomputed %s", ErrSeal, snap.Seal, c.seal)
	}
	return c, nil
}

// Append archives c and links it to the previous head.
func (s *ArchiveStore) Append(ctx context.Context, c *Canon) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.h.check(c); err != nil {
		return Record{}, err
	}

	previous := s.h.head()
	data, err := canonicalize.JCS(snapshot{
		CanonID:    c.id,
		Version:    c.version.String(),
		Seal:       c.seal,
		SealedAt:   c.loadedAt,
		Objectives: c.Objectives(),
		Previous:   previous,
	})
	if err != nil {
		return Record{}, fmt.Errorf("encode canon snapshot: %w", err)
	}
	ref, err := s.store.Put(ctx, data)
	if err != nil {
		return Record{}, fmt.Errorf("archive canon snapshot: %w", err)
	}
	return s.h.add(c, ref, previous), nil
}

// Head is the reference of the latest snapshot, or "" when empty.
func (s *ArchiveStore) Head() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.head()
}

func (s *ArchiveStore) BySeal(_ context.Context, seal string) (*Canon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.bySeal(seal)
}

func (s *ArchiveStore) ByVersion(_ context.Context, version string) (*Canon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.byVersion(version)
}

func (s *ArchiveStore) Latest(_ context.Context) (*Canon, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.latest()
}

func (s *ArchiveStore) History(_ context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.list(), nil
}
