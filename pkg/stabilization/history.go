package stabilization

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Fingerprint is the last recorded constraint state of an intent id.
type Fingerprint struct {
	IntentID        string    `json:"intent_id"`
	ConstraintHash  string    `json:"constraint_hash"`
	ConstraintCount int       `json:"constraint_count"`
	Scope           string    `json:"scope"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// HistoryStore keeps cross-cycle guard state. Implementations must be safe
// for concurrent use.
type HistoryStore interface {
	// SwapFingerprint stores fp and returns the fingerprint it replaced.
	SwapFingerprint(ctx context.Context, fp Fingerprint) (prev Fingerprint, found bool, err error)
	Fingerprint(ctx context.Context, intentID string) (Fingerprint, bool, error)
	IncrementNormalizations(ctx context.Context, intentID string) (int, error)
	MarkRejected(ctx context.Context, intentID string) error
	IsRejected(ctx context.Context, intentID string) (bool, error)
	RejectedIDs(ctx context.Context) ([]string, error)
	// RedeemOverride marks the single-use authorization tokenID as used
	// and clears the rejection of intentID in one atomic step. It reports
	// false, changing nothing, if the token was already used.
	RedeemOverride(ctx context.Context, tokenID, intentID string) (bool, error)
}

// MemoryHistory is an in-process HistoryStore.
type MemoryHistory struct {
	mu             sync.Mutex
	fingerprints   map[string]Fingerprint
	normalizations map[string]int
	rejected       map[string]struct{}
	usedTokens     map[string]struct{}
}

// NewMemoryHistory returns an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		fingerprints:   make(map[string]Fingerprint),
		normalizations: make(map[string]int),
		rejected:       make(map[string]struct{}),
		usedTokens:     make(map[string]struct{}),
	}
}

func (m *MemoryHistory) SwapFingerprint(_ context.Context, fp Fingerprint) (Fingerprint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.fingerprints[fp.IntentID]
	m.fingerprints[fp.IntentID] = fp
	return prev, ok, nil
}

func (m *MemoryHistory) Fingerprint(_ context.Context, intentID string) (Fingerprint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fp, ok := m.fingerprints[intentID]
	return fp, ok, nil
}

func (m *MemoryHistory) IncrementNormalizations(_ context.Context, intentID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.normalizations[intentID]++
	return m.normalizations[intentID], nil
}

func (m *MemoryHistory) MarkRejected(_ context.Context, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected[intentID] = struct{}{}
	return nil
}

func (m *MemoryHistory) IsRejected(_ context.Context, intentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rejected[intentID]
	return ok, nil
}

func (m *MemoryHistory) RejectedIDs(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.rejected))
	for id := range m.rejected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryHistory) RedeemOverride(_ context.Context, tokenID, intentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, used := m.usedTokens[tokenID]; used {
		return false, nil
	}
	m.usedTokens[tokenID] = struct{}{}
	delete(m.rejected, intentID)
	return true, nil
}
