// Package audit implements the append-only, hash-chained record of every
// canon load step and governance decision. A decision that cannot be
// audited is not taken: any append failure halts the log.
package audit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
)

// GenesisHash is the fixed previous-hash of the first entry.
var GenesisHash = strings.Repeat("0", 64)

var (
	ErrChain   = errors.New("audit chain error")
	ErrHalted  = errors.New("audit log halted")
	ErrNoEntry = errors.New("audit entry not found")
)

// EventType categorizes audit entries.
type EventType string

const (
	EventCanonLoadStep          EventType = "canon_load_step"
	EventCanonSealed            EventType = "canon_sealed"
	EventCanonLoadAbort         EventType = "canon_load_abort"
	EventModeTransition         EventType = "mode_transition"
	EventIntentNormalized       EventType = "intent_normalized"
	EventNormalizationFailed    EventType = "normalization_failed"
	EventConflictsDetected      EventType = "conflicts_detected"
	EventIntentRejected         EventType = "intent_rejected"
	EventResolution             EventType = "resolution"
	EventStabilizationViolation EventType = "stabilization_violation"
	EventHumanOverride          EventType = "human_override"
	EventKernelHalted           EventType = "kernel_halted"
)

// Entry is one immutable link in the audit chain.
type Entry struct {
	Sequence     uint64    `json:"sequence"`
	EventType    EventType `json:"event_type"`
	InputHash    string    `json:"input_hash"`
	Decision     string    `json:"decision"`
	AxiomRef     string    `json:"axiom_ref,omitempty"`
	RecordedAt   time.Time `json:"recorded_at"`
	PreviousHash string    `json:"previous_hash"`
	EntryHash    string    `json:"entry_hash"`
}

// content is the hashed part of an entry.
type content struct {
	Sequence   uint64    `json:"sequence"`
	EventType  EventType `json:"event_type"`
	InputHash  string    `json:"input_hash"`
	Decision   string    `json:"decision"`
	AxiomRef   string    `json:"axiom_ref"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ComputeHash returns sha256(previous hash || JCS(entry content)).
func ComputeHash(e Entry) (string, error) {
	body, err := canonicalize.JCS(content{
		Sequence:   e.Sequence,
		EventType:  e.EventType,
		InputHash:  e.InputHash,
		Decision:   e.Decision,
		AxiomRef:   e.AxiomRef,
		RecordedAt: e.RecordedAt.UTC(),
	})
	if err != nil {
		return "", err
	}
	return canonicalize.HashBytes(append([]byte(e.PreviousHash), body...)), nil
}

// ChainError reports an append failure or a chain mismatch. It matches both
// ErrChain and its cause.
type ChainError struct {
	Op       string
	Sequence uint64
	Cause    error
}

func (e *ChainError) Error() string {
	if e.Sequence > 0 {
		return fmt.Sprintf("audit chain error: %s at sequence %d: %v", e.Op, e.Sequence, e.Cause)
	}
	return fmt.Sprintf("audit chain error: %s: %v", e.Op, e.Cause)
}

func (e *ChainError) Unwrap() []error { return []error{ErrChain, e.Cause} }

// VerifyEntries recomputes a chain from GenesisHash and returns its head.
// It needs nothing from the producing process.
func VerifyEntries(entries []Entry) (string, error) {
	prev := GenesisHash
	for i, e := range entries {
		want := uint64(i + 1)
		if e.Sequence != want {
			return "", &ChainError{Op: "verify", Sequence: e.Sequence,
				Cause: fmt.Errorf("sequence gap: expected %d", want)}
		}
		if e.PreviousHash != prev {
			return "", &ChainError{Op: "verify", Sequence: e.Sequence,
				Cause: fmt.Errorf("previous_hash %s does not match %s", e.PreviousHash, prev)}
		}
		computed, err := ComputeHash(e)
		if err != nil {
			return "", &ChainError{Op: "verify", Sequence: e.Sequence, Cause: err}
		}
		if computed != e.EntryHash {
			return "", &ChainError{Op: "verify", Sequence: e.Sequence,
				Cause: fmt.Errorf("hash mismatch (computed %s, stored %s)", computed, e.EntryHash)}
		}
		prev = e.EntryHash
	}
	return prev, nil
}
