package kernel

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canonicalize"
)

// Mode is the kernel operating mode.
type Mode string

const (
	ModeNull    Mode = "NULL"
	ModeGenesis Mode = "GENESIS"
	ModeHalted  Mode = "HALTED"
)

var ErrTransitionRejected = errors.New("mode transition rejected")

// allowedTransitions is the complete transition function. Pairs absent from
// the table are rejected; HALTED has no exits.
var allowedTransitions = map[Mode]map[Mode]bool{
	ModeNull:    {ModeNull: true, ModeGenesis: true, ModeHalted: true},
	ModeGenesis: {ModeNull: true, ModeHalted: true},
}

// Transition records one successful mode change.
type Transition struct {
	From      Mode      `json:"from"`
	To        Mode      `json:"to"`
	Reason    string    `json:"reason"`
	InputHash string    `json:"input_hash"`
	At        time.Time `json:"at"`
}

// TransitionError is returned for a disallowed mode change.
type TransitionError struct {
	From   Mode
	To     Mode
	Reason string
}

func (e *TransitionError) Error() string {
	if e.From == ModeHalted {
		return fmt.Sprintf("kernel is halted; transition to %s refused", e.To)
	}
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrTransitionRejected }

// ModeMachine is the kernel mode state machine. NULL is the initial mode
// and HALTED is terminal.
type ModeMachine struct {
	mu          sync.RWMutex
	mode        Mode
	transitions []Transition
	clock       func() time.Time
}

// NewModeMachine starts in NULL.
func NewModeMachine(clock func() time.Time) *ModeMachine {
	if clock == nil {
		clock = time.Now
	}
	return &ModeMachine{mode: ModeNull, clock: clock}
}

// Mode returns the current mode.
func (m *ModeMachine) Mode() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mode
}

// Halted reports whether the machine reached HALTED.
func (m *ModeMachine) Halted() bool { return m.Mode() == ModeHalted }

// CanTransition reports whether to is reachable from the current mode.
func (m *ModeMachine) CanTransition(to Mode) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return allowedTransitions[m.mode][to]
}

// Transition moves to the target mode if the pair is allowed. input is
// the data that triggered the change; only its hash is kept.
func (m *ModeMachine) Transition(to Mode, reason, input string) (Transition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !allowedTransitions[m.mode][to] {
		return Transition{}, &TransitionError{From: m.mode, To: to, Reason: reason}
	}
	t := Transition{
		From:      m.mode,
		To:        to,
		Reason:    reason,
		InputHash: canonicalize.HashString(input),
		At:        m.clock().UTC(),
	}
	m.mode = to
	m.transitions = append(m.transitions, t)
	return t, nil
}

// Halt moves to HALTED. It fails only if already halted.
func (m *ModeMachine) Halt(reason string) (Transition, error) {
	return m.Transition(ModeHalted, "HALT:"+reason, reason)
}

// TransitionCount is the number of successful transitions.
func (m *ModeMachine) TransitionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transitions)
}

// History returns every successful transition, oldest first.
func (m *ModeMachine) History() []Transition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Transition(nil), m.transitions...)
}

// StateHash digests the current mode and transition count.
func (m *ModeMachine) StateHash() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return canonicalize.FieldHash(string(m.mode), fmt.Sprint(len(m.transitions)))
}
