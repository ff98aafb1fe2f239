package kernel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModeMachine_AllowList(t *testing.T) {
	modes := []Mode{ModeNull, ModeGenesis, ModeHalted}
	allowed := map[[2]Mode]bool{
		{ModeNull, ModeNull}:       true,
		{ModeNull, ModeGenesis}:    true,
		{ModeNull, ModeHalted}:     true,
		{ModeGenesis, ModeNull}:    true,
		{ModeGenesis, ModeHalted}:  true,
		{ModeGenesis, ModeGenesis}: false,
	}

	for _, from := range modes {
		for _, to := range modes {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				m := machineIn(t, from)
				before := m.TransitionCount()

				_, err := m.Transition(to, "test", "input")
				if allowed[[2]Mode{from, to}] {
					require.NoError(t, err)
					assert.Equal(t, to, m.Mode())
					assert.Equal(t, before+1, m.TransitionCount())
					return
				}
				require.ErrorIs(t, err, ErrTransitionRejected)
				assert.Equal(t, from, m.Mode(), "rejected transition must not change mode")
				assert.Equal(t, before, m.TransitionCount())
			})
		}
	}
}

func machineIn(t *testing.T, mode Mode) *ModeMachine {
	t.Helper()
	m := NewModeMachine(nil)
	if mode != ModeNull {
		_, err := m.Transition(mode, "setup", "")
		require.NoError(t, err)
	}
	return m
}

func TestModeMachine_HaltedIsTerminal(t *testing.T) {
	m := NewModeMachine(nil)
	_, err := m.Halt("operator request")
	require.NoError(t, err)
	assert.True(t, m.Halted())

	_, err = m.Halt("again")
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, ModeHalted, te.From)
	assert.Contains(t, err.Error(), "halted")
	assert.False(t, m.CanTransition(ModeNull))
}

func TestModeMachine_HistoryAndHash(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewModeMachine(func() time.Time { return at })
	initial := m.StateHash()

	tr, err := m.Transition(ModeGenesis, "canon sealed", "seal-1")
	require.NoError(t, err)
	assert.Equal(t, ModeNull, tr.From)
	assert.Equal(t, at, tr.At)
	assert.Len(t, tr.InputHash, 64)
	assert.NotEqual(t, initial, m.StateHash())

	other := NewModeMachine(nil)
	_, err = other.Transition(ModeGenesis, "different reason", "different input")
	require.NoError(t, err)
	assert.Equal(t, m.StateHash(), other.StateHash(), "state hash covers mode and count only")

	h := m.History()
	require.Len(t, h, 1)
	h[0].Reason = "mutated"
	assert.Equal(t, "canon sealed", m.History()[0].Reason)
}
