package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withPriorities(ps ...int) []Objective {
	out := make([]Objective, len(ps))
	for i, p := range ps {
		out[i] = Objective{ID: string(rune('A' + i)), Priority: p}
	}
	return out
}

func TestValidatePriorities(t *testing.T) {
	tests := []struct {
		name       string
		priorities []int
		wantErr    bool
		dups       []int
	}{
		{"consecutive", []int{1, 2, 3}, false, nil},
		{"unordered consecutive", []int{3, 1, 2}, false, nil},
		{"gap", []int{1, 3}, true, nil},
		{"starts at zero", []int{0, 1}, true, nil},
		{"duplicate", []int{1, 1, 2}, true, []int{1}},
		{"duplicates", []int{2, 2, 3, 3}, true, []int{2, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePriorities(withPriorities(tt.priorities...))
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var pe *PriorityError
			require.ErrorAs(t, err, &pe)
			assert.ErrorIs(t, err, ErrPriority)
			assert.Equal(t, tt.dups, pe.Duplicates)
			assert.Equal(t, len(tt.priorities), pe.Expected)
		})
	}
}

func TestPriorityError_Message(t *testing.T) {
	err := ValidatePriorities(withPriorities(1, 1, 3))
	require.Error(t, err)
	assert.Equal(t, "duplicate priorities [1]; priorities must form total ordering from 1 to 3. Got: [1 1 3], expected: 1..3", err.Error())
}

func TestPriorityOrder(t *testing.T) {
	assert.Equal(t, []string{"B", "C", "A"}, PriorityOrder(withPriorities(3, 1, 2)))
}
