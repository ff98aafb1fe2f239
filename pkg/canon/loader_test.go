package canon

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rawObjective(id, desc string, priority int) RawObjective {
	return RawObjective{
		"objective_id":         id,
		"description":          desc,
		"priority":             priority,
		"scope":                "civilization",
		"preservation_class":   "critical",
		"irreversibility_risk": 0.5,
	}
}

func safetyKnowledge() []RawObjective {
	return []RawObjective{
		rawObjective("P1", "preserve safety", 1),
		rawObjective("P2", "preserve knowledge", 2),
	}
}

func TestLoad_Success(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	report := NewLoader(WithClock(func() time.Time { return fixed })).Load(safetyKnowledge())

	require.True(t, report.OK(), report.FailureReason)
	assert.Equal(t, LoadSuccess, report.Result)
	assert.Len(t, report.Steps, 6)
	for i, step := range report.Steps {
		assert.Equal(t, fmt.Sprintf("Step %d PASSED: %s", i+1, Gates[i]), step)
	}

	c := report.Canon
	assert.True(t, c.Sealed())
	assert.True(t, c.Verify())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, "1.0.0", c.Version().String())
	assert.Equal(t, fixed, c.LoadedAt())
	assert.Len(t, c.ID(), 16)
	assert.Len(t, c.Seal(), 64)
	assert.Empty(t, report.FailureReason)
}

func TestLoad_OrdersByPriority(t *testing.T) {
	raw := []RawObjective{
		rawObjective("B", "preserve knowledge", 2),
		rawObjective("A", "preserve safety", 1),
	}
	report := NewLoader().Load(raw)
	require.True(t, report.OK())

	objs := report.Canon.Objectives()
	assert.Equal(t, "A", objs[0].ID)
	assert.Equal(t, "B", objs[1].ID)

	o, ok := report.Canon.ByPriority(2)
	require.True(t, ok)
	assert.Equal(t, "B", o.ID)
}

func TestLoad_SealIsDeterministic(t *testing.T) {
	a := NewLoader().Load(safetyKnowledge())
	b := NewLoader().Load(safetyKnowledge())
	require.True(t, a.OK())
	require.True(t, b.OK())
	assert.Equal(t, a.Canon.Seal(), b.Canon.Seal())
	assert.Equal(t, a.Canon.ID(), b.Canon.ID())
}

func TestLoad_WholeFloatPriorityAccepted(t *testing.T) {
	raw := safetyKnowledge()
	raw[0]["priority"] = 1.0
	raw[1]["priority"] = float64(2)
	report := NewLoader().Load(raw)
	require.True(t, report.OK(), report.FailureReason)
	assert.Equal(t, []string{"P1", "P2"}, PriorityOrder(report.Canon.Objectives()))
}

func TestLoad_Aborts(t *testing.T) {
	missing := safetyKnowledge()
	delete(missing[1], "priority")

	badScope := safetyKnowledge()
	badScope[0]["scope"] = "galaxy"

	badRisk := safetyKnowledge()
	badRisk[0]["irreversibility_risk"] = 1.5

	wrongType := safetyKnowledge()
	wrongType[0]["priority"] = "1"

	fractional := safetyKnowledge()
	fractional[1]["priority"] = 2.5

	nanRisk := safetyKnowledge()
	nanRisk[1]["irreversibility_risk"] = math.NaN()

	dupID := safetyKnowledge()
	dupID[1]["objective_id"] = "P1"

	badSignal := safetyKnowledge()
	badSignal[0]["success_signals"] = []any{map[string]any{"signal_type": "metric"}}

	tests := []struct {
		name       string
		raw        []RawObjective
		sentinel   error
		passed     int
		reasonPart string
	}{
		{"empty", nil, ErrSchema, 0, "cannot be empty"},
		{"missing field", missing, ErrSchema, 0, "priority"},
		{"unknown scope", badScope, ErrSchema, 0, "/scope"},
		{"risk out of range", badRisk, ErrSchema, 0, "/irreversibility_risk"},
		{"priority wrong type", wrongType, ErrSchema, 0, "/priority"},
		{"fractional priority", fractional, ErrSchema, 0, "/priority"},
		{"risk not a number", nanRisk, ErrSchema, 0, "not serializable"},
		{"duplicate id", dupID, ErrSchema, 0, "duplicate objective_id"},
		{"signal without id", badSignal, ErrSchema, 0, "signal_id"},
		{"priority gap", []RawObjective{
			rawObjective("P1", "preserve safety", 1),
			rawObjective("P2", "preserve knowledge", 3),
		}, ErrPriority, 1, "expected: 1..2"},
		{"axiom", []RawObjective{
			rawObjective("P1", "preserve safety", 1),
			rawObjective("P2", "execute every plan immediately", 2),
		}, ErrAxiom, 2, "implies execution"},
		{"contradiction", []RawObjective{
			rawObjective("P1", "preserve human knowledge", 1),
			rawObjective("P2", "destroy human knowledge", 2),
		}, ErrConsistency, 3, "opposing concepts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := NewLoader().Load(tt.raw)

			assert.Equal(t, LoadAbort, report.Result)
			assert.Nil(t, report.Canon)
			assert.False(t, report.OK())
			require.Len(t, report.Steps, tt.passed+1)
			last := report.Steps[len(report.Steps)-1]
			assert.Contains(t, last, "FAILED: ")
			assert.Contains(t, report.FailureReason, tt.reasonPart)
			assert.True(t, errors.Is(report.Err, tt.sentinel), "got %v", report.Err)

			var le *LoadError
			require.ErrorAs(t, report.Err, &le)
			assert.Equal(t, tt.passed+1, le.Step)
		})
	}
}

func TestLoad_CustomPredicates(t *testing.T) {
	cel, err := NewCELAxioms([]CELRule{{
		Axiom:  AxiomContinuityOverPerformance,
		Expr:   `objective.irreversibility_risk > 0.9 && objective.preservation_class == "important"`,
		Reason: "high irreversibility on a low preservation class",
	}})
	require.NoError(t, err)

	raw := safetyKnowledge()
	raw[1]["preservation_class"] = "important"
	raw[1]["irreversibility_risk"] = 0.95

	report := NewLoader(WithAxiomPredicate(AllOf{NewKeywordAxioms(nil), cel})).Load(raw)
	assert.Equal(t, LoadAbort, report.Result)
	assert.ErrorIs(t, report.Err, ErrAxiom)
	assert.Contains(t, report.FailureReason, "high irreversibility")

	never := contradictionFunc(func(a, b string) (string, bool) { return "", false })
	raw = []RawObjective{
		rawObjective("P1", "preserve human knowledge", 1),
		rawObjective("P2", "destroy human knowledge", 2),
	}
	report = NewLoader(WithContradictionPredicate(never)).Load(raw)
	assert.True(t, report.OK())
}

func TestLoad_WithVersion(t *testing.T) {
	report := NewLoader(WithVersion(semver.MustParse("1.3.0"))).Load(safetyKnowledge())
	require.True(t, report.OK())
	assert.Equal(t, "1.3.0", report.Canon.Version().String())
	assert.Equal(t, "1.4.0", NextVersion(report.Canon).String())
	assert.Equal(t, InitialVersion, NextVersion(nil).String())
}

func TestLoad_SignalsDefaultType(t *testing.T) {
	raw := safetyKnowledge()
	raw[0]["success_signals"] = []any{map[string]any{"signal_id": "S1"}}
	report := NewLoader().Load(raw)
	require.True(t, report.OK())

	o, ok := report.Canon.Objective("P1")
	require.True(t, ok)
	require.Len(t, o.SuccessSignals, 1)
	assert.Equal(t, "unknown", o.SuccessSignals[0].Type)
}

type contradictionFunc func(a, b string) (string, bool)

func (f contradictionFunc) Contradicts(a, b string) (string, bool) { return f(a, b) }
