package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordAxioms(t *testing.T) {
	pred := NewKeywordAxioms(nil)

	tests := []struct {
		desc  string
		axiom Axiom
	}{
		{"override objectives when convenient", AxiomObjectiveSupremacy},
		{"act with unlimited autonomy", AxiomBoundedAutonomy},
		{"run the reactor", AxiomBoundedAutonomy},
		{"remain an opaque process", AxiomExplainabilityBeforeAction},
		{"grow output at any cost", AxiomContinuityOverPerformance},
		{"maximize throughput", AxiomContinuityOverPerformance},
		{"redefine goals yearly", AxiomPersistenceOfIntent},
	}
	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			checks, err := pred.Evaluate(Objective{ID: "X", Description: tt.desc})
			require.NoError(t, err)
			require.Len(t, checks, len(Axioms))

			var failed []Axiom
			for _, c := range checks {
				if !c.Compatible {
					failed = append(failed, c.Axiom)
					assert.Contains(t, c.Reason, string(c.Axiom))
				}
			}
			assert.Contains(t, failed, tt.axiom)
		})
	}
}

func TestKeywordAxioms_WholeWordsOnly(t *testing.T) {
	res, err := CheckAxioms(NewKeywordAxioms(nil), []Objective{
		{ID: "A", Description: "preserve long-run stability"},
		{ID: "B", Description: "protect truncated archives"},
	})
	require.NoError(t, err)
	assert.True(t, res.Compatible)
	assert.Len(t, res.Checks, 2*len(Axioms))
	assert.Empty(t, res.Failures)
}

func TestKeywordAxioms_CustomLexicon(t *testing.T) {
	pred := NewKeywordAxioms(map[Axiom][]Pattern{
		"no_surveillance": {{Phrase: "monitor citizens", Reason: "implies surveillance"}},
	})
	checks, err := pred.Evaluate(Objective{ID: "A", Description: "Monitor citizens daily"})
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.False(t, checks[0].Compatible)
	assert.Equal(t, "violates no_surveillance: implies surveillance", checks[0].Reason)
}

func TestCELAxioms(t *testing.T) {
	pred, err := NewCELAxioms([]CELRule{
		{Axiom: AxiomBoundedAutonomy, Expr: `"deploy" in objective.tokens`, Reason: "implies deployment"},
		{Axiom: AxiomObjectiveSupremacy, Expr: `objective.priority == 1 && objective.scope == "system"`, Reason: "system scope may not rank first"},
	})
	require.NoError(t, err)

	checks, err := pred.Evaluate(Objective{ID: "A", Description: "Deploy safeguards", Priority: 1, Scope: ScopeSystem})
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.False(t, checks[0].Compatible)
	assert.False(t, checks[1].Compatible)

	checks, err = pred.Evaluate(Objective{ID: "B", Description: "preserve safeguards", Priority: 2, Scope: ScopeSystem})
	require.NoError(t, err)
	assert.True(t, checks[0].Compatible)
	assert.True(t, checks[1].Compatible)
}

func TestCELAxioms_InvalidRule(t *testing.T) {
	_, err := NewCELAxioms([]CELRule{{Axiom: AxiomBoundedAutonomy, Expr: `objective.(`}})
	assert.Error(t, err)

	_, err = NewCELAxioms([]CELRule{{Expr: `true`}})
	assert.Error(t, err)
}

func TestCELAxioms_NonBoolResult(t *testing.T) {
	pred, err := NewCELAxioms([]CELRule{{Axiom: AxiomBoundedAutonomy, Expr: `objective.priority`}})
	require.NoError(t, err)
	_, err = pred.Evaluate(Objective{ID: "A", Priority: 1})
	assert.Error(t, err)
}
