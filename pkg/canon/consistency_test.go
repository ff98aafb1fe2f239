package canon

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexicalContradiction(t *testing.T) {
	pred := NewLexicalContradiction(nil, nil)

	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"opposing over shared domain", "preserve human knowledge", "destroy human knowledge", true},
		{"reverse order", "destroy human knowledge", "preserve human knowledge", true},
		{"inflected", "protects society", "harmed society", true},
		{"no shared domain", "preserve safety", "destroy weapons", false},
		{"same concept", "preserve knowledge", "preserve knowledge", false},
		{"prefix is not a word match", "protect society harmony", "society harmony", false},
		{"punctuation stripped", "Maintain civilization.", "eliminate civilization!", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got := pred.Contradicts(tt.a, tt.b)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsistencyProver_ReturnsAllPairs(t *testing.T) {
	objs := []Objective{
		{ID: "A", Description: "preserve human knowledge"},
		{ID: "B", Description: "destroy human knowledge"},
		{ID: "C", Description: "increase human capacity"},
		{ID: "D", Description: "decrease human capacity"},
	}
	proof := NewConsistencyProver(nil).Prove(objs)

	assert.False(t, proof.Consistent)
	assert.Equal(t, 6, proof.PairsChecked)
	assert.Equal(t, 4, proof.ObjectiveCount)
	require.Len(t, proof.Contradictions, 2)
	assert.Equal(t, Contradiction{A: "A", B: "B", Reason: "opposing concepts: 'preserve' vs 'destroy'"}, proof.Contradictions[0])
	assert.Equal(t, "C", proof.Contradictions[1].A)
	assert.Equal(t, "D", proof.Contradictions[1].B)

	err := NewConsistencyProver(nil).AssertConsistent(objs)
	var ce *ConsistencyError
	require.ErrorAs(t, err, &ce)
	assert.Len(t, ce.Contradictions, 2)
	assert.ErrorIs(t, err, ErrConsistency)
}

func TestConsistencyProver_CustomVocabulary(t *testing.T) {
	pred := NewLexicalContradiction([]ConceptPair{{A: "open", B: "close"}}, []string{"border"})
	p := NewConsistencyProver(pred)
	assert.NoError(t, p.AssertConsistent([]Objective{{ID: "A", Description: "preserve human knowledge"}, {ID: "B", Description: "destroy human knowledge"}}))
	assert.Error(t, p.AssertConsistent([]Objective{{ID: "A", Description: "open the border"}, {ID: "B", Description: "close the border"}}))
}

func TestMatchesWord(t *testing.T) {
	assert.True(t, MatchesWord("preserve", "preserve"))
	assert.True(t, MatchesWord("preserves", "preserve"))
	assert.True(t, MatchesWord("preserved", "preserve"))
	assert.True(t, MatchesWord("preserving", "preserve"))
	assert.True(t, MatchesWord("harms", "harm"))
	assert.False(t, MatchesWord("harmony", "harm"))
	assert.False(t, MatchesWord("preservation", "preserve"))
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"don't", "run", "self-determined", "systems"}, Tokens("  Don't RUN, self-determined systems. "))
	assert.True(t, ContainsPhrase(Tokens("operate as a black box"), "black box"))
	assert.False(t, ContainsPhrase(Tokens("operate as a black boxer"), "black box"))
	assert.False(t, ContainsPhrase(nil, "x"))
}
