package canonicalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_SortsKeys(t *testing.T) {
	out, err := JCS(map[string]any{"b": 1, "a": "x<y"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x<y","b":1}`, string(out))
}

func TestJCS_StructTags(t *testing.T) {
	v := struct {
		Zeta  string `json:"zeta"`
		Alpha int    `json:"alpha"`
	}{Zeta: "z", Alpha: 2}
	out, err := JCS(v)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"zeta":"z"}`, string(out))
}

func TestCanonicalHash_Deterministic(t *testing.T) {
	a, err := CanonicalHash(map[string]any{"x": 1, "y": []string{"a", "b"}})
	require.NoError(t, err)
	b, err := CanonicalHash(map[string]any{"y": []string{"a", "b"}, "x": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestFieldHash(t *testing.T) {
	assert.Equal(t, HashString("a|b|c"), FieldHash("a", "b", "c"))
	assert.NotEqual(t, FieldHash("a", "b"), FieldHash("b", "a"))
	// sha256("") is a fixed vector.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", HashString(""))
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "abcd", ShortID("abcdef", 4))
	assert.Equal(t, "ab", ShortID("ab", 4))
}
