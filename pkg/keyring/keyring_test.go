package keyring

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	k, err := New(nil)
	require.NoError(t, err)

	data := map[string]any{"head": "abc", "count": 3}
	sig, err := k.Sign(data)
	require.NoError(t, err)

	assert.NoError(t, Verify(k.PublicKey(), data, sig))
	assert.NoError(t, Verify(k.PublicKey(), map[string]any{"count": 3, "head": "abc"}, sig))
	assert.ErrorIs(t, Verify(k.PublicKey(), map[string]any{"head": "abd", "count": 3}, sig), ErrInvalidSignature)
}

func TestDerive_DeterministicAndDistinct(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, 32)
	p, err := NewMemoryKeyProviderFromBase64(base64.StdEncoding.EncodeToString(seed))
	require.NoError(t, err)
	k, err := New(p)
	require.NoError(t, err)

	a1, err := k.Derive("audit-export")
	require.NoError(t, err)
	a2, err := k.Derive("audit-export")
	require.NoError(t, err)
	b, err := k.Derive("seal-record")
	require.NoError(t, err)

	assert.Equal(t, a1.PublicKey(), a2.PublicKey())
	assert.NotEqual(t, a1.PublicKey(), b.PublicKey())
	assert.NotEqual(t, k.PublicKey(), a1.PublicKey())
	assert.Len(t, a1.KeyID(), 16)

	_, err = k.Derive("")
	assert.Error(t, err)
}

func TestFromSeed_BadLength(t *testing.T) {
	_, err := NewMemoryKeyProviderFromSeed([]byte("short"))
	assert.Error(t, err)
	_, err = NewMemoryKeyProviderFromBase64("%%%")
	assert.Error(t, err)
}
