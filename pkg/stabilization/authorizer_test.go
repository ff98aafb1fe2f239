package stabilization

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTAuthorizer(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	authz := NewJWTAuthorizer(pub).WithClock(clock)

	valid, err := IssueOverride(priv, "tok-1", "alice", "i1", fixedNow.Add(-time.Minute), time.Hour)
	require.NoError(t, err)

	auth, err := authz.Authorize(valid, "i1")
	require.NoError(t, err)
	assert.Equal(t, "alice", auth.Principal)
	assert.Equal(t, "i1", auth.IntentID)
	assert.Equal(t, fixedNow.Add(-time.Minute), auth.IssuedAt)

	expired, err := IssueOverride(priv, "tok-2", "alice", "i1", fixedNow.Add(-2*time.Hour), time.Hour)
	require.NoError(t, err)
	forged, err := IssueOverride(otherPriv, "tok-3", "alice", "i1", fixedNow, time.Hour)
	require.NoError(t, err)
	noID, err := IssueOverride(priv, "", "alice", "i1", fixedNow, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		intentID string
	}{
		{"wrong intent", valid, "i2"},
		{"expired", expired, "i1"},
		{"wrong key", forged, "i1"},
		{"missing token id", noID, "i1"},
		{"garbage", "not-a-jwt", "i1"},
		{"machine principal", signClaims(t, priv, func(c *OverrideClaims) { c.PrincipalType = "agent" }), "i1"},
		{"wrong scope", signClaims(t, priv, func(c *OverrideClaims) { c.Scope = "execute" }), "i1"},
		{"wrong audience", signClaims(t, priv, func(c *OverrideClaims) { c.Audience = jwt.ClaimStrings{"other"} }), "i1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authz.Authorize(tt.token, tt.intentID)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestJWTAuthorizer_RejectsHMAC(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	claims := baseClaims()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(pub))
	require.NoError(t, err)

	_, err = NewJWTAuthorizer(pub).WithClock(clock).Authorize(token, "i1")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func baseClaims() OverrideClaims {
	return OverrideClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        "tok",
			Subject:   "alice",
			Issuer:    OverrideIssuer,
			Audience:  jwt.ClaimStrings{OverrideAudience},
			IssuedAt:  jwt.NewNumericDate(fixedNow),
			ExpiresAt: jwt.NewNumericDate(fixedNow.Add(time.Hour)),
		},
		PrincipalType: PrincipalHuman,
		IntentID:      "i1",
		Scope:         OverrideScope,
	}
}

func signClaims(t *testing.T, priv ed25519.PrivateKey, mutate func(*OverrideClaims)) string {
	t.Helper()
	c := baseClaims()
	mutate(&c)
	s, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, c).SignedString(priv)
	require.NoError(t, err)
	return s
}
