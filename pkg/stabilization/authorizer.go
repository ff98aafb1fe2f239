package stabilization

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Override token constants.
const (
	OverrideIssuer   = "continuum/human-authority"
	OverrideAudience = "continuum.kernel"
	OverrideScope    = "reintroduce"
	PrincipalHuman   = "human"
)

var ErrUnauthorized = errors.New("human authorization required")

// OverrideClaims authorize clearing one rejected intent id.
type OverrideClaims struct {
	jwt.RegisteredClaims
	PrincipalType string `json:"principal_type"`
	IntentID      string `json:"intent_id"`
	Scope         string `json:"scope"`
}

// Authorization is a verified human override.
type Authorization struct {
	TokenID   string    `json:"token_id"`
	Principal string    `json:"principal"`
	IntentID  string    `json:"intent_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// Authorizer verifies human-authorization tokens.
type Authorizer interface {
	Authorize(token, intentID string) (*Authorization, error)
}

// JWTAuthorizer verifies EdDSA-signed override tokens.
type JWTAuthorizer struct {
	key   ed25519.PublicKey
	clock func() time.Time
}

// NewJWTAuthorizer trusts tokens signed by the holder of pub.
func NewJWTAuthorizer(pub ed25519.PublicKey) *JWTAuthorizer {
	return &JWTAuthorizer{key: pub, clock: time.Now}
}

// WithClock overrides the clock for deterministic testing.
func (a *JWTAuthorizer) WithClock(clock func() time.Time) *JWTAuthorizer {
	a.clock = clock
	return a
}

// Authorize validates signature, issuer, audience, expiry and that the
// token is a human override scoped to intentID.
func (a *JWTAuthorizer) Authorize(token, intentID string) (*Authorization, error) {
	parsed, err := jwt.ParseWithClaims(token, &OverrideClaims{},
		func(*jwt.Token) (any, error) { return a.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(OverrideIssuer),
		jwt.WithAudience(OverrideAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	claims, ok := parsed.Claims.(*OverrideClaims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, jwt.ErrTokenSignatureInvalid)
	}
	switch {
	case claims.PrincipalType != PrincipalHuman:
		return nil, fmt.Errorf("%w: principal type %q is not human", ErrUnauthorized, claims.PrincipalType)
	case claims.Scope != OverrideScope:
		return nil, fmt.Errorf("%w: scope %q does not permit reintroduction", ErrUnauthorized, claims.Scope)
	case claims.IntentID != intentID:
		return nil, fmt.Errorf("%w: token is bound to intent %q", ErrUnauthorized, claims.IntentID)
	case claims.ID == "":
		return nil, fmt.Errorf("%w: token has no id", ErrUnauthorized)
	}

	auth := &Authorization{TokenID: claims.ID, Principal: claims.Subject, IntentID: claims.IntentID}
	if claims.IssuedAt != nil {
		auth.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	return auth, nil
}

// IssueOverride signs an override token. It is the tool a human authority
// uses; the kernel itself never holds the private key.
func IssueOverride(priv ed25519.PrivateKey, tokenID, principal, intentID string, issuedAt time.Time, ttl time.Duration) (string, error) {
	claims := OverrideClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   principal,
			Issuer:    OverrideIssuer,
			Audience:  jwt.ClaimStrings{OverrideAudience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
		PrincipalType: PrincipalHuman,
		IntentID:      intentID,
		Scope:         OverrideScope,
	}
	return jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(priv)
}
