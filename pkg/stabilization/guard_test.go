package stabilization

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surulere15/CONTINUUM-sub000/pkg/intent"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func withConstraints(id string, constraints ...string) intent.Intent {
	return intent.Intent{ID: id, Source: intent.SourceHuman, Description: "archive the climate records", Scope: "system", Constraints: constraints}
}

func TestCheckWeakening(t *testing.T) {
	ctx := context.Background()
	g := NewGuard(WithClock(clock))

	require.NoError(t, g.CheckWeakening(ctx, withConstraints("i1", "a", "b")))
	require.NoError(t, g.CheckWeakening(ctx, withConstraints("i1", "b", "a")), "reordering is not a change")
	require.NoError(t, g.CheckWeakening(ctx, withConstraints("i1", "a", "b", "c")), "strengthening is allowed")

	err := g.CheckWeakening(ctx, withConstraints("i1", "a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHalt)

	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, ViolationSilentWeakening, v.Type)
	assert.Equal(t, "i1", v.IntentID)
	assert.Contains(t, v.Error(), "HALT")
	assert.Contains(t, v.Description, "reduced from 3 to 1")
	assert.Equal(t, fixedNow, v.DetectedAt)
}

func TestCheckWeakening_SameCountDifferentConstraints(t *testing.T) {
	ctx := context.Background()
	g := NewGuard()
	require.NoError(t, g.CheckWeakening(ctx, withConstraints("i1", "a", "b")))
	assert.NoError(t, g.CheckWeakening(ctx, withConstraints("i1", "a", "c")))
}

func TestCheckReintroduction(t *testing.T) {
	ctx := context.Background()
	g := NewGuard()

	require.NoError(t, g.CheckReintroduction(ctx, "i1"))
	require.NoError(t, g.RecordRejection(ctx, "i1"))

	err := g.CheckReintroduction(ctx, "i1")
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, ViolationRejectedReintroduction, v.Type)

	ids, err := g.RejectedIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, ids)
}

func TestCheckCircularDependency(t *testing.T) {
	g := NewGuard()
	assert.NoError(t, g.CheckCircularDependency(nil))
	assert.NoError(t, g.CheckCircularDependency([]string{"a", "b", "c"}))

	err := g.CheckCircularDependency([]string{"a", "b", "a"})
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, ViolationCircularDependency, v.Type)
	assert.Equal(t, "a", v.IntentID)
	assert.Contains(t, v.Description, "a -> b -> a")
}

func TestRecordNormalization_Drift(t *testing.T) {
	ctx := context.Background()
	g := NewGuard()

	for i := 1; i <= DefaultMaxNormalizations; i++ {
		n, err := g.RecordNormalization(ctx, "i1")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	n, err := g.RecordNormalization(ctx, "i1")
	assert.Equal(t, 4, n)
	var v *Violation
	require.True(t, errors.As(err, &v))
	assert.Equal(t, ViolationProgressiveDrift, v.Type)

	_, err = g.RecordNormalization(ctx, "i2")
	assert.NoError(t, err, "counts are per intent")
}

func TestWithMaxNormalizations(t *testing.T) {
	g := NewGuard(WithMaxNormalizations(1))
	assert.Equal(t, 1, g.MaxNormalizations())
	assert.NoError(t, g.CheckProgressiveDrift("x", 1))
	assert.Error(t, g.CheckProgressiveDrift("x", 2))

	assert.Equal(t, DefaultMaxNormalizations, NewGuard(WithMaxNormalizations(0)).MaxNormalizations())
}

func TestViolationsAreRecorded(t *testing.T) {
	g := NewGuard()
	_ = g.CheckCircularDependency([]string{"a", "a"})
	_ = g.CheckProgressiveDrift("b", 10)

	vs := g.Violations()
	require.Len(t, vs, 2)
	assert.Equal(t, "violation_1", vs[0].ID)
	assert.Equal(t, ViolationProgressiveDrift, vs[1].Type)

	vs[0].IntentID = "mutated"
	assert.Equal(t, "a", g.Violations()[0].IntentID)
}

func TestClearRejection(t *testing.T) {
	ctx := context.Background()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	g := NewGuard(WithAuthorizer(NewJWTAuthorizer(pub).WithClock(clock)))
	require.NoError(t, g.RecordRejection(ctx, "i1"))

	token, err := IssueOverride(priv, "tok-1", "operator@example.org", "i1", fixedNow, time.Hour)
	require.NoError(t, err)

	auth, err := g.ClearRejection(ctx, "i1", token)
	require.NoError(t, err)
	assert.Equal(t, "operator@example.org", auth.Principal)
	assert.Equal(t, "tok-1", auth.TokenID)
	assert.NoError(t, g.CheckReintroduction(ctx, "i1"))

	// Replay.
	require.NoError(t, g.RecordRejection(ctx, "i1"))
	_, err = g.ClearRejection(ctx, "i1", token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Error(t, g.CheckReintroduction(ctx, "i1"))
}

type unavailableHistory struct {
	*MemoryHistory
	down bool
}

func (h *unavailableHistory) RedeemOverride(ctx context.Context, tokenID, intentID string) (bool, error) {
	if h.down {
		return false, errors.New("connection refused")
	}
	return h.MemoryHistory.RedeemOverride(ctx, tokenID, intentID)
}

func TestClearRejection_StoreFailureKeepsToken(t *testing.T) {
	ctx := context.Background()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	h := &unavailableHistory{MemoryHistory: NewMemoryHistory(), down: true}
	g := NewGuard(WithHistory(h), WithAuthorizer(NewJWTAuthorizer(pub).WithClock(clock)))
	require.NoError(t, g.RecordRejection(ctx, "i1"))
	token, err := IssueOverride(priv, "tok-1", "operator@example.org", "i1", fixedNow, time.Hour)
	require.NoError(t, err)

	_, err = g.ClearRejection(ctx, "i1", token)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.Error(t, g.CheckReintroduction(ctx, "i1"))

	h.down = false
	_, err = g.ClearRejection(ctx, "i1", token)
	require.NoError(t, err, "the token was not spent by the failed attempt")
	assert.NoError(t, g.CheckReintroduction(ctx, "i1"))
}

func TestClearRejection_NoAuthorizer(t *testing.T) {
	ctx := context.Background()
	g := NewGuard()
	require.NoError(t, g.RecordRejection(ctx, "i1"))

	_, err := g.ClearRejection(ctx, "i1", "anything")
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Error(t, g.CheckReintroduction(ctx, "i1"))
}
