package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surulere15/CONTINUUM-sub000/pkg/artifacts"
	"github.com/surulere15/CONTINUUM-sub000/pkg/canon"
	"github.com/surulere15/CONTINUUM-sub000/pkg/config"
)

// TestLoad_Defaults verifies the kernel boots with in-memory state when no
// environment is set.
func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"LOG_LEVEL", "CONTINUUM_AUDIT_SINK", "CONTINUUM_AUDIT_PATH", "CONTINUUM_REDIS_ADDR", "ARCHIVE_BACKEND", "OTEL_ENABLED", "CONTINUUM_REDIS_DB"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()

	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, config.SinkMemory, cfg.AuditSink)
	assert.Equal(t, "data/audit.jsonl", cfg.AuditPath)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, artifacts.BackendNone, cfg.Archive.Backend)
	assert.False(t, cfg.TelemetryEnabled)
	assert.Equal(t, "continuum-kernel", cfg.ServiceName)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("CONTINUUM_AUDIT_SINK", "SQLite")
	t.Setenv("CONTINUUM_AUDIT_PATH", "")
	t.Setenv("CONTINUUM_REDIS_ADDR", "redis:6379")
	t.Setenv("CONTINUUM_REDIS_DB", "2")
	t.Setenv("ARCHIVE_BACKEND", "S3")
	t.Setenv("ARCHIVE_BUCKET", "audit-bundles")
	t.Setenv("ARCHIVE_REGION", "")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("OTEL_ENABLED", "true")
	t.Setenv("CONTINUUM_CANON_HEAD", "sha256:abc")

	cfg := config.Load()

	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, config.SinkSQLite, cfg.AuditSink)
	assert.Equal(t, "data/audit.db", cfg.AuditPath)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, artifacts.BackendS3, cfg.Archive.Backend)
	assert.Equal(t, "audit-bundles", cfg.Archive.Bucket)
	assert.Equal(t, "eu-west-1", cfg.Archive.Region)
	assert.True(t, cfg.TelemetryEnabled)
	assert.Equal(t, "sha256:abc", cfg.CanonHead)
}

func TestLoad_BadRedisDBFallsBack(t *testing.T) {
	t.Setenv("CONTINUUM_REDIS_DB", "seven")
	assert.Equal(t, 0, config.Load().RedisDB)
}

func TestNewLogger(t *testing.T) {
	assert.NotNil(t, config.NewLogger("debug"))
	assert.NotNil(t, config.NewLogger("nonsense"))
}

const profileYAML = `
name: strict
max_normalizations: 5
intent:
  min_length: 20
  hedging: [maybe, arguably]
negation_prefixes: [not, never, refuse to]
axioms:
  patterns:
    bounded_autonomy:
      - phrase: self-replicate
        reason: implies self-replication
  rules:
    - axiom: continuity_over_performance
      expr: objective.irreversibility_risk > 0.9
      reason: irreversibility risk too high
consistency:
  opposing_concepts:
    - {a: grow, b: shrink}
  domain: [archive]
`

func writeProfile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadProfile(t *testing.T) {
	p, err := config.LoadProfile(writeProfile(t, profileYAML))
	require.NoError(t, err)

	assert.Equal(t, "strict", p.Name)
	assert.Equal(t, 5, p.MaxNormalizations)
	assert.Equal(t, 20, p.Intent.MinLength)
	assert.Equal(t, []string{"maybe", "arguably"}, p.Intent.Hedging)
	assert.Equal(t, []string{"not", "never", "refuse to"}, p.NegationPrefixes)
	require.Len(t, p.Axioms.Rules, 1)
	assert.Equal(t, canon.AxiomContinuityOverPerformance, p.Axioms.Rules[0].Axiom)
}

func TestProfile_AxiomPredicate(t *testing.T) {
	p, err := config.LoadProfile(writeProfile(t, profileYAML))
	require.NoError(t, err)
	pred, err := p.AxiomPredicate()
	require.NoError(t, err)

	check := func(o canon.Objective) bool {
		res, err := canon.CheckAxioms(pred, []canon.Objective{o})
		require.NoError(t, err)
		return res.Compatible
	}

	base := canon.Objective{ID: "P1", Description: "preserve knowledge", Priority: 1, Scope: canon.ScopeHumanity, PreservationClass: canon.PreservationCritical}
	assert.True(t, check(base))

	replicate := base
	replicate.Description = "self-replicate knowledge archives"
	assert.False(t, check(replicate), "profile pattern")

	risky := base
	risky.IrreversibilityRisk = 0.95
	assert.False(t, check(risky), "CEL rule")

	optimize := base
	optimize.Description = "optimize knowledge retrieval"
	assert.False(t, check(optimize), "built-in patterns are kept")
}

func TestProfile_ContradictionPredicate(t *testing.T) {
	p, err := config.LoadProfile(writeProfile(t, profileYAML))
	require.NoError(t, err)
	pred := p.ContradictionPredicate()

	_, ok := pred.Contradicts("grow the archive", "shrink the archive")
	assert.True(t, ok)
	_, ok = pred.Contradicts("preserve knowledge", "destroy knowledge")
	assert.False(t, ok, "profile vocabulary replaces the defaults")

	_, ok = config.DefaultProfile().ContradictionPredicate().Contradicts("preserve knowledge", "destroy knowledge")
	assert.True(t, ok)
}

func TestLoadProfile_Errors(t *testing.T) {
	_, err := config.LoadProfile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = config.LoadProfile(writeProfile(t, "axioms: [not, a, map]"))
	assert.Error(t, err)

	_, err = config.LoadProfile(writeProfile(t, "axioms:\n  patterns:\n    be_nice:\n      - phrase: x\n"))
	assert.ErrorContains(t, err, "unknown axiom")

	_, err = config.LoadProfile(writeProfile(t, "max_normalizations: -1\n"))
	assert.Error(t, err)

	p, err := config.LoadProfile(writeProfile(t, "name: bad\naxioms:\n  rules:\n    - axiom: bounded_autonomy\n      expr: 'objective.nope +'\n"))
	require.NoError(t, err)
	_, err = p.AxiomPredicate()
	assert.Error(t, err)
}
