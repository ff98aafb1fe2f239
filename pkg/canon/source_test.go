package canon

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "01_safety.yaml"), []byte(`
objective:
  objective_id: P1
  description: preserve safety
  priority: 1
  scope: civilization
  preservation_class: non_negotiable
  irreversibility_risk: 0.9
  success_signals:
    - signal_id: incidents
      signal_type: metric
`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "02_rest.yml"), []byte(`
objectives:
  - objective_id: P2
    description: preserve knowledge
    priority: 2
    scope: humanity
    preservation_class: critical
    irreversibility_risk: 0.4
`), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "_draft.yaml"), []byte("objective: {objective_id: X}"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("ignored"), 0600))

	raw, err := LoadDir(dir)
	require.NoError(t, err)
	require.Len(t, raw, 2)

	report := NewLoader().Load(raw)
	require.True(t, report.OK(), report.FailureReason)
	o, ok := report.Canon.Objective("P1")
	require.True(t, ok)
	assert.Equal(t, PreservationNonNegotiable, o.PreservationClass)
	assert.Equal(t, "metric", o.SuccessSignals[0].Type)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("objectives: [unclosed"), 0600))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	none := filepath.Join(dir, "none.yaml")
	require.NoError(t, os.WriteFile(none, []byte("other: 1"), 0600))
	_, err = LoadFile(none)
	assert.Error(t, err)
}
