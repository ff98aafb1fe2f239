package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surulere15/CONTINUUM-sub000/pkg/audit"
)

const canonYAML = `objectives:
  - objective_id: P1
    description: preserve safety
    priority: 1
    scope: humanity
    preservation_class: critical
    irreversibility_risk: 0.9
  - objective_id: P2
    description: preserve knowledge
    priority: 2
    scope: humanity
    preservation_class: critical
    irreversibility_risk: 0.7
`

const intentsYAML = `intents:
  - source: human
    description: do not preserve safety
    scope: system
  - source: system
    description: archive the climate records
    scope: operational
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRun_Usage(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, Run([]string{"continuum"}, &stdout, &stderr))
	assert.Equal(t, 2, Run([]string{"continuum", "bogus"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "Unknown command: bogus")
	assert.Equal(t, 0, Run([]string{"continuum", "help"}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "govern")
}

func TestRun_Canon(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "canon.yaml", canonYAML)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, Run([]string{"continuum", "canon", "--dir", dir}, &stdout, &stderr), stderr.String())
	assert.Contains(t, stdout.String(), "Step 6 PASSED: Immutability seal")
	assert.Contains(t, stdout.String(), "2 objectives")

	bad := t.TempDir()
	writeFile(t, bad, "canon.yaml", "objectives:\n  - objective_id: P1\n    priority: 1\n")
	stdout.Reset()
	assert.Equal(t, 1, Run([]string{"continuum", "canon", "--dir", bad}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "FAILED: ")
}

var exportKey = regexp.MustCompile(`\(([A-Za-z0-9+/=]{44})\)`)

func TestRun_GovernExportVerify(t *testing.T) {
	dir := t.TempDir()
	canonDir := filepath.Join(dir, "canon")
	require.NoError(t, os.MkdirAll(canonDir, 0o750))
	writeFile(t, canonDir, "canon.yaml", canonYAML)
	intents := writeFile(t, dir, "intents.yaml", intentsYAML)

	t.Setenv("CONTINUUM_AUDIT_SINK", "file")
	t.Setenv("CONTINUUM_AUDIT_PATH", filepath.Join(dir, "audit.jsonl"))
	t.Setenv("CONTINUUM_CANON_DIR", "")
	t.Setenv("ARCHIVE_BACKEND", "")
	t.Setenv("CONTINUUM_CANON_HEAD", "")

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, Run([]string{"continuum", "govern", "--canon", canonDir, "--intents", intents}, &stdout, &stderr), stderr.String())

	var report struct {
		Result struct {
			Outcome string `json:"outcome"`
		} `json:"result"`
		Rejections []struct {
			Reason string `json:"reason"`
		} `json:"rejections"`
	}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	assert.Equal(t, "partial_rejection", report.Result.Outcome)
	require.Len(t, report.Rejections, 1)
	assert.Equal(t, "violates canon invariant", report.Rejections[0].Reason)

	bundlePath := filepath.Join(dir, "bundle.json")
	stdout.Reset()
	stderr.Reset()
	require.Equal(t, 0, Run([]string{"continuum", "export", "--out", bundlePath}, &stdout, &stderr), stderr.String())
	m := exportKey.FindStringSubmatch(stderr.String())
	require.Len(t, m, 2, stderr.String())

	stdout.Reset()
	require.Equal(t, 0, Run([]string{"continuum", "verify", "--bundle", bundlePath, "--key", m[1]}, &stdout, &stderr), stdout.String())
	assert.Contains(t, stdout.String(), "OK: ")

	data, err := os.ReadFile(bundlePath)
	require.NoError(t, err)
	var b audit.Bundle
	require.NoError(t, json.Unmarshal(data, &b))
	b.Entries[0].Decision = "tampered"
	tampered, err := json.Marshal(b)
	require.NoError(t, err)
	writeFile(t, dir, "bundle.json", string(tampered))

	stdout.Reset()
	assert.Equal(t, 1, Run([]string{"continuum", "verify", "--bundle", bundlePath, "--key", m[1]}, &stdout, &stderr))
	assert.Contains(t, stdout.String(), "FAIL: ")
}

func TestRun_VerifyRequiresKey(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, Run([]string{"continuum", "verify", "--bundle", "x.json"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "--key")
}
