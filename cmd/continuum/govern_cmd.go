package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/surulere15/CONTINUUM-sub000/pkg/config"
	"github.com/surulere15/CONTINUUM-sub000/pkg/intent"
	"github.com/surulere15/CONTINUUM-sub000/pkg/kernel"
)

type intentBatch struct {
	Intents []intent.RawIntent `yaml:"intents"`
}

// runGovernCmd implements `continuum govern`. The kernel is opened from
// the environment; --canon overrides CONTINUUM_CANON_DIR.
//
// Exit codes:
//
//	0 = cycle completed
//	1 = kernel halted or refused the cycle
//	2 = runtime error
func runGovernCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("govern", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var canonDir, intentsPath string
	cmd.StringVar(&canonDir, "canon", "", "Canon source directory")
	cmd.StringVar(&intentsPath, "intents", "", "YAML file with an intents list (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if intentsPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --intents is required")
		return 2
	}

	//nolint:gosec // G304: operator-supplied path
	data, err := os.ReadFile(intentsPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var batch intentBatch
	if err := yaml.Unmarshal(data, &batch); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse %s: %v\n", intentsPath, err)
		return 2
	}

	cfg := config.Load()
	if canonDir != "" {
		cfg.CanonDir = canonDir
	}
	if cfg.CanonDir == "" {
		_, _ = fmt.Fprintln(stderr, "Error: no canon; set --canon or CONTINUUM_CANON_DIR")
		return 2
	}

	ctx := context.Background()
	k, err := kernel.Open(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = k.Close(ctx) }()

	report, err := k.Govern(ctx, batch.Intents)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Kernel %s: %v\n", k.Mode(), err)
		return 1
	}
	if err := writeJSON(stdout, report); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}
