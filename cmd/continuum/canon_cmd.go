package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/surulere15/CONTINUUM-sub000/pkg/canon"
	"github.com/surulere15/CONTINUUM-sub000/pkg/config"
)

// runCanonCmd implements `continuum canon`. It runs the load gates over a
// canon directory without starting a kernel.
//
// Exit codes:
//
//	0 = canon sealed
//	1 = load aborted
//	2 = runtime error
func runCanonCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("canon", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var dir, profilePath string
	cmd.StringVar(&dir, "dir", "", "Canon source directory (REQUIRED)")
	cmd.StringVar(&profilePath, "profile", "", "Kernel profile YAML")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if dir == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --dir is required")
		return 2
	}

	profile := config.DefaultProfile()
	if profilePath != "" {
		p, err := config.LoadProfile(profilePath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		profile = p
	}
	axioms, err := profile.AxiomPredicate()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	raw, err := canon.LoadDir(dir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	report := canon.NewLoader(
		canon.WithAxiomPredicate(axioms),
		canon.WithContradictionPredicate(profile.ContradictionPredicate()),
	).Load(raw)

	for _, step := range report.Steps {
		_, _ = fmt.Fprintln(stdout, step)
	}
	if !report.OK() {
		return 1
	}
	c := report.Canon
	_, _ = fmt.Fprintf(stdout, "canon %s v%s sealed: %d objectives, seal %s\n", c.ID(), c.Version(), c.Len(), c.Seal())
	return 0
}
