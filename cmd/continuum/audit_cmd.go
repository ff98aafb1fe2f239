package main

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/surulere15/CONTINUUM-sub000/pkg/audit"
	"github.com/surulere15/CONTINUUM-sub000/pkg/config"
	"github.com/surulere15/CONTINUUM-sub000/pkg/kernel"
)

// runExportCmd implements `continuum export`: it opens the configured
// audit sink, verifies the chain and writes a signed bundle.
func runExportCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("export", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var out string
	cmd.StringVar(&out, "out", "", "Write the bundle to this file instead of stdout")
	if err := cmd.Parse(args); err != nil {
		return 2
	}

	cfg := config.Load()
	cfg.CanonDir = ""
	ctx := context.Background()
	k, err := kernel.Open(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer func() { _ = k.Close(ctx) }()

	bundle, ref, err := k.ExportAudit(ctx)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: export failed: %v\n", err)
		return 1
	}

	w := stdout
	if out != "" {
		//nolint:gosec // G304: operator-supplied path
		f, err := os.Create(out)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	if err := writeJSON(w, bundle); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	_, _ = fmt.Fprintf(stderr, "exported %d entries, head %s, key %s (%s)\n",
		bundle.EntryCount, bundle.Head, bundle.KeyID, base64.StdEncoding.EncodeToString(k.ExportKey()))
	if ref != "" {
		_, _ = fmt.Fprintf(stderr, "archived as %s\n", ref)
	}
	return 0
}

// runVerifyCmd implements `continuum verify`. It trusts only the key given
// on the command line.
//
// Exit codes:
//
//	0 = verification passed
//	1 = verification failed
//	2 = runtime error
func runVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var bundlePath, key string
	cmd.StringVar(&bundlePath, "bundle", "", "Path to an exported audit bundle (REQUIRED)")
	cmd.StringVar(&key, "key", "", "Trusted base64 Ed25519 public key (REQUIRED)")
	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if bundlePath == "" || key == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --bundle and --key are required")
		return 2
	}

	pub, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		_, _ = fmt.Fprintln(stderr, "Error: --key must be a base64 Ed25519 public key")
		return 2
	}
	//nolint:gosec // G304: operator-supplied path
	data, err := os.ReadFile(bundlePath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	var bundle audit.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse bundle: %v\n", err)
		return 2
	}

	if err := audit.VerifyBundle(&bundle, ed25519.PublicKey(pub)); err != nil {
		_, _ = fmt.Fprintf(stdout, "FAIL: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "OK: %d entries, head %s\n", bundle.EntryCount, bundle.Head)
	return 0
}
