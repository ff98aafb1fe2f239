package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/surulere15/CONTINUUM-sub000/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}
	slog.SetDefault(config.NewLogger(os.Getenv("LOG_LEVEL")))

	switch args[1] {
	case "canon":
		return runCanonCmd(args[2:], stdout, stderr)
	case "govern":
		return runGovernCmd(args[2:], stdout, stderr)
	case "export":
		return runExportCmd(args[2:], stdout, stderr)
	case "verify":
		return runVerifyCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "USAGE: continuum <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "  canon    Validate a canon directory through the six load gates")
	_, _ = fmt.Fprintln(w, "  govern   Run one governance cycle over a YAML intent batch")
	_, _ = fmt.Fprintln(w, "  export   Export the signed audit chain")
	_, _ = fmt.Fprintln(w, "  verify   Verify an exported audit bundle")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Kernel settings come from the environment (CONTINUUM_*, DATABASE_URL, ARCHIVE_*, OTEL_*).")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
