//go:build property
// +build property

package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/surulere15/CONTINUUM-sub000/pkg/audit"
)

// TestChainVerifiesAfterAnyAppends verifies an untouched chain always verifies.
// Property: VerifyEntries(Append*(decisions)) succeeds and returns Head()
func TestChainVerifiesAfterAnyAppends(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("untouched chain verifies", prop.ForAll(
		func(decisions []string) bool {
			l := audit.NewLog()
			for _, d := range decisions {
				if _, err := l.Append(context.Background(), audit.EventResolution, "in", d, ""); err != nil {
					return false
				}
			}
			head, err := audit.VerifyEntries(l.Entries())
			return err == nil && head == l.Head()
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// TestChainDetectsAnyAlteration verifies altering any entry's decision breaks the chain.
func TestChainDetectsAnyAlteration(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	properties.Property("altered chain fails verification", prop.ForAll(
		func(n, idx int, suffix string) bool {
			tick := 0
			l := audit.NewLog(audit.WithClock(func() time.Time {
				tick++
				return start.Add(time.Duration(tick) * time.Second)
			}))
			for i := 0; i < n; i++ {
				if _, err := l.Append(context.Background(), audit.EventResolution, "in", "decision", ""); err != nil {
					return false
				}
			}
			entries := l.Entries()
			entries[idx%n].Decision += "-" + suffix
			_, err := audit.VerifyEntries(entries)
			return err != nil
		},
		gen.IntRange(1, 20),
		gen.IntRange(0, 100),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
