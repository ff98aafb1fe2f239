package observability

import "go.opentelemetry.io/otel/attribute"

// Kernel semantic convention attributes.
var (
	AttrOperation  = attribute.Key("continuum.operation")
	AttrKernelMode = attribute.Key("continuum.kernel.mode")

	AttrCanonID      = attribute.Key("continuum.canon.id")
	AttrCanonVersion = attribute.Key("continuum.canon.version")
	AttrObjectives   = attribute.Key("continuum.canon.objectives")

	AttrCycleID      = attribute.Key("continuum.cycle.id")
	AttrIntentCount  = attribute.Key("continuum.cycle.intents")
	AttrOutcome      = attribute.Key("continuum.cycle.outcome")
	AttrConflicts    = attribute.Key("continuum.cycle.conflicts")
	AttrSurvivorHash = attribute.Key("continuum.cycle.survivor_hash")

	AttrRejectionReason = attribute.Key("continuum.rejection.reason")
	AttrViolationType   = attribute.Key("continuum.stabilization.violation")
	AttrAuditEventType  = attribute.Key("continuum.audit.event_type")
)

// CanonOperation creates attributes for a canon load.
func CanonOperation(objectives int) []attribute.KeyValue {
	return []attribute.KeyValue{AttrObjectives.Int(objectives)}
}

// CycleOperation creates attributes for a governance cycle.
func CycleOperation(cycleID, canonID string, intents int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrCycleID.String(cycleID),
		AttrCanonID.String(canonID),
		AttrIntentCount.Int(intents),
	}
}

// CycleResult creates attributes describing a finished cycle.
func CycleResult(outcome string, conflicts int, survivorHash string) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrOutcome.String(outcome),
		AttrConflicts.Int(conflicts),
		AttrSurvivorHash.String(survivorHash),
	}
}
