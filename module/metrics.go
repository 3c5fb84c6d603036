package module

import (
	"time"

	"github.com/intentgate/intentgate-go/model/intent"
)

// VerificationMetrics tracks the health of the intent verification pipeline.
type VerificationMetrics interface {
	// IntentSubmitted is called once a submitted intent passed validation.
	IntentSubmitted()

	// IntentFinalized is called when an intent reaches a terminal state.
	IntentFinalized(state intent.State)

	// ActiveIntents reports the current number of Pending/Verifying intents.
	ActiveIntents(count uint)

	// SimulatorResult is called per received simulator result with its fate:
	// "accepted", "stale", "late" or "unknown_intent".
	SimulatorResult(fate string)

	// ThreatEvent is called per threat event applied to an active intent.
	ThreatEvent(severity intent.ThreatSeverity)

	// Reverification is called when a state change forces a fresh round.
	Reverification()

	// ConsensusComputed reports the duration of one consensus evaluation.
	ConsensusComputed(dur time.Duration)
}
