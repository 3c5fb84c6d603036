package intent

import (
	"time"
)

// ConsensusRecord is the aggregated outcome computed for an intent at a point
// in time. While the intent is Verifying, every new input replaces the
// transient record; once the intent reaches a terminal decision the record is
// frozen.
type ConsensusRecord struct {
	IntentID    ID
	ResultCount int
	AverageRisk float64 // arithmetic mean of participating scores plus threat surcharge, clamped to [0,100]
	Approvals   int
	Rejections  int
	Decision    State // Approved or Blocked
	ComputedAt  time.Time
}

// StatusSnapshot is the externally queryable view of an intent: its lifecycle
// state, the latest consensus record if one was computed, and timing relative
// to the deadline.
type StatusSnapshot struct {
	IntentID  ID
	State     State
	Record    *ConsensusRecord // nil until a consensus was computed
	Elapsed   time.Duration
	Remaining time.Duration // zero once the deadline has passed
}
