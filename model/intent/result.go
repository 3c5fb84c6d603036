package intent

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Assessment is the opaque output of a risk scorer: a risk number in [0,100]
// and a recommendation. How the scorer arrives at it (bytecode patterns, gas
// analysis, approval amounts, ...) is deliberately outside this model.
type Assessment struct {
	RiskScore uint8
	Approve   bool
	Analysis  string
}

// SimulatorResult is one simulator node's assessment of one intent, bound to
// the snapshot token of the verification round it was computed against.
// Results carrying a token older than the intent's current token are stale and
// discarded.
type SimulatorResult struct {
	IntentID      ID
	SimulatorID   string
	RiskScore     uint8 // 0..100
	Approve       bool
	Analysis      string
	SnapshotToken common.Hash
	SubmittedAt   time.Time
}

// MaxRiskScore is the upper bound of the risk scale.
const MaxRiskScore = 100
