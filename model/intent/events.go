package intent

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ThreatSeverity classifies how dangerous a competing mempool transaction is
// for an intent targeting the same contract.
type ThreatSeverity uint8

const (
	SeverityLow ThreatSeverity = iota
	SeverityElevated
	SeverityHigh
	// SeverityCritical forces an immediate Blocked decision without waiting
	// for further simulator results.
	SeverityCritical
)

func (s ThreatSeverity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityElevated:
		return "elevated"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Surcharge returns the risk penalty applied to an intent's aggregate score
// when a threat of this severity is active. The surcharge raises the effective
// aggregate, it never mutates individual simulator results.
func (s ThreatSeverity) Surcharge() uint8 {
	switch s {
	case SeverityLow:
		return 10
	case SeverityElevated:
		return 20
	case SeverityHigh:
		return 35
	case SeverityCritical:
		return MaxRiskScore
	default:
		return 0
	}
}

// ThreatEvent is the observation of a competing pending transaction against a
// target currently under verification. Threat events are ephemeral: they are
// consumed to raise an intent's effective risk and are not retained beyond the
// active verification window.
type ThreatEvent struct {
	Target      common.Address
	CompetingTx common.Hash
	Severity    ThreatSeverity
	ObservedAt  time.Time
}

// StateChangeEvent is the observation that a monitored contract's on-chain
// state diverged from the snapshot an intent's verification was computed
// against. It invalidates every active intent whose target and snapshot token
// match.
type StateChangeEvent struct {
	Target     common.Address
	OldToken   common.Hash
	NewToken   common.Hash
	ObservedAt time.Time
}
