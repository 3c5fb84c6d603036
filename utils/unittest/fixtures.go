package unittest

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/intentgate/intentgate-go/model/intent"
)

// AddressFixture returns a deterministic non-zero address derived from seed.
func AddressFixture(seed byte) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = seed
	}
	if seed == 0 {
		addr[len(addr)-1] = 1
	}
	return addr
}

// HashFixture returns a deterministic hash derived from seed.
func HashFixture(seed byte) common.Hash {
	var h common.Hash
	for i := range h {
		h[i] = seed
	}
	return h
}

// IntentFixture returns a valid intent with a one minute verification window.
// Options mutate the fixture before it is returned.
func IntentFixture(opts ...func(*intent.Intent)) *intent.Intent {
	now := time.Now()
	item := &intent.Intent{
		ID:            intent.NewID(),
		Submitter:     AddressFixture(0xaa),
		Target:        AddressFixture(0xbb),
		Payload:       []byte{0xde, 0xad, 0xbe, 0xef},
		Value:         big.NewInt(1_000_000),
		CreatedAt:     now,
		Deadline:      now.Add(time.Minute),
		SnapshotToken: HashFixture(0x01),
	}
	for _, opt := range opts {
		opt(item)
	}
	return item
}

// WithTarget overrides the fixture's target address.
func WithTarget(target common.Address) func(*intent.Intent) {
	return func(item *intent.Intent) {
		item.Target = target
	}
}

// WithWindow overrides the fixture's verification window, keeping CreatedAt.
func WithWindow(window time.Duration) func(*intent.Intent) {
	return func(item *intent.Intent) {
		item.Deadline = item.CreatedAt.Add(window)
	}
}

// WithSnapshotToken overrides the fixture's snapshot token.
func WithSnapshotToken(token common.Hash) func(*intent.Intent) {
	return func(item *intent.Intent) {
		item.SnapshotToken = token
	}
}

// ResultFixture returns a simulator result matching the given intent's
// current round.
func ResultFixture(item *intent.Intent, simulatorID string, score uint8, approve bool) *intent.SimulatorResult {
	return &intent.SimulatorResult{
		IntentID:      item.ID,
		SimulatorID:   simulatorID,
		RiskScore:     score,
		Approve:       approve,
		Analysis:      "fixture",
		SnapshotToken: item.SnapshotToken,
		SubmittedAt:   time.Now(),
	}
}

// ThreatFixture returns a threat event against the given target.
func ThreatFixture(target common.Address, severity intent.ThreatSeverity) *intent.ThreatEvent {
	return &intent.ThreatEvent{
		Target:      target,
		CompetingTx: HashFixture(0xcc),
		Severity:    severity,
		ObservedAt:  time.Now(),
	}
}
