package verification

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/intentgate/intentgate-go/engine"
	"github.com/intentgate/intentgate-go/model/intent"
	"github.com/intentgate/intentgate-go/module/metrics"
	"github.com/intentgate/intentgate-go/module/registry"
	"github.com/intentgate/intentgate-go/utils/unittest"
)

type stubCapturer struct {
	token common.Hash
}

func (s stubCapturer) Capture(_ context.Context, _ common.Address) (common.Hash, error) {
	return s.token, nil
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	items []intent.Intent
}

func (b *recordingBroadcaster) Broadcast(item intent.Intent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
}

func (b *recordingBroadcaster) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

func (b *recordingBroadcaster) last() intent.Intent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.items[len(b.items)-1]
}

var testToken = unittest.HashFixture(0x01)

func newTestCore(t *testing.T, opts ...OptionFunc) (*Core, *recordingBroadcaster) {
	reg, err := registry.New(16)
	require.NoError(t, err)

	broadcaster := &recordingBroadcaster{}
	core, err := NewCore(
		unittest.Logger(),
		metrics.NewNoopCollector(),
		reg,
		stubCapturer{token: testToken},
		broadcaster,
		NewDistributor(),
		opts...,
	)
	require.NoError(t, err)
	return core, broadcaster
}

func submitIntent(t *testing.T, core *Core, window time.Duration) intent.ID {
	id, err := core.Submit(context.Background(), SubmitRequest{
		Submitter: unittest.AddressFixture(0xaa),
		Target:    unittest.AddressFixture(0xbb),
		Payload:   []byte{0xde, 0xad, 0xbe, 0xef},
		Value:     big.NewInt(1),
		Deadline:  time.Now().Add(window),
	})
	require.NoError(t, err)
	return id
}

func resultFor(id intent.ID, simulator string, score uint8, approve bool) *intent.SimulatorResult {
	return &intent.SimulatorResult{
		IntentID:      id,
		SimulatorID:   simulator,
		RiskScore:     score,
		Approve:       approve,
		Analysis:      "test",
		SnapshotToken: testToken,
		SubmittedAt:   time.Now(),
	}
}

func requireState(t *testing.T, core *Core, id intent.ID, expected intent.State) *intent.StatusSnapshot {
	status, err := core.Status(id)
	require.NoError(t, err)
	require.Equal(t, expected, status.State)
	return status
}

func TestSubmitValidation(t *testing.T) {
	core, _ := newTestCore(t)

	t.Run("zero target", func(t *testing.T) {
		_, err := core.Submit(context.Background(), SubmitRequest{
			Deadline: time.Now().Add(time.Minute),
		})
		require.True(t, engine.IsInvalidTargetError(err))
	})

	t.Run("deadline in the past", func(t *testing.T) {
		_, err := core.Submit(context.Background(), SubmitRequest{
			Target:   unittest.AddressFixture(0xbb),
			Deadline: time.Now().Add(-time.Second),
		})
		require.True(t, engine.IsInvalidDeadlineError(err))
	})

	t.Run("window exceeds maximum", func(t *testing.T) {
		_, err := core.Submit(context.Background(), SubmitRequest{
			Target:   unittest.AddressFixture(0xbb),
			Deadline: time.Now().Add(time.Hour),
		})
		require.True(t, engine.IsInvalidDeadlineError(err))
	})
}

func TestSubmitBroadcastsAndVerifies(t *testing.T) {
	core, broadcaster := newTestCore(t)

	id := submitIntent(t, core, time.Minute)
	status := requireState(t, core, id, intent.Verifying)
	require.Nil(t, status.Record)
	require.Greater(t, status.Remaining, time.Duration(0))

	require.Equal(t, 1, broadcaster.count())
	require.Equal(t, testToken, broadcaster.last().SnapshotToken)
}

func TestConsensusApproves(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(3))
	id := submitIntent(t, core, time.Minute)

	core.SubmitResult(resultFor(id, "sim-1", 10, true))
	requireState(t, core, id, intent.Verifying)
	core.SubmitResult(resultFor(id, "sim-2", 12, true))
	requireState(t, core, id, intent.Verifying)
	core.SubmitResult(resultFor(id, "sim-3", 14, true))

	status := requireState(t, core, id, intent.Approved)
	require.NotNil(t, status.Record)
	require.Equal(t, 3, status.Record.ResultCount)
	require.Equal(t, 3, status.Record.Approvals)
	require.InDelta(t, 12.0, status.Record.AverageRisk, 0.001)
	require.True(t, core.AuthorizeExecution(id))
}

func TestSingleVetoBlocks(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(3))
	id := submitIntent(t, core, time.Minute)

	core.SubmitResult(resultFor(id, "sim-1", 10, true))
	core.SubmitResult(resultFor(id, "sim-2", 15, true))
	core.SubmitResult(resultFor(id, "sim-3", 90, false))

	// the average (38.3) passes the threshold, the veto does not
	status := requireState(t, core, id, intent.Blocked)
	require.Equal(t, intent.Blocked, status.Record.Decision)
	require.Equal(t, 1, status.Record.Rejections)
	require.False(t, core.AuthorizeExecution(id))
}

func TestDuplicateSimulatorResultReplaces(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(2))
	id := submitIntent(t, core, time.Minute)

	core.SubmitResult(resultFor(id, "sim-1", 80, false))
	core.SubmitResult(resultFor(id, "sim-1", 10, true))
	requireState(t, core, id, intent.Verifying)

	core.SubmitResult(resultFor(id, "sim-2", 20, true))
	status := requireState(t, core, id, intent.Approved)
	require.Equal(t, 2, status.Record.ResultCount)
	require.InDelta(t, 15.0, status.Record.AverageRisk, 0.001)
}

func TestCriticalThreatBlocksImmediately(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(2))
	id := submitIntent(t, core, time.Minute)
	core.SubmitResult(resultFor(id, "sim-1", 5, true))

	core.OnThreatEvent(unittest.ThreatFixture(unittest.AddressFixture(0xbb), intent.SeverityCritical))

	status := requireState(t, core, id, intent.Blocked)
	require.Equal(t, intent.Blocked, status.Record.Decision)
}

func TestThreatSurchargeRaisesAggregate(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(2))
	id := submitIntent(t, core, time.Minute)

	core.OnThreatEvent(unittest.ThreatFixture(unittest.AddressFixture(0xbb), intent.SeverityHigh))
	core.SubmitResult(resultFor(id, "sim-1", 30, true))
	core.SubmitResult(resultFor(id, "sim-2", 40, true))

	// mean 35 plus the high-severity surcharge of 35 crosses the threshold
	status := requireState(t, core, id, intent.Blocked)
	require.InDelta(t, 70.0, status.Record.AverageRisk, 0.001)
}

func TestThreatsDoNotStack(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(2))
	id := submitIntent(t, core, time.Minute)
	target := unittest.AddressFixture(0xbb)

	core.OnThreatEvent(unittest.ThreatFixture(target, intent.SeverityElevated))
	core.OnThreatEvent(unittest.ThreatFixture(target, intent.SeverityElevated))
	core.SubmitResult(resultFor(id, "sim-1", 10, true))
	core.SubmitResult(resultFor(id, "sim-2", 20, true))

	// two elevated threats apply a single surcharge of 20: 15 + 20 = 35
	status := requireState(t, core, id, intent.Approved)
	require.InDelta(t, 35.0, status.Record.AverageRisk, 0.001)
}

func TestThreatAgainstUnrelatedTargetIgnored(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(2))
	id := submitIntent(t, core, time.Minute)

	core.OnThreatEvent(unittest.ThreatFixture(unittest.AddressFixture(0xee), intent.SeverityCritical))
	requireState(t, core, id, intent.Verifying)
}

func TestDeadlineFailClosed(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(2))
	id := submitIntent(t, core, 100*time.Millisecond)

	unittest.RequireEventually(t, func() bool {
		status, err := core.Status(id)
		return err == nil && status.State == intent.Expired
	}, 2*time.Second, "intent did not expire at its deadline")

	// an expired intent is served from retention and stays expired
	core.SubmitResult(resultFor(id, "sim-1", 5, true))
	status := requireState(t, core, id, intent.Expired)
	require.Zero(t, status.Remaining)
	require.False(t, core.AuthorizeExecution(id))
}

func TestGraceWindowRelaxesQuorum(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(3), WithGraceFraction(0.5))
	id := submitIntent(t, core, 400*time.Millisecond)

	core.SubmitResult(resultFor(id, "sim-1", 10, true))
	requireState(t, core, id, intent.Verifying)

	unittest.RequireEventually(t, func() bool {
		status, err := core.Status(id)
		return err == nil && status.State == intent.Approved
	}, 2*time.Second, "single result was not promoted inside the grace window")

	status := requireState(t, core, id, intent.Approved)
	require.Equal(t, 1, status.Record.ResultCount)
}

func TestGraceWindowWithoutResultsExpires(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(2), WithGraceFraction(0.5))
	id := submitIntent(t, core, 150*time.Millisecond)

	unittest.RequireEventually(t, func() bool {
		status, err := core.Status(id)
		return err == nil && status.State == intent.Expired
	}, 2*time.Second, "intent with zero results did not fail closed")
}

func TestStateChangeRestartsRound(t *testing.T) {
	core, broadcaster := newTestCore(t, WithMinSimulators(2))
	id := submitIntent(t, core, time.Minute)
	target := unittest.AddressFixture(0xbb)
	newToken := unittest.HashFixture(0x02)

	core.SubmitResult(resultFor(id, "sim-1", 10, true))

	core.OnStateChangeEvent(&intent.StateChangeEvent{
		Target:     target,
		OldToken:   testToken,
		NewToken:   newToken,
		ObservedAt: time.Now(),
	})

	// the superseded round's result is gone and the intent was re-broadcast
	status := requireState(t, core, id, intent.Verifying)
	require.Nil(t, status.Record)
	require.Equal(t, 2, broadcaster.count())
	require.Equal(t, newToken, broadcaster.last().SnapshotToken)

	// a duplicate signal for the already-rotated token is absorbed
	core.OnStateChangeEvent(&intent.StateChangeEvent{
		Target:   target,
		OldToken: testToken,
		NewToken: unittest.HashFixture(0x03),
	})
	require.Equal(t, 2, broadcaster.count())

	// results against the old token are stale, results against the new one count
	core.SubmitResult(resultFor(id, "sim-1", 10, true))
	requireState(t, core, id, intent.Verifying)

	fresh := func(simulator string, score uint8) *intent.SimulatorResult {
		r := resultFor(id, simulator, score, true)
		r.SnapshotToken = newToken
		return r
	}
	core.SubmitResult(fresh("sim-1", 10))
	core.SubmitResult(fresh("sim-2", 12))

	status = requireState(t, core, id, intent.Approved)
	require.Equal(t, 2, status.Record.ResultCount)
}

// Lifecycle consumers must never dereference the shared intent record, so
// every transition notification carries the snapshot token of the round it
// belongs to.
func TestStateTransitionCarriesRoundToken(t *testing.T) {
	reg, err := registry.New(16)
	require.NoError(t, err)

	type transition struct {
		from, to intent.State
		token    common.Hash
	}
	var mu sync.Mutex
	var transitions []transition

	distributor := NewDistributor()
	distributor.AddOnStateTransitionConsumer(func(_ intent.ID, _ common.Address, from, to intent.State, token common.Hash) {
		mu.Lock()
		defer mu.Unlock()
		transitions = append(transitions, transition{from: from, to: to, token: token})
	})

	core, err := NewCore(
		unittest.Logger(),
		metrics.NewNoopCollector(),
		reg,
		stubCapturer{token: testToken},
		&recordingBroadcaster{},
		distributor,
		WithMinSimulators(2),
	)
	require.NoError(t, err)

	id := submitIntent(t, core, time.Minute)

	newToken := unittest.HashFixture(0x02)
	core.OnStateChangeEvent(&intent.StateChangeEvent{
		Target:     unittest.AddressFixture(0xbb),
		OldToken:   testToken,
		NewToken:   newToken,
		ObservedAt: time.Now(),
	})

	fresh := func(simulator string, score uint8) *intent.SimulatorResult {
		r := resultFor(id, simulator, score, true)
		r.SnapshotToken = newToken
		return r
	}
	core.SubmitResult(fresh("sim-1", 10))
	core.SubmitResult(fresh("sim-2", 12))
	requireState(t, core, id, intent.Approved)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, transitions, 2)
	require.Equal(t, transition{from: intent.Pending, to: intent.Verifying, token: testToken}, transitions[0])
	require.Equal(t, transition{from: intent.Verifying, to: intent.Approved, token: newToken}, transitions[1])
}

func TestTerminalRecordFrozen(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(1))
	id := submitIntent(t, core, time.Minute)

	core.SubmitResult(resultFor(id, "sim-1", 95, false))
	status := requireState(t, core, id, intent.Blocked)
	require.Equal(t, 1, status.Record.ResultCount)

	core.SubmitResult(resultFor(id, "sim-2", 5, true))
	status = requireState(t, core, id, intent.Blocked)
	require.Equal(t, 1, status.Record.ResultCount)
	require.InDelta(t, 95.0, status.Record.AverageRisk, 0.001)
}

func TestConfirmExecution(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(1))
	id := submitIntent(t, core, time.Minute)

	require.True(t, engine.IsInvalidTransitionError(core.ConfirmExecution(id)))

	core.SubmitResult(resultFor(id, "sim-1", 10, true))
	require.True(t, core.AuthorizeExecution(id))

	require.NoError(t, core.ConfirmExecution(id))
	requireState(t, core, id, intent.Executed)
	require.False(t, core.AuthorizeExecution(id))

	require.True(t, engine.IsInvalidTransitionError(core.ConfirmExecution(id)))
}

func TestApprovedIntentExpiresWithoutExecution(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(1))
	id := submitIntent(t, core, 150*time.Millisecond)

	core.SubmitResult(resultFor(id, "sim-1", 10, true))
	requireState(t, core, id, intent.Approved)

	unittest.RequireEventually(t, func() bool {
		status, err := core.Status(id)
		return err == nil && status.State == intent.Expired
	}, 2*time.Second, "unexecuted approved intent did not expire")
	require.False(t, core.AuthorizeExecution(id))
}

func TestUnknownIntent(t *testing.T) {
	core, _ := newTestCore(t)

	_, err := core.Status(intent.NewID())
	require.True(t, engine.IsUnknownIntentError(err))
	require.True(t, engine.IsUnknownIntentError(core.ConfirmExecution(intent.NewID())))
	require.False(t, core.AuthorizeExecution(intent.NewID()))

	// unknown results are absorbed, not surfaced
	core.SubmitResult(resultFor(intent.NewID(), "sim-1", 10, true))
}
