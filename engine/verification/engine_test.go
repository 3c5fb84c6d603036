package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intentgate/intentgate-go/model/intent"
	"github.com/intentgate/intentgate-go/module/irrecoverable"
	"github.com/intentgate/intentgate-go/utils/unittest"
)

func withStartedEngine(t *testing.T, core *Core, f func(eng *Engine)) {
	eng, err := New(unittest.Logger(), core)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	signalerCtx, _ := irrecoverable.WithSignaler(ctx)
	eng.Start(signalerCtx)
	unittest.RequireCloseBefore(t, eng.Ready(), time.Second, "engine did not become ready")

	f(eng)

	cancel()
	unittest.RequireCloseBefore(t, eng.Done(), time.Second, "engine did not shut down")
}

func TestEngineProcessesQueuedResults(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(2))
	withStartedEngine(t, core, func(eng *Engine) {
		id := submitIntent(t, core, time.Minute)

		eng.SubmitResult(resultFor(id, "sim-1", 10, true))
		eng.SubmitResult(resultFor(id, "sim-2", 12, true))

		unittest.RequireEventually(t, func() bool {
			status, err := eng.Status(id)
			return err == nil && status.State == intent.Approved
		}, time.Second, "queued results were not aggregated")
	})
}

func TestEngineProcessesQueuedThreats(t *testing.T) {
	core, _ := newTestCore(t, WithMinSimulators(2))
	withStartedEngine(t, core, func(eng *Engine) {
		id := submitIntent(t, core, time.Minute)

		eng.OnThreatEvent(unittest.ThreatFixture(unittest.AddressFixture(0xbb), intent.SeverityCritical))

		unittest.RequireEventually(t, func() bool {
			status, err := eng.Status(id)
			return err == nil && status.State == intent.Blocked
		}, time.Second, "queued critical threat did not block the intent")
	})
}

func TestEngineProcessesQueuedStateChanges(t *testing.T) {
	core, broadcaster := newTestCore(t, WithMinSimulators(2))
	withStartedEngine(t, core, func(eng *Engine) {
		submitIntent(t, core, time.Minute)
		require.Equal(t, 1, broadcaster.count())

		eng.OnStateChangeEvent(&intent.StateChangeEvent{
			Target:     unittest.AddressFixture(0xbb),
			OldToken:   testToken,
			NewToken:   unittest.HashFixture(0x02),
			ObservedAt: time.Now(),
		})

		unittest.RequireEventually(t, func() bool {
			return broadcaster.count() == 2
		}, time.Second, "queued state change did not restart the round")
	})
}
