package component

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/intentgate/intentgate-go/module"
	"github.com/intentgate/intentgate-go/module/irrecoverable"
	"github.com/intentgate/intentgate-go/utils/unittest"
)

func TestComponentLifecycle(t *testing.T) {
	manager := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	signalerCtx, _ := irrecoverable.WithSignaler(ctx)
	manager.Start(signalerCtx)

	unittest.RequireCloseBefore(t, manager.Ready(), time.Second, "workers did not become ready")
	unittest.RequireNotClosed(t, manager.Done(), "component reported done while running")

	cancel()
	unittest.RequireCloseBefore(t, manager.ShutdownSignal(), time.Second, "shutdown was not signalled")
	unittest.RequireCloseBefore(t, manager.Done(), time.Second, "workers did not stop")
}

func TestComponentStartedTwicePanics(t *testing.T) {
	manager := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalerCtx, _ := irrecoverable.WithSignaler(ctx)
	manager.Start(signalerCtx)

	require.PanicsWithValue(t, module.ErrMultipleStartup, func() {
		manager.Start(signalerCtx)
	})
}

func TestWorkerErrorPropagatesAndStopsSiblings(t *testing.T) {
	workerErr := errors.New("worker failed")

	manager := NewComponentManagerBuilder().
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			<-ctx.Done()
		}).
		AddWorker(func(ctx irrecoverable.SignalerContext, ready ReadyFunc) {
			ready()
			ctx.Throw(workerErr)
		}).
		Build()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)
	manager.Start(signalerCtx)

	select {
	case err := <-errChan:
		require.ErrorIs(t, err, workerErr)
	case <-time.After(time.Second):
		t.Fatal("irrecoverable error was not propagated")
	}
	unittest.RequireCloseBefore(t, manager.Done(), time.Second, "sibling worker was not shut down")
}
