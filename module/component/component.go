// Package component implements the worker-based lifecycle model shared by all
// long-running parts of the system.
package component

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/intentgate/intentgate-go/module"
	"github.com/intentgate/intentgate-go/module/irrecoverable"
	"github.com/intentgate/intentgate-go/module/util"
)

// Component represents a component that can be started and stopped, and
// exposes channels that close when startup and shutdown have completed. Once
// Start has been called, the channel returned by Done must eventually close,
// whether because of a graceful shutdown or an irrecoverable error.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc is called within a ComponentWorker to indicate that the worker is
// ready. The ComponentManager's Ready channel closes once all workers have
// called their ReadyFunc.
type ReadyFunc func()

// ComponentWorker is a worker routine of a component. It uses the
// SignalerContext to throw any irrecoverable errors it encounters and must
// call ready to signal that it has started up.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

// ComponentManagerBuilder collects worker routines for a ComponentManager.
type ComponentManagerBuilder interface {
	// AddWorker adds a worker routine for the ComponentManager.
	AddWorker(ComponentWorker) ComponentManagerBuilder

	// Build builds and returns a new ComponentManager instance.
	Build() *ComponentManager
}

type componentManagerBuilder struct {
	workers []ComponentWorker
}

// NewComponentManagerBuilder returns a new ComponentManagerBuilder.
func NewComponentManagerBuilder() ComponentManagerBuilder {
	return &componentManagerBuilder{}
}

func (c *componentManagerBuilder) AddWorker(worker ComponentWorker) ComponentManagerBuilder {
	c.workers = append(c.workers, worker)
	return c
}

func (c *componentManagerBuilder) Build() *ComponentManager {
	return &ComponentManager{
		started:        atomic.NewBool(false),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		workersDone:    make(chan struct{}),
		shutdownSignal: make(chan struct{}),
		workers:        c.workers,
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager runs the worker routines of a Component and implements the
// Component interface on their behalf. Ready() and Done() are idempotent and
// can be called immediately after instantiation.
//
// Shutdown is signalled by cancelling the SignalerContext passed to Start.
// Irrecoverable errors thrown by any worker cancel the remaining workers and
// are propagated to the caller of Start through the parent's Throw.
type ComponentManager struct {
	started        *atomic.Bool
	ready          chan struct{}
	done           chan struct{}
	workersDone    chan struct{}
	shutdownSignal chan struct{}

	workers []ComponentWorker
}

// Start launches all worker routines. It must only be called once and panics
// otherwise.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(module.ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	go func() {
		<-ctx.Done()
		close(c.shutdownSignal)
	}()

	go func() {
		// closing done only after workersDone guarantees that a thrown error
		// reaches the parent before the parent observes the done signal
		defer func() {
			<-c.workersDone
			close(c.done)
		}()

		if err := util.WaitError(errChan, c.workersDone); err != nil {
			cancel() // shut down all workers

			// a failure in a worker routine is irrecoverable for the whole component
			parent.Throw(err)
		}
	}()

	var workersReady sync.WaitGroup
	var workersDone sync.WaitGroup
	workersReady.Add(len(c.workers))
	workersDone.Add(len(c.workers))

	for _, worker := range c.workers {
		worker := worker
		go func() {
			defer workersDone.Done()
			var readyOnce sync.Once
			worker(signalerCtx, func() {
				readyOnce.Do(workersReady.Done)
			})
		}()
	}

	go func() {
		workersReady.Wait()
		close(c.ready)
	}()
	go func() {
		workersDone.Wait()
		close(c.workersDone)
	}()
}

// Ready returns a channel that closes once all worker routines have signalled
// readiness. If a worker exits before signalling ready, the channel never
// closes.
func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

// Done returns a channel that closes once all worker routines have returned.
func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}

// ShutdownSignal returns a channel that closes when shutdown has commenced,
// either because the context was cancelled or because a worker threw an
// irrecoverable error. Returns nil before Start.
func (c *ComponentManager) ShutdownSignal() <-chan struct{} {
	return c.shutdownSignal
}
