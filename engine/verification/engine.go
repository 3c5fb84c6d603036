package verification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/intentgate/intentgate-go/engine/common/fifoqueue"
	"github.com/intentgate/intentgate-go/model/intent"
	"github.com/intentgate/intentgate-go/module"
	"github.com/intentgate/intentgate-go/module/component"
	"github.com/intentgate/intentgate-go/module/irrecoverable"
)

// defaultQueueCapacity bounds each intake queue when the config does not
// override it.
const defaultQueueCapacity = 1000

// Engine is the asynchronous front of the consensus core. Simulator results,
// threat events and state-change signals arrive on bounded FIFO queues and are
// processed by dedicated workers, so a burst on one input cannot starve the
// others. Submission, status and execution calls are synchronous
// pass-throughs: their callers need the error or the decision.
type Engine struct {
	*component.ComponentManager

	log  zerolog.Logger
	core *Core

	resultsQueue    *fifoqueue.FifoQueue
	threatsQueue    *fifoqueue.FifoQueue
	stateQueue      *fifoqueue.FifoQueue
	resultsNotifier module.Notifier
	threatsNotifier module.Notifier
	stateNotifier   module.Notifier
}

var _ component.Component = (*Engine)(nil)

// New builds the verification engine around an assembled core.
func New(log zerolog.Logger, core *Core) (*Engine, error) {
	capacity := core.Config().QueueCapacity
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}

	resultsQueue, err := fifoqueue.NewFifoQueue(fifoqueue.WithCapacity(capacity))
	if err != nil {
		return nil, fmt.Errorf("could not create results queue: %w", err)
	}
	threatsQueue, err := fifoqueue.NewFifoQueue(fifoqueue.WithCapacity(capacity))
	if err != nil {
		return nil, fmt.Errorf("could not create threats queue: %w", err)
	}
	stateQueue, err := fifoqueue.NewFifoQueue(fifoqueue.WithCapacity(capacity))
	if err != nil {
		return nil, fmt.Errorf("could not create state change queue: %w", err)
	}

	e := &Engine{
		log:             log.With().Str("engine", "verification").Logger(),
		core:            core,
		resultsQueue:    resultsQueue,
		threatsQueue:    threatsQueue,
		stateQueue:      stateQueue,
		resultsNotifier: module.NewNotifier(),
		threatsNotifier: module.NewNotifier(),
		stateNotifier:   module.NewNotifier(),
	}

	e.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(e.processResults).
		AddWorker(e.processThreats).
		AddWorker(e.processStateChanges).
		Build()

	return e, nil
}

// Submit registers a new intent and starts its verification round.
// Expected error returns are documented on Core.Submit.
func (e *Engine) Submit(ctx context.Context, request SubmitRequest) (intent.ID, error) {
	return e.core.Submit(ctx, request)
}

// SubmitResult queues a simulator result for asynchronous processing. Results
// arriving faster than the core can aggregate them are dropped once the queue
// is full; a dropped result is indistinguishable from an unresponsive
// simulator and resolves via quorum or deadline.
func (e *Engine) SubmitResult(result *intent.SimulatorResult) {
	if !e.resultsQueue.Push(result) {
		e.log.Warn().
			Str("intent_id", result.IntentID.String()).
			Str("simulator_id", result.SimulatorID).
			Msg("results queue full, dropping simulator result")
		return
	}
	e.resultsNotifier.Notify()
}

// OnThreatEvent queues a mempool threat for asynchronous processing.
func (e *Engine) OnThreatEvent(event *intent.ThreatEvent) {
	if !e.threatsQueue.Push(event) {
		e.log.Warn().
			Hex("target", event.Target.Bytes()).
			Str("severity", event.Severity.String()).
			Msg("threats queue full, dropping threat event")
		return
	}
	e.threatsNotifier.Notify()
}

// OnStateChangeEvent queues a target state change for asynchronous processing.
func (e *Engine) OnStateChangeEvent(event *intent.StateChangeEvent) {
	if !e.stateQueue.Push(event) {
		e.log.Warn().
			Hex("target", event.Target.Bytes()).
			Msg("state change queue full, dropping event")
		return
	}
	e.stateNotifier.Notify()
}

// ConfirmExecution transitions an Approved intent to Executed.
// Expected error returns are documented on Core.ConfirmExecution.
func (e *Engine) ConfirmExecution(id intent.ID) error {
	return e.core.ConfirmExecution(id)
}

// AuthorizeExecution reports whether the intent may be executed right now.
func (e *Engine) AuthorizeExecution(id intent.ID) bool {
	return e.core.AuthorizeExecution(id)
}

// Status returns the current status snapshot of an intent.
// Expected error returns are documented on Core.Status.
func (e *Engine) Status(id intent.ID) (*intent.StatusSnapshot, error) {
	return e.core.Status(id)
}

func (e *Engine) processResults(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	e.loop(ctx, e.resultsNotifier.Channel(), func() {
		for {
			msg, ok := e.resultsQueue.Pop()
			if !ok {
				return
			}
			e.core.SubmitResult(msg.(*intent.SimulatorResult))
		}
	})
}

func (e *Engine) processThreats(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	e.loop(ctx, e.threatsNotifier.Channel(), func() {
		for {
			msg, ok := e.threatsQueue.Pop()
			if !ok {
				return
			}
			e.core.OnThreatEvent(msg.(*intent.ThreatEvent))
		}
	})
}

func (e *Engine) processStateChanges(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	e.loop(ctx, e.stateNotifier.Channel(), func() {
		for {
			msg, ok := e.stateQueue.Pop()
			if !ok {
				return
			}
			e.core.OnStateChangeEvent(msg.(*intent.StateChangeEvent))
		}
	})
}

// loop drains the associated queue whenever the notifier fires, until
// shutdown. Each intake has its own worker, so processing one class of events
// never blocks another.
func (e *Engine) loop(ctx irrecoverable.SignalerContext, wake <-chan struct{}, drain func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-wake:
			drain()
		}
	}
}
