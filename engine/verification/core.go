// Package verification implements the consensus engine at the heart of the
// intent verification pipeline: intent lifecycle management, aggregation of
// simulator results, threat and state-change handling, and the fail-closed
// deadline policy.
package verification

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"

	"github.com/intentgate/intentgate-go/engine"
	"github.com/intentgate/intentgate-go/model/intent"
	"github.com/intentgate/intentgate-go/module"
	"github.com/intentgate/intentgate-go/module/registry"
)

// SnapshotCapturer produces the opaque fingerprint of a target contract's
// current on-chain state. Implemented by the state change monitor.
type SnapshotCapturer interface {
	Capture(ctx context.Context, target common.Address) (common.Hash, error)
}

// Broadcaster fans a verification round out to all currently known simulator
// nodes. Implemented by the simulation pool. Broadcast must not block on slow
// nodes; an unreachable node is simply absent from the round's result set.
type Broadcaster interface {
	Broadcast(item intent.Intent)
}

// SubmitRequest carries the caller-supplied fields of a new intent.
type SubmitRequest struct {
	Submitter common.Address
	Target    common.Address
	Payload   []byte
	Value     *big.Int
	Deadline  time.Time
}

// Core owns the intent registry and one collector per active intent. It is
// safe for concurrent use: the collectors map is guarded by an RWMutex and
// each collector serializes all operations on its intent.
type Core struct {
	log         zerolog.Logger
	metrics     module.VerificationMetrics
	cfg         Config
	registry    *registry.Registry
	snapshots   SnapshotCapturer
	broadcaster Broadcaster
	distributor *Distributor

	collectors map[intent.ID]*collector
	lock       sync.RWMutex
}

// NewCore validates the config and assembles the consensus core. The registry
// is injected so multiple engine instances can be tested in isolation; Core
// assumes exclusive ownership of it.
func NewCore(
	log zerolog.Logger,
	metrics module.VerificationMetrics,
	reg *registry.Registry,
	snapshots SnapshotCapturer,
	broadcaster Broadcaster,
	distributor *Distributor,
	opts ...OptionFunc,
) (*Core, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consensus config: %w", err)
	}
	return &Core{
		log:         log.With().Str("engine", "verification.Core").Logger(),
		metrics:     metrics,
		cfg:         cfg,
		registry:    reg,
		snapshots:   snapshots,
		broadcaster: broadcaster,
		distributor: distributor,
		collectors:  make(map[intent.ID]*collector),
	}, nil
}

// Config returns the consensus policy the core was built with.
func (c *Core) Config() Config {
	return c.cfg
}

// Submit validates and registers a new intent, captures its state snapshot,
// transitions it to Verifying and broadcasts it to all known simulators.
// Returns:
//   - engine.InvalidTargetError if the target address is zero
//   - engine.InvalidDeadlineError if the deadline is not strictly in the
//     future or exceeds the maximum verification window
//   - exception for snapshot capture or registration failures
func (c *Core) Submit(ctx context.Context, request SubmitRequest) (intent.ID, error) {
	if request.Target == (common.Address{}) {
		return intent.ZeroID, engine.NewInvalidTargetErrorf("intent target must be non-zero")
	}

	now := time.Now()
	if !request.Deadline.After(now) {
		return intent.ZeroID, engine.NewInvalidDeadlineErrorf(
			"intent deadline %s is not in the future", request.Deadline)
	}
	window := request.Deadline.Sub(now)
	if window > c.cfg.MaxVerificationWindow {
		return intent.ZeroID, engine.NewInvalidDeadlineErrorf(
			"verification window %s exceeds maximum %s", window, c.cfg.MaxVerificationWindow)
	}

	token, err := c.snapshots.Capture(ctx, request.Target)
	if err != nil {
		return intent.ZeroID, fmt.Errorf("could not capture state snapshot for target %s: %w", request.Target, err)
	}

	item := &intent.Intent{
		ID:            intent.NewID(),
		Submitter:     request.Submitter,
		Target:        request.Target,
		Payload:       request.Payload,
		Value:         request.Value,
		CreatedAt:     now,
		Deadline:      request.Deadline,
		SnapshotToken: token,
	}

	if err := c.registry.Add(item); err != nil {
		return intent.ZeroID, fmt.Errorf("could not register intent %s: %w", item.ID, err)
	}

	// copy for the broadcast before the collector becomes reachable; once it
	// is in the map a concurrent state change may rotate the snapshot token
	itemCopy := *item

	col := newCollector(item)
	c.lock.Lock()
	c.collectors[item.ID] = col
	c.lock.Unlock()

	c.handleOutcome(item, col.beginVerifying())

	id := item.ID
	graceStart := item.Deadline.Add(-time.Duration(c.cfg.GraceFraction * float64(window)))
	col.setTimers(
		scheduleAt(graceStart, func() { c.onGraceElapsed(id) }),
		scheduleAt(item.Deadline, func() { c.onDeadlineElapsed(id) }),
	)

	c.broadcaster.Broadcast(itemCopy)

	c.metrics.IntentSubmitted()
	c.metrics.ActiveIntents(c.registry.Size())
	c.log.Info().
		Str("intent_id", id.String()).
		Hex("target", item.Target.Bytes()).
		Hex("snapshot_token", token.Bytes()).
		Dur("window", window).
		Msg("intent accepted for verification")

	return id, nil
}

// SubmitResult processes one simulator's assessment of an intent. Late
// results (unknown intent, terminal intent, superseded round) are absorbed as
// logged no-ops; they are expected races, not submitter mistakes.
func (c *Core) SubmitResult(result *intent.SimulatorResult) {
	col := c.getCollector(result.IntentID)
	if col == nil {
		c.metrics.SimulatorResult("unknown_intent")
		c.log.Debug().
			Str("intent_id", result.IntentID.String()).
			Str("simulator_id", result.SimulatorID).
			Msg("discarding result for unknown or already finalized intent")
		return
	}

	start := time.Now()
	fate, out := col.applyResult(c.cfg, result, start)
	c.metrics.SimulatorResult(string(fate))
	if fate != fateAccepted {
		c.log.Debug().
			Str("intent_id", result.IntentID.String()).
			Str("simulator_id", result.SimulatorID).
			Str("fate", string(fate)).
			Msg("discarding simulator result")
		return
	}
	c.metrics.ConsensusComputed(time.Since(start))

	c.log.Debug().
		Str("intent_id", result.IntentID.String()).
		Str("simulator_id", result.SimulatorID).
		Uint8("risk_score", result.RiskScore).
		Bool("approve", result.Approve).
		Msg("simulator result accepted")
	c.handleOutcome(col.item, out)
}

// OnThreatEvent applies a mempool threat to every Verifying intent targeting
// the same contract. A critical threat forces an immediate Blocked decision.
func (c *Core) OnThreatEvent(event *intent.ThreatEvent) {
	for _, item := range c.registry.ByTarget(event.Target) {
		col := c.getCollector(item.ID)
		if col == nil {
			continue
		}
		applied, out := col.applyThreat(c.cfg, event, time.Now())
		if !applied {
			continue
		}
		c.metrics.ThreatEvent(event.Severity)
		c.log.Info().
			Str("intent_id", item.ID.String()).
			Hex("competing_tx", event.CompetingTx.Bytes()).
			Str("severity", event.Severity.String()).
			Msg("threat applied to intent under verification")
		c.handleOutcome(col.item, out)
	}
}

// OnStateChangeEvent invalidates every active intent whose target and snapshot
// token match the event: the snapshot token is replaced, the result set is
// cleared and the intent is re-broadcast for a fresh verification round. A
// decision is only trusted against the state it was computed on.
func (c *Core) OnStateChangeEvent(event *intent.StateChangeEvent) {
	for _, item := range c.registry.ByTarget(event.Target) {
		col := c.getCollector(item.ID)
		if col == nil {
			continue
		}
		restarted, itemCopy, out := col.applyStateChange(event)
		if !restarted {
			continue
		}
		c.metrics.Reverification()
		c.log.Info().
			Str("intent_id", item.ID.String()).
			Hex("old_token", event.OldToken.Bytes()).
			Hex("new_token", event.NewToken.Bytes()).
			Msg("state changed, restarting verification round")
		c.handleOutcome(col.item, out)
		c.distributor.OnReverification(item.ID, item.Target, event.NewToken)
		c.broadcaster.Broadcast(itemCopy)
	}
}

// ConfirmExecution transitions an Approved intent to Executed.
// Returns:
//   - engine.UnknownIntentError if the id is neither active nor retained
//   - engine.InvalidTransitionError if the intent is in any state but Approved
func (c *Core) ConfirmExecution(id intent.ID) error {
	col := c.getCollector(id)
	if col == nil {
		if archived, ok := c.registry.Archived(id); ok {
			return engine.NewInvalidTransitionErrorf(
				"cannot confirm execution of intent %s in state %s", id, archived.FinalState)
		}
		return engine.NewUnknownIntentErrorf("unknown intent %s", id)
	}

	out, err := col.confirmExecution()
	if err != nil {
		return err
	}
	c.log.Info().Str("intent_id", id.String()).Msg("intent execution confirmed")
	c.handleOutcome(col.item, out)
	return nil
}

// AuthorizeExecution reports whether the intent is Approved and not yet
// Executed. Execution collaborators must call this immediately before acting.
func (c *Core) AuthorizeExecution(id intent.ID) bool {
	col := c.getCollector(id)
	return col != nil && col.authorized()
}

// Status returns the current lifecycle state, latest consensus record and
// timing of an intent. Serves terminal intents from the retention cache until
// they are evicted.
// Returns engine.UnknownIntentError if the id is neither active nor retained.
func (c *Core) Status(id intent.ID) (*intent.StatusSnapshot, error) {
	now := time.Now()
	if col := c.getCollector(id); col != nil {
		return col.status(now), nil
	}
	if archived, ok := c.registry.Archived(id); ok {
		return &intent.StatusSnapshot{
			IntentID:  id,
			State:     archived.FinalState,
			Record:    archived.Record,
			Elapsed:   now.Sub(archived.Intent.CreatedAt),
			Remaining: 0,
		}, nil
	}
	return nil, engine.NewUnknownIntentErrorf("unknown intent %s", id)
}

func (c *Core) onGraceElapsed(id intent.ID) {
	col := c.getCollector(id)
	if col == nil {
		return
	}
	c.handleOutcome(col.item, col.onGraceElapsed(c.cfg, time.Now()))
}

func (c *Core) onDeadlineElapsed(id intent.ID) {
	col := c.getCollector(id)
	if col == nil {
		return
	}
	out := col.onDeadlineElapsed()
	if out.transitioned {
		c.log.Info().
			Str("intent_id", id.String()).
			Str("from", out.from.String()).
			Msg("deadline elapsed without execution, intent expired")
	}
	c.handleOutcome(col.item, out)
}

func (c *Core) getCollector(id intent.ID) *collector {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.collectors[id]
}

// handleOutcome dispatches the notifications and bookkeeping of one collector
// operation. Runs outside the collector lock so subscribers cannot stall the
// per-intent serialization.
func (c *Core) handleOutcome(item *intent.Intent, out outcome) {
	if out.record != nil {
		c.distributor.OnConsensusRecord(out.record)
	}
	if !out.transitioned {
		return
	}

	c.log.Debug().
		Str("intent_id", item.ID.String()).
		Str("from", out.from.String()).
		Str("to", out.to.String()).
		Msg("intent state transition")
	c.distributor.OnStateTransition(item.ID, item.Target, out.from, out.to, out.token)

	if out.to.Terminal() {
		c.lock.Lock()
		delete(c.collectors, item.ID)
		c.lock.Unlock()

		c.registry.Retire(item.ID, out.to, out.record)
		c.metrics.IntentFinalized(out.to)
		c.metrics.ActiveIntents(c.registry.Size())
	}
}
