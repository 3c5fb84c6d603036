package verification

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/intentgate/intentgate-go/engine"
	"github.com/intentgate/intentgate-go/model/intent"
)

// resultFate describes what happened to a submitted simulator result.
type resultFate string

const (
	fateAccepted resultFate = "accepted"
	fateStale    resultFate = "stale"
	fateLate     resultFate = "late"
)

// outcome captures the externally visible effects of one serialized collector
// operation. The Core dispatches notifications and metrics from it after
// releasing the collector lock. The token is the round's snapshot token at
// the time of the transition, captured under the lock so consumers never need
// to touch the mutable intent record.
type outcome struct {
	transitioned bool
	from, to     intent.State
	token        common.Hash
	record       *intent.ConsensusRecord
}

// collector owns all mutable verification state of a single intent: its
// lifecycle state, the current round's simulator results, the active threat
// surcharge and the transient consensus record. Every mutation runs under the
// collector's mutex, which is the per-intent exclusive section that serializes
// concurrent results, threat events and state changes for the same intent.
type collector struct {
	mu sync.Mutex

	item      *intent.Intent
	state     intent.State
	results   map[string]*intent.SimulatorResult // keyed by simulator identity; current round only
	surcharge uint8                              // active threat surcharge, raises the effective aggregate
	record    *intent.ConsensusRecord            // latest computed record; frozen once terminal
	round     uint64                             // verification round, bumped on every state-change restart

	grace    *scheduledTask
	deadline *scheduledTask
}

func newCollector(item *intent.Intent) *collector {
	return &collector{
		item:    item,
		state:   intent.Pending,
		results: make(map[string]*intent.SimulatorResult),
	}
}

// beginVerifying transitions the freshly registered intent into its first
// verification round.
func (c *collector) beginVerifying() outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = intent.Verifying
	return outcome{transitioned: true, from: intent.Pending, to: intent.Verifying, token: c.item.SnapshotToken}
}

// applyResult upserts a simulator result into the current round and
// re-evaluates consensus. Results against terminal or superseded rounds are
// absorbed as no-ops with the corresponding fate.
func (c *collector) applyResult(cfg Config, result *intent.SimulatorResult, now time.Time) (resultFate, outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != intent.Verifying {
		return fateLate, outcome{}
	}
	if result.SnapshotToken != c.item.SnapshotToken {
		return fateStale, outcome{}
	}

	// replaces any prior result from the same simulator in this round
	c.results[result.SimulatorID] = result
	return fateAccepted, c.evaluate(cfg, now)
}

// applyThreat raises the intent's effective risk. A critical threat forces an
// immediate Blocked decision regardless of pending results. Returns false if
// the intent is not in a round the threat can influence.
func (c *collector) applyThreat(cfg Config, event *intent.ThreatEvent, now time.Time) (bool, outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != intent.Verifying {
		return false, outcome{}
	}

	if event.Severity == intent.SeverityCritical {
		return true, c.decide(intent.Blocked, c.tally(cfg, now))
	}

	// overlapping threats do not stack; the most severe one wins
	if s := event.Severity.Surcharge(); s > c.surcharge {
		c.surcharge = s
	}
	return true, c.evaluate(cfg, now)
}

// applyStateChange restarts verification under the new snapshot token if the
// event matches the intent's current token. All results of the superseded
// round are cleared so they can never count toward the new one. Duplicate
// signals for an already-rotated token are absorbed.
func (c *collector) applyStateChange(event *intent.StateChangeEvent) (bool, intent.Intent, outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.state.Active() {
		return false, intent.Intent{}, outcome{}
	}
	if c.item.SnapshotToken != event.OldToken {
		return false, intent.Intent{}, outcome{}
	}

	c.item.SnapshotToken = event.NewToken
	c.results = make(map[string]*intent.SimulatorResult)
	c.record = nil
	c.round++

	out := outcome{}
	if c.state == intent.Pending {
		c.state = intent.Verifying
		out = outcome{transitioned: true, from: intent.Pending, to: intent.Verifying, token: event.NewToken}
	}
	return true, *c.item, out
}

// onGraceElapsed re-evaluates consensus once the verification window enters
// its final grace fraction, where fewer than MinSimulators results suffice.
func (c *collector) onGraceElapsed(cfg Config, now time.Time) outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != intent.Verifying {
		return outcome{}
	}
	return c.evaluate(cfg, now)
}

// onDeadlineElapsed forces the intent to Expired if it has not reached a
// terminal state. Insufficient evidence at the deadline resolves fail-closed.
func (c *collector) onDeadlineElapsed() outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Terminal() {
		return outcome{}
	}
	from := c.state
	c.state = intent.Expired
	c.cancelTimers()
	return outcome{transitioned: true, from: from, to: intent.Expired, token: c.item.SnapshotToken, record: c.record}
}

// confirmExecution transitions an Approved intent to Executed.
// Returns engine.InvalidTransitionError for any other state.
func (c *collector) confirmExecution() (outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != intent.Approved {
		return outcome{}, engine.NewInvalidTransitionErrorf(
			"cannot confirm execution of intent %s in state %s", c.item.ID, c.state)
	}
	c.state = intent.Executed
	c.cancelTimers()
	return outcome{transitioned: true, from: intent.Approved, to: intent.Executed, token: c.item.SnapshotToken, record: c.record}, nil
}

// authorized reports whether the intent is Approved and not yet Executed.
func (c *collector) authorized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == intent.Approved
}

// status returns the externally queryable view of the intent.
func (c *collector) status(now time.Time) *intent.StatusSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	remaining := c.item.Deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return &intent.StatusSnapshot{
		IntentID:  c.item.ID,
		State:     c.state,
		Record:    c.record,
		Elapsed:   now.Sub(c.item.CreatedAt),
		Remaining: remaining,
	}
}

// setTimers installs the grace and deadline tasks for the intent.
// Caller must not hold the collector lock when the tasks can fire inline.
func (c *collector) setTimers(grace, deadline *scheduledTask) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.grace = grace
	c.deadline = deadline
}

func (c *collector) cancelTimers() {
	c.grace.cancel()
	c.deadline.cancel()
}

// tally aggregates the current round's results into a consensus record with
// the provisional decision. Caller must hold the collector lock.
func (c *collector) tally(cfg Config, now time.Time) *intent.ConsensusRecord {
	var sum int
	var approvals, rejections int
	veto := false
	for _, result := range c.results {
		sum += int(result.RiskScore)
		if result.Approve {
			approvals++
		} else {
			rejections++
			if result.RiskScore >= cfg.VetoCeiling {
				// a single very confident rejection overrides the average
				veto = true
			}
		}
	}

	count := len(c.results)
	aggregate := float64(c.surcharge)
	if count > 0 {
		aggregate += float64(sum) / float64(count)
	}
	if aggregate > intent.MaxRiskScore {
		aggregate = intent.MaxRiskScore
	}

	decision := intent.Blocked
	if aggregate < cfg.RiskThreshold && !veto {
		decision = intent.Approved
	}

	return &intent.ConsensusRecord{
		IntentID:    c.item.ID,
		ResultCount: count,
		AverageRisk: aggregate,
		Approvals:   approvals,
		Rejections:  rejections,
		Decision:    decision,
		ComputedAt:  now,
	}
}

// evaluate recomputes the transient consensus record and finalizes the
// decision once the quorum criteria of the consensus policy are met. Caller
// must hold the collector lock and have verified the state is Verifying.
func (c *collector) evaluate(cfg Config, now time.Time) outcome {
	if len(c.results) == 0 {
		// nothing to aggregate; an empty round resolves via the deadline
		return outcome{}
	}

	record := c.tally(cfg, now)
	c.record = record

	graceStart := c.item.Deadline.Add(-time.Duration(cfg.GraceFraction * float64(c.item.Window())))
	quorum := len(c.results) >= cfg.MinSimulators || !now.Before(graceStart)
	if !quorum {
		return outcome{record: record}
	}
	return c.decide(record.Decision, record)
}

// decide finalizes the intent's decision and freezes the record.
// Caller must hold the collector lock.
func (c *collector) decide(decision intent.State, record *intent.ConsensusRecord) outcome {
	record.Decision = decision
	c.record = record
	from := c.state
	c.state = decision
	c.grace.cancel()
	// an Approved intent keeps its deadline armed: execution must still
	// happen before the deadline or the intent expires
	if decision.Terminal() {
		c.deadline.cancel()
	}
	return outcome{transitioned: true, from: from, to: decision, token: c.item.SnapshotToken, record: record}
}
