// Package statewatch tracks the on-chain state of contracts targeted by
// active intents and signals the verification engine when that state changes
// under an intent's feet.
package statewatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/intentgate/intentgate-go/model/intent"
	"github.com/intentgate/intentgate-go/module/component"
	"github.com/intentgate/intentgate-go/module/irrecoverable"
)

// ChainReader reads the state fingerprint of a target contract. The
// fingerprint is opaque to the engine: two reads returning different hashes
// mean the target's state changed in between.
type ChainReader interface {
	Snapshot(ctx context.Context, target common.Address) (common.Hash, error)
}

// StateChangeSink receives state change events. Implemented by the
// verification engine's asynchronous intake.
type StateChangeSink interface {
	OnStateChangeEvent(event *intent.StateChangeEvent)
}

// Monitor defaults.
const (
	DefaultPollInterval = 2 * time.Second

	snapshotRetryBase = 100 * time.Millisecond
	snapshotRetries   = 3
)

// watchEntry is the monitor's view of one intent's verification round.
type watchEntry struct {
	target common.Address
	token  common.Hash
	// emitted is set once a change event for this token has been raised; the
	// entry stays quiet until the engine confirms the new round via
	// OnReverification.
	emitted bool
}

// Monitor polls the chain state of every watched target and raises exactly
// one state change event per token rotation of each intent. It doubles as the
// snapshot capturer used at submission time. Watch entries follow the intent
// lifecycle through the verification distributor: a Pending to Verifying
// transition starts the watch, a terminal transition tears it down and a
// reverification re-arms the entry under the new token.
type Monitor struct {
	*component.ComponentManager

	log      zerolog.Logger
	reader   ChainReader
	sink     StateChangeSink
	interval time.Duration

	mu      sync.Mutex
	watched map[intent.ID]*watchEntry
}

var _ component.Component = (*Monitor)(nil)

// MonitorOption configures a Monitor at construction time.
type MonitorOption func(*Monitor)

// WithPollInterval overrides the state polling interval.
func WithPollInterval(interval time.Duration) MonitorOption {
	return func(m *Monitor) {
		m.interval = interval
	}
}

// NewMonitor builds a state monitor. Watch entries are seeded entirely from
// the lifecycle notifications, which carry the round's snapshot token.
func NewMonitor(log zerolog.Logger, reader ChainReader, sink StateChangeSink, opts ...MonitorOption) *Monitor {
	m := &Monitor{
		log:      log.With().Str("engine", "statewatch.Monitor").Logger(),
		reader:   reader,
		sink:     sink,
		interval: DefaultPollInterval,
		watched:  make(map[intent.ID]*watchEntry),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(m.poll).
		Build()

	return m
}

// Capture reads the target's current state fingerprint, retrying transient
// read failures. Used by the verification core at submission time.
func (m *Monitor) Capture(ctx context.Context, target common.Address) (common.Hash, error) {
	return m.snapshot(ctx, target)
}

// OnStateTransition follows the intent lifecycle: entering Verifying from
// Pending starts the watch on the notified token, reaching a terminal state
// ends it. The token comes from the notification rather than the shared
// intent record so a rotation racing the notification can never seed the
// watch with a superseded token. Wire this to the verification distributor.
func (m *Monitor) OnStateTransition(id intent.ID, target common.Address, from, to intent.State, token common.Hash) {
	if from == intent.Pending && to == intent.Verifying {
		m.mu.Lock()
		m.watched[id] = &watchEntry{target: target, token: token}
		m.mu.Unlock()
		return
	}
	if to.Terminal() {
		m.mu.Lock()
		delete(m.watched, id)
		m.mu.Unlock()
	}
}

// OnReverification re-arms the watch entry under the token of the new
// verification round. Wire this to the verification distributor.
func (m *Monitor) OnReverification(id intent.ID, target common.Address, newToken common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.watched[id]; ok {
		entry.token = newToken
		entry.emitted = false
	}
}

// Watching returns the number of intents currently under watch.
func (m *Monitor) Watching() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.watched)
}

func (m *Monitor) poll(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep re-reads the state of every armed watch entry once. Entries sharing a
// target are served from a single read per sweep.
func (m *Monitor) sweep(ctx context.Context) {
	type pending struct {
		id    intent.ID
		entry watchEntry
	}

	m.mu.Lock()
	armed := make([]pending, 0, len(m.watched))
	for id, entry := range m.watched {
		if !entry.emitted {
			armed = append(armed, pending{id: id, entry: *entry})
		}
	}
	m.mu.Unlock()

	reads := make(map[common.Address]common.Hash)
	for _, p := range armed {
		current, ok := reads[p.entry.target]
		if !ok {
			var err error
			current, err = m.snapshot(ctx, p.entry.target)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				m.log.Warn().Err(err).
					Hex("target", p.entry.target.Bytes()).
					Msg("state read failed, will retry next sweep")
				continue
			}
			reads[p.entry.target] = current
		}

		if current == p.entry.token {
			continue
		}
		m.raise(p.id, p.entry, current)
	}
}

// raise emits one state change event for the entry and mutes it until the
// engine confirms the new round.
func (m *Monitor) raise(id intent.ID, entry watchEntry, newToken common.Hash) {
	m.mu.Lock()
	live, ok := m.watched[id]
	// the entry may have been torn down or re-armed since the sweep copied it
	if !ok || live.emitted || live.token != entry.token {
		m.mu.Unlock()
		return
	}
	live.emitted = true
	m.mu.Unlock()

	m.log.Info().
		Str("intent_id", id.String()).
		Hex("target", entry.target.Bytes()).
		Hex("old_token", entry.token.Bytes()).
		Hex("new_token", newToken.Bytes()).
		Msg("target state changed under active intent")

	m.sink.OnStateChangeEvent(&intent.StateChangeEvent{
		Target:     entry.target,
		OldToken:   entry.token,
		NewToken:   newToken,
		ObservedAt: time.Now(),
	})
}

// snapshot reads the target state with bounded retries on transient failures.
func (m *Monitor) snapshot(ctx context.Context, target common.Address) (common.Hash, error) {
	expo, err := retry.NewExponential(snapshotRetryBase)
	if err != nil {
		return common.Hash{}, fmt.Errorf("could not create retry backoff: %w", err)
	}

	var token common.Hash
	err = retry.Do(ctx, retry.WithMaxRetries(snapshotRetries, expo), func(ctx context.Context) error {
		var readErr error
		token, readErr = m.reader.Snapshot(ctx, target)
		if readErr != nil {
			return retry.RetryableError(readErr)
		}
		return nil
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("could not snapshot state of %s: %w", target, err)
	}
	return token, nil
}
