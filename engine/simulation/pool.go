package simulation

import (
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/intentgate/intentgate-go/model/intent"
)

// defaultFanoutWorkers bounds the concurrency of a single broadcast.
const defaultFanoutWorkers = 8

// Pool tracks the registered simulator nodes and fans verification requests
// out to all of them. Registration is dynamic: nodes may join and leave while
// intents are in flight, and a round simply collects results from whichever
// nodes received the broadcast.
type Pool struct {
	log     zerolog.Logger
	mu      sync.RWMutex
	nodes   map[string]*Node
	workers *workerpool.WorkerPool
}

// NewPool builds an empty simulator pool.
func NewPool(log zerolog.Logger) *Pool {
	return &Pool{
		log:     log.With().Str("engine", "simulation.Pool").Logger(),
		nodes:   make(map[string]*Node),
		workers: workerpool.New(defaultFanoutWorkers),
	}
}

// Register adds a node to the pool. Returns an error if a node with the same
// identity is already registered.
func (p *Pool) Register(node *Node) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.nodes[node.ID()]; exists {
		return fmt.Errorf("simulator %s already registered", node.ID())
	}
	p.nodes[node.ID()] = node
	p.log.Info().Str("simulator_id", node.ID()).Int("pool_size", len(p.nodes)).Msg("simulator registered")
	return nil
}

// Unregister removes a node from the pool. Unknown identities are a no-op;
// in-flight requests already handed to the node still complete.
func (p *Pool) Unregister(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.nodes[id]; !exists {
		return
	}
	delete(p.nodes, id)
	p.log.Info().Str("simulator_id", id).Int("pool_size", len(p.nodes)).Msg("simulator unregistered")
}

// Size returns the number of registered nodes.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nodes)
}

// Broadcast fans the intent out to every registered node. Delivery failures
// are aggregated and logged but never fatal: a node that cannot accept the
// request is absent from the round, and consensus resolves via quorum or
// deadline. Broadcast returns without waiting for deliveries to finish.
func (p *Pool) Broadcast(item intent.Intent) {
	p.mu.RLock()
	nodes := make([]*Node, 0, len(p.nodes))
	for _, node := range p.nodes {
		nodes = append(nodes, node)
	}
	p.mu.RUnlock()

	if len(nodes) == 0 {
		p.log.Warn().Str("intent_id", item.ID.String()).Msg("broadcast with no registered simulators")
		return
	}

	p.workers.Submit(func() {
		var result *multierror.Error
		for _, node := range nodes {
			if err := node.Enqueue(item); err != nil {
				result = multierror.Append(result, err)
			}
		}
		if err := result.ErrorOrNil(); err != nil {
			p.log.Warn().Err(err).
				Str("intent_id", item.ID.String()).
				Int("pool_size", len(nodes)).
				Msg("broadcast partially failed")
		}
	})
}

// StopWait drains outstanding broadcasts and shuts the fan-out workers down.
func (p *Pool) StopWait() {
	p.workers.StopWait()
}
