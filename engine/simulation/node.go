package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/intentgate/intentgate-go/model/intent"
	"github.com/intentgate/intentgate-go/module/component"
	"github.com/intentgate/intentgate-go/module/irrecoverable"
)

// ResultSink receives completed simulator assessments. Implemented by the
// verification engine's asynchronous intake.
type ResultSink interface {
	SubmitResult(result *intent.SimulatorResult)
}

// DefaultAnalysisTimeout bounds a single analysis when the node is built
// without an explicit timeout.
const DefaultAnalysisTimeout = 10 * time.Second

// defaultNodeCapacity bounds the node's pending request buffer.
const defaultNodeCapacity = 256

// Node is one independent simulator. It consumes verification requests from a
// bounded buffer, runs its scorer with a per-analysis timeout and reports each
// assessment to the sink. A node that cannot keep up drops requests rather
// than backpressuring the broadcasting pool; a missing result is equivalent to
// an unresponsive simulator and resolves via quorum or deadline.
type Node struct {
	*component.ComponentManager

	log      zerolog.Logger
	id       string
	scorer   RiskScorer
	sink     ResultSink
	timeout  time.Duration
	requests chan intent.Intent
}

var _ component.Component = (*Node)(nil)

// NodeOption configures a Node at construction time.
type NodeOption func(*Node)

// WithAnalysisTimeout overrides the per-analysis timeout.
func WithAnalysisTimeout(timeout time.Duration) NodeOption {
	return func(n *Node) {
		n.timeout = timeout
	}
}

// WithRequestCapacity overrides the pending request buffer size.
func WithRequestCapacity(capacity int) NodeOption {
	return func(n *Node) {
		n.requests = make(chan intent.Intent, capacity)
	}
}

// NewNode builds a simulator node with the given identity and scorer.
func NewNode(log zerolog.Logger, id string, scorer RiskScorer, sink ResultSink, opts ...NodeOption) *Node {
	n := &Node{
		log:      log.With().Str("engine", "simulation.Node").Str("simulator_id", id).Logger(),
		id:       id,
		scorer:   scorer,
		sink:     sink,
		timeout:  DefaultAnalysisTimeout,
		requests: make(chan intent.Intent, defaultNodeCapacity),
	}
	for _, opt := range opts {
		opt(n)
	}

	n.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(n.processRequests).
		Build()

	return n
}

// ID returns the simulator's stable identity.
func (n *Node) ID() string {
	return n.id
}

// Enqueue hands the node a verification request. Returns an error if the
// node's buffer is full.
func (n *Node) Enqueue(item intent.Intent) error {
	select {
	case n.requests <- item:
		return nil
	default:
		return fmt.Errorf("simulator %s request buffer full", n.id)
	}
}

func (n *Node) processRequests(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-n.requests:
			n.analyze(ctx, item)
		}
	}
}

// analyze runs the scorer on one request and reports the result. Scorer
// failures are logged and swallowed: one broken analysis must not take the
// node down.
func (n *Node) analyze(ctx context.Context, item intent.Intent) {
	analysisCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	assessment, err := n.scorer.Score(analysisCtx, &item)
	if err != nil {
		n.log.Warn().Err(err).
			Str("intent_id", item.ID.String()).
			Msg("analysis failed, no result reported")
		return
	}

	n.sink.SubmitResult(&intent.SimulatorResult{
		IntentID:      item.ID,
		SimulatorID:   n.id,
		RiskScore:     assessment.RiskScore,
		Approve:       assessment.Approve,
		Analysis:      assessment.Analysis,
		SnapshotToken: item.SnapshotToken,
		SubmittedAt:   time.Now(),
	})
}
