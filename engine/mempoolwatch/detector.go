package mempoolwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/intentgate/intentgate-go/model/intent"
	"github.com/intentgate/intentgate-go/module/component"
	"github.com/intentgate/intentgate-go/module/irrecoverable"
	"github.com/intentgate/intentgate-go/module/registry"
)

// ThreatSink receives classified threat events. Implemented by the
// verification engine's asynchronous intake.
type ThreatSink interface {
	OnThreatEvent(event *intent.ThreatEvent)
}

// Detector configuration defaults.
const (
	DefaultAnomalyFactor   = 3
	DefaultRepeatThreshold = 3
	DefaultRepeatWindow    = 30 * time.Second
	DefaultHistorySize     = 4096

	reconnectBase = time.Second
	reconnectCap  = time.Minute
)

// Config holds the detector's classification tunables.
type Config struct {
	// AnomalyFactor is the multiple of the rolling gas price baseline above
	// which a transaction counts as a gas anomaly.
	AnomalyFactor int64
	// RepeatThreshold is the number of (target, selector) observations within
	// RepeatWindow that counts as a repetition signal.
	RepeatThreshold int
	// RepeatWindow is the sliding window of the repetition signal.
	RepeatWindow time.Duration
	// HistorySize bounds the repetition history cache.
	HistorySize int
}

// DefaultConfig returns the default detector tunables.
func DefaultConfig() Config {
	return Config{
		AnomalyFactor:   DefaultAnomalyFactor,
		RepeatThreshold: DefaultRepeatThreshold,
		RepeatWindow:    DefaultRepeatWindow,
		HistorySize:     DefaultHistorySize,
	}
}

// Detector consumes the mempool feed, classifies transactions touching a
// target under verification and forwards the resulting threat events to the
// sink. Transactions against other targets only feed the gas baseline. A broken feed subscription is
// re-established with capped exponential backoff and jitter; transactions
// missed while disconnected are lost, which the consensus policy tolerates
// the same way it tolerates an unobserved mempool.
type Detector struct {
	*component.ComponentManager

	log        zerolog.Logger
	feed       Feed
	targets    *registry.Registry
	sink       ThreatSink
	classifier *classifier
}

var _ component.Component = (*Detector)(nil)

// NewDetector builds a mempool threat detector. The registry provides the
// read-only view of which targets currently matter.
func NewDetector(log zerolog.Logger, feed Feed, targets *registry.Registry, sink ThreatSink, cfg Config) (*Detector, error) {
	cls, err := newClassifier(cfg.AnomalyFactor, cfg.RepeatThreshold, cfg.RepeatWindow, cfg.HistorySize)
	if err != nil {
		return nil, fmt.Errorf("could not create classifier: %w", err)
	}

	d := &Detector{
		log:        log.With().Str("engine", "mempoolwatch.Detector").Logger(),
		feed:       feed,
		targets:    targets,
		sink:       sink,
		classifier: cls,
	}

	d.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(d.watchFeed).
		Build()

	return d, nil
}

func (d *Detector) watchFeed(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	ready()

	for {
		expo, err := retry.NewExponential(reconnectBase)
		if err != nil {
			ctx.Throw(fmt.Errorf("could not create reconnect backoff: %w", err))
			return
		}
		// fresh backoff per session so a healthy subscription resets the delay
		backoff := retry.WithJitterPercent(10, retry.WithCappedDuration(reconnectCap, expo))

		err = retry.Do(ctx, backoff, func(ctx context.Context) error {
			txs, err := d.feed.Subscribe(ctx)
			if err != nil {
				d.log.Warn().Err(err).Msg("mempool subscription failed, retrying")
				return retry.RetryableError(err)
			}
			d.log.Info().Msg("mempool subscription established")
			d.consume(ctx, txs)
			return nil
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			// retry.Do only returns a non-ctx error if the backoff is
			// exhausted, which a capped backoff never is
			ctx.Throw(fmt.Errorf("mempool feed permanently failed: %w", err))
			return
		}
		// feed closed its channel; resubscribe from a fresh backoff
	}
}

// consume processes the subscription until the channel closes or ctx is
// cancelled.
func (d *Detector) consume(ctx context.Context, txs <-chan PendingTx) {
	for {
		select {
		case <-ctx.Done():
			return
		case tx, ok := <-txs:
			if !ok {
				d.log.Warn().Msg("mempool subscription closed, reconnecting")
				return
			}
			d.inspect(&tx)
		}
	}
}

// inspect classifies one pending transaction and raises a threat event if it
// touches a target under verification.
func (d *Detector) inspect(tx *PendingTx) {
	if !d.targets.ContainsTarget(tx.To) {
		d.classifier.observe(tx.GasPrice)
		return
	}

	now := tx.Seen
	if now.IsZero() {
		now = time.Now()
	}
	severity := d.classifier.classify(tx, d.targets.ByTarget(tx.To), now)

	d.log.Debug().
		Hex("tx", tx.Hash.Bytes()).
		Hex("target", tx.To.Bytes()).
		Str("severity", severity.String()).
		Msg("competing mempool transaction observed")

	d.sink.OnThreatEvent(&intent.ThreatEvent{
		Target:      tx.To,
		CompetingTx: tx.Hash,
		Severity:    severity,
		ObservedAt:  now,
	})
}
