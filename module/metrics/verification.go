package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/intentgate/intentgate-go/model/intent"
)

const (
	namespaceIntentgate    = "intentgate"
	subsystemVerification  = "verification"
	LabelOutcome           = "outcome"
	LabelFate              = "fate"
	LabelSeverity          = "severity"
	ResultFateAccepted     = "accepted"
	ResultFateStale        = "stale"
	ResultFateLate         = "late"
	ResultFateUnknownRound = "unknown_intent"
)

// VerificationCollector tracks the intent verification pipeline with
// prometheus metrics.
type VerificationCollector struct {
	intentsSubmitted  prometheus.Counter
	intentsFinalized  *prometheus.CounterVec
	activeIntents     prometheus.Gauge
	simulatorResults  *prometheus.CounterVec
	threatEvents      *prometheus.CounterVec
	reverifications   prometheus.Counter
	consensusDuration prometheus.Histogram
}

// NewVerificationCollector registers and returns the verification metrics.
func NewVerificationCollector(registerer prometheus.Registerer) *VerificationCollector {
	vc := &VerificationCollector{
		intentsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceIntentgate,
			Subsystem: subsystemVerification,
			Name:      "intents_submitted_total",
			Help:      "total number of intents accepted for verification",
		}),
		intentsFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceIntentgate,
			Subsystem: subsystemVerification,
			Name:      "intents_finalized_total",
			Help:      "total number of intents that reached a terminal state, by outcome",
		}, []string{LabelOutcome}),
		activeIntents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceIntentgate,
			Subsystem: subsystemVerification,
			Name:      "intents_active",
			Help:      "number of intents currently pending or verifying",
		}),
		simulatorResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceIntentgate,
			Subsystem: subsystemVerification,
			Name:      "simulator_results_total",
			Help:      "total number of simulator results received, by fate",
		}, []string{LabelFate}),
		threatEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceIntentgate,
			Subsystem: subsystemVerification,
			Name:      "threat_events_total",
			Help:      "total number of threat events applied to active intents, by severity",
		}, []string{LabelSeverity}),
		reverifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceIntentgate,
			Subsystem: subsystemVerification,
			Name:      "reverifications_total",
			Help:      "total number of verification rounds restarted due to state changes",
		}),
		consensusDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceIntentgate,
			Subsystem: subsystemVerification,
			Name:      "consensus_evaluation_seconds",
			Help:      "duration of one consensus evaluation",
			Buckets:   []float64{.0001, .001, .01, .1, 1},
		}),
	}

	registerer.MustRegister(
		vc.intentsSubmitted,
		vc.intentsFinalized,
		vc.activeIntents,
		vc.simulatorResults,
		vc.threatEvents,
		vc.reverifications,
		vc.consensusDuration,
	)
	return vc
}

func (vc *VerificationCollector) IntentSubmitted() {
	vc.intentsSubmitted.Inc()
}

func (vc *VerificationCollector) IntentFinalized(state intent.State) {
	vc.intentsFinalized.WithLabelValues(state.String()).Inc()
}

func (vc *VerificationCollector) ActiveIntents(count uint) {
	vc.activeIntents.Set(float64(count))
}

func (vc *VerificationCollector) SimulatorResult(fate string) {
	vc.simulatorResults.WithLabelValues(fate).Inc()
}

func (vc *VerificationCollector) ThreatEvent(severity intent.ThreatSeverity) {
	vc.threatEvents.WithLabelValues(severity.String()).Inc()
}

func (vc *VerificationCollector) Reverification() {
	vc.reverifications.Inc()
}

func (vc *VerificationCollector) ConsensusComputed(dur time.Duration) {
	vc.consensusDuration.Observe(dur.Seconds())
}
