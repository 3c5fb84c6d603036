package metrics

import (
	"time"

	"github.com/intentgate/intentgate-go/model/intent"
)

// NoopCollector is a VerificationMetrics implementation that does nothing.
// Used in tests and wherever metrics are not wired up.
type NoopCollector struct{}

func NewNoopCollector() *NoopCollector { return &NoopCollector{} }

func (nc *NoopCollector) IntentSubmitted()                            {}
func (nc *NoopCollector) IntentFinalized(state intent.State)          {}
func (nc *NoopCollector) ActiveIntents(count uint)                    {}
func (nc *NoopCollector) SimulatorResult(fate string)                 {}
func (nc *NoopCollector) ThreatEvent(severity intent.ThreatSeverity)  {}
func (nc *NoopCollector) Reverification()                             {}
func (nc *NoopCollector) ConsensusComputed(dur time.Duration)         {}
