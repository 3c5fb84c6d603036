package mempoolwatch

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/intentgate/intentgate-go/model/intent"
)

// emaWeight is the inverse weight of the gas price moving average: each
// observation moves the baseline by 1/emaWeight of its distance.
const emaWeight = 8

// classifier rates observed mempool transactions against the intents they
// compete with. Three independent signals feed the rating:
//   - the gas price is anomalously high against the rolling baseline
//   - the calldata selector matches one of the competing intents
//   - the same (target, selector) pair repeats within the repetition window
//
// Severity grows with the number of firing signals; all three firing at once
// rate critical.
type classifier struct {
	anomalyFactor   int64
	repeatThreshold int
	repeatWindow    time.Duration

	mu       sync.Mutex
	baseline *big.Int   // EMA of observed gas prices; nil until first observation
	history  *lru.Cache // "(target,selector)" -> *txHistory
}

type txHistory struct {
	seen []time.Time
}

func newClassifier(anomalyFactor int64, repeatThreshold int, repeatWindow time.Duration, historySize int) (*classifier, error) {
	history, err := lru.New(historySize)
	if err != nil {
		return nil, fmt.Errorf("could not create repetition history: %w", err)
	}
	return &classifier{
		anomalyFactor:   anomalyFactor,
		repeatThreshold: repeatThreshold,
		repeatWindow:    repeatWindow,
		history:         history,
	}, nil
}

// classify rates one pending transaction against the active intents sharing
// its target. Classified transactions also feed the gas baseline and the
// repetition history; transactions that touch no watched target feed the
// baseline through observe.
func (c *classifier) classify(tx *PendingTx, competing []*intent.Intent, now time.Time) intent.ThreatSeverity {
	c.mu.Lock()
	defer c.mu.Unlock()

	signals := 0
	if c.gasAnomaly(tx.GasPrice) {
		signals++
	}
	if selectorMatch(tx, competing) {
		signals++
	}
	if c.repetition(tx, now) {
		signals++
	}
	c.updateBaseline(tx.GasPrice)

	switch signals {
	case 0:
		return intent.SeverityLow
	case 1:
		return intent.SeverityElevated
	case 2:
		return intent.SeverityHigh
	default:
		return intent.SeverityCritical
	}
}

// observe folds one gas price into the rolling baseline without rating the
// transaction. The baseline reflects the whole mempool, not just competing
// traffic, so a burst of competitors cannot normalize itself away.
func (c *classifier) observe(price *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateBaseline(price)
}

// gasAnomaly reports whether the gas price exceeds anomalyFactor times the
// rolling baseline. The first observation can never be anomalous.
func (c *classifier) gasAnomaly(price *big.Int) bool {
	if price == nil || c.baseline == nil || c.baseline.Sign() == 0 {
		return false
	}
	limit := new(big.Int).Mul(c.baseline, big.NewInt(c.anomalyFactor))
	return price.Cmp(limit) > 0
}

func (c *classifier) updateBaseline(price *big.Int) {
	if price == nil {
		return
	}
	if c.baseline == nil {
		c.baseline = new(big.Int).Set(price)
		return
	}
	delta := new(big.Int).Sub(price, c.baseline)
	delta.Quo(delta, big.NewInt(emaWeight))
	c.baseline.Add(c.baseline, delta)
}

// selectorMatch reports whether the transaction calls the same function as
// any of the competing intents.
func selectorMatch(tx *PendingTx, competing []*intent.Intent) bool {
	txSel := tx.Selector()
	if txSel == nil {
		return false
	}
	for _, item := range competing {
		if bytes.Equal(txSel, item.Selector()) {
			return true
		}
	}
	return false
}

// repetition records the observation and reports whether the (target,
// selector) pair has now been seen at least repeatThreshold times within the
// repetition window.
func (c *classifier) repetition(tx *PendingTx, now time.Time) bool {
	key := string(tx.To.Bytes()) + string(tx.Selector())

	var hist *txHistory
	if val, ok := c.history.Get(key); ok {
		hist = val.(*txHistory)
	} else {
		hist = &txHistory{}
		c.history.Add(key, hist)
	}

	cutoff := now.Add(-c.repeatWindow)
	kept := hist.seen[:0]
	for _, t := range hist.seen {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	hist.seen = append(kept, now)

	return len(hist.seen) >= c.repeatThreshold
}
