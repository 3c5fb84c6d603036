package verification

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/intentgate/intentgate-go/model/intent"
)

// OnStateTransitionConsumer is called on every intent lifecycle transition.
// The token is the intent's snapshot token at transition time; consumers must
// use it instead of re-reading shared intent records, which the engine may
// rotate concurrently.
type OnStateTransitionConsumer = func(id intent.ID, target common.Address, from, to intent.State, token common.Hash)

// OnConsensusRecordConsumer is called whenever a consensus record is
// (re)computed for an intent.
type OnConsensusRecordConsumer = func(record *intent.ConsensusRecord)

// OnReverificationConsumer is called when a state change forces an intent into
// a fresh verification round under a new snapshot token.
type OnReverificationConsumer = func(id intent.ID, target common.Address, newToken common.Hash)

// Distributor fans engine notifications out to subscribers. The concrete
// transport towards external parties (push stream, polling endpoint) is the
// subscriber's concern; consumers must be non-blocking.
type Distributor struct {
	transitionConsumers     []OnStateTransitionConsumer
	recordConsumers         []OnConsensusRecordConsumer
	reverificationConsumers []OnReverificationConsumer
	lock                    sync.RWMutex
}

func NewDistributor() *Distributor {
	return &Distributor{}
}

func (d *Distributor) AddOnStateTransitionConsumer(consumer OnStateTransitionConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.transitionConsumers = append(d.transitionConsumers, consumer)
}

func (d *Distributor) AddOnConsensusRecordConsumer(consumer OnConsensusRecordConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.recordConsumers = append(d.recordConsumers, consumer)
}

func (d *Distributor) AddOnReverificationConsumer(consumer OnReverificationConsumer) {
	d.lock.Lock()
	defer d.lock.Unlock()
	d.reverificationConsumers = append(d.reverificationConsumers, consumer)
}

func (d *Distributor) OnStateTransition(id intent.ID, target common.Address, from, to intent.State, token common.Hash) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.transitionConsumers {
		consumer(id, target, from, to, token)
	}
}

func (d *Distributor) OnConsensusRecord(record *intent.ConsensusRecord) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.recordConsumers {
		consumer(record)
	}
}

func (d *Distributor) OnReverification(id intent.ID, target common.Address, newToken common.Hash) {
	d.lock.RLock()
	defer d.lock.RUnlock()
	for _, consumer := range d.reverificationConsumers {
		consumer(id, target, newToken)
	}
}
