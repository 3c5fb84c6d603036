// Package registry provides the authoritative in-memory store of intents and
// their verification outcomes. The registry is exclusively owned and mutated
// by the verification Core; other components only read from it.
package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"github.com/intentgate/intentgate-go/model/intent"
)

// ErrAlreadyRegistered is returned when adding an intent whose id is already
// present. Intent ids are immutable once assigned; exactly one entry per id.
var ErrAlreadyRegistered = errors.New("intent already registered")

// Archived is the retained view of an intent that has reached a terminal
// state: enough to serve queries until LRU pressure evicts it.
type Archived struct {
	Intent     *intent.Intent
	FinalState intent.State
	Record     *intent.ConsensusRecord // nil if no consensus was ever computed
}

// Registry is a mutex-guarded map of active intents plus an LRU retention
// cache of terminal ones. Terminal intents stay queryable until evicted.
type Registry struct {
	mu          sync.RWMutex
	active      map[intent.ID]*intent.Intent
	targetIndex map[common.Address]uint // refcount of active intents per target
	retired     *lru.Cache              // intent.ID -> *Archived
}

// New creates a registry retaining up to retentionSize terminal intents.
func New(retentionSize int) (*Registry, error) {
	retired, err := lru.New(retentionSize)
	if err != nil {
		return nil, fmt.Errorf("could not create retention cache: %w", err)
	}
	return &Registry{
		active:      make(map[intent.ID]*intent.Intent),
		targetIndex: make(map[common.Address]uint),
		retired:     retired,
	}, nil
}

// Add registers a new active intent. Returns ErrAlreadyRegistered if the id is
// already present in the active set.
func (r *Registry) Add(it *intent.Intent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[it.ID]; ok {
		return ErrAlreadyRegistered
	}
	r.active[it.ID] = it
	r.targetIndex[it.Target]++
	return nil
}

// ByID returns the active intent with the given id.
func (r *Registry) ByID(id intent.ID) (*intent.Intent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	it, ok := r.active[id]
	return it, ok
}

// Retire moves an intent from the active set into the retention cache,
// recording its final state and last consensus record. Returns false if the
// intent was not active.
func (r *Registry) Retire(id intent.ID, final intent.State, record *intent.ConsensusRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.active[id]
	if !ok {
		return false
	}
	delete(r.active, id)
	if r.targetIndex[it.Target] <= 1 {
		delete(r.targetIndex, it.Target)
	} else {
		r.targetIndex[it.Target]--
	}
	r.retired.Add(id, &Archived{Intent: it, FinalState: final, Record: record})
	return true
}

// Archived returns the retained view of a terminal intent, if it has not been
// evicted yet.
func (r *Registry) Archived(id intent.ID) (*Archived, bool) {
	val, ok := r.retired.Get(id)
	if !ok {
		return nil, false
	}
	return val.(*Archived), true
}

// Size returns the number of active intents.
func (r *Registry) Size() uint {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint(len(r.active))
}

// All returns all active intents.
func (r *Registry) All() []*intent.Intent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]*intent.Intent, 0, len(r.active))
	for _, it := range r.active {
		all = append(all, it)
	}
	return all
}

// ContainsTarget reports whether any active intent targets the given contract.
func (r *Registry) ContainsTarget(target common.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.targetIndex[target]
	return ok
}

// ByTarget returns all active intents targeting the given contract.
func (r *Registry) ByTarget(target common.Address) []*intent.Intent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var matches []*intent.Intent
	for _, it := range r.active {
		if it.Target == target {
			matches = append(matches, it)
		}
	}
	return matches
}
