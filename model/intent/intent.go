package intent

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// ID uniquely identifies an Intent within the verification window.
type ID = uuid.UUID

// ZeroID is the nil intent identifier.
var ZeroID = uuid.Nil

// NewID generates a fresh collision-free intent identifier.
func NewID() ID {
	return uuid.New()
}

// Intent is a request to verify a prospective transaction before it is
// broadcast to the chain. An Intent is created by submission, mutated only by
// the verification Core, and removed from the active set once it reaches a
// terminal state.
type Intent struct {
	ID            ID
	Submitter     common.Address
	Target        common.Address
	Payload       []byte
	Value         *big.Int
	CreatedAt     time.Time
	Deadline      time.Time
	SnapshotToken common.Hash // fingerprint of the target's state this verification round is computed against
}

// Window returns the total verification window of the intent.
func (i *Intent) Window() time.Duration {
	return i.Deadline.Sub(i.CreatedAt)
}

// Selector returns the leading 4 bytes of the payload, i.e. the function
// selector for a contract call. Returns nil for payloads shorter than 4 bytes.
func (i *Intent) Selector() []byte {
	if len(i.Payload) < 4 {
		return nil
	}
	return i.Payload[:4]
}
