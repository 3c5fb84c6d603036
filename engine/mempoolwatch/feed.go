// Package mempoolwatch observes the public mempool and raises threat events
// for pending transactions that compete with intents under verification.
package mempoolwatch

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PendingTx is the detector's view of one transaction observed in the
// mempool.
type PendingTx struct {
	Hash     common.Hash
	To       common.Address
	GasPrice *big.Int
	Payload  []byte
	Seen     time.Time
}

// Selector returns the leading 4 bytes of the transaction calldata, or nil
// for payloads shorter than 4 bytes.
func (tx *PendingTx) Selector() []byte {
	if len(tx.Payload) < 4 {
		return nil
	}
	return tx.Payload[:4]
}

// Feed is a subscription to a stream of pending transactions. The returned
// channel is closed when the subscription fails or ctx is cancelled; the
// detector then re-subscribes with backoff.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan PendingTx, error)
}
