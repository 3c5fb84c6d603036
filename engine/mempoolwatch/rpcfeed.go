package mempoolwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
)

// feedBuffer bounds both the raw subscription channel and the converted
// output channel.
const feedBuffer = 128

// RPCFeed streams pending transactions from a node's full pending
// transaction subscription. Requires a websocket or IPC connection; plain
// HTTP endpoints do not support subscriptions.
type RPCFeed struct {
	client *gethclient.Client
}

var _ Feed = (*RPCFeed)(nil)

// NewRPCFeed wraps an existing geth RPC client.
func NewRPCFeed(client *gethclient.Client) *RPCFeed {
	return &RPCFeed{client: client}
}

// Subscribe opens the pending transaction stream. The returned channel closes
// when the subscription drops or ctx is cancelled.
func (f *RPCFeed) Subscribe(ctx context.Context) (<-chan PendingTx, error) {
	txs := make(chan *types.Transaction, feedBuffer)
	sub, err := f.client.SubscribeFullPendingTransactions(ctx, txs)
	if err != nil {
		return nil, fmt.Errorf("could not subscribe to pending transactions: %w", err)
	}

	out := make(chan PendingTx, feedBuffer)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.Err():
				return
			case tx := <-txs:
				// contract creations have no target and never compete with
				// an intent
				if tx == nil || tx.To() == nil {
					continue
				}
				select {
				case out <- PendingTx{
					Hash:     tx.Hash(),
					To:       *tx.To(),
					GasPrice: tx.GasPrice(),
					Payload:  tx.Data(),
					Seen:     time.Now(),
				}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
