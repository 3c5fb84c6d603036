package statewatch

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AccountReader is the subset of an execution client used to fingerprint an
// account. Satisfied by ethclient.Client.
type AccountReader interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// EthReader fingerprints a target from its account nonce, balance and code at
// the latest block. Storage-only changes are not captured by this reader;
// targets whose relevant state lives purely in storage need a reader backed
// by state proofs.
type EthReader struct {
	client AccountReader
}

var _ ChainReader = (*EthReader)(nil)

// NewEthReader wraps an execution client.
func NewEthReader(client AccountReader) *EthReader {
	return &EthReader{client: client}
}

// Snapshot reads the account and hashes its observable fields into one token.
func (r *EthReader) Snapshot(ctx context.Context, target common.Address) (common.Hash, error) {
	nonce, err := r.client.NonceAt(ctx, target, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("could not read nonce of %s: %w", target, err)
	}
	balance, err := r.client.BalanceAt(ctx, target, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("could not read balance of %s: %w", target, err)
	}
	code, err := r.client.CodeAt(ctx, target, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("could not read code of %s: %w", target, err)
	}

	var nonceBytes [8]byte
	binary.BigEndian.PutUint64(nonceBytes[:], nonce)
	return crypto.Keccak256Hash(nonceBytes[:], balance.Bytes(), code), nil
}
