package network

import (
	"context"

	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// Service is the blockchain interface the sale and payout cores consume.
// Implementations must honor context cancellation and apply their own
// request timeouts; the core never blocks indefinitely on the network.
type Service interface {
	// ListUnspent returns all unspent outputs for the given address,
	// normalized from the indexer's raw format.
	ListUnspent(ctx context.Context, address string) ([]utxo.UTXO, error)

	// GetOutput returns one transaction output by txid and index, spent or
	// not. Used to resolve the seller's ordinal outpoint.
	GetOutput(ctx context.Context, txid string, vout uint32) (*utxo.UTXO, error)

	// BroadcastTx submits a raw transaction hex to the relay endpoint and
	// returns the txid. Broadcasting is idempotent and retryable.
	BroadcastTx(ctx context.Context, rawTxHex string) (string, error)

	// GetTxStatus returns the confirmation status of a transaction.
	GetTxStatus(ctx context.Context, txid string) (*TxStatus, error)
}

// TxStatus represents the confirmation status of a transaction.
type TxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHash   string `json:"block_hash"`
	BlockHeight uint64 `json:"block_height"`
}
