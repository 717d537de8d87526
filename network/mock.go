package network

import (
	"context"

	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// MockService is a test double for Service. All function fields must be set
// before the corresponding method is called.
type MockService struct {
	ListUnspentFn func(ctx context.Context, address string) ([]utxo.UTXO, error)
	GetOutputFn   func(ctx context.Context, txid string, vout uint32) (*utxo.UTXO, error)
	BroadcastTxFn func(ctx context.Context, rawTxHex string) (string, error)
	GetTxStatusFn func(ctx context.Context, txid string) (*TxStatus, error)
}

func (m *MockService) ListUnspent(ctx context.Context, address string) ([]utxo.UTXO, error) {
	return m.ListUnspentFn(ctx, address)
}
func (m *MockService) GetOutput(ctx context.Context, txid string, vout uint32) (*utxo.UTXO, error) {
	return m.GetOutputFn(ctx, txid, vout)
}
func (m *MockService) BroadcastTx(ctx context.Context, rawTxHex string) (string, error) {
	return m.BroadcastTxFn(ctx, rawTxHex)
}
func (m *MockService) GetTxStatus(ctx context.Context, txid string) (*TxStatus, error) {
	return m.GetTxStatusFn(ctx, txid)
}
