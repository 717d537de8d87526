package payout

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/ordmarketorg/libordmarket-go/config"
	"github.com/ordmarketorg/libordmarket-go/fee"
	"github.com/ordmarketorg/libordmarket-go/network"
)

// Engine runs a full payout round: snapshot, distribution, transaction
// build, and optionally sign-and-broadcast.
type Engine struct {
	Snapshot *SnapshotClient
	Chain    network.Service
	Oracle   *fee.Oracle
	Cfg      config.Config
}

// RunParams describes one payout round.
type RunParams struct {
	CollectionID string
	TotalSupply  uint64
	PoolSats     uint64

	// FundingAddress holds the pool; ChangeAddress receives the remainder.
	FundingAddress string
	ChangeAddress  string

	Policy Policy

	// Key signs and broadcasts the payout when set. When nil the engine
	// stops at a reviewable draft.
	Key *btcec.PrivateKey
}

// RunResult is the outcome of a payout round. TxID is set only when the
// round was signed and broadcast.
type RunResult struct {
	Distribution *Distribution `json:"distribution"`
	Build        *BuildResult  `json:"-"`
	PSBT         string        `json:"psbt"`
	FeeRate      uint64        `json:"fee_rate"`
	TxID         string        `json:"txid,omitempty"`
}

// Run executes a payout round.
func (e *Engine) Run(ctx context.Context, p RunParams) (*RunResult, error) {
	holders, err := e.Snapshot.Holders(ctx, p.CollectionID)
	if err != nil {
		return nil, err
	}
	dist, err := Distribute(holders, p.TotalSupply, p.PoolSats, e.Cfg.DustLimit)
	if err != nil {
		return nil, err
	}

	funding, err := e.Chain.ListUnspent(ctx, p.FundingAddress)
	if err != nil {
		return nil, err
	}
	feeRate := e.Oracle.Recommended(ctx)

	build, err := BuildPayoutTx(dist, funding, p.ChangeAddress, p.Policy,
		feeRate, e.Cfg.DustLimit, e.Cfg.Params())
	if err != nil {
		return nil, err
	}
	b64, err := build.B64()
	if err != nil {
		return nil, fmt.Errorf("payout: encode draft: %w", err)
	}

	res := &RunResult{
		Distribution: dist,
		Build:        build,
		PSBT:         b64,
		FeeRate:      feeRate,
	}
	if p.Key == nil {
		return res, nil
	}

	signed, err := Sign(build, p.Key)
	if err != nil {
		return nil, err
	}
	rawHex, err := SerializeHex(signed)
	if err != nil {
		return nil, err
	}
	txid, err := e.Chain.BroadcastTx(ctx, rawHex)
	if err != nil {
		return nil, err
	}
	res.TxID = txid
	return res, nil
}
