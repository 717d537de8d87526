package purchase

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/ordmarketorg/libordmarket-go/fee"
	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// ProvisionResult is a padding-provisioning transaction template. It must be
// signed and broadcast by the caller, and the purchase retried only after
// the split outputs have propagated; the provisioner never assumes they are
// immediately spendable.
type ProvisionResult struct {
	Packet *psbt.Packet

	Source      utxo.UTXO
	OutputValue uint64
	OutputCount int
	Change      uint64
	Fee         uint64
}

// B64 returns the provisioning packet in base64 PSBT encoding.
func (p *ProvisionResult) B64() (string, error) {
	return p.Packet.B64Encode()
}

// ProvisionPadding splits a source UTXO into count fixed-value padding
// outputs plus change, all paying destAddr. Fails with ErrInsufficientValue
// when the source cannot fund the outputs, the fee, and an above-dust
// change.
func ProvisionPadding(source utxo.UTXO, destAddr string, count int, value uint64,
	feeRate, dustLimit uint64, params *chaincfg.Params) (*ProvisionResult, error) {

	if count <= 0 || value < dustLimit {
		return nil, fmt.Errorf("%w: %d outputs of %d sat", ErrInsufficientValue, count, value)
	}
	if len(source.PkScript) == 0 {
		return nil, fmt.Errorf("%w: source utxo missing locking script", ErrInsufficientValue)
	}
	destScript, err := scriptForAddress(destAddr, params)
	if err != nil {
		return nil, err
	}

	destType := utxo.Classify(destScript)
	outTypes := make([]utxo.ScriptType, count+1) // padding outputs + change
	for i := range outTypes {
		outTypes[i] = destType
	}
	estFee := fee.Estimate([]utxo.ScriptType{utxo.Classify(source.PkScript)}, outTypes, feeRate)

	need := uint64(count)*value + estFee
	if source.Value < need+dustLimit {
		return nil, fmt.Errorf("%w: source %d sat cannot fund %d sat plus change",
			ErrInsufficientValue, source.Value, need)
	}
	change := source.Value - need

	op, err := source.OutPoint()
	if err != nil {
		return nil, err
	}
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(op, nil, nil))
	for i := 0; i < count; i++ {
		tx.AddTxOut(wire.NewTxOut(int64(value), destScript))
	}
	tx.AddTxOut(wire.NewTxOut(int64(change), destScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("purchase: build provisioning packet: %w", err)
	}
	packet.Inputs[0].WitnessUtxo = &wire.TxOut{
		Value:    int64(source.Value),
		PkScript: source.PkScript,
	}

	return &ProvisionResult{
		Packet:      packet,
		Source:      source,
		OutputValue: value,
		OutputCount: count,
		Change:      change,
		Fee:         estFee,
	}, nil
}
