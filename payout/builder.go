package payout

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/ordmarketorg/libordmarket-go/fee"
	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// Policy decides what happens to holders whose amount is below the dust
// limit. Either way they cannot become transaction outputs; the policy is
// about how the withheld satoshis are accounted for.
type Policy int

const (
	// CarryForward withholds sub-dust amounts and reports them as owed to
	// the next payout round.
	CarryForward Policy = iota

	// Exclude withholds sub-dust amounts and drops the claim.
	Exclude
)

func (p Policy) String() string {
	if p == Exclude {
		return "exclude"
	}
	return "carry-forward"
}

// BuildResult is an assembled payout transaction plus its accounting. The
// withheld amounts are surfaced explicitly so the policy applied to sub-dust
// holders is visible to the caller.
type BuildResult struct {
	Packet *psbt.Packet

	// Funding holds the selected wallet UTXOs, in input order.
	Funding []utxo.UTXO

	PaidTotal   uint64
	OutputCount int
	Fee         uint64
	Change      uint64
	HasChange   bool

	// Policy and the sub-dust entries it was applied to. Carried is nil
	// under Exclude; WithheldTotal is reported either way.
	Policy        Policy
	Carried       []Entry
	WithheldTotal uint64
}

// B64 returns the payout packet in base64 PSBT encoding.
func (r *BuildResult) B64() (string, error) {
	return r.Packet.B64Encode()
}

// BuildPayoutTx turns a distribution into a transaction paying one output
// per at-or-above-dust holder, funded greedily from the wallet UTXOs, with
// change back to changeAddr.
func BuildPayoutTx(dist *Distribution, funding []utxo.UTXO, changeAddr string,
	policy Policy, feeRate, dustLimit uint64, params *chaincfg.Params) (*BuildResult, error) {

	changeScript, err := payScript(changeAddr, params)
	if err != nil {
		return nil, err
	}

	var payable []Entry
	var carried []Entry
	var paidTotal, withheld uint64
	for _, e := range dist.Entries {
		if e.AmountSats < dustLimit {
			withheld += e.AmountSats
			carried = append(carried, e)
			continue
		}
		payable = append(payable, e)
		paidTotal += e.AmountSats
	}
	if len(payable) == 0 {
		return nil, fmt.Errorf("%w: pool %d sat over %d holders", ErrNothingPayable,
			dist.Pool, len(dist.Entries))
	}

	outScripts := make([][]byte, len(payable))
	outTypes := make([]utxo.ScriptType, 0, len(payable)+1)
	for i, e := range payable {
		script, err := payScript(e.PayTo(), params)
		if err != nil {
			return nil, err
		}
		outScripts[i] = script
		outTypes = append(outTypes, utxo.Classify(script))
	}
	outTypes = append(outTypes, utxo.Classify(changeScript))

	selected, totalIn, netFee, change, hasChange, err :=
		selectFunding(funding, paidTotal, outTypes, feeRate, dustLimit)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	for _, u := range selected {
		op, err := u.OutPoint()
		if err != nil {
			return nil, err
		}
		tx.AddTxIn(wire.NewTxIn(op, nil, nil))
	}
	for i, e := range payable {
		tx.AddTxOut(wire.NewTxOut(int64(e.AmountSats), outScripts[i]))
	}
	if hasChange {
		tx.AddTxOut(wire.NewTxOut(int64(change), changeScript))
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("payout: build packet: %w", err)
	}
	for i, u := range selected {
		packet.Inputs[i].WitnessUtxo = &wire.TxOut{Value: int64(u.Value), PkScript: u.PkScript}
		packet.Inputs[i].SighashType = txscript.SigHashAll
	}

	if totalIn != paidTotal+change+netFee {
		return nil, fmt.Errorf("payout: conservation: in %d != paid %d + change %d + fee %d",
			totalIn, paidTotal, change, netFee)
	}

	res := &BuildResult{
		Packet:        packet,
		Funding:       selected,
		PaidTotal:     paidTotal,
		OutputCount:   len(payable),
		Fee:           netFee,
		Change:        change,
		HasChange:     hasChange,
		Policy:        policy,
		WithheldTotal: withheld,
	}
	if policy == CarryForward {
		res.Carried = carried
	}
	return res, nil
}

// selectFunding picks wallet UTXOs largest-first until they cover the payout
// plus the fee. The fee depends on the input count, so each added input
// re-estimates; change below the dust limit is folded into the fee.
func selectFunding(available []utxo.UTXO, paidTotal uint64, outTypes []utxo.ScriptType,
	feeRate, dustLimit uint64) (selected []utxo.UTXO, totalIn, netFee, change uint64, hasChange bool, err error) {

	sorted := make([]utxo.UTXO, len(available))
	copy(sorted, available)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].Key() < sorted[j].Key()
	})

	var inTypes []utxo.ScriptType
	for _, u := range sorted {
		selected = append(selected, u)
		totalIn += u.Value
		inTypes = append(inTypes, utxo.Classify(u.PkScript))

		feeWithChange := fee.Estimate(inTypes, outTypes, feeRate)
		remainder := int64(totalIn) - int64(paidTotal) - int64(feeWithChange)
		if remainder > int64(dustLimit) {
			return selected, totalIn, feeWithChange, uint64(remainder), true, nil
		}

		feeNoChange := fee.Estimate(inTypes, outTypes[:len(outTypes)-1], feeRate)
		if totalIn >= paidTotal+feeNoChange {
			folded := totalIn - paidTotal - feeNoChange
			return selected, totalIn, feeNoChange + folded, 0, false, nil
		}
	}

	feeNoChange := fee.Estimate(inTypes, outTypes[:len(outTypes)-1], feeRate)
	need := paidTotal + feeNoChange
	return nil, 0, 0, 0, false, fmt.Errorf("%w: need %d sat, wallet holds %d sat",
		ErrInsufficientFunding, need, totalIn)
}

// payScript decodes an address for the network and returns its locking
// script.
func payScript(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, address, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: script for %q: %w", ErrInvalidAddress, address, err)
	}
	return script, nil
}
