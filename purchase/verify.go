package purchase

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"

	"github.com/ordmarketorg/libordmarket-go/listing"
	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// Totals summarizes an assembled draft for the verification report.
type Totals struct {
	InputCount  int    `json:"input_count"`
	OutputCount int    `json:"output_count"`
	TotalIn     uint64 `json:"total_in"`
	TotalOut    uint64 `json:"total_out"`
	Fee         uint64 `json:"fee"`
}

// Report is the structural verifier's output. Errors block the draft from
// being returned; warnings are informational.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Totals   Totals   `json:"totals"`
}

func (r *Report) errf(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Expected carries the canonical values the verifier re-derives the
// transaction graph from, independently of the assembler's own bookkeeping.
type Expected struct {
	Template  *SellerTemplate
	Listing   *listing.Listing
	Selection *utxo.Selection

	OrdinalAddress string
	ChangeAddress  string

	Params    *chaincfg.Params
	DustLimit uint64
}

// Verify independently recomputes the expected input/output graph of a
// purchase draft and diffs it against the packet's actual contents. Every
// draft must pass through this before being returned for signing.
func Verify(d *Draft, exp Expected) *Report {
	rep := &Report{}
	tx := d.Packet.UnsignedTx

	ordinalScript, err := scriptForAddress(exp.OrdinalAddress, exp.Params)
	if err != nil {
		rep.errf("ordinal address: %v", err)
	}
	changeScript, err := scriptForAddress(exp.ChangeAddress, exp.Params)
	if err != nil {
		rep.errf("change address: %v", err)
	}
	platformScript, err := scriptForAddress(exp.Listing.PlatformFeeWallet, exp.Params)
	if err != nil {
		rep.errf("platform address: %v", err)
	}
	if len(rep.Errors) > 0 {
		return rep
	}

	// --- Input graph ---

	wantInputs := RequiredPaddingInputs + 1 + len(exp.Selection.Payment)
	if got := len(tx.TxIn); got != wantInputs {
		rep.errf("input count: got %d, want %d", got, wantInputs)
	}

	for i, u := range exp.Selection.Padding {
		if i >= len(tx.TxIn) {
			break
		}
		op, err := u.OutPoint()
		if err != nil {
			rep.errf("padding utxo %s: %v", u.Key(), err)
			continue
		}
		if tx.TxIn[i].PreviousOutPoint != *op {
			rep.errf("input %d: got %v, want padding %v", i, tx.TxIn[i].PreviousOutPoint, *op)
		}
	}

	if len(tx.TxIn) > OrdinalInputIndex {
		if tx.TxIn[OrdinalInputIndex].PreviousOutPoint != exp.Template.OrdinalOutPoint {
			rep.errf("input %d: got %v, want ordinal %v", OrdinalInputIndex,
				tx.TxIn[OrdinalInputIndex].PreviousOutPoint, exp.Template.OrdinalOutPoint)
		}
		verifySellerInput(rep, d, exp)
	}

	for i, u := range exp.Selection.Payment {
		idx := OrdinalInputIndex + 1 + i
		if idx >= len(tx.TxIn) {
			break
		}
		op, err := u.OutPoint()
		if err != nil {
			rep.errf("payment utxo %s: %v", u.Key(), err)
			continue
		}
		if tx.TxIn[idx].PreviousOutPoint != *op {
			rep.errf("input %d: got %v, want payment %v", idx, tx.TxIn[idx].PreviousOutPoint, *op)
		}
	}

	// --- Output graph ---

	wantOutputs := 4
	if d.HasChange {
		wantOutputs = 5
	}
	if got := len(tx.TxOut); got != wantOutputs {
		rep.errf("output count: got %d, want %d", got, wantOutputs)
	}

	checkOutput := func(idx int, value uint64, script []byte, label string) {
		if idx >= len(tx.TxOut) {
			return
		}
		out := tx.TxOut[idx]
		if uint64(out.Value) != value {
			rep.errf("output %d (%s): got %d sat, want %d sat", idx, label, out.Value, value)
		}
		if !bytes.Equal(out.PkScript, script) {
			rep.errf("output %d (%s): locking script mismatch", idx, label)
		}
	}

	checkOutput(OutPaddingReturn, exp.Selection.PaddingTotal, changeScript, "padding return")
	checkOutput(OutOrdinal, exp.Template.OrdinalValue, ordinalScript, "ordinal")
	checkOutput(OutSellerPayment, exp.Listing.PriceSats, exp.Template.SellerOutput.PkScript, "seller payment")
	checkOutput(OutPlatformFee, exp.Listing.PlatformFeeSats, exp.Template.PlatformOutput.PkScript, "platform fee")
	if d.HasChange {
		checkOutput(OutBuyerChange, d.Change, changeScript, "buyer change")
		if d.Change <= exp.DustLimit {
			rep.errf("output %d (buyer change): %d sat is dust", OutBuyerChange, d.Change)
		}
	}

	// The platform output the seller signed must actually pay the platform.
	if !bytes.Equal(exp.Template.PlatformOutput.PkScript, platformScript) {
		rep.errf("platform fee output does not pay the listing's platform wallet")
	}

	// --- Conservation ---

	var totalIn, totalOut uint64
	totalIn = exp.Selection.PaddingTotal + exp.Template.OrdinalValue + exp.Selection.PaymentTotal
	for _, out := range tx.TxOut {
		totalOut += uint64(out.Value)
	}
	if totalIn != totalOut+d.Fee {
		rep.errf("conservation: inputs %d != outputs %d + fee %d", totalIn, totalOut, d.Fee)
	}

	// --- Warnings ---

	if d.FoldedDust > 0 {
		rep.warnf("dust change of %d sat folded into fee", d.FoldedDust)
	}
	if exp.Listing.PriceSats > 0 && d.Fee*4 > exp.Listing.PriceSats {
		rep.warnf("fee %d sat exceeds 25%% of sale price", d.Fee)
	}

	rep.Totals = Totals{
		InputCount:  len(tx.TxIn),
		OutputCount: len(tx.TxOut),
		TotalIn:     totalIn,
		TotalOut:    totalOut,
		Fee:         d.Fee,
	}
	rep.Valid = len(rep.Errors) == 0
	return rep
}

// verifySellerInput checks field-by-field that the seller's signature
// material survived re-homing to the ordinal input index unmodified.
func verifySellerInput(rep *Report, d *Draft, exp Expected) {
	got := d.Packet.Inputs[OrdinalInputIndex]
	want := exp.Template.Input

	if got.WitnessUtxo == nil || want.WitnessUtxo == nil {
		if got.WitnessUtxo != want.WitnessUtxo {
			rep.errf("seller input: witness utxo presence mismatch")
		}
	} else if got.WitnessUtxo.Value != want.WitnessUtxo.Value ||
		!bytes.Equal(got.WitnessUtxo.PkScript, want.WitnessUtxo.PkScript) {
		rep.errf("seller input: witness utxo altered")
	}

	if got.SighashType != want.SighashType {
		rep.errf("seller input: sighash type altered")
	}
	if !bytes.Equal(got.TaprootKeySpendSig, want.TaprootKeySpendSig) {
		rep.errf("seller input: taproot key spend signature altered")
	}
	if !bytes.Equal(got.TaprootInternalKey, want.TaprootInternalKey) {
		rep.errf("seller input: taproot internal key altered")
	}
	if !bytes.Equal(got.TaprootMerkleRoot, want.TaprootMerkleRoot) {
		rep.errf("seller input: taproot merkle root altered")
	}
	if !bytes.Equal(got.FinalScriptSig, want.FinalScriptSig) {
		rep.errf("seller input: final scriptSig altered")
	}
	if !bytes.Equal(got.FinalScriptWitness, want.FinalScriptWitness) {
		rep.errf("seller input: final witness altered")
	}
	if len(got.PartialSigs) != len(want.PartialSigs) {
		rep.errf("seller input: partial signature count altered")
	} else {
		for i := range want.PartialSigs {
			if !bytes.Equal(got.PartialSigs[i].Signature, want.PartialSigs[i].Signature) ||
				!bytes.Equal(got.PartialSigs[i].PubKey, want.PartialSigs[i].PubKey) {
				rep.errf("seller input: partial signature %d altered", i)
			}
		}
	}
	if len(got.TaprootScriptSpendSig) != len(want.TaprootScriptSpendSig) {
		rep.errf("seller input: taproot script spend signature count altered")
	}
	if len(got.TaprootLeafScript) != len(want.TaprootLeafScript) {
		rep.errf("seller input: taproot leaf script count altered")
	}
}
