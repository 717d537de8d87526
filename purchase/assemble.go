package purchase

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"

	"github.com/ordmarketorg/libordmarket-go/fee"
	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// Protocol layout contract. Bitcoin assigns satoshis to outputs first-in-
// first-out across all inputs and outputs combined, so two small inputs
// ahead of the seller's ordinal input push the inscribed satoshi past the
// padding-return output (index 0) into the buyer's ordinal output (index 1).
// The seller's SINGLE|ANYONECANPAY signature assumed exactly this layout;
// any deviation invalidates it.
const (
	// RequiredPaddingInputs is the number of padding inputs every purchase
	// transaction carries, at indices 0 and 1.
	RequiredPaddingInputs = 2

	// OrdinalInputIndex is the index the seller's signed input must occupy.
	OrdinalInputIndex = 2

	// Output indices of the purchase transaction.
	OutPaddingReturn = 0
	OutOrdinal       = 1
	OutSellerPayment = 2
	OutPlatformFee   = 3
	OutBuyerChange   = 4 // present only when change clears the dust limit
)

// assembleStage tracks the assembler's input-ordering state machine.
type assembleStage int

const (
	stagePadding  assembleStage = iota // accepting padding inputs only
	stagePayments                      // padding closed, accepting payment inputs
)

// Assembler incrementally builds a purchase transaction around a seller's
// signed template. Input ordering is enforced by construction: padding
// inputs must be added first and exactly RequiredPaddingInputs times, after
// which the stage advances and further padding additions are refused.
type Assembler struct {
	tpl    *SellerTemplate
	params *chaincfg.Params
	dust   uint64

	ordinalScript []byte // buyer's ordinal-receiving output
	changeScript  []byte // buyer's padding-return and change output

	stage    assembleStage
	padding  []utxo.UTXO
	payments []utxo.UTXO
}

// Draft is an assembled purchase transaction: unsigned for the buyer's
// inputs, carrying the seller's original signature on the ordinal input.
// Invariant: TotalIn == TotalOut + Fee.
type Draft struct {
	Packet *psbt.Packet

	TotalIn      uint64
	TotalOut     uint64
	Fee          uint64
	PaddingTotal uint64
	PaymentTotal uint64

	// Change is the buyer-change output value; HasChange is false when the
	// remainder was below the dust limit and folded into Fee.
	Change     uint64
	HasChange  bool
	FoldedDust uint64
}

// B64 returns the draft packet in base64 PSBT encoding.
func (d *Draft) B64() (string, error) {
	return d.Packet.B64Encode()
}

// NewAssembler creates an assembler for the given template and buyer
// addresses. The ordinal address receives the inscribed satoshi; the change
// address receives the padding return and any payment change.
func NewAssembler(tpl *SellerTemplate, ordinalAddr, changeAddr string,
	params *chaincfg.Params, dustLimit uint64) (*Assembler, error) {

	if tpl == nil {
		return nil, fmt.Errorf("%w: nil template", ErrInvalidTemplate)
	}
	ordinalScript, err := scriptForAddress(ordinalAddr, params)
	if err != nil {
		return nil, err
	}
	changeScript, err := scriptForAddress(changeAddr, params)
	if err != nil {
		return nil, err
	}
	return &Assembler{
		tpl:           tpl,
		params:        params,
		dust:          dustLimit,
		ordinalScript: ordinalScript,
		changeScript:  changeScript,
	}, nil
}

// AddPaddingInput appends one padding input. Exactly RequiredPaddingInputs
// calls are accepted; the call after the last refuses with
// ErrStructuralIndex rather than silently shifting the ordinal index.
func (a *Assembler) AddPaddingInput(u utxo.UTXO) error {
	if a.stage != stagePadding {
		return fmt.Errorf("%w: padding inputs closed after %d",
			ErrStructuralIndex, RequiredPaddingInputs)
	}
	if len(u.PkScript) == 0 {
		return fmt.Errorf("%w: padding utxo %s missing locking script", ErrStructuralIndex, u.Key())
	}
	a.padding = append(a.padding, u)
	if len(a.padding) == RequiredPaddingInputs {
		a.stage = stagePayments
	}
	return nil
}

// AddPaymentInput appends one buyer payment input. Payment inputs are only
// accepted once all padding inputs are in place, so they always land at
// index OrdinalInputIndex+1 and beyond.
func (a *Assembler) AddPaymentInput(u utxo.UTXO) error {
	if a.stage != stagePayments {
		return fmt.Errorf("%w: %d padding inputs required before payment inputs",
			ErrStructuralIndex, RequiredPaddingInputs)
	}
	if len(u.PkScript) == 0 {
		return fmt.Errorf("%w: payment utxo %s missing locking script", ErrStructuralIndex, u.Key())
	}
	a.payments = append(a.payments, u)
	return nil
}

// Build assembles the draft at the given fee rate.
//
// The fee depends on whether a change output exists, which depends on the
// fee. Resolved in two passes: estimate with change, and if the resulting
// change would be dust, re-estimate without it and fold the remainder into
// the fee.
func (a *Assembler) Build(feeRate uint64) (*Draft, error) {
	if len(a.padding) != RequiredPaddingInputs {
		return nil, fmt.Errorf("%w: have %d padding inputs, need %d",
			ErrStructuralIndex, len(a.padding), RequiredPaddingInputs)
	}
	if len(a.payments) == 0 {
		return nil, fmt.Errorf("%w: no payment inputs: short %d sat",
			ErrInsufficientBalance, a.obligation())
	}

	var paddingTotal, paymentTotal uint64
	inTypes := make([]utxo.ScriptType, 0, len(a.padding)+1+len(a.payments))
	for _, u := range a.padding {
		paddingTotal += u.Value
		inTypes = append(inTypes, utxo.Classify(u.PkScript))
	}
	inTypes = append(inTypes, utxo.Classify(a.tpl.Input.WitnessUtxo.PkScript))
	for _, u := range a.payments {
		paymentTotal += u.Value
		inTypes = append(inTypes, utxo.Classify(u.PkScript))
	}

	outTypes := []utxo.ScriptType{
		utxo.Classify(a.changeScript),
		utxo.Classify(a.ordinalScript),
		utxo.Classify(a.tpl.SellerOutput.PkScript),
		utxo.Classify(a.tpl.PlatformOutput.PkScript),
	}

	obligation := a.obligation()

	// Pass 1: assume a change output exists.
	feeWithChange := fee.Estimate(inTypes, append(outTypes, utxo.Classify(a.changeScript)), feeRate)

	var (
		netFee     uint64
		change     uint64
		hasChange  bool
		foldedDust uint64
	)
	remainder := int64(paymentTotal) - int64(obligation) - int64(feeWithChange)
	if remainder > int64(a.dust) {
		netFee = feeWithChange
		change = uint64(remainder)
		hasChange = true
	} else {
		// Pass 2: no change output.
		feeNoChange := fee.Estimate(inTypes, outTypes, feeRate)
		if paymentTotal < obligation+feeNoChange {
			return nil, fmt.Errorf("%w: need %d sat, have %d sat (short %d)",
				ErrInsufficientBalance, obligation+feeNoChange, paymentTotal,
				obligation+feeNoChange-paymentTotal)
		}
		folded := int64(paymentTotal) - int64(obligation) - int64(feeNoChange)
		if folded < 0 {
			return nil, fmt.Errorf("%w: remainder %d", ErrNegativeChange, folded)
		}
		foldedDust = uint64(folded)
		netFee = feeNoChange + foldedDust
	}

	tx := wire.NewMsgTx(2)
	for _, u := range a.padding {
		op, err := u.OutPoint()
		if err != nil {
			return nil, err
		}
		tx.AddTxIn(wire.NewTxIn(op, nil, nil))
	}
	sellerIn := wire.NewTxIn(&a.tpl.OrdinalOutPoint, nil, nil)
	sellerIn.Sequence = a.tpl.Sequence
	tx.AddTxIn(sellerIn)
	for _, u := range a.payments {
		op, err := u.OutPoint()
		if err != nil {
			return nil, err
		}
		tx.AddTxIn(wire.NewTxIn(op, nil, nil))
	}

	tx.AddTxOut(wire.NewTxOut(int64(paddingTotal), a.changeScript))
	tx.AddTxOut(wire.NewTxOut(int64(a.tpl.OrdinalValue), a.ordinalScript))
	tx.AddTxOut(wire.NewTxOut(a.tpl.SellerOutput.Value, cloneBytes(a.tpl.SellerOutput.PkScript)))
	tx.AddTxOut(wire.NewTxOut(a.tpl.PlatformOutput.Value, cloneBytes(a.tpl.PlatformOutput.PkScript)))
	if hasChange {
		tx.AddTxOut(wire.NewTxOut(int64(change), a.changeScript))
	}

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("purchase: build packet: %w", err)
	}

	for i, u := range a.padding {
		packet.Inputs[i].WitnessUtxo = &wire.TxOut{Value: int64(u.Value), PkScript: u.PkScript}
	}
	// The seller's input is re-homed to its new index with every signature
	// field preserved verbatim.
	packet.Inputs[OrdinalInputIndex] = a.tpl.Input
	for i, u := range a.payments {
		packet.Inputs[OrdinalInputIndex+1+i].WitnessUtxo = &wire.TxOut{
			Value:    int64(u.Value),
			PkScript: u.PkScript,
		}
	}

	totalIn := paddingTotal + a.tpl.OrdinalValue + paymentTotal
	totalOut := paddingTotal + a.tpl.OrdinalValue + obligation + change
	if totalIn != totalOut+netFee {
		return nil, fmt.Errorf("%w: in %d != out %d + fee %d",
			ErrNegativeChange, totalIn, totalOut, netFee)
	}

	return &Draft{
		Packet:       packet,
		TotalIn:      totalIn,
		TotalOut:     totalOut,
		Fee:          netFee,
		PaddingTotal: paddingTotal,
		PaymentTotal: paymentTotal,
		Change:       change,
		HasChange:    hasChange,
		FoldedDust:   foldedDust,
	}, nil
}

// obligation is what the payment inputs must fund besides the network fee.
func (a *Assembler) obligation() uint64 {
	return uint64(a.tpl.SellerOutput.Value) + uint64(a.tpl.PlatformOutput.Value)
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
