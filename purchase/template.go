package purchase

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/ordmarketorg/libordmarket-go/listing"
	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// SellerTemplate is a seller's signed partial transaction, parsed and
// decomposed. The input's signature material and both outputs are preserved
// byte-for-byte: re-deriving any of them would invalidate the seller's
// commitment.
type SellerTemplate struct {
	// Packet is the decoded template. Treated as read-only.
	Packet *psbt.Packet

	// OrdinalOutPoint is the outpoint carrying the inscribed satoshi.
	OrdinalOutPoint wire.OutPoint

	// OrdinalValue is the value of the ordinal UTXO in satoshis.
	OrdinalValue uint64

	// Input is the seller's PSBT input with all signature-relevant fields
	// (witness UTXO, taproot keys and signatures, partial sigs, sighash
	// type, finalized scripts).
	Input psbt.PInput

	// Sequence is the seller input's sequence number.
	Sequence uint32

	// SellerOutput pays the sale price to the seller.
	SellerOutput *wire.TxOut

	// PlatformOutput pays the marketplace fee.
	PlatformOutput *wire.TxOut
}

// NewSellerTemplate builds the unsigned 1-input/2-output packet a seller
// wallet signs to create a listing. The input carries the ordinal UTXO's
// witness data and a SINGLE|ANYONECANPAY sighash hint, committing the seller
// to "my input pays the seller output" while leaving every other input and
// output free for the buyer's assembler.
func NewSellerTemplate(ordinal utxo.UTXO, sellerAddr string, priceSats uint64,
	platformAddr string, platformFeeSats uint64, params *chaincfg.Params) (*psbt.Packet, error) {

	if len(ordinal.PkScript) == 0 {
		return nil, fmt.Errorf("%w: ordinal utxo missing locking script", ErrInvalidTemplate)
	}
	op, err := ordinal.OutPoint()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	sellerScript, err := scriptForAddress(sellerAddr, params)
	if err != nil {
		return nil, err
	}
	platformScript, err := scriptForAddress(platformAddr, params)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(wire.NewTxIn(op, nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(priceSats), sellerScript))
	tx.AddTxOut(wire.NewTxOut(int64(platformFeeSats), platformScript))

	packet, err := psbt.NewFromUnsignedTx(tx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTemplate, err)
	}
	packet.Inputs[0].WitnessUtxo = &wire.TxOut{
		Value:    int64(ordinal.Value),
		PkScript: ordinal.PkScript,
	}
	packet.Inputs[0].SighashType = txscript.SigHashSingle | txscript.SigHashAnyOneCanPay
	return packet, nil
}

// ExtractSellerTemplate decodes a base64 seller template and validates its
// shape: exactly one input with witness data and signature material, exactly
// two outputs (seller payment, platform fee).
func ExtractSellerTemplate(b64 string) (*SellerTemplate, error) {
	packet, err := psbt.NewFromRawBytes(strings.NewReader(b64), true)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrInvalidTemplate, err)
	}

	if n := len(packet.UnsignedTx.TxIn); n != 1 {
		return nil, fmt.Errorf("%w: expected 1 input, got %d", ErrInvalidTemplate, n)
	}
	if n := len(packet.UnsignedTx.TxOut); n != 2 {
		return nil, fmt.Errorf("%w: expected 2 outputs, got %d", ErrInvalidTemplate, n)
	}

	in := packet.Inputs[0]
	if in.WitnessUtxo == nil {
		return nil, fmt.Errorf("%w: input missing witness utxo", ErrInvalidTemplate)
	}
	if !hasSignatureMaterial(in) {
		return nil, fmt.Errorf("%w: input carries no signature material", ErrInvalidTemplate)
	}

	return &SellerTemplate{
		Packet:          packet,
		OrdinalOutPoint: packet.UnsignedTx.TxIn[0].PreviousOutPoint,
		OrdinalValue:    uint64(in.WitnessUtxo.Value),
		Input:           in,
		Sequence:        packet.UnsignedTx.TxIn[0].Sequence,
		SellerOutput:    packet.UnsignedTx.TxOut[0],
		PlatformOutput:  packet.UnsignedTx.TxOut[1],
	}, nil
}

// hasSignatureMaterial reports whether a PSBT input carries any signature
// the seller could have produced, finalized or not.
func hasSignatureMaterial(in psbt.PInput) bool {
	return len(in.TaprootKeySpendSig) > 0 ||
		len(in.TaprootScriptSpendSig) > 0 ||
		len(in.PartialSigs) > 0 ||
		len(in.FinalScriptWitness) > 0 ||
		len(in.FinalScriptSig) > 0
}

// ValidateListing checks the template's preserved output values against the
// listing's recorded terms. A mismatch fails hard with
// ErrSignedTemplateMismatch; the values are never recomputed or corrected.
// Must be called before any network activity in the purchase flow.
func (t *SellerTemplate) ValidateListing(l *listing.Listing) error {
	if got := uint64(t.SellerOutput.Value); got != l.PriceSats {
		return fmt.Errorf("%w: seller output %d sat, listing price %d sat",
			ErrSignedTemplateMismatch, got, l.PriceSats)
	}
	if got := uint64(t.PlatformOutput.Value); got != l.PlatformFeeSats {
		return fmt.Errorf("%w: platform output %d sat, listing fee %d sat",
			ErrSignedTemplateMismatch, got, l.PlatformFeeSats)
	}
	if l.UtxoValue != 0 && t.OrdinalValue != l.UtxoValue {
		return fmt.Errorf("%w: ordinal value %d sat, listing records %d sat",
			ErrSignedTemplateMismatch, t.OrdinalValue, l.UtxoValue)
	}
	return nil
}

// scriptForAddress decodes an address for the given network and returns its
// locking script.
func scriptForAddress(address string, params *chaincfg.Params) ([]byte, error) {
	addr, err := btcutil.DecodeAddress(address, params)
	if err != nil {
		return nil, fmt.Errorf("purchase: decode address %q: %w", address, err)
	}
	script, err := txscript.PayToAddrScript(addr)
	if err != nil {
		return nil, fmt.Errorf("purchase: script for %q: %w", address, err)
	}
	return script, nil
}
