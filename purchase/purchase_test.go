package purchase

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordmarketorg/libordmarket-go/listing"
	"github.com/ordmarketorg/libordmarket-go/utxo"
)

var regtest = &chaincfg.RegressionNetParams

// --- fixture helpers ---

func txid(seed byte) string {
	return fmt.Sprintf("%x", bytes.Repeat([]byte{seed}, 32))
}

func p2wpkhAddr(t *testing.T, seed byte) string {
	t.Helper()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(bytes.Repeat([]byte{seed}, 20), regtest)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func p2trAddr(t *testing.T, seed byte) string {
	t.Helper()
	addr, err := btcutil.NewAddressTaproot(bytes.Repeat([]byte{seed}, 32), regtest)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func scriptFor(t *testing.T, address string) []byte {
	t.Helper()
	addr, err := btcutil.DecodeAddress(address, regtest)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}

func walletUTXO(t *testing.T, seed byte, vout uint32, value uint64, address string) utxo.UTXO {
	t.Helper()
	return utxo.UTXO{
		TxID:     txid(seed),
		Vout:     vout,
		Value:    value,
		Address:  address,
		PkScript: scriptFor(t, address),
	}
}

// signedTemplateB64 fabricates a seller template carrying taproot key-spend
// signature material. The assembler and verifier only copy and compare the
// bytes, so the signature itself can be synthetic.
func signedTemplateB64(t *testing.T, price, platformFee, ordinalValue uint64) string {
	t.Helper()
	ordinal := utxo.UTXO{
		TxID:     txid(0xcc),
		Vout:     0,
		Value:    ordinalValue,
		PkScript: scriptFor(t, p2trAddr(t, 0x11)),
	}
	packet, err := NewSellerTemplate(ordinal, p2wpkhAddr(t, 0x51), price,
		p2wpkhAddr(t, 0x52), platformFee, regtest)
	require.NoError(t, err)

	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x22}, 32))
	packet.Inputs[0].TaprootInternalKey = schnorr.SerializePubKey(priv.PubKey())
	packet.Inputs[0].TaprootKeySpendSig = bytes.Repeat([]byte{0x33}, 64)

	b64, err := packet.B64Encode()
	require.NoError(t, err)
	return b64
}

func testListingFor(t *testing.T, price, platformFee, ordinalValue uint64) *listing.Listing {
	t.Helper()
	return &listing.Listing{
		ID:                "l1",
		InscriptionID:     txid(0xcc) + "i0",
		SellerWallet:      p2wpkhAddr(t, 0x51),
		PriceSats:         price,
		PlatformFeeSats:   platformFee,
		PlatformFeeWallet: p2wpkhAddr(t, 0x52),
		UtxoValue:         ordinalValue,
		PartialPSBT:       signedTemplateB64(t, price, platformFee, ordinalValue),
		Status:            listing.StatusActive,
	}
}

func extractTemplate(t *testing.T, l *listing.Listing) *SellerTemplate {
	t.Helper()
	tpl, err := ExtractSellerTemplate(l.PartialPSBT)
	require.NoError(t, err)
	return tpl
}

// buildScenarioA assembles the canonical purchase: price 100000, platform
// fee 5000, ordinal 546, padding 700+900, one payment input of 150000.
func buildScenarioA(t *testing.T, feeRate uint64) (*Draft, *SellerTemplate, *utxo.Selection, *listing.Listing) {
	t.Helper()
	l := testListingFor(t, 100000, 5000, 546)
	tpl := extractTemplate(t, l)
	require.NoError(t, tpl.ValidateListing(l))

	buyer := p2wpkhAddr(t, 0x61)
	sel := &utxo.Selection{
		Padding: []utxo.UTXO{
			walletUTXO(t, 0xa1, 0, 700, buyer),
			walletUTXO(t, 0xa2, 1, 900, buyer),
		},
		Payment:      []utxo.UTXO{walletUTXO(t, 0xa3, 0, 150000, buyer)},
		PaddingTotal: 1600,
		PaymentTotal: 150000,
	}

	asm, err := NewAssembler(tpl, p2trAddr(t, 0x62), buyer, regtest, 546)
	require.NoError(t, err)
	for _, u := range sel.Padding {
		require.NoError(t, asm.AddPaddingInput(u))
	}
	for _, u := range sel.Payment {
		require.NoError(t, asm.AddPaymentInput(u))
	}
	draft, err := asm.Build(feeRate)
	require.NoError(t, err)
	return draft, tpl, sel, l
}

// --- template tests ---

func TestNewSellerTemplate_Shape(t *testing.T) {
	ordinal := utxo.UTXO{
		TxID: txid(0xcc), Vout: 0, Value: 546,
		PkScript: scriptFor(t, p2trAddr(t, 0x11)),
	}
	packet, err := NewSellerTemplate(ordinal, p2wpkhAddr(t, 0x51), 100000,
		p2wpkhAddr(t, 0x52), 5000, regtest)
	require.NoError(t, err)

	require.Len(t, packet.UnsignedTx.TxIn, 1)
	require.Len(t, packet.UnsignedTx.TxOut, 2)
	assert.Equal(t, int64(100000), packet.UnsignedTx.TxOut[0].Value)
	assert.Equal(t, int64(5000), packet.UnsignedTx.TxOut[1].Value)
	assert.Equal(t, txscript.SigHashSingle|txscript.SigHashAnyOneCanPay, packet.Inputs[0].SighashType)
	require.NotNil(t, packet.Inputs[0].WitnessUtxo)
	assert.Equal(t, int64(546), packet.Inputs[0].WitnessUtxo.Value)
}

func TestExtractSellerTemplate_RoundTrip(t *testing.T) {
	b64 := signedTemplateB64(t, 100000, 5000, 546)
	tpl, err := ExtractSellerTemplate(b64)
	require.NoError(t, err)

	assert.Equal(t, uint64(546), tpl.OrdinalValue)
	assert.Equal(t, int64(100000), tpl.SellerOutput.Value)
	assert.Equal(t, int64(5000), tpl.PlatformOutput.Value)
	assert.Equal(t, bytes.Repeat([]byte{0x33}, 64), tpl.Input.TaprootKeySpendSig)
}

func TestExtractSellerTemplate_Unsigned(t *testing.T) {
	ordinal := utxo.UTXO{
		TxID: txid(0xcc), Vout: 0, Value: 546,
		PkScript: scriptFor(t, p2trAddr(t, 0x11)),
	}
	packet, err := NewSellerTemplate(ordinal, p2wpkhAddr(t, 0x51), 100000,
		p2wpkhAddr(t, 0x52), 5000, regtest)
	require.NoError(t, err)
	b64, err := packet.B64Encode()
	require.NoError(t, err)

	_, err = ExtractSellerTemplate(b64)
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

func TestExtractSellerTemplate_Garbage(t *testing.T) {
	_, err := ExtractSellerTemplate("not a psbt")
	assert.ErrorIs(t, err, ErrInvalidTemplate)
}

// Scenario D: stored template value does not match the listing price. The
// mismatch must fail hard before anything else happens.
func TestValidateListing_PriceMismatch(t *testing.T) {
	l := testListingFor(t, 100000, 5000, 546)
	l.PriceSats = 105000

	tpl := extractTemplate(t, l)
	err := tpl.ValidateListing(l)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSignedTemplateMismatch)
	assert.Contains(t, err.Error(), "100000")
	assert.Contains(t, err.Error(), "105000")
}

func TestValidateListing_FeeMismatch(t *testing.T) {
	l := testListingFor(t, 100000, 5000, 546)
	l.PlatformFeeSats = 9000
	assert.ErrorIs(t, extractTemplate(t, l).ValidateListing(l), ErrSignedTemplateMismatch)
}

// --- assembler tests ---

// Scenario A: outputs [1600, 546, 100000, 5000, change] with
// change = 150000 - 100000 - 5000 - fee.
func TestBuild_ScenarioA(t *testing.T) {
	const feeRate = 2
	draft, _, _, _ := buildScenarioA(t, feeRate)
	tx := draft.Packet.UnsignedTx

	require.Len(t, tx.TxIn, 4)
	require.Len(t, tx.TxOut, 5)

	assert.Equal(t, int64(1600), tx.TxOut[OutPaddingReturn].Value)
	assert.Equal(t, int64(546), tx.TxOut[OutOrdinal].Value)
	assert.Equal(t, int64(100000), tx.TxOut[OutSellerPayment].Value)
	assert.Equal(t, int64(5000), tx.TxOut[OutPlatformFee].Value)

	wantChange := int64(150000 - 100000 - 5000 - draft.Fee)
	assert.Equal(t, wantChange, tx.TxOut[OutBuyerChange].Value)
	assert.True(t, draft.HasChange)

	// Conservation holds exactly.
	assert.Equal(t, draft.TotalIn, draft.TotalOut+draft.Fee)
	assert.Equal(t, uint64(1600+546+150000), draft.TotalIn)
}

func TestBuild_OrdinalInputAtIndexTwo(t *testing.T) {
	draft, tpl, _, _ := buildScenarioA(t, 2)
	assert.Equal(t, tpl.OrdinalOutPoint,
		draft.Packet.UnsignedTx.TxIn[OrdinalInputIndex].PreviousOutPoint)
}

func TestBuild_SignaturePreservation(t *testing.T) {
	draft, tpl, _, _ := buildScenarioA(t, 2)
	got := draft.Packet.Inputs[OrdinalInputIndex]

	assert.Equal(t, tpl.Input.TaprootKeySpendSig, got.TaprootKeySpendSig)
	assert.Equal(t, tpl.Input.TaprootInternalKey, got.TaprootInternalKey)
	assert.Equal(t, tpl.Input.SighashType, got.SighashType)
	require.NotNil(t, got.WitnessUtxo)
	assert.Equal(t, tpl.Input.WitnessUtxo.Value, got.WitnessUtxo.Value)
	assert.Equal(t, tpl.Input.WitnessUtxo.PkScript, got.WitnessUtxo.PkScript)
}

func TestBuild_Deterministic(t *testing.T) {
	a, _, _, _ := buildScenarioA(t, 2)
	b, _, _, _ := buildScenarioA(t, 2)

	aB64, err := a.B64()
	require.NoError(t, err)
	bB64, err := b.B64()
	require.NoError(t, err)
	assert.Equal(t, aB64, bB64)
}

func TestAssembler_RefusesThirdPaddingInput(t *testing.T) {
	l := testListingFor(t, 100000, 5000, 546)
	tpl := extractTemplate(t, l)
	buyer := p2wpkhAddr(t, 0x61)

	asm, err := NewAssembler(tpl, p2trAddr(t, 0x62), buyer, regtest, 546)
	require.NoError(t, err)
	require.NoError(t, asm.AddPaddingInput(walletUTXO(t, 0xa1, 0, 700, buyer)))
	require.NoError(t, asm.AddPaddingInput(walletUTXO(t, 0xa2, 1, 900, buyer)))

	err = asm.AddPaddingInput(walletUTXO(t, 0xa4, 0, 800, buyer))
	assert.ErrorIs(t, err, ErrStructuralIndex)
}

func TestAssembler_RefusesPaymentBeforePadding(t *testing.T) {
	l := testListingFor(t, 100000, 5000, 546)
	tpl := extractTemplate(t, l)
	buyer := p2wpkhAddr(t, 0x61)

	asm, err := NewAssembler(tpl, p2trAddr(t, 0x62), buyer, regtest, 546)
	require.NoError(t, err)
	require.NoError(t, asm.AddPaddingInput(walletUTXO(t, 0xa1, 0, 700, buyer)))

	err = asm.AddPaymentInput(walletUTXO(t, 0xa3, 0, 150000, buyer))
	assert.ErrorIs(t, err, ErrStructuralIndex)
}

func TestBuild_FailsWithOnePaddingInput(t *testing.T) {
	l := testListingFor(t, 100000, 5000, 546)
	tpl := extractTemplate(t, l)
	buyer := p2wpkhAddr(t, 0x61)

	asm, err := NewAssembler(tpl, p2trAddr(t, 0x62), buyer, regtest, 546)
	require.NoError(t, err)
	require.NoError(t, asm.AddPaddingInput(walletUTXO(t, 0xa1, 0, 700, buyer)))

	_, err = asm.Build(2)
	assert.ErrorIs(t, err, ErrStructuralIndex)
}

func TestBuild_InsufficientBalance(t *testing.T) {
	l := testListingFor(t, 100000, 5000, 546)
	tpl := extractTemplate(t, l)
	buyer := p2wpkhAddr(t, 0x61)

	asm, err := NewAssembler(tpl, p2trAddr(t, 0x62), buyer, regtest, 546)
	require.NoError(t, err)
	require.NoError(t, asm.AddPaddingInput(walletUTXO(t, 0xa1, 0, 700, buyer)))
	require.NoError(t, asm.AddPaddingInput(walletUTXO(t, 0xa2, 1, 900, buyer)))
	require.NoError(t, asm.AddPaymentInput(walletUTXO(t, 0xa3, 0, 10000, buyer)))

	_, err = asm.Build(2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Contains(t, err.Error(), "short")
}

func TestBuild_DustChangeFoldedIntoFee(t *testing.T) {
	const feeRate = 2
	l := testListingFor(t, 100000, 5000, 546)
	tpl := extractTemplate(t, l)
	buyer := p2wpkhAddr(t, 0x61)

	// Fee without a change output for this shape: overhead 11 + inputs
	// (68+68+58+68) + outputs (31+43+31+31) = 409 vbytes -> 818 sat.
	// Fund the obligation plus that fee plus 300 sat of dust.
	asm, err := NewAssembler(tpl, p2trAddr(t, 0x62), buyer, regtest, 546)
	require.NoError(t, err)
	require.NoError(t, asm.AddPaddingInput(walletUTXO(t, 0xa1, 0, 700, buyer)))
	require.NoError(t, asm.AddPaddingInput(walletUTXO(t, 0xa2, 1, 900, buyer)))
	require.NoError(t, asm.AddPaymentInput(walletUTXO(t, 0xa3, 0, 105000+818+300, buyer)))

	draft, err := asm.Build(feeRate)
	require.NoError(t, err)

	assert.False(t, draft.HasChange)
	require.Len(t, draft.Packet.UnsignedTx.TxOut, 4)
	assert.Equal(t, uint64(300), draft.FoldedDust)
	assert.Equal(t, uint64(818+300), draft.Fee)
	assert.Equal(t, draft.TotalIn, draft.TotalOut+draft.Fee)
}

// --- verifier tests ---

func TestVerify_CleanDraft(t *testing.T) {
	draft, tpl, sel, l := buildScenarioA(t, 2)
	rep := Verify(draft, Expected{
		Template:       tpl,
		Listing:        l,
		Selection:      sel,
		OrdinalAddress: p2trAddr(t, 0x62),
		ChangeAddress:  p2wpkhAddr(t, 0x61),
		Params:         regtest,
		DustLimit:      546,
	})
	assert.True(t, rep.Valid, "errors: %v", rep.Errors)
	assert.Empty(t, rep.Errors)
	assert.Equal(t, 4, rep.Totals.InputCount)
	assert.Equal(t, 5, rep.Totals.OutputCount)
	assert.Equal(t, rep.Totals.TotalIn, rep.Totals.TotalOut+rep.Totals.Fee)
}

func TestVerify_DetectsTamperedOutput(t *testing.T) {
	draft, tpl, sel, l := buildScenarioA(t, 2)
	draft.Packet.UnsignedTx.TxOut[OutSellerPayment].Value = 99999

	rep := Verify(draft, Expected{
		Template:       tpl,
		Listing:        l,
		Selection:      sel,
		OrdinalAddress: p2trAddr(t, 0x62),
		ChangeAddress:  p2wpkhAddr(t, 0x61),
		Params:         regtest,
		DustLimit:      546,
	})
	assert.False(t, rep.Valid)
	assert.NotEmpty(t, rep.Errors)
}

func TestVerify_DetectsTamperedSignature(t *testing.T) {
	draft, tpl, sel, l := buildScenarioA(t, 2)
	draft.Packet.Inputs[OrdinalInputIndex].TaprootKeySpendSig = bytes.Repeat([]byte{0x44}, 64)

	rep := Verify(draft, Expected{
		Template:       tpl,
		Listing:        l,
		Selection:      sel,
		OrdinalAddress: p2trAddr(t, 0x62),
		ChangeAddress:  p2wpkhAddr(t, 0x61),
		Params:         regtest,
		DustLimit:      546,
	})
	assert.False(t, rep.Valid)
}

// --- provisioner tests ---

func TestProvisionPadding(t *testing.T) {
	buyer := p2wpkhAddr(t, 0x61)
	source := walletUTXO(t, 0xa3, 0, 150000, buyer)

	prov, err := ProvisionPadding(source, buyer, 5, 600, 2, 546, regtest)
	require.NoError(t, err)

	tx := prov.Packet.UnsignedTx
	require.Len(t, tx.TxOut, 6) // 5 padding outputs + change
	for i := 0; i < 5; i++ {
		assert.Equal(t, int64(600), tx.TxOut[i].Value)
	}
	assert.Equal(t, int64(prov.Change), tx.TxOut[5].Value)
	assert.Equal(t, source.Value, uint64(5*600)+prov.Change+prov.Fee)
}

func TestProvisionPadding_SourceTooSmall(t *testing.T) {
	buyer := p2wpkhAddr(t, 0x61)
	source := walletUTXO(t, 0xa3, 0, 3500, buyer)

	_, err := ProvisionPadding(source, buyer, 5, 600, 2, 546, regtest)
	assert.ErrorIs(t, err, ErrInsufficientValue)
}
