package utxo

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// UTXO represents an unspent transaction output fetched from an indexer.
// A UTXO is immutable once fetched; its identity is (TxID, Vout).
type UTXO struct {
	TxID     string `json:"txid"`
	Vout     uint32 `json:"vout"`
	Value    uint64 `json:"value"` // satoshis
	Address  string `json:"address"`
	PkScript []byte `json:"pk_script"`
}

// OutPoint returns the wire outpoint identifying this UTXO.
func (u *UTXO) OutPoint() (*wire.OutPoint, error) {
	hash, err := chainhash.NewHashFromStr(u.TxID)
	if err != nil {
		return nil, fmt.Errorf("%w: txid %q: %w", ErrInvalidOutPoint, u.TxID, err)
	}
	return wire.NewOutPoint(hash, u.Vout), nil
}

// Key returns the canonical "txid:vout" identity string.
func (u *UTXO) Key() string {
	return fmt.Sprintf("%s:%d", u.TxID, u.Vout)
}

// ScriptType identifies the spend path of an output's locking script.
// Script types the protocol does not handle map to ScriptUnknown.
type ScriptType int

const (
	// ScriptUnknown is any script class the protocol does not model.
	ScriptUnknown ScriptType = iota
	// ScriptP2TR is a taproot (SegWit v1) output.
	ScriptP2TR
	// ScriptP2WPKH is a native SegWit v0 pubkey-hash output.
	ScriptP2WPKH
	// ScriptNestedP2WPKH is a P2WPKH nested in P2SH.
	ScriptNestedP2WPKH
)

// String returns the conventional descriptor name for the script type.
func (t ScriptType) String() string {
	switch t {
	case ScriptP2TR:
		return "p2tr"
	case ScriptP2WPKH:
		return "p2wpkh"
	case ScriptNestedP2WPKH:
		return "p2sh-p2wpkh"
	default:
		return "unknown"
	}
}

// Classify determines the ScriptType of a locking script. A bare P2SH script
// is classified as ScriptNestedP2WPKH: the wallets this protocol serves only
// produce P2SH outputs as SegWit wrappers.
func Classify(pkScript []byte) ScriptType {
	switch {
	case txscript.IsPayToTaproot(pkScript):
		return ScriptP2TR
	case txscript.IsPayToWitnessPubKeyHash(pkScript):
		return ScriptP2WPKH
	case txscript.IsPayToScriptHash(pkScript):
		return ScriptNestedP2WPKH
	default:
		return ScriptUnknown
	}
}
