package payout

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// Sign produces witness signatures for every funding input of a payout
// build. All funding inputs must be P2WPKH outputs controlled by key.
func Sign(res *BuildResult, key *btcec.PrivateKey) (*wire.MsgTx, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: nil key", ErrSigningFailed)
	}
	tx := res.Packet.UnsignedTx.Copy()

	keyHash := btcutil.Hash160(key.PubKey().SerializeCompressed())

	prevOuts := make(map[wire.OutPoint]*wire.TxOut, len(res.Funding))
	for _, u := range res.Funding {
		op, err := u.OutPoint()
		if err != nil {
			return nil, fmt.Errorf("%w: funding utxo %s: %w", ErrSigningFailed, u.Key(), err)
		}
		prevOuts[*op] = &wire.TxOut{Value: int64(u.Value), PkScript: u.PkScript}
	}
	fetcher := txscript.NewMultiPrevOutFetcher(prevOuts)
	sigHashes := txscript.NewTxSigHashes(tx, fetcher)

	for i, in := range tx.TxIn {
		prev, ok := prevOuts[in.PreviousOutPoint]
		if !ok {
			return nil, fmt.Errorf("%w: no prevout for input %d", ErrSigningFailed, i)
		}
		if !isP2WPKHFor(prev.PkScript, keyHash) {
			return nil, fmt.Errorf("%w: input %d is not a p2wpkh output of the signing key",
				ErrSigningFailed, i)
		}
		witness, err := txscript.WitnessSignature(tx, sigHashes, i, prev.Value,
			prev.PkScript, txscript.SigHashAll, key, true)
		if err != nil {
			return nil, fmt.Errorf("%w: input %d: %w", ErrSigningFailed, i, err)
		}
		tx.TxIn[i].Witness = witness
	}
	return tx, nil
}

// SerializeHex encodes a signed transaction for broadcast.
func SerializeHex(tx *wire.MsgTx) (string, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", fmt.Errorf("payout: serialize: %w", err)
	}
	return hex.EncodeToString(buf.Bytes()), nil
}

// isP2WPKHFor reports whether script is the v0 witness program of keyHash.
func isP2WPKHFor(script, keyHash []byte) bool {
	return len(script) == 22 && script[0] == txscript.OP_0 && script[1] == 0x14 &&
		bytes.Equal(script[2:], keyHash)
}
