package utxo

import "errors"

var (
	// ErrInsufficientFunds indicates the payment pool cannot cover the target.
	ErrInsufficientFunds = errors.New("utxo: insufficient funds")

	// ErrNeedPadding indicates fewer padding-band UTXOs exist than required.
	ErrNeedPadding = errors.New("utxo: not enough padding utxos")

	// ErrInvalidOutPoint indicates a UTXO carries a malformed txid.
	ErrInvalidOutPoint = errors.New("utxo: invalid outpoint")

	// ErrInvalidParams indicates selection parameters are inconsistent.
	ErrInvalidParams = errors.New("utxo: invalid selection parameters")
)
