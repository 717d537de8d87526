package fee

import (
	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// Virtual-size weights in vbytes, rounded up from the standard weight-unit
// costs. Input costs include the witness discount for the segwit types.
const (
	// txOverheadVBytes covers version, segwit marker/flag, in/out counts and
	// locktime.
	txOverheadVBytes = 11

	inP2TRVBytes     = 58
	inP2WPKHVBytes   = 68
	inNestedVBytes   = 91
	inFallbackVBytes = 91 // unknown inputs priced at the worst handled case

	outP2TRVBytes     = 43
	outP2WPKHVBytes   = 31
	outNestedVBytes   = 32
	outFallbackVBytes = 43
)

// InputVBytes returns the virtual size contribution of one signed input of
// the given script type.
func InputVBytes(t utxo.ScriptType) uint64 {
	switch t {
	case utxo.ScriptP2TR:
		return inP2TRVBytes
	case utxo.ScriptP2WPKH:
		return inP2WPKHVBytes
	case utxo.ScriptNestedP2WPKH:
		return inNestedVBytes
	default:
		return inFallbackVBytes
	}
}

// OutputVBytes returns the virtual size contribution of one output of the
// given script type.
func OutputVBytes(t utxo.ScriptType) uint64 {
	switch t {
	case utxo.ScriptP2TR:
		return outP2TRVBytes
	case utxo.ScriptP2WPKH:
		return outP2WPKHVBytes
	case utxo.ScriptNestedP2WPKH:
		return outNestedVBytes
	default:
		return outFallbackVBytes
	}
}

// EstimateVSize returns the estimated virtual size of a transaction with the
// given input and output script types.
func EstimateVSize(inputs, outputs []utxo.ScriptType) uint64 {
	size := uint64(txOverheadVBytes)
	for _, t := range inputs {
		size += InputVBytes(t)
	}
	for _, t := range outputs {
		size += OutputVBytes(t)
	}
	return size
}

// ForVSize converts a virtual size to an absolute fee at rate sat/vbyte.
func ForVSize(vsize, rate uint64) uint64 {
	return vsize * rate
}

// Estimate returns the absolute fee for a transaction with the given input
// and output script types at rate sat/vbyte.
func Estimate(inputs, outputs []utxo.ScriptType, rate uint64) uint64 {
	return ForVSize(EstimateVSize(inputs, outputs), rate)
}
