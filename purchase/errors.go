package purchase

import "errors"

var (
	// ErrInvalidTemplate indicates the seller's partial PSBT is malformed:
	// wrong input/output shape, missing witness data, or no signature
	// material.
	ErrInvalidTemplate = errors.New("purchase: invalid seller template")

	// ErrSignedTemplateMismatch indicates the seller's preserved outputs do
	// not match the listing's recorded price or platform fee. Never
	// corrected: the seller's signature is bound to the template values.
	ErrSignedTemplateMismatch = errors.New("purchase: signed template mismatch")

	// ErrStructuralIndex indicates the assembler was driven out of order:
	// wrong padding input count, or inputs added in a stage that forbids
	// them. The 2-padding/ordinal-at-2 layout is a protocol contract.
	ErrStructuralIndex = errors.New("purchase: structural index violation")

	// ErrInsufficientBalance indicates the payment inputs cannot cover the
	// sale price, platform fee, and network fee.
	ErrInsufficientBalance = errors.New("purchase: insufficient balance")

	// ErrNegativeChange indicates arithmetic produced a negative remainder.
	// Defensive: unreachable when selection succeeded.
	ErrNegativeChange = errors.New("purchase: negative change")

	// ErrInsufficientValue indicates the padding provisioner's source UTXO
	// is too small to split.
	ErrInsufficientValue = errors.New("purchase: insufficient source value")

	// ErrVerificationFailed indicates the assembled draft failed the
	// structural verifier. Drafts are never returned without passing it.
	ErrVerificationFailed = errors.New("purchase: verification failed")

	// ErrListingNotActive indicates a purchase was attempted against a
	// listing that is not in the active status.
	ErrListingNotActive = errors.New("purchase: listing not active")
)
