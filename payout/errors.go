package payout

import "errors"

var (
	// ErrEmptyPool indicates a payout pool of zero satoshis.
	ErrEmptyPool = errors.New("payout: empty payout pool")

	// ErrNoHolders indicates the snapshot has no opted-in holders.
	ErrNoHolders = errors.New("payout: no opted-in holders")

	// ErrZeroSupply indicates a collection total supply of zero.
	ErrZeroSupply = errors.New("payout: zero total supply")

	// ErrCountExceedsSupply indicates holder counts summing past the supply.
	ErrCountExceedsSupply = errors.New("payout: holder counts exceed total supply")

	// ErrInvalidSnapshot indicates a malformed holder snapshot response.
	ErrInvalidSnapshot = errors.New("payout: invalid holder snapshot")

	// ErrNothingPayable indicates no holder reached the dust limit.
	ErrNothingPayable = errors.New("payout: no holder at or above the dust limit")

	// ErrInsufficientFunding indicates the funding wallet cannot cover the
	// payout outputs plus the network fee.
	ErrInsufficientFunding = errors.New("payout: insufficient funding")

	// ErrInvalidAddress indicates a holder payment address that does not
	// decode for the configured network.
	ErrInvalidAddress = errors.New("payout: invalid address")

	// ErrSigningFailed indicates the funding inputs could not be signed.
	ErrSigningFailed = errors.New("payout: signing failed")
)
