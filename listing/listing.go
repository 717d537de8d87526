package listing

import "time"

// Status is the lifecycle state of a listing.
type Status string

const (
	// StatusActive means the listing is purchasable.
	StatusActive Status = "active"
	// StatusSold means a purchase completed against the listing.
	StatusSold Status = "sold"
	// StatusCancelled means the seller withdrew the listing.
	StatusCancelled Status = "cancelled"
)

// Listing is an active sale offer. PriceSats and PlatformFeeSats are fixed
// at listing time: the seller's signature in PartialPSBT is bound to those
// exact output values, so they are only ever validated against the template,
// never recomputed.
type Listing struct {
	ID                string `json:"id"`
	InscriptionID     string `json:"inscription_id"`
	SellerWallet      string `json:"seller_wallet"`
	PriceSats         uint64 `json:"price_sats"`
	PlatformFeeSats   uint64 `json:"platform_fee_sats"`
	PlatformFeeWallet string `json:"platform_fee_wallet"`
	UtxoValue         uint64 `json:"utxo_value"`

	// PartialPSBT is the seller's signed template, base64, opaque to the
	// store. Immutable once the listing is active.
	PartialPSBT string `json:"partial_psbt"`

	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
