package payout

import (
	"fmt"
	"sort"
)

// Holder is one row of a collection holder snapshot.
type Holder struct {
	// WalletAddress identifies the holder in the snapshot.
	WalletAddress string `json:"wallet_address"`

	// PaymentAddress receives the payout. Empty means pay WalletAddress.
	PaymentAddress string `json:"payment_address,omitempty"`

	// OptedIn holders participate in distributions.
	OptedIn bool `json:"opted_in"`

	// OrdinalCount is the number of collection ordinals held.
	OrdinalCount uint64 `json:"ordinal_count"`
}

// PayTo returns the address the holder's share is paid to.
func (h Holder) PayTo() string {
	if h.PaymentAddress != "" {
		return h.PaymentAddress
	}
	return h.WalletAddress
}

// Entry is a holder's finalized slice of the payout pool.
type Entry struct {
	Holder

	// AmountSats is floor(pool * count / supply) plus any remainder satoshis
	// assigned by the round-robin pass.
	AmountSats uint64 `json:"amount_sats"`

	// BelowThreshold marks amounts under the dust limit. Such holders stay in
	// the distribution; whether they reach the transaction is the builder's
	// policy decision.
	BelowThreshold bool `json:"below_threshold"`
}

// Distribution is an immutable payout snapshot. Invariant: the entry amounts
// sum to exactly Pool.
type Distribution struct {
	Entries     []Entry `json:"entries"`
	Pool        uint64  `json:"pool"`
	TotalSupply uint64  `json:"total_supply"`
}

// Distribute converts holder ordinal counts into integer satoshi amounts.
//
// Each opted-in holder gets floor(pool * count / supply). The satoshis lost
// to flooring are handed back one at a time, round-robin over holders sorted
// descending by (amount, count), so the largest holders absorb rounding dust
// and every satoshi of the pool is assigned to someone.
func Distribute(holders []Holder, totalSupply, pool, dustLimit uint64) (*Distribution, error) {
	if pool == 0 {
		return nil, ErrEmptyPool
	}
	if totalSupply == 0 {
		return nil, ErrZeroSupply
	}

	entries := make([]Entry, 0, len(holders))
	var counted uint64
	for _, h := range holders {
		if !h.OptedIn || h.OrdinalCount == 0 {
			continue
		}
		counted += h.OrdinalCount
		entries = append(entries, Entry{
			Holder:     h,
			AmountSats: pool * h.OrdinalCount / totalSupply,
		})
	}
	if len(entries) == 0 {
		return nil, ErrNoHolders
	}
	if counted > totalSupply {
		return nil, fmt.Errorf("%w: %d held, supply %d", ErrCountExceedsSupply, counted, totalSupply)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].AmountSats != entries[j].AmountSats {
			return entries[i].AmountSats > entries[j].AmountSats
		}
		if entries[i].OrdinalCount != entries[j].OrdinalCount {
			return entries[i].OrdinalCount > entries[j].OrdinalCount
		}
		return entries[i].WalletAddress < entries[j].WalletAddress
	})

	var assigned uint64
	for i := range entries {
		assigned += entries[i].AmountSats
	}
	remainder := pool - assigned
	for i := 0; remainder > 0; i = (i + 1) % len(entries) {
		entries[i].AmountSats++
		remainder--
	}

	for i := range entries {
		entries[i].BelowThreshold = entries[i].AmountSats < dustLimit
	}

	return &Distribution{
		Entries:     entries,
		Pool:        pool,
		TotalSupply: totalSupply,
	}, nil
}
