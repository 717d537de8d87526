package utxo

import (
	"fmt"
	"sort"
)

// Params controls how a Selection is made. Zero values are not usable;
// callers normally derive Params from config.Config.
type Params struct {
	// PaddingMin and PaddingMax bound the padding candidate band: a UTXO is a
	// padding candidate when PaddingMin <= value < PaddingMax.
	PaddingMin uint64
	PaddingMax uint64

	// PaddingCount is the number of padding UTXOs to pick (smallest first).
	PaddingCount int

	// PaymentFloor excludes dust-adjacent UTXOs from the payment pool:
	// a payment candidate must have value > PaymentFloor.
	PaymentFloor uint64
}

func (p Params) validate() error {
	if p.PaddingMin >= p.PaddingMax {
		return fmt.Errorf("%w: padding band [%d, %d)", ErrInvalidParams, p.PaddingMin, p.PaddingMax)
	}
	if p.PaddingCount <= 0 {
		return fmt.Errorf("%w: padding count %d", ErrInvalidParams, p.PaddingCount)
	}
	return nil
}

// Selection is the result of a successful Select call. The padding and
// payment slices are disjoint: a UTXO chosen for padding is removed from the
// pool before payment candidates are considered, so double-use cannot occur.
type Selection struct {
	Padding []UTXO // exactly Params.PaddingCount entries, ascending by value
	Payment []UTXO // descending by value, total >= target

	PaddingTotal uint64
	PaymentTotal uint64
}

// PaddingCandidates returns the UTXOs inside the padding band, ascending by
// value. Used by the purchase flow to decide whether provisioning is needed
// before committing to a selection.
func PaddingCandidates(available []UTXO, min, max uint64) []UTXO {
	var out []UTXO
	for _, u := range available {
		if u.Value >= min && u.Value < max {
			out = append(out, u)
		}
	}
	sortStable(out, func(a, b UTXO) bool { return a.Value < b.Value })
	return out
}

// Select partitions the available UTXOs into padding and payment candidates
// and greedily covers target with the payment pool.
//
// Padding candidates are taken smallest-first to minimize the value parked in
// the padding-return output. Payment candidates are taken largest-first until
// their total reaches target. The result is deterministic for a given input
// set: ties are broken by outpoint key.
//
// Returns ErrNeedPadding when fewer than Params.PaddingCount candidates lie
// in the band, and ErrInsufficientFunds (naming the shortfall) when the
// payment pool cannot cover target.
func Select(available []UTXO, target uint64, p Params) (*Selection, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	// Single consumable pool: picking for one role removes the UTXO from
	// consideration for the other.
	pool := make([]UTXO, len(available))
	copy(pool, available)

	padding := PaddingCandidates(pool, p.PaddingMin, p.PaddingMax)
	if len(padding) < p.PaddingCount {
		return nil, fmt.Errorf("%w: need %d in band [%d, %d), have %d",
			ErrNeedPadding, p.PaddingCount, p.PaddingMin, p.PaddingMax, len(padding))
	}
	padding = padding[:p.PaddingCount]

	chosen := make(map[string]bool, len(padding))
	sel := &Selection{Padding: padding}
	for _, u := range padding {
		chosen[u.Key()] = true
		sel.PaddingTotal += u.Value
	}

	var payPool []UTXO
	for _, u := range pool {
		if chosen[u.Key()] || u.Value <= p.PaymentFloor {
			continue
		}
		payPool = append(payPool, u)
	}
	sortStable(payPool, func(a, b UTXO) bool { return a.Value > b.Value })

	for _, u := range payPool {
		if sel.PaymentTotal >= target {
			break
		}
		sel.Payment = append(sel.Payment, u)
		sel.PaymentTotal += u.Value
	}

	if sel.PaymentTotal < target {
		return nil, fmt.Errorf("%w: need %d sat, have %d sat (short %d)",
			ErrInsufficientFunds, target, sel.PaymentTotal, target-sel.PaymentTotal)
	}

	return sel, nil
}

// sortStable orders utxos by less, breaking ties on the outpoint key so
// repeated runs over the same set produce identical orderings.
func sortStable(utxos []UTXO, less func(a, b UTXO) bool) {
	sort.SliceStable(utxos, func(i, j int) bool {
		if less(utxos[i], utxos[j]) {
			return true
		}
		if less(utxos[j], utxos[i]) {
			return false
		}
		return utxos[i].Key() < utxos[j].Key()
	})
}
