package purchase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ordmarketorg/libordmarket-go/config"
	"github.com/ordmarketorg/libordmarket-go/fee"
	"github.com/ordmarketorg/libordmarket-go/listing"
	"github.com/ordmarketorg/libordmarket-go/network"
	"github.com/ordmarketorg/libordmarket-go/utxo"
)

// Flow wires the selector, fee estimator, provisioner, assembler, and
// verifier into the purchase control path. All methods are synchronous; the
// only suspension points are the network calls, each bounded by its client's
// timeout.
type Flow struct {
	Store  listing.Store
	Chain  network.Service
	Oracle *fee.Oracle
	Cfg    config.Config
}

// Result is the outcome of a purchase attempt. Either Draft/PSBT/Report are
// set, or RequiresPaddingUTXOs is true and Padding carries the provisioning
// template the buyer must confirm first.
type Result struct {
	Draft  *Draft  `json:"-"`
	PSBT   string  `json:"psbt,omitempty"`
	Report *Report `json:"report,omitempty"`

	RequiresPaddingUTXOs bool             `json:"requires_padding_utxos"`
	Padding              *ProvisionResult `json:"-"`
	PaddingPSBT          string           `json:"padding_psbt,omitempty"`

	FeeRate uint64 `json:"fee_rate"`
}

// Purchase assembles a purchase draft for the given listing. ordinalAddr
// receives the inscription; paymentAddr funds the purchase and receives the
// padding return and change.
//
// The seller template is validated against the listing before any network
// call. If the buyer's wallet lacks padding-band UTXOs, the returned Result
// carries a provisioning template instead of a draft; the purchase must be
// retried after it confirms.
func (f *Flow) Purchase(ctx context.Context, listingID, ordinalAddr, paymentAddr string) (*Result, error) {
	l, err := f.Store.Get(listingID)
	if err != nil {
		return nil, err
	}
	if l.Status != listing.StatusActive {
		return nil, fmt.Errorf("%w: %s is %s", ErrListingNotActive, l.ID, l.Status)
	}

	tpl, err := ExtractSellerTemplate(l.PartialPSBT)
	if err != nil {
		return nil, err
	}
	if err := tpl.ValidateListing(l); err != nil {
		return nil, err
	}

	available, err := f.Chain.ListUnspent(ctx, paymentAddr)
	if err != nil {
		return nil, err
	}
	feeRate := f.Oracle.Recommended(ctx)

	candidates := utxo.PaddingCandidates(available, f.Cfg.PaddingMin, f.Cfg.PaddingMax)
	if len(candidates) < f.Cfg.PaddingCount {
		prov, err := f.provision(available, paymentAddr, feeRate)
		if err != nil {
			return nil, err
		}
		b64, err := prov.B64()
		if err != nil {
			return nil, fmt.Errorf("purchase: encode provisioning template: %w", err)
		}
		return &Result{
			RequiresPaddingUTXOs: true,
			Padding:              prov,
			PaddingPSBT:          b64,
			FeeRate:              feeRate,
		}, nil
	}

	obligation := l.PriceSats + l.PlatformFeeSats
	target := obligation + f.roughFee(feeRate)

	// The real fee depends on how many payment inputs selection picks, so a
	// selection that covers the rough target can still come up short at
	// build time. Widen the target and retry.
	var draft *Draft
	var sel *utxo.Selection
	for attempt := 0; attempt < 3; attempt++ {
		sel, err = utxo.Select(available, target, utxo.Params{
			PaddingMin:   f.Cfg.PaddingMin,
			PaddingMax:   f.Cfg.PaddingMax,
			PaddingCount: f.Cfg.PaddingCount,
			PaymentFloor: f.Cfg.PaymentFloor,
		})
		if err != nil {
			return nil, err
		}

		draft, err = f.assemble(tpl, sel, ordinalAddr, paymentAddr, feeRate)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrInsufficientBalance) {
			return nil, err
		}
		target += selectionRetryStep
	}
	if err != nil {
		return nil, err
	}

	report := Verify(draft, Expected{
		Template:       tpl,
		Listing:        l,
		Selection:      sel,
		OrdinalAddress: ordinalAddr,
		ChangeAddress:  paymentAddr,
		Params:         f.Cfg.Params(),
		DustLimit:      f.Cfg.DustLimit,
	})
	if !report.Valid {
		return nil, fmt.Errorf("%w: %s", ErrVerificationFailed, report.Errors[0])
	}

	b64, err := draft.B64()
	if err != nil {
		return nil, fmt.Errorf("purchase: encode draft: %w", err)
	}
	return &Result{
		Draft:   draft,
		PSBT:    b64,
		Report:  report,
		FeeRate: feeRate,
	}, nil
}

// selectionRetryStep widens the selection target between assembly retries.
const selectionRetryStep = 5000

// CompleteSale marks the listing sold and broadcasts the finalized raw
// transaction. The status transition is an atomic compare-and-swap: of two
// racing buyers, exactly one passes it. A broadcast rejection is returned to
// the caller but does not roll the status back; broadcasting is idempotent
// and the caller may retry it directly.
func (f *Flow) CompleteSale(ctx context.Context, listingID, rawTxHex string) (string, error) {
	if err := f.Store.Transition(listingID, listing.StatusActive, listing.StatusSold); err != nil {
		return "", err
	}
	txid, err := f.Chain.BroadcastTx(ctx, rawTxHex)
	if err != nil {
		return "", err
	}
	return txid, nil
}

// Cancel withdraws an active listing.
func (f *Flow) Cancel(listingID string) error {
	return f.Store.Transition(listingID, listing.StatusActive, listing.StatusCancelled)
}

// assemble runs the staged assembler over a selection.
func (f *Flow) assemble(tpl *SellerTemplate, sel *utxo.Selection,
	ordinalAddr, changeAddr string, feeRate uint64) (*Draft, error) {

	asm, err := NewAssembler(tpl, ordinalAddr, changeAddr, f.Cfg.Params(), f.Cfg.DustLimit)
	if err != nil {
		return nil, err
	}
	for _, u := range sel.Padding {
		if err := asm.AddPaddingInput(u); err != nil {
			return nil, err
		}
	}
	for _, u := range sel.Payment {
		if err := asm.AddPaymentInput(u); err != nil {
			return nil, err
		}
	}
	return asm.Build(feeRate)
}

// provision picks the largest available UTXO as the split source and builds
// the padding provisioning template.
func (f *Flow) provision(available []utxo.UTXO, destAddr string, feeRate uint64) (*ProvisionResult, error) {
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: wallet has no utxos", ErrInsufficientValue)
	}
	sorted := make([]utxo.UTXO, len(available))
	copy(sorted, available)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value > sorted[j].Value })

	return ProvisionPadding(sorted[0], destAddr, f.Cfg.ProvisionCount,
		f.Cfg.PaddingValue, feeRate, f.Cfg.DustLimit, f.Cfg.Params())
}

// roughFee estimates the fee of a typical purchase shape (4 inputs, 5
// outputs) for the selector's initial target.
func (f *Flow) roughFee(feeRate uint64) uint64 {
	ins := []utxo.ScriptType{
		utxo.ScriptP2WPKH, utxo.ScriptP2WPKH, utxo.ScriptP2TR, utxo.ScriptP2WPKH,
	}
	outs := []utxo.ScriptType{
		utxo.ScriptP2WPKH, utxo.ScriptP2TR, utxo.ScriptP2WPKH, utxo.ScriptP2WPKH, utxo.ScriptP2WPKH,
	}
	return fee.Estimate(ins, outs, feeRate)
}
