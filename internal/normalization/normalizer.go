package normalization

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/idhash"
)

// NormalizationError reports a malformed raw record. It is isolated to that
// record and never aborts the batch.
type NormalizationError struct {
	Signature string
	Reason    string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s: %s", e.Signature, e.Reason)
}

// Normalizer converts raw transactions into canonical typed events for the
// tracked wallet set.
type Normalizer struct {
	tracked     map[string]bool
	stableRates map[string]decimal.Decimal // stable mint -> AUD per unit
}

// NewNormalizer creates a normalizer for the given tracked wallets.
// stableRates maps stablecoin mints to their AUD unit value, used to derive
// transaction-implied valuation hints; it may be nil.
func NewNormalizer(wallets []string, stableRates map[string]decimal.Decimal) *Normalizer {
	tracked := make(map[string]bool, len(wallets))
	for _, w := range wallets {
		tracked[w] = true
	}
	return &Normalizer{tracked: tracked, stableRates: stableRates}
}

// leg kind strings accepted from the ingestion source.
const (
	legSwap            = "swap"
	legTransfer        = "transfer"
	legBuy             = "buy"
	legSell            = "sell"
	legMint            = "mint"
	legBurn            = "burn"
	legAirdrop         = "airdrop"
	legLiquidityAdd    = "liquidity_add"
	legLiquidityRemove = "liquidity_remove"
)

var legKinds = map[string]domain.EventKind{
	legBuy:             domain.KindBuy,
	legSell:            domain.KindSell,
	legMint:            domain.KindMint,
	legBurn:            domain.KindBurn,
	legAirdrop:         domain.KindAirdrop,
	legLiquidityAdd:    domain.KindLiquidityAdd,
	legLiquidityRemove: domain.KindLiquidityRemove,
}

// NormalizeTransaction converts one raw transaction into zero or more
// normalized events. Transactions irrelevant to the tracked set produce no
// events. Wallets with swap legs are canonicalized to net per-asset deltas;
// transfer legs that cancel inside a swap are suppressed, never emitted.
func (n *Normalizer) NormalizeTransaction(tx *domain.RawTransaction) ([]*domain.NormalizedEvent, []domain.Warning, error) {
	if tx.Signature == "" {
		return nil, nil, &NormalizationError{Signature: "(empty)", Reason: "missing transaction signature"}
	}
	if tx.BlockTime.IsZero() {
		return nil, nil, &NormalizationError{Signature: tx.Signature, Reason: "missing block time"}
	}

	// Group legs by tracked wallet, preserving leg order.
	byWallet := make(map[string][]indexedLeg)
	var walletOrder []string
	for i := range tx.Legs {
		leg := &tx.Legs[i]
		if leg.Mint == "" {
			return nil, nil, &NormalizationError{Signature: tx.Signature, Reason: fmt.Sprintf("leg %d has no mint", i)}
		}
		if !n.tracked[leg.Wallet] {
			continue
		}
		if _, seen := byWallet[leg.Wallet]; !seen {
			walletOrder = append(walletOrder, leg.Wallet)
		}
		byWallet[leg.Wallet] = append(byWallet[leg.Wallet], indexedLeg{index: i, leg: leg})
	}
	if len(byWallet) == 0 {
		return nil, nil, nil
	}

	consideration := n.resolveConsideration(tx)

	var events []*domain.NormalizedEvent
	for _, wallet := range walletOrder {
		legs := byWallet[wallet]
		if hasSwapLeg(legs) {
			events = append(events, n.canonicalizeSwap(tx, wallet, legs)...)
		} else {
			events = append(events, n.plainEvents(tx, wallet, legs)...)
		}
	}
	if len(events) == 0 {
		return nil, nil, nil
	}

	n.allocateHints(events, consideration)

	warnings := n.attachFee(tx, events)
	return events, warnings, nil
}

type indexedLeg struct {
	index int
	leg   *domain.RawLeg
}

func hasSwapLeg(legs []indexedLeg) bool {
	for _, il := range legs {
		if il.leg.Kind == legSwap {
			return true
		}
	}
	return false
}

// canonicalizeSwap nets all of a wallet's legs in the transaction per asset
// and emits one swap event per non-zero net delta. Gross transfer sub-legs
// are absorbed by the netting, which prevents double counting.
func (n *Normalizer) canonicalizeSwap(tx *domain.RawTransaction, wallet string, legs []indexedLeg) []*domain.NormalizedEvent {
	net := make(map[string]decimal.Decimal)
	symbols := make(map[string]string)
	counterparties := make(map[string]string)
	for _, il := range legs {
		leg := il.leg
		net[leg.Mint] = net[leg.Mint].Add(leg.Amount())
		if leg.Symbol != "" {
			symbols[leg.Mint] = leg.Symbol
		}
		if leg.Counterparty != "" {
			counterparties[leg.Mint] = leg.Counterparty
		}
	}

	// Deterministic emission order: sort mints lexicographically.
	mints := make([]string, 0, len(net))
	for mint := range net {
		mints = append(mints, mint)
	}
	sort.Strings(mints)

	var events []*domain.NormalizedEvent
	for i, mint := range mints {
		delta := net[mint]
		if delta.IsZero() {
			continue
		}
		events = append(events, &domain.NormalizedEvent{
			ID:           idhash.ComputeEventID(tx.Signature, wallet, mint, i),
			Wallet:       wallet,
			Timestamp:    tx.BlockTime.UTC(),
			Kind:         domain.KindSwap,
			Asset:        mint,
			Symbol:       symbols[mint],
			Quantity:     delta,
			Counterparty: counterparties[mint],
			RawRef:       tx.Signature,
			IngestSeq:    tx.IngestSeq,
		})
	}
	return events
}

// plainEvents emits one event per leg for wallets without swap activity.
func (n *Normalizer) plainEvents(tx *domain.RawTransaction, wallet string, legs []indexedLeg) []*domain.NormalizedEvent {
	var events []*domain.NormalizedEvent
	for _, il := range legs {
		leg := il.leg
		amount := leg.Amount()
		if amount.IsZero() {
			continue
		}
		var kind domain.EventKind
		switch leg.Kind {
		case legTransfer:
			if amount.IsNegative() {
				kind = domain.KindTransferOut
			} else {
				kind = domain.KindTransferIn
			}
		default:
			var ok bool
			kind, ok = legKinds[leg.Kind]
			if !ok {
				kind = domain.KindUnknown
			}
		}
		events = append(events, &domain.NormalizedEvent{
			ID:           idhash.ComputeEventID(tx.Signature, wallet, leg.Mint, il.index),
			Wallet:       wallet,
			Timestamp:    tx.BlockTime.UTC(),
			Kind:         kind,
			Asset:        leg.Mint,
			Symbol:       leg.Symbol,
			Quantity:     amount,
			Counterparty: leg.Counterparty,
			RawRef:       tx.Signature,
			IngestSeq:    tx.IngestSeq,
		})
	}
	return events
}

// resolveConsideration returns the transaction-implied AUD value, preferring
// the value supplied by the ingestion source and falling back to stablecoin
// legs (gross inflow first, then gross outflow).
func (n *Normalizer) resolveConsideration(tx *domain.RawTransaction) decimal.NullDecimal {
	if tx.ConsiderationAUD.Valid {
		return tx.ConsiderationAUD
	}
	if len(n.stableRates) == 0 {
		return decimal.NullDecimal{}
	}
	var inflow, outflow decimal.Decimal
	for i := range tx.Legs {
		leg := &tx.Legs[i]
		rate, ok := n.stableRates[leg.Mint]
		if !ok {
			continue
		}
		amount := leg.Amount()
		if amount.IsPositive() {
			inflow = inflow.Add(amount.Mul(rate))
		} else {
			outflow = outflow.Add(amount.Neg().Mul(rate))
		}
	}
	if inflow.IsPositive() {
		return decimal.NewNullDecimal(domain.QuantizeAUD(inflow))
	}
	if outflow.IsPositive() {
		return decimal.NewNullDecimal(domain.QuantizeAUD(outflow))
	}
	return decimal.NullDecimal{}
}

// allocateHints distributes the consideration proportionally by quantity
// across disposal legs and across acquisition legs. Stablecoin events value
// themselves directly from their configured rate.
func (n *Normalizer) allocateHints(events []*domain.NormalizedEvent, consideration decimal.NullDecimal) {
	var disposals, acquisitions []*domain.NormalizedEvent
	var disposalQty, acquisitionQty decimal.Decimal
	for _, ev := range events {
		if rate, ok := n.stableRates[ev.Asset]; ok {
			ev.ValuationHint = decimal.NewNullDecimal(domain.QuantizeAUD(ev.Quantity.Abs().Mul(rate)))
			continue
		}
		if ev.Quantity.IsNegative() {
			disposals = append(disposals, ev)
			disposalQty = disposalQty.Add(ev.Quantity.Neg())
		} else {
			acquisitions = append(acquisitions, ev)
			acquisitionQty = acquisitionQty.Add(ev.Quantity)
		}
	}
	if !consideration.Valid {
		return
	}
	for _, ev := range disposals {
		share := consideration.Decimal
		if len(disposals) > 1 && disposalQty.IsPositive() {
			share = consideration.Decimal.Mul(ev.Quantity.Neg()).Div(disposalQty)
		}
		ev.ValuationHint = decimal.NewNullDecimal(domain.QuantizeAUD(share))
	}
	for _, ev := range acquisitions {
		share := consideration.Decimal
		if len(acquisitions) > 1 && acquisitionQty.IsPositive() {
			share = consideration.Decimal.Mul(ev.Quantity).Div(acquisitionQty)
		}
		ev.ValuationHint = decimal.NewNullDecimal(domain.QuantizeAUD(share))
	}
}

// attachFee assigns the network fee to the fee payer's first emitted event.
// The fee is attached exactly once; when the payer is not among the emitted
// events' wallets a warning is returned instead.
func (n *Normalizer) attachFee(tx *domain.RawTransaction, events []*domain.NormalizedEvent) []domain.Warning {
	if tx.FeeLamports == 0 {
		return nil
	}
	for _, ev := range events {
		if ev.Wallet == tx.FeePayer {
			ev.FeeSOL = domain.LamportsToSOL(tx.FeeLamports)
			return nil
		}
	}
	if n.tracked[tx.FeePayer] {
		// Fee payer is tracked but produced no event in this transaction;
		// the fee cannot be tied to a ledger mutation.
		return []domain.Warning{{
			Code:      domain.WarnFeePayerUnknown,
			EventID:   events[0].ID,
			Wallet:    tx.FeePayer,
			Timestamp: tx.BlockTime.UTC(),
			Message:   fmt.Sprintf("fee payer %s has no event in transaction %s", tx.FeePayer, tx.Signature),
		}}
	}
	if tx.FeePayer == "" {
		return []domain.Warning{{
			Code:      domain.WarnFeePayerUnknown,
			EventID:   events[0].ID,
			Wallet:    events[0].Wallet,
			Timestamp: tx.BlockTime.UTC(),
			Message:   fmt.Sprintf("fee payer undetermined for transaction %s", tx.Signature),
		}}
	}
	// Fee paid by an untracked wallet: not our fee.
	return nil
}
