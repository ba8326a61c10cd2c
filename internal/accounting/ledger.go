package accounting

import (
	"sort"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
)

type inventoryKey struct {
	wallet string
	asset  string
}

// Ledger holds per (wallet, asset) lot inventories for one computation run.
// It is owned by a single Engine and is not safe for concurrent use: lot
// consumption is only correct under one sequential, deterministically
// ordered pass. Construct one ledger per run, discard after use.
type Ledger struct {
	lots map[inventoryKey][]*domain.Lot
	seq  map[inventoryKey]int64

	// Running totals backing the conservation identity:
	// open + consumed == acquired (per key, after every event).
	inflow  map[inventoryKey]decimal.Decimal // acquisitions + moves in
	outflow map[inventoryKey]decimal.Decimal // disposals + moves out
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		lots:    make(map[inventoryKey][]*domain.Lot),
		seq:     make(map[inventoryKey]int64),
		inflow:  make(map[inventoryKey]decimal.Decimal),
		outflow: make(map[inventoryKey]decimal.Decimal),
	}
}

// nextSeq returns the next monotonic lot sequence for a (wallet, asset) pair.
func (l *Ledger) nextSeq(wallet, asset string) int64 {
	key := inventoryKey{wallet, asset}
	l.seq[key]++
	return l.seq[key]
}

// add appends a lot and records its quantity as inflow.
func (l *Ledger) add(lot *domain.Lot) {
	key := inventoryKey{lot.Wallet, lot.Asset}
	l.lots[key] = append(l.lots[key], lot)
	l.inflow[key] = l.inflow[key].Add(lot.QtyAcquired)
}

// open returns the open lots for a pair in acquisition order. Closed lots are
// retained internally for audit but never returned for matching.
func (l *Ledger) open(wallet, asset string) []*domain.Lot {
	key := inventoryKey{wallet, asset}
	var open []*domain.Lot
	for _, lot := range l.lots[key] {
		if lot.Open() {
			open = append(open, lot)
		}
	}
	return open
}

// openTotal returns the total open quantity for a pair.
func (l *Ledger) openTotal(wallet, asset string) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range l.open(wallet, asset) {
		total = total.Add(lot.QtyRemaining)
	}
	return total
}

// consume reduces a lot's remaining quantity and records the outflow.
func (l *Ledger) consume(lot *domain.Lot, qty decimal.Decimal) {
	key := inventoryKey{lot.Wallet, lot.Asset}
	lot.QtyRemaining = lot.QtyRemaining.Sub(qty)
	if lot.QtyRemaining.IsNegative() {
		lot.QtyRemaining = decimal.Zero
	}
	l.outflow[key] = l.outflow[key].Add(qty)
}

// checkConservation verifies the accounting identity for one pair:
// sum(open lot quantities) == inflow - outflow.
func (l *Ledger) checkConservation(wallet, asset string) error {
	key := inventoryKey{wallet, asset}
	open := decimal.Zero
	for _, lot := range l.lots[key] {
		open = open.Add(lot.QtyRemaining)
	}
	expected := l.inflow[key].Sub(l.outflow[key])
	if !open.Equal(expected) {
		return &InvariantViolationError{
			Wallet: wallet,
			Asset:  asset,
			Detail: "open " + open.String() + " != inflow " + l.inflow[key].String() + " - outflow " + l.outflow[key].String(),
		}
	}
	return nil
}

// openLots returns all open lots across all pairs in deterministic order
// (wallet, asset, seq).
func (l *Ledger) openLots() []*domain.Lot {
	var all []*domain.Lot
	for _, lots := range l.lots {
		for _, lot := range lots {
			if lot.Open() {
				all = append(all, lot)
			}
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.Wallet != b.Wallet {
			return a.Wallet < b.Wallet
		}
		if a.Asset != b.Asset {
			return a.Asset < b.Asset
		}
		return a.Seq < b.Seq
	})
	return all
}
