package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventKind identifies the economic effect of a normalized event.
type EventKind string

// Event kinds emitted by the normalizer.
const (
	KindSwap            EventKind = "swap"
	KindBuy             EventKind = "buy"
	KindSell            EventKind = "sell"
	KindTransferIn      EventKind = "transfer_in"
	KindTransferOut     EventKind = "transfer_out"
	KindMint            EventKind = "mint"
	KindBurn            EventKind = "burn"
	KindAirdrop         EventKind = "airdrop"
	KindLiquidityAdd    EventKind = "liquidity_add"
	KindLiquidityRemove EventKind = "liquidity_remove"
	KindUnknown         EventKind = "unknown"
)

// MoveClass describes how a transfer event was reconciled.
type MoveClass string

const (
	// MoveSelf is a transfer between two tracked wallets. Non-taxable.
	MoveSelf MoveClass = "self"
	// MoveExternalOut is an unmatched transfer_out leaving tracked custody.
	MoveExternalOut MoveClass = "external_out"
	// MoveExternalRestore is a transfer_in matched against a prior
	// external-out move; the original cost base is restored.
	MoveExternalRestore MoveClass = "external_restore"
)

// Move is the reconciliation annotation attached to transfer events.
// For MoveSelf the annotation is attached to both legs and the ledger
// executes the move on the transfer_out leg.
type Move struct {
	Class       MoveClass
	PeerEventID string // matched counterpart event, empty for external moves
	FromWallet  string
	ToWallet    string // external bucket key for external-out moves
}

// NormalizedEvent is one economic effect derived from a raw transaction.
// Quantity is signed: positive means inflow to Wallet.
type NormalizedEvent struct {
	ID            string
	Wallet        string
	Timestamp     time.Time // UTC
	Kind          EventKind
	Asset         string // mint address
	Symbol        string
	Quantity      decimal.Decimal
	Counterparty  string
	FeeSOL        decimal.Decimal // attached only to the fee payer's first event
	ValuationHint decimal.NullDecimal // transaction-implied AUD consideration
	RawRef        string // originating transaction signature
	IngestSeq     int64  // position in the explicit ingestion order
	Move          *Move  // set by the transfer reconciler
}

// Treatment is the tax classification of an event after reconciliation.
type Treatment int

const (
	TreatIgnore Treatment = iota
	TreatAcquisition
	TreatDisposal
	TreatLotMove
)

// kindTreatment maps event kinds to their default tax treatment.
// Transfer events are overridden by the reconciliation annotation.
var kindTreatment = map[EventKind]Treatment{
	KindBuy:             TreatAcquisition,
	KindMint:            TreatAcquisition,
	KindAirdrop:         TreatAcquisition,
	KindTransferIn:      TreatAcquisition,
	KindLiquidityRemove: TreatAcquisition,
	KindSell:            TreatDisposal,
	KindBurn:            TreatDisposal,
	KindLiquidityAdd:    TreatDisposal,
	KindUnknown:         TreatIgnore,
}

// Classify returns the tax treatment of an event. Swap events classify by
// the sign of their net quantity; annotated transfers classify as lot moves.
func Classify(ev *NormalizedEvent) Treatment {
	if ev.Move != nil {
		switch {
		case ev.Kind == KindTransferOut:
			return TreatLotMove
		case ev.Kind == KindTransferIn && ev.Move.Class == MoveSelf:
			// Executed on the paired transfer_out leg.
			return TreatIgnore
		case ev.Kind == KindTransferIn && ev.Move.Class == MoveExternalRestore:
			return TreatLotMove
		}
	}
	if ev.Kind == KindSwap {
		if ev.Quantity.IsNegative() {
			return TreatDisposal
		}
		return TreatAcquisition
	}
	if ev.Kind == KindTransferOut {
		// Unannotated transfer_out should not reach the ledger; the
		// reconciler always annotates. Treated as an external move.
		return TreatLotMove
	}
	if t, ok := kindTreatment[ev.Kind]; ok {
		return t
	}
	return TreatIgnore
}
