package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LotOrigin records how a lot entered a wallet's inventory.
type LotOrigin string

const (
	OriginAcquisition LotOrigin = "acquisition"
	OriginMoveIn      LotOrigin = "move_in"
)

// Lot is a slice of acquired inventory not yet fully disposed.
// UnitCostAUD excludes acquisition fees; fees are accumulated in FeesAUD and
// prorated on consumption. A lot with zero remaining quantity is closed and
// retained for audit only.
type Lot struct {
	ID          string
	Seq         int64 // monotonic per (wallet, asset), deterministic tie-break
	Wallet      string
	Asset       string
	Symbol      string
	AcquiredAt  time.Time
	QtyAcquired decimal.Decimal
	QtyRemaining decimal.Decimal
	UnitCostAUD decimal.Decimal
	FeesAUD     decimal.Decimal
	Unpriced    bool // unit cost could not be resolved
	Origin      LotOrigin
	SourceEvent string // event or move that created the lot
}

// Open reports whether the lot still holds inventory.
func (l *Lot) Open() bool {
	return l.QtyRemaining.IsPositive()
}

// LotConsumption is one slice of a lot consumed by a disposal.
type LotConsumption struct {
	LotID    string
	Quantity decimal.Decimal
}

// Disposal is the result of consuming lot quantity against an outflow event.
type Disposal struct {
	EventID         string
	Wallet          string
	Asset           string
	Symbol          string
	DisposedAt      time.Time
	Quantity        decimal.Decimal
	ProceedsAUD     decimal.Decimal
	CostBaseAUD     decimal.Decimal
	FeesAUD         decimal.Decimal // prorated lot fees included in cost base
	GainAUD         decimal.Decimal
	HeldDays        int  // minimum holding period across consumed lots
	DiscountEligible bool // HeldDays >= LongTermDays
	Unpriced        bool // proceeds could not be resolved
	Method          string
	MatchedLots     []LotConsumption
}

// MovedLot is one slice of inventory relocated by a lot move, preserving the
// original acquisition timestamp and unit cost.
type MovedLot struct {
	LotID       string
	NewLotID    string
	Quantity    decimal.Decimal
	UnitCostAUD decimal.Decimal
	FeesAUD     decimal.Decimal
	AcquiredAt  time.Time
}

// LotMove is the audit record of a non-taxable relocation of lot quantity.
type LotMove struct {
	EventID    string
	FromWallet string
	ToWallet   string // may be an external bucket key
	Asset      string
	Symbol     string
	Timestamp  time.Time
	Quantity   decimal.Decimal
	Class      MoveClass
	LotsMoved  []MovedLot
}
