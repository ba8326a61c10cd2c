package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PricePoint is one resolved historical price, persisted so repeated runs
// against the same inputs do not refetch.
type PricePoint struct {
	Asset     string
	Timestamp time.Time // UTC, minute-bucketed by providers
	PriceAUD  decimal.Decimal
	Source    string // provider identifier
}
