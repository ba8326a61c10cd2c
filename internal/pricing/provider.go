// Package pricing defines the price lookup capability consumed by the
// accounting engine and its provider implementations.
package pricing

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when a provider cannot resolve a price or FX
// rate. The engine degrades unavailability to a warning, never a failure.
var ErrUnavailable = errors.New("price unavailable")

// Provider resolves historical unit prices and FX rates. Implementations
// must be safe to call many times for the same (asset, timestamp); callers
// assume idempotent, cacheable responses.
type Provider interface {
	// PriceAUD returns the AUD unit price of an asset at a timestamp.
	PriceAUD(ctx context.Context, asset string, ts time.Time) (decimal.Decimal, error)

	// FXRate returns the conversion rate for a currency pair such as
	// "USD/AUD" on the given date.
	FXRate(ctx context.Context, pair string, date time.Time) (decimal.Decimal, error)
}
