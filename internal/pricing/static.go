package pricing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// StaticProvider resolves prices from fixed override tables. Used for tests
// and for assets the caller prices manually.
type StaticProvider struct {
	prices map[string]decimal.Decimal // asset -> AUD unit price
	rates  map[string]decimal.Decimal // pair -> rate
}

// NewStaticProvider creates a provider from override tables. Either map may
// be nil.
func NewStaticProvider(prices, rates map[string]decimal.Decimal) *StaticProvider {
	if prices == nil {
		prices = map[string]decimal.Decimal{}
	}
	if rates == nil {
		rates = map[string]decimal.Decimal{}
	}
	return &StaticProvider{prices: prices, rates: rates}
}

// PriceAUD returns the override for the asset, or ErrUnavailable.
func (p *StaticProvider) PriceAUD(_ context.Context, asset string, _ time.Time) (decimal.Decimal, error) {
	if price, ok := p.prices[asset]; ok {
		return price, nil
	}
	return decimal.Zero, ErrUnavailable
}

// FXRate returns the override for the pair, or ErrUnavailable.
func (p *StaticProvider) FXRate(_ context.Context, pair string, _ time.Time) (decimal.Decimal, error) {
	if rate, ok := p.rates[pair]; ok {
		return rate, nil
	}
	return decimal.Zero, ErrUnavailable
}

var _ Provider = (*StaticProvider)(nil)
