package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/storage"
)

// DefaultMaxPointAge bounds how far a stored price may sit behind the
// requested timestamp before it is considered stale.
const DefaultMaxPointAge = time.Hour

// CachedProvider wraps a provider with a persistent price point store, so
// re-runs against the same inputs resolve prices without refetching.
type CachedProvider struct {
	inner  Provider
	store  storage.PricePointStore
	maxAge time.Duration
	source string
	logger *log.Logger
}

// NewCachedProvider creates a store-backed provider. source labels points
// written by this provider.
func NewCachedProvider(inner Provider, store storage.PricePointStore, source string, logger *log.Logger) *CachedProvider {
	if logger == nil {
		logger = log.Default()
	}
	return &CachedProvider{
		inner:  inner,
		store:  store,
		maxAge: DefaultMaxPointAge,
		source: source,
		logger: logger,
	}
}

// WithMaxPointAge overrides the staleness bound for stored points.
func (p *CachedProvider) WithMaxPointAge(d time.Duration) *CachedProvider {
	p.maxAge = d
	return p
}

// PriceAUD resolves from the store first and falls back to the inner
// provider, persisting fresh results.
func (p *CachedProvider) PriceAUD(ctx context.Context, asset string, ts time.Time) (decimal.Decimal, error) {
	point, err := p.store.GetLatestBefore(ctx, asset, ts, p.maxAge)
	if err == nil {
		return point.PriceAUD, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return decimal.Zero, fmt.Errorf("price store lookup: %w", err)
	}

	price, err := p.inner.PriceAUD(ctx, asset, ts)
	if err != nil {
		return decimal.Zero, err
	}
	insertErr := p.store.InsertBulk(ctx, []*domain.PricePoint{{
		Asset:     asset,
		Timestamp: MinuteBucket(ts),
		PriceAUD:  price,
		Source:    p.source,
	}})
	if insertErr != nil {
		// Cache write failure does not block pricing.
		p.logger.Printf("pricing: cache write for %s: %v", asset, insertErr)
	}
	return price, nil
}

// FXRate delegates to the inner provider.
func (p *CachedProvider) FXRate(ctx context.Context, pair string, date time.Time) (decimal.Decimal, error) {
	return p.inner.FXRate(ctx, pair, date)
}

// MinuteBucket truncates a timestamp to the minute, the resolution at which
// historical prices are stored.
func MinuteBucket(ts time.Time) time.Time {
	return ts.UTC().Truncate(time.Minute)
}

var _ Provider = (*CachedProvider)(nil)
