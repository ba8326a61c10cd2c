package pricing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
)

// PairAUDUSD is the FX pair resolved by market providers.
const PairAUDUSD = "AUD/USD"

// MarketProvider resolves AUD prices by combining Coingecko USD market data
// with RBA AUD/USD daily rates. Assets are mapped to Coingecko coin IDs
// through the coins table; unmapped assets resolve as unavailable.
type MarketProvider struct {
	market *CoingeckoClient
	fx     *RBAFXSource
	coins  map[string]string // mint or symbol -> coingecko coin id
	logger *log.Logger
}

// NewMarketProvider creates a market-data provider. coins maps asset
// identifiers to Coingecko coin IDs; SOL is mapped by default.
func NewMarketProvider(market *CoingeckoClient, fx *RBAFXSource, coins map[string]string, logger *log.Logger) *MarketProvider {
	if logger == nil {
		logger = log.Default()
	}
	merged := map[string]string{domain.SOLMint: "solana"}
	for asset, id := range coins {
		merged[asset] = id
	}
	return &MarketProvider{market: market, fx: fx, coins: merged, logger: logger}
}

// PriceAUD returns the AUD unit price of an asset at ts: the Coingecko USD
// price for its day divided by the RBA AUD/USD rate.
func (p *MarketProvider) PriceAUD(ctx context.Context, asset string, ts time.Time) (decimal.Decimal, error) {
	coin, ok := p.coins[asset]
	if !ok {
		return decimal.Zero, ErrUnavailable
	}

	usd, err := p.market.PriceUSD(ctx, coin, ts)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return decimal.Zero, ErrUnavailable
		}
		return decimal.Zero, fmt.Errorf("usd price for %s: %w", coin, err)
	}

	audusd, err := p.FXRate(ctx, PairAUDUSD, ts)
	if err != nil {
		return decimal.Zero, err
	}
	if audusd.IsZero() {
		return decimal.Zero, ErrUnavailable
	}
	return usd.Div(audusd), nil
}

// FXRate resolves the AUD/USD rate for a date, preferring the RBA daily
// series and falling back to Coingecko's spot exchange rates table.
func (p *MarketProvider) FXRate(ctx context.Context, pair string, date time.Time) (decimal.Decimal, error) {
	if !strings.EqualFold(pair, PairAUDUSD) {
		return decimal.Zero, ErrUnavailable
	}

	rate, err := p.fx.AUDUSD(ctx, date)
	if err == nil {
		return rate, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		p.logger.Printf("pricing: rba lookup failed, falling back to spot: %v", err)
	}

	audPerUSD, err := p.market.AUDPerUSD(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if audPerUSD.IsZero() {
		return decimal.Zero, ErrUnavailable
	}
	// Spot table reports AUD per USD; the pair is quoted USD per AUD.
	return decimal.NewFromInt(1).Div(audPerUSD), nil
}

var _ Provider = (*MarketProvider)(nil)
