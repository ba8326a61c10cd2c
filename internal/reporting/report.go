package reporting

import (
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
)

// Report is the final reportable dataset for one computation run: the
// ordered run records plus summary aggregates derived from them.
type Report struct {
	// Metadata
	GeneratedAt   time.Time
	Method        string
	FinancialYear string // empty when reporting over all history
	Wallets       []string

	// Run records, in emission order.
	Disposals []*domain.Disposal
	LotMoves  []*domain.LotMove
	OpenLots  []*domain.Lot
	Warnings  []domain.Warning

	// Summaries (sorted by asset / wallet).
	AssetSummaries  []AssetSummary
	WalletSummaries []WalletSummary
	Overall         Summary
}

// Summary aggregates disposal outcomes. All values are AUD, rounded to
// cents. DiscountEligibleGainAUD sums only positive gains on disposals
// that met the holding period; losses never enter it.
type Summary struct {
	Disposals               int
	ProceedsAUD             decimal.Decimal
	CostBaseAUD             decimal.Decimal
	FeesAUD                 decimal.Decimal
	GainAUD                 decimal.Decimal
	DiscountEligibleGainAUD decimal.Decimal
	UnpricedDisposals       int
}

// AssetSummary is the per-asset rollup.
type AssetSummary struct {
	Asset  string
	Symbol string
	Summary
}

// WalletSummary is the per-wallet rollup.
type WalletSummary struct {
	Wallet string
	Summary
}

func (s *Summary) add(d *domain.Disposal) {
	s.Disposals++
	s.ProceedsAUD = s.ProceedsAUD.Add(d.ProceedsAUD)
	s.CostBaseAUD = s.CostBaseAUD.Add(d.CostBaseAUD)
	s.FeesAUD = s.FeesAUD.Add(d.FeesAUD)
	s.GainAUD = s.GainAUD.Add(d.GainAUD)
	if d.DiscountEligible && d.GainAUD.IsPositive() {
		s.DiscountEligibleGainAUD = s.DiscountEligibleGainAUD.Add(d.GainAUD)
	}
	if d.Unpriced {
		s.UnpricedDisposals++
	}
}
