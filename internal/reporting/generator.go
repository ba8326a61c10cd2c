package reporting

import (
	"fmt"
	"sort"
	"time"

	"solana-cgt/internal/accounting"
	"solana-cgt/internal/domain"
)

// Options scope a report.
type Options struct {
	Method        string
	Wallets       []string
	FinancialYear string // "YYYY-YYYY" AU financial year; empty = all history
}

// Generator turns run results into reports.
type Generator struct {
	now func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator() *Generator {
	return &Generator{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds the report from a run result. When a financial year is
// set, disposals, lot moves and warnings are filtered to it; open lots are
// end-of-run inventory and always reported in full.
func (g *Generator) Generate(res *accounting.RunResult, opts Options) (*Report, error) {
	disposals := res.Disposals
	lotMoves := res.LotMoves
	warnings := res.Warnings

	if opts.FinancialYear != "" {
		period, err := domain.FinancialYearBounds(opts.FinancialYear)
		if err != nil {
			return nil, fmt.Errorf("generate report: %w", err)
		}
		disposals = filterDisposals(disposals, period)
		lotMoves = filterLotMoves(lotMoves, period)
		warnings = filterWarnings(warnings, period)
	}

	report := &Report{
		GeneratedAt:   g.now(),
		Method:        opts.Method,
		FinancialYear: opts.FinancialYear,
		Wallets:       opts.Wallets,
		Disposals:     disposals,
		LotMoves:      lotMoves,
		OpenLots:      res.OpenLots,
		Warnings:      warnings,
	}
	g.summarize(report)
	return report, nil
}

func (g *Generator) summarize(r *Report) {
	byAsset := make(map[string]*AssetSummary)
	byWallet := make(map[string]*WalletSummary)

	for _, d := range r.Disposals {
		asset := byAsset[d.Asset]
		if asset == nil {
			asset = &AssetSummary{Asset: d.Asset}
			byAsset[d.Asset] = asset
		}
		if d.Symbol != "" {
			asset.Symbol = d.Symbol
		}
		asset.add(d)

		wallet := byWallet[d.Wallet]
		if wallet == nil {
			wallet = &WalletSummary{Wallet: d.Wallet}
			byWallet[d.Wallet] = wallet
		}
		wallet.add(d)

		r.Overall.add(d)
	}

	for _, s := range byAsset {
		r.AssetSummaries = append(r.AssetSummaries, *s)
	}
	sort.Slice(r.AssetSummaries, func(i, j int) bool {
		return r.AssetSummaries[i].Asset < r.AssetSummaries[j].Asset
	})

	for _, s := range byWallet {
		r.WalletSummaries = append(r.WalletSummaries, *s)
	}
	sort.Slice(r.WalletSummaries, func(i, j int) bool {
		return r.WalletSummaries[i].Wallet < r.WalletSummaries[j].Wallet
	})
}

func filterDisposals(disposals []*domain.Disposal, period domain.Period) []*domain.Disposal {
	var out []*domain.Disposal
	for _, d := range disposals {
		if period.Contains(d.DisposedAt) {
			out = append(out, d)
		}
	}
	return out
}

func filterLotMoves(moves []*domain.LotMove, period domain.Period) []*domain.LotMove {
	var out []*domain.LotMove
	for _, m := range moves {
		if period.Contains(m.Timestamp) {
			out = append(out, m)
		}
	}
	return out
}

func filterWarnings(warnings []domain.Warning, period domain.Period) []domain.Warning {
	var out []domain.Warning
	for _, w := range warnings {
		if period.Contains(w.Timestamp) {
			out = append(out, w)
		}
	}
	return out
}
