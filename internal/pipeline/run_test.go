package pipeline

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/pricing"
	"solana-cgt/internal/reporting"
	"solana-cgt/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// seedScenario caches a small history for walletA and walletB:
// day 0    walletA buys 10 X for 50 AUD
// day 10   walletA moves 3 X to walletB (self-transfer)
// day 400  walletA sells 4 X for 32 AUD
func seedScenario(t *testing.T) *memory.RawTransactionStore {
	t.Helper()
	store := memory.NewRawTransactionStore()
	ctx := context.Background()

	t0 := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

	buy := func() *domain.RawTransaction {
		return &domain.RawTransaction{
			Signature: "sigBuy",
			Slot:      100,
			BlockTime: t0,
			Legs: []domain.RawLeg{
				{Kind: "buy", Wallet: "walletA", Mint: "mintX", Symbol: "X", Decimals: 6, AmountRaw: 10_000_000},
			},
			ConsiderationAUD: decimal.NewNullDecimal(dec("50.00")),
		}
	}
	move := func() *domain.RawTransaction {
		return &domain.RawTransaction{
			Signature: "sigMove",
			Slot:      200,
			BlockTime: t0.AddDate(0, 0, 10),
			Legs: []domain.RawLeg{
				{Kind: "transfer", Wallet: "walletA", Mint: "mintX", Symbol: "X", Decimals: 6, AmountRaw: -3_000_000, Counterparty: "walletB"},
				{Kind: "transfer", Wallet: "walletB", Mint: "mintX", Symbol: "X", Decimals: 6, AmountRaw: 3_000_000, Counterparty: "walletA"},
			},
		}
	}
	sell := func() *domain.RawTransaction {
		return &domain.RawTransaction{
			Signature: "sigSell",
			Slot:      300,
			BlockTime: t0.AddDate(0, 0, 400),
			Legs: []domain.RawLeg{
				{Kind: "sell", Wallet: "walletA", Mint: "mintX", Symbol: "X", Decimals: 6, AmountRaw: -4_000_000},
			},
			ConsiderationAUD: decimal.NewNullDecimal(dec("32.00")),
		}
	}

	// Each wallet's fetch caches the transaction under its own key, as the
	// ingestion fetcher does; deduplication is the pipeline's job.
	for _, wallet := range []string{"walletA", "walletB"} {
		for _, tx := range []*domain.RawTransaction{buy(), move(), sell()} {
			if err := store.Insert(ctx, wallet, tx); err != nil {
				t.Fatalf("seed %s for %s: %v", tx.Signature, wallet, err)
			}
		}
	}
	return store
}

func runScenario(t *testing.T, cfg Config) *reporting.Report {
	t.Helper()
	store := seedScenario(t)
	runner := NewRunner(store, pricing.NewStaticProvider(nil, nil), quietLogger())

	report, err := runner.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return report
}

func TestRunner_FIFOScenario(t *testing.T) {
	report := runScenario(t, Config{
		Wallets: []string{"walletA", "walletB"},
		Method:  "FIFO",
	})

	if len(report.Disposals) != 1 {
		t.Fatalf("expected 1 disposal, got %d", len(report.Disposals))
	}
	d := report.Disposals[0]
	if !d.Quantity.Equal(dec("4")) {
		t.Errorf("quantity: got %s", d.Quantity)
	}
	if !d.ProceedsAUD.Equal(dec("32.00")) {
		t.Errorf("proceeds: got %s", d.ProceedsAUD)
	}
	if !d.CostBaseAUD.Equal(dec("20.00")) {
		t.Errorf("cost base: got %s", d.CostBaseAUD)
	}
	if !d.GainAUD.Equal(dec("12.00")) {
		t.Errorf("gain: got %s", d.GainAUD)
	}
	if d.HeldDays != 400 || !d.DiscountEligible {
		t.Errorf("holding: days=%d eligible=%t", d.HeldDays, d.DiscountEligible)
	}

	// The self-transfer is a lot move, never a disposal.
	if len(report.LotMoves) != 1 {
		t.Fatalf("expected 1 lot move, got %d", len(report.LotMoves))
	}
	m := report.LotMoves[0]
	if m.Class != domain.MoveSelf || m.FromWallet != "walletA" || m.ToWallet != "walletB" {
		t.Errorf("lot move: %+v", m)
	}

	// 10 acquired, 4 disposed: 3 in walletA, 3 in walletB.
	remaining := decimal.Zero
	for _, l := range report.OpenLots {
		remaining = remaining.Add(l.QtyRemaining)
	}
	if !remaining.Equal(dec("6")) {
		t.Errorf("open quantity: got %s", remaining)
	}

	if len(report.Warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", report.Warnings)
	}
	if report.Overall.Disposals != 1 || !report.Overall.DiscountEligibleGainAUD.Equal(dec("12.00")) {
		t.Errorf("overall summary: %+v", report.Overall)
	}
}

func TestRunner_Deterministic(t *testing.T) {
	cfg := Config{Wallets: []string{"walletA", "walletB"}, Method: "FIFO"}

	first := runScenario(t, cfg)
	second := runScenario(t, cfg)

	if got, want := reporting.RenderDisposalsCSV(first.Disposals), reporting.RenderDisposalsCSV(second.Disposals); got != want {
		t.Errorf("disposals differ between runs:\n%s\n---\n%s", got, want)
	}
	if got, want := reporting.RenderOpenLotsCSV(first.OpenLots), reporting.RenderOpenLotsCSV(second.OpenLots); got != want {
		t.Errorf("open lots differ between runs:\n%s\n---\n%s", got, want)
	}
}

func TestRunner_FinancialYearFilter(t *testing.T) {
	// The sale lands on 5 Feb 2024, inside AU FY 2023-2024.
	report := runScenario(t, Config{
		Wallets:       []string{"walletA", "walletB"},
		Method:        "FIFO",
		FinancialYear: "2023-2024",
	})
	if len(report.Disposals) != 1 {
		t.Errorf("expected disposal inside FY 2023-2024, got %d", len(report.Disposals))
	}

	report = runScenario(t, Config{
		Wallets:       []string{"walletA", "walletB"},
		Method:        "FIFO",
		FinancialYear: "2024-2025",
	})
	if len(report.Disposals) != 0 {
		t.Errorf("expected no disposals in FY 2024-2025, got %d", len(report.Disposals))
	}
}

func TestRunner_ConfigErrors(t *testing.T) {
	store := memory.NewRawTransactionStore()
	runner := NewRunner(store, pricing.NewStaticProvider(nil, nil), quietLogger())
	ctx := context.Background()

	if _, err := runner.Run(ctx, Config{Method: "FIFO"}); err == nil {
		t.Error("expected error for empty wallet list")
	}
	if _, err := runner.Run(ctx, Config{Wallets: []string{"walletA"}, Method: "nope"}); err == nil {
		t.Error("expected error for unknown method")
	}
	if _, err := runner.Run(ctx, Config{Wallets: []string{"walletA"}, Method: "SPECIFIC"}); err == nil {
		t.Error("expected error for Specific-ID without selections")
	}
}
