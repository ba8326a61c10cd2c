package verification

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/pipeline"
	"solana-cgt/internal/pricing"
	"solana-cgt/internal/reporting"
	"solana-cgt/internal/storage/memory"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleReport() *reporting.Report {
	disposedAt := time.Date(2024, time.February, 5, 0, 0, 0, 0, time.UTC)
	return &reporting.Report{
		Method: "FIFO",
		Disposals: []*domain.Disposal{{
			EventID:     "ev1",
			Wallet:      "walletA",
			Asset:       "mintX",
			DisposedAt:  disposedAt,
			Quantity:    dec("4"),
			ProceedsAUD: dec("32.00"),
			CostBaseAUD: dec("20.00"),
			GainAUD:     dec("12.00"),
			HeldDays:    400,
			Method:      "FIFO",
			MatchedLots: []domain.LotConsumption{{LotID: "lot1", Quantity: dec("4")}},
		}},
		OpenLots: []*domain.Lot{{
			ID:           "lot1",
			Wallet:       "walletA",
			Asset:        "mintX",
			AcquiredAt:   disposedAt.AddDate(0, 0, -400),
			QtyAcquired:  dec("10"),
			QtyRemaining: dec("6"),
			UnitCostAUD:  dec("5.00"),
		}},
		Overall: reporting.Summary{
			Disposals:   1,
			ProceedsAUD: dec("32.00"),
			CostBaseAUD: dec("20.00"),
			GainAUD:     dec("12.00"),
		},
	}
}

func TestCompareReports_Identical(t *testing.T) {
	if divergences := CompareReports(sampleReport(), sampleReport()); len(divergences) != 0 {
		t.Errorf("identical reports diverged: %+v", divergences)
	}
}

func TestCompareReports_EquivalentDecimalsMatch(t *testing.T) {
	rerun := sampleReport()
	// Same value, different exponent; not a divergence.
	rerun.Disposals[0].GainAUD = dec("12")

	if divergences := CompareReports(sampleReport(), rerun); len(divergences) != 0 {
		t.Errorf("value-equal decimals diverged: %+v", divergences)
	}
}

func TestCompareReports_NamesDivergentField(t *testing.T) {
	rerun := sampleReport()
	rerun.Disposals[0].GainAUD = dec("13.00")
	rerun.OpenLots[0].QtyRemaining = dec("5")

	divergences := CompareReports(sampleReport(), rerun)

	fields := make(map[string]bool)
	for _, d := range divergences {
		fields[d.Field] = true
	}
	if !fields["Disposals[0].GainAUD"] {
		t.Errorf("missing gain divergence: %+v", divergences)
	}
	if !fields["OpenLots[0].QtyRemaining"] {
		t.Errorf("missing open lot divergence: %+v", divergences)
	}
}

func TestCompareReports_CountMismatch(t *testing.T) {
	rerun := sampleReport()
	rerun.Disposals = nil

	divergences := CompareReports(sampleReport(), rerun)
	if len(divergences) == 0 || divergences[0].Field != "Disposals" {
		t.Errorf("expected disposal count divergence, got %+v", divergences)
	}
}

func TestRerunVerifier(t *testing.T) {
	store := memory.NewRawTransactionStore()
	ctx := context.Background()
	t0 := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

	txs := []*domain.RawTransaction{
		{
			Signature: "sigBuy",
			BlockTime: t0,
			Legs: []domain.RawLeg{
				{Kind: "buy", Wallet: "walletA", Mint: "mintX", Symbol: "X", Decimals: 6, AmountRaw: 10_000_000},
			},
			ConsiderationAUD: decimal.NewNullDecimal(dec("50.00")),
		},
		{
			Signature: "sigSell",
			BlockTime: t0.AddDate(0, 0, 400),
			Legs: []domain.RawLeg{
				{Kind: "sell", Wallet: "walletA", Mint: "mintX", Symbol: "X", Decimals: 6, AmountRaw: -4_000_000},
			},
			ConsiderationAUD: decimal.NewNullDecimal(dec("32.00")),
		},
	}
	for _, tx := range txs {
		if err := store.Insert(ctx, "walletA", tx); err != nil {
			t.Fatalf("seed %s: %v", tx.Signature, err)
		}
	}

	runner := pipeline.NewRunner(store, pricing.NewStaticProvider(nil, nil), log.New(io.Discard, "", 0))
	verifier := NewRerunVerifier(runner, 3)

	result, err := verifier.Verify(ctx, pipeline.Config{Wallets: []string{"walletA"}, Method: "FIFO"})
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !result.Match {
		t.Errorf("expected deterministic runs, got divergences: %+v", result.Divergences)
	}
	if result.Runs != 3 {
		t.Errorf("runs: got %d", result.Runs)
	}
}
