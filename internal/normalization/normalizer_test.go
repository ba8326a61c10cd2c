package normalization

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
)

var blockTime = time.Date(2023, time.March, 1, 10, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func swapTransaction() *domain.RawTransaction {
	return &domain.RawTransaction{
		Signature:   "sigSwap",
		Slot:        100,
		BlockTime:   blockTime,
		FeePayer:    "walletA",
		FeeLamports: 5000,
		Legs: []domain.RawLeg{
			{Kind: "swap", Wallet: "walletA", Mint: "mintX", Symbol: "X", Decimals: 6, AmountRaw: -100_000_000, Counterparty: "pool1"},
			{Kind: "swap", Wallet: "walletA", Mint: "mintY", Symbol: "Y", Decimals: 9, AmountRaw: 50_000_000_000, Counterparty: "pool1"},
		},
		ConsiderationAUD: decimal.NewNullDecimal(dec("500.00")),
	}
}

func TestNormalizer_SwapCanonicalization(t *testing.T) {
	n := NewNormalizer([]string{"walletA"}, nil)

	events, warnings, err := n.NormalizeTransaction(swapTransaction())
	if err != nil {
		t.Fatalf("NormalizeTransaction: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// Deterministic emission order: mints sorted lexicographically.
	out, in := events[0], events[1]
	if out.Asset != "mintX" || in.Asset != "mintY" {
		t.Fatalf("event order: %s, %s", out.Asset, in.Asset)
	}
	if out.Kind != domain.KindSwap || in.Kind != domain.KindSwap {
		t.Errorf("kinds: %s, %s", out.Kind, in.Kind)
	}
	if !out.Quantity.Equal(dec("-100")) {
		t.Errorf("out quantity: got %s", out.Quantity)
	}
	if !in.Quantity.Equal(dec("50")) {
		t.Errorf("in quantity: got %s", in.Quantity)
	}

	// The transaction-implied consideration values both sides.
	if !out.ValuationHint.Valid || !out.ValuationHint.Decimal.Equal(dec("500.00")) {
		t.Errorf("out hint: %+v", out.ValuationHint)
	}
	if !in.ValuationHint.Valid || !in.ValuationHint.Decimal.Equal(dec("500.00")) {
		t.Errorf("in hint: %+v", in.ValuationHint)
	}

	// Fee attaches to the fee payer's first event, exactly once.
	if !out.FeeSOL.Equal(domain.LamportsToSOL(5000)) {
		t.Errorf("fee on first event: got %s", out.FeeSOL)
	}
	if !in.FeeSOL.IsZero() {
		t.Errorf("fee duplicated on second event: got %s", in.FeeSOL)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %+v", warnings)
	}
}

func TestNormalizer_SwapAbsorbsTransferSubLegs(t *testing.T) {
	tx := swapTransaction()
	// Gross routing legs that cancel within the same transaction.
	tx.Legs = append(tx.Legs,
		domain.RawLeg{Kind: "transfer", Wallet: "walletA", Mint: "mintX", Decimals: 6, AmountRaw: -20_000_000},
		domain.RawLeg{Kind: "transfer", Wallet: "walletA", Mint: "mintX", Decimals: 6, AmountRaw: 20_000_000},
	)

	n := NewNormalizer([]string{"walletA"}, nil)
	events, _, err := n.NormalizeTransaction(tx)
	if err != nil {
		t.Fatalf("NormalizeTransaction: %v", err)
	}

	// Still exactly one net event per asset; the sub-legs are absorbed.
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].Quantity.Equal(dec("-100")) {
		t.Errorf("net quantity: got %s", events[0].Quantity)
	}
}

func TestNormalizer_TransferSigns(t *testing.T) {
	tx := &domain.RawTransaction{
		Signature: "sigTransfer",
		BlockTime: blockTime,
		Legs: []domain.RawLeg{
			{Kind: "transfer", Wallet: "walletA", Mint: "mintX", Decimals: 6, AmountRaw: -5_000_000, Counterparty: "walletB"},
			{Kind: "transfer", Wallet: "walletB", Mint: "mintX", Decimals: 6, AmountRaw: 5_000_000, Counterparty: "walletA"},
		},
	}

	n := NewNormalizer([]string{"walletA", "walletB"}, nil)
	events, _, err := n.NormalizeTransaction(tx)
	if err != nil {
		t.Fatalf("NormalizeTransaction: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != domain.KindTransferOut {
		t.Errorf("negative transfer: got %s", events[0].Kind)
	}
	if events[1].Kind != domain.KindTransferIn {
		t.Errorf("positive transfer: got %s", events[1].Kind)
	}
}

func TestNormalizer_UntrackedWalletsProduceNothing(t *testing.T) {
	n := NewNormalizer([]string{"walletZ"}, nil)

	events, warnings, err := n.NormalizeTransaction(swapTransaction())
	if err != nil {
		t.Fatalf("NormalizeTransaction: %v", err)
	}
	if len(events) != 0 || len(warnings) != 0 {
		t.Errorf("expected no output, got %d events, %d warnings", len(events), len(warnings))
	}
}

func TestNormalizer_MalformedRecords(t *testing.T) {
	n := NewNormalizer([]string{"walletA"}, nil)

	missingSig := swapTransaction()
	missingSig.Signature = ""
	if _, _, err := n.NormalizeTransaction(missingSig); err == nil {
		t.Error("expected error for missing signature")
	}

	missingTime := swapTransaction()
	missingTime.BlockTime = time.Time{}
	if _, _, err := n.NormalizeTransaction(missingTime); err == nil {
		t.Error("expected error for missing block time")
	}

	missingMint := swapTransaction()
	missingMint.Legs[0].Mint = ""
	var normErr *NormalizationError
	if _, _, err := n.NormalizeTransaction(missingMint); !errors.As(err, &normErr) {
		t.Errorf("expected NormalizationError, got %v", err)
	}
}

func TestNormalizer_FeePayerWithoutEvent(t *testing.T) {
	tx := swapTransaction()
	tx.FeePayer = "walletB" // tracked, but has no leg in this transaction

	n := NewNormalizer([]string{"walletA", "walletB"}, nil)
	events, warnings, err := n.NormalizeTransaction(tx)
	if err != nil {
		t.Fatalf("NormalizeTransaction: %v", err)
	}

	for _, ev := range events {
		if !ev.FeeSOL.IsZero() {
			t.Errorf("fee attached to wrong wallet: %+v", ev)
		}
	}
	if len(warnings) != 1 || warnings[0].Code != domain.WarnFeePayerUnknown {
		t.Errorf("expected fee payer warning, got %+v", warnings)
	}
}

func TestNormalizer_UntrackedFeePayerIgnored(t *testing.T) {
	tx := swapTransaction()
	tx.FeePayer = "someoneElse"

	n := NewNormalizer([]string{"walletA"}, nil)
	_, warnings, err := n.NormalizeTransaction(tx)
	if err != nil {
		t.Fatalf("NormalizeTransaction: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("fee paid by an untracked wallet is not ours: %+v", warnings)
	}
}

func TestNormalizer_StablecoinConsideration(t *testing.T) {
	tx := &domain.RawTransaction{
		Signature:   "sigStable",
		BlockTime:   blockTime,
		FeePayer:    "walletA",
		FeeLamports: 5000,
		Legs: []domain.RawLeg{
			{Kind: "swap", Wallet: "walletA", Mint: "mintX", Decimals: 6, AmountRaw: 10_000_000},
			{Kind: "swap", Wallet: "walletA", Mint: "USDC", Symbol: "USDC", Decimals: 6, AmountRaw: -100_000_000},
		},
	}

	n := NewNormalizer([]string{"walletA"}, map[string]decimal.Decimal{"USDC": dec("1.50")})
	events, _, err := n.NormalizeTransaction(tx)
	if err != nil {
		t.Fatalf("NormalizeTransaction: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	// Sorted mints: USDC before mintX.
	usdc, x := events[0], events[1]
	if usdc.Asset != "USDC" || x.Asset != "mintX" {
		t.Fatalf("event order: %s, %s", usdc.Asset, x.Asset)
	}

	// 100 USDC at 1.50 implies 150 AUD on both sides.
	if !x.ValuationHint.Valid || !x.ValuationHint.Decimal.Equal(dec("150.00")) {
		t.Errorf("acquisition hint: %+v", x.ValuationHint)
	}
	// The stablecoin leg values itself from its configured rate.
	if !usdc.ValuationHint.Valid || !usdc.ValuationHint.Decimal.Equal(dec("150.00")) {
		t.Errorf("stablecoin hint: %+v", usdc.ValuationHint)
	}
}

func TestNormalizer_ProportionalHintAllocation(t *testing.T) {
	tx := &domain.RawTransaction{
		Signature: "sigMulti",
		BlockTime: blockTime,
		Legs: []domain.RawLeg{
			{Kind: "airdrop", Wallet: "walletA", Mint: "mintX", Decimals: 6, AmountRaw: 30_000_000},
			{Kind: "airdrop", Wallet: "walletA", Mint: "mintY", Decimals: 6, AmountRaw: 70_000_000},
		},
		ConsiderationAUD: decimal.NewNullDecimal(dec("100.00")),
	}

	n := NewNormalizer([]string{"walletA"}, nil)
	events, _, err := n.NormalizeTransaction(tx)
	if err != nil {
		t.Fatalf("NormalizeTransaction: %v", err)
	}

	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if !events[0].ValuationHint.Decimal.Equal(dec("30.00")) {
		t.Errorf("first share: got %s", events[0].ValuationHint.Decimal)
	}
	if !events[1].ValuationHint.Decimal.Equal(dec("70.00")) {
		t.Errorf("second share: got %s", events[1].ValuationHint.Decimal)
	}
}
