package normalization

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func buyTx(sig string, seq int64, amountRaw int64) *domain.RawTransaction {
	return &domain.RawTransaction{
		Signature: sig,
		BlockTime: blockTime,
		Legs: []domain.RawLeg{
			{Kind: "buy", Wallet: "walletA", Mint: "mintX", Decimals: 6, AmountRaw: amountRaw},
		},
		ConsiderationAUD: decimal.NewNullDecimal(dec("10.00")),
		IngestSeq:        seq,
	}
}

func TestRunner_PreservesInputOrder(t *testing.T) {
	txs := []*domain.RawTransaction{
		buyTx("sig1", 1, 1_000_000),
		buyTx("sig2", 2, 2_000_000),
		buyTx("sig3", 3, 3_000_000),
	}

	runner := NewRunner(NewNormalizer([]string{"walletA"}, nil), 4, quietLogger())
	res, err := runner.Run(context.Background(), txs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(res.Events))
	}
	for i, want := range []string{"sig1", "sig2", "sig3"} {
		if res.Events[i].RawRef != want {
			t.Errorf("event %d: got %s, want %s", i, res.Events[i].RawRef, want)
		}
	}
}

func TestRunner_IsolatesMalformedRecords(t *testing.T) {
	bad := buyTx("", 2, 1_000_000)
	txs := []*domain.RawTransaction{
		buyTx("sig1", 1, 1_000_000),
		bad,
		buyTx("sig3", 3, 3_000_000),
	}

	runner := NewRunner(NewNormalizer([]string{"walletA"}, nil), 2, quietLogger())
	res, err := runner.Run(context.Background(), txs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(res.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(res.Events))
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected 1 isolated error, got %d", len(res.Errors))
	}
}

func TestRunner_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	txs := []*domain.RawTransaction{buyTx("sig1", 1, 1_000_000)}
	runner := NewRunner(NewNormalizer([]string{"walletA"}, nil), 1, quietLogger())

	if _, err := runner.Run(ctx, txs); err == nil {
		t.Error("expected error from cancelled context")
	}
}
