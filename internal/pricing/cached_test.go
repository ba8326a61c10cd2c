package pricing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/storage/memory"
)

func TestCachedProvider_StoreHit(t *testing.T) {
	store := memory.NewPricePointStore()
	ctx := context.Background()

	ts := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	store.InsertBulk(ctx, []*domain.PricePoint{
		{Asset: "SOL", Timestamp: ts, PriceAUD: decimal.RequireFromString("150.25"), Source: "test"},
	})

	// Inner provider has no prices; a hit must come from the store.
	inner := NewStaticProvider(nil, nil)
	provider := NewCachedProvider(inner, store, "test", nil)

	price, err := provider.PriceAUD(ctx, "SOL", ts.Add(10*time.Minute))
	if err != nil {
		t.Fatalf("PriceAUD: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("expected 150.25, got %s", price)
	}
}

func TestCachedProvider_FallthroughWritesBack(t *testing.T) {
	store := memory.NewPricePointStore()
	ctx := context.Background()

	inner := NewStaticProvider(map[string]decimal.Decimal{
		"SOL": decimal.RequireFromString("150.25"),
	}, nil)
	provider := NewCachedProvider(inner, store, "test", nil)

	ts := time.Date(2024, 1, 15, 10, 0, 30, 0, time.UTC)
	price, err := provider.PriceAUD(ctx, "SOL", ts)
	if err != nil {
		t.Fatalf("PriceAUD: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("expected 150.25, got %s", price)
	}

	// The resolved price is persisted, minute-bucketed.
	point, err := store.GetLatestBefore(ctx, "SOL", ts, time.Hour)
	if err != nil {
		t.Fatalf("GetLatestBefore after write-back: %v", err)
	}
	if !point.Timestamp.Equal(MinuteBucket(ts)) {
		t.Errorf("expected bucketed timestamp %v, got %v", MinuteBucket(ts), point.Timestamp)
	}
}

func TestCachedProvider_InnerUnavailable(t *testing.T) {
	store := memory.NewPricePointStore()
	inner := NewStaticProvider(nil, nil)
	provider := NewCachedProvider(inner, store, "test", nil)

	_, err := provider.PriceAUD(context.Background(), "SOL", time.Now())
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestStaticProvider(t *testing.T) {
	provider := NewStaticProvider(
		map[string]decimal.Decimal{"SOL": decimal.RequireFromString("150.25")},
		map[string]decimal.Decimal{"AUD/USD": decimal.RequireFromString("0.6685")},
	)
	ctx := context.Background()

	price, err := provider.PriceAUD(ctx, "SOL", time.Now())
	if err != nil {
		t.Fatalf("PriceAUD: %v", err)
	}
	if !price.Equal(decimal.RequireFromString("150.25")) {
		t.Errorf("expected 150.25, got %s", price)
	}

	if _, err := provider.PriceAUD(ctx, "unknown", time.Now()); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}

	rate, err := provider.FXRate(ctx, "AUD/USD", time.Now())
	if err != nil {
		t.Fatalf("FXRate: %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("0.6685")) {
		t.Errorf("expected 0.6685, got %s", rate)
	}
}
