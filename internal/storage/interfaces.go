package storage

import (
	"context"
	"time"

	"solana-cgt/internal/domain"
)

// RawTransactionStore provides access to the raw transaction cache.
// Records are append-only: a (wallet, signature) pair is stored once, in
// ingestion order, so repeated fetches are idempotent.
type RawTransactionStore interface {
	// Insert adds a raw transaction fetched for a wallet, assigning its
	// ingestion sequence. Returns ErrDuplicateKey if (wallet, signature)
	// exists.
	Insert(ctx context.Context, wallet string, tx *domain.RawTransaction) error

	// GetByWallet retrieves all cached transactions for a wallet, ordered
	// by ingestion sequence ASC.
	GetByWallet(ctx context.Context, wallet string) ([]*domain.RawTransaction, error)

	// LatestSignature returns the most recently ingested signature for a
	// wallet, used as the pagination cursor for incremental fetches.
	// Returns ErrNotFound when the wallet has no cached transactions.
	LatestSignature(ctx context.Context, wallet string) (string, error)
}

// PricePointStore provides access to resolved historical prices.
type PricePointStore interface {
	// InsertBulk adds multiple points. Duplicate (asset, timestamp) points
	// are ignored; price resolution is idempotent.
	InsertBulk(ctx context.Context, points []*domain.PricePoint) error

	// GetLatestBefore retrieves the most recent point for an asset at or
	// before ts, no older than ts-maxAge. Returns ErrNotFound if none.
	GetLatestBefore(ctx context.Context, asset string, ts time.Time, maxAge time.Duration) (*domain.PricePoint, error)
}
