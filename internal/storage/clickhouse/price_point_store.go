package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/storage"
)

// PricePointStore implements storage.PricePointStore using ClickHouse.
// The backing table is a ReplacingMergeTree keyed by (asset, ts), so
// re-inserting the same point is harmless.
type PricePointStore struct {
	conn *Conn
}

// NewPricePointStore creates a new PricePointStore.
func NewPricePointStore(conn *Conn) *PricePointStore {
	return &PricePointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PricePointStore = (*PricePointStore)(nil)

// InsertBulk adds multiple points. Duplicate (asset, timestamp) points are
// collapsed by the table engine.
func (s *PricePointStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_points (asset, ts, price_aud, source)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		if p == nil || p.Asset == "" {
			return storage.ErrInvalidInput
		}
		err = batch.Append(p.Asset, p.Timestamp.UTC(), p.PriceAUD, p.Source)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetLatestBefore retrieves the most recent point for an asset at or before
// ts, no older than ts-maxAge. Returns ErrNotFound if none.
func (s *PricePointStore) GetLatestBefore(ctx context.Context, asset string, ts time.Time, maxAge time.Duration) (*domain.PricePoint, error) {
	query := `
		SELECT asset, ts, price_aud, source
		FROM price_points
		WHERE asset = ? AND ts <= ? AND ts >= ?
		ORDER BY ts DESC
		LIMIT 1
	`

	cutoff := ts.Add(-maxAge)
	row := s.conn.QueryRow(ctx, query, asset, ts.UTC(), cutoff.UTC())

	var (
		point domain.PricePoint
		price decimal.Decimal
	)
	err := row.Scan(&point.Asset, &point.Timestamp, &price, &point.Source)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("scan price point: %w", err)
	}
	point.PriceAUD = price
	point.Timestamp = point.Timestamp.UTC()

	return &point, nil
}
