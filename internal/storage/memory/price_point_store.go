package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/storage"
)

// PricePointStore is an in-memory implementation of storage.PricePointStore.
type PricePointStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PricePoint // asset|unix timestamp
}

// NewPricePointStore creates a new in-memory price point store.
func NewPricePointStore() *PricePointStore {
	return &PricePointStore{
		data: make(map[string]*domain.PricePoint),
	}
}

func pointKey(asset string, ts time.Time) string {
	return fmt.Sprintf("%s|%d", asset, ts.UTC().Unix())
}

// InsertBulk adds multiple points. Duplicate (asset, timestamp) points are
// ignored.
func (s *PricePointStore) InsertBulk(_ context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, point := range points {
		if point == nil || point.Asset == "" {
			return storage.ErrInvalidInput
		}
		key := pointKey(point.Asset, point.Timestamp)
		if _, exists := s.data[key]; exists {
			continue
		}
		copy := *point
		s.data[key] = &copy
	}
	return nil
}

// GetLatestBefore retrieves the most recent point for an asset at or before
// ts, no older than ts-maxAge. Returns ErrNotFound if none.
func (s *PricePointStore) GetLatestBefore(_ context.Context, asset string, ts time.Time, maxAge time.Duration) (*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := ts.Add(-maxAge)

	var candidates []*domain.PricePoint
	for _, point := range s.data {
		if point.Asset != asset {
			continue
		}
		if point.Timestamp.After(ts) || point.Timestamp.Before(cutoff) {
			continue
		}
		candidates = append(candidates, point)
	}
	if len(candidates) == 0 {
		return nil, storage.ErrNotFound
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.After(candidates[j].Timestamp)
	})
	copy := *candidates[0]
	return &copy, nil
}

var _ storage.PricePointStore = (*PricePointStore)(nil)
