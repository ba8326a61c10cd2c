package memory

import (
	"context"
	"fmt"
	"sync"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/storage"
)

// RawTransactionStore is an in-memory implementation of
// storage.RawTransactionStore.
type RawTransactionStore struct {
	mu      sync.RWMutex
	nextSeq int64
	byKey   map[string]struct{}                   // wallet|signature
	byAddr  map[string][]*domain.RawTransaction   // wallet -> txs, ingestion order
}

// NewRawTransactionStore creates a new in-memory raw transaction store.
func NewRawTransactionStore() *RawTransactionStore {
	return &RawTransactionStore{
		nextSeq: 1,
		byKey:   make(map[string]struct{}),
		byAddr:  make(map[string][]*domain.RawTransaction),
	}
}

func txKey(wallet, signature string) string {
	return fmt.Sprintf("%s|%s", wallet, signature)
}

// Insert adds a raw transaction for a wallet, assigning its ingestion
// sequence. Returns ErrDuplicateKey if (wallet, signature) exists.
func (s *RawTransactionStore) Insert(_ context.Context, wallet string, tx *domain.RawTransaction) error {
	if wallet == "" || tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}

	key := txKey(wallet, tx.Signature)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[key]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *tx
	copy.Legs = append([]domain.RawLeg(nil), tx.Legs...)
	copy.IngestSeq = s.nextSeq
	s.nextSeq++

	s.byKey[key] = struct{}{}
	s.byAddr[wallet] = append(s.byAddr[wallet], &copy)
	tx.IngestSeq = copy.IngestSeq
	return nil
}

// GetByWallet retrieves all cached transactions for a wallet, ordered by
// ingestion sequence ASC.
func (s *RawTransactionStore) GetByWallet(_ context.Context, wallet string) ([]*domain.RawTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.byAddr[wallet]
	result := make([]*domain.RawTransaction, 0, len(txs))
	for _, tx := range txs {
		copy := *tx
		copy.Legs = append([]domain.RawLeg(nil), tx.Legs...)
		result = append(result, &copy)
	}
	return result, nil
}

// LatestSignature returns the most recently ingested signature for a wallet.
// Returns ErrNotFound when the wallet has no cached transactions.
func (s *RawTransactionStore) LatestSignature(_ context.Context, wallet string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs := s.byAddr[wallet]
	if len(txs) == 0 {
		return "", storage.ErrNotFound
	}
	return txs[len(txs)-1].Signature, nil
}

var _ storage.RawTransactionStore = (*RawTransactionStore)(nil)
