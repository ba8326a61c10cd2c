package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-cgt/internal/domain"
	"solana-cgt/internal/solana"
	"solana-cgt/internal/storage"
)

const (
	// DefaultPageLimit is the page size requested from the transaction source.
	DefaultPageLimit = 100
	// DefaultConcurrency bounds parallel per-wallet fetches.
	DefaultConcurrency = 4
)

// Result summarizes one wallet's fetch.
type Result struct {
	Wallet     string
	Fetched    int // transactions returned by the source
	Stored     int // new rows written to the cache
	Duplicates int // already cached, skipped
	Skipped    int // failed transactions, no balance effect
	Duration   time.Duration
}

// Fetcher pulls wallet transaction history from a transaction source into
// the raw transaction cache. Fetches are incremental: the newest cached
// signature bounds each run, so re-running against a warm cache is cheap.
type Fetcher struct {
	source      solana.TransactionSource
	store       storage.RawTransactionStore
	pageLimit   int
	concurrency int
	logger      *log.Logger
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithPageLimit sets the per-page transaction count.
func WithPageLimit(limit int) FetcherOption {
	return func(f *Fetcher) {
		f.pageLimit = limit
	}
}

// WithConcurrency sets the number of wallets fetched in parallel.
func WithConcurrency(n int) FetcherOption {
	return func(f *Fetcher) {
		f.concurrency = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) FetcherOption {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// NewFetcher creates a Fetcher over the given source and cache.
func NewFetcher(source solana.TransactionSource, store storage.RawTransactionStore, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		source:      source,
		store:       store,
		pageLimit:   DefaultPageLimit,
		concurrency: DefaultConcurrency,
		logger:      log.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchWallet pulls all transactions for one wallet newer than the cache
// cursor, paging backwards from the chain tip.
func (f *Fetcher) FetchWallet(ctx context.Context, wallet string) (*Result, error) {
	if wallet == "" {
		return nil, fmt.Errorf("fetch wallet: empty address")
	}
	start := time.Now()
	result := &Result{Wallet: wallet}

	until, err := f.store.LatestSignature(ctx, wallet)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("fetch wallet %s: cursor: %w", wallet, err)
	}

	before := ""
	for {
		page, err := f.source.GetTransactions(ctx, wallet, &solana.FetchOpts{
			Before: before,
			Until:  until,
			Limit:  f.pageLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("fetch wallet %s: %w", wallet, err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			result.Fetched++
			tx, err := DecodeTransaction(&page[i])
			if err != nil {
				return nil, fmt.Errorf("fetch wallet %s: %w", wallet, err)
			}
			if tx == nil {
				result.Skipped++
				continue
			}
			if err := f.insert(ctx, wallet, tx, result); err != nil {
				return nil, err
			}
		}

		if len(page) < f.pageLimit {
			break
		}
		before = page[len(page)-1].Signature
	}

	result.Duration = time.Since(start)
	f.logger.Printf("fetched wallet %s: %d transactions, %d stored, %d duplicates, %d skipped in %v",
		wallet, result.Fetched, result.Stored, result.Duplicates, result.Skipped, result.Duration)
	return result, nil
}

func (f *Fetcher) insert(ctx context.Context, wallet string, tx *domain.RawTransaction, result *Result) error {
	err := f.store.Insert(ctx, wallet, tx)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		result.Duplicates++
		return nil
	case err != nil:
		return fmt.Errorf("fetch wallet %s: store %s: %w", wallet, tx.Signature, err)
	default:
		result.Stored++
		return nil
	}
}

// FetchAll fetches every wallet, bounded by the configured concurrency.
// Results are returned in wallet order.
func (f *Fetcher) FetchAll(ctx context.Context, wallets []string) ([]*Result, error) {
	results := make([]*Result, len(wallets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, wallet := range wallets {
		g.Go(func() error {
			result, err := f.FetchWallet(ctx, wallet)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
