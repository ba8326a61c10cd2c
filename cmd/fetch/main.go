// Package main fetches wallet transaction history into the raw cache.
// One-shot by default; --watch keeps the cache current from a WebSocket feed.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"solana-cgt/internal/ingestion"
	"solana-cgt/internal/observability"
	"solana-cgt/internal/solana"
	"solana-cgt/internal/storage"
	"solana-cgt/internal/storage/memory"
	pgstore "solana-cgt/internal/storage/postgres"
)

func main() {
	wallets := flag.String("wallets", "", "Comma-separated wallet addresses to fetch")
	apiKey := flag.String("api-key", os.Getenv("HELIUS_API_KEY"), "Helius API key (defaults to HELIUS_API_KEY)")
	baseURL := flag.String("base-url", "", "Override enhanced transactions API base URL")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for the raw cache")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	pageLimit := flag.Int("page-limit", ingestion.DefaultPageLimit, "Signatures per page")
	concurrency := flag.Int("concurrency", ingestion.DefaultConcurrency, "Concurrent wallet fetches")
	watch := flag.Bool("watch", false, "Keep fetching as new transactions confirm")
	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint (required with --watch)")
	metricsAddr := flag.String("metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")
	flag.Parse()

	logger := log.New(os.Stdout, "[fetch] ", log.LstdFlags)

	walletList := splitWallets(*wallets)
	if len(walletList) == 0 {
		logger.Fatal("No wallets specified. Use --wallets")
	}
	for _, w := range walletList {
		if err := solana.ValidateAddress(w); err != nil {
			logger.Fatalf("Invalid wallet %s: %v", w, err)
		}
	}
	if *apiKey == "" {
		logger.Fatal("No API key. Use --api-key or set HELIUS_API_KEY")
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", observability.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})
			logger.Printf("Starting metrics server on %s", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil && err != http.ErrServerClosed {
				logger.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	store, cleanup, err := openStore(ctx, *useMemory, *postgresDSN)
	if err != nil {
		logger.Fatalf("Storage: %v", err)
	}
	defer cleanup()

	var clientOpts []solana.ClientOption
	if *baseURL != "" {
		clientOpts = append(clientOpts, solana.WithBaseURL(*baseURL))
	}
	source := solana.NewHTTPClient(*apiKey, clientOpts...)

	fetcher := ingestion.NewFetcher(source, store,
		ingestion.WithPageLimit(*pageLimit),
		ingestion.WithConcurrency(*concurrency),
		ingestion.WithLogger(logger),
	)

	results, err := fetcher.FetchAll(ctx, walletList)
	if err != nil {
		logger.Fatalf("Fetch: %v", err)
	}
	for _, res := range results {
		logger.Printf("%s: fetched=%d stored=%d duplicates=%d skipped=%d in %s",
			res.Wallet, res.Fetched, res.Stored, res.Duplicates, res.Skipped, res.Duration.Round(time.Millisecond))
	}

	if !*watch {
		return
	}
	if *wsEndpoint == "" {
		logger.Fatal("--watch requires --ws-endpoint")
	}

	watcher, err := solana.NewWalletWatcher(ctx, *wsEndpoint, walletList, nil, logger)
	if err != nil {
		logger.Fatalf("Watcher: %v", err)
	}
	defer watcher.Close()

	logger.Printf("Watching %d wallets", len(walletList))
	if err := fetcher.Watch(ctx, watcher.Notifications(), walletList); err != nil && err != context.Canceled {
		logger.Fatalf("Watch: %v", err)
	}
	logger.Println("Shutdown complete")
}

func splitWallets(s string) []string {
	var out []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func openStore(ctx context.Context, useMemory bool, dsn string) (storage.RawTransactionStore, func(), error) {
	if useMemory || dsn == "" {
		return memory.NewRawTransactionStore(), func() {}, nil
	}
	pool, err := pgstore.NewPool(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	return pgstore.NewRawTransactionStore(pool), pool.Close, nil
}
