// Package main runs one capital-gains computation over the raw transaction
// cache and writes the report artifacts to the output directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/accounting"
	"solana-cgt/internal/observability"
	"solana-cgt/internal/pipeline"
	"solana-cgt/internal/pricing"
	"solana-cgt/internal/reporting"
	"solana-cgt/internal/storage"
	chstore "solana-cgt/internal/storage/clickhouse"
	"solana-cgt/internal/storage/memory"
	pgstore "solana-cgt/internal/storage/postgres"
	"solana-cgt/internal/verification"
)

func main() {
	wallets := flag.String("wallets", "", "Comma-separated wallet addresses")
	method := flag.String("method", "FIFO", "Lot matching method: FIFO, LIFO, HIFO or SPECIFIC")
	specificLotsPath := flag.String("specific-lots", "", "JSON file mapping event IDs to lot selections (SPECIFIC method)")
	financialYear := flag.String("financial-year", "", "Australian financial year, e.g. 2023-2024 (empty = all history)")
	externalTracking := flag.Bool("external-tracking", false, "Restore cost base on returns from external custody")
	matchWindow := flag.Duration("match-window", 0, "Self-transfer matching window (0 = default)")
	longTermDays := flag.Int("long-term-days", 0, "Discount holding threshold in days (0 = default)")
	stableRates := flag.String("stable-rates", "", "Stablecoin AUD rates, e.g. USDC=1.52,USDT=1.52")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string for the raw cache")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage instead of PostgreSQL")
	livePricing := flag.Bool("live-pricing", false, "Resolve missing prices from Coingecko and RBA")
	coins := flag.String("coins", "", "Asset to Coingecko coin ID mappings, e.g. <mint>=bonk")
	staticPrices := flag.String("prices", "", "Static AUD unit prices, e.g. SOL=210.50")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string for the price cache")
	outputDir := flag.String("output-dir", "out", "Output directory for report artifacts")
	verifyRuns := flag.Int("verify-runs", 0, "Re-run the computation N times and check determinism (0 = off)")
	flag.Parse()

	logger := log.New(os.Stdout, "[compute] ", log.LstdFlags)
	ctx := context.Background()

	walletList := splitList(*wallets)
	if len(walletList) == 0 {
		logger.Fatal("No wallets specified. Use --wallets")
	}

	txStore, cleanup, err := openStore(ctx, *useMemory, *postgresDSN)
	if err != nil {
		logger.Fatalf("Storage: %v", err)
	}
	defer cleanup()

	prices, closePrices, err := buildProvider(ctx, *livePricing, *coins, *staticPrices, *clickhouseDSN, logger)
	if err != nil {
		logger.Fatalf("Pricing: %v", err)
	}
	defer closePrices()

	specific, err := loadSpecificLots(*specificLotsPath)
	if err != nil {
		logger.Fatalf("Specific lots: %v", err)
	}
	rates, err := parseDecimalMap(*stableRates)
	if err != nil {
		logger.Fatalf("Stable rates: %v", err)
	}

	cfg := pipeline.Config{
		Wallets:          walletList,
		Method:           *method,
		SpecificLots:     specific,
		FinancialYear:    *financialYear,
		ExternalTracking: *externalTracking,
		MatchWindow:      *matchWindow,
		StableRates:      rates,
		LongTermDays:     *longTermDays,
	}
	runner := pipeline.NewRunner(txStore, prices, logger).WithMetrics(observability.DefaultMetrics)

	if *verifyRuns > 0 {
		verifier := verification.NewRerunVerifier(runner, *verifyRuns)
		result, err := verifier.Verify(ctx, cfg)
		if err != nil {
			logger.Fatalf("Verification: %v", err)
		}
		if !result.Match {
			for _, d := range result.Divergences {
				logger.Printf("divergence %s: %v != %v", d.Field, d.Expected, d.Actual)
			}
			logger.Fatalf("Verification failed: %d divergences across %d runs", len(result.Divergences), result.Runs)
		}
		logger.Printf("Verified: %d runs identical", result.Runs)
	}

	report, err := runner.Run(ctx, cfg)
	if err != nil {
		logger.Fatalf("Run: %v", err)
	}

	if err := writeArtifacts(*outputDir, report); err != nil {
		logger.Fatalf("Write report: %v", err)
	}

	logger.Printf("Report written to %s: %d disposals, %d lot moves, %d open lots, %d warnings",
		*outputDir, len(report.Disposals), len(report.LotMoves), len(report.OpenLots), len(report.Warnings))
	logger.Printf("Net gain/loss: %s AUD (discount-eligible gains: %s AUD)",
		report.Overall.GainAUD, report.Overall.DiscountEligibleGainAUD)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
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

// buildProvider assembles the price resolution chain: a static table, or the
// Coingecko/RBA market chain, optionally fronted by a ClickHouse point cache.
func buildProvider(ctx context.Context, live bool, coins, staticPrices, clickhouseDSN string, logger *log.Logger) (pricing.Provider, func(), error) {
	noop := func() {}

	if !live {
		prices, err := parseDecimalMap(staticPrices)
		if err != nil {
			return nil, nil, err
		}
		return pricing.NewStaticProvider(prices, nil), noop, nil
	}

	coinMap := make(map[string]string)
	for _, pair := range splitList(coins) {
		asset, id, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, nil, fmt.Errorf("malformed coin mapping %q", pair)
		}
		coinMap[asset] = id
	}

	var provider pricing.Provider = pricing.NewMarketProvider(
		pricing.NewCoingeckoClient(), pricing.NewRBAFXSource(), coinMap, logger)

	if clickhouseDSN == "" {
		return provider, noop, nil
	}
	conn, err := chstore.NewConn(ctx, clickhouseDSN)
	if err != nil {
		return nil, nil, err
	}
	cached := pricing.NewCachedProvider(provider, chstore.NewPricePointStore(conn), "coingecko", logger)
	return cached, func() { conn.Close() }, nil
}

func loadSpecificLots(path string) (accounting.SpecificLots, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string][]struct {
		LotID    string          `json:"lot_id"`
		Quantity decimal.Decimal `json:"quantity"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	lots := make(accounting.SpecificLots, len(raw))
	for eventID, selections := range raw {
		for _, sel := range selections {
			lots[eventID] = append(lots[eventID], accounting.LotSelection{LotID: sel.LotID, Quantity: sel.Quantity})
		}
	}
	return lots, nil
}

func parseDecimalMap(s string) (map[string]decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	out := make(map[string]decimal.Decimal)
	for _, pair := range splitList(s) {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("malformed entry %q", pair)
		}
		d, err := decimal.NewFromString(value)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", pair, err)
		}
		out[key] = d
	}
	return out, nil
}

func writeArtifacts(dir string, report *reporting.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := map[string]string{
		"report.md":            reporting.RenderMarkdown(report),
		"disposals.csv":        reporting.RenderDisposalsCSV(report.Disposals),
		"open_lots.csv":        reporting.RenderOpenLotsCSV(report.OpenLots),
		"asset_summaries.csv":  reporting.RenderAssetSummariesCSV(report.AssetSummaries),
		"wallet_summaries.csv": reporting.RenderWalletSummariesCSV(report.WalletSummaries),
		"warnings.csv":         reporting.RenderWarningsCSV(report.Warnings),
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			return err
		}
	}
	return nil
}
