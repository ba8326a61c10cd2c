// Package pipeline wires the computation stages into a single run: cached
// raw transactions through normalization, ordering, reconciliation and the
// lot ledger, into the final report.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"solana-cgt/internal/accounting"
	"solana-cgt/internal/domain"
	"solana-cgt/internal/normalization"
	"solana-cgt/internal/observability"
	"solana-cgt/internal/pricing"
	"solana-cgt/internal/reconciliation"
	"solana-cgt/internal/reporting"
	"solana-cgt/internal/storage"
)

// Config parameterizes one computation run.
type Config struct {
	Wallets          []string
	Method           string // FIFO | LIFO | HIFO | SPECIFIC
	SpecificLots     accounting.SpecificLots
	FinancialYear    string // empty = all history
	ExternalTracking bool
	MatchWindow      time.Duration              // self-transfer window; 0 = default
	StableRates      map[string]decimal.Decimal // stable mint -> AUD per unit
	Concurrency      int                        // normalization fan-out; 0 = default
	LongTermDays     int                        // discount threshold; 0 = default
}

// Runner executes computation runs against a raw transaction cache.
type Runner struct {
	txStore storage.RawTransactionStore
	prices  pricing.Provider
	metrics *observability.Metrics
	logger  *log.Logger
}

// NewRunner creates a pipeline runner.
func NewRunner(txStore storage.RawTransactionStore, prices pricing.Provider, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{txStore: txStore, prices: prices, logger: logger}
}

// WithMetrics enables run metrics.
func (r *Runner) WithMetrics(m *observability.Metrics) *Runner {
	r.metrics = m
	return r
}

// Run executes one computation over the cached transactions of the
// configured wallets. The run is deterministic: the same cache contents and
// config produce an identical report apart from the generation timestamp.
func (r *Runner) Run(ctx context.Context, cfg Config) (*reporting.Report, error) {
	start := time.Now()
	report, err := r.run(ctx, cfg)
	if r.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		r.metrics.PipelineRunsTotal.WithLabelValues(status).Inc()
		r.metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	}
	return report, err
}

func (r *Runner) run(ctx context.Context, cfg Config) (*reporting.Report, error) {
	if len(cfg.Wallets) == 0 {
		return nil, fmt.Errorf("pipeline: no wallets configured")
	}
	strategy, err := accounting.NewStrategy(cfg.Method, cfg.SpecificLots)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	var txs []*domain.RawTransaction
	for _, wallet := range cfg.Wallets {
		walletTxs, err := r.txStore.GetByWallet(ctx, wallet)
		if err != nil {
			return nil, fmt.Errorf("pipeline: load wallet %s: %w", wallet, err)
		}
		txs = append(txs, walletTxs...)
	}
	r.logger.Printf("pipeline: loaded %d raw transactions for %d wallets", len(txs), len(cfg.Wallets))

	normalizer := normalization.NewNormalizer(cfg.Wallets, cfg.StableRates)
	normRes, err := normalization.NewRunner(normalizer, cfg.Concurrency, r.logger).Run(ctx, txs)
	if err != nil {
		return nil, fmt.Errorf("pipeline: normalize: %w", err)
	}

	events := normalization.DedupAndOrder(normRes.Events)
	if r.metrics != nil {
		r.metrics.EventsNormalized.Add(float64(len(events)))
		r.metrics.DuplicatesDropped.Add(float64(len(normRes.Events) - len(events)))
		r.metrics.NormalizationErrors.Add(float64(len(normRes.Errors)))
	}

	reconciler := reconciliation.NewReconciler(cfg.Wallets, cfg.MatchWindow, cfg.ExternalTracking)
	recWarnings := reconciler.Reconcile(events)
	if r.metrics != nil {
		for _, ev := range events {
			if ev.Move != nil {
				r.metrics.TransfersMatched.WithLabelValues(string(ev.Move.Class)).Inc()
			}
		}
	}

	engine := accounting.NewEngine(strategy, r.prices, r.logger)
	if cfg.LongTermDays > 0 {
		engine = engine.WithLongTermDays(cfg.LongTermDays)
	}
	runRes, err := engine.Process(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("pipeline: ledger: %w", err)
	}

	// Stage order: normalization warnings, then reconciliation, then ledger.
	warnings := make([]domain.Warning, 0, len(normRes.Warnings)+len(recWarnings)+len(runRes.Warnings))
	warnings = append(warnings, normRes.Warnings...)
	warnings = append(warnings, recWarnings...)
	warnings = append(warnings, runRes.Warnings...)
	runRes.Warnings = warnings
	if r.metrics != nil {
		r.metrics.DisposalsEmitted.Add(float64(len(runRes.Disposals)))
		r.metrics.LotMovesEmitted.Add(float64(len(runRes.LotMoves)))
		r.metrics.LotErrors.Add(float64(len(runRes.LotErrors)))
		for _, w := range warnings {
			r.metrics.WarningsEmitted.WithLabelValues(string(w.Code)).Inc()
		}
	}

	report, err := reporting.NewGenerator().Generate(runRes, reporting.Options{
		Method:        strategy.Name(),
		Wallets:       cfg.Wallets,
		FinancialYear: cfg.FinancialYear,
	})
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	r.logger.Printf("pipeline: %d disposals, %d lot moves, %d open lots, %d warnings",
		len(report.Disposals), len(report.LotMoves), len(report.OpenLots), len(report.Warnings))
	return report, nil
}
