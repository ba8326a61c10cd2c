package normalization

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"solana-cgt/internal/domain"
)

// Result is the output of a normalization run.
type Result struct {
	Events   []*domain.NormalizedEvent
	Warnings []domain.Warning
	// Errors holds per-record normalization failures. A malformed record is
	// isolated; it never aborts the batch.
	Errors []error
}

// Runner normalizes raw transactions concurrently. Each transaction is
// independent, so normalization fans out across workers; output order is
// fixed by the input order, keeping the run deterministic.
type Runner struct {
	normalizer  *Normalizer
	concurrency int
	logger      *log.Logger
}

// NewRunner creates a normalization runner. concurrency <= 0 selects a
// sensible default.
func NewRunner(normalizer *Normalizer, concurrency int, logger *log.Logger) *Runner {
	if concurrency <= 0 {
		concurrency = 8
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{normalizer: normalizer, concurrency: concurrency, logger: logger}
}

// Run normalizes all transactions and returns events in input order.
// Only context cancellation is returned as an error.
func (r *Runner) Run(ctx context.Context, txs []*domain.RawTransaction) (*Result, error) {
	type txResult struct {
		events   []*domain.NormalizedEvent
		warnings []domain.Warning
		err      error
	}
	results := make([]txResult, len(txs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, tx := range txs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			events, warnings, err := r.normalizer.NormalizeTransaction(tx)
			results[i] = txResult{events: events, warnings: warnings, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Result{}
	for _, res := range results {
		if res.err != nil {
			r.logger.Printf("normalization: skipping record: %v", res.err)
			out.Errors = append(out.Errors, res.err)
			continue
		}
		out.Events = append(out.Events, res.events...)
		out.Warnings = append(out.Warnings, res.warnings...)
	}
	return out, nil
}
