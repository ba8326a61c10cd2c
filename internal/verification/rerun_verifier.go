package verification

import (
	"context"
	"errors"

	"solana-cgt/internal/pipeline"
	"solana-cgt/internal/reporting"
)

// DefaultRuns is the total number of pipeline executions per check: one
// baseline plus one rerun.
const DefaultRuns = 2

// ErrNoRuns is returned when the verifier is configured with fewer than two
// executions; a single run has nothing to compare against.
var ErrNoRuns = errors.New("verification requires at least two runs")

// RerunVerifier executes the accounting pipeline repeatedly over the same
// cached input and compares each rerun against the first run.
type RerunVerifier struct {
	runner *pipeline.Runner
	runs   int
}

// NewRerunVerifier creates a verifier over the given pipeline runner.
// runs <= 0 selects DefaultRuns.
func NewRerunVerifier(runner *pipeline.Runner, runs int) *RerunVerifier {
	if runs <= 0 {
		runs = DefaultRuns
	}
	return &RerunVerifier{runner: runner, runs: runs}
}

// Verify runs the pipeline r.runs times with the same configuration and
// reports any divergence between the baseline report and the reruns.
func (v *RerunVerifier) Verify(ctx context.Context, cfg pipeline.Config) (*Result, error) {
	if v.runs < 2 {
		return nil, ErrNoRuns
	}

	baseline, err := v.runner.Run(ctx, cfg)
	if err != nil {
		return nil, err
	}

	result := &Result{Runs: v.runs, Match: true}
	for i := 1; i < v.runs; i++ {
		rerun, err := v.runner.Run(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if divergences := CompareReports(baseline, rerun); len(divergences) > 0 {
			result.Match = false
			result.Divergences = append(result.Divergences, divergences...)
		}
		// The rendered artifacts must also agree byte for byte; a divergence
		// here with identical fields means rendering itself is unstable.
		if reporting.RenderDisposalsCSV(baseline.Disposals) != reporting.RenderDisposalsCSV(rerun.Disposals) {
			result.Match = false
			result.Divergences = append(result.Divergences, FieldDivergence{
				Field: "RenderDisposalsCSV", Expected: "baseline bytes", Actual: "rerun bytes",
			})
		}
		if reporting.RenderOpenLotsCSV(baseline.OpenLots) != reporting.RenderOpenLotsCSV(rerun.OpenLots) {
			result.Match = false
			result.Divergences = append(result.Divergences, FieldDivergence{
				Field: "RenderOpenLotsCSV", Expected: "baseline bytes", Actual: "rerun bytes",
			})
		}
	}
	return result, nil
}
