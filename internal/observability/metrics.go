// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	TransactionsFetched   prometheus.Counter
	TransactionsStored    prometheus.Counter
	TransactionsDuplicate prometheus.Counter
	WatcherNotifications  prometheus.Counter

	// Normalization metrics
	EventsNormalized    prometheus.Counter
	DuplicatesDropped   prometheus.Counter
	NormalizationErrors prometheus.Counter

	// Reconciliation metrics
	TransfersMatched *prometheus.CounterVec // by move class

	// Accounting metrics
	DisposalsEmitted prometheus.Counter
	LotMovesEmitted  prometheus.Counter
	WarningsEmitted  *prometheus.CounterVec // by warning code
	LotErrors        prometheus.Counter

	// Pricing metrics
	PriceLookups     *prometheus.CounterVec // by source
	PriceCacheHits   prometheus.Counter
	PriceUnavailable prometheus.Counter

	// Pipeline metrics
	PipelineRunsTotal *prometheus.CounterVec // by status
	PipelineDuration  prometheus.Histogram
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "solana_cgt"
	}

	return &Metrics{
		TransactionsFetched: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_fetched_total",
			Help:      "Total number of transactions returned by the source",
		}),
		TransactionsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_stored_total",
			Help:      "Total number of transactions written to the cache",
		}),
		TransactionsDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "transactions_duplicate_total",
			Help:      "Total number of already-cached transactions skipped",
		}),
		WatcherNotifications: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "watcher_notifications_total",
			Help:      "Total number of wallet activity notifications received",
		}),

		EventsNormalized: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "events_total",
			Help:      "Total number of normalized events emitted",
		}),
		DuplicatesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "duplicates_dropped_total",
			Help:      "Total number of duplicate events dropped by event ID",
		}),
		NormalizationErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalization",
			Name:      "errors_total",
			Help:      "Total number of malformed raw records rejected",
		}),

		TransfersMatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconciliation",
			Name:      "transfers_matched_total",
			Help:      "Total number of reconciled transfer events by move class",
		}, []string{"class"}),

		DisposalsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounting",
			Name:      "disposals_total",
			Help:      "Total number of disposal records emitted",
		}),
		LotMovesEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounting",
			Name:      "lot_moves_total",
			Help:      "Total number of lot move records emitted",
		}),
		WarningsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounting",
			Name:      "warnings_total",
			Help:      "Total number of run warnings by code",
		}, []string{"code"}),
		LotErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "accounting",
			Name:      "lot_errors_total",
			Help:      "Total number of unsatisfiable specific-lot disposals",
		}),

		PriceLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "lookups_total",
			Help:      "Total number of price lookups by source",
		}, []string{"source"}),
		PriceCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "cache_hits_total",
			Help:      "Total number of price lookups served from the store",
		}),
		PriceUnavailable: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "unavailable_total",
			Help:      "Total number of price lookups with no resolvable price",
		}),

		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of computation runs by status",
		}, []string{"status"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Computation run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordFetch records one wallet fetch outcome.
func RecordFetch(fetched, stored, duplicates int) {
	DefaultMetrics.TransactionsFetched.Add(float64(fetched))
	DefaultMetrics.TransactionsStored.Add(float64(stored))
	DefaultMetrics.TransactionsDuplicate.Add(float64(duplicates))
}

// RecordNormalization records one normalization pass.
func RecordNormalization(events, duplicates, errors int) {
	DefaultMetrics.EventsNormalized.Add(float64(events))
	DefaultMetrics.DuplicatesDropped.Add(float64(duplicates))
	DefaultMetrics.NormalizationErrors.Add(float64(errors))
}

// RecordTransferMatch records a reconciled transfer by class.
func RecordTransferMatch(class string) {
	DefaultMetrics.TransfersMatched.WithLabelValues(class).Inc()
}

// RecordWarning records a run warning by code.
func RecordWarning(code string) {
	DefaultMetrics.WarningsEmitted.WithLabelValues(code).Inc()
}

// RecordPipelineRun records a computation run.
func RecordPipelineRun(status string, durationSeconds float64) {
	DefaultMetrics.PipelineRunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.PipelineDuration.Observe(durationSeconds)
}
