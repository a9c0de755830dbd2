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
	// Trading metrics
	TradesAccepted *prometheus.CounterVec
	TradesRejected *prometheus.CounterVec
	CashMovements  *prometheus.CounterVec
	MirrorFailures prometheus.Counter
	TradeLatency   prometheus.Histogram

	// Quote metrics
	QuoteCacheHits    prometheus.Counter
	QuoteCacheMisses  prometheus.Counter
	QuoteStaleServes  prometheus.Counter
	QuoteFetchErrors  prometheus.Counter
	QuoteFetchLatency prometheus.Histogram

	// Snapshot metrics
	SnapshotsBuilt    prometheus.Counter
	SnapshotFallbacks prometheus.Counter
	SnapshotLatency   prometheus.Histogram

	// Ledger metrics
	LedgerQueryDuration *prometheus.HistogramVec
	LedgerQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "tradesim"
	}

	return &Metrics{
		TradesAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_accepted_total",
			Help:      "Total number of accepted trades by side",
		}, []string{"side"}),
		TradesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "trades_rejected_total",
			Help:      "Total number of rejected trades by reason",
		}, []string{"reason"}),
		CashMovements: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "cash_movements_total",
			Help:      "Total number of recorded cash movements by kind",
		}, []string{"kind"}),
		MirrorFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "mirror_failures_total",
			Help:      "Total number of failed history mirror writes",
		}),
		TradeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "validate_and_record_seconds",
			Help:      "Trade validation and commit latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		QuoteCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "cache_hits_total",
			Help:      "Total number of fresh cache hits",
		}),
		QuoteCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses requiring an upstream fetch",
		}),
		QuoteStaleServes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "stale_serves_total",
			Help:      "Total number of expired cache entries served after a failed refresh",
		}),
		QuoteFetchErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "fetch_errors_total",
			Help:      "Total number of upstream quote fetch failures",
		}),
		QuoteFetchLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quotes",
			Name:      "fetch_latency_seconds",
			Help:      "Upstream quote fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		SnapshotsBuilt: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "snapshots_built_total",
			Help:      "Total number of portfolio snapshots built",
		}),
		SnapshotFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "snapshot_fallbacks_total",
			Help:      "Total number of holdings valued at cost basis for lack of a usable quote",
		}),
		SnapshotLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "snapshot_build_seconds",
			Help:      "Snapshot build latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		LedgerQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "query_duration_seconds",
			Help:      "Ledger query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"ledger", "operation"}),
		LedgerQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "query_errors_total",
			Help:      "Total number of ledger query errors",
		}, []string{"ledger", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
