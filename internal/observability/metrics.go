// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the balance sync service.
type Metrics struct {
	// Connection metrics
	ConnectionState prometheus.Gauge
	ConnectsTotal   prometheus.Counter
	ReconnectsTotal prometheus.Counter
	BreakerTrips    prometheus.Counter
	HeartbeatsTotal prometheus.Counter
	QueuedSends     prometheus.Gauge

	// Routing metrics
	NotificationsTotal *prometheus.CounterVec
	DroppedMessages    prometheus.Counter

	// Subscription metrics
	WatchedWallets prometheus.Gauge

	// Reconciliation metrics
	TransactionsApplied   prometheus.Counter
	DuplicateTransactions prometheus.Counter
	ApplyErrors           prometheus.Counter
	ResolverHits          *prometheus.CounterVec
	SnapshotDuration      prometheus.Histogram

	// Refresh metrics
	RefreshAttempts prometheus.Counter
	RefreshFailures prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "wallet_sync"
	}

	return &Metrics{
		ConnectionState: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connection_state",
			Help:      "Connection lifecycle state (0=closed, 1=connecting, 2=open, 3=disabled)",
		}),
		ConnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connects_total",
			Help:      "Total number of successful socket connects",
		}),
		ReconnectsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "reconnects_scheduled_total",
			Help:      "Total number of reconnect attempts scheduled",
		}),
		BreakerTrips: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "breaker_trips_total",
			Help:      "Times the reconnect circuit breaker tripped",
		}),
		HeartbeatsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "heartbeats_total",
			Help:      "Total number of keepalive pings sent",
		}),
		QueuedSends: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "queued_sends",
			Help:      "Current depth of the outbound send queue",
		}),
		NotificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "notifications_total",
			Help:      "Total notifications routed, by kind",
		}, []string{"kind"}),
		DroppedMessages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "dropped_messages_total",
			Help:      "Total unparseable or unresolvable messages dropped",
		}),
		WatchedWallets: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "subscriptions",
			Name:      "watched_wallets",
			Help:      "Number of wallets currently watched",
		}),
		TransactionsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "transactions_applied_total",
			Help:      "Total balance transactions applied",
		}),
		DuplicateTransactions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duplicate_transactions_total",
			Help:      "Transactions skipped because the signature was already applied",
		}),
		ApplyErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "apply_errors_total",
			Help:      "Transactions abandoned due to resolution or persistence failures",
		}),
		ResolverHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "resolver_hits_total",
			Help:      "Metadata resolutions served, by resolver tier",
		}, []string{"tier"}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "snapshot_duration_seconds",
			Help:      "Duration of full balance snapshot initialization",
			Buckets:   prometheus.DefBuckets,
		}),
		RefreshAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "attempts_total",
			Help:      "Total balance refresh attempts",
		}),
		RefreshFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "refresh",
			Name:      "failures_total",
			Help:      "Balance refreshes that exhausted their retry budget or errored",
		}),
	}
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
