package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal tracks engine operations by result
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletguard_operations_total",
			Help: "Total number of engine operations",
		},
		[]string{"operation", "result"},
	)

	// RejectionsTotal tracks failed operations by error category
	RejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletguard_rejections_total",
			Help: "Total number of rejected operations",
		},
		[]string{"operation", "category"},
	)

	// QueuedTransactions tracks large transfers waiting for confirmation
	QueuedTransactions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletguard_queued_transactions",
			Help: "Number of pending queued transactions",
		},
	)

	// ActiveRecoveries tracks recovery requests collecting approvals
	ActiveRecoveries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletguard_active_recoveries",
			Help: "Number of recovery requests collecting approvals",
		},
	)

	// EventsEmitted tracks security events delivered to the sinks
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletguard_events_emitted_total",
			Help: "Total number of security events emitted",
		},
		[]string{"type"},
	)

	// EmitErrorsTotal tracks sink failures
	EmitErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletguard_emit_errors_total",
			Help: "Total number of failed event deliveries",
		},
		[]string{"sink"},
	)

	// APIRequestsTotal tracks HTTP API requests
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletguard_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	// APILatency tracks HTTP API latency
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "walletguard_api_latency_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// RPCCallsTotal tracks JSON-RPC calls per provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletguard_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method", "result"},
	)

	// SnapshotsTotal tracks persisted engine snapshots
	SnapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "walletguard_snapshots_total",
			Help: "Total number of snapshot attempts",
		},
		[]string{"result"},
	)

	// EventsPruned tracks events removed by retention
	EventsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "walletguard_events_pruned_total",
			Help: "Total number of events removed by retention",
		},
	)

	// DBConnectionPoolUsage tracks the percentage of used connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "walletguard_db_connection_pool_usage",
			Help: "Database connection pool usage percentage",
		},
	)
)
