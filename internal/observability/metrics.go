package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for PoolLedger.
type Metrics struct {
	// --- Engine ---
	EventsApplied      *prometheus.CounterVec
	EventsRejected     *prometheus.CounterVec
	EventApplyDuration *prometheus.HistogramVec
	EngineSequence     prometheus.Gauge
	StateHashDuration  prometheus.Histogram

	// --- Ledger state ---
	PoolBanks          prometheus.Gauge
	BankDepositShares  *prometheus.GaugeVec
	BankBorrowShares   *prometheus.GaugeVec
	CapacityRejections *prometheus.CounterVec

	// --- Persistence ---
	PersistBatchDuration prometheus.Histogram
	PersistBatchSize     prometheus.Histogram
	PersistEventsWritten prometheus.Counter
	PersistErrors        *prometheus.CounterVec
	PersistLastSequence  prometheus.Gauge

	// --- Snapshot ---
	SnapshotTaken    prometheus.Counter
	SnapshotDuration prometheus.Histogram

	// --- Idempotency & ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	SequenceGaps          *prometheus.CounterVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	queryBuckets := []float64{
		0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
		0.01, 0.025, 0.05, 0.1, 0.25,
	}

	return &Metrics{
		EventsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_engine_events_applied_total",
			Help: "Events successfully applied by the engine",
		}, []string{"event_type"}),

		EventsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_engine_events_rejected_total",
			Help: "Events rejected (dedup, gap, validation, capacity, overflow)",
		}, []string{"event_type", "reason"}),

		EventApplyDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_engine_event_apply_duration_seconds",
			Help:    "Time to apply a single event",
			Buckets: latencyBuckets,
		}, []string{"event_type"}),

		EngineSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_engine_sequence",
			Help: "Current engine sequence",
		}),

		StateHashDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_engine_state_hash_duration_seconds",
			Help:    "Time to compute the state hash",
			Buckets: latencyBuckets,
		}),

		PoolBanks: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_banks",
			Help: "Populated bank slots in the lending pool",
		}),

		BankDepositShares: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_bank_deposit_shares",
			Help: "Total deposit shares per bank",
		}, []string{"asset_id"}),

		BankBorrowShares: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pool_bank_borrow_shares",
			Help: "Total borrow shares per bank",
		}, []string{"asset_id"}),

		CapacityRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_bank_capacity_rejections_total",
			Help: "Deposits rejected by the capacity check",
		}, []string{"asset_id"}),

		PersistBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_persist_batch_duration_seconds",
			Help:    "Time to flush one persistence batch",
			Buckets: queryBuckets,
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_persist_batch_size",
			Help:    "Rows per persistence batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_events_written_total",
			Help: "Event rows written to Postgres",
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_persist_errors_total",
			Help: "Persistence failures by stage",
		}, []string{"stage"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_persist_last_sequence",
			Help: "Highest sequence durably written",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_snapshot_taken_total",
			Help: "Group snapshots persisted",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_snapshot_duration_seconds",
			Help:    "Time to persist a group snapshot",
			Buckets: queryBuckets,
		}),

		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_idempotency_duplicates_total",
			Help: "Duplicate events skipped, by tier",
		}, []string{"event_type", "tier"}),

		SequenceGaps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_sequence_gaps_total",
			Help: "Source sequence gaps detected per partition",
		}, []string{"partition"}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_query_requests_total",
			Help: "Query API requests",
		}, []string{"endpoint"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_query_duration_seconds",
			Help:    "Query API latency",
			Buckets: queryBuckets,
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_query_errors_total",
			Help: "Query API errors",
		}, []string{"endpoint"}),
	}
}
