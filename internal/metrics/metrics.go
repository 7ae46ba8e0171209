// Package metrics provides Prometheus metrics for the storage core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus metric the storage core and its gRPC
// front end report. It satisfies the small Metrics interfaces declared by
// pkg/bufferpool, pkg/wal, pkg/btree, and pkg/txn, so each package is
// instrumented without importing this one.
type Metrics struct {
	// gRPC request metrics
	GrpcRequestsTotal    *prometheus.CounterVec
	GrpcRequestDuration  *prometheus.HistogramVec
	GrpcRequestsInFlight prometheus.Gauge

	// Pager metrics
	PageCount prometheus.Gauge

	// Buffer pool metrics
	BufferPoolHitsTotal    prometheus.Counter
	BufferPoolMissesTotal  prometheus.Counter
	BufferPoolEvictions    prometheus.Counter
	BufferPoolSize         prometheus.Gauge

	// WAL metrics
	WALFrameWritesTotal prometheus.Counter
	WALCheckpointsTotal prometheus.Counter

	// B+Tree metrics
	BTreeLeafSplitsTotal     prometheus.Counter
	BTreeInternalSplitsTotal prometheus.Counter

	// Transaction metrics
	TxnBeginsTotal    prometheus.Counter
	TxnCommitsTotal   prometheus.Counter
	TxnRollbacksTotal prometheus.Counter

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// New creates and registers every Prometheus metric.
func New() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.GrpcRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "horizondb_grpc_requests_total",
			Help: "Total number of gRPC requests",
		},
		[]string{"method", "status"},
	)

	m.GrpcRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "horizondb_grpc_request_duration_seconds",
			Help:    "Duration of gRPC requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.GrpcRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horizondb_grpc_requests_in_flight",
			Help: "Number of gRPC requests currently being processed",
		},
	)

	m.PageCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horizondb_page_count",
			Help: "Current number of pages in the database file",
		},
	)

	m.BufferPoolHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_buffer_pool_hits_total",
			Help: "Total number of buffer pool fetches resolved from a resident frame",
		},
	)
	m.BufferPoolMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_buffer_pool_misses_total",
			Help: "Total number of buffer pool fetches that required a read-through",
		},
	)
	m.BufferPoolEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_buffer_pool_evictions_total",
			Help: "Total number of buffer pool frame evictions",
		},
	)
	m.BufferPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horizondb_buffer_pool_size",
			Help: "Current number of resident buffer pool frames",
		},
	)

	m.WALFrameWritesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_wal_frame_writes_total",
			Help: "Total number of WAL frames appended",
		},
	)
	m.WALCheckpointsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_wal_checkpoints_total",
			Help: "Total number of WAL checkpoints performed",
		},
	)

	m.BTreeLeafSplitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_btree_leaf_splits_total",
			Help: "Total number of B+Tree leaf page splits",
		},
	)
	m.BTreeInternalSplitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_btree_internal_splits_total",
			Help: "Total number of B+Tree internal page splits",
		},
	)

	m.TxnBeginsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_txn_begins_total",
			Help: "Total number of transactions begun",
		},
	)
	m.TxnCommitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_txn_commits_total",
			Help: "Total number of transactions committed",
		},
	)
	m.TxnRollbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "horizondb_txn_rollbacks_total",
			Help: "Total number of transactions rolled back",
		},
	)

	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "horizondb_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	go m.updateUptime()

	return m
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordGrpcRequest records a gRPC request with its status.
func (m *Metrics) RecordGrpcRequest(method string, status string, duration time.Duration) {
	m.GrpcRequestsTotal.WithLabelValues(method, status).Inc()
	m.GrpcRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// SetPageCount reports the pager's current page count.
func (m *Metrics) SetPageCount(count uint32) { m.PageCount.Set(float64(count)) }

// RecordBufferPoolHit satisfies pkg/bufferpool.Metrics.
func (m *Metrics) RecordBufferPoolHit() { m.BufferPoolHitsTotal.Inc() }

// RecordBufferPoolMiss satisfies pkg/bufferpool.Metrics.
func (m *Metrics) RecordBufferPoolMiss() { m.BufferPoolMissesTotal.Inc() }

// RecordBufferPoolEviction satisfies pkg/bufferpool.Metrics.
func (m *Metrics) RecordBufferPoolEviction() { m.BufferPoolEvictions.Inc() }

// SetBufferPoolSize satisfies pkg/bufferpool.Metrics.
func (m *Metrics) SetBufferPoolSize(size int) { m.BufferPoolSize.Set(float64(size)) }

// RecordWALFrameWrite satisfies pkg/wal.Metrics.
func (m *Metrics) RecordWALFrameWrite() { m.WALFrameWritesTotal.Inc() }

// RecordWALCheckpoint satisfies pkg/wal.Metrics.
func (m *Metrics) RecordWALCheckpoint() { m.WALCheckpointsTotal.Inc() }

// RecordBTreeLeafSplit satisfies pkg/btree.Metrics.
func (m *Metrics) RecordBTreeLeafSplit() { m.BTreeLeafSplitsTotal.Inc() }

// RecordBTreeInternalSplit satisfies pkg/btree.Metrics.
func (m *Metrics) RecordBTreeInternalSplit() { m.BTreeInternalSplitsTotal.Inc() }

// RecordTxnBegin satisfies pkg/txn.Metrics.
func (m *Metrics) RecordTxnBegin() { m.TxnBeginsTotal.Inc() }

// RecordTxnCommit satisfies pkg/txn.Metrics.
func (m *Metrics) RecordTxnCommit() { m.TxnCommitsTotal.Inc() }

// RecordTxnRollback satisfies pkg/txn.Metrics.
func (m *Metrics) RecordTxnRollback() { m.TxnRollbacksTotal.Inc() }
