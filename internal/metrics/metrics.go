// Package metrics defines the engine's prometheus surface: per-pipeline
// indexing counters and gauges (labeled network/contract/event rather
// than a single indexer name), plus component health and process-level
// runtime stats.
package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pipelineLabels = []string{"network", "contract", "event"}

var (
	storeQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rindexer_store_queries_total",
			Help: "Total number of store queries, by backend and operation",
		},
		[]string{"backend", "operation"},
	)

	storeQueryTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rindexer_store_query_duration_seconds",
			Help:    "Duration of store queries",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	storeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rindexer_store_errors_total",
			Help: "Total number of store errors, by backend and error type",
		},
		[]string{"backend", "error_type"},
	)

	LastIndexedBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rindexer_last_indexed_block",
			Help: "The last block number successfully indexed, per pipeline",
		},
		pipelineLabels,
	)

	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rindexer_blocks_processed_total",
			Help: "Total number of blocks processed, per pipeline",
		},
		pipelineLabels,
	)

	EventsIndexed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rindexer_events_indexed_total",
			Help: "Total number of decoded events emitted, per pipeline",
		},
		pipelineLabels,
	)

	BlockProcessingTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rindexer_block_processing_duration_seconds",
			Help:    "Time taken to process one fetch window, per pipeline",
			Buckets: prometheus.DefBuckets,
		},
		pipelineLabels,
	)

	IndexingRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rindexer_indexing_rate_blocks_per_second",
			Help: "Current indexing rate in blocks per second, per pipeline",
		},
		pipelineLabels,
	)

	SinkQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rindexer_sink_queue_depth",
			Help: "Current depth of a sink's fan-out buffer, per pipeline and sink",
		},
		[]string{"network", "contract", "event", "sink"},
	)

	Uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rindexer_uptime_seconds",
			Help: "Process uptime in seconds",
		},
	)

	Errors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rindexer_errors_total",
			Help: "Total number of errors by component and severity",
		},
		[]string{"component", "severity"},
	)

	ComponentHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rindexer_component_health",
			Help: "Component health status (1=healthy, 0=unhealthy)",
		},
		[]string{"component"},
	)

	Goroutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rindexer_goroutines",
			Help: "Number of active goroutines",
		},
	)

	MemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rindexer_memory_usage_bytes",
			Help: "Memory usage statistics, by kind",
		},
		[]string{"kind"},
	)

	startTime = time.Now()
)

func StoreQueryInc(backend, operation string) {
	storeQueries.WithLabelValues(backend, operation).Inc()
}

func StoreQueryDuration(backend, operation string, duration time.Duration) {
	storeQueryTime.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

func StoreErrorInc(backend, errorType string) {
	storeErrors.WithLabelValues(backend, errorType).Inc()
}

func BlockProcessingTimeLog(network, contract, event string, duration time.Duration) {
	BlockProcessingTime.WithLabelValues(network, contract, event).Observe(duration.Seconds())
}

func LastIndexedBlockSet(network, contract, event string, blockNum uint64) {
	LastIndexedBlock.WithLabelValues(network, contract, event).Set(float64(blockNum))
}

func BlocksProcessedAdd(network, contract, event string, count uint64) {
	BlocksProcessed.WithLabelValues(network, contract, event).Add(float64(count))
}

func EventsIndexedAdd(network, contract, event string, count int) {
	EventsIndexed.WithLabelValues(network, contract, event).Add(float64(count))
}

func IndexingRateSet(network, contract, event string, rate float64) {
	IndexingRate.WithLabelValues(network, contract, event).Set(rate)
}

func SinkQueueDepthSet(network, contract, event, sink string, depth int) {
	SinkQueueDepth.WithLabelValues(network, contract, event, sink).Set(float64(depth))
}

func ComponentHealthSet(component string, healthy bool) {
	boolAsFloat := float64(1)
	if !healthy {
		boolAsFloat = 0
	}
	ComponentHealth.WithLabelValues(component).Set(boolAsFloat)
}

// UpdateSystemMetrics refreshes process-level runtime stats; call
// periodically (e.g. every 15s) from a background ticker.
func UpdateSystemMetrics() {
	Uptime.Set(time.Since(startTime).Seconds())
	Goroutines.Set(float64(runtime.NumGoroutine()))

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	MemoryUsage.WithLabelValues("alloc").Set(float64(m.Alloc))
	MemoryUsage.WithLabelValues("total_alloc").Set(float64(m.TotalAlloc))
	MemoryUsage.WithLabelValues("sys").Set(float64(m.Sys))
	MemoryUsage.WithLabelValues("heap_inuse").Set(float64(m.HeapInuse))
}
