package reorg

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reorgsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rindexer_reorgs_detected_total",
			Help: "Total number of chain reorganizations detected, by network",
		},
		[]string{"network"},
	)

	reorgDepth = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rindexer_reorg_depth_blocks",
			Help:    "Depth of detected chain reorganizations in blocks",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250},
		},
		[]string{"network"},
	)

	reorgLastDetected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rindexer_reorg_last_detected_timestamp",
			Help: "Unix timestamp of the last detected reorg, by network",
		},
		[]string{"network"},
	)

	fatalReorgsDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rindexer_reorgs_fatal_total",
			Help: "Total number of reorgs deeper than safe_distance, by network and pipeline",
		},
		[]string{"network", "pipeline"},
	)
)

// recordReorg updates metrics for a detected reorg of the given depth
// on a network, at observedAt (passed in rather than taken from
// time.Now so callers stay deterministic in tests).
func recordReorg(network string, depth uint64, observedAt time.Time) {
	reorgsDetected.WithLabelValues(network).Inc()
	reorgDepth.WithLabelValues(network).Observe(float64(depth))
	reorgLastDetected.WithLabelValues(network).Set(float64(observedAt.Unix()))
}

// recordFatalReorg updates metrics for a reorg that exceeded the
// pipeline's safe rewind window.
func recordFatalReorg(network, pipeline string) {
	fatalReorgsDetected.WithLabelValues(network, pipeline).Inc()
}
