package chain

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rpcMethodTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rindexer",
		Subsystem: "chain",
		Name:      "rpc_requests_total",
		Help:      "Total JSON-RPC requests issued, by method.",
	}, []string{"method"})

	rpcMethodErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rindexer",
		Subsystem: "chain",
		Name:      "rpc_request_errors_total",
		Help:      "Total JSON-RPC requests that returned an error, by method.",
	}, []string{"method"})

	rpcMethodDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rindexer",
		Subsystem: "chain",
		Name:      "rpc_request_duration_seconds",
		Help:      "JSON-RPC request latency, by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})

	rpcRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rindexer",
		Subsystem: "chain",
		Name:      "rpc_retries_total",
		Help:      "Total retry attempts, by operation.",
	}, []string{"operation"})
)

func init() {
	prometheus.MustRegister(rpcMethodTotal, rpcMethodErrors, rpcMethodDuration, rpcRetries)
}

// RPCMethodInc records one outgoing call for the given method.
func RPCMethodInc(method string) { rpcMethodTotal.WithLabelValues(method).Inc() }

// RPCMethodError records one failed call for the given method.
func RPCMethodError(method string) { rpcMethodErrors.WithLabelValues(method).Inc() }

// RPCMethodDuration records the latency of one call for the given method.
func RPCMethodDuration(method string, d time.Duration) {
	rpcMethodDuration.WithLabelValues(method).Observe(d.Seconds())
}

// RPCRetryInc records one retry attempt for the given operation.
func RPCRetryInc(operation string) { rpcRetries.WithLabelValues(operation).Inc() }
