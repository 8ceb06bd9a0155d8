// Package metrics defines the Prometheus metrics recorded by oxide commands.
//
// Metrics are registered on controller-runtime's registry, the same registry
// an operator build would serve. The CLI has no HTTP endpoint; it writes the
// registry to a node-exporter textfile with [WriteTextfile].
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"sigs.k8s.io/controller-runtime/pkg/metrics"
)

var (
	nodeAdditionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oxide",
			Subsystem: "cluster",
			Name:      "node_additions_total",
			Help:      "Node add workflows by pool and result",
		},
		[]string{"cluster", "pool", "result"},
	)

	nodeRemovalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oxide",
			Subsystem: "cluster",
			Name:      "node_removals_total",
			Help:      "Node remove workflows by pool and final state",
		},
		[]string{"cluster", "pool", "state"},
	)

	nodeWorkflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oxide",
			Subsystem: "cluster",
			Name:      "node_workflow_duration_seconds",
			Help:      "Duration of node add and remove workflows",
			Buckets:   prometheus.ExponentialBuckets(10, 2, 8), // 10s to ~21min
		},
		[]string{"cluster", "workflow"},
	)

	poolSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "oxide",
			Subsystem: "cluster",
			Name:      "pool_nodes",
			Help:      "Live servers per pool after the last scale operation",
		},
		[]string{"cluster", "pool"},
	)

	hcloudAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "oxide",
			Subsystem: "hcloud",
			Name:      "api_calls_total",
			Help:      "Hetzner Cloud API calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	hcloudAPILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "oxide",
			Subsystem: "hcloud",
			Name:      "api_latency_seconds",
			Help:      "Latency of Hetzner Cloud API calls",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~25s
		},
		[]string{"operation"},
	)
)

func init() {
	metrics.Registry.MustRegister(
		nodeAdditionsTotal,
		nodeRemovalsTotal,
		nodeWorkflowDuration,
		poolSize,
		hcloudAPICallsTotal,
		hcloudAPILatency,
	)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordNodeAddition records the outcome of one add workflow.
func RecordNodeAddition(cluster, pool string, duration time.Duration, err error) {
	nodeAdditionsTotal.WithLabelValues(cluster, pool, result(err)).Inc()
	nodeWorkflowDuration.WithLabelValues(cluster, "add").Observe(duration.Seconds())
}

// RecordNodeRemoval records the final state reached by one remove workflow.
func RecordNodeRemoval(cluster, pool, state string, duration time.Duration) {
	nodeRemovalsTotal.WithLabelValues(cluster, pool, state).Inc()
	nodeWorkflowDuration.WithLabelValues(cluster, "remove").Observe(duration.Seconds())
}

// RecordPoolSize records the live node count of a pool.
func RecordPoolSize(cluster, pool string, n int) {
	poolSize.WithLabelValues(cluster, pool).Set(float64(n))
}

// ObserveHCloudCall records one Hetzner Cloud API call that started at start.
func ObserveHCloudCall(operation string, start time.Time, err error) {
	hcloudAPICallsTotal.WithLabelValues(operation, result(err)).Inc()
	hcloudAPILatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// WriteTextfile writes every registered metric to path in Prometheus text format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, metrics.Registry)
}
