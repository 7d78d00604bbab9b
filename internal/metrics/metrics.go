// Package metrics registers the Prometheus series this agent exposes and
// provides the concrete agentruntime.Metrics implementation that records
// into them.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FieldWritesCaptured = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldwatch",
		Subsystem: "runtime",
		Name:      "field_writes_captured_total",
		Help:      "Total number of tracked field writes captured.",
	})

	ContainerModificationsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldwatch",
		Subsystem: "runtime",
		Name:      "container_modifications_appended_total",
		Help:      "Total number of container element insertions/removals appended to history.",
	})

	RewriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldwatch",
		Subsystem: "rewriter",
		Name:      "classification_failures_total",
		Help:      "Total number of container-type classification failures (spec.md's TransformFailure/UnmodifiableClass).",
	})

	ActiveTrackedContainers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldwatch",
		Subsystem: "runtime",
		Name:      "active_tracked_containers",
		Help:      "Current number of containers with at least one recorded modification.",
	})

	HistoryAppendDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "fieldwatch",
		Subsystem: "historystore",
		Name:      "append_duration_seconds",
		Help:      "Latency of a single HistoryStore append call.",
		Buckets:   prometheus.DefBuckets,
	})

	ResourceMonitorRSSBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldwatch",
		Subsystem: "resourcemonitor",
		Name:      "rss_bytes",
		Help:      "Resident set size of this agent's own process, last sampled.",
	})

	ResourceMonitorGoroutines = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fieldwatch",
		Subsystem: "resourcemonitor",
		Name:      "goroutines",
		Help:      "Number of goroutines running in this agent's own process, last sampled.",
	})

	ExportPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fieldwatch",
		Subsystem: "export",
		Name:      "publish_failures_total",
		Help:      "Total number of best-effort Kafka publish failures.",
	})

	HTTPResponseTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fieldwatch",
		Subsystem: "server",
		Name:      "http_response_time_seconds",
		Help:      "Response latency of the debugger-facing HTTP API, by path and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path", "method"})
)

// Recorder implements agentruntime.Metrics against the package-level
// Prometheus series above.
type Recorder struct{}

func NewRecorder() Recorder { return Recorder{} }

func (Recorder) FieldWriteCaptured()            { FieldWritesCaptured.Inc() }
func (Recorder) ContainerModificationAppended() { ContainerModificationsAppended.Inc() }
func (Recorder) RewriteFailure()                { RewriteFailures.Inc() }

// ObserveHistoryAppend records how long a HistoryStore append call took.
func ObserveHistoryAppend(d time.Duration) {
	HistoryAppendDuration.Observe(d.Seconds())
}

// SetActiveTrackedContainers updates the tracked-container gauge, called
// periodically by internal/resourcemonitor off of historystore.Store.Size.
func SetActiveTrackedContainers(n int) {
	ActiveTrackedContainers.Set(float64(n))
}
