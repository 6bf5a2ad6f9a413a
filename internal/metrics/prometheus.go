// Package metrics provides Prometheus metrics for the fire monitor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "firewatch"

// Failure categories used as label values.
const (
	CategoryFrameWrite        = "frame_write"
	CategoryServiceError      = "service_error"
	CategoryMalformedResponse = "malformed_response"
	CategoryTransportError    = "transport_error"
	CategoryMissingArtifact   = "missing_artifact"
	CategoryArtifactRead      = "artifact_read"
	CategoryHistory           = "history"
	CategoryTaskRejected      = "task_rejected"
	CategoryTaskPanic         = "task_panic"
)

// Custom registry keeps the default Go collectors out unless asked for.
var registry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

var (
	framesRead = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "frames_read_total",
		Help:      "Frames pulled from the video source",
	})

	samplesTaken = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "samples_total",
		Help:      "Frames sampled and handed to an analysis cycle",
	})

	cyclesInFlight = promauto.With(registry).NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "analysis_cycles_in_flight",
		Help:      "Analysis cycles currently running in the background",
	})

	analysisLatency = promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "analysis_duration_seconds",
		Help:      "Time spent waiting on the vision service",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	detections = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "detections_total",
		Help:      "Analysis verdicts by outcome",
	}, []string{"outcome"})

	alertsSent = promauto.With(registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_sent_total",
		Help:      "Alert emails accepted by the mail transport",
	})

	failures = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "failures_total",
		Help:      "Contained failures by category",
	}, []string{"category"})
)

func init() { //nolint:gochecknoinits // process collectors on the custom registry
	registry.MustRegister(collectors.NewGoCollector())
}

// RecordFrameRead counts a frame read from the source.
func RecordFrameRead() { framesRead.Inc() }

// RecordSample counts a launched analysis cycle.
func RecordSample() { samplesTaken.Inc() }

// CycleStarted and CycleFinished track background cycles.
func CycleStarted()  { cyclesInFlight.Inc() }
func CycleFinished() { cyclesInFlight.Dec() }

// RecordAnalysisLatency observes a vision service round trip.
func RecordAnalysisLatency(seconds float64) { analysisLatency.Observe(seconds) }

// RecordDetection counts a verdict.
func RecordDetection(detected bool) {
	if detected {
		detections.WithLabelValues("detected").Inc()
		return
	}
	detections.WithLabelValues("clear").Inc()
}

// RecordAlertSent counts a dispatched alert.
func RecordAlertSent() { alertsSent.Inc() }

// RecordFailure counts a contained failure.
func RecordFailure(category string) { failures.WithLabelValues(category).Inc() }

// GetRegistry exposes the registry for tests and custom handlers.
func GetRegistry() *prometheus.Registry { return registry }

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
