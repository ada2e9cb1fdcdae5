package metrics

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	registry = prometheus.NewRegistry()

	analysisStartedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "cropguard",
		Subsystem: "analysis",
		Name:      "started_total",
		Help:      "Total analyses started.",
	})

	analysisCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cropguard",
		Subsystem: "analysis",
		Name:      "completed_total",
		Help:      "Total analyses completed, labeled by severity.",
	}, []string{"severity"})

	analysisFailedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cropguard",
		Subsystem: "analysis",
		Name:      "failed_total",
		Help:      "Total analyses failed, labeled by cause.",
	}, []string{"cause"})

	analysisDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cropguard",
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "End-to-end analysis duration including both upstream calls.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	recommendationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cropguard",
		Subsystem: "recommendation",
		Name:      "results_total",
		Help:      "Recommendations produced, labeled by the parser that produced them.",
	}, []string{"source"})

	upstreamErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cropguard",
		Subsystem: "upstream",
		Name:      "errors_total",
		Help:      "Failed upstream calls, labeled by service and error kind.",
	}, []string{"service", "kind"})
)

// Register registers the collectors with the package registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			analysisStartedTotal,
			analysisCompletedTotal,
			analysisFailedTotal,
			analysisDurationSeconds,
			recommendationsTotal,
			upstreamErrorsTotal,
		)
	})
}

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Inc()
}

// IncAnalysisCompleted increments the completed counter for a severity band.
func IncAnalysisCompleted(severity string) {
	analysisCompletedTotal.WithLabelValues(severity).Inc()
}

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed(cause string) {
	analysisFailedTotal.WithLabelValues(cause).Inc()
}

// ObserveAnalysisDuration records an analysis duration.
func ObserveAnalysisDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	analysisDurationSeconds.Observe(d.Seconds())
}

// IncRecommendation counts a recommendation by parser source (json, text, fallback).
func IncRecommendation(source string) {
	recommendationsTotal.WithLabelValues(source).Inc()
}

// IncUpstreamError counts a failed call to a remote service.
func IncUpstreamError(service, kind string) {
	upstreamErrorsTotal.WithLabelValues(service, kind).Inc()
}

// Gatherer exposes the registry, mainly for tests.
func Gatherer() prometheus.Gatherer {
	return registry
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	Register()
	h := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}
