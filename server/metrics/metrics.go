package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterAnalyses           *prometheus.CounterVec
	CounterAnalysisErrors     prometheus.Counter
	CounterCacheHits          prometheus.Counter
	CounterCacheMisses        prometheus.Counter
	CounterRateLimitedClients prometheus.Counter
	CounterHandlePanic        prometheus.Counter

	// gauges
	GaugeQueueDepth    prometheus.Gauge
	GaugeActiveJobs    prometheus.Gauge
	GaugeWSConnections prometheus.Gauge

	// histograms
	HistAnalysisDuration prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("formcoach", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("formcoach", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterAnalyses := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "analyses",
		Help:      "The total number of completed form analyses",
	}, []string{"exercise", "outcome"})
	counterAnalysisErrors := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "analysis_errors",
		Help:      "The total number of failed form analyses",
	})
	counterCacheHits := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_hits",
		Help:      "The total number of analysis result cache hits",
	})
	counterCacheMisses := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "cache_misses",
		Help:      "The total number of analysis result cache misses",
	})
	counterRateLimitedClients := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "rate_limited_requests",
		Help:      "The total number of rate limited requests",
	})
	counterHandlePanic := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "handle_request_panic",
		Help:      "The total number of serve request panics",
	})

	gaugeQueueDepth := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "queue_depth",
		Help:      "Current number of analysis jobs waiting in the queue",
	})
	gaugeActiveJobs := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "active_jobs",
		Help:      "Current number of video analysis jobs in flight",
	})
	gaugeWSConnections := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "ws_connections",
		Help:      "Current number of open websocket connections",
	})

	histAnalysisDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "analysis_duration_seconds",
		Help:      "Histogram of time spent scoring a single set in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	return &Manager{
		CounterAnalyses:           counterAnalyses,
		CounterAnalysisErrors:     counterAnalysisErrors,
		CounterCacheHits:          counterCacheHits,
		CounterCacheMisses:        counterCacheMisses,
		CounterRateLimitedClients: counterRateLimitedClients,
		CounterHandlePanic:        counterHandlePanic,
		GaugeQueueDepth:           gaugeQueueDepth,
		GaugeActiveJobs:           gaugeActiveJobs,
		GaugeWSConnections:        gaugeWSConnections,
		HistAnalysisDuration:      histAnalysisDuration,
	}
}
