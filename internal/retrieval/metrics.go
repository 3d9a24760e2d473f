package retrieval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RetrieveDuration tracks end-to-end retrieval latency.
	// Labels: outcome (ok, degraded, error)
	RetrieveDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tenantrag",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Duration of retrieval requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	// ResultsReturned tracks how many chunks each retrieval returns.
	ResultsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tenantrag",
			Subsystem: "retrieval",
			Name:      "results",
			Help:      "Number of chunks returned per retrieval",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	// PassFailures counts failed retrieval passes.
	// Labels: pass (approximate, exhaustive)
	PassFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenantrag",
			Subsystem: "retrieval",
			Name:      "pass_failures_total",
			Help:      "Total number of failed retrieval passes",
		},
		[]string{"pass"},
	)

	// DegradedTotal counts retrievals answered from a single pass.
	DegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tenantrag",
			Subsystem: "retrieval",
			Name:      "degraded_total",
			Help:      "Total number of degraded retrievals",
		},
	)

	// ScanPoints counts points examined by exhaustive scans.
	ScanPoints = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tenantrag",
			Subsystem: "retrieval",
			Name:      "scan_points_total",
			Help:      "Total number of points examined by exhaustive scans",
		},
	)

	// ScanBoundHits counts exhaustive scans stopped at the point bound.
	ScanBoundHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tenantrag",
			Subsystem: "retrieval",
			Name:      "scan_bound_hits_total",
			Help:      "Total number of exhaustive scans stopped at max_scan_points",
		},
	)
)
