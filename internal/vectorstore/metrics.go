package vectorstore

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationDuration tracks index call latency.
	// Labels: backend, operation
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tenantrag",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Duration of vector index operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// OperationsTotal counts index calls by outcome.
	// Labels: backend, operation, result (success, error, unsupported)
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenantrag",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Total number of vector index operations",
		},
		[]string{"backend", "operation", "result"},
	)

	// PointsReturned counts points returned by search and scroll.
	// Labels: backend, operation
	PointsReturned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tenantrag",
			Subsystem: "vectorstore",
			Name:      "points_returned_total",
			Help:      "Total number of points returned by search and scroll",
		},
		[]string{"backend", "operation"},
	)
)

// instrumented records Prometheus metrics around another Index.
type instrumented struct {
	Index
}

// Instrument wraps idx with Prometheus metrics.
func Instrument(idx Index) Index {
	return &instrumented{Index: idx}
}

func (i *instrumented) observe(op string, start time.Time, n int, err error) {
	backend := i.Index.Name()
	OperationDuration.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
	result := "success"
	switch {
	case errors.Is(err, ErrScrollUnsupported):
		result = "unsupported"
	case err != nil:
		result = "error"
	}
	OperationsTotal.WithLabelValues(backend, op, result).Inc()
	if n > 0 {
		PointsReturned.WithLabelValues(backend, op).Add(float64(n))
	}
}

func (i *instrumented) Upsert(ctx context.Context, points []Point) error {
	start := time.Now()
	err := i.Index.Upsert(ctx, points)
	i.observe("upsert", start, 0, err)
	return err
}

func (i *instrumented) Search(ctx context.Context, vector []float32, filter Filter, limit int, threshold float64) ([]Hit, error) {
	start := time.Now()
	hits, err := i.Index.Search(ctx, vector, filter, limit, threshold)
	i.observe("search", start, len(hits), err)
	return hits, err
}

func (i *instrumented) Scroll(ctx context.Context, filter Filter, batchSize int, cursor string) ([]Point, string, error) {
	start := time.Now()
	points, next, err := i.Index.Scroll(ctx, filter, batchSize, cursor)
	i.observe("scroll", start, len(points), err)
	return points, next, err
}

func (i *instrumented) Delete(ctx context.Context, filter Filter) error {
	start := time.Now()
	err := i.Index.Delete(ctx, filter)
	i.observe("delete", start, 0, err)
	return err
}
