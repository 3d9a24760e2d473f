package retrieval

import (
	"context"
	"errors"

	"github.com/fyrsmithlabs/tenantrag/internal/embeddings"
)

var (
	// ErrInvalidQuery is returned for queries that fail validation.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrIsolationViolation is returned when a candidate belongs to another
	// tenant. The whole query fails and no results are returned.
	ErrIsolationViolation = errors.New("tenant isolation violation")

	// ErrRetrievalUnavailable is returned when both retrieval passes fail
	// or the retrieval timeout expires.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrScanBoundExceeded marks an exhaustive scan stopped at MaxScanPoints.
	// It is reported as a warning, never returned from Retrieve.
	ErrScanBoundExceeded = errors.New("exhaustive scan bound exceeded")
)

// IsRetryable reports whether the caller may retry the same request.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRetrievalUnavailable) ||
		errors.Is(err, embeddings.ErrEmbeddingUnavailable) ||
		errors.Is(err, context.DeadlineExceeded)
}
