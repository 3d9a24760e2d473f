package embeddings

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrEmptyInput indicates empty input text.
	ErrEmptyInput = errors.New("empty input text")

	// ErrInvalidConfig indicates invalid provider or gateway configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed is returned by providers when generation fails.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrEmbeddingUnavailable is the only failure the Gateway reports for
	// provider problems. Callers treat it as retryable.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")

	// ErrDimensionMismatch means the provider returned a vector of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// StatusError is a non-200 response from an HTTP embedding service.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: status %d: %s", ErrEmbeddingFailed, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrEmbeddingFailed }

// DefaultRetryable retries transport failures, 429 and 5xx responses.
// Client errors, dimension mismatches and context cancellation are final.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrEmptyInput) || errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrDimensionMismatch) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return true
}
