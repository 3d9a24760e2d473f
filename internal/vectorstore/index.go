package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
)

var (
	// ErrMissingTenant is returned for any operation without a tenant.
	ErrMissingTenant = chunk.ErrMissingTenant

	// ErrScrollUnsupported is returned by backends that cannot enumerate points.
	ErrScrollUnsupported = errors.New("scroll not supported by this backend")

	// ErrIndexUnavailable wraps backend failures.
	ErrIndexUnavailable = errors.New("vector index unavailable")

	// ErrInvalidConfig indicates invalid backend configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrDimensionMismatch is returned when a vector has the wrong length.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")
)

// Point is a stored vector with its payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]interface{}
}

// Hit is a search result. Score is cosine similarity in [-1, 1].
type Hit struct {
	ID      string
	Score   float64
	Payload map[string]interface{}
}

// Filter restricts an operation to one tenant's points. Empty optional
// fields match everything.
type Filter struct {
	TenantID     string
	ContentTypes []string
	Language     string
	SourceFileID string
}

// Validate fails closed when the tenant is missing.
func (f Filter) Validate() error {
	if strings.TrimSpace(f.TenantID) == "" {
		return ErrMissingTenant
	}
	return nil
}

// Matches reports whether a payload satisfies the filter.
func (f Filter) Matches(payload map[string]interface{}) bool {
	if chunk.PayloadTenant(payload) != f.TenantID {
		return false
	}
	if len(f.ContentTypes) > 0 {
		ct, _ := payload[chunk.FieldContentType].(string)
		if !contains(f.ContentTypes, ct) {
			return false
		}
	}
	if f.Language != "" {
		if lang, _ := payload[chunk.FieldLanguage].(string); lang != f.Language {
			return false
		}
	}
	if f.SourceFileID != "" {
		if src, _ := payload[chunk.FieldSourceFileID].(string); src != f.SourceFileID {
			return false
		}
	}
	return true
}

// Index is the shared vector index.
type Index interface {
	// Upsert inserts or overwrites points by ID.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit approximate nearest neighbours scoring at
	// least threshold, best first.
	Search(ctx context.Context, vector []float32, filter Filter, limit int, threshold float64) ([]Hit, error)

	// Scroll returns the next batch of points (with vectors) after cursor.
	// An empty next cursor means the scan is complete.
	Scroll(ctx context.Context, filter Filter, batchSize int, cursor string) (points []Point, next string, err error)

	// Delete removes every point matching filter.
	Delete(ctx context.Context, filter Filter) error

	// Name identifies the backend in logs and metrics.
	Name() string

	Close() error
}

func validatePoints(points []Point, dimension int) error {
	for i, p := range points {
		if p.ID == "" {
			return fmt.Errorf("point %d: empty id", i)
		}
		if chunk.PayloadTenant(p.Payload) == "" {
			return fmt.Errorf("point %s: %w", p.ID, ErrMissingTenant)
		}
		if dimension > 0 && len(p.Vector) != dimension {
			return fmt.Errorf("point %s: %w: expected %d, got %d", p.ID, ErrDimensionMismatch, dimension, len(p.Vector))
		}
	}
	return nil
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrIndexUnavailable, op, err)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
