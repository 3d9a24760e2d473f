package retrieval

import (
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/formatter"
)

// Query is a tenant's retrieval request. ContentTypes and Language are soft
// filters: matching chunks rank first but others are not excluded.
type Query struct {
	TenantID     string
	Text         string
	ContentTypes []chunk.ContentType
	Language     string

	// ScoreThreshold is the minimum raw cosine similarity. Nil uses the
	// configured default.
	ScoreThreshold *float64

	// Limit of zero uses the configured default; larger values are capped.
	Limit int
}

// Threshold returns a pointer for Query.ScoreThreshold.
func Threshold(v float64) *float64 {
	return &v
}

func (q Query) validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidQuery)
	}
	if q.Limit < 0 {
		return fmt.Errorf("%w: limit cannot be negative", ErrInvalidQuery)
	}
	if t := q.ScoreThreshold; t != nil && (*t < 0 || *t > 1) {
		return fmt.Errorf("%w: score_threshold must be in [0,1], got %v", ErrInvalidQuery, *t)
	}
	for _, ct := range q.ContentTypes {
		if !ct.Valid() {
			return fmt.Errorf("%w: %w: %q", ErrInvalidQuery, chunk.ErrUnknownContentType, ct)
		}
	}
	return nil
}

func (q Query) hasSoftFilters() bool {
	return len(q.ContentTypes) > 0 || q.Language != ""
}

// prefers reports whether c matches every soft filter in the query.
func (q Query) prefers(c *chunk.DocumentChunk) bool {
	if !q.hasSoftFilters() {
		return false
	}
	if q.Language != "" && q.Language != chunk.NormalizeLanguage(c.Language) {
		return false
	}
	if len(q.ContentTypes) == 0 {
		return true
	}
	for _, ct := range q.ContentTypes {
		if ct == c.ContentType {
			return true
		}
	}
	return false
}

func (q Query) contentTypeStrings() []string {
	out := make([]string, len(q.ContentTypes))
	for i, ct := range q.ContentTypes {
		out[i] = string(ct)
	}
	return out
}

// Warning is a non-fatal condition attached to a Result.
type Warning string

const (
	WarningExhaustiveUnavailable  Warning = "exhaustive_unavailable"
	WarningApproximateUnavailable Warning = "approximate_unavailable"
	WarningScanBoundExceeded      Warning = "scan_bound_exceeded"
)

// Result is the outcome of a retrieval.
type Result struct {
	Chunks []formatter.ScoredChunk `json:"chunks"`

	// Degraded is set when one pass failed and results come from the other.
	Degraded bool      `json:"degraded"`
	Warnings []Warning `json:"warnings,omitempty"`

	// Scanned is the number of points the exhaustive pass examined.
	Scanned int `json:"scanned"`
}
