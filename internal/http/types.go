package http

import (
	"encoding/json"
	"time"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// TenantRequest is the body for PUT /api/v1/tenants/:id.
type TenantRequest struct {
	Industry            string   `json:"industry"`
	DisplayName         string   `json:"display_name"`
	AllowedContentTypes []string `json:"allowed_content_types,omitempty"`
}

// RetrieveRequest is the body for POST /api/v1/tenants/:id/retrieve.
type RetrieveRequest struct {
	Query          string   `json:"query"`
	ContentTypes   []string `json:"content_types,omitempty"`
	Language       string   `json:"language,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
	Limit          int      `json:"limit,omitempty"`
}

// IndexRequest is the body for POST /api/v1/tenants/:id/chunks.
type IndexRequest struct {
	ContentType string        `json:"content_type"`
	Items       []ItemRequest `json:"items"`
}

// ItemRequest is one extracted item. StructuredData must match the
// request's content type.
type ItemRequest struct {
	SourceFileID   string          `json:"source_file_id"`
	RawContent     string          `json:"raw_content"`
	RetrievalText  string          `json:"retrieval_text,omitempty"`
	StructuredData json.RawMessage `json:"structured_data,omitempty"`
	Language       string          `json:"language,omitempty"`
	ValidFrom      *time.Time      `json:"valid_from,omitempty"`
	ValidUntil     *time.Time      `json:"valid_until,omitempty"`
}

// IndexResponse lists the chunk IDs written, in item order.
type IndexResponse struct {
	ChunkIDs []string `json:"chunk_ids"`
}
