// Package chunk defines the retrievable unit stored in the shared vector index.
package chunk

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// idNamespace scopes chunk IDs; changing it re-keys every stored chunk.
var idNamespace = uuid.MustParse("6f1d7f4e-4c1a-5b7e-9d2a-7a3c1e0b5f21")

// DocumentChunk is one indexed piece of tenant content.
type DocumentChunk struct {
	ID            string         `json:"chunk_id"`
	TenantID      string         `json:"tenant_id"`
	SourceFileID  string         `json:"source_file_id"`
	RawContent    string         `json:"raw_content"`
	EmbeddingText string         `json:"embedding_text,omitempty"`
	ContentType   ContentType    `json:"content_type"`
	Data          StructuredData `json:"structured_data,omitempty"`
	Language      string         `json:"language,omitempty"`
	Industry      string         `json:"industry,omitempty"`
	ValidFrom     *time.Time     `json:"valid_from,omitempty"`
	ValidUntil    *time.Time     `json:"valid_until,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// DeriveID returns the deterministic chunk ID for a position within a source.
// Re-indexing the same source yields the same IDs, so upserts overwrite.
// The result is a UUID because some index backends only accept UUID point IDs.
func DeriveID(tenantID, sourceFileID string, ct ContentType, seq int) string {
	name := strings.Join([]string{tenantID, sourceFileID, string(ct), strconv.Itoa(seq)}, "|")
	return uuid.NewSHA1(idNamespace, []byte(name)).String()
}

// Validate checks the invariants every stored chunk must satisfy.
func (c *DocumentChunk) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("%w: empty chunk id", ErrInvalidPayload)
	}
	if c.TenantID == "" {
		return ErrMissingTenant
	}
	if !c.ContentType.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownContentType, c.ContentType)
	}
	if !Matches(c.ContentType, c.Data) {
		return fmt.Errorf("%w: %T for %s", ErrDataMismatch, c.Data, c.ContentType)
	}
	if c.ValidFrom != nil && c.ValidUntil != nil && c.ValidUntil.Before(*c.ValidFrom) {
		return fmt.Errorf("%w: valid_until before valid_from", ErrInvalidPayload)
	}
	return nil
}

// ValidAt reports whether t falls inside the chunk's validity window.
// Open ends are unbounded.
func (c *DocumentChunk) ValidAt(t time.Time) bool {
	if c.ValidFrom != nil && t.Before(*c.ValidFrom) {
		return false
	}
	if c.ValidUntil != nil && t.After(*c.ValidUntil) {
		return false
	}
	return true
}

// NormalizeLanguage is the stored and queried form of a language tag.
func NormalizeLanguage(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

// RetrievalText is the text returned to callers for minimal projections.
func (c *DocumentChunk) RetrievalText() string {
	if c.EmbeddingText != "" {
		return c.EmbeddingText
	}
	return c.RawContent
}
