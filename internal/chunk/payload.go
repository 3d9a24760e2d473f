package chunk

import (
	"fmt"
	"strconv"
	"time"
)

// Payload field names. These are the keys indexed and filtered on by every
// vector index backend.
const (
	FieldChunkID        = "chunk_id"
	FieldTenantID       = "tenant_id"
	FieldSourceFileID   = "source_file_id"
	FieldRawContent     = "raw_content"
	FieldEmbeddingText  = "embedding_text"
	FieldContentType    = "content_type"
	FieldStructuredData = "structured_data"
	FieldLanguage       = "language"
	FieldIndustry       = "industry"
	FieldValidFrom      = "valid_from"
	FieldValidUntil     = "valid_until"
	FieldCreatedAt      = "created_at"
	FieldUpdatedAt      = "updated_at"
)

// ToPayload flattens a chunk into the map stored alongside its vector.
// Structured data is stored as a JSON string and timestamps as unix seconds,
// which every backend can round-trip.
func ToPayload(c *DocumentChunk) (map[string]interface{}, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	data, err := EncodeData(c.Data)
	if err != nil {
		return nil, err
	}

	p := map[string]interface{}{
		FieldChunkID:        c.ID,
		FieldTenantID:       c.TenantID,
		FieldSourceFileID:   c.SourceFileID,
		FieldRawContent:     c.RawContent,
		FieldEmbeddingText:  c.EmbeddingText,
		FieldContentType:    string(c.ContentType),
		FieldStructuredData: data,
		FieldLanguage:       NormalizeLanguage(c.Language),
		FieldIndustry:       c.Industry,
		FieldCreatedAt:      c.CreatedAt.Unix(),
		FieldUpdatedAt:      c.UpdatedAt.Unix(),
	}
	if c.ValidFrom != nil {
		p[FieldValidFrom] = c.ValidFrom.Unix()
	}
	if c.ValidUntil != nil {
		p[FieldValidUntil] = c.ValidUntil.Unix()
	}
	return p, nil
}

// FromPayload rebuilds a chunk from a stored payload. A payload without a
// tenant_id is rejected so callers can never treat it as belonging to anyone.
func FromPayload(id string, p map[string]interface{}) (*DocumentChunk, error) {
	tenantID := str(p[FieldTenantID])
	if tenantID == "" {
		return nil, ErrMissingTenant
	}
	ct, err := ParseContentType(str(p[FieldContentType]))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	data, err := DecodeData(ct, str(p[FieldStructuredData]))
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = str(p[FieldChunkID])
	}

	c := &DocumentChunk{
		ID:            id,
		TenantID:      tenantID,
		SourceFileID:  str(p[FieldSourceFileID]),
		RawContent:    str(p[FieldRawContent]),
		EmbeddingText: str(p[FieldEmbeddingText]),
		ContentType:   ct,
		Data:          data,
		Language:      NormalizeLanguage(str(p[FieldLanguage])),
		Industry:      str(p[FieldIndustry]),
	}
	if c.CreatedAt, err = unixTime(p[FieldCreatedAt]); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = unixTime(p[FieldUpdatedAt]); err != nil {
		return nil, err
	}
	if c.ValidFrom, err = optionalTime(p[FieldValidFrom]); err != nil {
		return nil, err
	}
	if c.ValidUntil, err = optionalTime(p[FieldValidUntil]); err != nil {
		return nil, err
	}
	return c, nil
}

// PayloadTenant returns the tenant_id stored in a payload, or "".
func PayloadTenant(p map[string]interface{}) string {
	return str(p[FieldTenantID])
}

func str(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

// unixTime accepts the numeric shapes different backends decode into:
// int64 (Qdrant), float64 (JSON) and string (chromem metadata).
func unixTime(v interface{}) (time.Time, error) {
	var secs int64
	switch n := v.(type) {
	case nil:
		return time.Time{}, nil
	case int64:
		secs = n
	case int:
		secs = int64(n)
	case float64:
		secs = int64(n)
	case string:
		if n == "" {
			return time.Time{}, nil
		}
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: timestamp %q", ErrInvalidPayload, n)
		}
		secs = parsed
	default:
		return time.Time{}, fmt.Errorf("%w: timestamp of type %T", ErrInvalidPayload, v)
	}
	return time.Unix(secs, 0).UTC(), nil
}

func optionalTime(v interface{}) (*time.Time, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok && s == "" {
		return nil, nil
	}
	t, err := unixTime(v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
