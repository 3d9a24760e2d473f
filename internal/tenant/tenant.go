// Package tenant resolves and persists tenant configuration.
package tenant

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
)

var (
	// ErrTenantNotFound is returned when no tenant exists for an ID.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrInvalidTenantID is returned for IDs that are empty or malformed.
	ErrInvalidTenantID = errors.New("invalid tenant ID")

	// ErrInvalidConfig is returned when a tenant record fails validation.
	ErrInvalidConfig = errors.New("invalid tenant config")
)

const maxTenantIDLen = 64

var tenantIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Industry categorizes a tenant and drives its default content vocabulary.
type Industry string

const (
	Retail               Industry = "retail"
	Hospitality          Industry = "hospitality"
	Healthcare           Industry = "healthcare"
	ProfessionalServices Industry = "professional_services"
	Education            Industry = "education"
	Technology           Industry = "technology"
	OtherIndustry        Industry = "other"
)

// Valid reports whether i is a known industry.
func (i Industry) Valid() bool {
	switch i {
	case Retail, Hospitality, Healthcare, ProfessionalServices, Education, Technology, OtherIndustry:
		return true
	}
	return false
}

// DefaultContentTypes returns the content types a tenant of this industry
// may index when its config does not list any explicitly.
func DefaultContentTypes(i Industry) []chunk.ContentType {
	base := []chunk.ContentType{chunk.CompanyInfo, chunk.Policy, chunk.FAQ, chunk.KnowledgeBase, chunk.Other}
	switch i {
	case Retail:
		return append(base, chunk.Product, chunk.ExtractedProduct)
	case Hospitality, Healthcare, ProfessionalServices, Education:
		return append(base, chunk.Service, chunk.ExtractedService)
	default:
		return append(base, chunk.Product, chunk.ExtractedProduct, chunk.Service, chunk.ExtractedService)
	}
}

// Config is a tenant record.
type Config struct {
	TenantID            string              `json:"tenant_id"`
	Industry            Industry            `json:"industry"`
	DisplayName         string              `json:"display_name"`
	AllowedContentTypes []chunk.ContentType `json:"allowed_content_types,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// ValidateID checks that id is safe to use as a tenant identifier.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidTenantID)
	}
	if len(id) > maxTenantIDLen {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidTenantID, maxTenantIDLen)
	}
	if !tenantIDPattern.MatchString(id) {
		return fmt.Errorf("%w: must be alphanumeric, hyphen or underscore", ErrInvalidTenantID)
	}
	return nil
}

// Validate checks the record.
func (c *Config) Validate() error {
	if err := ValidateID(c.TenantID); err != nil {
		return err
	}
	if !c.Industry.Valid() {
		return fmt.Errorf("%w: unknown industry %q", ErrInvalidConfig, c.Industry)
	}
	for _, ct := range c.AllowedContentTypes {
		if !ct.Valid() {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, ct)
		}
	}
	return nil
}

// ContentTypes returns the allowed types, falling back to the industry defaults.
func (c *Config) ContentTypes() []chunk.ContentType {
	if len(c.AllowedContentTypes) > 0 {
		return c.AllowedContentTypes
	}
	return DefaultContentTypes(c.Industry)
}

// Allows reports whether ct may be indexed for this tenant.
func (c *Config) Allows(ct chunk.ContentType) bool {
	for _, allowed := range c.ContentTypes() {
		if allowed == ct {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	out := *c
	if c.AllowedContentTypes != nil {
		out.AllowedContentTypes = append([]chunk.ContentType(nil), c.AllowedContentTypes...)
	}
	return &out
}
