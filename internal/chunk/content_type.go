package chunk

import (
	"fmt"
	"strings"
)

// ContentType is the closed set of chunk categories.
type ContentType string

const (
	CompanyInfo      ContentType = "company_info"
	Product          ContentType = "product"
	Service          ContentType = "service"
	Policy           ContentType = "policy"
	FAQ              ContentType = "faq"
	KnowledgeBase    ContentType = "knowledge_base"
	Other            ContentType = "other"
	ExtractedProduct ContentType = "extracted_product"
	ExtractedService ContentType = "extracted_service"
)

// AllContentTypes lists every ContentType. Switches over ContentType are
// tested against this list for exhaustiveness.
var AllContentTypes = []ContentType{
	CompanyInfo,
	Product,
	Service,
	Policy,
	FAQ,
	KnowledgeBase,
	Other,
	ExtractedProduct,
	ExtractedService,
}

// ParseContentType validates s against the closed set.
func ParseContentType(s string) (ContentType, error) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(s)))
	if !ct.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownContentType, s)
	}
	return ct, nil
}

// ParseContentTypes parses a list, failing on the first unknown entry.
func ParseContentTypes(ss []string) ([]ContentType, error) {
	out := make([]ContentType, 0, len(ss))
	for _, s := range ss {
		ct, err := ParseContentType(s)
		if err != nil {
			return nil, err
		}
		out = append(out, ct)
	}
	return out, nil
}

// Valid reports whether c is one of AllContentTypes.
func (c ContentType) Valid() bool {
	for _, ct := range AllContentTypes {
		if c == ct {
			return true
		}
	}
	return false
}

// IsExtracted reports whether chunks of this type are returned as a minimal projection.
func (c ContentType) IsExtracted() bool {
	return c == ExtractedProduct || c == ExtractedService
}

// String implements fmt.Stringer.
func (c ContentType) String() string {
	return string(c)
}
