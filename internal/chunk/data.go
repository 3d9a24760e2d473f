package chunk

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// StructuredData is the per-type payload of a chunk. The interface is sealed:
// only the variants in this file implement it.
type StructuredData interface {
	// Summary is a short retrieval-optimized rendering.
	Summary() string
	// Serialize is the generic "field: value" rendering used when no
	// retrieval text is supplied.
	Serialize() string

	sealed()
}

// ProductData describes a catalog item.
type ProductData struct {
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Price       string            `json:"price,omitempty"`
	SKU         string            `json:"sku,omitempty"`
	Category    string            `json:"category,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
}

// ServiceData describes a bookable or billable service.
type ServiceData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Price       string `json:"price,omitempty"`
	Duration    string `json:"duration,omitempty"`
	Category    string `json:"category,omitempty"`
}

// PolicyData is a business policy (returns, privacy, shipping).
type PolicyData struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category,omitempty"`
}

// FAQData is a question/answer pair.
type FAQData struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category,omitempty"`
}

// CompanyInfoData holds facts about the tenant's business.
type CompanyInfoData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Founded     string `json:"founded,omitempty"`
	Location    string `json:"location,omitempty"`
	Hours       string `json:"hours,omitempty"`
	Contact     string `json:"contact,omitempty"`
}

// TextData is free text for knowledge_base and other chunks.
type TextData struct {
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

func (ProductData) sealed()     {}
func (ServiceData) sealed()     {}
func (PolicyData) sealed()      {}
func (FAQData) sealed()         {}
func (CompanyInfoData) sealed() {}
func (TextData) sealed()        {}

func (d ProductData) Summary() string {
	return joinNonEmpty(", ", d.Name, d.Price, d.Category, d.Description)
}

func (d ProductData) Serialize() string {
	fields := []kv{{"name", d.Name}, {"description", d.Description}, {"price", d.Price}, {"sku", d.SKU}, {"category", d.Category}}
	keys := make([]string, 0, len(d.Attributes))
	for k := range d.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, kv{k, d.Attributes[k]})
	}
	return serialize(fields)
}

func (d ServiceData) Summary() string {
	return joinNonEmpty(", ", d.Name, d.Price, d.Duration, d.Description)
}

func (d ServiceData) Serialize() string {
	return serialize([]kv{{"name", d.Name}, {"description", d.Description}, {"price", d.Price}, {"duration", d.Duration}, {"category", d.Category}})
}

func (d PolicyData) Summary() string {
	return joinNonEmpty(": ", d.Title, d.Body)
}

func (d PolicyData) Serialize() string {
	return serialize([]kv{{"title", d.Title}, {"category", d.Category}, {"body", d.Body}})
}

func (d FAQData) Summary() string {
	return joinNonEmpty(" ", d.Question, d.Answer)
}

func (d FAQData) Serialize() string {
	return serialize([]kv{{"question", d.Question}, {"answer", d.Answer}, {"category", d.Category}})
}

func (d CompanyInfoData) Summary() string {
	founded := ""
	if d.Founded != "" {
		founded = "founded " + d.Founded
	}
	return joinNonEmpty(", ", d.Name, founded, d.Location, d.Description)
}

func (d CompanyInfoData) Serialize() string {
	return serialize([]kv{{"name", d.Name}, {"description", d.Description}, {"founded", d.Founded}, {"location", d.Location}, {"hours", d.Hours}, {"contact", d.Contact}})
}

func (d TextData) Summary() string {
	return joinNonEmpty(": ", d.Title, d.Text)
}

func (d TextData) Serialize() string {
	return serialize([]kv{{"title", d.Title}, {"text", d.Text}})
}

// Matches reports whether data is the variant required by ct. Nil data matches
// every type; the chunk then carries only raw content.
func Matches(ct ContentType, data StructuredData) bool {
	if data == nil {
		return true
	}
	switch ct {
	case Product, ExtractedProduct:
		_, ok := data.(ProductData)
		return ok
	case Service, ExtractedService:
		_, ok := data.(ServiceData)
		return ok
	case Policy:
		_, ok := data.(PolicyData)
		return ok
	case FAQ:
		_, ok := data.(FAQData)
		return ok
	case CompanyInfo:
		_, ok := data.(CompanyInfoData)
		return ok
	case KnowledgeBase, Other:
		_, ok := data.(TextData)
		return ok
	default:
		return false
	}
}

// EncodeData renders data as JSON for storage in a payload.
func EncodeData(data StructuredData) (string, error) {
	if data == nil {
		return "", nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encode structured data: %w", err)
	}
	return string(b), nil
}

// DecodeData parses stored JSON into the variant for ct.
func DecodeData(ct ContentType, raw string) (StructuredData, error) {
	if raw == "" {
		return nil, nil
	}
	var (
		data StructuredData
		err  error
	)
	switch ct {
	case Product, ExtractedProduct:
		var d ProductData
		err = json.Unmarshal([]byte(raw), &d)
		data = d
	case Service, ExtractedService:
		var d ServiceData
		err = json.Unmarshal([]byte(raw), &d)
		data = d
	case Policy:
		var d PolicyData
		err = json.Unmarshal([]byte(raw), &d)
		data = d
	case FAQ:
		var d FAQData
		err = json.Unmarshal([]byte(raw), &d)
		data = d
	case CompanyInfo:
		var d CompanyInfoData
		err = json.Unmarshal([]byte(raw), &d)
		data = d
	case KnowledgeBase, Other:
		var d TextData
		err = json.Unmarshal([]byte(raw), &d)
		data = d
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownContentType, ct)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: structured_data for %s: %v", ErrInvalidPayload, ct, err)
	}
	return data, nil
}

type kv struct{ k, v string }

func serialize(fields []kv) string {
	var b strings.Builder
	for _, f := range fields {
		if strings.TrimSpace(f.v) == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.k)
		b.WriteString(": ")
		b.WriteString(f.v)
	}
	return b.String()
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return strings.Join(out, sep)
}
