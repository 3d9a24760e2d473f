// Package indexer turns extracted tenant content into stored chunks.
//
// Each item is rendered to its embedding text, embedded in one batch call,
// assigned a deterministic chunk ID and upserted into the shared vector index
// with its tenant_id payload. Indexing a source replaces the chunks of that
// content type previously stored for it, so re-indexing never duplicates
// chunks and never leaves items behind that the new batch dropped.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/config"
	"github.com/fyrsmithlabs/tenantrag/internal/embeddings"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"github.com/fyrsmithlabs/tenantrag/internal/tenant"
	"github.com/fyrsmithlabs/tenantrag/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/tenantrag/internal/indexer"

var (
	// ErrContentTypeNotAllowed is returned when the tenant may not index a content type.
	ErrContentTypeNotAllowed = errors.New("content type not allowed for tenant")

	// ErrInvalidItem is returned for items that cannot be indexed.
	ErrInvalidItem = errors.New("invalid item")
)

const (
	defaultBatchSize         = 64
	defaultMaxEmbeddingChars = 8000
)

// StructuredItem is one extracted piece of content ready for indexing.
type StructuredItem struct {
	SourceFileID  string
	RawContent    string
	RetrievalText string
	Data          chunk.StructuredData
	Language      string
	ValidFrom     *time.Time
	ValidUntil    *time.Time
}

// Indexer writes chunks for registered tenants.
type Indexer struct {
	tenants   tenant.Resolver
	embedder  embeddings.DocumentEmbedder
	index     vectorstore.Index
	batchSize int
	maxChars  int
	logger    *logging.Logger
	now       func() time.Time
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(ix *Indexer) { ix.now = now }
}

// WithConfig applies batch size and embedding text limits.
func WithConfig(cfg config.IndexerConfig) Option {
	return func(ix *Indexer) {
		if cfg.UpsertBatchSize > 0 {
			ix.batchSize = cfg.UpsertBatchSize
		}
		if cfg.MaxEmbeddingChars > 0 {
			ix.maxChars = cfg.MaxEmbeddingChars
		}
	}
}

// New creates an Indexer.
func New(tenants tenant.Resolver, embedder embeddings.DocumentEmbedder, index vectorstore.Index, opts ...Option) *Indexer {
	ix := &Indexer{
		tenants:   tenants,
		embedder:  embedder,
		index:     index,
		batchSize: defaultBatchSize,
		maxChars:  defaultMaxEmbeddingChars,
		logger:    logging.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index embeds and stores items as chunks of contentType for tenantID and
// returns their chunk IDs in item order. The sequence number used for each
// ID is the item's position in items. Chunks of contentType already stored
// for any source named in items are removed first.
func (ix *Indexer) Index(ctx context.Context, tenantID string, items []StructuredItem, contentType chunk.ContentType) (ids []string, err error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "Indexer.Index")
	defer span.End()
	span.SetAttributes(
		attribute.String("tenant.id", tenantID),
		attribute.String("content_type", string(contentType)),
		attribute.Int("items", len(items)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if !contentType.Valid() {
		return nil, fmt.Errorf("%w: %q", chunk.ErrUnknownContentType, contentType)
	}
	cfg, err := ix.tenants.Resolve(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !cfg.Allows(contentType) {
		return nil, fmt.Errorf("%w: %s for tenant %s", ErrContentTypeNotAllowed, contentType, tenantID)
	}
	if len(items) == 0 {
		return nil, nil
	}

	texts := make([]string, len(items))
	for i, item := range items {
		if strings.TrimSpace(item.SourceFileID) == "" {
			return nil, fmt.Errorf("%w: item %d has no source_file_id", ErrInvalidItem, i)
		}
		if !chunk.Matches(contentType, item.Data) {
			return nil, fmt.Errorf("item %d: %w: %T for %s", i, chunk.ErrDataMismatch, item.Data, contentType)
		}
		texts[i] = EmbeddingText(item, contentType, ix.maxChars)
		if texts[i] == "" {
			return nil, fmt.Errorf("%w: item %d has no content", ErrInvalidItem, i)
		}
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}

	now := ix.now().UTC().Truncate(time.Second)
	ids = make([]string, len(items))
	points := make([]vectorstore.Point, len(items))
	for i, item := range items {
		c := &chunk.DocumentChunk{
			ID:            chunk.DeriveID(tenantID, item.SourceFileID, contentType, i),
			TenantID:      tenantID,
			SourceFileID:  item.SourceFileID,
			RawContent:    item.RawContent,
			EmbeddingText: texts[i],
			ContentType:   contentType,
			Data:          item.Data,
			Language:      item.Language,
			Industry:      string(cfg.Industry),
			ValidFrom:     item.ValidFrom,
			ValidUntil:    item.ValidUntil,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		payload, err := chunk.ToPayload(c)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		ids[i] = c.ID
		points[i] = vectorstore.Point{ID: c.ID, Vector: vectors[i], Payload: payload}
	}

	if err := ix.replaceSources(ctx, tenantID, items, contentType); err != nil {
		return nil, err
	}

	for start := 0; start < len(points); start += ix.batchSize {
		end := start + ix.batchSize
		if end > len(points) {
			end = len(points)
		}
		if err := ix.index.Upsert(ctx, points[start:end]); err != nil {
			ix.logger.Error(ctx, "chunk upsert failed",
				zap.String("tenant_id", tenantID),
				zap.Int("batch_start", start),
				zap.Error(err),
			)
			if errors.Is(err, vectorstore.ErrIndexUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %w", vectorstore.ErrIndexUnavailable, err)
		}
	}

	ix.logger.Info(ctx, "indexed chunks",
		zap.String("tenant_id", tenantID),
		zap.String("content_type", string(contentType)),
		zap.Int("count", len(ids)),
	)
	return ids, nil
}

func (ix *Indexer) replaceSources(ctx context.Context, tenantID string, items []StructuredItem, contentType chunk.ContentType) error {
	seen := make(map[string]bool)
	for _, item := range items {
		if seen[item.SourceFileID] {
			continue
		}
		seen[item.SourceFileID] = true
		filter := vectorstore.Filter{
			TenantID:     tenantID,
			SourceFileID: item.SourceFileID,
			ContentTypes: []string{string(contentType)},
		}
		if err := ix.index.Delete(ctx, filter); err != nil {
			ix.logger.Error(ctx, "clearing previous source chunks failed",
				zap.String("tenant_id", tenantID),
				zap.String("source_file_id", item.SourceFileID),
				zap.Error(err),
			)
			if errors.Is(err, vectorstore.ErrIndexUnavailable) {
				return err
			}
			return fmt.Errorf("%w: %w", vectorstore.ErrIndexUnavailable, err)
		}
	}
	return nil
}

// DeleteSource removes every chunk indexed from sourceFileID for tenantID.
func (ix *Indexer) DeleteSource(ctx context.Context, tenantID, sourceFileID string) error {
	if strings.TrimSpace(sourceFileID) == "" {
		return fmt.Errorf("%w: empty source_file_id", ErrInvalidItem)
	}
	if _, err := ix.tenants.Resolve(ctx, tenantID); err != nil {
		return err
	}
	if err := ix.index.Delete(ctx, vectorstore.Filter{TenantID: tenantID, SourceFileID: sourceFileID}); err != nil {
		return err
	}
	ix.logger.Info(ctx, "deleted source chunks",
		zap.String("tenant_id", tenantID),
		zap.String("source_file_id", sourceFileID),
	)
	return nil
}

// Purge removes every chunk belonging to tenantID.
func (ix *Indexer) Purge(ctx context.Context, tenantID string) error {
	if _, err := ix.tenants.Resolve(ctx, tenantID); err != nil {
		return err
	}
	if err := ix.index.Delete(ctx, vectorstore.Filter{TenantID: tenantID}); err != nil {
		return err
	}
	ix.logger.Info(ctx, "purged tenant chunks", zap.String("tenant_id", tenantID))
	return nil
}

// EmbeddingText picks the text embedded for an item: its retrieval text,
// then the structured summary for extracted types, then the serialized
// structured data, then the raw content. The result is whitespace-normalized
// and truncated to maxChars runes.
func EmbeddingText(item StructuredItem, ct chunk.ContentType, maxChars int) string {
	text := item.RetrievalText
	if strings.TrimSpace(text) == "" && item.Data != nil {
		if ct.IsExtracted() {
			text = item.Data.Summary()
		} else {
			text = item.Data.Serialize()
		}
	}
	if strings.TrimSpace(text) == "" {
		text = item.RawContent
	}
	return truncate(normalizeWhitespace(text), maxChars)
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(s) <= maxChars {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:maxChars]))
}
