package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
)

// ChromemIndex is an embedded index backed by chromem-go. chromem exposes no
// way to enumerate a collection, so Scroll returns ErrScrollUnsupported and
// retrieval runs in approximate-only mode.
type ChromemIndex struct {
	db         *chromem.DB
	collection *chromem.Collection
	dimension  int
	logger     *logging.Logger
}

// NewChromemIndex opens (or creates) a persistent chromem database at path.
// An empty path keeps everything in memory.
func NewChromemIndex(path string, compress bool, collection string, dimension int, logger *logging.Logger) (*ChromemIndex, error) {
	if collection == "" {
		return nil, fmt.Errorf("%w: collection is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		path, err = expandPath(path)
		if err != nil {
			return nil, err
		}
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("%w: opening chromem db at %s: %v", ErrIndexUnavailable, path, err)
		}
	}

	// Vectors are always supplied by the caller.
	noEmbed := func(context.Context, string) ([]float32, error) {
		return nil, errors.New("chromem index does not embed text")
	}
	coll, err := db.GetOrCreateCollection(collection, nil, noEmbed)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %s: %v", ErrIndexUnavailable, collection, err)
	}

	logger.Debug(context.Background(), "chromem index ready",
		zap.String("path", path),
		zap.String("collection", collection),
		zap.Int("documents", coll.Count()),
	)
	return &ChromemIndex{db: db, collection: coll, dimension: dimension, logger: logger}, nil
}

func (c *ChromemIndex) Name() string { return "chromem" }

func (c *ChromemIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := validatePoints(points, c.dimension); err != nil {
		return err
	}

	docs := make([]chromem.Document, len(points))
	for i, p := range points {
		content, _ := p.Payload[chunk.FieldEmbeddingText].(string)
		if content == "" {
			content, _ = p.Payload[chunk.FieldRawContent].(string)
		}
		if content == "" {
			content = p.ID
		}
		docs[i] = chromem.Document{
			ID:        p.ID,
			Content:   content,
			Metadata:  toMetadata(p.Payload),
			Embedding: append([]float32(nil), p.Vector...),
		}
	}
	if err := c.collection.AddDocuments(ctx, docs, 1); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (c *ChromemIndex) Search(ctx context.Context, vector []float32, filter Filter, limit int, threshold float64) ([]Hit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	total := c.collection.Count()
	if total == 0 || limit <= 0 {
		return nil, nil
	}
	if limit > total {
		limit = total
	}

	// chromem's where clause is exact match only, so several content
	// types become one query each.
	wheres := []map[string]string{baseWhere(filter)}
	if len(filter.ContentTypes) > 0 {
		wheres = wheres[:0]
		for _, ct := range filter.ContentTypes {
			w := baseWhere(filter)
			w[chunk.FieldContentType] = ct
			wheres = append(wheres, w)
		}
	}

	var hits []Hit
	for _, w := range wheres {
		res, err := c.collection.QueryEmbedding(ctx, vector, limit, w, nil)
		if err != nil {
			return nil, unavailable("search", err)
		}
		for _, r := range res {
			score := float64(r.Similarity)
			if score < threshold {
				continue
			}
			hits = append(hits, Hit{ID: r.ID, Score: score, Payload: fromMetadata(r.Metadata)})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (c *ChromemIndex) Scroll(_ context.Context, filter Filter, _ int, _ string) ([]Point, string, error) {
	if err := filter.Validate(); err != nil {
		return nil, "", err
	}
	return nil, "", ErrScrollUnsupported
}

func (c *ChromemIndex) Delete(ctx context.Context, filter Filter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	wheres := []map[string]string{baseWhere(filter)}
	if len(filter.ContentTypes) > 0 {
		wheres = wheres[:0]
		for _, ct := range filter.ContentTypes {
			w := baseWhere(filter)
			w[chunk.FieldContentType] = ct
			wheres = append(wheres, w)
		}
	}
	for _, w := range wheres {
		if err := c.collection.Delete(ctx, w, nil); err != nil {
			return unavailable("delete", err)
		}
	}
	return nil
}

func (c *ChromemIndex) Close() error { return nil }

func baseWhere(f Filter) map[string]string {
	w := map[string]string{chunk.FieldTenantID: f.TenantID}
	if f.Language != "" {
		w[chunk.FieldLanguage] = f.Language
	}
	if f.SourceFileID != "" {
		w[chunk.FieldSourceFileID] = f.SourceFileID
	}
	return w
}

// toMetadata flattens a payload into chromem's string-only metadata.
func toMetadata(p map[string]interface{}) map[string]string {
	m := make(map[string]string, len(p))
	for k, v := range p {
		if v == nil {
			continue
		}
		m[k] = fmt.Sprint(v)
	}
	return m
}

func fromMetadata(m map[string]string) map[string]interface{} {
	p := make(map[string]interface{}, len(m))
	for k, v := range m {
		p[k] = v
	}
	return p
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expanding %s: %w", path, err)
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Clean(path), nil
}
