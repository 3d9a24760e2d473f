package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"github.com/fyrsmithlabs/tenantrag/internal/qdrant"
)

// indexedFields are the payload fields every backend filters on.
var indexedFields = []string{
	chunk.FieldTenantID,
	chunk.FieldContentType,
	chunk.FieldLanguage,
	chunk.FieldSourceFileID,
}

// QdrantIndex stores all tenants' chunks in one Qdrant collection.
type QdrantIndex struct {
	client     qdrant.Client
	collection string
	dimension  int
	logger     *logging.Logger
}

// NewQdrantIndex creates the collection and its payload indexes if missing.
func NewQdrantIndex(ctx context.Context, client qdrant.Client, collection string, dimension int, logger *logging.Logger) (*QdrantIndex, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: qdrant client is required", ErrInvalidConfig)
	}
	if collection == "" || dimension <= 0 {
		return nil, fmt.Errorf("%w: collection and dimension are required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	idx := &QdrantIndex{client: client, collection: collection, dimension: dimension, logger: logger}
	if err := idx.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return unavailable("collection exists", err)
	}
	if exists {
		return nil
	}

	if err := q.client.CreateCollection(ctx, q.collection, uint64(q.dimension)); err != nil {
		return unavailable("create collection", err)
	}
	for _, field := range indexedFields {
		if err := q.client.CreateKeywordIndex(ctx, q.collection, field); err != nil {
			return unavailable("create payload index", err)
		}
	}
	q.logger.Info(ctx, "created qdrant collection",
		zap.String("collection", q.collection),
		zap.Int("dimension", q.dimension),
	)
	return nil
}

func (q *QdrantIndex) Name() string { return "qdrant" }

func (q *QdrantIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := validatePoints(points, q.dimension); err != nil {
		return err
	}
	qp := make([]*qdrant.Point, len(points))
	for i, p := range points {
		qp[i] = &qdrant.Point{ID: p.ID, Vector: p.Vector, Payload: p.Payload}
	}
	if err := q.client.Upsert(ctx, q.collection, qp); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (q *QdrantIndex) Search(ctx context.Context, vector []float32, filter Filter, limit int, threshold float64) ([]Hit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	res, err := q.client.Search(ctx, q.collection, vector, uint64(limit), float32(threshold), toQdrantFilter(filter))
	if err != nil {
		return nil, unavailable("search", err)
	}
	hits := make([]Hit, len(res))
	for i, r := range res {
		hits[i] = Hit{ID: r.ID, Score: float64(r.Score), Payload: r.Payload}
	}
	return hits, nil
}

func (q *QdrantIndex) Scroll(ctx context.Context, filter Filter, batchSize int, cursor string) ([]Point, string, error) {
	if err := filter.Validate(); err != nil {
		return nil, "", err
	}
	res, next, err := q.client.Scroll(ctx, q.collection, toQdrantFilter(filter), uint32(batchSize), cursor)
	if err != nil {
		return nil, "", unavailable("scroll", err)
	}
	points := make([]Point, len(res))
	for i, r := range res {
		points[i] = Point{ID: r.ID, Vector: r.Vector, Payload: r.Payload}
	}
	return points, next, nil
}

func (q *QdrantIndex) Delete(ctx context.Context, filter Filter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	if err := q.client.DeleteByFilter(ctx, q.collection, toQdrantFilter(filter)); err != nil {
		return unavailable("delete", err)
	}
	return nil
}

func (q *QdrantIndex) Close() error {
	return q.client.Close()
}

func toQdrantFilter(f Filter) *qdrant.Filter {
	must := []qdrant.Condition{qdrant.MatchKeyword(chunk.FieldTenantID, f.TenantID)}
	switch len(f.ContentTypes) {
	case 0:
	case 1:
		must = append(must, qdrant.MatchKeyword(chunk.FieldContentType, f.ContentTypes[0]))
	default:
		must = append(must, qdrant.MatchAnyKeyword(chunk.FieldContentType, f.ContentTypes...))
	}
	if f.Language != "" {
		must = append(must, qdrant.MatchKeyword(chunk.FieldLanguage, f.Language))
	}
	if f.SourceFileID != "" {
		must = append(must, qdrant.MatchKeyword(chunk.FieldSourceFileID, f.SourceFileID))
	}
	return &qdrant.Filter{Must: must}
}
