package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// PgvectorIndex stores chunks in one PostgreSQL table. Filter fields are
// columns; the full payload is kept as JSONB.
type PgvectorIndex struct {
	pool      *pgxpool.Pool
	table     string
	dimension int
	logger    *logging.Logger
}

// NewPgvectorIndex connects and creates the extension, table and indexes.
func NewPgvectorIndex(ctx context.Context, dsn, table string, dimension int, logger *logging.Logger) (*PgvectorIndex, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrInvalidConfig, table)
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidConfig)
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to postgres: %v", ErrIndexUnavailable, err)
	}

	idx := &PgvectorIndex{pool: pool, table: table, dimension: dimension, logger: logger}
	if err := idx.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return idx, nil
}

func (p *PgvectorIndex) initialize(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			content_type TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			source_file_id TEXT NOT NULL DEFAULT '',
			payload JSONB NOT NULL,
			embedding vector(%d) NOT NULL
		)`, p.table, p.dimension),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_tenant_idx ON %s (tenant_id, id)", p.table, p.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_source_idx ON %s (tenant_id, source_file_id)", p.table, p.table),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)", p.table, p.table),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return unavailable("initialize", err)
		}
	}
	p.logger.Debug(ctx, "pgvector table ready", zap.String("table", p.table), zap.Int("dimension", p.dimension))
	return nil
}

func (p *PgvectorIndex) Name() string { return "pgvector" }

func (p *PgvectorIndex) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	if err := validatePoints(points, p.dimension); err != nil {
		return err
	}

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, tenant_id, content_type, language, source_file_id, payload, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			tenant_id = EXCLUDED.tenant_id,
			content_type = EXCLUDED.content_type,
			language = EXCLUDED.language,
			source_file_id = EXCLUDED.source_file_id,
			payload = EXCLUDED.payload,
			embedding = EXCLUDED.embedding`, p.table)

	batch := &pgx.Batch{}
	for _, pt := range points {
		batch.Queue(stmt,
			pt.ID,
			chunk.PayloadTenant(pt.Payload),
			payloadString(pt.Payload, chunk.FieldContentType),
			payloadString(pt.Payload, chunk.FieldLanguage),
			payloadString(pt.Payload, chunk.FieldSourceFileID),
			pt.Payload,
			pgvector.NewVector(pt.Vector),
		)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return unavailable("upsert", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return unavailable("upsert", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return unavailable("upsert", err)
	}
	return nil
}

func (p *PgvectorIndex) Search(ctx context.Context, vector []float32, filter Filter, limit int, threshold float64) ([]Hit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	q := newWhere(filter)
	vecArg := q.arg(pgvector.NewVector(vector))
	q.add(fmt.Sprintf("1 - (embedding <=> %s) >= %s", vecArg, q.arg(threshold)))
	sql := fmt.Sprintf(`SELECT id, payload, 1 - (embedding <=> %s) AS score FROM %s WHERE %s ORDER BY embedding <=> %s, id LIMIT %s`,
		vecArg, p.table, q.String(), vecArg, q.arg(limit))

	rows, err := p.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, unavailable("search", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Payload, &h.Score); err != nil {
			return nil, unavailable("search", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("search", err)
	}
	return hits, nil
}

// Scroll pages in primary key order; the cursor is the last id returned.
func (p *PgvectorIndex) Scroll(ctx context.Context, filter Filter, batchSize int, cursor string) ([]Point, string, error) {
	if err := filter.Validate(); err != nil {
		return nil, "", err
	}

	q := newWhere(filter)
	if cursor != "" {
		q.add("id > " + q.arg(cursor))
	}
	sql := fmt.Sprintf(`SELECT id, payload, embedding FROM %s WHERE %s ORDER BY id LIMIT %s`,
		p.table, q.String(), q.arg(batchSize))

	rows, err := p.pool.Query(ctx, sql, q.args...)
	if err != nil {
		return nil, "", unavailable("scroll", err)
	}
	defer rows.Close()

	var points []Point
	for rows.Next() {
		var (
			pt  Point
			vec pgvector.Vector
		)
		if err := rows.Scan(&pt.ID, &pt.Payload, &vec); err != nil {
			return nil, "", unavailable("scroll", err)
		}
		pt.Vector = vec.Slice()
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, "", unavailable("scroll", err)
	}

	next := ""
	if len(points) == batchSize {
		next = points[len(points)-1].ID
	}
	return points, next, nil
}

func (p *PgvectorIndex) Delete(ctx context.Context, filter Filter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	q := newWhere(filter)
	tag, err := p.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", p.table, q.String()), q.args...)
	if err != nil {
		return unavailable("delete", err)
	}
	p.logger.Debug(ctx, "deleted points",
		zap.String("table", p.table),
		zap.Int64("rows", tag.RowsAffected()),
	)
	return nil
}

func (p *PgvectorIndex) Close() error {
	p.pool.Close()
	return nil
}

// where builds a parameterised WHERE clause.
type where struct {
	conds []string
	args  []interface{}
}

func newWhere(f Filter) *where {
	w := &where{}
	w.add("tenant_id = " + w.arg(f.TenantID))
	if len(f.ContentTypes) > 0 {
		w.add("content_type = ANY(" + w.arg(f.ContentTypes) + ")")
	}
	if f.Language != "" {
		w.add("language = " + w.arg(f.Language))
	}
	if f.SourceFileID != "" {
		w.add("source_file_id = " + w.arg(f.SourceFileID))
	}
	return w
}

func (w *where) arg(v interface{}) string {
	w.args = append(w.args, v)
	return fmt.Sprintf("$%d", len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) String() string {
	return strings.Join(w.conds, " AND ")
}

func payloadString(p map[string]interface{}, key string) string {
	s, _ := p[key].(string)
	return s
}
