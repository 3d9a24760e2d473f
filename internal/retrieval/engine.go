// Package retrieval answers tenant queries against the shared vector index.
//
// Every query runs two passes concurrently. The approximate pass asks the
// index for its nearest neighbours; the exhaustive pass scrolls through all
// of the tenant's points and scores them in process, recovering chunks the
// approximate search missed. Results are merged by chunk ID, boosted by
// content type, filtered by the raw score threshold and ranked.
//
// Every candidate's tenant_id is checked against the query tenant before it
// is used. A mismatch fails the whole query with ErrIsolationViolation.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/config"
	"github.com/fyrsmithlabs/tenantrag/internal/embeddings"
	"github.com/fyrsmithlabs/tenantrag/internal/formatter"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"github.com/fyrsmithlabs/tenantrag/internal/tenant"
	"github.com/fyrsmithlabs/tenantrag/internal/vectorstore"
)

const instrumentationName = "github.com/fyrsmithlabs/tenantrag/internal/retrieval"

// Engine runs hybrid retrieval.
type Engine struct {
	tenants  tenant.Resolver
	embedder embeddings.Embedder
	index    vectorstore.Index
	cfg      config.RetrievalConfig
	logger   *logging.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock used for validity windows.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine. Zero values in cfg fall back to the defaults
// from config.Default.
func NewEngine(tenants tenant.Resolver, embedder embeddings.Embedder, index vectorstore.Index, cfg config.RetrievalConfig, opts ...Option) *Engine {
	e := &Engine{
		tenants:  tenants,
		embedder: embedder,
		index:    index,
		cfg:      withDefaults(cfg),
		logger:   logging.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func withDefaults(cfg config.RetrievalConfig) config.RetrievalConfig {
	def := config.Default().Retrieval
	if cfg.ScoreThreshold == 0 {
		cfg.ScoreThreshold = def.ScoreThreshold
	}
	if cfg.ApproxThreshold == 0 {
		cfg.ApproxThreshold = def.ApproxThreshold
	}
	if cfg.CandidateMultiplier < 1 {
		cfg.CandidateMultiplier = def.CandidateMultiplier
	}
	if cfg.DefaultLimit < 1 {
		cfg.DefaultLimit = def.DefaultLimit
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = def.MaxLimit
	}
	if cfg.ScanBatchSize < 1 {
		cfg.ScanBatchSize = def.ScanBatchSize
	}
	if cfg.MaxScanPoints < 1 {
		cfg.MaxScanPoints = def.MaxScanPoints
	}
	if cfg.Boosts == nil {
		cfg.Boosts = def.Boosts
	}
	return cfg
}

// Boost returns the score multiplier for ct.
func (e *Engine) Boost(ct chunk.ContentType) float64 {
	if b, ok := e.cfg.Boosts[string(ct)]; ok {
		return b
	}
	return 1.0
}

// passResult is the outcome of one retrieval pass.
type passResult struct {
	hits []vectorstore.Hit
	err  error
}

// Retrieve runs the query. Exactly one of the result and the error is non-nil.
func (e *Engine) Retrieve(ctx context.Context, q Query) (res *Result, err error) {
	start := time.Now()
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "Engine.Retrieve")
	defer span.End()
	span.SetAttributes(attribute.String("tenant.id", q.TenantID))

	defer func() {
		outcome := "ok"
		switch {
		case err != nil:
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case res.Degraded:
			outcome = "degraded"
		}
		RetrieveDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
		if res != nil {
			ResultsReturned.Observe(float64(len(res.Chunks)))
			span.SetAttributes(
				attribute.Int("results", len(res.Chunks)),
				attribute.Bool("degraded", res.Degraded),
			)
		}
	}()

	if err := q.validate(); err != nil {
		return nil, err
	}
	q.Language = chunk.NormalizeLanguage(q.Language)
	if e.cfg.Timeout.Duration() > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout.Duration())
		defer cancel()
	}

	if _, err := e.tenants.Resolve(ctx, q.TenantID); err != nil {
		return nil, err
	}
	ctx = logging.WithTenantID(ctx, q.TenantID)

	threshold := e.cfg.ScoreThreshold
	if q.ScoreThreshold != nil {
		threshold = *q.ScoreThreshold
	}
	limit := q.Limit
	if limit == 0 {
		limit = e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		limit = e.cfg.MaxLimit
	}

	vector, err := e.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	var (
		wg     sync.WaitGroup
		approx passResult
		exh    passResult
		scan   scanState
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		approx.hits, approx.err = e.approximatePass(ctx, vector, q, limit*e.cfg.CandidateMultiplier)
	}()
	go func() {
		defer wg.Done()
		exh.hits, scan, exh.err = e.exhaustivePass(ctx, vector, q.TenantID, threshold)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn(ctx, "retrieval timed out", zap.Error(err))
			return nil, fmt.Errorf("%w: %w", ErrRetrievalUnavailable, err)
		}
		return nil, err
	}

	res = &Result{Scanned: scan.scanned}
	switch {
	case approx.err != nil && exh.err != nil:
		e.logger.Error(ctx, "both retrieval passes failed",
			zap.NamedError("approximate_error", approx.err),
			zap.NamedError("exhaustive_error", exh.err),
		)
		return nil, fmt.Errorf("%w: approximate: %v; exhaustive: %v", ErrRetrievalUnavailable, approx.err, exh.err)
	case exh.err != nil:
		res.Degraded = true
		res.Warnings = append(res.Warnings, WarningExhaustiveUnavailable)
		PassFailures.WithLabelValues("exhaustive").Inc()
		e.logger.Warn(ctx, "exhaustive pass unavailable, using approximate results", zap.Error(exh.err))
	case approx.err != nil:
		res.Degraded = true
		res.Warnings = append(res.Warnings, WarningApproximateUnavailable)
		PassFailures.WithLabelValues("approximate").Inc()
		e.logger.Warn(ctx, "approximate pass unavailable, using exhaustive results", zap.Error(approx.err))
	}
	if res.Degraded {
		DegradedTotal.Inc()
	}
	if scan.boundHit {
		res.Warnings = append(res.Warnings, WarningScanBoundExceeded)
		ScanBoundHits.Inc()
		e.logger.Warn(ctx, "exhaustive scan stopped early",
			zap.Error(ErrScanBoundExceeded),
			zap.Int("scanned", scan.scanned),
			zap.Int("max_scan_points", e.cfg.MaxScanPoints),
		)
	}

	candidates, err := e.merge(ctx, q, threshold, approx.hits, exh.hits)
	if err != nil {
		return nil, err
	}
	res.Chunks = formatter.Rank(formatter.Shape(candidates), limit)
	if res.Chunks == nil {
		res.Chunks = []formatter.ScoredChunk{}
	}

	e.logger.Debug(ctx, "retrieval complete",
		zap.Int("results", len(res.Chunks)),
		zap.Int("approximate_hits", len(approx.hits)),
		zap.Int("exhaustive_hits", len(exh.hits)),
		zap.Int("scanned", scan.scanned),
		zap.Bool("degraded", res.Degraded),
	)
	return res, nil
}

// approximatePass asks the index for the k nearest neighbours. With soft
// filters it also runs a filtered search so preferred chunks are not
// crowded out of the top k; the unfiltered search keeps everything else.
func (e *Engine) approximatePass(ctx context.Context, vector []float32, q Query, k int) ([]vectorstore.Hit, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "Engine.approximatePass")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	var hits []vectorstore.Hit
	if q.hasSoftFilters() {
		preferred, err := e.index.Search(ctx, vector, vectorstore.Filter{
			TenantID:     q.TenantID,
			ContentTypes: q.contentTypeStrings(),
			Language:     q.Language,
		}, k, e.cfg.ApproxThreshold)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		hits = append(hits, preferred...)
	}

	broad, err := e.index.Search(ctx, vector, vectorstore.Filter{TenantID: q.TenantID}, k, e.cfg.ApproxThreshold)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	hits = append(hits, broad...)
	span.SetAttributes(attribute.Int("hits", len(hits)))
	return hits, nil
}

// scanState carries an exhaustive scan between pages. scanned never
// exceeds the configured MaxScanPoints.
type scanState struct {
	cursor   string
	scanned  int
	boundHit bool
}

// exhaustivePass pages through every point of the tenant and keeps those
// whose cosine similarity to vector reaches threshold.
func (e *Engine) exhaustivePass(ctx context.Context, vector []float32, tenantID string, threshold float64) ([]vectorstore.Hit, scanState, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "Engine.exhaustivePass")
	defer span.End()

	var (
		state  scanState
		hits   []vectorstore.Hit
		filter = vectorstore.Filter{TenantID: tenantID}
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, state, err
		}
		batch := e.cfg.ScanBatchSize
		if remaining := e.cfg.MaxScanPoints - state.scanned; remaining < batch {
			batch = remaining
		}

		points, next, err := e.index.Scroll(ctx, filter, batch, state.cursor)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, state, err
		}
		state.scanned += len(points)
		ScanPoints.Add(float64(len(points)))

		for _, p := range points {
			score := vectorstore.CosineSimilarity(vector, p.Vector)
			if score >= threshold {
				hits = append(hits, vectorstore.Hit{ID: p.ID, Score: score, Payload: p.Payload})
			}
		}
		e.logger.Trace(ctx, "scan batch",
			zap.Int("points", len(points)),
			zap.Int("scanned", state.scanned),
			zap.Int("matches", len(hits)),
		)

		if next == "" || len(points) == 0 {
			break
		}
		if state.scanned >= e.cfg.MaxScanPoints {
			state.boundHit = true
			break
		}
		state.cursor = next
	}

	span.SetAttributes(
		attribute.Int("scanned", state.scanned),
		attribute.Int("hits", len(hits)),
		attribute.Bool("bound_hit", state.boundHit),
	)
	return hits, state, nil
}

// merge verifies tenancy, decodes and scores the hits of both passes.
func (e *Engine) merge(ctx context.Context, q Query, threshold float64, approx, exh []vectorstore.Hit) ([]formatter.Candidate, error) {
	byID := make(map[string]*formatter.Candidate, len(approx)+len(exh))
	add := func(h vectorstore.Hit, prov formatter.Provenance) error {
		if got := chunk.PayloadTenant(h.Payload); got != q.TenantID {
			e.logger.Error(ctx, "tenant isolation violation",
				zap.String("chunk_id", h.ID),
				zap.String("payload_tenant", got),
				zap.String("pass", string(prov)),
			)
			return fmt.Errorf("%w: chunk %s", ErrIsolationViolation, h.ID)
		}
		if c, ok := byID[h.ID]; ok {
			if h.Score > c.RawScore {
				c.RawScore = h.Score
			}
			c.Provenance = c.Provenance.Merge(prov)
			return nil
		}

		decoded, err := chunk.FromPayload(h.ID, h.Payload)
		if err != nil {
			if errors.Is(err, chunk.ErrMissingTenant) {
				return fmt.Errorf("%w: chunk %s", ErrIsolationViolation, h.ID)
			}
			e.logger.Warn(ctx, "skipping undecodable chunk", zap.String("chunk_id", h.ID), zap.Error(err))
			return nil
		}
		byID[h.ID] = &formatter.Candidate{Chunk: decoded, RawScore: h.Score, Provenance: prov}
		return nil
	}

	for _, h := range approx {
		if err := add(h, formatter.Approximate); err != nil {
			return nil, err
		}
	}
	for _, h := range exh {
		if err := add(h, formatter.Exhaustive); err != nil {
			return nil, err
		}
	}

	now := e.now()
	out := make([]formatter.Candidate, 0, len(byID))
	for _, c := range byID {
		if c.RawScore < threshold {
			continue
		}
		if !c.Chunk.ValidAt(now) {
			continue
		}
		c.Score = c.RawScore * e.Boost(c.Chunk.ContentType)
		c.Preferred = q.prefers(c.Chunk)
		out = append(out, *c)
	}
	return out, nil
}
