package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
	"github.com/fyrsmithlabs/tenantrag/internal/config"
	"github.com/fyrsmithlabs/tenantrag/internal/embeddings"
	"github.com/fyrsmithlabs/tenantrag/internal/formatter"
	"github.com/fyrsmithlabs/tenantrag/internal/logging"
	"github.com/fyrsmithlabs/tenantrag/internal/telemetry"
	"github.com/fyrsmithlabs/tenantrag/internal/tenant"
	"github.com/fyrsmithlabs/tenantrag/internal/vectorstore"
)

const (
	dim       = 4
	queryText = "red jacket"
)

var fixedNow = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// unit returns a vector whose cosine similarity with [1,0,0,0] is c.
func unit(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c)), 0, 0}
}

type env struct {
	engine   *Engine
	index    *vectorstore.MemoryIndex
	provider *embeddings.FakeProvider
	logger   *logging.TestLogger
}

func newEnv(t *testing.T, cfg config.RetrievalConfig) *env {
	t.Helper()
	ctx := context.Background()

	reg := tenant.NewRegistry(tenant.NewMemoryStore())
	require.NoError(t, reg.Register(ctx, &tenant.Config{TenantID: "acme", Industry: tenant.Retail}))
	require.NoError(t, reg.Register(ctx, &tenant.Config{TenantID: "globex", Industry: tenant.Retail}))

	provider := embeddings.NewFakeProvider(dim)
	provider.Set(queryText, []float32{1, 0, 0, 0})
	gw, err := embeddings.NewGateway(provider, dim)
	require.NoError(t, err)

	index := vectorstore.NewMemoryIndex(dim)
	logger := logging.NewTestLogger()
	return &env{
		engine:   NewEngine(reg, gw, index, cfg, WithLogger(logger.Logger), WithClock(func() time.Time { return fixedNow })),
		index:    index,
		provider: provider,
		logger:   logger,
	}
}

func (e *env) put(t *testing.T, c *chunk.DocumentChunk, vec []float32) {
	t.Helper()
	payload, err := chunk.ToPayload(c)
	require.NoError(t, err)
	require.NoError(t, e.index.Upsert(context.Background(), []vectorstore.Point{{ID: c.ID, Vector: vec, Payload: payload}}))
}

func newChunk(tenantID, source string, ct chunk.ContentType, seq int, text string) *chunk.DocumentChunk {
	return &chunk.DocumentChunk{
		ID:            chunk.DeriveID(tenantID, source, ct, seq),
		TenantID:      tenantID,
		SourceFileID:  source,
		RawContent:    text,
		EmbeddingText: text,
		ContentType:   ct,
		Language:      "en",
		CreatedAt:     fixedNow.Add(-time.Hour),
		UpdatedAt:     fixedNow.Add(-time.Hour),
	}
}

// seedRetail stores the retail scenario for acme plus a near-identical
// globex catalog.
func (e *env) seedRetail(t *testing.T) (product, faq, policy *chunk.DocumentChunk) {
	product = newChunk("acme", "catalog.csv", chunk.Product, 0, "Red cotton jacket $40")
	faq = newChunk("acme", "faq.md", chunk.FAQ, 0, "Do jackets run small? No.")
	policy = newChunk("acme", "returns.md", chunk.Policy, 0, "Returns within 30 days")
	e.put(t, product, unit(0.9))
	e.put(t, faq, unit(0.8))
	e.put(t, policy, unit(0.6))

	e.put(t, newChunk("globex", "catalog.csv", chunk.Product, 0, "Red jacket"), []float32{1, 0, 0, 0})
	e.put(t, newChunk("globex", "faq.md", chunk.FAQ, 0, "Jackets"), unit(0.95))
	return product, faq, policy
}

func resultIDs(r *Result) []string {
	out := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		out[i] = c.ChunkID
	}
	return out
}

func TestRetrieve_RetailScenario(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	product, faq, policy := e.seedRetail(t)

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.Warnings)
	require.Equal(t, []string{product.ID, faq.ID}, resultIDs(res))
	assert.NotContains(t, resultIDs(res), policy.ID)

	top := res.Chunks[0]
	assert.InDelta(t, 0.9, top.RawScore, 1e-5)
	assert.InDelta(t, 0.9*1.2, top.Score, 1e-5)
	assert.Equal(t, formatter.Both, top.Provenance)
	require.NotNil(t, top.Chunk)
	assert.Equal(t, "acme", top.Chunk.TenantID)

	assert.InDelta(t, 0.8, res.Chunks[1].Score, 1e-5)
	assert.Equal(t, 3, res.Scanned)
}

func TestRetrieve_JacketPriceScenario(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	reg := e.engine.tenants.(*tenant.Registry)
	require.NoError(t, reg.Register(context.Background(), &tenant.Config{TenantID: "T1", Industry: tenant.Retail}))
	e.provider.Set("jacket price", []float32{1, 0, 0, 0})

	product := newChunk("T1", "catalog.csv", chunk.Product, 0, "red cotton jacket, $40")
	faq := newChunk("T1", "faq.md", chunk.FAQ, 0, "store hours 9-5")
	company := newChunk("T1", "about.md", chunk.CompanyInfo, 0, "Acme Retail, founded 2010")
	e.put(t, product, unit(0.85))
	e.put(t, faq, unit(0.2))
	e.put(t, company, unit(0.55))

	res, err := e.engine.Retrieve(context.Background(), Query{
		TenantID:       "T1",
		Text:           "jacket price",
		ScoreThreshold: Threshold(0.5),
		Limit:          5,
	})
	require.NoError(t, err)
	require.Equal(t, []string{product.ID, company.ID}, resultIDs(res))
	assert.NotContains(t, resultIDs(res), faq.ID, "chunks below threshold are excluded entirely")

	assert.Equal(t, chunk.Product, res.Chunks[0].ContentType)
	assert.InDelta(t, 0.85*1.2, res.Chunks[0].Score, 1e-5)
	assert.Equal(t, chunk.CompanyInfo, res.Chunks[1].ContentType)
	assert.InDelta(t, 0.55, res.Chunks[1].RawScore, 1e-5)
	assert.InDelta(t, 0.55*1.1, res.Chunks[1].Score, 1e-5)
}

func TestRetrieve_TenantIsolation(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	e.seedRetail(t)

	for _, threshold := range []float64{0, 0.5, 0.9} {
		res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText, ScoreThreshold: Threshold(threshold), Limit: 100})
		require.NoError(t, err)
		for _, c := range res.Chunks {
			got := c.ChunkID
			if c.Chunk != nil {
				assert.Equal(t, "acme", c.Chunk.TenantID)
			}
			assert.NotEqual(t, chunk.DeriveID("globex", "catalog.csv", chunk.Product, 0), got)
			assert.NotEqual(t, chunk.DeriveID("globex", "faq.md", chunk.FAQ, 0), got)
		}
	}
}

// leakyIndex returns a foreign tenant's point from every search.
type leakyIndex struct {
	*vectorstore.MemoryIndex
	foreign vectorstore.Hit
}

func (l *leakyIndex) Search(ctx context.Context, vector []float32, f vectorstore.Filter, limit int, threshold float64) ([]vectorstore.Hit, error) {
	hits, err := l.MemoryIndex.Search(ctx, vector, f, limit, threshold)
	return append(hits, l.foreign), err
}

func TestRetrieve_IsolationViolationFailsClosed(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	e.seedRetail(t)

	foreign := newChunk("globex", "catalog.csv", chunk.Product, 0, "Red jacket")
	payload, err := chunk.ToPayload(foreign)
	require.NoError(t, err)
	e.engine.index = &leakyIndex{MemoryIndex: e.index, foreign: vectorstore.Hit{ID: foreign.ID, Score: 1, Payload: payload}}

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	assert.ErrorIs(t, err, ErrIsolationViolation)
	assert.Nil(t, res)
	assert.False(t, IsRetryable(err))
	e.logger.AssertLogged(t, zapcore.ErrorLevel, "tenant isolation violation")

	delete(payload, chunk.FieldTenantID)
	_, err = e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	assert.ErrorIs(t, err, ErrIsolationViolation, "a payload without tenant_id is never trusted")
}

func TestRetrieve_ThresholdMonotonicity(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	e.seedRetail(t)
	for i, c := range []float64{0.55, 0.65, 0.75, 0.85, 0.95} {
		e.put(t, newChunk("acme", "kb.md", chunk.KnowledgeBase, i, "note"+string(rune('a'+i))), unit(c))
	}

	var prev map[string]bool
	for _, threshold := range []float64{0.5, 0.6, 0.7, 0.8, 0.9} {
		res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText, ScoreThreshold: Threshold(threshold), Limit: 100})
		require.NoError(t, err)
		cur := map[string]bool{}
		for _, c := range res.Chunks {
			cur[c.ChunkID] = true
			assert.GreaterOrEqual(t, c.RawScore, threshold-1e-9)
		}
		if prev != nil {
			for id := range cur {
				assert.True(t, prev[id], "raising the threshold to %v added %s", threshold, id)
			}
		}
		prev = cur
	}
}

func TestRetrieve_HybridRecoversApproximateMisses(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	product, faq, _ := e.seedRetail(t)
	e.index.HideFromSearch(product.ID)

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	require.Equal(t, []string{product.ID, faq.ID}, resultIDs(res))
	assert.Equal(t, formatter.Exhaustive, res.Chunks[0].Provenance)
	assert.Equal(t, formatter.Both, res.Chunks[1].Provenance)

	approx, err := e.index.Search(context.Background(), []float32{1, 0, 0, 0}, vectorstore.Filter{TenantID: "acme"}, 20, 0.7)
	require.NoError(t, err)
	for _, h := range approx {
		assert.Contains(t, resultIDs(res), h.ID, "hybrid results must include every approximate hit")
	}
}

func TestRetrieve_SameTextChunksAreKeptApart(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	a := newChunk("acme", "faq-a.md", chunk.FAQ, 0, "Store hours 9-5")
	b := newChunk("acme", "faq-b.md", chunk.FAQ, 0, "Store hours 9-5")
	e.put(t, a, unit(0.9))
	e.put(t, b, unit(0.9))

	hidden, visible := a, b
	if b.ID < a.ID {
		hidden, visible = b, a
	}
	e.index.HideFromSearch(hidden.ID)

	approx, err := e.index.Search(context.Background(), []float32{1, 0, 0, 0}, vectorstore.Filter{TenantID: "acme"}, 20, 0.7)
	require.NoError(t, err)
	require.Len(t, approx, 1)
	require.Equal(t, visible.ID, approx[0].ID)

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, resultIDs(res))
	for _, h := range approx {
		assert.Contains(t, resultIDs(res), h.ID, "hybrid results must include every approximate hit")
	}
}

func TestRetrieve_SoftContentTypeFilter(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	product, faq, _ := e.seedRetail(t)

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText, ContentTypes: []chunk.ContentType{chunk.FAQ}})
	require.NoError(t, err)
	require.Equal(t, []string{faq.ID, product.ID}, resultIDs(res), "preferred type ranks first, others are kept")
	assert.True(t, res.Chunks[0].Preferred)
	assert.False(t, res.Chunks[1].Preferred)

	res, err = e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText, ContentTypes: []chunk.ContentType{chunk.CompanyInfo}})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Chunks, "a soft filter never empties the result when other types pass")

	searches, _ := e.index.Calls()
	assert.Equal(t, 4, searches, "soft filters add one preferred search per query")
}

func TestRetrieve_LanguagePreferenceIgnoresCase(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	english := newChunk("acme", "faq.md", chunk.FAQ, 0, "We ship worldwide")
	english.Language = "EN"
	german := newChunk("acme", "faq.md", chunk.FAQ, 1, "Wir liefern weltweit")
	german.Language = "de"
	e.put(t, english, unit(0.8))
	e.put(t, german, unit(0.9))

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText, Language: " En"})
	require.NoError(t, err)
	require.Equal(t, []string{english.ID, german.ID}, resultIDs(res))
	assert.True(t, res.Chunks[0].Preferred)
	assert.Equal(t, "en", res.Chunks[0].Chunk.Language)
	assert.False(t, res.Chunks[1].Preferred)
}

func TestRetrieve_ThresholdAppliesBeforeBoost(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	weak := newChunk("acme", "catalog.csv", chunk.ExtractedProduct, 0, "Jacket, $40")
	e.put(t, weak, unit(0.65))

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.Empty(t, res.Chunks, "0.65 * 1.3 passes 0.7 but the raw score does not")
	assert.NotNil(t, res.Chunks)
}

func TestRetrieve_MinimalProjectionForExtracted(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	extracted := newChunk("acme", "catalog.pdf", chunk.ExtractedProduct, 0, "Red jacket, $40")
	e.put(t, extracted, unit(0.8))

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	require.Len(t, res.Chunks, 1)
	assert.Nil(t, res.Chunks[0].Chunk)
	require.NotNil(t, res.Chunks[0].Minimal)
	assert.Equal(t, "Red jacket, $40", res.Chunks[0].Minimal.RetrievalText)
	assert.InDelta(t, 0.8*1.3, res.Chunks[0].Minimal.Score, 1e-5)
}

func TestRetrieve_ValidityWindow(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	expired := newChunk("acme", "promo.md", chunk.Policy, 0, "Summer sale")
	until := fixedNow.Add(-24 * time.Hour)
	expired.ValidUntil = &until
	future := newChunk("acme", "promo.md", chunk.Policy, 1, "Winter sale")
	from := fixedNow.Add(24 * time.Hour)
	future.ValidFrom = &from
	current := newChunk("acme", "promo.md", chunk.Policy, 2, "Spring sale")
	current.ValidUntil = &from

	e.put(t, expired, unit(0.9))
	e.put(t, future, unit(0.9))
	e.put(t, current, unit(0.9))

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.Equal(t, []string{current.ID}, resultIDs(res))
}

func TestRetrieve_Limit(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{MaxLimit: 2, DefaultLimit: 1})
	e.seedRetail(t)
	e.put(t, newChunk("acme", "kb.md", chunk.KnowledgeBase, 0, "jackets"), unit(0.75))

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.Len(t, res.Chunks, 1)

	res, err = e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, res.Chunks, 2, "limit is capped at max_limit")
}

func TestRetrieve_ExhaustiveUnavailable(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	product, faq, _ := e.seedRetail(t)
	e.index.FailScroll(errors.New("scroll timeout"))

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, []Warning{WarningExhaustiveUnavailable}, res.Warnings)
	assert.Equal(t, []string{product.ID, faq.ID}, resultIDs(res))
	assert.Equal(t, formatter.Approximate, res.Chunks[0].Provenance)
	e.logger.AssertLogged(t, zapcore.WarnLevel, "exhaustive pass unavailable")
}

func TestRetrieve_ApproximateUnavailable(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	product, faq, _ := e.seedRetail(t)
	e.index.FailSearch(errors.New("hnsw rebuilding"))

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, []Warning{WarningApproximateUnavailable}, res.Warnings)
	assert.Equal(t, []string{product.ID, faq.ID}, resultIDs(res))
	assert.Equal(t, formatter.Exhaustive, res.Chunks[0].Provenance)
}

func TestRetrieve_BothPassesUnavailable(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	e.seedRetail(t)
	e.index.FailSearch(errors.New("down"))
	e.index.FailScroll(errors.New("down"))

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.True(t, IsRetryable(err))
}

func TestRetrieve_ScrollUnsupportedDegrades(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	e.seedRetail(t)
	e.index.FailScroll(vectorstore.ErrScrollUnsupported)

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Warnings, WarningExhaustiveUnavailable)
}

func TestRetrieve_ScanBound(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{ScanBatchSize: 2, MaxScanPoints: 3})
	for i := 0; i < 6; i++ {
		e.put(t, newChunk("acme", "kb.md", chunk.KnowledgeBase, i, "note"+string(rune('a'+i))), unit(0.8))
	}

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Scanned)
	assert.Contains(t, res.Warnings, WarningScanBoundExceeded)
	assert.False(t, res.Degraded)
	assert.NotEmpty(t, res.Chunks)

	_, scrolls := e.index.Calls()
	assert.Equal(t, 2, scrolls)
}

func TestRetrieve_ScanPagesThroughEverything(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{ScanBatchSize: 2, MaxScanPoints: 100})
	for i := 0; i < 5; i++ {
		e.put(t, newChunk("acme", "kb.md", chunk.KnowledgeBase, i, "note"+string(rune('a'+i))), unit(0.8))
	}
	e.index.HideFromSearch()

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	assert.Equal(t, 5, res.Scanned)
	assert.Empty(t, res.Warnings)
	assert.Len(t, res.Chunks, 5)
}

func TestRetrieve_Validation(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	ctx := context.Background()

	_, err := e.engine.Retrieve(ctx, Query{TenantID: "acme", Text: "  "})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = e.engine.Retrieve(ctx, Query{TenantID: "acme", Text: queryText, ScoreThreshold: Threshold(1.5)})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = e.engine.Retrieve(ctx, Query{TenantID: "acme", Text: queryText, Limit: -1})
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = e.engine.Retrieve(ctx, Query{TenantID: "acme", Text: queryText, ContentTypes: []chunk.ContentType{"brochure"}})
	assert.ErrorIs(t, err, chunk.ErrUnknownContentType)

	_, err = e.engine.Retrieve(ctx, Query{TenantID: "nobody", Text: queryText})
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
	assert.False(t, IsRetryable(err))

	assert.Equal(t, 0, e.provider.Calls())
}

func TestRetrieve_EmbeddingUnavailable(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	e.provider.SetErr(errors.New("tei down"))

	_, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	assert.ErrorIs(t, err, embeddings.ErrEmbeddingUnavailable)
	assert.True(t, IsRetryable(err))

	searches, scrolls := e.index.Calls()
	assert.Zero(t, searches+scrolls)
}

func TestRetrieve_Cancelled(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	e.seedRetail(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.engine.Retrieve(ctx, Query{TenantID: "acme", Text: queryText})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

// stalledScrollIndex blocks every Scroll until the context ends.
type stalledScrollIndex struct {
	*vectorstore.MemoryIndex
}

func (s *stalledScrollIndex) Scroll(ctx context.Context, _ vectorstore.Filter, _ int, _ string) ([]vectorstore.Point, string, error) {
	<-ctx.Done()
	return nil, "", ctx.Err()
}

func TestRetrieve_TimeoutIsRetryable(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{Timeout: config.Duration(50 * time.Millisecond)})
	e.seedRetail(t)
	e.engine.index = &stalledScrollIndex{MemoryIndex: e.index}

	res, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRetrievalUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, IsRetryable(err))
	e.logger.AssertLogged(t, zapcore.WarnLevel, "retrieval timed out")
}

func TestRetrieve_Spans(t *testing.T) {
	tel := telemetry.NewTestTelemetry(t)
	e := newEnv(t, config.RetrievalConfig{})
	e.seedRetail(t)

	_, err := e.engine.Retrieve(context.Background(), Query{TenantID: "acme", Text: queryText})
	require.NoError(t, err)
	tel.AssertSpanExists(t, "Engine.Retrieve")
	tel.AssertSpanExists(t, "Engine.approximatePass")
	tel.AssertSpanExists(t, "Engine.exhaustivePass")
	tel.AssertSpanAttribute(t, "Engine.Retrieve", "tenant.id", "acme")
}

func TestBoost(t *testing.T) {
	e := newEnv(t, config.RetrievalConfig{})
	assert.Equal(t, 1.3, e.engine.Boost(chunk.ExtractedProduct))
	assert.Equal(t, 1.3, e.engine.Boost(chunk.ExtractedService))
	assert.Equal(t, 1.2, e.engine.Boost(chunk.Product))
	assert.Equal(t, 1.2, e.engine.Boost(chunk.Service))
	assert.Equal(t, 1.1, e.engine.Boost(chunk.CompanyInfo))
	assert.Equal(t, 1.0, e.engine.Boost(chunk.FAQ))

	custom := newEnv(t, config.RetrievalConfig{Boosts: map[string]float64{"faq": 2}})
	assert.Equal(t, 2.0, custom.engine.Boost(chunk.FAQ))
	assert.Equal(t, 1.0, custom.engine.Boost(chunk.Product))
}
