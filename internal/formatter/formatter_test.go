package formatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
)

func cand(id string, ct chunk.ContentType, text string, score float64) Candidate {
	return Candidate{
		Chunk: &chunk.DocumentChunk{
			ID:            id,
			TenantID:      "acme",
			SourceFileID:  "src-" + id,
			RawContent:    "raw " + text,
			EmbeddingText: text,
			ContentType:   ct,
		},
		RawScore:   score,
		Score:      score,
		Provenance: Approximate,
	}
}

func ids(chunks []ScoredChunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.ChunkID
	}
	return out
}

func TestProjectionFor_CoversEveryContentType(t *testing.T) {
	for _, ct := range chunk.AllContentTypes {
		p, ok := ProjectionFor(ct)
		assert.True(t, ok, "content type %s has no projection", ct)
		assert.Equal(t, ct.IsExtracted(), p == ProjectionMinimal, ct)
	}
	_, ok := ProjectionFor("brochure")
	assert.False(t, ok)
}

func TestShape_MinimalProjection(t *testing.T) {
	out := Shape([]Candidate{
		cand("a", chunk.ExtractedProduct, "red jacket, $40", 0.9),
		cand("b", chunk.Product, "red jacket", 0.8),
	})
	require.Len(t, out, 2)

	assert.Nil(t, out[0].Chunk)
	require.NotNil(t, out[0].Minimal)
	assert.Equal(t, Minimal{
		ChunkID:       "a",
		Score:         0.9,
		RetrievalText: "red jacket, $40",
		ContentType:   chunk.ExtractedProduct,
		SourceFileID:  "src-a",
	}, *out[0].Minimal)

	assert.Nil(t, out[1].Minimal)
	require.NotNil(t, out[1].Chunk)
	assert.Equal(t, "raw red jacket", out[1].Chunk.RawContent)
}

func TestShape_DedupeByID(t *testing.T) {
	low := cand("a", chunk.FAQ, "hours", 0.72)
	high := cand("a", chunk.FAQ, "hours", 0.81)
	high.Provenance = Exhaustive

	out := Shape([]Candidate{low, high})
	require.Len(t, out, 1)
	assert.InDelta(t, 0.81, out[0].Score, 1e-9)
	assert.Equal(t, Both, out[0].Provenance)
}

func TestShape_KeepsDistinctChunksWithSameText(t *testing.T) {
	out := Shape([]Candidate{
		cand("a", chunk.FAQ, "We open at  9", 0.75),
		cand("b", chunk.FAQ, "we open at 9", 0.85),
		cand("c", chunk.Policy, "we open at 9", 0.70),
	})
	assert.Equal(t, []string{"b", "a", "c"}, ids(out))
}

func TestShape_SkipsNilChunks(t *testing.T) {
	assert.Empty(t, Shape([]Candidate{{Score: 1}}))
}

func TestRank(t *testing.T) {
	pref := cand("p", chunk.FAQ, "faq", 0.71)
	pref.Preferred = true

	tieA := cand("t2", chunk.Policy, "x", 0.8)
	tieB := cand("t1", chunk.Policy, "y", 0.8)
	boosted := cand("boost", chunk.Product, "z", 0.75)
	boosted.Score = 0.9

	chunks := Shape([]Candidate{tieA, tieB, boosted, pref})
	ranked := Rank(chunks, 0)
	assert.Equal(t, []string{"p", "boost", "t1", "t2"}, ids(ranked))

	assert.Equal(t, []string{"p", "boost"}, ids(Rank(ranked, 2)))
}

func TestRank_RawScoreBreaksTies(t *testing.T) {
	a := cand("a", chunk.Product, "a", 0.7)
	a.Score = 0.84
	b := cand("b", chunk.Service, "b", 0.8)
	b.Score = 0.84
	assert.Equal(t, []string{"b", "a"}, ids(Rank(Shape([]Candidate{a, b}), 10)))
}

func TestProvenanceMerge(t *testing.T) {
	assert.Equal(t, Approximate, Provenance("").Merge(Approximate))
	assert.Equal(t, Exhaustive, Exhaustive.Merge(""))
	assert.Equal(t, Exhaustive, Exhaustive.Merge(Exhaustive))
	assert.Equal(t, Both, Approximate.Merge(Exhaustive))
	assert.Equal(t, Both, Both.Merge(Approximate))
}
