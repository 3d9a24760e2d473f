// Package formatter shapes scored chunks into the payloads returned to callers.
// It performs no I/O.
package formatter

import (
	"sort"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
)

// Provenance records which retrieval pass produced a chunk.
type Provenance string

const (
	Approximate Provenance = "approximate"
	Exhaustive  Provenance = "exhaustive"
	Both        Provenance = "both"
)

// Merge combines the provenance of two sightings of the same chunk.
func (p Provenance) Merge(other Provenance) Provenance {
	switch {
	case p == "":
		return other
	case other == "" || p == other:
		return p
	default:
		return Both
	}
}

// Projection is the payload shape returned for a content type.
type Projection int

const (
	// ProjectionFull returns the complete chunk.
	ProjectionFull Projection = iota + 1
	// ProjectionMinimal returns only identity, score and retrieval text.
	ProjectionMinimal
)

// ProjectionFor returns the shape used for ct. ok is false for content
// types outside the closed set.
func ProjectionFor(ct chunk.ContentType) (p Projection, ok bool) {
	switch ct {
	case chunk.ExtractedProduct, chunk.ExtractedService:
		return ProjectionMinimal, true
	case chunk.CompanyInfo, chunk.Product, chunk.Service, chunk.Policy, chunk.FAQ, chunk.KnowledgeBase, chunk.Other:
		return ProjectionFull, true
	}
	return ProjectionFull, false
}

// Candidate is a decoded chunk with its scores, before shaping.
type Candidate struct {
	Chunk      *chunk.DocumentChunk
	RawScore   float64
	Score      float64
	Provenance Provenance
	Preferred  bool
}

// Minimal is the reduced payload for extracted items.
type Minimal struct {
	ChunkID       string            `json:"chunk_id"`
	Score         float64           `json:"score"`
	RetrievalText string            `json:"retrieval_text"`
	ContentType   chunk.ContentType `json:"content_type"`
	SourceFileID  string            `json:"source_file_id"`
}

// ScoredChunk is one result. Exactly one of Chunk and Minimal is set.
type ScoredChunk struct {
	ChunkID     string               `json:"chunk_id"`
	ContentType chunk.ContentType    `json:"content_type"`
	Score       float64              `json:"score"`
	RawScore    float64              `json:"raw_score"`
	Provenance  Provenance           `json:"provenance"`
	Preferred   bool                 `json:"preferred"`
	Chunk       *chunk.DocumentChunk `json:"chunk,omitempty"`
	Minimal     *Minimal             `json:"minimal,omitempty"`
}

// Shape dedupes candidates by chunk ID, keeping the higher score, and
// projects each survivor. Distinct chunks are never collapsed, even when
// their text is identical. The result is in rank order.
func Shape(candidates []Candidate) []ScoredChunk {
	byID := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		if c.Chunk == nil {
			continue
		}
		prev, ok := byID[c.Chunk.ID]
		if !ok {
			byID[c.Chunk.ID] = c
			continue
		}
		keep := prev
		if better(c, prev) {
			keep = c
		}
		keep.Provenance = prev.Provenance.Merge(c.Provenance)
		keep.Preferred = prev.Preferred || c.Preferred
		byID[c.Chunk.ID] = keep
	}

	unique := make([]Candidate, 0, len(byID))
	for _, c := range byID {
		unique = append(unique, c)
	}
	sort.Slice(unique, func(i, j int) bool { return better(unique[i], unique[j]) })

	out := make([]ScoredChunk, len(unique))
	for i, c := range unique {
		out[i] = project(c)
	}
	return out
}

// Rank orders chunks by preference tier, score, raw score and chunk ID,
// then truncates to limit. A limit of zero or less keeps everything.
func Rank(chunks []ScoredChunk, limit int) []ScoredChunk {
	sort.SliceStable(chunks, func(i, j int) bool {
		a, b := chunks[i], chunks[j]
		if a.Preferred != b.Preferred {
			return a.Preferred
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.RawScore != b.RawScore {
			return a.RawScore > b.RawScore
		}
		return a.ChunkID < b.ChunkID
	})
	if limit > 0 && len(chunks) > limit {
		chunks = chunks[:limit]
	}
	return chunks
}

func better(a, b Candidate) bool {
	if a.Preferred != b.Preferred {
		return a.Preferred
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.RawScore != b.RawScore {
		return a.RawScore > b.RawScore
	}
	return a.Chunk.ID < b.Chunk.ID
}

func project(c Candidate) ScoredChunk {
	sc := ScoredChunk{
		ChunkID:     c.Chunk.ID,
		ContentType: c.Chunk.ContentType,
		Score:       c.Score,
		RawScore:    c.RawScore,
		Provenance:  c.Provenance,
		Preferred:   c.Preferred,
	}
	if p, _ := ProjectionFor(c.Chunk.ContentType); p == ProjectionMinimal {
		sc.Minimal = &Minimal{
			ChunkID:       c.Chunk.ID,
			Score:         c.Score,
			RetrievalText: c.Chunk.RetrievalText(),
			ContentType:   c.Chunk.ContentType,
			SourceFileID:  c.Chunk.SourceFileID,
		}
		return sc
	}
	sc.Chunk = c.Chunk
	return sc
}
