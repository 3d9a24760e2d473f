package vectorstore

import (
	"context"
	"sort"
	"sync"
)

// MemoryIndex is an exact in-process index. Search can be told to miss
// specific points, which stands in for an approximate index's recall gaps.
type MemoryIndex struct {
	dimension int

	mu        sync.RWMutex
	points    map[string]Point
	hidden    map[string]bool
	searchErr error
	scrollErr error
	upsertErr error
	searches  int
	scrolls   int
}

// NewMemoryIndex creates an empty index. dimension 0 accepts any length.
func NewMemoryIndex(dimension int) *MemoryIndex {
	return &MemoryIndex{
		dimension: dimension,
		points:    make(map[string]Point),
		hidden:    make(map[string]bool),
	}
}

func (m *MemoryIndex) Name() string { return "memory" }

// HideFromSearch makes Search skip ids. Scroll still returns them.
func (m *MemoryIndex) HideFromSearch(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.hidden[id] = true
	}
}

// FailSearch makes Search return err until cleared with nil.
func (m *MemoryIndex) FailSearch(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchErr = err
}

// FailScroll makes Scroll return err until cleared with nil.
func (m *MemoryIndex) FailScroll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scrollErr = err
}

// FailUpsert makes Upsert return err until cleared with nil.
func (m *MemoryIndex) FailUpsert(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertErr = err
}

// Len returns the number of stored points.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points)
}

// Get returns a stored point.
func (m *MemoryIndex) Get(id string) (Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.points[id]
	return p, ok
}

// Calls returns how many Search and Scroll calls were made.
func (m *MemoryIndex) Calls() (searches, scrolls int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.searches, m.scrolls
}

func (m *MemoryIndex) Upsert(ctx context.Context, points []Point) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validatePoints(points, m.dimension); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return unavailable("upsert", m.upsertErr)
	}
	for _, p := range points {
		m.points[p.ID] = clonePoint(p)
	}
	return nil
}

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, filter Filter, limit int, threshold float64) ([]Hit, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.searches++
	searchErr := m.searchErr
	m.mu.Unlock()
	if searchErr != nil {
		return nil, unavailable("search", searchErr)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []Hit
	for id, p := range m.points {
		if m.hidden[id] || !filter.Matches(p.Payload) {
			continue
		}
		score := CosineSimilarity(vector, p.Vector)
		if score < threshold {
			continue
		}
		hits = append(hits, Hit{ID: id, Score: score, Payload: p.Payload})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *MemoryIndex) Scroll(ctx context.Context, filter Filter, batchSize int, cursor string) ([]Point, string, error) {
	if err := filter.Validate(); err != nil {
		return nil, "", err
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	m.scrolls++
	scrollErr := m.scrollErr
	m.mu.Unlock()
	if scrollErr != nil {
		return nil, "", unavailable("scroll", scrollErr)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.points))
	for id, p := range m.points {
		if id > cursor && filter.Matches(p.Payload) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	next := ""
	if batchSize > 0 && len(ids) > batchSize {
		ids = ids[:batchSize]
		next = ids[len(ids)-1]
	}
	out := make([]Point, len(ids))
	for i, id := range ids {
		out[i] = clonePoint(m.points[id])
	}
	return out, next, nil
}

func (m *MemoryIndex) Delete(ctx context.Context, filter Filter) error {
	if err := filter.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, p := range m.points {
		if filter.Matches(p.Payload) {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *MemoryIndex) Close() error { return nil }

func clonePoint(p Point) Point {
	payload := make(map[string]interface{}, len(p.Payload))
	for k, v := range p.Payload {
		payload[k] = v
	}
	return Point{
		ID:      p.ID,
		Vector:  append([]float32(nil), p.Vector...),
		Payload: payload,
	}
}
