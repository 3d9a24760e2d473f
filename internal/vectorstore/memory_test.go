package vectorstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/tenantrag/internal/chunk"
)

func TestMemoryIndex_Contract(t *testing.T) {
	testIndexContract(t, NewMemoryIndex(4), true)
}

func TestMemoryIndex_HideFromSearch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(4)
	a1, a2, _, _ := contractPoints()
	require.NoError(t, idx.Upsert(ctx, []Point{a1, a2}))

	idx.HideFromSearch(a1.ID)
	hits, err := idx.Search(ctx, []float32{1, 0, 0, 0}, Filter{TenantID: "acme"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{a2.ID}, hitIDs(hits))

	points, next, err := idx.Scroll(ctx, Filter{TenantID: "acme"}, 10, "")
	require.NoError(t, err)
	assert.Len(t, points, 2)
	assert.Empty(t, next)
}

func TestMemoryIndex_FailureInjection(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(4)
	boom := errors.New("boom")

	idx.FailSearch(boom)
	_, err := idx.Search(ctx, []float32{1, 0, 0, 0}, Filter{TenantID: "acme"}, 1, 0)
	assert.ErrorIs(t, err, ErrIndexUnavailable)
	assert.ErrorIs(t, err, boom)

	idx.FailScroll(boom)
	_, _, err = idx.Scroll(ctx, Filter{TenantID: "acme"}, 1, "")
	assert.ErrorIs(t, err, ErrIndexUnavailable)

	idx.FailUpsert(boom)
	a1, _, _, _ := contractPoints()
	assert.ErrorIs(t, idx.Upsert(ctx, []Point{a1}), ErrIndexUnavailable)
	assert.Equal(t, 0, idx.Len())

	searches, scrolls := idx.Calls()
	assert.Equal(t, 1, searches)
	assert.Equal(t, 1, scrolls)
}

func TestMemoryIndex_StoresCopies(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(0)
	p := testPoint("acme", "f", chunk.FAQ, 0, []float32{1, 0})
	require.NoError(t, idx.Upsert(ctx, []Point{p}))

	p.Vector[0] = 42
	p.Payload[chunk.FieldTenantID] = "globex"

	got, ok := idx.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, float32(1), got.Vector[0])
	assert.Equal(t, "acme", chunk.PayloadTenant(got.Payload))
}
