package index

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlatWith(t *testing.T, vectors [][]float32) *Flat {
	t.Helper()
	f, err := NewFlat(len(vectors[0]))
	require.NoError(t, err)
	for _, v := range vectors {
		require.NoError(t, f.Add(v))
	}
	return f
}

func TestFlat_SearchExactOrdering(t *testing.T) {
	// Given: vectors with known distances to the query
	f := newFlatWith(t, [][]float32{
		{0, 0},  // id 0
		{1, 0},  // id 1
		{5, 5},  // id 2
		{0, -1}, // id 3
	})
	f.Seal()

	// When: I search near the origin
	results, err := f.Search([]float32{0.1, 0}, 3)
	require.NoError(t, err)

	// Then: ascending squared distance, exact values
	require.Len(t, results, 3)
	assert.Equal(t, uint64(0), results[0].ChunkID)
	assert.InDelta(t, 0.01, results[0].Distance, 1e-6)
	assert.Equal(t, uint64(1), results[1].ChunkID)
	assert.InDelta(t, 0.81, results[1].Distance, 1e-6)
	assert.Equal(t, uint64(3), results[2].ChunkID)

	// And: ranks are 0-based positions
	for i, r := range results {
		assert.Equal(t, i, r.Rank)
	}
}

func TestFlat_SearchTieBreaksByLowerID(t *testing.T) {
	// Given: three vectors equidistant from the query
	f := newFlatWith(t, [][]float32{
		{0, 1},
		{1, 0},
		{0, -1},
		{9, 9},
	})
	f.Seal()

	results, err := f.Search([]float32{0, 0}, 3)
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, uint64(0), results[0].ChunkID)
	assert.Equal(t, uint64(1), results[1].ChunkID)
	assert.Equal(t, uint64(2), results[2].ChunkID)
}

func TestFlat_KLargerThanCount(t *testing.T) {
	f := newFlatWith(t, [][]float32{{0, 0}, {1, 1}})
	f.Seal()

	results, err := f.Search([]float32{0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestFlat_SearchDimensionMismatch(t *testing.T) {
	f := newFlatWith(t, [][]float32{{0, 0}})
	f.Seal()

	_, err := f.Search([]float32{0, 0, 0}, 1)
	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 2, dimErr.Want)
	assert.Equal(t, 3, dimErr.Got)
}

func TestFlat_SearchInvalidK(t *testing.T) {
	f := newFlatWith(t, [][]float32{{0, 0}})
	_, err := f.Search([]float32{0, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidK)
}

func TestFlat_AddDimensionMismatch(t *testing.T) {
	f, err := NewFlat(3)
	require.NoError(t, err)

	var dimErr *DimensionError
	assert.ErrorAs(t, f.Add([]float32{1, 2}), &dimErr)
}

func TestFlat_AddAfterSealFails(t *testing.T) {
	f, err := NewFlat(2)
	require.NoError(t, err)
	require.NoError(t, f.Add([]float32{1, 2}))

	f.Seal()
	assert.ErrorIs(t, f.Add([]float32{3, 4}), ErrSealed)
	assert.Equal(t, 1, f.Count())
}

func TestFlat_EmptySearchReturnsNoResults(t *testing.T) {
	f, err := NewFlat(2)
	require.NoError(t, err)

	results, err := f.Search([]float32{0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFlat_RoundTrip(t *testing.T) {
	// Given: a populated index
	vectors := [][]float32{{0.5, -1.25, 3}, {2, 2, 2}, {-0.001, 0, 1e6}}
	f := newFlatWith(t, vectors)
	f.Seal()

	// When: I write and re-read the matrix
	var buf bytes.Buffer
	n, err := f.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(3*3*4), n)

	loaded, err := ReadFlat(&buf, 3, 3)
	require.NoError(t, err)

	// Then: rows are bit-identical and the loaded index is sealed
	assert.Equal(t, f.Count(), loaded.Count())
	for i := range vectors {
		assert.Equal(t, f.Row(i), loaded.Row(i))
	}
	assert.ErrorIs(t, loaded.Add([]float32{0, 0, 0}), ErrSealed)

	// And: search behaves identically
	want, err := f.Search([]float32{0, 0, 0}, 2)
	require.NoError(t, err)
	got, err := loaded.Search([]float32{0, 0, 0}, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestReadFlat_TruncatedData(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 2, 3}) // not even one float32

	_, err := ReadFlat(&buf, 2, 2)
	require.Error(t, err)
}
