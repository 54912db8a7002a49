package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps the static embedder and counts backend calls.
type countingEmbedder struct {
	*StaticEmbedder
	embedCalls atomic.Int64
	batchTexts atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embedCalls.Add(1)
	return c.StaticEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batchTexts.Add(int64(len(texts)))
	return c.StaticEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedder_HitSkipsBackend(t *testing.T) {
	// Given: a cached embedder over a call-counting backend
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 16)

	// When: the same text is embedded twice
	first, err := c.Embed(context.Background(), "wild magic surge")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "wild magic surge")
	require.NoError(t, err)

	// Then: the backend is called once and results match
	assert.Equal(t, int64(1), inner.embedCalls.Load())
	assert.Equal(t, first, second)
}

func TestCachedEmbedder_BatchOnlyMissesHitBackend(t *testing.T) {
	inner := &countingEmbedder{StaticEmbedder: NewStaticEmbedder()}
	c := NewCachedEmbedder(inner, 16)

	// Given: "a" is already cached
	_, err := c.Embed(context.Background(), "a")
	require.NoError(t, err)
	inner.embedCalls.Store(0)

	// When: a batch with one hit and two misses runs
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	// Then: only the two misses reach the backend
	assert.Equal(t, int64(2), inner.batchTexts.Load())

	// And: order is preserved
	want, err := NewStaticEmbedder().Embed(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, want, vecs[1])
}

func TestCachedEmbedder_Passthrough(t *testing.T) {
	inner := NewStaticEmbedder()
	c := NewCachedEmbedder(inner, 0) // 0 falls back to the default size

	assert.Equal(t, inner.Dimensions(), c.Dimensions())
	assert.Equal(t, inner.ModelName(), c.ModelName())
	assert.True(t, c.Available(context.Background()))
	require.NoError(t, c.Close())
	assert.False(t, c.Available(context.Background()))
}
