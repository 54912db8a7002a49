package index

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragmcp/internal/chunk"
	"github.com/Aman-CERP/ragmcp/internal/embed"
)

func chunksFrom(texts ...string) []chunk.Chunk {
	chunks := make([]chunk.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = chunk.Chunk{ID: uint64(i), Text: text}
	}
	return chunks
}

func TestBuilder_EmptyCorpus(t *testing.T) {
	b := NewBuilder(embed.NewStaticEmbedder(), 0, nil)

	_, err := b.Build(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

func TestBuilder_RowsMatchChunkOrder(t *testing.T) {
	// Given: chunks whose embeddings we can compute independently
	embedder := embed.NewStaticEmbedder()
	chunks := chunksFrom("owlbear tactics", "potion of healing", "dungeon turn order")
	b := NewBuilder(embedder, 2, nil) // batch boundary inside the corpus

	// When: the index is built
	idx, err := b.Build(context.Background(), chunks)
	require.NoError(t, err)

	// Then: row i is exactly the embedding of chunk i
	require.Equal(t, len(chunks), idx.Count())
	for i, c := range chunks {
		want, err := embedder.Embed(context.Background(), c.Text)
		require.NoError(t, err)
		assert.Equal(t, want, idx.Row(i))
	}
}

func TestBuilder_Deterministic(t *testing.T) {
	chunks := chunksFrom("first", "second", "third", "fourth", "fifth")
	b := NewBuilder(embed.NewStaticEmbedder(), 3, nil)

	one, err := b.Build(context.Background(), chunks)
	require.NoError(t, err)
	two, err := b.Build(context.Background(), chunks)
	require.NoError(t, err)

	require.Equal(t, one.Count(), two.Count())
	for i := 0; i < one.Count(); i++ {
		assert.Equal(t, one.Row(i), two.Row(i))
	}
}

func TestBuilder_SealsIndex(t *testing.T) {
	b := NewBuilder(embed.NewStaticEmbedder(), 0, nil)

	idx, err := b.Build(context.Background(), chunksFrom("sealed after build"))
	require.NoError(t, err)

	assert.ErrorIs(t, idx.Add(make([]float32, idx.Dimension())), ErrSealed)
}

// raggedEmbedder returns vectors of varying length to exercise the
// dimension check.
type raggedEmbedder struct {
	*embed.StaticEmbedder
	dims []int
	call int
}

func (r *raggedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, r.dims[r.call])
		r.call++
	}
	return vectors, nil
}

func TestBuilder_DimensionMismatchFails(t *testing.T) {
	embedder := &raggedEmbedder{StaticEmbedder: embed.NewStaticEmbedder(), dims: []int{4, 4, 3}}
	b := NewBuilder(embedder, 8, nil)

	_, err := b.Build(context.Background(), chunksFrom("a", "b", "c"))

	var dimErr *DimensionError
	require.ErrorAs(t, err, &dimErr)
	assert.Equal(t, 4, dimErr.Want)
	assert.Equal(t, 3, dimErr.Got)
}
