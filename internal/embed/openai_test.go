package embed

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIEmbedder_RequiresKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	_, err := NewOpenAIEmbedder(OpenAIConfig{})
	require.Error(t, err)
}

func TestNewOpenAIEmbedder_KnownModelDimensions(t *testing.T) {
	e, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "sk-test", Model: "text-embedding-3-large"})
	require.NoError(t, err)
	assert.Equal(t, 3072, e.Dimensions())
	assert.Equal(t, "text-embedding-3-large", e.ModelName())
}

func TestOrderByIndex_RestoresInputOrder(t *testing.T) {
	// Given: a response whose items arrive out of order
	data := []openai.Embedding{
		{Index: 2, Embedding: []float32{2}},
		{Index: 0, Embedding: []float32{0}},
		{Index: 1, Embedding: []float32{1}},
	}

	out, err := orderByIndex(data)
	require.NoError(t, err)

	// Then: vector i corresponds to input text i
	require.Len(t, out, 3)
	for i := range out {
		assert.Equal(t, []float32{float32(i)}, out[i])
	}
}

func TestOrderByIndex_RejectsBadIndices(t *testing.T) {
	_, err := orderByIndex([]openai.Embedding{
		{Index: 0, Embedding: []float32{0}},
		{Index: 0, Embedding: []float32{0}},
	})
	assert.ErrorContains(t, err, "duplicate")

	_, err = orderByIndex([]openai.Embedding{
		{Index: 5, Embedding: []float32{0}},
	})
	assert.ErrorContains(t, err, "out of range")
}
