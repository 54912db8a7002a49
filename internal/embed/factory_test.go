package embed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_StaticProvider(t *testing.T) {
	e, err := New(context.Background(), FactoryConfig{Provider: ProviderStatic}, nil)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	assert.Equal(t, "static-256", e.ModelName())
	assert.Equal(t, StaticDimensions, e.Dimensions())

	// The factory always wraps with the LRU cache.
	_, ok := e.(*CachedEmbedder)
	assert.True(t, ok)
}

func TestFactory_UnknownProviderFails(t *testing.T) {
	_, err := New(context.Background(), FactoryConfig{Provider: "sbert"}, nil)
	require.Error(t, err)
}

func TestFactory_FallbackToStatic(t *testing.T) {
	// Given: an Ollama endpoint that cannot exist
	cfg := FactoryConfig{
		Provider:      ProviderOllama,
		OllamaHost:    "http://127.0.0.1:1", // reserved port, connection refused
		AllowFallback: true,
	}

	// When: the factory runs with fallback allowed
	e, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer func() { _ = e.Close() }()

	// Then: the static embedder serves instead
	assert.Equal(t, "static-256", e.ModelName())
}

func TestFactory_NoFallbackSurfacesError(t *testing.T) {
	cfg := FactoryConfig{
		Provider:   ProviderOllama,
		OllamaHost: "http://127.0.0.1:1",
	}
	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
}
