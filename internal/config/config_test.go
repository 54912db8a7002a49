package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, 512, cfg.Chunking.SizeTokens)
	assert.Equal(t, 50, cfg.Chunking.OverlapTokens)
	assert.Equal(t, 4, cfg.Chunking.UnitsPerToken)
	assert.Equal(t, ProviderOllama, cfg.Embeddings.Provider)
	assert.Equal(t, LoadPolicyBlock, cfg.Service.LoadPolicy)
	assert.NoError(t, cfg.Validate())
}

func TestChunkingConfig_RuneWindow(t *testing.T) {
	c := ChunkingConfig{SizeTokens: 512, OverlapTokens: 50, UnitsPerToken: 4}
	size, overlap := c.RuneWindow()
	assert.Equal(t, 2048, size)
	assert.Equal(t, 200, overlap)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	// Given: a config file overriding paths and chunking
	dir := t.TempDir()
	path := filepath.Join(dir, "ragmcp.yaml")
	content := `
paths:
  corpus_dir: /srv/books
  artifacts_dir: /srv/artifacts
chunking:
  size_tokens: 256
  overlap_tokens: 32
embeddings:
  provider: static
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	// When: I load it
	cfg, err := Load(path)
	require.NoError(t, err)

	// Then: overridden keys change, untouched defaults survive
	assert.Equal(t, "/srv/books", cfg.Paths.CorpusDir)
	assert.Equal(t, 256, cfg.Chunking.SizeTokens)
	assert.Equal(t, 32, cfg.Chunking.OverlapTokens)
	assert.Equal(t, ProviderStatic, cfg.Embeddings.Provider)
	assert.Equal(t, 4, cfg.Chunking.UnitsPerToken)
	assert.Equal(t, 5, cfg.Service.DefaultK)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("RAGMCP_EMBEDDINGS_PROVIDER", "static")
	t.Setenv("RAGMCP_CHUNK_SIZE", "128")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ProviderStatic, cfg.Embeddings.Provider)
	assert.Equal(t, 128, cfg.Chunking.SizeTokens)
}

func TestLoad_MissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap equals size", func(c *Config) { c.Chunking.OverlapTokens = c.Chunking.SizeTokens }},
		{"negative overlap", func(c *Config) { c.Chunking.OverlapTokens = -1 }},
		{"zero size", func(c *Config) { c.Chunking.SizeTokens = 0 }},
		{"unknown provider", func(c *Config) { c.Embeddings.Provider = "sbert" }},
		{"unknown policy", func(c *Config) { c.Service.LoadPolicy = "retry" }},
		{"unknown transport", func(c *Config) { c.Server.Transport = "grpc" }},
		{"zero default k", func(c *Config) { c.Service.DefaultK = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
