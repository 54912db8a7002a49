// Package config loads and validates ragmcp configuration.
//
// Precedence, lowest to highest:
//  1. Hardcoded defaults (NewConfig)
//  2. Config file (ragmcp.yaml in the working directory, or --config)
//  3. Environment variables (RAGMCP_*)
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Embedding provider names accepted by the embeddings.provider key.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// Load policies for the retrieval service.
const (
	// LoadPolicyBlock makes queries wait for the initial artifact load.
	LoadPolicyBlock = "block"
	// LoadPolicyFailFast makes queries fail with NotReady while loading.
	LoadPolicyFailFast = "fail_fast"
)

// Config is the complete ragmcp configuration.
type Config struct {
	Version    int              `yaml:"version"`
	Paths      PathsConfig      `yaml:"paths"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Service    ServiceConfig    `yaml:"service"`
	Server     ServerConfig     `yaml:"server"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// PathsConfig locates the corpus and the artifact directory.
type PathsConfig struct {
	// CorpusDir is the directory walked for .txt source files.
	CorpusDir string `yaml:"corpus_dir"`
	// ArtifactsDir is where the chunk/index artifact pair lives.
	ArtifactsDir string `yaml:"artifacts_dir"`
}

// ChunkingConfig controls the overlapping window chunker.
//
// Size and overlap are denominated in embedding-model input units
// ("tokens"); UnitsPerToken converts them to the rune windows the chunker
// actually cuts. The ratio is a heuristic, not a tokenizer.
type ChunkingConfig struct {
	SizeTokens    int `yaml:"size_tokens"`
	OverlapTokens int `yaml:"overlap_tokens"`
	UnitsPerToken int `yaml:"units_per_token"`
}

// RuneWindow returns the chunk window size and overlap in runes.
func (c ChunkingConfig) RuneWindow() (size, overlap int) {
	return c.SizeTokens * c.UnitsPerToken, c.OverlapTokens * c.UnitsPerToken
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	CacheSize  int           `yaml:"cache_size"`

	// OllamaHost is the Ollama API endpoint (default http://localhost:11434).
	OllamaHost string `yaml:"ollama_host"`
	// OpenAIBaseURL overrides the OpenAI-compatible endpoint; empty uses
	// the official API. The key comes from OPENAI_API_KEY.
	OpenAIBaseURL string `yaml:"openai_base_url"`
}

// ServiceConfig configures the retrieval service.
type ServiceConfig struct {
	// LoadPolicy is "block" or "fail_fast" (spec: queries during Loading
	// either wait for Ready or fail with NotReady).
	LoadPolicy string `yaml:"load_policy"`
	// DefaultK is the result count when a query omits k.
	DefaultK int `yaml:"default_k"`
	// WatchArtifacts reloads the service when a new manifest is committed.
	WatchArtifacts bool `yaml:"watch_artifacts"`
}

// ServerConfig configures the serving transport.
type ServerConfig struct {
	// Transport is "stdio" (MCP) or "http" (JSON-RPC).
	Transport string `yaml:"transport"`
	// HTTPAddr is the listen address for the http transport.
	HTTPAddr string `yaml:"http_addr"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	FilePath string `yaml:"file_path"`
}

// NewConfig returns the hardcoded defaults.
//
// Chunking defaults mirror the corpus pipeline this replaces: 512-token
// windows with 50 tokens of overlap at 4 runes per token.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Paths: PathsConfig{
			CorpusDir:    "corpus",
			ArtifactsDir: "artifacts",
		},
		Chunking: ChunkingConfig{
			SizeTokens:    512,
			OverlapTokens: 50,
			UnitsPerToken: 4,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   ProviderOllama,
			Model:      "nomic-embed-text",
			BatchSize:  32,
			Timeout:    60 * time.Second,
			CacheSize:  1000,
			OllamaHost: "http://localhost:11434",
		},
		Service: ServiceConfig{
			LoadPolicy:     LoadPolicyBlock,
			DefaultK:       5,
			WatchArtifacts: false,
		},
		Server: ServerConfig{
			Transport: "stdio",
			HTTPAddr:  "127.0.0.1:8385",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration from the optional file at path
// plus environment overrides, then validates it. An empty path skips the
// file step; a missing file at a non-empty path is an error.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies RAGMCP_* environment variables.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RAGMCP_CORPUS_DIR"); v != "" {
		c.Paths.CorpusDir = v
	}
	if v := os.Getenv("RAGMCP_ARTIFACTS_DIR"); v != "" {
		c.Paths.ArtifactsDir = v
	}
	if v := os.Getenv("RAGMCP_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("RAGMCP_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("RAGMCP_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("RAGMCP_LOAD_POLICY"); v != "" {
		c.Service.LoadPolicy = v
	}
	if v := os.Getenv("RAGMCP_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("RAGMCP_HTTP_ADDR"); v != "" {
		c.Server.HTTPAddr = v
	}
	if v := os.Getenv("RAGMCP_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("RAGMCP_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chunking.SizeTokens = n
		}
	}
	if v := os.Getenv("RAGMCP_CHUNK_OVERLAP"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chunking.OverlapTokens = n
		}
	}
}

// Validate checks the configuration for contract violations.
func (c *Config) Validate() error {
	if c.Chunking.SizeTokens <= 0 {
		return fmt.Errorf("chunking.size_tokens must be positive, got %d", c.Chunking.SizeTokens)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.SizeTokens {
		return fmt.Errorf("chunking.overlap_tokens must satisfy 0 <= overlap < size, got overlap=%d size=%d",
			c.Chunking.OverlapTokens, c.Chunking.SizeTokens)
	}
	if c.Chunking.UnitsPerToken < 1 {
		return fmt.Errorf("chunking.units_per_token must be at least 1, got %d", c.Chunking.UnitsPerToken)
	}

	switch c.Embeddings.Provider {
	case ProviderOllama, ProviderOpenAI, ProviderStatic:
	default:
		return fmt.Errorf("embeddings.provider must be one of ollama, openai, static; got %q", c.Embeddings.Provider)
	}
	if c.Embeddings.BatchSize <= 0 {
		return fmt.Errorf("embeddings.batch_size must be positive, got %d", c.Embeddings.BatchSize)
	}
	if c.Embeddings.Timeout <= 0 {
		return fmt.Errorf("embeddings.timeout must be positive, got %s", c.Embeddings.Timeout)
	}

	switch c.Service.LoadPolicy {
	case LoadPolicyBlock, LoadPolicyFailFast:
	default:
		return fmt.Errorf("service.load_policy must be block or fail_fast, got %q", c.Service.LoadPolicy)
	}
	if c.Service.DefaultK < 1 {
		return fmt.Errorf("service.default_k must be at least 1, got %d", c.Service.DefaultK)
	}

	switch c.Server.Transport {
	case "stdio", "http":
	default:
		return fmt.Errorf("server.transport must be stdio or http, got %q", c.Server.Transport)
	}

	return nil
}
