package embed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Provider names accepted by the factory.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderStatic = "static"
)

// FactoryConfig selects and configures an embedding backend.
type FactoryConfig struct {
	Provider   string
	Model      string
	Dimensions int
	BatchSize  int
	Timeout    time.Duration
	CacheSize  int

	OllamaHost    string
	OpenAIBaseURL string

	// AllowFallback falls back to the static embedder when the configured
	// backend cannot be reached, instead of failing.
	AllowFallback bool
}

// New creates the configured embedder, wrapped with LRU caching.
//
// With AllowFallback set, an unreachable backend degrades to the static
// embedder; artifacts built that way record the static model name, so a
// later load against the real backend is rejected rather than serving
// mixed-model results.
func New(ctx context.Context, cfg FactoryConfig, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	inner, err := newBackend(ctx, cfg)
	if err != nil {
		if !cfg.AllowFallback {
			return nil, err
		}
		logger.Warn("embedding backend unavailable, falling back to static embedder",
			slog.String("provider", cfg.Provider),
			slog.String("error", err.Error()))
		inner = NewStaticEmbedder()
	}

	logger.Info("embedder ready",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return NewCachedEmbedder(inner, cfg.CacheSize), nil
}

func newBackend(ctx context.Context, cfg FactoryConfig) (Embedder, error) {
	switch cfg.Provider {
	case ProviderOllama:
		return NewOllamaEmbedder(ctx, OllamaConfig{
			Host:       cfg.OllamaHost,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
	case ProviderOpenAI:
		return NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.OpenAIBaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			BatchSize:  cfg.BatchSize,
			Timeout:    cfg.Timeout,
		})
	case ProviderStatic, "":
		return NewStaticEmbedder(), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}
