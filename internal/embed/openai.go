package embed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAI defaults.
const (
	DefaultOpenAIModel = "text-embedding-3-small"
)

// openAIModelDims maps known models to their embedding dimension.
var openAIModelDims = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// APIKey defaults to the OPENAI_API_KEY environment variable.
	APIKey string
	// BaseURL overrides the endpoint for OpenAI-compatible servers
	// (LM Studio, vLLM, etc.). Empty uses the official API.
	BaseURL    string
	Model      string
	Dimensions int // 0 = infer from the model name or first response
	BatchSize  int
	Timeout    time.Duration
}

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client *openai.Client
	config OpenAIConfig

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates an OpenAI embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key not set (OPENAI_API_KEY)")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	dims := cfg.Dimensions
	if dims == 0 {
		dims = openAIModelDims[cfg.Model]
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientCfg),
		config: cfg,
		dims:   dims,
	}, nil
}

// Embed generates the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in API batches.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		callCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
		resp, err := e.client.CreateEmbeddings(callCtx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(e.config.Model),
			Input: texts[start:end],
		})
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: openai batch %d-%d: %v", ErrTimeout, start, end, err)
			}
			return nil, fmt.Errorf("openai embed: %w", err)
		}
		if len(resp.Data) != end-start {
			return nil, fmt.Errorf("openai embed: got %d embeddings for %d texts", len(resp.Data), end-start)
		}

		batch, err := orderByIndex(resp.Data)
		if err != nil {
			return nil, fmt.Errorf("openai batch %d-%d: %w", start, end, err)
		}
		results = append(results, batch...)
	}

	e.mu.Lock()
	if e.dims == 0 && len(results) > 0 {
		e.dims = len(results[0])
	}
	e.mu.Unlock()

	return results, nil
}

// orderByIndex places embeddings by their API-reported Index. The API may
// return items in any order; input position is only carried by Index.
func orderByIndex(data []openai.Embedding) ([][]float32, error) {
	out := make([][]float32, len(data))
	for _, item := range data {
		if item.Index < 0 || item.Index >= len(data) {
			return nil, fmt.Errorf("embedding index %d out of range for %d inputs", item.Index, len(data))
		}
		if out[item.Index] != nil {
			return nil, fmt.Errorf("duplicate embedding index %d", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string { return e.config.Model }

// Available reports whether the embedder can serve calls. The API is not
// probed; a failed call reports the real error with more context.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return !e.closed
}

// Close marks the embedder closed.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
