// Package embed provides the embedding capability the index builder and
// retrieval service consume: text in, fixed-dimension float32 vector out.
//
// The core only depends on the Embedder interface; backends (Ollama,
// OpenAI-compatible, static) are swappable behind it. Embeddings are
// assumed deterministic per model: the same model and text yield the same
// vector across calls, which is what makes index builds idempotent.
package embed

import (
	"context"
	"errors"
	"math"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps batch size to prevent memory exhaustion.
	MaxBatchSize = 256

	// DefaultTimeout bounds a single embedding call.
	DefaultTimeout = 60 * time.Second
)

// ErrTimeout is returned when an embedding call exceeds its deadline.
// It wraps the backend's context error so errors.Is(err, ErrTimeout) and
// errors.Is(err, context.DeadlineExceeded) both hold at call sites that
// unwrap fully; callers should test for ErrTimeout.
var ErrTimeout = errors.New("embedding timed out")

// ErrClosed is returned by calls on a closed embedder.
var ErrClosed = errors.New("embedder is closed")

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, one vector per
	// input, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier recorded in artifacts.
	ModelName() string

	// Available reports whether the backend is reachable and ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// normalizeVector normalizes a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v // zero vector stays as-is
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
