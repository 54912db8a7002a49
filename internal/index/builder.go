package index

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/ragmcp/internal/chunk"
	"github.com/Aman-CERP/ragmcp/internal/embed"
)

// Builder assembles a Flat index from chunks and an embedder.
//
// The build is a one-shot batch job: chunks are embedded in batches and
// their vectors appended in input order, so index row i always corresponds
// to chunks[i]. Re-running the build on the same chunk sequence with a
// deterministic embedder reproduces the index.
type Builder struct {
	embedder  embed.Embedder
	batchSize int
	logger    *slog.Logger
}

// NewBuilder creates a builder. batchSize <= 0 uses the embed default.
func NewBuilder(embedder embed.Embedder, batchSize int, logger *slog.Logger) *Builder {
	if batchSize <= 0 {
		batchSize = embed.DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger.With(slog.String("component", "builder")),
	}
}

// Build embeds every chunk and returns the sealed index.
//
// Fails with ErrEmptyCorpus for zero chunks and with DimensionError when
// any vector's length differs from the first vector's.
func (b *Builder) Build(ctx context.Context, chunks []chunk.Chunk) (*Flat, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyCorpus
	}

	b.logger.Info("index build started",
		slog.Int("chunks", len(chunks)),
		slog.String("model", b.embedder.ModelName()))

	var idx *Flat
	for start := 0; start < len(chunks); start += b.batchSize {
		end := start + b.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		texts := make([]string, end-start)
		for i, c := range chunks[start:end] {
			texts[i] = c.Text
		}

		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors for %d texts", start, end, len(vectors), len(texts))
		}

		if idx == nil {
			// The first vector fixes the dimension for the index lifetime.
			idx, err = NewFlat(len(vectors[0]))
			if err != nil {
				return nil, err
			}
		}

		for _, v := range vectors {
			if err := idx.Add(v); err != nil {
				return nil, err
			}
		}

		b.logger.Debug("batch embedded", slog.Int("done", end), slog.Int("total", len(chunks)))
	}

	idx.Seal()
	b.logger.Info("index build finished",
		slog.Int("vectors", idx.Count()),
		slog.Int("dimensions", idx.Dimension()))
	return idx, nil
}
