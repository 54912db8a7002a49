package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/artifact"
	"github.com/Aman-CERP/ragmcp/internal/chunk"
	"github.com/Aman-CERP/ragmcp/internal/config"
	"github.com/Aman-CERP/ragmcp/internal/corpus"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/index"
)

func newIndexCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build the chunk and vector artifacts from the corpus",
		Long: `Consolidates the .txt files under paths.corpus_dir, cuts them into
overlapping chunks, embeds every chunk, and commits the resulting
chunk/vector artifact pair under paths.artifacts_dir.

The commit is atomic: a crash or failure mid-build leaves the previously
committed artifacts untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if offline {
				cfg.Embeddings.Provider = config.ProviderStatic
			}
			return runIndex(cmd, cfg)
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Use static embeddings (no network)")
	return cmd
}

func runIndex(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	// One build per artifact directory at a time.
	lock := artifact.NewBuildLock(cfg.Paths.ArtifactsDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return err
	}
	if !acquired {
		return fmt.Errorf("another index build is running (lock: %s)", lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	c, err := corpus.Load(cfg.Paths.CorpusDir)
	if err != nil {
		return err
	}
	if c.Text == "" {
		return fmt.Errorf("corpus is empty: no text found under %s", cfg.Paths.CorpusDir)
	}
	slog.Info("corpus loaded",
		slog.Int("files", len(c.Files)),
		slog.Int("runes", len([]rune(c.Text))),
		slog.String("fingerprint", c.Fingerprint[:12]))

	size, overlap := cfg.Chunking.RuneWindow()
	chunker, err := chunk.NewChunker(size, overlap)
	if err != nil {
		return err
	}
	chunks := chunker.Split(c.Text)

	embedder, err := embed.New(ctx, embed.FactoryConfig{
		Provider:      cfg.Embeddings.Provider,
		Model:         cfg.Embeddings.Model,
		Dimensions:    cfg.Embeddings.Dimensions,
		BatchSize:     cfg.Embeddings.BatchSize,
		Timeout:       cfg.Embeddings.Timeout,
		CacheSize:     cfg.Embeddings.CacheSize,
		OllamaHost:    cfg.Embeddings.OllamaHost,
		OpenAIBaseURL: cfg.Embeddings.OpenAIBaseURL,
	}, slog.Default())
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	idx, err := index.NewBuilder(embedder, cfg.Embeddings.BatchSize, slog.Default()).Build(ctx, chunks)
	if err != nil {
		return err
	}

	store := artifact.NewStore(cfg.Paths.ArtifactsDir, slog.Default())
	m, err := store.Save(ctx, chunks, idx, artifact.SaveInfo{
		Model:  embedder.ModelName(),
		Corpus: c.Fingerprint,
		Chunking: artifact.ChunkingParams{
			SizeTokens:    cfg.Chunking.SizeTokens,
			OverlapTokens: cfg.Chunking.OverlapTokens,
			UnitsPerToken: cfg.Chunking.UnitsPerToken,
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"Indexed %d files into %d chunks (%d dimensions, model %s, generation %d)\n",
		len(c.Files), m.ChunkCount, m.Dimensions, m.Model, m.Generation)
	return nil
}
