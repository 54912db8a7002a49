package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/artifact"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/service"
)

func newQueryCmd() *cobra.Command {
	var k int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Run a one-shot retrieval query against the committed artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			embedder, err := embed.New(cmd.Context(), embed.FactoryConfig{
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

			store := artifact.NewStore(cfg.Paths.ArtifactsDir, slog.Default())
			svc := service.NewRetrieval(store, embedder, service.Options{
				DefaultK:     cfg.Service.DefaultK,
				EmbedTimeout: cfg.Embeddings.Timeout,
			})
			defer func() { _ = svc.Close() }()

			results, err := svc.Query(cmd.Context(), strings.Join(args, " "), k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(results)
			}
			for _, r := range results {
				fmt.Fprintf(out, "--- chunk %d (distance %.4f) ---\n%s\n\n", r.ChunkID, r.Distance, r.Text)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&k, "k", 0, "Number of chunks to return (default: service.default_k)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON")
	return cmd
}
