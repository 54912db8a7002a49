package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/artifact"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the committed artifact generation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			m, err := artifact.ReadManifest(cfg.Paths.ArtifactsDir)
			if errors.Is(err, artifact.ErrMissing) {
				fmt.Fprintf(out, "No index found in %s. Run 'ragmcp index' first.\n", cfg.Paths.ArtifactsDir)
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Artifacts:   %s\n", cfg.Paths.ArtifactsDir)
			fmt.Fprintf(out, "Generation:  %d\n", m.Generation)
			fmt.Fprintf(out, "Built:       %s\n", m.CreatedAt.Format("2006-01-02 15:04:05 MST"))
			fmt.Fprintf(out, "Chunks:      %d\n", m.ChunkCount)
			fmt.Fprintf(out, "Dimensions:  %d\n", m.Dimensions)
			fmt.Fprintf(out, "Model:       %s\n", m.Model)
			fmt.Fprintf(out, "Corpus:      %s\n", m.Corpus)
			fmt.Fprintf(out, "Chunking:    %d tokens, %d overlap, %d units/token\n",
				m.Chunking.SizeTokens, m.Chunking.OverlapTokens, m.Chunking.UnitsPerToken)
			return nil
		},
	}
}
