// Package cmd provides the CLI commands for ragmcp.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/config"
	"github.com/Aman-CERP/ragmcp/internal/logging"
	"github.com/Aman-CERP/ragmcp/pkg/version"
)

var (
	configPath     string
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the ragmcp CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ragmcp",
		Short: "Semantic retrieval MCP server for plain-text corpora",
		Long: `ragmcp chunks a directory of text files, embeds the chunks, and serves
nearest-neighbor retrieval over MCP (stdio) or JSON-RPC (HTTP).

Typical flow:

  ragmcp init     # write a starter ragmcp.yaml
  ragmcp index    # build the chunk/vector artifacts
  ragmcp serve    # serve queries over the configured transport`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("ragmcp version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to ragmcp.yaml (default: built-in defaults plus RAGMCP_* env)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupLogging
	cmd.PersistentPostRun = func(_ *cobra.Command, _ []string) {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupLogging installs the default logger before any command runs. The
// serve command re-applies the file settings from the loaded config.
func setupLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg.Level = "debug"
	}

	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

// loadConfig builds the effective configuration for a command run. With no
// --config flag, ragmcp.yaml in the working directory is used when present.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigName); err == nil {
			path = defaultConfigName
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Logging.Level = "debug"
	}
	slog.Debug("configuration loaded",
		slog.String("corpus_dir", cfg.Paths.CorpusDir),
		slog.String("artifacts_dir", cfg.Paths.ArtifactsDir),
		slog.String("provider", cfg.Embeddings.Provider))
	return cfg, nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
