package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/ragmcp/internal/artifact"
	"github.com/Aman-CERP/ragmcp/internal/config"
	"github.com/Aman-CERP/ragmcp/internal/embed"
	"github.com/Aman-CERP/ragmcp/internal/logging"
	mcpserver "github.com/Aman-CERP/ragmcp/internal/mcp"
	"github.com/Aman-CERP/ragmcp/internal/rpc"
	"github.com/Aman-CERP/ragmcp/internal/service"
)

func newServeCmd() *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve retrieval queries over MCP or JSON-RPC",
		Long: `Serves the committed artifacts. Artifacts load lazily on the first
query; run 'ragmcp index' first.

With the stdio transport (MCP), stdout carries protocol messages only and
all logging goes to stderr and the log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Server.Transport = transport
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Override server.transport (stdio or http)")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	// Re-apply logging with the file settings from the config.
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.FilePath = cfg.Logging.FilePath
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	store := artifact.NewStore(cfg.Paths.ArtifactsDir, slog.Default())
	svc := service.NewRetrieval(store, embedder, service.Options{
		Policy:       service.LoadPolicy(cfg.Service.LoadPolicy),
		DefaultK:     cfg.Service.DefaultK,
		EmbedTimeout: cfg.Embeddings.Timeout,
		Logger:       slog.Default(),
	})
	defer func() { _ = svc.Close() }()

	if cfg.Service.WatchArtifacts {
		watcher, err := service.NewWatcher(svc, slog.Default())
		if err != nil {
			slog.Warn("artifact watching disabled", slog.String("error", err.Error()))
		} else {
			defer func() { _ = watcher.Close() }()
		}
	}

	switch cfg.Server.Transport {
	case "http":
		return rpc.NewServer(svc, cfg.Server.HTTPAddr, slog.Default()).ListenAndServe(ctx)
	default:
		server, err := mcpserver.NewServer(svc, slog.Default())
		if err != nil {
			return err
		}
		return server.Run(ctx, cfg.Server.Transport)
	}
}
