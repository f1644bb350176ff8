package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ambisinistra/obsidian-rag/internal/indexer"
	"github.com/ambisinistra/obsidian-rag/internal/mcp"
	"github.com/ambisinistra/obsidian-rag/internal/rag"
	"github.com/ambisinistra/obsidian-rag/internal/watcher"
)

func (a *app) serveCommand() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol server for AI assistant integration.
The server speaks JSON-RPC over stdin/stdout; logs go to stderr.

With --watch the vault is indexed once in the background and then
reindexed whenever notes change.

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "obsidian-rag": {
        "command": "/path/to/obsidian-rag",
        "args": ["serve", "--watch"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd, func(svc *rag.Service) error {
				server := mcp.NewServer(svc, a.logger)
				if !watch {
					return server.Listen(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
				}

				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()
				g, gctx := errgroup.WithContext(ctx)

				g.Go(func() error {
					// input closed means the client is gone; stop watching too
					defer cancel()
					return server.Listen(gctx, cmd.InOrStdin(), cmd.OutOrStdout())
				})
				g.Go(func() error {
					if _, err := svc.ReindexAll(gctx); err != nil && !errors.Is(err, rag.ErrIndexingInProgress) && gctx.Err() == nil {
						a.logger.Error("initial index failed", "error", err)
					}
					return a.runWatcher(gctx, svc, nil)
				})
				return g.Wait()
			})
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "reindex when notes change")
	return cmd
}

func (a *app) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Index the vault, then reindex on every change",
		Long: `Runs an incremental pass, then watches the vault and runs another pass
after each burst of changes settles. Stops on interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd, func(svc *rag.Service) error {
				stats, err := svc.ReindexAll(cmd.Context())
				if stats != nil {
					printStatistics(cmd, svc.VaultRoot(), stats)
				}
				if err != nil {
					return err
				}

				cmd.Printf("Watching %s (Ctrl+C to stop)\n", svc.VaultRoot())
				return a.runWatcher(cmd.Context(), svc, func(stats *indexer.Statistics, err error) {
					if stats != nil && stats.Writes() {
						printStatistics(cmd, svc.VaultRoot(), stats)
					}
				})
			})
		},
	}
}

func (a *app) runWatcher(ctx context.Context, svc *rag.Service, hook func(*indexer.Statistics, error)) error {
	w, err := watcher.New(svc.VaultRoot(), svc,
		watcher.WithDebounce(a.cfg.Debounce()),
		watcher.WithPatterns(a.cfg.Vault.Patterns),
		watcher.WithLogger(a.logger),
		watcher.WithPassHook(hook),
	)
	if err != nil {
		return err
	}
	return w.Run(ctx)
}
