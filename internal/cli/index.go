package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ambisinistra/obsidian-rag/internal/indexer"
	"github.com/ambisinistra/obsidian-rag/internal/rag"
)

func (a *app) indexCommand() *cobra.Command {
	var (
		rebuild bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the vault",
		Long: `Runs one incremental pass over the vault. Notes whose content is unchanged
are skipped; changed notes have all of their chunks replaced.

Use --rebuild to clear the index and re-embed every note.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd, func(svc *rag.Service) error {
				var (
					stats *indexer.Statistics
					err   error
				)
				if rebuild {
					stats, err = svc.Rebuild(cmd.Context())
				} else {
					stats, err = svc.ReindexAll(cmd.Context())
				}
				if stats != nil {
					if asJSON {
						if jsonErr := printJSON(cmd, statisticsView(stats)); jsonErr != nil {
							return jsonErr
						}
					} else {
						printStatistics(cmd, svc.VaultRoot(), stats)
					}
				}
				if err != nil {
					return fmt.Errorf("indexing failed: %w", err)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&rebuild, "rebuild", false, "clear the index before indexing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output statistics as JSON")
	return cmd
}

func printStatistics(cmd *cobra.Command, root string, stats *indexer.Statistics) {
	cmd.Printf("Indexed %s (run %s)\n", root, stats.RunID)
	cmd.Printf("  %s\n", stats.Summary())
	if stats.Cancelled {
		cmd.Println("  pass cancelled before all notes were visited")
	}
	if len(stats.Pruned) > 0 {
		cmd.Println("Removed:")
		for _, p := range stats.Pruned {
			cmd.Printf("  %s\n", p)
		}
	}
	if msgs := stats.ErrorMessages(); len(msgs) > 0 {
		cmd.Println("Errors:")
		for _, m := range msgs {
			cmd.Printf("  %s\n", m)
		}
	}
}

type statisticsJSON struct {
	RunID         string   `json:"run_id"`
	Indexed       int      `json:"indexed"`
	Unchanged     int      `json:"unchanged"`
	Empty         int      `json:"empty"`
	Unreadable    int      `json:"unreadable"`
	Removed       int      `json:"removed"`
	ChunksCreated int      `json:"chunks_created"`
	ChunksFailed  int      `json:"chunks_failed"`
	Cancelled     bool     `json:"cancelled"`
	DurationMs    int64    `json:"duration_ms"`
	Errors        []string `json:"errors,omitempty"`
}

func statisticsView(stats *indexer.Statistics) statisticsJSON {
	return statisticsJSON{
		RunID:         stats.RunID,
		Indexed:       stats.Indexed,
		Unchanged:     stats.Unchanged,
		Empty:         stats.Empty,
		Unreadable:    stats.Unreadable,
		Removed:       stats.Removed,
		ChunksCreated: stats.ChunksCreated,
		ChunksFailed:  stats.ChunksFailed,
		Cancelled:     stats.Cancelled,
		DurationMs:    stats.Duration.Milliseconds(),
		Errors:        stats.ErrorMessages(),
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
