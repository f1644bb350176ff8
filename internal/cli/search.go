package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ambisinistra/obsidian-rag/internal/rag"
	"github.com/ambisinistra/obsidian-rag/pkg/types"
)

// snippetLen caps the chunk text shown per result
const snippetLen = 240

func (a *app) searchCommand() *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search indexed notes",
		Long: `Embeds the query and returns the note sections nearest to it.
Relevance is (1 - distance) between unit vectors, shown as a percentage.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return a.withService(cmd, func(svc *rag.Service) error {
				results, err := svc.Search(cmd.Context(), query, limit)
				if err != nil {
					return fmt.Errorf("search failed: %w", err)
				}
				if asJSON {
					return printJSON(cmd, searchView(results))
				}
				printResults(cmd, results)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func printResults(cmd *cobra.Command, results []types.SearchResult) {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return
	}

	for _, r := range results {
		location := r.SourcePath
		if crumb := r.Metadata.Breadcrumb(); crumb != "" {
			location += " > " + crumb
		}
		cmd.Printf("[%d] %s (%.1f%%)\n", r.Rank, location, r.Relevance())
		cmd.Printf("    %s\n\n", snippet(r.Text))
	}
}

func snippet(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= snippetLen {
		return text
	}
	return string(runes[:snippetLen]) + "..."
}

type resultJSON struct {
	Rank       int      `json:"rank"`
	SourcePath string   `json:"source_path"`
	Headers    []string `json:"headers"`
	ChunkIndex int      `json:"chunk_index"`
	Text       string   `json:"text"`
	Distance   float64  `json:"distance"`
	Score      float64  `json:"score"`
}

func searchView(results []types.SearchResult) []resultJSON {
	out := make([]resultJSON, 0, len(results))
	for _, r := range results {
		out = append(out, resultJSON{
			Rank:       r.Rank,
			SourcePath: r.SourcePath,
			Headers:    r.Metadata.Headers,
			ChunkIndex: r.Metadata.ChunkIndex,
			Text:       r.Text,
			Distance:   r.Distance,
			Score:      r.Score,
		})
	}
	return out
}
