package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/ambisinistra/obsidian-rag/internal/rag"
)

func (a *app) statusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withService(cmd, func(svc *rag.Service) error {
				st, err := svc.Status(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, statusView(st))
				}

				cmd.Printf("Vault:      %s\n", st.VaultRoot)
				cmd.Printf("Store:      %s (%s, schema %s)\n", st.Index.Backend, st.Index.BuildMode, st.Index.SchemaVersion)
				cmd.Printf("Embedder:   %s / %s\n", st.Provider, st.Model)
				cmd.Printf("Documents:  %d\n", st.Index.Documents)
				cmd.Printf("Chunks:     %d\n", st.Index.Chunks)
				if st.Index.Embedding.Dimension > 0 {
					cmd.Printf("Index dims: %d (%s)\n", st.Index.Embedding.Dimension, st.Index.Embedding.Model)
				}
				if st.Index.LastIndexedAt.IsZero() {
					cmd.Println("Last index: never")
				} else {
					cmd.Printf("Last index: %s\n", st.Index.LastIndexedAt.Local().Format(time.DateTime))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output status as JSON")
	return cmd
}

type statusJSON struct {
	VaultRoot      string `json:"vault_root"`
	Backend        string `json:"backend"`
	BuildMode      string `json:"build_mode"`
	SchemaVersion  string `json:"schema_version"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Documents      int    `json:"documents"`
	Chunks         int    `json:"chunks"`
	IndexModel     string `json:"index_model,omitempty"`
	IndexDimension int    `json:"index_dimension,omitempty"`
	LastIndexedAt  string `json:"last_indexed_at,omitempty"`
}

func statusView(st *rag.Status) statusJSON {
	out := statusJSON{
		VaultRoot:      st.VaultRoot,
		Backend:        st.Index.Backend,
		BuildMode:      st.Index.BuildMode,
		SchemaVersion:  st.Index.SchemaVersion,
		Provider:       st.Provider,
		Model:          st.Model,
		Documents:      st.Index.Documents,
		Chunks:         st.Index.Chunks,
		IndexModel:     st.Index.Embedding.Model,
		IndexDimension: st.Index.Embedding.Dimension,
	}
	if !st.Index.LastIndexedAt.IsZero() {
		out.LastIndexedAt = st.Index.LastIndexedAt.Format(time.RFC3339)
	}
	return out
}

func (a *app) resetCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every indexed note",
		Long: `Removes all documents and chunks from the index and resets identifiers.
The next index run re-embeds the whole vault.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("reset deletes the whole index; pass --yes to confirm")
			}
			return a.withService(cmd, func(svc *rag.Service) error {
				if err := svc.Reset(cmd.Context()); err != nil {
					return err
				}
				cmd.Println("Index cleared.")
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm deletion")
	return cmd
}
