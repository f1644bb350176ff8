package cli

import (
	"github.com/spf13/cobra"

	"github.com/ambisinistra/obsidian-rag/internal/storage"
)

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("obsidian-rag version %s\n", a.version)
			cmd.Printf("Build Mode: %s\n", storage.BuildMode)
			cmd.Printf("SQLite Driver: %s\n", storage.DriverName)
			cmd.Printf("Vector Extension: %v\n", storage.VectorExtensionAvailable)
		},
	}
}
