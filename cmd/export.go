package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the graph to the snapshot archive and/or a seed YAML file",
	Long: `Writes the graph loaded with --seed (or --from-archive) to the SQLite snapshot archive.
The archive replaces its previous contents in one transaction. Use --dump to also write
a seed file that rebuilds the same graph, sibling order included.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		if !cmd.Flags().Changed("export") {
			saveArchive = dumpPath == ""
		}
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.finish()
		if err := ws.save(ctx, cmd); err != nil {
			return err
		}
		if saveArchive {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d items to %s\n", ws.engine.Store().Len(), ArchivePath())
		}
		return nil
	},
}

func init() {
	addSaveFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}
