package cmd

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <words...>",
	Short: "Full-text search over the snapshot archive",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := OpenArchive(true)
		if err != nil {
			return err
		}
		defer d.Close()

		items, err := d.SearchItems(commandContext(cmd), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if searchJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		printItems(cmd.OutOrStdout(), items)
		return nil
	},
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(searchCmd)
}
