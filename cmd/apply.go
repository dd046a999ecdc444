package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/seed"
)

var applyJSON bool

var applyCmd = &cobra.Command{
	Use:   "apply <script.yaml>",
	Short: "Run a YAML script of graph operations",
	Long: `Runs the items and script of a YAML document against the graph loaded with --seed or
--from-archive. Steps refer to items by seed key or id and stop at the first error.

  planner apply --seed plan.yaml changes.yaml --dump -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		doc, err := seed.ReadFile(args[0])
		if err != nil {
			return err
		}
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.finish()

		added, err := seed.Apply(ctx, ws.engine, doc.Items)
		if err != nil {
			return err
		}
		for k, id := range added {
			ws.keys[k] = id
		}

		results, runErr := seed.Run(ctx, ws.engine, doc.Script, ws.keys)
		out := cmd.OutOrStdout()
		if applyJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
		} else {
			for _, r := range results {
				ids := ""
				if len(r.IDs) > 0 {
					short := make([]string, len(r.IDs))
					for i, id := range r.IDs {
						short[i] = truncID(id)
					}
					ids = " -> " + strings.Join(short, ", ")
				}
				fmt.Fprintf(out, "%3d %-12s %-20s %s%s\n", r.Index, r.Op, r.Key, r.Outcome, ids)
			}
		}
		if runErr != nil {
			return runErr
		}
		return ws.save(ctx, cmd)
	},
}

func init() {
	applyCmd.Flags().BoolVar(&applyJSON, "json", false, "Output step results as JSON")
	addSaveFlags(applyCmd)
	rootCmd.AddCommand(applyCmd)
}
