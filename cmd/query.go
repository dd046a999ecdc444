package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/filter"
)

var (
	querySpec     filter.Spec
	queryTypes    []string
	queryStatuses []string
	queryJSON     bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "List items matching a filter",
	Long: `Clauses combine with AND; repeated values of one flag combine with OR.
--expr takes a CEL expression over "item", for example:

  planner query --seed plan.yaml --expr 'item.child_count == 0 && item.type == "Tactic"'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		spec, err := buildQuerySpec()
		if err != nil {
			return err
		}
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.finish()

		items, err := ws.engine.Query(ctx, spec)
		if err != nil {
			return err
		}
		if queryJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		}
		printItems(cmd.OutOrStdout(), items)
		return nil
	},
}

func init() {
	f := queryCmd.Flags()
	f.StringVar(&querySpec.Search, "search", "", "Case-insensitive text in name or description")
	f.StringSliceVar(&queryTypes, "type", nil, "Item type: objective, tactic, best-practice, step")
	f.StringSliceVar(&queryStatuses, "status", nil, "Status: draft, in-review, approved, released")
	f.StringSliceVar(&querySpec.Industries, "industry", nil, "Targeted industry")
	f.StringSliceVar(&querySpec.Regions, "region", nil, "Targeted region")
	f.StringSliceVar(&querySpec.JobRoles, "role", nil, "Targeted job role")
	f.StringSliceVar(&querySpec.Accounts, "account", nil, "Targeted account")
	f.StringSliceVar(&querySpec.Owners, "owner", nil, "Owner")
	f.IntVar(&querySpec.MinQuality, "min-quality", 0, "Minimum quality score (0-100)")
	f.IntVar(&querySpec.MinUsage, "min-usage", 0, "Minimum usage count")
	f.BoolVar(&querySpec.IncludeUnscored, "include-unscored", false, "Let items without scores pass the score thresholds")
	f.StringVar(&querySpec.Expr, "expr", "", "CEL boolean expression over item")
	f.BoolVar(&queryJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(queryCmd)
}

func buildQuerySpec() (filter.Spec, error) {
	spec := querySpec
	spec.Types, spec.Statuses = nil, nil
	for _, s := range queryTypes {
		t, err := content.ParseItemType(s)
		if err != nil {
			return spec, fmt.Errorf("%w: %w", filter.ErrInvalidFilter, err)
		}
		spec.Types = append(spec.Types, t)
	}
	for _, s := range queryStatuses {
		st := content.Status(s)
		if !st.Valid() {
			return spec, fmt.Errorf("%w: unknown status %q", filter.ErrInvalidFilter, s)
		}
		spec.Statuses = append(spec.Statuses, st)
	}
	return spec, nil
}

func printItems(w io.Writer, items []content.Item) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no matching items")
		return
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s  %-12s %-9s %s  %s\n",
			truncID(it.ID), it.Type, it.Status, score(it.QualityScore), truncTitle(it.Name, 60))
	}
	fmt.Fprintf(w, "%d item(s)\n", len(items))
}

func score(p *int) string {
	if p == nil {
		return "  -"
	}
	return fmt.Sprintf("%3d", *p)
}
