package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/graph"
)

var (
	analyzeJSON            bool
	analyzeObjective       string
	analyzeTopN            int
	analyzeStaleDays       int
	analyzeSharedThreshold int
	analyzeDupSimilarity   float64
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze plan structure: topology, coverage, staleness, weak links, duplicates, health score",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.finish()

		snap := graph.NewSnapshot(ws.engine.Items())
		if analyzeObjective != "" {
			obj, err := ResolveItem(ctx, ws.engine, ws.keys, analyzeObjective)
			if err != nil {
				return err
			}
			snap = snap.FilterToObjective(obj.ID)
		}

		report := graph.Analyze(snap, analyzerConfig(cmd))

		if analyzeJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		printReport(cmd.OutOrStdout(), report, snap)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Output as JSON")
	analyzeCmd.Flags().StringVar(&analyzeObjective, "objective", "", "Scope analysis to one objective's subtree")
	analyzeCmd.Flags().IntVar(&analyzeTopN, "top-n", 0, "Number of entries to list per section (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeStaleDays, "stale-days", 0, "Days without edits before draft work counts as stale (default from config)")
	analyzeCmd.Flags().IntVar(&analyzeSharedThreshold, "shared-threshold", 0, "Minimum parents for an item to be listed as shared (default from config)")
	analyzeCmd.Flags().Float64Var(&analyzeDupSimilarity, "dup-similarity", 0, "Name similarity (0-1) at which items count as near-duplicates (default from config)")
	rootCmd.AddCommand(analyzeCmd)
}

// analyzerConfig starts from the config file and applies flags the user set
func analyzerConfig(cmd *cobra.Command) *graph.AnalyzerConfig {
	a := cfg.Analytics
	c := &graph.AnalyzerConfig{
		SharedThreshold: a.HubThreshold,
		TopN:            a.TopN,
		StaleDays:       a.StaleDays,
		DupSimilarity:   a.DupSimilarity,
	}
	flags := cmd.Flags()
	if flags.Changed("top-n") {
		c.TopN = analyzeTopN
	}
	if flags.Changed("stale-days") {
		c.StaleDays = analyzeStaleDays
	}
	if flags.Changed("shared-threshold") {
		c.SharedThreshold = analyzeSharedThreshold
	}
	if flags.Changed("dup-similarity") {
		c.DupSimilarity = analyzeDupSimilarity
	}
	return c
}

func printReport(w io.Writer, report *graph.AnalysisReport, snap *graph.Snapshot) {
	barLen := min(int(report.HealthScore*20), 20)
	bar := strings.Repeat("█", barLen) + strings.Repeat("░", 20-barLen)
	fmt.Fprintf(w, "\n  Plan Health: %.0f%%  [%s]\n", report.HealthScore*100, bar)
	fmt.Fprintf(w, "  breakdown: reach=%.2f coverage=%.2f freshness=%.2f quality=%.2f\n\n",
		report.HealthBreakdown.Reach,
		report.HealthBreakdown.Coverage,
		report.HealthBreakdown.Freshness,
		report.HealthBreakdown.Quality)

	name := func(id string) string {
		if n := snap.Nodes[id]; n != nil {
			return truncTitle(n.Name, 40)
		}
		return "?"
	}

	t := report.Topology
	fmt.Fprintln(w, "  TOPOLOGY")
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	fmt.Fprintf(w, "  Items: %d  Links: %d  Components: %d\n", t.TotalItems, t.TotalEdges, t.NumComponents)
	fmt.Fprintf(w, "  Objectives: %d  Tactics: %d  Best practices: %d  Steps: %d\n",
		t.ByType["Objective"], t.ByType["Tactic"], t.ByType["BestPractice"], t.ByType["Step"])
	if t.UnreachableCount > 0 {
		fmt.Fprintf(w, "  Unreachable from any objective: %d (%d orphans)\n", t.UnreachableCount, t.OrphanCount)
		for _, id := range t.UnreachableIDs {
			fmt.Fprintf(w, "    - %s (%s)\n", truncID(id), name(id))
		}
		if t.UnreachableCount > len(t.UnreachableIDs) {
			fmt.Fprintf(w, "    ... and %d more\n", t.UnreachableCount-len(t.UnreachableIDs))
		}
	}

	fmt.Fprintln(w, "\n  Degree distribution:")
	for _, b := range t.DegreeHistogram {
		if b.Count > 0 {
			barWidth := max(int(math.Log2(float64(b.Count)))+2, 1)
			fmt.Fprintf(w, "    %5s: %4d  %s\n", b.Label, b.Count, strings.Repeat("=", barWidth))
		}
	}
	if len(t.Shared) > 0 {
		fmt.Fprintln(w, "\n  Most shared items:")
		for _, s := range t.Shared {
			fmt.Fprintf(w, "    %s %d parents  %s\n", truncID(s.ID), s.ParentCount, truncTitle(s.Name, 40))
		}
	}

	c := report.Coverage
	fmt.Fprintln(w, "\n  COVERAGE")
	fmt.Fprintln(w, "  ────────────────────────────────────────")
	for _, typ := range []string{"Objective", "Tactic", "BestPractice", "Step"} {
		row := c.Funnel[typ]
		fmt.Fprintf(w, "  %-12s draft=%d in-review=%d approved=%d released=%d\n",
			typ, row["draft"], row["in-review"], row["approved"], row["released"])
	}
	if c.GapCount > 0 {
		fmt.Fprintf(w, "  %d items with nothing under them:\n", c.GapCount)
		for _, g := range c.Gaps {
			fmt.Fprintf(w, "    %s %s without %s  %s\n", truncID(g.ID), g.Type, g.Missing, truncTitle(g.Name, 40))
		}
	}

	s := report.Staleness
	if s.StaleItemCount > 0 || s.StaleRollupCount > 0 {
		fmt.Fprintln(w, "\n  STALENESS")
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		if s.StaleItemCount > 0 {
			fmt.Fprintf(w, "  %d unfinished items not edited recently:\n", s.StaleItemCount)
			for _, n := range s.StaleItems {
				fmt.Fprintf(w, "    %s %s %dd  %s\n", truncID(n.ID), n.Status, n.DaysSinceEdit, truncTitle(n.Name, 40))
			}
		}
		if s.StaleRollupCount > 0 {
			fmt.Fprintf(w, "  %d parents older than their children:\n", s.StaleRollupCount)
			for _, r := range s.StaleRollups {
				fmt.Fprintf(w, "    %s <- %s (%dd drift)\n",
					truncTitle(r.ParentName, 25), truncTitle(r.ChildName, 25), r.DriftDays)
			}
		}
	}

	br := report.Bridges
	if br.ChokepointCount > 0 || len(br.ObjectiveLinks) > 0 {
		fmt.Fprintln(w, "\n  WEAK POINTS")
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		if br.ChokepointCount > 0 {
			fmt.Fprintf(w, "  %d chokepoints (removing one splits the plan):\n", br.ChokepointCount)
			for _, cp := range br.Chokepoints {
				fmt.Fprintf(w, "    %s %s, %d branches  %s\n", truncID(cp.ID), cp.Type, cp.Branches, truncTitle(cp.Name, 40))
			}
		}
		for _, l := range br.ObjectiveLinks {
			suffix := "s"
			if l.Links == 1 {
				suffix = ""
			}
			fmt.Fprintf(w, "  %s <-> %s share %d link%s\n", name(l.ObjectiveA), name(l.ObjectiveB), l.Links, suffix)
		}
	}

	if len(report.Duplicates) > 0 {
		fmt.Fprintln(w, "\n  NEAR-DUPLICATES")
		fmt.Fprintln(w, "  ────────────────────────────────────────")
		for _, d := range report.Duplicates {
			fmt.Fprintf(w, "    %.2f  %s | %s\n", d.Similarity, truncTitle(d.NameA, 30), truncTitle(d.NameB, 30))
		}
	}
	fmt.Fprintln(w)
}
