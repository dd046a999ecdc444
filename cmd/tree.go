package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/engine"
)

var (
	treeJSON  bool
	treeDepth int
)

var treeCmd = &cobra.Command{
	Use:   "tree [item]",
	Short: "Print the plan as an indented tree, or one item's subtree",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.finish()

		var roots, orphans []content.Item
		if len(args) == 1 {
			it, err := ResolveItem(ctx, ws.engine, ws.keys, args[0])
			if err != nil {
				return err
			}
			roots = []content.Item{it}
		} else {
			roots, orphans = ws.engine.Roots(), ws.engine.Orphans()
		}

		out := cmd.OutOrStdout()
		if treeJSON {
			nodes := make([]treeNode, 0, len(roots)+len(orphans))
			for _, it := range append(roots, orphans...) {
				nodes = append(nodes, buildTree(ws.engine, it, treeDepth))
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(nodes)
		}

		for _, it := range roots {
			printTree(out, ws.engine, it, 0, treeDepth)
		}
		if len(orphans) > 0 {
			fmt.Fprintf(out, "\nOrphans (%d, not reachable from any objective):\n", len(orphans))
			for _, it := range orphans {
				printTree(out, ws.engine, it, 1, treeDepth)
			}
		}
		if len(roots)+len(orphans) == 0 {
			fmt.Fprintln(out, "(empty plan)")
		}
		return nil
	},
}

func init() {
	treeCmd.Flags().BoolVar(&treeJSON, "json", false, "Output as JSON")
	treeCmd.Flags().IntVar(&treeDepth, "depth", 0, "Stop after this many levels (0 = all)")
	rootCmd.AddCommand(treeCmd)
}

type treeNode struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Name     string     `json:"name"`
	Status   string     `json:"status"`
	Shared   bool       `json:"shared,omitempty"`
	Children []treeNode `json:"children,omitempty"`
}

func buildTree(e *engine.Engine, it content.Item, depth int) treeNode {
	n := treeNode{
		ID:     it.ID,
		Type:   it.Type.String(),
		Name:   it.Name,
		Status: string(it.Status),
		Shared: len(it.ParentIDs) > 1,
	}
	if depth == 1 {
		return n
	}
	kids, err := e.ChildrenOf(it.ID)
	if err != nil {
		return n
	}
	for _, k := range kids {
		n.Children = append(n.Children, buildTree(e, k, depth-1))
	}
	return n
}

// printTree writes one line per item. Items under several parents are printed under each
// of them and marked with "*".
func printTree(w io.Writer, e *engine.Engine, it content.Item, indent, depth int) {
	shared := ""
	if len(it.ParentIDs) > 1 {
		shared = " *"
	}
	fmt.Fprintf(w, "%s%-12s %s [%s]%s  %s\n",
		strings.Repeat("  ", indent), it.Type, truncTitle(it.Name, 60), it.Status, shared, truncID(it.ID))
	if depth == 1 {
		return
	}
	kids, err := e.ChildrenOf(it.ID)
	if err != nil {
		return
	}
	for _, k := range kids {
		printTree(w, e, k, indent+1, depth-1)
	}
}
