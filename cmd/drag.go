package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/dragdrop"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/engine"
)

var (
	dragOnto   string
	dragBefore string
	dragAfter  string
	dragChoice string
)

var dragCmd = &cobra.Command{
	Use:   "drag <item>",
	Short: "Drag an item onto a sibling slot or a new parent, as a dashboard would",
	Long: `Replays one drag-and-drop gesture through the drag coordinator.

  --before/--after <sibling>  drop next to a sibling: reorders within the shared parent
  --onto <parent>             drop on a container of the parent type: needs --choice move|copy

Drops on targets of the wrong type are ignored and leave the graph unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.finish()

		resolve := func(ref string) (string, error) {
			it, err := ResolveItem(ctx, ws.engine, ws.keys, ref)
			return it.ID, err
		}
		item, err := resolve(args[0])
		if err != nil {
			return err
		}

		co := dragdrop.New(ws.engine, logger)
		if err := co.BeginDrag(item); err != nil {
			return err
		}

		var candidate bool
		switch {
		case dragBefore != "" || dragAfter != "":
			ref, pos := dragBefore, engine.Before
			if dragAfter != "" {
				ref, pos = dragAfter, engine.After
			}
			anchor, err := resolve(ref)
			if err != nil {
				return err
			}
			candidate, err = co.HoverBetween(anchor, pos)
			if err != nil {
				return err
			}
		case dragOnto != "":
			parent, err := resolve(dragOnto)
			if err != nil {
				return err
			}
			candidate, err = co.HoverContainer(parent)
			if err != nil {
				return err
			}
		default:
			co.Cancel()
			return fmt.Errorf("give a drop target with --before, --after or --onto")
		}
		if !candidate {
			logger.Debug("drop target rejected", zap.String("item", item))
		}

		res, err := co.Drop(ctx, item)
		if err != nil {
			return err
		}
		if res.Action == dragdrop.ActionAwaitingChoice {
			choice, err := parseChoice(dragChoice)
			if err != nil {
				co.Cancel()
				return err
			}
			if res, err = co.Resolve(ctx, choice); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		switch res.Action {
		case dragdrop.ActionCopied:
			fmt.Fprintf(out, "copied: new subtree %s\n", res.NewID)
		case dragdrop.ActionNone:
			fmt.Fprintln(out, "no drop target: nothing changed")
		default:
			fmt.Fprintf(out, "%s (%s)\n", res.Action, res.Outcome)
		}
		return ws.save(ctx, cmd)
	},
}

func init() {
	dragCmd.Flags().StringVar(&dragOnto, "onto", "", "Parent to drop the item on")
	dragCmd.Flags().StringVar(&dragBefore, "before", "", "Sibling to drop the item in front of")
	dragCmd.Flags().StringVar(&dragAfter, "after", "", "Sibling to drop the item behind")
	dragCmd.Flags().StringVar(&dragChoice, "choice", "", "move or copy, for drops on a new parent")
	dragCmd.MarkFlagsMutuallyExclusive("onto", "before", "after")
	addSaveFlags(dragCmd)
	rootCmd.AddCommand(dragCmd)
}

func parseChoice(s string) (dragdrop.Choice, error) {
	switch s {
	case "move":
		return dragdrop.ChoiceMove, nil
	case "copy":
		return dragdrop.ChoiceCopy, nil
	case "":
		return 0, fmt.Errorf("dropping on a new parent needs --choice move or --choice copy")
	default:
		return 0, fmt.Errorf("unknown choice %q (want move or copy)", s)
	}
}
