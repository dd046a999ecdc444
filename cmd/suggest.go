package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/suggest"
)

var (
	suggestCount  int
	suggestHint   string
	suggestDrafts string
	suggestApply  bool
	suggestJSON   bool
)

var suggestCmd = &cobra.Command{
	Use:   "suggest [parent...]",
	Short: "Draft new child items for one or more parents with the configured generator",
	Long: `Asks the generator (suggest.command in the config, claude by default) for new items
under each parent. With no parent it drafts Objectives. Drafts are normalised, checked and
deduplicated against existing children; --apply creates them as draft items.

--drafts replaces the generator with canned drafts from a YAML list, for offline use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		ws, err := openWorkspace(ctx)
		if err != nil {
			return err
		}
		defer ws.finish()

		provider, err := suggestProvider()
		if err != nil {
			return err
		}

		count := suggestCount
		if count <= 0 {
			count = cfg.Suggest.MaxDrafts
		}
		reqs := []suggest.Request{{Hint: suggestHint, Count: count, Siblings: ws.engine.Roots()}}
		if len(args) > 0 {
			reqs = reqs[:0]
			for _, ref := range args {
				parent, err := ResolveItem(ctx, ws.engine, ws.keys, ref)
				if err != nil {
					return err
				}
				siblings, err := ws.engine.ChildrenOf(parent.ID)
				if err != nil {
					return err
				}
				reqs = append(reqs, suggest.Request{Parent: parent, Siblings: siblings, Hint: suggestHint, Count: count})
			}
		}

		results, err := suggest.SuggestMany(ctx, provider, reqs, cfg.Suggest.Parallel)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		created := map[string][]string{}
		for i, drafts := range results {
			parent := "(new objectives)"
			if reqs[i].Parent.ID != "" {
				parent = reqs[i].Parent.Name
			}
			if !suggestJSON {
				fmt.Fprintf(out, "%s:\n", parent)
			}
			for _, d := range drafts {
				if !suggestJSON {
					fmt.Fprintf(out, "  + %s  %s\n", d.Name, truncTitle(d.Description, 60))
				}
				if !suggestApply {
					continue
				}
				id, err := ws.engine.Create(ctx, d)
				if err != nil {
					return fmt.Errorf("creating %q: %w", d.Name, err)
				}
				created[reqs[i].Parent.ID] = append(created[reqs[i].Parent.ID], id)
			}
		}
		if suggestJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
		}
		if suggestApply {
			logger.Info("created suggested items", zap.Int("parents", len(created)))
			return ws.save(ctx, cmd)
		}
		return nil
	},
}

func init() {
	suggestCmd.Flags().IntVar(&suggestCount, "count", 0, "Drafts per parent (default suggest.max_drafts)")
	suggestCmd.Flags().StringVar(&suggestHint, "hint", "", "Extra guidance for the generator")
	suggestCmd.Flags().StringVar(&suggestDrafts, "drafts", "", "YAML file of canned drafts to use instead of the generator")
	suggestCmd.Flags().BoolVar(&suggestApply, "apply", false, "Create the drafts as new items")
	suggestCmd.Flags().BoolVar(&suggestJSON, "json", false, "Output drafts as JSON")
	addSaveFlags(suggestCmd)
	rootCmd.AddCommand(suggestCmd)
}

func suggestProvider() (suggest.Provider, error) {
	if suggestDrafts != "" {
		drafts, err := readDraftFile(suggestDrafts)
		if err != nil {
			return nil, err
		}
		return suggest.StaticProvider{Drafts: drafts, Log: logger}, nil
	}
	p := suggest.NewCommandProvider(logger)
	if cfg.Suggest.Command != "" {
		p.Command = cfg.Suggest.Command
	}
	if len(cfg.Suggest.Args) > 0 {
		p.Args = cfg.Suggest.Args
	}
	if cfg.Suggest.Timeout > 0 {
		p.Timeout = cfg.Suggest.Timeout
	}
	return p, nil
}

// draftEntry is one canned draft; type and parents are filled in per request.
type draftEntry struct {
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	QualityScore *int              `yaml:"quality_score"`
	UsageCount   *int              `yaml:"usage_count"`
	Targeting    content.Targeting `yaml:"targeting"`
	Owner        string            `yaml:"owner"`
}

func readDraftFile(path string) ([]content.Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading drafts: %w", err)
	}
	var entries []draftEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parsing drafts %s: %w", path, err)
	}
	drafts := make([]content.Draft, len(entries))
	for i, e := range entries {
		drafts[i] = content.Draft{
			Name:         e.Name,
			Description:  e.Description,
			QualityScore: e.QualityScore,
			UsageCount:   e.UsageCount,
			Targeting:    e.Targeting,
			Owner:        e.Owner,
		}
	}
	return drafts, nil
}
