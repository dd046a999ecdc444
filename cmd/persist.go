package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/seed"
)

var (
	saveArchive bool
	dumpPath    string
)

// addSaveFlags registers --export and --dump on commands that change the graph
func addSaveFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&saveArchive, "export", false, "Write the resulting graph to the snapshot archive")
	cmd.Flags().StringVar(&dumpPath, "dump", "", "Write the resulting graph as a seed YAML file ('-' for stdout)")
}

// save writes the workspace graph wherever --export and --dump ask for
func (ws *workspace) save(ctx context.Context, cmd *cobra.Command) error {
	items := ws.engine.Items()
	if saveArchive {
		d, err := OpenArchive(false)
		if err != nil {
			return err
		}
		defer d.Close()
		if err := d.ExportSnapshot(ctx, items); err != nil {
			return err
		}
		logger.Info("exported archive", zap.String("path", d.Path), zap.Int("items", len(items)))
	}
	if dumpPath != "" {
		data, err := seed.Dump(items).Marshal()
		if err != nil {
			return fmt.Errorf("encoding seed: %w", err)
		}
		if dumpPath == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(dumpPath, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dumpPath, err)
		}
		logger.Info("wrote seed", zap.String("path", dumpPath), zap.Int("items", len(items)))
	}
	return nil
}
