package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/config"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/db"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/engine"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/filter"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/logging"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/metrics"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/seed"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/store"
)

var (
	configPath  string
	seedPath    string
	dbPath      string
	fromArchive bool
	logLevel    string
	editorName  string
	dumpMetrics bool
)

var (
	cfg    = config.Default()
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "planner",
	Short:         "Plan Objectives, Tactics, Best Practices and Steps as a content graph",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to "+config.FileName)
	pf.StringVar(&seedPath, "seed", "", "YAML seed file to build the graph from")
	pf.StringVar(&dbPath, "db", "", "Path to the snapshot archive (default from config)")
	pf.BoolVar(&fromArchive, "from-archive", false, "Load the graph from the snapshot archive")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&editorName, "editor", "", "Name recorded as last editor")
	pf.BoolVar(&dumpMetrics, "metrics", false, "Print operation metrics to stderr on exit")
}

func setup() error {
	path, err := config.Discover(configPath)
	if err != nil {
		return err
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	l, err := logging.New(c.Logging)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	if path != "" {
		logger.Debug("loaded config", zap.String("path", path))
	}
	return nil
}

// workspace is the engine a command works on, built from a seed file or the archive.
type workspace struct {
	engine   *engine.Engine
	keys     seed.Keys
	registry *prometheus.Registry
}

// openWorkspace builds the engine and loads the graph. --seed and --from-archive are
// mutually exclusive; with neither the graph starts empty.
func openWorkspace(ctx context.Context) (*workspace, error) {
	if seedPath != "" && fromArchive {
		return nil, fmt.Errorf("--seed and --from-archive cannot be combined")
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		return nil, err
	}

	st := store.New()
	if fromArchive {
		d, err := OpenArchive(true)
		if err != nil {
			return nil, err
		}
		items, err := d.AllItems(ctx)
		d.Close()
		if err != nil {
			return nil, err
		}
		if err := st.Load(items); err != nil {
			return nil, fmt.Errorf("loading archive: %w", err)
		}
		logger.Info("loaded archive", zap.Int("items", len(items)))
	}

	ws := &workspace{
		engine: engine.New(st,
			engine.WithLogger(logger),
			engine.WithMetrics(m),
			engine.WithEditor(cfg.Engine.Editor),
			engine.WithCopySuffix(cfg.Engine.CopySuffix),
		),
		keys:     seed.Keys{},
		registry: reg,
	}

	if seedPath != "" {
		doc, err := seed.ReadFile(seedPath)
		if err != nil {
			return nil, err
		}
		keys, err := seed.Apply(ctx, ws.engine, doc.Items)
		if err != nil {
			return nil, err
		}
		ws.keys = keys
		logger.Info("applied seed", zap.String("path", seedPath), zap.Int("items", len(doc.Items)))
	}
	return ws, nil
}

// commandContext carries the logger and the editor name
func commandContext(cmd *cobra.Command) context.Context {
	ctx := logging.WithLogger(cmd.Context(), logger)
	if editorName != "" {
		ctx = engine.ContextWithEditor(ctx, editorName)
	}
	return ctx
}

// finish prints metrics when --metrics is set
func (ws *workspace) finish() {
	if !dumpMetrics {
		return
	}
	families, err := ws.registry.Gather()
	if err != nil {
		logger.Warn("gathering metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stderr, mf); err != nil {
			logger.Warn("writing metrics", zap.Error(err))
			return
		}
	}
}

// ArchivePath returns --db, falling back to the configured snapshot path
func ArchivePath() string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.Snapshot.Path
}

// OpenArchive opens the snapshot archive. With mustExist a missing file is an error
// instead of a new empty archive.
func OpenArchive(mustExist bool) (*db.DB, error) {
	path := ArchivePath()
	if mustExist {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("archive not found at %s (run `planner export` first or pass --db)", path)
		}
	}
	return db.OpenDB(path)
}

// ResolveItem finds an item by seed key, full id, id prefix or name.
// Name matching is case-insensitive; an exact name wins over partial matches.
func ResolveItem(ctx context.Context, e *engine.Engine, keys seed.Keys, reference string) (content.Item, error) {
	if id, ok := keys[reference]; ok {
		return e.Get(id)
	}
	if it, err := e.Get(reference); err == nil {
		return it, nil
	}

	if len(reference) >= 4 {
		var prefixed []content.Item
		for _, it := range e.Items() {
			if strings.HasPrefix(it.ID, reference) {
				prefixed = append(prefixed, it)
			}
		}
		switch len(prefixed) {
		case 1:
			return prefixed[0], nil
		case 0:
		default:
			return content.Item{}, ambiguous(reference, prefixed)
		}
	}

	matches, err := e.Query(ctx, filter.Spec{Search: strings.TrimSpace(reference)})
	if err != nil {
		return content.Item{}, err
	}
	var exact []content.Item
	for _, it := range matches {
		if strings.EqualFold(it.Name, reference) {
			exact = append(exact, it)
		}
	}
	if len(exact) > 0 {
		matches = exact
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return content.Item{}, fmt.Errorf("%w: %s", content.ErrNotFound, reference)
	default:
		return content.Item{}, ambiguous(reference, matches)
	}
}

func ambiguous(reference string, items []content.Item) error {
	limit := min(len(items), 10)
	lines := make([]string, limit)
	for i, it := range items[:limit] {
		lines[i] = fmt.Sprintf("  %s %s %s", truncID(it.ID), it.Type, it.Name)
	}
	return fmt.Errorf("ambiguous reference '%s'. %d matches:\n%s\nUse a full item ID instead.",
		reference, len(items), strings.Join(lines, "\n"))
}

func truncID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncTitle(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
