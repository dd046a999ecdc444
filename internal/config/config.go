// Package config loads planner settings from a YAML file with PLANNER_* environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/logging"
)

// FileName is the config file looked for when walking up from the working directory.
const FileName = ".planner.yaml"

// EnvPrefix prefixes every environment override, e.g. PLANNER_LOG_LEVEL.
const EnvPrefix = "PLANNER_"

type Config struct {
	Logging   logging.Config  `yaml:"logging" envPrefix:"LOG_"`
	Engine    EngineConfig    `yaml:"engine" envPrefix:"ENGINE_"`
	Suggest   SuggestConfig   `yaml:"suggest" envPrefix:"SUGGEST_"`
	Analytics AnalyticsConfig `yaml:"analytics" envPrefix:"ANALYTICS_"`
	Snapshot  SnapshotConfig  `yaml:"snapshot" envPrefix:"SNAPSHOT_"`
}

type EngineConfig struct {
	Editor     string `yaml:"editor" env:"EDITOR"`
	CopySuffix string `yaml:"copy_suffix" env:"COPY_SUFFIX"`
}

// SuggestConfig configures the external command that drafts content.
type SuggestConfig struct {
	Command   string        `yaml:"command" env:"COMMAND"`
	Args      []string      `yaml:"args" env:"ARGS" envSeparator:" "`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxDrafts int           `yaml:"max_drafts" env:"MAX_DRAFTS"`
	Parallel  int           `yaml:"parallel" env:"PARALLEL"`
}

type AnalyticsConfig struct {
	StaleDays     int     `yaml:"stale_days" env:"STALE_DAYS"`
	TopN          int     `yaml:"top_n" env:"TOP_N"`
	HubThreshold  int     `yaml:"hub_threshold" env:"HUB_THRESHOLD"`
	DupSimilarity float64 `yaml:"duplicate_similarity" env:"DUPLICATE_SIMILARITY"`
}

type SnapshotConfig struct {
	Path string `yaml:"path" env:"PATH"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Logging: logging.Config{Level: "info", Format: "console"},
		Engine:  EngineConfig{Editor: "system", CopySuffix: " (Copy)"},
		Suggest: SuggestConfig{
			Command:   "claude",
			Args:      []string{"--output-format", "json"},
			Timeout:   2 * time.Minute,
			MaxDrafts: 5,
			Parallel:  4,
		},
		Analytics: AnalyticsConfig{StaleDays: 30, TopN: 10, HubThreshold: 3, DupSimilarity: 0.75},
		Snapshot:  SnapshotConfig{Path: ".planner.db"},
	}
}

// Load reads path over the defaults and then applies environment overrides. An empty
// path or a missing file yields the defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the rest of the planner cannot work with.
func (c *Config) Validate() error {
	var errs []error
	if c.Suggest.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("suggest.timeout must be positive, got %s", c.Suggest.Timeout))
	}
	if c.Suggest.MaxDrafts < 1 {
		errs = append(errs, fmt.Errorf("suggest.max_drafts must be at least 1, got %d", c.Suggest.MaxDrafts))
	}
	if c.Suggest.Parallel < 1 {
		errs = append(errs, fmt.Errorf("suggest.parallel must be at least 1, got %d", c.Suggest.Parallel))
	}
	if c.Analytics.StaleDays < 0 {
		errs = append(errs, fmt.Errorf("analytics.stale_days must not be negative, got %d", c.Analytics.StaleDays))
	}
	if c.Analytics.DupSimilarity <= 0 || c.Analytics.DupSimilarity > 1 {
		errs = append(errs, fmt.Errorf("analytics.duplicate_similarity must be in (0, 1], got %g", c.Analytics.DupSimilarity))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Save writes c to path as YAML
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Discover finds the config file using priority: env > flag > walk-up from the working
// directory. It returns "" when nothing is found, which Load treats as defaults.
func Discover(flagPath string) (string, error) {
	if envPath := os.Getenv(EnvPrefix + "CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	if flagPath != "" {
		if _, err := os.Stat(flagPath); err != nil {
			return "", fmt.Errorf("config not found at --config path: %s", flagPath)
		}
		return flagPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", nil
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}
