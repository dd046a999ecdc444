package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	writeFile(t, path, `
logging:
  level: debug
engine:
  editor: dana
suggest:
  timeout: 45s
  args: ["-p", "--output-format", "json"]
analytics:
  stale_days: 14
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format, "unset keys keep defaults")
	assert.Equal(t, "dana", cfg.Engine.Editor)
	assert.Equal(t, " (Copy)", cfg.Engine.CopySuffix)
	assert.Equal(t, 45*time.Second, cfg.Suggest.Timeout)
	assert.Equal(t, []string{"-p", "--output-format", "json"}, cfg.Suggest.Args)
	assert.Equal(t, 14, cfg.Analytics.StaleDays)
	assert.Equal(t, 10, cfg.Analytics.TopN)
}

func TestLoad_EnvironmentWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "planner.yaml")
	writeFile(t, path, "engine:\n  editor: dana\n")
	t.Setenv("PLANNER_ENGINE_EDITOR", "lee")
	t.Setenv("PLANNER_LOG_FORMAT", "json")
	t.Setenv("PLANNER_SUGGEST_TIMEOUT", "10s")
	t.Setenv("PLANNER_SNAPSHOT_PATH", "/var/lib/planner.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "lee", cfg.Engine.Editor)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 10*time.Second, cfg.Suggest.Timeout)
	assert.Equal(t, "/var/lib/planner.db", cfg.Snapshot.Path)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, "engine: [unclosed")
	_, err := Load(bad)
	assert.ErrorContains(t, err, "parsing config")

	neg := filepath.Join(dir, "neg.yaml")
	writeFile(t, neg, "suggest:\n  max_drafts: 0\nanalytics:\n  duplicate_similarity: 2\n")
	_, err = Load(neg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "max_drafts")
	assert.ErrorContains(t, err, "duplicate_similarity")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	want := Default()
	want.Engine.Editor = "ops"
	require.NoError(t, want.Save(path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, FileName)
	writeFile(t, cfgPath, "engine:\n  editor: walk\n")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	chdir(t, nested)

	got, err := Discover("")
	require.NoError(t, err)
	// TempDir may sit behind a symlink, so compare resolved paths
	wantResolved, _ := filepath.EvalSymlinks(cfgPath)
	gotResolved, _ := filepath.EvalSymlinks(got)
	assert.Equal(t, wantResolved, gotResolved)

	explicit := filepath.Join(root, "explicit.yaml")
	writeFile(t, explicit, "")
	got, err = Discover(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)

	_, err = Discover(filepath.Join(root, "missing.yaml"))
	assert.ErrorContains(t, err, "--config")

	t.Setenv("PLANNER_CONFIG", cfgPath)
	got, err = Discover(explicit)
	require.NoError(t, err)
	assert.Equal(t, cfgPath, got, "environment beats the flag")
}

// chdir stands in for testing.T.Chdir (Go 1.24+): it changes the working
// directory for the rest of the test and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
