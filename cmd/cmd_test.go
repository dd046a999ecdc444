package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/dragdrop"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/engine"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/seed"
)

const planYAML = `items:
  - key: grow
    type: Objective
    name: Grow pipeline
  - key: webinars
    type: Tactic
    name: Webinar series
    description: Quarterly webinars for EMEA buyers
    parents: [grow]
  - key: events
    type: Tactic
    name: Trade shows
    parents: [grow]
  - key: followup
    type: BestPractice
    name: Follow up quickly
    parents: [webinars]
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// resetFlags puts every flag back to its default; cobra keeps parsed values between
// Execute calls.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func workdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	chdir(t, dir)
	t.Setenv("PLANNER_CONFIG", "")
	return dir
}

func TestExportSearchTreeDrag(t *testing.T) {
	dir := workdir(t)
	plan := writeFile(t, dir, "plan.yaml", planYAML)
	archive := filepath.Join(dir, "plan.db")

	_, err := run(t, "--seed", plan, "--db", archive, "export")
	require.NoError(t, err)

	out, err := run(t, "--db", archive, "search", "webinars")
	require.NoError(t, err)
	assert.Contains(t, out, "Webinar series")
	assert.Contains(t, out, "1 item(s)")

	out, err = run(t, "--db", archive, "--from-archive", "tree")
	require.NoError(t, err)
	assert.Contains(t, out, "Grow pipeline")
	assert.Less(t, strings.Index(out, "Webinar series"), strings.Index(out, "Trade shows"))

	out, err = run(t, "--db", archive, "--from-archive", "drag", "Trade shows", "--before", "Webinar series", "--export")
	require.NoError(t, err)
	assert.Contains(t, out, "reordered (changed)")

	out, err = run(t, "--db", archive, "--from-archive", "tree", "Grow pipeline", "--depth", "2")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "Trade shows"), strings.Index(out, "Webinar series"))
	assert.NotContains(t, out, "Follow up quickly")
}

func TestDragNeedsChoice(t *testing.T) {
	dir := workdir(t)
	plan := writeFile(t, dir, "plan.yaml", planYAML)

	_, err := run(t, "--seed", plan, "drag", "followup", "--onto", "events")
	assert.ErrorContains(t, err, "--choice")

	out, err := run(t, "--seed", plan, "drag", "followup", "--onto", "events", "--choice", "copy", "--dump", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "copied: new subtree")
	assert.Contains(t, out, "Follow up quickly (Copy)")

	out, err = run(t, "--seed", plan, "drag", "followup", "--onto", "grow", "--choice", "move")
	require.NoError(t, err)
	assert.Contains(t, out, "no drop target")
}

func TestApplyScript(t *testing.T) {
	dir := workdir(t)
	plan := writeFile(t, dir, "plan.yaml", planYAML)
	script := writeFile(t, dir, "script.yaml", `script:
  - op: duplicate
    key: webinars
    parent: grow
    as: webinars2
  - op: move
    key: followup
    parent: events
`)

	out, err := run(t, "--seed", plan, "apply", script, "--dump", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "duplicate")
	assert.Contains(t, out, "Webinar series (Copy)")

	doc, err := seed.Parse([]byte(out[strings.Index(out, "items:"):]))
	require.NoError(t, err)
	assert.Len(t, doc.Items, 6)

	bad := writeFile(t, dir, "bad.yaml", "script:\n  - op: move\n    key: followup\n    parent: grow\n")
	_, err = run(t, "--seed", plan, "apply", bad)
	assert.ErrorIs(t, err, content.ErrInvalidRelationship)
}

func TestQueryCommand(t *testing.T) {
	dir := workdir(t)
	plan := writeFile(t, dir, "plan.yaml", planYAML)

	out, err := run(t, "--seed", plan, "query", "--type", "tactic", "--expr", "item.child_count == 0")
	require.NoError(t, err)
	assert.Contains(t, out, "Trade shows")
	assert.NotContains(t, out, "Webinar series")

	_, err = run(t, "--seed", plan, "query", "--type", "campaign")
	assert.Error(t, err)
}

func TestSuggestOffline(t *testing.T) {
	dir := workdir(t)
	plan := writeFile(t, dir, "plan.yaml", planYAML)
	drafts := writeFile(t, dir, "drafts.yaml", `- name: Send recap
  description: Within a day
- name: follow up QUICKLY
`)

	out, err := run(t, "--seed", plan, "suggest", "webinars", "--drafts", drafts, "--apply", "--dump", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "+ Send recap")
	assert.NotContains(t, out, "+ follow up QUICKLY", "repeats of existing children are dropped")

	doc, err := seed.Parse([]byte(out[strings.Index(out, "items:"):]))
	require.NoError(t, err)
	assert.Len(t, doc.Items, 5)
}

func TestAnalyzeJSON(t *testing.T) {
	dir := workdir(t)
	plan := writeFile(t, dir, "plan.yaml", planYAML)

	out, err := run(t, "--seed", plan, "analyze", "--json", "--top-n", "3")
	require.NoError(t, err)
	var report struct {
		HealthScore float64 `json:"health_score"`
		Topology    struct {
			TotalItems int `json:"total_items"`
		} `json:"topology"`
		Coverage struct {
			GapCount int `json:"gap_count"`
		} `json:"coverage"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 4, report.Topology.TotalItems)
	assert.Equal(t, 2, report.Coverage.GapCount, "Trade shows and Follow up quickly")
	assert.Greater(t, report.HealthScore, 0.0)

	out, err = run(t, "--seed", plan, "analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "Plan Health")
}

func TestSeedAndArchiveExclusive(t *testing.T) {
	dir := workdir(t)
	plan := writeFile(t, dir, "plan.yaml", planYAML)
	_, err := run(t, "--seed", plan, "--from-archive", "tree")
	assert.ErrorContains(t, err, "cannot be combined")

	_, err = run(t, "--db", filepath.Join(dir, "missing.db"), "--from-archive", "tree")
	assert.ErrorContains(t, err, "archive not found")
}

func TestResolveItem(t *testing.T) {
	ctx := context.Background()
	n := 0
	e := engine.New(nil, engine.WithIDGenerator(func() string {
		n++
		return []string{"aaaa1111", "aaaa2222", "bbbb3333"}[n-1]
	}))
	obj, err := e.Create(ctx, content.Draft{Type: content.TypeObjective, Name: "Grow pipeline"})
	require.NoError(t, err)
	_, err = e.Create(ctx, content.Draft{Type: content.TypeTactic, Name: "Grow", ParentIDs: []string{obj}})
	require.NoError(t, err)
	_, err = e.Create(ctx, content.Draft{Type: content.TypeTactic, Name: "Webinars", ParentIDs: []string{obj}})
	require.NoError(t, err)
	keys := seed.Keys{"grow": obj}

	cases := map[string]string{
		"grow":     "aaaa1111", // key
		"bbbb3333": "bbbb3333", // id
		"bbbb":     "bbbb3333", // prefix
		"GROW":     "aaaa2222", // exact name beats partial
		"webin":    "bbbb3333", // partial name
	}
	for ref, want := range cases {
		it, err := ResolveItem(ctx, e, keys, ref)
		require.NoError(t, err, ref)
		assert.Equal(t, want, it.ID, ref)
	}

	_, err = ResolveItem(ctx, e, keys, "aaaa")
	assert.ErrorContains(t, err, "ambiguous reference")
	_, err = ResolveItem(ctx, e, keys, "podcast")
	assert.ErrorIs(t, err, content.ErrNotFound)
}

func TestParseChoice(t *testing.T) {
	c, err := parseChoice("copy")
	require.NoError(t, err)
	assert.Equal(t, dragdrop.ChoiceCopy, c)
	_, err = parseChoice("")
	assert.Error(t, err)
	_, err = parseChoice("link")
	assert.Error(t, err)
}

func TestTruncTitle(t *testing.T) {
	assert.Equal(t, "short", truncTitle("short", 10))
	assert.Equal(t, "abc...", truncTitle("abcdef", 3))
	assert.Equal(t, "ab...", truncTitle("abé", 3), "never splits a rune")
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
