package suggest

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var tactic = content.Item{
	ID:          "t1",
	Type:        content.TypeTactic,
	Name:        "Webinar series",
	Description: "Quarterly webinars for EMEA SaaS buyers",
	Targeting:   content.Targeting{Regions: []string{"EMEA"}, Industries: []string{"SaaS"}},
}

func TestParseDrafts(t *testing.T) {
	tests := []struct {
		name  string
		out   string
		names []string
	}{
		{"array", `[{"name":"Send recap","description":"within a day"},{"name":"Tag leads"}]`, []string{"Send recap", "Tag leads"}},
		{"drafts object", `{"drafts":[{"name":"Send recap"}]}`, []string{"Send recap"}},
		{"cli result", `{"type":"result","result":"Here you go:\n` + "```json" + `\n[{\"name\":\"Send recap\"}]\n` + "```" + `"}`, []string{"Send recap"}},
		{"stream json", strings.Join([]string{
			`{"type":"system","subtype":"init"}`,
			`{"type":"assistant","message":{"content":[{"type":"text","text":"thinking"}]}}`,
			`not json at all`,
			`{"type":"result","result":"[{\"name\":\"A\"},{\"name\":\"B\"}]"}`,
		}, "\n"), []string{"A", "B"}},
		{"prose around array", "Sure!\n[{\"name\":\"Only one\"}]\nThanks", []string{"Only one"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drafts, err := parseDrafts([]byte(tt.out))
			require.NoError(t, err)
			got := make([]string, len(drafts))
			for i, d := range drafts {
				got[i] = d.Name
			}
			assert.Equal(t, tt.names, got)
		})
	}
}

func TestParseDrafts_Errors(t *testing.T) {
	for name, out := range map[string]string{
		"empty":        "   ",
		"prose":        "I could not think of anything.",
		"error result": `{"type":"result","is_error":true,"result":"rate limited"}`,
		"result prose": `{"type":"result","result":"no json here"}`,
	} {
		_, err := parseDrafts([]byte(out))
		assert.ErrorIs(t, err, ErrProvider, name)
	}
}

func TestSanitize(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	req := Request{
		Parent:   tactic,
		Siblings: []content.Item{{Name: "Send Recap"}},
		Count:    2,
	}
	raw := []content.Draft{
		{Type: content.TypeObjective, Name: "  Score attendees  ", ParentIDs: []string{"elsewhere"}},
		{Name: ""},
		{Name: "send recap"},
		{Name: "Score attendees"},
		{Name: "Bad score", QualityScore: content.Ptr(400)},
		{Name: "Book follow-up calls"},
		{Name: "Past the cap"},
	}

	got, err := Sanitize(context.Background(), req, raw, zap.New(core))
	require.NoError(t, err)
	require.Len(t, got, 2)
	for _, d := range got {
		assert.Equal(t, content.TypeBestPractice, d.Type)
		assert.Equal(t, []string{"t1"}, d.ParentIDs)
		assert.Equal(t, content.StatusDraft, d.Status)
	}
	assert.Equal(t, "Score attendees", got[0].Name)
	assert.Equal(t, "Book follow-up calls", got[1].Name)
	assert.Equal(t, 2, logs.FilterMessage("dropping invalid draft").Len())
	assert.Equal(t, 2, logs.FilterMessage("dropping repeated draft").Len())
}

func TestSanitize_RootsAndLeaves(t *testing.T) {
	got, err := Sanitize(context.Background(), Request{}, []content.Draft{{Name: "New objective"}}, nil)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, content.TypeObjective, got[0].Type)
	assert.Empty(t, got[0].ParentIDs)

	_, err = Sanitize(context.Background(), Request{Parent: content.Item{ID: "s1", Type: content.TypeStep}}, nil, nil)
	assert.ErrorIs(t, err, ErrNoChildType)
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(Request{
		Parent:   tactic,
		Siblings: []content.Item{{Name: "Send recap"}},
		Hint:     "Focus on sales handoff",
		Count:    4,
	})
	require.NoError(t, err)
	for _, want := range []string{
		"Propose 4 new best practice items for the tactic below",
		"## Tactic: Webinar series",
		"Regions: EMEA",
		"- Send recap",
		"Focus on sales handoff",
		"JSON array",
	} {
		assert.Contains(t, prompt, want)
	}

	_, err = BuildPrompt(Request{Parent: content.Item{ID: "s", Type: content.TypeStep}})
	assert.ErrorIs(t, err, ErrNoChildType)
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{Drafts: []content.Draft{{Name: "A"}, {Name: "B"}}}
	got, err := p.Suggest(context.Background(), Request{Parent: tactic})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, content.TypeBestPractice, got[0].Type)
	assert.Empty(t, p.Drafts[0].ParentIDs, "the canned drafts are not modified")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Suggest(ctx, Request{Parent: tactic})
	assert.ErrorIs(t, err, context.Canceled)
}

type countingProvider struct {
	inFlight, peak atomic.Int32
	fail           string
}

func (p *countingProvider) Suggest(ctx context.Context, req Request) ([]content.Draft, error) {
	n := p.inFlight.Add(1)
	defer p.inFlight.Add(-1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	if req.Parent.ID == p.fail {
		return nil, errors.New("boom")
	}
	select {
	case <-time.After(20 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return []content.Draft{{Name: "for " + req.Parent.ID}}, nil
}

func TestSuggestMany(t *testing.T) {
	p := &countingProvider{}
	reqs := make([]Request, 6)
	for i := range reqs {
		reqs[i] = Request{Parent: content.Item{ID: string(rune('a' + i)), Type: content.TypeTactic}}
	}

	got, err := SuggestMany(context.Background(), p, reqs, 2)
	require.NoError(t, err)
	require.Len(t, got, 6)
	for i, drafts := range got {
		require.Len(t, drafts, 1)
		assert.Equal(t, "for "+reqs[i].Parent.ID, drafts[0].Name)
	}
	assert.LessOrEqual(t, p.peak.Load(), int32(2))

	p = &countingProvider{fail: "c"}
	_, err = SuggestMany(context.Background(), p, reqs, 0)
	assert.ErrorContains(t, err, "boom")
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestCommandProvider(t *testing.T) {
	requireShell(t)
	p := &CommandProvider{
		Command: "sh",
		Args: []string{"-c", `case "$0" in *"Webinar series"*) ;; *) exit 9 ;; esac
printf '%s\n' '{"type":"system"}' '{"type":"result","result":"[{\"name\":\"Send recap\"},{\"name\":\"\"}]"}'`,
			PromptPlaceholder},
		Timeout: 5 * time.Second,
	}
	got, err := p.Suggest(context.Background(), Request{Parent: tactic})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Send recap", got[0].Name)
	assert.Equal(t, []string{"t1"}, got[0].ParentIDs)
}

func TestCommandProvider_Failures(t *testing.T) {
	requireShell(t)

	p := &CommandProvider{Command: "sh", Args: []string{"-c", "echo quota exceeded >&2; exit 3", PromptPlaceholder}}
	_, err := p.Suggest(context.Background(), Request{Parent: tactic})
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorContains(t, err, "code 3")
	assert.ErrorContains(t, err, "quota exceeded")

	p = &CommandProvider{Command: "sh", Args: []string{"-c", "exec sleep 5", PromptPlaceholder}, Timeout: 100 * time.Millisecond}
	started := time.Now()
	_, err = p.Suggest(context.Background(), Request{Parent: tactic})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 4*time.Second)

	p = &CommandProvider{Command: "sh", Args: []string{"-c", "echo nothing useful", PromptPlaceholder}}
	_, err = p.Suggest(context.Background(), Request{Parent: tactic})
	assert.ErrorIs(t, err, ErrProvider)

	p = &CommandProvider{Command: "definitely-not-a-real-binary-xyz"}
	_, err = p.Suggest(context.Background(), Request{Parent: tactic})
	assert.ErrorIs(t, err, ErrProvider)
}

func TestCommandProvider_Args(t *testing.T) {
	p := NewCommandProvider(nil)
	assert.Equal(t, []string{"-p", "hi", "--output-format", "json"}, p.args("hi"))

	p.Args = []string{"run", "--prompt={{prompt}}"}
	assert.Equal(t, []string{"run", "--prompt=hi"}, p.args("hi"))
}

func TestCappedBuffer(t *testing.T) {
	b := cappedBuffer{limit: 5}
	n, err := b.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = b.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "abcde", b.String())
	assert.True(t, b.Truncated())
}

func TestFilterAgentEnv(t *testing.T) {
	got := filterAgentEnv([]string{"PATH=/bin", "CLAUDECODE=1", "CLAUDE_CODE_ENTRY=cli", "HOME=/root"})
	assert.Equal(t, []string{"PATH=/bin", "HOME=/root"}, got)
}
