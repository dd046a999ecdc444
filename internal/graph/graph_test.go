package graph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

var now = time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)

type fixture struct {
	id, name string
	typ      content.ItemType
	status   content.Status
	edited   int // days before now
	score    *int
	children []string
}

func build(fixtures ...fixture) *Snapshot {
	items := make([]content.Item, 0, len(fixtures))
	for _, s := range fixtures {
		status := s.status
		if status == "" {
			status = content.StatusApproved
		}
		edited := s.edited
		if edited == 0 {
			edited = 10
		}
		name := s.name
		if name == "" {
			name = s.id
		}
		at := now.Add(-time.Duration(edited) * day)
		items = append(items, content.Item{
			ID:           s.id,
			Name:         name,
			Type:         s.typ,
			Status:       status,
			QualityScore: s.score,
			CreatedAt:    at,
			LastEditedAt: at,
			ChildIDs:     s.children,
		})
	}
	return NewSnapshot(items)
}

// plan:
//
//	O1 -> T1 -> B1 -> S1
//	      T1 -> B2
//	O1 -> T2
//	O2 -> T3 -> B1
//	T9 -> B9            (no objective)
func plan() *Snapshot {
	return build(
		fixture{id: "O1", name: "Grow pipeline", typ: content.TypeObjective, score: content.Ptr(80), children: []string{"T1", "T2"}},
		fixture{id: "O2", name: "Grow retention", typ: content.TypeObjective, children: []string{"T3"}},
		fixture{id: "T1", name: "Webinar series", typ: content.TypeTactic, edited: 50, score: content.Ptr(60), children: []string{"B1", "B2"}},
		fixture{id: "T2", name: "Webinar series (Copy)", typ: content.TypeTactic, status: content.StatusInReview, edited: 31},
		fixture{id: "T3", name: "Trade shows", typ: content.TypeTactic, children: []string{"B1"}},
		fixture{id: "T9", name: "Podcast", typ: content.TypeTactic, children: []string{"B9"}},
		fixture{id: "B1", name: "Follow up quickly", typ: content.TypeBestPractice, children: []string{"S1"}},
		fixture{id: "B2", name: "Follow up calls", typ: content.TypeBestPractice, status: content.StatusDraft, edited: 40},
		fixture{id: "B9", name: "Record episodes", typ: content.TypeBestPractice, status: content.StatusDraft, edited: 29},
		fixture{id: "S1", name: "Send recap", typ: content.TypeStep, edited: 100},
	)
}

func TestSnapshot(t *testing.T) {
	snap := plan()
	assert.Len(t, snap.Nodes, 10)
	assert.Len(t, snap.Edges, 8)
	assert.Equal(t, []string{"B1", "B2"}, snap.Children["T1"])
	assert.ElementsMatch(t, []string{"T1", "T3"}, snap.Parents["B1"])
	assert.Equal(t, []string{"O1", "O2"}, snap.Objectives())

	assert.Equal(t, "O1", snap.Regions["B1"], "first objective by id wins")
	assert.Equal(t, "O2", snap.Regions["T3"])
	assert.Equal(t, Unassigned, snap.Regions["B9"])

	sub := snap.FilterToObjective("O2")
	assert.Equal(t, []string{"B1", "O2", "S1", "T3"}, sub.IDs())
	assert.Len(t, sub.Edges, 3)
}

func TestSnapshot_SkipsDanglingChildren(t *testing.T) {
	snap := build(fixture{id: "O1", typ: content.TypeObjective, children: []string{"gone"}})
	assert.Empty(t, snap.Edges)
	assert.Empty(t, snap.Children["O1"])
}

func TestTopology(t *testing.T) {
	r := ComputeTopology(plan(), 2, 0)
	assert.Equal(t, 10, r.TotalItems)
	assert.Equal(t, 8, r.TotalEdges)
	assert.Equal(t, map[string]int{"Objective": 2, "Tactic": 4, "BestPractice": 3, "Step": 1}, r.ByType)
	assert.Equal(t, 2, r.NumComponents)
	assert.Equal(t, 8, r.LargestComponent)
	assert.Equal(t, 2, r.SmallestComponent)
	assert.Equal(t, []string{"T9"}, r.OrphanIDs)
	assert.Equal(t, []string{"B9", "T9"}, r.UnreachableIDs)
	assert.Equal(t, 2, r.UnreachableCount)

	require.Len(t, r.Shared, 1)
	assert.Equal(t, "B1", r.Shared[0].ID)
	assert.Equal(t, 2, r.Shared[0].ParentCount)

	counts := map[string]int{}
	for _, b := range r.DegreeHistogram {
		counts[b.Label] = b.Count
	}
	assert.Equal(t, 0, counts["0"])
	assert.Equal(t, 6, counts["1"])
	assert.Equal(t, 4, counts["2-3"])
}

func TestTopology_Empty(t *testing.T) {
	r := ComputeTopology(NewSnapshot(nil), 2, 10)
	assert.Zero(t, r.TotalItems)
	assert.Zero(t, r.NumComponents)
	assert.Equal(t, 0, r.ByType["Objective"])
}

func TestTopology_TopNLimitsListsNotCounts(t *testing.T) {
	snap := build(
		fixture{id: "a", typ: content.TypeTactic},
		fixture{id: "b", typ: content.TypeTactic},
		fixture{id: "c", typ: content.TypeTactic},
	)
	r := ComputeTopology(snap, 2, 2)
	assert.Equal(t, 3, r.OrphanCount)
	assert.Equal(t, []string{"a", "b"}, r.OrphanIDs)
}

func TestCoverage(t *testing.T) {
	r := ComputeCoverage(plan(), 0)
	require.Equal(t, 3, r.GapCount)
	got := make([]string, len(r.Gaps))
	for i, g := range r.Gaps {
		got[i] = g.ID + ":" + g.Missing
	}
	assert.Equal(t, []string{"B2:Step", "B9:Step", "T2:BestPractice"}, got)

	assert.Equal(t, 1, r.Funnel["Tactic"]["in-review"])
	assert.Equal(t, 3, r.Funnel["Tactic"]["approved"])
	assert.Equal(t, 2, r.Funnel["BestPractice"]["draft"])
	assert.Equal(t, 0, r.Funnel["Step"]["released"])
	assert.Equal(t, 2, r.Scored)
	assert.InDelta(t, 70.0, r.AvgScore, 1e-9)
}

func TestStaleness(t *testing.T) {
	r := ComputeStaleness(plan(), 30, now, 0)

	require.Equal(t, 2, r.StaleItemCount)
	assert.Equal(t, "B2", r.StaleItems[0].ID)
	assert.Equal(t, 40, r.StaleItems[0].DaysSinceEdit)
	assert.Equal(t, "T2", r.StaleItems[1].ID)
	assert.Equal(t, "in-review", r.StaleItems[1].Status)

	require.Equal(t, 2, r.StaleRollupCount)
	assert.Equal(t, StaleRollup{ParentID: "T1", ParentName: "Webinar series", ChildID: "B1", ChildName: "Follow up quickly", DriftDays: 40}, r.StaleRollups[0])
	assert.Equal(t, "B2", r.StaleRollups[1].ChildID)
	assert.Equal(t, 10, r.StaleRollups[1].DriftDays)
}

func TestStaleness_ApprovedAndFreshIgnored(t *testing.T) {
	snap := build(
		fixture{id: "old", typ: content.TypeStep, status: content.StatusReleased, edited: 400},
		fixture{id: "fresh", typ: content.TypeStep, status: content.StatusDraft, edited: 1},
	)
	r := ComputeStaleness(snap, 30, now, 10)
	assert.Zero(t, r.StaleItemCount)
	assert.Zero(t, r.StaleRollupCount)
}

func TestBridges_Tree(t *testing.T) {
	r := ComputeBridges(plan(), 3, 0)
	assert.Equal(t, 8, r.SoleLinkCount, "a forest has no cycles, every link is a sole link")
	ids := []string{}
	for _, c := range r.Chokepoints {
		ids = append(ids, c.ID)
	}
	assert.ElementsMatch(t, []string{"B1", "T1"}, ids)

	for _, l := range r.SoleLinks {
		assert.Contains(t, plan().Children[l.ParentID], l.ChildID, "links point parent to child")
	}
	assert.Equal(t, []ObjectiveLink{{ObjectiveA: "O1", ObjectiveB: "O2", Links: 1}}, r.ObjectiveLinks)
}

func TestBridges_Diamond(t *testing.T) {
	snap := build(
		fixture{id: "O", typ: content.TypeObjective, children: []string{"T1", "T2"}},
		fixture{id: "T1", typ: content.TypeTactic, children: []string{"B"}},
		fixture{id: "T2", typ: content.TypeTactic, children: []string{"B"}},
		fixture{id: "B", typ: content.TypeBestPractice, children: []string{"S"}},
		fixture{id: "S", typ: content.TypeStep},
	)
	r := ComputeBridges(snap, 1, 10)
	require.Len(t, r.SoleLinks, 1)
	assert.Equal(t, "B", r.SoleLinks[0].ParentID)
	assert.Equal(t, "S", r.SoleLinks[0].ChildID)
	require.Len(t, r.Chokepoints, 1)
	assert.Equal(t, "B", r.Chokepoints[0].ID)
	assert.Equal(t, 3, r.Chokepoints[0].Branches)
	assert.Empty(t, r.ObjectiveLinks)
}

func TestNearDuplicates(t *testing.T) {
	dups := FindNearDuplicates(plan(), 0.75, 10)
	require.Len(t, dups, 1)
	assert.Equal(t, "T1", dups[0].A)
	assert.Equal(t, "T2", dups[0].B)
	assert.InDelta(t, 1.0, dups[0].Similarity, 1e-9)

	assert.Len(t, FindNearDuplicates(plan(), 0.5, 10), 2, "Follow up quickly / Follow up calls")
}

func TestNameTokens(t *testing.T) {
	assert.Equal(t, map[string]bool{"webinar": true, "series": true, "2026": true},
		NameTokens("The Webinar-series for 2026 (Copy)"))
	assert.Zero(t, Jaccard(nil, nil))
	assert.InDelta(t, 1.0/3, Jaccard(NameTokens("grow pipeline"), NameTokens("grow retention")), 1e-9)
}

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind([]string{"a", "b", "c", "d"})
	assert.True(t, uf.Union("a", "b"))
	assert.True(t, uf.Union("c", "b"))
	assert.False(t, uf.Union("a", "c"))
	assert.Equal(t, uf.Find("a"), uf.Find("c"))
	assert.Equal(t, 3, uf.Size("c"))
	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d"}}, uf.Components())
	assert.Equal(t, "zz", uf.Find("zz"))
}

func TestAnalyze(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Now = now
	cfg.SharedThreshold = 2
	r := Analyze(plan(), cfg)

	assert.InDelta(t, 0.8, r.HealthBreakdown.Reach, 1e-9)
	assert.InDelta(t, 6.0/9, r.HealthBreakdown.Coverage, 1e-9)
	assert.InDelta(t, 0.0, r.HealthBreakdown.Freshness, 1e-9)
	assert.InDelta(t, 0.7, r.HealthBreakdown.Quality, 1e-9)
	assert.InDelta(t, 0.24+0.2+0.14, r.HealthScore, 1e-9)
	assert.Len(t, r.Duplicates, 1)
	assert.Len(t, r.Topology.Shared, 1)
}

func TestAnalyze_HealthyPlan(t *testing.T) {
	snap := build(
		fixture{id: "O", typ: content.TypeObjective, children: []string{"T"}},
		fixture{id: "T", typ: content.TypeTactic, children: []string{"B"}},
		fixture{id: "B", typ: content.TypeBestPractice, children: []string{"S"}},
		fixture{id: "S", typ: content.TypeStep},
	)
	r := Analyze(snap, &AnalyzerConfig{StaleDays: 30, DupSimilarity: 0.75, Now: now})
	assert.InDelta(t, 1.0, r.HealthScore, 1e-9)

	empty := Analyze(NewSnapshot(nil), nil)
	assert.Zero(t, empty.HealthScore)
}
