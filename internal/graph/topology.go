package graph

import (
	"sort"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

// SharedItem is an item reused under more than one parent
type SharedItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	ParentCount int    `json:"parent_count"`
	Degree      int    `json:"degree"`
}

// DegreeBucket is one bucket in the degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// TopologyReport describes the shape of the content graph
type TopologyReport struct {
	TotalItems        int            `json:"total_items"`
	TotalEdges        int            `json:"total_edges"`
	ByType            map[string]int `json:"by_type"`
	NumComponents     int            `json:"num_components"`
	LargestComponent  int            `json:"largest_component"`
	SmallestComponent int            `json:"smallest_component"`
	OrphanCount       int            `json:"orphan_count"`
	OrphanIDs         []string       `json:"orphan_ids"`
	UnreachableCount  int            `json:"unreachable_count"`
	UnreachableIDs    []string       `json:"unreachable_ids"`
	DegreeHistogram   []DegreeBucket `json:"degree_histogram"`
	Shared            []SharedItem   `json:"shared"`
}

// ComputeTopology reports components, orphans, unreachable items, degree distribution and
// the most shared items. Orphans are non-Objective items with no parent; unreachable items
// are those no Objective reaches, which includes orphans and everything under them.
// Shared items are those with at least sharedThreshold parents.
func ComputeTopology(snap *Snapshot, sharedThreshold, topN int) *TopologyReport {
	r := &TopologyReport{
		TotalItems:      len(snap.Nodes),
		TotalEdges:      len(snap.Edges),
		ByType:          make(map[string]int, 4),
		DegreeHistogram: defaultHistogram(),
	}
	for _, t := range content.AllTypes() {
		r.ByType[t.String()] = 0
	}
	if r.TotalItems == 0 {
		return r
	}

	ids := snap.IDs()
	uf := NewUnionFind(ids)
	for _, e := range snap.Edges {
		uf.Union(e.Parent, e.Child)
	}
	components := uf.Components()
	r.NumComponents = len(components)
	r.SmallestComponent = r.TotalItems
	for _, c := range components {
		r.LargestComponent = max(r.LargestComponent, len(c))
		r.SmallestComponent = min(r.SmallestComponent, len(c))
	}

	var orphans, unreachable []string
	for _, id := range ids {
		n := snap.Nodes[id]
		r.ByType[n.Type.String()]++
		if n.Type != content.TypeObjective && len(snap.Parents[id]) == 0 {
			orphans = append(orphans, id)
		}
		if snap.Regions[id] == Unassigned {
			unreachable = append(unreachable, id)
		}
		r.DegreeHistogram[degreeBucket(len(snap.Adj[id]))].Count++

		if pc := len(snap.Parents[id]); pc >= sharedThreshold && pc > 1 {
			r.Shared = append(r.Shared, SharedItem{
				ID:          id,
				Name:        n.Name,
				Type:        n.Type.String(),
				ParentCount: pc,
				Degree:      len(snap.Adj[id]),
			})
		}
	}
	r.OrphanCount, r.OrphanIDs = len(orphans), limit(orphans, topN)
	r.UnreachableCount, r.UnreachableIDs = len(unreachable), limit(unreachable, topN)

	sort.SliceStable(r.Shared, func(i, j int) bool { return r.Shared[i].ParentCount > r.Shared[j].ParentCount })
	r.Shared = limit(r.Shared, topN)
	return r
}

func limit[T any](s []T, n int) []T {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree <= 1:
		return degree
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	default:
		return 5
	}
}
