package graph

import "github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"

// Gap is an item with nothing of the next level under it
type Gap struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Missing string `json:"missing"`
}

// CoverageReport shows where the hierarchy stops short and how work is spread over statuses
type CoverageReport struct {
	Gaps     []Gap                     `json:"gaps"`
	GapCount int                       `json:"gap_count"`
	Funnel   map[string]map[string]int `json:"funnel"` // type -> status -> count
	Scored   int                       `json:"scored"`
	AvgScore float64                   `json:"avg_score"`
}

// ComputeCoverage finds Objectives without Tactics, Tactics without Best Practices and
// Best Practices without Steps, and counts items per type and status.
func ComputeCoverage(snap *Snapshot, topN int) *CoverageReport {
	r := &CoverageReport{Funnel: make(map[string]map[string]int, 4)}
	for _, t := range content.AllTypes() {
		row := make(map[string]int, 4)
		for _, s := range content.AllStatuses() {
			row[string(s)] = 0
		}
		r.Funnel[t.String()] = row
	}

	total := 0
	for _, id := range snap.IDs() {
		n := snap.Nodes[id]
		r.Funnel[n.Type.String()][string(n.Status)]++
		if n.QualityScore != nil {
			r.Scored++
			total += *n.QualityScore
		}

		want, ok := content.ExpectedChildType(n.Type)
		if !ok || hasChildOfType(snap, id, want) {
			continue
		}
		r.Gaps = append(r.Gaps, Gap{ID: id, Name: n.Name, Type: n.Type.String(), Missing: want.String()})
	}
	if r.Scored > 0 {
		r.AvgScore = float64(total) / float64(r.Scored)
	}
	r.GapCount = len(r.Gaps)
	r.Gaps = limit(r.Gaps, topN)
	return r
}

func hasChildOfType(snap *Snapshot, id string, t content.ItemType) bool {
	for _, c := range snap.Children[id] {
		if snap.Nodes[c].Type == t {
			return true
		}
	}
	return false
}
