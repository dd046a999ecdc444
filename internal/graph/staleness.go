package graph

import (
	"sort"
	"time"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

const day = 24 * time.Hour

// StaleItem is unfinished work nobody has touched for a while
type StaleItem struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Status        string `json:"status"`
	DaysSinceEdit int    `json:"days_since_edit"`
}

// StaleRollup is a parent last edited before one of its children changed
type StaleRollup struct {
	ParentID   string `json:"parent_id"`
	ParentName string `json:"parent_name"`
	ChildID    string `json:"child_id"`
	ChildName  string `json:"child_name"`
	DriftDays  int    `json:"drift_days"`
}

// StalenessReport contains staleness analysis results
type StalenessReport struct {
	StaleItems       []StaleItem   `json:"stale_items"`
	StaleRollups     []StaleRollup `json:"stale_rollups"`
	StaleItemCount   int           `json:"stale_item_count"`
	StaleRollupCount int           `json:"stale_rollup_count"`
}

func unfinished(s content.Status) bool {
	return s == content.StatusDraft || s == content.StatusInReview
}

// ComputeStaleness lists draft and in-review items not edited for staleDays as of now, and
// parents whose last edit is at least a full day older than a child's.
func ComputeStaleness(snap *Snapshot, staleDays int, now time.Time, topN int) *StalenessReport {
	r := &StalenessReport{}
	threshold := time.Duration(staleDays) * day

	for _, id := range snap.IDs() {
		n := snap.Nodes[id]
		if !unfinished(n.Status) {
			continue
		}
		age := now.Sub(n.LastEditedAt)
		if age < threshold {
			continue
		}
		r.StaleItems = append(r.StaleItems, StaleItem{
			ID:            n.ID,
			Name:          n.Name,
			Type:          n.Type.String(),
			Status:        string(n.Status),
			DaysSinceEdit: int(age / day),
		})
	}
	sort.SliceStable(r.StaleItems, func(i, j int) bool {
		return r.StaleItems[i].DaysSinceEdit > r.StaleItems[j].DaysSinceEdit
	})

	for _, e := range snap.Edges {
		parent, child := snap.Nodes[e.Parent], snap.Nodes[e.Child]
		drift := child.LastEditedAt.Sub(parent.LastEditedAt)
		if drift < day {
			continue
		}
		r.StaleRollups = append(r.StaleRollups, StaleRollup{
			ParentID:   parent.ID,
			ParentName: parent.Name,
			ChildID:    child.ID,
			ChildName:  child.Name,
			DriftDays:  int(drift / day),
		})
	}
	sort.SliceStable(r.StaleRollups, func(i, j int) bool {
		return r.StaleRollups[i].DriftDays > r.StaleRollups[j].DriftDays
	})

	r.StaleItemCount, r.StaleRollupCount = len(r.StaleItems), len(r.StaleRollups)
	r.StaleItems = limit(r.StaleItems, topN)
	r.StaleRollups = limit(r.StaleRollups, topN)
	return r
}
