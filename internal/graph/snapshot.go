package graph

import (
	"sort"
	"time"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

// Node is the part of an item the analyses look at
type Node struct {
	ID           string
	Name         string
	Type         content.ItemType
	Status       content.Status
	QualityScore *int
	UsageCount   *int
	CreatedAt    time.Time
	LastEditedAt time.Time
}

// Edge is one parent -> child link; Position is the child's index among its siblings.
type Edge struct {
	Parent   string
	Child    string
	Position int
}

// Snapshot holds the content graph with precomputed adjacency and objective regions
type Snapshot struct {
	Nodes    map[string]*Node
	Edges    []Edge
	Adj      map[string][]string // undirected
	Children map[string][]string // parent -> children, sibling order
	Parents  map[string][]string // child -> parents
	Regions  map[string]string   // item -> objective it hangs under, or Unassigned
}

// Unassigned is the region of items no objective reaches
const Unassigned = "unassigned"

// NewSnapshot builds a Snapshot from items. Edges are taken from ChildIDs; references to
// items outside the slice are skipped.
func NewSnapshot(items []content.Item) *Snapshot {
	s := &Snapshot{
		Nodes:    make(map[string]*Node, len(items)),
		Adj:      make(map[string][]string, len(items)),
		Children: make(map[string][]string, len(items)),
		Parents:  make(map[string][]string, len(items)),
	}
	for _, it := range items {
		s.Nodes[it.ID] = &Node{
			ID:           it.ID,
			Name:         it.Name,
			Type:         it.Type,
			Status:       it.Status,
			QualityScore: it.QualityScore,
			UsageCount:   it.UsageCount,
			CreatedAt:    it.CreatedAt,
			LastEditedAt: it.LastEditedAt,
		}
		s.Adj[it.ID] = nil
	}
	for _, it := range items {
		pos := 0
		for _, c := range it.ChildIDs {
			if _, ok := s.Nodes[c]; !ok {
				continue
			}
			s.Edges = append(s.Edges, Edge{Parent: it.ID, Child: c, Position: pos})
			s.Children[it.ID] = append(s.Children[it.ID], c)
			s.Parents[c] = append(s.Parents[c], it.ID)
			s.Adj[it.ID] = append(s.Adj[it.ID], c)
			s.Adj[c] = append(s.Adj[c], it.ID)
			pos++
		}
	}
	s.Regions = s.computeRegions()
	return s
}

// IDs returns every item id sorted, for deterministic output
func (s *Snapshot) IDs() []string {
	ids := make([]string, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Objectives returns the ids of Objective items, sorted
func (s *Snapshot) Objectives() []string {
	var out []string
	for _, id := range s.IDs() {
		if s.Nodes[id].Type == content.TypeObjective {
			out = append(out, id)
		}
	}
	return out
}

// Descendants returns root and everything below it
func (s *Snapshot) Descendants(root string) map[string]bool {
	seen := map[string]bool{}
	if _, ok := s.Nodes[root]; !ok {
		return seen
	}
	stack := []string{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		stack = append(stack, s.Children[id]...)
	}
	return seen
}

// FilterToObjective returns a snapshot of one objective's subtree
func (s *Snapshot) FilterToObjective(objectiveID string) *Snapshot {
	keep := s.Descendants(objectiveID)
	items := make([]content.Item, 0, len(keep))
	for _, id := range s.IDs() {
		if !keep[id] {
			continue
		}
		n := s.Nodes[id]
		items = append(items, content.Item{
			ID:           n.ID,
			Name:         n.Name,
			Type:         n.Type,
			Status:       n.Status,
			QualityScore: n.QualityScore,
			UsageCount:   n.UsageCount,
			CreatedAt:    n.CreatedAt,
			LastEditedAt: n.LastEditedAt,
			ChildIDs:     s.Children[id],
		})
	}
	return NewSnapshot(items)
}

// computeRegions assigns each item to the first objective (by id) that reaches it.
func (s *Snapshot) computeRegions() map[string]string {
	regions := make(map[string]string, len(s.Nodes))
	for _, obj := range s.Objectives() {
		for id := range s.Descendants(obj) {
			if _, ok := regions[id]; !ok {
				regions[id] = obj
			}
		}
	}
	for id := range s.Nodes {
		if _, ok := regions[id]; !ok {
			regions[id] = Unassigned
		}
	}
	return regions
}
