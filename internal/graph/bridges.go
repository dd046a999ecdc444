package graph

import "sort"

// Chokepoint is an item whose removal splits the part of the plan it sits in
type Chokepoint struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Branches int    `json:"branches"`
}

// SoleLink is a parent-child link that is the only path between two parts of the plan
type SoleLink struct {
	ParentID   string `json:"parent_id"`
	ChildID    string `json:"child_id"`
	ParentName string `json:"parent_name"`
	ChildName  string `json:"child_name"`
}

// ObjectiveLink counts the links between items of two different objectives.
// Few links means the objectives share little content.
type ObjectiveLink struct {
	ObjectiveA string `json:"objective_a"`
	ObjectiveB string `json:"objective_b"`
	Links      int    `json:"links"`
}

// BridgeReport lists structural weak points of the plan
type BridgeReport struct {
	Chokepoints     []Chokepoint    `json:"chokepoints"`
	SoleLinks       []SoleLink      `json:"sole_links"`
	ObjectiveLinks  []ObjectiveLink `json:"objective_links"`
	ChokepointCount int             `json:"chokepoint_count"`
	SoleLinkCount   int             `json:"sole_link_count"`
}

// ComputeBridges finds chokepoints (articulation points) and sole links (bridges) on the
// undirected parent-child graph, and counts links that cross objective regions. Only
// chokepoints with at least minBranches neighbours are listed; leaf-heavy trees would
// otherwise report every internal item.
func ComputeBridges(snap *Snapshot, minBranches, topN int) *BridgeReport {
	r := &BridgeReport{}
	if len(snap.Nodes) == 0 {
		return r
	}

	t := newTarjan(snap)
	t.run()

	for i, cut := range t.cut {
		if !cut || len(t.adj[i]) < minBranches {
			continue
		}
		n := snap.Nodes[t.ids[i]]
		r.Chokepoints = append(r.Chokepoints, Chokepoint{
			ID:       n.ID,
			Name:     n.Name,
			Type:     n.Type.String(),
			Branches: len(t.adj[i]),
		})
	}
	sort.SliceStable(r.Chokepoints, func(i, j int) bool { return r.Chokepoints[i].Branches > r.Chokepoints[j].Branches })
	r.ChokepointCount = len(r.Chokepoints)
	r.Chokepoints = limit(r.Chokepoints, topN)

	for _, b := range t.bridges {
		parent, child := t.ids[b[0]], t.ids[b[1]]
		// Tarjan reports tree edges in DFS direction; flip to parent -> child.
		if !contains(snap.Children[parent], child) {
			parent, child = child, parent
		}
		r.SoleLinks = append(r.SoleLinks, SoleLink{
			ParentID:   parent,
			ChildID:    child,
			ParentName: snap.Nodes[parent].Name,
			ChildName:  snap.Nodes[child].Name,
		})
	}
	r.SoleLinkCount = len(r.SoleLinks)
	r.SoleLinks = limit(r.SoleLinks, topN)

	r.ObjectiveLinks = objectiveLinks(snap)
	return r
}

func objectiveLinks(snap *Snapshot) []ObjectiveLink {
	type pair struct{ a, b string }
	counts := make(map[pair]int)
	for _, e := range snap.Edges {
		ra, rb := snap.Regions[e.Parent], snap.Regions[e.Child]
		if ra == rb || ra == Unassigned || rb == Unassigned {
			continue
		}
		if ra > rb {
			ra, rb = rb, ra
		}
		counts[pair{ra, rb}]++
	}
	out := make([]ObjectiveLink, 0, len(counts))
	for p, n := range counts {
		out = append(out, ObjectiveLink{ObjectiveA: p.a, ObjectiveB: p.b, Links: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Links != out[j].Links {
			return out[i].Links < out[j].Links
		}
		if out[i].ObjectiveA != out[j].ObjectiveA {
			return out[i].ObjectiveA < out[j].ObjectiveA
		}
		return out[i].ObjectiveB < out[j].ObjectiveB
	})
	return out
}

func contains(s []string, v string) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// tarjan runs an iterative articulation point / bridge search over index adjacency.
type tarjan struct {
	ids     []string
	adj     [][]int
	disc    []int
	low     []int
	cut     []bool
	bridges [][2]int
	clock   int
}

func newTarjan(snap *Snapshot) *tarjan {
	ids := snap.IDs()
	idx := make(map[string]int, len(ids))
	for i, id := range ids {
		idx[id] = i
	}
	t := &tarjan{
		ids:  ids,
		adj:  make([][]int, len(ids)),
		disc: make([]int, len(ids)),
		low:  make([]int, len(ids)),
		cut:  make([]bool, len(ids)),
	}
	seen := make(map[[2]int]bool, len(snap.Edges))
	for _, e := range snap.Edges {
		u, v := idx[e.Parent], idx[e.Child]
		if u == v {
			continue
		}
		key := [2]int{min(u, v), max(u, v)}
		if seen[key] {
			continue
		}
		seen[key] = true
		t.adj[u] = append(t.adj[u], v)
		t.adj[v] = append(t.adj[v], u)
	}
	return t
}

func (t *tarjan) run() {
	type frame struct{ node, from, next int }

	for root := range t.ids {
		if t.disc[root] != 0 {
			continue
		}
		t.visit(root)
		treeChildren := 0
		stack := []frame{{node: root, from: -1}}

		for len(stack) > 0 {
			f := &stack[len(stack)-1]
			if f.next < len(t.adj[f.node]) {
				nb := t.adj[f.node][f.next]
				f.next++
				switch {
				case nb == f.from:
				case t.disc[nb] != 0:
					t.low[f.node] = min(t.low[f.node], t.disc[nb])
				default:
					t.visit(nb)
					if f.node == root {
						treeChildren++
					}
					stack = append(stack, frame{node: nb, from: f.node})
				}
				continue
			}

			done := f.node
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				break
			}
			up := stack[len(stack)-1].node
			t.low[up] = min(t.low[up], t.low[done])
			if t.low[done] > t.disc[up] {
				t.bridges = append(t.bridges, [2]int{up, done})
			}
			if up != root && t.low[done] >= t.disc[up] {
				t.cut[up] = true
			}
		}
		if treeChildren > 1 {
			t.cut[root] = true
		}
	}
}

func (t *tarjan) visit(i int) {
	t.clock++
	t.disc[i] = t.clock
	t.low[i] = t.clock
}
