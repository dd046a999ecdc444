package graph

import "sort"

// UnionFind groups string ids into disjoint sets. It uses union by size and path halving.
type UnionFind struct {
	index  map[string]int
	ids    []string
	parent []int
	size   []int
}

// NewUnionFind starts with every id in its own set
func NewUnionFind(ids []string) *UnionFind {
	uf := &UnionFind{
		index:  make(map[string]int, len(ids)),
		ids:    make([]string, 0, len(ids)),
		parent: make([]int, 0, len(ids)),
		size:   make([]int, 0, len(ids)),
	}
	for _, id := range ids {
		uf.add(id)
	}
	return uf
}

func (uf *UnionFind) add(id string) int {
	if i, ok := uf.index[id]; ok {
		return i
	}
	i := len(uf.ids)
	uf.index[id] = i
	uf.ids = append(uf.ids, id)
	uf.parent = append(uf.parent, i)
	uf.size = append(uf.size, 1)
	return i
}

func (uf *UnionFind) root(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

// Find returns the representative id of the set holding id. Unknown ids are their own set.
func (uf *UnionFind) Find(id string) string {
	i, ok := uf.index[id]
	if !ok {
		return id
	}
	return uf.ids[uf.root(i)]
}

// Union joins the sets of a and b and reports whether they were separate.
func (uf *UnionFind) Union(a, b string) bool {
	ra, rb := uf.root(uf.add(a)), uf.root(uf.add(b))
	if ra == rb {
		return false
	}
	if uf.size[ra] < uf.size[rb] {
		ra, rb = rb, ra
	}
	uf.parent[rb] = ra
	uf.size[ra] += uf.size[rb]
	return true
}

// Size returns how many ids share a set with id
func (uf *UnionFind) Size(id string) int {
	i, ok := uf.index[id]
	if !ok {
		return 1
	}
	return uf.size[uf.root(i)]
}

// Components returns every set, largest first, members sorted
func (uf *UnionFind) Components() [][]string {
	groups := make(map[int][]string)
	for i, id := range uf.ids {
		r := uf.root(i)
		groups[r] = append(groups[r], id)
	}
	out := make([][]string, 0, len(groups))
	for _, members := range groups {
		sort.Strings(members)
		out = append(out, members)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) > len(out[j])
		}
		return out[i][0] < out[j][0]
	})
	return out
}
