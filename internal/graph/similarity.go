package graph

import (
	"sort"
	"strings"
	"unicode"
)

// DuplicatePair is two items of the same type with very similar names
type DuplicatePair struct {
	A          string  `json:"a"`
	B          string  `json:"b"`
	NameA      string  `json:"name_a"`
	NameB      string  `json:"name_b"`
	Type       string  `json:"type"`
	Similarity float64 `json:"similarity"`
}

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "the": true, "of": true, "for": true,
	"to": true, "in": true, "on": true, "with": true, "copy": true,
}

// NameTokens lowercases name and splits it on anything that is not a letter or digit,
// dropping stop words.
func NameTokens(name string) map[string]bool {
	out := map[string]bool{}
	for _, f := range strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if !stopWords[f] {
			out[f] = true
		}
	}
	return out
}

// Jaccard returns |a∩b| / |a∪b|, or 0 when both are empty.
func Jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	return float64(shared) / float64(len(a)+len(b)-shared)
}

// FindNearDuplicates compares names within each item type and returns pairs at or above
// minSimilarity, most similar first.
func FindNearDuplicates(snap *Snapshot, minSimilarity float64, topN int) []DuplicatePair {
	ids := snap.IDs()
	tokens := make(map[string]map[string]bool, len(ids))
	for _, id := range ids {
		tokens[id] = NameTokens(snap.Nodes[id].Name)
	}

	var out []DuplicatePair
	for i, a := range ids {
		na := snap.Nodes[a]
		for _, b := range ids[i+1:] {
			nb := snap.Nodes[b]
			if na.Type != nb.Type {
				continue
			}
			sim := Jaccard(tokens[a], tokens[b])
			if sim < minSimilarity || sim == 0 {
				continue
			}
			out = append(out, DuplicatePair{
				A: a, B: b, NameA: na.Name, NameB: nb.Name,
				Type: na.Type.String(), Similarity: sim,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Similarity > out[j].Similarity })
	return limit(out, topN)
}
