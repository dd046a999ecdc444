// Package filter evaluates declarative filters over content items.
//
// Clauses combine with AND; a list clause matches when any of its values matches
// (industries, regions, job roles, accounts, owners, types, statuses). Text search is a
// case-insensitive substring test against name OR description. Results keep the order of
// the input slice.
//
// Missing scores: an item without a quality score (or usage count) passes the matching
// threshold only when the threshold is 0, unless IncludeUnscored is set, in which case
// unscored items always pass the numeric clauses.
package filter

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

// ErrInvalidFilter is returned by Compile for out-of-range thresholds or a bad expression.
var ErrInvalidFilter = errors.New("invalid filter")

// Spec is the filter a dashboard sends. The zero value matches everything.
type Spec struct {
	Search          string             `json:"search,omitempty" yaml:"search,omitempty"`
	Types           []content.ItemType `json:"types,omitempty" yaml:"types,omitempty"`
	Statuses        []content.Status   `json:"statuses,omitempty" yaml:"statuses,omitempty"`
	Industries      []string           `json:"industries,omitempty" yaml:"industries,omitempty"`
	Regions         []string           `json:"regions,omitempty" yaml:"regions,omitempty"`
	JobRoles        []string           `json:"job_roles,omitempty" yaml:"job_roles,omitempty"`
	Accounts        []string           `json:"accounts,omitempty" yaml:"accounts,omitempty"`
	Owners          []string           `json:"owners,omitempty" yaml:"owners,omitempty"`
	MinQuality      int                `json:"min_quality,omitempty" yaml:"min_quality,omitempty"`
	MinUsage        int                `json:"min_usage,omitempty" yaml:"min_usage,omitempty"`
	IncludeUnscored bool               `json:"include_unscored,omitempty" yaml:"include_unscored,omitempty"`

	// Expr is an optional CEL boolean expression over the variable "item"
	// (see itemVars for the available keys), e.g. `item.child_count == 0`.
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// Filter is a compiled Spec, safe for concurrent use.
type Filter struct {
	spec     Spec
	search   string
	types    map[content.ItemType]bool
	statuses map[content.Status]bool
	prg      cel.Program
}

// Compile validates spec and prepares it for repeated evaluation.
func Compile(spec Spec) (*Filter, error) {
	if spec.MinQuality < 0 || spec.MinQuality > content.MaxScore {
		return nil, fmt.Errorf("%w: min quality %d outside 0-%d", ErrInvalidFilter, spec.MinQuality, content.MaxScore)
	}
	if spec.MinUsage < 0 {
		return nil, fmt.Errorf("%w: negative min usage %d", ErrInvalidFilter, spec.MinUsage)
	}

	f := &Filter{
		spec:   spec,
		search: strings.ToLower(spec.Search),
	}
	if len(spec.Types) > 0 {
		f.types = make(map[content.ItemType]bool, len(spec.Types))
		for _, t := range spec.Types {
			if !t.Valid() {
				return nil, fmt.Errorf("%w: unknown type %d", ErrInvalidFilter, int(t))
			}
			f.types[t] = true
		}
	}
	if len(spec.Statuses) > 0 {
		f.statuses = make(map[content.Status]bool, len(spec.Statuses))
		for _, s := range spec.Statuses {
			if !s.Valid() {
				return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, s)
			}
			f.statuses[s] = true
		}
	}
	if expr := strings.TrimSpace(spec.Expr); expr != "" {
		prg, err := compileExpr(expr)
		if err != nil {
			return nil, err
		}
		f.prg = prg
	}
	return f, nil
}

// Match reports whether it passes every clause.
func (f *Filter) Match(it content.Item) bool {
	if f.types != nil && !f.types[it.Type] {
		return false
	}
	if f.statuses != nil && !f.statuses[it.Status] {
		return false
	}
	if f.search != "" &&
		!strings.Contains(strings.ToLower(it.Name), f.search) &&
		!strings.Contains(strings.ToLower(it.Description), f.search) {
		return false
	}
	if !intersects(it.Targeting.Industries, f.spec.Industries) ||
		!intersects(it.Targeting.Regions, f.spec.Regions) ||
		!intersects(it.Targeting.JobRoles, f.spec.JobRoles) ||
		!intersects(it.Targeting.Accounts, f.spec.Accounts) ||
		!intersects([]string{it.Owner}, f.spec.Owners) {
		return false
	}
	if !f.passes(it.QualityScore, f.spec.MinQuality) || !f.passes(it.UsageCount, f.spec.MinUsage) {
		return false
	}
	if f.prg != nil {
		return evalExpr(f.prg, it)
	}
	return true
}

// Apply returns the matching items in input order.
func (f *Filter) Apply(items []content.Item) ([]content.Item, error) {
	out := make([]content.Item, 0, len(items))
	for _, it := range items {
		if f.Match(it) {
			out = append(out, it)
		}
	}
	return out, nil
}

// Query compiles spec and applies it in one step.
func Query(items []content.Item, spec Spec) ([]content.Item, error) {
	f, err := Compile(spec)
	if err != nil {
		return nil, err
	}
	return f.Apply(items)
}

func (f *Filter) passes(score *int, min int) bool {
	if score == nil {
		return min == 0 || f.spec.IncludeUnscored
	}
	return *score >= min
}

// intersects is true when want is empty or shares a value with have (case-insensitive).
func intersects(have, want []string) bool {
	if len(want) == 0 {
		return true
	}
	for _, w := range want {
		for _, h := range have {
			if strings.EqualFold(strings.TrimSpace(h), strings.TrimSpace(w)) {
				return true
			}
		}
	}
	return false
}
