package seed

import (
	"context"
	"fmt"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/engine"
)

// Step is one scripted operation. Which fields apply depends on Op:
//
//	create        item (its parents are keys), as
//	update        key, set
//	delete        key
//	duplicate     key, parent (optional), as
//	duplicate-to  key, parents, as (bound as as[0], as[1], ...)
//	move          key, parent
//	attach        key, parent
//	detach        key, parent
//	reorder       key, anchor, position, parent (optional)
type Step struct {
	Op       string     `yaml:"op"`
	Key      string     `yaml:"key,omitempty"`
	Item     *ItemSpec  `yaml:"item,omitempty"`
	Set      *PatchSpec `yaml:"set,omitempty"`
	Parent   string     `yaml:"parent,omitempty"`
	Parents  []string   `yaml:"parents,omitempty"`
	Anchor   string     `yaml:"anchor,omitempty"`
	Position string     `yaml:"position,omitempty"`
	As       string     `yaml:"as,omitempty"`
}

// PatchSpec is the YAML form of content.Patch
type PatchSpec struct {
	Name              *string            `yaml:"name,omitempty"`
	Description       *string            `yaml:"description,omitempty"`
	Status            *content.Status    `yaml:"status,omitempty"`
	QualityScore      *int               `yaml:"quality_score,omitempty"`
	UsageCount        *int               `yaml:"usage_count,omitempty"`
	ClearQualityScore bool               `yaml:"clear_quality_score,omitempty"`
	ClearUsageCount   bool               `yaml:"clear_usage_count,omitempty"`
	Targeting         *content.Targeting `yaml:"targeting,omitempty"`
	Owner             *string            `yaml:"owner,omitempty"`
}

func (p *PatchSpec) patch() content.Patch {
	if p == nil {
		return content.Patch{}
	}
	return content.Patch{
		Name:              p.Name,
		Description:       p.Description,
		Status:            p.Status,
		QualityScore:      p.QualityScore,
		UsageCount:        p.UsageCount,
		ClearQualityScore: p.ClearQualityScore,
		ClearUsageCount:   p.ClearUsageCount,
		Targeting:         p.Targeting,
		Owner:             p.Owner,
	}
}

// StepResult records what one step did
type StepResult struct {
	Index   int            `json:"index"`
	Op      string         `json:"op"`
	Key     string         `json:"key,omitempty"`
	Outcome engine.Outcome `json:"outcome"`
	IDs     []string       `json:"ids,omitempty"` // ids created by create and duplicate steps
}

type opFunc func(ctx context.Context, g Graph, st Step, keys Keys) (StepResult, error)

var ops = map[string]opFunc{
	"create":       runCreate,
	"update":       runUpdate,
	"delete":       runDelete,
	"duplicate":    runDuplicate,
	"duplicate-to": runDuplicateTo,
	"move":         runStructural,
	"attach":       runStructural,
	"detach":       runStructural,
	"reorder":      runReorder,
}

// Run executes steps in order, binding created ids into keys. It stops at the first
// failing step and returns the results of the steps that completed.
func Run(ctx context.Context, g Graph, steps []Step, keys Keys) ([]StepResult, error) {
	if keys == nil {
		keys = Keys{}
	}
	results := make([]StepResult, 0, len(steps))
	for i, st := range steps {
		fn, ok := ops[st.Op]
		if !ok {
			return results, fmt.Errorf("step %d: %w: unknown op %q", i, ErrInvalidSeed, st.Op)
		}
		res, err := fn(ctx, g, st, keys)
		if err != nil {
			return results, fmt.Errorf("step %d (%s %s): %w", i, st.Op, st.Key, err)
		}
		res.Index, res.Op, res.Key = i, st.Op, st.Key
		results = append(results, res)
	}
	return results, nil
}

func runCreate(ctx context.Context, g Graph, st Step, keys Keys) (StepResult, error) {
	if st.Item == nil {
		return StepResult{}, fmt.Errorf("%w: create needs an item", ErrInvalidSeed)
	}
	id, err := g.Create(ctx, st.Item.draft(keys))
	if err != nil {
		return StepResult{}, err
	}
	bind(keys, id, st.As, st.Item.Key)
	return StepResult{Outcome: engine.OutcomeChanged, IDs: []string{id}}, nil
}

func runUpdate(ctx context.Context, g Graph, st Step, keys Keys) (StepResult, error) {
	p := st.Set.patch()
	if err := g.Update(ctx, keys.Resolve(st.Key), p); err != nil {
		return StepResult{}, err
	}
	if p.IsEmpty() {
		return StepResult{Outcome: engine.OutcomeNoOp}, nil
	}
	return StepResult{Outcome: engine.OutcomeChanged}, nil
}

func runDelete(ctx context.Context, g Graph, st Step, keys Keys) (StepResult, error) {
	if err := g.Delete(ctx, keys.Resolve(st.Key)); err != nil {
		return StepResult{}, err
	}
	return StepResult{Outcome: engine.OutcomeChanged}, nil
}

func runDuplicate(ctx context.Context, g Graph, st Step, keys Keys) (StepResult, error) {
	target := ""
	if st.Parent != "" {
		target = keys.Resolve(st.Parent)
	}
	id, err := g.DuplicateSubtree(ctx, keys.Resolve(st.Key), target)
	if err != nil {
		return StepResult{}, err
	}
	bind(keys, id, st.As)
	return StepResult{Outcome: engine.OutcomeChanged, IDs: []string{id}}, nil
}

func runDuplicateTo(ctx context.Context, g Graph, st Step, keys Keys) (StepResult, error) {
	targets := make([]string, len(st.Parents))
	for i, p := range st.Parents {
		targets[i] = keys.Resolve(p)
	}
	ids, err := g.DuplicateToParents(ctx, keys.Resolve(st.Key), targets)
	for i, id := range ids {
		if st.As != "" {
			keys[fmt.Sprintf("%s[%d]", st.As, i)] = id
		}
	}
	if err != nil {
		return StepResult{}, err
	}
	return StepResult{Outcome: engine.OutcomeChanged, IDs: ids}, nil
}

func runStructural(ctx context.Context, g Graph, st Step, keys Keys) (StepResult, error) {
	if st.Parent == "" {
		return StepResult{}, fmt.Errorf("%w: %s needs a parent", ErrInvalidSeed, st.Op)
	}
	id, parent := keys.Resolve(st.Key), keys.Resolve(st.Parent)
	var out engine.Outcome
	var err error
	switch st.Op {
	case "move":
		out, err = g.Move(ctx, id, parent)
	case "attach":
		out, err = g.Attach(ctx, id, parent)
	default:
		out, err = g.Detach(ctx, id, parent)
	}
	return StepResult{Outcome: out}, err
}

func runReorder(ctx context.Context, g Graph, st Step, keys Keys) (StepResult, error) {
	pos := engine.Before
	if st.Position != "" {
		var err error
		if pos, err = engine.ParsePosition(st.Position); err != nil {
			return StepResult{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
		}
	}
	id, anchor := keys.Resolve(st.Key), keys.Resolve(st.Anchor)
	var out engine.Outcome
	var err error
	if st.Parent != "" {
		out, err = g.ReorderSiblingIn(ctx, keys.Resolve(st.Parent), id, anchor, pos)
	} else {
		out, err = g.ReorderSibling(ctx, id, anchor, pos)
	}
	return StepResult{Outcome: out}, err
}

// bind records id under the first non-empty key
func bind(keys Keys, id string, names ...string) {
	for _, n := range names {
		if n != "" {
			keys[n] = id
			return
		}
	}
}
