// Package seed loads content graphs and operation scripts from YAML.
//
// A seed document lists items under local keys; an item's parents refer to keys declared
// earlier in the same document, and its optional children list fixes the sibling order of
// its children once every item exists. A script is a list of engine operations that refer to items
// by key (or by raw id when the key is unknown) and may bind the ids they create to new keys.
package seed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/engine"
)

var ErrInvalidSeed = errors.New("invalid seed")

// Document is the top-level YAML shape
type Document struct {
	Items  []ItemSpec `yaml:"items,omitempty"`
	Script []Step     `yaml:"script,omitempty"`
}

// ItemSpec describes one item to create
type ItemSpec struct {
	Key          string            `yaml:"key"`
	Type         content.ItemType  `yaml:"type"`
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description,omitempty"`
	Status       content.Status    `yaml:"status,omitempty"`
	QualityScore *int              `yaml:"quality_score,omitempty"`
	UsageCount   *int              `yaml:"usage_count,omitempty"`
	Targeting    content.Targeting `yaml:"targeting,omitempty"`
	Owner        string            `yaml:"owner,omitempty"`
	Parents      []string          `yaml:"parents,omitempty"`
	Children     []string          `yaml:"children,omitempty"`
}

// Keys maps seed keys to the ids the engine assigned
type Keys map[string]string

// Resolve returns the id bound to ref, or ref itself so scripts can name raw ids.
func (k Keys) Resolve(ref string) string {
	if id, ok := k[ref]; ok {
		return id
	}
	return ref
}

// Graph is the subset of the engine a seed or script drives.
type Graph interface {
	Create(ctx context.Context, draft content.Draft) (string, error)
	Update(ctx context.Context, id string, patch content.Patch) error
	Delete(ctx context.Context, id string) error
	DuplicateSubtree(ctx context.Context, id, targetParentID string) (string, error)
	DuplicateToParents(ctx context.Context, id string, targetParentIDs []string) ([]string, error)
	Move(ctx context.Context, id, newParentID string) (engine.Outcome, error)
	Attach(ctx context.Context, id, parentID string) (engine.Outcome, error)
	Detach(ctx context.Context, id, parentID string) (engine.Outcome, error)
	ReorderSibling(ctx context.Context, id, anchorID string, pos engine.Position) (engine.Outcome, error)
	ReorderSiblingIn(ctx context.Context, parentID, id, anchorID string, pos engine.Position) (engine.Outcome, error)
}

// Parse decodes a document. Unknown fields are rejected.
func Parse(data []byte) (*Document, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return &doc, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ReadFile reads and parses path
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading seed: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading seed %s: %w", path, err)
	}
	return doc, nil
}

// Validate checks keys are unique, every item has a type, parents are declared before use
// and children lists name items that declare this item as a parent.
func (d *Document) Validate() error {
	seen := make(map[string]bool, len(d.Items))
	parentsOf := make(map[string][]string, len(d.Items))
	var errs []error
	for i, it := range d.Items {
		switch {
		case it.Key == "":
			errs = append(errs, fmt.Errorf("item %d: missing key", i))
		case seen[it.Key]:
			errs = append(errs, fmt.Errorf("item %d: duplicate key %q", i, it.Key))
		}
		if it.Type == content.TypeUnknown {
			errs = append(errs, fmt.Errorf("item %q: missing type", it.Key))
		}
		for _, p := range it.Parents {
			if !seen[p] {
				errs = append(errs, fmt.Errorf("item %q: parent %q is not declared before it", it.Key, p))
			}
		}
		seen[it.Key] = true
		parentsOf[it.Key] = it.Parents
	}
	for _, it := range d.Items {
		listed := make(map[string]bool, len(it.Children))
		for _, c := range it.Children {
			switch {
			case listed[c]:
				errs = append(errs, fmt.Errorf("item %q: child %q listed twice", it.Key, c))
			case !slices.Contains(parentsOf[c], it.Key):
				errs = append(errs, fmt.Errorf("item %q: child %q does not declare it as a parent", it.Key, c))
			}
			listed[c] = true
		}
	}
	for i, st := range d.Script {
		if _, ok := ops[st.Op]; !ok {
			errs = append(errs, fmt.Errorf("script step %d: unknown op %q", i, st.Op))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidSeed, errors.Join(errs...))
	}
	return nil
}

// Apply creates items in document order, then puts the children of every item with a
// children list into that order. It returns the key to id bindings and stops at the first
// operation the engine rejects; items created before it remain.
func Apply(ctx context.Context, g Graph, items []ItemSpec) (Keys, error) {
	keys := make(Keys, len(items))
	for _, spec := range items {
		id, err := g.Create(ctx, spec.draft(keys))
		if err != nil {
			return keys, fmt.Errorf("seeding %q: %w", spec.Key, err)
		}
		keys[spec.Key] = id
	}
	for _, spec := range items {
		if err := orderChildren(ctx, g, keys, spec); err != nil {
			return keys, fmt.Errorf("ordering children of %q: %w", spec.Key, err)
		}
	}
	return keys, nil
}

// orderChildren places each listed child right after the one before it, which leaves the
// listed children adjacent and in list order.
func orderChildren(ctx context.Context, g Graph, keys Keys, spec ItemSpec) error {
	parent := keys.Resolve(spec.Key)
	for i := 1; i < len(spec.Children); i++ {
		id, anchor := keys.Resolve(spec.Children[i]), keys.Resolve(spec.Children[i-1])
		if _, err := g.ReorderSiblingIn(ctx, parent, id, anchor, engine.After); err != nil {
			return err
		}
	}
	return nil
}

func (s ItemSpec) draft(keys Keys) content.Draft {
	parents := make([]string, len(s.Parents))
	for i, p := range s.Parents {
		parents[i] = keys.Resolve(p)
	}
	return content.Draft{
		Type:         s.Type,
		Name:         s.Name,
		Description:  s.Description,
		Status:       s.Status,
		QualityScore: s.QualityScore,
		UsageCount:   s.UsageCount,
		Targeting:    s.Targeting,
		ParentIDs:    parents,
		Owner:        s.Owner,
	}
}

// Dump turns items into a document that Apply can replay. Keys are the item ids. Items
// are emitted level by level, so every parent is declared before its children, and every
// item with more than one child records its children order. Parents and children not
// present in items are dropped.
func Dump(items []content.Item) *Document {
	byID := make(map[string]content.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	emitted := make(map[string]bool, len(items))
	var order, prev []content.Item
	for _, typ := range content.AllTypes() {
		var level []content.Item
		emit := func(it content.Item) {
			if it.Type == typ && !emitted[it.ID] {
				emitted[it.ID] = true
				level = append(level, it)
			}
		}
		for _, p := range prev {
			for _, c := range p.ChildIDs {
				if it, ok := byID[c]; ok {
					emit(it)
				}
			}
		}
		for _, it := range items {
			emit(it)
		}
		order = append(order, level...)
		prev = level
	}

	doc := &Document{Items: make([]ItemSpec, 0, len(order))}
	for _, it := range order {
		var parents []string
		for _, p := range it.ParentIDs {
			if _, ok := byID[p]; ok {
				parents = append(parents, p)
			}
		}
		var children []string
		for _, c := range it.ChildIDs {
			if _, ok := byID[c]; ok {
				children = append(children, c)
			}
		}
		if len(children) < 2 {
			children = nil
		}
		doc.Items = append(doc.Items, ItemSpec{
			Key:          it.ID,
			Type:         it.Type,
			Name:         it.Name,
			Description:  it.Description,
			Status:       it.Status,
			QualityScore: it.QualityScore,
			UsageCount:   it.UsageCount,
			Targeting:    it.Targeting,
			Owner:        it.Owner,
			Parents:      parents,
			Children:     children,
		})
	}
	return doc
}

// Marshal encodes d as YAML
func (d *Document) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return nil, fmt.Errorf("encoding seed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding seed: %w", err)
	}
	return buf.Bytes(), nil
}
