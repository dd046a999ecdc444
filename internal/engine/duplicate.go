package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/store"
)

// DuplicateSubtree deep-clones id and all of its descendants. Every clone gets a fresh id
// and draft status, the root clone gets the copy suffix appended to its name, and the
// cloned child lists reference only the new ids. With a non-empty targetParentID the
// root clone is attached to that parent alone; otherwise it is attached to every parent
// of the original. The original subtree is never modified.
func (e *Engine) DuplicateSubtree(ctx context.Context, id, targetParentID string) (string, error) {
	ctx, finish := e.begin(ctx, "duplicate", attribute.String("id", id), attribute.String("target", targetParentID))

	var newRoot string
	var cloned int
	err := e.store.Update(func(tx *store.Tx) error {
		var err error
		newRoot, cloned, err = e.duplicate(ctx, tx, id, targetParentID)
		return err
	})
	if err != nil {
		err = fmt.Errorf("duplicating %s: %w", id, err)
		finish(OutcomeNoOp, err)
		return "", err
	}
	finish(OutcomeChanged, nil, zap.String("id", id), zap.String("copy", newRoot), zap.Int("cloned", cloned))
	return newRoot, nil
}

// DuplicateToParents makes one independent copy of the subtree under each target, in
// input order. Each copy commits on its own: when a target fails, the copies created for
// earlier targets stay and their ids are returned along with the error.
func (e *Engine) DuplicateToParents(ctx context.Context, id string, targetParentIDs []string) ([]string, error) {
	ids := make([]string, 0, len(targetParentIDs))
	for _, target := range targetParentIDs {
		if target == "" {
			return ids, fmt.Errorf("duplicating %s: %w: empty target parent id", id, content.ErrNotFound)
		}
		newID, err := e.DuplicateSubtree(ctx, id, target)
		if err != nil {
			return ids, fmt.Errorf("fan-out into %s: %w", target, err)
		}
		ids = append(ids, newID)
	}
	return ids, nil
}

func (e *Engine) duplicate(ctx context.Context, tx *store.Tx, id, target string) (string, int, error) {
	orig, ok := tx.Get(id)
	if !ok {
		return "", 0, notFound(id)
	}
	attachTo := orig.ParentIDs
	if target != "" {
		tt, ok := tx.TypeOf(target)
		if !ok {
			return "", 0, notFound(target)
		}
		if err := content.CheckRelationship(tt, orig.Type); err != nil {
			return "", 0, err
		}
		attachTo = []string{target}
	}

	// Build the id remap for the whole subtree first, insert every clone, then wire the
	// cloned child lists through the remap. An item shared by two parents inside the
	// subtree is cloned once and linked under both cloned parents.
	nodes := subtreeOf(&tx.Reader, id)
	remap := make(map[string]string, len(nodes))
	for _, n := range nodes {
		remap[n] = e.newID()
	}

	now := e.now()
	editor := e.editorFrom(ctx)
	for _, n := range nodes {
		src, _ := tx.Get(n)
		c := src.Clone()
		c.ID = remap[n]
		c.Status = content.StatusDraft
		c.CreatedAt = now
		c.LastEditedAt = now
		c.LastEditedBy = editor
		if n == id {
			c.Name = src.Name + e.copySuffix
		}
		if err := tx.Insert(c); err != nil {
			return "", 0, err
		}
	}
	for _, n := range nodes {
		for _, child := range tx.Children(n) {
			if _, err := tx.Link(remap[n], remap[child]); err != nil {
				return "", 0, err
			}
		}
	}

	newRoot := remap[id]
	for _, p := range attachTo {
		if _, err := tx.Link(p, newRoot); err != nil {
			return "", 0, err
		}
	}
	if err := e.touch(ctx, tx, attachTo...); err != nil {
		return "", 0, err
	}
	return newRoot, len(nodes), nil
}
