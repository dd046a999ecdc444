package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/store"
)

// Create validates draft, assigns a fresh id and timestamps and inserts the item with no
// children. Parents listed in draft.ParentIDs must exist and be of the expected parent
// type; the item is appended to each parent's children in the same transaction.
func (e *Engine) Create(ctx context.Context, draft content.Draft) (string, error) {
	ctx, finish := e.begin(ctx, "create", attribute.String("type", draft.Type.String()))

	d := draft
	d.Normalize()
	if err := d.Validate(); err != nil {
		err = fmt.Errorf("creating %s: %w", d.Type, err)
		finish(OutcomeNoOp, err)
		return "", err
	}

	now := e.now()
	editor := e.editorFrom(ctx)
	owner := d.Owner
	if owner == "" {
		owner = editor
	}
	it := content.Item{
		ID:           e.newID(),
		Type:         d.Type,
		Name:         d.Name,
		Description:  d.Description,
		Status:       d.Status,
		QualityScore: d.QualityScore,
		UsageCount:   d.UsageCount,
		Targeting:    d.Targeting,
		CreatedAt:    now,
		LastEditedAt: now,
		LastEditedBy: editor,
		Owner:        owner,
	}

	err := e.store.Update(func(tx *store.Tx) error {
		for _, p := range d.ParentIDs {
			pt, ok := tx.TypeOf(p)
			if !ok {
				return notFound(p)
			}
			if err := content.CheckRelationship(pt, d.Type); err != nil {
				return err
			}
		}
		if err := tx.Insert(it); err != nil {
			return err
		}
		for _, p := range d.ParentIDs {
			if _, err := tx.Link(p, it.ID); err != nil {
				return err
			}
		}
		return e.touch(ctx, tx, d.ParentIDs...)
	})
	if err != nil {
		err = fmt.Errorf("creating %s: %w", d.Type, err)
		finish(OutcomeNoOp, err)
		return "", err
	}
	finish(OutcomeChanged, nil, zap.String("id", it.ID), zap.Strings("parents", d.ParentIDs))
	return it.ID, nil
}

// Update merges the non-structural fields set in patch and refreshes LastEditedAt.
func (e *Engine) Update(ctx context.Context, id string, patch content.Patch) error {
	ctx, finish := e.begin(ctx, "update", attribute.String("id", id))

	if err := patch.Validate(); err != nil {
		err = fmt.Errorf("updating %s: %w", id, err)
		finish(OutcomeNoOp, err)
		return err
	}

	err := e.store.Update(func(tx *store.Tx) error {
		it, ok := tx.Get(id)
		if !ok {
			return notFound(id)
		}
		if patch.IsEmpty() {
			return errNoChange
		}
		patch.Apply(&it)
		it.LastEditedAt = e.now()
		it.LastEditedBy = e.editorFrom(ctx)
		return tx.Replace(it)
	})
	switch {
	case errors.Is(err, errNoChange):
		finish(OutcomeNoOp, nil, zap.String("id", id))
		return nil
	case err != nil:
		err = fmt.Errorf("updating %s: %w", id, err)
		finish(OutcomeNoOp, err)
		return err
	}
	finish(OutcomeChanged, nil, zap.String("id", id))
	return nil
}

// Delete removes id and strips it from every parent's and child's edge lists. Children
// are not deleted; those left without a parent become orphans.
func (e *Engine) Delete(ctx context.Context, id string) error {
	ctx, finish := e.begin(ctx, "delete", attribute.String("id", id))

	var orphaned []string
	err := e.store.Update(func(tx *store.Tx) error {
		if !tx.Has(id) {
			return notFound(id)
		}
		parents := tx.Parents(id)
		children := tx.Children(id)
		if err := tx.Remove(id); err != nil {
			return err
		}
		for _, c := range children {
			if len(tx.Parents(c)) == 0 {
				orphaned = append(orphaned, c)
			}
		}
		return e.touch(ctx, tx, append(parents, children...)...)
	})
	if err != nil {
		err = fmt.Errorf("deleting %s: %w", id, err)
		finish(OutcomeNoOp, err)
		return err
	}
	finish(OutcomeChanged, nil, zap.String("id", id), zap.Strings("orphaned", orphaned))
	return nil
}

// Move reparents id under newParentID. The item leaves every current parent of the same
// type as newParentID; parents of any other type are kept. Moving under a parent the item
// already has is a no-op.
func (e *Engine) Move(ctx context.Context, id, newParentID string) (Outcome, error) {
	ctx, finish := e.begin(ctx, "move", attribute.String("id", id), attribute.String("parent", newParentID))

	var dropped []string
	err := e.store.Update(func(tx *store.Tx) error {
		typ, ok := tx.TypeOf(id)
		if !ok {
			return notFound(id)
		}
		parentType, ok := tx.TypeOf(newParentID)
		if !ok {
			return notFound(newParentID)
		}
		if err := content.CheckRelationship(parentType, typ); err != nil {
			return err
		}
		if tx.ChildIndex(newParentID, id) >= 0 {
			return errNoChange
		}
		for _, p := range tx.Parents(id) {
			if pt, _ := tx.TypeOf(p); pt == parentType {
				if _, err := tx.Unlink(p, id); err != nil {
					return err
				}
				dropped = append(dropped, p)
			}
		}
		if _, err := tx.Link(newParentID, id); err != nil {
			return err
		}
		return e.touch(ctx, tx, append(dropped, newParentID, id)...)
	})
	return e.outcome(finish, "moving", id, err, zap.Strings("from", dropped), zap.String("to", newParentID))
}

// Attach adds parentID as an additional parent of id, keeping existing parents. This is
// how one piece of content is shared across several strategies.
func (e *Engine) Attach(ctx context.Context, id, parentID string) (Outcome, error) {
	ctx, finish := e.begin(ctx, "attach", attribute.String("id", id), attribute.String("parent", parentID))

	err := e.store.Update(func(tx *store.Tx) error {
		added, err := tx.Link(parentID, id)
		if err != nil {
			return err
		}
		if !added {
			return errNoChange
		}
		return e.touch(ctx, tx, parentID, id)
	})
	return e.outcome(finish, "attaching", id, err, zap.String("parent", parentID))
}

// Detach removes the edge parentID -> id. The item stays in the store even when this
// was its last parent.
func (e *Engine) Detach(ctx context.Context, id, parentID string) (Outcome, error) {
	ctx, finish := e.begin(ctx, "detach", attribute.String("id", id), attribute.String("parent", parentID))

	err := e.store.Update(func(tx *store.Tx) error {
		removed, err := tx.Unlink(parentID, id)
		if err != nil {
			return err
		}
		if !removed {
			return errNoChange
		}
		return e.touch(ctx, tx, parentID, id)
	})
	return e.outcome(finish, "detaching", id, err, zap.String("parent", parentID))
}

// ReorderSibling moves id directly before or after anchorID inside a parent that lists
// both. When they share several parents the one with the lowest id is used; use
// ReorderSiblingIn to choose explicitly. Unknown ids, differing types or the lack of a
// shared parent make the call a silent no-op.
func (e *Engine) ReorderSibling(ctx context.Context, id, anchorID string, pos Position) (Outcome, error) {
	return e.reorder(ctx, "", id, anchorID, pos)
}

// ReorderSiblingIn is ReorderSibling within an explicit parent.
func (e *Engine) ReorderSiblingIn(ctx context.Context, parentID, id, anchorID string, pos Position) (Outcome, error) {
	return e.reorder(ctx, parentID, id, anchorID, pos)
}

func (e *Engine) reorder(ctx context.Context, parentID, id, anchorID string, pos Position) (Outcome, error) {
	ctx, finish := e.begin(ctx, "reorder",
		attribute.String("id", id), attribute.String("anchor", anchorID), attribute.String("position", pos.String()))

	err := e.store.Update(func(tx *store.Tx) error {
		if id == anchorID {
			return errNoChange
		}
		t1, ok1 := tx.TypeOf(id)
		t2, ok2 := tx.TypeOf(anchorID)
		if !ok1 || !ok2 || t1 != t2 {
			return errNoChange
		}
		parent := parentID
		if parent == "" {
			parent = sharedParent(&tx.Reader, id, anchorID)
		}
		if parent == "" || tx.ChildIndex(parent, id) < 0 || tx.ChildIndex(parent, anchorID) < 0 {
			return errNoChange
		}

		target := reorderIndex(tx.Children(parent), id, anchorID, pos)
		if target == tx.ChildIndex(parent, id) {
			return errNoChange
		}
		if err := tx.PlaceChild(parent, id, target); err != nil {
			return err
		}
		parentID = parent
		return e.touch(ctx, tx, parent)
	})
	return e.outcome(finish, "reordering", id, err, zap.String("anchor", anchorID), zap.String("parent", parentID))
}

// sharedParent returns the lowest parent id listing both a and b, or "".
func sharedParent(r *store.Reader, a, b string) string {
	inB := map[string]bool{}
	for _, p := range r.Parents(b) {
		inB[p] = true
	}
	var shared []string
	for _, p := range r.Parents(a) {
		if inB[p] {
			shared = append(shared, p)
		}
	}
	if len(shared) == 0 {
		return ""
	}
	sort.Strings(shared)
	return shared[0]
}

// reorderIndex is the final index of id after splicing it out of kids and reinserting it
// next to anchor.
func reorderIndex(kids []string, id, anchor string, pos Position) int {
	rest := make([]string, 0, len(kids))
	for _, k := range kids {
		if k != id {
			rest = append(rest, k)
		}
	}
	for i, k := range rest {
		if k == anchor {
			if pos == After {
				return i + 1
			}
			return i
		}
	}
	return len(rest)
}

// outcome maps a transaction result onto the Outcome/error pair returned to callers.
func (e *Engine) outcome(finish func(Outcome, error, ...zap.Field), verb, id string, err error, fields ...zap.Field) (Outcome, error) {
	fields = append(fields, zap.String("id", id))
	switch {
	case errors.Is(err, errNoChange):
		finish(OutcomeNoOp, nil, fields...)
		return OutcomeNoOp, nil
	case err != nil:
		err = fmt.Errorf("%s %s: %w", verb, id, err)
		finish(OutcomeNoOp, err, fields...)
		return OutcomeNoOp, err
	}
	finish(OutcomeChanged, nil, fields...)
	return OutcomeChanged, nil
}
