package store

import (
	"fmt"
	"sort"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

// Reader is a read-only view over one state of the store
type Reader struct {
	st *state
}

// Get returns a copy of the item with ParentIDs and ChildIDs filled in
func (r *Reader) Get(id string) (content.Item, bool) {
	it, ok := r.st.items[id]
	if !ok {
		return content.Item{}, false
	}
	out := it.Clone()
	out.ParentIDs = copyIDs(r.st.parents[id])
	out.ChildIDs = copyIDs(r.st.children[id])
	return out, true
}

// Has reports whether id exists
func (r *Reader) Has(id string) bool {
	_, ok := r.st.items[id]
	return ok
}

// TypeOf returns the type of id
func (r *Reader) TypeOf(id string) (content.ItemType, bool) {
	it, ok := r.st.items[id]
	if !ok {
		return 0, false
	}
	return it.Type, true
}

// Children returns the ordered child ids of id
func (r *Reader) Children(id string) []string {
	return copyIDs(r.st.children[id])
}

// Parents returns the parent ids of id in attach order
func (r *Reader) Parents(id string) []string {
	return copyIDs(r.st.parents[id])
}

// ChildIndex returns the position of childID among parentID's children, or -1.
func (r *Reader) ChildIndex(parentID, childID string) int {
	return indexOf(r.st.children[parentID], childID)
}

// IDs returns all ids in insertion order
func (r *Reader) IDs() []string {
	ids := make([]string, 0, len(r.st.items))
	for id := range r.st.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return r.st.seq[ids[i]] < r.st.seq[ids[j]] })
	return ids
}

// Items returns copies of all items in insertion order
func (r *Reader) Items() []content.Item {
	ids := r.IDs()
	out := make([]content.Item, 0, len(ids))
	for _, id := range ids {
		it, _ := r.Get(id)
		out = append(out, it)
	}
	return out
}

// Len returns the number of items
func (r *Reader) Len() int { return len(r.st.items) }

// Tx is a mutable view used inside Store.Update. Every structural change goes through
// link and unlink so both sides of an edge change together.
type Tx struct {
	Reader
	undo journal
}

// journal keeps the value each touched entry had when the transaction began. A nil
// item or an empty id list means the entry did not exist.
type journal struct {
	items    map[string]*content.Item
	seq      map[string]uint64
	children map[string][]string
	parents  map[string][]string
	next     uint64
}

func newTx(st *state) *Tx {
	return &Tx{
		Reader: Reader{st: st},
		undo: journal{
			items:    make(map[string]*content.Item),
			seq:      make(map[string]uint64),
			children: make(map[string][]string),
			parents:  make(map[string][]string),
			next:     st.next,
		},
	}
}

func (tx *Tx) saveItem(id string) {
	if _, ok := tx.undo.items[id]; ok {
		return
	}
	tx.undo.items[id] = tx.st.items[id]
	tx.undo.seq[id] = tx.st.seq[id]
}

func (tx *Tx) saveChildren(id string) {
	if _, ok := tx.undo.children[id]; !ok {
		tx.undo.children[id] = copyIDs(tx.st.children[id])
	}
}

func (tx *Tx) saveParents(id string) {
	if _, ok := tx.undo.parents[id]; !ok {
		tx.undo.parents[id] = copyIDs(tx.st.parents[id])
	}
}

// rollback restores every journaled entry
func (tx *Tx) rollback() {
	st := tx.st
	for id, it := range tx.undo.items {
		if it == nil {
			delete(st.items, id)
			delete(st.seq, id)
			continue
		}
		st.items[id] = it
		st.seq[id] = tx.undo.seq[id]
	}
	restoreIDs(st.children, tx.undo.children)
	restoreIDs(st.parents, tx.undo.parents)
	st.next = tx.undo.next
}

func restoreIDs(dst, saved map[string][]string) {
	for id, ids := range saved {
		if len(ids) == 0 {
			delete(dst, id)
			continue
		}
		dst[id] = ids
	}
}

// Insert adds a new item. Its ParentIDs and ChildIDs are ignored: edges are created with
// Link.
func (tx *Tx) Insert(it content.Item) error {
	if it.ID == "" {
		return fmt.Errorf("%w: empty id", content.ErrInvalidDraft)
	}
	if !it.Type.Valid() {
		return fmt.Errorf("%w: item %s has unknown type", content.ErrInvalidDraft, it.ID)
	}
	if tx.Has(it.ID) {
		return fmt.Errorf("item %s already exists", it.ID)
	}
	c := it.Clone()
	c.ParentIDs, c.ChildIDs = nil, nil
	tx.saveItem(c.ID)
	tx.st.items[c.ID] = &c
	tx.st.seq[c.ID] = tx.st.next
	tx.st.next++
	return nil
}

// Replace overwrites the non-structural fields of an existing item. Type changes are
// refused because they would break the edges around the item.
func (tx *Tx) Replace(it content.Item) error {
	cur, ok := tx.st.items[it.ID]
	if !ok {
		return fmt.Errorf("%w: %s", content.ErrNotFound, it.ID)
	}
	if cur.Type != it.Type {
		return fmt.Errorf("%w: cannot change type of %s from %s to %s",
			content.ErrInvalidRelationship, it.ID, cur.Type, it.Type)
	}
	c := it.Clone()
	c.ParentIDs, c.ChildIDs = nil, nil
	tx.saveItem(c.ID)
	tx.st.items[c.ID] = &c
	return nil
}

// Remove deletes an item together with every edge touching it. Children are not removed.
func (tx *Tx) Remove(id string) error {
	if !tx.Has(id) {
		return fmt.Errorf("%w: %s", content.ErrNotFound, id)
	}
	for _, p := range tx.Parents(id) {
		tx.unlink(p, id)
	}
	for _, c := range tx.Children(id) {
		tx.unlink(id, c)
	}
	tx.saveItem(id)
	delete(tx.st.items, id)
	delete(tx.st.seq, id)
	return nil
}

// Link appends childID to parentID's children. It returns false when the edge already
// exists.
func (tx *Tx) Link(parentID, childID string) (bool, error) {
	if err := tx.checkEdge(parentID, childID); err != nil {
		return false, err
	}
	if indexOf(tx.st.children[parentID], childID) >= 0 {
		return false, nil
	}
	tx.link(parentID, childID)
	return true, nil
}

// Unlink removes the edge parentID -> childID. It returns false when there was no edge.
func (tx *Tx) Unlink(parentID, childID string) (bool, error) {
	if !tx.Has(parentID) {
		return false, fmt.Errorf("%w: %s", content.ErrNotFound, parentID)
	}
	if !tx.Has(childID) {
		return false, fmt.Errorf("%w: %s", content.ErrNotFound, childID)
	}
	return tx.unlink(parentID, childID), nil
}

// PlaceChild moves an existing child of parentID to position index within its children.
// The index is clamped to the valid range.
func (tx *Tx) PlaceChild(parentID, childID string, index int) error {
	kids := tx.st.children[parentID]
	i := indexOf(kids, childID)
	if i < 0 {
		return fmt.Errorf("%w: %s is not a child of %s", content.ErrNotFound, childID, parentID)
	}
	tx.saveChildren(parentID)
	kids = append(kids[:i], kids[i+1:]...)
	if index < 0 {
		index = 0
	}
	if index > len(kids) {
		index = len(kids)
	}
	kids = append(kids, "")
	copy(kids[index+1:], kids[index:])
	kids[index] = childID
	tx.st.children[parentID] = kids
	return nil
}

func (tx *Tx) checkEdge(parentID, childID string) error {
	pt, ok := tx.TypeOf(parentID)
	if !ok {
		return fmt.Errorf("%w: %s", content.ErrNotFound, parentID)
	}
	ct, ok := tx.TypeOf(childID)
	if !ok {
		return fmt.Errorf("%w: %s", content.ErrNotFound, childID)
	}
	return content.CheckRelationship(pt, ct)
}

// link and unlink are the only places that touch the adjacency maps.
func (tx *Tx) link(parentID, childID string) {
	tx.saveChildren(parentID)
	tx.saveParents(childID)
	tx.st.children[parentID] = append(tx.st.children[parentID], childID)
	tx.st.parents[childID] = append(tx.st.parents[childID], parentID)
}

func (tx *Tx) unlink(parentID, childID string) bool {
	kids := tx.st.children[parentID]
	i := indexOf(kids, childID)
	if i < 0 {
		return false
	}
	tx.saveChildren(parentID)
	tx.saveParents(childID)
	tx.st.children[parentID] = append(kids[:i], kids[i+1:]...)
	ps := tx.st.parents[childID]
	if j := indexOf(ps, parentID); j >= 0 {
		tx.st.parents[childID] = append(ps[:j], ps[j+1:]...)
	}
	if len(tx.st.children[parentID]) == 0 {
		delete(tx.st.children, parentID)
	}
	if len(tx.st.parents[childID]) == 0 {
		delete(tx.st.parents, childID)
	}
	return true
}

func indexOf(ids []string, id string) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

func copyIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}
