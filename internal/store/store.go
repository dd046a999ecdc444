// Package store holds the canonical set of content items and the parent/child edge index
// between them.
//
// Structure is stored once, as an ordered parent -> children adjacency list plus a reverse
// child -> parents index. Both sides are only ever changed through link and unlink, so
// they cannot drift apart. Item.ParentIDs and Item.ChildIDs are materialised from the
// index on every read.
//
// All mutation goes through Update, which runs the caller's function under the write lock.
// The transaction changes the live state in place and journals the previous value of every
// entry it touches; if the function fails or panics the journal is replayed, so a failed
// transaction leaves the store exactly as it was. A transaction costs time proportional to
// what it touches, not to the size of the store.
package store

import (
	"fmt"
	"sync"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

type state struct {
	items    map[string]*content.Item // structural fields are always nil here
	seq      map[string]uint64        // insertion sequence, used for order-preserving reads
	next     uint64
	children map[string][]string // parent -> ordered children
	parents  map[string][]string // child -> parents, in attach order
}

func newState() *state {
	return &state{
		items:    make(map[string]*content.Item),
		seq:      make(map[string]uint64),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
	}
}

// Store is an in-memory, mutex-guarded entity store.
type Store struct {
	mu sync.RWMutex
	st *state
}

// New creates an empty store
func New() *Store {
	return &Store{st: newState()}
}

// Update runs fn inside a transaction. Changes made by fn are undone unless it returns
// nil. The Tx must not be retained after fn returns.
func (s *Store) Update(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := newTx(s.st)
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

// View runs fn against a consistent read-only view. The view must not be retained after
// fn returns.
func (s *Store) View(fn func(r *Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Reader{st: s.st})
}

// Get returns a copy of a single item
func (s *Store) Get(id string) (content.Item, error) {
	var it content.Item
	err := s.View(func(r *Reader) error {
		var ok bool
		it, ok = r.Get(id)
		if !ok {
			return fmt.Errorf("%w: %s", content.ErrNotFound, id)
		}
		return nil
	})
	return it, err
}

// Items returns copies of all items in insertion order
func (s *Store) Items() []content.Item {
	var out []content.Item
	_ = s.View(func(r *Reader) error {
		out = r.Items()
		return nil
	})
	return out
}

// Len returns the number of stored items
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.items)
}

// Load inserts archived items, rebuilding edges from each item's ChildIDs order. The
// archived ParentIDs must agree with the rebuilt index. Load is all-or-nothing.
func (s *Store) Load(items []content.Item) error {
	return s.Update(func(tx *Tx) error {
		for _, it := range items {
			if err := tx.Insert(it); err != nil {
				return err
			}
		}
		for _, it := range items {
			for _, childID := range it.ChildIDs {
				if _, err := tx.Link(it.ID, childID); err != nil {
					return fmt.Errorf("loading edge %s -> %s: %w", it.ID, childID, err)
				}
			}
		}
		for _, it := range items {
			got := tx.Parents(it.ID)
			if !sameSet(got, it.ParentIDs) {
				return fmt.Errorf("loading %s: parent ids %v disagree with child lists %v", it.ID, it.ParentIDs, got)
			}
		}
		return CheckInvariants(&tx.Reader)
	})
}

// CheckInvariants verifies the stored graph under the read lock
func (s *Store) CheckInvariants() error {
	return s.View(func(r *Reader) error {
		return CheckInvariants(r)
	})
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}
