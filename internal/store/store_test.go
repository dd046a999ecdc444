package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jan-cermak-1/fuel-2-content-factory-sub000/internal/content"
)

func item(id string, typ content.ItemType) content.Item {
	return content.Item{ID: id, Type: typ, Name: "Item " + id, Status: content.StatusDraft}
}

// seed builds O1 -> T1 -> BP1 -> S1 plus a second tactic T2.
func seed(t *testing.T) *Store {
	t.Helper()
	s := New()
	err := s.Update(func(tx *Tx) error {
		for _, it := range []content.Item{
			item("O1", content.TypeObjective),
			item("T1", content.TypeTactic),
			item("T2", content.TypeTactic),
			item("BP1", content.TypeBestPractice),
			item("S1", content.TypeStep),
		} {
			if err := tx.Insert(it); err != nil {
				return err
			}
		}
		for _, e := range [][2]string{{"O1", "T1"}, {"O1", "T2"}, {"T1", "BP1"}, {"BP1", "S1"}} {
			if _, err := tx.Link(e[0], e[1]); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, s.CheckInvariants())
	return s
}

func TestLinkKeepsBothSidesInSync(t *testing.T) {
	s := seed(t)

	o1, err := s.Get("O1")
	require.NoError(t, err)
	assert.Equal(t, []string{"T1", "T2"}, o1.ChildIDs)
	assert.Empty(t, o1.ParentIDs)

	t1, err := s.Get("T1")
	require.NoError(t, err)
	assert.Equal(t, []string{"O1"}, t1.ParentIDs)
	assert.Equal(t, []string{"BP1"}, t1.ChildIDs)
}

func TestLink_Idempotent(t *testing.T) {
	s := seed(t)
	err := s.Update(func(tx *Tx) error {
		added, err := tx.Link("O1", "T1")
		require.NoError(t, err)
		assert.False(t, added)
		return nil
	})
	require.NoError(t, err)

	o1, _ := s.Get("O1")
	assert.Equal(t, []string{"T1", "T2"}, o1.ChildIDs)
}

func TestLink_RejectsWrongTypes(t *testing.T) {
	s := seed(t)
	before := s.Items()

	err := s.Update(func(tx *Tx) error {
		_, err := tx.Link("O1", "S1")
		return err
	})
	assert.ErrorIs(t, err, content.ErrInvalidRelationship)

	err = s.Update(func(tx *Tx) error {
		_, err := tx.Link("missing", "S1")
		return err
	})
	assert.ErrorIs(t, err, content.ErrNotFound)

	if diff := cmp.Diff(before, s.Items()); diff != "" {
		t.Errorf("store changed after failed link (-before +after):\n%s", diff)
	}
}

func TestUpdate_RollsBackOnError(t *testing.T) {
	s := seed(t)
	before := s.Items()

	boom := errors.New("boom")
	err := s.Update(func(tx *Tx) error {
		require.NoError(t, tx.Remove("T1"))
		_, err := tx.Link("T2", "BP1")
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	if diff := cmp.Diff(before, s.Items()); diff != "" {
		t.Errorf("failed transaction leaked changes (-before +after):\n%s", diff)
	}
}

func TestUpdate_RollsBackEveryKindOfChange(t *testing.T) {
	s := seed(t)
	before := s.Items()

	boom := errors.New("boom")
	err := s.Update(func(tx *Tx) error {
		require.NoError(t, tx.Insert(item("T3", content.TypeTactic)))
		_, err := tx.Link("O1", "T3")
		require.NoError(t, err)
		require.NoError(t, tx.PlaceChild("O1", "T3", 0))

		t2, _ := tx.Get("T2")
		t2.Name = "renamed"
		require.NoError(t, tx.Replace(t2))

		_, err = tx.Unlink("BP1", "S1")
		require.NoError(t, err)

		require.NoError(t, tx.Remove("BP1"))
		require.NoError(t, tx.Insert(item("BP1", content.TypeBestPractice)))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, s.CheckInvariants())
	if diff := cmp.Diff(before, s.Items()); diff != "" {
		t.Errorf("failed transaction leaked changes (-before +after):\n%s", diff)
	}

	// a later insert still lands after every existing item
	require.NoError(t, s.Update(func(tx *Tx) error { return tx.Insert(item("T4", content.TypeTactic)) }))
	items := s.Items()
	assert.Equal(t, "T4", items[len(items)-1].ID)
}

func TestUpdate_RollsBackOnPanic(t *testing.T) {
	s := seed(t)
	before := s.Items()

	assert.Panics(t, func() {
		_ = s.Update(func(tx *Tx) error {
			require.NoError(t, tx.Remove("T1"))
			panic("mid-transaction")
		})
	})
	if diff := cmp.Diff(before, s.Items()); diff != "" {
		t.Errorf("panicking transaction leaked changes (-before +after):\n%s", diff)
	}
	require.NoError(t, s.CheckInvariants())
}

func TestUpdate_JournalsOnlyTouchedEntries(t *testing.T) {
	s := seed(t)
	require.NoError(t, s.Update(func(tx *Tx) error {
		for i := 0; i < 1000; i++ {
			id := fmt.Sprintf("bulk-%04d", i)
			if err := tx.Insert(item(id, content.TypeTactic)); err != nil {
				return err
			}
			if _, err := tx.Link("O1", id); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.Update(func(tx *Tx) error {
		if err := tx.PlaceChild("O1", "T2", 0); err != nil {
			return err
		}
		assert.Len(t, tx.undo.children, 1)
		assert.Empty(t, tx.undo.parents)
		assert.Empty(t, tx.undo.items)
		return nil
	}))

	require.NoError(t, s.Update(func(tx *Tx) error {
		if err := tx.Insert(item("BP2", content.TypeBestPractice)); err != nil {
			return err
		}
		if _, err := tx.Link("T1", "BP2"); err != nil {
			return err
		}
		assert.Len(t, tx.undo.items, 1)
		assert.Len(t, tx.undo.children, 1)
		assert.Len(t, tx.undo.parents, 1)
		return nil
	}))
	require.NoError(t, s.CheckInvariants())
}

func TestRemove_OrphansChildren(t *testing.T) {
	s := seed(t)
	require.NoError(t, s.Update(func(tx *Tx) error { return tx.Remove("T1") }))
	require.NoError(t, s.CheckInvariants())

	o1, _ := s.Get("O1")
	assert.Equal(t, []string{"T2"}, o1.ChildIDs)

	bp1, err := s.Get("BP1")
	require.NoError(t, err, "children are not cascade-deleted")
	assert.Empty(t, bp1.ParentIDs)
	assert.Equal(t, []string{"S1"}, bp1.ChildIDs)

	_, err = s.Get("T1")
	assert.ErrorIs(t, err, content.ErrNotFound)
	assert.Equal(t, 4, s.Len())
}

func TestPlaceChild(t *testing.T) {
	s := seed(t)
	require.NoError(t, s.Update(func(tx *Tx) error {
		if err := tx.Insert(item("T3", content.TypeTactic)); err != nil {
			return err
		}
		if _, err := tx.Link("O1", "T3"); err != nil {
			return err
		}
		return tx.PlaceChild("O1", "T3", 0)
	}))
	o1, _ := s.Get("O1")
	assert.Equal(t, []string{"T3", "T1", "T2"}, o1.ChildIDs)

	require.NoError(t, s.Update(func(tx *Tx) error { return tx.PlaceChild("O1", "T3", 99) }))
	o1, _ = s.Get("O1")
	assert.Equal(t, []string{"T1", "T2", "T3"}, o1.ChildIDs)
}

func TestReplace_RefusesTypeChange(t *testing.T) {
	s := seed(t)
	err := s.Update(func(tx *Tx) error {
		it, _ := tx.Get("T1")
		it.Type = content.TypeStep
		return tx.Replace(it)
	})
	assert.ErrorIs(t, err, content.ErrInvalidRelationship)
}

func TestLoad_RoundTrip(t *testing.T) {
	s := seed(t)
	items := s.Items()

	loaded := New()
	require.NoError(t, loaded.Load(items))
	if diff := cmp.Diff(items, loaded.Items()); diff != "" {
		t.Errorf("load round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_RejectsAsymmetricInput(t *testing.T) {
	s := seed(t)
	items := s.Items()
	for i := range items {
		if items[i].ID == "T1" {
			items[i].ParentIDs = nil
		}
	}
	loaded := New()
	err := loaded.Load(items)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disagree")
	assert.Equal(t, 0, loaded.Len())
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	s := seed(t)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Update(func(tx *Tx) error {
				_, err := tx.Link("T2", "BP1")
				if err != nil {
					return err
				}
				_, err = tx.Unlink("T2", "BP1")
				return err
			})
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, s.CheckInvariants())
		}()
	}
	wg.Wait()
	require.NoError(t, s.CheckInvariants())
}
