package observe

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestMapObservationScenario(t *testing.T) {
	m := NewMap[string, int]()
	ob, o, rec := observed(m)

	// First set of a new key.
	m.Set("a", 1)
	if diff := cmp.Diff([]int{Changed}, o.IndexMap().Entries()); diff != "" {
		t.Errorf("index map after first set (-want +got):\n%s", diff)
	}
	mustFlush(t, ob)
	if rec.count() != 1 {
		t.Fatalf("notifications after first set = %d, want 1", rec.count())
	}
	if diff := cmp.Diff([]string{"set"}, rec.last().OpNames()); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{Changed}, rec.last().IndexMap.Entries()); diff != "" {
		t.Errorf("delivered index map (-want +got):\n%s", diff)
	}

	// Setting the same value again.
	m.Set("a", 1)
	mustFlush(t, ob)
	if rec.count() != 1 {
		t.Fatalf("notifications after equal set = %d, want 1", rec.count())
	}

	// Changing the value in place.
	m.Set("a", 2)
	mustFlush(t, ob)
	if rec.count() != 2 {
		t.Fatalf("notifications after changed set = %d, want 2", rec.count())
	}
	if diff := cmp.Diff([]int{Changed}, rec.last().IndexMap.Entries()); diff != "" {
		t.Errorf("index map after changed set (-want +got):\n%s", diff)
	}
	if v, _ := m.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d, want 2", v)
	}

	// Clearing.
	m.Clear()
	mustFlush(t, ob)
	if rec.count() != 3 {
		t.Fatalf("notifications after clear = %d, want 3", rec.count())
	}
	change := rec.last()
	if change.IndexMap.Len() != 0 {
		t.Errorf("index map length after clear = %d, want 0", change.IndexMap.Len())
	}
	if diff := cmp.Diff([]any{"a"}, change.IndexMap.DeletedItems()); diff != "" {
		t.Errorf("deleted items (-want +got):\n%s", diff)
	}
	if m.Len() != 0 {
		t.Errorf("Len() = %d after clear", m.Len())
	}
}

func TestMapIndexMapLengthTracksSize(t *testing.T) {
	m := NewMap[int, string]()
	_, o, _ := observed(m)

	for i := range 20 {
		m.Set(i, "v")
		if got := o.IndexMap().Len(); got != m.Len() {
			t.Fatalf("after %d sets, index map length = %d, map size = %d", i+1, got, m.Len())
		}
	}
}

func TestMapSetEqualValueDoesNotNotify(t *testing.T) {
	m := NewMap(Entry[string, []int]{Key: "k", Value: []int{1, 2}})
	ob, o, rec := observed(m)

	m.Set("k", []int{1, 2})
	if o.PendingOps() != 0 {
		t.Errorf("PendingOps() = %d after equal set, want 0", o.PendingOps())
	}
	mustFlush(t, ob)
	if rec.count() != 0 {
		t.Errorf("notifications = %d, want 0", rec.count())
	}

	m.Set("k", []int{1, 2, 3})
	mustFlush(t, ob)
	if rec.count() != 1 {
		t.Errorf("notifications = %d after changed set, want 1", rec.count())
	}
}

func TestMapSetFreshPointerNotifies(t *testing.T) {
	type user struct{ Name string }
	same := &user{Name: "ann"}
	m := NewMap(Entry[string, *user]{Key: "u", Value: same})
	ob, _, rec := observed(m)

	m.Set("u", same)
	mustFlush(t, ob)
	if rec.count() != 0 {
		t.Errorf("notifications = %d after storing the same pointer, want 0", rec.count())
	}

	m.Set("u", &user{Name: "ann"})
	mustFlush(t, ob)
	if rec.count() != 1 {
		t.Errorf("notifications = %d after storing a fresh pointer, want 1", rec.count())
	}
}

func TestMapWithEquals(t *testing.T) {
	type user struct {
		ID   int
		Name string
	}
	m := NewMap[string, user]().WithEquals(func(a, b user) bool { return a.ID == b.ID })
	m.Set("u", user{ID: 1, Name: "old"})
	ob, _, rec := observed(m)

	m.Set("u", user{ID: 1, Name: "new"})
	mustFlush(t, ob)
	if rec.count() != 0 {
		t.Errorf("notifications = %d, want 0 with custom equality", rec.count())
	}
	if v, _ := m.Get("u"); v.Name != "new" {
		t.Errorf("value not stored, Name = %q", v.Name)
	}
}

func TestMapClear(t *testing.T) {
	t.Run("empty map does not notify", func(t *testing.T) {
		m := NewMap[string, int]()
		ob, o, rec := observed(m)

		m.Clear()
		mustFlush(t, ob)
		if rec.count() != 0 {
			t.Errorf("notifications = %d, want 0", rec.count())
		}
		if o.IndexMap().Len() != 0 {
			t.Errorf("index map length = %d, want 0", o.IndexMap().Len())
		}
	})

	t.Run("deleted items hold previously live keys", func(t *testing.T) {
		m := NewMap(
			Entry[string, int]{Key: "a", Value: 1},
			Entry[string, int]{Key: "b", Value: 2},
		)
		ob, _, rec := observed(m)

		m.Set("c", 3) // added since the last flush, not live
		m.Clear()
		mustFlush(t, ob)

		if rec.count() != 1 {
			t.Fatalf("notifications = %d, want 1", rec.count())
		}
		if diff := cmp.Diff([]string{"set", "clear"}, rec.last().OpNames()); diff != "" {
			t.Errorf("ops (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]any{"a", "b"}, rec.last().IndexMap.DeletedItems()); diff != "" {
			t.Errorf("deleted items (-want +got):\n%s", diff)
		}
	})
}

// Delete notifies only when the key was found. A missing key or an empty
// map returns false and leaves the index map untouched.
func TestMapDeleteNotifiesOnlyWhenFound(t *testing.T) {
	m := NewMap(
		Entry[string, int]{Key: "a", Value: 1},
		Entry[string, int]{Key: "b", Value: 2},
	)
	ob, o, rec := observed(m)

	if m.Delete("missing") {
		t.Error("Delete(missing) = true")
	}
	if diff := cmp.Diff([]int{0, 1}, o.IndexMap().Entries()); diff != "" {
		t.Errorf("index map changed by missing delete (-want +got):\n%s", diff)
	}
	mustFlush(t, ob)
	if rec.count() != 0 {
		t.Fatalf("notifications after missing delete = %d, want 0", rec.count())
	}

	if !m.Delete("a") {
		t.Error("Delete(a) = false")
	}
	mustFlush(t, ob)
	if rec.count() != 1 {
		t.Fatalf("notifications after delete = %d, want 1", rec.count())
	}
	change := rec.last()
	if diff := cmp.Diff([]int{1}, change.IndexMap.Entries()); diff != "" {
		t.Errorf("index map (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"a"}, change.IndexMap.DeletedItems()); diff != "" {
		t.Errorf("deleted items (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, m.Keys()); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}
}

func TestMapDeleteOnEmptyMap(t *testing.T) {
	m := NewMap[string, int]()
	ob, _, rec := observed(m)

	if m.Delete("a") {
		t.Error("Delete on empty map = true")
	}
	mustFlush(t, ob)
	if rec.count() != 0 {
		t.Errorf("notifications = %d, want 0", rec.count())
	}
}

func TestMapKeepsInsertionOrder(t *testing.T) {
	m := NewMap[string, int]()
	for _, k := range []string{"c", "a", "b"} {
		m.Set(k, len(k))
	}
	m.Set("a", 10)
	m.Delete("c")
	m.Set("c", 3)

	want := []Entry[string, int]{
		{Key: "a", Value: 10},
		{Key: "b", Value: 1},
		{Key: "c", Value: 3},
	}
	if diff := cmp.Diff(want, m.Entries()); diff != "" {
		t.Errorf("Entries() mismatch (-want +got):\n%s", diff)
	}
	if got := m.ValueAt(1); got != (Entry[string, int]{Key: "b", Value: 1}) {
		t.Errorf("ValueAt(1) = %v", got)
	}
}

func TestMapZeroValueIsUsable(t *testing.T) {
	var m Map[string, int]
	m.Set("a", 1)
	if v, ok := m.Get("a"); !ok || v != 1 {
		t.Errorf("Get(a) = %d, %v", v, ok)
	}
	if !m.Delete("a") {
		t.Error("Delete(a) = false")
	}
}
