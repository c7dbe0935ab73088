package observe

import (
	"strconv"
	"strings"
)

// Index map slot markers.
const (
	// Changed marks a slot whose value was replaced or inserted since the
	// last flush. Consumers must render it from the current collection.
	Changed = -2

	// Deleted is the historical marker for a removed slot. Removed slots
	// are spliced out of the map, so live maps never contain it; it is
	// kept as the boundary between markers and original indices.
	Deleted = -1
)

// IndexMap is the per-collection mutation ledger.
//
// Entry i describes position i of the current collection: Changed, or the
// index the value had in the collection when the map was last reset.
// Values removed from live slots are recorded in DeletedItems so keyed
// consumers can dispose of what they rendered for them.
//
// An IndexMap is owned by its CollectionObserver. Consumers receive clones
// in Change notifications and must not expect mutations to flow back.
type IndexMap struct {
	entries []int
	deleted []any
}

// NewIndexMap returns an identity map for a collection of length n.
func NewIndexMap(n int) *IndexMap {
	m := &IndexMap{}
	m.Reset(n)
	return m
}

// Reset reinitializes the map to the identity sequence [0, 1, ..., n-1]
// and clears the deleted items.
func (m *IndexMap) Reset(n int) {
	if cap(m.entries) < n {
		m.entries = make([]int, n)
	} else {
		m.entries = m.entries[:n]
	}
	for i := range m.entries {
		m.entries[i] = i
	}
	m.deleted = nil
}

// Len returns the number of slots.
func (m *IndexMap) Len() int {
	return len(m.entries)
}

// At returns the entry for position i.
func (m *IndexMap) At(i int) int {
	return m.entries[i]
}

// Entries returns a copy of the slot entries.
func (m *IndexMap) Entries() []int {
	out := make([]int, len(m.entries))
	copy(out, m.entries)
	return out
}

// DeletedItems returns a copy of the values removed from live slots since
// the last reset, in removal order.
func (m *IndexMap) DeletedItems() []any {
	out := make([]any, len(m.deleted))
	copy(out, m.deleted)
	return out
}

// MarkChanged sets the slot at pos to Changed.
func (m *IndexMap) MarkChanged(pos int) {
	m.entries[pos] = Changed
}

// MarkDeleted removes the slot at pos, shifting later slots left. The value
// is recorded in the deleted items only if the slot was live, i.e. it still
// referred to a value from before the last reset.
func (m *IndexMap) MarkDeleted(pos int, value any) {
	if m.entries[pos] > Deleted {
		m.deleted = append(m.deleted, value)
	}
	m.entries = append(m.entries[:pos], m.entries[pos+1:]...)
}

// Insert adds a Changed slot at pos, shifting later slots right.
func (m *IndexMap) Insert(pos int) {
	m.entries = append(m.entries, 0)
	copy(m.entries[pos+1:], m.entries[pos:])
	m.entries[pos] = Changed
}

// Append adds a Changed slot at the end.
func (m *IndexMap) Append() {
	m.entries = append(m.entries, Changed)
}

// Clear records every live slot's value and truncates the map to zero
// length. valueAt returns the value currently at a position.
func (m *IndexMap) Clear(valueAt func(i int) any) {
	for i, e := range m.entries {
		if e > Deleted {
			m.deleted = append(m.deleted, valueAt(i))
		}
	}
	m.entries = m.entries[:0]
}

// Permute reorders slots so that new slot i holds old slot perm[i].
func (m *IndexMap) Permute(perm []int) {
	next := make([]int, len(m.entries))
	for i, from := range perm {
		next[i] = m.entries[from]
	}
	m.entries = next
}

// Reverse reverses the slot order.
func (m *IndexMap) Reverse() {
	for i, j := 0, len(m.entries)-1; i < j; i, j = i+1, j-1 {
		m.entries[i], m.entries[j] = m.entries[j], m.entries[i]
	}
}

// fillChanged replaces the map with n Changed slots, keeping deleted items.
func (m *IndexMap) fillChanged(n int) {
	m.entries = make([]int, n)
	for i := range m.entries {
		m.entries[i] = Changed
	}
}

// IsIdentity reports whether no mutation has been recorded since the map
// was reset for a collection of its current length.
func (m *IndexMap) IsIdentity() bool {
	if len(m.deleted) > 0 {
		return false
	}
	for i, e := range m.entries {
		if e != i {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (m *IndexMap) Clone() *IndexMap {
	return &IndexMap{
		entries: m.Entries(),
		deleted: m.DeletedItems(),
	}
}

// String renders the entries, e.g. "[0 -2 1]".
func (m *IndexMap) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, e := range m.entries {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.Itoa(e))
	}
	b.WriteByte(']')
	return b.String()
}
