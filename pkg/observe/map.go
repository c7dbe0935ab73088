package observe

// Entry is a key/value pair of a Map, in insertion order.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Map is an insertion-ordered map whose mutations can be observed.
//
// Go maps have no iteration order, so Map keeps its own key order. Index
// map positions follow that order. Finding the position of a key is a scan,
// which makes Set on an existing key and Delete O(n). This is the known
// cost of positional tracking for keyed collections.
//
// A Map is not safe for concurrent use.
type Map[K comparable, V any] struct {
	tracker

	values map[K]V
	keys   []K

	equal func(V, V) bool
}

// NewMap creates an empty Map. Entries are inserted in the given order.
func NewMap[K comparable, V any](entries ...Entry[K, V]) *Map[K, V] {
	m := &Map[K, V]{
		values: make(map[K]V, len(entries)),
	}
	for _, e := range entries {
		m.setNative(e.Key, e.Value)
	}
	return m
}

// WithEquals sets the equality function used to decide whether Set on an
// existing key changed its value. The default compares pointers by
// identity and other values with == or reflect.DeepEqual.
func (m *Map[K, V]) WithEquals(fn func(V, V) bool) *Map[K, V] {
	m.equal = fn
	return m
}

func (m *Map[K, V]) equals(a, b V) bool {
	if m.equal != nil {
		return m.equal(a, b)
	}
	return defaultEquals(a, b)
}

// Kind returns KindMap.
func (m *Map[K, V]) Kind() CollectionKind { return KindMap }

// Len returns the number of entries.
func (m *Map[K, V]) Len() int { return len(m.keys) }

// ValueAt returns the Entry at position i.
func (m *Map[K, V]) ValueAt(i int) any {
	k := m.keys[i]
	return Entry[K, V]{Key: k, Value: m.values[k]}
}

// Get returns the value for key.
func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Has reports whether key is present.
func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.values[key]
	return ok
}

// Keys returns the keys in insertion order.
func (m *Map[K, V]) Keys() []K {
	out := make([]K, len(m.keys))
	copy(out, m.keys)
	return out
}

// Entries returns the entries in insertion order.
func (m *Map[K, V]) Entries() []Entry[K, V] {
	out := make([]Entry[K, V], len(m.keys))
	for i, k := range m.keys {
		out[i] = Entry[K, V]{Key: k, Value: m.values[k]}
	}
	return out
}

// Range calls fn for each entry in insertion order until fn returns false.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Set stores value under key and returns the map.
//
// Adding a key appends a Changed slot and notifies "set". Replacing the
// value of an existing key marks its slot Changed and notifies "set" only
// if the value is different; storing an equal value is a silent no-op.
func (m *Map[K, V]) Set(key K, value V) *Map[K, V] {
	if !m.begin() {
		m.setNative(key, value)
		return m
	}
	o := m.observer

	oldSize := len(m.keys)
	old := m.values[key]
	m.setNative(key, value)

	if len(m.keys) == oldSize {
		for i, k := range m.keys {
			if k == key {
				if !m.equals(old, value) {
					o.indexMap.MarkChanged(i)
					o.callSubscribers("set", []any{key, value}, FlagCollectionMutation)
				}
				return m
			}
		}
		return m
	}

	o.indexMap.Append()
	o.callSubscribers("set", []any{key, value}, FlagCollectionMutation)
	return m
}

// Delete removes key and reports whether it was present.
//
// Deleting from an empty map or deleting a missing key returns false and
// notifies nobody. A successful delete records the key in the index map's
// deleted items (if its slot was live) and notifies "delete".
func (m *Map[K, V]) Delete(key K) bool {
	if !m.begin() {
		return m.deleteNative(key)
	}
	o := m.observer

	if len(m.keys) == 0 {
		return false
	}
	for i, k := range m.keys {
		if k == key {
			o.indexMap.MarkDeleted(i, key)
			m.removeAt(i)
			o.callSubscribers("delete", []any{key}, FlagCollectionMutation)
			return true
		}
	}
	return false
}

// Clear removes all entries. Clearing an empty map is a silent no-op.
// Otherwise the keys of all live slots are recorded as deleted items and
// "clear" is notified.
func (m *Map[K, V]) Clear() {
	if !m.begin() {
		m.clearNative()
		return
	}
	o := m.observer

	if len(m.keys) == 0 {
		return
	}
	keys := m.keys
	o.indexMap.Clear(func(i int) any { return keys[i] })
	m.clearNative()
	o.callSubscribers("clear", nil, FlagCollectionMutation)
}

func (m *Map[K, V]) setNative(key K, value V) {
	if m.values == nil {
		m.values = make(map[K]V)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Map[K, V]) deleteNative(key K) bool {
	if _, ok := m.values[key]; !ok {
		return false
	}
	for i, k := range m.keys {
		if k == key {
			m.removeAt(i)
			break
		}
	}
	return true
}

func (m *Map[K, V]) removeAt(i int) {
	delete(m.values, m.keys[i])
	m.keys = append(m.keys[:i], m.keys[i+1:]...)
}

func (m *Map[K, V]) clearNative() {
	m.values = make(map[K]V)
	m.keys = nil
}
