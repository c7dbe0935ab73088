package observe

// Set is an insertion-ordered set whose mutations can be observed.
// Positions follow insertion order; Delete is O(n) for the same reason as
// Map.
//
// A Set is not safe for concurrent use.
type Set[T comparable] struct {
	tracker

	members map[T]struct{}
	order   []T
}

// NewSet creates a Set holding values in the given order.
func NewSet[T comparable](values ...T) *Set[T] {
	s := &Set[T]{
		members: make(map[T]struct{}, len(values)),
	}
	for _, v := range values {
		s.addNative(v)
	}
	return s
}

// Kind returns KindSet.
func (s *Set[T]) Kind() CollectionKind { return KindSet }

// Len returns the number of members.
func (s *Set[T]) Len() int { return len(s.order) }

// ValueAt returns the member at position i.
func (s *Set[T]) ValueAt(i int) any { return s.order[i] }

// Has reports whether v is a member.
func (s *Set[T]) Has(v T) bool {
	_, ok := s.members[v]
	return ok
}

// Values returns the members in insertion order.
func (s *Set[T]) Values() []T {
	out := make([]T, len(s.order))
	copy(out, s.order)
	return out
}

// Range calls fn for each member in insertion order until fn returns false.
func (s *Set[T]) Range(fn func(v T) bool) {
	for _, v := range s.order {
		if !fn(v) {
			return
		}
	}
}

// Add inserts v and returns the set. Adding an existing member is a silent
// no-op; a new member appends a Changed slot and notifies "add".
func (s *Set[T]) Add(v T) *Set[T] {
	if !s.begin() {
		s.addNative(v)
		return s
	}
	o := s.observer

	oldSize := len(s.order)
	s.addNative(v)
	if len(s.order) == oldSize {
		return s
	}
	o.indexMap.Append()
	o.callSubscribers("add", []any{v}, FlagCollectionMutation)
	return s
}

// Delete removes v and reports whether it was a member. Missing members
// and empty sets return false without notifying.
func (s *Set[T]) Delete(v T) bool {
	if !s.begin() {
		return s.deleteNative(v)
	}
	o := s.observer

	if len(s.order) == 0 {
		return false
	}
	for i, m := range s.order {
		if m == v {
			o.indexMap.MarkDeleted(i, v)
			s.removeAt(i)
			o.callSubscribers("delete", []any{v}, FlagCollectionMutation)
			return true
		}
	}
	return false
}

// Clear removes all members. Clearing an empty set is a silent no-op.
func (s *Set[T]) Clear() {
	if !s.begin() {
		s.clearNative()
		return
	}
	o := s.observer

	if len(s.order) == 0 {
		return
	}
	order := s.order
	o.indexMap.Clear(func(i int) any { return order[i] })
	s.clearNative()
	o.callSubscribers("clear", nil, FlagCollectionMutation)
}

func (s *Set[T]) addNative(v T) {
	if s.members == nil {
		s.members = make(map[T]struct{})
	}
	if _, ok := s.members[v]; ok {
		return
	}
	s.members[v] = struct{}{}
	s.order = append(s.order, v)
}

func (s *Set[T]) deleteNative(v T) bool {
	if _, ok := s.members[v]; !ok {
		return false
	}
	for i, m := range s.order {
		if m == v {
			s.removeAt(i)
			break
		}
	}
	return true
}

func (s *Set[T]) removeAt(i int) {
	delete(s.members, s.order[i])
	s.order = append(s.order[:i], s.order[i+1:]...)
}

func (s *Set[T]) clearNative() {
	s.members = make(map[T]struct{})
	s.order = nil
}
