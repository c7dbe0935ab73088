package observe

import "slices"

// Array is a slice-backed list whose mutations can be observed.
//
// Every surviving slot of the index map keeps the position its value had
// at the last reset, including after Reverse and Sort, so keyed consumers
// can move rendered views instead of recreating them.
//
// An Array is not safe for concurrent use.
type Array[T any] struct {
	tracker

	items []T
	equal func(T, T) bool
}

// NewArray creates an Array holding a copy of items.
func NewArray[T any](items ...T) *Array[T] {
	return &Array[T]{items: slices.Clone(items)}
}

// WithEquals sets the equality function used by SetAt.
func (a *Array[T]) WithEquals(fn func(T, T) bool) *Array[T] {
	a.equal = fn
	return a
}

func (a *Array[T]) equals(x, y T) bool {
	if a.equal != nil {
		return a.equal(x, y)
	}
	return defaultEquals(x, y)
}

// Kind returns KindArray.
func (a *Array[T]) Kind() CollectionKind { return KindArray }

// Len returns the number of items.
func (a *Array[T]) Len() int { return len(a.items) }

// ValueAt returns the item at position i.
func (a *Array[T]) ValueAt(i int) any { return a.items[i] }

// At returns the item at position i.
func (a *Array[T]) At(i int) T { return a.items[i] }

// Items returns a copy of the items.
func (a *Array[T]) Items() []T { return slices.Clone(a.items) }

// Range calls fn for each item until fn returns false.
func (a *Array[T]) Range(fn func(i int, v T) bool) {
	for i, v := range a.items {
		if !fn(i, v) {
			return
		}
	}
}

// Push appends items and returns the new length. Pushing nothing is a
// silent no-op.
func (a *Array[T]) Push(items ...T) int {
	if len(items) == 0 {
		return len(a.items)
	}
	if !a.begin() {
		a.items = append(a.items, items...)
		return len(a.items)
	}
	o := a.observer

	a.items = append(a.items, items...)
	for range items {
		o.indexMap.Append()
	}
	o.callSubscribers("push", toArgs(items), FlagCollectionMutation)
	return len(a.items)
}

// Pop removes and returns the last item. Popping an empty array returns
// false without notifying.
func (a *Array[T]) Pop() (T, bool) {
	var zero T
	if len(a.items) == 0 {
		return zero, false
	}
	last := len(a.items) - 1
	v := a.items[last]
	if a.begin() {
		a.observer.indexMap.MarkDeleted(last, v)
		a.items[last] = zero
		a.items = a.items[:last]
		a.observer.callSubscribers("pop", nil, FlagCollectionMutation)
		return v, true
	}
	a.items[last] = zero
	a.items = a.items[:last]
	return v, true
}

// Shift removes and returns the first item. Shifting an empty array
// returns false without notifying.
func (a *Array[T]) Shift() (T, bool) {
	var zero T
	if len(a.items) == 0 {
		return zero, false
	}
	v := a.items[0]
	if a.begin() {
		a.observer.indexMap.MarkDeleted(0, v)
		a.items = slices.Delete(a.items, 0, 1)
		a.observer.callSubscribers("shift", nil, FlagCollectionMutation)
		return v, true
	}
	a.items = slices.Delete(a.items, 0, 1)
	return v, true
}

// Unshift inserts items at the front and returns the new length.
// Unshifting nothing is a silent no-op.
func (a *Array[T]) Unshift(items ...T) int {
	if len(items) == 0 {
		return len(a.items)
	}
	if !a.begin() {
		a.items = slices.Insert(a.items, 0, items...)
		return len(a.items)
	}
	o := a.observer

	a.items = slices.Insert(a.items, 0, items...)
	for range items {
		o.indexMap.Insert(0)
	}
	o.callSubscribers("unshift", toArgs(items), FlagCollectionMutation)
	return len(a.items)
}

// Splice removes deleteCount items at start, inserts items in their place
// and returns the removed items. A negative start counts from the end.
// start and deleteCount are clamped to the array bounds. Removing and
// inserting nothing is a silent no-op.
func (a *Array[T]) Splice(start, deleteCount int, items ...T) []T {
	n := len(a.items)
	if start < 0 {
		start = max(n+start, 0)
	} else {
		start = min(start, n)
	}
	deleteCount = min(max(deleteCount, 0), n-start)

	removed := slices.Clone(a.items[start : start+deleteCount])
	if deleteCount == 0 && len(items) == 0 {
		return removed
	}

	instrumented := a.begin()
	if instrumented {
		im := a.observer.indexMap
		for _, v := range removed {
			im.MarkDeleted(start, v)
		}
		for j := range items {
			im.Insert(start + j)
		}
	}
	a.items = slices.Replace(a.items, start, start+deleteCount, items...)
	if instrumented {
		args := append([]any{start, deleteCount}, toArgs(items)...)
		a.observer.callSubscribers("splice", args, FlagCollectionMutation)
	}
	return removed
}

// SetAt replaces the item at position i. It reports false if i is out of
// range. Storing an equal value is a silent no-op.
func (a *Array[T]) SetAt(i int, v T) bool {
	if i < 0 || i >= len(a.items) {
		return false
	}
	if !a.begin() {
		a.items[i] = v
		return true
	}
	if a.equals(a.items[i], v) {
		return true
	}
	a.items[i] = v
	a.observer.indexMap.MarkChanged(i)
	a.observer.callSubscribers("set", []any{i, v}, FlagCollectionMutation)
	return true
}

// Reverse reverses the items in place. Arrays shorter than two items are
// left untouched without notifying.
func (a *Array[T]) Reverse() {
	if len(a.items) < 2 {
		return
	}
	instrumented := a.begin()
	slices.Reverse(a.items)
	if instrumented {
		a.observer.indexMap.Reverse()
		a.observer.callSubscribers("reverse", nil, FlagCollectionMutation)
	}
}

// Sort sorts the items stably by cmp. If the order does not change nobody
// is notified.
func (a *Array[T]) Sort(cmp func(x, y T) int) {
	perm := make([]int, len(a.items))
	for i := range perm {
		perm[i] = i
	}
	slices.SortStableFunc(perm, func(x, y int) int {
		return cmp(a.items[x], a.items[y])
	})

	moved := false
	for i, from := range perm {
		if i != from {
			moved = true
			break
		}
	}
	if !moved {
		return
	}

	instrumented := a.begin()
	sorted := make([]T, len(a.items))
	for i, from := range perm {
		sorted[i] = a.items[from]
	}
	a.items = sorted
	if instrumented {
		a.observer.indexMap.Permute(perm)
		a.observer.callSubscribers("sort", nil, FlagCollectionMutation)
	}
}

func toArgs[T any](items []T) []any {
	args := make([]any, len(items))
	for i, v := range items {
		args[i] = v
	}
	return args
}
