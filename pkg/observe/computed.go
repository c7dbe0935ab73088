package observe

// Computed is a cached value derived from observed collections.
//
// It subscribes to the observers of its sources. A mutation of any source
// invalidates the cache immediately, so Get never returns a value older
// than its sources, even in the middle of a flush. Delivery of the source
// change queues the Computed itself on the scheduler; when delivered it
// recomputes at most once and notifies its own subscribers only if the
// result differs from the value they last saw.
//
// Example:
//
//	total := observe.NewComputed(ob, func() int {
//	    sum := 0
//	    cart.Range(func(_ int, item Item) bool { sum += item.Price; return true })
//	    return sum
//	}, cart)
type Computed[T any] struct {
	id          uint64
	observation *Observation
	compute     func() T

	value T
	valid bool

	// stale is set from the first invalidation until delivery. base holds
	// the value dependents last saw.
	stale   bool
	base    T
	hasBase bool

	sources []*CollectionObserver
	subs    subscriberRegistry

	equal func(T, T) bool
}

// NewComputed creates a Computed over the given sources. The value is not
// computed until the first Get.
func NewComputed[T any](ob *Observation, compute func() T, sources ...Collection) *Computed[T] {
	c := &Computed[T]{
		id:          NextID(),
		observation: ob,
		compute:     compute,
	}
	for _, src := range sources {
		o := ob.GetCollectionObserver(src)
		o.Subscribe(c)
		c.sources = append(c.sources, o)
	}
	return c
}

// WithEquals sets the equality function used to decide whether a
// recomputed value changed.
func (c *Computed[T]) WithEquals(fn func(T, T) bool) *Computed[T] {
	c.equal = fn
	return c
}

// ID returns the subscriber identity of the Computed.
func (c *Computed[T]) ID() uint64 {
	return c.id
}

// Get returns the cached value, computing it if stale.
func (c *Computed[T]) Get() T {
	if !c.valid {
		c.value = c.compute()
		c.valid = true
	}
	return c.value
}

// Valid reports whether the cached value is current.
func (c *Computed[T]) Valid() bool {
	return c.valid
}

// Subscribe registers a dependent. Dependents receive a Change of kind
// KindComputed whenever the value changes.
func (c *Computed[T]) Subscribe(s Subscriber) bool {
	return c.subs.add(s)
}

// Unsubscribe removes a dependent.
func (c *Computed[T]) Unsubscribe(s Subscriber) bool {
	return c.subs.remove(s)
}

// HandleCollectionChange queues the Computed for delivery within the
// running flush. The cache was already invalidated when the source
// mutated.
func (c *Computed[T]) HandleCollectionChange(*Change) {
	if !c.stale {
		c.invalidate()
	}
	c.observation.scheduler.enqueue(c, FlagComputed)
}

// invalidate drops the cached value and invalidates dependent Computeds.
func (c *Computed[T]) invalidate() {
	if !c.stale {
		c.base, c.hasBase = c.value, c.valid
		c.stale = true
	}
	wasValid := c.valid
	c.valid = false
	if !wasValid {
		return
	}
	for _, sub := range c.subs.snapshot() {
		if inv, ok := sub.(invalidator); ok {
			inv.invalidate()
		}
	}
}

// Dispose unsubscribes from all sources.
func (c *Computed[T]) Dispose() {
	for _, o := range c.sources {
		o.Unsubscribe(c)
	}
	c.sources = nil
	c.stale = false
	c.observation.scheduler.dequeue(c.id)
}

func (c *Computed[T]) sourceID() uint64 { return c.id }

func (c *Computed[T]) deliver(flags Flags) Delivery {
	d := Delivery{SourceID: c.id, Kind: KindComputed}

	old, hadValue := c.base, c.hasBase
	var zero T
	c.base, c.hasBase, c.stale = zero, false, false
	if hadValue || c.subs.len() > 0 {
		next := c.Get()
		if hadValue && c.equals(old, next) {
			return d
		}
	}

	change := &Change{
		Kind:  KindComputed,
		Ops:   []Op{{Name: "invalidate"}},
		Flags: flags | FlagComputed,
	}
	subs := c.subs.snapshot()
	for _, sub := range subs {
		sub.HandleCollectionChange(change)
	}
	d.Ops = change.OpNames()
	d.Subscribers = len(subs)
	return d
}

func (c *Computed[T]) equals(a, b T) bool {
	if c.equal != nil {
		return c.equal(a, b)
	}
	return defaultEquals(a, b)
}
