package observe

import "sync"

// Flags tag a notification with the circumstances that produced it.
type Flags uint32

const (
	// FlagCollectionMutation marks notifications caused by a mutating
	// operation on an observed collection.
	FlagCollectionMutation Flags = 1 << iota

	// FlagResync marks notifications caused by mutations made while the
	// collection kind was not instrumented. The index map is all Changed.
	FlagResync

	// FlagComputed marks notifications from a Computed value.
	FlagComputed
)

// Has reports whether all bits of f2 are set.
func (f Flags) Has(f2 Flags) bool {
	return f&f2 == f2
}

// Op is one mutating operation as it was called on the collection.
type Op struct {
	// Name is the operation, e.g. "set", "delete", "clear", "push".
	Name string

	// Args are the original call arguments.
	Args []any
}

// Change is the consolidated notification a subscriber receives for one
// source in one flush cycle. It is shared by all subscribers of the source
// and must be treated as read-only.
type Change struct {
	// Kind is the kind of the source.
	Kind CollectionKind

	// Ops lists every mutation since the previous delivery, in call order.
	Ops []Op

	// IndexMap is a snapshot of the ledger at delivery time. It is nil for
	// computed sources.
	IndexMap *IndexMap

	// Flags describe how the change was produced.
	Flags Flags

	// Collection is the mutated collection. It is nil for computed sources.
	Collection Collection
}

// OpNames returns the names of the consolidated operations.
func (c *Change) OpNames() []string {
	names := make([]string, len(c.Ops))
	for i, op := range c.Ops {
		names[i] = op.Name
	}
	return names
}

// Subscriber is anything that can be notified when an observed source
// changes. Property bindings, repeat bindings and computed values are
// subscribers.
type Subscriber interface {
	// HandleCollectionChange receives the consolidated change for a source.
	// It runs during Scheduler.Flush. A panic is not recovered.
	HandleCollectionChange(change *Change)

	// ID returns a unique identifier for this subscriber.
	// Used for deduplication in the registry.
	ID() uint64
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc struct {
	id uint64
	fn func(*Change)
}

// invalidator is implemented by subscribers holding a cache derived from
// the source. It is called synchronously on every mutation.
type invalidator interface {
	invalidate()
}

// NewSubscriberFunc wraps fn as a Subscriber with a fresh ID.
func NewSubscriberFunc(fn func(*Change)) *SubscriberFunc {
	return &SubscriberFunc{id: NextID(), fn: fn}
}

// HandleCollectionChange calls the wrapped function.
func (s *SubscriberFunc) HandleCollectionChange(change *Change) {
	s.fn(change)
}

// ID returns the subscriber's identity.
func (s *SubscriberFunc) ID() uint64 {
	return s.id
}

// subscriberRegistry is the ordered set of subscribers of one source.
// Delivery order equals subscription order.
type subscriberRegistry struct {
	subs []Subscriber
	mu   sync.RWMutex
}

// add appends a subscriber unless one with the same ID is present.
func (r *subscriberRegistry) add(s Subscriber) bool {
	if s == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.ID()
	for _, existing := range r.subs {
		if existing.ID() == id {
			return false
		}
	}
	r.subs = append(r.subs, s)
	return true
}

// remove deletes a subscriber, keeping the order of the rest.
func (r *subscriberRegistry) remove(s Subscriber) bool {
	if s == nil {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := s.ID()
	for i, existing := range r.subs {
		if existing.ID() == id {
			r.subs = append(r.subs[:i:i], r.subs[i+1:]...)
			return true
		}
	}
	return false
}

// snapshot copies the subscriber list so delivery runs without the lock
// and is unaffected by subscriptions made during delivery.
func (r *subscriberRegistry) snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subscriber, len(r.subs))
	copy(out, r.subs)
	return out
}

func (r *subscriberRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
