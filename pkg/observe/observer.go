package observe

import (
	"cmp"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/weave/internal/errors"
)

// CollectionKind identifies the shape of an observed collection.
type CollectionKind uint8

const (
	KindArray CollectionKind = iota + 1
	KindMap
	KindSet
	KindComputed
)

// String returns a human-readable name for the kind.
func (k CollectionKind) String() string {
	switch k {
	case KindArray:
		return "array"
	case KindMap:
		return "map"
	case KindSet:
		return "set"
	case KindComputed:
		return "computed"
	default:
		return "unknown"
	}
}

// Valid reports whether k is a known kind.
func (k CollectionKind) Valid() bool {
	return k >= KindArray && k <= KindComputed
}

// MarshalText encodes the kind by name.
func (k CollectionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *CollectionKind) UnmarshalText(text []byte) error {
	if string(text) == "computed" {
		*k = KindComputed
		return nil
	}
	parsed, ok := ParseKind(string(text))
	if !ok {
		return errors.New("W050").WithSubject(string(text))
	}
	*k = parsed
	return nil
}

// ParseKind returns the collection kind named s.
func ParseKind(s string) (CollectionKind, bool) {
	switch s {
	case "array":
		return KindArray, true
	case "map":
		return KindMap, true
	case "set":
		return KindSet, true
	default:
		return 0, false
	}
}

// WrapperState is the tagged instrumentation state of a collection.
type WrapperState uint8

const (
	// StateNative means mutations behave exactly like the plain container
	// and nothing is recorded or notified.
	StateNative WrapperState = iota

	// StateInstrumented means mutations update the index map and notify
	// subscribers.
	StateInstrumented
)

// String returns "native" or "instrumented".
func (s WrapperState) String() string {
	if s == StateInstrumented {
		return "instrumented"
	}
	return "native"
}

// Collection is implemented by Array, Map and Set.
type Collection interface {
	// Kind returns the collection kind.
	Kind() CollectionKind

	// Len returns the number of elements.
	Len() int

	// ValueAt returns the element at position i in iteration order.
	// Maps return an Entry.
	ValueAt(i int) any

	tracked() *tracker
}

// tracker is embedded in every collection and holds the back-reference to
// its observer.
type tracker struct {
	observer *CollectionObserver
}

func (t *tracker) tracked() *tracker { return t }

// begin reports whether the mutation about to happen must be recorded.
func (t *tracker) begin() bool {
	o := t.observer
	if o == nil {
		return false
	}
	return o.begin()
}

// StateOf returns the instrumentation state of a collection.
func StateOf(c Collection) WrapperState {
	o := c.tracked().observer
	if o == nil || !o.observation.Enabled(o.kind) {
		return StateNative
	}
	return StateInstrumented
}

// CollectionObserver intercepts mutations of one collection, maintains its
// index map and notifies subscribers through the scheduler.
//
// The observer exclusively owns the index map and the subscriber list.
// The collection itself is owned by application code.
type CollectionObserver struct {
	id          uint64
	kind        CollectionKind
	collection  Collection
	observation *Observation

	indexMap *IndexMap
	subs     subscriberRegistry

	// pending accumulates operations until the next delivery.
	pending []Op

	// outOfSync is set when the collection was mutated while its kind was
	// not instrumented.
	outOfSync bool
}

// ID returns the observer's unique identifier.
func (o *CollectionObserver) ID() uint64 {
	return o.id
}

// Kind returns the kind of the observed collection.
func (o *CollectionObserver) Kind() CollectionKind {
	return o.kind
}

// Collection returns the observed collection.
func (o *CollectionObserver) Collection() Collection {
	return o.collection
}

// IndexMap returns a snapshot of the current index map.
func (o *CollectionObserver) IndexMap() *IndexMap {
	return o.indexMap.Clone()
}

// ResetIndexMap resets the index map to the identity of the collection's
// current length.
func (o *CollectionObserver) ResetIndexMap() {
	o.indexMap.Reset(o.collection.Len())
}

// Subscribe registers s. Returns false if s was already subscribed.
func (o *CollectionObserver) Subscribe(s Subscriber) bool {
	return o.subs.add(s)
}

// Unsubscribe removes s. Returns false if s was not subscribed.
func (o *CollectionObserver) Unsubscribe(s Subscriber) bool {
	return o.subs.remove(s)
}

// SubscriberCount returns the number of subscribers.
func (o *CollectionObserver) SubscriberCount() int {
	return o.subs.len()
}

// PendingOps returns the number of operations waiting for delivery.
func (o *CollectionObserver) PendingOps() int {
	return len(o.pending)
}

// begin is called before every mutation. When the kind is disabled the
// mutation runs natively and the observer falls out of sync. The first
// instrumented mutation afterwards treats every slot as changed.
func (o *CollectionObserver) begin() bool {
	if !o.observation.Enabled(o.kind) {
		o.outOfSync = true
		return false
	}
	if o.outOfSync {
		o.outOfSync = false
		o.indexMap.fillChanged(o.collection.Len())
		o.callSubscribers("resync", nil, FlagCollectionMutation|FlagResync)
	}
	return true
}

// callSubscribers records op and queues this observer for delivery at the
// next flush. An observer is queued at most once per flush cycle. Cached
// derived values are invalidated right away.
func (o *CollectionObserver) callSubscribers(op string, args []any, flags Flags) {
	o.pending = append(o.pending, Op{Name: op, Args: args})
	for _, sub := range o.subs.snapshot() {
		if inv, ok := sub.(invalidator); ok {
			inv.invalidate()
		}
	}
	o.observation.scheduler.enqueue(o, flags)
}

func (o *CollectionObserver) sourceID() uint64 { return o.id }

// deliver sends the consolidated change to every subscriber in
// subscription order and resets the index map.
func (o *CollectionObserver) deliver(flags Flags) Delivery {
	ops := o.pending
	o.pending = nil

	change := &Change{
		Kind:       o.kind,
		Ops:        ops,
		IndexMap:   o.indexMap.Clone(),
		Flags:      flags,
		Collection: o.collection,
	}
	o.indexMap.Reset(o.collection.Len())

	subs := o.subs.snapshot()
	for _, sub := range subs {
		sub.HandleCollectionChange(change)
	}

	return Delivery{
		SourceID:    o.id,
		Kind:        o.kind,
		Ops:         change.OpNames(),
		IndexMap:    change.IndexMap.Entries(),
		Deleted:     len(change.IndexMap.deleted),
		Subscribers: len(subs),
	}
}

// Observation creates collection observers and holds the per-kind
// instrumentation switches. It replaces process-wide toggles: two
// Observations never affect each other.
type Observation struct {
	scheduler *Scheduler
	logger    *slog.Logger

	disabled [KindComputed + 1]atomic.Bool

	observers   map[uint64]*CollectionObserver
	observersMu sync.Mutex
}

// Option configures an Observation.
type Option func(*Observation)

// WithScheduler sets the scheduler observers queue their notifications on.
func WithScheduler(s *Scheduler) Option {
	return func(ob *Observation) {
		ob.scheduler = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(ob *Observation) {
		ob.logger = l
	}
}

// WithDisabledKinds starts the Observation with the given kinds native.
func WithDisabledKinds(kinds ...CollectionKind) Option {
	return func(ob *Observation) {
		for _, k := range kinds {
			if k.Valid() {
				ob.disabled[k].Store(true)
			}
		}
	}
}

// New creates an Observation. Without WithScheduler it owns a new
// Scheduler.
func New(opts ...Option) *Observation {
	ob := &Observation{
		observers: make(map[uint64]*CollectionObserver),
	}
	for _, opt := range opts {
		opt(ob)
	}
	if ob.logger == nil {
		ob.logger = slog.Default().With("component", "observation")
	}
	if ob.scheduler == nil {
		ob.scheduler = NewScheduler(WithSchedulerLogger(ob.logger))
	}
	return ob
}

// Scheduler returns the scheduler notifications are queued on.
func (ob *Observation) Scheduler() *Scheduler {
	return ob.scheduler
}

// GetCollectionObserver returns the observer of c, creating it on first
// use. A collection has at most one observer; if c is already observed
// through another Observation, that observer is returned.
func (ob *Observation) GetCollectionObserver(c Collection) *CollectionObserver {
	t := c.tracked()
	if t.observer != nil {
		return t.observer
	}

	o := &CollectionObserver{
		id:          NextID(),
		kind:        c.Kind(),
		collection:  c,
		observation: ob,
		indexMap:    NewIndexMap(c.Len()),
	}
	t.observer = o

	ob.observersMu.Lock()
	ob.observers[o.id] = o
	ob.observersMu.Unlock()

	if DebugMode {
		ob.logger.Debug("observer created", "observer", o.id, "kind", o.kind.String(), "len", c.Len())
	}
	return o
}

// Release detaches the observer from c. The collection becomes native and
// pending notifications are dropped. Returns false if c was not observed
// through this Observation.
func (ob *Observation) Release(c Collection) bool {
	t := c.tracked()
	o := t.observer
	if o == nil || o.observation != ob {
		return false
	}
	t.observer = nil
	o.pending = nil
	ob.scheduler.dequeue(o.id)

	ob.observersMu.Lock()
	delete(ob.observers, o.id)
	ob.observersMu.Unlock()
	return true
}

// Enable turns instrumentation on for kind. Idempotent; returns true if the
// state changed. Unknown kinds are ignored.
func (ob *Observation) Enable(kind CollectionKind) bool {
	if !kind.Valid() {
		return false
	}
	changed := ob.disabled[kind].CompareAndSwap(true, false)
	if changed {
		ob.logger.Info("observation enabled", "kind", kind.String())
	}
	return changed
}

// Disable turns instrumentation off for kind. Collections of that kind keep
// their native semantics and stop notifying. Idempotent; returns true if
// the state changed. Unknown kinds are ignored.
func (ob *Observation) Disable(kind CollectionKind) bool {
	if !kind.Valid() {
		return false
	}
	changed := ob.disabled[kind].CompareAndSwap(false, true)
	if changed {
		ob.logger.Info("observation disabled", "kind", kind.String())
	}
	return changed
}

// Enabled reports whether kind is instrumented. Unknown kinds are never
// instrumented.
func (ob *Observation) Enabled(kind CollectionKind) bool {
	if !kind.Valid() {
		return false
	}
	return !ob.disabled[kind].Load()
}

// ObserverCount returns the number of live observers.
func (ob *Observation) ObserverCount() int {
	ob.observersMu.Lock()
	defer ob.observersMu.Unlock()
	return len(ob.observers)
}

// ObserverInfo describes a live observer.
type ObserverInfo struct {
	ID          uint64 `json:"id"`
	Kind        string `json:"kind"`
	Enabled     bool   `json:"enabled"`
	Subscribers int    `json:"subscribers"`
}

// Observers lists live observers ordered by ID. It only reads fields that
// are safe to access while collections are mutated on another goroutine.
func (ob *Observation) Observers() []ObserverInfo {
	ob.observersMu.Lock()
	out := make([]ObserverInfo, 0, len(ob.observers))
	for _, o := range ob.observers {
		out = append(out, ObserverInfo{
			ID:          o.id,
			Kind:        o.kind.String(),
			Enabled:     ob.Enabled(o.kind),
			Subscribers: o.subs.len(),
		})
	}
	ob.observersMu.Unlock()

	slices.SortFunc(out, func(a, b ObserverInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}
