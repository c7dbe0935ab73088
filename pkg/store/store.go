// Package store provides a reducer-style state container whose change
// notifications are delivered through the observe flush scheduler.
//
//	type Counter struct{ N int }
//
//	s := store.New(Counter{}, store.WithScheduler(ob.Scheduler()))
//	s.RegisterAction("inc", func(c Counter, _ store.Action) (Counter, error) {
//	    c.N++
//	    return c, nil
//	})
//	unsubscribe := s.Subscribe(store.NewSubscriberFunc(func(state, prev Counter) {
//	    fmt.Println(prev.N, "->", state.N)
//	}))
//	defer unsubscribe()
//
//	s.Dispatch(store.Action{Type: "inc"})
//	s.Dispatch(store.Action{Type: "inc"})
//	ob.Scheduler().Flush() // prints "0 -> 2"
package store

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/vango-dev/weave/internal/errors"
	"github.com/vango-dev/weave/pkg/observe"
	"github.com/vango-dev/weave/pkg/resource"
)

// ActionKind is the resource kind action handlers are registered under.
const ActionKind resource.Kind = "store-action"

// ErrUnknownAction is wrapped by W030 when an action has no handler.
var ErrUnknownAction = stderrors.New("weave: unknown store action")

// Action is a dispatched state transition.
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Handler reduces the current state and an action to the next state.
type Handler[T any] func(state T, action Action) (T, error)

// Subscriber is notified of state changes.
type Subscriber[T any] interface {
	HandleStateChange(state, prev T)
}

// SubscriberFunc adapts a function to Subscriber. Function values have no
// identity, so Unsubscribe cannot find a SubscriberFunc; use the handle
// returned by Subscribe or wrap the function with NewSubscriberFunc.
type SubscriberFunc[T any] func(state, prev T)

// HandleStateChange calls f.
func (f SubscriberFunc[T]) HandleStateChange(state, prev T) { f(state, prev) }

// FuncSubscriber is a function subscriber with pointer identity.
type FuncSubscriber[T any] struct {
	fn func(state, prev T)
}

// NewSubscriberFunc wraps fn in a subscriber that Subscribe deduplicates
// and Unsubscribe removes.
func NewSubscriberFunc[T any](fn func(state, prev T)) *FuncSubscriber[T] {
	return &FuncSubscriber[T]{fn: fn}
}

// HandleStateChange calls the wrapped function.
func (f *FuncSubscriber[T]) HandleStateChange(state, prev T) { f.fn(state, prev) }

// Inspector is the type-independent view of a store used by devtools.
type Inspector interface {
	Name() string
	Dispatched() uint64
	MarshalState() ([]byte, error)
}

type options struct {
	name      string
	scheduler *observe.Scheduler
	registry  *resource.Registry
	persister Persister
	logger    *slog.Logger
}

// Option configures a Store.
type Option func(*options)

// WithName sets the store name. It is used as the snapshot key.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithScheduler sets the scheduler notifications are delivered through.
func WithScheduler(s *observe.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

// WithRegistry registers actions in a shared registry.
func WithRegistry(r *resource.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithPersister enables Snapshot and Restore.
func WithPersister(p Persister) Option {
	return func(o *options) { o.persister = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Store holds a state value of type T.
//
// Dispatch applies handlers synchronously. Subscribers are notified at the
// next flush of the scheduler, once per flush: prev is the state before the
// first dispatch since the last notification.
type Store[T any] struct {
	id   uint64
	opts options

	mu      sync.Mutex
	state   T
	prev    T
	pending bool
	subs    []subscription[T]
	nextSub uint64

	dispatched atomic.Uint64
}

// New creates a store holding initial.
func New[T any](initial T, opts ...Option) *Store[T] {
	o := options{name: "default"}
	for _, opt := range opts {
		opt(&o)
	}
	if o.scheduler == nil {
		o.scheduler = observe.NewScheduler()
	}
	if o.registry == nil {
		o.registry = resource.NewRegistry()
	}
	if o.logger == nil {
		o.logger = slog.Default().With("component", "store")
	}
	o.logger = o.logger.With("store", o.name)

	return &Store[T]{
		id:    observe.NextID(),
		opts:  o,
		state: initial,
	}
}

// Name returns the store name.
func (s *Store[T]) Name() string { return s.opts.name }

// Dispatched returns the number of successful dispatches.
func (s *Store[T]) Dispatched() uint64 { return s.dispatched.Load() }

// GetState returns the current state.
func (s *Store[T]) GetState() T {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// MarshalState returns the current state as JSON.
func (s *Store[T]) MarshalState() ([]byte, error) {
	return json.Marshal(s.GetState())
}

type subscription[T any] struct {
	id  uint64
	sub Subscriber[T]
}

// Subscribe registers sub and returns a function that removes it.
// Subscribing a comparable subscriber twice has no effect and returns a
// handle to the existing registration.
func (s *Store[T]) Subscribe(sub Subscriber[T]) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.subs {
		if sameSubscriber(existing.sub, sub) {
			return s.unsubscribeFunc(existing.id)
		}
	}
	s.nextSub++
	s.subs = append(s.subs, subscription[T]{id: s.nextSub, sub: sub})
	return s.unsubscribeFunc(s.nextSub)
}

func (s *Store[T]) unsubscribeFunc(id uint64) func() {
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.removeSubscription(func(e subscription[T]) bool { return e.id == id })
	}
}

// Unsubscribe removes sub. Subscribers without identity, such as a
// SubscriberFunc, are only removed through the handle Subscribe returned.
func (s *Store[T]) Unsubscribe(sub Subscriber[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeSubscription(func(e subscription[T]) bool { return sameSubscriber(e.sub, sub) })
}

// removeSubscription drops the first registration matching match. s.mu is
// held.
func (s *Store[T]) removeSubscription(match func(subscription[T]) bool) {
	for i, e := range s.subs {
		if match(e) {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			return
		}
	}
}

// RegisterAction registers the handler for actions of type name.
// Registering a name twice returns W021.
func (s *Store[T]) RegisterAction(name string, h Handler[T]) error {
	return s.opts.registry.Register(ActionKind, s.actionKey(name), h)
}

// Dispatch applies the handler registered for action.Type. On error the
// state is left unchanged. Handlers run with the store locked and must not
// call back into it.
func (s *Store[T]) Dispatch(action Action) error {
	h, err := resource.Resolve[Handler[T]](s.opts.registry, ActionKind, s.actionKey(action.Type))
	if err != nil {
		if stderrors.Is(err, resource.ErrNotFound) {
			return errors.New("W030").WithSubject(action.Type).Wrap(ErrUnknownAction)
		}
		return err
	}

	s.mu.Lock()
	next, err := h(s.state, action)
	if err != nil {
		s.mu.Unlock()
		return errors.New("W031").WithSubject(action.Type).Wrap(err)
	}
	s.replace(next)
	s.mu.Unlock()

	s.dispatched.Add(1)
	s.opts.logger.Debug("action dispatched", "action", action.Type)
	return nil
}

// replace swaps the state and schedules a notification. s.mu is held.
func (s *Store[T]) replace(next T) {
	if !s.pending {
		s.prev = s.state
		s.pending = true
	}
	s.state = next
	s.opts.scheduler.QueueWriteOnce(s.id, s.notify)
}

func (s *Store[T]) notify() error {
	s.mu.Lock()
	if !s.pending {
		s.mu.Unlock()
		return nil
	}
	state, prev := s.state, s.prev
	s.pending = false
	var zero T
	s.prev = zero
	subs := make([]Subscriber[T], len(s.subs))
	for i, e := range s.subs {
		subs[i] = e.sub
	}
	s.mu.Unlock()

	for _, sub := range subs {
		sub.HandleStateChange(state, prev)
	}
	return nil
}

// Snapshot writes the current state to the persister as JSON.
func (s *Store[T]) Snapshot(ctx context.Context) error {
	if s.opts.persister == nil {
		return errors.New("W032").WithSubject(s.opts.name).WithDetail("No persister configured.")
	}
	data, err := s.MarshalState()
	if err != nil {
		return errors.New("W032").WithSubject(s.opts.name).Wrap(err)
	}
	if err := s.opts.persister.Save(ctx, s.snapshotKey(), data); err != nil {
		return errors.New("W032").WithSubject(s.opts.name).Wrap(err)
	}
	s.opts.logger.Info("state snapshot saved", "bytes", len(data))
	return nil
}

// Restore replaces the state with the persisted snapshot. Subscribers are
// notified at the next flush.
func (s *Store[T]) Restore(ctx context.Context) error {
	if s.opts.persister == nil {
		return errors.New("W033").WithSubject(s.opts.name).WithDetail("No persister configured.")
	}
	data, err := s.opts.persister.Load(ctx, s.snapshotKey())
	if err != nil {
		return errors.New("W033").WithSubject(s.opts.name).Wrap(err)
	}
	var next T
	if err := json.Unmarshal(data, &next); err != nil {
		return errors.New("W033").WithSubject(s.opts.name).Wrap(err)
	}

	s.mu.Lock()
	s.replace(next)
	s.mu.Unlock()
	s.opts.logger.Info("state restored", "bytes", len(data))
	return nil
}

func (s *Store[T]) actionKey(name string) string {
	return s.opts.name + "/" + name
}

func (s *Store[T]) snapshotKey() string {
	return s.opts.name + ".json"
}

// sameSubscriber compares subscribers whose dynamic types are comparable.
// Function subscribers are never equal.
func sameSubscriber[T any](a, b Subscriber[T]) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta == nil || ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
