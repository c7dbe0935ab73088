package binding

import (
	"github.com/vango-dev/weave/internal/errors"
	"github.com/vango-dev/weave/pkg/observe"
)

// View is a rendered instance of a repeated template.
type View interface {
	// Bind points the view at an item and its position.
	Bind(item any, index int)

	// Dispose releases the view. It is not used afterwards.
	Dispose()
}

// ViewFactory creates views for new items.
type ViewFactory interface {
	Create() View
}

// ViewFactoryFunc adapts a function to ViewFactory.
type ViewFactoryFunc func() View

// Create calls f.
func (f ViewFactoryFunc) Create() View { return f() }

// ViewSlot is where repeated views are rendered, in order.
type ViewSlot interface {
	Render(views []View) error
}

// RepeatBinding renders one view per item of an observed collection.
//
// On each change it uses the index map to keep the views of surviving
// items, creates views for Changed slots and disposes the views of removed
// items. The slot is re-rendered once per flush.
type RepeatBinding struct {
	lifecycle

	id          uint64
	observation *observe.Observation
	items       observe.Collection
	observer    *observe.CollectionObserver
	factory     ViewFactory
	slot        ViewSlot

	views []View

	// stale is set when the views were built from a collection state the
	// next index map does not describe.
	stale bool
}

// NewRepeatBinding creates an unbound repeat binding over items.
func NewRepeatBinding(ob *observe.Observation, items observe.Collection, factory ViewFactory, slot ViewSlot) *RepeatBinding {
	return &RepeatBinding{
		id:          observe.NextID(),
		observation: ob,
		items:       items,
		factory:     factory,
		slot:        slot,
	}
}

// ID returns the binding's subscriber identity.
func (b *RepeatBinding) ID() uint64 { return b.id }

// Views returns the current views in item order.
func (b *RepeatBinding) Views() []View {
	out := make([]View, len(b.views))
	copy(out, b.views)
	return out
}

// Bind creates a view for every item and queues the first render.
func (b *RepeatBinding) Bind(scope *Scope) error {
	if err := b.begin(scope, "repeat"); err != nil {
		return err
	}
	b.observer = b.observation.GetCollectionObserver(b.items)
	b.stale = b.observer.PendingOps() > 0
	b.rebuild()
	b.observer.Subscribe(b)
	b.queueRender()
	return nil
}

// Unbind unsubscribes and disposes every view.
func (b *RepeatBinding) Unbind() {
	if !b.end() {
		return
	}
	b.observer.Unsubscribe(b)
	b.observer = nil
	for _, v := range b.views {
		v.Dispose()
	}
	b.views = nil
}

// HandleCollectionChange reconciles the views with the change's index map.
func (b *RepeatBinding) HandleCollectionChange(c *observe.Change) {
	if !b.bound {
		return
	}
	im := c.IndexMap
	switch {
	case b.stale, im == nil, c.Flags.Has(observe.FlagResync):
		b.stale = false
		b.rebuild()
	case im.Len() != b.items.Len():
		// An earlier subscriber mutated the collection during delivery. The
		// next change is relative to a state these views never saw.
		b.stale = true
		b.rebuild()
	default:
		b.reconcile(im)
	}
	b.queueRender()
}

func (b *RepeatBinding) reconcile(im *observe.IndexMap) {
	next := make([]View, im.Len())
	used := make([]bool, len(b.views))
	for i := range next {
		if e := im.At(i); e >= 0 && e < len(b.views) && !used[e] {
			next[i] = b.views[e]
			used[e] = true
		} else {
			next[i] = b.factory.Create()
		}
		next[i].Bind(b.items.ValueAt(i), i)
	}
	for i, v := range b.views {
		if !used[i] {
			v.Dispose()
		}
	}
	b.views = next
}

func (b *RepeatBinding) rebuild() {
	for _, v := range b.views {
		v.Dispose()
	}
	n := b.items.Len()
	b.views = make([]View, n)
	for i := range n {
		b.views[i] = b.factory.Create()
		b.views[i].Bind(b.items.ValueAt(i), i)
	}
}

func (b *RepeatBinding) queueRender() {
	b.observation.Scheduler().QueueWriteOnce(b.id, func() error {
		if !b.bound {
			return nil
		}
		if err := b.slot.Render(b.Views()); err != nil {
			return errors.FromError(err, "W005").WithSubject("repeat")
		}
		return nil
	})
}
