package binding

import (
	"fmt"

	"github.com/vango-dev/weave/internal/errors"
)

// CallSource handles a dispatched event.
type CallSource func(ev Event) error

// ListenerBinding binds an event of its target to an expression. When the
// event is dispatched the expression is evaluated with the event available
// as "$event".
type ListenerBinding struct {
	lifecycle

	target     EventTarget
	event      string
	expr       Expression
	callSource CallSource
}

// NewListenerBinding creates an unbound listener binding.
func NewListenerBinding(target EventTarget, event string, expr Expression) *ListenerBinding {
	b := &ListenerBinding{
		target: target,
		event:  event,
		expr:   expr,
	}
	b.callSource = b.invoke
	return b
}

// Target returns the element the listener is attached to.
func (b *ListenerBinding) Target() EventTarget { return b.target }

// TargetEvent returns the event name.
func (b *ListenerBinding) TargetEvent() string { return b.event }

// CallSource returns the current event handler.
func (b *ListenerBinding) CallSource() CallSource { return b.callSource }

// SetCallSource replaces the event handler.
func (b *ListenerBinding) SetCallSource(fn CallSource) { b.callSource = fn }

// Bind binds to scope.
func (b *ListenerBinding) Bind(scope *Scope) error {
	return b.begin(scope, b.subject())
}

// Unbind stops handling events.
func (b *ListenerBinding) Unbind() {
	b.end()
}

// HandleEvent is called by the host for every event dispatched to or
// bubbling through the target. Events of other types and events arriving
// while unbound are ignored.
func (b *ListenerBinding) HandleEvent(ev Event) error {
	if !b.bound || ev.Type() != b.event {
		return nil
	}
	return b.callSource(ev)
}

func (b *ListenerBinding) invoke(ev Event) error {
	if b.expr == nil {
		return nil
	}
	if _, err := b.expr.Evaluate(b.scope.With("$event", ev)); err != nil {
		return errors.New("W005").WithSubject(b.subject()).Wrap(err)
	}
	return nil
}

func (b *ListenerBinding) subject() string {
	return fmt.Sprintf("%s (node %d)", b.event, b.target.NodeID())
}
