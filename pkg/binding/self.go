package binding

import (
	"github.com/vango-dev/weave/internal/errors"
)

// SelfBehavior lets an event through only if it was dispatched on the
// bound element itself. Events bubbling up from descendants are ignored.
//
// It can only be applied to event bindings; binding anything else fails
// with W001.
type SelfBehavior struct {
	swap callSourceSwap
}

// NewSelfBehavior creates a self behavior. One instance can serve any
// number of bindings.
func NewSelfBehavior() *SelfBehavior {
	return &SelfBehavior{}
}

// Bind wraps the call source of b.
func (s *SelfBehavior) Bind(_ *Scope, b Binding) error {
	eb, err := requireEventBinding(b, "self")
	if err != nil {
		return err
	}
	target := eb.Target()
	s.swap.wrap(eb, func(original CallSource) CallSource {
		return func(ev Event) error {
			path := ev.ComposedPath()
			if len(path) == 0 || path[0] == nil || path[0].NodeID() != target.NodeID() {
				return nil
			}
			return original(ev)
		}
	})
	return nil
}

// Unbind restores the original call source of b.
func (s *SelfBehavior) Unbind(_ *Scope, b Binding) {
	if eb, ok := b.(EventBinding); ok {
		s.swap.restore(eb)
	}
}

// Wrapped returns the number of bindings currently wrapped.
func (s *SelfBehavior) Wrapped() int {
	return s.swap.wrapped()
}

func requireEventBinding(b Binding, behavior string) (EventBinding, error) {
	eb, ok := b.(EventBinding)
	if !ok || eb.TargetEvent() == "" || eb.CallSource() == nil {
		return nil, errors.New("W001").
			WithSubject(behavior).
			WithSuggestion("Apply " + behavior + " to a ListenerBinding.").
			Wrap(ErrEventBindingRequired)
	}
	return eb, nil
}
