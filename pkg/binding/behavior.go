package binding

import (
	"sync"

	"github.com/vango-dev/weave/pkg/resource"
)

// Resource kinds registered by this package.
const (
	BehaviorKind  resource.Kind = "binding-behavior"
	ConverterKind resource.Kind = "value-converter"
)

// Behavior modifies a binding for one bind cycle. Bind runs before the
// binding is bound and Unbind after it is unbound. A Behavior may be shared
// by many bindings.
type Behavior interface {
	Bind(scope *Scope, b Binding) error
	Unbind(scope *Scope, b Binding)
}

// BehaviorBinding decorates a binding with behaviors.
type BehaviorBinding struct {
	lifecycle

	inner     Binding
	behaviors []Behavior
}

// NewBehaviorBinding wraps inner. Behaviors are bound in order and unbound
// in reverse order.
func NewBehaviorBinding(inner Binding, behaviors ...Behavior) *BehaviorBinding {
	return &BehaviorBinding{inner: inner, behaviors: behaviors}
}

// ResolveBehaviors wraps inner with the behaviors registered under names.
func ResolveBehaviors(reg *resource.Registry, inner Binding, names ...string) (*BehaviorBinding, error) {
	behaviors := make([]Behavior, 0, len(names))
	for _, name := range names {
		bh, err := resource.Resolve[Behavior](reg, BehaviorKind, name)
		if err != nil {
			return nil, err
		}
		behaviors = append(behaviors, bh)
	}
	return NewBehaviorBinding(inner, behaviors...), nil
}

// ResolveConverter returns the value converter registered under name.
func ResolveConverter(reg *resource.Registry, name string) (ValueConverter, error) {
	return resource.Resolve[ValueConverter](reg, ConverterKind, name)
}

// Inner returns the decorated binding.
func (bb *BehaviorBinding) Inner() Binding { return bb.inner }

// Bind binds the behaviors, then the inner binding. If any step fails the
// steps already taken are undone and the error is returned.
func (bb *BehaviorBinding) Bind(scope *Scope) error {
	if err := bb.begin(scope, "behavior"); err != nil {
		return err
	}
	scope = bb.scope

	for i, bh := range bb.behaviors {
		if err := bh.Bind(scope, bb.inner); err != nil {
			bb.unbindBehaviors(scope, i)
			bb.end()
			if DebugMode {
				logger.Debug("behavior bind failed", "error", err)
			}
			return err
		}
	}
	if err := bb.inner.Bind(scope); err != nil {
		bb.unbindBehaviors(scope, len(bb.behaviors))
		bb.end()
		return err
	}
	return nil
}

// Unbind unbinds the inner binding, then the behaviors in reverse order.
func (bb *BehaviorBinding) Unbind() {
	scope := bb.scope
	if !bb.end() {
		return
	}
	bb.inner.Unbind()
	bb.unbindBehaviors(scope, len(bb.behaviors))
}

func (bb *BehaviorBinding) unbindBehaviors(scope *Scope, n int) {
	for i := n - 1; i >= 0; i-- {
		bb.behaviors[i].Unbind(scope, bb.inner)
	}
}

// RegisterStandard registers the built-in behaviors: self, once, oneTime,
// toView, fromView and twoWay.
func RegisterStandard(reg *resource.Registry) error {
	std := map[string]Behavior{
		"self": NewSelfBehavior(),
		"once": NewOnceBehavior(),
	}
	for _, m := range []Mode{OneTime, ToView, FromView, TwoWay} {
		std[m.String()] = NewModeBehavior(m)
	}
	for _, name := range []string{"self", "once", "oneTime", "toView", "fromView", "twoWay"} {
		if err := reg.Register(BehaviorKind, name, std[name]); err != nil {
			return err
		}
	}
	return nil
}

// callSourceSwap remembers the original call sources of the event bindings
// a behavior has wrapped.
type callSourceSwap struct {
	mu        sync.Mutex
	originals map[EventBinding]CallSource
}

// wrap replaces the call source of eb with wrap(original). If eb is
// already wrapped by this behavior nothing changes.
func (s *callSourceSwap) wrap(eb EventBinding, wrap func(original CallSource) CallSource) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.originals == nil {
		s.originals = make(map[EventBinding]CallSource)
	}
	if _, ok := s.originals[eb]; ok {
		return
	}
	original := eb.CallSource()
	s.originals[eb] = original
	eb.SetCallSource(wrap(original))
}

// restore puts back the original call source of eb.
func (s *callSourceSwap) restore(eb EventBinding) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.originals[eb]
	if !ok {
		return
	}
	delete(s.originals, eb)
	eb.SetCallSource(original)
}

// wrapped reports how many bindings are currently wrapped.
func (s *callSourceSwap) wrapped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.originals)
}
