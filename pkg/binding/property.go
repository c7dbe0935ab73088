package binding

import (
	"fmt"

	"github.com/vango-dev/weave/internal/errors"
	"github.com/vango-dev/weave/pkg/observe"
)

// ValueConverter transforms values between the source and the target.
type ValueConverter interface {
	ToView(v any) (any, error)
	FromView(v any) (any, error)
}

// PropertyBinding binds an expression to a property of an Element.
//
// Depending on its mode it pushes source values into the target, pushes
// target values back into the source, or both. The binding re-evaluates
// when one of its source collections changes; it is an observe.Subscriber
// of their observers.
type PropertyBinding struct {
	lifecycle

	id          uint64
	observation *observe.Observation
	target      Element
	property    string
	expr        Expression
	mode        Mode
	converter   ValueConverter

	sources   []observe.Collection
	observers []*observe.CollectionObserver
}

// PropertyOption configures a PropertyBinding.
type PropertyOption func(*PropertyBinding)

// WithConverter sets the value converter.
func WithConverter(c ValueConverter) PropertyOption {
	return func(b *PropertyBinding) {
		b.converter = c
	}
}

// WithSources sets the collections the expression reads. The binding
// updates its target whenever one of them changes.
func WithSources(sources ...observe.Collection) PropertyOption {
	return func(b *PropertyBinding) {
		b.sources = append(b.sources, sources...)
	}
}

// NewPropertyBinding creates an unbound property binding.
func NewPropertyBinding(ob *observe.Observation, target Element, property string, expr Expression, mode Mode, opts ...PropertyOption) *PropertyBinding {
	b := &PropertyBinding{
		id:          observe.NextID(),
		observation: ob,
		target:      target,
		property:    property,
		expr:        expr,
		mode:        mode,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ID returns the binding's subscriber identity.
func (b *PropertyBinding) ID() uint64 { return b.id }

// Target returns the bound element.
func (b *PropertyBinding) Target() EventTarget { return b.target }

// Property returns the target property name.
func (b *PropertyBinding) Property() string { return b.property }

// Mode returns the binding mode.
func (b *PropertyBinding) Mode() Mode { return b.mode }

// SetMode changes the mode. It takes effect at the next Bind.
func (b *PropertyBinding) SetMode(m Mode) { b.mode = m }

// Bind binds to scope. Unless the mode is FromView the target is updated at
// the next flush.
func (b *PropertyBinding) Bind(scope *Scope) error {
	if b.mode.updatesSource() {
		if _, ok := b.expr.(Assignable); !ok {
			return errors.New("W003").WithSubject(b.subject()).Wrap(ErrNotAssignable)
		}
	}
	if err := b.begin(scope, b.subject()); err != nil {
		return err
	}

	if b.mode.observesSource() {
		for _, c := range b.sources {
			o := b.observation.GetCollectionObserver(c)
			o.Subscribe(b)
			b.observers = append(b.observers, o)
		}
	}
	if b.mode.updatesTarget() {
		b.queueUpdate()
	}
	return nil
}

// Unbind unsubscribes from the sources. A queued target update is dropped.
func (b *PropertyBinding) Unbind() {
	if !b.end() {
		return
	}
	for _, o := range b.observers {
		o.Unsubscribe(b)
	}
	b.observers = nil
}

// HandleCollectionChange queues a target update.
func (b *PropertyBinding) HandleCollectionChange(*observe.Change) {
	if !b.bound {
		return
	}
	b.queueUpdate()
}

// UpdateSource writes a target value back to the source expression. The
// host calls it when the target property changes. It is a no-op unless the
// mode is FromView or TwoWay.
func (b *PropertyBinding) UpdateSource(v any) error {
	if !b.bound || !b.mode.updatesSource() {
		return nil
	}
	if b.converter != nil {
		var err error
		if v, err = b.converter.FromView(v); err != nil {
			return errors.New("W005").WithSubject(b.subject()).Wrap(err)
		}
	}
	if err := b.expr.(Assignable).Assign(b.scope, v); err != nil {
		return errors.New("W005").WithSubject(b.subject()).Wrap(err)
	}
	return nil
}

func (b *PropertyBinding) queueUpdate() {
	b.observation.Scheduler().QueueWriteOnce(b.id, b.updateTarget)
}

// updateTarget evaluates the expression and writes the target property.
func (b *PropertyBinding) updateTarget() error {
	if !b.bound {
		return nil
	}
	v, err := b.expr.Evaluate(b.scope)
	if err != nil {
		return errors.New("W005").WithSubject(b.subject()).Wrap(err)
	}
	if b.converter != nil {
		if v, err = b.converter.ToView(v); err != nil {
			return errors.New("W005").WithSubject(b.subject()).Wrap(err)
		}
	}
	if DebugMode {
		logger.Debug("target updated", "binding", b.id, "property", b.property)
	}
	return b.target.SetProperty(b.property, v)
}

func (b *PropertyBinding) subject() string {
	return fmt.Sprintf("%s.%s (node %d)", b.mode, b.property, b.target.NodeID())
}
