package binding

import "errors"

// ErrEventBindingRequired is returned when an event-only behavior such as
// self or once is applied to a binding without a target event or call
// source.
var ErrEventBindingRequired = errors.New("weave: behavior requires an event binding")

// ErrPropertyBindingRequired is returned when a mode behavior is applied to
// a binding that has no mode.
var ErrPropertyBindingRequired = errors.New("weave: behavior requires a property binding")

// ErrNotAssignable is returned when a from-view or two-way binding is bound
// to an expression that cannot be assigned.
var ErrNotAssignable = errors.New("weave: expression is not assignable")

// ErrAlreadyBound is returned when Bind is called on a bound binding.
var ErrAlreadyBound = errors.New("weave: binding already bound")
