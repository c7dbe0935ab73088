package binding

import (
	"log/slog"

	"github.com/vango-dev/weave/internal/errors"
)

// Binding is the lifecycle shared by all bindings. A binding starts
// unbound, is bound to a scope and may be unbound and bound again.
type Binding interface {
	Bind(scope *Scope) error
	Unbind()
	IsBound() bool
}

// EventBinding is a binding that dispatches events of one type to a call
// source. Behaviors such as self and once swap the call source while
// bound.
type EventBinding interface {
	Binding
	Target() EventTarget
	TargetEvent() string
	CallSource() CallSource
	SetCallSource(fn CallSource)
}

// ModeBinding is a binding whose mode can be changed before it is bound.
type ModeBinding interface {
	Binding
	Mode() Mode
	SetMode(m Mode)
}

// DebugMode enables debug logging for bindings and behaviors.
var DebugMode bool

var logger = slog.Default().With("component", "binding")

// lifecycle tracks the bound state and scope of a binding.
type lifecycle struct {
	scope *Scope
	bound bool
}

func (l *lifecycle) begin(scope *Scope, subject string) error {
	if l.bound {
		return errors.New("W004").WithSubject(subject).Wrap(ErrAlreadyBound)
	}
	if scope == nil {
		scope = NewScope(nil)
	}
	l.scope = scope
	l.bound = true
	return nil
}

func (l *lifecycle) end() bool {
	if !l.bound {
		return false
	}
	l.bound = false
	l.scope = nil
	return true
}

// IsBound reports whether the binding is bound.
func (l *lifecycle) IsBound() bool {
	return l.bound
}

// Scope returns the scope the binding is bound to, or nil.
func (l *lifecycle) Scope() *Scope {
	return l.scope
}
