package binding

// EventTarget is a node events can be dispatched to. Two targets are the
// same node if their NodeIDs are equal.
type EventTarget interface {
	NodeID() uint64
}

// Event is a dispatched event as supplied by the host environment.
type Event interface {
	// Type returns the event name, e.g. "click".
	Type() string

	// ComposedPath returns the propagation path, innermost target first.
	ComposedPath() []EventTarget
}

// Element is a target whose properties bindings can read and write.
type Element interface {
	EventTarget
	Property(name string) any
	SetProperty(name string, v any) error
}
