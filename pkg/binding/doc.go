// Package binding connects observed state to targets.
//
// A binding has a target, a source expression and a mode. It is created
// unbound, bound to a Scope and later unbound:
//
//	b := binding.NewPropertyBinding(ob, input, "value", binding.Access("name"), binding.TwoWay)
//	if err := b.Bind(scope); err != nil {
//	    return err
//	}
//	defer b.Unbind()
//
// Target updates are never applied inline. Bindings queue writes on the
// observation's scheduler and the writes run at the next Flush.
//
// # Behaviors
//
// A Behavior modifies a binding for the duration of one bind cycle. Wrap a
// binding in a BehaviorBinding to apply behaviors, usually resolved by name
// from a resource.Registry:
//
//	reg := resource.NewRegistry()
//	binding.RegisterStandard(reg)
//
//	lb := binding.NewListenerBinding(button, "click", onClick)
//	bb, err := binding.ResolveBehaviors(reg, lb, "self")
//
// The self behavior only lets events through whose innermost target is the
// bound element, so clicks on children of button are ignored.
package binding
