package binding

// OnceBehavior lets the first event of each bind cycle through and ignores
// the rest.
type OnceBehavior struct {
	swap callSourceSwap
}

// NewOnceBehavior creates a once behavior.
func NewOnceBehavior() *OnceBehavior {
	return &OnceBehavior{}
}

// Bind wraps the call source of b.
func (o *OnceBehavior) Bind(_ *Scope, b Binding) error {
	eb, err := requireEventBinding(b, "once")
	if err != nil {
		return err
	}
	o.swap.wrap(eb, func(original CallSource) CallSource {
		fired := false
		return func(ev Event) error {
			if fired {
				return nil
			}
			fired = true
			return original(ev)
		}
	})
	return nil
}

// Unbind restores the original call source of b.
func (o *OnceBehavior) Unbind(_ *Scope, b Binding) {
	if eb, ok := b.(EventBinding); ok {
		o.swap.restore(eb)
	}
}
