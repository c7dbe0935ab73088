package binding

// Mode is the direction values flow through a property binding.
type Mode uint8

const (
	// ToView updates the target whenever the source changes.
	ToView Mode = iota

	// OneTime updates the target once, when the binding is bound.
	OneTime

	// FromView writes target changes back to the source.
	FromView

	// TwoWay combines ToView and FromView.
	TwoWay
)

// String returns the name used in templates, e.g. "twoWay".
func (m Mode) String() string {
	switch m {
	case ToView:
		return "toView"
	case OneTime:
		return "oneTime"
	case FromView:
		return "fromView"
	case TwoWay:
		return "twoWay"
	default:
		return "unknown"
	}
}

// ParseMode returns the mode named s.
func ParseMode(s string) (Mode, bool) {
	for _, m := range []Mode{ToView, OneTime, FromView, TwoWay} {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

func (m Mode) updatesTarget() bool {
	return m != FromView
}

func (m Mode) observesSource() bool {
	return m == ToView || m == TwoWay
}

func (m Mode) updatesSource() bool {
	return m == FromView || m == TwoWay
}
