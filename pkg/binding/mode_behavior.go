package binding

import (
	"sync"

	"github.com/vango-dev/weave/internal/errors"
)

// ModeBehavior overrides the mode of a property binding for one bind cycle.
type ModeBehavior struct {
	mode Mode

	mu    sync.Mutex
	saved map[ModeBinding]Mode
}

// NewModeBehavior creates a behavior that forces mode.
func NewModeBehavior(mode Mode) *ModeBehavior {
	return &ModeBehavior{mode: mode, saved: make(map[ModeBinding]Mode)}
}

// Bind sets the mode of b, remembering the original.
func (m *ModeBehavior) Bind(_ *Scope, b Binding) error {
	mb, ok := b.(ModeBinding)
	if !ok {
		return errors.New("W002").WithSubject(m.mode.String()).Wrap(ErrPropertyBindingRequired)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saved[mb]; !ok {
		m.saved[mb] = mb.Mode()
	}
	mb.SetMode(m.mode)
	return nil
}

// Unbind restores the original mode of b.
func (m *ModeBehavior) Unbind(_ *Scope, b Binding) {
	mb, ok := b.(ModeBinding)
	if !ok {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if original, ok := m.saved[mb]; ok {
		mb.SetMode(original)
		delete(m.saved, mb)
	}
}
