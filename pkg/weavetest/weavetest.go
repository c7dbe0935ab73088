package weavetest

import (
	"slices"
	"sync"
	"testing"

	"github.com/vango-dev/weave/pkg/binding"
	"github.com/vango-dev/weave/pkg/observe"
)

// Recorder is an observe.Subscriber that records every change.
type Recorder struct {
	id      uint64
	mu      sync.Mutex
	changes []*observe.Change
}

// NewRecorder creates a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{id: observe.NextID()}
}

// Observe subscribes a new Recorder to the observer of c.
func Observe(ob *observe.Observation, c observe.Collection) *Recorder {
	r := NewRecorder()
	ob.GetCollectionObserver(c).Subscribe(r)
	return r
}

// ID returns the subscriber identity.
func (r *Recorder) ID() uint64 { return r.id }

// HandleCollectionChange records c.
func (r *Recorder) HandleCollectionChange(c *observe.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

// Count returns the number of recorded changes.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

// Changes returns the recorded changes.
func (r *Recorder) Changes() []*observe.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.changes)
}

// Last returns the most recent change, or nil.
func (r *Recorder) Last() *observe.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return nil
	}
	return r.changes[len(r.changes)-1]
}

// Reset forgets the recorded changes.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = nil
}

// MustFlush flushes ob's scheduler and fails the test on error.
func MustFlush(t testing.TB, ob *observe.Observation) {
	t.Helper()
	if err := ob.Scheduler().Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}

// ExpectOps fails the test unless c carries exactly the named operations.
func ExpectOps(t testing.TB, c *observe.Change, ops ...string) {
	t.Helper()
	if c == nil {
		t.Fatalf("expected change with ops %v, got none", ops)
	}
	if got := c.OpNames(); !slices.Equal(got, ops) {
		t.Errorf("ops = %v, want %v", got, ops)
	}
}

// ExpectIndexMap fails the test unless c's index map has the given entries.
func ExpectIndexMap(t testing.TB, c *observe.Change, entries ...int) {
	t.Helper()
	if c == nil || c.IndexMap == nil {
		t.Fatalf("expected index map %v, got none", entries)
	}
	if got := c.IndexMap.Entries(); !slices.Equal(got, entries) {
		t.Errorf("index map = %v, want %v", got, entries)
	}
}

// Element is an in-memory binding.Element with a parent chain and
// listeners.
type Element struct {
	id        uint64
	Tag       string
	parent    *Element
	children  []*Element
	props     map[string]any
	listeners []*binding.ListenerBinding

	// SetErr, if set, is returned by SetProperty.
	SetErr error
}

// NewElement creates a detached element.
func NewElement(tag string) *Element {
	return &Element{
		id:    observe.NextID(),
		Tag:   tag,
		props: make(map[string]any),
	}
}

// NodeID returns the element identity.
func (e *Element) NodeID() uint64 { return e.id }

// AppendChild attaches child and returns it.
func (e *Element) AppendChild(child *Element) *Element {
	child.parent = e
	e.children = append(e.children, child)
	return child
}

// Parent returns the parent element, or nil.
func (e *Element) Parent() *Element { return e.parent }

// Property returns a property value.
func (e *Element) Property(name string) any { return e.props[name] }

// SetProperty sets a property value.
func (e *Element) SetProperty(name string, v any) error {
	if e.SetErr != nil {
		return e.SetErr
	}
	e.props[name] = v
	return nil
}

// Listen attaches a listener binding to e.
func (e *Element) Listen(lb *binding.ListenerBinding) {
	e.listeners = append(e.listeners, lb)
}

// Dispatch dispatches an event of type typ on e. The event bubbles to the
// root and every listener on the path sees it. The first listener error is
// returned.
func (e *Element) Dispatch(typ string) error {
	ev := NewEvent(typ, e.path()...)
	var first error
	for cur := e; cur != nil; cur = cur.parent {
		for _, lb := range cur.listeners {
			if err := lb.HandleEvent(ev); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

func (e *Element) path() []binding.EventTarget {
	var path []binding.EventTarget
	for cur := e; cur != nil; cur = cur.parent {
		path = append(path, cur)
	}
	return path
}

// Event is a binding.Event with a fixed composed path.
type Event struct {
	typ  string
	path []binding.EventTarget
}

// NewEvent creates an event. path lists targets innermost first.
func NewEvent(typ string, path ...binding.EventTarget) *Event {
	return &Event{typ: typ, path: path}
}

// Type returns the event type.
func (e *Event) Type() string { return e.typ }

// ComposedPath returns the propagation path.
func (e *Event) ComposedPath() []binding.EventTarget {
	return slices.Clone(e.path)
}

// View is a recording binding.View.
type View struct {
	Serial   int
	Item     any
	Index    int
	Binds    int
	Disposed bool
}

// Bind records the item and index.
func (v *View) Bind(item any, index int) {
	v.Item = item
	v.Index = index
	v.Binds++
}

// Dispose marks the view disposed.
func (v *View) Dispose() { v.Disposed = true }

// ViewFactory creates Views with increasing serial numbers.
type ViewFactory struct {
	Created []*View
}

// Create returns a new View.
func (f *ViewFactory) Create() binding.View {
	v := &View{Serial: len(f.Created)}
	f.Created = append(f.Created, v)
	return v
}

// Slot is a binding.ViewSlot that keeps the last render.
type Slot struct {
	Renders int
	Views   []binding.View

	// Err, if set, is returned by Render.
	Err error
}

// Render records views.
func (s *Slot) Render(views []binding.View) error {
	if s.Err != nil {
		return s.Err
	}
	s.Renders++
	s.Views = views
	return nil
}

// Items returns the items of the last render in order.
func (s *Slot) Items() []any {
	items := make([]any, len(s.Views))
	for i, v := range s.Views {
		items[i] = v.(*View).Item
	}
	return items
}
