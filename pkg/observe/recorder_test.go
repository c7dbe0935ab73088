package observe

import (
	"sync"
	"testing"
)

// recorder is a Subscriber that keeps every change it receives.
type recorder struct {
	id       uint64
	mu       sync.Mutex
	changes  []*Change
	onChange func(*Change)
}

func newRecorder() *recorder {
	return &recorder{id: NextID()}
}

func (r *recorder) ID() uint64 { return r.id }

func (r *recorder) HandleCollectionChange(c *Change) {
	r.mu.Lock()
	r.changes = append(r.changes, c)
	fn := r.onChange
	r.mu.Unlock()
	if fn != nil {
		fn(c)
	}
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.changes)
}

func (r *recorder) last() *Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.changes) == 0 {
		return nil
	}
	return r.changes[len(r.changes)-1]
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = nil
}

// observed wires a fresh Observation, an observer for c and a recorder.
func observed(c Collection, opts ...Option) (*Observation, *CollectionObserver, *recorder) {
	ob := New(opts...)
	o := ob.GetCollectionObserver(c)
	rec := newRecorder()
	o.Subscribe(rec)
	return ob, o, rec
}

func mustFlush(t testing.TB, ob *Observation) {
	t.Helper()
	if err := ob.Scheduler().Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
}
