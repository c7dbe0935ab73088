package observe

import (
	"log/slog"
	"sync"
	"time"

	"github.com/vango-dev/weave/internal/errors"
)

// DebugMode enables debug logging throughout the observe package.
// This should be set at startup and not changed during runtime.
var DebugMode bool

// DefaultMaxFlushIterations bounds how many times a flush may loop because
// subscribers or writes produced new work.
const DefaultMaxFlushIterations = 100

// WriteFunc is a deferred target update. It runs during Flush after all
// queued sources of the current iteration have been delivered.
type WriteFunc func() error

// Delivery describes one source delivery inside a flush.
type Delivery struct {
	SourceID    uint64         `json:"sourceId"`
	Kind        CollectionKind `json:"kind"`
	Ops         []string       `json:"ops"`
	IndexMap    []int          `json:"indexMap,omitempty"`
	Deleted     int            `json:"deleted"`
	Subscribers int            `json:"subscribers"`
}

// FlushStats summarizes a completed (or failed) flush.
type FlushStats struct {
	Started       time.Time
	Duration      time.Duration
	Iterations    int
	Deliveries    []Delivery
	Notifications int
	Writes        int

	// Err is the error Flush returned, if any.
	Err error

	// Panicked is true when a subscriber or write panicked. Hooks run
	// while the panic unwinds; it keeps propagating afterwards.
	Panicked bool
}

// FlushHook observes completed flushes. Hooks run synchronously at the end
// of Flush.
type FlushHook interface {
	FlushCompleted(stats FlushStats)
}

// FlushHookFunc adapts a function to FlushHook.
type FlushHookFunc func(stats FlushStats)

// FlushCompleted calls f.
func (f FlushHookFunc) FlushCompleted(stats FlushStats) { f(stats) }

// source is a queued notification producer.
type source interface {
	sourceID() uint64
	deliver(flags Flags) Delivery
}

type queuedSource struct {
	src   source
	flags Flags
}

type queuedWrite struct {
	id uint64
	fn WriteFunc
}

// Scheduler batches notifications and writes into a single synchronous
// flush point.
//
// Sources are delivered in the order they were first mutated. Each source
// is queued at most once until it is delivered, so its subscribers see one
// consolidated Change per flush cycle. Writes run after the sources of an
// iteration, in queue order.
//
// Queues are guarded by a mutex so work can be queued from any goroutine,
// but Flush must be called from the goroutine that owns the observed
// collections.
type Scheduler struct {
	mu sync.Mutex

	sources      []queuedSource
	sourceQueued map[uint64]struct{}

	writes      []queuedWrite
	writeQueued map[uint64]struct{}

	batchDepth int
	flushing   bool

	maxIterations int
	logger        *slog.Logger
	hooks         []FlushHook
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithMaxFlushIterations sets the iteration bound. Values < 1 are ignored.
func WithMaxFlushIterations(n int) SchedulerOption {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxIterations = n
		}
	}
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		s.logger = l
	}
}

// WithFlushHook registers a hook called after every flush.
func WithFlushHook(h FlushHook) SchedulerOption {
	return func(s *Scheduler) {
		s.hooks = append(s.hooks, h)
	}
}

// NewScheduler creates a scheduler.
func NewScheduler(opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		sourceQueued:  make(map[uint64]struct{}),
		writeQueued:   make(map[uint64]struct{}),
		maxIterations: DefaultMaxFlushIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "scheduler")
	}
	return s
}

// AddHook registers a flush hook.
func (s *Scheduler) AddHook(h FlushHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, h)
}

// enqueue queues src for delivery unless it is already queued. Flags of
// repeated enqueues are merged into the queued entry.
func (s *Scheduler) enqueue(src source, flags Flags) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := src.sourceID()
	if _, ok := s.sourceQueued[id]; ok {
		for i := range s.sources {
			if s.sources[i].src.sourceID() == id {
				s.sources[i].flags |= flags
				break
			}
		}
		return
	}
	s.sourceQueued[id] = struct{}{}
	s.sources = append(s.sources, queuedSource{src: src, flags: flags})
}

// dequeue drops a queued source.
func (s *Scheduler) dequeue(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sourceQueued[id]; !ok {
		return
	}
	delete(s.sourceQueued, id)
	for i := range s.sources {
		if s.sources[i].src.sourceID() == id {
			s.sources = append(s.sources[:i], s.sources[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) popSource() (queuedSource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sources) == 0 {
		return queuedSource{}, false
	}
	q := s.sources[0]
	s.sources[0] = queuedSource{}
	s.sources = s.sources[1:]
	delete(s.sourceQueued, q.src.sourceID())
	return q, true
}

// QueueWrite queues fn to run at the next flush.
func (s *Scheduler) QueueWrite(fn WriteFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes = append(s.writes, queuedWrite{fn: fn})
}

// QueueWriteOnce queues fn under id unless a write with the same id is
// already queued. Returns false if the write was a duplicate.
func (s *Scheduler) QueueWriteOnce(id uint64, fn WriteFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.writeQueued[id]; ok {
		return false
	}
	s.writeQueued[id] = struct{}{}
	s.writes = append(s.writes, queuedWrite{id: id, fn: fn})
	return true
}

func (s *Scheduler) popWrite() (queuedWrite, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.writes) == 0 {
		return queuedWrite{}, false
	}
	w := s.writes[0]
	s.writes[0] = queuedWrite{}
	s.writes = s.writes[1:]
	if w.id != 0 {
		delete(s.writeQueued, w.id)
	}
	return w, true
}

// Pending returns the number of queued sources and writes.
func (s *Scheduler) Pending() (sources, writes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sources), len(s.writes)
}

func (s *Scheduler) hasWork() bool {
	sources, writes := s.Pending()
	return sources > 0 || writes > 0
}

// Flushing reports whether a flush is in progress.
func (s *Scheduler) Flushing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushing
}

// Flush delivers queued notifications and runs queued writes until no work
// is left.
//
// Calling Flush from inside a subscriber or write is a no-op: the running
// flush picks up the new work. Inside Batch, Flush is deferred to the end
// of the outermost batch. A write error stops the flush and is
// returned wrapped in a W011 error; work not yet processed stays queued.
// Subscriber panics are not recovered.
func (s *Scheduler) Flush() error {
	s.mu.Lock()
	if s.flushing || s.batchDepth > 0 {
		s.mu.Unlock()
		return nil
	}
	s.flushing = true
	hooks := append([]FlushHook(nil), s.hooks...)
	s.mu.Unlock()

	stats := FlushStats{Started: time.Now()}
	returned := false
	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.mu.Unlock()

		stats.Duration = time.Since(stats.Started)
		stats.Panicked = !returned
		s.report(hooks, stats)
	}()

	err := s.drain(&stats)
	returned = true
	stats.Err = err
	return err
}

// drain runs flush iterations until both queues are empty.
func (s *Scheduler) drain(stats *FlushStats) error {
	for s.hasWork() {
		stats.Iterations++
		if stats.Iterations > s.maxIterations {
			sources, writes := s.Pending()
			return errors.New("W010").
				WithDetail("Flush stopped after the iteration limit with work still queued.").
				WithSubject(stormSubject(sources, writes)).
				Wrap(ErrFlushStorm)
		}

		for {
			q, ok := s.popSource()
			if !ok {
				break
			}
			d := q.src.deliver(q.flags)
			stats.Deliveries = append(stats.Deliveries, d)
			stats.Notifications += d.Subscribers
		}

		for {
			w, ok := s.popWrite()
			if !ok {
				break
			}
			stats.Writes++
			if err := w.fn(); err != nil {
				return errors.New("W011").Wrap(err)
			}
		}
	}
	return nil
}

func (s *Scheduler) report(hooks []FlushHook, stats FlushStats) {
	if stats.Iterations == 0 && stats.Err == nil && !stats.Panicked {
		return
	}
	if stats.Err != nil {
		s.logger.Warn("flush failed", "error", stats.Err, "iterations", stats.Iterations)
	} else if DebugMode {
		s.logger.Debug("flush complete",
			"iterations", stats.Iterations,
			"deliveries", len(stats.Deliveries),
			"notifications", stats.Notifications,
			"writes", stats.Writes,
			"duration", stats.Duration)
	}
	for _, h := range hooks {
		h.FlushCompleted(stats)
	}
}

// Batch runs fn and flushes when the outermost batch returns. Mutations
// inside fn are only delivered at that point. If fn panics the batch is
// unwound without flushing.
//
// Example:
//
//	err := sched.Batch(func() {
//	    todos.Push(a)
//	    todos.Push(b)
//	    tags.Add("urgent")
//	})
func (s *Scheduler) Batch(fn func()) error {
	s.mu.Lock()
	s.batchDepth++
	s.mu.Unlock()

	outermost := false
	func() {
		defer func() {
			s.mu.Lock()
			s.batchDepth--
			outermost = s.batchDepth == 0
			s.mu.Unlock()
		}()
		fn()
	}()

	if !outermost {
		return nil
	}
	return s.Flush()
}
