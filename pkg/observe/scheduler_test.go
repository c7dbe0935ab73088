package observe

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/weave/internal/errors"
)

func TestFlushDeliversSourcesInMutationOrder(t *testing.T) {
	ob := New()
	a := NewArray[int]()
	m := NewMap[string, int]()
	s := NewSet[string]()

	var order []CollectionKind
	sub := NewSubscriberFunc(func(c *Change) { order = append(order, c.Kind) })
	for _, c := range []Collection{a, m, s} {
		ob.GetCollectionObserver(c).Subscribe(sub)
	}

	s.Add("x")
	a.Push(1)
	m.Set("k", 1)
	s.Add("y")
	a.Push(2)
	mustFlush(t, ob)

	want := []CollectionKind{KindSet, KindArray, KindMap}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Errorf("delivery order (-want +got):\n%s", diff)
	}
}

func TestSourceQueuedOncePerCycle(t *testing.T) {
	a := NewArray[int]()
	ob, _, rec := observed(a)

	for i := range 5 {
		a.Push(i)
	}
	if sources, _ := ob.Scheduler().Pending(); sources != 1 {
		t.Errorf("pending sources = %d, want 1", sources)
	}
	mustFlush(t, ob)
	if rec.count() != 1 {
		t.Errorf("notifications = %d, want 1", rec.count())
	}
	if got := len(rec.last().Ops); got != 5 {
		t.Errorf("consolidated ops = %d, want 5", got)
	}
}

func TestMutationDuringFlushIsDeliveredInSameFlush(t *testing.T) {
	a := NewArray[int]()
	b := NewArray[int]()
	ob := New()

	ob.GetCollectionObserver(a).Subscribe(NewSubscriberFunc(func(*Change) {
		b.Push(len(b.Items()))
	}))
	recB := newRecorder()
	ob.GetCollectionObserver(b).Subscribe(recB)

	var stats FlushStats
	ob.Scheduler().AddHook(FlushHookFunc(func(s FlushStats) { stats = s }))

	a.Push(1)
	mustFlush(t, ob)

	if recB.count() != 1 {
		t.Errorf("cascaded notifications = %d, want 1", recB.count())
	}
	if len(stats.Deliveries) != 2 {
		t.Errorf("deliveries = %d, want 2", len(stats.Deliveries))
	}
}

func TestWritesRunAfterSources(t *testing.T) {
	a := NewArray[int]()
	ob := New()
	sched := ob.Scheduler()

	var log []string
	ob.GetCollectionObserver(a).Subscribe(NewSubscriberFunc(func(*Change) {
		log = append(log, "notify")
		sched.QueueWrite(func() error {
			log = append(log, "write")
			return nil
		})
	}))

	sched.QueueWrite(func() error {
		log = append(log, "early write")
		return nil
	})
	a.Push(1)
	mustFlush(t, ob)

	want := []string{"notify", "early write", "write"}
	if diff := cmp.Diff(want, log); diff != "" {
		t.Errorf("run order (-want +got):\n%s", diff)
	}
}

func TestQueueWriteOnce(t *testing.T) {
	sched := NewScheduler()
	calls := 0
	write := func() error { calls++; return nil }

	if !sched.QueueWriteOnce(7, write) {
		t.Fatal("first QueueWriteOnce = false")
	}
	if sched.QueueWriteOnce(7, write) {
		t.Error("duplicate QueueWriteOnce = true")
	}
	if err := sched.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if calls != 1 {
		t.Errorf("write ran %d times, want 1", calls)
	}

	if !sched.QueueWriteOnce(7, write) {
		t.Error("QueueWriteOnce after flush = false")
	}
}

func TestFlushWriteErrorKeepsRemainingWork(t *testing.T) {
	sched := NewScheduler()
	cause := stderrors.New("target detached")
	ran := false

	sched.QueueWrite(func() error { return cause })
	sched.QueueWrite(func() error { ran = true; return nil })

	err := sched.Flush()
	if err == nil {
		t.Fatal("Flush() error = nil")
	}
	if errors.Code(err) != "W011" {
		t.Errorf("Code = %q, want W011", errors.Code(err))
	}
	if !stderrors.Is(err, cause) {
		t.Errorf("error %v does not wrap the write error", err)
	}
	if ran {
		t.Error("write after the failing one ran")
	}
	if _, writes := sched.Pending(); writes != 1 {
		t.Errorf("pending writes = %d, want 1", writes)
	}

	if err := sched.Flush(); err != nil {
		t.Fatalf("second Flush() error = %v", err)
	}
	if !ran {
		t.Error("remaining write did not run on the next flush")
	}
}

func TestFlushStorm(t *testing.T) {
	a := NewArray[int]()
	sched := NewScheduler(WithMaxFlushIterations(5))
	ob := New(WithScheduler(sched))

	ob.GetCollectionObserver(a).Subscribe(NewSubscriberFunc(func(*Change) {
		sched.QueueWrite(func() error {
			a.Push(1)
			return nil
		})
	}))

	a.Push(0)
	err := sched.Flush()
	if !stderrors.Is(err, ErrFlushStorm) {
		t.Fatalf("Flush() error = %v, want ErrFlushStorm", err)
	}
	if errors.Code(err) != "W010" {
		t.Errorf("Code = %q, want W010", errors.Code(err))
	}
	if sched.Flushing() {
		t.Error("Flushing() = true after the storm aborted")
	}
}

func TestFlushIsNotReentrant(t *testing.T) {
	a := NewArray[int]()
	ob := New()
	sched := ob.Scheduler()

	depth, maxDepth := 0, 0
	ob.GetCollectionObserver(a).Subscribe(NewSubscriberFunc(func(*Change) {
		depth++
		maxDepth = max(maxDepth, depth)
		if err := sched.Flush(); err != nil {
			t.Errorf("nested Flush() error = %v", err)
		}
		depth--
	}))

	a.Push(1)
	mustFlush(t, ob)
	if maxDepth != 1 {
		t.Errorf("max delivery depth = %d, want 1", maxDepth)
	}
}

func TestSubscriberPanicPropagates(t *testing.T) {
	a := NewArray[int]()
	ob := New()
	sched := ob.Scheduler()

	var stats FlushStats
	sched.AddHook(FlushHookFunc(func(s FlushStats) { stats = s }))
	ob.GetCollectionObserver(a).Subscribe(NewSubscriberFunc(func(*Change) {
		panic("subscriber failed")
	}))

	a.Push(1)
	func() {
		defer func() {
			if r := recover(); r != "subscriber failed" {
				t.Errorf("recovered %v, want subscriber panic", r)
			}
		}()
		_ = sched.Flush()
		t.Error("Flush returned normally")
	}()

	if !stats.Panicked {
		t.Error("FlushStats.Panicked = false")
	}
	if sched.Flushing() {
		t.Error("Flushing() = true after panic")
	}

	// The scheduler stays usable.
	sched.QueueWrite(func() error { return nil })
	if err := sched.Flush(); err != nil {
		t.Errorf("Flush() after panic error = %v", err)
	}
}

func TestBatch(t *testing.T) {
	a := NewArray[int]()
	ob, _, rec := observed(a)
	sched := ob.Scheduler()

	err := sched.Batch(func() {
		a.Push(1)
		if err := sched.Flush(); err != nil {
			t.Errorf("Flush inside batch error = %v", err)
		}
		if err := sched.Batch(func() { a.Push(2) }); err != nil {
			t.Errorf("inner Batch error = %v", err)
		}
		if rec.count() != 0 {
			t.Errorf("notified inside batch %d times", rec.count())
		}
		a.Push(3)
	})
	if err != nil {
		t.Fatalf("Batch() error = %v", err)
	}

	if rec.count() != 1 {
		t.Fatalf("notifications = %d, want 1", rec.count())
	}
	if diff := cmp.Diff([]string{"push", "push", "push"}, rec.last().OpNames()); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}
}

func TestBatchPanicDoesNotFlush(t *testing.T) {
	a := NewArray[int]()
	ob, _, rec := observed(a)
	sched := ob.Scheduler()

	func() {
		defer func() { _ = recover() }()
		_ = sched.Batch(func() {
			a.Push(1)
			panic("boom")
		})
	}()

	if rec.count() != 0 {
		t.Errorf("notified %d times after panicking batch", rec.count())
	}
	// The batch depth was restored, so a plain flush delivers.
	mustFlush(t, ob)
	if rec.count() != 1 {
		t.Errorf("notifications = %d, want 1", rec.count())
	}
}

func TestFlushHookStats(t *testing.T) {
	a := NewArray("x")
	ob, _, _ := observed(a)
	sched := ob.Scheduler()

	var got []FlushStats
	sched.AddHook(FlushHookFunc(func(s FlushStats) { got = append(got, s) }))

	mustFlush(t, ob) // nothing queued, no hook call
	a.Push("y")
	sched.QueueWrite(func() error { return nil })
	mustFlush(t, ob)

	if len(got) != 1 {
		t.Fatalf("hook calls = %d, want 1", len(got))
	}
	s := got[0]
	if s.Iterations != 1 || s.Writes != 1 || s.Notifications != 1 {
		t.Errorf("stats = %+v", s)
	}
	want := []Delivery{{
		SourceID:    s.Deliveries[0].SourceID,
		Kind:        KindArray,
		Ops:         []string{"push"},
		IndexMap:    []int{0, Changed},
		Subscribers: 1,
	}}
	if diff := cmp.Diff(want, s.Deliveries); diff != "" {
		t.Errorf("deliveries (-want +got):\n%s", diff)
	}
}

func TestSchedulerConcurrentQueueing(t *testing.T) {
	sched := NewScheduler()
	done := make(chan struct{})
	count := 0

	for i := range 10 {
		go func() {
			sched.QueueWriteOnce(uint64(i+1), func() error { count++; return nil })
			done <- struct{}{}
		}()
	}
	for range 10 {
		<-done
	}
	if err := sched.Flush(); err != nil {
		t.Fatal(err)
	}
	if count != 10 {
		t.Errorf("writes run = %d, want 10", count)
	}
}

func ExampleScheduler_Batch() {
	ob := New()
	todos := NewArray[string]()
	ob.GetCollectionObserver(todos).Subscribe(NewSubscriberFunc(func(c *Change) {
		fmt.Println(c.OpNames(), c.IndexMap)
	}))

	_ = ob.Scheduler().Batch(func() {
		todos.Push("write tests")
		todos.Push("ship")
	})
	// Output: [push push] [-2 -2]
}
