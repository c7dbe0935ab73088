package observe

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/weave/internal/errors"
)

func TestGetCollectionObserverReturnsSameObserver(t *testing.T) {
	ob := New()
	m := NewMap[string, int]()

	o1 := ob.GetCollectionObserver(m)
	o2 := ob.GetCollectionObserver(m)
	if o1 != o2 {
		t.Error("GetCollectionObserver returned two observers for one collection")
	}
	if ob.ObserverCount() != 1 {
		t.Errorf("ObserverCount() = %d, want 1", ob.ObserverCount())
	}
	if o1.Kind() != KindMap {
		t.Errorf("Kind() = %v, want map", o1.Kind())
	}
	if o1.Collection() != Collection(m) {
		t.Error("Collection() does not return the observed map")
	}
}

func TestSubscribeDeduplicates(t *testing.T) {
	a := NewArray[int]()
	ob, o, rec := observed(a)

	if o.Subscribe(rec) {
		t.Error("Subscribe of an existing subscriber = true")
	}
	if o.SubscriberCount() != 1 {
		t.Errorf("SubscriberCount() = %d, want 1", o.SubscriberCount())
	}

	a.Push(1)
	mustFlush(t, ob)
	if rec.count() != 1 {
		t.Errorf("notifications = %d, want 1", rec.count())
	}

	if !o.Unsubscribe(rec) {
		t.Error("Unsubscribe = false")
	}
	a.Push(2)
	mustFlush(t, ob)
	if rec.count() != 1 {
		t.Errorf("unsubscribed recorder got %d notifications, want 1", rec.count())
	}
}

func TestSubscribersNotifiedInSubscriptionOrder(t *testing.T) {
	s := NewSet[int]()
	ob := New()
	o := ob.GetCollectionObserver(s)

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		o.Subscribe(NewSubscriberFunc(func(*Change) {
			order = append(order, name)
		}))
	}

	s.Add(1)
	mustFlush(t, ob)

	if diff := cmp.Diff([]string{"first", "second", "third"}, order); diff != "" {
		t.Errorf("delivery order (-want +got):\n%s", diff)
	}
}

func TestChangeIsSharedAcrossSubscribers(t *testing.T) {
	a := NewArray(1)
	ob, o, first := observed(a)
	second := newRecorder()
	o.Subscribe(second)

	a.Push(2)
	mustFlush(t, ob)

	if first.last() != second.last() {
		t.Error("subscribers received different Change values")
	}
	if first.last().Collection != Collection(a) {
		t.Error("Change.Collection is not the mutated array")
	}
	if !first.last().Flags.Has(FlagCollectionMutation) {
		t.Errorf("Flags = %b, want FlagCollectionMutation", first.last().Flags)
	}
}

func TestIndexMapResetAfterDelivery(t *testing.T) {
	a := NewArray("a", "b")
	ob, o, _ := observed(a)

	a.Push("c")
	a.Shift()
	mustFlush(t, ob)

	if diff := cmp.Diff([]int{0, 1}, o.IndexMap().Entries()); diff != "" {
		t.Errorf("index map after flush (-want +got):\n%s", diff)
	}
	if o.PendingOps() != 0 {
		t.Errorf("PendingOps() = %d after flush", o.PendingOps())
	}
}

func TestDisablePreservesNativeSemantics(t *testing.T) {
	m := NewMap[string, int]()
	ob, o, rec := observed(m)

	if !ob.Disable(KindMap) {
		t.Fatal("Disable(map) = false")
	}
	if ob.Disable(KindMap) {
		t.Error("second Disable(map) = true")
	}
	if StateOf(m) != StateNative {
		t.Errorf("StateOf = %v, want native", StateOf(m))
	}

	m.Set("a", 1).Set("b", 2).Set("a", 3)
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	if v, _ := m.Get("a"); v != 3 {
		t.Errorf("Get(a) = %d, want 3", v)
	}
	if m.Delete("missing") {
		t.Error("Delete(missing) = true")
	}
	if !m.Delete("b") {
		t.Error("Delete(b) = false")
	}
	mustFlush(t, ob)
	if rec.count() != 0 {
		t.Errorf("native map notified %d times", rec.count())
	}
	if o.PendingOps() != 0 {
		t.Errorf("native map queued %d ops", o.PendingOps())
	}

	if !ob.Enable(KindMap) {
		t.Fatal("Enable(map) = false")
	}
	if StateOf(m) != StateInstrumented {
		t.Errorf("StateOf = %v, want instrumented", StateOf(m))
	}

	// The native mutations are reported as a resync before the next op.
	m.Set("c", 4)
	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	mustFlush(t, ob)

	if rec.count() != 1 {
		t.Fatalf("notifications = %d, want 1", rec.count())
	}
	change := rec.last()
	if diff := cmp.Diff([]string{"resync", "set"}, change.OpNames()); diff != "" {
		t.Errorf("ops (-want +got):\n%s", diff)
	}
	if !change.Flags.Has(FlagResync) {
		t.Errorf("Flags = %b, want FlagResync", change.Flags)
	}
	if diff := cmp.Diff([]int{Changed, Changed}, change.IndexMap.Entries()); diff != "" {
		t.Errorf("index map (-want +got):\n%s", diff)
	}
}

func TestDisableIsPerKind(t *testing.T) {
	ob := New(WithDisabledKinds(KindArray))
	a := NewArray[int]()
	s := NewSet[int]()
	ob.GetCollectionObserver(a)
	ob.GetCollectionObserver(s)

	if StateOf(a) != StateNative {
		t.Errorf("array state = %v, want native", StateOf(a))
	}
	if StateOf(s) != StateInstrumented {
		t.Errorf("set state = %v, want instrumented", StateOf(s))
	}

	other := New()
	if !other.Enabled(KindArray) {
		t.Error("disabling a kind leaked into another Observation")
	}
}

func TestUnknownKindIsIgnored(t *testing.T) {
	unknown := CollectionKind(9)
	ob := New(WithDisabledKinds(unknown, 0))

	if ob.Enable(unknown) || ob.Disable(unknown) {
		t.Error("toggling an unknown kind reported a change")
	}
	if ob.Enabled(unknown) {
		t.Error("unknown kind reported as instrumented")
	}
	if !ob.Enabled(KindArray) {
		t.Error("known kinds affected by unknown ones")
	}
}

func TestUnobservedCollectionIsNative(t *testing.T) {
	a := NewArray(1, 2)
	if StateOf(a) != StateNative {
		t.Errorf("StateOf = %v, want native", StateOf(a))
	}
	a.Push(3)
	a.Reverse()
	if diff := cmp.Diff([]int{3, 2, 1}, a.Items()); diff != "" {
		t.Errorf("items (-want +got):\n%s", diff)
	}
}

func TestRelease(t *testing.T) {
	a := NewArray(1)
	ob, _, rec := observed(a)

	a.Push(2)
	if !ob.Release(a) {
		t.Fatal("Release = false")
	}
	if ob.Release(a) {
		t.Error("second Release = true")
	}
	mustFlush(t, ob)

	if rec.count() != 0 {
		t.Errorf("released observer delivered %d changes", rec.count())
	}
	if ob.ObserverCount() != 0 {
		t.Errorf("ObserverCount() = %d, want 0", ob.ObserverCount())
	}
	if sources, _ := ob.Scheduler().Pending(); sources != 0 {
		t.Errorf("pending sources = %d after release", sources)
	}
}

func TestObservers(t *testing.T) {
	ob := New(WithDisabledKinds(KindSet))
	a := NewArray(1)
	s := NewSet("x")
	ao := ob.GetCollectionObserver(a)
	so := ob.GetCollectionObserver(s)
	ao.Subscribe(NewSubscriberFunc(func(*Change) {}))

	got := ob.Observers()
	want := []ObserverInfo{
		{ID: ao.ID(), Kind: "array", Enabled: true, Subscribers: 1},
		{ID: so.ID(), Kind: "set", Enabled: false, Subscribers: 0},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Observers() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []CollectionKind{KindArray, KindMap, KindSet} {
		got, ok := ParseKind(k.String())
		if !ok || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, ok)
		}
	}
	if _, ok := ParseKind("tuple"); ok {
		t.Error("ParseKind(tuple) = true")
	}
}

func TestCollectionKindJSON(t *testing.T) {
	data, err := json.Marshal(Delivery{Kind: KindSet})
	if err != nil {
		t.Fatal(err)
	}
	var d Delivery
	if err := json.Unmarshal(data, &d); err != nil {
		t.Fatalf("Unmarshal(%s): %v", data, err)
	}
	if d.Kind != KindSet {
		t.Errorf("Kind = %v, want set", d.Kind)
	}

	if err := json.Unmarshal([]byte(`{"kind":"list"}`), &d); errors.Code(err) != "W050" {
		t.Errorf("unknown kind error = %v, want W050", err)
	}
}
