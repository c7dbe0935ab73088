package binding_test

import (
	"cmp"
	"testing"

	gocmp "github.com/google/go-cmp/cmp"

	"github.com/vango-dev/weave/pkg/binding"
	"github.com/vango-dev/weave/pkg/observe"
	"github.com/vango-dev/weave/pkg/weavetest"
)

func newRepeat(t *testing.T, items observe.Collection) (*observe.Observation, *binding.RepeatBinding, *weavetest.ViewFactory, *weavetest.Slot) {
	t.Helper()
	ob := observe.New()
	factory := &weavetest.ViewFactory{}
	slot := &weavetest.Slot{}
	rb := binding.NewRepeatBinding(ob, items, factory, slot)
	if err := rb.Bind(nil); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	weavetest.MustFlush(t, ob)
	return ob, rb, factory, slot
}

func serials(views []binding.View) []int {
	out := make([]int, len(views))
	for i, v := range views {
		out[i] = v.(*weavetest.View).Serial
	}
	return out
}

func TestRepeatBindingInitialRender(t *testing.T) {
	todos := observe.NewArray("a", "b", "c")
	_, _, factory, slot := newRepeat(t, todos)

	if len(factory.Created) != 3 {
		t.Errorf("views created = %d, want 3", len(factory.Created))
	}
	if slot.Renders != 1 {
		t.Errorf("renders = %d, want 1", slot.Renders)
	}
	if diff := gocmp.Diff([]any{"a", "b", "c"}, slot.Items()); diff != "" {
		t.Errorf("rendered items (-want +got):\n%s", diff)
	}
}

func TestRepeatBindingReusesViews(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(a *observe.Array[string])
		wantItems   []any
		wantSerials []int
		wantCreated int
		wantDispose []int
	}{
		{
			name:        "push creates one view",
			mutate:      func(a *observe.Array[string]) { a.Push("d") },
			wantItems:   []any{"a", "b", "c", "d"},
			wantSerials: []int{0, 1, 2, 3},
			wantCreated: 4,
		},
		{
			name:        "shift disposes the first view",
			mutate:      func(a *observe.Array[string]) { a.Shift() },
			wantItems:   []any{"b", "c"},
			wantSerials: []int{1, 2},
			wantCreated: 3,
			wantDispose: []int{0},
		},
		{
			name:        "reverse moves views",
			mutate:      func(a *observe.Array[string]) { a.Reverse() },
			wantItems:   []any{"c", "b", "a"},
			wantSerials: []int{2, 1, 0},
			wantCreated: 3,
		},
		{
			name:        "sort moves views",
			mutate:      func(a *observe.Array[string]) { a.Unshift("z"); a.Sort(cmp.Compare[string]) },
			wantItems:   []any{"a", "b", "c", "z"},
			wantSerials: []int{0, 1, 2, 3},
			wantCreated: 4,
		},
		{
			name:        "set replaces one view",
			mutate:      func(a *observe.Array[string]) { a.SetAt(1, "B") },
			wantItems:   []any{"a", "B", "c"},
			wantSerials: []int{0, 3, 2},
			wantCreated: 4,
			wantDispose: []int{1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			todos := observe.NewArray("a", "b", "c")
			ob, rb, factory, slot := newRepeat(t, todos)

			tt.mutate(todos)
			weavetest.MustFlush(t, ob)

			if diff := gocmp.Diff(tt.wantItems, slot.Items()); diff != "" {
				t.Errorf("rendered items (-want +got):\n%s", diff)
			}
			if diff := gocmp.Diff(tt.wantSerials, serials(rb.Views())); diff != "" {
				t.Errorf("view serials (-want +got):\n%s", diff)
			}
			if len(factory.Created) != tt.wantCreated {
				t.Errorf("views created = %d, want %d", len(factory.Created), tt.wantCreated)
			}
			var disposed []int
			for _, v := range factory.Created {
				if v.Disposed {
					disposed = append(disposed, v.Serial)
				}
			}
			if diff := gocmp.Diff(tt.wantDispose, disposed); diff != "" {
				t.Errorf("disposed views (-want +got):\n%s", diff)
			}
			if slot.Renders != 2 {
				t.Errorf("renders = %d, want 2", slot.Renders)
			}
		})
	}
}

func TestRepeatBindingMapDeleteAndClear(t *testing.T) {
	m := observe.NewMap(
		observe.Entry[string, int]{Key: "a", Value: 1},
		observe.Entry[string, int]{Key: "b", Value: 2},
	)
	ob, rb, factory, _ := newRepeat(t, m)

	m.Delete("a")
	weavetest.MustFlush(t, ob)
	if diff := gocmp.Diff([]int{1}, serials(rb.Views())); diff != "" {
		t.Errorf("views after delete (-want +got):\n%s", diff)
	}
	if !factory.Created[0].Disposed {
		t.Error("view of deleted entry not disposed")
	}

	m.Clear()
	weavetest.MustFlush(t, ob)
	if len(rb.Views()) != 0 {
		t.Errorf("views after clear = %d", len(rb.Views()))
	}
	if !factory.Created[1].Disposed {
		t.Error("view of cleared entry not disposed")
	}
}

func TestRepeatBindingResync(t *testing.T) {
	items := observe.NewSet(1, 2)
	ob, rb, factory, slot := newRepeat(t, items)

	ob.Disable(observe.KindSet)
	items.Add(3)
	items.Delete(1)
	ob.Enable(observe.KindSet)
	items.Add(4)
	weavetest.MustFlush(t, ob)

	if diff := gocmp.Diff([]any{2, 3, 4}, slot.Items()); diff != "" {
		t.Errorf("rendered items (-want +got):\n%s", diff)
	}
	if len(rb.Views()) != 3 {
		t.Errorf("views = %d, want 3", len(rb.Views()))
	}
	for _, v := range factory.Created[:2] {
		if !v.Disposed {
			t.Errorf("view %d not disposed on resync", v.Serial)
		}
	}
}

func TestRepeatBindingUnbindDisposesViews(t *testing.T) {
	todos := observe.NewArray(1, 2)
	ob, rb, factory, slot := newRepeat(t, todos)

	rb.Unbind()
	for _, v := range factory.Created {
		if !v.Disposed {
			t.Errorf("view %d not disposed", v.Serial)
		}
	}
	todos.Push(3)
	weavetest.MustFlush(t, ob)
	if slot.Renders != 1 {
		t.Errorf("unbound repeat rendered again, renders = %d", slot.Renders)
	}
}

func TestRepeatBindingBoundWithPendingChanges(t *testing.T) {
	ob := observe.New()
	todos := observe.NewArray("a")
	ob.GetCollectionObserver(todos)
	todos.Push("b") // queued before the repeat binds

	factory := &weavetest.ViewFactory{}
	slot := &weavetest.Slot{}
	rb := binding.NewRepeatBinding(ob, todos, factory, slot)
	if err := rb.Bind(nil); err != nil {
		t.Fatal(err)
	}
	weavetest.MustFlush(t, ob)

	if diff := gocmp.Diff([]any{"a", "b"}, slot.Items()); diff != "" {
		t.Errorf("rendered items (-want +got):\n%s", diff)
	}
	if len(rb.Views()) != 2 {
		t.Errorf("views = %d, want 2", len(rb.Views()))
	}
}
