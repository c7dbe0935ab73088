package main

import (
	"cmp"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/weave/internal/errors"
	"github.com/vango-dev/weave/pkg/binding"
	"github.com/vango-dev/weave/pkg/observe"
	"github.com/vango-dev/weave/pkg/resource"
	"github.com/vango-dev/weave/pkg/weavetest"
)

var demoKinds = []string{"array", "map", "set", "self"}

func demoCmd() *cobra.Command {
	var (
		kinds  []string
		native []string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run scripted observation scenarios",
		Long: `Run scripted mutation scenarios and print every consolidated change:
the operations, the index map and the deleted items.

Kinds:
  array   push, unshift, reverse, sort and splice feeding a repeat binding
  map     set, no-op set, delete and clear
  set     add, duplicate add, delete and clear
  self    the self behavior filtering bubbled click events

Examples:
  weave demo
  weave demo --kind map
  weave demo --kind array --native array`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDemo(cmd.OutOrStdout(), kinds, native)
		},
	}

	cmd.Flags().StringSliceVarP(&kinds, "kind", "k", demoKinds, "Scenarios to run")
	cmd.Flags().StringSliceVar(&native, "native", nil, "Collection kinds to mutate natively first, showing a resync")

	return cmd
}

func runDemo(w io.Writer, kinds, native []string) error {
	disabled := make([]observe.CollectionKind, 0, len(native))
	for _, name := range native {
		k, ok := observe.ParseKind(name)
		if !ok {
			return errors.New("W050").WithSubject(name)
		}
		disabled = append(disabled, k)
	}

	scenarios := map[string]func(io.Writer, []observe.CollectionKind) error{
		"array": demoArray,
		"map":   demoMap,
		"set":   demoSet,
		"self":  demoSelf,
	}
	for _, name := range kinds {
		if _, ok := scenarios[name]; !ok {
			return errors.New("W050").
				WithSubject(name).
				WithSuggestion("Choose one of: " + strings.Join(demoKinds, ", "))
		}
	}

	for _, name := range kinds {
		fmt.Fprintf(w, "\n== %s ==\n", name)
		if err := scenarios[name](w, disabled); err != nil {
			return err
		}
	}
	return nil
}

// printChange prints one consolidated change.
func printChange(w io.Writer) *observe.SubscriberFunc {
	return observe.NewSubscriberFunc(func(c *observe.Change) {
		fmt.Fprintf(w, "   change  ops=%v indexMap=%v", c.OpNames(), c.IndexMap.Entries())
		if deleted := c.IndexMap.DeletedItems(); len(deleted) > 0 {
			fmt.Fprintf(w, " deleted=%v", deleted)
		}
		if c.Flags&observe.FlagResync != 0 {
			fmt.Fprint(w, " (resync)")
		}
		fmt.Fprintln(w)
	})
}

// step prints a step title, runs fn and flushes.
func step(w io.Writer, ob *observe.Observation, title string, fn func()) error {
	fmt.Fprintf(w, " > %s\n", title)
	fn()
	return ob.Scheduler().Flush()
}

// nativeRound runs fn with kind disabled when kind is listed in disabled,
// then turns instrumentation back on.
func nativeRound(w io.Writer, ob *observe.Observation, kind observe.CollectionKind, disabled []observe.CollectionKind, fn func()) error {
	for _, k := range disabled {
		if k != kind {
			continue
		}
		ob.Disable(kind)
		if err := step(w, ob, "native mutation (not observed)", fn); err != nil {
			return err
		}
		ob.Enable(kind)
	}
	return nil
}

// textView renders one repeated item.
type textView struct {
	text string
}

func (v *textView) Bind(item any, index int) { v.text = fmt.Sprintf("%d:%v", index, item) }
func (v *textView) Dispose()                 {}

// textSlot prints the rendered views.
type textSlot struct {
	w       io.Writer
	created *int
}

func (s textSlot) Render(views []binding.View) error {
	texts := make([]string, len(views))
	for i, v := range views {
		texts[i] = v.(*textView).text
	}
	fmt.Fprintf(s.w, "   render  [%s] (views created so far: %d)\n", strings.Join(texts, " "), *s.created)
	return nil
}

func demoArray(w io.Writer, disabled []observe.CollectionKind) error {
	ob := observe.New()
	todos := observe.NewArray("write", "review", "ship")
	ob.GetCollectionObserver(todos).Subscribe(printChange(w))

	created := 0
	factory := binding.ViewFactoryFunc(func() binding.View {
		created++
		return &textView{}
	})
	repeat := binding.NewRepeatBinding(ob, todos, factory, textSlot{w: w, created: &created})
	if err := repeat.Bind(binding.NewScope(nil)); err != nil {
		return err
	}
	defer repeat.Unbind()

	if err := step(w, ob, "initial render", func() {}); err != nil {
		return err
	}
	if err := step(w, ob, "push(test)", func() { todos.Push("test") }); err != nil {
		return err
	}
	if err := step(w, ob, "unshift(plan) + reverse() in one flush", func() {
		todos.Unshift("plan")
		todos.Reverse()
	}); err != nil {
		return err
	}
	if err := step(w, ob, "sort()", func() { todos.Sort(cmp.Compare[string]) }); err != nil {
		return err
	}
	if err := nativeRound(w, ob, observe.KindArray, disabled, func() { todos.Push("native") }); err != nil {
		return err
	}
	return step(w, ob, "splice(1, 2, docs)", func() { todos.Splice(1, 2, "docs") })
}

func demoMap(w io.Writer, disabled []observe.CollectionKind) error {
	ob := observe.New()
	prices := observe.NewMap[string, int]()
	ob.GetCollectionObserver(prices).Subscribe(printChange(w))

	steps := []struct {
		title string
		fn    func()
	}{
		{"set(apple, 1)", func() { prices.Set("apple", 1) }},
		{"set(apple, 1) again (equal value, no change)", func() { prices.Set("apple", 1) }},
		{"set(apple, 2) + set(pear, 3)", func() { prices.Set("apple", 2).Set("pear", 3) }},
		{"delete(plum) (missing key, no change)", func() { prices.Delete("plum") }},
		{"delete(apple)", func() { prices.Delete("apple") }},
	}
	for _, s := range steps {
		if err := step(w, ob, s.title, s.fn); err != nil {
			return err
		}
	}
	if err := nativeRound(w, ob, observe.KindMap, disabled, func() { prices.Set("fig", 9) }); err != nil {
		return err
	}
	return step(w, ob, "clear()", prices.Clear)
}

func demoSet(w io.Writer, disabled []observe.CollectionKind) error {
	ob := observe.New()
	tags := observe.NewSet("go")
	ob.GetCollectionObserver(tags).Subscribe(printChange(w))

	count := observe.NewComputed(ob, tags.Len, tags)
	count.Subscribe(observe.NewSubscriberFunc(func(*observe.Change) {
		fmt.Fprintf(w, "   computed size=%d\n", count.Get())
	}))
	defer count.Dispose()
	fmt.Fprintf(w, "   computed size=%d\n", count.Get())

	if err := step(w, ob, "add(web) + add(go)", func() { tags.Add("web").Add("go") }); err != nil {
		return err
	}
	if err := step(w, ob, "delete(go)", func() { tags.Delete("go") }); err != nil {
		return err
	}
	if err := nativeRound(w, ob, observe.KindSet, disabled, func() { tags.Add("native") }); err != nil {
		return err
	}
	return step(w, ob, "clear()", tags.Clear)
}

func demoSelf(w io.Writer, _ []observe.CollectionKind) error {
	reg := resource.NewRegistry()
	if err := binding.RegisterStandard(reg); err != nil {
		return err
	}

	panel := weavetest.NewElement("div")
	button := panel.AppendChild(weavetest.NewElement("button"))

	clicks := 0
	listener := binding.NewListenerBinding(panel, "click", binding.ExprFunc(func(*binding.Scope) (any, error) {
		clicks++
		return nil, nil
	}))
	panel.Listen(listener)

	bb, err := binding.ResolveBehaviors(reg, listener, "self")
	if err != nil {
		return err
	}
	if err := bb.Bind(binding.NewScope(nil)); err != nil {
		return err
	}

	dispatch := func(name string, el *weavetest.Element) error {
		before := clicks
		if err := el.Dispatch("click"); err != nil {
			return err
		}
		handled := "ignored"
		if clicks > before {
			handled = "handled"
		}
		fmt.Fprintf(w, " > click on %s: %s\n", name, handled)
		return nil
	}

	fmt.Fprintln(w, "   listener on <div> with & self")
	if err := dispatch("<button> (bubbled)", button); err != nil {
		return err
	}
	if err := dispatch("<div>", panel); err != nil {
		return err
	}

	bb.Unbind()
	fmt.Fprintln(w, "   unbound: handler restored")
	return dispatch("<button> after unbind", button)
}
