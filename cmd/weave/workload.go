package main

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/vango-dev/weave/pkg/observe"
	"github.com/vango-dev/weave/pkg/store"
)

// todoState is the state of the sample todo store.
type todoState struct {
	Next  int      `json:"next"`
	Open  []string `json:"open"`
	Done  []string `json:"done"`
	Total int      `json:"total"`
}

// todoActions are the store handlers of the sample workload.
var todoActions = map[string]store.Handler[todoState]{
	"add": func(s todoState, a store.Action) (todoState, error) {
		s.Next++
		s.Total++
		s.Open = append(slices.Clone(s.Open), fmt.Sprintf("task-%d", s.Next))
		return s, nil
	},
	"complete": func(s todoState, a store.Action) (todoState, error) {
		if len(s.Open) == 0 {
			return s, nil
		}
		s.Done = append(slices.Clone(s.Done), s.Open[0])
		s.Open = slices.Clone(s.Open[1:])
		return s, nil
	},
	"archive": func(s todoState, a store.Action) (todoState, error) {
		s.Done = nil
		return s, nil
	},
}

// workload mirrors the todo store into observed collections. Each tick
// dispatches actions and flushes: the store notification mutates the
// collections, whose changes are delivered in the same flush.
type workload struct {
	ob     *observe.Observation
	todos  *store.Store[todoState]
	open   *observe.Array[string]
	done   *observe.Set[string]
	counts *observe.Map[string, int]
	load   *observe.Computed[int]
	tick   int
	logger *slog.Logger
}

func newWorkload(ob *observe.Observation, todos *store.Store[todoState], logger *slog.Logger) (*workload, error) {
	for name, h := range todoActions {
		if err := todos.RegisterAction(name, h); err != nil {
			return nil, err
		}
	}

	w := &workload{
		ob:     ob,
		todos:  todos,
		open:   observe.NewArray[string](),
		done:   observe.NewSet[string](),
		counts: observe.NewMap[string, int](),
		logger: logger,
	}
	w.load = observe.NewComputed(ob, func() int {
		return w.open.Len() - w.done.Len()
	}, w.open, w.done)

	for _, c := range []observe.Collection{w.open, w.done, w.counts} {
		ob.GetCollectionObserver(c).Subscribe(observe.NewSubscriberFunc(func(ch *observe.Change) {
			w.logger.Debug("collection changed", "kind", ch.Kind.String(), "ops", ch.OpNames())
		}))
	}
	w.load.Subscribe(observe.NewSubscriberFunc(func(*observe.Change) {
		w.logger.Debug("load changed", "load", w.load.Get())
	}))
	todos.Subscribe(store.NewSubscriberFunc(w.sync))

	w.sync(todos.GetState(), todoState{})
	return w, ob.Scheduler().Flush()
}

// sync applies the store state to the observed collections.
func (w *workload) sync(state, _ todoState) {
	if !slices.Equal(w.open.Items(), state.Open) {
		w.open.Splice(0, w.open.Len(), state.Open...)
	}
	for _, v := range w.done.Values() {
		if !slices.Contains(state.Done, v) {
			w.done.Delete(v)
		}
	}
	for _, v := range state.Done {
		w.done.Add(v)
	}
	w.counts.Set("open", len(state.Open))
	w.counts.Set("done", len(state.Done))
	w.counts.Set("total", state.Total)
}

// Step runs one tick: it dispatches the tick's actions and flushes.
func (w *workload) Step() error {
	w.tick++
	actions := []string{"add"}
	if w.tick%3 == 0 {
		actions = append(actions, "complete")
	}
	if w.tick%10 == 0 {
		actions = append(actions, "archive")
	}

	err := w.ob.Scheduler().Batch(func() {
		for _, name := range actions {
			if err := w.todos.Dispatch(store.Action{Type: name}); err != nil {
				w.logger.Warn("dispatch failed", "action", name, "error", err)
			}
		}
	})
	if err != nil {
		return err
	}
	w.logger.Debug("tick", "tick", w.tick, "actions", actions, "load", w.load.Get())
	return nil
}

// Run steps every interval until ctx is done.
func (w *workload) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Step(); err != nil {
				return err
			}
		}
	}
}
