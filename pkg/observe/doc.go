// Package observe provides observable collections and the flush scheduler
// for Weave.
//
// Mutations of an observed Map, Set or Array are recorded in an IndexMap
// and reported to subscribers. Notifications are never delivered inline:
// every mutated collection queues itself on a Scheduler once per flush
// cycle and its subscribers receive one consolidated Change when Flush runs.
//
// # Core Types
//
// Observation creates observers and holds the per-kind instrumentation
// switches:
//
//	ob := observe.New()
//	todos := observe.NewArray("a", "b")
//	o := ob.GetCollectionObserver(todos)
//	o.Subscribe(observe.NewSubscriberFunc(func(c *observe.Change) {
//	    fmt.Println(c.OpNames(), c.IndexMap)
//	}))
//
//	todos.Push("c")
//	ob.Scheduler().Flush() // [push] [0 1 -2]
//
// IndexMap correlates current positions with the positions values had at
// the last flush. A slot is either Changed (-2) or an original index.
// Removed values are listed in DeletedItems.
//
// Computed derives a cached value from one or more collections and is
// recomputed at most once per flush.
//
// # Native and Instrumented Collections
//
// Each collection kind can be switched off with Observation.Disable. The
// collections keep working as plain containers and stop notifying. When the
// kind is enabled again the first mutation reports a "resync" with every
// slot marked Changed, since positions recorded while native are unknown.
//
// # Thread Safety
//
// Collections are not safe for concurrent use and must be mutated and
// flushed from a single goroutine. The scheduler queues and the per-kind
// switches are safe to use from any goroutine.
package observe
