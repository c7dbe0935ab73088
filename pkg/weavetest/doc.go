// Package weavetest provides test doubles for code built on weave.
//
// It offers an in-memory DOM stand-in (Element, Event), recording
// subscribers and views, and flush assertions:
//
//	func TestTodoList(t *testing.T) {
//	    ob := observe.New()
//	    todos := observe.NewArray("a")
//	    rec := weavetest.Observe(ob, todos)
//
//	    todos.Push("b")
//	    weavetest.MustFlush(t, ob)
//	    weavetest.ExpectOps(t, rec.Last(), "push")
//	}
//
// # Events
//
// Elements form a tree. Dispatch builds the composed path from the
// innermost element up to the root and hands the event to every listener
// on the way:
//
//	root := weavetest.NewElement("div")
//	child := root.AppendChild(weavetest.NewElement("span"))
//	root.Listen(listenerBinding)
//	child.Dispatch("click") // reaches listenerBinding with path [span div]
package weavetest
