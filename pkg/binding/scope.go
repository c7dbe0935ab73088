package binding

// Scope holds the variables expressions are evaluated against. Lookups fall
// back to the parent scope.
type Scope struct {
	parent *Scope
	vars   map[string]any
}

// NewScope creates a root scope. vars is copied.
func NewScope(vars map[string]any) *Scope {
	s := &Scope{vars: make(map[string]any, len(vars))}
	for k, v := range vars {
		s.vars[k] = v
	}
	return s
}

// Child creates a scope whose lookups fall back to s.
func (s *Scope) Child(vars map[string]any) *Scope {
	c := NewScope(vars)
	c.parent = s
	return c
}

// With returns a child scope holding a single variable.
func (s *Scope) With(name string, v any) *Scope {
	return s.Child(map[string]any{name: v})
}

// Get returns the value of name from the nearest scope that defines it.
func (s *Scope) Get(name string) (any, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Set assigns name in the nearest scope that defines it, or in s if none
// does.
func (s *Scope) Set(name string, v any) {
	for cur := s; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return
		}
	}
	s.vars[name] = v
}

// Expression is an evaluated binding source.
type Expression interface {
	Evaluate(s *Scope) (any, error)
}

// Assignable is an Expression that can be written back to, as required by
// from-view and two-way bindings.
type Assignable interface {
	Expression
	Assign(s *Scope, v any) error
}

// ExprFunc adapts a function to Expression.
type ExprFunc func(s *Scope) (any, error)

// Evaluate calls f.
func (f ExprFunc) Evaluate(s *Scope) (any, error) { return f(s) }

// Access reads and assigns a scope variable by name. Reading an undefined
// variable yields nil.
type Access string

// Evaluate returns the variable's value.
func (a Access) Evaluate(s *Scope) (any, error) {
	v, _ := s.Get(string(a))
	return v, nil
}

// Assign sets the variable.
func (a Access) Assign(s *Scope, v any) error {
	if a == "" {
		return ErrNotAssignable
	}
	s.Set(string(a), v)
	return nil
}

// Literal is a constant expression.
type Literal struct {
	Value any
}

// Evaluate returns the constant.
func (l Literal) Evaluate(*Scope) (any, error) { return l.Value, nil }
