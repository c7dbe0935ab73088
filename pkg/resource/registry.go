// Package resource resolves named resources such as binding behaviors and
// value converters.
//
// Resources are registered under a kind and a name:
//
//	reg := resource.NewRegistry()
//	reg.Register(binding.BehaviorKind, "self", binding.SelfBehavior{})
//
//	self, err := resource.Resolve[binding.Behavior](reg, binding.BehaviorKind, "self")
package resource

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/vango-dev/weave/internal/errors"
)

// Sentinel errors wrapped by the coded errors of this package.
var (
	ErrNotFound     = stderrors.New("weave: resource not found")
	ErrDuplicate    = stderrors.New("weave: resource already registered")
	ErrTypeMismatch = stderrors.New("weave: resource type mismatch")
)

// Kind groups resources that share a namespace.
type Kind string

type key struct {
	kind Kind
	name string
}

// Registry is a concurrency-safe set of named resources.
type Registry struct {
	mu      sync.RWMutex
	entries map[key]any
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[key]any),
		logger:  slog.Default().With("component", "resource"),
	}
}

// Register adds v under kind and name. Registering a name twice returns a
// W021 error and keeps the first registration.
func (r *Registry) Register(kind Kind, name string, v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{kind: kind, name: name}
	if _, ok := r.entries[k]; ok {
		return errors.New("W021").
			WithSubject(subject(kind, name)).
			Wrap(ErrDuplicate)
	}
	r.entries[k] = v
	r.logger.Debug("resource registered", "kind", string(kind), "name", name)
	return nil
}

// Lookup returns the resource registered under kind and name.
func (r *Registry) Lookup(kind Kind, name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key{kind: kind, name: name}]
	return v, ok
}

// Names returns the registered names of kind, sorted.
func (r *Registry) Names(kind Kind) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for k := range r.entries {
		if k.kind == kind {
			names = append(names, k.name)
		}
	}
	sort.Strings(names)
	return names
}

// Resolve returns the resource registered under kind and name as a T.
// It returns W020 if nothing is registered and W022 if the resource is not
// a T.
func Resolve[T any](r *Registry, kind Kind, name string) (T, error) {
	var zero T
	v, ok := r.Lookup(kind, name)
	if !ok {
		return zero, errors.New("W020").
			WithSubject(subject(kind, name)).
			WithSuggestion(suggest(r.Names(kind))).
			Wrap(ErrNotFound)
	}
	t, ok := v.(T)
	if !ok {
		return zero, errors.New("W022").
			WithSubject(subject(kind, name)).
			WithDetail(fmt.Sprintf("Registered value is %T.", v)).
			Wrap(ErrTypeMismatch)
	}
	return t, nil
}

// MustResolve is like Resolve but panics on error. It is meant for
// built-in resources that are registered at startup.
func MustResolve[T any](r *Registry, kind Kind, name string) T {
	t, err := Resolve[T](r, kind, name)
	if err != nil {
		panic(err)
	}
	return t
}

func subject(kind Kind, name string) string {
	return string(kind) + " " + name
}

func suggest(names []string) string {
	if len(names) == 0 {
		return ""
	}
	return fmt.Sprintf("Registered: %v", names)
}
