// Package hostfn holds the registry of host-implemented functions the CLI
// backend dispatches bridge calls to. Function implementations ship as
// modules that register themselves by name; a model's function declarations
// are bound to implementations by that name at startup.
package hostfn

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/vk/actionrungo/internal/val"
)

// Func is one host-implemented function: it receives the call-scoped
// argument list and produces the result reference (void for functions
// without a result).
type Func func(ctx context.Context, args *val.List) (val.Ref, error)

// Module is implemented by packages that contribute host functions.
type Module interface {
	Register(r *Registry)
}

// Registry maps function names to Go implementations.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Func)}
}

// Register installs fn under name. Registering a name twice is a programmer
// error and panics.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.funcs[name]; exists {
		panic(fmt.Sprintf("host function %q already registered", name))
	}
	r.funcs[name] = fn
}

// Lookup returns the implementation registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns the registered function names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
