// Package bridge carries function calls from the evaluation engine to the
// host. A call suspends the calling thread on its pending-result slot; the
// host answers through that same thread's result setters. The bridge itself
// is a stateless protocol adapter: beyond the id table it shares with its
// actor, it holds no call state. The calling thread is the correlation key.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/actionrungo/internal/model"
	"github.com/vk/actionrungo/internal/runtime"
	"github.com/vk/actionrungo/internal/val"
)

// NotFoundID is the sentinel returned across the boundary for a function
// that was never registered.
const NotFoundID int32 = -1

var (
	// ErrNotRegistered is returned when a call names a function the host
	// never assigned an id to.
	ErrNotRegistered = errors.New("function not registered")
	// ErrIDConflict is returned when a name is re-registered with a
	// different id. First registration wins; re-registering the same pair
	// is a no-op.
	ErrIDConflict = errors.New("function already registered with a different id")
)

// FuncTable maps function names to the small integer ids the host and the
// engine agree on. Entries are write-once-per-key and never removed.
type FuncTable struct {
	mu  sync.RWMutex
	ids map[string]int32
}

// NewFuncTable returns an empty table.
func NewFuncTable() *FuncTable {
	return &FuncTable{ids: make(map[string]int32)}
}

// Register installs the name→id mapping. Registering an existing name with
// the same id is idempotent; a different id is rejected.
func (t *FuncTable) Register(name string, id int32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.ids[name]; ok {
		if prev != id {
			return fmt.Errorf("%w: %q has id %d, got %d", ErrIDConflict, name, prev, id)
		}
		return nil
	}
	t.ids[name] = id
	return nil
}

// Lookup returns the id registered for name.
func (t *FuncTable) Lookup(name string) (int32, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.ids[name]
	return id, ok
}

// ID resolves a function type to its registered id.
func (t *FuncTable) ID(fn *model.FunctionType) (int32, error) {
	if id, ok := t.Lookup(fn.Name); ok {
		return id, nil
	}
	return NotFoundID, fmt.Errorf("%w: %q", ErrNotRegistered, fn.Name)
}

// Backend is the engine-facing surface of the boundary: one function call
// and one free-text message crossing.
type Backend interface {
	// CallFuncReq transmits the call and transitions thread into the
	// awaiting-result state. The host is required to eventually complete
	// the call through the thread's result setters.
	CallFuncReq(ctx context.Context, thread *runtime.EvalThread, fn *model.FunctionType, args []val.Ref) error
	// EmitMessage forwards a diagnostic message, fire-and-forget.
	EmitMessage(text string)
}

// Sink is the host-facing half: the embedding application implements it to
// receive calls and messages. A Sink may complete the call synchronously
// from within CallFuncReq, or later from another goroutine.
type Sink interface {
	CallFuncReq(thread *runtime.EvalThread, funcID int32, args *val.List)
	EmitMessage(text string)
}

// Proxy is the Backend implementation that forwards across the boundary.
type Proxy struct {
	table *FuncTable
	sink  Sink
}

// NewProxy returns a Proxy forwarding to sink with ids resolved from table.
func NewProxy(table *FuncTable, sink Sink) *Proxy {
	return &Proxy{table: table, sink: sink}
}

// CallFuncReq implements Backend. It resolves the function id, packages the
// arguments into a call-scoped list, marks the thread suspended, and hands
// the request to the host.
func (p *Proxy) CallFuncReq(ctx context.Context, thread *runtime.EvalThread, fn *model.FunctionType, args []val.Ref) error {
	id, err := p.table.ID(fn)
	if err != nil {
		return err
	}
	if err := thread.BeginCall(); err != nil {
		return err
	}
	p.sink.CallFuncReq(thread, id, val.NewList(args))
	return nil
}

// EmitMessage implements Backend.
func (p *Proxy) EmitMessage(text string) {
	p.sink.EmitMessage(text)
}
