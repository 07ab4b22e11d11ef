// Package host is the boundary surface an embedding application talks to.
// Live objects never cross the boundary directly: backends, actors,
// evaluation threads, function types, and argument lists are addressed by
// generation-checked handles, and stale handles fail explicitly.
package host

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/actionrungo/internal/actor"
	"github.com/vk/actionrungo/internal/bridge"
	"github.com/vk/actionrungo/internal/ctxlog"
	"github.com/vk/actionrungo/internal/handle"
	"github.com/vk/actionrungo/internal/lang"
	"github.com/vk/actionrungo/internal/loader"
	"github.com/vk/actionrungo/internal/model"
	"github.com/vk/actionrungo/internal/runtime"
	"github.com/vk/actionrungo/internal/val"
)

// BackendSink is the application's half of the call bridge, expressed in
// handles. CallFuncReq receives one in-flight call; the application answers
// by calling SetVoidResult or SetIntResult with the same thread handle,
// either synchronously from within CallFuncReq or later. The argument list
// handle is valid only until the call is answered.
type BackendSink interface {
	CallFuncReq(backendH, threadH handle.Handle, funcID int32, argsH handle.Handle)
	EmitMessage(backendH handle.Handle, text string)
}

// Host wires one Context, one Loader, and the handle tables of the
// boundary. One Host per process is the usage convention; it is constructed
// explicitly and passed around, never reached through a global.
type Host struct {
	ctxt   *runtime.Context
	loader *loader.Loader
	rep    loader.Reporter

	backends *handle.Table[*boundSink]
	actors   *handle.Table[*actor.Actor]
	threads  *handle.Table[*runtime.EvalThread]
	lists    *handle.Table[*val.List]
	funcs    *handle.Table[*model.FunctionType]

	mu            sync.Mutex
	initialized   bool
	debug         bool
	threadHandles map[*runtime.EvalThread]handle.Handle
	inflightLists map[handle.Handle]handle.Handle
	funcHandles   map[string]handle.Handle
}

// New returns an uninitialized Host. A nil reporter discards the fatal and
// message channels.
func New(rep loader.Reporter) *Host {
	h := &Host{
		rep:           rep,
		ctxt:          runtime.NewContext(),
		backends:      handle.NewTable[*boundSink](),
		actors:        handle.NewTable[*actor.Actor](),
		threads:       handle.NewTable[*runtime.EvalThread](),
		lists:         handle.NewTable[*val.List](),
		funcs:         handle.NewTable[*model.FunctionType](),
		threadHandles: make(map[*runtime.EvalThread]handle.Handle),
		inflightLists: make(map[handle.Handle]handle.Handle),
		funcHandles:   make(map[string]handle.Handle),
	}
	h.loader = loader.New(h.ctxt, lang.Stages{}, rep)
	if rep == nil {
		h.rep = nopReporter{}
	}
	return h
}

type nopReporter struct{}

func (nopReporter) Message(string) {}
func (nopReporter) Fatal(string)   {}

// Context exposes the host's runtime context for lookups.
func (h *Host) Context() *runtime.Context { return h.ctxt }

// Loader exposes the model loader.
func (h *Host) Loader() *loader.Loader { return h.loader }

// Debug reports whether debug infrastructure was requested at Init.
func (h *Host) Debug() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.debug
}

// Init configures the source descriptor and optionally loads the model
// immediately. It is idempotent: once a call succeeds, later calls return
// nil without reading their arguments, so the first caller's configuration
// wins.
func (h *Host) Init(ctx context.Context, src *lang.Source, load, debug bool) error {
	h.mu.Lock()
	if h.initialized {
		h.mu.Unlock()
		return nil
	}
	h.debug = debug
	h.mu.Unlock()

	h.loader.SetSource(src)
	if load {
		if err := h.loader.EnsureLoaded(ctx); err != nil {
			return err
		}
	}

	h.mu.Lock()
	h.initialized = true
	h.mu.Unlock()
	return nil
}

// NewBackend registers the application's sink and returns its handle, to be
// passed to NewActor.
func (h *Host) NewBackend(sink BackendSink) handle.Handle {
	b := &boundSink{host: h, sink: sink}
	b.self = h.backends.Put(b)
	return b.self
}

// NewActor ensures the model is loaded, resolves the component and action
// types, and creates an execution entity bound to the given backend. On any
// failure it reports a fatal message and returns the zero handle.
func (h *Host) NewActor(ctx context.Context, seed, compName, actionName string, backendH handle.Handle) (handle.Handle, error) {
	if err := h.loader.EnsureLoaded(ctx); err != nil {
		h.rep.Fatal("Failed to load source files")
		return handle.Zero, err
	}

	sink, err := h.backends.Get(backendH)
	if err != nil {
		return handle.Zero, fmt.Errorf("backend: %w", err)
	}

	comp := h.ctxt.FindComponentType(compName)
	if comp == nil {
		h.rep.Fatal(fmt.Sprintf("Failed to find component %s", compName))
		return handle.Zero, fmt.Errorf("component %q not found", compName)
	}
	act := h.ctxt.FindActionType(actionName)
	if act == nil {
		h.rep.Fatal(fmt.Sprintf("Failed to find action %s", actionName))
		return handle.Zero, fmt.Errorf("action %q not found", actionName)
	}

	table := bridge.NewFuncTable()
	a := actor.New(h.ctxt, seed, comp, act, table, bridge.NewProxy(table, sink))
	actorH := h.actors.Put(a)
	threadH := h.threads.Put(a.Thread())

	h.mu.Lock()
	h.threadHandles[a.Thread()] = threadH
	h.mu.Unlock()

	ctxlog.FromContext(ctx).Debug("Actor created.",
		"component", comp.Name, "action", act.QualifiedName, "seed", a.Seed())
	return actorH, nil
}

// ReleaseActor destroys an execution entity. Its thread handle dies with it.
func (h *Host) ReleaseActor(actorH handle.Handle) error {
	a, err := h.actors.Get(actorH)
	if err != nil {
		return err
	}
	h.mu.Lock()
	threadH, ok := h.threadHandles[a.Thread()]
	delete(h.threadHandles, a.Thread())
	h.mu.Unlock()
	if ok {
		_ = h.threads.Delete(threadH)
	}
	return h.actors.Delete(actorH)
}

// ActorEval advances the actor's run and returns its status code: 0 while
// suspended awaiting a host result, non-zero when terminal.
func (h *Host) ActorEval(ctx context.Context, actorH handle.Handle) (int32, error) {
	a, err := h.actors.Get(actorH)
	if err != nil {
		return actor.StatusFailed, err
	}
	st := a.Eval(ctx)
	if st == actor.StatusFailed {
		return st, a.Err()
	}
	return st, nil
}

// RegisterFunctionID installs a name→id mapping in the actor's table.
func (h *Host) RegisterFunctionID(actorH handle.Handle, name string, id int32) error {
	a, err := h.actors.Get(actorH)
	if err != nil {
		return err
	}
	return a.RegisterFunctionID(name, id)
}

// FunctionID resolves a function-type handle to the id registered with the
// actor. An unregistered function yields bridge.NotFoundID with nil error;
// only bad handles error.
func (h *Host) FunctionID(actorH, funcH handle.Handle) (int32, error) {
	a, err := h.actors.Get(actorH)
	if err != nil {
		return bridge.NotFoundID, err
	}
	fn, err := h.funcs.Get(funcH)
	if err != nil {
		return bridge.NotFoundID, err
	}
	id, err := a.FunctionID(fn)
	if err != nil {
		return bridge.NotFoundID, nil
	}
	return id, nil
}

// FunctionTypes returns handles for every declared function, in declaration
// order. The model must be loaded first.
func (h *Host) FunctionTypes() ([]handle.Handle, error) {
	m := h.ctxt.Model()
	if m == nil {
		return nil, fmt.Errorf("model not loaded")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]handle.Handle, 0, len(m.FunctionList))
	for _, fn := range m.FunctionList {
		fh, ok := h.funcHandles[fn.Name]
		if !ok {
			fh = h.funcs.Put(fn)
			h.funcHandles[fn.Name] = fh
		}
		out = append(out, fh)
	}
	return out, nil
}

// FunctionTypeName returns the name of a function type. The returned string
// is owned by the caller; nothing is overwritten by later calls.
func (h *Host) FunctionTypeName(funcH handle.Handle) (string, error) {
	fn, err := h.funcs.Get(funcH)
	if err != nil {
		return "", err
	}
	return fn.Name, nil
}

// ListSize returns the element count of an argument list.
func (h *Host) ListSize(listH handle.Handle) (int32, error) {
	l, err := h.lists.Get(listH)
	if err != nil {
		return 0, err
	}
	return int32(l.Len()), nil
}

// ListAt returns the value reference at index i of an argument list. An
// out-of-range index fails with a val.IndexError.
func (h *Host) ListAt(listH handle.Handle, i int32) (val.Ref, error) {
	l, err := h.lists.Get(listH)
	if err != nil {
		return val.Ref{}, err
	}
	return l.At(int(i))
}

// SetVoidResult resumes the thread's pending call with a void completion
// and retires the call's argument list handle.
func (h *Host) SetVoidResult(threadH handle.Handle) error {
	th, err := h.threads.Get(threadH)
	if err != nil {
		return err
	}
	h.retireList(threadH)
	return th.SetVoidResult()
}

// SetIntResult resumes the thread's pending call with a sized integer and
// retires the call's argument list handle.
func (h *Host) SetIntResult(threadH handle.Handle, value int64, signed bool, width int) error {
	th, err := h.threads.Get(threadH)
	if err != nil {
		return err
	}
	h.retireList(threadH)
	return th.SetIntResult(value, signed, width)
}

// retireList invalidates the argument list tied to the thread's in-flight
// call; lists are call-scoped.
func (h *Host) retireList(threadH handle.Handle) {
	h.mu.Lock()
	listH, ok := h.inflightLists[threadH]
	delete(h.inflightLists, threadH)
	h.mu.Unlock()
	if ok {
		_ = h.lists.Delete(listH)
	}
}

// boundSink adapts the typed bridge.Sink surface to the handle-based
// BackendSink the application implements.
type boundSink struct {
	host *Host
	self handle.Handle
	sink BackendSink
}

func (b *boundSink) CallFuncReq(th *runtime.EvalThread, funcID int32, args *val.List) {
	h := b.host
	h.mu.Lock()
	threadH, ok := h.threadHandles[th]
	h.mu.Unlock()
	if !ok {
		// A thread the host never issued a handle for cannot be resumed;
		// issue one so the call stays answerable.
		threadH = h.threads.Put(th)
		h.mu.Lock()
		h.threadHandles[th] = threadH
		h.mu.Unlock()
	}

	listH := h.lists.Put(args)
	h.mu.Lock()
	h.inflightLists[threadH] = listH
	h.mu.Unlock()

	b.sink.CallFuncReq(b.self, threadH, funcID, listH)
}

func (b *boundSink) EmitMessage(text string) {
	b.sink.EmitMessage(b.self, text)
}
