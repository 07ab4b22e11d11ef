// Package actor implements the execution entity: one simulation run bound
// to a component type and an action type, driving evaluation steps and
// routing external function calls through its call bridge.
package actor

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/vk/actionrungo/internal/bridge"
	"github.com/vk/actionrungo/internal/model"
	"github.com/vk/actionrungo/internal/runtime"
	"github.com/vk/actionrungo/internal/val"
)

// Eval status codes. Zero means the run is suspended awaiting a host
// result; anything else is terminal.
const (
	StatusPending int32 = 0
	StatusDone    int32 = 1
	StatusFailed  int32 = 2
)

// Actor is one run instance. It owns its evaluation thread and function id
// table; the bridge backend is shared with the host that created it. An
// Actor must not outlive the Context it was created against.
type Actor struct {
	ctxt    *runtime.Context
	seed    string
	comp    *model.ComponentType
	action  *model.ActionType
	backend bridge.Backend
	thread  *runtime.EvalThread
	table   *bridge.FuncTable

	mu        sync.Mutex
	started   bool
	finalized bool
	final     int32
	err       error
	yield     chan int32
	done      chan struct{}
}

// New creates an actor bound to the given component and action types. An
// empty seed gets a fresh uuid.
func New(ctxt *runtime.Context, seed string, comp *model.ComponentType, action *model.ActionType, table *bridge.FuncTable, backend bridge.Backend) *Actor {
	if seed == "" {
		seed = uuid.NewString()
	}
	return &Actor{
		ctxt:    ctxt,
		seed:    seed,
		comp:    comp,
		action:  action,
		backend: backend,
		thread:  runtime.NewEvalThread(seed),
		table:   table,
		yield:   make(chan int32, 1),
		done:    make(chan struct{}),
	}
}

// Seed returns the actor's seed value.
func (a *Actor) Seed() string { return a.seed }

// Thread returns the actor's evaluation thread.
func (a *Actor) Thread() *runtime.EvalThread { return a.thread }

// Table returns the actor's function registration table.
func (a *Actor) Table() *bridge.FuncTable { return a.table }

// RegisterFunctionID installs a name→id mapping in the actor's table.
func (a *Actor) RegisterFunctionID(name string, id int32) error {
	return a.table.Register(name, id)
}

// FunctionID resolves a function type to its registered id.
func (a *Actor) FunctionID(fn *model.FunctionType) (int32, error) {
	return a.table.ID(fn)
}

// Err returns the failure cause after Eval reported StatusFailed.
func (a *Actor) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Eval advances the run. The first call starts evaluation and its context
// governs the run for its whole lifetime, including the waits inside
// suspended calls; contexts passed to later calls only bound that call's
// wait for a status. Each call returns StatusPending while the run is
// suspended on an external function call, and a terminal status once the
// run completes. After a suspension the host supplies the result through
// the actor's thread, then calls Eval again to collect the next status.
// The host may answer several suspensions before re-entering Eval; the
// terminal status is latched by the run itself and is never lost.
func (a *Actor) Eval(ctx context.Context) int32 {
	a.mu.Lock()
	if a.finalized {
		st := a.final
		a.mu.Unlock()
		return st
	}
	if !a.started {
		a.started = true
		go a.run(ctx)
	}
	a.mu.Unlock()

	select {
	case st := <-a.yield:
		// A Pending yielded just before the run finished is reported
		// as-is; the next Eval picks the latched terminal status up.
		return st
	case <-a.done:
		a.mu.Lock()
		st := a.final
		a.mu.Unlock()
		return st
	case <-ctx.Done():
		a.finalize(StatusFailed, ctx.Err())
		return StatusFailed
	}
}

func (a *Actor) finalize(st int32, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return
	}
	a.finalized = true
	a.final = st
	if err != nil {
		a.err = err
	}
}

// run executes the action body on its own goroutine. Suspension points go
// through the yield channel; the terminal status is latched directly and
// announced by closing done, so it survives any number of host answers
// delivered between Eval calls.
func (a *Actor) run(ctx context.Context) {
	err := a.exec(ctx, a.action.Body)
	st := StatusDone
	if err != nil {
		st = StatusFailed
	}
	a.finalize(st, err)
	close(a.done)
}

// post reports a suspension without blocking. The buffer only still holds a
// Pending when a cancelled Eval abandoned it, and cancellation has already
// latched a terminal status, so dropping the send is safe.
func (a *Actor) post(st int32) {
	select {
	case a.yield <- st:
	default:
	}
}

func (a *Actor) exec(ctx context.Context, stmts []model.Stmt) error {
	for _, st := range stmts {
		switch s := st.(type) {
		case *model.MessageStmt:
			a.backend.EmitMessage(s.Text)
		case *model.RepeatStmt:
			for i := 0; i < s.Count; i++ {
				if err := a.exec(ctx, s.Body); err != nil {
					return err
				}
			}
		case *model.CallStmt:
			if err := a.call(ctx, s); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown statement type %T", st)
		}
	}
	return nil
}

// call issues one bridge call and suspends until the host's result arrives.
// When the host completed the call synchronously from within the sink, the
// poll fast path picks the result up without parking.
func (a *Actor) call(ctx context.Context, s *model.CallStmt) error {
	refs := make([]val.Ref, len(s.Args))
	for i, v := range s.Args {
		refs[i] = val.CtyRef(v)
	}
	if err := a.backend.CallFuncReq(ctx, a.thread, s.Function, refs); err != nil {
		return fmt.Errorf("call %q: %w", s.Function.Name, err)
	}

	res, ok := a.thread.Poll()
	if !ok {
		a.post(StatusPending)
		var err error
		res, err = a.thread.Await(ctx)
		if err != nil {
			return fmt.Errorf("call %q: %w", s.Function.Name, err)
		}
	}

	if s.Function.Result != nil && res.Kind() == val.KindVoid {
		return fmt.Errorf("call %q: host returned void but an integer result is declared", s.Function.Name)
	}
	if s.Function.Result == nil && res.Kind() != val.KindVoid {
		return fmt.Errorf("call %q: host returned a value but the function is void", s.Function.Name)
	}
	return nil
}
