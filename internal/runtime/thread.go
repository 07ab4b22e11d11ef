package runtime

import (
	"context"
	"errors"
	"sync"

	"github.com/vk/actionrungo/internal/val"
)

var (
	// ErrCallInFlight is returned when a thread that already has a pending
	// call issues another one. A thread correlates exactly one call at a
	// time.
	ErrCallInFlight = errors.New("thread already has a call in flight")
	// ErrNoCallPending is returned by the result setters when the thread is
	// not awaiting a result.
	ErrNoCallPending = errors.New("thread has no call pending")
	// ErrResultAlreadySet is returned when the pending call's result was
	// already supplied.
	ErrResultAlreadySet = errors.New("result already set for pending call")
)

// EvalThread is one strand of simulated execution. A host function call
// suspends the thread on an explicit pending-result slot; the host resumes
// it by supplying the result through SetVoidResult or SetIntResult. The
// thread itself is the correlation key: only its own pending call can be
// completed, and no other thread is affected.
type EvalThread struct {
	id string

	mu      sync.Mutex
	pending chan val.Ref
}

// NewEvalThread returns a runnable thread with the given identifier.
func NewEvalThread(id string) *EvalThread {
	return &EvalThread{id: id}
}

// ID returns the thread identifier.
func (t *EvalThread) ID() string { return t.id }

// BeginCall transitions the thread into the awaiting-result state. It fails
// if a call is already in flight.
func (t *EvalThread) BeginCall() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		return ErrCallInFlight
	}
	t.pending = make(chan val.Ref, 1)
	return nil
}

// Poll returns the pending call's result without blocking. The second return
// is false while the result has not arrived or no call is in flight.
func (t *EvalThread) Poll() (val.Ref, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return val.Ref{}, false
	}
	select {
	case r := <-t.pending:
		t.pending = nil
		return r, true
	default:
		return val.Ref{}, false
	}
}

// Await blocks the calling goroutine until the host supplies the pending
// call's result or ctx is cancelled. There is no timeout at this layer;
// cancellation policy belongs to the scheduler that owns the thread.
func (t *EvalThread) Await(ctx context.Context) (val.Ref, error) {
	t.mu.Lock()
	ch := t.pending
	t.mu.Unlock()
	if ch == nil {
		return val.Ref{}, ErrNoCallPending
	}
	select {
	case r := <-ch:
		t.mu.Lock()
		t.pending = nil
		t.mu.Unlock()
		return r, nil
	case <-ctx.Done():
		return val.Ref{}, ctx.Err()
	}
}

// SetVoidResult resumes the pending call with a void completion.
func (t *EvalThread) SetVoidResult() error {
	return t.deliver(val.VoidRef())
}

// SetIntResult resumes the pending call with a sized integer value.
func (t *EvalThread) SetIntResult(value int64, signed bool, width int) error {
	return t.deliver(val.IntRef(value, signed, width))
}

// SetResult resumes the pending call with an arbitrary value reference.
func (t *EvalThread) SetResult(r val.Ref) error {
	return t.deliver(r)
}

func (t *EvalThread) deliver(r val.Ref) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == nil {
		return ErrNoCallPending
	}
	select {
	case t.pending <- r:
		return nil
	default:
		return ErrResultAlreadySet
	}
}
