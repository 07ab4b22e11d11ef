// Package delay provides the built-in `delay` host function: it sleeps for
// the given number of milliseconds, honoring context cancellation.
package delay

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/actionrungo/internal/hostfn"
	"github.com/vk/actionrungo/internal/val"
)

// Module implements hostfn.Module.
type Module struct{}

// New returns the delay module.
func New() *Module {
	return &Module{}
}

// Register installs the `delay` function.
func (m *Module) Register(r *hostfn.Registry) {
	r.Register("delay", m.run)
}

func (m *Module) run(ctx context.Context, args *val.List) (val.Ref, error) {
	if args.Len() != 1 {
		return val.Ref{}, fmt.Errorf("delay expects 1 argument, got %d", args.Len())
	}
	ref, err := args.At(0)
	if err != nil {
		return val.Ref{}, err
	}
	ms, err := ref.AsInt64()
	if err != nil {
		return val.Ref{}, fmt.Errorf("delay duration: %w", err)
	}
	if ms < 0 {
		return val.Ref{}, fmt.Errorf("delay duration must not be negative, got %d", ms)
	}

	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return val.VoidRef(), nil
	case <-ctx.Done():
		return val.Ref{}, ctx.Err()
	}
}
