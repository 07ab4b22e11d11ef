// Package print provides the built-in `print` host function: it writes its
// arguments to the module's output and completes with void.
package print

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zclconf/go-cty/cty"

	"github.com/vk/actionrungo/internal/hostfn"
	"github.com/vk/actionrungo/internal/val"
)

// Module implements hostfn.Module.
type Module struct {
	Out io.Writer
}

// New returns a print module writing to out, defaulting to stdout.
func New(out io.Writer) *Module {
	if out == nil {
		out = os.Stdout
	}
	return &Module{Out: out}
}

// Register installs the `print` function.
func (m *Module) Register(r *hostfn.Registry) {
	r.Register("print", m.run)
}

func (m *Module) run(_ context.Context, args *val.List) (val.Ref, error) {
	parts := make([]string, 0, args.Len())
	for i := 0; i < args.Len(); i++ {
		ref, err := args.At(i)
		if err != nil {
			return val.Ref{}, err
		}
		parts = append(parts, render(ref))
	}
	if _, err := fmt.Fprintln(m.Out, strings.Join(parts, " ")); err != nil {
		return val.Ref{}, err
	}
	return val.VoidRef(), nil
}

func render(r val.Ref) string {
	v := r.Cty()
	if v == cty.NilVal {
		return "<void>"
	}
	switch v.Type() {
	case cty.String:
		return v.AsString()
	case cty.Number:
		return v.AsBigFloat().Text('g', -1)
	case cty.Bool:
		if v.True() {
			return "true"
		}
		return "false"
	default:
		return v.GoString()
	}
}
