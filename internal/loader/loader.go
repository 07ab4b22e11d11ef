// Package loader orchestrates the model compilation pipeline: parse, link,
// and semantic build run strictly in order, sharing one diagnostics
// collector per attempt, and no stage runs once an earlier stage has
// produced an Error-severity diagnostic. Loading is lazy and idempotent:
// the first operation that needs the model triggers it, and repeated calls
// after success are no-ops. A failed attempt is not cached; the next call
// retries from scratch.
package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/vk/actionrungo/internal/ctxlog"
	"github.com/vk/actionrungo/internal/diag"
	"github.com/vk/actionrungo/internal/lang"
	"github.com/vk/actionrungo/internal/model"
	"github.com/vk/actionrungo/internal/runtime"
)

// ErrNoSource is returned by EnsureLoaded when no source was ever
// configured.
var ErrNoSource = errors.New("no source files specified")

// Reporter is the dedicated channel for user-facing text, kept distinct
// from the per-attempt diagnostics. Message carries progress notes; Fatal
// carries named abort conditions that end the current operation.
type Reporter interface {
	Message(text string)
	Fatal(text string)
}

type nopReporter struct{}

func (nopReporter) Message(string) {}
func (nopReporter) Fatal(string)   {}

// Pipeline is the stage surface the loader drives. The production
// implementation is lang.Stages; tests substitute instrumented stages.
type Pipeline interface {
	Parse(ctx context.Context, src *lang.Source, d *diag.Collector) ([]*lang.Unit, error)
	Link(ctx context.Context, units []*lang.Unit, d *diag.Collector) (*lang.Scope, error)
	Build(ctx context.Context, rc *runtime.Context, scope *lang.Scope, d *diag.Collector) (*model.Model, error)
}

// State is the loader's lifecycle position.
type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
)

// LoadError is the failure of one load attempt: the stage's fatal text plus
// the diagnostics the attempt accumulated.
type LoadError struct {
	Msg   string
	Diags []*diag.Diagnostic
}

func (e *LoadError) Error() string { return e.Msg }

// Loader drives the pipeline and owns the source descriptor. Calls are
// serialized internally; the model is attached to the context only after a
// fully successful attempt, so no partially-linked state is observable.
type Loader struct {
	mu    sync.Mutex
	ctxt  *runtime.Context
	pipe  Pipeline
	rep   Reporter
	src   *lang.Source
	state State
}

// New returns an unloaded Loader bound to the given context and pipeline.
// A nil reporter discards messages.
func New(ctxt *runtime.Context, pipe Pipeline, rep Reporter) *Loader {
	if rep == nil {
		rep = nopReporter{}
	}
	return &Loader{ctxt: ctxt, pipe: pipe, rep: rep}
}

// SetSource configures the source descriptor. The first configuration wins;
// later calls are ignored, matching the init-once contract.
func (l *Loader) SetSource(src *lang.Source) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.src == nil {
		l.src = src
	}
}

// State returns the current lifecycle state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// EnsureLoaded makes sure the model is built and attached to the context.
// It returns nil immediately when already loaded.
func (l *Loader) EnsureLoaded(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateLoaded {
		return nil
	}
	if l.src == nil {
		l.rep.Fatal(ErrNoSource.Error())
		return ErrNoSource
	}

	logger := ctxlog.FromContext(ctx)
	l.state = StateLoading
	defer func() {
		if l.state != StateLoaded {
			l.state = StateUnloaded
		}
	}()

	d := diag.NewCollector()
	l.rep.Message("Parsing " + l.describeSource())

	units, err := l.pipe.Parse(ctx, l.src, d)
	if err != nil {
		l.rep.Fatal(err.Error())
		return err
	}
	if d.HasSeverityAtLeast(diag.Error) {
		return l.fail("Parse errors", d)
	}

	scope, err := l.pipe.Link(ctx, units, d)
	if err != nil {
		l.rep.Fatal(err.Error())
		return err
	}
	if d.HasSeverityAtLeast(diag.Error) {
		return l.fail("Linking errors", d)
	}

	m, err := l.pipe.Build(ctx, l.ctxt, scope, d)
	if err != nil {
		l.rep.Fatal(err.Error())
		return err
	}
	if d.HasSeverityAtLeast(diag.Error) {
		return l.fail("Data-model build errors", d)
	}

	if err := l.ctxt.AttachModel(m); err != nil {
		l.rep.Fatal(err.Error())
		return err
	}

	l.state = StateLoaded
	logger.Debug("Model loaded.", "diagnostics", d.Len())
	return nil
}

func (l *Loader) fail(msg string, d *diag.Collector) error {
	l.rep.Fatal(msg)
	return &LoadError{Msg: msg, Diags: d.Diags()}
}

func (l *Loader) describeSource() string {
	if l.src.Inline != "" {
		return fmt.Sprintf("inline source (%d bytes)", len(l.src.Inline))
	}
	return l.src.Path
}
