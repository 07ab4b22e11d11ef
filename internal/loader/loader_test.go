package loader

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/actionrungo/internal/diag"
	"github.com/vk/actionrungo/internal/lang"
	"github.com/vk/actionrungo/internal/model"
	"github.com/vk/actionrungo/internal/runtime"
)

// stubPipeline counts stage invocations and lets tests inject diagnostics
// or fatal errors per stage.
type stubPipeline struct {
	parseCalls, linkCalls, buildCalls int

	onParse func(d *diag.Collector) error
	onLink  func(d *diag.Collector) error
	onBuild func(d *diag.Collector) error
}

func (p *stubPipeline) Parse(_ context.Context, _ *lang.Source, d *diag.Collector) ([]*lang.Unit, error) {
	p.parseCalls++
	if p.onParse != nil {
		if err := p.onParse(d); err != nil {
			return nil, err
		}
	}
	return []*lang.Unit{}, nil
}

func (p *stubPipeline) Link(_ context.Context, _ []*lang.Unit, d *diag.Collector) (*lang.Scope, error) {
	p.linkCalls++
	if p.onLink != nil {
		if err := p.onLink(d); err != nil {
			return nil, err
		}
	}
	return &lang.Scope{}, nil
}

func (p *stubPipeline) Build(_ context.Context, _ *runtime.Context, _ *lang.Scope, d *diag.Collector) (*model.Model, error) {
	p.buildCalls++
	if p.onBuild != nil {
		if err := p.onBuild(d); err != nil {
			return nil, err
		}
	}
	return model.New(), nil
}

// recordingReporter captures the message and fatal channels.
type recordingReporter struct {
	messages []string
	fatals   []string
}

func (r *recordingReporter) Message(text string) { r.messages = append(r.messages, text) }
func (r *recordingReporter) Fatal(text string)   { r.fatals = append(r.fatals, text) }

func newTestLoader(pipe Pipeline, rep Reporter) (*Loader, *runtime.Context) {
	ctxt := runtime.NewContext()
	return New(ctxt, pipe, rep), ctxt
}

func TestEnsureLoadedNoSource(t *testing.T) {
	rep := &recordingReporter{}
	l, _ := newTestLoader(&stubPipeline{}, rep)

	err := l.EnsureLoaded(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)
	assert.Contains(t, rep.fatals, "no source files specified")
	assert.Equal(t, StateUnloaded, l.State())
}

func TestEnsureLoadedIdempotent(t *testing.T) {
	pipe := &stubPipeline{}
	l, ctxt := newTestLoader(pipe, nil)
	l.SetSource(&lang.Source{Inline: "component \"c\" {}"})

	require.NoError(t, l.EnsureLoaded(context.Background()))
	assert.Equal(t, StateLoaded, l.State())
	assert.True(t, ctxt.Loaded())

	// The second call performs no pipeline work.
	require.NoError(t, l.EnsureLoaded(context.Background()))
	assert.Equal(t, 1, pipe.parseCalls)
	assert.Equal(t, 1, pipe.linkCalls)
	assert.Equal(t, 1, pipe.buildCalls)
}

func TestFirstSourceWins(t *testing.T) {
	l, _ := newTestLoader(&stubPipeline{}, nil)
	first := &lang.Source{Inline: "a"}
	l.SetSource(first)
	l.SetSource(&lang.Source{Inline: "b"})

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Same(t, first, l.src)
}

func TestParseErrorsStopPipeline(t *testing.T) {
	rep := &recordingReporter{}
	pipe := &stubPipeline{
		onParse: func(d *diag.Collector) error {
			d.Record(diag.Error, "unexpected token")
			return nil
		},
	}
	l, ctxt := newTestLoader(pipe, rep)
	l.SetSource(&lang.Source{Inline: "x"})

	err := l.EnsureLoaded(context.Background())
	require.Error(t, err)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "Parse errors", le.Msg)
	require.Len(t, le.Diags, 1)

	// Later stages never ran.
	assert.Equal(t, 1, pipe.parseCalls)
	assert.Zero(t, pipe.linkCalls)
	assert.Zero(t, pipe.buildCalls)
	assert.Equal(t, []string{"Parse errors"}, rep.fatals)
	assert.False(t, ctxt.Loaded())
}

func TestLinkErrorsStopBuild(t *testing.T) {
	pipe := &stubPipeline{
		onLink: func(d *diag.Collector) error {
			d.Record(diag.Error, "unresolved reference")
			return nil
		},
	}
	rep := &recordingReporter{}
	l, _ := newTestLoader(pipe, rep)
	l.SetSource(&lang.Source{Inline: "x"})

	err := l.EnsureLoaded(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Linking errors", err.Error())
	assert.Equal(t, 1, pipe.linkCalls)
	assert.Zero(t, pipe.buildCalls)
}

func TestBuildErrorsReported(t *testing.T) {
	pipe := &stubPipeline{
		onBuild: func(d *diag.Collector) error {
			d.Record(diag.Error, "type mismatch")
			return nil
		},
	}
	rep := &recordingReporter{}
	l, ctxt := newTestLoader(pipe, rep)
	l.SetSource(&lang.Source{Inline: "x"})

	err := l.EnsureLoaded(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Data-model build errors", err.Error())
	assert.False(t, ctxt.Loaded())
}

func TestWarningsDoNotGate(t *testing.T) {
	pipe := &stubPipeline{
		onParse: func(d *diag.Collector) error {
			d.Record(diag.Info, "parsed one unit")
			d.Record(diag.Warning, "deprecated syntax")
			return nil
		},
	}
	l, _ := newTestLoader(pipe, nil)
	l.SetSource(&lang.Source{Inline: "x"})

	require.NoError(t, l.EnsureLoaded(context.Background()))
	assert.Equal(t, 1, pipe.buildCalls)
}

func TestFatalParseAborts(t *testing.T) {
	pipe := &stubPipeline{
		onParse: func(*diag.Collector) error {
			return errors.New("failed to open /missing/top.hcl: no such file")
		},
	}
	rep := &recordingReporter{}
	l, _ := newTestLoader(pipe, rep)
	l.SetSource(&lang.Source{Path: "/missing/top.hcl"})

	err := l.EnsureLoaded(context.Background())
	require.Error(t, err)
	require.Len(t, rep.fatals, 1)
	assert.Contains(t, rep.fatals[0], "failed to open")
	assert.Zero(t, pipe.linkCalls)
}

func TestFailureRetriesFromScratch(t *testing.T) {
	fail := true
	pipe := &stubPipeline{
		onParse: func(d *diag.Collector) error {
			if fail {
				d.Record(diag.Error, "transient")
			}
			return nil
		},
	}
	l, ctxt := newTestLoader(pipe, nil)
	l.SetSource(&lang.Source{Inline: "x"})

	require.Error(t, l.EnsureLoaded(context.Background()))
	assert.Equal(t, StateUnloaded, l.State())

	// Failure is not cached: the next call re-runs the pipeline.
	fail = false
	require.NoError(t, l.EnsureLoaded(context.Background()))
	assert.Equal(t, 2, pipe.parseCalls)
	assert.True(t, ctxt.Loaded())
}
