package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/actionrungo/internal/actor"
	"github.com/vk/actionrungo/internal/bridge"
	"github.com/vk/actionrungo/internal/handle"
	"github.com/vk/actionrungo/internal/lang"
)

type recordedCall struct {
	backendH handle.Handle
	threadH  handle.Handle
	funcID   int32
	argsH    handle.Handle
}

// appSink plays the embedding application: it records crossings and can
// answer calls synchronously through the host's result setters.
type appSink struct {
	host     *Host
	calls    []recordedCall
	messages []string
	respond  func(threadH handle.Handle, funcID int32, argsH handle.Handle)
}

func (s *appSink) CallFuncReq(backendH, threadH handle.Handle, funcID int32, argsH handle.Handle) {
	s.calls = append(s.calls, recordedCall{backendH, threadH, funcID, argsH})
	if s.respond != nil {
		s.respond(threadH, funcID, argsH)
	}
}

func (s *appSink) EmitMessage(_ handle.Handle, text string) {
	s.messages = append(s.messages, text)
}

type recordingReporter struct {
	messages []string
	fatals   []string
}

func (r *recordingReporter) Message(text string) { r.messages = append(r.messages, text) }
func (r *recordingReporter) Fatal(text string)   { r.fatals = append(r.fatals, text) }

const minimalSource = `
component "C" {
  action "A" {
    exec {
      message { text = "hello" }
    }
  }
}
`

const callingSource = `
component "C" {
  action "A" {
    exec {
      call "f" { args = [7] }
    }
  }
}

function "f" {
  param "x" { type = number }
}
`

func TestInitAndLookupScenario(t *testing.T) {
	rep := &recordingReporter{}
	h := New(rep)
	ctx := context.Background()

	require.NoError(t, h.Init(ctx, &lang.Source{Inline: minimalSource}, true, false))
	require.NotNil(t, h.Context().FindComponentType("C"))
	require.NotNil(t, h.Context().FindActionType("A"))

	sink := &appSink{host: h}
	backendH := h.NewBackend(sink)
	actorH, err := h.NewActor(ctx, "seed", "C", "A", backendH)
	require.NoError(t, err)
	require.NotEqual(t, handle.Zero, actorH)

	// No external calls in the body: the run reaches a terminal status
	// without ever crossing the call bridge.
	st, err := h.ActorEval(ctx, actorH)
	require.NoError(t, err)
	assert.Equal(t, actor.StatusDone, st)
	assert.Empty(t, sink.calls)
	assert.Equal(t, []string{"hello"}, sink.messages)
	assert.Empty(t, rep.fatals)
}

func TestInitIdempotentFirstWins(t *testing.T) {
	h := New(nil)
	ctx := context.Background()

	require.NoError(t, h.Init(ctx, &lang.Source{Inline: minimalSource}, true, false))

	// The second init is a no-op: its bogus source is never read.
	require.NoError(t, h.Init(ctx, &lang.Source{Path: "/nonexistent"}, true, false))
	assert.NotNil(t, h.Context().FindComponentType("C"))
}

func TestInitDeferredLoad(t *testing.T) {
	h := New(nil)
	ctx := context.Background()

	require.NoError(t, h.Init(ctx, &lang.Source{Inline: minimalSource}, false, false))
	assert.False(t, h.Context().Loaded())
	assert.Nil(t, h.Context().FindComponentType("C"))

	// The first operation that needs the model triggers the load.
	backendH := h.NewBackend(&appSink{host: h})
	_, err := h.NewActor(ctx, "", "C", "A", backendH)
	require.NoError(t, err)
	assert.True(t, h.Context().Loaded())
}

func TestNewActorUnknownTypes(t *testing.T) {
	rep := &recordingReporter{}
	h := New(rep)
	ctx := context.Background()
	require.NoError(t, h.Init(ctx, &lang.Source{Inline: minimalSource}, true, false))
	backendH := h.NewBackend(&appSink{host: h})

	actorH, err := h.NewActor(ctx, "", "nope", "A", backendH)
	assert.Error(t, err)
	assert.Equal(t, handle.Zero, actorH)
	assert.Contains(t, rep.fatals, "Failed to find component nope")

	actorH, err = h.NewActor(ctx, "", "C", "nope", backendH)
	assert.Error(t, err)
	assert.Equal(t, handle.Zero, actorH)
	assert.Contains(t, rep.fatals, "Failed to find action nope")
}

func TestNewActorLoadFailure(t *testing.T) {
	rep := &recordingReporter{}
	h := New(rep)
	ctx := context.Background()
	require.NoError(t, h.Init(ctx, &lang.Source{Inline: `component "broken" {`}, false, false))
	backendH := h.NewBackend(&appSink{host: h})

	actorH, err := h.NewActor(ctx, "", "C", "A", backendH)
	assert.Error(t, err)
	assert.Equal(t, handle.Zero, actorH)
	assert.Contains(t, rep.fatals, "Failed to load source files")
}

func TestFunctionRegistrationRoundTrip(t *testing.T) {
	h := New(nil)
	ctx := context.Background()
	require.NoError(t, h.Init(ctx, &lang.Source{Inline: callingSource}, true, false))

	backendH := h.NewBackend(&appSink{host: h})
	actorH, err := h.NewActor(ctx, "", "C", "A", backendH)
	require.NoError(t, err)

	fns, err := h.FunctionTypes()
	require.NoError(t, err)
	require.Len(t, fns, 1)

	name, err := h.FunctionTypeName(fns[0])
	require.NoError(t, err)
	assert.Equal(t, "f", name)

	// Unregistered: NotFound sentinel, not an error.
	id, err := h.FunctionID(actorH, fns[0])
	require.NoError(t, err)
	assert.Equal(t, bridge.NotFoundID, id)

	require.NoError(t, h.RegisterFunctionID(actorH, "f", 12))
	id, err = h.FunctionID(actorH, fns[0])
	require.NoError(t, err)
	assert.Equal(t, int32(12), id)
}

func TestCallSuspendAndResumeAcrossBoundary(t *testing.T) {
	h := New(nil)
	ctx := context.Background()
	require.NoError(t, h.Init(ctx, &lang.Source{Inline: callingSource}, true, false))

	sink := &appSink{host: h}
	backendH := h.NewBackend(sink)
	actorH, err := h.NewActor(ctx, "", "C", "A", backendH)
	require.NoError(t, err)
	require.NoError(t, h.RegisterFunctionID(actorH, "f", 3))

	// The sink does not answer: evaluation suspends on the call.
	st, err := h.ActorEval(ctx, actorH)
	require.NoError(t, err)
	require.Equal(t, actor.StatusPending, st)
	require.Len(t, sink.calls, 1)

	call := sink.calls[0]
	assert.Equal(t, backendH, call.backendH)
	assert.Equal(t, int32(3), call.funcID)

	// The argument list is queryable while the call is in flight.
	size, err := h.ListSize(call.argsH)
	require.NoError(t, err)
	require.Equal(t, int32(1), size)
	ref, err := h.ListAt(call.argsH, 0)
	require.NoError(t, err)
	n, err := ref.AsInt64()
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	_, err = h.ListAt(call.argsH, 5)
	assert.Error(t, err)

	// Void completion on the same thread resumes evaluation.
	require.NoError(t, h.SetVoidResult(call.threadH))
	st, err = h.ActorEval(ctx, actorH)
	require.NoError(t, err)
	assert.Equal(t, actor.StatusDone, st)

	// The list was call-scoped; its handle died with the call.
	_, err = h.ListSize(call.argsH)
	assert.ErrorIs(t, err, handle.ErrStaleHandle)
}

func TestSynchronousAnswerFromSink(t *testing.T) {
	h := New(nil)
	ctx := context.Background()
	require.NoError(t, h.Init(ctx, &lang.Source{Inline: callingSource}, true, false))

	sink := &appSink{host: h}
	sink.respond = func(threadH handle.Handle, _ int32, _ handle.Handle) {
		require.NoError(t, h.SetVoidResult(threadH))
	}
	backendH := h.NewBackend(sink)
	actorH, err := h.NewActor(ctx, "", "C", "A", backendH)
	require.NoError(t, err)
	require.NoError(t, h.RegisterFunctionID(actorH, "f", 0))

	st, err := h.ActorEval(ctx, actorH)
	require.NoError(t, err)
	assert.Equal(t, actor.StatusDone, st)
}

func TestReleaseActor(t *testing.T) {
	h := New(nil)
	ctx := context.Background()
	require.NoError(t, h.Init(ctx, &lang.Source{Inline: minimalSource}, true, false))
	backendH := h.NewBackend(&appSink{host: h})
	actorH, err := h.NewActor(ctx, "", "C", "A", backendH)
	require.NoError(t, err)

	require.NoError(t, h.ReleaseActor(actorH))
	_, err = h.ActorEval(ctx, actorH)
	assert.ErrorIs(t, err, handle.ErrStaleHandle)
	assert.ErrorIs(t, h.ReleaseActor(actorH), handle.ErrStaleHandle)
}
