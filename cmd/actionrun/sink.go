package main

import (
	"context"
	"log/slog"

	"github.com/vk/actionrungo/internal/handle"
	"github.com/vk/actionrungo/internal/host"
	"github.com/vk/actionrungo/internal/hostfn"
	"github.com/vk/actionrungo/internal/val"
)

// fnSink answers bridge calls by dispatching to the host function registry.
// It always resumes the calling thread: calls that fail on the host side
// complete with void so the run surfaces the mismatch instead of hanging.
type fnSink struct {
	ctx      context.Context
	host     *host.Host
	registry *hostfn.Registry
	names    map[int32]string
	logger   *slog.Logger
	reporter *consoleReporter
}

func (s *fnSink) CallFuncReq(_, threadH handle.Handle, funcID int32, argsH handle.Handle) {
	name, ok := s.names[funcID]
	if !ok {
		s.logger.Error("Call with unknown function id.", "funcID", funcID)
		s.resumeVoid(threadH)
		return
	}

	fn, ok := s.registry.Lookup(name)
	if !ok {
		s.logger.Error("No host implementation for function.", "function", name)
		s.resumeVoid(threadH)
		return
	}

	args, err := s.copyArgs(argsH)
	if err != nil {
		s.logger.Error("Failed to read call arguments.", "function", name, "error", err)
		s.resumeVoid(threadH)
		return
	}

	res, err := fn(s.ctx, args)
	if err != nil {
		s.logger.Error("Host function failed.", "function", name, "error", err)
		s.resumeVoid(threadH)
		return
	}

	switch res.Kind() {
	case val.KindInt:
		v, signed, width := res.Int()
		if err := s.host.SetIntResult(threadH, v, signed, width); err != nil {
			s.logger.Error("Failed to set call result.", "function", name, "error", err)
		}
	default:
		s.resumeVoid(threadH)
	}
}

func (s *fnSink) EmitMessage(_ handle.Handle, text string) {
	s.reporter.Message(text)
}

// copyArgs snapshots the call-scoped argument list; the handle dies once a
// result is set, so values are copied out first.
func (s *fnSink) copyArgs(argsH handle.Handle) (*val.List, error) {
	size, err := s.host.ListSize(argsH)
	if err != nil {
		return nil, err
	}
	refs := make([]val.Ref, size)
	for i := int32(0); i < size; i++ {
		refs[i], err = s.host.ListAt(argsH, i)
		if err != nil {
			return nil, err
		}
	}
	return val.NewList(refs), nil
}

func (s *fnSink) resumeVoid(threadH handle.Handle) {
	if err := s.host.SetVoidResult(threadH); err != nil {
		s.logger.Error("Failed to resume thread.", "error", err)
	}
}
