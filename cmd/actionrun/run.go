package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vk/actionrungo/internal/actor"
	"github.com/vk/actionrungo/internal/ctxlog"
	"github.com/vk/actionrungo/internal/host"
	"github.com/vk/actionrungo/internal/hostfn"
	"github.com/vk/actionrungo/internal/lang"
	"github.com/vk/actionrungo/internal/loader"
	"github.com/vk/actionrungo/modules/delay"
	"github.com/vk/actionrungo/modules/print"
)

type runOptions struct {
	source    string
	component string
	action    string
	seed      string
	count     int
	debug     bool
	logLevel  string
	logFormat string
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compile a model and evaluate one action",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.source, "src", "", "path to an .hcl file or a directory of .hcl files")
	cmd.Flags().StringVar(&opts.component, "component", "", "component type to instantiate")
	cmd.Flags().StringVar(&opts.action, "action", "", "action type to evaluate (bare or component.action)")
	cmd.Flags().StringVar(&opts.seed, "seed", "", "seed value; empty generates one per actor")
	cmd.Flags().IntVar(&opts.count, "count", 1, "number of concurrent actors to run")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "enable debug infrastructure")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "text", "log format: text or json")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("component")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

func run(ctx context.Context, outW, errW io.Writer, opts *runOptions) error {
	logger := newLogger(opts.logLevel, opts.logFormat, errW)
	ctx = ctxlog.WithLogger(ctx, logger)
	reporter := &consoleReporter{out: errW}

	h := host.New(reporter)
	if err := h.Init(ctx, &lang.Source{Path: opts.source}, true, opts.debug); err != nil {
		var le *loader.LoadError
		if errors.As(err, &le) {
			renderDiags(errW, le.Diags)
		}
		return fmt.Errorf("failed to load model: %w", err)
	}

	if h.Debug() {
		logger.Debug("Debug infrastructure enabled.")
	}

	registry := hostfn.NewRegistry()
	print.New(outW).Register(registry)
	delay.New().Register(registry)

	// Declared functions get sequential ids in declaration order; the same
	// assignment is registered with every actor.
	fns, err := h.FunctionTypes()
	if err != nil {
		return err
	}
	names := make(map[int32]string, len(fns))
	for i, fh := range fns {
		name, err := h.FunctionTypeName(fh)
		if err != nil {
			return err
		}
		names[int32(i)] = name
		if _, ok := registry.Lookup(name); !ok {
			logger.Warn("Declared function has no host implementation; calls will complete with void.", "function", name)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < opts.count; i++ {
		i := i
		g.Go(func() error {
			return runActor(gctx, h, registry, names, reporter, logger, opts, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("All actors completed.", "count", opts.count)
	return nil
}

func runActor(
	ctx context.Context,
	h *host.Host,
	registry *hostfn.Registry,
	names map[int32]string,
	reporter *consoleReporter,
	logger *slog.Logger,
	opts *runOptions,
	index int,
) error {
	seed := opts.seed
	if seed == "" {
		seed = uuid.NewString()
	} else if opts.count > 1 {
		seed = fmt.Sprintf("%s-%d", seed, index)
	}

	sink := &fnSink{
		ctx:      ctx,
		host:     h,
		registry: registry,
		names:    names,
		logger:   logger.With("actor", index),
		reporter: reporter,
	}
	backendH := h.NewBackend(sink)

	actorH, err := h.NewActor(ctx, seed, opts.component, opts.action, backendH)
	if err != nil {
		return fmt.Errorf("actor %d: %w", index, err)
	}
	defer func() {
		if err := h.ReleaseActor(actorH); err != nil {
			logger.Error("Failed to release actor.", "actor", index, "error", err)
		}
	}()

	for id, name := range names {
		if err := h.RegisterFunctionID(actorH, name, id); err != nil {
			return fmt.Errorf("actor %d: register %q: %w", index, name, err)
		}
	}

	for {
		st, err := h.ActorEval(ctx, actorH)
		if err != nil {
			return fmt.Errorf("actor %d: %w", index, err)
		}
		switch st {
		case actor.StatusPending:
			// The sink answers synchronously, so the next Eval collects
			// the resumed run.
			continue
		case actor.StatusDone:
			logger.Debug("Actor finished.", "actor", index, "seed", seed)
			return nil
		default:
			return fmt.Errorf("actor %d: evaluation failed with status %d", index, st)
		}
	}
}
