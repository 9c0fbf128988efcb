// Package executor runs a built recipe plan against an engine.
//
// With a single worker the steps run strictly one at a time in plan order.
// With more workers, independent branches of the dependency graph run
// concurrently: a ready channel is fed by per-step dependency counters, and
// the first failure cancels the run and skips everything downstream.
package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"github.com/specialistvlad/habitatgrid/internal/dag"
	"github.com/specialistvlad/habitatgrid/internal/engine"
	"github.com/specialistvlad/habitatgrid/internal/registry"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Executor runs the steps of a plan.
type Executor struct {
	plan       *dag.Plan
	env        *registry.Env
	numWorkers int
	ins        *instruments

	tasks map[string]*task
	wg    sync.WaitGroup

	startedMu sync.Mutex
	started   time.Time
	finished  time.Time
}

// Option configures an Executor.
type Option func(*options)

type options struct {
	workers int
	tp      trace.TracerProvider
	mp      metric.MeterProvider
}

// WithWorkers sets the number of concurrent workers. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithTelemetry overrides the global OpenTelemetry providers.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(o *options) {
		o.tp = tp
		o.mp = mp
	}
}

// New creates an executor for plan.
func New(plan *dag.Plan, env *registry.Env, opts ...Option) (*Executor, error) {
	o := options{workers: 1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	ins, err := newInstruments(o.tp, o.mp)
	if err != nil {
		return nil, err
	}

	e := &Executor{
		plan:       plan,
		env:        env,
		numWorkers: o.workers,
		ins:        ins,
		tasks:      make(map[string]*task, len(plan.Order)),
	}
	for _, s := range plan.Order {
		e.tasks[s.Layer] = newTask(s)
	}
	return e, nil
}

// Execute binds the recipe inputs, runs every step, and writes the run
// manifest into the work directory. It returns an error wrapping the root
// cause when any step fails.
func (e *Executor) Execute(ctx context.Context) (err error) {
	ctx = ctxlog.With(ctx, "runID", e.env.RunID)
	logger := ctxlog.FromContext(ctx)

	e.startedMu.Lock()
	e.started = time.Now()
	e.startedMu.Unlock()
	defer func() {
		e.startedMu.Lock()
		e.finished = time.Now()
		e.startedMu.Unlock()
		if werr := e.writeManifest(ctx, err); werr != nil {
			logger.Error("Failed to write run manifest.", "error", werr)
			if err == nil {
				err = werr
			}
		}
	}()

	if err := e.bindInputs(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if e.numWorkers == 1 {
		logger.Debug("Running steps sequentially.", "steps", len(e.plan.Order))
		e.runSequential(runCtx, cancel)
	} else {
		e.runPool(runCtx, cancel)
	}
	logger.Info("All steps completed.")

	return e.rootCause(ctx)
}

// bindInputs registers every recipe input with the engine.
func (e *Executor) bindInputs(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for _, in := range e.plan.Recipe.Inputs {
		kind, err := engine.ParseKind(in.Kind)
		if err != nil {
			return fmt.Errorf("input %q: %w", in.Name, err)
		}
		if err := e.env.Engine.Bind(ctx, in.Name, kind, in.Path); err != nil {
			return fmt.Errorf("failed to bind input %q: %w", in.Name, err)
		}
		logger.Debug("Input bound.", "input", in.Name, "kind", kind, "path", in.Path)
	}
	return nil
}

// runSequential runs the plan in order on the calling goroutine.
func (e *Executor) runSequential(ctx context.Context, cancel context.CancelFunc) {
	e.wg.Add(len(e.tasks))
	for _, s := range e.plan.Order {
		t := e.tasks[s.Layer]
		if t.getState() != Pending {
			continue
		}
		if ctx.Err() != nil {
			if t.skip(ctx.Err()) {
				e.wg.Done()
			}
			continue
		}
		err := e.runTask(ctx, t)
		e.wg.Done()
		if err != nil {
			cancel()
			e.skipDependents(ctx, t)
		}
	}
	e.wg.Wait()
}

// runPool runs the plan on numWorkers goroutines.
func (e *Executor) runPool(ctx context.Context, cancel context.CancelFunc) {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *task, len(e.tasks))
	e.wg.Add(len(e.tasks))

	rootCount := 0
	for _, s := range e.plan.Order {
		if t := e.tasks[s.Layer]; t.depCount.Load() == 0 {
			logger.Debug("Found root step.", "layer", s.Layer)
			readyChan <- t
			rootCount++
		}
	}

	logger.Debug("Starting worker pool.", "workers", e.numWorkers, "roots", rootCount)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(ctx, readyChan, cancel, i)
	}

	logger.Info("Waiting for all steps to complete...")
	e.wg.Wait()
	close(readyChan)
}

// rootCause aggregates failures. Skipped steps and steps interrupted by the
// cancellation are symptoms, not causes.
func (e *Executor) rootCause(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	var failed []string
	var cause error
	for _, s := range e.plan.Order {
		t := e.tasks[s.Layer]
		_, terr := t.result()
		switch t.getState() {
		case Failed:
			logger.Error("Step failed execution.", "layer", s.Layer, "error", terr)
			if errors.Is(terr, context.Canceled) {
				continue
			}
			failed = append(failed, s.Layer)
			if cause == nil {
				cause = terr
			}
		case Skipped:
			logger.Warn("Step skipped.", "layer", s.Layer, "reason", terr)
		}
	}

	if cause != nil {
		return fmt.Errorf("execution failed for %s: %w", strings.Join(failed, ", "), cause)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("execution interrupted: %w", err)
	}
	return nil
}
