package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/habitatgrid/internal/ctxlog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *task, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for t := range readyChan {
		if ctx.Err() != nil {
			if t.skip(ctx.Err()) {
				e.wg.Done()
				e.skipDependents(ctx, t)
			}
			continue
		}

		workerLogger := logger.With("workerID", workerID, "layer", t.step.Layer)
		workerLogger.Debug("Worker picked up step for execution.")

		if err := e.runTask(ctx, t); err != nil {
			cancel()
			e.skipDependents(ctx, t)
			e.wg.Done()
			continue
		}

		dependents, err := e.plan.Graph.Dependents(t.step.Layer)
		if err != nil {
			workerLogger.Error("Failed to get dependents for completed step.", "error", err)
		}
		for _, id := range dependents {
			dependent := e.tasks[id]
			if dependent.decrementDepCount() == 0 {
				workerLogger.Debug("Unlocking dependent step.", "dependent", id)
				readyChan <- dependent
			}
		}

		e.wg.Done()
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}

// runTask calls the step's handler and records the outcome on t.
func (e *Executor) runTask(ctx context.Context, t *task) error {
	s := t.step
	ctx = ctxlog.With(ctx, "layer", s.Layer, "op", s.Op)
	logger := ctxlog.FromContext(ctx)

	ctx, span := e.ins.tracer.Start(ctx, "step "+s.Op, trace.WithAttributes(
		attribute.String("habitatgrid.layer", s.Layer),
		attribute.String("habitatgrid.op", s.Op),
		attribute.Int("habitatgrid.seq", s.Seq),
		attribute.String("habitatgrid.run_id", e.env.RunID),
	))
	defer span.End()

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	t.setState(Running)
	logger.Info("▶️ Starting step", "seq", s.Seq)
	start := time.Now()
	err := s.Handler.Run(ctx, e.env, s.Layer, s.Input)
	elapsed := time.Since(start)

	opAttr := metric.WithAttributes(attribute.String("op", s.Op))
	e.ins.steps.Add(ctx, 1, opAttr)

	if err != nil {
		if s.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("step timed out after %s: %w", s.Timeout, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.ins.failures.Add(ctx, 1, opAttr)
		logger.Error("Step execution failed.", "error", err, "duration", elapsed)
		t.finish(Failed, err, elapsed)
		return err
	}

	t.finish(Done, nil, elapsed)
	logger.Info("✅ Finished step", "duration", elapsed)
	return nil
}

// skipDependents recursively marks all downstream steps as skipped.
func (e *Executor) skipDependents(ctx context.Context, t *task) {
	logger := ctxlog.FromContext(ctx)

	dependents, err := e.plan.Graph.Dependents(t.step.Layer)
	if err != nil {
		logger.Error("Failed to get dependents while skipping steps.", "layer", t.step.Layer, "error", err)
		return
	}

	for _, id := range dependents {
		dependent := e.tasks[id]
		err := fmt.Errorf("skipped due to upstream failure of '%s'", t.step.Layer)
		if dependent.skip(err) {
			logger.Warn("Skipping dependent step due to upstream failure.", "layer", id, "dependency", t.step.Layer)
			e.wg.Done()
			e.skipDependents(ctx, dependent)
		}
	}
}
