package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/observability"
	"github.com/kbukum/snapstream/pipeline"
)

// worker drives one Binding on its own goroutine.
type worker struct {
	info    Binding
	runner  runner
	log     *logger.Logger
	metrics *observability.DispatchMetrics

	items      atomic.Int64
	outputs    atomic.Int64
	deliveries atomic.Int64

	mu      sync.Mutex
	outcome Outcome
	err     *WorkerError
}

func newWorker(e entry, log *logger.Logger, metrics *observability.DispatchMetrics) *worker {
	return &worker{
		info:    e.info,
		runner:  e.runner,
		log:     log.WithFields(logger.Fields(logger.FieldBinding, e.info.String(), logger.FieldBindingID, int(e.info.ID))),
		metrics: metrics,
		outcome: OutcomePending,
	}
}

// execute runs the Binding to completion and records its outcome. A worker
// stopped by cancellation of its context is reported as canceled; any other
// error is a failure, even when it races with shutdown.
func (w *worker) execute(ctx context.Context) {
	ctx = withBinding(ctx, w.info)
	w.setOutcome(OutcomeRunning, nil)
	w.metrics.WorkerStarted(ctx, w.info.String())
	w.log.Debug("worker started")

	err := w.runner.run(ctx, w)

	var werr *WorkerError
	switch {
	case err == nil:
		w.setOutcome(OutcomeSucceeded, nil)
		w.metrics.WorkerStopped(ctx, w.info.String(), "")
		w.log.Debug("worker finished", w.countFields())
	case canceled(ctx, err):
		w.setOutcome(OutcomeCanceled, nil)
		w.metrics.WorkerStopped(ctx, w.info.String(), "")
		w.log.Debug("worker canceled", w.countFields())
	default:
		if !errors.As(err, &werr) {
			werr = w.fail(StageSource, &SourceError{Err: err})
		}
		w.setOutcome(OutcomeFailed, werr)
		w.metrics.WorkerStopped(ctx, w.info.String(), string(werr.Stage))
		fields := logger.WithError(w.countFields(), werr.Err)
		fields[logger.FieldStage] = string(werr.Stage)
		w.log.Error("worker failed", fields)
	}
}

func canceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil &&
		(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded))
}

func (w *worker) fail(stage Stage, err error) *WorkerError {
	return &WorkerError{Binding: w.info, Stage: stage, Err: err}
}

func (w *worker) setOutcome(o Outcome, err *WorkerError) {
	w.mu.Lock()
	w.outcome = o
	w.err = err
	w.mu.Unlock()
}

func (w *worker) record(ctx context.Context, outputs, deliveries int64, d time.Duration) {
	w.items.Add(1)
	w.outputs.Add(outputs)
	w.deliveries.Add(deliveries)
	w.metrics.RecordItem(ctx, w.info.String(), outputs, deliveries, d)
}

func (w *worker) result() Result {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Result{
		Binding:    w.info,
		Outcome:    w.outcome,
		Items:      w.items.Load(),
		Outputs:    w.outputs.Load(),
		Deliveries: w.deliveries.Load(),
		Err:        w.err,
	}
}

func (w *worker) countFields() map[string]interface{} {
	return logger.Fields(
		"items", w.items.Load(),
		"outputs", w.outputs.Load(),
		"deliveries", w.deliveries.Load(),
	)
}

// run is the worker loop: pull, invoke, publish, until the session is
// exhausted, a stage fails, or ctx is cancelled.
func (b *boundWorker[I, O]) run(ctx context.Context, w *worker) error {
	it, err := b.open(ctx)
	if err != nil {
		return w.fail(StageSource, &SourceError{Err: err})
	}
	defer func() {
		if cerr := closeSession(it); cerr != nil {
			w.log.Warn("closing source session", logger.Fields(logger.FieldError, cerr.Error()))
		}
	}()

	pub := &publisher[O]{routes: b.routes}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		item, ok, err := next(ctx, it)
		if err != nil {
			return w.fail(StageSource, &SourceError{Err: err})
		}
		if !ok {
			return nil
		}
		if err := b.handle(ctx, w, pub, item); err != nil {
			return err
		}
	}
}

func (b *boundWorker[I, O]) open(ctx context.Context) (it pipeline.Iterator[I], err error) {
	defer func() {
		if r := recover(); r != nil {
			it, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return b.source.Open(ctx)
}

func closeSession[T any](it pipeline.Iterator[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return it.Close()
}

func next[T any](ctx context.Context, it pipeline.Iterator[T]) (item T, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("panic: %v", r)
		}
	}()
	return it.Next(ctx)
}

// handle runs the handler for one input and classifies its failure. A sink
// failure wins over whatever the handler returned, since the handler only
// saw it through emit.
func (b *boundWorker[I, O]) handle(ctx context.Context, w *worker, pub *publisher[O], item I) (err error) {
	start := time.Now()
	ctx, span := observability.StartSpan(ctx, observability.SpanStreamItem, trace.WithAttributes(
		attribute.String(observability.AttrBinding, w.info.String()),
		attribute.Int(observability.AttrBindingID, int(w.info.ID)),
	))
	pub.reset()
	defer func() {
		w.record(ctx, pub.outputs, pub.deliveries, time.Since(start))
		span.SetAttributes(attribute.Int64(observability.AttrOutputs, pub.outputs))
		if err != nil {
			observability.SetSpanError(ctx, err)
		}
		span.End()
	}()

	herr := b.invoke(ctx, item, pub)
	switch {
	case pub.failed != nil:
		return w.fail(StageSink, pub.failed)
	case herr != nil:
		return w.fail(StageHandler, &HandlerError{Input: item, Err: herr})
	}
	return nil
}

func (b *boundWorker[I, O]) invoke(ctx context.Context, item I, pub *publisher[O]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return b.handler.Invoke(ctx, item, func(out O) error {
		return pub.publish(ctx, out)
	})
}
