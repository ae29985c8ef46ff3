package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/kbukum/snapstream/component"
	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/observability"
)

// Outcome is the lifecycle state of one Binding's worker.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomeRunning   Outcome = "running"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeCanceled  Outcome = "canceled"
)

// Result reports the progress and outcome of one Binding.
type Result struct {
	Binding    Binding
	Outcome    Outcome
	Items      int64
	Outputs    int64
	Deliveries int64
	Err        *WorkerError
}

// Engine owns a registry of Bindings and runs them, one worker goroutine
// each. An Engine runs once.
type Engine struct {
	name     string
	log      *logger.Logger
	metrics  *observability.DispatchMetrics
	args     map[string]any
	registry registry

	mu      sync.Mutex
	started bool
	runID   string
	workers []*worker
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

var (
	_ component.Component   = (*Engine)(nil)
	_ component.Describable = (*Engine)(nil)
)

// Option configures an Engine.
type Option func(*Engine)

// WithName sets the component name reported by Name and Health.
func WithName(name string) Option {
	return func(e *Engine) { e.name = name }
}

// WithLogger sets the logger used for worker lifecycle and failures.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l.WithComponent("stream.engine") }
}

// WithMetrics records dispatch instruments for every worker.
func WithMetrics(m *observability.DispatchMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithArgs makes args available to handlers through Args.
func WithArgs(args map[string]any) Option {
	return func(e *Engine) { e.args = args }
}

// New creates an Engine with an empty registry.
func New(opts ...Option) *Engine {
	e := &Engine{
		name: "stream",
		done: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logger.WithComponent("stream.engine")
	}
	return e
}

// Name implements component.Component.
func (e *Engine) Name() string { return e.name }

// Run starts every Binding and blocks until all workers have terminated.
// It returns an *AggregateRunError listing the failed Bindings, or nil.
// Cancelling ctx stops all workers; canceled workers are not failures.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.Start(ctx); err != nil {
		return err
	}
	return e.Wait()
}

// Start freezes the registry and launches one worker per Binding in
// registration order. Workers run until their source is exhausted, they
// fail, ctx is cancelled, or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return ErrStarted
	}
	e.started = true
	entries := e.registry.freeze()
	e.runID = uuid.NewString()

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	runCtx = logger.ContextWithRunID(runCtx, e.runID)
	if e.args != nil {
		runCtx = context.WithValue(runCtx, argsKey{}, e.args)
	}

	log := e.log.WithFields(logger.Fields(logger.FieldRunID, e.runID))
	e.workers = make([]*worker, len(entries))
	for i, en := range entries {
		e.workers[i] = newWorker(en, log, e.metrics)
	}
	workers := e.workers
	e.mu.Unlock()

	log.Info("dispatch started", logger.Fields("bindings", len(workers)))

	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func(wk *worker) {
			defer wg.Done()
			wk.execute(runCtx)
		}(w)
	}

	go func() {
		wg.Wait()
		cancel()
		e.finish(log, workers)
	}()
	return nil
}

func (e *Engine) finish(log *logger.Logger, workers []*worker) {
	var failures []*WorkerError
	counts := map[Outcome]int{}
	for _, w := range workers {
		r := w.result()
		counts[r.Outcome]++
		if r.Err != nil {
			failures = append(failures, r.Err)
		}
	}
	if len(failures) > 0 {
		e.err = &AggregateRunError{Failures: failures}
	}
	log.Info("dispatch finished", logger.Fields(
		"succeeded", counts[OutcomeSucceeded],
		"failed", counts[OutcomeFailed],
		"canceled", counts[OutcomeCanceled],
	))
	close(e.done)
}

// Wait blocks until every worker has terminated and returns the aggregate
// outcome. It returns nil immediately if the Engine was never started.
func (e *Engine) Wait() error {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return nil
	}
	<-e.done
	return e.err
}

// Done is closed once every worker of a started Engine has terminated.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Stop cancels all workers and waits for them to terminate or for ctx to
// expire. Failures are reported by Wait, not Stop.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	started, cancel := e.started, e.cancel
	e.mu.Unlock()
	if !started {
		return nil
	}
	cancel()
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stopping %s: %w", e.name, ctx.Err())
	}
}

// Health implements component.Component. An Engine is unhealthy when every
// finished worker failed and degraded when some did.
func (e *Engine) Health(_ context.Context) component.Health {
	h := component.Health{Name: e.name, Status: component.StatusHealthy}
	results := e.Results()
	failed := 0
	for _, r := range results {
		if r.Outcome == OutcomeFailed {
			failed++
		}
	}
	switch {
	case failed == 0:
	case failed == len(results):
		h.Status = component.StatusUnhealthy
		h.Message = fmt.Sprintf("all %d bindings failed", failed)
	default:
		h.Status = component.StatusDegraded
		h.Message = fmt.Sprintf("%d of %d bindings failed", failed, len(results))
	}
	return h
}

// Describe implements component.Describable.
func (e *Engine) Describe() component.Description {
	return component.Description{
		Name:    "Dispatch Engine",
		Type:    "stream",
		Details: fmt.Sprintf("%d bindings", len(e.registry.bindings())),
	}
}

// Bindings returns the registered Bindings in registration order.
func (e *Engine) Bindings() []Binding {
	return e.registry.bindings()
}

// Results returns the per-Binding progress, ordered by BindingID. Before
// Start every Binding is pending.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	workers := e.workers
	e.mu.Unlock()

	if workers == nil {
		bindings := e.registry.bindings()
		out := make([]Result, len(bindings))
		for i, b := range bindings {
			out[i] = Result{Binding: b, Outcome: OutcomePending}
		}
		return out
	}
	out := make([]Result, len(workers))
	for i, w := range workers {
		out[i] = w.result()
	}
	return out
}

// RunID returns the identifier of the current run, empty before Start.
func (e *Engine) RunID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runID
}
