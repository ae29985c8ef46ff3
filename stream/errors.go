package stream

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by Bind, Source sessions and the Engine.
var (
	// ErrFrozen is returned by Bind once the Engine has started.
	ErrFrozen = errors.New("stream: registry is frozen")
	// ErrSourceShared is returned by Bind when a single-consumer source is
	// already used by another Binding.
	ErrSourceShared = errors.New("stream: single-consumer source is already bound")
	// ErrSourceBusy is returned by Open on a single-consumer source that
	// already has an open session.
	ErrSourceBusy = errors.New("stream: source already has an open session")
	// ErrKeyedSinkNeedsPair is reported when a sink only accepts key/value
	// pairs and the handler output is not one.
	ErrKeyedSinkNeedsPair = errors.New("stream: keyed sink requires key/value outputs")
	// ErrUnsupportedSink is returned by Bind for a value that is not a sink
	// of the handler's output type.
	ErrUnsupportedSink = errors.New("stream: unsupported sink")
	// ErrNilHandler is returned by Bind for a nil handler.
	ErrNilHandler = errors.New("stream: nil handler")
	// ErrNilSource is returned by Bind for a nil source.
	ErrNilSource = errors.New("stream: nil source")
	// ErrStarted is returned by Run and Start on an Engine that was already started.
	ErrStarted = errors.New("stream: engine already started")
)

// Stage identifies where in a worker loop a failure happened.
type Stage string

const (
	StageSource  Stage = "source"
	StageHandler Stage = "handler"
	StageSink    Stage = "sink"
)

// SourceError wraps a failure to open a session or pull the next item.
type SourceError struct {
	Err error
}

func (e *SourceError) Error() string { return "source: " + e.Err.Error() }
func (e *SourceError) Unwrap() error { return e.Err }

// HandlerError wraps an error returned (or a panic raised) by a Handler.
type HandlerError struct {
	Input any
	Err   error
}

func (e *HandlerError) Error() string { return "handler: " + e.Err.Error() }
func (e *HandlerError) Unwrap() error { return e.Err }

// SinkError wraps an error returned by a sink while publishing an output.
// Index is the position of the sink in the Binding's sink list.
type SinkError struct {
	Index  int
	Sink   any
	Output any
	Err    error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %d (%T): %v", e.Index, e.Sink, e.Err)
}

func (e *SinkError) Unwrap() error { return e.Err }

// WorkerError is the failure that terminated a single worker.
type WorkerError struct {
	Binding Binding
	Stage   Stage
	Err     error
}

func (e *WorkerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Binding, e.Err)
}

func (e *WorkerError) Unwrap() error { return e.Err }

// AggregateRunError collects the failures of one run, ordered by BindingID.
type AggregateRunError struct {
	Failures []*WorkerError
}

func (e *AggregateRunError) Error() string {
	if len(e.Failures) == 1 {
		return "stream: 1 binding failed: " + e.Failures[0].Error()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "stream: %d bindings failed", len(e.Failures))
	for _, f := range e.Failures {
		b.WriteString("\n\t")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes every worker failure to errors.Is and errors.As.
func (e *AggregateRunError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}
