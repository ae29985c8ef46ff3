package stream

import (
	"context"

	"github.com/kbukum/snapstream/pipeline"
)

// Emit publishes one output to every sink of the Binding before returning.
// A non-nil error means the output, or an earlier one for the same input,
// could not be delivered; the handler should stop and return it.
type Emit[O any] func(out O) error

// Handler transforms one input into zero or more outputs.
type Handler[I, O any] interface {
	Invoke(ctx context.Context, in I, emit Emit[O]) error
}

// HandlerFunc adapts a generator-style function to Handler.
type HandlerFunc[I, O any] func(ctx context.Context, in I, emit Emit[O]) error

// Invoke implements Handler.
func (f HandlerFunc[I, O]) Invoke(ctx context.Context, in I, emit Emit[O]) error {
	return f(ctx, in, emit)
}

// Map returns a handler producing exactly one output per input. A nil
// pointer or interface is still an output and is delivered to every sink;
// use MapOptional to produce nothing for an input.
func Map[I, O any](fn func(ctx context.Context, in I) (O, error)) Handler[I, O] {
	return HandlerFunc[I, O](func(ctx context.Context, in I, emit Emit[O]) error {
		out, err := fn(ctx, in)
		if err != nil {
			return err
		}
		return emit(out)
	})
}

// MapOptional returns a handler producing one output when fn reports true
// and none otherwise.
func MapOptional[I, O any](fn func(ctx context.Context, in I) (O, bool, error)) Handler[I, O] {
	return HandlerFunc[I, O](func(ctx context.Context, in I, emit Emit[O]) error {
		out, ok, err := fn(ctx, in)
		if err != nil || !ok {
			return err
		}
		return emit(out)
	})
}

// Expand returns a generator-style handler. Every output passed to emit is
// published immediately.
func Expand[I, O any](fn func(ctx context.Context, in I, emit Emit[O]) error) Handler[I, O] {
	return HandlerFunc[I, O](fn)
}

// FlatMap returns a handler that drains the iterator produced for each
// input, publishing outputs as they are pulled.
func FlatMap[I, O any](fn func(ctx context.Context, in I) (pipeline.Iterator[O], error)) Handler[I, O] {
	return HandlerFunc[I, O](func(ctx context.Context, in I, emit Emit[O]) error {
		it, err := fn(ctx, in)
		if err != nil {
			return err
		}
		defer it.Close()
		for {
			out, ok, err := it.Next(ctx)
			if err != nil || !ok {
				return err
			}
			if err := emit(out); err != nil {
				return err
			}
		}
	})
}

// Each returns a handler publishing every element of the returned slice.
// Elements produced before a failure are still published.
func Each[I, O any](fn func(ctx context.Context, in I) ([]O, error)) Handler[I, O] {
	return HandlerFunc[I, O](func(ctx context.Context, in I, emit Emit[O]) error {
		outs, err := fn(ctx, in)
		for _, out := range outs {
			if emitErr := emit(out); emitErr != nil {
				return emitErr
			}
		}
		return err
	})
}
