package stream

import (
	"context"
	"fmt"
	"reflect"
)

var pairType = reflect.TypeFor[Pair]()

// deliver sends one output to one sink.
type deliver[O any] func(ctx context.Context, out O) error

type route[O any] struct {
	sink    any
	deliver deliver[O]
}

// resolveSink picks the delivery path for s given the handler output type O.
// Keyed delivery wins when O is a pair; typed unary delivery comes next,
// then boxed unary delivery through Sink[any].
func resolveSink[O any](s any) (deliver[O], error) {
	if s == nil {
		return nil, ErrUnsupportedSink
	}
	keyed, isKeyed := s.(KeyedSink)
	unary := unaryDelivery[O](s)
	t := reflect.TypeFor[O]()

	switch {
	case isKeyed && t.Implements(pairType):
		return keyedDelivery[O](keyed, nil), nil
	case isKeyed && t.Kind() == reflect.Interface:
		return keyedDelivery(keyed, unary), nil
	case unary != nil:
		return unary, nil
	case isKeyed:
		return nil, ErrKeyedSinkNeedsPair
	default:
		return nil, ErrUnsupportedSink
	}
}

func unaryDelivery[O any](s any) deliver[O] {
	if typed, ok := s.(Sink[O]); ok {
		return typed.Send
	}
	if boxed, ok := s.(Sink[any]); ok {
		return func(ctx context.Context, out O) error { return boxed.Send(ctx, out) }
	}
	return nil
}

// keyedDelivery checks every output for a key. Outputs without one go to
// fallback, or fail when the sink has no unary form.
func keyedDelivery[O any](sink KeyedSink, fallback deliver[O]) deliver[O] {
	return func(ctx context.Context, out O) error {
		if p, ok := any(out).(Pair); ok {
			key, val := p.KeyValue()
			return sink.SendKeyed(ctx, key, val)
		}
		if fallback != nil {
			return fallback(ctx, out)
		}
		return fmt.Errorf("%w: got %T", ErrKeyedSinkNeedsPair, out)
	}
}

func resolveRoutes[O any](sinks []any) ([]route[O], error) {
	routes := make([]route[O], 0, len(sinks))
	for i, s := range sinks {
		d, err := resolveSink[O](s)
		if err != nil {
			return nil, fmt.Errorf("sink %d (%T): %w", i, s, err)
		}
		routes = append(routes, route[O]{sink: s, deliver: d})
	}
	return routes, nil
}

// publisher fans each output out to the routes of one Binding, in order, on
// the worker goroutine. It is reset for every input.
type publisher[O any] struct {
	routes     []route[O]
	failed     *SinkError
	outputs    int64
	deliveries int64
}

func (p *publisher[O]) reset() {
	p.failed = nil
	p.outputs = 0
	p.deliveries = 0
}

// publish delivers out to every sink. After a sink failure every further
// call for the same input returns that failure without delivering.
func (p *publisher[O]) publish(ctx context.Context, out O) error {
	if p.failed != nil {
		return p.failed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.outputs++
	for i, r := range p.routes {
		if err := safeDeliver(ctx, r.deliver, out); err != nil {
			p.failed = &SinkError{Index: i, Sink: r.sink, Output: out, Err: err}
			return p.failed
		}
		p.deliveries++
	}
	return nil
}

func safeDeliver[O any](ctx context.Context, d deliver[O], out O) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return d(ctx, out)
}
