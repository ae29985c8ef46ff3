package stream

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Sink receives handler outputs one at a time.
type Sink[T any] interface {
	Send(ctx context.Context, v T) error
}

// KeyedSink receives key/value outputs.
type KeyedSink interface {
	SendKeyed(ctx context.Context, key string, val any) error
}

// Pair is a handler output that carries a key. Outputs implementing Pair
// are delivered to keyed sinks via SendKeyed.
type Pair interface {
	KeyValue() (string, any)
}

// KV is the standard key/value output.
type KV[V any] struct {
	Key   string
	Value V
}

// KeyValue implements Pair.
func (kv KV[V]) KeyValue() (string, any) { return kv.Key, kv.Value }

func (kv KV[V]) String() string { return fmt.Sprintf("(%s, %v)", kv.Key, kv.Value) }

// SinkFunc adapts a function to Sink.
type SinkFunc[T any] func(ctx context.Context, v T) error

// Send implements Sink.
func (f SinkFunc[T]) Send(ctx context.Context, v T) error { return f(ctx, v) }

// KeyedSinkFunc adapts a function to KeyedSink.
type KeyedSinkFunc func(ctx context.Context, key string, val any) error

// SendKeyed implements KeyedSink.
func (f KeyedSinkFunc) SendKeyed(ctx context.Context, key string, val any) error {
	return f(ctx, key, val)
}

// Printer writes every output on its own line. It is safe to share between
// Bindings.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

// Print returns a sink that writes outputs to w.
func Print(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Send implements Sink[any].
func (p *Printer) Send(_ context.Context, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintln(p.w, v)
	return err
}

// Collector keeps every output in memory, in arrival order. It is safe to
// share between Bindings.
type Collector[T any] struct {
	mu    sync.Mutex
	items []T
}

// NewCollector returns an empty collector.
func NewCollector[T any]() *Collector[T] {
	return &Collector[T]{}
}

// Send implements Sink[T].
func (c *Collector[T]) Send(_ context.Context, v T) error {
	c.mu.Lock()
	c.items = append(c.items, v)
	c.mu.Unlock()
	return nil
}

// Items returns a copy of the collected outputs.
func (c *Collector[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of collected outputs.
func (c *Collector[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

type discard struct{}

func (discard) Send(context.Context, any) error { return nil }

// Discard accepts and drops every output.
var Discard Sink[any] = discard{}
