package pipeline

import "context"

// Iterator is a pull-based session over a sequence of values.
type Iterator[T any] interface {
	// Next returns the next value, or (zero, false, nil) once exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases the session.
	Close() error
}

// Pipeline is a lazy description of a sequence. Every Iter call opens a new
// iterator over it.
type Pipeline[T any] struct {
	create func(ctx context.Context) Iterator[T]
}

// Runnable is a pipeline bound to a terminal, ready to run.
type Runnable struct {
	run func(ctx context.Context) error
}

// Run pulls until the pipeline is exhausted, a stage fails, or ctx ends.
func (r *Runnable) Run(ctx context.Context) error { return r.run(ctx) }

// From wraps an already opened iterator. The pipeline can be iterated once.
func From[T any](it Iterator[T]) *Pipeline[T] {
	return FromFunc(func(context.Context) Iterator[T] { return it })
}

// FromSlice iterates items. Every Iter call starts a fresh pass.
func FromSlice[T any](items []T) *Pipeline[T] {
	return FromFunc(func(context.Context) Iterator[T] { return &sliceIter[T]{items: items} })
}

// FromChannel receives from ch until it is closed. Concurrent iterators
// over the same channel split its values.
func FromChannel[T any](ch <-chan T) *Pipeline[T] {
	return FromFunc(func(context.Context) Iterator[T] { return &channelIter[T]{ch: ch} })
}

// FromFunc builds a pipeline from an iterator factory.
func FromFunc[T any](create func(ctx context.Context) Iterator[T]) *Pipeline[T] {
	return &Pipeline[T]{create: create}
}

// Iter opens an iterator over p. The caller must Close it.
func (p *Pipeline[T]) Iter(ctx context.Context) Iterator[T] { return p.create(ctx) }

// drain opens p and hands every value to fn.
func drain[T any](ctx context.Context, p *Pipeline[T], fn func(context.Context, T) error) error {
	it := p.create(ctx)
	defer it.Close()
	for {
		v, ok, err := it.Next(ctx)
		if err != nil || !ok {
			return err
		}
		if err := fn(ctx, v); err != nil {
			return err
		}
	}
}

// Drain binds p to sink.
func Drain[T any](p *Pipeline[T], sink func(context.Context, T) error) *Runnable {
	return &Runnable{run: func(ctx context.Context) error { return drain(ctx, p, sink) }}
}

// ForEach runs p, calling fn for every value.
func ForEach[T any](ctx context.Context, p *Pipeline[T], fn func(context.Context, T) error) error {
	return Drain(p, fn).Run(ctx)
}

// Collect runs p and returns its values. On error the values pulled so far
// are returned with it.
func Collect[T any](ctx context.Context, p *Pipeline[T]) ([]T, error) {
	var out []T
	err := drain(ctx, p, func(_ context.Context, v T) error {
		out = append(out, v)
		return nil
	})
	return out, err
}

type sliceIter[T any] struct {
	items []T
	pos   int
}

func (it *sliceIter[T]) Next(context.Context) (T, bool, error) {
	if it.pos >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	it.pos++
	return it.items[it.pos-1], true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type channelIter[T any] struct {
	ch <-chan T
}

func (it *channelIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	select {
	case v, open := <-it.ch:
		if !open {
			return zero, false, nil
		}
		return v, true, nil
	case <-ctx.Done():
		return zero, false, ctx.Err()
	}
}

func (it *channelIter[T]) Close() error { return nil }
