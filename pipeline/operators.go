package pipeline

import "context"

// stage derives a pipeline whose iterator wraps a fresh iterator of p.
func stage[I, O any](p *Pipeline[I], wrap func(Iterator[I]) Iterator[O]) *Pipeline[O] {
	return &Pipeline[O]{
		create: func(ctx context.Context) Iterator[O] { return wrap(p.create(ctx)) },
	}
}

// Map transforms each value with fn. An error from fn ends the iteration.
func Map[I, O any](p *Pipeline[I], fn func(context.Context, I) (O, error)) *Pipeline[O] {
	return stage(p, func(src Iterator[I]) Iterator[O] { return &mapIter[I, O]{src: src, fn: fn} })
}

// FlatMap replaces each value with the values of the iterator fn returns.
// Inner iterators are closed once drained or when the pipeline is closed.
func FlatMap[I, O any](p *Pipeline[I], fn func(context.Context, I) (Iterator[O], error)) *Pipeline[O] {
	return stage(p, func(src Iterator[I]) Iterator[O] { return &flatMapIter[I, O]{src: src, fn: fn} })
}

// Filter keeps the values keep accepts.
func Filter[T any](p *Pipeline[T], keep func(T) bool) *Pipeline[T] {
	return stage(p, func(src Iterator[T]) Iterator[T] { return &filterIter[T]{src: src, keep: keep} })
}

// Take yields at most n values, then reports exhaustion without pulling
// further from the source.
func Take[T any](p *Pipeline[T], n int) *Pipeline[T] {
	return stage(p, func(src Iterator[T]) Iterator[T] { return &takeIter[T]{src: src, left: n} })
}

type mapIter[I, O any] struct {
	src Iterator[I]
	fn  func(context.Context, I) (O, error)
}

func (it *mapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	in, ok, err := it.src.Next(ctx)
	if err != nil || !ok {
		return zero, false, err
	}
	out, err := it.fn(ctx, in)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

func (it *mapIter[I, O]) Close() error { return it.src.Close() }

type flatMapIter[I, O any] struct {
	src   Iterator[I]
	fn    func(context.Context, I) (Iterator[O], error)
	inner Iterator[O]
}

func (it *flatMapIter[I, O]) Next(ctx context.Context) (O, bool, error) {
	var zero O
	for {
		if it.inner != nil {
			out, ok, err := it.inner.Next(ctx)
			if err != nil {
				return zero, false, err
			}
			if ok {
				return out, true, nil
			}
			_ = it.inner.Close()
			it.inner = nil
		}
		in, ok, err := it.src.Next(ctx)
		if err != nil || !ok {
			return zero, false, err
		}
		if it.inner, err = it.fn(ctx, in); err != nil {
			return zero, false, err
		}
	}
}

func (it *flatMapIter[I, O]) Close() error {
	if it.inner != nil {
		_ = it.inner.Close()
		it.inner = nil
	}
	return it.src.Close()
}

type filterIter[T any] struct {
	src  Iterator[T]
	keep func(T) bool
}

func (it *filterIter[T]) Next(ctx context.Context) (T, bool, error) {
	for {
		v, ok, err := it.src.Next(ctx)
		if err != nil || !ok || it.keep(v) {
			return v, ok && err == nil, err
		}
	}
}

func (it *filterIter[T]) Close() error { return it.src.Close() }

type takeIter[T any] struct {
	src  Iterator[T]
	left int
}

func (it *takeIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.left <= 0 {
		var zero T
		return zero, false, nil
	}
	v, ok, err := it.src.Next(ctx)
	if err != nil || !ok {
		return v, false, err
	}
	it.left--
	return v, true, nil
}

func (it *takeIter[T]) Close() error { return it.src.Close() }
