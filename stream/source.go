package stream

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/kbukum/snapstream/pipeline"
)

// Source produces items for a Binding. Each call to Open starts an
// independent iteration session; the worker closes it when it terminates.
type Source[T any] interface {
	Open(ctx context.Context) (pipeline.Iterator[T], error)
	// Reentrant reports whether concurrent sessions are supported. A
	// single-consumer source may be bound once.
	Reentrant() bool
}

// wrapper is implemented by sources that decorate another source, so the
// registry can compare the underlying identity. Sources defined in other
// packages opt in by declaring an Underlying method.
type wrapper interface {
	Underlying() any
}

// SessionGuard allows at most one open session at a time. Single-consumer
// sources embed it and release it when their session is closed.
type SessionGuard struct {
	busy atomic.Bool
}

// Acquire claims the guard or returns ErrSourceBusy.
func (g *SessionGuard) Acquire() error {
	if !g.busy.CompareAndSwap(false, true) {
		return ErrSourceBusy
	}
	return nil
}

// Release frees the guard.
func (g *SessionGuard) Release() {
	g.busy.Store(false)
}

// GuardSession wraps it so that closing it releases g exactly once.
func GuardSession[T any](g *SessionGuard, it pipeline.Iterator[T]) pipeline.Iterator[T] {
	return &guardedIter[T]{Iterator: it, guard: g}
}

type guardedIter[T any] struct {
	pipeline.Iterator[T]
	guard *SessionGuard
	once  sync.Once
}

func (it *guardedIter[T]) Close() error {
	err := it.Iterator.Close()
	it.once.Do(it.guard.Release)
	return err
}

// --- finite, reentrant ---

type sliceSource[T any] struct {
	items []T
}

// FromSlice returns a finite, reentrant source over items.
func FromSlice[T any](items ...T) Source[T] {
	return &sliceSource[T]{items: items}
}

func (s *sliceSource[T]) Open(ctx context.Context) (pipeline.Iterator[T], error) {
	return pipeline.FromSlice(s.items).Iter(ctx), nil
}

func (s *sliceSource[T]) Reentrant() bool { return true }

type seqSource[T any] struct {
	seq iter.Seq[T]
}

// FromSeq returns a source over a range-over-func sequence. Each session
// ranges over seq again, so seq must be safe to iterate more than once.
func FromSeq[T any](seq iter.Seq[T]) Source[T] {
	return &seqSource[T]{seq: seq}
}

func (s *seqSource[T]) Open(_ context.Context) (pipeline.Iterator[T], error) {
	next, stop := iter.Pull(s.seq)
	return &pullIter[T]{next: next, stop: stop}, nil
}

func (s *seqSource[T]) Reentrant() bool { return true }

type pullIter[T any] struct {
	next func() (T, bool)
	stop func()
}

func (it *pullIter[T]) Next(ctx context.Context) (T, bool, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, false, err
	}
	v, ok := it.next()
	return v, ok, nil
}

func (it *pullIter[T]) Close() error {
	it.stop()
	return nil
}

// --- unbounded, reentrant ---

type generateSource[T any] struct {
	fn func(n int) T
}

// Repeat returns an unbounded source yielding v forever.
func Repeat[T any](v T) Source[T] {
	return &generateSource[T]{fn: func(int) T { return v }}
}

// Generate returns an unbounded source yielding fn(0), fn(1), ... Each
// session counts from zero.
func Generate[T any](fn func(n int) T) Source[T] {
	return &generateSource[T]{fn: fn}
}

func (s *generateSource[T]) Open(_ context.Context) (pipeline.Iterator[T], error) {
	return &generateIter[T]{fn: s.fn}, nil
}

func (s *generateSource[T]) Reentrant() bool { return true }

type generateIter[T any] struct {
	fn func(n int) T
	n  int
}

func (it *generateIter[T]) Next(ctx context.Context) (T, bool, error) {
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, false, err
	}
	v := it.fn(it.n)
	it.n++
	return v, true, nil
}

func (it *generateIter[T]) Close() error { return nil }

// --- single-consumer ---

type channelSource[T any] struct {
	guard SessionGuard
	ch    <-chan T
}

// FromChannel returns a single-consumer source that receives from ch until
// it is closed.
func FromChannel[T any](ch <-chan T) Source[T] {
	return &channelSource[T]{ch: ch}
}

func (s *channelSource[T]) Open(ctx context.Context) (pipeline.Iterator[T], error) {
	if err := s.guard.Acquire(); err != nil {
		return nil, err
	}
	return GuardSession(&s.guard, pipeline.FromChannel(s.ch).Iter(ctx)), nil
}

func (s *channelSource[T]) Reentrant() bool { return false }

type funcSource[T any] struct {
	guard SessionGuard
	next  func(ctx context.Context) (T, bool, error)
}

// FromFunc returns a single-consumer source that calls next for every item.
// next reports exhaustion by returning false.
func FromFunc[T any](next func(ctx context.Context) (T, bool, error)) Source[T] {
	return &funcSource[T]{next: next}
}

func (s *funcSource[T]) Open(ctx context.Context) (pipeline.Iterator[T], error) {
	if err := s.guard.Acquire(); err != nil {
		return nil, err
	}
	return GuardSession[T](&s.guard, &funcIter[T]{next: s.next}), nil
}

func (s *funcSource[T]) Reentrant() bool { return false }

type funcIter[T any] struct {
	next func(ctx context.Context) (T, bool, error)
}

func (it *funcIter[T]) Next(ctx context.Context) (T, bool, error) { return it.next(ctx) }
func (it *funcIter[T]) Close() error                              { return nil }

// --- wrappers ---

type limitSource[T any] struct {
	src Source[T]
	n   int
}

// Limit bounds every session of src to at most n items. It is reentrant
// when src is, and shares src's identity for bind-time sharing checks.
func Limit[T any](src Source[T], n int) Source[T] {
	return &limitSource[T]{src: src, n: n}
}

func (s *limitSource[T]) Open(ctx context.Context) (pipeline.Iterator[T], error) {
	it, err := s.src.Open(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.Take(pipeline.From(it), s.n).Iter(ctx), nil
}

func (s *limitSource[T]) Reentrant() bool { return s.src.Reentrant() }

// Underlying returns the limited source.
func (s *limitSource[T]) Underlying() any { return s.src }
