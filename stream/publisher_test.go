package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// dualSink accepts both keyed and unary deliveries.
type dualSink struct {
	mu    sync.Mutex
	keyed []string
	plain []any
}

func (d *dualSink) SendKeyed(_ context.Context, key string, val any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keyed = append(d.keyed, fmt.Sprintf("%s=%v", key, val))
	return nil
}

func (d *dualSink) Send(_ context.Context, v any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.plain = append(d.plain, v)
	return nil
}

func keyedRecorder(got map[string]any) KeyedSinkFunc {
	return func(_ context.Context, key string, val any) error {
		got[key] = val
		return nil
	}
}

func TestBind_UnsupportedSinks(t *testing.T) {
	tests := []struct {
		name string
		sink any
	}{
		{"nil", nil},
		{"not a sink", 42},
		{"wrong element type", NewCollector[string]()},
		{"func not adapted", func(context.Context, int) error { return nil }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine()
			_, err := Bind(e, FromSlice(1), identity[int](), Discard, tc.sink)
			if !errors.Is(err, ErrUnsupportedSink) {
				t.Errorf("expected ErrUnsupportedSink, got %v", err)
			}
			if len(e.Bindings()) != 0 {
				t.Error("rejected binding should not be registered")
			}
		})
	}
}

func TestBind_KeyedSinkRejectsNonPairOutput(t *testing.T) {
	e := newTestEngine()
	got := map[string]any{}
	_, err := Bind(e, FromSlice(1), identity[int](), keyedRecorder(got))
	if !errors.Is(err, ErrKeyedSinkNeedsPair) {
		t.Errorf("expected ErrKeyedSinkNeedsPair, got %v", err)
	}
}

func TestRun_KeyedDelivery(t *testing.T) {
	e := newTestEngine()
	got := map[string]any{}
	toKV := Map(func(_ context.Context, s string) (KV[int], error) {
		return KV[int]{Key: s, Value: len(s)}, nil
	})
	plain := NewCollector[KV[int]]()
	mustBind(t, e, FromSlice("a", "bb", "ccc"), toKV, keyedRecorder(got), plain)

	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got["bb"] != 2 || got["ccc"] != 3 {
		t.Errorf("unexpected keyed deliveries %v", got)
	}
	if plain.Len() != 3 {
		t.Errorf("typed sink should receive the pairs unchanged, got %d", plain.Len())
	}
}

func TestRun_KeyedSinkDynamicOutputs(t *testing.T) {
	t.Run("pairs boxed in any", func(t *testing.T) {
		e := newTestEngine()
		got := map[string]any{}
		h := Map(func(_ context.Context, n int) (any, error) {
			return KV[int]{Key: fmt.Sprint(n), Value: n * n}, nil
		})
		mustBind(t, e, FromSlice(2, 3), h, keyedRecorder(got))

		if err := e.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		if got["2"] != 4 || got["3"] != 9 {
			t.Errorf("unexpected keyed deliveries %v", got)
		}
	})

	t.Run("non-pair fails at delivery", func(t *testing.T) {
		e := newTestEngine()
		h := Map(func(_ context.Context, n int) (any, error) { return n, nil })
		mustBind(t, e, FromSlice(1), h, keyedRecorder(map[string]any{}))

		err := e.Run(context.Background())
		var werr *WorkerError
		if !errors.As(err, &werr) || werr.Stage != StageSink {
			t.Fatalf("expected sink failure, got %v", err)
		}
		if !errors.Is(err, ErrKeyedSinkNeedsPair) {
			t.Errorf("expected ErrKeyedSinkNeedsPair in chain, got %v", err)
		}
	})

	t.Run("non-pair falls back to unary form", func(t *testing.T) {
		e := newTestEngine()
		d := &dualSink{}
		h := Map(func(_ context.Context, n int) (any, error) {
			if n%2 == 0 {
				return KV[int]{Key: "even", Value: n}, nil
			}
			return n, nil
		})
		mustBind(t, e, FromSlice(1, 2, 3), h, d)

		if err := e.Run(context.Background()); err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(d.keyed) != "[even=2]" || fmt.Sprint(d.plain) != "[1 3]" {
			t.Errorf("keyed=%v plain=%v", d.keyed, d.plain)
		}
	})
}

func TestRun_BoxedSinkReceivesTypedOutputs(t *testing.T) {
	e := newTestEngine()
	boxed := NewCollector[any]()
	mustBind(t, e, FromSlice(1, 2), identity[int](), boxed)

	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	items := boxed.Items()
	if len(items) != 2 || items[0] != 1 || items[1] != 2 {
		t.Errorf("got %v", items)
	}
}

func TestRun_SinkPanicBecomesSinkError(t *testing.T) {
	e := newTestEngine()
	explode := SinkFunc[int](func(context.Context, int) error { panic("sink exploded") })
	mustBind(t, e, FromSlice(1), identity[int](), explode)

	err := e.Run(context.Background())
	var serr *SinkError
	if !errors.As(err, &serr) || serr.Index != 0 {
		t.Fatalf("expected SinkError from sink 0, got %v", err)
	}
}

func TestPublisher_ResetClearsFailure(t *testing.T) {
	errSink := errors.New("fail once")
	calls := 0
	flaky := SinkFunc[int](func(context.Context, int) error {
		calls++
		if calls == 1 {
			return errSink
		}
		return nil
	})
	routes, err := resolveRoutes[int]([]any{flaky})
	if err != nil {
		t.Fatal(err)
	}
	pub := &publisher[int]{routes: routes}
	ctx := context.Background()

	if err := pub.publish(ctx, 1); !errors.Is(err, errSink) {
		t.Fatalf("expected errSink, got %v", err)
	}
	if err := pub.publish(ctx, 2); !errors.Is(err, errSink) {
		t.Fatalf("expected recorded failure, got %v", err)
	}
	if calls != 1 {
		t.Errorf("sink should not be called after a failure, called %d times", calls)
	}

	pub.reset()
	if err := pub.publish(ctx, 3); err != nil {
		t.Fatalf("expected success after reset, got %v", err)
	}
	if pub.outputs != 1 || pub.deliveries != 1 {
		t.Errorf("counters not reset: outputs=%d deliveries=%d", pub.outputs, pub.deliveries)
	}
}

func TestPublisher_CancelledContext(t *testing.T) {
	col := NewCollector[int]()
	routes, _ := resolveRoutes[int]([]any{col})
	pub := &publisher[int]{routes: routes}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pub.publish(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if col.Len() != 0 || pub.outputs != 0 {
		t.Error("nothing should be delivered after cancellation")
	}
}
