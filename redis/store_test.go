package redis

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/kbukum/snapstream/codec"
	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/pipeline"
	"github.com/kbukum/snapstream/stream"
)

// newTestClient creates a Client backed by miniredis.
func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mini, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mini.Close)

	client, err := New(Config{Addr: mini.Addr()}, logger.Nop())
	if err != nil {
		t.Fatalf("failed to create redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mini
}

func TestStore_SetGet(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()

	if err := store.Set(ctx, "k1", map[string]any{"count": 5}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	raw, err := mini.Get("cache:k1")
	if err != nil || raw != `{"count":5}` {
		t.Errorf("unexpected stored value %q err=%v", raw, err)
	}

	got, ok, err := store.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if m, _ := got.(map[string]any); m["count"] != json.Number("5") {
		t.Errorf("unexpected value %#v", got)
	}
}

func TestStore_GetMissing(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewStore(client, "cache")
	val, ok, err := store.Get(context.Background(), "nope")
	if err != nil || ok || val != nil {
		t.Errorf("expected miss, got val=%v ok=%v err=%v", val, ok, err)
	}
}

func TestStore_DefaultTTL(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()

	_ = store.Set(ctx, "k", 1)
	if ttl := mini.TTL("cache:k"); ttl != DefaultTTL {
		t.Errorf("expected TTL %v, got %v", DefaultTTL, ttl)
	}

	mini.FastForward(DefaultTTL + time.Second)
	if ok, _ := store.Contains(ctx, "k"); ok {
		t.Error("key should expire after the default TTL")
	}
}

func TestStore_CustomTTL(t *testing.T) {
	client, mini := newTestClient(t)
	ctx := context.Background()

	_ = NewStore(client, "a", WithTTL(0)).Set(ctx, "k", 1)
	if mini.TTL("a:k") != 0 {
		t.Error("zero TTL should keep the key forever")
	}
	_ = NewStore(client, "b").SetWithTTL(ctx, "k", 1, time.Minute)
	if mini.TTL("b:k") != time.Minute {
		t.Errorf("unexpected TTL %v", mini.TTL("b:k"))
	}
}

func TestStore_ContainsDelete(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()

	_ = store.Set(ctx, "k", "v")
	if ok, err := store.Contains(ctx, "k"); err != nil || !ok {
		t.Fatalf("expected key present, ok=%v err=%v", ok, err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.Contains(ctx, "k"); ok {
		t.Error("expected key deleted")
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Errorf("deleting a missing key should succeed, got %v", err)
	}
}

func TestStore_DecodeError(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewStore(client, "cache")
	_ = mini.Set("cache:bad", "{not json")

	if _, _, err := store.Get(context.Background(), "bad"); err == nil {
		t.Error("expected decode error")
	}
}

func TestStore_RawCodec(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewStore(client, "bin", WithCodec(codec.Raw()))
	ctx := context.Background()

	if err := store.Set(ctx, "k", []byte{1, 2}); err != nil {
		t.Fatal(err)
	}
	if raw, _ := mini.Get("bin:k"); raw != "\x01\x02" {
		t.Errorf("unexpected raw value %q", raw)
	}
}

func TestStore_Items(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewStore(client, "cache", WithScanCount(2))
	other := NewStore(client, "other")
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c", "d", "e"} {
		_ = store.Set(ctx, k, k+k)
	}
	_ = other.Set(ctx, "x", "ignored")
	lk, err := store.TryLock(ctx, "a", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer lk.Release(ctx)
	_ = mini.Set("cachex", "no separator")

	entries, err := pipeline.Collect(ctx, pipeline.From(store.Items(ctx)))
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, e := range entries {
		keys = append(keys, e.Key)
		if e.Value != e.Key+e.Key {
			t.Errorf("unexpected value for %s: %v", e.Key, e.Value)
		}
	}
	sort.Strings(keys)
	if len(keys) != 5 || keys[0] != "a" || keys[4] != "e" {
		t.Errorf("unexpected keys %v", keys)
	}
}

func TestStore_AsSourceAndSink(t *testing.T) {
	client, _ := newTestClient(t)
	src := NewStore(client, "src")
	dst := NewStore(client, "dst")
	ctx := context.Background()
	for _, k := range []string{"one", "two", "three"} {
		_ = src.Set(ctx, k, len(k))
	}

	e := stream.New(stream.WithLogger(logger.Nop()))
	double := stream.Map(func(_ context.Context, in Entry) (stream.KV[int], error) {
		n, err := in.Value.(json.Number).Int64()
		return stream.KV[int]{Key: in.Key, Value: int(n) * 2}, err
	})
	col := stream.NewCollector[Entry]()
	identity := stream.Map(func(_ context.Context, in Entry) (Entry, error) { return in, nil })

	if _, err := stream.Bind(e, src, double, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := stream.Bind(e, src, identity, col); err != nil {
		t.Fatalf("store should be bindable twice as a reentrant source: %v", err)
	}
	if err := e.Run(ctx); err != nil {
		t.Fatal(err)
	}

	if got, _, _ := dst.Get(ctx, "three"); got != json.Number("10") {
		t.Errorf("unexpected sink value %v", got)
	}
	if col.Len() != 3 {
		t.Errorf("second binding should see every entry, got %d", col.Len())
	}
}

func TestStore_Stats(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()
	_ = store.Set(ctx, "a", 1)
	_ = store.Set(ctx, "b", 2)
	_ = NewStore(client, "other").Set(ctx, "c", 3)
	lk, err := store.TryLock(ctx, "a", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer lk.Release(ctx)

	st, err := store.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if st.Keys != 2 || st.Prefix != "cache" {
		t.Errorf("unexpected stats %+v", st)
	}
	if st.Fields()["keys"] != int64(2) {
		t.Errorf("unexpected fields %v", st.Fields())
	}
}

func TestStore_TryLock(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()

	lk, err := store.TryLock(ctx, "k", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.TryLock(ctx, "k", time.Minute); !errors.Is(err, ErrLockHeld) {
		t.Errorf("expected ErrLockHeld, got %v", err)
	}
	if lk.Key() != "k" {
		t.Errorf("unexpected key %q", lk.Key())
	}
	if err := lk.Release(ctx); err != nil {
		t.Fatal(err)
	}
	if err := lk.Release(ctx); !errors.Is(err, ErrLockLost) {
		t.Errorf("expected ErrLockLost on double release, got %v", err)
	}
}

func TestStore_LockExpiredIsLost(t *testing.T) {
	client, mini := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()

	lk, _ := store.TryLock(ctx, "k", time.Second)
	mini.FastForward(2 * time.Second)
	other, err := store.TryLock(ctx, "k", time.Minute)
	if err != nil {
		t.Fatalf("expired lock should be claimable, got %v", err)
	}
	if err := lk.Release(ctx); !errors.Is(err, ErrLockLost) {
		t.Errorf("stale holder must not release a new holder's lock, got %v", err)
	}
	if err := other.Release(ctx); err != nil {
		t.Errorf("new holder release failed: %v", err)
	}
}

func TestStore_LockWaitsForRelease(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()

	first, _ := store.TryLock(ctx, "k", time.Minute)
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = first.Release(ctx)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	second, err := store.Lock(waitCtx, "k", time.Minute)
	if err != nil {
		t.Fatalf("expected lock after release, got %v", err)
	}
	_ = second.Release(ctx)
}

func TestStore_LockContextTimeout(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()

	_, _ = store.TryLock(ctx, "k", time.Minute)
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := store.Lock(waitCtx, "k", time.Minute); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestStore_WithLockSerializes(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()
	_ = store.Set(ctx, "counter", 0)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithLock(ctx, "counter", func(ctx context.Context) error {
				v, _, err := store.Get(ctx, "counter")
				if err != nil {
					return err
				}
				n, _ := v.(json.Number).Int64()
				return store.Set(ctx, "counter", n+1)
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	if v, _, _ := store.Get(ctx, "counter"); v != json.Number("5") {
		t.Errorf("expected 5 serialized increments, got %v", v)
	}
}

func TestStore_WithLockPropagatesError(t *testing.T) {
	client, _ := newTestClient(t)
	store := NewStore(client, "cache")
	ctx := context.Background()
	boom := errors.New("boom")

	if err := store.WithLock(ctx, "k", func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Errorf("expected fn error, got %v", err)
	}
	if _, err := store.TryLock(ctx, "k", time.Minute); err != nil {
		t.Errorf("lock should be released after fn fails, got %v", err)
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob("a*b?[c]"); got != `a\*b\?\[c\]` {
		t.Errorf("escapeGlob = %q", got)
	}
}
