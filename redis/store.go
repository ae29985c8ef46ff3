package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kbukum/snapstream/codec"
	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/pipeline"
	"github.com/kbukum/snapstream/stream"
)

// Entry is one key/value pair read from a Store. It is a stream.Pair, so
// entries can be routed straight into keyed sinks.
type Entry struct {
	Key   string
	Value any
}

// KeyValue implements stream.Pair.
func (e Entry) KeyValue() (string, any) { return e.Key, e.Value }

func (e Entry) String() string { return fmt.Sprintf("%s: %v", e.Key, e.Value) }

// Store is a codec-encoded key-value namespace in Redis. Keys are stored as
// "<prefix>:<key>".
//
// A Store is a reentrant stream.Source of Entry (each session is an
// independent SCAN) and a stream.KeyedSink.
type Store struct {
	client    *Client
	prefix    string
	codec     codec.Codec
	ttl       time.Duration
	scanCount int64
	log       *logger.Logger
}

var (
	_ stream.Source[Entry] = (*Store)(nil)
	_ stream.KeyedSink     = (*Store)(nil)
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCodec sets the value codec. The default is codec.JSON().
func WithCodec(c codec.Codec) StoreOption {
	return func(s *Store) { s.codec = c }
}

// WithTTL overrides the configured expiry for Set. Zero keeps keys forever.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.ttl = ttl }
}

// WithScanCount sets the SCAN COUNT hint used by Items.
func WithScanCount(n int64) StoreOption {
	return func(s *Store) { s.scanCount = n }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) StoreOption {
	return func(s *Store) { s.log = l }
}

// NewStore returns a store over client scoped to prefix.
func NewStore(client *Client, prefix string, opts ...StoreOption) *Store {
	cfg := client.Config()
	s := &Store{
		client:    client,
		prefix:    prefix,
		codec:     codec.JSON(),
		ttl:       cfg.StoreTTL(),
		scanCount: 100,
		log:       client.log,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("redis.store").WithFields(logger.Fields("prefix", prefix))
	return s
}

// Prefix returns the key namespace.
func (s *Store) Prefix() string { return s.prefix }

func (s *Store) fullKey(key string) string {
	if s.prefix == "" {
		return key
	}
	return s.prefix + ":" + key
}

func (s *Store) shortKey(full string) string {
	if s.prefix == "" {
		return full
	}
	return strings.TrimPrefix(full, s.prefix+":")
}

// Get returns the decoded value for key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) (any, bool, error) {
	raw, err := s.client.Get(ctx, s.fullKey(key))
	if IsNil(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store get %q: %w", key, err)
	}
	val, err := s.codec.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("store get %q: %w", key, err)
	}
	return val, true, nil
}

// Set encodes val and stores it with the store TTL.
func (s *Store) Set(ctx context.Context, key string, val any) error {
	return s.SetWithTTL(ctx, key, val, s.ttl)
}

// SetWithTTL encodes val and stores it with ttl. Zero keeps the key forever.
func (s *Store) SetWithTTL(ctx context.Context, key string, val any, ttl time.Duration) error {
	data, err := s.codec.Encode(val)
	if err != nil {
		return fmt.Errorf("store set %q: %w", key, err)
	}
	if err := s.client.Set(ctx, s.fullKey(key), data, ttl); err != nil {
		return fmt.Errorf("store set %q: %w", key, err)
	}
	return nil
}

// SendKeyed stores val under key. It makes the Store a keyed sink.
func (s *Store) SendKeyed(ctx context.Context, key string, val any) error {
	return s.Set(ctx, key, val)
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.fullKey(key)); err != nil {
		return fmt.Errorf("store delete %q: %w", key, err)
	}
	return nil
}

// Contains reports whether key exists.
func (s *Store) Contains(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.fullKey(key))
	if err != nil {
		return false, fmt.Errorf("store contains %q: %w", key, err)
	}
	return n > 0, nil
}

// Open starts an Items session.
func (s *Store) Open(ctx context.Context) (pipeline.Iterator[Entry], error) {
	return s.Items(ctx), nil
}

// Reentrant reports true: every session runs its own SCAN cursor.
func (s *Store) Reentrant() bool { return true }

// Items iterates over every entry under the prefix. Keys that expire between
// the scan and the read are skipped. SCAN may return a key more than once if
// the keyspace is rehashed during iteration.
func (s *Store) Items(ctx context.Context) pipeline.Iterator[Entry] {
	return pipeline.FlatMap(s.keys(), s.lookup).Iter(ctx)
}

// keys yields the full keys under the prefix, lock keys excluded.
func (s *Store) keys() *pipeline.Pipeline[string] {
	scan := pipeline.FromFunc(func(_ context.Context) pipeline.Iterator[string] {
		return &scanIter{store: s, match: s.matchPattern()}
	})
	return pipeline.Filter(scan, func(full string) bool { return !isLockKey(full) })
}

func (s *Store) lookup(ctx context.Context, full string) (pipeline.Iterator[Entry], error) {
	key := s.shortKey(full)
	val, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return pipeline.FromSlice[Entry](nil).Iter(ctx), err
	}
	return pipeline.FromSlice([]Entry{{Key: key, Value: val}}).Iter(ctx), nil
}

func (s *Store) matchPattern() string {
	if s.prefix == "" {
		return "*"
	}
	return escapeGlob(s.prefix) + ":*"
}

func escapeGlob(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// scanIter walks one SCAN cursor to completion.
type scanIter struct {
	store   *Store
	match   string
	cursor  uint64
	keys    []string
	started bool
}

func (it *scanIter) Next(ctx context.Context) (string, bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", false, err
		}
		if len(it.keys) > 0 {
			full := it.keys[0]
			it.keys = it.keys[1:]
			return full, true, nil
		}
		if it.started && it.cursor == 0 {
			return "", false, nil
		}
		keys, cursor, err := it.store.client.Unwrap().Scan(ctx, it.cursor, it.match, it.store.scanCount).Result()
		if err != nil {
			return "", false, fmt.Errorf("store scan: %w", err)
		}
		it.keys, it.cursor, it.started = keys, cursor, true
	}
}

func (it *scanIter) Close() error { return nil }

// StoreStats describes a store and its connection pool.
type StoreStats struct {
	Prefix     string `json:"prefix"`
	Keys       int64  `json:"keys"`
	Hits       uint32 `json:"pool_hits"`
	Misses     uint32 `json:"pool_misses"`
	Timeouts   uint32 `json:"pool_timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

// Fields returns the stats as logger fields.
func (st StoreStats) Fields() map[string]interface{} {
	return logger.Fields(
		"prefix", st.Prefix,
		"keys", st.Keys,
		"pool_hits", st.Hits,
		"pool_misses", st.Misses,
		"total_conns", st.TotalConns,
		"idle_conns", st.IdleConns,
	)
}

// Stats counts the keys under the prefix and snapshots pool statistics.
func (s *Store) Stats(ctx context.Context) (StoreStats, error) {
	st := StoreStats{Prefix: s.prefix}
	err := pipeline.ForEach(ctx, s.keys(), func(context.Context, string) error {
		st.Keys++
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("store stats: %w", err)
	}

	pool := s.client.Unwrap().PoolStats()
	st.Hits = pool.Hits
	st.Misses = pool.Misses
	st.Timeouts = pool.Timeouts
	st.TotalConns = pool.TotalConns
	st.IdleConns = pool.IdleConns
	return st, nil
}
