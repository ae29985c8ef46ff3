package topic

import (
	"context"
	"fmt"
	"sync"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/snapstream/codec"
	apperrors "github.com/kbukum/snapstream/errors"
	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/kafka/consumer"
	"github.com/kbukum/snapstream/kafka/producer"
	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/observability"
	"github.com/kbukum/snapstream/pipeline"
	"github.com/kbukum/snapstream/stream"
)

// Topic is a named Kafka topic. It is a single-consumer stream.Source of
// kafka.Message and a stream.Sink / stream.KeyedSink for outgoing values.
type Topic struct {
	name       string
	cfg        kafka.Config
	offset     int64
	offsetSet  bool
	partition  int
	codec      codec.Codec
	dry        bool
	raiseError bool
	commitEach bool
	log        *logger.Logger
	newReader  ReaderFactory
	writer     producer.Writer
	admin      Admin

	guard stream.SessionGuard

	mu       sync.Mutex
	producer *producer.Producer
}

var (
	_ stream.Source[kafka.Message] = (*Topic)(nil)
	_ stream.Sink[any]             = (*Topic)(nil)
	_ stream.KeyedSink             = (*Topic)(nil)
	_ kafka.Client                 = (*Topic)(nil)
)

// New creates a topic handle. Nothing connects until the first session or
// send.
func New(name string, opts ...Option) *Topic {
	t := &Topic{name: name, codec: codec.JSON()}
	for _, opt := range opts {
		opt(t)
	}
	t.cfg = t.cfg.MergeDefaults()
	t.cfg.ApplyDefaults()
	if t.log == nil {
		t.log = logger.GetGlobalLogger()
	}
	t.log = t.log.WithComponent("kafka.topic").WithFields(logger.Fields("topic", name))
	if t.newReader == nil {
		cfg, log := t.cfg, t.log
		t.newReader = func(topic string, ropts consumer.ReaderOptions) (consumer.Reader, error) {
			return consumer.NewReader(cfg, topic, ropts, log)
		}
	}
	if t.admin == nil {
		t.admin = kafka.NewAdmin(t.cfg)
	}
	return t
}

// Name returns the topic name.
func (t *Topic) Name() string { return t.name }

// Codec returns the value codec.
func (t *Topic) Codec() codec.Codec { return t.codec }

// Reentrant reports false: a Topic holds one consumer session at a time.
func (t *Topic) Reentrant() bool { return false }

func (t *Topic) startOffset() int64 {
	if t.offsetSet {
		return t.offset
	}
	if t.cfg.AutoOffsetReset == "latest" {
		return ReadFromEnd
	}
	return ReadFromStart
}

// Open starts a reading session from the configured offset. Values are
// decoded with the topic codec; Raw keeps the wire bytes. Empty values
// (tombstones) decode to nil.
func (t *Topic) Open(ctx context.Context) (pipeline.Iterator[kafka.Message], error) {
	return t.open(ctx, t.startOffset(), t.cfg.GroupID)
}

func (t *Topic) open(ctx context.Context, offset int64, groupID string) (pipeline.Iterator[kafka.Message], error) {
	if err := t.guard.Acquire(); err != nil {
		return nil, err
	}
	r, err := t.newReader(t.name, consumer.ReaderOptions{
		Partition:   t.partition,
		StartOffset: offset,
		NoGroup:     groupID == "",
	})
	if err != nil {
		t.guard.Release()
		return nil, err
	}

	t.log.Debug("Consuming", logger.Fields("offset", offset, "group_id", groupID))
	c := consumer.New(r, t.name, consumer.Options{
		GroupID:    groupID,
		RaiseError: t.raiseError,
		CommitEach: t.commitEach,
	}, t.log)
	decoded := pipeline.Map(pipeline.From[kafka.Message](c), t.decode)
	return stream.GuardSession(&t.guard, decoded.Iter(ctx)), nil
}

func (t *Topic) decode(_ context.Context, msg kafka.Message) (kafka.Message, error) {
	if len(msg.Raw) == 0 {
		msg.Value = nil
		return msg, nil
	}
	val, err := t.codec.Decode(msg.Raw)
	if err != nil {
		return msg, fmt.Errorf("decode %s@%d: %w", msg.Topic, msg.Offset, err)
	}
	msg.Value = val
	return msg, nil
}

// Send encodes val and writes it without a key.
func (t *Topic) Send(ctx context.Context, val any) error {
	return t.SendKeyed(ctx, "", val)
}

// SendKeyed encodes val and writes it under key. In dry-run mode the value
// is still encoded but the write is skipped with a warning.
func (t *Topic) SendKeyed(ctx context.Context, key string, val any) error {
	ctx, span := observability.StartSpan(ctx, observability.SpanTopicSend)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrTopic, t.name)
	observability.SetSpanAttribute(ctx, observability.AttrCodec, t.codec.Name())

	data, err := t.codec.Encode(val)
	if err != nil {
		observability.SetSpanError(ctx, err)
		return err
	}
	if t.dry {
		t.log.Warn("Skipped sending message [dry run]", logger.Fields("key", key))
		return nil
	}

	p, err := t.getProducer()
	if err != nil {
		observability.SetSpanError(ctx, err)
		return err
	}
	if err := p.Send(ctx, t.name, key, data, map[string]string{"content-type": contentType(t.codec)}); err != nil {
		observability.SetSpanError(ctx, err)
		return err
	}
	return nil
}

func contentType(c codec.Codec) string {
	switch c.Name() {
	case "json":
		return "application/json"
	case "avro":
		return "avro/binary"
	default:
		return "application/octet-stream"
	}
}

func (t *Topic) getProducer() (*producer.Producer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.producer != nil {
		return t.producer, nil
	}
	if t.writer != nil {
		t.producer = producer.NewWithWriter(t.writer, t.cfg, t.log)
		return t.producer, nil
	}
	p, err := producer.NewLazyProducer(t.cfg, t.log)
	if err != nil {
		return nil, err
	}
	t.producer = p
	return p, nil
}

// CreateTopic creates the topic. A topic that already exists is logged as a
// warning and is not an error.
func (t *Topic) CreateTopic(ctx context.Context, partitions, replication int) error {
	err := t.admin.CreateTopics(ctx, kafkago.TopicConfig{
		Topic:             t.name,
		NumPartitions:     partitions,
		ReplicationFactor: replication,
	})
	switch {
	case err == nil:
		t.log.Debug("Topic created", logger.Fields("partitions", partitions, "replication", replication))
		return nil
	case kafka.IsTopicExists(err):
		t.log.Warn("Topic already exists")
		return nil
	default:
		t.log.Error("Create topic failed", logger.ErrFields(err))
		return kafka.FromKafka(err, t.name)
	}
}

// Stats returns producer statistics; zero until the first send.
func (t *Topic) Stats() kafka.WriterMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.producer == nil {
		return kafka.WriterMetrics{}
	}
	return t.producer.Stats()
}

// Close flushes and closes the producer. Open sessions are owned by their
// callers.
func (t *Topic) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.producer == nil {
		return nil
	}
	err := t.producer.Close()
	t.producer = nil
	return err
}

// Range returns a finite source over offsets [start, stop) taking every
// step-th message counted from start. start may be ReadFromStart or
// ReadFromEnd; stop <= 0 leaves the range open; step <= 1 takes every
// message. Range sessions read the partition directly, bypassing the
// consumer group, and share the topic's single-session limit.
func (t *Topic) Range(start, stop, step int64) stream.Source[kafka.Message] {
	return &rangeSource{topic: t, start: start, stop: stop, step: step}
}

type rangeSource struct {
	topic             *Topic
	start, stop, step int64
}

func (s *rangeSource) Open(ctx context.Context) (pipeline.Iterator[kafka.Message], error) {
	if s.stop > 0 && s.start >= 0 && s.stop <= s.start {
		return nil, apperrors.InvalidInput("range", fmt.Sprintf("stop %d must be greater than start %d", s.stop, s.start))
	}
	it, err := s.topic.open(ctx, s.start, "")
	if err != nil {
		return nil, err
	}
	return &rangeIter{Iterator: it, src: s}, nil
}

func (s *rangeSource) Reentrant() bool { return false }

// Underlying returns the topic so the engine treats a range and its topic as
// the same source.
func (s *rangeSource) Underlying() any { return s.topic }

type rangeIter struct {
	pipeline.Iterator[kafka.Message]
	src *rangeSource
}

func (it *rangeIter) Next(ctx context.Context) (kafka.Message, bool, error) {
	base := max(0, it.src.start)
	for {
		msg, ok, err := it.Iterator.Next(ctx)
		if !ok || err != nil {
			return msg, ok, err
		}
		if it.src.stop > 0 && msg.Offset >= it.src.stop {
			return kafka.Message{}, false, nil
		}
		if it.src.step > 1 && (msg.Offset-base)%it.src.step != 0 {
			continue
		}
		return msg, true, nil
	}
}
