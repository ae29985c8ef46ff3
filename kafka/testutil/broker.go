package testutil

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/snapstream/component"
	"github.com/kbukum/snapstream/kafka/consumer"
	"github.com/kbukum/snapstream/testutil"
)

// Broker keeps one append-only log per topic.
type Broker struct {
	mu         sync.Mutex
	logs       map[string][]kafkago.Message
	created    map[string]kafkago.TopicConfig
	appended   chan struct{}
	failWrites []error
	started    bool
}

var (
	_ component.Component    = (*Broker)(nil)
	_ testutil.TestComponent = (*Broker)(nil)
)

// NewBroker returns an empty broker.
func NewBroker() *Broker {
	return &Broker{
		logs:     make(map[string][]kafkago.Message),
		created:  make(map[string]kafkago.TopicConfig),
		appended: make(chan struct{}),
	}
}

// append adds messages and wakes blocked readers. Callers hold b.mu.
func (b *Broker) append(msgs ...kafkago.Message) {
	for _, m := range msgs {
		log := b.logs[m.Topic]
		m.Offset = int64(len(log))
		if m.Time.IsZero() {
			m.Time = time.Now()
		}
		b.logs[m.Topic] = append(log, m)
	}
	close(b.appended)
	b.appended = make(chan struct{})
}

// Produce seeds a message onto topic.
func (b *Broker) Produce(topic, key string, value []byte) {
	msg := kafkago.Message{Topic: topic, Value: value}
	if key != "" {
		msg.Key = []byte(key)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.append(msg)
}

// Messages returns a copy of topic's log.
func (b *Broker) Messages(topic string) []kafkago.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]kafkago.Message(nil), b.logs[topic]...)
}

// Topics returns the configs passed to CreateTopics.
func (b *Broker) Topics() map[string]kafkago.TopicConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]kafkago.TopicConfig, len(b.created))
	for k, v := range b.created {
		out[k] = v
	}
	return out
}

// FailWrites makes the next len(errs) writes fail with errs in order.
func (b *Broker) FailWrites(errs ...error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failWrites = append(b.failWrites, errs...)
}

// CreateTopics registers topics. An existing topic yields
// kafkago.TopicAlreadyExists.
func (b *Broker) CreateTopics(_ context.Context, topics ...kafkago.TopicConfig) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, tc := range topics {
		if _, ok := b.created[tc.Topic]; ok {
			return kafkago.TopicAlreadyExists
		}
		b.created[tc.Topic] = tc
	}
	return nil
}

// Ping always succeeds.
func (b *Broker) Ping(context.Context) error { return nil }

// Writer returns a writer appending to the broker.
func (b *Broker) Writer() *Writer { return &Writer{broker: b} }

// NewReader opens a reader on topic. It matches the reader factory
// signature expected by kafka/topic.
func (b *Broker) NewReader(topic string, opts consumer.ReaderOptions) (consumer.Reader, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var pos int64
	switch {
	case opts.StartOffset == kafkago.FirstOffset:
		pos = 0
	case opts.StartOffset == kafkago.LastOffset:
		pos = int64(len(b.logs[topic]))
	case opts.StartOffset >= 0:
		pos = opts.StartOffset
	default:
		return nil, fmt.Errorf("invalid start offset %d", opts.StartOffset)
	}
	return &Reader{broker: b, topic: topic, pos: pos, closed: make(chan struct{})}, nil
}

// Name returns the component name.
func (b *Broker) Name() string { return "kafka-test" }

// Start marks the broker as running.
func (b *Broker) Start(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started {
		return fmt.Errorf("component already started")
	}
	b.started = true
	return nil
}

// Stop marks the broker as stopped. Logs are kept.
func (b *Broker) Stop(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = false
	return nil
}

// Health reports whether the broker was started.
func (b *Broker) Health(context.Context) component.Health {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.started {
		return component.Health{Name: b.Name(), Status: component.StatusUnhealthy, Message: "not started"}
	}
	return component.Health{Name: b.Name(), Status: component.StatusHealthy}
}

// Reset drops every log, topic and injected failure.
func (b *Broker) Reset(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = make(map[string][]kafkago.Message)
	b.created = make(map[string]kafkago.TopicConfig)
	b.failWrites = nil
	return nil
}

// Snapshot copies the logs.
func (b *Broker) Snapshot(context.Context) (interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	snap := make(map[string][]kafkago.Message, len(b.logs))
	for k, v := range b.logs {
		snap[k] = append([]kafkago.Message(nil), v...)
	}
	return snap, nil
}

// Restore replaces the logs with a snapshot.
func (b *Broker) Restore(_ context.Context, snapshot interface{}) error {
	snap, ok := snapshot.(map[string][]kafkago.Message)
	if !ok {
		return fmt.Errorf("unexpected snapshot type %T", snapshot)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logs = make(map[string][]kafkago.Message, len(snap))
	for k, v := range snap {
		b.logs[k] = append([]kafkago.Message(nil), v...)
	}
	return nil
}

// Writer appends to the broker. It satisfies producer.Writer.
type Writer struct {
	broker *Broker
	mu     sync.Mutex
	writes int64
	msgs   int64
	closed bool
}

// WriteMessages appends msgs, or fails with the next injected error.
func (w *Writer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}

	b := w.broker
	b.mu.Lock()
	if len(b.failWrites) > 0 {
		err := b.failWrites[0]
		b.failWrites = b.failWrites[1:]
		b.mu.Unlock()
		return err
	}
	for _, m := range msgs {
		if m.Topic == "" {
			b.mu.Unlock()
			return fmt.Errorf("message has no topic")
		}
	}
	b.append(msgs...)
	b.mu.Unlock()

	w.mu.Lock()
	w.writes++
	w.msgs += int64(len(msgs))
	w.mu.Unlock()
	return nil
}

// Stats reports writes since creation.
func (w *Writer) Stats() kafkago.WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return kafkago.WriterStats{Writes: w.writes, Messages: w.msgs}
}

// Close stops further writes.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

// Reader reads one topic log from a position. It blocks at the end of the
// log until a message is appended, the context ends or the reader is closed.
type Reader struct {
	broker    *Broker
	topic     string
	mu        sync.Mutex
	pos       int64
	committed []int64
	closed    chan struct{}
	once      sync.Once
}

// FetchMessage returns the next message without committing it.
func (r *Reader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	for {
		select {
		case <-r.closed:
			return kafkago.Message{}, io.EOF
		default:
		}

		b := r.broker
		b.mu.Lock()
		log := b.logs[r.topic]
		r.mu.Lock()
		if r.pos < int64(len(log)) {
			msg := log[r.pos]
			r.pos++
			r.mu.Unlock()
			b.mu.Unlock()
			return msg, nil
		}
		r.mu.Unlock()
		wait := b.appended
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return kafkago.Message{}, ctx.Err()
		case <-r.closed:
			return kafkago.Message{}, io.EOF
		case <-wait:
		}
	}
}

// ReadMessage fetches and commits the next message.
func (r *Reader) ReadMessage(ctx context.Context) (kafkago.Message, error) {
	msg, err := r.FetchMessage(ctx)
	if err != nil {
		return msg, err
	}
	return msg, r.CommitMessages(ctx, msg)
}

// CommitMessages records committed offsets.
func (r *Reader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

// Committed returns the committed offsets in commit order.
func (r *Reader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

// Stats reports the reader position and lag.
func (r *Reader) Stats() kafkago.ReaderStats {
	r.broker.mu.Lock()
	end := int64(len(r.broker.logs[r.topic]))
	r.broker.mu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	return kafkago.ReaderStats{Topic: r.topic, Partition: "0", Offset: r.pos, Lag: end - r.pos}
}

// Close unblocks pending reads; later reads return io.EOF.
func (r *Reader) Close() error {
	r.once.Do(func() { close(r.closed) })
	return nil
}
