package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/snapstream/errors"
	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/logger"
)

const maxBackoff = 30 * time.Second

// Reader is the subset of *kafkago.Reader the consumer pulls from.
type Reader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	ReadMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Stats() kafkago.ReaderStats
	Close() error
}

var _ Reader = (*kafkago.Reader)(nil)

// ReaderOptions selects where a new reader starts.
type ReaderOptions struct {
	// Partition is read when no consumer group is configured.
	Partition int
	// StartOffset is kafkago.FirstOffset, kafkago.LastOffset or an absolute
	// offset. Absolute offsets need a partition reader.
	StartOffset int64
	// NoGroup forces a partition reader even when cfg.GroupID is set.
	NoGroup bool
}

// NewReader builds a kafka-go reader for topic. With cfg.GroupID set the
// reader joins the group and StartOffset only applies to partitions without
// a committed offset.
func NewReader(cfg kafka.Config, topic string, opts ReaderOptions, log *logger.Logger) (*kafkago.Reader, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka consumer config: %w", err)
	}
	if opts.NoGroup {
		cfg.GroupID = ""
	}
	if cfg.GroupID != "" && opts.StartOffset >= 0 {
		return nil, apperrors.InvalidInput("offset",
			fmt.Sprintf("absolute offset %d cannot be used with consumer group %q", opts.StartOffset, cfg.GroupID))
	}

	dialer, err := kafka.CreateDialer(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer dialer: %w", err)
	}

	clog := log.WithComponent("kafka.consumer")
	rc := kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    topic,
		Dialer:   dialer,
		MinBytes: 1,
		MaxBytes: cfg.MaxBytes,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			clog.Error("reader: "+fmt.Sprintf(msg, args...), logger.Fields("topic", topic, "group_id", cfg.GroupID))
		}),
	}
	if cfg.GroupID != "" {
		rc.GroupID = cfg.GroupID
		rc.StartOffset = opts.StartOffset
		rc.SessionTimeout = kafka.ParseDuration(cfg.SessionTimeout)
		rc.HeartbeatInterval = kafka.ParseDuration(cfg.HeartbeatInterval)
		rc.RebalanceTimeout = kafka.ParseDuration(cfg.RebalanceTimeout)
	} else {
		rc.Partition = opts.Partition
	}

	reader := kafkago.NewReader(rc)
	if cfg.GroupID == "" {
		if err := reader.SetOffset(opts.StartOffset); err != nil {
			_ = reader.Close()
			return nil, fmt.Errorf("kafka consumer offset: %w", err)
		}
	}

	clog.Info("Kafka reader initialized", logger.Fields(
		"topic", topic,
		"group_id", cfg.GroupID,
		"partition", opts.Partition,
		"offset", opts.StartOffset,
	))
	return reader, nil
}

// Options tunes error and commit behaviour.
type Options struct {
	// GroupID is informational unless CommitEach is set.
	GroupID string
	// RaiseError surfaces retriable read errors instead of logging and
	// retrying them.
	RaiseError bool
	// CommitEach commits every message once the caller asks for the next
	// one. The last message handed out is not committed on Close, so it is
	// redelivered after a restart. It only applies to group readers.
	CommitEach bool
}

// Consumer pulls messages from a Reader one at a time. It implements
// pipeline.Iterator[kafka.Message].
type Consumer struct {
	reader   Reader
	topic    string
	opts     Options
	log      *logger.Logger
	failures int
	unit     time.Duration

	mu      sync.Mutex
	pending *kafkago.Message
	closed  bool
}

// New wraps an existing reader.
func New(r Reader, topic string, opts Options, log *logger.Logger) *Consumer {
	return &Consumer{
		reader: r,
		topic:  topic,
		opts:   opts,
		log:    log.WithComponent("kafka.consumer"),
		unit:   time.Second,
	}
}

// NewConsumer creates a consumer with a fresh kafka-go reader.
func NewConsumer(cfg kafka.Config, topic string, ropts ReaderOptions, opts Options, log *logger.Logger) (*Consumer, error) {
	r, err := NewReader(cfg, topic, ropts, log)
	if err != nil {
		return nil, err
	}
	opts.GroupID = cfg.GroupID
	return New(r, topic, opts, log), nil
}

func (c *Consumer) manualCommit() bool {
	return c.opts.CommitEach && c.opts.GroupID != ""
}

// Next returns the next message. ok is false once the reader is closed.
// Retriable read errors are logged and retried with a linear backoff unless
// RaiseError is set.
func (c *Consumer) Next(ctx context.Context) (kafka.Message, bool, error) {
	if err := c.commitPending(ctx); err != nil {
		return kafka.Message{}, false, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return kafka.Message{}, false, err
		}

		var (
			msg kafkago.Message
			err error
		)
		if c.manualCommit() {
			msg, err = c.reader.FetchMessage(ctx)
		} else {
			msg, err = c.reader.ReadMessage(ctx)
		}
		if err != nil {
			if ctx.Err() != nil {
				return kafka.Message{}, false, ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return kafka.Message{}, false, nil
			}
			if c.opts.RaiseError || !kafka.IsRetryableError(err) {
				return kafka.Message{}, false, kafka.FromKafka(err, c.topic)
			}
			if retryErr := c.handleFailure(ctx, err); retryErr != nil {
				return kafka.Message{}, false, retryErr
			}
			continue
		}

		c.failures = 0
		if c.manualCommit() {
			c.mu.Lock()
			c.pending = &msg
			c.mu.Unlock()
		}
		return kafka.FromKafkaMessage(msg), true, nil
	}
}

func (c *Consumer) commitPending(ctx context.Context) error {
	c.mu.Lock()
	msg := c.pending
	c.pending = nil
	c.mu.Unlock()

	if msg == nil {
		return nil
	}
	if err := c.reader.CommitMessages(ctx, *msg); err != nil {
		return kafka.FromKafka(err, c.topic)
	}
	return nil
}

func (c *Consumer) handleFailure(ctx context.Context, err error) error {
	c.failures++
	if c.failures <= 3 {
		c.log.Error("Kafka read error", logger.Fields(
			"error", err.Error(),
			"failures", c.failures,
			"topic", c.topic,
			"group_id", c.opts.GroupID,
		))
	}

	backoff := time.Duration(c.failures) * c.unit
	if backoff > maxBackoff {
		backoff = maxBackoff
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(backoff):
		return nil
	}
}

// Topic returns the consumer's topic.
func (c *Consumer) Topic() string { return c.topic }

// GroupID returns the consumer's group ID.
func (c *Consumer) GroupID() string { return c.opts.GroupID }

// Stats returns reader statistics.
func (c *Consumer) Stats() kafka.ReaderMetrics { return kafka.CollectReaderMetrics(c.reader.Stats()) }

// Close closes the reader. A message handed out but not yet followed by
// another Next call stays uncommitted: its handling may have failed.
// Calling Close more than once is a no-op.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.pending = nil
	c.mu.Unlock()

	c.log.Debug("Kafka consumer closing", logger.Fields("topic", c.topic, "group_id", c.opts.GroupID))
	return c.reader.Close()
}
