package producer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/logger"
)

// Writer is the subset of *kafkago.Writer the producer writes through.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Stats() kafkago.WriterStats
	Close() error
}

var _ Writer = (*kafkago.Writer)(nil)

// Producer wraps a kafka-go Writer with TLS/SASL, retries, and logging.
type Producer struct {
	writer   Writer
	cfg      kafka.Config
	log      *logger.Logger
	interval time.Duration
	mu       sync.RWMutex
	closed   bool
}

// NewProducer creates a new Kafka producer with eager initialization.
func NewProducer(cfg kafka.Config, log *logger.Logger) (*Producer, error) {
	p, err := NewLazyProducer(cfg, log)
	if err != nil {
		return nil, err
	}
	if err := p.initWriter(); err != nil {
		return nil, err
	}
	return p, nil
}

// NewLazyProducer creates a Producer that initializes the underlying writer
// on first use (thread-safe). Useful when Kafka may not be available at startup.
func NewLazyProducer(cfg kafka.Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}

	return &Producer{cfg: cfg, log: log.WithComponent("kafka.producer"), interval: 100 * time.Millisecond}, nil
}

// NewWithWriter creates a Producer around an existing writer.
func NewWithWriter(w Writer, cfg kafka.Config, log *logger.Logger) *Producer {
	cfg.ApplyDefaults()
	return &Producer{writer: w, cfg: cfg, log: log.WithComponent("kafka.producer"), interval: 100 * time.Millisecond}
}

// initWriter creates the underlying kafka.Writer (idempotent, thread-safe).
func (p *Producer) initWriter() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.writer != nil {
		return nil
	}

	transport, err := kafka.CreateTransport(&p.cfg)
	if err != nil {
		return fmt.Errorf("kafka producer transport: %w", err)
	}

	p.writer = &kafkago.Writer{
		Addr:         kafkago.TCP(p.cfg.Brokers...),
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchSize:    p.cfg.BatchSize,
		BatchTimeout: kafka.ParseDuration(p.cfg.BatchTimeout),
		RequiredAcks: kafkago.RequiredAcks(p.cfg.RequiredAcks),
		Compression:  kafka.ResolveCompression(p.cfg.Compression),
		WriteTimeout: kafka.ParseDuration(p.cfg.WriteTimeout),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			p.log.Error("writer: "+fmt.Sprintf(msg, args...))
		}),
	}

	p.log.Info("Kafka producer initialized", logger.Fields(
		"brokers", p.cfg.Brokers,
		"compression", p.cfg.Compression,
		"batch_size", p.cfg.BatchSize,
	))

	return nil
}

// ensureWriter guarantees the writer is initialized before use.
func (p *Producer) ensureWriter() error {
	p.mu.RLock()
	if p.writer != nil {
		p.mu.RUnlock()
		return nil
	}
	p.mu.RUnlock()
	return p.initWriter()
}

// WriteMessages sends one or more messages to Kafka. Retryable failures are
// retried with exponential backoff up to cfg.Retries attempts; the returned
// error is translated with kafka.FromKafka.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return fmt.Errorf("producer is closed")
	}

	if err := p.ensureWriter(); err != nil {
		return err
	}

	topic := ""
	if len(msgs) > 0 {
		topic = msgs[0].Topic
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.interval
	policy.MaxInterval = 20 * p.interval

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := p.writer.WriteMessages(ctx, msgs...)
		if err != nil && !kafka.IsRetryableError(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(uint(p.cfg.Retries)),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, wait time.Duration) {
			p.log.Warn("Kafka write failed, retrying", logger.Fields(
				"topic", topic,
				"error", err.Error(),
				"wait", wait.String(),
			))
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return kafka.FromKafka(err, topic)
	}
	return nil
}

// Send writes a single message.
func (p *Producer) Send(ctx context.Context, topic, key string, value []byte, headers map[string]string) error {
	return p.WriteMessages(ctx, kafka.NewMessage(topic, key, value, headers))
}

// Stats returns writer statistics.
func (p *Producer) Stats() kafka.WriterMetrics {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.writer != nil {
		return kafka.CollectWriterMetrics(p.writer.Stats())
	}
	return kafka.WriterMetrics{}
}

// Close flushes pending batches and shuts down the producer.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	p.log.Debug("Kafka producer closing")
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
