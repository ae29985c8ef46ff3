package producer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	apperrors "github.com/kbukum/snapstream/errors"
	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/logger"
)

type stubWriter struct {
	mu       sync.Mutex
	failures []error
	attempts int
	written  []kafkago.Message
	closed   bool
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	if len(w.failures) > 0 {
		err := w.failures[0]
		w.failures = w.failures[1:]
		return err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *stubWriter) Stats() kafkago.WriterStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return kafkago.WriterStats{Topic: "events", Messages: int64(len(w.written))}
}

func (w *stubWriter) Close() error {
	w.closed = true
	return nil
}

func newTestProducer(w Writer, retries int) *Producer {
	p := NewWithWriter(w, kafka.Config{Retries: retries}, logger.Nop())
	p.interval = time.Millisecond
	return p
}

func TestProducer_Send(t *testing.T) {
	w := &stubWriter{}
	p := newTestProducer(w, 3)

	err := p.Send(context.Background(), "events", "k", []byte("v"), map[string]string{"content-type": "application/json"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(w.written) != 1 {
		t.Fatalf("expected 1 message, got %d", len(w.written))
	}
	msg := w.written[0]
	if msg.Topic != "events" || string(msg.Key) != "k" || string(msg.Value) != "v" {
		t.Errorf("unexpected message %+v", msg)
	}
	if len(msg.Headers) != 1 || msg.Headers[0].Key != "content-type" {
		t.Errorf("unexpected headers %+v", msg.Headers)
	}
	if p.Stats().Messages != 1 {
		t.Errorf("unexpected stats %+v", p.Stats())
	}
}

func TestProducer_RetriesRetryable(t *testing.T) {
	w := &stubWriter{failures: []error{kafkago.LeaderNotAvailable, kafkago.NotLeaderForPartition}}
	p := newTestProducer(w, 3)

	if err := p.Send(context.Background(), "events", "", []byte("v"), nil); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if w.attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", w.attempts)
	}
}

func TestProducer_GivesUpAfterRetries(t *testing.T) {
	w := &stubWriter{failures: []error{
		kafkago.LeaderNotAvailable, kafkago.LeaderNotAvailable, kafkago.LeaderNotAvailable, kafkago.LeaderNotAvailable,
	}}
	p := newTestProducer(w, 2)

	err := p.Send(context.Background(), "events", "", []byte("v"), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if w.attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", w.attempts)
	}
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Details["topic"] != "events" {
		t.Errorf("expected translated error with topic, got %v", err)
	}
}

func TestProducer_NonRetryableStopsImmediately(t *testing.T) {
	w := &stubWriter{failures: []error{kafkago.MessageSizeTooLarge}}
	p := newTestProducer(w, 5)

	err := p.Send(context.Background(), "events", "", []byte("v"), nil)
	if !errors.Is(err, kafkago.MessageSizeTooLarge) {
		t.Errorf("expected MessageSizeTooLarge in chain, got %v", err)
	}
	if w.attempts != 1 {
		t.Errorf("expected a single attempt, got %d", w.attempts)
	}
}

func TestProducer_CancelledContext(t *testing.T) {
	w := &stubWriter{failures: []error{kafkago.LeaderNotAvailable, kafkago.LeaderNotAvailable, kafkago.LeaderNotAvailable}}
	p := newTestProducer(w, 3)
	p.interval = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := p.Send(ctx, "events", "", []byte("v"), nil); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestProducer_Close(t *testing.T) {
	w := &stubWriter{}
	p := newTestProducer(w, 3)

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !w.closed {
		t.Error("expected writer to be closed")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
	if err := p.Send(context.Background(), "events", "", nil, nil); err == nil {
		t.Error("expected error writing to a closed producer")
	}
}

func TestNewLazyProducer(t *testing.T) {
	p, err := NewLazyProducer(kafka.Config{Brokers: []string{"localhost:9092"}}, logger.Nop())
	if err != nil {
		t.Fatalf("NewLazyProducer: %v", err)
	}
	if p.writer != nil {
		t.Error("writer should not be created before first use")
	}
	if p.Stats() != (kafka.WriterMetrics{}) {
		t.Error("expected empty stats before first use")
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestNewProducer_InvalidConfig(t *testing.T) {
	cfg := kafka.Config{Brokers: []string{"localhost:9092"}, EnableSASL: true, SASLMechanism: "GSSAPI", Username: "u"}
	if _, err := NewProducer(cfg, logger.Nop()); err == nil {
		t.Error("expected validation error for unsupported SASL mechanism")
	}
}

func TestNewProducer_Eager(t *testing.T) {
	p, err := NewProducer(kafka.Config{Brokers: []string{"localhost:9092"}}, logger.Nop())
	if err != nil {
		t.Fatalf("NewProducer: %v", err)
	}
	defer p.Close()
	if p.writer == nil {
		t.Error("expected writer to be created eagerly")
	}
}
