package testutil

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/snapstream/component"
	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/kafka/consumer"
	"github.com/kbukum/snapstream/kafka/producer"
	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/testutil"
)

var (
	_ consumer.Reader = (*Reader)(nil)
	_ producer.Writer = (*Writer)(nil)
)

func TestBroker_ReadFromOffsets(t *testing.T) {
	b := NewBroker()
	b.Produce("events", "a", []byte("1"))
	b.Produce("events", "b", []byte("2"))
	ctx := context.Background()

	r, err := b.NewReader("events", consumer.ReaderOptions{StartOffset: kafkago.FirstOffset})
	if err != nil {
		t.Fatal(err)
	}
	msg, err := r.ReadMessage(ctx)
	if err != nil || string(msg.Key) != "a" || msg.Offset != 0 {
		t.Fatalf("unexpected first message %+v err=%v", msg, err)
	}

	r, _ = b.NewReader("events", consumer.ReaderOptions{StartOffset: 1})
	if msg, _ := r.FetchMessage(ctx); string(msg.Key) != "b" {
		t.Errorf("expected message at offset 1, got %+v", msg)
	}

	r, _ = b.NewReader("events", consumer.ReaderOptions{StartOffset: kafkago.LastOffset})
	go func() {
		time.Sleep(10 * time.Millisecond)
		b.Produce("events", "c", []byte("3"))
	}()
	if msg, err := r.FetchMessage(ctx); err != nil || string(msg.Key) != "c" || msg.Offset != 2 {
		t.Errorf("expected tail reader to see new message, got %+v err=%v", msg, err)
	}

	if _, err := b.NewReader("events", consumer.ReaderOptions{StartOffset: -5}); err == nil {
		t.Error("expected error for invalid offset")
	}
}

func TestBroker_ReaderCloseUnblocks(t *testing.T) {
	b := NewBroker()
	r, _ := b.NewReader("empty", consumer.ReaderOptions{StartOffset: kafkago.FirstOffset})
	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = r.Close()
	}()
	if _, err := r.FetchMessage(context.Background()); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF after close, got %v", err)
	}
}

func TestBroker_WriterAndFailures(t *testing.T) {
	b := NewBroker()
	w := b.Writer()
	ctx := context.Background()

	b.FailWrites(kafkago.LeaderNotAvailable)
	if err := w.WriteMessages(ctx, kafkago.Message{Topic: "t"}); !errors.Is(err, kafkago.LeaderNotAvailable) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if err := w.WriteMessages(ctx, kafkago.Message{Topic: "t", Value: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteMessages(ctx, kafkago.Message{Value: []byte("x")}); err == nil {
		t.Error("expected error for message without topic")
	}
	if got := b.Messages("t"); len(got) != 1 || string(got[0].Value) != "x" {
		t.Errorf("unexpected log %+v", got)
	}
	if w.Stats().Messages != 1 {
		t.Errorf("unexpected stats %+v", w.Stats())
	}
	_ = w.Close()
	if err := w.WriteMessages(ctx, kafkago.Message{Topic: "t"}); err == nil {
		t.Error("expected error after close")
	}
}

func TestBroker_WithProducerRetries(t *testing.T) {
	b := NewBroker()
	b.FailWrites(kafkago.LeaderNotAvailable)
	p := producer.NewWithWriter(b.Writer(), kafka.Config{Retries: 3}, logger.Nop())

	if err := p.Send(context.Background(), "t", "k", []byte("v"), nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(b.Messages("t")) != 1 {
		t.Error("expected message after retry")
	}
}

func TestBroker_WithConsumerCommitEach(t *testing.T) {
	b := NewBroker()
	b.Produce("t", "a", nil)
	b.Produce("t", "b", nil)
	r, _ := b.NewReader("t", consumer.ReaderOptions{StartOffset: kafkago.FirstOffset})
	c := consumer.New(r, "t", consumer.Options{GroupID: "g", CommitEach: true}, logger.Nop())
	ctx := context.Background()

	_, _, _ = c.Next(ctx)
	_, _, _ = c.Next(ctx)
	_ = c.Close()
	committed := r.(*Reader).Committed()
	if len(committed) != 1 || committed[0] != 0 {
		t.Errorf("unexpected commits %v", committed)
	}
}

func TestBroker_CreateTopics(t *testing.T) {
	b := NewBroker()
	ctx := context.Background()
	if err := b.CreateTopics(ctx, kafkago.TopicConfig{Topic: "t", NumPartitions: 1, ReplicationFactor: 1}); err != nil {
		t.Fatal(err)
	}
	err := b.CreateTopics(ctx, kafkago.TopicConfig{Topic: "t"})
	if !kafka.IsTopicExists(err) {
		t.Errorf("expected topic-exists error, got %v", err)
	}
	if b.Topics()["t"].NumPartitions != 1 {
		t.Error("expected topic config recorded")
	}
}

func TestBroker_Lifecycle(t *testing.T) {
	b := NewBroker()
	if b.Health(context.Background()).Status != component.StatusUnhealthy {
		t.Error("expected unhealthy before start")
	}
	h := testutil.T(t)
	h.Setup(b)
	if b.Health(context.Background()).Status != component.StatusHealthy {
		t.Error("expected healthy after start")
	}
	if err := b.Start(context.Background()); err == nil {
		t.Error("expected error on double start")
	}

	b.Produce("t", "a", nil)
	snap := h.Snapshot(b)
	h.Reset(b)
	if len(b.Messages("t")) != 0 {
		t.Error("expected empty log after reset")
	}
	h.Restore(b, snap)
	if len(b.Messages("t")) != 1 {
		t.Error("expected log restored")
	}
	if err := b.Restore(context.Background(), "bad"); err == nil {
		t.Error("expected error for bad snapshot")
	}
}
