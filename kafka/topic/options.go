package topic

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/snapstream/codec"
	"github.com/kbukum/snapstream/kafka"
	"github.com/kbukum/snapstream/kafka/consumer"
	"github.com/kbukum/snapstream/kafka/producer"
	"github.com/kbukum/snapstream/logger"
)

// Sentinel offsets accepted by WithOffset and Range.
const (
	ReadFromStart int64 = kafkago.FirstOffset
	ReadFromEnd   int64 = kafkago.LastOffset
)

// ReaderFactory opens a reader for a topic.
type ReaderFactory func(topic string, opts consumer.ReaderOptions) (consumer.Reader, error)

// Admin creates topics.
type Admin interface {
	CreateTopics(ctx context.Context, topics ...kafkago.TopicConfig) error
}

// Option configures a Topic.
type Option func(*Topic)

// WithConfig sets the broker configuration. Unset fields are taken from
// kafka.Defaults().
func WithConfig(cfg kafka.Config) Option {
	return func(t *Topic) { t.cfg = cfg }
}

// WithOffset sets where reading sessions start: ReadFromStart, ReadFromEnd
// or an absolute offset.
func WithOffset(offset int64) Option {
	return func(t *Topic) {
		t.offset = offset
		t.offsetSet = true
	}
}

// WithPartition selects the partition read when no consumer group is set.
func WithPartition(p int) Option {
	return func(t *Topic) { t.partition = p }
}

// WithCodec sets the value codec. The default is codec.JSON().
func WithCodec(c codec.Codec) Option {
	return func(t *Topic) { t.codec = c }
}

// WithDryRun encodes outgoing values but never writes them.
func WithDryRun(dry bool) Option {
	return func(t *Topic) { t.dry = dry }
}

// WithRaiseError makes retriable read errors end the session.
func WithRaiseError(raise bool) Option {
	return func(t *Topic) { t.raiseError = raise }
}

// WithCommitEachMessage commits every consumed message once the next one is
// requested. It only applies to group sessions.
func WithCommitEachMessage(commit bool) Option {
	return func(t *Topic) { t.commitEach = commit }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(t *Topic) { t.log = l }
}

// WithReaderFactory replaces the kafka-go reader used by sessions.
func WithReaderFactory(f ReaderFactory) Option {
	return func(t *Topic) { t.newReader = f }
}

// WithWriter replaces the kafka-go writer used by Send.
func WithWriter(w producer.Writer) Option {
	return func(t *Topic) { t.writer = w }
}

// WithAdmin replaces the admin client used by CreateTopic.
func WithAdmin(a Admin) Option {
	return func(t *Topic) { t.admin = a }
}
