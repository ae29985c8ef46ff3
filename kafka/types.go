package kafka

import (
	"fmt"
	"sort"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message is a record read from a topic. Raw holds the value bytes as
// received; Value holds them decoded by the topic codec.
type Message struct {
	Key       string            `json:"key"`
	Value     any               `json:"value"`
	Raw       []byte            `json:"-"`
	Topic     string            `json:"topic"`
	Partition int               `json:"partition"`
	Offset    int64             `json:"offset"`
	Timestamp time.Time         `json:"timestamp"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// FromKafkaMessage converts a kafka-go Message. Value is the raw bytes
// until a codec replaces it.
func FromKafkaMessage(msg kafka.Message) Message {
	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Key:       string(msg.Key),
		Value:     msg.Value,
		Raw:       msg.Value,
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Timestamp: msg.Time,
		Headers:   headers,
	}
}

// ToKafkaMessage converts the message back to a kafka-go Message carrying
// the raw bytes. Headers are sorted by key.
func (m Message) ToKafkaMessage() kafka.Message {
	return kafka.Message{
		Key:       keyBytes(m.Key),
		Value:     m.Raw,
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Time:      m.Timestamp,
		Headers:   toHeaders(m.Headers),
	}
}

// HasKey reports whether the message was produced with a key.
func (m Message) HasKey() bool { return m.Key != "" }

// KeyValue returns the key and decoded value, so messages can be delivered
// to keyed sinks as they are.
func (m Message) KeyValue() (string, any) { return m.Key, m.Value }

func (m Message) String() string {
	if m.HasKey() {
		return fmt.Sprintf("%s[%d]@%d %s: %v", m.Topic, m.Partition, m.Offset, m.Key, m.Value)
	}
	return fmt.Sprintf("%s[%d]@%d %v", m.Topic, m.Partition, m.Offset, m.Value)
}

func keyBytes(key string) []byte {
	if key == "" {
		return nil
	}
	return []byte(key)
}

func toHeaders(h map[string]string) []kafka.Header {
	if len(h) == 0 {
		return nil
	}
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	headers := make([]kafka.Header, 0, len(h))
	for _, k := range keys {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(h[k])})
	}
	return headers
}

// NewMessage builds an outgoing kafka-go Message. An empty key is sent as
// a null key.
func NewMessage(topic, key string, value []byte, headers map[string]string) kafka.Message {
	return kafka.Message{
		Topic:   topic,
		Key:     keyBytes(key),
		Value:   value,
		Headers: toHeaders(headers),
	}
}
