package kafka

import (
	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/snapstream/logger"
)

// WriterMetrics summarizes a topic's producer since the last snapshot.
type WriterMetrics struct {
	Writes       int64   `json:"writes"`
	Messages     int64   `json:"messages"`
	Bytes        int64   `json:"bytes"`
	Errors       int64   `json:"errors"`
	Retries      int64   `json:"retries"`
	AvgWriteTime float64 `json:"avg_write_time_ms"`
	MaxWriteTime float64 `json:"max_write_time_ms"`
	Topic        string  `json:"topic,omitempty"`
}

// ReaderMetrics summarizes a topic session's reader since the last snapshot.
type ReaderMetrics struct {
	Fetches   int64  `json:"fetches"`
	Messages  int64  `json:"messages"`
	Bytes     int64  `json:"bytes"`
	Errors    int64  `json:"errors"`
	Offset    int64  `json:"offset"`
	Lag       int64  `json:"lag"`
	Topic     string `json:"topic"`
	Partition string `json:"partition"`
}

// CollectWriterMetrics extracts structured metrics from kafka.WriterStats.
func CollectWriterMetrics(stats kafkago.WriterStats) WriterMetrics {
	return WriterMetrics{
		Writes:       stats.Writes,
		Messages:     stats.Messages,
		Bytes:        stats.Bytes,
		Errors:       stats.Errors,
		Retries:      stats.Retries,
		AvgWriteTime: float64(stats.WriteTime.Avg) / 1e6,
		MaxWriteTime: float64(stats.WriteTime.Max) / 1e6,
		Topic:        stats.Topic,
	}
}

// CollectReaderMetrics extracts structured metrics from kafka.ReaderStats.
func CollectReaderMetrics(stats kafkago.ReaderStats) ReaderMetrics {
	return ReaderMetrics{
		Fetches:   stats.Fetches,
		Messages:  stats.Messages,
		Bytes:     stats.Bytes,
		Errors:    stats.Errors,
		Offset:    stats.Offset,
		Lag:       stats.Lag,
		Topic:     stats.Topic,
		Partition: stats.Partition,
	}
}

// Fields returns the metrics as log fields.
func (m WriterMetrics) Fields() map[string]interface{} {
	return logger.Fields(
		logger.FieldTopic, m.Topic,
		"messages", m.Messages,
		"bytes", m.Bytes,
		"errors", m.Errors,
		"retries", m.Retries,
	)
}

// Fields returns the metrics as log fields.
func (m ReaderMetrics) Fields() map[string]interface{} {
	return logger.Fields(
		logger.FieldTopic, m.Topic,
		"partition", m.Partition,
		"messages", m.Messages,
		"offset", m.Offset,
		"lag", m.Lag,
		"errors", m.Errors,
	)
}
