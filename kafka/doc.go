// Package kafka holds the broker configuration, connection setup, error
// classification and message types shared by the consumer, producer and
// topic packages.
//
// # Architecture
//
//   - Config: broker, TLS/SASL, batching and timeout settings with
//     ApplyDefaults/Validate, plus process-wide defaults merged into every
//     topic (SetDefaults, MergeDefaults)
//   - Component: owns topics opened by an application and closes them on Stop
//   - kafka/consumer: pull-based reader sessions with backoff and commits
//   - kafka/producer: writes with exponential-backoff retries
//   - kafka/topic: a topic as a stream source and sink
//   - kafka/testutil: an in-memory broker for tests
//
// # Configuration
//
//	kafka:
//	  brokers: ["localhost:9092"]
//	  group_id: "mirror"
//	  auto_offset_reset: "earliest"
package kafka
