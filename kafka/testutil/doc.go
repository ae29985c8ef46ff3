// Package testutil provides an in-memory single-partition broker that
// stands in for Kafka in tests. It hands out readers, a writer and an admin
// that satisfy the interfaces used by kafka/consumer, kafka/producer and
// kafka/topic.
package testutil
