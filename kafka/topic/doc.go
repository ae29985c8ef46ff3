// Package topic exposes a Kafka topic as both a stream source and a stream
// sink.
//
// Reading opens a consumer session from the configured offset and decodes
// each value with the topic codec. Writing encodes with the same codec and
// goes through a lazily created producer:
//
//	events := topic.New("events",
//	    topic.WithConfig(kafka.Config{Brokers: []string{"localhost:9092"}}),
//	    topic.WithOffset(topic.ReadFromStart),
//	)
//	archive := topic.New("events-archive")
//	stream.Bind(engine, events, handler, archive)
//
// A Topic allows one reading session at a time. Range restricts a session to
// an offset window and shares that limit.
package topic
