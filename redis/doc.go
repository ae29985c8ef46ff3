// Package redis provides the key-value store collaborator: a go-redis client
// with component lifecycle, and Store, a codec-encoded key namespace that is
// both a stream source (SCAN) and a keyed stream sink. Store.Lock gives
// callers a scoped per-key lock for sinks that read-modify-write.
//
//	client, _ := redis.New(redis.Config{Addr: "localhost:6379"}, log)
//	counts := redis.NewStore(client, "counts")
//	stream.Bind(engine, events, countByKey, counts)
package redis
