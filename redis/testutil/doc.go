// Package testutil runs an in-memory Redis (miniredis) as a test component.
//
//	server := testutil.NewComponent()
//	snaptest.T(t).Setup(server)
//	store := redis.NewStore(server.Client(), "cache")
//
// Reset flushes all keys; Server().FastForward moves TTLs forward.
package testutil
