// Package testutil provides the lifecycle helpers shared by the in-memory
// fakes in kafka/testutil and redis/testutil.
//
//	func TestMirror(t *testing.T) {
//	    broker := kafkatest.NewBroker()
//	    store := redistest.NewServer()
//	    testutil.T(t).Setup(broker)
//	    testutil.T(t).Setup(store)
//	}
package testutil
