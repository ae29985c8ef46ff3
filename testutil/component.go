package testutil

import (
	"context"

	"github.com/kbukum/snapstream/component"
)

// TestComponent is a component.Component backed by an in-memory fake that
// can be reset and snapshotted between test cases.
type TestComponent interface {
	component.Component

	// Reset drops all state held by the fake.
	Reset(ctx context.Context) error

	// Snapshot captures the current state. The value can be passed to Restore.
	Snapshot(ctx context.Context) (interface{}, error)

	// Restore returns the fake to a state captured by Snapshot.
	Restore(ctx context.Context, snapshot interface{}) error
}
