package component

import "context"

// HealthStatus is the coarse state reported by Health.
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusUnhealthy HealthStatus = "unhealthy"
	StatusDegraded  HealthStatus = "degraded"
)

// Health is one component's health report.
type Health struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Component is something with a start/stop lifecycle: the kafka client
// set, the redis client and the dispatch engine.
//
// Start must be safe to call on a started component and Stop on a stopped
// one.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Health(ctx context.Context) Health
}

// Description is a component's line in the startup summary.
type Description struct {
	// Name defaults to the component's Name().
	Name string
	// Type is "kafka", "redis" or "stream".
	Type string
	// Details, e.g. "localhost:9092 group=mirror".
	Details string
}

// Describable components are listed in the startup summary.
type Describable interface {
	Describe() Description
}
