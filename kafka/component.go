package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/kbukum/snapstream/component"
	"github.com/kbukum/snapstream/logger"
)

// Client is a broker-backed resource owned by the component, such as a
// topic with an open writer.
type Client interface {
	Name() string
	Close() error
}

// Pinger checks broker reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Component owns the broker configuration and the clients built from it, and
// implements component.Component.
type Component struct {
	cfg     Config
	log     *logger.Logger
	pinger  Pinger
	clients []Client
	mu      sync.Mutex
	running bool
}

var _ component.Component = (*Component)(nil)

// NewComponent creates a Kafka component for use with the component registry.
// Process-wide defaults fill any unset fields of cfg.
func NewComponent(cfg Config, log *logger.Logger) *Component {
	cfg = cfg.MergeDefaults()
	cfg.ApplyDefaults()
	return &Component{
		cfg:    cfg,
		log:    log.WithComponent("kafka"),
		pinger: NewAdmin(cfg),
	}
}

// SetPinger replaces the broker health check.
func (c *Component) SetPinger(p Pinger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pinger = p
}

// Config returns the effective configuration.
func (c *Component) Config() Config { return c.cfg }

// Add hands a client to the component; it is closed on Stop.
func (c *Component) Add(cl Client) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients = append(c.clients, cl)
}

// Name returns the component name.
func (c *Component) Name() string { return "kafka" }

// Start validates the configuration.
func (c *Component) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	if err := c.cfg.Validate(); err != nil {
		return fmt.Errorf("kafka config: %w", err)
	}

	c.running = true
	c.log.Info("Kafka component started", logger.Fields("brokers", c.cfg.Brokers, "group_id", c.cfg.GroupID))
	return nil
}

// Stop closes every client in reverse order of registration.
func (c *Component) Stop(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}

	c.log.Info("Kafka component stopping", logger.Fields("clients", len(c.clients)))

	var firstErr error
	for i := len(c.clients) - 1; i >= 0; i-- {
		cl := c.clients[i]
		if err := cl.Close(); err != nil {
			c.log.Error("Close failed", logger.ErrFields(err, "client", cl.Name()))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.clients = nil
	c.running = false
	return firstErr
}

// Health checks broker connectivity.
func (c *Component) Health(ctx context.Context) component.Health {
	c.mu.Lock()
	running := c.running
	pinger := c.pinger
	brokers := len(c.cfg.Brokers)
	c.mu.Unlock()

	if !running {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "kafka not started",
		}
	}

	if brokers == 0 {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: "no brokers configured",
		}
	}

	if err := pinger.Ping(ctx); err != nil {
		return component.Health{
			Name:    c.Name(),
			Status:  component.StatusUnhealthy,
			Message: fmt.Sprintf("broker unreachable: %v", err),
		}
	}

	return component.Health{
		Name:   c.Name(),
		Status: component.StatusHealthy,
	}
}

// Describe returns infrastructure summary info for the bootstrap display.
func (c *Component) Describe() component.Description {
	c.mu.Lock()
	defer c.mu.Unlock()

	details := strings.Join(c.cfg.Brokers, ",")
	if c.cfg.GroupID != "" {
		details += " group=" + c.cfg.GroupID
	}
	names := make([]string, 0, len(c.clients))
	for _, cl := range c.clients {
		names = append(names, cl.Name())
	}
	if len(names) > 0 {
		details += fmt.Sprintf(" topics=%v", names)
	}
	return component.Description{
		Name:    "Kafka",
		Type:    "kafka",
		Details: details,
	}
}
