package kafka

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kbukum/snapstream/component"
	"github.com/kbukum/snapstream/logger"
)

type mockClient struct {
	name   string
	err    error
	closed *[]string
}

func (m *mockClient) Name() string { return m.name }

func (m *mockClient) Close() error {
	*m.closed = append(*m.closed, m.name)
	return m.err
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func newComponent(t *testing.T) *Component {
	t.Helper()
	comp := NewComponent(Config{Brokers: []string{"localhost:9092"}, GroupID: "mirror"}, logger.Nop())
	comp.SetPinger(stubPinger{})
	return comp
}

func TestComponent_Name(t *testing.T) {
	if newComponent(t).Name() != "kafka" {
		t.Error("expected name kafka")
	}
}

func TestComponent_StartValidates(t *testing.T) {
	comp := NewComponent(Config{Brokers: []string{"localhost:9092"}, SessionTimeout: "soon"}, logger.Nop())
	if err := comp.Start(context.Background()); err == nil {
		t.Fatal("expected validation error for an unparsable session timeout")
	}
}

func TestComponent_StartStop(t *testing.T) {
	comp := newComponent(t)
	var closed []string
	comp.Add(&mockClient{name: "a", closed: &closed})
	comp.Add(&mockClient{name: "b", closed: &closed})

	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("second Start() should be a no-op, got %v", err)
	}
	if err := comp.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error: %v", err)
	}
	if strings.Join(closed, ",") != "b,a" {
		t.Errorf("expected reverse close order, got %v", closed)
	}
	if err := comp.Stop(context.Background()); err != nil {
		t.Errorf("Stop() when stopped should be nil, got %v", err)
	}
}

func TestComponent_StopReportsFirstError(t *testing.T) {
	comp := newComponent(t)
	var closed []string
	errA := errors.New("a failed")
	comp.Add(&mockClient{name: "a", err: errA, closed: &closed})
	comp.Add(&mockClient{name: "b", err: errors.New("b failed"), closed: &closed})
	_ = comp.Start(context.Background())

	if err := comp.Stop(context.Background()); err == nil || err.Error() != "b failed" {
		t.Errorf("expected first close error in stop order, got %v", err)
	}
	if len(closed) != 2 {
		t.Errorf("all clients should be closed, got %v", closed)
	}
}

func TestComponent_Health(t *testing.T) {
	comp := newComponent(t)
	if h := comp.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}

	_ = comp.Start(context.Background())
	if h := comp.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy, got %s (%s)", h.Status, h.Message)
	}

	comp.SetPinger(stubPinger{err: errors.New("connection refused")})
	h := comp.Health(context.Background())
	if h.Status != component.StatusUnhealthy || !strings.Contains(h.Message, "connection refused") {
		t.Errorf("unexpected health %+v", h)
	}
}

func TestComponent_MergesDefaults(t *testing.T) {
	SetDefaults(Config{Brokers: []string{"default:9092"}, ClientID: "shared"})
	t.Cleanup(func() { SetDefaults(Config{}) })

	comp := NewComponent(Config{GroupID: "g"}, logger.Nop())
	cfg := comp.Config()
	if len(cfg.Brokers) != 1 || cfg.Brokers[0] != "default:9092" {
		t.Errorf("expected default brokers, got %v", cfg.Brokers)
	}
	if cfg.ClientID != "shared" || cfg.GroupID != "g" {
		t.Errorf("unexpected merge result %+v", cfg)
	}
}

func TestComponent_Describe(t *testing.T) {
	comp := newComponent(t)
	var closed []string
	comp.Add(&mockClient{name: "events", closed: &closed})

	desc := comp.Describe()
	if desc.Name != "Kafka" || desc.Type != "kafka" {
		t.Errorf("unexpected description %+v", desc)
	}
	for _, want := range []string{"localhost:9092", "group=mirror", "events"} {
		if !strings.Contains(desc.Details, want) {
			t.Errorf("details %q missing %q", desc.Details, want)
		}
	}
}
