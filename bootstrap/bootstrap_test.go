package bootstrap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/snapstream/component"
	"github.com/kbukum/snapstream/config"
	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/stream"
)

// testConfig is a minimal config for testing that satisfies the Config interface.
type testConfig struct {
	config.ServiceConfig
}

// mockComponent implements component.Component for testing.
type mockComponent struct {
	name     string
	startErr error
	stopErr  error
	health   component.Health
	log      *[]string
	mu       sync.Mutex
}

func (m *mockComponent) Name() string { return m.name }

func (m *mockComponent) Start(context.Context) error {
	m.record("start " + m.name)
	return m.startErr
}

func (m *mockComponent) Stop(context.Context) error {
	m.record("stop " + m.name)
	return m.stopErr
}

func (m *mockComponent) Health(context.Context) component.Health { return m.health }

func (m *mockComponent) Describe() component.Description {
	return component.Description{Type: "mock", Details: m.name + " details"}
}

func (m *mockComponent) record(s string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.log != nil {
		*m.log = append(*m.log, s)
	}
}

func healthy(name string, log *[]string) *mockComponent {
	return &mockComponent{
		name:   name,
		log:    log,
		health: component.Health{Name: name, Status: component.StatusHealthy},
	}
}

func newTestApp(t *testing.T, opts ...Option) *App[*testConfig] {
	t.Helper()
	cfg := &testConfig{ServiceConfig: config.ServiceConfig{Name: "test-svc", Version: "1.0.0"}}
	opts = append([]Option{WithLogger(logger.Nop()), WithSummaryWriter(io.Discard)}, opts...)
	app, err := NewApp(cfg, opts...)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}
	return app
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t)
	if app.Name != "test-svc" || app.Version != "1.0.0" {
		t.Errorf("unexpected app identity %q %q", app.Name, app.Version)
	}
	if app.Components == nil || app.Logger == nil || app.Summary == nil {
		t.Fatal("expected registry, logger and summary")
	}
	if app.Cfg.Environment != "development" {
		t.Errorf("expected defaults applied, got environment %q", app.Cfg.Environment)
	}
	if app.gracefulTimeout != 15*time.Second {
		t.Errorf("expected default 15s, got %v", app.gracefulTimeout)
	}
}

func TestNewAppValidation(t *testing.T) {
	_, err := NewApp(&testConfig{}, WithLogger(logger.Nop()))
	if err == nil || !strings.Contains(err.Error(), "config validation") {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestNewAppOptions(t *testing.T) {
	app := newTestApp(t, WithGracefulTimeout(5*time.Second), WithoutSummary())
	if app.gracefulTimeout != 5*time.Second {
		t.Errorf("expected 5s, got %v", app.gracefulTimeout)
	}
	if app.summaryOut != nil {
		t.Error("expected summary disabled")
	}
}

func TestRegisterComponentDuplicate(t *testing.T) {
	app := newTestApp(t)
	if err := app.RegisterComponent(healthy("kafka", nil)); err != nil {
		t.Fatal(err)
	}
	if err := app.RegisterComponent(healthy("kafka", nil)); err == nil {
		t.Error("expected error for duplicate component registration")
	}
}

func TestReadyCheck(t *testing.T) {
	tests := []struct {
		name    string
		status  component.HealthStatus
		wantErr bool
	}{
		{"healthy", component.StatusHealthy, false},
		{"degraded", component.StatusDegraded, true},
		{"unhealthy", component.StatusUnhealthy, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(t)
			_ = app.RegisterComponent(&mockComponent{
				name:   "redis",
				health: component.Health{Name: "redis", Status: tc.status, Message: "slow"},
			})
			err := app.ReadyCheck(context.Background())
			if (err != nil) != tc.wantErr {
				t.Errorf("ReadyCheck() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestRunTaskLifecycleOrder(t *testing.T) {
	var order []string
	app := newTestApp(t)
	_ = app.RegisterComponent(healthy("kafka", &order))
	_ = app.RegisterComponent(healthy("redis", &order))
	app.OnStart(func(context.Context) error { order = append(order, "onStart"); return nil })
	app.OnConfigure(func(_ context.Context, a *App[*testConfig]) error {
		if a.Cfg.Name != "test-svc" {
			t.Errorf("expected typed config in configure, got %q", a.Cfg.Name)
		}
		order = append(order, "configure")
		return nil
	})
	app.OnReady(func(context.Context) error { order = append(order, "onReady"); return nil })
	app.OnStop(func(context.Context) error { order = append(order, "onStop"); return nil })

	err := app.RunTask(context.Background(), func(context.Context) error {
		order = append(order, "task")
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask failed: %v", err)
	}

	want := "start kafka,start redis,onStart,configure,onReady,task,onStop,stop redis,stop kafka"
	if got := strings.Join(order, ","); got != want {
		t.Errorf("lifecycle order\n got: %s\nwant: %s", got, want)
	}
}

func TestRunTaskError(t *testing.T) {
	app := newTestApp(t)
	boom := errors.New("task error")
	_ = app.RegisterComponent(&mockComponent{name: "kafka", stopErr: errors.New("stop error")})

	err := app.RunTask(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("task error should win over stop error, got %v", err)
	}
}

func TestRunTaskStopError(t *testing.T) {
	app := newTestApp(t)
	stopErr := errors.New("stop error")
	_ = app.RegisterComponent(&mockComponent{name: "kafka", stopErr: stopErr})

	err := app.RunTask(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, stopErr) {
		t.Errorf("expected stop error, got %v", err)
	}
}

func TestRunTaskStartFailureStopsStarted(t *testing.T) {
	var order []string
	app := newTestApp(t)
	_ = app.RegisterComponent(healthy("kafka", &order))
	bad := healthy("redis", &order)
	bad.startErr = errors.New("refused")
	_ = app.RegisterComponent(bad)

	ran := false
	err := app.RunTask(context.Background(), func(context.Context) error { ran = true; return nil })
	if err == nil || !strings.Contains(err.Error(), "initialization failed") {
		t.Fatalf("expected initialization error, got %v", err)
	}
	if ran {
		t.Error("task must not run after a failed start")
	}
	if got := strings.Join(order, ","); got != "start kafka,start redis,stop kafka" {
		t.Errorf("unexpected order %s", got)
	}
}

func TestRunTaskHookFailure(t *testing.T) {
	app := newTestApp(t)
	app.OnConfigure(func(context.Context, *App[*testConfig]) error { return fmt.Errorf("no topic") })
	err := app.RunTask(context.Background(), func(context.Context) error { return nil })
	if err == nil || !strings.Contains(err.Error(), "configuration failed") {
		t.Errorf("expected configuration error, got %v", err)
	}
}

func TestRunTaskCancellation(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := app.RunTask(ctx, func(taskCtx context.Context) error {
		cancel()
		<-taskCtx.Done()
		return taskCtx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRunReturnsOnCancel(t *testing.T) {
	var order []string
	app := newTestApp(t)
	_ = app.RegisterComponent(healthy("kafka", &order))
	ctx, cancel := context.WithCancel(context.Background())
	app.OnReady(func(context.Context) error { cancel(); return nil })

	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := strings.Join(order, ","); got != "start kafka,stop kafka" {
		t.Errorf("unexpected order %s", got)
	}
}

func TestRunEngine(t *testing.T) {
	var buf bytes.Buffer
	app := newTestApp(t, WithSummaryWriter(&buf))
	_ = app.RegisterComponent(healthy("kafka", nil))

	e := stream.New(stream.WithLogger(logger.Nop()))
	col := stream.NewCollector[int]()
	double := stream.Map(func(_ context.Context, n int) (int, error) { return n * 2, nil })
	if _, err := stream.BindNamed(e, "doubler", stream.FromSlice(1, 2, 3), double, col); err != nil {
		t.Fatal(err)
	}

	if err := app.RunEngine(context.Background(), e); err != nil {
		t.Fatalf("RunEngine failed: %v", err)
	}
	if col.Len() != 3 {
		t.Errorf("expected 3 outputs, got %d", col.Len())
	}

	out := buf.String()
	for _, want := range []string{"test-svc 1.0.0 started", "Bindings (1)", "doubler", "kafka [mock]: kafka details", "kafka: healthy"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestHooks(t *testing.T) {
	t.Run("run in order", func(t *testing.T) {
		var order []string
		err := runHooks(context.Background(), []Hook{
			func(context.Context) error { order = append(order, "first"); return nil },
			func(context.Context) error { order = append(order, "second"); return nil },
		})
		if err != nil || strings.Join(order, ",") != "first,second" {
			t.Errorf("unexpected hooks run %v err=%v", order, err)
		}
	})

	t.Run("error stops execution", func(t *testing.T) {
		secondCalled := false
		err := runHooks(context.Background(), []Hook{
			func(context.Context) error { return fmt.Errorf("fail") },
			func(context.Context) error { secondCalled = true; return nil },
		})
		if err == nil || !strings.Contains(err.Error(), "hook 0 failed") {
			t.Errorf("expected hook 0 error, got %v", err)
		}
		if secondCalled {
			t.Error("expected second hook not to be called after first fails")
		}
	})
}

func TestSummaryCollect(t *testing.T) {
	reg := component.NewRegistry(logger.Nop())
	_ = reg.Register(healthy("kafka", nil))
	_ = reg.Register(&plainComponent{})

	s := NewSummary("svc", "")
	s.TrackInfrastructure("kafka", "kafka", "already tracked")
	s.Collect(reg)
	s.Collect(reg)

	infra := s.Infrastructure()
	if len(infra) != 1 || infra[0].Details != "already tracked" {
		t.Errorf("unexpected infrastructure %+v", infra)
	}

	var buf bytes.Buffer
	s.Write(context.Background(), &buf, reg)
	if !strings.Contains(buf.String(), "svc dev started") || !strings.Contains(buf.String(), "plain: unhealthy (down)") {
		t.Errorf("unexpected summary:\n%s", buf.String())
	}
}

// plainComponent does not implement component.Describable.
type plainComponent struct{}

func (plainComponent) Name() string                { return "plain" }
func (plainComponent) Start(context.Context) error { return nil }
func (plainComponent) Stop(context.Context) error  { return nil }
func (plainComponent) Health(context.Context) component.Health {
	return component.Health{Name: "plain", Status: component.StatusUnhealthy, Message: "down"}
}
