package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/snapstream/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Environment is the deployment environment (dev, staging, prod).
	Environment string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for development.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Environment:    "development",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on application exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)

	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// DispatchMetrics holds the instruments recorded by the dispatch engine.
// A nil *DispatchMetrics is valid and records nothing.
type DispatchMetrics struct {
	items           metric.Int64Counter
	outputs         metric.Int64Counter
	deliveries      metric.Int64Counter
	failures        metric.Int64Counter
	handlerDuration metric.Float64Histogram
	workersActive   metric.Int64UpDownCounter
}

// NewDispatchMetrics creates the dispatch instruments on the given meter.
func NewDispatchMetrics(meter metric.Meter) (*DispatchMetrics, error) {
	items, err := meter.Int64Counter("stream.items",
		metric.WithDescription("Items pulled from sources"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.items counter: %w", err)
	}

	outputs, err := meter.Int64Counter("stream.outputs",
		metric.WithDescription("Outputs produced by handlers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.outputs counter: %w", err)
	}

	deliveries, err := meter.Int64Counter("stream.deliveries",
		metric.WithDescription("Successful sink deliveries"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.deliveries counter: %w", err)
	}

	failures, err := meter.Int64Counter("stream.worker.failures",
		metric.WithDescription("Workers terminated by a failure, by stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.worker.failures counter: %w", err)
	}

	handlerDuration, err := meter.Float64Histogram("stream.handler.duration",
		metric.WithDescription("Time spent handling one input, including fan-out"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.handler.duration histogram: %w", err)
	}

	workersActive, err := meter.Int64UpDownCounter("stream.workers.active",
		metric.WithDescription("Number of running workers"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating stream.workers.active gauge: %w", err)
	}

	return &DispatchMetrics{
		items:           items,
		outputs:         outputs,
		deliveries:      deliveries,
		failures:        failures,
		handlerDuration: handlerDuration,
		workersActive:   workersActive,
	}, nil
}

func bindingAttr(binding string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String(AttrBinding, binding))
}

// WorkerStarted increments the active worker count.
func (m *DispatchMetrics) WorkerStarted(ctx context.Context, binding string) {
	if m == nil {
		return
	}
	m.workersActive.Add(ctx, 1, bindingAttr(binding))
}

// WorkerStopped decrements the active worker count and, when stage is
// non-empty, records a failure for that stage.
func (m *DispatchMetrics) WorkerStopped(ctx context.Context, binding, stage string) {
	if m == nil {
		return
	}
	m.workersActive.Add(ctx, -1, bindingAttr(binding))
	if stage != "" {
		m.failures.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrBinding, binding),
			attribute.String(AttrStage, stage),
		))
	}
}

// RecordItem records one handled input with its output and delivery counts.
func (m *DispatchMetrics) RecordItem(ctx context.Context, binding string, outputs, deliveries int64, duration time.Duration) {
	if m == nil {
		return
	}
	attrs := bindingAttr(binding)
	m.items.Add(ctx, 1, attrs)
	if outputs > 0 {
		m.outputs.Add(ctx, outputs, attrs)
	}
	if deliveries > 0 {
		m.deliveries.Add(ctx, deliveries, attrs)
	}
	m.handlerDuration.Record(ctx, duration.Seconds(), attrs)
}
