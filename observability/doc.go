// Package observability provides OpenTelemetry tracing and metrics for
// snapstream.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("snapstream"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanStreamItem)
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, &cfg)
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewDispatchMetrics(observability.Meter("snapstream"))
//	engine := stream.New(stream.WithMetrics(metrics))
package observability
