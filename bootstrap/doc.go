// Package bootstrap runs a snapstream process: typed config, logger,
// component registry, optional OpenTelemetry providers, lifecycle hooks and
// graceful shutdown on SIGINT/SIGTERM.
//
//	app, err := bootstrap.NewApp(&cfg)
//	app.RegisterComponent(kafka.NewComponent(cfg.Kafka, app.Logger))
//	err = app.RunEngine(ctx, engine)
//
// Components start in registration order and stop in reverse order.
package bootstrap
