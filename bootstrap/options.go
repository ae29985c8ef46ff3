package bootstrap

import (
	"io"
	"time"

	"github.com/kbukum/snapstream/logger"
	"github.com/kbukum/snapstream/observability"
)

// Option configures the App during creation.
// Options are non-generic so they can be used with any config type.
type Option func(*appOptions)

type appOptions struct {
	logger          *logger.Logger
	gracefulTimeout *time.Duration
	summaryOut      io.Writer
	quiet           bool
	meter           *observability.MeterConfig
	tracer          *observability.TracerConfig
}

func resolveOptions(opts []Option) *appOptions {
	o := &appOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets a custom logger for the application.
// If not set, the logger is initialized from the config's Logging field.
func WithLogger(l *logger.Logger) Option {
	return func(o *appOptions) {
		o.logger = l
	}
}

// WithGracefulTimeout sets the maximum duration for graceful shutdown.
func WithGracefulTimeout(d time.Duration) Option {
	return func(o *appOptions) {
		o.gracefulTimeout = &d
	}
}

// WithSummaryWriter sets where the startup summary is printed. Default is
// stderr, so that command output on stdout stays clean.
func WithSummaryWriter(w io.Writer) Option {
	return func(o *appOptions) {
		o.summaryOut = w
	}
}

// WithoutSummary disables the startup summary.
func WithoutSummary() Option {
	return func(o *appOptions) {
		o.quiet = true
	}
}

// WithMeter installs an OTLP meter provider during startup and shuts it
// down after the components have stopped.
func WithMeter(cfg observability.MeterConfig) Option {
	return func(o *appOptions) {
		o.meter = &cfg
	}
}

// WithTracer installs an OTLP tracer provider during startup.
func WithTracer(cfg observability.TracerConfig) Option {
	return func(o *appOptions) {
		o.tracer = &cfg
	}
}
