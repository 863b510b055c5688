package distvec

import (
	"log/slog"

	"github.com/hupe1980/distvec/resource"
)

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	validate         bool
	rc               *resource.Controller
}

// Option configures a DistributedVector at construction.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &distvec.BasicMetricsCollector{}
//	v := distvec.New[float64](c, distvec.WithMetricsCollector(metrics))
//	// ... use v ...
//	stats := metrics.GetStats()
//	fmt.Printf("Collectives: %d, Avg latency: %dns\n", stats.CollectiveCount, stats.CollectiveAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := distvec.NewJSONLogger(slog.LevelDebug)
//	v := distvec.New[float64](c, distvec.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithValidation toggles the collective cross-checks: every collective first
// verifies that all workers issued the same operation, and Init verifies that
// the local sizes add up to the global size.
//
// Validation is on by default and off in binaries built with the
// distvec_release tag. It costs one extra all-gather per collective.
func WithValidation(enabled bool) Option {
	return func(o *options) {
		o.validate = enabled
	}
}

// WithResourceController accounts the local buffer against rc's memory limit.
// Init fails with resource.ErrMemoryLimitExceeded when the buffer does not fit.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		validate:         defaultValidation,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
