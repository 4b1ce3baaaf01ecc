package silo

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/hupe1980/silo/resource"
)

type options struct {
	workers          int
	controller       *resource.Controller
	metricsCollector MetricsCollector
	logger           *Logger
	pollInterval     time.Duration
	loadConcurrency  int
	queryTimeout     time.Duration
}

// Option configures New and Open.
type Option func(*options)

// WithWorkers sets the number of goroutines that evaluate partitions.
// Default: runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithResourceController configures admission control for queries and
// throttling of snapshot loads. Pass nil to admit every query.
//
// Example:
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentQueries: 8,
//	    QueueTimeout:         time.Second,
//	})
//	db, _ := silo.Open(ctx, store, silo.WithResourceController(rc))
func WithResourceController(c *resource.Controller) Option {
	return func(o *options) {
		o.controller = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &silo.BasicMetricsCollector{}
//	db, _ := silo.Open(ctx, store, silo.WithMetricsCollector(metrics))
//	// ... use db ...
//	stats := metrics.GetStats()
//	fmt.Printf("Queries: %d, Avg latency: %dns\n", stats.QueryCount, stats.QueryAvgNanos)
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
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(nil, level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(nil, level)
	}
}

// WithPollInterval makes Open watch the store for newly published
// snapshots. Zero disables watching.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) {
		o.pollInterval = d
	}
}

// WithLoadConcurrency bounds the partitions fetched and decoded at once
// while loading a snapshot.
func WithLoadConcurrency(n int) Option {
	return func(o *options) {
		o.loadConcurrency = n
	}
}

// WithQueryTimeout bounds the evaluation time of a query. Zero disables
// the timeout.
func WithQueryTimeout(d time.Duration) Option {
	return func(o *options) {
		o.queryTimeout = d
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		workers:          runtime.GOMAXPROCS(0),
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
