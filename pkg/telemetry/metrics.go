// Package telemetry exports flush statistics of an observe.Scheduler as
// Prometheus metrics and OpenTelemetry spans.
//
// Both exporters are observe.FlushHook implementations:
//
//	sched := observe.NewScheduler(
//	    observe.WithFlushHook(telemetry.NewMetrics(telemetry.WithNamespace("todo"))),
//	    observe.WithFlushHook(telemetry.NewTracer()),
//	)
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/weave/internal/errors"
	"github.com/vango-dev/weave/pkg/observe"
)

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "weave").
	Namespace string

	// Subsystem is the metrics subsystem (default: "scheduler").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for flush duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus exporter.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the flush duration histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "weave",
		Subsystem: "scheduler",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics is a FlushHook recording Prometheus metrics.
type Metrics struct {
	flushes       *prometheus.CounterVec
	duration      prometheus.Histogram
	iterations    prometheus.Histogram
	deliveries    *prometheus.CounterVec
	notifications prometheus.Counter
	writes        prometheus.Counter
	errors        *prometheus.CounterVec
}

// NewMetrics registers the flush metrics. Registering twice with the same
// registry panics, as with any promauto metric.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		flushes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flushes_total",
			Help:        "Total number of scheduler flushes",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_duration_seconds",
			Help:        "Flush duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		iterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_iterations",
			Help:        "Number of cascading iterations per flush",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 3, 5, 10, 25, 50, 100},
		}),

		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "deliveries_total",
			Help:        "Total number of consolidated change deliveries",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		notifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "notifications_total",
			Help:        "Total number of subscriber notifications",
			ConstLabels: config.ConstLabels,
		}),

		writes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "writes_total",
			Help:        "Total number of deferred writes run",
			ConstLabels: config.ConstLabels,
		}),

		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "flush_errors_total",
			Help:        "Total number of failed flushes",
			ConstLabels: config.ConstLabels,
		}, []string{"code"}),
	}
}

// FlushCompleted implements observe.FlushHook.
func (m *Metrics) FlushCompleted(stats observe.FlushStats) {
	m.flushes.WithLabelValues(flushStatus(stats)).Inc()
	m.duration.Observe(stats.Duration.Seconds())
	m.iterations.Observe(float64(stats.Iterations))
	for _, d := range stats.Deliveries {
		m.deliveries.WithLabelValues(d.Kind.String()).Inc()
	}
	m.notifications.Add(float64(stats.Notifications))
	m.writes.Add(float64(stats.Writes))

	if stats.Err != nil {
		code := errors.Code(stats.Err)
		if code == "" {
			code = "unknown"
		}
		m.errors.WithLabelValues(code).Inc()
	}
}

func flushStatus(stats observe.FlushStats) string {
	switch {
	case stats.Panicked:
		return "panic"
	case stats.Err != nil:
		return "error"
	default:
		return "ok"
	}
}
