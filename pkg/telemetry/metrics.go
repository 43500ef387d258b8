// Package telemetry provides observability adapters for the fluxion engine:
// a Prometheus metrics hook and an OpenTelemetry tracing hook. Both implement
// fluxion.Hook and are registered at Runtime construction:
//
//	rt := fluxion.New(
//	    fluxion.WithHook(telemetry.Prometheus()),
//	    fluxion.WithHook(telemetry.OpenTelemetry()),
//	)
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
)

// MetricsConfig configures the Prometheus metrics hook.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "fluxion").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for run and transaction duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics hook.
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

// WithBuckets sets the histogram buckets.
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

// defaultMetricsConfig returns the default metrics configuration.
func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace:   "fluxion",
		Subsystem:   "",
		ConstLabels: nil,
		Buckets:     prometheus.DefBuckets,
		Registry:    prometheus.DefaultRegisterer,
	}
}

// MetricsHook is a fluxion.Hook that exports engine activity as Prometheus
// metrics.
type MetricsHook struct {
	reactionRuns     *prometheus.CounterVec
	reactionDuration prometheus.Histogram
	reactionErrors   *prometheus.CounterVec
	memoRecomputes   prometheus.Counter
	memoDuration     prometheus.Histogram
	txDuration       prometheus.Histogram
	txReactions      prometheus.Histogram
}

// Prometheus creates a hook that collects Prometheus metrics for engine
// activity.
//
// Metrics collected:
//   - fluxion_reaction_runs_total: Counter of reaction runs by status
//   - fluxion_reaction_duration_seconds: Histogram of reaction run duration
//   - fluxion_reaction_errors_total: Counter of reaction errors by reaction
//   - fluxion_memo_recomputes_total: Counter of memo recomputations
//   - fluxion_memo_duration_seconds: Histogram of memo compute duration
//   - fluxion_transaction_duration_seconds: Histogram of propagation pass duration
//   - fluxion_transaction_reactions: Histogram of reactions run per pass
//
// Example:
//
//	rt := fluxion.New(fluxion.WithHook(
//	    telemetry.Prometheus(telemetry.WithNamespace("myapp")),
//	))
//
//	// Expose metrics endpoint
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) *MetricsHook {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &MetricsHook{
		reactionRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reaction_runs_total",
			Help:        "Total number of reaction runs",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		reactionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reaction_duration_seconds",
			Help:        "Reaction run duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		reactionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reaction_errors_total",
			Help:        "Total number of errors escaping reaction bodies",
			ConstLabels: config.ConstLabels,
		}, []string{"reaction"}),

		memoRecomputes: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "memo_recomputes_total",
			Help:        "Total number of memo recomputations",
			ConstLabels: config.ConstLabels,
		}),

		memoDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "memo_duration_seconds",
			Help:        "Memo compute duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		txDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transaction_duration_seconds",
			Help:        "Propagation pass duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}),

		txReactions: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "transaction_reactions",
			Help:        "Number of reactions run per propagation pass",
			ConstLabels: config.ConstLabels,
			Buckets:     []float64{1, 2, 5, 10, 25, 50, 100},
		}),
	}
}

// ReactionRan implements fluxion.Hook.
func (m *MetricsHook) ReactionRan(name string, took time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.reactionErrors.WithLabelValues(name).Inc()
	}
	m.reactionRuns.WithLabelValues(status).Inc()
	m.reactionDuration.Observe(took.Seconds())
}

// MemoRecomputed implements fluxion.Hook.
func (m *MetricsHook) MemoRecomputed(name string, took time.Duration) {
	m.memoRecomputes.Inc()
	m.memoDuration.Observe(took.Seconds())
}

// TransactionEnded implements fluxion.Hook.
func (m *MetricsHook) TransactionEnded(txName string, took time.Duration, reactionsRun int) {
	m.txDuration.Observe(took.Seconds())
	m.txReactions.Observe(float64(reactionsRun))
}

var _ fluxion.Hook = (*MetricsHook)(nil)
