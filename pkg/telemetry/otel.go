package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxion-dev/fluxion/pkg/fluxion"
)

// Default tracer name for fluxion runtimes.
const defaultTracerName = "fluxion"

// OTelConfig configures the OpenTelemetry tracing hook.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "fluxion").
	TracerName string

	// TraceMemos also emits a span per memo recomputation. Memo computes
	// are typically much cheaper and more frequent than reaction runs, so
	// this is disabled by default.
	TraceMemos bool

	// Filter determines which reactions to trace by debug name.
	// Return true to trace the run, false to skip.
	// If nil, all runs are traced.
	Filter func(name string) bool

	// tracer is the resolved tracer instance.
	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry tracing hook.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTraceMemos enables spans for memo recomputations.
func WithTraceMemos(enable bool) OTelOption {
	return func(c *OTelConfig) {
		c.TraceMemos = enable
	}
}

// WithReactionFilter sets a filter for which reactions to trace.
func WithReactionFilter(filter func(name string) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// defaultOTelConfig returns the default OpenTelemetry configuration.
func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName: defaultTracerName,
	}
}

// TracingHook is a fluxion.Hook that emits an OpenTelemetry span per
// reaction run and per propagation pass.
//
// Hooks fire after the timed section completes, so spans are emitted
// retroactively with an explicit start timestamp.
type TracingHook struct {
	config OTelConfig
}

// OpenTelemetry creates a hook that traces engine activity.
//
// The tracer uses the global OpenTelemetry tracer provider. Configure it
// in your main() before creating the Runtime:
//
//	tp := sdktrace.NewTracerProvider(
//	    sdktrace.WithBatcher(exporter),
//	    sdktrace.WithResource(resource.NewWithAttributes(
//	        semconv.SchemaURL,
//	        semconv.ServiceName("my-app"),
//	    )),
//	)
//	otel.SetTracerProvider(tp)
//
//	rt := fluxion.New(fluxion.WithHook(telemetry.OpenTelemetry()))
func OpenTelemetry(opts ...OTelOption) *TracingHook {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}

	// Resolve tracer from global provider
	config.tracer = otel.Tracer(config.TracerName)

	return &TracingHook{config: config}
}

// ReactionRan implements fluxion.Hook.
func (t *TracingHook) ReactionRan(name string, took time.Duration, err error) {
	if t.config.Filter != nil && !t.config.Filter(name) {
		return
	}

	start := time.Now().Add(-took)
	_, span := t.config.tracer.Start(
		context.Background(),
		"fluxion.reaction",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("fluxion.reaction", name),
		),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End(trace.WithTimestamp(start.Add(took)))
}

// MemoRecomputed implements fluxion.Hook.
func (t *TracingHook) MemoRecomputed(name string, took time.Duration) {
	if !t.config.TraceMemos {
		return
	}

	start := time.Now().Add(-took)
	_, span := t.config.tracer.Start(
		context.Background(),
		"fluxion.memo",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("fluxion.memo", name),
		),
	)
	span.End(trace.WithTimestamp(start.Add(took)))
}

// TransactionEnded implements fluxion.Hook.
func (t *TracingHook) TransactionEnded(txName string, took time.Duration, reactionsRun int) {
	start := time.Now().Add(-took)
	_, span := t.config.tracer.Start(
		context.Background(),
		"fluxion.transaction",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(start),
		trace.WithAttributes(
			attribute.String("fluxion.tx", txName),
			attribute.Int("fluxion.reactions_run", reactionsRun),
		),
	)
	span.End(trace.WithTimestamp(start.Add(took)))
}

var _ fluxion.Hook = (*TracingHook)(nil)
