package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/weave/internal/errors"
	"github.com/vango-dev/weave/pkg/observe"
)

const defaultTracerName = "weave"

// TracerOption configures the OpenTelemetry exporter.
type TracerOption func(*Tracer)

// WithTracerName sets the tracer name resolved from the global provider.
func WithTracerName(name string) TracerOption {
	return func(t *Tracer) {
		t.name = name
	}
}

// WithTracer uses tracer instead of the global provider.
func WithTracer(tracer trace.Tracer) TracerOption {
	return func(t *Tracer) {
		t.tracer = tracer
	}
}

// WithDeliveryEvents adds one span event per delivery.
func WithDeliveryEvents(enabled bool) TracerOption {
	return func(t *Tracer) {
		t.deliveryEvents = enabled
	}
}

// Tracer is a FlushHook recording one span per flush. The span covers the
// flush interval reported in FlushStats.
type Tracer struct {
	name           string
	tracer         trace.Tracer
	deliveryEvents bool
}

// NewTracer creates a flush tracer. Without WithTracer it uses the global
// OpenTelemetry tracer provider, so configure it before flushing:
//
//	otel.SetTracerProvider(tp)
func NewTracer(opts ...TracerOption) *Tracer {
	t := &Tracer{name: defaultTracerName, deliveryEvents: true}
	for _, opt := range opts {
		opt(t)
	}
	if t.tracer == nil {
		t.tracer = otel.Tracer(t.name)
	}
	return t
}

// FlushCompleted implements observe.FlushHook.
func (t *Tracer) FlushCompleted(stats observe.FlushStats) {
	_, span := t.tracer.Start(context.Background(), "weave.flush",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithTimestamp(stats.Started),
		trace.WithAttributes(
			attribute.Int("weave.iterations", stats.Iterations),
			attribute.Int("weave.deliveries", len(stats.Deliveries)),
			attribute.Int("weave.notifications", stats.Notifications),
			attribute.Int("weave.writes", stats.Writes),
		),
	)
	defer span.End(trace.WithTimestamp(stats.Started.Add(stats.Duration)))

	if t.deliveryEvents {
		for _, d := range stats.Deliveries {
			span.AddEvent("delivery", trace.WithAttributes(
				attribute.Int64("weave.source_id", int64(d.SourceID)),
				attribute.String("weave.kind", d.Kind.String()),
				attribute.StringSlice("weave.ops", d.Ops),
				attribute.Int("weave.subscribers", d.Subscribers),
			))
		}
	}

	switch {
	case stats.Panicked:
		span.SetStatus(codes.Error, "panic")
	case stats.Err != nil:
		span.RecordError(stats.Err)
		span.SetAttributes(attribute.String("weave.error_code", errors.Code(stats.Err)))
		span.SetStatus(codes.Error, stats.Err.Error())
	default:
		span.SetStatus(codes.Ok, "")
	}
}
