package telemetry

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/embedded"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/vango-dev/weave/pkg/observe"
)

type recordedSpan struct {
	noop.Span
	name   string
	start  time.Time
	end    time.Time
	attrs  []attribute.KeyValue
	events []string
	status codes.Code
	errs   []error
}

func (s *recordedSpan) End(opts ...trace.SpanEndOption) {
	cfg := trace.NewSpanEndConfig(opts...)
	s.end = cfg.Timestamp()
}

func (s *recordedSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.events = append(s.events, name)
}

func (s *recordedSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.attrs = append(s.attrs, kv...)
}

func (s *recordedSpan) SetStatus(code codes.Code, _ string) {
	s.status = code
}

func (s *recordedSpan) RecordError(err error, _ ...trace.EventOption) {
	s.errs = append(s.errs, err)
}

func (s *recordedSpan) attr(key string) attribute.Value {
	for _, kv := range s.attrs {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

type recordingTracer struct {
	embedded.Tracer
	spans []*recordedSpan
}

func (r *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordedSpan{name: name, start: cfg.Timestamp(), attrs: cfg.Attributes()}
	r.spans = append(r.spans, s)
	return trace.ContextWithSpan(ctx, s), s
}

func TestTracerRecordsFlushSpan(t *testing.T) {
	rt := &recordingTracer{}
	ob := observe.New(observe.WithScheduler(observe.NewScheduler(
		observe.WithFlushHook(NewTracer(WithTracer(rt))),
	)))

	a := observe.NewArray(1)
	s := observe.NewSet("x")
	ob.GetCollectionObserver(a)
	ob.GetCollectionObserver(s)
	a.Push(2)
	s.Add("y")
	require.NoError(t, ob.Scheduler().Flush())

	require.Len(t, rt.spans, 1)
	span := rt.spans[0]
	assert.Equal(t, "weave.flush", span.name)
	assert.Equal(t, int64(2), span.attr("weave.deliveries").AsInt64())
	assert.Equal(t, int64(1), span.attr("weave.iterations").AsInt64())
	assert.Equal(t, []string{"delivery", "delivery"}, span.events)
	assert.Equal(t, codes.Ok, span.status)
	assert.False(t, span.end.Before(span.start))
}

func TestTracerRecordsError(t *testing.T) {
	rt := &recordingTracer{}
	sched := observe.NewScheduler(observe.WithFlushHook(NewTracer(WithTracer(rt), WithDeliveryEvents(false))))

	cause := stderrors.New("target gone")
	sched.QueueWrite(func() error { return cause })
	require.Error(t, sched.Flush())

	require.Len(t, rt.spans, 1)
	span := rt.spans[0]
	assert.Equal(t, codes.Error, span.status)
	assert.Equal(t, "W011", span.attr("weave.error_code").AsString())
	require.Len(t, span.errs, 1)
	assert.ErrorIs(t, span.errs[0], cause)
	assert.Empty(t, span.events)
}

func TestTracerSkipsEmptyFlush(t *testing.T) {
	rt := &recordingTracer{}
	sched := observe.NewScheduler(observe.WithFlushHook(NewTracer(WithTracer(rt))))
	require.NoError(t, sched.Flush())
	assert.Empty(t, rt.spans)
}

func TestNewTracerUsesGlobalProvider(t *testing.T) {
	tr := NewTracer(WithTracerName("weave-test"))
	assert.NotNil(t, tr.tracer)
	// The global no-op provider must accept the span without panicking.
	tr.FlushCompleted(observe.FlushStats{Started: time.Now(), Iterations: 1})
}
