package telemetry

import (
	stderrors "errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/weave/pkg/observe"
)

// metricValue returns the value of the counter, or the sample count of the
// histogram, whose labels include want.
func metricValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metrics:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metrics
				}
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetricsRecordFlush(t *testing.T) {
	reg := prometheus.NewRegistry()
	ob := observe.New(observe.WithScheduler(observe.NewScheduler(
		observe.WithFlushHook(NewMetrics(WithRegistry(reg), WithNamespace("test"))),
	)))

	a := observe.NewArray(1, 2)
	m := observe.NewMap[string, int]()
	ob.GetCollectionObserver(a).Subscribe(observe.NewSubscriberFunc(func(*observe.Change) {}))
	ob.GetCollectionObserver(m)

	a.Push(3)
	m.Set("k", 1)
	ob.Scheduler().QueueWrite(func() error { return nil })
	require.NoError(t, ob.Scheduler().Flush())

	assert.Equal(t, 1.0, metricValue(t, reg, "test_scheduler_flushes_total", map[string]string{"status": "ok"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "test_scheduler_deliveries_total", map[string]string{"kind": "array"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "test_scheduler_deliveries_total", map[string]string{"kind": "map"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "test_scheduler_notifications_total", nil))
	assert.Equal(t, 1.0, metricValue(t, reg, "test_scheduler_writes_total", nil))
	assert.Equal(t, 1.0, metricValue(t, reg, "test_scheduler_flush_duration_seconds", nil))
	assert.Equal(t, 1.0, metricValue(t, reg, "test_scheduler_flush_iterations", nil))
}

func TestMetricsRecordFlushError(t *testing.T) {
	reg := prometheus.NewRegistry()
	sched := observe.NewScheduler(observe.WithFlushHook(NewMetrics(WithRegistry(reg))))

	sched.QueueWrite(func() error { return stderrors.New("boom") })
	require.Error(t, sched.Flush())

	assert.Equal(t, 1.0, metricValue(t, reg, "weave_scheduler_flushes_total", map[string]string{"status": "error"}))
	assert.Equal(t, 1.0, metricValue(t, reg, "weave_scheduler_flush_errors_total", map[string]string{"code": "W011"}))
}

func TestMetricsRecordStorm(t *testing.T) {
	reg := prometheus.NewRegistry()
	sched := observe.NewScheduler(
		observe.WithMaxFlushIterations(3),
		observe.WithFlushHook(NewMetrics(WithRegistry(reg))),
	)
	ob := observe.New(observe.WithScheduler(sched))

	a := observe.NewArray[int]()
	ob.GetCollectionObserver(a).Subscribe(observe.NewSubscriberFunc(func(*observe.Change) {
		sched.QueueWrite(func() error {
			a.Push(1)
			return nil
		})
	}))
	a.Push(0)

	err := sched.Flush()
	assert.ErrorIs(t, err, observe.ErrFlushStorm)
	assert.Equal(t, 1.0, metricValue(t, reg, "weave_scheduler_flush_errors_total", map[string]string{"code": "W010"}))
}

func TestFlushStatus(t *testing.T) {
	tests := []struct {
		stats observe.FlushStats
		want  string
	}{
		{observe.FlushStats{}, "ok"},
		{observe.FlushStats{Err: stderrors.New("x")}, "error"},
		{observe.FlushStats{Panicked: true}, "panic"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, flushStatus(tt.stats))
	}
}
