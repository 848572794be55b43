package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogUseCaseObserver_WritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	obs := NewLogUseCaseObserver(&buf)

	obs.ObserveUseCase(context.Background(), UseCaseEvent{
		Name: "create_task", Duration: 3 * time.Millisecond, Success: true,
		Fields: map[string]any{"task_id": "t-1"},
	})
	obs.ObserveUseCase(context.Background(), UseCaseEvent{
		Name: "cancel_task", Success: false, Err: errors.New("boom"),
	})

	out := buf.String()
	assert.Contains(t, out, "use_case=create_task")
	assert.Contains(t, out, "task_id=t-1")
	assert.Contains(t, out, "level=INFO")
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "error=boom")
}

func TestNewLogUseCaseObserver_NilWriter(t *testing.T) {
	assert.IsType(t, NoopUseCaseObserver{}, NewLogUseCaseObserver(nil))
}

func TestMultiUseCaseObserver(t *testing.T) {
	a, b := &recordingObserver{}, &recordingObserver{}

	assert.IsType(t, NoopUseCaseObserver{}, MultiUseCaseObserver())
	assert.Same(t, a, MultiUseCaseObserver(nil, a))

	fan := MultiUseCaseObserver(a, nil, b)
	fan.ObserveUseCase(context.Background(), UseCaseEvent{Name: "x", Success: true})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestObserveCapturesNamedError(t *testing.T) {
	rec := &recordingObserver{}
	run := func() (err error) {
		defer observe(context.Background(), rec, "failing", map[string]any{"k": 1})(&err)
		return errors.New("late failure")
	}
	require.Error(t, run())
	require.Len(t, rec.events, 1)
	assert.False(t, rec.events[0].Success)
	assert.EqualError(t, rec.events[0].Err, "late failure")
	assert.Equal(t, 1, rec.events[0].Fields["k"])
	assert.False(t, rec.events[0].StartedAt.IsZero())
}

func TestPrometheusUseCaseObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := NewPrometheusUseCaseObserver(reg)
	require.NoError(t, err)

	ctx := context.Background()
	obs.ObserveUseCase(ctx, UseCaseEvent{Name: "create_task", Success: true, Duration: time.Millisecond})
	obs.ObserveUseCase(ctx, UseCaseEvent{Name: "create_task", Success: true, Duration: time.Millisecond})
	obs.ObserveUseCase(ctx, UseCaseEvent{Name: "create_task", Success: false, Err: errors.New("x")})

	assert.Equal(t, 2.0, promtest.ToFloat64(obs.calls.WithLabelValues("create_task", "success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(obs.calls.WithLabelValues("create_task", "error")))
	assert.Equal(t, 1, promtest.CollectAndCount(obs.duration))

	_, err = NewPrometheusUseCaseObserver(reg)
	assert.Error(t, err, "collectors cannot be registered twice")
}
