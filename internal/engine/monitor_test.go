package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/project-health/internal/models"
	"github.com/p-blackswan/project-health/internal/source"
)

type recordingSink struct {
	mu       sync.Mutex
	results  []*CycleResult
	failures []error
	err      error
}

func (s *recordingSink) HandleCycle(_ context.Context, res *CycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return s.err
}

func (s *recordingSink) HandleCycleFailure(_ context.Context, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, err)
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

type failingSource struct{}

func (failingSource) Load(context.Context) (map[string]*models.Project, []source.Warning, error) {
	return nil, nil, errors.New("disk on fire")
}

type warningSource struct{}

func (warningSource) Load(context.Context) (map[string]*models.Project, []source.Warning, error) {
	return map[string]*models.Project{"Rooftop-A": rooftop(3)},
		[]source.Warning{{Project: "Rooftop-A", Message: "odd date"}}, nil
}

func TestMonitor_RunOnce(t *testing.T) {
	e, _ := newTestEngine(t)
	sink := &recordingSink{}
	failing := &recordingSink{err: errors.New("sink down")}
	m := NewMonitor(e, warningSource{}, MonitorConfig{}, zerolog.Nop(), failing, sink)

	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "odd date", res.Warnings[0].Message)

	assert.Same(t, res, m.Latest())
	assert.Equal(t, 1, sink.count())
	assert.Equal(t, 1, failing.count())

	st := m.Status()
	assert.Equal(t, 1, st.Cycles)
	assert.Empty(t, st.LastError)
	assert.False(t, st.LastSuccess.IsZero())
}

func TestMonitor_SourceFailure(t *testing.T) {
	e, _ := newTestEngine(t)
	sink := &recordingSink{}
	m := NewMonitor(e, failingSource{}, MonitorConfig{}, zerolog.Nop(), sink)

	_, err := m.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Nil(t, m.Latest())
	assert.Equal(t, 0, sink.count())
	require.Len(t, sink.failures, 1)
	assert.Contains(t, m.Status().LastError, "disk on fire")
}

func TestMonitor_Trigger(t *testing.T) {
	e, _ := newTestEngine(t)
	m := NewMonitor(e, source.Static{}, MonitorConfig{}, zerolog.Nop())
	assert.True(t, m.Trigger())
	assert.False(t, m.Trigger())
}

func TestMonitor_RunStopsOnCancel(t *testing.T) {
	e, clk := newTestEngine(t)
	sink := &recordingSink{}
	advance := SinkFunc(func(context.Context, *CycleResult) error {
		clk.Advance(time.Hour)
		return nil
	})
	m := NewMonitor(e, warningSource{}, MonitorConfig{Interval: time.Hour, Timeout: time.Second}, zerolog.Nop(), sink, advance)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	m.Trigger()
	require.Eventually(t, func() bool { return sink.count() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not stop")
	}
	assert.Equal(t, 2, m.Status().Cycles)
}
