package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-health/internal/source"
)

// Sink receives every completed cycle.
type Sink interface {
	HandleCycle(ctx context.Context, res *CycleResult) error
}

// FailureSink is optionally implemented by sinks that want to hear about
// cycles that produced no result.
type FailureSink interface {
	HandleCycleFailure(ctx context.Context, err error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, res *CycleResult) error

func (f SinkFunc) HandleCycle(ctx context.Context, res *CycleResult) error { return f(ctx, res) }

// MonitorConfig controls the periodic loop.
type MonitorConfig struct {
	Interval time.Duration
	Timeout  time.Duration
}

// Status describes the most recent monitor run.
type Status struct {
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success"`
	LastError   string    `json:"last_error,omitempty"`
	Cycles      int       `json:"cycles"`
}

// Monitor loads projects and runs a cycle on a fixed interval.
type Monitor struct {
	engine  *Engine
	source  source.ProjectSource
	cfg     MonitorConfig
	sinks   []Sink
	trigger chan struct{}
	now     func() time.Time
	logger  zerolog.Logger

	mu     sync.RWMutex
	latest *CycleResult
	status Status
}

// NewMonitor creates a Monitor. Zero interval and timeout default to five
// minutes and one minute.
func NewMonitor(e *Engine, src source.ProjectSource, cfg MonitorConfig, logger zerolog.Logger, sinks ...Sink) *Monitor {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Monitor{
		engine:  e,
		source:  src,
		cfg:     cfg,
		sinks:   sinks,
		trigger: make(chan struct{}, 1),
		now:     time.Now,
		logger:  logger.With().Str("component", "monitor").Logger(),
	}
}

// Engine returns the engine the monitor drives.
func (m *Monitor) Engine() *Engine { return m.engine }

// Run executes a cycle immediately and then on every tick or trigger until
// ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info().Dur("interval", m.cfg.Interval).Dur("timeout", m.cfg.Timeout).Msg("monitor started")
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	_, _ = m.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor stopped")
			return nil
		case <-ticker.C:
			_, _ = m.RunOnce(ctx)
		case <-m.trigger:
			m.logger.Info().Msg("manual cycle requested")
			_, _ = m.RunOnce(ctx)
		}
	}
}

// Trigger requests an out-of-band cycle. It returns false if one is
// already pending.
func (m *Monitor) Trigger() bool {
	select {
	case m.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce loads projects and runs one bounded cycle, then hands the result
// to every sink. Sink errors are logged and do not fail the cycle.
func (m *Monitor) RunOnce(ctx context.Context) (*CycleResult, error) {
	cycleCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	res, err := m.cycle(cycleCtx)
	m.record(res, err)
	if err != nil {
		m.logger.Error().Err(err).Msg("monitoring cycle failed")
		for _, s := range m.sinks {
			if fs, ok := s.(FailureSink); ok {
				fs.HandleCycleFailure(ctx, err)
			}
		}
		return nil, err
	}

	for _, s := range m.sinks {
		if serr := s.HandleCycle(ctx, res); serr != nil {
			m.logger.Error().Err(serr).Str("cycle_id", res.ID).Str("sink", fmt.Sprintf("%T", s)).Msg("sink failed")
		}
	}
	return res, nil
}

func (m *Monitor) cycle(ctx context.Context) (*CycleResult, error) {
	projects, warnings, err := m.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading projects: %w", err)
	}
	for _, w := range warnings {
		m.logger.Warn().Str("project", w.Project).Str("item", w.Item).Msg(w.Message)
	}

	res, err := m.engine.RunCycle(ctx, projects)
	if err != nil {
		return nil, err
	}
	res.Warnings = warnings
	return res, nil
}

func (m *Monitor) record(res *CycleResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.status.LastRun = now
	if err != nil {
		m.status.LastError = err.Error()
		return
	}
	m.status.LastError = ""
	m.status.LastSuccess = now
	m.status.Cycles++
	m.latest = res
}

// Latest returns the most recent successful cycle, or nil.
func (m *Monitor) Latest() *CycleResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

// Status returns a copy of the run status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Interval returns the configured cycle period.
func (m *Monitor) Interval() time.Duration { return m.cfg.Interval }
