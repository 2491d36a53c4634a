// Package engine runs monitoring cycles: metrics, history, trends, alerts
// and recommendations over one consistent project map.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/p-blackswan/project-health/internal/alerts"
	"github.com/p-blackswan/project-health/internal/analyzer"
	"github.com/p-blackswan/project-health/internal/calculator"
	perrors "github.com/p-blackswan/project-health/internal/errors"
	"github.com/p-blackswan/project-health/internal/models"
	"github.com/p-blackswan/project-health/internal/reschedule"
	"github.com/p-blackswan/project-health/internal/source"
)

// CycleResult is everything one monitoring cycle produced.
type CycleResult struct {
	ID              string                           `json:"id"`
	StartedAt       time.Time                        `json:"started_at"`
	Duration        time.Duration                    `json:"duration"`
	Metrics         *calculator.SystemMetrics        `json:"metrics"`
	Alerts          []models.Alert                   `json:"alerts"`
	Recommendations []models.Recommendation          `json:"recommendations"`
	Trends          map[string]*analyzer.TrendReport `json:"trends"`
	Errors          []perrors.ProjectError           `json:"errors"`
	Warnings        []source.Warning                 `json:"warnings"`
}

// AlertCounts returns the number of alerts per severity.
func (r *CycleResult) AlertCounts() map[models.Severity]int {
	counts := make(map[models.Severity]int)
	for _, a := range r.Alerts {
		counts[a.Severity]++
	}
	return counts
}

// Engine wires the analysis components together. Cycles are serialised so
// history appends stay ordered.
type Engine struct {
	calc        *calculator.Calculator
	alerts      *alerts.Generator
	recommender *reschedule.Recommender
	analyzer    *analyzer.Analyzer
	now         func() time.Time
	newID       func() string
	logger      zerolog.Logger

	mu sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source used for cycle timing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides the cycle ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// New creates an Engine.
func New(calc *calculator.Calculator, gen *alerts.Generator, rec *reschedule.Recommender, an *analyzer.Analyzer, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		calc:        calc,
		alerts:      gen,
		recommender: rec,
		analyzer:    an,
		now:         time.Now,
		newID:       uuid.NewString,
		logger:      logger.With().Str("component", "engine").Logger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyzer returns the trend analyzer backing the engine.
func (e *Engine) Analyzer() *analyzer.Analyzer { return e.analyzer }

// Trends analyses one project's history on demand.
func (e *Engine) Trends(project string) (*analyzer.TrendReport, error) {
	if e.analyzer.History().Len(project) == 0 {
		return nil, fmt.Errorf("%w: %s", perrors.ErrProjectNotFound, project)
	}
	return e.analyzer.AnalyzeTrends(project), nil
}

// RunCycle analyses projects once. Metrics, alerts and recommendations are
// computed concurrently; snapshots are committed to history only if ctx is
// still live once they finish. An expired ctx yields ErrCycleTimeout and
// leaves history untouched.
func (e *Engine) RunCycle(ctx context.Context, projects map[string]*models.Project) (*CycleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", perrors.ErrCycleTimeout, err)
	}

	start := e.now()
	res := &CycleResult{
		ID:        e.newID(),
		StartedAt: start,
		Trends:    make(map[string]*analyzer.TrendReport),
	}

	var (
		errMu sync.Mutex
		g     errgroup.Group
	)
	guard := func(component string, fn func()) func() error {
		return func() error {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error().Str("stage", component).Interface("panic", r).Msg("cycle component failed")
					errMu.Lock()
					res.Errors = append(res.Errors, perrors.ProjectError{Component: component, Message: fmt.Sprintf("%v", r)})
					errMu.Unlock()
				}
			}()
			fn()
			return nil
		}
	}
	g.Go(guard("calculator", func() { res.Metrics = e.calc.CalculateAllMetrics(projects) }))
	g.Go(guard("alerts", func() { res.Alerts = e.alerts.GenerateAlerts(projects) }))
	g.Go(guard("reschedule", func() { res.Recommendations = e.recommender.GenerateRecommendations(projects) }))
	_ = g.Wait()
	if res.Alerts == nil {
		res.Alerts = []models.Alert{}
	}
	if res.Recommendations == nil {
		res.Recommendations = []models.Recommendation{}
	}

	if err := ctx.Err(); err != nil {
		e.logger.Warn().Str("cycle_id", res.ID).Err(err).Msg("cycle abandoned, nothing committed")
		return nil, fmt.Errorf("%w: %v", perrors.ErrCycleTimeout, err)
	}

	staged := e.stage(res)
	for _, err := range e.analyzer.Record(staged) {
		if pe, ok := err.(*perrors.ProjectError); ok {
			res.Errors = append(res.Errors, *pe)
		}
	}
	for _, name := range sortedKeys(staged) {
		res.Trends[name] = e.analyzer.AnalyzeTrends(name)
	}
	for _, a := range res.Alerts {
		if a.AlertType == models.AlertAnalysisError {
			msg, _ := a.Metadata["error"].(string)
			res.Errors = append(res.Errors, perrors.ProjectError{Project: a.ProjectName, Component: "alerts", Message: msg})
		}
	}
	sortErrors(res.Errors)

	res.Duration = e.now().Sub(start)
	e.logCycle(res)
	return res, nil
}

// stage builds snapshots from the cycle's metrics. Degraded projects are
// reported instead of recorded.
func (e *Engine) stage(res *CycleResult) map[string]models.Snapshot {
	staged := make(map[string]models.Snapshot)
	if res.Metrics == nil {
		return staged
	}
	for name, m := range res.Metrics.Projects {
		if m.Degraded() {
			res.Errors = append(res.Errors, perrors.ProjectError{Project: name, Component: "calculator", Message: m.Issue})
			continue
		}
		staged[name] = calculator.SnapshotOf(m)
	}
	return staged
}

func (e *Engine) logCycle(res *CycleResult) {
	ev := e.logger.Info().
		Str("cycle_id", res.ID).
		Dur("duration", res.Duration).
		Int("alerts", len(res.Alerts)).
		Int("recommendations", len(res.Recommendations)).
		Int("errors", len(res.Errors))
	if res.Metrics != nil {
		ev = ev.Int("projects", len(res.Metrics.Projects))
	}
	counts := res.AlertCounts()
	for _, sev := range []models.Severity{models.SeverityCritical, models.SeverityHigh, models.SeverityMedium, models.SeverityLow} {
		if n := counts[sev]; n > 0 {
			ev = ev.Int("alerts_"+string(sev), n)
		}
	}
	ev.Msg("monitoring cycle complete")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortErrors(errs []perrors.ProjectError) {
	sort.SliceStable(errs, func(i, j int) bool {
		if errs[i].Project != errs[j].Project {
			return errs[i].Project < errs[j].Project
		}
		return errs[i].Component < errs[j].Component
	})
}
