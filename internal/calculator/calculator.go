// Package calculator turns a project's current task and update state into
// point-in-time health metrics.
package calculator

import (
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-health/internal/models"
)

const (
	// DefaultSprintLength is the sprint length assumed for velocity and
	// end date estimation.
	DefaultSprintLength = 14 * models.Day

	// atRiskDaysBehind separates "at risk" from "behind" projects.
	atRiskDaysBehind = 7
)

// Calculator computes project metrics. It holds only configuration.
type Calculator struct {
	now          func() time.Time
	sprintLength time.Duration
	logger       zerolog.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Calculator) { c.now = now }
}

// WithSprintLength overrides DefaultSprintLength.
func WithSprintLength(d time.Duration) Option {
	return func(c *Calculator) {
		if d > 0 {
			c.sprintLength = d
		}
	}
}

// New creates a Calculator.
func New(logger zerolog.Logger, opts ...Option) *Calculator {
	c := &Calculator{
		now:          time.Now,
		sprintLength: DefaultSprintLength,
		logger:       logger.With().Str("component", "calculator").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CalculateProjectMetrics computes metrics for a single project. A failure
// while analysing the project yields zeroed metrics with Issue set.
func (c *Calculator) CalculateProjectMetrics(p *models.Project) *ProjectMetrics {
	return c.safeCalculate(p, c.now())
}

// CalculateAllMetrics computes metrics for every project using one
// reference time, plus the cross-project summary.
func (c *Calculator) CalculateAllMetrics(projects map[string]*models.Project) *SystemMetrics {
	now := c.now()
	sm := &SystemMetrics{
		Projects:     make(map[string]*ProjectMetrics, len(projects)),
		CalculatedAt: now,
	}
	for _, name := range sortedNames(projects) {
		m := c.safeCalculate(projects[name], now)
		if m.ProjectName == "" {
			m.ProjectName = name
		}
		sm.Projects[name] = m
	}
	sm.Summary = summarize(sm.Projects)
	return sm
}

// Snapshot builds the lightweight history record for p at the calculator's
// current time.
func (c *Calculator) Snapshot(p *models.Project) models.Snapshot {
	return SnapshotOf(c.CalculateProjectMetrics(p))
}

// SnapshotOf converts already-computed metrics into a Snapshot.
func SnapshotOf(m *ProjectMetrics) models.Snapshot {
	return models.Snapshot{
		Timestamp:            m.CalculatedAt,
		CompletionPercentage: m.CompletionPercentage,
		TotalTasks:           m.TotalTasks,
		CompletedTasks:       m.CompletedTasks,
		ActiveTasks:          m.ActiveTasks,
		BlockedTasks:         m.BlockedTasks,
		OverdueTasks:         m.OverdueTasks,
	}
}

func (c *Calculator) safeCalculate(p *models.Project, now time.Time) (m *ProjectMetrics) {
	name := ""
	if p != nil {
		name = p.Name
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Str("project", name).Interface("panic", r).Msg("metrics calculation failed")
			m = degraded(name, now, fmt.Sprintf("metrics calculation failed: %v", r))
		}
	}()
	if p == nil {
		return degraded(name, now, "project is nil")
	}
	return c.calculate(p, now)
}

func degraded(name string, now time.Time, issue string) *ProjectMetrics {
	return &ProjectMetrics{
		ProjectName:  name,
		Status:       models.ProjectStatusUnknown,
		TaskStatus:   map[models.TaskStatus]int{},
		Issue:        issue,
		CalculatedAt: now,
	}
}

func (c *Calculator) calculate(p *models.Project, now time.Time) *ProjectMetrics {
	m := &ProjectMetrics{
		ProjectName:  p.Name,
		Status:       p.Status,
		TaskStatus:   make(map[models.TaskStatus]int),
		CalculatedAt: now,
	}

	for _, t := range p.SortedTasks() {
		m.TotalTasks++
		m.TaskStatus[t.Status]++
		m.TotalPoints += t.Weight()
		if t.IsCompleted() {
			m.CompletedTasks++
		} else {
			m.RemainingPoints += t.Weight()
		}
		if t.IsActive() {
			m.ActiveTasks++
		}
		if t.IsBlocked() {
			m.BlockedTasks++
		}
		if t.DueDate != nil && t.DueDate.Before(now) && !t.IsCompleted() {
			m.OverdueTasks++
		}
	}
	m.CompletionPercentage = CompletionPercentage(m.CompletedTasks, m.TotalTasks)

	m.Velocity = c.velocity(p, now)
	m.Burndown = c.burndown(p, now, m.TotalPoints, m.RemainingPoints, m.Velocity)
	m.DaysBehind = daysBehind(m.Burndown, now)
	return m
}

// CompletionPercentage is completed/total*100, or 0 for an empty project.
func CompletionPercentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	pct := float64(completed) * 100 / float64(total)
	return clamp(pct, 0, 100)
}

// TotalPoints sums task weights; a task without story points weighs 1.
func TotalPoints(p *models.Project) float64 {
	var total float64
	for _, t := range p.Tasks {
		if t != nil {
			total += t.Weight()
		}
	}
	return total
}

// RemainingPoints sums the weights of tasks that are not completed.
func RemainingPoints(p *models.Project) float64 {
	var rem float64
	for _, t := range p.Tasks {
		if t != nil && !t.IsCompleted() {
			rem += t.Weight()
		}
	}
	return rem
}

func summarize(projects map[string]*ProjectMetrics) Summary {
	s := Summary{TotalProjects: len(projects)}
	var completion, velocity, reported float64
	var counted, reportedCount int

	for _, m := range projects {
		if m.Degraded() {
			s.Degraded++
			continue
		}
		counted++
		completion += m.CompletionPercentage

		switch {
		case m.Burndown != nil && m.Burndown.IsOnTrack:
			s.OnTrack++
		case m.DaysBehind <= atRiskDaysBehind:
			s.AtRisk++
		default:
			s.Behind++
		}

		if m.Velocity != nil {
			velocity += m.Velocity.Average
			if m.Velocity.Source == VelocitySynthetic {
				s.SyntheticVelocityProjects++
			} else {
				reported += m.Velocity.Average
				reportedCount++
			}
		}
	}

	if counted > 0 {
		s.AverageCompletion = completion / float64(counted)
		s.AverageVelocity = velocity / float64(counted)
	}
	if reportedCount > 0 {
		s.AverageReportedVelocity = reported / float64(reportedCount)
	}
	return s
}

func sortedNames(projects map[string]*models.Project) []string {
	names := make([]string, 0, len(projects))
	for name := range projects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func mean(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
