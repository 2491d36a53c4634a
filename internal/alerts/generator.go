// Package alerts evaluates a fixed rule set against project state and
// produces a severity-ranked list of alerts.
package alerts

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-health/internal/models"
)

// Generator produces alerts. It holds only configuration.
type Generator struct {
	cfg    Config
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator. Zero thresholds take their defaults.
func NewGenerator(cfg Config, logger zerolog.Logger, opts ...Option) *Generator {
	g := &Generator{
		cfg:    cfg.withDefaults(),
		now:    time.Now,
		logger: logger.With().Str("component", "alerts").Logger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the effective thresholds.
func (g *Generator) Config() Config { return g.cfg }

// GenerateAlerts evaluates every project and returns alerts ordered by
// severity, then generation order. Projects are visited by name so the
// output is stable for unchanged input.
func (g *Generator) GenerateAlerts(projects map[string]*models.Project) []models.Alert {
	now := g.now()
	names := make([]string, 0, len(projects))
	for name := range projects {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []models.Alert
	for _, name := range names {
		out = append(out, g.projectAlerts(name, projects[name], now)...)
	}
	SortBySeverity(out)
	return out
}

// SortBySeverity orders alerts critical first, keeping generation order
// within a severity.
func SortBySeverity(alerts []models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
	})
}

func (g *Generator) projectAlerts(name string, p *models.Project, now time.Time) (out []models.Alert) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error().Str("project", name).Interface("panic", r).Msg("alert evaluation failed")
			out = []models.Alert{g.analysisError(name, now, fmt.Sprintf("%v", r))}
		}
	}()
	if p == nil {
		return []models.Alert{g.analysisError(name, now, "project is nil")}
	}

	b := &builder{project: name, now: now}
	g.checkStatus(b, p)
	g.checkBlockedTasks(b, p)
	g.checkDeadlines(b, p)
	g.checkProjectDeadline(b, p)
	g.checkResources(b, p)
	g.checkActivity(b, p)
	g.checkWorkload(b, p)
	return b.alerts
}

func (g *Generator) analysisError(name string, now time.Time, msg string) models.Alert {
	b := &builder{project: name, now: now}
	b.add(models.AlertAnalysisError, models.SeverityLow, "",
		"Project analysis failed",
		fmt.Sprintf("Alerts for project %s could not be evaluated: %s", name, msg),
		map[string]any{"error": msg},
		[]string{"Check the project data supplied for this cycle"})
	return b.alerts[0]
}

// builder accumulates one project's alerts.
type builder struct {
	project string
	now     time.Time
	alerts  []models.Alert
}

func (b *builder) add(typ models.AlertType, sev models.Severity, subject, title, desc string, meta map[string]any, actions []string) {
	if meta == nil {
		meta = map[string]any{}
	}
	if actions == nil {
		actions = []string{}
	}
	b.alerts = append(b.alerts, models.Alert{
		ID:               alertID(typ, b.project, subject, b.now),
		ProjectName:      b.project,
		AlertType:        typ,
		Severity:         sev,
		Title:            title,
		Description:      desc,
		Timestamp:        b.now,
		Metadata:         meta,
		SuggestedActions: actions,
	})
}

// alertID derives an id from type, project and time. The subject keeps
// per-task alerts of one cycle apart.
func alertID(typ models.AlertType, project, subject string, now time.Time) string {
	parts := []string{string(typ), slug(project)}
	if subject != "" {
		parts = append(parts, slug(subject))
	}
	parts = append(parts, now.UTC().Format("20060102T150405"))
	return strings.Join(parts, "_")
}

func slug(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}

func formatDate(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
