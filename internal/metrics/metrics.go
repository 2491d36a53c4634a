// Package metrics provides Prometheus metrics for the project health service.
package metrics

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/p-blackswan/project-health/internal/engine"
	"github.com/p-blackswan/project-health/internal/models"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	AlertsActive        *prometheus.GaugeVec
	AlertsGenerated     *prometheus.CounterVec
	RecommendationsOpen prometheus.Gauge
	ProjectCompletion   *prometheus.GaugeVec
	ProjectDaysBehind   *prometheus.GaugeVec
	ProjectOnTrack      *prometheus.GaugeVec
	ProjectErrorsTotal  *prometheus.CounterVec
	NotificationsTotal  *prometheus.CounterVec
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	DBSizeBytes         prometheus.Gauge

	registry *prometheus.Registry

	mu       sync.Mutex
	projects map[string]struct{}
}

// New creates and registers all metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_health_cycles_total",
				Help: "Total monitoring cycles by result.",
			},
			[]string{"status"},
		),
		CycleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "project_health_cycle_duration_seconds",
				Help:    "Monitoring cycle duration.",
				Buckets: prometheus.DefBuckets,
			},
		),
		AlertsActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "project_health_alerts",
				Help: "Alerts raised by the latest cycle by severity.",
			},
			[]string{"severity"},
		),
		AlertsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_health_alerts_generated_total",
				Help: "Total alerts generated by type and severity.",
			},
			[]string{"type", "severity"},
		),
		RecommendationsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "project_health_recommendations",
				Help: "Rescheduling recommendations produced by the latest cycle.",
			},
		),
		ProjectCompletion: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "project_health_completion_percentage",
				Help: "Task completion percentage per project.",
			},
			[]string{"project"},
		),
		ProjectDaysBehind: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "project_health_days_behind",
				Help: "Days behind the ideal burndown per project.",
			},
			[]string{"project"},
		),
		ProjectOnTrack: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "project_health_on_track",
				Help: "1 if the project's burndown is on track, else 0.",
			},
			[]string{"project"},
		),
		ProjectErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_health_project_errors_total",
				Help: "Total per-project analysis failures by component.",
			},
			[]string{"component"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_health_notifications_total",
				Help: "Total escalation notifications by outcome.",
			},
			[]string{"result"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "project_health_api_requests_total",
				Help: "Total management API requests by route and status.",
			},
			[]string{"route", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "project_health_api_request_duration_seconds",
				Help:    "Management API request duration by route.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		DBSizeBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "project_health_db_size_bytes",
				Help: "Size of the results database.",
			},
		),
		registry: reg,
		projects: make(map[string]struct{}),
	}

	reg.MustRegister(m.CyclesTotal)
	reg.MustRegister(m.CycleDuration)
	reg.MustRegister(m.AlertsActive)
	reg.MustRegister(m.AlertsGenerated)
	reg.MustRegister(m.RecommendationsOpen)
	reg.MustRegister(m.ProjectCompletion)
	reg.MustRegister(m.ProjectDaysBehind)
	reg.MustRegister(m.ProjectOnTrack)
	reg.MustRegister(m.ProjectErrorsTotal)
	reg.MustRegister(m.NotificationsTotal)
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.RequestDuration)
	reg.MustRegister(m.DBSizeBytes)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// HandleCycle records a completed cycle.
func (m *Metrics) HandleCycle(_ context.Context, res *engine.CycleResult) error {
	m.CyclesTotal.WithLabelValues("ok").Inc()
	m.CycleDuration.Observe(res.Duration.Seconds())

	counts := res.AlertCounts()
	for _, sev := range models.Severities() {
		m.AlertsActive.WithLabelValues(string(sev)).Set(float64(counts[sev]))
	}
	for _, a := range res.Alerts {
		m.AlertsGenerated.WithLabelValues(string(a.AlertType), string(a.Severity)).Inc()
	}
	m.RecommendationsOpen.Set(float64(len(res.Recommendations)))

	for _, pe := range res.Errors {
		m.ProjectErrorsTotal.WithLabelValues(pe.Component).Inc()
	}

	if res.Metrics != nil {
		m.setProjects(res)
	}
	return nil
}

// HandleCycleFailure records a cycle that produced no result.
func (m *Metrics) HandleCycleFailure(_ context.Context, _ error) {
	m.CyclesTotal.WithLabelValues("failed").Inc()
}

// RecordNotification increments the notification counter.
func (m *Metrics) RecordNotification(outcome string) {
	m.NotificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordRequest increments the API request counter.
func (m *Metrics) RecordRequest(route, status string) {
	m.RequestsTotal.WithLabelValues(route, status).Inc()
}

// ObserveDuration records API request duration.
func (m *Metrics) ObserveDuration(route string, seconds float64) {
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// SetDBSize sets the database size gauge.
func (m *Metrics) SetDBSize(bytes int64) {
	m.DBSizeBytes.Set(float64(bytes))
}

// setProjects replaces the per-project gauges, dropping projects that
// vanished from the input.
func (m *Metrics) setProjects(res *engine.CycleResult) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := make(map[string]struct{}, len(res.Metrics.Projects))
	names := make([]string, 0, len(res.Metrics.Projects))
	for name := range res.Metrics.Projects {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		pm := res.Metrics.Projects[name]
		current[name] = struct{}{}
		m.ProjectCompletion.WithLabelValues(name).Set(pm.CompletionPercentage)
		m.ProjectDaysBehind.WithLabelValues(name).Set(float64(pm.DaysBehind))
		onTrack := 0.0
		if pm.Burndown != nil && pm.Burndown.IsOnTrack {
			onTrack = 1
		}
		m.ProjectOnTrack.WithLabelValues(name).Set(onTrack)
	}

	for name := range m.projects {
		if _, ok := current[name]; !ok {
			m.ProjectCompletion.DeleteLabelValues(name)
			m.ProjectDaysBehind.DeleteLabelValues(name)
			m.ProjectOnTrack.DeleteLabelValues(name)
		}
	}
	m.projects = current
}
