package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/project-health/internal/calculator"
	"github.com/p-blackswan/project-health/internal/engine"
	perrors "github.com/p-blackswan/project-health/internal/errors"
	"github.com/p-blackswan/project-health/internal/models"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func cycle(projects ...string) *engine.CycleResult {
	sm := &calculator.SystemMetrics{Projects: map[string]*calculator.ProjectMetrics{}}
	for i, name := range projects {
		sm.Projects[name] = &calculator.ProjectMetrics{
			ProjectName:          name,
			CompletionPercentage: float64(40 + i*10),
			DaysBehind:           i,
			Burndown:             &calculator.BurndownMetrics{IsOnTrack: i == 0},
		}
	}
	return &engine.CycleResult{
		ID:       "c1",
		Duration: 250 * time.Millisecond,
		Metrics:  sm,
		Alerts: []models.Alert{
			{AlertType: models.AlertBlockedTask, Severity: models.SeverityHigh},
			{AlertType: models.AlertBlockedTask, Severity: models.SeverityHigh},
			{AlertType: models.AlertProjectOnHold, Severity: models.SeverityCritical},
		},
		Recommendations: []models.Recommendation{{}},
		Errors:          []perrors.ProjectError{{Project: "x", Component: "calculator", Message: "boom"}},
	}
}

func TestNew(t *testing.T) {
	m := New()
	require.NotNil(t, m)
	require.NotNil(t, m.Registry())
}

func TestHandleCycle(t *testing.T) {
	m := New()
	require.NoError(t, m.HandleCycle(context.Background(), cycle("alpha", "beta")))

	body := scrape(t, m)
	assert.Contains(t, body, `project_health_cycles_total{status="ok"} 1`)
	assert.Contains(t, body, `project_health_alerts{severity="high"} 2`)
	assert.Contains(t, body, `project_health_alerts{severity="critical"} 1`)
	assert.Contains(t, body, `project_health_alerts{severity="low"} 0`)
	assert.Contains(t, body, `project_health_alerts_generated_total{severity="high",type="blocked_task"} 2`)
	assert.Contains(t, body, `project_health_recommendations 1`)
	assert.Contains(t, body, `project_health_completion_percentage{project="alpha"} 40`)
	assert.Contains(t, body, `project_health_completion_percentage{project="beta"} 50`)
	assert.Contains(t, body, `project_health_days_behind{project="beta"} 1`)
	assert.Contains(t, body, `project_health_on_track{project="alpha"} 1`)
	assert.Contains(t, body, `project_health_on_track{project="beta"} 0`)
	assert.Contains(t, body, `project_health_project_errors_total{component="calculator"} 1`)
	assert.Contains(t, body, "project_health_cycle_duration_seconds_count 1")
}

func TestHandleCycle_DropsVanishedProjects(t *testing.T) {
	m := New()
	require.NoError(t, m.HandleCycle(context.Background(), cycle("alpha", "beta")))
	require.NoError(t, m.HandleCycle(context.Background(), cycle("alpha")))

	body := scrape(t, m)
	assert.Contains(t, body, `project="alpha"`)
	assert.NotContains(t, body, `project="beta"`)
}

func TestHandleCycleFailure(t *testing.T) {
	m := New()
	m.HandleCycleFailure(context.Background(), errors.New("timeout"))
	assert.Contains(t, scrape(t, m), `project_health_cycles_total{status="failed"} 1`)
}

func TestRecorders(t *testing.T) {
	m := New()
	m.RecordNotification("sent")
	m.RecordNotification("sent")
	m.RecordRequest("/api/v1/alerts", "200")
	m.ObserveDuration("/api/v1/alerts", 0.01)
	m.SetDBSize(4096)

	body := scrape(t, m)
	assert.Contains(t, body, `project_health_notifications_total{result="sent"} 2`)
	assert.Contains(t, body, `project_health_api_requests_total{route="/api/v1/alerts",status="200"} 1`)
	assert.Contains(t, body, `project_health_api_request_duration_seconds_count{route="/api/v1/alerts"} 1`)
	assert.Contains(t, body, "project_health_db_size_bytes 4096")
}
