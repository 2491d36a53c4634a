package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/project-health/internal/calculator"
	"github.com/p-blackswan/project-health/internal/engine"
	perrors "github.com/p-blackswan/project-health/internal/errors"
	"github.com/p-blackswan/project-health/internal/history"
	"github.com/p-blackswan/project-health/internal/models"
)

var t0 = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func cycleAt(id string, at time.Time, completed int) *engine.CycleResult {
	return &engine.CycleResult{
		ID:        id,
		StartedAt: at,
		Duration:  1500 * time.Millisecond,
		Metrics: &calculator.SystemMetrics{
			Projects: map[string]*calculator.ProjectMetrics{
				"Rooftop-A": {
					ProjectName:          "Rooftop-A",
					TotalTasks:           10,
					CompletedTasks:       completed,
					ActiveTasks:          10 - completed,
					CompletionPercentage: float64(completed * 10),
					CalculatedAt:         at,
				},
				"broken": {ProjectName: "broken", Issue: "project is nil", CalculatedAt: at},
			},
		},
		Alerts: []models.Alert{
			{
				ID: "project_on_hold_Rooftop-A_" + id, ProjectName: "Rooftop-A",
				AlertType: models.AlertProjectOnHold, Severity: models.SeverityHigh,
				Title: "Project on hold", Timestamp: at,
				Metadata:         map[string]any{"status": "on_hold"},
				SuggestedActions: []string{"Confirm the reason"},
			},
			{
				ID: "analysis_error_broken_" + id, ProjectName: "broken",
				AlertType: models.AlertAnalysisError, Severity: models.SeverityLow,
				Title: "Project analysis failed", Timestamp: at,
				Metadata: map[string]any{}, SuggestedActions: []string{},
			},
		},
		Recommendations: []models.Recommendation{{
			Owner: "alice", PeriodStart: t0, PeriodEnd: t0.AddDate(0, 0, 7), TaskCount: 3,
			ReschedulableTasks: []models.ReschedulableTask{{ProjectName: "Rooftop-A", TaskID: "T1"}},
			Reason:             "busy", Timestamp: at,
		}},
		Errors: []perrors.ProjectError{{Project: "broken", Component: "calculator", Message: "project is nil"}},
	}
}

func TestNew_CreatesSchema(t *testing.T) {
	s := newTestStore(t)
	for _, table := range []string{"meta", "cycles", "snapshots", "alerts", "recommendations", "project_errors"} {
		var count int
		err := s.DB().QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
	assert.Equal(t, 2, s.schemaVersion())
	require.NoError(t, s.Ping(context.Background()))
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(path, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, s.SaveCycle(context.Background(), cycleAt("c1", t0, 3)))
	require.NoError(t, s.Close())

	s, err = New(path, zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	cycles, err := s.ListCycles(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, cycles, 1)
}

func TestSaveCycle_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.HandleCycle(ctx, cycleAt("c1", t0, 3)))

	cycles, err := s.ListCycles(ctx, 0)
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	c := cycles[0]
	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, t0, c.StartedAt)
	assert.Equal(t, 1500*time.Millisecond, c.Duration)
	assert.Equal(t, 2, c.Projects)
	assert.Equal(t, 2, c.Alerts)
	assert.Equal(t, 1, c.Recommendations)
	assert.Equal(t, 1, c.Errors)

	names, err := s.ProjectNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Rooftop-A"}, names)

	snaps, err := s.LoadSnapshots(ctx, "Rooftop-A", 10)
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 3, snaps[0].CompletedTasks)
	assert.Equal(t, 30.0, snaps[0].CompletionPercentage)
	assert.Equal(t, t0, snaps[0].Timestamp)
}

func TestSaveCycle_DuplicateIDFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveCycle(ctx, cycleAt("c1", t0, 3)))
	require.Error(t, s.SaveCycle(ctx, cycleAt("c1", t0.Add(time.Hour), 4)))

	snaps, err := s.LoadSnapshots(ctx, "Rooftop-A", 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1, "failed cycle must roll back")
}

func TestListAlerts_Filters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveCycle(ctx, cycleAt("c1", t0, 3)))
	require.NoError(t, s.SaveCycle(ctx, cycleAt("c2", t0.Add(time.Hour), 4)))

	all, err := s.ListAlerts(ctx, AlertFilter{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "project_on_hold_Rooftop-A_c2", all[0].ID)
	assert.Equal(t, "on_hold", all[0].Metadata["status"])
	assert.Equal(t, []string{"Confirm the reason"}, all[0].SuggestedActions)

	high, err := s.ListAlerts(ctx, AlertFilter{MinSeverity: models.SeverityHigh})
	require.NoError(t, err)
	assert.Len(t, high, 2)

	broken, err := s.ListAlerts(ctx, AlertFilter{Project: "broken"})
	require.NoError(t, err)
	require.Len(t, broken, 2)
	assert.Equal(t, models.AlertAnalysisError, broken[0].AlertType)

	recent, err := s.ListAlerts(ctx, AlertFilter{Since: t0.Add(30 * time.Minute), Limit: 1})
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, t0.Add(time.Hour), recent[0].Timestamp)
}

func TestLoadSnapshots_KeepsNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveCycle(ctx, cycleAt(string(rune('a'+i)), t0.Add(time.Duration(i)*time.Hour), i)))
	}
	snaps, err := s.LoadSnapshots(ctx, "Rooftop-A", 3)
	require.NoError(t, err)
	require.Len(t, snaps, 3)
	assert.Equal(t, 2, snaps[0].CompletedTasks)
	assert.Equal(t, 4, snaps[2].CompletedTasks)
}

func TestRehydrate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveCycle(ctx, cycleAt("c1", t0, 3)))
	require.NoError(t, s.SaveCycle(ctx, cycleAt("c2", t0.Add(24*time.Hour), 5)))

	h := history.New(history.DefaultLimit)
	n, err := s.Rehydrate(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, h.Len("Rooftop-A"))
}

func TestPrune_Cascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.SaveCycle(ctx, cycleAt("old", t0.Add(-48*time.Hour), 1)))
	require.NoError(t, s.SaveCycle(ctx, cycleAt("new", t0, 3)))

	n, err := s.Prune(ctx, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	alerts, err := s.ListAlerts(ctx, AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, alerts, 2)
	snaps, err := s.LoadSnapshots(ctx, "Rooftop-A", 10)
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	var recs int
	require.NoError(t, s.DB().QueryRow("SELECT COUNT(*) FROM recommendations").Scan(&recs))
	assert.Equal(t, 1, recs)
}

func TestDBSizeBytes(t *testing.T) {
	s := newTestStore(t)
	size, err := s.DBSizeBytes()
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
}
