package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/p-blackswan/project-health/internal/calculator"
	"github.com/p-blackswan/project-health/internal/engine"
)

// CycleSummary is one row of the cycle log.
type CycleSummary struct {
	ID              string        `json:"id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	Projects        int           `json:"projects"`
	Alerts          int           `json:"alerts"`
	Recommendations int           `json:"recommendations"`
	Errors          int           `json:"errors"`
	Warnings        int           `json:"warnings"`
}

// HandleCycle persists res. It makes the store usable as an engine sink.
func (s *Store) HandleCycle(ctx context.Context, res *engine.CycleResult) error {
	return s.SaveCycle(ctx, res)
}

// SaveCycle writes a cycle and everything it produced in one transaction.
// Snapshots already stored for the same project and instant are kept.
func (s *Store) SaveCycle(ctx context.Context, res *engine.CycleResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	projects := 0
	if res.Metrics != nil {
		projects = len(res.Metrics.Projects)
	}
	_, err = tx.ExecContext(ctx, `
	INSERT INTO cycles (id, started_at, duration_ms, projects, alerts, recommendations, errors, warnings)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.StartedAt.UnixMilli(), res.Duration.Milliseconds(), projects,
		len(res.Alerts), len(res.Recommendations), len(res.Errors), len(res.Warnings),
	)
	if err != nil {
		return fmt.Errorf("failed to save cycle: %w", err)
	}

	if err := saveSnapshots(ctx, tx, res); err != nil {
		return err
	}
	if err := saveAlerts(ctx, tx, res); err != nil {
		return err
	}
	if err := saveRecommendations(ctx, tx, res); err != nil {
		return err
	}
	for _, pe := range res.Errors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO project_errors (cycle_id, project, component, message) VALUES (?, ?, ?, ?)`,
			res.ID, pe.Project, pe.Component, pe.Message,
		); err != nil {
			return fmt.Errorf("failed to save project error: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cycle: %w", err)
	}
	s.logger.Debug().Str("cycle_id", res.ID).Int("alerts", len(res.Alerts)).Msg("cycle persisted")
	return nil
}

func saveSnapshots(ctx context.Context, tx *sql.Tx, res *engine.CycleResult) error {
	if res.Metrics == nil {
		return nil
	}
	for name, m := range res.Metrics.Projects {
		if m.Degraded() {
			continue
		}
		snap := calculator.SnapshotOf(m)
		_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO snapshots (
			project, ts, cycle_id, completion, total_tasks, completed_tasks,
			active_tasks, blocked_tasks, overdue_tasks
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			name, snap.Timestamp.UnixMilli(), res.ID, snap.CompletionPercentage, snap.TotalTasks,
			snap.CompletedTasks, snap.ActiveTasks, snap.BlockedTasks, snap.OverdueTasks,
		)
		if err != nil {
			return fmt.Errorf("failed to save snapshot for %s: %w", name, err)
		}
	}
	return nil
}

func saveAlerts(ctx context.Context, tx *sql.Tx, res *engine.CycleResult) error {
	for i, a := range res.Alerts {
		meta, err := json.Marshal(a.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode alert metadata: %w", err)
		}
		actions, err := json.Marshal(a.SuggestedActions)
		if err != nil {
			return fmt.Errorf("failed to encode suggested actions: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO alerts (
			cycle_id, id, project, alert_type, severity, severity_rank, title,
			description, metadata, suggested_actions, created_at, seq
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, a.ID, a.ProjectName, string(a.AlertType), string(a.Severity), a.Severity.Rank(),
			a.Title, a.Description, string(meta), string(actions), a.Timestamp.UnixMilli(), i,
		)
		if err != nil {
			return fmt.Errorf("failed to save alert %s: %w", a.ID, err)
		}
	}
	return nil
}

func saveRecommendations(ctx context.Context, tx *sql.Tx, res *engine.CycleResult) error {
	for i, r := range res.Recommendations {
		tasks, err := json.Marshal(r.ReschedulableTasks)
		if err != nil {
			return fmt.Errorf("failed to encode reschedulable tasks: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
		INSERT INTO recommendations (
			cycle_id, seq, owner, period_start, period_end, task_count, tasks, reason, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			res.ID, i, r.Owner, r.PeriodStart.UnixMilli(), r.PeriodEnd.UnixMilli(),
			r.TaskCount, string(tasks), r.Reason, r.Timestamp.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("failed to save recommendation: %w", err)
		}
	}
	return nil
}

// ListCycles returns the most recent cycles, newest first.
func (s *Store) ListCycles(ctx context.Context, limit int) ([]CycleSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, started_at, duration_ms, projects, alerts, recommendations, errors, warnings
	FROM cycles ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list cycles: %w", err)
	}
	defer rows.Close()

	var out []CycleSummary
	for rows.Next() {
		var c CycleSummary
		var started, durMs int64
		if err := rows.Scan(&c.ID, &started, &durMs, &c.Projects, &c.Alerts, &c.Recommendations, &c.Errors, &c.Warnings); err != nil {
			return nil, fmt.Errorf("failed to scan cycle: %w", err)
		}
		c.StartedAt = time.UnixMilli(started).UTC()
		c.Duration = time.Duration(durMs) * time.Millisecond
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cycles: %w", err)
	}
	return out, nil
}
