package store

import (
	"context"
	"fmt"
	"time"

	"github.com/p-blackswan/project-health/internal/history"
	"github.com/p-blackswan/project-health/internal/models"
)

// LoadSnapshots returns up to limit of the newest snapshots for project,
// oldest first.
func (s *Store) LoadSnapshots(ctx context.Context, project string, limit int) ([]models.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = history.DefaultLimit
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT ts, completion, total_tasks, completed_tasks, active_tasks, blocked_tasks, overdue_tasks
	FROM (
		SELECT * FROM snapshots WHERE project = ? ORDER BY ts DESC LIMIT ?
	) ORDER BY ts ASC`, project, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshots: %w", err)
	}
	defer rows.Close()

	var out []models.Snapshot
	for rows.Next() {
		var snap models.Snapshot
		var ts int64
		if err := rows.Scan(&ts, &snap.CompletionPercentage, &snap.TotalTasks, &snap.CompletedTasks,
			&snap.ActiveTasks, &snap.BlockedTasks, &snap.OverdueTasks); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return out, nil
}

// ProjectNames lists every project with stored snapshots.
func (s *Store) ProjectNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT project FROM snapshots ORDER BY project`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Rehydrate loads stored snapshots into h for every known project and
// returns how many projects were restored.
func (s *Store) Rehydrate(ctx context.Context, h *history.Store) (int, error) {
	names, err := s.ProjectNames(ctx)
	if err != nil {
		return 0, err
	}
	for _, name := range names {
		snaps, err := s.LoadSnapshots(ctx, name, h.Limit())
		if err != nil {
			return 0, err
		}
		h.Load(name, snaps)
	}
	s.logger.Info().Int("projects", len(names)).Msg("history rehydrated")
	return len(names), nil
}
