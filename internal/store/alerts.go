package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/p-blackswan/project-health/internal/models"
)

// AlertFilter narrows ListAlerts. Zero fields match everything.
type AlertFilter struct {
	Project     string
	MinSeverity models.Severity
	Since       time.Time
	Limit       int
}

// ListAlerts returns stored alerts, newest cycle first and by severity
// within a cycle.
func (s *Store) ListAlerts(ctx context.Context, f AlertFilter) ([]models.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.Project != "" {
		where = append(where, "project = ?")
		args = append(args, f.Project)
	}
	if f.MinSeverity != "" {
		where = append(where, "severity_rank <= ?")
		args = append(args, f.MinSeverity.Rank())
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UnixMilli())
	}
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, project, alert_type, severity, title, description, metadata, suggested_actions, created_at FROM alerts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, severity_rank ASC, seq ASC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []models.Alert
	for rows.Next() {
		var (
			a             models.Alert
			typ, sev      string
			meta, actions string
			created       int64
		)
		if err := rows.Scan(&a.ID, &a.ProjectName, &typ, &sev, &a.Title, &a.Description, &meta, &actions, &created); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.AlertType = models.AlertType(typ)
		a.Severity = models.Severity(sev)
		a.Timestamp = time.UnixMilli(created).UTC()
		if err := json.Unmarshal([]byte(meta), &a.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode alert metadata: %w", err)
		}
		if err := json.Unmarshal([]byte(actions), &a.SuggestedActions); err != nil {
			return nil, fmt.Errorf("failed to decode suggested actions: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return out, nil
}
