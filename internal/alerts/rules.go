package alerts

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/p-blackswan/project-health/internal/calculator"
	"github.com/p-blackswan/project-health/internal/models"
)

func (g *Generator) checkStatus(b *builder, p *models.Project) {
	if p.Status != models.ProjectOnHold {
		return
	}
	b.add(models.AlertProjectOnHold, models.SeverityHigh, "",
		"Project on hold",
		fmt.Sprintf("Project %s is on hold.", p.Name),
		map[string]any{"status": string(p.Status), "owner": p.Owner},
		[]string{
			"Confirm the reason for the hold with the project owner",
			"Agree a restart date or formally close the project",
			"Release allocated resources while the project is paused",
		})
}

// BlockedSeverity maps how long a task has been blocked onto a severity.
// The bool is false below the threshold.
func BlockedSeverity(blockedDays, thresholdDays float64) (models.Severity, bool) {
	switch {
	case blockedDays >= 3*thresholdDays:
		return models.SeverityCritical, true
	case blockedDays >= 2*thresholdDays:
		return models.SeverityHigh, true
	case blockedDays >= thresholdDays:
		return models.SeverityMedium, true
	default:
		return "", false
	}
}

func (g *Generator) checkBlockedTasks(b *builder, p *models.Project) {
	for _, t := range p.SortedTasks() {
		if !t.IsBlocked() || t.UpdatedAt == nil {
			continue
		}
		days := models.Days(b.now.Sub(*t.UpdatedAt))
		sev, ok := BlockedSeverity(days, g.cfg.BlockedTaskThresholdDays)
		if !ok {
			continue
		}

		owner := t.Owner
		if owner == "" {
			owner = "the task owner"
		}
		desc := fmt.Sprintf("Task %q has been blocked for %.1f days.", t.Name, days)
		if len(t.Blockers) > 0 {
			desc += " Blockers: " + strings.Join(t.Blockers, "; ")
		}
		b.add(models.AlertBlockedTask, sev, t.ID,
			fmt.Sprintf("Task blocked: %s", t.Name),
			desc,
			map[string]any{
				"task_id":        t.ID,
				"task_name":      t.Name,
				"task_owner":     t.Owner,
				"blocked_days":   round1(days),
				"threshold_days": g.cfg.BlockedTaskThresholdDays,
				"blockers":       append([]string{}, t.Blockers...),
				"updated_at":     formatDate(*t.UpdatedAt),
			},
			[]string{
				fmt.Sprintf("Contact %s about the blocker", owner),
				"Schedule a blocker resolution meeting",
				"Consider reassigning the task or its blocking dependency",
			})
	}
}

// OverdueSeverity escalates with days past due: high at the threshold,
// critical at twice the threshold.
func OverdueSeverity(overdueDays, thresholdDays int) models.Severity {
	switch {
	case overdueDays >= 2*thresholdDays:
		return models.SeverityCritical
	case overdueDays >= thresholdDays:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

func (g *Generator) checkDeadlines(b *builder, p *models.Project) {
	for _, t := range p.SortedTasks() {
		if !t.IsActive() || t.DueDate == nil {
			continue
		}
		due := *t.DueDate

		if due.Before(b.now) {
			overdue := models.WholeDays(b.now.Sub(due))
			b.add(models.AlertOverdueTask, OverdueSeverity(overdue, g.cfg.OverdueThresholdDays), t.ID,
				fmt.Sprintf("Task overdue: %s", t.Name),
				fmt.Sprintf("Task %q was due %s and is %d day(s) overdue.", t.Name, due.Format("2006-01-02"), overdue),
				map[string]any{
					"task_id":      t.ID,
					"task_name":    t.Name,
					"task_owner":   t.Owner,
					"due_date":     formatDate(due),
					"overdue_days": overdue,
				},
				[]string{
					"Agree a revised due date with the task owner",
					"Check whether the task is blocked or under-resourced",
					"Update dependent tasks and stakeholders",
				})
			continue
		}

		until := models.WholeDays(due.Sub(b.now))
		if until > g.cfg.ApproachingDeadlineDays {
			continue
		}

		if t.StartDate != nil && due.After(*t.StartDate) {
			total := due.Sub(*t.StartDate)
			elapsed := b.now.Sub(*t.StartDate)
			expected := math.Max(0, math.Min(100, float64(elapsed)*100/float64(total)))
			actual := t.Completion()
			if actual < behindScheduleRatio*expected {
				b.add(models.AlertBehindSchedule, models.SeverityMedium, t.ID,
					fmt.Sprintf("Task behind schedule: %s", t.Name),
					fmt.Sprintf("Task %q is %.0f%% complete but should be about %.0f%% complete; due in %d day(s).",
						t.Name, actual, expected, until),
					map[string]any{
						"task_id":             t.ID,
						"task_name":           t.Name,
						"task_owner":          t.Owner,
						"due_date":            formatDate(due),
						"days_until_due":      until,
						"actual_completion":   round1(actual),
						"expected_completion": round1(expected),
					},
					[]string{
						"Review remaining scope with the task owner",
						"Add capacity or reduce scope before the deadline",
					})
				continue
			}
		}

		if until <= closeDeadlineDays {
			b.add(models.AlertApproachingDeadline, models.SeverityMedium, t.ID,
				fmt.Sprintf("Deadline approaching: %s", t.Name),
				fmt.Sprintf("Task %q is due in %d day(s).", t.Name, until),
				map[string]any{
					"task_id":        t.ID,
					"task_name":      t.Name,
					"task_owner":     t.Owner,
					"due_date":       formatDate(due),
					"days_until_due": until,
				},
				[]string{"Confirm the task is on course to finish on time"})
		}
	}
}

func (g *Generator) checkProjectDeadline(b *builder, p *models.Project) {
	if p.EndDate == nil || p.Status == models.ProjectCompleted || p.Status == models.ProjectCancelled {
		return
	}
	end := *p.EndDate

	var completed int
	for _, t := range p.Tasks {
		if t != nil && t.IsCompleted() {
			completed++
		}
	}
	completion := calculator.CompletionPercentage(completed, len(p.Tasks))

	if end.Before(b.now) {
		overdue := models.WholeDays(b.now.Sub(end))
		b.add(models.AlertOverdueProject, models.SeverityHigh, "",
			"Project past its end date",
			fmt.Sprintf("Project %s ended %s and is %.0f%% complete.", p.Name, end.Format("2006-01-02"), completion),
			map[string]any{
				"end_date":              formatDate(end),
				"overdue_days":          overdue,
				"completion_percentage": round1(completion),
			},
			[]string{
				"Re-baseline the project schedule",
				"Inform stakeholders of the revised completion date",
			})
		return
	}

	until := models.WholeDays(end.Sub(b.now))
	if until <= atRiskProjectDays && completion < atRiskProjectCompletion {
		b.add(models.AlertAtRiskProject, models.SeverityHigh, "",
			"Project at risk of missing its end date",
			fmt.Sprintf("Project %s ends in %d day(s) and is only %.0f%% complete.", p.Name, until, completion),
			map[string]any{
				"end_date":              formatDate(end),
				"days_until_due":        until,
				"completion_percentage": round1(completion),
			},
			[]string{
				"Prioritise the remaining critical-path tasks",
				"Add resources or negotiate scope with stakeholders",
			})
	}
}

func (g *Generator) checkResources(b *builder, p *models.Project) {
	types := make([]string, 0, len(p.Resources))
	for k := range p.Resources {
		types = append(types, k)
	}
	sort.Strings(types)

	for _, key := range types {
		r := p.Resources[key]
		var sev models.Severity
		switch r.Status {
		case models.ResourceLow:
			sev = models.SeverityMedium
		case models.ResourceDepleted:
			sev = models.SeverityHigh
		default:
			continue
		}
		rtype := r.ResourceType
		if rtype == "" {
			rtype = key
		}
		meta := map[string]any{
			"resource_type": rtype,
			"status":        string(r.Status),
			"low_threshold": g.cfg.ResourceLowThreshold,
			"last_updated":  formatDate(r.LastUpdated),
		}
		if r.Quantity != nil {
			meta["quantity"] = *r.Quantity
		}
		b.add(models.AlertResourceIssue, sev, rtype,
			fmt.Sprintf("Resource %s: %s", r.Status, rtype),
			fmt.Sprintf("Resource %s for project %s is %s.", rtype, p.Name, r.Status),
			meta,
			[]string{
				fmt.Sprintf("Reallocate %s from projects with spare capacity", rtype),
				fmt.Sprintf("Order or procure additional %s", rtype),
				fmt.Sprintf("Reschedule tasks that depend on %s", rtype),
			})
	}
}

func (g *Generator) checkActivity(b *builder, p *models.Project) {
	latest := p.LatestUpdate()
	if latest == nil {
		return
	}

	since := models.Days(b.now.Sub(latest.Timestamp))
	if p.Status == models.ProjectActive && since >= inactivityDays {
		b.add(models.AlertNoRecentActivity, models.SeverityMedium, "",
			"No recent activity",
			fmt.Sprintf("Project %s has had no updates for %d days.", p.Name, int(since)),
			map[string]any{
				"days_since_update": int(since),
				"last_update":       formatDate(latest.Timestamp),
			},
			[]string{
				"Request a status update from the project owner",
				"Check whether the project should be put on hold",
			})
	}

	if len(p.Updates) < 2 {
		return
	}
	cutoff := b.now.AddDate(0, 0, -stallWindowDays)
	var recent []float64
	for _, u := range p.Updates {
		if u.CompletionPercentage != nil && !u.Timestamp.Before(cutoff) {
			recent = append(recent, *u.CompletionPercentage)
		}
	}
	if len(recent) < 2 {
		return
	}
	current := recent[len(recent)-1]
	if current >= stallCeiling {
		return
	}
	for _, earlier := range recent[:len(recent)-1] {
		if math.Abs(current-earlier) <= stallTolerance {
			b.add(models.AlertStalledProgress, models.SeverityMedium, "",
				"Progress has stalled",
				fmt.Sprintf("Project %s has moved from %.0f%% to %.0f%% over the last %d days.",
					p.Name, earlier, current, stallWindowDays),
				map[string]any{
					"current_completion": round1(current),
					"earlier_completion": round1(earlier),
					"window_days":        stallWindowDays,
					"tolerance_points":   stallTolerance,
				},
				[]string{
					"Identify what is preventing progress",
					"Review task assignments and blockers",
				})
			return
		}
	}
}

func (g *Generator) checkWorkload(b *builder, p *models.Project) {
	byOwner := make(map[string][]*models.Task)
	for _, t := range p.SortedTasks() {
		if t.Owner == "" || !t.IsActive() {
			continue
		}
		byOwner[t.Owner] = append(byOwner[t.Owner], t)
	}
	owners := make([]string, 0, len(byOwner))
	for o := range byOwner {
		owners = append(owners, o)
	}
	sort.Strings(owners)

	for _, owner := range owners {
		tasks := byOwner[owner]
		if len(tasks) < overloadMinTasks {
			continue
		}
		var urgent []string
		for _, t := range tasks {
			if t.DueDate != nil && models.WholeDays(t.DueDate.Sub(b.now)) <= g.cfg.ApproachingDeadlineDays {
				urgent = append(urgent, t.ID)
			}
		}

		switch {
		case len(urgent) >= overloadUrgentTasks:
			b.add(models.AlertResourceOverload, models.SeverityHigh, owner,
				fmt.Sprintf("%s is overloaded", owner),
				fmt.Sprintf("%s has %d active tasks, %d of them due within %d days.",
					owner, len(tasks), len(urgent), g.cfg.ApproachingDeadlineDays),
				map[string]any{
					"owner":           owner,
					"active_tasks":    len(tasks),
					"urgent_tasks":    len(urgent),
					"urgent_task_ids": urgent,
				},
				[]string{
					fmt.Sprintf("Reassign some of %s's urgent tasks", owner),
					"Defer lower-priority work to a later week",
				})
		case len(tasks) >= highWorkloadTasks:
			b.add(models.AlertHighWorkload, models.SeverityMedium, owner,
				fmt.Sprintf("High workload for %s", owner),
				fmt.Sprintf("%s has %d active tasks.", owner, len(tasks)),
				map[string]any{
					"owner":        owner,
					"active_tasks": len(tasks),
				},
				[]string{"Review the workload distribution across the team"})
		}
	}
}
