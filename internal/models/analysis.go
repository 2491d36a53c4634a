package models

import "time"

// Snapshot is a lightweight point-in-time record kept in a project's
// bounded history.
type Snapshot struct {
	Timestamp            time.Time `json:"timestamp"`
	CompletionPercentage float64   `json:"completion_percentage"`
	TotalTasks           int       `json:"total_tasks"`
	CompletedTasks       int       `json:"completed_tasks"`
	ActiveTasks          int       `json:"active_tasks"`
	BlockedTasks         int       `json:"blocked_tasks"`
	OverdueTasks         int       `json:"overdue_tasks"`
}

// Alert is a single detected risk condition.
type Alert struct {
	ID               string         `json:"id"`
	ProjectName      string         `json:"project_name"`
	AlertType        AlertType      `json:"alert_type"`
	Severity         Severity       `json:"severity"`
	Title            string         `json:"title"`
	Description      string         `json:"description"`
	Timestamp        time.Time      `json:"timestamp"`
	Metadata         map[string]any `json:"metadata"`
	SuggestedActions []string       `json:"suggested_actions"`
}

// Subject returns the task or resource the alert is about, if any.
func (a Alert) Subject() string {
	for _, k := range []string{"task_id", "resource_type", "owner"} {
		if v, ok := a.Metadata[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// Fingerprint identifies "the same" alert across cycles.
func (a Alert) Fingerprint() string {
	return string(a.AlertType) + "|" + a.ProjectName + "|" + a.Subject()
}

// ReschedulableTask is a task proposed for deferral.
type ReschedulableTask struct {
	ProjectName      string    `json:"project_name"`
	TaskID           string    `json:"task_id"`
	TaskName         string    `json:"task_name"`
	CurrentDueDate   time.Time `json:"current_due_date"`
	SuggestedDueDate time.Time `json:"suggested_due_date"`
	Priority         Priority  `json:"priority"`
}

// Recommendation proposes deferring work out of one owner's overloaded week.
type Recommendation struct {
	Owner              string              `json:"owner"`
	PeriodStart        time.Time           `json:"period_start"`
	PeriodEnd          time.Time           `json:"period_end"`
	TaskCount          int                 `json:"task_count"`
	ReschedulableTasks []ReschedulableTask `json:"reschedulable_tasks"`
	Reason             string              `json:"reason"`
	Timestamp          time.Time           `json:"timestamp"`
}
