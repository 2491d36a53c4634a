package models

import "strings"

// ProjectStatus is the lifecycle state of a project.
type ProjectStatus string

const (
	ProjectPlanning      ProjectStatus = "planning"
	ProjectActive        ProjectStatus = "active"
	ProjectOnHold        ProjectStatus = "on_hold"
	ProjectCompleted     ProjectStatus = "completed"
	ProjectCancelled     ProjectStatus = "cancelled"
	ProjectStatusUnknown ProjectStatus = "unknown"
)

var projectStatuses = []ProjectStatus{
	ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled,
}

// ParseProjectStatus maps s onto a known status. Unrecognised input yields
// ProjectStatusUnknown and false.
func ParseProjectStatus(s string) (ProjectStatus, bool) {
	return parseEnum(s, projectStatuses, ProjectStatusUnknown)
}

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	TaskNotStarted    TaskStatus = "not_started"
	TaskInProgress    TaskStatus = "in_progress"
	TaskBlocked       TaskStatus = "blocked"
	TaskCompleted     TaskStatus = "completed"
	TaskCancelled     TaskStatus = "cancelled"
	TaskPending       TaskStatus = "pending"
	TaskStatusUnknown TaskStatus = "unknown"
)

var taskStatuses = []TaskStatus{
	TaskNotStarted, TaskInProgress, TaskBlocked, TaskCompleted, TaskCancelled, TaskPending,
}

// ParseTaskStatus maps s onto a known task status.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	return parseEnum(s, taskStatuses, TaskStatusUnknown)
}

// Priority of a task.
type Priority string

const (
	PriorityLow     Priority = "low"
	PriorityMedium  Priority = "medium"
	PriorityHigh    Priority = "high"
	PriorityUnknown Priority = "unknown"
)

var priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// ParsePriority maps s onto a known priority.
func ParsePriority(s string) (Priority, bool) {
	return parseEnum(s, priorities, PriorityUnknown)
}

// UpdateType classifies a ProjectUpdate.
type UpdateType string

const (
	UpdateGeneral     UpdateType = "general"
	UpdateProgress    UpdateType = "progress"
	UpdateBlocker     UpdateType = "blocker"
	UpdateMilestone   UpdateType = "milestone"
	UpdateCompletion  UpdateType = "completion"
	UpdateInitiation  UpdateType = "initiation"
	UpdateTypeUnknown UpdateType = "unknown"
)

var updateTypes = []UpdateType{
	UpdateGeneral, UpdateProgress, UpdateBlocker, UpdateMilestone, UpdateCompletion, UpdateInitiation,
}

// ParseUpdateType maps s onto a known update type.
func ParseUpdateType(s string) (UpdateType, bool) {
	return parseEnum(s, updateTypes, UpdateTypeUnknown)
}

// ResourceState is the availability of a tracked resource.
type ResourceState string

const (
	ResourceAvailable  ResourceState = "available"
	ResourceAllocated  ResourceState = "allocated"
	ResourceDepleted   ResourceState = "depleted"
	ResourceLow        ResourceState = "low"
	ResourceSufficient ResourceState = "sufficient"
	ResourceUnknown    ResourceState = "unknown"
)

var resourceStates = []ResourceState{
	ResourceAvailable, ResourceAllocated, ResourceDepleted, ResourceLow, ResourceSufficient, ResourceUnknown,
}

// ParseResourceState maps s onto a known resource state.
func ParseResourceState(s string) (ResourceState, bool) {
	return parseEnum(s, resourceStates, ResourceUnknown)
}

// Severity ranks alerts for display and escalation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
	SeverityUnknown  Severity = "unknown"
)

var severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}

// ParseSeverity maps s onto a known severity.
func ParseSeverity(s string) (Severity, bool) {
	return parseEnum(s, severities, SeverityUnknown)
}

// Severities lists the known severities, most urgent first.
func Severities() []Severity {
	return append([]Severity(nil), severities...)
}

// Rank orders severities: 0 is critical, larger is less urgent.
func (s Severity) Rank() int {
	for i, v := range severities {
		if v == s {
			return i
		}
	}
	return len(severities)
}

// AtLeast reports whether s is as urgent as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() <= min.Rank()
}

// AlertType identifies the rule that produced an alert.
type AlertType string

const (
	AlertProjectOnHold       AlertType = "project_on_hold"
	AlertBlockedTask         AlertType = "blocked_task"
	AlertOverdueTask         AlertType = "overdue_task"
	AlertBehindSchedule      AlertType = "behind_schedule"
	AlertApproachingDeadline AlertType = "approaching_deadline"
	AlertOverdueProject      AlertType = "overdue_project"
	AlertAtRiskProject       AlertType = "at_risk_project"
	AlertResourceIssue       AlertType = "resource_issue"
	AlertNoRecentActivity    AlertType = "no_recent_activity"
	AlertStalledProgress     AlertType = "stalled_progress"
	AlertResourceOverload    AlertType = "resource_overload"
	AlertHighWorkload        AlertType = "high_workload"
	AlertAnalysisError       AlertType = "analysis_error"
)

func parseEnum[T ~string](s string, known []T, unknown T) (T, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	norm = strings.ReplaceAll(norm, " ", "_")
	for _, k := range known {
		if string(k) == norm {
			return k, true
		}
	}
	return unknown, false
}
