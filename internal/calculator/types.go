package calculator

import (
	"time"

	"github.com/p-blackswan/project-health/internal/models"
)

// VelocitySource tells consumers whether velocity came from real telemetry.
type VelocitySource string

const (
	VelocityReported  VelocitySource = "reported"
	VelocitySynthetic VelocitySource = "synthetic"
)

// SprintPoint is the work completed in one sprint.
type SprintPoint struct {
	Date   time.Time `json:"date"`
	Points float64   `json:"points"`
}

// VelocityMetrics summarises points completed per sprint.
type VelocityMetrics struct {
	Source             VelocitySource `json:"source"`
	Sprints            []SprintPoint  `json:"sprints"`
	Average            float64        `json:"average"`
	Current            float64        `json:"current"`
	Trend              []float64      `json:"trend"`
	PredictionAccuracy *float64       `json:"prediction_accuracy"`
	SprintLengthDays   int            `json:"sprint_length_days"`
}

// BurndownPoint is remaining work at a date.
type BurndownPoint struct {
	Date      time.Time `json:"date"`
	Remaining float64   `json:"remaining"`
}

// BurndownMetrics compares actual remaining work against a linear ideal.
type BurndownMetrics struct {
	StartDate                time.Time       `json:"start_date"`
	EndDate                  time.Time       `json:"end_date"`
	EndDateEstimated         bool            `json:"end_date_estimated"`
	TotalPoints              float64         `json:"total_points"`
	RemainingPoints          float64         `json:"remaining_points"`
	Ideal                    []BurndownPoint `json:"ideal"`
	Actual                   []BurndownPoint `json:"actual"`
	IsOnTrack                bool            `json:"is_on_track"`
	CompletionDateProjection time.Time       `json:"completion_date_projection"`
}

// ProjectMetrics is the point-in-time health of one project.
type ProjectMetrics struct {
	ProjectName          string                    `json:"project_name"`
	Status               models.ProjectStatus      `json:"status"`
	TotalTasks           int                       `json:"total_tasks"`
	CompletedTasks       int                       `json:"completed_tasks"`
	ActiveTasks          int                       `json:"active_tasks"`
	BlockedTasks         int                       `json:"blocked_tasks"`
	OverdueTasks         int                       `json:"overdue_tasks"`
	CompletionPercentage float64                   `json:"completion_percentage"`
	TaskStatus           map[models.TaskStatus]int `json:"task_status"`
	TotalPoints          float64                   `json:"total_points"`
	RemainingPoints      float64                   `json:"remaining_points"`
	Velocity             *VelocityMetrics          `json:"velocity,omitempty"`
	Burndown             *BurndownMetrics          `json:"burndown,omitempty"`
	DaysBehind           int                       `json:"days_behind"`
	Issue                string                    `json:"issue,omitempty"`
	CalculatedAt         time.Time                 `json:"calculated_at"`
}

// Degraded reports whether the metrics were zeroed after a failure.
func (m *ProjectMetrics) Degraded() bool { return m.Issue != "" }

// Summary aggregates metrics across every project.
type Summary struct {
	TotalProjects             int     `json:"total_projects"`
	OnTrack                   int     `json:"on_track"`
	AtRisk                    int     `json:"at_risk"`
	Behind                    int     `json:"behind"`
	Degraded                  int     `json:"degraded"`
	AverageCompletion         float64 `json:"average_completion"`
	AverageVelocity           float64 `json:"average_velocity"`
	AverageReportedVelocity   float64 `json:"average_reported_velocity"`
	SyntheticVelocityProjects int     `json:"synthetic_velocity_projects"`
}

// SystemMetrics holds per-project metrics plus the summary.
type SystemMetrics struct {
	Projects     map[string]*ProjectMetrics `json:"projects"`
	Summary      Summary                    `json:"summary"`
	CalculatedAt time.Time                  `json:"calculated_at"`
}
