package analyzer

import "time"

// ReportStatus tells whether a trend report carries analysis.
type ReportStatus string

const (
	StatusOK               ReportStatus = "ok"
	StatusInsufficientData ReportStatus = "insufficient_data"
)

// TrendLabel describes the direction of a trend.
type TrendLabel string

const (
	TrendImproving TrendLabel = "improving"
	TrendDeclining TrendLabel = "declining"
	TrendWorsening TrendLabel = "worsening"
	TrendStable    TrendLabel = "stable"
)

// HealthStatus is the overall classification of a project.
type HealthStatus string

const (
	HealthHealthy        HealthStatus = "healthy"
	HealthNeedsAttention HealthStatus = "needs_attention"
	HealthAtRisk         HealthStatus = "at_risk"
)

// Confidence of a completion estimate.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// RateTrend summarises a per-day rate across consecutive snapshots.
type RateTrend struct {
	Current float64    `json:"current"`
	Average float64    `json:"average"`
	Trend   float64    `json:"trend"`
	Label   TrendLabel `json:"trend_label"`
	Rates   []float64  `json:"rates"`
}

// BlockingTrend tracks the share of active tasks that are blocked.
type BlockingTrend struct {
	Current float64    `json:"current"`
	Trend   float64    `json:"trend"`
	Label   TrendLabel `json:"trend_label"`
	Series  []float64  `json:"series"`
}

// CompletionEstimate projects when remaining work reaches zero.
type CompletionEstimate struct {
	Date             *time.Time `json:"date"`
	BurndownDate     *time.Time `json:"burndown_date,omitempty"`
	VelocityDate     *time.Time `json:"velocity_date,omitempty"`
	RemainingPercent float64    `json:"remaining_percent"`
	Confidence       Confidence `json:"confidence"`
}

// OverallTrend combines the individual trends into one score.
type OverallTrend struct {
	Score float64    `json:"score"`
	Label TrendLabel `json:"label"`
}

// TrendReport is the analysis of one project's snapshot history.
type TrendReport struct {
	ProjectName         string              `json:"project_name"`
	Status              ReportStatus        `json:"status"`
	DataPoints          int                 `json:"data_points"`
	Message             string              `json:"message,omitempty"`
	Velocity            *RateTrend          `json:"velocity,omitempty"`
	Burndown            *RateTrend          `json:"burndown,omitempty"`
	Blocking            *BlockingTrend      `json:"blocking,omitempty"`
	EstimatedCompletion *CompletionEstimate `json:"estimated_completion,omitempty"`
	Overall             *OverallTrend       `json:"overall_trend,omitempty"`
	Health              HealthStatus        `json:"health_status,omitempty"`
	GeneratedAt         time.Time           `json:"generated_at"`
}
