package mgmt

import (
	"time"

	"github.com/p-blackswan/project-health/internal/engine"
	"github.com/p-blackswan/project-health/internal/models"
	"github.com/p-blackswan/project-health/internal/store"
)

// ProblemDetail follows RFC 7807 for error responses.
type ProblemDetail struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// AlertListResponse is returned by GET /api/v1/alerts.
type AlertListResponse struct {
	CycleID string         `json:"cycle_id,omitempty"`
	Alerts  []models.Alert `json:"alerts"`
	Total   int            `json:"total"`
}

// RecommendationListResponse is returned by GET /api/v1/recommendations.
type RecommendationListResponse struct {
	CycleID         string                  `json:"cycle_id"`
	Recommendations []models.Recommendation `json:"recommendations"`
	Total           int                     `json:"total"`
}

// CycleListResponse is returned by GET /api/v1/cycles.
type CycleListResponse struct {
	Status engine.Status        `json:"status"`
	Cycles []store.CycleSummary `json:"cycles"`
}

// TriggerResponse is returned by POST /api/v1/cycles.
type TriggerResponse struct {
	Queued bool      `json:"queued"`
	At     time.Time `json:"at"`
}
