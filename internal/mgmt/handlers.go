package mgmt

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/project-health/internal/errors"
	"github.com/p-blackswan/project-health/internal/models"
	"github.com/p-blackswan/project-health/internal/requestid"
	"github.com/p-blackswan/project-health/internal/store"
)

const maxListLimit = 500

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	deps      Deps
	logger    zerolog.Logger
	startTime time.Time
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(deps Deps, logger zerolog.Logger) *Handlers {
	return &Handlers{
		deps:      deps,
		logger:    logger.With().Str("component", "handlers").Logger(),
		startTime: time.Now(),
	}
}

// Liveness handles GET /healthz.
func (h *Handlers) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(h.startTime).Truncate(time.Second).String(),
	})
}

// Readiness handles GET /readyz.
func (h *Handlers) Readiness(c *fiber.Ctx) error {
	if h.deps.Checker == nil {
		return c.JSON(fiber.Map{"status": "ready"})
	}
	rep := h.deps.Checker.Report(c.UserContext())
	if !rep.Ready() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(rep)
	}
	return c.JSON(rep)
}

func noCycle(c *fiber.Ctx) error {
	return problemResponse(c, fiber.StatusServiceUnavailable,
		"no_cycle", "Service Unavailable",
		"No monitoring cycle has completed yet")
}

// metricsUnavailable covers a cycle whose calculator stage failed.
func metricsUnavailable(c *fiber.Ctx) error {
	return problemResponse(c, fiber.StatusInternalServerError,
		"metrics_unavailable", "Internal Server Error",
		"The latest cycle produced no metrics")
}

// SystemMetrics handles GET /api/v1/metrics.
func (h *Handlers) SystemMetrics(c *fiber.Ctx) error {
	res := h.deps.Monitor.Latest()
	if res == nil {
		return noCycle(c)
	}
	if res.Metrics == nil {
		return metricsUnavailable(c)
	}
	return c.JSON(res.Metrics)
}

// ProjectMetrics handles GET /api/v1/metrics/:project.
func (h *Handlers) ProjectMetrics(c *fiber.Ctx) error {
	res := h.deps.Monitor.Latest()
	if res == nil {
		return noCycle(c)
	}
	if res.Metrics == nil {
		return metricsUnavailable(c)
	}
	name := c.Params("project")
	pm, ok := res.Metrics.Projects[name]
	if !ok {
		return problemResponse(c, fiber.StatusNotFound,
			"project_not_found", "Not Found", "Project not found: "+name)
	}
	return c.JSON(pm)
}

// Alerts handles GET /api/v1/alerts for the latest cycle.
func (h *Handlers) Alerts(c *fiber.Ctx) error {
	minSev, ok := parseMinSeverity(c)
	if !ok {
		return invalidSeverity(c)
	}
	res := h.deps.Monitor.Latest()
	if res == nil {
		return noCycle(c)
	}
	project := c.Query("project")
	out := []models.Alert{}
	for _, a := range res.Alerts {
		if project != "" && a.ProjectName != project {
			continue
		}
		if minSev != "" && !a.Severity.AtLeast(minSev) {
			continue
		}
		out = append(out, a)
	}
	return c.JSON(AlertListResponse{CycleID: res.ID, Alerts: out, Total: len(out)})
}

// AlertHistory handles GET /api/v1/alerts/history from the store.
func (h *Handlers) AlertHistory(c *fiber.Ctx) error {
	if h.deps.Store == nil {
		return persistenceDisabled(c)
	}
	minSev, ok := parseMinSeverity(c)
	if !ok {
		return invalidSeverity(c)
	}
	f := store.AlertFilter{
		Project:     c.Query("project"),
		MinSeverity: minSev,
		Limit:       clampLimit(c.QueryInt("limit", 100)),
	}
	if since := c.Query("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return problemResponse(c, fiber.StatusBadRequest,
				"invalid_since", "Bad Request", "since must be an RFC 3339 timestamp")
		}
		f.Since = ts
	}

	list, err := h.deps.Store.ListAlerts(c.UserContext(), f)
	if err != nil {
		return h.storeError(c, err)
	}
	if list == nil {
		list = []models.Alert{}
	}
	return c.JSON(AlertListResponse{Alerts: list, Total: len(list)})
}

// Recommendations handles GET /api/v1/recommendations.
func (h *Handlers) Recommendations(c *fiber.Ctx) error {
	res := h.deps.Monitor.Latest()
	if res == nil {
		return noCycle(c)
	}
	owner := c.Query("owner")
	out := []models.Recommendation{}
	for _, r := range res.Recommendations {
		if owner == "" || r.Owner == owner {
			out = append(out, r)
		}
	}
	return c.JSON(RecommendationListResponse{CycleID: res.ID, Recommendations: out, Total: len(out)})
}

// Trends handles GET /api/v1/projects/:project/trends.
func (h *Handlers) Trends(c *fiber.Ctx) error {
	name := c.Params("project")
	rep, err := h.deps.Trends.Trends(name)
	if errors.Is(err, perrors.ErrProjectNotFound) {
		return problemResponse(c, fiber.StatusNotFound,
			"project_not_found", "Not Found", "No history for project: "+name)
	}
	if err != nil {
		return err
	}
	return c.JSON(rep)
}

// Cycles handles GET /api/v1/cycles.
func (h *Handlers) Cycles(c *fiber.Ctx) error {
	resp := CycleListResponse{Status: h.deps.Monitor.Status(), Cycles: []store.CycleSummary{}}
	if h.deps.Store != nil {
		list, err := h.deps.Store.ListCycles(c.UserContext(), clampLimit(c.QueryInt("limit", 50)))
		if err != nil {
			return h.storeError(c, err)
		}
		if list != nil {
			resp.Cycles = list
		}
	}
	return c.JSON(resp)
}

// TriggerCycle handles POST /api/v1/cycles.
func (h *Handlers) TriggerCycle(c *fiber.Ctx) error {
	queued := h.deps.Monitor.Trigger()
	h.logger.Info().Bool("queued", queued).Str("request_id", requestid.Get(c)).Msg("cycle trigger requested")
	return c.Status(fiber.StatusAccepted).JSON(TriggerResponse{Queued: queued, At: time.Now().UTC()})
}

func (h *Handlers) storeError(c *fiber.Ctx, err error) error {
	h.logger.Error().Err(err).Str("path", c.Path()).Msg("store query failed")
	return problemResponse(c, fiber.StatusInternalServerError,
		"store_error", "Internal Server Error", "Failed to query stored results")
}

// parseMinSeverity reads ?severity=; ok is false for unknown values.
func parseMinSeverity(c *fiber.Ctx) (models.Severity, bool) {
	raw := c.Query("severity")
	if raw == "" {
		return "", true
	}
	sev, ok := models.ParseSeverity(raw)
	return sev, ok
}

func invalidSeverity(c *fiber.Ctx) error {
	return problemResponse(c, fiber.StatusBadRequest,
		"invalid_severity", "Bad Request",
		"severity must be one of critical, high, medium, low, info")
}

func persistenceDisabled(c *fiber.Ctx) error {
	return problemResponse(c, fiber.StatusServiceUnavailable,
		"persistence_disabled", "Service Unavailable",
		"Result persistence is not configured")
}

func clampLimit(n int) int {
	if n <= 0 {
		return 0
	}
	if n > maxListLimit {
		return maxListLimit
	}
	return n
}
