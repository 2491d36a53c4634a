// Package mgmt serves the management and read API of the project health service.
package mgmt

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/project-health/internal/analyzer"
	"github.com/p-blackswan/project-health/internal/engine"
	"github.com/p-blackswan/project-health/internal/health"
	"github.com/p-blackswan/project-health/internal/metrics"
	"github.com/p-blackswan/project-health/internal/models"
	"github.com/p-blackswan/project-health/internal/requestid"
	"github.com/p-blackswan/project-health/internal/store"
)

// Monitor is the cycle loop seen by the API.
type Monitor interface {
	Latest() *engine.CycleResult
	Status() engine.Status
	Trigger() bool
}

// TrendSource analyses a project's history on request.
type TrendSource interface {
	Trends(project string) (*analyzer.TrendReport, error)
}

// ResultStore serves persisted results. It is nil when persistence is off.
type ResultStore interface {
	ListAlerts(ctx context.Context, f store.AlertFilter) ([]models.Alert, error)
	ListCycles(ctx context.Context, limit int) ([]store.CycleSummary, error)
}

// ServerConfig holds configuration for the management API server.
type ServerConfig struct {
	ListenAddr  string
	AuthConfig  AuthConfig
	RateLimit   RateLimitConfig
	CORSOrigins string
}

// Deps are the components the API reads from.
type Deps struct {
	Monitor Monitor
	Trends  TrendSource
	Store   ResultStore
	Checker *health.Checker
	Metrics *metrics.Metrics
}

// Server is the management API Fiber application.
type Server struct {
	app    *fiber.App
	logger zerolog.Logger
	config ServerConfig
}

// NewServer creates and configures a new management API server.
func NewServer(cfg ServerConfig, deps Deps, logger zerolog.Logger) *Server {
	logger = logger.With().Str("component", "mgmt_server").Logger()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	s := &Server{app: app, logger: logger, config: cfg}
	h := NewHandlers(deps, logger)
	s.setupMiddleware(cfg, deps.Metrics)
	s.setupRoutes(h, deps.Metrics)
	return s
}

func (s *Server) setupMiddleware(cfg ServerConfig, m *metrics.Metrics) {
	s.app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	s.app.Use(requestid.Middleware())

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, " + requestid.Header,
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	if m != nil {
		s.app.Use(func(c *fiber.Ctx) error {
			start := time.Now()
			err := c.Next()
			route := c.Route().Path
			status := c.Response().StatusCode()
			if err != nil {
				var fe *fiber.Error
				if errors.As(err, &fe) {
					status = fe.Code
				} else {
					status = fiber.StatusInternalServerError
				}
			}
			m.RecordRequest(route, strconv.Itoa(status))
			m.ObserveDuration(route, time.Since(start).Seconds())
			return err
		})
	}

	if cfg.RateLimit.RPS > 0 {
		s.app.Use(NewRateLimitMiddleware(cfg.RateLimit))
	}

	s.app.Use(NewAuthMiddleware(cfg.AuthConfig, s.logger))

	s.app.Use(func(c *fiber.Ctx) error {
		if isProbe(c.Path()) {
			return c.Next()
		}
		s.logger.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Str("ip", c.IP()).
			Str("request_id", requestid.Get(c)).
			Msg("mgmt api request")
		return c.Next()
	})
}

func (s *Server) setupRoutes(h *Handlers, m *metrics.Metrics) {
	s.app.Get("/healthz", h.Liveness)
	s.app.Get("/readyz", h.Readiness)
	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	v1 := s.app.Group("/api/v1")
	v1.Get("/metrics", h.SystemMetrics)
	v1.Get("/metrics/:project", h.ProjectMetrics)
	v1.Get("/alerts", h.Alerts)
	v1.Get("/alerts/history", h.AlertHistory)
	v1.Get("/recommendations", h.Recommendations)
	v1.Get("/projects/:project/trends", h.Trends)
	v1.Get("/cycles", h.Cycles)
	v1.Post("/cycles", requireRole(RoleOperator), h.TriggerCycle)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8090"
	}
	s.logger.Info().Str("addr", addr).Msg("management API server starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("management API server shutting down")
	return s.app.ShutdownWithContext(ctx)
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

func errorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		title := "Internal Server Error"
		detail := "An internal error occurred"
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
			title = fe.Message
			detail = fe.Message
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error().Err(err).Int("status", code).Str("path", c.Path()).
				Str("method", c.Method()).Str("request_id", requestid.Get(c)).Msg("unhandled error")
		}
		return problemResponse(c, code, "about:blank", title, detail)
	}
}
