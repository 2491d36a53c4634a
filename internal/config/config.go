package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/p-blackswan/project-health/internal/alerts"
	"github.com/p-blackswan/project-health/internal/models"
)

// Auth modes for the management API.
const (
	AuthNone   = "none"
	AuthAPIKey = "api-key"
	AuthJWT    = "jwt"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Management API
	MgmtListenAddr  string `envconfig:"MGMT_LISTEN_ADDR" default:":8090"`
	MgmtAuthMode    string `envconfig:"MGMT_AUTH_MODE" default:"api-key"`
	MgmtAPIKey      string `envconfig:"MGMT_API_KEY"`
	MgmtJWTSecret   string `envconfig:"MGMT_JWT_SECRET"`
	MgmtCORSOrigins string `envconfig:"MGMT_CORS_ORIGINS"`

	MgmtRateLimitRPS   int `envconfig:"MGMT_RATE_LIMIT_RPS" default:"20"`
	MgmtRateLimitBurst int `envconfig:"MGMT_RATE_LIMIT_BURST" default:"40"`

	// Input and persistence
	ProjectsFile    string        `envconfig:"PROJECTS_FILE" default:"projects.yaml"`
	DBPath          string        `envconfig:"DB_PATH" default:"project-health.db"` // empty disables persistence
	ResultRetention time.Duration `envconfig:"RESULT_RETENTION" default:"720h"`

	// Monitoring cycle
	MonitorInterval time.Duration `envconfig:"MONITOR_INTERVAL" default:"300s"`
	CycleTimeout    time.Duration `envconfig:"CYCLE_TIMEOUT" default:"60s"`
	HistoryLimit    int           `envconfig:"HISTORY_LIMIT" default:"30"`

	// Alert thresholds
	BlockedTaskThresholdDays float64 `envconfig:"BLOCKED_TASK_THRESHOLD_DAYS" default:"2"`
	ApproachingDeadlineDays  int     `envconfig:"APPROACHING_DEADLINE_THRESHOLD_DAYS" default:"7"`
	OverdueThresholdDays     int     `envconfig:"OVERDUE_THRESHOLD_DAYS" default:"3"`
	ResourceLowThreshold     float64 `envconfig:"RESOURCE_LOW_THRESHOLD" default:"25"`
	HighRiskThreshold        float64 `envconfig:"HIGH_RISK_THRESHOLD" default:"0.7"`

	// Notifications (Slack optional, log notifier always on)
	SlackBotToken     string        `envconfig:"SLACK_BOT_TOKEN"`
	SlackAlertChannel string        `envconfig:"SLACK_ALERT_CHANNEL"`
	NotifyMinSeverity string        `envconfig:"NOTIFY_MIN_SEVERITY" default:"high"`
	NotifyDedupWindow time.Duration `envconfig:"NOTIFY_DEDUP_WINDOW" default:"6h"`
}

// SlackEnabled returns true if a bot token and channel are configured.
func (c *Config) SlackEnabled() bool {
	return c.SlackBotToken != "" && c.SlackAlertChannel != ""
}

// PersistenceEnabled returns true if a database path is configured.
func (c *Config) PersistenceEnabled() bool {
	return strings.TrimSpace(c.DBPath) != ""
}

// AlertThresholds converts the threshold fields into generator config.
func (c *Config) AlertThresholds() alerts.Config {
	return alerts.Config{
		BlockedTaskThresholdDays: c.BlockedTaskThresholdDays,
		ApproachingDeadlineDays:  c.ApproachingDeadlineDays,
		OverdueThresholdDays:     c.OverdueThresholdDays,
		ResourceLowThreshold:     c.ResourceLowThreshold,
		HighRiskThreshold:        c.HighRiskThreshold,
	}
}

// MinSeverity returns the parsed NOTIFY_MIN_SEVERITY.
func (c *Config) MinSeverity() models.Severity {
	sev, ok := models.ParseSeverity(c.NotifyMinSeverity)
	if !ok {
		return models.SeverityHigh
	}
	return sev
}

// CORSOrigins returns the parsed list of allowed origins.
func (c *Config) CORSOrigins() []string {
	if c.MgmtCORSOrigins == "" {
		return nil
	}
	parts := strings.Split(c.MgmtCORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, o := range parts {
		o = strings.TrimSpace(o)
		if o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Validate checks values envconfig cannot.
func (c *Config) Validate() error {
	switch c.MgmtAuthMode {
	case AuthNone:
	case AuthAPIKey:
		if c.MgmtAPIKey == "" {
			return fmt.Errorf("MGMT_API_KEY is required when MGMT_AUTH_MODE=%s", AuthAPIKey)
		}
	case AuthJWT:
		if c.MgmtJWTSecret == "" {
			return fmt.Errorf("MGMT_JWT_SECRET is required when MGMT_AUTH_MODE=%s", AuthJWT)
		}
	default:
		return fmt.Errorf("invalid MGMT_AUTH_MODE %q", c.MgmtAuthMode)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive")
	}
	if c.CycleTimeout <= 0 {
		return fmt.Errorf("CYCLE_TIMEOUT must be positive")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("HISTORY_LIMIT must be positive")
	}
	if _, ok := models.ParseSeverity(c.NotifyMinSeverity); !ok {
		return fmt.Errorf("invalid NOTIFY_MIN_SEVERITY %q", c.NotifyMinSeverity)
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
